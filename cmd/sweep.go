package cmd

import (
	"fmt"

	"ESMP/cache"
	"ESMP/core/fetch"
	"ESMP/core/notion"
	"ESMP/core/view"

	"github.com/spf13/cobra"
)

var (
	sweepSort    string
	sweepOrder   string
	sweepQuery   string
	sweepNoCache bool
)

var sweepCmd = &cobra.Command{
	Use:   "sweep",
	Short: "Fetch every track and print the titles",
	Long:  `Run a full paginated sweep of the tracks database, through the configured cache, and print one title per line.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		key, err := view.ParseSortKey(sweepSort)
		if err != nil {
			return err
		}
		order, err := view.ParseOrder(sweepOrder)
		if err != nil {
			return err
		}

		ctx := cmd.Context()

		var store cache.Cache = &cache.NoOpCache{}
		if !sweepNoCache {
			if store, err = cache.New(ctx, cfg); err != nil {
				return err
			}
		}

		client := notion.NewClient(cfg.NotionAPIURL, cfg.NotionToken, cfg.NotionVersion, cfg.NotionTimeout)
		tracks := client.Database(cfg.TracksDatabaseID, notion.Descending(cfg.CompletionDateProperty))
		controller := fetch.NewController(tracks, store, cfg.PageSize)

		records, err := controller.FetchUnfiltered(ctx)
		if err != nil {
			return err
		}
		shown := view.Apply(records, view.Options{
			Query:        sweepQuery,
			Key:          key,
			Order:        order,
			DateProperty: cfg.CompletionDateProperty,
		})

		out := cmd.OutOrStdout()
		for _, r := range shown {
			fmt.Fprintf(out, "%s\t%s\n", r.Date(cfg.CompletionDateProperty), r.Title())
		}
		snap := controller.Snapshot(fetch.TargetAll)
		fmt.Fprintf(cmd.ErrOrStderr(), "%d of %d records (from cache: %t)\n", len(shown), snap.Count, snap.FromCache)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(sweepCmd)

	sweepCmd.Flags().StringVar(&sweepSort, "sort", "date", "sort key: date or title")
	sweepCmd.Flags().StringVar(&sweepOrder, "order", "desc", "sort order: asc or desc")
	sweepCmd.Flags().StringVarP(&sweepQuery, "query", "q", "", "case-insensitive search")
	sweepCmd.Flags().BoolVar(&sweepNoCache, "no-cache", false, "bypass the response cache")
}
