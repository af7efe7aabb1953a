package cmd

import (
	"fmt"
	"sort"

	"ESMP/storage"

	"github.com/spf13/cobra"
)

var (
	minioPrefix    string
	minioStats     bool
	minioRecursive bool
)

var minioCmd = &cobra.Command{
	Use:   "minio",
	Short: "List audio objects in the MinIO bucket",
	Long:  `List the objects the download passthrough can serve from the configured MinIO bucket, optionally with usage statistics.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		store, err := storage.NewMinioStore(cfg)
		if err != nil {
			return err
		}
		ctx := cmd.Context()
		if err := store.Check(ctx); err != nil {
			return err
		}

		objects, stats, err := store.List(ctx, minioPrefix, minioRecursive)
		if err != nil {
			return err
		}

		out := cmd.OutOrStdout()
		for _, obj := range objects {
			fmt.Fprintf(out, "%s\t%s\t%s\n", obj.LastModified.Format("2006-01-02 15:04:05"), storage.FormatSize(obj.Size), obj.Key)
		}

		if minioStats {
			fmt.Fprintf(out, "\nbucket: %s\nprefix: %q\nobjects: %d\nsize: %s\n",
				store.Bucket(), minioPrefix, stats.TotalObjects, storage.FormatSize(stats.TotalSize))
			if !stats.LastModified.IsZero() {
				fmt.Fprintf(out, "last modified: %s\n", stats.LastModified.Format("2006-01-02 15:04:05"))
			}
			usage := storage.UsageByType(objects)
			types := make([]string, 0, len(usage))
			for t := range usage {
				types = append(types, t)
			}
			sort.Strings(types)
			for _, t := range types {
				fmt.Fprintf(out, "  %s: %s\n", t, storage.FormatSize(usage[t]))
			}
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(minioCmd)

	minioCmd.Flags().StringVarP(&minioPrefix, "prefix", "p", "", "only list keys with this prefix")
	minioCmd.Flags().BoolVarP(&minioStats, "stats", "s", false, "print bucket statistics")
	minioCmd.Flags().BoolVarP(&minioRecursive, "recursive", "r", true, "descend into prefixes")

	minioCmd.Example = `  # list every object
  esmp minio

  # only audio under a prefix, with statistics
  esmp minio -p "audio/" -s`
}
