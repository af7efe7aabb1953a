package cmd

import (
	"ESMP/server"

	"github.com/spf13/cobra"
)

var serverCmd = &cobra.Command{
	Use:   "server",
	Short: "Start the ESMP HTTP server",
	Long:  `Start the HTTP server that serves the archive API, the state feed and the web UI.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		return server.Start(cfg)
	},
}

func init() {
	rootCmd.AddCommand(serverCmd)
}
