package cmd

import (
	"fmt"

	"ESMP/core/auth"

	"github.com/spf13/cobra"
)

var passphraseCmd = &cobra.Command{
	Use:   "hash-passphrase <passphrase>",
	Short: "Print a bcrypt hash for DOWNLOAD_PASSWORD",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		hash, err := auth.HashPassword(args[0])
		if err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), hash)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(passphraseCmd)
}
