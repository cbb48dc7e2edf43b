package main

import (
	"fmt"

	"github.com/openmined/davsync/internal/version"
	"github.com/spf13/cobra"
)

func init() {
	rootCmd.AddCommand(newVersionCmd())
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print davsync version information",
		// needs neither config nor a data directory
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error { return nil },
		PersistentPostRun: func(cmd *cobra.Command, args []string) {},
		RunE: func(cmd *cobra.Command, args []string) error {
			_, err := fmt.Fprintln(cmd.OutOrStdout(), version.Detailed())
			return err
		},
	}
}
