package main

import (
	"fmt"
	"io"
	"os"

	"github.com/openmined/davsync/internal/pairstore"
	"github.com/openmined/davsync/internal/statusdb"
	"github.com/openmined/davsync/internal/utils"
	"github.com/openmined/davsync/internal/workspace"
	"github.com/spf13/cobra"
)

func init() {
	pairCmd := &cobra.Command{
		Use:   "pair",
		Short: "Manage local <=> remote pairs",
	}
	pairCmd.AddCommand(
		newPairAddCmd(),
		newPairEditCmd(),
		newPairRemoveCmd(),
		newPairListCmd(),
		newPairExportCmd(),
		newPairImportCmd(),
	)
	rootCmd.AddCommand(pairCmd)
}

// withPairStore opens the store for the duration of fn.
func withPairStore(fn func(*pairstore.Store) error) error {
	ws, err := workspace.New(cfg.DataDir)
	if err != nil {
		return err
	}
	store, err := pairstore.Open(ws.PairsDB)
	if err != nil {
		return err
	}
	defer store.Close()
	return fn(store)
}

func newPairAddCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "add <local-path> <remote-path>",
		Short: "Add a pair",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withPairStore(func(store *pairstore.Store) error {
				pair, err := store.Add(args[0], args[1])
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "%s %s\n", green.Render("added"), pair)
				return nil
			})
		},
	}
}

func newPairEditCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "edit <current-local-path> <local-path> <remote-path>",
		Short: "Replace a pair",
		Args:  cobra.ExactArgs(3),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withPairStore(func(store *pairstore.Store) error {
				pair, err := store.Edit(args[0], args[1], args[2])
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "%s %s\n", green.Render("updated"), pair)
				return nil
			})
		},
	}
}

func newPairRemoveCmd() *cobra.Command {
	return &cobra.Command{
		Use:     "rm <local-path>",
		Aliases: []string{"remove"},
		Short:   "Remove a pair",
		Args:    cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			local, err := utils.ResolvePath(args[0])
			if err != nil {
				return err
			}
			err = withPairStore(func(store *pairstore.Store) error {
				return store.Remove(local)
			})
			if err != nil {
				return err
			}
			forgetStatus(cmd, local)
			fmt.Fprintf(cmd.OutOrStdout(), "%s %s\n", green.Render("removed"), local)
			return nil
		},
	}
}

// forgetStatus drops the status row of a removed pair; a failure only leaves
// a stale line in 'davsync status'.
func forgetStatus(cmd *cobra.Command, local string) {
	ws, err := workspace.New(cfg.DataDir)
	if err != nil {
		return
	}
	status, err := statusdb.Open(ws.StatusDB)
	if err != nil {
		return
	}
	defer status.Close()
	if err := status.ForgetPair(cmd.Context(), local); err != nil {
		cmd.PrintErrf("failed to clear status of %s: %v\n", local, err)
	}
}

func newPairListCmd() *cobra.Command {
	var asJSON bool

	cmd := &cobra.Command{
		Use:     "ls",
		Aliases: []string{"list"},
		Short:   "List pairs",
		Args:    cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withPairStore(func(store *pairstore.Store) error {
				pairs, err := store.List()
				if err != nil {
					return err
				}
				out := cmd.OutOrStdout()
				if asJSON {
					return pairstore.WriteDocument(out, pairstore.FormatJSON, pairstore.Document{Pairs: pairs})
				}
				if len(pairs) == 0 {
					fmt.Fprintln(out, gray.Render("no pairs, add one with 'davsync pair add'"))
					return nil
				}
				for _, p := range pairs {
					fmt.Fprintf(out, "%s %s %s\n", p.LocalPath, gray.Render("<=>"), cyan.Render(p.RemotePath))
				}
				return nil
			})
		},
	}
	cmd.Flags().BoolVar(&asJSON, "json", false, "print as JSON")
	return cmd
}

func newPairExportCmd() *cobra.Command {
	var format string

	cmd := &cobra.Command{
		Use:   "export [file]",
		Short: "Write all pairs as YAML or JSON",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var out io.Writer = cmd.OutOrStdout()
			f := pairstore.Format(format)
			if len(args) == 1 {
				if !cmd.Flag("format").Changed {
					f = pairstore.FormatFromPath(args[0])
				}
				file, err := os.Create(args[0])
				if err != nil {
					return err
				}
				defer file.Close()
				out = file
			}

			return withPairStore(func(store *pairstore.Store) error {
				pairs, err := store.List()
				if err != nil {
					return err
				}
				return pairstore.WriteDocument(out, f, pairstore.Document{Pairs: pairs})
			})
		},
	}
	cmd.Flags().StringVarP(&format, "format", "f", string(pairstore.FormatYAML), "yaml or json")
	return cmd
}

func newPairImportCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "import <file>",
		Short: "Add all pairs from a YAML or JSON export",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			file, err := os.Open(args[0])
			if err != nil {
				return err
			}
			defer file.Close()

			doc, err := pairstore.ReadDocument(file, pairstore.FormatFromPath(args[0]))
			if err != nil {
				return fmt.Errorf("read %s: %w", args[0], err)
			}

			return withPairStore(func(store *pairstore.Store) error {
				added, err := store.Import(doc.Pairs)
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "%s %d of %d pairs\n", green.Render("imported"), added, len(doc.Pairs))
				return nil
			})
		},
	}
}
