package main

import (
	"fmt"
	"io"

	"github.com/charmbracelet/lipgloss"
	"github.com/dustin/go-humanize"
	"github.com/openmined/davsync/internal/statusdb"
	"github.com/openmined/davsync/internal/sync"
	"github.com/openmined/davsync/internal/utils"
	"github.com/openmined/davsync/internal/workspace"
	"github.com/spf13/cobra"
)

func init() {
	rootCmd.AddCommand(newStatusCmd())
}

func newStatusCmd() *cobra.Command {
	var asJSON bool
	var runs int

	cmd := &cobra.Command{
		Use:   "status",
		Short: "Show the last outcome of every pair",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ws, err := workspace.New(cfg.DataDir)
			if err != nil {
				return err
			}
			status, err := statusdb.Open(ws.StatusDB)
			if err != nil {
				return err
			}
			defer status.Close()

			out := cmd.OutOrStdout()
			if cmd.Flag("runs").Changed {
				history, err := status.Runs(cmd.Context(), runs)
				if err != nil {
					return err
				}
				if asJSON {
					return utils.EncodeJSON(out, history)
				}
				printRuns(out, history)
				return nil
			}

			statuses, err := status.PairStatuses(cmd.Context())
			if err != nil {
				return err
			}
			if asJSON {
				return utils.EncodeJSON(out, statuses)
			}
			printStatuses(out, statuses)
			return nil
		},
	}

	cmd.Flags().BoolVar(&asJSON, "json", false, "print as JSON")
	cmd.Flags().IntVar(&runs, "runs", 10, "show the last N runs instead of pair status (0 for all)")
	return cmd
}

var (
	headerStyle = lipgloss.NewStyle().Bold(true).Underline(true)
	cellStyle   = lipgloss.NewStyle().PaddingRight(2)
)

func outcomeStyle(o sync.Outcome) lipgloss.Style {
	switch o {
	case sync.Synchronized:
		return green
	case sync.RemoteHasChanges:
		return cyan
	case sync.LocalHasChanges:
		return yellow
	default:
		return red
	}
}

func printStatuses(w io.Writer, statuses []statusdb.PairStatus) {
	if len(statuses) == 0 {
		fmt.Fprintln(w, gray.Render("no runs recorded yet"))
		return
	}

	width := 0
	for _, s := range statuses {
		width = max(width, lipgloss.Width(s.Outcome.String()))
	}
	col := cellStyle.Width(width + 2)

	fmt.Fprintln(w, headerStyle.Render("DAVSYNC PAIR STATUS"))
	for _, s := range statuses {
		fmt.Fprintln(w, lipgloss.JoinHorizontal(lipgloss.Top,
			col.Render(outcomeStyle(s.Outcome).Render(s.Outcome.String())),
			cellStyle.Render(s.LocalPath),
			cellStyle.Render(lightGray.Render(s.RemotePath)),
			gray.Render(humanize.Time(s.UpdatedAt)),
		))
	}
}

func printRuns(w io.Writer, runs []statusdb.Run) {
	if len(runs) == 0 {
		fmt.Fprintln(w, gray.Render("no runs recorded yet"))
		return
	}

	fmt.Fprintln(w, headerStyle.Render("DAVSYNC RUNS"))
	for _, r := range runs {
		state := green.Render("ok")
		switch {
		case r.FinishedAt == nil:
			state = yellow.Render("unfinished")
		case r.Error != "":
			state = red.Render("failed: " + r.Error)
		}

		s := r.Summary
		fmt.Fprintf(w, "%s  %-5s  %s  %d synchronized, %d unsynchronizable, ↑ %s ↓ %s  %s\n",
			gray.Render(r.ID[:8]),
			r.Mode,
			humanize.Time(r.StartedAt),
			s.Synchronized,
			s.Unsynchronizable,
			humanize.Bytes(uint64(s.Uploaded)),
			humanize.Bytes(uint64(s.Downloaded)),
			state,
		)
	}
}
