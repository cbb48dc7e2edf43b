package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"

	"github.com/openmined/davsync/internal/pairstore"
	"github.com/openmined/davsync/internal/selection"
	"github.com/openmined/davsync/internal/statusdb"
	"github.com/openmined/davsync/internal/sync"
	"github.com/openmined/davsync/internal/workspace"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"
)

func init() {
	rootCmd.AddCommand(newRunCmd(sync.ModeReportOnly))
	rootCmd.AddCommand(newRunCmd(sync.ModeMutate))
}

type runOpts struct {
	json bool
	only []string
}

func newRunCmd(mode sync.Mode) *cobra.Command {
	var opts runOpts

	short := "Report how every pair differs without changing anything"
	if mode == sync.ModeMutate {
		short = "Upload or download every pair that is out of date"
	}

	cmd := &cobra.Command{
		Use:   mode.String(),
		Short: short,
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runPairs(cmd.Context(), cmd.OutOrStdout(), mode, opts)
		},
	}

	cmd.Flags().BoolVar(&opts.json, "json", false, "print events as JSON lines")
	cmd.Flags().StringSliceVar(&opts.only, "only", nil, "only pairs whose local or remote path matches this glob (repeatable)")
	return cmd
}

type statusUpdate struct {
	pair    sync.Pair
	outcome sync.Outcome
}

func runPairs(ctx context.Context, out io.Writer, mode sync.Mode, opts runOpts) error {
	ws, err := workspace.New(cfg.DataDir)
	if err != nil {
		return err
	}
	if err := ws.Lock(); err != nil {
		return err
	}
	defer ws.Unlock()

	store, err := pairstore.Open(ws.PairsDB)
	if err != nil {
		return err
	}
	defer store.Close()

	if err := cfg.withStoredCredentials(store); err != nil {
		return err
	}

	all, err := store.List()
	if err != nil {
		return err
	}
	selector, err := selection.New(cfg.Ignore, opts.only)
	if err != nil {
		return err
	}
	pairs, skipped := selector.Filter(all)
	for _, p := range skipped {
		slog.Info("pair ignored", "pair", p.LocalPath, "remote", p.RemotePath)
	}

	status, err := statusdb.Open(ws.StatusDB)
	if err != nil {
		return err
	}
	defer status.Close()

	runID, err := status.BeginRun(ctx, mode)
	if err != nil {
		return err
	}

	printer := newEventPrinter(out, opts.json)

	session, err := openSession(ctx, cfg)
	if err != nil {
		err = fmt.Errorf("can't open connection: %w", err)
		if finishErr := status.FinishRun(ctx, runID, sync.Summary{}, err); finishErr != nil {
			slog.Error("failed to record run", "run", runID, "error", finishErr)
		}
		return err
	}
	defer session.Close()

	// a signal does not interrupt the engine; it finishes the pairs it was given
	finished := make(chan struct{})
	defer close(finished)
	go func() {
		select {
		case <-ctx.Done():
			slog.Warn("stop requested, finishing the current run")
		case <-finished:
		}
	}()

	engine := sync.NewEngine(session,
		sync.WithMetadataPath(cfg.MetadataPath),
		sync.WithLogger(slog.Default().With("run", runID)),
	)
	events := engine.Run(ctx, mode, pairs)

	// status writes happen off the consumer loop so a slow disk does not
	// hold up the engine's event channel
	updates := make(chan statusUpdate, sync.EventBufferSize)
	var done sync.DoneEvent

	var g errgroup.Group
	g.Go(func() error {
		defer close(updates)
		var printErr error
		// drain everything even if output fails, the engine must not block
		for ev := range events {
			switch ev := ev.(type) {
			case sync.PairEvent:
				updates <- statusUpdate{pair: ev.Pair, outcome: ev.Outcome}
			case sync.DoneEvent:
				done = ev
			}
			if err := printer.Print(mode, ev); err != nil && printErr == nil {
				printErr = err
			}
		}
		return printErr
	})
	g.Go(func() error {
		var errs []error
		for u := range updates {
			if err := status.RecordOutcome(context.WithoutCancel(ctx), runID, u.pair, u.outcome); err != nil {
				errs = append(errs, err)
			}
		}
		return errors.Join(errs...)
	})
	if err := g.Wait(); err != nil {
		slog.Error("failed to record run output", "error", err)
	}

	if err := status.FinishRun(context.WithoutCancel(ctx), runID, done.Summary, done.Err); err != nil {
		slog.Error("failed to record run", "run", runID, "error", err)
	}
	return done.Err
}
