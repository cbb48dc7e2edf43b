package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/lmittmann/tint"
	"github.com/mattn/go-isatty"
	"github.com/openmined/davsync/internal/utils"
	"github.com/openmined/davsync/internal/version"
	"github.com/openmined/davsync/internal/workspace"
	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:           "davsync",
	Short:         "Keep local files and their WebDAV copies in sync",
	Version:       version.Detailed(),
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		if err := loadConfig(cmd); err != nil {
			return err
		}
		return setupLogging(cmd)
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		closeLogging()
	},
}

func init() {
	rootCmd.PersistentFlags().SortFlags = false
	rootCmd.PersistentFlags().StringP("config", "c", defaultConfigPath, "davsync config file")
	rootCmd.PersistentFlags().StringP("datadir", "d", defaultDataDir, "directory for pairs, status and logs")
	rootCmd.PersistentFlags().BoolP("verbose", "v", false, "log debug messages")
}

var logCloser io.Closer

// setupLogging sends records to stderr and to the workspace log file.
func setupLogging(cmd *cobra.Command) error {
	level := slog.LevelInfo
	if verbose, _ := cmd.Flags().GetBool("verbose"); verbose {
		level = slog.LevelDebug
	}

	stderrHandler := tint.NewHandler(os.Stderr, &tint.Options{
		Level:      level,
		TimeFormat: "15:04:05.000",
		NoColor:    !isatty.IsTerminal(os.Stderr.Fd()),
	})

	ws, err := workspace.New(cfg.DataDir)
	if err != nil {
		return err
	}
	if err := ws.Setup(); err != nil {
		return err
	}

	file, err := os.OpenFile(ws.LogFile, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		// keep going with stderr only
		slog.SetDefault(slog.New(stderrHandler))
		slog.Warn("failed to open log file", "path", ws.LogFile, "error", err)
		return nil
	}

	interceptor := utils.NewLogInterceptor(file)
	fileHandler := slog.NewTextHandler(interceptor, &slog.HandlerOptions{
		Level: slog.LevelDebug,
		// the interceptor stamps each line itself
		ReplaceAttr: func(groups []string, a slog.Attr) slog.Attr {
			if a.Key == slog.TimeKey && len(groups) == 0 {
				return slog.Attr{}
			}
			return a
		},
	})

	slog.SetDefault(slog.New(utils.NewMultiLogHandler(stderrHandler, fileHandler)))
	logCloser = closerFunc(func() error {
		interceptor.Close()
		return file.Close()
	})
	return nil
}

func closeLogging() {
	if logCloser != nil {
		logCloser.Close()
		logCloser = nil
	}
}

type closerFunc func() error

func (f closerFunc) Close() error { return f() }

func main() {
	// a missing .env is fine
	_ = godotenv.Load()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		closeLogging()
		fmt.Fprintf(os.Stderr, "%s %s\n", red.Render("ERROR:"), err)
		os.Exit(1)
	}
}
