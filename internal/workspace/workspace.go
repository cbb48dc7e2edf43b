// Package workspace lays out the davsync data directory and guards it
// against concurrent runs.
package workspace

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/gofrs/flock"
	"github.com/openmined/davsync/internal/utils"
)

const (
	logsDir    = "logs"
	lockFile   = "davsync.lock"
	pairsFile  = "pairs.db"
	statusFile = "status.db"
	logFile    = "davsync.log"
)

var ErrRunInProgress = errors.New("another davsync run is in progress")

// Workspace is the data directory:
//
//	<root>/pairs.db       pairs and credentials
//	<root>/status.db      last outcomes and run history
//	<root>/logs/davsync.log
//	<root>/davsync.lock   held while check or sync runs
type Workspace struct {
	Root     string
	LogsDir  string
	PairsDB  string
	StatusDB string
	LogFile  string
	flock    *flock.Flock
}

func New(rootDir string) (*Workspace, error) {
	root, err := utils.ResolvePath(rootDir)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve path %s: %w", rootDir, err)
	}

	return &Workspace{
		Root:     root,
		LogsDir:  filepath.Join(root, logsDir),
		PairsDB:  filepath.Join(root, pairsFile),
		StatusDB: filepath.Join(root, statusFile),
		LogFile:  filepath.Join(root, logsDir, logFile),
		flock:    flock.New(filepath.Join(root, lockFile)),
	}, nil
}

// Setup creates the directories.
func (w *Workspace) Setup() error {
	for _, dir := range []string{w.Root, w.LogsDir} {
		if err := utils.EnsureDir(dir); err != nil {
			return fmt.Errorf("failed to create directory %s: %w", dir, err)
		}
	}
	return nil
}

// Lock fails with ErrRunInProgress when another process holds the lock.
func (w *Workspace) Lock() error {
	if err := utils.EnsureDir(w.Root); err != nil {
		return fmt.Errorf("failed to create directory %s: %w", w.Root, err)
	}

	locked, err := w.flock.TryLock()
	if err != nil {
		return fmt.Errorf("failed to lock workspace: %w", err)
	}
	if !locked {
		return ErrRunInProgress
	}
	slog.Debug("workspace locked", "path", w.flock.Path())
	return nil
}

func (w *Workspace) Unlock() error {
	// never remove a lock file this process does not hold
	if !w.flock.Locked() {
		return nil
	}

	if err := w.flock.Unlock(); err != nil {
		return fmt.Errorf("failed to unlock workspace: %w", err)
	}
	return os.Remove(w.flock.Path())
}
