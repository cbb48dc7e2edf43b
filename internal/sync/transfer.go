package sync

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/openmined/davsync/internal/remote"
	"github.com/spf13/afero"
)

// existsLocally reports whether path is there. Only a not-exist error means
// absent; any other stat failure is returned.
func existsLocally(fs afero.Fs, path string) (os.FileInfo, bool, error) {
	info, err := fs.Stat(path)
	switch {
	case err == nil:
		return info, true, nil
	case errors.Is(err, os.ErrNotExist):
		return nil, false, nil
	default:
		return nil, false, err
	}
}

func existsRemotely(ctx context.Context, session remote.Session, path string) (bool, error) {
	return session.Exists(ctx, path)
}

// canDownload reports whether the local parent directory is already there.
// Local directories are never created.
func canDownload(fs afero.Fs, localPath string) bool {
	info, err := fs.Stat(filepath.Dir(localPath))
	return err == nil && info.IsDir()
}

// download replaces localPath with the remote content. The data lands in a
// temp file next to the target first so a failed transfer leaves the old
// file alone.
func download(ctx context.Context, session remote.Session, fs afero.Fs, remotePath, localPath string) (int64, error) {
	rc, err := session.Get(ctx, remotePath)
	if err != nil {
		return 0, err
	}
	defer rc.Close()

	mode := os.FileMode(0o644)
	if info, err := fs.Stat(localPath); err == nil {
		mode = info.Mode().Perm()
	}

	dir, base := filepath.Split(localPath)
	if dir == "" {
		dir = "."
	}
	tmp, err := afero.TempFile(fs, dir, "."+base+".tmp.*")
	if err != nil {
		return 0, fmt.Errorf("create temp file: %w", err)
	}
	tmpName := tmp.Name()

	n, err := io.Copy(tmp, rc)
	if closeErr := tmp.Close(); err == nil {
		err = closeErr
	}
	if err == nil {
		err = fs.Chmod(tmpName, mode)
	}
	if err == nil {
		err = fs.Rename(tmpName, localPath)
	}
	if err != nil {
		_ = fs.Remove(tmpName)
		return 0, fmt.Errorf("write %s: %w", localPath, err)
	}
	return n, nil
}

// upload checks the local file, creates the remote parent collections, then
// puts the whole file.
func upload(ctx context.Context, session remote.Session, fs afero.Fs, localPath, remotePath string) (int64, error) {
	f, err := fs.Open(localPath)
	if err != nil {
		return 0, fmt.Errorf("open %s: %w", localPath, err)
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return 0, fmt.Errorf("stat %s: %w", localPath, err)
	}
	if info.IsDir() {
		return 0, fmt.Errorf("%s is a directory", localPath)
	}

	if err := ensureRemoteDirs(ctx, session, remotePath); err != nil {
		return 0, err
	}
	if err := session.Put(ctx, remotePath, f, info.Size()); err != nil {
		return 0, err
	}
	return info.Size(), nil
}

// ensureRemoteDirs creates the parents of remotePath one segment at a time,
// root first. An existing collection is fine, any other failure aborts.
func ensureRemoteDirs(ctx context.Context, session remote.Session, remotePath string) error {
	for _, dir := range remote.ParentDirs(remotePath) {
		err := session.Mkcol(ctx, dir)
		if err != nil && !errors.Is(err, remote.ErrAlreadyExists) {
			return fmt.Errorf("create remote directory %s: %w", dir, err)
		}
	}
	return nil
}

func isNotFound(err error) bool {
	return errors.Is(err, remote.ErrNotFound)
}
