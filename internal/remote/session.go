// Package remote defines the transport session the sync engine talks to.
// Implementations live in the webdav and s3 subpackages.
package remote

import (
	"context"
	"io"
	"path"
	"strings"
	"time"
)

// FileInfo is what a zero-depth listing reports about one remote object.
type FileInfo struct {
	Path         string
	Size         int64
	LastModified time.Time
	IsDir        bool
}

// Session is one authenticated connection to a remote endpoint.
// A session is owned by a single run and is not safe for concurrent runs.
type Session interface {
	// Ping is the reachability probe made once before a run.
	Ping(ctx context.Context) error

	// Exists reports whether anything lives at path. Only a not-found
	// response counts as absent.
	Exists(ctx context.Context, path string) (bool, error)

	// Stat returns the remote object's metadata, or ErrNotFound.
	Stat(ctx context.Context, path string) (*FileInfo, error)

	// Get returns the full content of the object at path.
	Get(ctx context.Context, path string) (io.ReadCloser, error)

	// Put writes body to path, replacing any existing object. The parent
	// collection must already exist.
	Put(ctx context.Context, path string, body io.Reader, size int64) error

	// Mkcol creates a single collection. It returns ErrAlreadyExists when the
	// collection is already there.
	Mkcol(ctx context.Context, path string) error

	Close() error
}

// CleanPath normalizes a remote path to an absolute, slash separated form.
func CleanPath(p string) string {
	return path.Clean("/" + strings.TrimSpace(p))
}

// ParentDirs returns every ancestor collection of p, root-most first,
// excluding the root itself. ParentDirs("/a/b/c.txt") is ["/a", "/a/b"].
func ParentDirs(p string) []string {
	dir := path.Dir(CleanPath(p))
	if dir == "/" {
		return nil
	}

	segments := strings.Split(strings.TrimPrefix(dir, "/"), "/")
	dirs := make([]string, 0, len(segments))
	current := ""
	for _, seg := range segments {
		if seg == "" {
			continue
		}
		current += "/" + seg
		dirs = append(dirs, current)
	}
	return dirs
}
