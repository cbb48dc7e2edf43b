package sync

import (
	"context"
	"net/http"
	"os"
	"testing"
	"time"

	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEnsureRemoteDirs(t *testing.T) {
	ctx := context.Background()
	srv := newDavServer(t)
	session := newSession(t, srv.URL)

	require.NoError(t, ensureRemoteDirs(ctx, session, "/a/b/c/file.txt"))
	for _, dir := range []string{"/a", "/a/b", "/a/b/c"} {
		exists, err := session.Exists(ctx, dir)
		require.NoError(t, err)
		assert.True(t, exists, dir)
	}

	// a fresh session does not know the collections and gets 405s back
	require.NoError(t, ensureRemoteDirs(ctx, newSession(t, srv.URL), "/a/b/other.txt"))
}

func TestEnsureRemoteDirs_Failure(t *testing.T) {
	srv := newDavServer(t)
	session := newSession(t, srv.URL)
	srv.failWith("MKCOL", "/locked", http.StatusForbidden)

	err := ensureRemoteDirs(context.Background(), session, "/locked/inner/f.txt")
	require.Error(t, err)
	assert.Zero(t, srv.count("MKCOL", "/locked/inner"), "stops at the first failure")
}

func TestUploadDownload(t *testing.T) {
	ctx := context.Background()
	srv := newDavServer(t)
	session := newSession(t, srv.URL)
	fs := afero.NewMemMapFs()
	require.NoError(t, fs.MkdirAll("/home", 0o755))

	writeLocal(t, fs, "/home/notes.md", "# notes", time.Now())
	n, err := upload(ctx, session, fs, "/home/notes.md", "/backup/notes.md")
	require.NoError(t, err)
	assert.Equal(t, int64(7), n)
	assert.Equal(t, "# notes", readRemote(t, session, "/backup/notes.md"))

	n, err = download(ctx, session, fs, "/backup/notes.md", "/home/copy.md")
	require.NoError(t, err)
	assert.Equal(t, int64(7), n)
	assert.Equal(t, "# notes", readLocal(t, fs, "/home/copy.md"))

	entries, err := afero.ReadDir(fs, "/home")
	require.NoError(t, err)
	assert.Len(t, entries, 2, "no temp files left behind")
}

func TestUpload_Directory(t *testing.T) {
	ctx := context.Background()
	srv := newDavServer(t)
	session := newSession(t, srv.URL)
	fs := afero.NewMemMapFs()
	require.NoError(t, fs.MkdirAll("/home/dir", 0o755))

	_, err := upload(ctx, session, fs, "/home/dir", "/x/y/dir")
	assert.ErrorContains(t, err, "is a directory")
	assert.Zero(t, srv.countMethod("MKCOL"), "remote untouched when the local side is unusable")

	_, err = upload(ctx, session, fs, "/home/missing.txt", "/x/y/missing.txt")
	require.Error(t, err)
	assert.Zero(t, srv.countMethod("MKCOL"))

	exists, err := session.Exists(ctx, "/x")
	require.NoError(t, err)
	assert.False(t, exists)
}

func TestDownload_FailureKeepsLocal(t *testing.T) {
	ctx := context.Background()
	srv := newDavServer(t)
	session := newSession(t, srv.URL)
	fs := afero.NewMemMapFs()
	require.NoError(t, fs.MkdirAll("/home", 0o755))
	writeLocal(t, fs, "/home/a.txt", "keep me", time.Now())

	_, err := download(ctx, session, fs, "/missing.txt", "/home/a.txt")
	require.Error(t, err)
	assert.True(t, isNotFound(err))
	assert.Equal(t, "keep me", readLocal(t, fs, "/home/a.txt"))
}

func TestCanDownload(t *testing.T) {
	fs := afero.NewMemMapFs()
	require.NoError(t, fs.MkdirAll("/home", 0o755))
	writeLocal(t, fs, "/home/file", "x", time.Now())

	assert.True(t, canDownload(fs, "/home/new.txt"))
	assert.False(t, canDownload(fs, "/nowhere/new.txt"))
	assert.False(t, canDownload(fs, "/home/file/new.txt"), "parent is a file")
}

func TestExistsLocally(t *testing.T) {
	base := afero.NewMemMapFs()
	require.NoError(t, base.MkdirAll("/home", 0o755))
	writeLocal(t, base, "/home/file", "x", time.Now())
	fs := &statErrFs{Fs: base, path: "/home/locked", err: os.ErrPermission}

	info, ok, err := existsLocally(fs, "/home/file")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, int64(1), info.Size())

	_, ok, err = existsLocally(fs, "/home/none")
	require.NoError(t, err)
	assert.False(t, ok)

	_, ok, err = existsLocally(fs, "/home/locked")
	assert.ErrorIs(t, err, os.ErrPermission)
	assert.False(t, ok)
}
