package sync

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCompareModTime(t *testing.T) {
	ref := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)

	assert.Equal(t, LocalNewer, compareModTime(ref.Add(time.Nanosecond), ref))
	assert.Equal(t, RemoteNewer, compareModTime(ref.Add(-time.Second), ref))
	assert.Equal(t, InSync, compareModTime(ref.In(time.FixedZone("x", 3600)), ref))
}

func TestDecide(t *testing.T) {
	tests := []struct {
		class        Classification
		mode         Mode
		downloadable bool
		action       action
		outcome      Outcome
	}{
		{LocalNewer, ModeMutate, true, actionUpload, Synchronized},
		{LocalNewer, ModeReportOnly, true, actionNone, LocalHasChanges},
		{RemoteNewer, ModeMutate, true, actionDownload, Synchronized},
		{RemoteNewer, ModeReportOnly, true, actionNone, RemoteHasChanges},
		{InSync, ModeMutate, true, actionNone, Synchronized},
		{InSync, ModeReportOnly, true, actionNone, Synchronized},
		{LocalOnly, ModeMutate, true, actionUpload, Synchronized},
		{LocalOnly, ModeReportOnly, true, actionNone, LocalHasChanges},
		{RemoteOnly, ModeMutate, true, actionDownload, Synchronized},
		{RemoteOnly, ModeReportOnly, true, actionNone, RemoteHasChanges},
		{RemoteOnly, ModeMutate, false, actionNone, Unsynchronizable},
		{RemoteOnly, ModeReportOnly, false, actionNone, Unsynchronizable},
		{Neither, ModeMutate, true, actionNone, Unsynchronizable},
		{Neither, ModeReportOnly, true, actionNone, Unsynchronizable},
	}

	for _, tt := range tests {
		t.Run(tt.class.String()+"/"+tt.mode.String(), func(t *testing.T) {
			act, outcome, err := decide(tt.class, tt.mode, tt.downloadable)
			require.NoError(t, err)
			assert.Equal(t, tt.action, act)
			assert.Equal(t, tt.outcome, outcome)
		})
	}

	_, outcome, err := decide(Classification(42), ModeMutate, true)
	assert.Error(t, err)
	assert.Equal(t, Unsynchronizable, outcome)
}

func TestClassify(t *testing.T) {
	ctx := context.Background()
	srv := newDavServer(t)
	session := newSession(t, srv.URL)
	fs := afero.NewMemMapFs()
	require.NoError(t, fs.MkdirAll("/data", 0o755))

	putRemote(t, session, "/r/both.txt", "remote")
	info, err := session.Stat(ctx, "/r/both.txt")
	require.NoError(t, err)
	live := info.LastModified

	putRemote(t, session, "/r/remote-only.txt", "remote")
	writeLocal(t, fs, "/data/local-only.txt", "local", live)

	empty := NewMetadataRecord()

	t.Run("presence", func(t *testing.T) {
		c, err := classify(ctx, fs, session, Pair{"/data/local-only.txt", "/r/local-only.txt"}, empty)
		require.NoError(t, err)
		assert.Equal(t, LocalOnly, c)

		c, err = classify(ctx, fs, session, Pair{"/data/missing.txt", "/r/remote-only.txt"}, empty)
		require.NoError(t, err)
		assert.Equal(t, RemoteOnly, c)

		c, err = classify(ctx, fs, session, Pair{"/data/missing.txt", "/r/missing.txt"}, empty)
		require.NoError(t, err)
		assert.Equal(t, Neither, c)

		srv.resetCounts()
		c, err = classify(ctx, fs, session, Pair{"/data/local-only.txt", "/r/local-only.txt"}, empty)
		require.NoError(t, err)
		assert.Equal(t, LocalOnly, c)
		assert.Equal(t, 1, srv.count("PROPFIND", "/r/local-only.txt"))
	})

	t.Run("local stat error", func(t *testing.T) {
		locked := &statErrFs{Fs: fs, path: "/data/locked.txt", err: os.ErrPermission}
		srv.resetCounts()
		_, err := classify(ctx, locked, session, Pair{"/data/locked.txt", "/r/both.txt"}, empty)
		assert.ErrorIs(t, err, os.ErrPermission)
		assert.Zero(t, srv.countMethod("PROPFIND"), "nothing asked of the remote")
	})

	t.Run("live reference", func(t *testing.T) {
		pair := Pair{"/data/both.txt", "/r/both.txt"}

		writeLocal(t, fs, pair.LocalPath, "local", live)
		srv.resetCounts()
		c, err := classify(ctx, fs, session, pair, empty)
		require.NoError(t, err)
		assert.Equal(t, InSync, c)
		assert.Equal(t, 1, srv.count("PROPFIND", pair.RemotePath), "one listing answers presence and timestamp")

		writeLocal(t, fs, pair.LocalPath, "local", live.Add(time.Hour))
		c, err = classify(ctx, fs, session, pair, empty)
		require.NoError(t, err)
		assert.Equal(t, LocalNewer, c)

		writeLocal(t, fs, pair.LocalPath, "local", live.Add(-time.Hour))
		c, err = classify(ctx, fs, session, pair, empty)
		require.NoError(t, err)
		assert.Equal(t, RemoteNewer, c)
	})

	t.Run("recorded reference wins", func(t *testing.T) {
		pair := Pair{"/data/both.txt", "/r/both.txt"}
		recorded := live.Add(-24 * time.Hour)
		writeLocal(t, fs, pair.LocalPath, "local", recorded)

		history := NewMetadataRecord()
		history.Set(pair.RemotePath, recorded)

		srv.resetCounts()
		c, err := classify(ctx, fs, session, pair, history)
		require.NoError(t, err)
		assert.Equal(t, InSync, c)
		assert.Equal(t, 1, srv.count("PROPFIND", pair.RemotePath), "only the existence probe")
	})
}
