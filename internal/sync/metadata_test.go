package sync

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/ugorji/go/codec"
)

func TestMetadataRecord_KeysAreCleaned(t *testing.T) {
	r := NewMetadataRecord()
	ts := time.Date(2024, 1, 2, 3, 4, 5, 6, time.FixedZone("CET", 3600))
	r.Set("docs//a.txt", ts)

	got, ok := r.Get("/docs/a.txt")
	require.True(t, ok)
	assert.True(t, got.Equal(ts))
	assert.Equal(t, time.UTC, got.Location())
}

func TestMetadataStore_SaveLoad(t *testing.T) {
	ctx := context.Background()
	srv := newDavServer(t)
	session := newSession(t, srv.URL)
	store := NewMetadataStore(session, "/state/meta")
	assert.Equal(t, "/state/meta", store.Path())

	empty, err := store.Load(ctx)
	require.NoError(t, err)
	assert.Zero(t, empty.Len())

	ts := time.Date(2024, 6, 1, 10, 0, 0, 123456789, time.UTC)
	record := NewMetadataRecord()
	record.Set("/a.txt", ts)
	require.NoError(t, store.Save(ctx, record))

	loaded, err := store.Load(ctx)
	require.NoError(t, err)
	got, ok := loaded.Get("/a.txt")
	require.True(t, ok)
	assert.True(t, ts.Equal(got), "nanoseconds survive the round trip")
	assert.NotEmpty(t, loaded.Writer)
	assert.False(t, loaded.Written.IsZero())
}

func TestMetadataStore_LoadCorrupt(t *testing.T) {
	srv := newDavServer(t)
	session := newSession(t, srv.URL)
	putRemote(t, session, DefaultMetadataPath, "\xff\x00junk")

	_, err := NewMetadataStore(session, "").Load(context.Background())
	assert.Error(t, err)
}

func TestUnmarshalMetadata_RejectsOtherVersions(t *testing.T) {
	var data []byte
	blob := metadataBlob{Version: 9, Entries: map[string]int64{"/a": 1}}
	require.NoError(t, codec.NewEncoderBytes(&data, &cborHandle).Encode(&blob))

	_, err := unmarshalMetadata(data)
	assert.ErrorContains(t, err, "unsupported metadata version")
}
