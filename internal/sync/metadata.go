package sync

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"time"

	"github.com/denisbrodbeck/machineid"
	"github.com/openmined/davsync/internal/remote"
	"github.com/openmined/davsync/internal/version"
	"github.com/ugorji/go/codec"
)

const (
	DefaultMetadataPath = "/.syncmetadata"
	metadataVersion     = 1
)

var cborHandle codec.CborHandle

// metadataBlob is the wire form of MetadataRecord. Timestamps are unix
// nanoseconds so a recorded local mtime compares equal after a round trip.
type metadataBlob struct {
	Version uint8            `codec:"v"`
	Writer  string           `codec:"writer"`
	Written int64            `codec:"written"`
	Entries map[string]int64 `codec:"entries"`
}

// MetadataRecord maps a remote path to the local modification time observed
// when that path was last confirmed synchronized.
type MetadataRecord struct {
	Writer  string
	Written time.Time
	entries map[string]time.Time
}

func NewMetadataRecord() *MetadataRecord {
	return &MetadataRecord{entries: make(map[string]time.Time)}
}

func (r *MetadataRecord) Get(remotePath string) (time.Time, bool) {
	t, ok := r.entries[remote.CleanPath(remotePath)]
	return t, ok
}

func (r *MetadataRecord) Set(remotePath string, t time.Time) {
	r.entries[remote.CleanPath(remotePath)] = t.UTC()
}

func (r *MetadataRecord) Len() int {
	return len(r.entries)
}

func (r *MetadataRecord) marshal() ([]byte, error) {
	blob := metadataBlob{
		Version: metadataVersion,
		Writer:  r.Writer,
		Written: r.Written.UnixNano(),
		Entries: make(map[string]int64, len(r.entries)),
	}
	for p, t := range r.entries {
		blob.Entries[p] = t.UnixNano()
	}

	var buf []byte
	if err := codec.NewEncoderBytes(&buf, &cborHandle).Encode(&blob); err != nil {
		return nil, err
	}
	return buf, nil
}

func unmarshalMetadata(data []byte) (*MetadataRecord, error) {
	var blob metadataBlob
	if err := codec.NewDecoderBytes(data, &cborHandle).Decode(&blob); err != nil {
		return nil, err
	}
	if blob.Version != metadataVersion {
		return nil, fmt.Errorf("unsupported metadata version %d", blob.Version)
	}

	r := NewMetadataRecord()
	r.Writer = blob.Writer
	r.Written = time.Unix(0, blob.Written).UTC()
	for p, ns := range blob.Entries {
		r.entries[p] = time.Unix(0, ns).UTC()
	}
	return r, nil
}

// MetadataStore reads and writes the metadata blob at a fixed remote path.
type MetadataStore struct {
	session remote.Session
	path    string
	writer  string
}

func NewMetadataStore(session remote.Session, path string) *MetadataStore {
	if path == "" {
		path = DefaultMetadataPath
	}
	return &MetadataStore{
		session: session,
		path:    remote.CleanPath(path),
		writer:  writerID(),
	}
}

func (m *MetadataStore) Path() string {
	return m.path
}

// Load fetches the blob. A missing blob is an empty record, not an error.
func (m *MetadataStore) Load(ctx context.Context) (*MetadataRecord, error) {
	rc, err := m.session.Get(ctx, m.path)
	if err != nil {
		if isNotFound(err) {
			return NewMetadataRecord(), nil
		}
		return nil, fmt.Errorf("get sync metadata: %w", err)
	}
	defer rc.Close()

	data, err := io.ReadAll(rc)
	if err != nil {
		return nil, fmt.Errorf("read sync metadata: %w", err)
	}

	record, err := unmarshalMetadata(data)
	if err != nil {
		return nil, fmt.Errorf("decode sync metadata: %w", err)
	}
	return record, nil
}

// Save stamps the record with this host and uploads it whole.
func (m *MetadataStore) Save(ctx context.Context, record *MetadataRecord) error {
	record.Writer = m.writer
	record.Written = time.Now().UTC()

	data, err := record.marshal()
	if err != nil {
		return fmt.Errorf("encode sync metadata: %w", err)
	}

	if err := ensureRemoteDirs(ctx, m.session, m.path); err != nil {
		return fmt.Errorf("put sync metadata: %w", err)
	}
	if err := m.session.Put(ctx, m.path, bytes.NewReader(data), int64(len(data))); err != nil {
		return fmt.Errorf("put sync metadata: %w", err)
	}

	slog.Debug("sync metadata saved", "path", m.path, "entries", record.Len())
	return nil
}

func writerID() string {
	if id, err := machineid.ProtectedID(version.AppName); err == nil {
		return id
	}
	host, _ := os.Hostname()
	return host
}
