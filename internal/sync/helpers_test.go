package sync

import (
	"bytes"
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	gosync "sync"
	"testing"
	"time"

	"github.com/openmined/davsync/internal/remote"
	davclient "github.com/openmined/davsync/internal/remote/webdav"
	"github.com/spf13/afero"
	"github.com/stretchr/testify/require"
	"golang.org/x/net/webdav"
)

// statErrFs fails Stat for one path with err.
type statErrFs struct {
	afero.Fs
	path string
	err  error
}

func (f *statErrFs) Stat(name string) (os.FileInfo, error) {
	if name == f.path {
		return nil, &os.PathError{Op: "stat", Path: name, Err: f.err}
	}
	return f.Fs.Stat(name)
}

// davServer is an in-memory WebDAV endpoint that counts requests per
// method and path and can fail selected requests.
type davServer struct {
	*httptest.Server

	mu     gosync.Mutex
	counts map[string]int
	fail   map[string]int
}

func newDavServer(t *testing.T) *davServer {
	t.Helper()

	dav := &webdav.Handler{
		FileSystem: webdav.NewMemFS(),
		LockSystem: webdav.NewMemLS(),
	}

	srv := &davServer{
		counts: make(map[string]int),
		fail:   make(map[string]int),
	}
	srv.Server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		key := r.Method + " " + remote.CleanPath(r.URL.Path)
		srv.mu.Lock()
		srv.counts[key]++
		code := srv.fail[key]
		srv.mu.Unlock()

		if code != 0 {
			w.WriteHeader(code)
			return
		}
		dav.ServeHTTP(w, r)
	}))
	t.Cleanup(srv.Close)
	return srv
}

func (s *davServer) count(method, p string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.counts[method+" "+p]
}

// countMethod counts requests of one method, ignoring the metadata blob.
func (s *davServer) countMethod(method string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for key, c := range s.counts {
		if key == method+" "+DefaultMetadataPath {
			continue
		}
		if len(key) > len(method) && key[:len(method)+1] == method+" " {
			n += c
		}
	}
	return n
}

func (s *davServer) failWith(method, p string, code int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.fail[method+" "+p] = code
}

func (s *davServer) resetCounts() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.counts = make(map[string]int)
}

func newSession(t *testing.T, url string) *davclient.Session {
	t.Helper()
	s, err := davclient.New(&davclient.Config{URL: url, Timeout: 5 * time.Second})
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func putRemote(t *testing.T, s remote.Session, p, content string) {
	t.Helper()
	ctx := context.Background()
	require.NoError(t, ensureRemoteDirs(ctx, s, p))
	require.NoError(t, s.Put(ctx, p, bytes.NewReader([]byte(content)), int64(len(content))))
}

func readRemote(t *testing.T, s remote.Session, p string) string {
	t.Helper()
	rc, err := s.Get(context.Background(), p)
	require.NoError(t, err)
	defer rc.Close()
	data, err := io.ReadAll(rc)
	require.NoError(t, err)
	return string(data)
}

func writeLocal(t *testing.T, fs afero.Fs, p, content string, mtime time.Time) {
	t.Helper()
	require.NoError(t, afero.WriteFile(fs, p, []byte(content), 0o644))
	require.NoError(t, fs.Chtimes(p, mtime, mtime))
}

func readLocal(t *testing.T, fs afero.Fs, p string) string {
	t.Helper()
	data, err := afero.ReadFile(fs, p)
	require.NoError(t, err)
	return string(data)
}

type runResult struct {
	outcomes    []Outcome
	pairs       []Pair
	diagnostics []DiagnosticEvent
	done        []DoneEvent
}

func collect(t *testing.T, events <-chan Event) runResult {
	t.Helper()
	var res runResult
	timeout := time.After(10 * time.Second)
	for {
		select {
		case ev, ok := <-events:
			if !ok {
				return res
			}
			switch ev := ev.(type) {
			case PairEvent:
				res.pairs = append(res.pairs, ev.Pair)
				res.outcomes = append(res.outcomes, ev.Outcome)
			case DiagnosticEvent:
				res.diagnostics = append(res.diagnostics, ev)
			case DoneEvent:
				require.Empty(t, res.done, "event after DoneEvent")
				res.done = append(res.done, ev)
			}
		case <-timeout:
			t.Fatal("run did not finish")
		}
	}
}
