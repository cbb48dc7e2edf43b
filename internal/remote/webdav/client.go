// Package webdav implements remote.Session on top of a WebDAV endpoint.
package webdav

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"
	"github.com/imroc/req/v3"
	"github.com/openmined/davsync/internal/remote"
	"github.com/openmined/davsync/internal/version"
)

const (
	methodPropfind = "PROPFIND"
	methodMkcol    = "MKCOL"

	DefaultTimeout     = 30 * time.Second
	knownDirsCacheSize = 512
)

var (
	ErrNoURL         = errors.New("webdav: url missing")
	ErrInvalidScheme = errors.New("webdav: url scheme must be http or https")
)

// Config holds the connection parameters for a session.
type Config struct {
	URL      string
	Login    string
	Password string
	Timeout  time.Duration
}

func (c *Config) Validate() error {
	if c.URL == "" {
		return ErrNoURL
	}
	u, err := url.Parse(c.URL)
	if err != nil {
		return fmt.Errorf("webdav: parse url: %w", err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return ErrInvalidScheme
	}
	return nil
}

// Session talks to one WebDAV endpoint. Paths passed to its methods are
// resolved relative to the configured URL, so a URL with a path prefix
// (e.g. https://host/remote.php/dav/files/alice) works as a root.
type Session struct {
	client *req.Client
	// collections created or confirmed during this session
	knownDirs *lru.Cache[string, struct{}]
}

var _ remote.Session = (*Session)(nil)

func New(cfg *Config) (*Session, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = DefaultTimeout
	}

	client := req.C().
		SetBaseURL(strings.TrimRight(cfg.URL, "/")).
		SetTimeout(timeout).
		SetUserAgent(version.UserAgent())

	if cfg.Login != "" || cfg.Password != "" {
		client.SetCommonBasicAuth(cfg.Login, cfg.Password)
	}

	knownDirs, err := lru.New[string, struct{}](knownDirsCacheSize)
	if err != nil {
		return nil, fmt.Errorf("webdav: dir cache: %w", err)
	}

	return &Session{
		client:    client,
		knownDirs: knownDirs,
	}, nil
}

// Ping lists the root with depth 0.
func (s *Session) Ping(ctx context.Context) error {
	resp, err := s.propfind(ctx, "/")
	if err != nil {
		return err
	}
	if !isSuccess(resp.StatusCode) {
		return remote.NewStatusError("propfind", "/", resp.StatusCode)
	}
	return nil
}

func (s *Session) Exists(ctx context.Context, path string) (bool, error) {
	resp, err := s.propfind(ctx, path)
	if err != nil {
		return false, err
	}
	return resp.StatusCode != http.StatusNotFound, nil
}

func (s *Session) Stat(ctx context.Context, path string) (*remote.FileInfo, error) {
	resp, err := s.propfind(ctx, path)
	if err != nil {
		return nil, err
	}
	if !isSuccess(resp.StatusCode) {
		return nil, remote.NewStatusError("propfind", path, resp.StatusCode)
	}

	info, err := parseStat(resp.Bytes())
	if err != nil {
		return nil, fmt.Errorf("webdav: stat %q: %w", path, err)
	}
	info.Path = remote.CleanPath(path)
	return info, nil
}

func (s *Session) Get(ctx context.Context, path string) (io.ReadCloser, error) {
	resp, err := s.client.R().
		SetContext(ctx).
		DisableAutoReadResponse().
		Get(escapePath(path))
	if err != nil {
		return nil, fmt.Errorf("webdav: get %q: %w", path, err)
	}

	if !isSuccess(resp.StatusCode) {
		resp.Body.Close()
		return nil, remote.NewStatusError("get", path, resp.StatusCode)
	}
	return resp.Body, nil
}

func (s *Session) Put(ctx context.Context, path string, body io.Reader, size int64) error {
	// buffered so the request carries a Content-Length; some servers refuse
	// chunked PUT bodies
	buf := bytes.NewBuffer(make([]byte, 0, max(size, 0)))
	if _, err := io.Copy(buf, body); err != nil {
		return fmt.Errorf("webdav: put %q: read body: %w", path, err)
	}

	resp, err := s.client.R().
		SetContext(ctx).
		SetBodyBytes(buf.Bytes()).
		Put(escapePath(path))
	if err != nil {
		return fmt.Errorf("webdav: put %q: %w", path, err)
	}
	if !isSuccess(resp.StatusCode) {
		return remote.NewStatusError("put", path, resp.StatusCode)
	}
	return nil
}

func (s *Session) Mkcol(ctx context.Context, path string) error {
	path = remote.CleanPath(path)
	if s.knownDirs.Contains(path) {
		return remote.ErrAlreadyExists
	}

	resp, err := s.client.R().
		SetContext(ctx).
		Send(methodMkcol, escapePath(path)+"/")
	if err != nil {
		return fmt.Errorf("webdav: mkcol %q: %w", path, err)
	}

	switch {
	case isSuccess(resp.StatusCode):
		s.knownDirs.Add(path, struct{}{})
		return nil
	case resp.StatusCode == http.StatusMethodNotAllowed:
		s.knownDirs.Add(path, struct{}{})
		return remote.ErrAlreadyExists
	default:
		return remote.NewStatusError("mkcol", path, resp.StatusCode)
	}
}

func (s *Session) Close() error {
	s.knownDirs.Purge()
	return nil
}

func (s *Session) propfind(ctx context.Context, path string) (*req.Response, error) {
	resp, err := s.client.R().
		SetContext(ctx).
		SetHeader("Depth", "0").
		SetContentType(`application/xml; charset="utf-8"`).
		SetBodyString(propfindBody).
		Send(methodPropfind, escapePath(path))
	if err != nil {
		return nil, fmt.Errorf("webdav: propfind %q: %w", path, err)
	}
	slog.Debug("webdav propfind", "path", path, "status", resp.StatusCode)
	return resp, nil
}

func escapePath(p string) string {
	return (&url.URL{Path: remote.CleanPath(p)}).EscapedPath()
}

func isSuccess(code int) bool {
	return code >= 200 && code < 300
}
