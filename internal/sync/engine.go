package sync

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	mapset "github.com/deckarep/golang-set/v2"
	"github.com/dustin/go-humanize"
	"github.com/openmined/davsync/internal/remote"
	"github.com/spf13/afero"
)

// Engine runs the pair synchronization against one remote session.
// A session is owned by one run at a time; closing it is the caller's job.
type Engine struct {
	session  remote.Session
	fs       afero.Fs
	metadata *MetadataStore
	logger   *slog.Logger
}

type EngineOption func(*engineOptions)

type engineOptions struct {
	fs           afero.Fs
	metadataPath string
	logger       *slog.Logger
}

// WithFs sets the local filesystem. Defaults to the OS filesystem.
func WithFs(fs afero.Fs) EngineOption {
	return func(o *engineOptions) {
		o.fs = fs
	}
}

func WithMetadataPath(p string) EngineOption {
	return func(o *engineOptions) {
		o.metadataPath = p
	}
}

func WithLogger(logger *slog.Logger) EngineOption {
	return func(o *engineOptions) {
		o.logger = logger
	}
}

func NewEngine(session remote.Session, opts ...EngineOption) *Engine {
	o := &engineOptions{
		fs:           afero.NewOsFs(),
		metadataPath: DefaultMetadataPath,
		logger:       slog.Default(),
	}
	for _, opt := range opts {
		opt(o)
	}

	return &Engine{
		session:  session,
		fs:       o.fs,
		metadata: NewMetadataStore(session, o.metadataPath),
		logger:   o.logger,
	}
}

// Run processes pairs sequentially and reports on the returned channel:
// one PairEvent per pair in input order, any number of DiagnosticEvents, and
// a final DoneEvent after which the channel is closed.
//
// Cancelling ctx does not stop a run that has started. Values and deadlines
// of ctx still apply to each request.
func (e *Engine) Run(ctx context.Context, mode Mode, pairs []Pair) <-chan Event {
	events := make(chan Event, EventBufferSize)
	ctx = context.WithoutCancel(ctx)

	go func() {
		defer close(events)
		e.run(ctx, mode, pairs, events)
	}()

	return events
}

func (e *Engine) run(ctx context.Context, mode Mode, pairs []Pair, events chan<- Event) {
	start := time.Now()
	e.logger.Info("sync run start", "mode", mode, "pairs", len(pairs))

	if err := e.session.Ping(ctx); err != nil {
		e.logger.Error("remote unreachable", "error", err)
		events <- DiagnosticEvent{Message: "can't open connection", Err: err}
		events <- DoneEvent{Mode: mode, Err: fmt.Errorf("can't open connection: %w", err)}
		return
	}

	history, err := e.metadata.Load(ctx)
	if err != nil {
		e.logger.Debug("sync metadata unavailable, continuing without history", "path", e.metadata.Path(), "error", err)
		history = NewMetadataRecord()
	}

	var summary Summary
	synced := mapset.NewThreadUnsafeSet[Pair]()

	for _, pair := range pairs {
		outcome, n := e.syncPair(ctx, mode, pair, history, events)
		switch n.direction {
		case actionUpload:
			summary.Uploaded += n.bytes
		case actionDownload:
			summary.Downloaded += n.bytes
		}
		if outcome == Synchronized {
			synced.Add(pair)
		}
		summary.add(outcome)
		events <- PairEvent{Pair: pair, Outcome: outcome}
	}

	if mode == ModeMutate {
		if err := e.saveHistory(ctx, pairs, synced, history); err != nil {
			e.logger.Error("failed to save sync metadata", "error", err)
			events <- DiagnosticEvent{Message: "failed to update sync metadata", Err: err}
		}
	}

	summary.Duration = time.Since(start)
	e.logger.Info("sync run done",
		"mode", mode,
		"synchronized", summary.Synchronized,
		"unsynchronizable", summary.Unsynchronizable,
		"uploaded", humanize.Bytes(uint64(summary.Uploaded)),
		"downloaded", humanize.Bytes(uint64(summary.Downloaded)),
		"took", summary.Duration,
	)
	events <- DoneEvent{Mode: mode, Summary: summary}
}

type transferred struct {
	direction action
	bytes     int64
}

func (e *Engine) syncPair(ctx context.Context, mode Mode, pair Pair, history *MetadataRecord, events chan<- Event) (Outcome, transferred) {
	fail := func(msg string, err error) (Outcome, transferred) {
		e.logger.Warn(msg, "pair", pair.LocalPath, "remote", pair.RemotePath, "error", err)
		p := pair
		events <- DiagnosticEvent{Pair: &p, Message: msg, Err: err}
		return Unsynchronizable, transferred{}
	}

	class, err := classify(ctx, e.fs, e.session, pair, history)
	if err != nil {
		return fail("failed to compare", err)
	}

	downloadable := class != RemoteOnly || canDownload(e.fs, pair.LocalPath)
	act, outcome, err := decide(class, mode, downloadable)
	if err != nil {
		return fail("failed to decide", err)
	}

	e.logger.Debug("pair classified", "pair", pair.LocalPath, "remote", pair.RemotePath, "class", class, "action", act)

	var n int64
	switch act {
	case actionNone:
		return outcome, transferred{}
	case actionUpload:
		n, err = upload(ctx, e.session, e.fs, pair.LocalPath, pair.RemotePath)
		if err != nil {
			return fail("failed to upload", err)
		}
	case actionDownload:
		n, err = download(ctx, e.session, e.fs, pair.RemotePath, pair.LocalPath)
		if err != nil {
			return fail("failed to download", err)
		}
	}

	e.logger.Info("transferred", "direction", act, "pair", pair.LocalPath, "remote", pair.RemotePath, "size", humanize.Bytes(uint64(n)))
	return outcome, transferred{direction: act, bytes: n}
}

// saveHistory records the current local mtime of every synchronized pair on
// top of the snapshot loaded at run start, then uploads it.
func (e *Engine) saveHistory(ctx context.Context, pairs []Pair, synced mapset.Set[Pair], history *MetadataRecord) error {
	for _, pair := range pairs {
		if !synced.Contains(pair) {
			continue
		}
		info, err := e.fs.Stat(pair.LocalPath)
		if err != nil {
			e.logger.Warn("failed to stat synchronized file", "pair", pair.LocalPath, "error", err)
			continue
		}
		history.Set(pair.RemotePath, info.ModTime())
	}
	return e.metadata.Save(ctx, history)
}
