// Package utils holds small helpers shared by the davsync commands and stores.
package utils

import (
	"bytes"
	"io"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"
)

// LogInterceptor prefixes every complete line written through it with a
// sequence number and a timestamp before passing it to target. A trailing
// partial line is held until the next newline or Close.
type LogInterceptor struct {
	target  io.Writer
	seq     atomic.Uint64
	mu      sync.Mutex
	pending bytes.Buffer
	now     func() time.Time
}

func NewLogInterceptor(target io.Writer) *LogInterceptor {
	return &LogInterceptor{target: target, now: time.Now}
}

func (i *LogInterceptor) writeLine(line []byte) error {
	prefix := slog.Uint64("line", i.seq.Add(1)).String() + " " +
		slog.String("time", i.now().Format(time.RFC3339)).String() + " "

	out := make([]byte, 0, len(prefix)+len(line)+1)
	out = append(out, prefix...)
	out = append(out, bytes.TrimRight(line, "\r")...)
	out = append(out, '\n')
	_, err := i.target.Write(out)
	return err
}

// Write always reports len(p) on success; the prefixes are not counted.
func (i *LogInterceptor) Write(p []byte) (int, error) {
	i.mu.Lock()
	defer i.mu.Unlock()

	i.pending.Write(p)
	for {
		idx := bytes.IndexByte(i.pending.Bytes(), '\n')
		if idx < 0 {
			break
		}
		line := i.pending.Next(idx + 1)
		if err := i.writeLine(line[:idx]); err != nil {
			return 0, err
		}
	}
	return len(p), nil
}

// Close flushes a partial line, if any. It does not close target.
func (i *LogInterceptor) Close() error {
	i.mu.Lock()
	defer i.mu.Unlock()

	if i.pending.Len() == 0 {
		return nil
	}
	line := bytes.Clone(i.pending.Bytes())
	i.pending.Reset()
	return i.writeLine(line)
}
