package main

import (
	"fmt"
	"io"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/fatih/color"
	"github.com/openmined/davsync/internal/sync"
	"github.com/openmined/davsync/internal/utils"
)

var (
	okColor    = color.New(color.FgHiGreen)
	pullColor  = color.New(color.FgHiCyan)
	pushColor  = color.New(color.FgHiYellow)
	failColor  = color.New(color.FgHiRed, color.Bold)
	faintColor = color.New(color.Faint)
)

type eventPrinter interface {
	Print(mode sync.Mode, ev sync.Event) error
}

func newEventPrinter(w io.Writer, asJSON bool) eventPrinter {
	if asJSON {
		return &jsonPrinter{w: w}
	}
	return &textPrinter{w: w}
}

type textPrinter struct {
	w io.Writer
}

func outcomeLabel(o sync.Outcome) string {
	switch o {
	case sync.Synchronized:
		return okColor.Sprint("✓ synchronized")
	case sync.RemoteHasChanges:
		return pullColor.Sprint("remote → local")
	case sync.LocalHasChanges:
		return pushColor.Sprint("local → remote")
	case sync.Unsynchronizable:
		return failColor.Sprint("✗ unsynchronizable")
	default:
		return o.String()
	}
}

func (p *textPrinter) Print(mode sync.Mode, ev sync.Event) error {
	var err error
	switch ev := ev.(type) {
	case sync.PairEvent:
		_, err = fmt.Fprintf(p.w, "%-20s %s %s %s\n",
			outcomeLabel(ev.Outcome), ev.Pair.LocalPath, faintColor.Sprint("<=>"), ev.Pair.RemotePath)
	case sync.DiagnosticEvent:
		_, err = fmt.Fprintf(p.w, "%s %s\n", failColor.Sprint("ERROR:"), ev.String())
	case sync.DoneEvent:
		if ev.Err != nil {
			return nil
		}
		s := ev.Summary
		_, err = fmt.Fprintf(p.w, "\n%s: %d synchronized, %d remote newer, %d local newer, %d unsynchronizable",
			mode, s.Synchronized, s.RemoteHasChanges, s.LocalHasChanges, s.Unsynchronizable)
		if err == nil && mode == sync.ModeMutate {
			_, err = fmt.Fprintf(p.w, " (↑ %s ↓ %s)",
				humanize.Bytes(uint64(s.Uploaded)), humanize.Bytes(uint64(s.Downloaded)))
		}
		if err == nil {
			_, err = fmt.Fprintf(p.w, " in %s\n", s.Duration.Round(time.Millisecond))
		}
	}
	return err
}

type jsonPrinter struct {
	w io.Writer
}

type jsonEvent struct {
	Type       string        `json:"type"`
	Mode       string        `json:"mode,omitempty"`
	LocalPath  string        `json:"local_path,omitempty"`
	RemotePath string        `json:"remote_path,omitempty"`
	Outcome    string        `json:"outcome,omitempty"`
	Message    string        `json:"message,omitempty"`
	Error      string        `json:"error,omitempty"`
	Summary    *sync.Summary `json:"summary,omitempty"`
}

func (p *jsonPrinter) Print(mode sync.Mode, ev sync.Event) error {
	var out jsonEvent
	switch ev := ev.(type) {
	case sync.PairEvent:
		out = jsonEvent{
			Type:       "pair",
			LocalPath:  ev.Pair.LocalPath,
			RemotePath: ev.Pair.RemotePath,
			Outcome:    ev.Outcome.String(),
		}
	case sync.DiagnosticEvent:
		out = jsonEvent{Type: "diagnostic", Message: ev.Message}
		if ev.Pair != nil {
			out.LocalPath = ev.Pair.LocalPath
			out.RemotePath = ev.Pair.RemotePath
		}
		if ev.Err != nil {
			out.Error = ev.Err.Error()
		}
	case sync.DoneEvent:
		summary := ev.Summary
		out = jsonEvent{Type: "done", Mode: ev.Mode.String(), Summary: &summary}
		if ev.Err != nil {
			out.Error = ev.Err.Error()
		}
	default:
		return nil
	}
	return utils.EncodeJSON(p.w, out)
}
