package sync

import "fmt"

// EventBufferSize is the capacity of the channel returned by Engine.Run.
const EventBufferSize = 100

// Event is one of PairEvent, DiagnosticEvent or DoneEvent.
type Event interface {
	event()
}

// PairEvent carries the outcome of one pair, in input order.
type PairEvent struct {
	Pair    Pair
	Outcome Outcome
}

// DiagnosticEvent is a human readable problem report. Pair is nil for
// run level problems (connectivity, metadata upload).
type DiagnosticEvent struct {
	Pair    *Pair
	Message string
	Err     error
}

func (d DiagnosticEvent) String() string {
	msg := d.Message
	if d.Err != nil {
		msg = fmt.Sprintf("%s: %v", msg, d.Err)
	}
	if d.Pair != nil {
		return fmt.Sprintf("%s: %s", d.Pair.LocalPath, msg)
	}
	return msg
}

// DoneEvent is always the last event of a run. Err is set only when the
// run could not start.
type DoneEvent struct {
	Mode    Mode
	Summary Summary
	Err     error
}

func (PairEvent) event()       {}
func (DiagnosticEvent) event() {}
func (DoneEvent) event()       {}
