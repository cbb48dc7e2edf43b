package sync

import (
	"fmt"
	"time"
)

// Pair associates one local file with one remote path. The caller
// guarantees that local and remote paths are unique across a run.
type Pair struct {
	LocalPath  string `json:"local_path" yaml:"local_path"`
	RemotePath string `json:"remote_path" yaml:"remote_path"`
}

func (p Pair) String() string {
	return fmt.Sprintf("%s <=> %s", p.LocalPath, p.RemotePath)
}

// Mode is fixed for a whole run.
type Mode int

const (
	// ModeMutate performs transfers.
	ModeMutate Mode = iota
	// ModeReportOnly classifies every pair but never transfers.
	ModeReportOnly
)

func (m Mode) String() string {
	switch m {
	case ModeMutate:
		return "sync"
	case ModeReportOnly:
		return "check"
	default:
		return fmt.Sprintf("Mode(%d)", int(m))
	}
}

// Classification is the comparator's verdict for one pair.
type Classification int

const (
	LocalNewer Classification = iota
	RemoteNewer
	InSync
	LocalOnly
	RemoteOnly
	Neither
)

func (c Classification) String() string {
	switch c {
	case LocalNewer:
		return "LocalNewer"
	case RemoteNewer:
		return "RemoteNewer"
	case InSync:
		return "InSync"
	case LocalOnly:
		return "LocalOnly"
	case RemoteOnly:
		return "RemoteOnly"
	case Neither:
		return "Neither"
	default:
		return fmt.Sprintf("Classification(%d)", int(c))
	}
}

// Outcome is reported exactly once per pair per run.
type Outcome int

const (
	Synchronized Outcome = iota
	// RemoteHasChanges means the remote is newer; a download resolves it.
	RemoteHasChanges
	// LocalHasChanges means the local file is newer; an upload resolves it.
	LocalHasChanges
	Unsynchronizable
)

func (o Outcome) String() string {
	switch o {
	case Synchronized:
		return "synchronized"
	case RemoteHasChanges:
		return "remote_has_changes"
	case LocalHasChanges:
		return "local_has_changes"
	case Unsynchronizable:
		return "unsynchronizable"
	default:
		return fmt.Sprintf("Outcome(%d)", int(o))
	}
}

// ParseOutcome is the inverse of Outcome.String.
func ParseOutcome(s string) (Outcome, error) {
	for _, o := range []Outcome{Synchronized, RemoteHasChanges, LocalHasChanges, Unsynchronizable} {
		if o.String() == s {
			return o, nil
		}
	}
	return 0, fmt.Errorf("unknown outcome %q", s)
}

func (o Outcome) MarshalText() ([]byte, error) {
	return []byte(o.String()), nil
}

// Summary counts outcomes of a finished run.
type Summary struct {
	Synchronized     int           `json:"synchronized"`
	RemoteHasChanges int           `json:"remote_has_changes"`
	LocalHasChanges  int           `json:"local_has_changes"`
	Unsynchronizable int           `json:"unsynchronizable"`
	Uploaded         int64         `json:"uploaded_bytes"`
	Downloaded       int64         `json:"downloaded_bytes"`
	Duration         time.Duration `json:"duration"`
}

func (s *Summary) add(o Outcome) {
	switch o {
	case Synchronized:
		s.Synchronized++
	case RemoteHasChanges:
		s.RemoteHasChanges++
	case LocalHasChanges:
		s.LocalHasChanges++
	case Unsynchronizable:
		s.Unsynchronizable++
	}
}

func (s *Summary) Total() int {
	return s.Synchronized + s.RemoteHasChanges + s.LocalHasChanges + s.Unsynchronizable
}
