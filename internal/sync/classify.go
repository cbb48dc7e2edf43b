package sync

import (
	"context"
	"fmt"
	"time"

	"github.com/openmined/davsync/internal/remote"
	"github.com/spf13/afero"
)

// classify compares one pair without changing anything. It makes a single
// depth 0 listing of the remote path.
//
// When both sides exist, the local mtime is compared against the timestamp
// recorded in history for the remote path. Without history it falls back to
// the remote's live last-modified time. The two references differ on purpose:
// the recorded value is what the local file looked like when the remote
// content was last confirmed in sync, so clock skew between hosts does not
// show up as a change.
func classify(ctx context.Context, fs afero.Fs, session remote.Session, pair Pair, history *MetadataRecord) (Classification, error) {
	localInfo, localExists, err := existsLocally(fs, pair.LocalPath)
	if err != nil {
		return Neither, fmt.Errorf("check local %s: %w", pair.LocalPath, err)
	}

	recorded, hasRecord := history.Get(pair.RemotePath)
	if localExists && !hasRecord {
		// the live listing doubles as the existence check
		info, err := session.Stat(ctx, pair.RemotePath)
		switch {
		case isNotFound(err):
			return LocalOnly, nil
		case err != nil:
			return Neither, fmt.Errorf("stat remote %s: %w", pair.RemotePath, err)
		}
		return compareModTime(localInfo.ModTime(), info.LastModified), nil
	}

	remoteExists, err := existsRemotely(ctx, session, pair.RemotePath)
	if err != nil {
		return Neither, fmt.Errorf("check remote %s: %w", pair.RemotePath, err)
	}

	switch {
	case localExists && remoteExists:
		return compareModTime(localInfo.ModTime(), recorded), nil
	case localExists:
		return LocalOnly, nil
	case remoteExists:
		return RemoteOnly, nil
	default:
		return Neither, nil
	}
}

func compareModTime(local, reference time.Time) Classification {
	switch local.Compare(reference) {
	case 1:
		return LocalNewer
	case -1:
		return RemoteNewer
	default:
		return InSync
	}
}

type action int

const (
	actionNone action = iota
	actionUpload
	actionDownload
)

func (a action) String() string {
	switch a {
	case actionUpload:
		return "upload"
	case actionDownload:
		return "download"
	default:
		return "none"
	}
}

// decide maps a classification and mode onto what to do and what to report.
// For ModeMutate with an action, the returned outcome applies once the action
// succeeded. downloadable only matters for RemoteOnly.
func decide(c Classification, mode Mode, downloadable bool) (action, Outcome, error) {
	mutate := mode == ModeMutate

	switch c {
	case LocalNewer, LocalOnly:
		if mutate {
			return actionUpload, Synchronized, nil
		}
		return actionNone, LocalHasChanges, nil
	case RemoteNewer:
		if mutate {
			return actionDownload, Synchronized, nil
		}
		return actionNone, RemoteHasChanges, nil
	case InSync:
		return actionNone, Synchronized, nil
	case RemoteOnly:
		if !downloadable {
			return actionNone, Unsynchronizable, nil
		}
		if mutate {
			return actionDownload, Synchronized, nil
		}
		return actionNone, RemoteHasChanges, nil
	case Neither:
		return actionNone, Unsynchronizable, nil
	default:
		return actionNone, Unsynchronizable, fmt.Errorf("unknown classification %v", c)
	}
}
