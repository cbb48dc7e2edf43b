// Package pairstore persists the configured pairs and the endpoint
// credentials in a bbolt file under the data directory.
package pairstore

import (
	"bytes"
	"errors"
	"fmt"
	"path"
	"strings"
	"time"

	mapset "github.com/deckarep/golang-set/v2"
	"github.com/openmined/davsync/internal/sync"
	"github.com/openmined/davsync/internal/utils"
	"github.com/spf13/afero"
	"go.etcd.io/bbolt"
)

var (
	bucketPairs = []byte("pairs")
	bucketAuth  = []byte("auth")
)

var (
	ErrEmptyPath          = errors.New("empty path")
	ErrLocalNotFound      = errors.New("local path not found")
	ErrInvalidRemotePath  = errors.New("remote path is invalid")
	ErrLocalPathInUse     = errors.New("local path already in use")
	ErrRemotePathInUse    = errors.New("remote path already in use")
	ErrPairNotFound       = errors.New("pair not found")
	ErrPairExists         = errors.New("pair already exists")
	ErrCredentialsMissing = errors.New("no stored credentials")
)

type Store struct {
	db *bbolt.DB
	fs afero.Fs
}

type Option func(*Store)

// WithFs sets the filesystem used to check that local paths exist.
func WithFs(fs afero.Fs) Option {
	return func(s *Store) {
		s.fs = fs
	}
}

// Open opens or creates the store. A second process holding the file makes
// Open fail after a short wait.
func Open(dbPath string, opts ...Option) (*Store, error) {
	if err := utils.EnsureParent(dbPath); err != nil {
		return nil, fmt.Errorf("failed to create store directory: %w", err)
	}

	db, err := bbolt.Open(dbPath, 0o600, &bbolt.Options{Timeout: 2 * time.Second})
	if err != nil {
		return nil, fmt.Errorf("failed to open pair store: %w", err)
	}

	err = db.Update(func(tx *bbolt.Tx) error {
		for _, name := range [][]byte{bucketPairs, bucketAuth} {
			if _, err := tx.CreateBucketIfNotExists(name); err != nil {
				return fmt.Errorf("failed to create %s bucket: %w", name, err)
			}
		}
		return nil
	})
	if err != nil {
		db.Close()
		return nil, err
	}

	s := &Store{db: db, fs: afero.NewOsFs()}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

// NormalizeRemote turns user input into an absolute, clean unix path.
func NormalizeRemote(p string) (string, error) {
	p = strings.TrimSpace(p)
	if p == "" {
		return "", ErrEmptyPath
	}
	if strings.ContainsRune(p, 0) || strings.Contains(p, `\`) {
		return "", ErrInvalidRemotePath
	}
	clean := path.Clean("/" + p)
	if clean == "/" {
		return "", fmt.Errorf("%w: must name a file", ErrInvalidRemotePath)
	}
	return clean, nil
}

// normalize validates one pair the way it will be stored: the local path must
// exist and becomes absolute, the remote path is rooted and cleaned.
func (s *Store) normalize(local, remote string) (sync.Pair, error) {
	if strings.TrimSpace(local) == "" || strings.TrimSpace(remote) == "" {
		return sync.Pair{}, ErrEmptyPath
	}

	abs, err := utils.ResolvePath(local)
	if err != nil {
		return sync.Pair{}, err
	}
	if _, err := s.fs.Stat(abs); err != nil {
		return sync.Pair{}, fmt.Errorf("%w: %s", ErrLocalNotFound, abs)
	}

	remotePath, err := NormalizeRemote(remote)
	if err != nil {
		return sync.Pair{}, err
	}
	return sync.Pair{LocalPath: abs, RemotePath: remotePath}, nil
}

// insert enforces uniqueness in both directions.
func insert(b *bbolt.Bucket, pair sync.Pair) error {
	if b.Get([]byte(pair.LocalPath)) != nil {
		return fmt.Errorf("%w: %s", ErrLocalPathInUse, pair.LocalPath)
	}

	remote := []byte(pair.RemotePath)
	err := b.ForEach(func(_, v []byte) error {
		if bytes.Equal(v, remote) {
			return fmt.Errorf("%w: %s", ErrRemotePathInUse, pair.RemotePath)
		}
		return nil
	})
	if err != nil {
		return err
	}

	return b.Put([]byte(pair.LocalPath), remote)
}

// Add validates and stores a new pair.
func (s *Store) Add(local, remote string) (sync.Pair, error) {
	pair, err := s.normalize(local, remote)
	if err != nil {
		return sync.Pair{}, err
	}

	err = s.db.Update(func(tx *bbolt.Tx) error {
		return insert(tx.Bucket(bucketPairs), pair)
	})
	if err != nil {
		return sync.Pair{}, err
	}
	return pair, nil
}

// Edit replaces the pair keyed by oldLocal. Removal and insertion happen in
// one transaction, so a rejected edit leaves the old pair in place.
func (s *Store) Edit(oldLocal, local, remote string) (sync.Pair, error) {
	oldKey, err := utils.ResolvePath(oldLocal)
	if err != nil {
		return sync.Pair{}, err
	}
	pair, err := s.normalize(local, remote)
	if err != nil {
		return sync.Pair{}, err
	}

	err = s.db.Update(func(tx *bbolt.Tx) error {
		b := tx.Bucket(bucketPairs)
		if b.Get([]byte(oldKey)) == nil {
			return fmt.Errorf("%w: %s", ErrPairNotFound, oldKey)
		}
		if err := b.Delete([]byte(oldKey)); err != nil {
			return err
		}
		return insert(b, pair)
	})
	if err != nil {
		return sync.Pair{}, err
	}
	return pair, nil
}

func (s *Store) Remove(local string) error {
	key, err := utils.ResolvePath(local)
	if err != nil {
		return err
	}

	return s.db.Update(func(tx *bbolt.Tx) error {
		b := tx.Bucket(bucketPairs)
		if b.Get([]byte(key)) == nil {
			return fmt.Errorf("%w: %s", ErrPairNotFound, key)
		}
		return b.Delete([]byte(key))
	})
}

// List returns all pairs ordered by local path.
func (s *Store) List() ([]sync.Pair, error) {
	var pairs []sync.Pair
	err := s.db.View(func(tx *bbolt.Tx) error {
		return tx.Bucket(bucketPairs).ForEach(func(k, v []byte) error {
			pairs = append(pairs, sync.Pair{LocalPath: string(k), RemotePath: string(v)})
			return nil
		})
	})
	return pairs, err
}

// Import adds all pairs in one transaction. Exact duplicates of stored pairs
// are skipped; any other conflict rejects the whole import.
func (s *Store) Import(pairs []sync.Pair) (int, error) {
	seen := mapset.NewThreadUnsafeSet[sync.Pair]()
	normalized := make([]sync.Pair, 0, len(pairs))
	for _, p := range pairs {
		pair, err := s.normalize(p.LocalPath, p.RemotePath)
		if err != nil {
			return 0, fmt.Errorf("pair %s: %w", p, err)
		}
		if seen.Add(pair) {
			normalized = append(normalized, pair)
		}
	}

	added := 0
	err := s.db.Update(func(tx *bbolt.Tx) error {
		b := tx.Bucket(bucketPairs)
		for _, pair := range normalized {
			if string(b.Get([]byte(pair.LocalPath))) == pair.RemotePath {
				continue
			}
			if err := insert(b, pair); err != nil {
				return err
			}
			added++
		}
		return nil
	})
	if err != nil {
		return 0, err
	}
	return added, nil
}
