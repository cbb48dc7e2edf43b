// Package selection narrows the stored pairs down to the ones a run should
// process.
package selection

import (
	"fmt"
	"path/filepath"

	"github.com/bmatcuk/doublestar/v4"
	"github.com/openmined/davsync/internal/sync"
	gitignore "github.com/sabhiram/go-gitignore"
)

// files no run should ever touch
var defaultIgnoreLines = []string{
	".DS_Store",
	"Thumbs.db",
	".*.tmp.*",
}

type Selector struct {
	ignore *gitignore.GitIgnore
	only   []string
}

// New compiles gitignore style ignore lines, matched against local paths,
// and doublestar globs that keep a pair when either of its paths matches.
// An empty only list keeps everything not ignored.
func New(ignoreLines, only []string) (*Selector, error) {
	for _, pattern := range only {
		if !doublestar.ValidatePattern(pattern) {
			return nil, fmt.Errorf("invalid pattern %q", pattern)
		}
	}

	lines := append(append([]string{}, defaultIgnoreLines...), ignoreLines...)
	return &Selector{
		ignore: gitignore.CompileIgnoreLines(lines...),
		only:   only,
	}, nil
}

func (s *Selector) Ignored(p sync.Pair) bool {
	return s.ignore.MatchesPath(filepath.ToSlash(p.LocalPath))
}

func (s *Selector) Wanted(p sync.Pair) bool {
	if len(s.only) == 0 {
		return true
	}
	for _, pattern := range s.only {
		if ok, _ := doublestar.Match(pattern, p.RemotePath); ok {
			return true
		}
		if ok, _ := doublestar.PathMatch(pattern, p.LocalPath); ok {
			return true
		}
	}
	return false
}

// Filter keeps the input order. skipped holds the pairs dropped by ignore
// rules; pairs not matched by only are dropped silently.
func (s *Selector) Filter(pairs []sync.Pair) (selected, skipped []sync.Pair) {
	for _, p := range pairs {
		if !s.Wanted(p) {
			continue
		}
		if s.Ignored(p) {
			skipped = append(skipped, p)
			continue
		}
		selected = append(selected, p)
	}
	return selected, skipped
}
