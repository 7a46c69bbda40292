// SPDX-License-Identifier: MPL-2.0

// Package corpus enumerates the data files of a corpus tree.
//
// Selection combines three inputs: reserved directory names (metadata
// subtrees that are never scanned, so the registry cannot index itself),
// doublestar include patterns, and doublestar exclude patterns. All patterns
// match against root-relative, slash-separated paths.
package corpus

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"slices"
	"strings"

	"github.com/bmatcuk/doublestar/v4"
)

// ErrRootUnreadable is wrapped when the corpus root cannot be scanned.
var ErrRootUnreadable = errors.New("corpus root unreadable")

var (
	// DefaultInclude selects YAML files at any depth.
	DefaultInclude = []string{"**/*.yaml", "**/*.yml"}
	// DefaultExcludeDirs holds the metadata directory that stores the registry.
	DefaultExcludeDirs = []string{"meta"}
)

// Walker selects corpus files below Root.
type Walker struct {
	Root string
	// ExcludeDirs are directory names (e.g. "meta") or slash-joined
	// directory chains (e.g. "meta/version_control") pruned from the walk.
	ExcludeDirs []string
	// Include patterns; empty means DefaultInclude.
	Include []string
	// Exclude patterns applied after Include.
	Exclude []string
}

// Validate checks that every pattern is a valid doublestar glob.
func (w Walker) Validate() error {
	for _, group := range []struct {
		label    string
		patterns []string
	}{{"include", w.Include}, {"exclude", w.Exclude}} {
		for _, pat := range group.patterns {
			if !doublestar.ValidatePattern(pat) {
				return fmt.Errorf("corpus: invalid %s pattern %q", group.label, pat)
			}
		}
	}
	return nil
}

// Files returns the selected files as sorted, root-relative slash paths.
// Any I/O error aborts the walk: a partial listing would yield a silently
// incomplete registry.
func (w Walker) Files(ctx context.Context) ([]string, error) {
	if err := w.Validate(); err != nil {
		return nil, err
	}
	info, err := os.Stat(w.Root)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrRootUnreadable, err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("%w: %s is not a directory", ErrRootUnreadable, w.Root)
	}

	var files []string
	err = filepath.WalkDir(w.Root, func(p string, d fs.DirEntry, walkErr error) error {
		if walkErr != nil {
			return walkErr
		}
		if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr
		}
		rel, relErr := filepath.Rel(w.Root, p)
		if relErr != nil {
			return relErr
		}
		rel = filepath.ToSlash(rel)
		if rel == "." {
			return nil
		}
		if d.IsDir() {
			if w.ExcludedDir(rel) {
				return filepath.SkipDir
			}
			return nil
		}
		if w.Match(rel) {
			files = append(files, rel)
		}
		return nil
	})
	if err != nil {
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			return nil, err
		}
		return nil, fmt.Errorf("%w: %w", ErrRootUnreadable, err)
	}

	slices.Sort(files)
	return files, nil
}

// Match reports whether the root-relative file path rel is selected.
func (w Walker) Match(rel string) bool {
	rel = filepath.ToSlash(rel)
	if dir := filepath.ToSlash(filepath.Dir(rel)); dir != "." && w.ExcludedDir(dir) {
		return false
	}
	include := w.Include
	if len(include) == 0 {
		include = DefaultInclude
	}
	if !matchAny(include, rel) {
		return false
	}
	return !matchAny(w.Exclude, rel)
}

// ExcludedDir reports whether the directory rel, or one of its ancestors, is
// a reserved directory.
func (w Walker) ExcludedDir(rel string) bool {
	segments := strings.Split(filepath.ToSlash(rel), "/")
	for _, ex := range w.ExcludeDirs {
		ex = strings.Trim(ex, "/")
		if ex == "" {
			continue
		}
		chain := strings.Split(ex, "/")
		for i := 0; i+len(chain) <= len(segments); i++ {
			if slices.Equal(segments[i:i+len(chain)], chain) {
				return true
			}
		}
	}
	return false
}

func matchAny(patterns []string, rel string) bool {
	for _, pat := range patterns {
		if ok, err := doublestar.Match(pat, rel); err == nil && ok {
			return true
		}
	}
	return false
}
