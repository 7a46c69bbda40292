// SPDX-License-Identifier: MPL-2.0

// Package registry builds, persists, and queries the UID registry.
//
// A Registry maps every corpus UID to the file that backs it, the checksum of
// that file's raw bytes at build time, and the references it declared. Once
// built or loaded, a Registry is an immutable snapshot: validators share it
// across goroutines without locking.
package registry

import (
	"errors"
	"fmt"
	"iter"
	"maps"
	"slices"
	"strings"

	"github.com/uidreg/uidreg/pkg/uid"
)

var (
	// ErrRegistryNotFound is returned by Load when the registry file is absent.
	ErrRegistryNotFound = errors.New("registry file not found")
	// ErrInvalidRegistry is wrapped when a registry file cannot be decoded or
	// holds an unusable entry.
	ErrInvalidRegistry = errors.New("invalid registry")
)

type (
	// Entry is the persisted record for one UID.
	Entry struct {
		// File is the corpus-root-relative, slash-separated path.
		File string `yaml:"file" toml:"file" json:"file"`
		// Checksum is the hex digest of the file bytes at build time.
		Checksum string `yaml:"checksum" toml:"checksum" json:"checksum"`
		// Dependencies are the raw reference strings, in document order.
		Dependencies []string `yaml:"dependencies" toml:"dependencies" json:"dependencies"`
	}

	// Registry is an immutable UID to Entry mapping.
	Registry struct {
		entries map[uid.UID]Entry
		keys    []uid.UID
	}

	// UIDCollisionError reports files that derived the same UID.
	UIDCollisionError struct {
		// Collisions maps each contested UID to every file deriving it.
		Collisions map[uid.UID][]string
	}

	// Changes is the result of comparing two registries.
	Changes struct {
		Added   []uid.UID
		Removed []uid.UID
		// Changed lists UIDs present in both whose entries differ.
		Changed []uid.UID
	}
)

// New returns a Registry holding a private copy of entries.
func New(entries map[uid.UID]Entry) *Registry {
	r := &Registry{entries: make(map[uid.UID]Entry, len(entries))}
	for k, e := range entries {
		e.Dependencies = slices.Clone(e.Dependencies)
		if e.Dependencies == nil {
			e.Dependencies = []string{}
		}
		r.entries[k] = e
	}
	r.keys = slices.Sorted(maps.Keys(r.entries))
	return r
}

// Lookup returns the entry for u. The returned Dependencies slice must not be
// modified.
func (r *Registry) Lookup(u uid.UID) (Entry, bool) {
	if r == nil {
		return Entry{}, false
	}
	e, ok := r.entries[u]
	return e, ok
}

// Has reports whether u is registered.
func (r *Registry) Has(u uid.UID) bool {
	_, ok := r.Lookup(u)
	return ok
}

// Len returns the number of entries.
func (r *Registry) Len() int {
	if r == nil {
		return 0
	}
	return len(r.keys)
}

// UIDs returns all registered UIDs in sorted order.
func (r *Registry) UIDs() []uid.UID {
	if r == nil {
		return nil
	}
	return slices.Clone(r.keys)
}

// Entries iterates over the registry in UID order.
func (r *Registry) Entries() iter.Seq2[uid.UID, Entry] {
	return func(yield func(uid.UID, Entry) bool) {
		if r == nil {
			return
		}
		for _, k := range r.keys {
			if !yield(k, r.entries[k]) {
				return
			}
		}
	}
}

// ByFile returns the UID whose entry is backed by file.
func (r *Registry) ByFile(file string) (uid.UID, bool) {
	for k, e := range r.Entries() {
		if e.File == file {
			return k, true
		}
	}
	return "", false
}

// Diff reports how next differs from r.
func (r *Registry) Diff(next *Registry) Changes {
	var c Changes
	for k, e := range r.Entries() {
		ne, ok := next.Lookup(k)
		switch {
		case !ok:
			c.Removed = append(c.Removed, k)
		case !e.equal(ne):
			c.Changed = append(c.Changed, k)
		}
	}
	for k := range next.Entries() {
		if !r.Has(k) {
			c.Added = append(c.Added, k)
		}
	}
	return c
}

// Empty reports whether no UID was added, removed, or changed.
func (c Changes) Empty() bool {
	return len(c.Added) == 0 && len(c.Removed) == 0 && len(c.Changed) == 0
}

func (e Entry) equal(o Entry) bool {
	return e.File == o.File && e.Checksum == o.Checksum && slices.Equal(e.Dependencies, o.Dependencies)
}

func (e *UIDCollisionError) Error() string {
	keys := slices.Sorted(maps.Keys(e.Collisions))
	var sb strings.Builder
	fmt.Fprintf(&sb, "%d UID collision(s):", len(keys))
	for _, k := range keys {
		fmt.Fprintf(&sb, " %s <- [%s];", k, strings.Join(e.Collisions[k], ", "))
	}
	return strings.TrimSuffix(sb.String(), ";")
}
