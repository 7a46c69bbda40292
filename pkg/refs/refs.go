// SPDX-License-Identifier: MPL-2.0

// Package refs extracts raw outgoing references from document content.
//
// A reference is the value stored under the reserved marker key (by default
// "$ref") anywhere in a document tree. Values are collected verbatim,
// including any "#fragment" suffix; nothing is resolved here.
package refs

import (
	"iter"
	"log/slog"
	"strconv"
	"strings"

	"github.com/uidreg/uidreg/pkg/document"
)

// DefaultMarker is the conventional reference key.
const DefaultMarker = "$ref"

type (
	// Extractor walks document trees looking for the marker key.
	// The zero value uses DefaultMarker and slog.Default().
	Extractor struct {
		// Marker is the reserved key; empty means DefaultMarker.
		Marker string
		// Logger receives a warning for every non-string marker value.
		Logger *slog.Logger
	}

	// Occurrence is one appearance of the marker key.
	Occurrence struct {
		// Path locates the marker's parent mapping, e.g. "variables[2]".
		Path string
		// Value is the node stored under the marker.
		Value *document.Node
	}
)

// IsReference reports whether the occurrence holds a string value.
func (o Occurrence) IsReference() bool {
	return o.Value.IsString()
}

// Extract is shorthand for (&Extractor{}).Extract(root).
func Extract(root *document.Node) iter.Seq[string] {
	var e Extractor
	return e.Extract(root)
}

// Extract returns the string values found under the marker key, depth first
// in document order. Duplicates are kept. Non-string values are skipped and
// logged. Each call to the returned sequence walks the tree afresh.
func (e *Extractor) Extract(root *document.Node) iter.Seq[string] {
	return func(yield func(string) bool) {
		for occ := range e.Scan(root) {
			if !occ.IsReference() {
				e.logger().Warn("skipping non-string reference value",
					"marker", e.marker(), "path", occ.Path, "kind", occ.Value.Kind.String())
				continue
			}
			if !yield(occ.Value.Value) {
				return
			}
		}
	}
}

// Scan returns every occurrence of the marker key, string or not.
func (e *Extractor) Scan(root *document.Node) iter.Seq[Occurrence] {
	marker := e.marker()
	return func(yield func(Occurrence) bool) {
		walk(root, "", marker, yield)
	}
}

// Collect drains Extract into a slice.
func (e *Extractor) Collect(root *document.Node) []string {
	var out []string
	for ref := range e.Extract(root) {
		out = append(out, ref)
	}
	return out
}

func (e *Extractor) marker() string {
	if e == nil || e.Marker == "" {
		return DefaultMarker
	}
	return e.Marker
}

func (e *Extractor) logger() *slog.Logger {
	if e == nil || e.Logger == nil {
		return slog.Default()
	}
	return e.Logger
}

// walk reports false once yield asks to stop.
func walk(n *document.Node, at, marker string, yield func(Occurrence) bool) bool {
	if n == nil {
		return true
	}
	switch n.Kind {
	case document.KindMapping:
		for i, key := range n.Keys {
			val := n.Fields[i]
			if key == marker {
				if !yield(Occurrence{Path: at, Value: val}) {
					return false
				}
			}
			if !walk(val, joinKey(at, key), marker, yield) {
				return false
			}
		}
	case document.KindSequence:
		for i, item := range n.Items {
			if !walk(item, at+"["+strconv.Itoa(i)+"]", marker, yield) {
				return false
			}
		}
	case document.KindNull, document.KindScalar:
	}
	return true
}

func joinKey(at, key string) string {
	if at == "" {
		return key
	}
	var sb strings.Builder
	sb.Grow(len(at) + 1 + len(key))
	sb.WriteString(at)
	sb.WriteByte('.')
	sb.WriteString(key)
	return sb.String()
}
