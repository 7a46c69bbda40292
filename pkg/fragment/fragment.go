// SPDX-License-Identifier: MPL-2.0

// Package fragment resolves dotted fragment paths inside document content.
//
// Fragments only traverse named mapping fields. Sequences are not indexable
// by name, so a fragment that reaches a sequence (or a scalar) before its
// last segment does not resolve.
package fragment

import (
	"strings"

	"github.com/uidreg/uidreg/pkg/document"
)

// Separator delimits fragment segments.
const Separator = "."

// Split breaks a fragment path into segments.
func Split(path string) []string {
	return strings.Split(path, Separator)
}

// Lookup walks segments from n and returns the node at the end. The node may
// be a null: presence, not truthiness, is what counts.
func Lookup(n *document.Node, segments []string) (*document.Node, bool) {
	cur := n
	for _, seg := range segments {
		if cur == nil {
			return nil, false
		}
		switch cur.Kind {
		case document.KindMapping:
			next, ok := cur.Field(seg)
			if !ok {
				return nil, false
			}
			cur = next
		case document.KindSequence, document.KindScalar, document.KindNull:
			return nil, false
		default:
			return nil, false
		}
	}
	return cur, true
}

// Resolve reports whether path names an existing field of doc.
func Resolve(doc *document.Document, path string) bool {
	if doc == nil {
		return false
	}
	_, ok := Lookup(doc.Root, Split(path))
	return ok
}

// Deepest returns the longest prefix of path that resolves, for diagnostics
// such as "resolved up to constants, missing g".
func Deepest(doc *document.Document, path string) (resolved []string, missing string) {
	segments := Split(path)
	if doc == nil {
		return nil, segments[0]
	}
	for i := range segments {
		if _, ok := Lookup(doc.Root, segments[:i+1]); !ok {
			return segments[:i], segments[i]
		}
	}
	return segments, ""
}
