// SPDX-License-Identifier: MPL-2.0

package document

import (
	"fmt"
	"strings"
)

const (
	// KindNull is an explicit or implicit YAML null.
	KindNull Kind = iota
	// KindScalar is a string, number, boolean or timestamp value.
	KindScalar
	// KindMapping is an ordered set of named fields.
	KindMapping
	// KindSequence is an ordered list of items.
	KindSequence
)

const (
	tagString = "!!str"
	tagNull   = "!!null"
	tagMerge  = "!!merge"
)

type (
	// Kind discriminates the variants of Node.
	Kind uint8

	// Node is one value in a document tree.
	//
	// Only the fields relevant to Kind are populated: Value and Tag for
	// scalars, Keys and Fields (index-aligned) for mappings, Items for
	// sequences. Mapping keys keep their source order.
	Node struct {
		Kind   Kind
		Tag    string
		Value  string
		Keys   []string
		Fields []*Node
		Items  []*Node
	}
)

// String returns the kind name.
func (k Kind) String() string {
	switch k {
	case KindNull:
		return "null"
	case KindScalar:
		return "scalar"
	case KindMapping:
		return "mapping"
	case KindSequence:
		return "sequence"
	default:
		return fmt.Sprintf("kind(%d)", uint8(k))
	}
}

// NewMapping returns an empty mapping node.
func NewMapping() *Node {
	return &Node{Kind: KindMapping}
}

// NewString returns a string scalar node.
func NewString(s string) *Node {
	return &Node{Kind: KindScalar, Tag: tagString, Value: s}
}

// Set appends a field to a mapping node, replacing an existing field with the
// same key in place.
func (n *Node) Set(key string, value *Node) {
	for i, k := range n.Keys {
		if k == key {
			n.Fields[i] = value
			return
		}
	}
	n.Keys = append(n.Keys, key)
	n.Fields = append(n.Fields, value)
}

// Field returns the value stored under key. It reports false when n is not a
// mapping or the key is absent. A present key whose value is null still
// returns true.
func (n *Node) Field(key string) (*Node, bool) {
	if n == nil || n.Kind != KindMapping {
		return nil, false
	}
	for i, k := range n.Keys {
		if k == key {
			return n.Fields[i], true
		}
	}
	return nil, false
}

// IsString reports whether n is a scalar tagged as a string.
func (n *Node) IsString() bool {
	return n != nil && n.Kind == KindScalar && n.Tag == tagString
}

// Len returns the number of fields or items; zero for scalars and nulls.
func (n *Node) Len() int {
	if n == nil {
		return 0
	}
	switch n.Kind {
	case KindMapping:
		return len(n.Keys)
	case KindSequence:
		return len(n.Items)
	case KindNull, KindScalar:
		return 0
	default:
		return 0
	}
}

// Text renders a short human-readable form of n for diagnostics.
func (n *Node) Text() string {
	if n == nil {
		return "<nil>"
	}
	switch n.Kind {
	case KindNull:
		return "null"
	case KindScalar:
		return n.Value
	case KindMapping:
		return "{" + strings.Join(n.Keys, ", ") + "}"
	case KindSequence:
		return fmt.Sprintf("[%d items]", len(n.Items))
	default:
		return n.Kind.String()
	}
}
