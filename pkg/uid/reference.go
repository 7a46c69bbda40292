// SPDX-License-Identifier: MPL-2.0

package uid

import "strings"

// Reference is a parsed outgoing reference: a base UID plus an optional
// dotted fragment path into the referenced document.
type Reference struct {
	// Raw is the reference exactly as written in the document.
	Raw string
	// Base is the text before the first '#'.
	Base UID
	// Fragment is the text after the first '#', empty when absent.
	Fragment string
	// HasFragment distinguishes "uid#" (empty fragment) from "uid".
	HasFragment bool
}

// ParseReference splits raw at the first FragmentMarker. It never fails:
// whether the base UID exists is a registry question, not a syntax one.
func ParseReference(raw string) Reference {
	base, fragment, found := strings.Cut(raw, FragmentMarker)
	return Reference{
		Raw:         raw,
		Base:        UID(base),
		Fragment:    fragment,
		HasFragment: found,
	}
}

// String returns the raw reference.
func (r Reference) String() string { return r.Raw }
