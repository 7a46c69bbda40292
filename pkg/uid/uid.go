// SPDX-License-Identifier: MPL-2.0

// Package uid derives and parses the canonical identifiers of corpus files.
//
// A UID has the form <segment>[:<segment>...]:<concept>@<version>, where the
// segments are the directory chain relative to the corpus root and concept is
// the file stem. Derivation is pure: it looks only at the location string and
// the declared version handed to it.
package uid

import (
	"errors"
	"fmt"
	"path"
	"path/filepath"
	"strings"
)

const (
	// Delimiter joins path segments and the concept.
	Delimiter = ":"
	// VersionMarker precedes the version.
	VersionMarker = "@"
	// FragmentMarker separates a UID from a fragment inside a reference.
	FragmentMarker = "#"
)

var (
	// ErrMalformedLocation is wrapped by LocationError.
	ErrMalformedLocation = errors.New("malformed location")
	// ErrMalformedUID is returned by Parse for strings that are not UIDs.
	ErrMalformedUID = errors.New("malformed uid")
)

type (
	// UID is a canonical document identifier.
	UID string

	// LocationError reports a location that cannot be turned into a UID.
	LocationError struct {
		Location string
		Reason   string
	}

	// Parts is a UID split into its components.
	Parts struct {
		Segments []string
		Concept  string
		Version  string
	}
)

func (e *LocationError) Error() string {
	return fmt.Sprintf("malformed location %q: %s", e.Location, e.Reason)
}

// Unwrap returns ErrMalformedLocation for errors.Is compatibility.
func (e *LocationError) Unwrap() error { return ErrMalformedLocation }

// String returns the UID text.
func (u UID) String() string { return string(u) }

// Derive computes the UID of the file at location for the given declared
// version. location may be absolute (it must then lie under root) or relative
// to root. Callers substitute the default version before calling; an empty
// version is rejected rather than silently defaulted here.
func Derive(root, location, version string) (UID, error) {
	rel, err := Relative(root, location)
	if err != nil {
		return "", err
	}
	if version == "" || strings.ContainsAny(version, Delimiter+VersionMarker+FragmentMarker) {
		return "", &LocationError{Location: location, Reason: fmt.Sprintf("unusable version %q", version)}
	}

	dir, base := path.Split(rel)
	concept := strings.TrimSuffix(base, path.Ext(base))
	if concept == "" {
		return "", &LocationError{Location: location, Reason: "empty file stem"}
	}
	if strings.ContainsAny(concept, Delimiter+VersionMarker+FragmentMarker) {
		return "", &LocationError{Location: location, Reason: fmt.Sprintf("file stem %q contains a reserved character", concept)}
	}

	var sb strings.Builder
	if dir = strings.TrimSuffix(dir, "/"); dir != "" {
		for seg := range strings.SplitSeq(dir, "/") {
			if strings.ContainsAny(seg, Delimiter+VersionMarker+FragmentMarker) {
				return "", &LocationError{Location: location, Reason: fmt.Sprintf("directory %q contains a reserved character", seg)}
			}
			sb.WriteString(seg)
			sb.WriteString(Delimiter)
		}
	}
	sb.WriteString(concept)
	sb.WriteString(VersionMarker)
	sb.WriteString(version)
	return UID(sb.String()), nil
}

// Relative returns location relative to root in clean, slash-separated form.
// It fails for locations that escape root or name root itself.
func Relative(root, location string) (string, error) {
	if location == "" {
		return "", &LocationError{Location: location, Reason: "empty location"}
	}

	rel := location
	if filepath.IsAbs(location) {
		absRoot, err := filepath.Abs(root)
		if err != nil {
			return "", &LocationError{Location: location, Reason: err.Error()}
		}
		r, err := filepath.Rel(absRoot, location)
		if err != nil {
			return "", &LocationError{Location: location, Reason: err.Error()}
		}
		rel = r
	}

	rel = path.Clean(filepath.ToSlash(rel))
	switch {
	case rel == "." || rel == "/":
		return "", &LocationError{Location: location, Reason: "location is the corpus root"}
	case rel == ".." || strings.HasPrefix(rel, "../") || path.IsAbs(rel):
		return "", &LocationError{Location: location, Reason: "outside corpus root"}
	}
	return rel, nil
}

// Parse splits u into its components.
func Parse(u UID) (Parts, error) {
	s := string(u)
	at := strings.LastIndex(s, VersionMarker)
	if at <= 0 || at == len(s)-1 {
		return Parts{}, fmt.Errorf("%w: %q: missing version", ErrMalformedUID, s)
	}
	if strings.Contains(s, FragmentMarker) {
		return Parts{}, fmt.Errorf("%w: %q: contains fragment marker", ErrMalformedUID, s)
	}

	names := strings.Split(s[:at], Delimiter)
	for _, n := range names {
		if n == "" {
			return Parts{}, fmt.Errorf("%w: %q: empty segment", ErrMalformedUID, s)
		}
	}
	return Parts{
		Segments: names[:len(names)-1],
		Concept:  names[len(names)-1],
		Version:  s[at+1:],
	}, nil
}

// Location returns the slash-separated directory and concept a UID encodes,
// without the file extension.
func (p Parts) Location() string {
	return path.Join(append(append([]string{}, p.Segments...), p.Concept)...)
}
