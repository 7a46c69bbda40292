// SPDX-License-Identifier: MPL-2.0

package integrity

import (
	"errors"
	"fmt"

	"github.com/uidreg/uidreg/pkg/uid"
)

const (
	// KindMalformedLocation: the file lies outside the corpus root or its
	// path cannot form a UID.
	KindMalformedLocation Kind = "MalformedLocation"
	// KindUIDCollision: two files derive the same UID. Only the registry
	// build produces it; it is listed here so reports share one vocabulary.
	KindUIDCollision Kind = "UIDCollision"
	// KindMissingRegistryEntry: the file's own UID is not registered.
	KindMissingRegistryEntry Kind = "MissingRegistryEntry"
	// KindInvalidReference: a reference's base UID is not registered.
	KindInvalidReference Kind = "InvalidReference"
	// KindFragmentNotFound: a fragment does not resolve in its target.
	KindFragmentNotFound Kind = "FragmentNotFound"
	// KindChecksumStale: the registered checksum no longer matches the file.
	KindChecksumStale Kind = "ChecksumStale"
	// KindMalformedVersion: strict mode only.
	KindMalformedVersion Kind = "MalformedVersion"
	// KindNonStringReference: strict mode only.
	KindNonStringReference Kind = "NonStringReference"
	// KindUnreadable: a file could not be read or parsed.
	KindUnreadable Kind = "Unreadable"
)

const (
	SeverityError   Severity = "error"
	SeverityWarning Severity = "warning"
)

const (
	// ChecksumIgnore skips checksum comparison.
	ChecksumIgnore ChecksumPolicy = "ignore"
	// ChecksumWarn reports stale checksums without failing the file.
	ChecksumWarn ChecksumPolicy = "warn"
	// ChecksumFail reports stale checksums as errors.
	ChecksumFail ChecksumPolicy = "fail"
)

// ErrInvalidChecksumPolicy is the sentinel behind InvalidChecksumPolicyError.
var ErrInvalidChecksumPolicy = errors.New("invalid checksum policy")

type (
	// Kind names a class of integrity finding.
	Kind string

	// Severity distinguishes failing findings from advisory ones.
	Severity string

	// ChecksumPolicy selects how stale checksums are treated.
	ChecksumPolicy string

	// InvalidChecksumPolicyError is returned for unknown policy names.
	InvalidChecksumPolicyError struct {
		Value ChecksumPolicy
	}

	// Error is one integrity finding. Findings are values collected into a
	// list; they never abort validation.
	Error struct {
		Kind      Kind     `json:"kind"`
		Severity  Severity `json:"severity"`
		File      string   `json:"file"`
		Reference string   `json:"reference,omitempty"`
		UID       uid.UID  `json:"uid,omitempty"`
		Fragment  string   `json:"fragment,omitempty"`
		Message   string   `json:"message"`
	}
)

// String returns the kind name.
func (k Kind) String() string { return string(k) }

func (e *InvalidChecksumPolicyError) Error() string {
	return fmt.Sprintf("invalid checksum policy %q (valid: ignore, warn, fail)", e.Value)
}

// Unwrap returns ErrInvalidChecksumPolicy for errors.Is compatibility.
func (e *InvalidChecksumPolicyError) Unwrap() error { return ErrInvalidChecksumPolicy }

// IsValid reports whether p is a known policy. The zero value means warn.
func (p ChecksumPolicy) IsValid() (bool, []error) {
	switch p {
	case "", ChecksumIgnore, ChecksumWarn, ChecksumFail:
		return true, nil
	default:
		return false, []error{&InvalidChecksumPolicyError{Value: p}}
	}
}

// String returns the finding's message.
func (e Error) String() string { return e.Message }

// Failing reports whether the finding fails its file.
func (e Error) Failing() bool { return e.Severity != SeverityWarning }

func missingEntry(file string, u uid.UID) Error {
	return Error{
		Kind: KindMissingRegistryEntry, Severity: SeverityError, File: file, UID: u,
		Message: fmt.Sprintf("Missing registry entry for %s", u),
	}
}

func invalidReference(file string, ref uid.Reference) Error {
	return Error{
		Kind: KindInvalidReference, Severity: SeverityError, File: file,
		Reference: ref.Raw, UID: ref.Base, Fragment: ref.Fragment,
		Message: fmt.Sprintf("Invalid reference: %s", ref.Raw),
	}
}

func fragmentNotFound(file string, ref uid.Reference) Error {
	return Error{
		Kind: KindFragmentNotFound, Severity: SeverityError, File: file,
		Reference: ref.Raw, UID: ref.Base, Fragment: ref.Fragment,
		Message: fmt.Sprintf("Fragment '%s' not found in %s", ref.Fragment, ref.Base),
	}
}

func checksumStale(file string, u uid.UID, sev Severity) Error {
	return Error{
		Kind: KindChecksumStale, Severity: sev, File: file, UID: u,
		Message: fmt.Sprintf("Checksum of %s no longer matches registry entry %s; rebuild the registry", file, u),
	}
}

func failure(kind Kind, file string, err error) Error {
	return Error{Kind: kind, Severity: SeverityError, File: file, Message: err.Error()}
}
