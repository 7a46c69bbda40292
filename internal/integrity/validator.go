// SPDX-License-Identifier: MPL-2.0

// Package integrity checks corpus files against a registry.
//
// Validation of one file is a linear pipeline: own UID registered, then every
// outgoing reference (base UID registered, fragment present in the target),
// then optionally the registered checksum. Every finding is collected; nothing
// aborts early. Files share only the read-only registry, so corpus-wide
// validation runs them concurrently and merges per-file results at the end.
package integrity

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/uidreg/uidreg/internal/checksum"
	"github.com/uidreg/uidreg/internal/metrics"
	"github.com/uidreg/uidreg/internal/registry"
	"github.com/uidreg/uidreg/pkg/document"
	"github.com/uidreg/uidreg/pkg/fragment"
	"github.com/uidreg/uidreg/pkg/refs"
	"github.com/uidreg/uidreg/pkg/uid"
)

type (
	// Options tune validation. The zero value matches the lenient defaults.
	Options struct {
		// Marker is the reference key; empty means refs.DefaultMarker.
		Marker string
		// VersionField is the dotted version path; empty means
		// document.DefaultVersionField.
		VersionField string
		// Strict reports defaulted or non-semver versions and non-string
		// reference values as findings.
		Strict bool
		// Algorithm must match the one the registry was built with.
		Algorithm checksum.Algorithm
		// ChecksumPolicy; empty means ChecksumWarn.
		ChecksumPolicy ChecksumPolicy
		// Workers bounds ValidateCorpus concurrency; <= 0 means GOMAXPROCS.
		Workers int
		Logger  *slog.Logger
		Metrics *metrics.Metrics
	}

	// Validator checks files below Root against Registry.
	Validator struct {
		Registry *registry.Registry
		Root     string
		Options
	}

	// loaded caches one referenced document for the duration of a file check.
	loaded struct {
		doc *document.Document
		err error
	}
)

// New returns a Validator after checking opts.
func New(reg *registry.Registry, root string, opts Options) (*Validator, error) {
	if ok, errs := opts.Algorithm.IsValid(); !ok {
		return nil, errs[0]
	}
	if ok, errs := opts.ChecksumPolicy.IsValid(); !ok {
		return nil, errs[0]
	}
	if reg == nil {
		reg = registry.New(nil)
	}
	return &Validator{Registry: reg, Root: root, Options: opts}, nil
}

// ValidateFile returns every finding for the file at location, which is
// either absolute or relative to the corpus root. An empty result means the
// file is clean.
func (v *Validator) ValidateFile(location string) []Error {
	rel, err := uid.Relative(v.Root, location)
	if err != nil {
		return []Error{failure(KindMalformedLocation, location, err)}
	}

	data, err := os.ReadFile(filepath.Join(v.Root, filepath.FromSlash(rel)))
	if err != nil {
		return []Error{failure(KindUnreadable, rel, err)}
	}
	doc, err := document.Parse(rel, data)
	if err != nil {
		return []Error{failure(KindUnreadable, rel, err)}
	}

	var errs []Error
	version, defaulted := doc.Version(v.VersionField)
	own, err := uid.Derive(v.Root, rel, version)
	if err != nil {
		return []Error{failure(KindMalformedLocation, rel, err)}
	}
	entry, registered := v.Registry.Lookup(own)
	if !registered {
		errs = append(errs, missingEntry(rel, own))
	}

	if v.Strict {
		field := v.VersionField
		if field == "" {
			field = document.DefaultVersionField
		}
		switch {
		case defaulted:
			errs = append(errs, Error{
				Kind: KindMalformedVersion, Severity: SeverityError, File: rel, UID: own,
				Message: fmt.Sprintf("No usable version at %s; defaulted to %s", field, document.DefaultVersion),
			})
		case !document.WellFormedVersion(version):
			errs = append(errs, Error{
				Kind: KindMalformedVersion, Severity: SeverityError, File: rel, UID: own,
				Message: fmt.Sprintf("Version %q is not a semantic version", version),
			})
		}
	}

	targets := make(map[uid.UID]loaded)
	ext := refs.Extractor{Marker: v.Marker}
	var references []uid.Reference
	for occ := range ext.Scan(doc.Root) {
		switch {
		case occ.IsReference():
			references = append(references, uid.ParseReference(occ.Value.Value))
		case v.Strict:
			errs = append(errs, Error{
				Kind: KindNonStringReference, Severity: SeverityError, File: rel,
				Message: fmt.Sprintf("Non-string reference value (%s) at %s", occ.Value.Kind, occ.Path),
			})
		default:
			v.logger().Warn("skipping non-string reference value", "file", rel, "path", occ.Path, "kind", occ.Value.Kind.String())
		}
	}

	for _, ref := range references {
		target, ok := v.Registry.Lookup(ref.Base)
		if !ok {
			errs = append(errs, invalidReference(rel, ref))
			continue
		}
		if ref.Fragment == "" {
			continue
		}

		t, cached := targets[ref.Base]
		if !cached {
			t.doc, _, t.err = document.Load(v.Root, target.File)
			targets[ref.Base] = t
		}
		if t.err != nil {
			errs = append(errs, Error{
				Kind: KindUnreadable, Severity: SeverityError, File: rel,
				Reference: ref.Raw, UID: ref.Base, Fragment: ref.Fragment,
				Message: fmt.Sprintf("Cannot load %s for fragment '%s': %v", ref.Base, ref.Fragment, t.err),
			})
			continue
		}
		if !fragment.Resolve(t.doc, ref.Fragment) {
			errs = append(errs, fragmentNotFound(rel, ref))
		}
	}

	if registered && v.policy() != ChecksumIgnore {
		// Algorithm was checked by New; a zero-value Validator uses sha256.
		sum, sumErr := v.Algorithm.Sum(data)
		if sumErr == nil && sum != entry.Checksum {
			sev := SeverityWarning
			if v.policy() == ChecksumFail {
				sev = SeverityError
			}
			errs = append(errs, checksumStale(rel, own, sev))
		}
	}

	return errs
}

func (v *Validator) policy() ChecksumPolicy {
	if v.ChecksumPolicy == "" {
		return ChecksumWarn
	}
	return v.ChecksumPolicy
}

func (v *Validator) logger() *slog.Logger {
	if v.Logger != nil {
		return v.Logger
	}
	return slog.Default()
}
