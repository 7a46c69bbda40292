// SPDX-License-Identifier: MPL-2.0

package registry

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"runtime"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/uidreg/uidreg/internal/checksum"
	"github.com/uidreg/uidreg/internal/corpus"
	"github.com/uidreg/uidreg/internal/metrics"
	"github.com/uidreg/uidreg/pkg/document"
	"github.com/uidreg/uidreg/pkg/refs"
	"github.com/uidreg/uidreg/pkg/uid"
)

type (
	// Builder constructs a Registry from a full corpus scan.
	Builder struct {
		Walker    corpus.Walker
		Algorithm checksum.Algorithm
		// Marker is the reference key; empty means refs.DefaultMarker.
		Marker string
		// VersionField is the dotted version path; empty means
		// document.DefaultVersionField.
		VersionField string
		// Strict turns defaulted versions and non-string reference values
		// into build warnings.
		Strict bool
		// Workers bounds concurrent file processing; <= 0 means GOMAXPROCS.
		Workers int
		Logger  *slog.Logger
		Metrics *metrics.Metrics
	}

	// Warning is a non-fatal observation made during a build.
	Warning struct {
		File    string
		Message string
	}

	// Result is the outcome of a successful build.
	Result struct {
		Registry *Registry
		Files    int
		Warnings []Warning
		Duration time.Duration
	}

	scanned struct {
		uid      uid.UID
		entry    Entry
		warnings []Warning
		err      error
	}
)

// Build scans the corpus and assembles a Registry. It fails without a
// registry on any unreadable root, unreadable or unparseable file, malformed
// location, or UID collision; every failing file is reported, not only the
// first.
func (b *Builder) Build(ctx context.Context) (*Result, error) {
	start := time.Now()

	if ok, errs := b.Algorithm.IsValid(); !ok {
		return nil, errors.Join(errs...)
	}
	files, err := b.Walker.Files(ctx)
	if err != nil {
		return nil, err
	}

	results := make([]scanned, len(files))
	var g errgroup.Group
	g.SetLimit(b.workers())
	for i, rel := range files {
		if ctx.Err() != nil {
			break
		}
		g.Go(func() error {
			results[i] = b.scan(rel)
			return nil
		})
	}
	_ = g.Wait()
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	entries := make(map[uid.UID]Entry, len(files))
	claimed := make(map[uid.UID][]string, len(files))
	var (
		errs     []error
		warnings []Warning
	)
	for i, res := range results {
		if res.err != nil {
			errs = append(errs, res.err)
			continue
		}
		claimed[res.uid] = append(claimed[res.uid], files[i])
		entries[res.uid] = res.entry
		warnings = append(warnings, res.warnings...)
	}

	collisions := make(map[uid.UID][]string)
	for k, owners := range claimed {
		if len(owners) > 1 {
			collisions[k] = owners
		}
	}
	if len(collisions) > 0 {
		errs = append(errs, &UIDCollisionError{Collisions: collisions})
	}
	if len(errs) > 0 {
		return nil, errors.Join(errs...)
	}

	reg := New(entries)
	elapsed := time.Since(start)
	b.Metrics.ObserveBuild(reg.Len(), elapsed)
	b.logger().Debug("registry built", "root", b.Walker.Root, "files", len(files), "entries", reg.Len(), "duration", elapsed)

	return &Result{Registry: reg, Files: len(files), Warnings: warnings, Duration: elapsed}, nil
}

func (b *Builder) scan(rel string) scanned {
	data, err := os.ReadFile(filepath.Join(b.Walker.Root, filepath.FromSlash(rel)))
	if err != nil {
		return scanned{err: fmt.Errorf("read %s: %w", rel, err)}
	}
	sum, err := b.Algorithm.Sum(data)
	if err != nil {
		return scanned{err: err}
	}
	doc, err := document.Parse(rel, data)
	if err != nil {
		return scanned{err: err}
	}

	var res scanned
	version, defaulted := doc.Version(b.VersionField)
	if b.Strict {
		switch {
		case defaulted:
			res.warnings = append(res.warnings, Warning{File: rel, Message: "no usable version declared, defaulted to " + document.DefaultVersion})
		case !document.WellFormedVersion(version):
			res.warnings = append(res.warnings, Warning{File: rel, Message: fmt.Sprintf("version %q is not a semantic version", version)})
		}
	}

	res.uid, res.err = uid.Derive(b.Walker.Root, rel, version)
	if res.err != nil {
		return res
	}

	deps := []string{}
	ext := refs.Extractor{Marker: b.Marker, Logger: b.logger()}
	for occ := range ext.Scan(doc.Root) {
		switch {
		case occ.IsReference():
			deps = append(deps, occ.Value.Value)
		case b.Strict:
			res.warnings = append(res.warnings, Warning{File: rel, Message: fmt.Sprintf("non-string reference value (%s) at %s", occ.Value.Kind, occ.Path)})
		default:
			b.logger().Warn("skipping non-string reference value", "file", rel, "path", occ.Path, "kind", occ.Value.Kind.String())
		}
	}

	res.entry = Entry{File: rel, Checksum: sum, Dependencies: deps}
	return res
}

func (b *Builder) workers() int {
	if b.Workers > 0 {
		return b.Workers
	}
	return runtime.GOMAXPROCS(0)
}

func (b *Builder) logger() *slog.Logger {
	if b.Logger != nil {
		return b.Logger
	}
	return slog.Default()
}
