// SPDX-License-Identifier: MPL-2.0

package integrity

import (
	"context"
	"maps"
	"runtime"
	"slices"
	"strings"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"
)

type (
	// FileResult holds the findings for one file.
	FileResult struct {
		File   string  `json:"file"`
		Errors []Error `json:"errors"`
	}

	// Report is the outcome of a corpus-wide validation run.
	Report struct {
		RunID    uuid.UUID     `json:"run_id"`
		Results  []FileResult  `json:"results"`
		Duration time.Duration `json:"duration_ns"`
	}
)

// Failed reports whether any finding fails the file.
func (r FileResult) Failed() bool {
	return slices.ContainsFunc(r.Errors, Error.Failing)
}

// OK reports whether every file passed.
func (r *Report) OK() bool {
	return !slices.ContainsFunc(r.Results, FileResult.Failed)
}

// Failed returns the failing files in path order.
func (r *Report) Failed() []FileResult {
	var out []FileResult
	for _, res := range r.Results {
		if res.Failed() {
			out = append(out, res)
		}
	}
	return out
}

// Counts tallies findings by kind.
func (r *Report) Counts() map[Kind]int {
	counts := make(map[Kind]int)
	for _, res := range r.Results {
		for _, e := range res.Errors {
			counts[e.Kind]++
		}
	}
	return counts
}

// Kinds returns the kinds present in the report, sorted.
func (r *Report) Kinds() []Kind {
	return slices.Sorted(maps.Keys(r.Counts()))
}

// ValidateCorpus validates every file independently, at most Workers at a
// time. Cancelling ctx stops new files from starting; files already in
// flight finish and are included in the report, which is returned together
// with ctx's error. Results are sorted by file path.
func (v *Validator) ValidateCorpus(ctx context.Context, files []string) (*Report, error) {
	start := time.Now()

	results := make([]FileResult, len(files))
	launched := make([]bool, len(files))
	workers := v.Workers
	if workers <= 0 {
		workers = runtime.GOMAXPROCS(0)
	}

	var g errgroup.Group
	g.SetLimit(workers)
	for i, file := range files {
		if ctx.Err() != nil {
			break
		}
		launched[i] = true
		g.Go(func() error {
			errs := v.ValidateFile(file)
			results[i] = FileResult{File: file, Errors: errs}
			return nil
		})
	}
	_ = g.Wait()

	report := &Report{RunID: uuid.New()}
	for i, res := range results {
		if !launched[i] {
			continue
		}
		if res.Errors == nil {
			res.Errors = []Error{}
		}
		report.Results = append(report.Results, res)

		v.Metrics.IncrementFile(!res.Failed())
		for _, e := range res.Errors {
			v.Metrics.IncrementError(e.Kind.String())
		}
	}
	slices.SortFunc(report.Results, func(a, b FileResult) int {
		return strings.Compare(a.File, b.File)
	})

	report.Duration = time.Since(start)
	v.Metrics.ObserveValidation(report.Duration)
	v.logger().Debug("corpus validated", "run", report.RunID, "files", len(report.Results), "ok", report.OK(), "duration", report.Duration)
	return report, ctx.Err()
}
