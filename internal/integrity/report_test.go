// SPDX-License-Identifier: MPL-2.0

package integrity

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"strings"
	"testing"

	"github.com/google/uuid"
	promtest "github.com/prometheus/client_golang/prometheus/testutil"

	"github.com/uidreg/uidreg/internal/corpus"
	"github.com/uidreg/uidreg/internal/metrics"
	"github.com/uidreg/uidreg/internal/testutil"
)

func TestValidateCorpus_ReportsEveryFileSorted(t *testing.T) {
	t.Parallel()

	files := testutil.Files{}
	for i := range 20 {
		files[fmt.Sprintf("d%02d/ok.yaml", i)] = "metadata:\n  version: 1.0.0\n"
	}
	files["d05/bad.yaml"] = "metadata:\n  version: 1.0.0\nr:\n  $ref: nowhere@1.0.0\n"
	files["d11/frag.yaml"] = "metadata:\n  version: 1.0.0\nr:\n  $ref: d00:ok@1.0.0#nope\n"
	root := testutil.WriteCorpus(t, files)
	reg := build(t, root)
	testutil.WriteFile(t, root, "d09/broken.yaml", "key: [unclosed\n")

	all, err := (corpus.Walker{Root: root}).Files(context.Background())
	if err != nil {
		t.Fatal(err)
	}

	m := metrics.New()
	v := newValidator(t, reg, root, Options{Workers: 4, Metrics: m})
	report, err := v.ValidateCorpus(context.Background(), all)
	if err != nil {
		t.Fatalf("ValidateCorpus() error: %v", err)
	}

	if len(report.Results) != len(all) {
		t.Fatalf("results = %d, want %d", len(report.Results), len(all))
	}
	if !slices.IsSortedFunc(report.Results, func(a, b FileResult) int { return strings.Compare(a.File, b.File) }) {
		t.Error("results not sorted by file")
	}
	if report.OK() {
		t.Error("OK() = true with failing files")
	}

	var failed []string
	for _, r := range report.Failed() {
		failed = append(failed, r.File)
	}
	if want := []string{"d05/bad.yaml", "d09/broken.yaml", "d11/frag.yaml"}; !slices.Equal(failed, want) {
		t.Errorf("failed files = %v, want %v", failed, want)
	}

	counts := report.Counts()
	if counts[KindInvalidReference] != 1 || counts[KindFragmentNotFound] != 1 || counts[KindUnreadable] != 1 {
		t.Errorf("Counts() = %v", counts)
	}
	if got := report.Kinds(); !slices.Equal(got, []Kind{KindFragmentNotFound, KindInvalidReference, KindUnreadable}) {
		t.Errorf("Kinds() = %v", got)
	}
	if report.RunID == uuid.Nil {
		t.Error("RunID not set")
	}

	if got := promtest.ToFloat64(m.FilesValidated.WithLabelValues("fail")); got != 3 {
		t.Errorf("failed files metric = %v, want 3", got)
	}
	if got := promtest.ToFloat64(m.FilesValidated.WithLabelValues("pass")); got != float64(len(all)-3) {
		t.Errorf("passed files metric = %v", got)
	}
}

func TestValidateCorpus_MatchesSequential(t *testing.T) {
	t.Parallel()

	root := testutil.WriteCorpus(t, testutil.Files{
		"a/x.yaml": "metadata:\n  version: 1.0.0\nfield: 5\n",
		"a/y.yaml": "metadata:\n  version: 1.0.0\nr:\n  - $ref: a:x@1.0.0#missing\n  - $ref: gone@1.0.0\n",
		"b/z.yaml": "metadata:\n  version: 1.0.0\nr:\n  $ref: a:y@1.0.0\n",
	})
	reg := build(t, root)
	all := []string{"b/z.yaml", "a/y.yaml", "a/x.yaml"}

	one, _ := newValidator(t, reg, root, Options{Workers: 1}).ValidateCorpus(context.Background(), all)
	many, _ := newValidator(t, reg, root, Options{Workers: 8}).ValidateCorpus(context.Background(), all)

	if len(one.Results) != len(many.Results) {
		t.Fatalf("result counts differ: %d vs %d", len(one.Results), len(many.Results))
	}
	for i := range one.Results {
		if !slices.Equal(kinds(one.Results[i].Errors), kinds(many.Results[i].Errors)) || one.Results[i].File != many.Results[i].File {
			t.Errorf("result %d differs: %+v vs %+v", i, one.Results[i], many.Results[i])
		}
	}
	if one.Results[0].File != "a/x.yaml" {
		t.Errorf("first result = %s, want a/x.yaml", one.Results[0].File)
	}
}

func TestValidateCorpus_CleanCorpus(t *testing.T) {
	t.Parallel()

	root := testutil.WriteCorpus(t, testutil.ScenarioFiles("a:x@1.0.0#field"))
	v := newValidator(t, build(t, root), root, Options{ChecksumPolicy: ChecksumFail})

	report, err := v.ValidateCorpus(context.Background(), []string{"a/x.yaml", "a/y.yaml"})
	if err != nil {
		t.Fatal(err)
	}
	if !report.OK() || len(report.Counts()) != 0 {
		t.Errorf("report = %+v, want clean", report)
	}
	for _, r := range report.Results {
		if r.Errors == nil {
			t.Errorf("%s: Errors is nil, want empty slice", r.File)
		}
	}
}

func TestValidateCorpus_Canceled(t *testing.T) {
	t.Parallel()

	root := testutil.WriteCorpus(t, testutil.ScenarioFiles("a:x@1.0.0"))
	v := newValidator(t, build(t, root), root, Options{})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	report, err := v.ValidateCorpus(ctx, []string{"a/x.yaml", "a/y.yaml"})
	if !errors.Is(err, context.Canceled) {
		t.Errorf("ValidateCorpus() error = %v, want context.Canceled", err)
	}
	if report == nil || len(report.Results) != 0 {
		t.Errorf("report = %+v, want no results", report)
	}
}

func TestChecksumPolicy_IsValid(t *testing.T) {
	t.Parallel()

	for _, p := range []ChecksumPolicy{"", ChecksumIgnore, ChecksumWarn, ChecksumFail} {
		if ok, errs := p.IsValid(); !ok || errs != nil {
			t.Errorf("%q.IsValid() = %v, %v", p, ok, errs)
		}
	}
	ok, errs := ChecksumPolicy("strict").IsValid()
	if ok || len(errs) != 1 || !errors.Is(errs[0], ErrInvalidChecksumPolicy) {
		t.Errorf("IsValid(strict) = %v, %v", ok, errs)
	}
}
