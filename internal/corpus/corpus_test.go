// SPDX-License-Identifier: MPL-2.0

package corpus

import (
	"context"
	"errors"
	"path/filepath"
	"slices"
	"testing"

	"github.com/uidreg/uidreg/internal/testutil"
)

func TestWalker_Files(t *testing.T) {
	t.Parallel()

	root := testutil.WriteCorpus(t, testutil.Files{
		"physics/mechanics/free_fall.yaml":       "a: 1\n",
		"physics/constants.yml":                  "a: 1\n",
		"math/algebra/quadratic.yaml":            "a: 1\n",
		"glossary.yaml":                          "a: 1\n",
		"notes.txt":                              "not yaml",
		"meta/version_control/uid_registry.yaml": "entries: {}\n",
		"meta/terminology.yaml":                  "terms: {}\n",
		"physics/drafts/wip.yaml":                "a: 1\n",
	})

	w := Walker{
		Root:        root,
		ExcludeDirs: DefaultExcludeDirs,
		Exclude:     []string{"**/drafts/**"},
	}
	got, err := w.Files(context.Background())
	if err != nil {
		t.Fatalf("Files() error: %v", err)
	}
	want := []string{
		"glossary.yaml",
		"math/algebra/quadratic.yaml",
		"physics/constants.yml",
		"physics/mechanics/free_fall.yaml",
	}
	if !slices.Equal(got, want) {
		t.Errorf("Files() = %v, want %v", got, want)
	}
}

func TestWalker_ExcludedDirChain(t *testing.T) {
	t.Parallel()

	w := Walker{ExcludeDirs: []string{"meta/version_control"}}
	tests := []struct {
		dir  string
		want bool
	}{
		{dir: "meta/version_control", want: true},
		{dir: "meta/version_control/old", want: true},
		{dir: "physics/meta/version_control", want: true},
		{dir: "meta", want: false},
		{dir: "meta/other", want: false},
		{dir: "version_control", want: false},
	}
	for _, tt := range tests {
		if got := w.ExcludedDir(tt.dir); got != tt.want {
			t.Errorf("ExcludedDir(%q) = %v, want %v", tt.dir, got, tt.want)
		}
	}
}

func TestWalker_Match(t *testing.T) {
	t.Parallel()

	w := Walker{ExcludeDirs: []string{"meta"}, Include: []string{"**/*.yaml"}}
	if !w.Match("a/x.yaml") {
		t.Error("a/x.yaml should match")
	}
	if w.Match("a/x.yml") {
		t.Error("custom include should not select .yml")
	}
	if w.Match("meta/reg.yaml") {
		t.Error("files under reserved dirs must not match")
	}
	if !w.Match(filepath.Join("deep", "er", "z.yaml")) {
		t.Error("OS separators should be normalised")
	}
}

func TestWalker_MissingRoot(t *testing.T) {
	t.Parallel()

	w := Walker{Root: filepath.Join(t.TempDir(), "nope")}
	if _, err := w.Files(context.Background()); !errors.Is(err, ErrRootUnreadable) {
		t.Fatalf("Files() error = %v, want ErrRootUnreadable", err)
	}

	file := testutil.WriteFile(t, t.TempDir(), "f.yaml", "a: 1\n")
	w = Walker{Root: file}
	if _, err := w.Files(context.Background()); !errors.Is(err, ErrRootUnreadable) {
		t.Fatalf("Files() on a file root error = %v, want ErrRootUnreadable", err)
	}
}

func TestWalker_InvalidPattern(t *testing.T) {
	t.Parallel()

	w := Walker{Root: t.TempDir(), Include: []string{"[unclosed"}}
	if err := w.Validate(); err == nil {
		t.Fatal("Validate() should reject an invalid pattern")
	}
	if _, err := w.Files(context.Background()); err == nil {
		t.Fatal("Files() should reject an invalid pattern")
	}
}

func TestWalker_Canceled(t *testing.T) {
	t.Parallel()

	root := testutil.WriteCorpus(t, testutil.Files{"a/x.yaml": "a: 1\n"})
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := (Walker{Root: root}).Files(ctx); !errors.Is(err, context.Canceled) {
		t.Fatalf("Files() error = %v, want context.Canceled", err)
	}
}
