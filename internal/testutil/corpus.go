// SPDX-License-Identifier: MPL-2.0

package testutil

import (
	"os"
	"path/filepath"
	"testing"
)

// Files maps slash-separated, root-relative paths to file contents.
type Files map[string]string

// WriteCorpus creates a fresh temporary corpus root containing files and
// returns its path.
func WriteCorpus(t testing.TB, files Files) string {
	t.Helper()
	root := t.TempDir()
	for rel, content := range files {
		WriteFile(t, root, rel, content)
	}
	return root
}

// WriteFile writes content to root/rel, creating parent directories.
func WriteFile(t testing.TB, root, rel, content string) string {
	t.Helper()
	p := filepath.Join(root, filepath.FromSlash(rel))
	MustMkdirAll(t, filepath.Dir(p), 0o755)
	if err := os.WriteFile(p, []byte(content), 0o644); err != nil {
		t.Fatalf("failed to write %s: %v", p, err)
	}
	return p
}

// AppendFile appends suffix to root/rel.
func AppendFile(t testing.TB, root, rel, suffix string) {
	t.Helper()
	p := filepath.Join(root, filepath.FromSlash(rel))
	f, err := os.OpenFile(p, os.O_APPEND|os.O_WRONLY, 0)
	if err != nil {
		t.Fatalf("failed to open %s: %v", p, err)
	}
	defer MustClose(t, f)
	if _, err := f.WriteString(suffix); err != nil {
		t.Fatalf("failed to append to %s: %v", p, err)
	}
}

// ReadFile returns the contents of root/rel.
func ReadFile(t testing.TB, root, rel string) string {
	t.Helper()
	data, err := os.ReadFile(filepath.Join(root, filepath.FromSlash(rel)))
	if err != nil {
		t.Fatalf("failed to read %s: %v", rel, err)
	}
	return string(data)
}

// ScenarioFiles is the two-file corpus used across packages: a/x.yaml holds
// field: 5 and a/y.yaml references it through a fragment.
func ScenarioFiles(ref string) Files {
	return Files{
		"a/x.yaml": "metadata:\n  version: 1.0.0\nfield: 5\n",
		"a/y.yaml": "metadata:\n  version: 1.0.0\nuses:\n  $ref: " + ref + "\n",
	}
}
