// SPDX-License-Identifier: MPL-2.0

package metrics

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestMetrics_Record(t *testing.T) {
	t.Parallel()

	m := New()
	m.ObserveBuild(3, 20*time.Millisecond)
	m.IncrementFile(true)
	m.IncrementFile(false)
	m.IncrementFile(false)
	m.IncrementError("InvalidReference")
	m.ObserveValidation(time.Millisecond)

	if got := testutil.ToFloat64(m.RegistryEntries); got != 3 {
		t.Errorf("registry entries = %v, want 3", got)
	}
	if got := testutil.ToFloat64(m.FilesValidated.WithLabelValues("fail")); got != 2 {
		t.Errorf("failed files = %v, want 2", got)
	}
	if got := testutil.ToFloat64(m.IntegrityErrors.WithLabelValues("InvalidReference")); got != 1 {
		t.Errorf("InvalidReference count = %v, want 1", got)
	}
}

func TestMetrics_IndependentInstances(t *testing.T) {
	t.Parallel()

	a, b := New(), New()
	a.IncrementFile(true)
	if got := testutil.ToFloat64(b.FilesValidated.WithLabelValues("pass")); got != 0 {
		t.Errorf("instances share state: %v", got)
	}
}

func TestMetrics_NilIsNoop(t *testing.T) {
	t.Parallel()

	var m *Metrics
	m.ObserveBuild(1, time.Second)
	m.IncrementFile(true)
	m.IncrementError("x")
	m.ObserveValidation(time.Second)
	if err := m.WriteTextfile(filepath.Join(t.TempDir(), "x.prom")); err != nil {
		t.Errorf("nil WriteTextfile error: %v", err)
	}
}

func TestMetrics_WriteTextfile(t *testing.T) {
	t.Parallel()

	m := New()
	m.ObserveBuild(2, time.Millisecond)
	path := filepath.Join(t.TempDir(), "uidreg.prom")
	if err := m.WriteTextfile(path); err != nil {
		t.Fatalf("WriteTextfile() error: %v", err)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(string(data), "uidreg_registry_entries 2") {
		t.Errorf("textfile missing gauge:\n%s", data)
	}
}
