// SPDX-License-Identifier: MPL-2.0

package issue

import (
	"errors"
	"fmt"
	"strings"
	"testing"
)

func TestActionableError_Error(t *testing.T) {
	tests := []struct {
		name     string
		err      *ActionableError
		expected string
	}{
		{
			name:     "operation only",
			err:      &ActionableError{Operation: "build registry"},
			expected: "failed to build registry",
		},
		{
			name:     "operation with resource",
			err:      &ActionableError{Operation: "load registry", Resource: "uid_registry.yaml"},
			expected: "failed to load registry: uid_registry.yaml",
		},
		{
			name: "full context",
			err: &ActionableError{
				Operation: "load registry",
				Resource:  "uid_registry.yaml",
				Cause:     errors.New("file not found"),
			},
			expected: "failed to load registry: uid_registry.yaml: file not found",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.err.Error(); got != tt.expected {
				t.Errorf("Error() = %q, want %q", got, tt.expected)
			}
		})
	}
}

func TestActionableError_ErrorsIs(t *testing.T) {
	cause := errors.New("specific error")
	wrapped := &ActionableError{Operation: "test", Cause: fmt.Errorf("ctx: %w", cause)}

	if !errors.Is(wrapped, cause) {
		t.Error("errors.Is should find the wrapped cause")
	}
	if (&ActionableError{Operation: "test"}).Unwrap() != nil {
		t.Error("Unwrap() should return nil when no cause")
	}
}

func TestActionableError_Format(t *testing.T) {
	err := &ActionableError{
		Operation:   "build registry",
		Resource:    "data",
		Suggestions: []string{"Check --root", "Check permissions"},
		Cause:       fmt.Errorf("walk: %w", errors.New("permission denied")),
	}

	plain := err.Format(false)
	for _, want := range []string{"failed to build registry: data", "• Check --root", "• Check permissions"} {
		if !strings.Contains(plain, want) {
			t.Errorf("Format(false) missing %q:\n%s", want, plain)
		}
	}
	if strings.Contains(plain, "Error chain") {
		t.Errorf("Format(false) should not include the chain:\n%s", plain)
	}

	verbose := err.Format(true)
	for _, want := range []string{"Error chain:", "1. walk: permission denied", "2. permission denied"} {
		if !strings.Contains(verbose, want) {
			t.Errorf("Format(true) missing %q:\n%s", want, verbose)
		}
	}
}

func TestErrorContext_Build(t *testing.T) {
	cause := errors.New("boom")
	ae := NewErrorContext().
		WithOperation("load registry").
		WithResource("r.yaml").
		WithSuggestion("one").
		WithSuggestions("two", "three").
		WithIssue(RegistryNotFoundId).
		Wrap(cause).
		Build()

	if ae.Operation != "load registry" || ae.Resource != "r.yaml" || !errors.Is(ae, cause) {
		t.Errorf("Build() = %+v", ae)
	}
	if len(ae.Suggestions) != 3 || !ae.HasSuggestions() {
		t.Errorf("Suggestions = %v", ae.Suggestions)
	}
	if ae.CatalogIssue() == nil || ae.CatalogIssue().Id() != RegistryNotFoundId {
		t.Errorf("CatalogIssue() = %v", ae.CatalogIssue())
	}
	if (&ActionableError{Operation: "x"}).CatalogIssue() != nil {
		t.Error("CatalogIssue() without an issue should be nil")
	}
}

func TestErrorContext_BuildWithoutOperation(t *testing.T) {
	if NewErrorContext().WithResource("x").Build() != nil {
		t.Error("Build() without operation should return nil")
	}
	if NewErrorContext().BuildError() != nil {
		t.Error("BuildError() without operation should return nil")
	}
	var target *ActionableError
	if err := NewErrorContext().WithOperation("x").BuildError(); !errors.As(err, &target) {
		t.Errorf("BuildError() = %T", err)
	}
}

func TestWrapWithContext(t *testing.T) {
	if WrapWithContext(nil, "op", "res") != nil {
		t.Error("WrapWithContext(nil) should return nil")
	}
	cause := errors.New("cause")
	ae := WrapWithContext(cause, "validate file", "a/y.yaml")
	if ae.Error() != "failed to validate file: a/y.yaml: cause" {
		t.Errorf("Error() = %q", ae.Error())
	}
}
