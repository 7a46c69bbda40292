// SPDX-License-Identifier: MPL-2.0

// Package testutil provides helper functions for tests that handle errors
// appropriately, reducing boilerplate and ensuring consistent error handling.
//
// Common helpers include MustMkdirAll and MustClose, and corpus fixtures
// (WriteCorpus, WriteFile, AppendFile) that lay out YAML trees on disk.
package testutil
