// SPDX-License-Identifier: MPL-2.0

// Package benchmark provides benchmarks for PGO profile generation.
// These benchmarks cover the hot paths of uidreg:
//   - YAML document parsing and reference extraction
//   - Registry builds over a generated corpus
//   - Corpus validation and dependency ordering
//
// To generate a PGO profile, run:
//
//	go test -run '^$' -bench . -cpuprofile default.pgo ./internal/benchmark
package benchmark
