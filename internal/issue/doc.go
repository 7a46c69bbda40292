// SPDX-License-Identifier: MPL-2.0

// Package issue provides actionable error handling with user-friendly messages.
//
// Errors built here carry the failed operation, the resource involved, and
// remediation hints. An error may also point at a catalog Issue, a Markdown
// page rendered with glamour when the CLI reports a setup failure.
package issue
