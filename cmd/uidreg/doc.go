// SPDX-License-Identifier: MPL-2.0

// Package cmd implements the uidreg command-line interface.
//
// Every command is built from an App, the composition root holding the
// configuration provider and output streams. Commands never call os.Exit;
// they return an *ExitError carrying the process exit code:
//
//	0  clean run
//	1  integrity failures (broken references, stale registry, cycles)
//	2  setup failures (bad config, unreadable corpus, UID collisions)
package cmd
