// SPDX-License-Identifier: MPL-2.0

// Package config handles uidreg configuration using Viper with CUE as the file format.
//
// A project-local uidreg.cue in the working directory takes precedence over the
// user file at $XDG_CONFIG_HOME/uidreg/config.cue (~/Library/Application
// Support/uidreg/config.cue on macOS, %APPDATA%\uidreg\config.cue on Windows).
// An explicit --config path is used exclusively. Every key can be overridden
// from the environment with the UIDREG_ prefix, for example
// UIDREG_CHECKSUM_POLICY=fail.
//
// Files are validated against the embedded #Config schema (config_schema.cue).
package config
