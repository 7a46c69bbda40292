// SPDX-License-Identifier: MPL-2.0

// Package cueutil validates CUE input against an embedded schema.
//
// Parsing follows three steps:
//
//  1. Compile the embedded schema
//  2. Compile user data and unify it with a schema definition
//  3. Validate and decode to a Go value
//
// # Usage
//
//	//go:embed config_schema.cue
//	var schema string
//
//	result, err := cueutil.ParseFile[map[string]any](schema, "uidreg.cue", "#Config",
//	    cueutil.WithConcrete(false))
//	if err != nil {
//	    return err // error names the file and the CUE path
//	}
package cueutil
