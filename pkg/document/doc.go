// SPDX-License-Identifier: MPL-2.0

// Package document models a single corpus file: its corpus-relative location
// and its parsed content as a tree of Node values.
//
// Content is decoded with gopkg.in/yaml.v3 and converted into a small tagged
// variant (null, scalar, mapping, sequence) so that traversal code can switch
// exhaustively on Node.Kind instead of inspecting dynamic Go types.
package document
