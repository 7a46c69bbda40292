// SPDX-License-Identifier: MPL-2.0

package document

import "golang.org/x/mod/semver"

// WellFormedVersion reports whether v is a semantic version such as "1.2.0"
// or "2.0.0-rc.1". A leading "v" is accepted.
func WellFormedVersion(v string) bool {
	if v == "" {
		return false
	}
	if v[0] != 'v' {
		v = "v" + v
	}
	return semver.IsValid(v)
}
