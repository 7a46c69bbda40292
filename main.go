// SPDX-License-Identifier: MPL-2.0

package main

import cmd "github.com/uidreg/uidreg/cmd/uidreg"

func main() {
	cmd.Execute()
}
