// SPDX-License-Identifier: MPL-2.0

package main

import cmd "github.com/checkhook/checkhook/cmd/checkhook"

func main() {
	cmd.Execute()
}
