// SPDX-License-Identifier: GPL-3.0-or-later
package main

import (
	"os"

	"github.com/CrawX/go-mxctl/cli"
)

func main() {
	os.Exit(cli.Execute())
}
