// Command bqldb is a batch front end to a BQL database: it runs .bql
// scripts and one-shot queries against a database file.
package main

import (
	"fmt"
	"os"

	"github.com/inferlab/bqldb/internal/cli"
)

func main() {
	if err := cli.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}
