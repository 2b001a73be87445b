// This program performs administrative tasks for the miner.
package main

import (
	"os"

	"github.com/ardanlabs/blockminer/app/tooling/admin/cmd"
)

func main() {
	if err := cmd.NewRoot().Execute(); err != nil {
		os.Exit(1)
	}
}
