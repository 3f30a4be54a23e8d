// Command repcore runs the repcore CLI: a replicated, conflict-free
// sequence engine for collaborative editing, minting identifiers,
// integrating operations, and converging across peers without a central
// coordinator.
package main

import (
	"fmt"
	"os"

	"github.com/roach88/repcore/internal/cli"
)

func main() {
	root := cli.NewRootCommand()
	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(cli.GetExitCode(err))
	}
}
