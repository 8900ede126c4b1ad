// Command migwasm runs, compiles, checkpoints, and restores WebAssembly 1.0
// modules under the migwasm interpreter. Rebuilt on cobra/pflag the way the
// pack's moby-moby cmd/ tree is, replacing the teacher's raw flag-based CLI.
package main

import (
	"fmt"
	"os"

	"github.com/migwasm/migwasm/internal/cli"
)

func main() {
	root := cli.NewRootCommand()
	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
