// Package cli implements the migwasm command's subcommands on
// github.com/spf13/cobra and github.com/spf13/pflag, the CLI stack the
// moby-moby pack repo standardizes on, in place of the teacher's raw
// flag-based cmd/wazero.
package cli

import (
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
)

// version is stamped at release time via -ldflags; "dev" otherwise.
var version = "dev"

// NewRootCommand builds the migwasm command tree: run, compile, checkpoint,
// restore, version.
func NewRootCommand() *cobra.Command {
	log := logrus.New()

	root := &cobra.Command{
		Use:           "migwasm",
		Short:         "Run and migrate WebAssembly 1.0 modules",
		SilenceUsage:  true,
		SilenceErrors: false,
	}

	var verbose bool
	root.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "enable debug logging")
	root.PersistentPreRun = func(cmd *cobra.Command, args []string) {
		if verbose {
			log.SetLevel(logrus.DebugLevel)
		}
	}

	root.AddCommand(
		newRunCommand(log),
		newCompileCommand(log),
		newCheckpointCommand(log),
		newRestoreCommand(log),
		newVersionCommand(),
	)
	return root
}

func newVersionCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the migwasm version",
		RunE: func(cmd *cobra.Command, args []string) error {
			cmd.Println(version)
			return nil
		},
	}
}
