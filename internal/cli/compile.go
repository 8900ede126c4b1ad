package cli

import (
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/migwasm/migwasm"
)

func newCompileCommand(log *logrus.Logger) *cobra.Command {
	return &cobra.Command{
		Use:   "compile <module.wasm>",
		Short: "Decode a module and print its function/export summary",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			rt := migwasm.NewRuntime(migwasm.NewRuntimeConfig().WithLogger(log))
			cm, err := compileFile(rt, args[0])
			if err != nil {
				return err
			}
			printSummary(cmd, cm)
			return nil
		},
	}
}

func printSummary(cmd *cobra.Command, cm *migwasm.CompiledModule) {
	cmd.Println(cm.String())
	for _, name := range cm.ExportedFunctionNames() {
		cmd.Printf("  export func %s\n", name)
	}
}
