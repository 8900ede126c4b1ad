package cli

import (
	"fmt"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/migwasm/migwasm"
	"github.com/migwasm/migwasm/internal/checkpoint"
)

// newCheckpointCommand runs a module to a forced suspension point and dumps
// an image, useful for producing fixtures and migration drills without
// wiring up a real SIGINT (spec.md's Open Questions: dispatch-limit exists
// for exactly this kind of deterministic interruption).
func newCheckpointCommand(log *logrus.Logger) *cobra.Command {
	var (
		invoke        string
		argsCSV       string
		imageDir      string
		dispatchLimit uint64
	)

	cmd := &cobra.Command{
		Use:   "checkpoint <module.wasm>",
		Short: "Run a module to a forced suspension point and write an image",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if imageDir == "" {
				return fmt.Errorf("checkpoint: --image-dir is required")
			}
			if dispatchLimit == 0 {
				return fmt.Errorf("checkpoint: --dispatch-limit is required to force a deterministic suspension")
			}
			callArgs, err := parseArgs(argsCSV)
			if err != nil {
				return err
			}

			cfg := migwasm.NewRuntimeConfig().WithLogger(log).WithDispatchLimit(dispatchLimit)
			rt := migwasm.NewRuntime(cfg)
			cm, err := compileFile(rt, args[0])
			if err != nil {
				return err
			}
			inst, err := rt.Instantiate(cm)
			if err != nil {
				return err
			}
			defer inst.Close()

			_, suspended, err := inst.Invoke(invoke, callArgs...)
			if err != nil {
				return err
			}
			if !suspended {
				return fmt.Errorf("checkpoint: module ran to completion before the dispatch limit; raise --dispatch-limit or pick a longer-running export")
			}

			if err := rt.Checkpoint(checkpoint.NewDirImageStore(imageDir), inst); err != nil {
				return err
			}
			cmd.Printf("checkpoint: wrote image to %s\n", imageDir)
			return nil
		},
	}

	cmd.Flags().StringVar(&invoke, "invoke", "_start", "exported function to call")
	cmd.Flags().StringVar(&argsCSV, "args", "", "comma-separated i64 arguments")
	cmd.Flags().StringVar(&imageDir, "image-dir", "", "directory to write the image to")
	cmd.Flags().Uint64Var(&dispatchLimit, "dispatch-limit", 0, "force suspension after N dispatched opcodes")
	return cmd
}
