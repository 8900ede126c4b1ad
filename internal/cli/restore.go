package cli

import (
	"fmt"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/migwasm/migwasm"
	"github.com/migwasm/migwasm/internal/checkpoint"
)

func newRestoreCommand(log *logrus.Logger) *cobra.Command {
	var imageDir string

	cmd := &cobra.Command{
		Use:   "restore <module.wasm>",
		Short: "Restore a checkpoint image and resume execution to completion",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if imageDir == "" {
				return fmt.Errorf("restore: --image-dir is required")
			}

			cfg := migwasm.NewRuntimeConfig().WithLogger(log)
			rt := migwasm.NewRuntime(cfg)
			cm, err := compileFile(rt, args[0])
			if err != nil {
				return err
			}

			inst, err := rt.Restore(checkpoint.NewDirImageStore(imageDir), cm)
			if err != nil {
				return err
			}
			defer inst.Close()

			results, suspended, err := inst.Resume()
			if err != nil {
				return err
			}
			if suspended {
				return fmt.Errorf("restore: execution suspended again before completing; run checkpoint again against the new image")
			}

			cmd.Println(formatResults(results))
			return nil
		},
	}

	cmd.Flags().StringVar(&imageDir, "image-dir", "", "directory to read the image from")
	return cmd
}
