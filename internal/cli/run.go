package cli

import (
	"fmt"
	"syscall"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/migwasm/migwasm"
	"github.com/migwasm/migwasm/internal/checkpoint"
	"github.com/migwasm/migwasm/internal/trace"
)

func newRunCommand(log *logrus.Logger) *cobra.Command {
	var (
		invoke       string
		argsCSV      string
		imageDir     string
		onSignal     bool
		doTrace      bool
		dispatchStop uint64
	)

	cmd := &cobra.Command{
		Use:   "run <module.wasm>",
		Short: "Instantiate a module and invoke one of its exports",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			callArgs, err := parseArgs(argsCSV)
			if err != nil {
				return err
			}

			cfg := migwasm.NewRuntimeConfig().WithLogger(log)
			if imageDir != "" {
				cfg = cfg.WithImageDir(imageDir)
			}
			if onSignal {
				cfg = cfg.WithCheckpointSignal(syscall.SIGINT)
			}
			if dispatchStop > 0 {
				cfg = cfg.WithDispatchLimit(dispatchStop)
			}

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

			if doTrace {
				inst.SetListener(trace.NewLogrusListener(log))
			}

			results, suspended, err := inst.Invoke(invoke, callArgs...)
			if err != nil {
				return err
			}
			if suspended {
				log.Info("run: execution suspended, writing checkpoint image")
				if imageDir == "" {
					return fmt.Errorf("run: suspended but no --image-dir given to checkpoint into")
				}
				return rt.Checkpoint(checkpoint.NewDirImageStore(imageDir), inst)
			}

			cmd.Println(formatResults(results))
			return nil
		},
	}

	cmd.Flags().StringVar(&invoke, "invoke", "_start", "exported function to call")
	cmd.Flags().StringVar(&argsCSV, "args", "", "comma-separated i64 arguments")
	cmd.Flags().StringVar(&imageDir, "image-dir", "", "directory to write a checkpoint image to if execution suspends")
	cmd.Flags().BoolVar(&onSignal, "checkpoint-on-signal", false, "request a checkpoint on SIGINT instead of exiting")
	cmd.Flags().BoolVar(&doTrace, "trace", false, "log every function call and return")
	cmd.Flags().Uint64Var(&dispatchStop, "dispatch-limit", 0, "force a checkpoint after N dispatched opcodes (testing)")
	return cmd
}

func formatResults(results []uint64) string {
	if len(results) == 0 {
		return ""
	}
	s := ""
	for i, r := range results {
		if i > 0 {
			s += " "
		}
		s += fmt.Sprintf("%d", r)
	}
	return s
}
