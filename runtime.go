package migwasm

import (
	"os"
	"os/signal"
	"time"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	"github.com/migwasm/migwasm/api"
	"github.com/migwasm/migwasm/internal/binary"
	"github.com/migwasm/migwasm/internal/checkpoint"
	"github.com/migwasm/migwasm/internal/interp"
	"github.com/migwasm/migwasm/internal/trace"
	"github.com/migwasm/migwasm/internal/wasm"
)

// Runtime compiles and instantiates WebAssembly 1.0 binaries, the way the
// teacher's wazero.Runtime does, but scoped to this module's feature set:
// no AOT/JIT backend (internal/interp is the only engine) and an added
// checkpoint/restore lifecycle (spec.md §4.7/4.8).
type Runtime struct {
	cfg *RuntimeConfig
}

// NewRuntime builds a Runtime from cfg. A nil cfg uses NewRuntimeConfig().
func NewRuntime(cfg *RuntimeConfig) *Runtime {
	if cfg == nil {
		cfg = NewRuntimeConfig()
	}
	return &Runtime{cfg: cfg}
}

// CompiledModule is a decoded, loader-validated module (internal/wasm.Module)
// ready to be instantiated. Distinct from Instance the same way the
// teacher's CompiledCode is distinct from api.Module: one CompiledModule can
// back many Instances.
type CompiledModule struct {
	module *wasm.Module
}

// ExportedFunctionNames lists every Func export's name, in Export-section
// order.
func (cm *CompiledModule) ExportedFunctionNames() []string {
	var names []string
	for _, exp := range cm.module.Exports {
		if exp.Type == api.ExternTypeFunc {
			names = append(names, exp.Name)
		}
	}
	return names
}

// FunctionCount returns the size of the module's function index space
// (imports plus locally defined functions).
func (cm *CompiledModule) FunctionCount() int { return len(cm.module.Functions) }

// MemoryCount returns the number of linear memories the module declares.
func (cm *CompiledModule) MemoryCount() int { return len(cm.module.Memories) }

// String summarizes the module the way wasm.Module.String does, for CLI
// diagnostics.
func (cm *CompiledModule) String() string { return cm.module.String() }

// CompileModule decodes raw WebAssembly bytes (internal/binary.Decode),
// computing the loader bounds spec.md §3 requires before any instantiation.
func (r *Runtime) CompileModule(wasmBytes []byte) (*CompiledModule, error) {
	m, err := binary.Decode(wasmBytes)
	if err != nil {
		return nil, errors.Wrap(err, "migwasm: compile module")
	}
	return &CompiledModule{module: m}, nil
}

// Instance is one instantiation of a CompiledModule: a mutable
// wasm.ModuleInstance plus the interp.Executor that dispatches calls
// against it (spec.md §3/§4).
type Instance struct {
	rt  *Runtime
	mi  *wasm.ModuleInstance
	ex  *interp.Executor
	log *logrus.Logger

	stopSignal func()
}

// frameCeiling is the default call-stack depth limit (spec.md §4.1:
// "FrameAllocator ... callStackCeiling"), generous enough for the
// recursive test programs in spec.md §8 without allowing runaway
// recursion to exhaust the process.
const frameCeiling = 2048

// Instantiate builds an Instance from cm, resolving any func imports
// against host, then running the module's data/element segments and (unless
// the config is WithRestore) its start function.
func (r *Runtime) Instantiate(cm *CompiledModule, host ...HostFunc) (*Instance, error) {
	mi, err := instantiate(cm.module, host)
	if err != nil {
		return nil, errors.Wrap(err, "migwasm: instantiate")
	}

	ex := interp.NewExecutor(mi, frameCeiling)
	if r.cfg.dispatchLimit > 0 {
		ex.SetDispatchLimit(r.cfg.dispatchLimit)
	}

	inst := &Instance{rt: r, mi: mi, ex: ex, log: r.cfg.log}

	if r.cfg.checkpointSignal != nil {
		inst.armCheckpointSignal(r.cfg.checkpointSignal)
	}

	if !r.cfg.restore && cm.module.StartFunctionIndex != nil {
		if _, _, err := ex.Invoke(*cm.module.StartFunctionIndex, nil); err != nil {
			return nil, errors.Wrap(err, "migwasm: start function")
		}
	}

	return inst, nil
}

// armCheckpointSignal wires sig to Instance.RequestCheckpoint (spec.md §6
// "Environment": SIGINT-style suspend-and-dump), logging when it fires.
func (inst *Instance) armCheckpointSignal(sig os.Signal) {
	ch := make(chan os.Signal, 1)
	signal.Notify(ch, sig)
	done := make(chan struct{})
	go func() {
		select {
		case <-ch:
			inst.log.WithField("signal", sig).Info("migwasm: checkpoint requested by signal")
			inst.RequestCheckpoint()
		case <-done:
		}
	}()
	inst.stopSignal = func() {
		signal.Stop(ch)
		close(done)
	}
}

// Close releases the signal handler armed by WithCheckpointSignal, if any.
func (inst *Instance) Close() {
	if inst.stopSignal != nil {
		inst.stopSignal()
	}
}

// ExportedFunctionIndex resolves a Func export by name to its function
// index (spec.md §3 function index space).
func (inst *Instance) ExportedFunctionIndex(name string) (uint32, error) {
	for _, exp := range inst.mi.Module.Exports {
		if exp.Name == name && exp.Type == api.ExternTypeFunc {
			return exp.Index, nil
		}
	}
	return 0, errors.Errorf("migwasm: no exported function %q", name)
}

// SetListener arms a function-call tracer on this Instance's executor; pass
// nil to disarm.
func (inst *Instance) SetListener(l trace.Listener) { inst.ex.SetListener(l) }

// Invoke calls the exported function name with args, returning early with
// suspended=true if a checkpoint was requested mid-call (spec.md §4.6).
func (inst *Instance) Invoke(name string, args ...uint64) (results []uint64, suspended bool, err error) {
	idx, err := inst.ExportedFunctionIndex(name)
	if err != nil {
		return nil, false, err
	}
	return inst.ex.Invoke(idx, args)
}

// InvokeIndex calls the function at idx directly, bypassing export
// resolution; used by the CLI and tests that already know the index.
func (inst *Instance) InvokeIndex(idx uint32, args ...uint64) (results []uint64, suspended bool, err error) {
	return inst.ex.Invoke(idx, args)
}

// RequestCheckpoint asks the dispatcher to suspend at the next opcode
// boundary. Safe to call from another goroutine or signal handler.
func (inst *Instance) RequestCheckpoint() { inst.ex.RequestCheckpoint() }

// Suspended reports whether the last Invoke/Resume stopped because of a
// checkpoint request rather than returning normally.
func (inst *Instance) Suspended() bool { return inst.ex.Suspended() }

// Resume continues a suspended Instance from where it stopped.
func (inst *Instance) Resume() (results []uint64, suspended bool, err error) {
	return inst.ex.Resume(inst.ex.CurrentFrame())
}

// StackTrace renders the current call stack (spec.md §7 "optional").
func (inst *Instance) StackTrace() []string { return inst.ex.StackTrace() }

// Checkpoint serializes inst's suspended execution state to store (spec.md
// §4.7). inst must be suspended (Suspended() == true).
func (r *Runtime) Checkpoint(store checkpoint.ImageStore, inst *Instance) error {
	eng := checkpoint.NewEngine(r.cfg.log)
	start := time.Now()
	err := eng.Snapshot(store, inst.ex)
	r.cfg.log.WithFields(logrus.Fields{
		"duration_ms": time.Since(start).Milliseconds(),
		"err":         err,
	}).Info("migwasm: checkpoint")
	return err
}

// Restore reconstructs an Instance from a checkpoint image written against
// cm (spec.md §4.8): the destination is freshly instantiated with the
// config's WithRestore(true) so data/element/global initialization happens
// exactly as it did for the source instance, but the start function is not
// re-invoked — Resume continues the restored call instead.
func (r *Runtime) Restore(store checkpoint.ImageStore, cm *CompiledModule, host ...HostFunc) (*Instance, error) {
	restoreCfg := r.cfg.WithRestore(true)
	restoreRT := &Runtime{cfg: restoreCfg}

	mi, err := instantiate(cm.module, host)
	if err != nil {
		return nil, errors.Wrap(err, "migwasm: restore instantiate")
	}

	eng := checkpoint.NewEngine(r.cfg.log)
	start := time.Now()
	ex, err := eng.Restore(store, mi, frameCeiling)
	r.cfg.log.WithFields(logrus.Fields{
		"duration_ms": time.Since(start).Milliseconds(),
		"err":         err,
	}).Info("migwasm: restore")
	if err != nil {
		return nil, errors.Wrap(err, "migwasm: restore")
	}

	inst := &Instance{rt: restoreRT, mi: mi, ex: ex, log: r.cfg.log}
	if restoreCfg.checkpointSignal != nil {
		inst.armCheckpointSignal(restoreCfg.checkpointSignal)
	}
	return inst, nil
}
