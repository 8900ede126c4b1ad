package interp

import (
	"sync/atomic"

	"github.com/pkg/errors"

	"github.com/migwasm/migwasm/internal/trace"
	"github.com/migwasm/migwasm/internal/wasm"
)

// State is the executor's coarse-grained run state (spec.md §5): the
// dispatcher polls CheckpointRequested before every opcode fetch so
// suspension only ever happens at an opcode boundary, where every frame
// invariant holds.
type State int32

const (
	StateRunning State = iota
	StateTrapped
	StateCheckpointing
)

// Executor runs one ModuleInstance's bytecode (spec.md §3/§4). It owns a
// FrameAllocator arena and the explicit, non-recursive call chain needed so
// a checkpoint can be taken between any two opcodes without unwinding a Go
// call stack: `call`/`return_call` push/replace the current frame in the
// loop in dispatch.go rather than recursing through Go function calls,
// mirroring the teacher's callEngine loop
// (internal/engine/interpreter/interpreter.go) but keeping every frame
// reachable via Frame.Prev instead of Go's native stack.
type Executor struct {
	module *wasm.ModuleInstance
	frames *FrameAllocator

	cur   *Frame
	state atomic.Int32

	// checkpointRequested is polled once per opcode (spec.md §5).
	checkpointRequested atomic.Bool

	// dispatchLimit, when non-zero, forces StateCheckpointing after this
	// many opcodes have been dispatched. Set through SetDispatchLimit, which
	// tests, RuntimeConfig.WithDispatchLimit and the CLI's --dispatch-limit
	// use (spec.md's Open Questions around a deterministic, reproducible
	// migration point).
	dispatchLimit uint64
	dispatched    uint64

	// listener, when set, observes every call/return boundary (spec.md
	// §4.5); nil by default so tracing costs nothing unless armed.
	listener trace.Listener

	// StackTrace() walks the Frame chain on each call; no trace is cached.
}

// SetListener arms a function-call tracer. Pass nil to disarm.
func (e *Executor) SetListener(l trace.Listener) { e.listener = l }

// NewExecutor builds an Executor bound to a module instance with a frame
// arena ceiling (spec.md §4.1's callStackCeiling analogue).
func NewExecutor(mi *wasm.ModuleInstance, frameCeiling int) *Executor {
	return &Executor{
		module: mi,
		frames: NewFrameAllocator(frameCeiling),
	}
}

// RequestCheckpoint asks the dispatcher to suspend at the next opcode
// boundary (spec.md §5). Safe to call from another goroutine.
func (e *Executor) RequestCheckpoint() { e.checkpointRequested.Store(true) }

// SetDispatchLimit forces a checkpoint after n dispatched opcodes; used by
// tests that need a deterministic suspension point instead of racing a
// real signal.
func (e *Executor) SetDispatchLimit(n uint64) { e.dispatchLimit = n }

// Suspended reports whether the last Invoke or Resume call returned because a
// checkpoint was requested rather than because the call completed.
func (e *Executor) Suspended() bool { return State(e.state.Load()) == StateCheckpointing }

// CurrentFrame exposes the innermost active frame, the entry point the
// checkpoint engine walks via Frame.Prev to serialize the whole call chain.
func (e *Executor) CurrentFrame() *Frame { return e.cur }

// Module returns the module instance this executor runs against.
func (e *Executor) Module() *wasm.ModuleInstance { return e.module }

// Invoke calls the exported/local function at idx with args (logical
// values, one uint64 per parameter; I64/F64 use the full width, I32/F32
// use the low 32 bits) and runs to completion or suspension (spec.md §4.5,
// §4.7). On suspension, err is nil and suspended is true: the caller should
// proceed straight to a checkpoint dump rather than treating this as an
// error.
func (e *Executor) Invoke(idx uint32, args []uint64) (results []uint64, suspended bool, err error) {
	fn := e.module.Function(idx)
	if fn == nil {
		return nil, false, errors.Wrap(TrapUnknownFunction, "interp: Invoke")
	}
	if fn.IsHostFunction() {
		return e.invokeHostTopLevel(fn, args)
	}
	if fn.Code == nil {
		return nil, false, errors.Wrap(TrapUnlinkedImport, "interp: Invoke")
	}
	entry, err := e.frames.Alloc(fn, nil)
	if err != nil {
		return nil, false, err
	}
	if err := seedArgs(entry, fn, args); err != nil {
		e.frames.Free(entry)
		return nil, false, err
	}
	entry.PushControl(LabelFunction, 0, len(fn.Code.Body), fn.Type.ResultCells, fn.Type.ResultCount)
	if e.listener != nil {
		e.listener.Before(fn, args)
	}
	e.cur = entry
	return e.run()
}

// Resume continues execution from a previously-restored frame chain
// (spec.md §4.8), set up directly by the checkpoint engine instead of
// through Invoke/seedArgs.
func (e *Executor) Resume(top *Frame) (results []uint64, suspended bool, err error) {
	e.cur = top
	return e.run()
}

// AllocRestoredFrame reserves a frame from this executor's own arena on
// behalf of the checkpoint engine's restore path (spec.md §4.8 step 4),
// so the allocator's depth bookkeeping stays correct for every frame
// Restore reconstructs, exactly as if each had been pushed by a live call.
func (e *Executor) AllocRestoredFrame(fn *wasm.Function, prev *Frame) (*Frame, error) {
	return e.frames.Alloc(fn, prev)
}

// SetCurrentFrame lets the checkpoint engine park the innermost reconstructed
// frame as e.cur once Restore finishes building the chain, so CurrentFrame
// and a later Resume(ex.CurrentFrame()) see a fully-wired executor without
// starting dispatch themselves.
func (e *Executor) SetCurrentFrame(top *Frame) { e.cur = top }

// invokeHostTopLevel calls a host function directly, for the (uncommon)
// case where the embedder invokes an imported function by index with no
// wasm frame involved at all.
func (e *Executor) invokeHostTopLevel(fn *wasm.Function, args []uint64) (results []uint64, suspended bool, err error) {
	results, err = fn.GoFunc(args)
	if err != nil {
		return nil, false, err
	}
	return results, false, nil
}

func seedArgs(f *Frame, fn *wasm.Function, args []uint64) error {
	if len(args) != len(fn.Type.Params) {
		return errors.Errorf("interp: expected %d arguments, got %d", len(fn.Type.Params), len(args))
	}
	cell := 0
	for i, pt := range fn.Type.Params {
		if pt == 0x7e || pt == 0x7c {
			f.Locals[cell] = uint32(args[i])
			f.Locals[cell+1] = uint32(args[i] >> 32)
			cell += 2
		} else {
			f.Locals[cell] = uint32(args[i])
			cell++
		}
	}
	return nil
}

// run drives the dispatch loop (dispatch.go) and classifies its outcome.
func (e *Executor) run() (results []uint64, suspended bool, err error) {
	defer func() {
		if r := recover(); r != nil {
			switch v := r.(type) {
			case TrapError:
				e.state.Store(int32(StateTrapped))
				err = v
			case FatalError:
				panic(v) // programming error: no local recovery (spec.md §7)
			default:
				panic(r)
			}
		}
	}()

	e.state.Store(int32(StateRunning))
	for {
		if e.checkpointRequested.Load() || (e.dispatchLimit != 0 && e.dispatched >= e.dispatchLimit) {
			e.state.Store(int32(StateCheckpointing))
			return nil, true, nil
		}
		done, res := e.step()
		if done {
			return res, false, nil
		}
	}
}

// StackTrace renders the current call chain, innermost first, for
// diagnostics (a feature the C original exposes via its call-stack dumper;
// not part of the checkpoint image itself).
func (e *Executor) StackTrace() []string {
	var out []string
	for f := e.cur; f != nil; f = f.Prev {
		name := f.Function.DebugName
		if name == "" {
			name = "<anonymous>"
		}
		out = append(out, name)
	}
	return out
}
