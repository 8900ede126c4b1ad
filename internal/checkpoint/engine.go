package checkpoint

import (
	"bytes"
	"io"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	"github.com/migwasm/migwasm/internal/interp"
	"github.com/migwasm/migwasm/internal/wasm"
)

// Engine drives Snapshot/Restore (spec.md §4.7, §4.8). It owns the dirty-
// page tracker and emits structured lifecycle logging the way the teacher's
// ambient stack does for long-running operations, never on the dispatch
// path itself.
type Engine struct {
	log     *logrus.Logger
	tracker *dirtyPageTracker

	lastDuration time.Duration
}

// NewEngine builds an Engine. A nil logger defaults to logrus's standard
// logger.
func NewEngine(log *logrus.Logger) *Engine {
	if log == nil {
		log = logrus.StandardLogger()
	}
	return &Engine{log: log, tracker: newDirtyPageTracker()}
}

// LastDuration reports how long the most recent Snapshot or Restore call
// took (supplemented get_time feature, SPEC_FULL.md §6).
func (e *Engine) LastDuration() time.Duration { return e.lastDuration }

// ArmDirtyTracking resets the soft-dirty bits so the next Snapshot call
// reports only pages written since this point, rather than every resident
// page from process start. Call this once, right after instantiation,
// before running any wasm code.
func (e *Engine) ArmDirtyTracking() { e.tracker.clearRefs() }

// Snapshot dumps ex's suspended state into store as the six image files
// spec.md §6 defines, plus the supplemented session.img. ex must have suspended via RequestCheckpoint/
// SetDispatchLimit; calling Snapshot on a running or trapped executor is a
// programming error.
func (e *Engine) Snapshot(store ImageStore, ex *interp.Executor) (err error) {
	if !ex.Suspended() {
		return errors.New("checkpoint: Snapshot called on an executor that is not suspended")
	}
	sessionID := uuid.New()
	start := time.Now()
	e.log.WithFields(logrus.Fields{"session_id": sessionID, "event": "snapshot_started"}).Info("checkpoint: snapshot started")
	defer func() {
		e.lastDuration = time.Since(start)
		fields := logrus.Fields{"session_id": sessionID, "event": "snapshot_completed", "duration_ms": e.lastDuration.Milliseconds()}
		if err != nil {
			fields["error"] = err.Error()
			e.log.WithFields(fields).Error("checkpoint: snapshot failed")
		} else {
			e.log.WithFields(fields).Info("checkpoint: snapshot completed")
		}
	}()

	mi := ex.Module()

	if err := e.snapshotSession(store, sessionID); err != nil {
		return errors.Wrap(err, "checkpoint: writing session.img")
	}
	if err := e.snapshotMemory(store, mi); err != nil {
		return errors.Wrap(err, "checkpoint: snapshotting memory")
	}
	if err := e.snapshotGlobals(store, mi); err != nil {
		return errors.Wrap(err, "checkpoint: snapshotting globals")
	}

	var frames []*interp.Frame
	for f := ex.CurrentFrame(); f != nil; f = f.Prev {
		frames = append(frames, f)
	}
	if len(frames) == 0 {
		return errors.New("checkpoint: executor has no active frame to snapshot")
	}

	if err := e.snapshotFrameCount(store, len(frames)); err != nil {
		return errors.Wrap(err, "checkpoint: writing frame.img")
	}
	if err := e.snapshotProgramCounter(store, frames[0]); err != nil {
		return errors.Wrap(err, "checkpoint: writing program_counter.img")
	}
	for i, f := range frames {
		if err := e.snapshotStack(store, i+1, f); err != nil {
			return errors.Wrapf(err, "checkpoint: writing stack%d.img", i+1)
		}
	}
	return nil
}

// snapshotSession stamps the image with a session id (supplemented
// correctness aid, SPEC_FULL.md §3: not one of spec.md's six mandated
// files, so restore tolerates a missing session.img without error or log).
func (e *Engine) snapshotSession(store ImageStore, id uuid.UUID) error {
	w, err := store.Create(fileSessionMeta)
	if err != nil {
		return err
	}
	defer w.Close()
	_, err = w.Write([]byte(id.String()))
	return err
}

func (e *Engine) snapshotMemory(store ImageStore, mi *wasm.ModuleInstance) error {
	if len(mi.Memories) == 0 {
		return nil
	}
	mem := mi.Memories[0]

	cw, err := store.Create(fileMemPageCnt)
	if err != nil {
		return err
	}
	if err := writeU32(cw, mem.PageCount()); err != nil {
		cw.Close()
		return err
	}
	if err := cw.Close(); err != nil {
		return err
	}

	dirty, ok := e.tracker.dirtyPages(mem.Buffer)
	if !ok {
		dirty = nil
	}
	mw, err := store.Create(fileMemory)
	if err != nil {
		return err
	}
	defer mw.Close()
	return writeMemoryImage(mw, mem, dirty)
}

func (e *Engine) snapshotGlobals(store ImageStore, mi *wasm.ModuleInstance) error {
	w, err := store.Create(fileGlobal)
	if err != nil {
		return err
	}
	defer w.Close()
	return writeGlobalImage(w, mi)
}

func (e *Engine) snapshotFrameCount(store ImageStore, n int) error {
	w, err := store.Create(fileFrameCount)
	if err != nil {
		return err
	}
	defer w.Close()
	return writeU32(w, uint32(n))
}

func (e *Engine) snapshotProgramCounter(store ImageStore, top *interp.Frame) error {
	w, err := store.Create(fileProgramCtr)
	if err != nil {
		return err
	}
	defer w.Close()
	if err := writeU32(w, top.Function.Index); err != nil {
		return err
	}
	return writeU32(w, uint32(top.IP))
}

func (e *Engine) snapshotStack(store ImageStore, i int, f *interp.Frame) error {
	w, err := store.Create(stackFile(i))
	if err != nil {
		return err
	}
	defer w.Close()
	return writeFrameImage(w, f)
}

// Restore reconstructs a suspended Executor from the image in store
// (spec.md §4.8). mi must be a freshly instantiated ModuleInstance of the
// same module the image was taken from, with its Memories/Globals already
// allocated at their declared minimums; Restore grows and overwrites them
// in place. The returned Executor has its frame chain fully wired and its
// current frame set, but dispatch has not resumed; call
// ex.Resume(ex.CurrentFrame()) to continue running.
func (e *Engine) Restore(store ImageStore, mi *wasm.ModuleInstance, frameCeiling int) (ex *interp.Executor, err error) {
	start := time.Now()
	sessionID := uuid.New()
	e.log.WithFields(logrus.Fields{"session_id": sessionID, "event": "restore_started"}).Info("checkpoint: restore started")
	defer func() {
		e.lastDuration = time.Since(start)
		fields := logrus.Fields{"session_id": sessionID, "event": "restore_completed", "duration_ms": e.lastDuration.Milliseconds()}
		if err != nil {
			fields["error"] = err.Error()
			e.log.WithFields(fields).Error("checkpoint: restore failed")
		} else {
			e.log.WithFields(fields).Info("checkpoint: restore completed")
		}
	}()

	if original, ok := e.readSession(store); ok {
		e.log.WithFields(logrus.Fields{"session_id": sessionID, "original_session_id": original}).Info("checkpoint: restoring image taken by session")
	}

	if err := restoreMemory(store, mi); err != nil {
		return nil, errors.Wrap(err, "checkpoint: restoring memory")
	}
	if err := restoreGlobals(store, mi); err != nil {
		return nil, errors.Wrap(err, "checkpoint: restoring globals")
	}

	frameCount, err := restoreFrameCount(store)
	if err != nil {
		return nil, errors.Wrap(err, "checkpoint: reading frame.img")
	}
	if frameCount == 0 {
		return nil, errors.New("checkpoint: frame.img declares zero frames")
	}

	ex = interp.NewExecutor(mi, frameCeiling)

	var prev *interp.Frame
	for i := int(frameCount); i >= 1; i-- {
		f, err := restoreOneFrame(store, i, mi, ex, prev)
		if err != nil {
			return nil, errors.Wrapf(err, "checkpoint: restoring stack%d.img", i)
		}
		prev = f
	}
	top := prev // i==1 was restored last, so prev now holds the innermost frame

	pcFidx, pcOffset, err := restoreProgramCounter(store)
	if err != nil {
		return nil, errors.Wrap(err, "checkpoint: reading program_counter.img")
	}
	if pcFidx != top.Function.Index {
		return nil, errors.Errorf("checkpoint: program_counter.img fidx %d disagrees with stack1.img entry_fidx %d", pcFidx, top.Function.Index)
	}
	if int(pcOffset) > len(top.Function.Code.Body) {
		return nil, errors.New("checkpoint: program_counter.img offset out of range")
	}
	top.IP = int(pcOffset)
	ex.SetCurrentFrame(top)

	return ex, nil
}

// readSession returns the session id the image was taken under, if
// session.img is present; its absence is tolerated since it's a
// supplemented file, not one of spec.md's six mandated ones.
func (e *Engine) readSession(store ImageStore) (string, bool) {
	r, err := store.Open(fileSessionMeta)
	if err != nil {
		return "", false
	}
	defer r.Close()
	raw, err := io.ReadAll(r)
	if err != nil {
		return "", false
	}
	return string(raw), true
}

func restoreMemory(store ImageStore, mi *wasm.ModuleInstance) error {
	if len(mi.Memories) == 0 {
		return nil
	}
	mem := mi.Memories[0]

	cr, err := store.Open(fileMemPageCnt)
	if err != nil {
		return err
	}
	pageCount, err := readU32(cr)
	cr.Close()
	if err != nil {
		return errors.Wrap(err, "reading mem_page_count.img")
	}
	if pageCount > mem.PageCount() {
		if _, ok := mem.Grow(pageCount - mem.PageCount()); !ok {
			return errors.New("checkpoint: failed to grow memory to restored page count")
		}
	} else if pageCount < mem.PageCount() {
		return errors.New("checkpoint: restored page count is smaller than the instance's initial memory")
	}

	mr, err := store.Open(fileMemory)
	if err != nil {
		return err
	}
	defer mr.Close()
	return applyMemoryImage(mr, mem)
}

func restoreGlobals(store ImageStore, mi *wasm.ModuleInstance) error {
	r, err := store.Open(fileGlobal)
	if err != nil {
		return err
	}
	defer r.Close()
	return readGlobalImage(r, mi)
}

func restoreFrameCount(store ImageStore) (uint32, error) {
	r, err := store.Open(fileFrameCount)
	if err != nil {
		return 0, err
	}
	defer r.Close()
	return readU32(r)
}

func restoreProgramCounter(store ImageStore) (fidx, offset uint32, err error) {
	r, err := store.Open(fileProgramCtr)
	if err != nil {
		return 0, 0, err
	}
	defer r.Close()
	if fidx, err = readU32(r); err != nil {
		return 0, 0, err
	}
	offset, err = readU32(r)
	return fidx, offset, err
}

// restoreOneFrame reads stack<i>.img fully (it's small) so it can peek
// entry_fidx, look up the owning function's loader-computed bounds, and
// then decode the rest of the record against those bounds.
func restoreOneFrame(store ImageStore, i int, mi *wasm.ModuleInstance, ex *interp.Executor, prev *interp.Frame) (*interp.Frame, error) {
	rc, err := store.Open(stackFile(i))
	if err != nil {
		return nil, err
	}
	raw, err := io.ReadAll(rc)
	rc.Close()
	if err != nil {
		return nil, err
	}

	br := bytes.NewReader(raw)
	entryFidx, err := readU32(br)
	if err != nil {
		return nil, err
	}
	fn := mi.Function(entryFidx)
	if fn == nil || fn.Code == nil {
		return nil, errors.Errorf("checkpoint: stack%d.img refers to unknown or host function %d", i, entryFidx)
	}

	br.Seek(0, io.SeekStart)
	img, err := readFrameImage(br, fn)
	if err != nil {
		return nil, err
	}

	f, err := ex.AllocRestoredFrame(fn, prev)
	if err != nil {
		return nil, err
	}
	copy(f.Locals, img.localsCells)
	copy(f.Cells, img.valueStackCells)
	f.SP = len(img.valueStackCells)
	copy(f.Tags, img.typeTags)
	f.TSP = len(img.typeTags)
	copy(f.Ctrl, img.ctrl)
	f.CSP = len(img.ctrl)

	// img.returnFidx/returnOffset describe where *this* frame's caller
	// (prev, already linked by AllocRestoredFrame) resumes once this frame
	// eventually returns; prev's own stack<i+1>.img never records this
	// because that information only exists on the callee's side.
	if prev != nil && img.returnFidx != noReturnSentinel {
		if prev.Function.Index != img.returnFidx {
			return nil, errors.Errorf("checkpoint: stack%d.img return_fidx %d disagrees with caller frame's function %d", i, img.returnFidx, prev.Function.Index)
		}
		prev.IP = int(img.returnOffset)
	}

	return f, nil
}
