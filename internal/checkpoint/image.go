// Package checkpoint implements the migration engine: it serializes a
// suspended Executor's live state into the six-file image format spec.md §6
// defines, and reconstructs an Executor from that image on restore (spec.md
// §4.7, §4.8). Nothing in this package is on the opcode dispatch path; it
// only runs at a checkpoint/restore boundary, where the dispatcher has
// already suspended between two opcodes.
package checkpoint

import (
	"encoding/binary"
	"io"
	"os"
	"path/filepath"
	"sort"

	"github.com/pkg/errors"

	"github.com/migwasm/migwasm/api"
	"github.com/migwasm/migwasm/internal/interp"
	"github.com/migwasm/migwasm/internal/wasm"
)

// dirtyPageSize is the 4096-byte unit the checkpoint engine tracks dirty
// writes at (GLOSSARY "Page"), distinct from wasm.MemoryPageSize (65536, one
// WebAssembly linear-memory page).
const dirtyPageSize = 4096

const (
	fileMemory      = "memory.img"
	fileMemPageCnt  = "mem_page_count.img"
	fileGlobal      = "global.img"
	fileProgramCtr  = "program_counter.img"
	fileFrameCount  = "frame.img"
	fileSessionMeta = "session.img"
)

func stackFile(i int) string {
	return "stack" + itoa(i) + ".img"
}

// itoa avoids pulling in strconv just for this one call site's worth of
// small non-negative integers.
func itoa(n int) string {
	if n == 0 {
		return "0"
	}
	var buf [20]byte
	pos := len(buf)
	for n > 0 {
		pos--
		buf[pos] = byte('0' + n%10)
		n /= 10
	}
	return string(buf[pos:])
}

// ImageStore abstracts where the six image files live, so the engine isn't
// tied to the filesystem (supplemented feature, SPEC_FULL.md §6 — replaces
// the original's SGX-protected-FS `open_image` indirection with a plain Go
// interface; SGX/wasmedge-interop backends are out of scope, see DESIGN.md).
type ImageStore interface {
	Create(name string) (io.WriteCloser, error)
	Open(name string) (io.ReadCloser, error)
}

// DirImageStore is the vanilla ImageStore: one file per image component in a
// plain directory.
type DirImageStore struct {
	Dir string
}

// NewDirImageStore returns a DirImageStore rooted at dir, creating it lazily
// on the first Create call.
func NewDirImageStore(dir string) *DirImageStore { return &DirImageStore{Dir: dir} }

func (s *DirImageStore) Create(name string) (io.WriteCloser, error) {
	if err := os.MkdirAll(s.Dir, 0o755); err != nil {
		return nil, errors.Wrap(err, "checkpoint: creating image directory")
	}
	f, err := os.Create(filepath.Join(s.Dir, name))
	if err != nil {
		return nil, errors.Wrapf(err, "checkpoint: creating %s", name)
	}
	return f, nil
}

func (s *DirImageStore) Open(name string) (io.ReadCloser, error) {
	f, err := os.Open(filepath.Join(s.Dir, name))
	if err != nil {
		return nil, errors.Wrapf(err, "checkpoint: opening %s", name)
	}
	return f, nil
}

func writeU32(w io.Writer, v uint32) error {
	var buf [4]byte
	binary.LittleEndian.PutUint32(buf[:], v)
	_, err := w.Write(buf[:])
	return err
}

func readU32(r io.Reader) (uint32, error) {
	var buf [4]byte
	if _, err := io.ReadFull(r, buf[:]); err != nil {
		return 0, err
	}
	return binary.LittleEndian.Uint32(buf[:]), nil
}

// writeMemoryImage writes memory.img: one {page_offset, page} record per
// dirty page, sorted ascending by offset (spec.md §6). When dirty is nil
// (the platform can't report soft-dirty pages, see pagemap_unsupported.go)
// every resident page is treated as dirty.
func writeMemoryImage(w io.Writer, mem *wasm.Memory, dirty []uint32) error {
	if dirty == nil {
		dirty = allPageOffsets(len(mem.Buffer))
	} else {
		dirty = append([]uint32(nil), dirty...)
		sort.Slice(dirty, func(i, j int) bool { return dirty[i] < dirty[j] })
	}
	page := make([]byte, dirtyPageSize)
	for _, off := range dirty {
		for i := range page {
			page[i] = 0
		}
		end := int(off) + dirtyPageSize
		if end > len(mem.Buffer) {
			end = len(mem.Buffer)
		}
		copy(page, mem.Buffer[off:end])
		if err := writeU32(w, off); err != nil {
			return err
		}
		if _, err := w.Write(page); err != nil {
			return err
		}
	}
	return nil
}

func allPageOffsets(size int) []uint32 {
	n := (size + dirtyPageSize - 1) / dirtyPageSize
	out := make([]uint32, n)
	for i := range out {
		out[i] = uint32(i * dirtyPageSize)
	}
	return out
}

// applyMemoryImage reads memory.img and deposits each page record into mem,
// later writes winning on duplicate offsets (spec.md §4.8 step 1). mem must
// already have been grown to its restored page count.
func applyMemoryImage(r io.Reader, mem *wasm.Memory) error {
	page := make([]byte, dirtyPageSize)
	for {
		off, err := readU32(r)
		if err == io.EOF {
			return nil
		}
		if err != nil {
			return errors.Wrap(err, "checkpoint: reading memory.img record offset")
		}
		if _, err := io.ReadFull(r, page); err != nil {
			return errors.Wrap(err, "checkpoint: reading memory.img page")
		}
		end := int(off) + dirtyPageSize
		if end > len(mem.Buffer) {
			return errors.Errorf("checkpoint: memory.img page offset %d out of range", off)
		}
		copy(mem.Buffer[off:end], page)
	}
}

// writeGlobalImage writes global.img: 4 or 8 raw bytes per global, in
// declaration order across the whole global index space (spec.md §6).
func writeGlobalImage(w io.Writer, mi *wasm.ModuleInstance) error {
	for i := range mi.Globals {
		addr := mi.GlobalAddr(uint32(i))
		if _, err := w.Write(addr); err != nil {
			return err
		}
	}
	return nil
}

func readGlobalImage(r io.Reader, mi *wasm.ModuleInstance) error {
	for i := range mi.Globals {
		addr := mi.GlobalAddr(uint32(i))
		if _, err := io.ReadFull(r, addr); err != nil {
			return errors.Wrapf(err, "checkpoint: reading global.img entry %d", i)
		}
	}
	return nil
}

// frameImage is the decoded form of one stack<i>.img record (spec.md §6).
type frameImage struct {
	entryFidx    uint32
	returnFidx   uint32
	returnOffset uint32

	typeTags []byte // locals, then operand stack, in that order

	localsCells     []uint32
	valueStackCells []uint32

	ctrl []interp.ControlBlock
}

// noReturnSentinel marks a frame with no caller (the bottom of the chain,
// invoked directly by the host), since fidx 0 is a valid function index.
const noReturnSentinel = ^uint32(0)

func writeFrameImage(w io.Writer, f *interp.Frame) error {
	fn := f.Function
	localTypes := append(append([]api.ValueType(nil), fn.Type.Params...), fn.Code.LocalTypes...)

	returnFidx, returnOffset := noReturnSentinel, uint32(0)
	if f.Prev != nil {
		returnFidx = f.Prev.Function.Index
		returnOffset = uint32(f.Prev.IP)
	}

	tags := make([]byte, 0, len(localTypes)+f.TSP)
	for _, t := range localTypes {
		if api.IsI64(t) {
			tags = append(tags, 1)
		} else {
			tags = append(tags, 0)
		}
	}
	tags = append(tags, f.Tags[:f.TSP]...)

	if err := writeU32(w, fn.Index); err != nil {
		return err
	}
	if err := writeU32(w, returnFidx); err != nil {
		return err
	}
	if err := writeU32(w, returnOffset); err != nil {
		return err
	}
	if err := writeU32(w, uint32(len(tags))); err != nil {
		return err
	}
	if _, err := w.Write(tags); err != nil {
		return err
	}

	for _, c := range f.Locals {
		if err := writeU32(w, c); err != nil {
			return err
		}
	}
	for _, c := range f.Cells[:f.SP] {
		if err := writeU32(w, c); err != nil {
			return err
		}
	}

	if err := writeU32(w, uint32(f.CSP)); err != nil {
		return err
	}
	for i := 0; i < f.CSP; i++ {
		c := f.Ctrl[i]
		if err := writeU32(w, uint32(c.BeginAddr)); err != nil {
			return err
		}
		if err := writeU32(w, uint32(c.TargetAddr)); err != nil {
			return err
		}
		if err := writeU32(w, uint32(c.FrameSP)); err != nil {
			return err
		}
		if err := writeU32(w, uint32(c.FrameTSP)); err != nil {
			return err
		}
		if err := writeU32(w, uint32(c.CellNum)); err != nil {
			return err
		}
		if err := writeU32(w, uint32(c.Count)); err != nil {
			return err
		}
	}
	return nil
}

// controlLabelType reconstructs a ControlBlock's LabelType, which isn't one
// of the six fields spec.md §6's ctrl_records layout carries. Ctrl index 0
// is always the frame's implicit function-level block (spec.md §4.3); for
// any other index, BeginAddr is the byte right after the opcode that opened
// it (block/loop/if each push with beginAddr == the immediate's own start,
// which is IP post-increment past the opcode), so the opcode byte
// immediately preceding BeginAddr identifies which kind of block it is.
func controlLabelType(fn *wasm.Function, ctrlIndex, beginAddr int) (interp.LabelType, error) {
	if ctrlIndex == 0 {
		return interp.LabelFunction, nil
	}
	if beginAddr < 1 || beginAddr > len(fn.Code.Body) {
		return 0, errors.New("checkpoint: control-block begin offset out of range")
	}
	switch fn.Code.Body[beginAddr-1] {
	case interp.OpBlock:
		return interp.LabelBlock, nil
	case interp.OpLoop:
		return interp.LabelLoop, nil
	case interp.OpIf:
		return interp.LabelIf, nil
	default:
		return 0, errors.Errorf("checkpoint: control-block at %d does not follow a block/loop/if opcode", beginAddr)
	}
}

func readFrameImage(r io.Reader, fn *wasm.Function) (*frameImage, error) {
	entryFidx, err := readU32(r)
	if err != nil {
		return nil, err
	}
	returnFidx, err := readU32(r)
	if err != nil {
		return nil, err
	}
	returnOffset, err := readU32(r)
	if err != nil {
		return nil, err
	}
	tagCount, err := readU32(r)
	if err != nil {
		return nil, err
	}
	tags := make([]byte, tagCount)
	if _, err := io.ReadFull(r, tags); err != nil {
		return nil, errors.Wrap(err, "checkpoint: reading type_tags")
	}
	for _, t := range tags {
		if t != 0 && t != 1 {
			return nil, errors.Errorf("checkpoint: malformed type tag %d, must be 0 or 1", t)
		}
	}

	localCellNum := fn.ParamCellNum + fn.LocalCellNum
	localsCells := make([]uint32, localCellNum)
	for i := range localsCells {
		v, err := readU32(r)
		if err != nil {
			return nil, errors.Wrap(err, "checkpoint: reading locals_cells")
		}
		localsCells[i] = v
	}

	localTagCount := len(fn.Type.Params) + len(fn.Code.LocalTypes)
	if int(tagCount) < localTagCount {
		return nil, errors.Errorf("checkpoint: type_tags shorter than the function's local count")
	}
	stackCellNum := 0
	for _, t := range tags[localTagCount:] {
		stackCellNum += 1 + int(t)
	}
	valueStackCells := make([]uint32, stackCellNum)
	for i := range valueStackCells {
		v, err := readU32(r)
		if err != nil {
			return nil, errors.Wrap(err, "checkpoint: reading value_stack_cells")
		}
		valueStackCells[i] = v
	}

	ctrlCount, err := readU32(r)
	if err != nil {
		return nil, err
	}
	if int(ctrlCount) > fn.MaxBlockNum {
		return nil, errors.Errorf("checkpoint: ctrl_stack_size %d exceeds function's MaxBlockNum %d", ctrlCount, fn.MaxBlockNum)
	}
	ctrl := make([]interp.ControlBlock, ctrlCount)
	for i := range ctrl {
		begin, err := readU32(r)
		if err != nil {
			return nil, err
		}
		target, err := readU32(r)
		if err != nil {
			return nil, err
		}
		spOfs, err := readU32(r)
		if err != nil {
			return nil, err
		}
		tspOfs, err := readU32(r)
		if err != nil {
			return nil, err
		}
		cellNum, err := readU32(r)
		if err != nil {
			return nil, err
		}
		count, err := readU32(r)
		if err != nil {
			return nil, err
		}
		if int(begin) > len(fn.Code.Body) || int(target) > len(fn.Code.Body) {
			return nil, errors.New("checkpoint: control-block offset out of range")
		}
		lt, err := controlLabelType(fn, i, int(begin))
		if err != nil {
			return nil, err
		}
		ctrl[i] = interp.ControlBlock{
			LabelType:  lt,
			BeginAddr:  int(begin),
			TargetAddr: int(target),
			FrameSP:    int(spOfs),
			FrameTSP:   int(tspOfs),
			CellNum:    int(cellNum),
			Count:      int(count),
		}
	}

	return &frameImage{
		entryFidx:       entryFidx,
		returnFidx:      returnFidx,
		returnOffset:    returnOffset,
		typeTags:        tags[localTagCount:],
		localsCells:     localsCells,
		valueStackCells: valueStackCells,
		ctrl:            ctrl,
	}, nil
}
