//go:build linux

package checkpoint

import (
	"encoding/binary"
	"os"
	"unsafe"
)

// softDirtyBit is bit 55 of a /proc/pid/pagemap entry (Linux's soft-dirty
// PTE tracking), set on every page written since the last clear_refs reset.
const softDirtyBit = uint64(1) << 55

// dirtyPageTracker probes /proc/self/pagemap for soft-dirty bits, styled on
// wazero's per-OS file split for platform-specific runtime capability
// probes (internal/platform's *_linux.go / *_unsupported.go pairing).
type dirtyPageTracker struct {
	pagemap   *os.File
	available bool
}

func newDirtyPageTracker() *dirtyPageTracker {
	f, err := os.OpenFile("/proc/self/pagemap", os.O_RDONLY, 0)
	if err != nil {
		return &dirtyPageTracker{available: false}
	}
	return &dirtyPageTracker{pagemap: f, available: true}
}

// clearRefs resets every page's soft-dirty bit, so the next dirtyPages call
// reports only pages written since this point.
func (t *dirtyPageTracker) clearRefs() {
	if !t.available {
		return
	}
	f, err := os.OpenFile("/proc/self/clear_refs", os.O_WRONLY, 0)
	if err != nil {
		return
	}
	_, _ = f.WriteString("4\n")
	_ = f.Close()
}

// dirtyPages reports the dirtyPageSize-aligned offsets within buf that have
// been written since the last clearRefs call. ok is false if the probe is
// unavailable (not running as a process with /proc, permission denied), in
// which case the caller must fall back to treating every page as dirty.
func (t *dirtyPageTracker) dirtyPages(buf []byte) (offsets []uint32, ok bool) {
	if !t.available || len(buf) == 0 {
		return nil, false
	}
	addr := uintptr(unsafe.Pointer(&buf[0]))
	firstPage := addr / dirtyPageSize
	pageCount := (len(buf) + dirtyPageSize - 1) / dirtyPageSize

	entry := make([]byte, 8)
	for i := 0; i < pageCount; i++ {
		off := int64((firstPage + uintptr(i)) * 8)
		if _, err := t.pagemap.ReadAt(entry, off); err != nil {
			return nil, false
		}
		v := binary.LittleEndian.Uint64(entry)
		if v&softDirtyBit != 0 {
			offsets = append(offsets, uint32(i*dirtyPageSize))
		}
	}
	return offsets, true
}

func (t *dirtyPageTracker) Close() error {
	if t.pagemap != nil {
		return t.pagemap.Close()
	}
	return nil
}
