//go:build !linux

package checkpoint

// dirtyPageTracker is the fallback used on platforms without soft-dirty PTE
// tracking: every Snapshot treats every resident page as dirty (spec.md's
// Open Questions leave the precision of dirty-page tracking host-defined;
// see DESIGN.md).
type dirtyPageTracker struct{}

func newDirtyPageTracker() *dirtyPageTracker { return &dirtyPageTracker{} }

func (t *dirtyPageTracker) clearRefs() {}

func (t *dirtyPageTracker) dirtyPages(buf []byte) (offsets []uint32, ok bool) {
	return nil, false
}

func (t *dirtyPageTracker) Close() error { return nil }
