package interp

// PushControl opens a new structured-control-flow scope (spec.md §4.3).
func (f *Frame) PushControl(lt LabelType, beginAddr, targetAddr int, cellNum, count int) {
	f.Ctrl[f.CSP] = ControlBlock{
		LabelType:  lt,
		BeginAddr:  beginAddr,
		TargetAddr: targetAddr,
		FrameSP:    f.SP,
		FrameTSP:   f.TSP,
		CellNum:    cellNum,
		Count:      count,
	}
	f.CSP++
}

// TopControl returns the innermost open control block.
func (f *Frame) TopControl() *ControlBlock { return &f.Ctrl[f.CSP-1] }

// ControlAt returns the control block `depth` scopes out from the top
// (depth 0 is the innermost), as used by br/br_if/br_table immediates.
func (f *Frame) ControlAt(depth int) *ControlBlock { return &f.Ctrl[f.CSP-1-depth] }

// PopControl closes the innermost control block.
func (f *Frame) PopControl() ControlBlock {
	f.CSP--
	return f.Ctrl[f.CSP]
}

// Branch unwinds the operand stack to the state it had when the target
// control block opened, preserving the top `arity` logical values (spec.md
// §4.3: branch targets see a fixed-arity result, copied over the discarded
// scope). It returns the control block branched to, leaving it on the
// control stack for a loop (whose TargetAddr is its own BeginAddr) or
// popping everything through it for a forward branch; the caller (the
// dispatcher) is responsible for jumping IP to the returned block's
// TargetAddr and, for LabelLoop, NOT popping the control stack since a
// loop branch re-enters the same scope.
func (f *Frame) Branch(depth int) *ControlBlock {
	target := f.ControlAt(depth)
	arity := target.Count
	tags := append([]byte(nil), f.Tags[f.TSP-arity:f.TSP]...)

	srcCell := f.SP
	for i := 0; i < arity; i++ {
		if tags[i] == 1 {
			srcCell -= 2
		} else {
			srcCell--
		}
	}
	savedCells := append([]uint32(nil), f.Cells[srcCell:f.SP]...)

	f.SP = target.FrameSP
	f.TSP = target.FrameTSP
	if target.LabelType != LabelLoop {
		f.CSP -= depth + 1
	} else {
		f.CSP -= depth
	}
	for _, tag := range tags {
		if tag == 1 {
			f.PushI64(uint64(savedCells[0]) | uint64(savedCells[1])<<32)
			savedCells = savedCells[2:]
		} else {
			f.PushI32(savedCells[0])
			savedCells = savedCells[1:]
		}
	}
	return target
}

// cacheSlot returns the direct-mapped slot for a block beginning at addr
// (spec.md §4.3's else/end address cache).
func (f *Frame) cacheSlot(addr int) *blockCacheEntry {
	return &f.blockCache[addr%blockCacheSize]
}

// LookupBlockEnds returns the cached else/end addresses for the block
// beginning at addr, if present and still valid for this exact block.
func (f *Frame) LookupBlockEnds(addr int) (elseAddr, end int, ok bool) {
	e := f.cacheSlot(addr)
	if !e.valid || e.start != addr {
		return 0, 0, false
	}
	return e.elseAddr, e.end, true
}

// StoreBlockEnds populates the cache entry for the block beginning at addr.
func (f *Frame) StoreBlockEnds(addr, elseAddr, end int) {
	*f.cacheSlot(addr) = blockCacheEntry{start: addr, elseAddr: elseAddr, end: end, valid: true}
}
