package linker

// ThunkSection holds ARM64 range-extension thunks: 12-byte adrp/add/br
// trampolines inserted when a BRANCH26 target falls outside the ±128MB
// signed-26-bit reach of the bl/b instruction. x86-64's rip-relative
// call/jmp reaches the full 64-bit address space through its GOT-indirect
// form already, so this section is always empty for that target.
type ThunkSection struct {
	baseChunk
	entries []*Symbol
	index   map[*Symbol]int
}

const arm64ThunkEntrySize = 12
const arm64BranchReach = 1 << 27 // ±128MiB, signed 26-bit word-granularity immediate

func (t *ThunkSection) NeedsThunk(fromAddr, toAddr uint64) bool {
	delta := int64(toAddr) - int64(fromAddr)
	return delta >= arm64BranchReach || delta < -arm64BranchReach
}

func (t *ThunkSection) Add(sym *Symbol) uint64 {
	if t.index == nil {
		t.index = map[*Symbol]int{}
	}
	if i, ok := t.index[sym]; ok {
		return t.addr + uint64(i*arm64ThunkEntrySize)
	}
	i := len(t.entries)
	t.index[sym] = i
	t.entries = append(t.entries, sym)
	sym.setFlag(needsRangeExtnThunk)
	return t.addr + uint64(i*arm64ThunkEntrySize)
}

func (t *ThunkSection) ComputeSize(ctx *Context) {
	t.segname, t.sectname = "__TEXT", "__thunks"
	t.size = uint64(len(t.entries) * arm64ThunkEntrySize)
}

func (t *ThunkSection) CopyBuf(ctx *Context, buf []byte) {
	for i, sym := range t.entries {
		thunkAddr := t.addr + uint64(i*arm64ThunkEntrySize)
		targetAddr := symbolOutputAddr(sym)
		entry := buf[i*arm64ThunkEntrySize : (i+1)*arm64ThunkEntrySize]
		// adrp x16, target@page ; add x16, x16, target@pageoff ; br x16
		pageDelta := page(targetAddr) - page(thunkAddr)
		putU32(entry[0:], 0x90000010|encodePage(pageDelta))
		putU32(entry[4:], 0x91000210|(uint32(targetAddr&0xfff)<<10))
		putU32(entry[8:], 0xd61f0200)
	}
}
