package linker

import "encoding/binary"

// ThreadPtrsSection is __DATA,__thread_ptrs: one pointer-to-TLV-descriptor
// slot per symbol flagged needsThreadPtr, used by ARM64/x86-64's
// TLVP_LOAD relocations to reach a thread-local variable's descriptor
// indirectly.
type ThreadPtrsSection struct {
	baseChunk
	entries []*Symbol
	index   map[*Symbol]int
}

func (t *ThreadPtrsSection) Add(sym *Symbol) {
	if t.index == nil {
		t.index = map[*Symbol]int{}
	}
	if _, ok := t.index[sym]; ok {
		return
	}
	t.index[sym] = len(t.entries)
	sym.tlvIndex = int32(len(t.entries))
	t.entries = append(t.entries, sym)
}

func (t *ThreadPtrsSection) AddrOf(sym *Symbol) uint64 {
	i, ok := t.index[sym]
	if !ok {
		return 0
	}
	return t.addr + uint64(i*8)
}

func (t *ThreadPtrsSection) ComputeSize(ctx *Context) {
	t.segname, t.sectname = "__DATA", "__thread_ptrs"
	t.size = uint64(len(t.entries) * 8)
}

func (t *ThreadPtrsSection) CopyBuf(ctx *Context, buf []byte) {
	for i, sym := range t.entries {
		var val uint64
		if sym.Subsec != nil {
			val = sym.Subsec.OutputAddr + sym.Value
		}
		binary.LittleEndian.PutUint64(buf[i*8:], val)
	}
}
