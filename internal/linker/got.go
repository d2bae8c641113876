package linker

import "encoding/binary"

// GotSection is __DATA_CONST,__got: one 8-byte pointer slot per symbol
// flagged needsGot, filled in at load time by a rebase (for a slot pointing
// at another definition in this image) or a bind (for a slot importing
// from a dylib).
type GotSection struct {
	baseChunk
	entries []*Symbol
	index   map[*Symbol]int
}

func (g *GotSection) Add(sym *Symbol) {
	if g.index == nil {
		g.index = map[*Symbol]int{}
	}
	if _, ok := g.index[sym]; ok {
		return
	}
	g.index[sym] = len(g.entries)
	sym.gotIndex = int32(len(g.entries))
	g.entries = append(g.entries, sym)
}

func (g *GotSection) AddrOf(sym *Symbol) uint64 {
	i, ok := g.index[sym]
	if !ok {
		return 0
	}
	return g.addr + uint64(i*8)
}

func (g *GotSection) ComputeSize(ctx *Context) {
	g.segname, g.sectname = "__DATA_CONST", "__got"
	g.size = uint64(len(g.entries) * 8)
}

func (g *GotSection) CopyBuf(ctx *Context, buf []byte) {
	for i, sym := range g.entries {
		var val uint64
		if sym.IsDylibImport() {
			val = 0 // filled by the bind opcode stream at load time
		} else if sym.Subsec != nil {
			val = sym.Subsec.OutputAddr + sym.Value
		}
		binary.LittleEndian.PutUint64(buf[i*8:], val)
	}
}

// LazySymbolPtrSection is __DATA,__la_symbol_ptr: one slot per stub,
// initially pointing back into __stub_helper (lazy binding's
// not-yet-resolved state) and rewritten to the real address by dyld the
// first time the stub is called.
type LazySymbolPtrSection struct {
	baseChunk
	entries []*Symbol
	dyldStubBinder uint64
}

func (l *LazySymbolPtrSection) ComputeSize(ctx *Context) {
	l.segname, l.sectname = "__DATA", "__la_symbol_ptr"
	l.entries = ctx.Stubs.entries
	l.size = uint64(len(l.entries) * 8)
}

func (l *LazySymbolPtrSection) AddrOf(sym *Symbol) uint64 {
	for i, s := range l.entries {
		if s == sym {
			return l.addr + uint64(i*8)
		}
	}
	return 0
}

func (l *LazySymbolPtrSection) dyldStubBinderAddr() uint64 { return l.dyldStubBinder }

func (l *LazySymbolPtrSection) CopyBuf(ctx *Context, buf []byte) {
	hdr := uint64(ctx.Arch.StubHelperHeaderSize())
	stride := uint64(ctx.Arch.StubHelperEntrySize())
	for i := range l.entries {
		binary.LittleEndian.PutUint64(buf[i*8:], ctx.StubHelper.addr+hdr+uint64(i)*stride) // unbound: points at its stub_helper entry
	}
}
