package linker

// StubsSection is __TEXT,__stubs: one fixed-size trampoline per symbol
// flagged needsStub (a dylib-imported function actually called from live
// code), each jumping through the matching __la_symbol_ptr slot.
type StubsSection struct {
	baseChunk
	entries []*Symbol
}

func (s *StubsSection) Add(sym *Symbol) {
	if sym.stubIndex != 0 {
		return
	}
	s.entries = append(s.entries, sym)
	sym.stubIndex = int32(len(s.entries))
}

func (s *StubsSection) ComputeSize(ctx *Context) {
	s.segname, s.sectname = "__TEXT", "__stubs"
	s.size = uint64(len(s.entries) * ctx.Arch.StubSize())
}

func (s *StubsSection) CopyBuf(ctx *Context, buf []byte) {
	stride := ctx.Arch.StubSize()
	for i, sym := range s.entries {
		stubAddr := s.addr + uint64(i*stride)
		gotAddr := ctx.LazyPtr.AddrOf(sym)
		ctx.Arch.WriteStub(buf[i*stride:(i+1)*stride], stubAddr, gotAddr)
	}
}

// StubHelperSection is __TEXT,__stub_helper: a shared header that jumps
// into dyld_stub_binder, followed by one entry per lazily-bound stub that
// pushes its bind-opcode-stream offset before falling into the header.
type StubHelperSection struct {
	baseChunk
	entries []*Symbol
}

func (s *StubHelperSection) ComputeSize(ctx *Context) {
	s.segname, s.sectname = "__TEXT", "__stub_helper"
	s.entries = ctx.Stubs.entries
	s.size = uint64(ctx.Arch.StubHelperHeaderSize() + len(s.entries)*ctx.Arch.StubHelperEntrySize())
}

func (s *StubHelperSection) CopyBuf(ctx *Context, buf []byte) {
	hdrSize := ctx.Arch.StubHelperHeaderSize()
	ctx.Arch.WriteStubHelperHeader(buf[:hdrSize], s.addr, ctx.LazyPtr.dyldStubBinderAddr())

	stride := ctx.Arch.StubHelperEntrySize()
	for i, sym := range s.entries {
		entryAddr := s.addr + uint64(hdrSize) + uint64(i*stride)
		off := ctx.LazyBind.OffsetOf(sym)
		ctx.Arch.WriteStubHelperEntry(buf[hdrSize+i*stride:hdrSize+(i+1)*stride], entryAddr, s.addr, off)
	}
}
