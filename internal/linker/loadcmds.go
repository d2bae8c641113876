package linker

import (
	"crypto/rand"

	"github.com/appsworld/machold/internal/macho/types"
)

// renderLoadCommands writes every load command into image starting right
// after the mach_header_64, in exactly the order countLoadCommands summed
// sizes for: one LC_SEGMENT_64 (with its section_64 array) per
// ctx.Segments entry, LC_SYMTAB, LC_DYSYMTAB, LC_MAIN for an executable,
// one LC_LOAD_DYLIB per dependency, LC_UUID, LC_BUILD_VERSION,
// LC_DYLD_INFO_ONLY, LC_FUNCTION_STARTS, LC_DATA_IN_CODE and finally
// LC_CODE_SIGNATURE. Every chunk after the header was already placed by
// Layout against the space countLoadCommands reserved, so drifting from
// that order or a command's size here would misalign everything after it.
func renderLoadCommands(ctx *Context, image []byte) {
	w := &cmdWriter{image: image, off: uint64(types.FileHeaderSize64)}

	for _, seg := range ctx.Segments {
		w.segment(seg)
	}
	w.symtab(ctx)
	w.dysymtab(ctx)
	if ctx.Config.Kind == OutputExecute {
		w.mainEntry(ctx)
	}
	for _, d := range ctx.Dylibs {
		w.loadDylib(d)
	}
	w.uuid()
	w.buildVersion(ctx)
	w.dyldInfo(ctx)
	if ctx.FuncStarts != nil {
		w.linkEditData(types.LC_FUNCTION_STARTS, ctx.FuncStarts)
	}
	if ctx.DataInCode != nil {
		w.linkEditData(types.LC_DATA_IN_CODE, ctx.DataInCode)
	}
	if ctx.CodeSig != nil {
		w.linkEditData(types.LC_CODE_SIGNATURE, ctx.CodeSig)
	}
}

// cmdWriter is a tiny cursor over image's load-command region; each
// method writes one complete, self-contained command and leaves off
// pointing just past it.
type cmdWriter struct {
	image []byte
	off   uint64
}

func (w *cmdWriter) u32(v uint32) {
	putU32(w.image[w.off:], v)
	w.off += 4
}

func (w *cmdWriter) u64(v uint64) {
	putU64(w.image[w.off:], v)
	w.off += 8
}

func (w *cmdWriter) name16(s string) {
	types.PutAtMost16Bytes(w.image[w.off:w.off+16], s)
	w.off += 16
}

func (w *cmdWriter) segment(seg *OutputSegment) {
	sects := segChunkSections(seg)
	start := w.off
	size := uint32(72 + 80*len(sects))

	w.u32(uint32(types.LC_SEGMENT_64))
	w.u32(size)
	w.name16(seg.Name)
	w.u64(seg.Addr)
	w.u64(seg.Size)
	w.u64(seg.Offset)
	w.u64(seg.Filesize)
	w.u32(uint32(seg.Maxprot))
	w.u32(uint32(seg.Prot))
	w.u32(uint32(len(sects)))
	w.u32(uint32(types.SegFlagNone))

	for _, c := range sects {
		w.name16(c.SectName())
		w.name16(c.SegName())
		w.u64(c.Addr())
		w.u64(c.Size())
		w.u32(uint32(c.Offset()))
		w.u32(sectionAlignExp(c))
		w.u32(0) // reloff: relocations are consumed and applied in-place, never re-emitted
		w.u32(0) // nreloc
		w.u32(uint32(sectionFlags(c)))
		w.u32(0) // reserved1: would index an indirect symbol table this linker doesn't emit
		w.u32(0) // reserved2
		w.u32(0) // reserved3
	}

	w.off = start + uint64(size)
}

func (w *cmdWriter) symtab(ctx *Context) {
	w.u32(uint32(types.LC_SYMTAB))
	w.u32(24)
	w.u32(uint32(ctx.Symtab64.Offset()))
	w.u32(uint32(ctx.Symtab64.NLocal + ctx.Symtab64.NExtern + ctx.Symtab64.NUndef))
	w.u32(uint32(ctx.Strtab64.Offset()))
	w.u32(uint32(ctx.Strtab64.Size()))
}

func (w *cmdWriter) dysymtab(ctx *Context) {
	nl, ne, nu := uint32(ctx.Symtab64.NLocal), uint32(ctx.Symtab64.NExtern), uint32(ctx.Symtab64.NUndef)
	w.u32(uint32(types.LC_DYSYMTAB))
	w.u32(80)
	w.u32(0)  // ilocalsym
	w.u32(nl) // nlocalsym
	w.u32(nl) // iextdefsym
	w.u32(ne) // nextdefsym
	w.u32(nl + ne) // iundefsym
	w.u32(nu)      // nundefsym
	for i := 0; i < 12; i++ {
		w.u32(0) // tocoffset..nlocrel: TOC/module/indirect-symbol tables this linker never builds
	}
}

func (w *cmdWriter) mainEntry(ctx *Context) {
	w.u32(uint32(types.LC_MAIN))
	w.u32(24)
	w.u64(entryFileOffset(ctx))
	w.u64(ctx.Config.StackSize)
}

// entryFileOffset resolves -e's target symbol to a file offset relative
// to the mach header, the quantity LC_MAIN.entryoff actually stores
// (unlike every other address field in this linker, which is a VM
// address). A missing entry symbol was already reported as an undefined
// reference during resolve, so this simply reports offset 0 rather than
// panicking on a link that has already failed.
func entryFileOffset(ctx *Context) uint64 {
	sym, ok := ctx.Symtab.Lookup(ctx.Config.Entry)
	if !ok || sym.Subsec == nil {
		return 0
	}
	return sym.Subsec.OutputOffset + sym.Value
}

func (w *cmdWriter) loadDylib(d *DylibFile) {
	cmd := types.LC_LOAD_DYLIB
	if d.Weak {
		cmd = types.LC_LOAD_WEAK_DYLIB
	}
	start := w.off
	size := dylibCmdSize(d.InstallName)

	w.u32(uint32(cmd))
	w.u32(size)
	w.u32(24) // name offset, relative to this command's own start
	w.u32(0)  // timestamp
	w.u32(uint32(d.CurrentVersion))
	w.u32(uint32(d.CompatibilityVersion))
	n := copy(w.image[w.off:], d.InstallName)
	w.image[w.off+uint64(n)] = 0
	w.off = start + uint64(size)
}

func (w *cmdWriter) uuid() {
	w.u32(uint32(types.LC_UUID))
	w.u32(24)
	var id [16]byte
	rand.Read(id[:]) //nolint:errcheck // a failed fill still leaves a valid, if all-zero, UUID field
	id[6] = (id[6] & 0x0f) | 0x40 // version 4
	id[8] = (id[8] & 0x3f) | 0x80 // RFC 4122 variant
	copy(w.image[w.off:w.off+16], id[:])
	w.off += 16
}

func (w *cmdWriter) buildVersion(ctx *Context) {
	w.u32(uint32(types.LC_BUILD_VERSION))
	w.u32(24)
	w.u32(uint32(ctx.Config.Platform))
	w.u32(uint32(ctx.Config.PlatformMinOS))
	w.u32(uint32(ctx.Config.PlatformSDK))
	w.u32(0) // ntools
}

func (w *cmdWriter) dyldInfo(ctx *Context) {
	w.u32(uint32(types.LC_DYLD_INFO_ONLY))
	w.u32(48)
	w.u32(uint32(ctx.Rebase.Offset()))
	w.u32(uint32(ctx.Rebase.Size()))
	w.u32(uint32(ctx.Bind.Offset()))
	w.u32(uint32(ctx.Bind.Size()))
	w.u32(0) // weak_bind_off: no weak-coalesced bind entries are ever synthesized
	w.u32(0) // weak_bind_size
	w.u32(uint32(ctx.LazyBind.Offset()))
	w.u32(uint32(ctx.LazyBind.Size()))
	w.u32(uint32(ctx.Export.Offset()))
	w.u32(uint32(ctx.Export.Size()))
}

func (w *cmdWriter) linkEditData(cmd types.LoadCmd, c Chunk) {
	w.u32(uint32(cmd))
	w.u32(16)
	w.u32(uint32(c.Offset()))
	w.u32(uint32(c.Size()))
}

// sectionAlignExp returns section_64.align: the section's byte alignment
// expressed as a power-of-two exponent, matching chunkAlign's two
// possible values (8 or 16 bytes).
func sectionAlignExp(c Chunk) uint32 {
	if chunkAlign(c) == 8 {
		return 3
	}
	return 4
}

// sectionFlags picks the section_64.flags a reader needs to tell code
// from data from pointer tables: a handful of synthetic sections have a
// fixed type regardless of what they're named, everything else falls
// back to a name-based guess the same way an input object's own sections
// were already typed when this linker read them.
func sectionFlags(c Chunk) types.SecFlag {
	switch c.(type) {
	case *StubsSection:
		return types.S_SYMBOL_STUBS | types.S_ATTR_SOME_INSTRUCTIONS | types.S_ATTR_PURE_INSTRUCTIONS
	case *StubHelperSection, *ThunkSection:
		return types.S_REGULAR | types.S_ATTR_SOME_INSTRUCTIONS | types.S_ATTR_PURE_INSTRUCTIONS
	case *GotSection:
		return types.S_NON_LAZY_SYMBOL_POINTERS
	case *LazySymbolPtrSection:
		return types.S_LAZY_SYMBOL_POINTERS
	case *ThreadPtrsSection:
		return types.S_THREAD_LOCAL_VARIABLE_POINTERS
	case *UnwindInfoSection:
		return types.S_REGULAR | types.S_ATTR_NO_DEAD_STRIP
	}
	switch c.SectName() {
	case "__text":
		return types.S_REGULAR | types.S_ATTR_PURE_INSTRUCTIONS | types.S_ATTR_SOME_INSTRUCTIONS
	case "__cstring":
		return types.S_CSTRING_LITERALS
	case "__bss", "__common":
		return types.S_ZEROFILL
	default:
		return types.S_REGULAR
	}
}
