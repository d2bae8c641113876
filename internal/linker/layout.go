package linker

import "github.com/appsworld/machold/internal/macho/types"

// Layout assigns every chunk's address and file offset once dead-strip
// and relocation scanning have finished (so synthetic chunk sizes are
// final) and before relocations are applied (so ApplyReloc has somewhere
// to point). Regular segments (__TEXT/__DATA_CONST/__DATA) are laid out
// sequentially, page-aligned at their start; __LINKEDIT uses a different
// rule — every one of its chunks is sized first, then all of them are
// packed back-to-back with no internal page alignment, because dyld reads
// __LINKEDIT purely by (offset, size) pairs out of the load commands, never
// by mapping it structurally.
func Layout(ctx *Context) {
	BuildSegments(ctx)
	placeInputChunks(ctx)
	registerSyntheticChunks(ctx)

	var fileOff uint64
	var vmAddr uint64

	for _, seg := range ctx.Segments {
		if seg.Name == "__PAGEZERO" {
			seg.Addr = 0
			vmAddr = seg.Size
			continue
		}
		if seg.Name == "__LINKEDIT" {
			continue // placed last, after every other segment's size is known
		}

		seg.Addr = types.RoundUp(vmAddr, pageSize)
		seg.Offset = types.RoundUp(fileOff, pageSize)

		var segSize uint64
		for _, c := range seg.Chunks {
			c.ComputeSize(ctx)
			align := chunkAlign(c)
			segSize = types.RoundUp(segSize, align)
			c.SetAddr(seg.Addr + segSize)
			c.SetOffset(seg.Offset + segSize)
			segSize += c.Size()
		}
		seg.Size = types.RoundUp(segSize, pageSize)
		seg.Filesize = segSize

		vmAddr = seg.Addr + seg.Size
		fileOff = seg.Offset + seg.Filesize
	}

	if linkedit := ctx.SegmentByName("__LINKEDIT"); linkedit != nil {
		linkedit.Addr = types.RoundUp(vmAddr, pageSize)
		linkedit.Offset = types.RoundUp(fileOff, pageSize)
		var off uint64
		for _, c := range linkedit.Chunks {
			c.ComputeSize(ctx)
			c.SetOffset(linkedit.Offset + off)
			c.SetAddr(linkedit.Addr + off) // addr is nominal; LINKEDIT contents are never addr-relative
			off += c.Size()
		}
		linkedit.Filesize = off
		linkedit.Size = types.RoundUp(off, pageSize)
	}
}

// chunkAlign is conservative: 16 for code/data-bearing chunks (covers every
// instruction-set alignment requirement this linker targets), 8 for
// pointer-table chunks.
func chunkAlign(c Chunk) uint64 {
	switch c.SectName() {
	case "__got", "__la_symbol_ptr", "__thread_ptrs":
		return 8
	default:
		return 16
	}
}

// placeInputChunks groups every live subsection into one TextDataChunk per
// (segment,section) pair it targets, in file order, and attaches those
// chunks to their segment.
func placeInputChunks(ctx *Context) {
	chunksByKey := map[string]*TextDataChunk{}
	var order []*TextDataChunk

	for _, obj := range ctx.Objects {
		for _, ss := range obj.Subsections {
			segname := segnameForSectname(ss.SegName(), ss.SectName())
			key := segname + "," + ss.SectName()
			c, ok := chunksByKey[key]
			if !ok {
				c = &TextDataChunk{baseChunk: baseChunk{segname: segname, sectname: ss.SectName()}}
				chunksByKey[key] = c
				order = append(order, c)
			}
			c.Subsections = append(c.Subsections, ss)
		}
	}

	for _, c := range order {
		seg := ctx.SegmentByName(c.segname)
		if seg == nil {
			seg = &OutputSegment{Name: c.segname, Prot: types.VMProtRead | types.VMProtWrite, Maxprot: types.VMProtRead | types.VMProtWrite}
			ctx.Segments = append(ctx.Segments, seg)
		}
		seg.Chunks = append(seg.Chunks, c)
	}
}

// TextDataChunk is the Chunk wrapping ordinary (non-synthetic) input data:
// every subsection from every object file that shares one output
// (segment,section) pair, concatenated in object-priority order.
type TextDataChunk struct {
	baseChunk
	Subsections []*Subsection
}

func (c *TextDataChunk) ComputeSize(ctx *Context) {
	var size uint64
	for _, ss := range c.Subsections {
		size = types.RoundUp(size, 1<<subsectionAlign(ss))
		size += ss.Size
	}
	c.size = size
}

func subsectionAlign(ss *Subsection) uint32 {
	if ss.Isec.Align > 0 {
		return ss.Isec.Align
	}
	return 0
}

// SetAddr overrides baseChunk.SetAddr to also place each subsection at its
// final address the moment the chunk's own address is fixed: later
// LINKEDIT chunks (LC_FUNCTION_STARTS, LC_DATA_IN_CODE) read
// Subsection.OutputAddr while they're still being sized, before CopyBuf
// ever runs for any chunk, so placement can't wait until CopyBuf time.
func (c *TextDataChunk) SetAddr(addr uint64) {
	c.baseChunk.SetAddr(addr)
	c.placeSubsections(addr, c.off)
}

func (c *TextDataChunk) SetOffset(off uint64) {
	c.baseChunk.SetOffset(off)
	c.placeSubsections(c.addr, off)
}

func (c *TextDataChunk) placeSubsections(addr, off uint64) {
	var delta uint64
	for _, ss := range c.Subsections {
		delta = types.RoundUp(delta, 1<<subsectionAlign(ss))
		ss.OutputAddr = addr + delta
		ss.OutputOffset = off + delta
		delta += ss.Size
	}
}

func (c *TextDataChunk) CopyBuf(ctx *Context, buf []byte) {
	for _, ss := range c.Subsections {
		off := ss.OutputOffset - c.off
		copy(buf[off:], ss.Data())
	}
}

// registerSyntheticChunks attaches every synthetic section Context holds
// to its owning segment, in the fixed within-segment order dyld's loader
// and debuggers expect (stubs before stub_helper before the rest of
// __TEXT; got before bind-writable data in __DATA_CONST; __LINKEDIT's
// chunks in the conventional rebase/bind/lazy-bind/export/func-starts/
// data-in-code/symtab/strtab/codesig order).
func registerSyntheticChunks(ctx *Context) {
	text := ctx.SegmentByName("__TEXT")
	dataConst := ctx.SegmentByName("__DATA_CONST")
	data := ctx.SegmentByName("__DATA")
	linkedit := ctx.SegmentByName("__LINKEDIT")

	if text != nil {
		if ctx.MachHeader != nil {
			text.Chunks = append([]Chunk{ctx.MachHeader}, text.Chunks...)
		}
		if ctx.Stubs != nil {
			text.Chunks = append(text.Chunks, ctx.Stubs)
		}
		if ctx.StubHelper != nil {
			text.Chunks = append(text.Chunks, ctx.StubHelper)
		}
		if ctx.Thunks != nil {
			text.Chunks = append(text.Chunks, ctx.Thunks)
		}
		if ctx.UnwindInfo != nil {
			text.Chunks = append(text.Chunks, ctx.UnwindInfo)
		}
	}
	if dataConst != nil && ctx.Got != nil {
		dataConst.Chunks = append(dataConst.Chunks, ctx.Got)
	}
	if data != nil {
		if ctx.LazyPtr != nil {
			data.Chunks = append(data.Chunks, ctx.LazyPtr)
		}
		if ctx.ThreadPtrs != nil {
			data.Chunks = append(data.Chunks, ctx.ThreadPtrs)
		}
	}
	if linkedit != nil {
		for _, c := range []Chunk{ctx.Rebase, ctx.Bind, ctx.LazyBind, ctx.Export, ctx.FuncStarts, ctx.DataInCode, ctx.Symtab64, ctx.Strtab64, ctx.CodeSig} {
			if !isNilChunk(c) {
				linkedit.Chunks = append(linkedit.Chunks, c)
			}
		}
	}
}

// isNilChunk guards against the classic typed-nil-in-interface pitfall:
// a *RebaseSection(nil) boxed into the Chunk slice literal above compares
// unequal to a literal nil interface, so each concrete type is checked by
// its own pointer rather than the interface value.
func isNilChunk(c Chunk) bool {
	switch v := c.(type) {
	case *RebaseSection:
		return v == nil
	case *BindSection:
		return v == nil
	case *LazyBindSection:
		return v == nil
	case *ExportSection:
		return v == nil
	case *FunctionStartsSection:
		return v == nil
	case *DataInCodeSection:
		return v == nil
	case *SymtabSection:
		return v == nil
	case *StrtabSection:
		return v == nil
	case *CodeSignatureSection:
		return v == nil
	default:
		return c == nil
	}
}
