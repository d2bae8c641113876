package linker

import (
	"sort"

	"github.com/appsworld/machold/internal/macho/types"
)

// RebaseSection is LC_DYLD_INFO_ONLY's rebase opcode stream: one entry per
// pointer slot this image owns whose value must slide with the image's
// actual load address (every non-imported GOT/TLV/lazy-pointer slot, plus
// any data pointer relocation with an UNSIGNED fixup against a local
// definition).
type RebaseSection struct {
	baseChunk
	entries []rebaseEntry
	encoded []byte
}

type rebaseEntry struct {
	segIndex int
	segOff   uint64
}

func (r *RebaseSection) Add(segIndex int, segOff uint64) {
	r.entries = append(r.entries, rebaseEntry{segIndex, segOff})
}

func (r *RebaseSection) ComputeSize(ctx *Context) {
	r.segname, r.sectname = "__LINKEDIT", "" // LINKEDIT chunks have no real section, only an opcode span
	r.encoded = encodeRebaseOpcodes(r.entries)
	r.size = uint64(len(r.encoded))
}

func (r *RebaseSection) CopyBuf(ctx *Context, buf []byte) { copy(buf, r.encoded) }

func encodeRebaseOpcodes(entries []rebaseEntry) []byte {
	var out []byte
	put := func(b ...byte) { out = append(out, b...) }
	putULEB := func(v uint64) { out = appendULEB128(out, v) }

	// grouped per segment, ascending offset, one DO_REBASE per entry:
	// simple and correct, not the maximally compact run-length form mold
	// itself emits.
	bySeg := map[int][]uint64{}
	for _, e := range entries {
		bySeg[e.segIndex] = append(bySeg[e.segIndex], e.segOff)
	}
	segs := make([]int, 0, len(bySeg))
	for seg := range bySeg {
		segs = append(segs, seg)
	}
	sort.Ints(segs)

	for _, seg := range segs {
		offs := bySeg[seg]
		sort.Slice(offs, func(i, j int) bool { return offs[i] < offs[j] })
		put(types.RebaseOpcodeSetTypeImm | types.RebaseTypePointer)
		put(types.RebaseOpcodeSetSegmentAndOffsetUleb | byte(seg&0xf))
		putULEB(offs[0])
		// REBASE_OPCODE_DO_REBASE_ADD_ADDR_ULEB rebases the current
		// location and then advances by one ULEB delta, so every entry
		// but the last is one rebase-and-advance; the last is a plain
		// one-shot rebase with nothing left to skip to.
		for i, o := range offs {
			if i == len(offs)-1 {
				put(types.RebaseOpcodeDoRebaseImmTimes | 1)
				break
			}
			put(types.RebaseOpcodeDoRebaseAddAddrUleb)
			putULEB(offs[i+1] - o)
		}
	}
	put(types.RebaseOpcodeDone)
	return out
}

// BindSection is LC_DYLD_INFO_ONLY's (non-lazy) bind opcode stream: one
// entry per eagerly-bound imported symbol slot (GOT entries, non-lazy
// pointers, and anything else dyld must resolve before the image runs).
type BindSection struct {
	baseChunk
	entries []bindEntry
	encoded []byte
}

type bindEntry struct {
	segIndex int
	segOff   uint64
	ordinal  int
	name     string
	weak     bool
}

func (b *BindSection) Add(segIndex int, segOff uint64, dylibOrdinal int, name string, weak bool) {
	b.entries = append(b.entries, bindEntry{segIndex, segOff, dylibOrdinal, name, weak})
}

func (b *BindSection) ComputeSize(ctx *Context) {
	b.segname = "__LINKEDIT"
	b.encoded = encodeBindOpcodes(b.entries)
	b.size = uint64(len(b.encoded))
}

func (b *BindSection) CopyBuf(ctx *Context, buf []byte) { copy(buf, b.encoded) }

func encodeBindOpcodes(entries []bindEntry) []byte {
	var out []byte
	put := func(v byte) { out = append(out, v) }
	putULEB := func(v uint64) { out = appendULEB128(out, v) }
	putStr := func(s string) { out = append(out, s...); out = append(out, 0) }

	for _, e := range entries {
		put(0x10 | byte(e.ordinal&0xf)) // BIND_OPCODE_SET_DYLIB_ORDINAL_IMM
		flags := byte(0)
		if e.weak {
			flags = 0x1
		}
		put(0x40 | flags) // BIND_OPCODE_SET_SYMBOL_TRAILING_FLAGS_IMM
		putStr(e.name)
		put(0x50 | 1) // BIND_OPCODE_SET_TYPE_IMM | BIND_TYPE_POINTER
		put(0x70 | byte(e.segIndex&0xf))
		putULEB(e.segOff)
		put(0x90) // BIND_OPCODE_DO_BIND
	}
	put(0x00)
	return out
}

// LazyBindSection is LC_DYLD_INFO_ONLY's lazy bind opcode stream: one
// variable-length entry per stub, addressed by byte offset from
// __stub_helper's per-entry `push` instruction.
type LazyBindSection struct {
	baseChunk
	entries []*Symbol
	offsets map[*Symbol]uint32
	encoded []byte
}

func (l *LazyBindSection) OffsetOf(sym *Symbol) uint32 { return l.offsets[sym] }

func (l *LazyBindSection) ComputeSize(ctx *Context) {
	l.segname = "__LINKEDIT"
	l.entries = ctx.Stubs.entries
	l.offsets = map[*Symbol]uint32{}

	var out []byte
	for i, sym := range l.entries {
		l.offsets[sym] = uint32(len(out))
		out = append(out, 0x70|byte(i&0xf)) // BIND_OPCODE_SET_SEGMENT_AND_OFFSET_ULEB (placeholder segment index)
		out = appendULEB128(out, ctx.LazyPtr.AddrOf(sym)-ctx.LazyPtr.addr)
		out = append(out, 0x40) // BIND_OPCODE_SET_SYMBOL_TRAILING_FLAGS_IMM
		out = append(out, sym.Name...)
		out = append(out, 0)
		out = append(out, 0x90) // BIND_OPCODE_DO_BIND
		out = append(out, 0x00) // BIND_OPCODE_DONE terminates each lazy-bind entry individually
	}
	l.encoded = out
	l.size = uint64(len(out))
}

func (l *LazyBindSection) CopyBuf(ctx *Context, buf []byte) { copy(buf, l.encoded) }

func appendULEB128(out []byte, v uint64) []byte {
	for {
		b := byte(v & 0x7f)
		v >>= 7
		if v != 0 {
			b |= 0x80
		}
		out = append(out, b)
		if v == 0 {
			return out
		}
	}
}
