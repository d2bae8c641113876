package linker

import "github.com/appsworld/machold/internal/macho/types"

// DataInCodeSection is LC_DATA_IN_CODE: spans of __text that are literal
// data (jump tables, switch dispatch tables) rather than instructions,
// copied forward unchanged from whichever input subsections contributed
// them, translated into output-relative offsets.
type DataInCodeSection struct {
	baseChunk
	entries []types.DataInCodeEntry
}

func (d *DataInCodeSection) ComputeSize(ctx *Context) {
	d.segname = "__LINKEDIT"
	d.entries = collectDataInCode(ctx)
	d.size = uint64(len(d.entries) * 8) // sizeof(data_in_code_entry)
}

// collectDataInCode translates every live object's LC_DATA_IN_CODE entries
// from that object's own address space into output-relative __text
// offsets, the same per-object-to-output translation funcstarts.go applies
// to symbol addresses; a span whose enclosing subsection didn't survive
// dead-strip is dropped along with it.
func collectDataInCode(ctx *Context) []types.DataInCodeEntry {
	var out []types.DataInCodeEntry
	for _, obj := range ctx.Objects {
		for _, e := range obj.DataInCode {
			ss := funcSubsection(obj, e.Addr)
			if ss == nil || !ss.IsAlive() {
				continue
			}
			out = append(out, types.DataInCodeEntry{
				Offset: uint32(ss.OutputOffset + (e.Addr - subOffset(ss))),
				Length: e.Length,
				Kind:   types.DiceKind(e.Kind),
			})
		}
	}
	sortDice(out)
	return out
}

func sortDice(e []types.DataInCodeEntry) {
	for i := 1; i < len(e); i++ {
		for j := i; j > 0 && e[j-1].Offset > e[j].Offset; j-- {
			e[j-1], e[j] = e[j], e[j-1]
		}
	}
}

func (d *DataInCodeSection) CopyBuf(ctx *Context, buf []byte) {
	for i, e := range d.entries {
		off := i * 8
		putU32(buf[off:], e.Offset)
		putU16(buf[off+4:], e.Length)
		putU16(buf[off+6:], uint16(e.Kind))
	}
}
