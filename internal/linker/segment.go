package linker

import "github.com/appsworld/machold/internal/macho/types"

const pageSize = 0x4000 // COMMON_PAGE_SIZE on arm64; also safe (over-aligned) for x86-64 output

// OutputSegment groups one or more Chunks (and, for __TEXT/__DATA*, the
// InputSections folded into them) under a single segment_command_64, in
// the fixed order a Mach-O loader expects: __PAGEZERO, __TEXT,
// __DATA_CONST, __DATA, __LINKEDIT.
type OutputSegment struct {
	Name    string
	Prot    types.VmProtection
	Maxprot types.VmProtection

	Chunks []Chunk

	Addr   uint64
	Offset uint64
	Size   uint64 // memory size; Filesize below it for __PAGEZERO and any trailing zerofill
	Filesize uint64
}

// segmentOrder is the fixed placement every Mach-O static linker output
// uses; __LINKEDIT is always last and always file-backed only (no VM gaps
// between its chunks), which is why layout.go's Layout assigns its
// offsets in a separate pass after every other segment instead of with
// the regular aligned per-chunk rule.
var segmentOrder = []string{"__PAGEZERO", "__TEXT", "__DATA_CONST", "__DATA", "__LINKEDIT"}

// BuildSegments creates the fixed segment skeleton for this run's output
// kind; PAGEZERO is omitted for dylib/bundle outputs, which have no
// reserved low address range.
func BuildSegments(ctx *Context) {
	for _, name := range segmentOrder {
		if name == "__PAGEZERO" && ctx.Config.Kind != OutputExecute {
			continue
		}
		seg := &OutputSegment{Name: name}
		switch name {
		case "__PAGEZERO":
			seg.Size = ctx.Config.PageZeroSize
			if seg.Size == 0 {
				seg.Size = 1 << 32
			}
		case "__TEXT":
			seg.Prot = types.VMProtRead | types.VMProtExecute
			seg.Maxprot = types.VMProtRead | types.VMProtExecute
		case "__DATA_CONST":
			seg.Prot = types.VMProtRead
			seg.Maxprot = types.VMProtRead | types.VMProtWrite
		case "__DATA":
			seg.Prot = types.VMProtRead | types.VMProtWrite
			seg.Maxprot = types.VMProtRead | types.VMProtWrite
		case "__LINKEDIT":
			seg.Prot = types.VMProtRead
			seg.Maxprot = types.VMProtRead
		}
		ctx.Segments = append(ctx.Segments, seg)
	}
}

func (ctx *Context) SegmentByName(name string) *OutputSegment {
	for _, s := range ctx.Segments {
		if s.Name == name {
			return s
		}
	}
	return nil
}

// segnameForSectname rewrites a classic ld64 (segname,sectname) pair when
// -data_const/-data-dependent splitting moves a section from its input
// segment to the synthetic __DATA_CONST segment (used for __got,
// __la_symbol_ptr's non-lazy half, and similar relocation-read-only data).
func segnameForSectname(segname, sectname string) string {
	switch segname + "," + sectname {
	case "__DATA,__got", "__DATA,__const", "__DATA,__cfstring":
		return "__DATA_CONST"
	}
	return segname
}
