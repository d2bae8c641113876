package linker

import "sort"

// SymtabSection is LC_SYMTAB/LC_DYSYMTAB's combined symbol table: locals
// first, then extern definitions, then undefined imports — the three-way
// partition LC_DYSYMTAB's ilocalsym/iextdefsym/iundefsym fields index
// into, each block stable-sorted by name so output is deterministic
// regardless of input file discovery order.
type SymtabSection struct {
	baseChunk
	locals, externs, undefs []*Symbol

	NLocal, NExtern, NUndef int
}

func (s *SymtabSection) ComputeSize(ctx *Context) {
	s.segname = "__LINKEDIT"
	s.classify(ctx)
	// Names are interned into ctx.Strtab here, not in CopyBuf, so the
	// following StrtabSection chunk knows its final size before it is
	// itself sized; StringPool.Add is idempotent so CopyBuf's own Add
	// calls just look the same offsets back up.
	for _, sym := range append(append(append([]*Symbol{}, s.locals...), s.externs...), s.undefs...) {
		ctx.Strtab.Add(sym.Name)
	}
	s.size = uint64((len(s.locals) + len(s.externs) + len(s.undefs)) * 16) // sizeof(nlist_64)
}

func (s *SymtabSection) classify(ctx *Context) {
	seen := map[*Symbol]bool{}
	for _, obj := range ctx.Objects {
		for _, sym := range obj.Symbols {
			if !symbolSurvives(sym) || seen[sym] {
				continue
			}
			seen[sym] = true
			switch {
			case sym.Scope == ScopeLocal:
				s.locals = append(s.locals, sym)
			case sym.File != nil || sym.IsTentative():
				s.externs = append(s.externs, sym)
			default:
				s.undefs = append(s.undefs, sym)
			}
		}
	}
	sortByName(s.locals)
	sortByName(s.externs)
	sortByName(s.undefs)
	s.NLocal, s.NExtern, s.NUndef = len(s.locals), len(s.externs), len(s.undefs)
}

func symbolSurvives(sym *Symbol) bool {
	return sym.IsAlive() || sym.IsUndefined() || sym.IsDylibImport()
}

func sortByName(syms []*Symbol) {
	sort.SliceStable(syms, func(i, j int) bool { return syms[i].Name < syms[j].Name })
}

func (s *SymtabSection) CopyBuf(ctx *Context, buf []byte) {
	all := append(append(append([]*Symbol{}, s.locals...), s.externs...), s.undefs...)
	for i, sym := range all {
		nameOff := ctx.Strtab.Add(sym.Name)
		putNlist64(buf[i*16:(i+1)*16], nameOff, nlistType(sym), symbolOutputAddr(sym))
	}
}

// StrtabSection is the string table LC_SYMTAB.stroff/strsize points at,
// following Symtab64 in LINKEDIT order. Its bytes are whatever
// SymtabSection.ComputeSize has already interned into ctx.Strtab; it
// never walks the symbol table itself.
type StrtabSection struct {
	baseChunk
}

func (s *StrtabSection) ComputeSize(ctx *Context) {
	s.segname = "__LINKEDIT"
	s.size = uint64(len(ctx.Strtab.Bytes()))
}

func (s *StrtabSection) CopyBuf(ctx *Context, buf []byte) { copy(buf, ctx.Strtab.Bytes()) }

func nlistType(sym *Symbol) uint8 {
	const (
		nExt  = 0x01
		nPext = 0x10
		nSect = 0xe
		nUndf = 0x0
	)
	t := uint8(0)
	if sym.Scope != ScopeLocal {
		t |= nExt
	}
	if sym.Scope == ScopePrivateExtern {
		t |= nPext
	}
	if sym.File != nil {
		t |= nSect
	} else {
		t |= nUndf
	}
	return t
}

func putNlist64(b []byte, strx uint32, ntype uint8, value uint64) {
	putU32(b[0:], strx)
	b[4] = ntype
	b[5] = 0
	putU16(b[6:], 0)
	putU64(b[8:], value)
}

func putU32(b []byte, v uint32) {
	b[0], b[1], b[2], b[3] = byte(v), byte(v>>8), byte(v>>16), byte(v>>24)
}
func putU16(b []byte, v uint16) { b[0], b[1] = byte(v), byte(v>>8) }
func putU64(b []byte, v uint64) {
	for i := 0; i < 8; i++ {
		b[i] = byte(v >> (8 * i))
	}
}
