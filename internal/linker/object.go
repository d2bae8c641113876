package linker

import (
	"bytes"
	"encoding/binary"
	"fmt"

	"github.com/appsworld/machold/internal/macho/types"
)

// rawSegment64 and rawSection64 are the on-disk segment_command_64 and
// section_64 structs without the leading (cmd, cmdsize) header, read with
// binary.Read the same way every load command in this tree is decoded.
type rawSegment64 struct {
	Name    [16]byte
	VMAddr  uint64
	VMSize  uint64
	FileOff uint64
	FileSize uint64
	MaxProt int32
	InitProt int32
	NSects  uint32
	Flags   uint32
}

type rawSection64 struct {
	Name      [16]byte
	SegName   [16]byte
	Addr      uint64
	Size      uint64
	Offset    uint32
	Align     uint32
	Reloff    uint32
	Nreloc    uint32
	Flags     uint32
	Reserved1 uint32
	Reserved2 uint32
	Reserved3 uint32
}

type rawRelocInfo struct {
	Addr   uint32
	Symnum uint32
}

// ParseObject decodes one relocatable Mach-O (.o) file's bytes into an
// ObjectFile, splitting every section into subsections at its symbol
// boundaries and interning every defined/undefined name it mentions
// through ctx.Symtab. path is recorded only for diagnostics.
func ParseObject(ctx *Context, path string, data []byte, priority int) (*ObjectFile, error) {
	if len(data) < types.FileHeaderSize64 {
		return nil, fmt.Errorf("%s: file too small for a mach_header_64", path)
	}
	bo := binary.LittleEndian

	obj := &ObjectFile{Path: path, Priority: priority, AltEntry: map[uint64]bool{}}
	obj.Header.Magic = types.Magic(bo.Uint32(data[0:4]))
	if obj.Header.Magic != types.Magic64 {
		return nil, fmt.Errorf("%s: not a 64-bit little-endian mach-o object", path)
	}
	obj.Header.CPU = types.CPU(bo.Uint32(data[4:8]))
	obj.Header.SubCPU = types.CPUSubtype(bo.Uint32(data[8:12]))
	obj.Header.Type = types.HeaderFileType(bo.Uint32(data[12:16]))
	obj.Header.NCommands = bo.Uint32(data[16:20])
	obj.Header.SizeCommands = bo.Uint32(data[20:24])
	obj.Header.Flags = types.HeaderFlag(bo.Uint32(data[24:28]))

	if obj.Header.Type != types.MH_OBJECT {
		return nil, fmt.Errorf("%s: expected MH_OBJECT, got %s", path, obj.Header.Type)
	}

	cmdDat := data[types.FileHeaderSize64:]
	if uint32(len(cmdDat)) < obj.Header.SizeCommands {
		return nil, fmt.Errorf("%s: truncated load commands", path)
	}
	cmdDat = cmdDat[:obj.Header.SizeCommands]

	// index(sectionIndex) -> the InputSection it names, and the file-wide
	// offset at which its subsections begin in obj.Subsections, so
	// relocations (which name a 1-based section ordinal for local/non-extern
	// symbols) can find the defining subsection.
	var sectIndex []*InputSection
	var symtabCmd *types.SymtabCmd
	var pendingSects []pendingSection
	var dataInCodeCmd *types.LinkEditDataCmd

	for i := uint32(0); i < obj.Header.NCommands; i++ {
		if len(cmdDat) < 8 {
			return nil, fmt.Errorf("%s: command block too small", path)
		}
		cmd := types.LoadCmd(bo.Uint32(cmdDat[0:4]))
		size := bo.Uint32(cmdDat[4:8])
		if size < 8 || uint32(len(cmdDat)) < size {
			return nil, fmt.Errorf("%s: invalid load command size", path)
		}
		body := cmdDat[8:size]
		cmdDat = cmdDat[size:]

		switch cmd {
		case types.LC_SEGMENT_64:
			var seg rawSegment64
			r := bytes.NewReader(body)
			if err := binary.Read(r, bo, &seg); err != nil {
				return nil, fmt.Errorf("%s: LC_SEGMENT_64: %w", path, err)
			}
			for s := uint32(0); s < seg.NSects; s++ {
				var sec rawSection64
				if err := binary.Read(r, bo, &sec); err != nil {
					return nil, fmt.Errorf("%s: section_64 %d: %w", path, s, err)
				}
				isec := &InputSection{
					File:     obj,
					Segname:  nameFromBytes16(sec.SegName),
					Sectname: nameFromBytes16(sec.Name),
					Addr:     sec.Addr,
					Flags:    types.SecFlag(sec.Flags),
					Align:    sec.Align,
				}
				if isec.Flags.Type() == types.S_ZEROFILL {
					isec.Data = make([]byte, sec.Size)
				} else if sec.Size > 0 {
					if uint64(sec.Offset)+sec.Size > uint64(len(data)) {
						return nil, fmt.Errorf("%s: section %s,%s out of bounds", path, isec.Segname, isec.Sectname)
					}
					isec.Data = data[sec.Offset : sec.Offset+uint32(sec.Size)]
				}
				sectIndex = append(sectIndex, isec)
				if sec.Nreloc > 0 {
					pendingSects = append(pendingSects, pendingSection{isec: isec, reloff: sec.Reloff, nreloc: sec.Nreloc})
				}
			}
		case types.LC_SYMTAB:
			var st types.SymtabCmd
			r := bytes.NewReader(body)
			if err := binary.Read(r, bo, &st); err != nil {
				return nil, fmt.Errorf("%s: LC_SYMTAB: %w", path, err)
			}
			symtabCmd = &st
		case types.LC_DATA_IN_CODE:
			var led types.LinkEditDataCmd
			r := bytes.NewReader(body)
			if err := binary.Read(r, bo, &led); err != nil {
				return nil, fmt.Errorf("%s: LC_DATA_IN_CODE: %w", path, err)
			}
			dataInCodeCmd = &led
		default:
			// every other load command (LC_BUILD_VERSION, LC_LINKER_OPTION,
			// ...) carries nothing this linker consumes from a relocatable
			// input; skip it.
		}
	}

	if symtabCmd == nil {
		return nil, fmt.Errorf("%s: missing LC_SYMTAB", path)
	}
	if dataInCodeCmd != nil {
		if err := parseDataInCode(obj, data, dataInCodeCmd); err != nil {
			return nil, err
		}
	}
	if err := parseObjectSymbols(ctx, obj, data, symtabCmd, sectIndex); err != nil {
		return nil, err
	}

	// When the file sets MH_SUBSECTIONS_VIA_SYMBOLS, split every section
	// into subsections at the offsets its own defined symbols introduce;
	// otherwise each section stays one subsection. Then parse and attach
	// that section's relocations.
	boundaries := make(map[*InputSection][]uint64)
	if obj.Header.Flags.Has(types.SubsectionsViaSymbols) {
		for _, ps := range obj.parseSyms {
			if ps.defSym != nil && ps.sectIdx > 0 && int(ps.sectIdx) <= len(sectIndex) {
				isec := sectIndex[ps.sectIdx-1]
				boundaries[isec] = append(boundaries[isec], ps.symValue-isec.Addr)
			}
		}
	}

	subsecOfSect := make(map[*InputSection][]*Subsection)
	for _, isec := range sectIndex {
		subs := SplitSubsections(isec, boundaries[isec])
		subsecOfSect[isec] = subs
		obj.Subsections = append(obj.Subsections, subs...)
	}

	// Now that every subsection exists, attach each defined symbol to the
	// one whose [offset, offset+size) range contains its value.
	for _, ps := range obj.parseSyms {
		if ps.defSym == nil || ps.sectIdx == 0 || int(ps.sectIdx) > len(sectIndex) {
			continue
		}
		isec := sectIndex[ps.sectIdx-1]
		ps.defSym.Subsec = subsectionAt(subsecOfSect[isec], ps.symValue)
		ps.defSym.Value = ps.symValue - subOffset(ps.defSym.Subsec)
	}

	for _, ps := range pendingSects {
		if err := attachRelocations(ctx, obj, data, bo, ps, sectIndex, subsecOfSect); err != nil {
			return nil, err
		}
	}

	obj.CompactUnwind = parseCompactUnwind(sectIndex, subsecOfSect)

	return obj, nil
}

// parseDataInCode decodes LC_DATA_IN_CODE's flat data_in_code_entry array;
// each entry's offset is already in this file's own section address space,
// matching the nlist value space datacode.go translates the same way
// funcstarts.go translates __text symbol addresses.
func parseDataInCode(obj *ObjectFile, data []byte, led *types.LinkEditDataCmd) error {
	if led.DataSize == 0 {
		return nil
	}
	const entSize = 8
	if uint64(led.DataOff)+uint64(led.DataSize) > uint64(len(data)) {
		return fmt.Errorf("%s: data-in-code table out of bounds", obj.Path)
	}
	bo := binary.LittleEndian
	n := led.DataSize / entSize
	obj.DataInCode = make([]rawDiceEntry, 0, n)
	for i := uint32(0); i < n; i++ {
		off := led.DataOff + i*entSize
		obj.DataInCode = append(obj.DataInCode, rawDiceEntry{
			Addr:   uint64(bo.Uint32(data[off:])),
			Length: bo.Uint16(data[off+4:]),
			Kind:   bo.Uint16(data[off+6:]),
		})
	}
	return nil
}

// parseCompactUnwind decodes every __LD,__compact_unwind section's fixed
// 32-byte records (function address, length, encoding, personality
// pointer, LSDA pointer), resolving the two pointer fields through that
// section's own relocations rather than the zero bytes the object itself
// stores for them, the same indirection an extern relocation's symbol
// target provides for any other pointer-sized field.
func parseCompactUnwind(sectIndex []*InputSection, subsecOfSect map[*InputSection][]*Subsection) []rawUnwindEntry {
	var out []rawUnwindEntry
	const recSize = 32
	for _, isec := range sectIndex {
		if isec.Segname != "__LD" || isec.Sectname != "__compact_unwind" {
			continue
		}
		subs := subsecOfSect[isec]
		relocsAt := func(fieldOff uint64) *Symbol {
			for _, ss := range subs {
				for i := range ss.Relocs {
					r := &ss.Relocs[i]
					if ss.Offset+r.Offset == fieldOff {
						return r.Target
					}
				}
			}
			return nil
		}
		n := uint64(len(isec.Data)) / recSize
		bo := binary.LittleEndian
		for i := uint64(0); i < n; i++ {
			base := i * recSize
			out = append(out, rawUnwindEntry{
				FuncAddr:    bo.Uint64(isec.Data[base:]),
				Length:      bo.Uint32(isec.Data[base+8:]),
				Encoding:    bo.Uint32(isec.Data[base+12:]),
				Personality: relocsAt(base + 16),
				LSDA:        relocsAt(base + 24),
			})
		}
	}
	return out
}

type pendingSection struct {
	isec   *InputSection
	reloff uint32
	nreloc uint32
}

// objSym is the intermediate form of one parsed nlist_64 entry, kept
// until subsections exist to attach a definition to.
//
//   - sym is what a relocation naming this nlist index as its target
//     should point to: the shared interned *Symbol for extern/private-extern
//     names (so every file's reference converges on one resolution target),
//     or a fresh file-local *Symbol for everything else.
//   - defSym is this file's own candidate definition, when this entry
//     defines something: for extern/private-extern names it is a separate,
//     un-interned *Symbol destined for Resolve()'s rank-based merge
//     (resolve.go); for local names it is the same pointer as sym, since a
//     local definition never competes with another file's symbol of the
//     same name. nil for a plain undefined reference.
type objSym struct {
	sym      *Symbol
	defSym   *Symbol
	sectIdx  uint8
	symValue uint64
}

func parseObjectSymbols(ctx *Context, obj *ObjectFile, data []byte, st *types.SymtabCmd, sectIndex []*InputSection) error {
	bo := binary.LittleEndian
	if uint64(st.Stroff)+uint64(st.Strsize) > uint64(len(data)) {
		return fmt.Errorf("%s: string table out of bounds", obj.Path)
	}
	strtab := data[st.Stroff : st.Stroff+st.Strsize]

	const nlistSize = 16
	need := uint64(st.Symoff) + uint64(st.Nsyms)*nlistSize
	if need > uint64(len(data)) {
		return fmt.Errorf("%s: symbol table out of bounds", obj.Path)
	}

	// parseSyms is indexed by raw nlist position (stabs included as zero
	// entries) because relocation_info.r_symbolnum for an extern
	// relocation names that raw index, not a compacted one.
	objSyms := make([]objSym, st.Nsyms)
	for i := uint32(0); i < st.Nsyms; i++ {
		off := st.Symoff + i*nlistSize
		strx := bo.Uint32(data[off:])
		ntype := types.NType(data[off+4])
		sect := data[off+5]
		desc := bo.Uint16(data[off+6:])
		value := bo.Uint64(data[off+8:])

		if ntype.IsStab() {
			continue // debugging symbol table entries carry no linkage meaning
		}
		if strx >= uint32(len(strtab)) {
			return fmt.Errorf("%s: symbol %d: name out of bounds", obj.Path, i)
		}
		name := cstringAt(strtab, strx)
		if name == "" {
			continue // the initial string-table-offset-0 placeholder entry
		}

		scope := scopeOf(ntype)
		weak := desc&types.NDescWeakRef != 0
		weakDef := desc&types.NDescWeakDef != 0
		isExtern := scope == ScopeExtern || scope == ScopePrivateExtern

		var refSym, defSym *Symbol
		if isExtern {
			refSym = ctx.Symtab.Intern(name)
		} else {
			refSym = &Symbol{Name: name, Scope: scope}
		}

		switch {
		case ntype.Kind() == types.NUndf && value == 0:
			// plain undefined reference: refSym already exists (or was just
			// interned) for relocations to point at; nothing defines it here.
		case ntype.Kind() == types.NUndf && value > 0:
			// tentative (common) definition.
			defSym = &Symbol{Name: name, Scope: scope, Weak: weak, WeakDef: weakDef,
				CommonSize: value, CommonAlign: uint64(1) << ((desc >> 8) & 0xf)}
		case isExtern:
			defSym = &Symbol{Name: name, Scope: scope, Weak: weak, WeakDef: weakDef}
		default:
			refSym.Weak, refSym.WeakDef = weak, weakDef
			defSym = refSym
		}

		objSyms[i] = objSym{sym: refSym, defSym: defSym, sectIdx: sect, symValue: value}
	}

	obj.parseSyms = objSyms
	for _, ps := range objSyms {
		if ps.defSym != nil {
			obj.Symbols = append(obj.Symbols, ps.defSym)
		}
	}
	return nil
}

func scopeOf(t types.NType) Scope {
	switch {
	case t.IsExt() && t.IsPext():
		return ScopePrivateExtern
	case t.IsExt():
		return ScopeExtern
	default:
		return ScopeLocal
	}
}

func subsectionAt(subs []*Subsection, value uint64) *Subsection {
	for _, ss := range subs {
		if value >= ss.Isec.Addr+ss.Offset && value < ss.Isec.Addr+ss.Offset+ss.Size {
			return ss
		}
	}
	if len(subs) > 0 {
		return subs[len(subs)-1]
	}
	return nil
}

func subOffset(ss *Subsection) uint64 {
	if ss == nil {
		return 0
	}
	return ss.Isec.Addr + ss.Offset
}

func cstringAt(b []byte, off uint32) string {
	end := off
	for end < uint32(len(b)) && b[end] != 0 {
		end++
	}
	return string(b[off:end])
}

func nameFromBytes16(b [16]byte) string {
	for i, c := range b {
		if c == 0 {
			return string(b[:i])
		}
	}
	return string(b[:])
}

func attachRelocations(ctx *Context, obj *ObjectFile, data []byte, bo binary.ByteOrder, ps pendingSection, sectIndex []*InputSection, subsecOfSect map[*InputSection][]*Subsection) error {
	need := uint64(ps.reloff) + uint64(ps.nreloc)*8
	if need > uint64(len(data)) {
		return fmt.Errorf("%s: relocations for %s,%s out of bounds", obj.Path, ps.isec.Segname, ps.isec.Sectname)
	}
	subs := subsecOfSect[ps.isec]

	// ARM64_RELOC_ADDEND and *_RELOC_SUBTRACTOR never describe a fixup of
	// their own; each always immediately precedes the relocation it
	// modifies, so its value/target is folded into that next entry instead
	// of becoming a Relocation in its own right.
	var pendingAddend int64
	var havePendingAddend bool
	var pendingSubtractor *Symbol

	for i := uint32(0); i < ps.nreloc; i++ {
		off := ps.reloff + i*8
		var ri rawRelocInfo
		ri.Addr = bo.Uint32(data[off:])
		ri.Symnum = bo.Uint32(data[off+4:])

		var info types.RelocInfo
		info.Addr = ri.Addr
		info.SymNum = ri.Symnum & (1<<24 - 1)
		info.PCRel = ri.Symnum&(1<<24) != 0
		info.Length = uint8((ri.Symnum >> 25) & (1<<2 - 1))
		info.Extern = ri.Symnum&(1<<27) != 0
		info.Type = uint8((ri.Symnum >> 28) & (1<<4 - 1))

		if obj.Header.CPU == types.CPUArm64 && !info.Extern && types.RelocTypeARM64(info.Type) == types.ARM64RelocAddend {
			pendingAddend = signExtend24(info.SymNum)
			havePendingAddend = true
			continue
		}

		ss := subsectionAt(subs, ps.isec.Addr+uint64(info.Addr))
		if ss == nil {
			continue
		}

		var target *Symbol
		if info.Extern {
			if int(info.SymNum) >= len(obj.parseSyms) {
				return fmt.Errorf("%s: relocation symbol index out of range", obj.Path)
			}
			target = obj.parseSyms[info.SymNum].sym
		} else if info.SymNum > 0 && int(info.SymNum) <= len(sectIndex) {
			// section-relative: resolves to whatever subsection of that
			// section contains the relocation's eventual target address,
			// patched in once the addend (read by ApplyReloc) is known;
			// record the section here and let apply-time math do the rest.
			target = sectionAnchorSymbol(sectIndex[info.SymNum-1], subsecOfSect)
		}

		if isSubtractorType(info.Type, obj.Header.CPU) {
			pendingSubtractor = target
			continue
		}

		reloc := Relocation{
			Offset: ps.isec.Addr + uint64(info.Addr) - (ss.Isec.Addr + ss.Offset),
			Type:   info.Type,
			Target: target,
			Length: uint8(1) << info.Length,
			PCRel:  info.PCRel,
		}
		if havePendingAddend {
			reloc.Addend = pendingAddend
			havePendingAddend = false
		}
		if pendingSubtractor != nil {
			reloc.Subtractor = pendingSubtractor
			pendingSubtractor = nil
		}
		ss.Relocs = append(ss.Relocs, reloc)
	}
	return nil
}

// isSubtractorType reports whether t is the arch-appropriate SUBTRACTOR
// relocation type; ARM64 and x86-64 assign this role to different numeric
// values, so the owning object's CPU selects which constant space applies.
func isSubtractorType(t uint8, cpu types.CPU) bool {
	if cpu == types.CPUArm64 {
		return types.RelocTypeARM64(t) == types.ARM64RelocSubtractor
	}
	return types.RelocTypeX86_64(t) == types.X86_64RelocSubtractor
}

// signExtend24 sign-extends ARM64_RELOC_ADDEND's 24-bit packed addend
// value (stored in the relocation_info's r_symbolnum field) to int64.
func signExtend24(v uint32) int64 {
	v &= 1<<24 - 1
	if v&(1<<23) != 0 {
		v |= ^uint32(0) << 24
	}
	return int64(int32(v))
}

// sectionAnchorSymbol returns a synthetic, unnamed *Symbol pointing at the
// first subsection of a section-relative relocation's target section; its
// Subsec/Value let ApplyReloc compute the fixup the same way an extern
// relocation would, without needing the original (anonymous) local symbol
// that many compilers omit from the symbol table entirely.
func sectionAnchorSymbol(isec *InputSection, subsecOfSect map[*InputSection][]*Subsection) *Symbol {
	subs := subsecOfSect[isec]
	if len(subs) == 0 {
		return nil
	}
	// never interned: purely an apply-time address anchor, not a linkage name
	return &Symbol{Subsec: subs[0]}
}
