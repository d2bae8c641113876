package linker

// Relocation is one input-file fixup, normalized from either
// ARM64_RELOC_* or X86_64_RELOC_* on-disk encodings into a single
// arch-agnostic shape that arch.go's ApplyReloc/ScanReloc methods consume.
// A SUBTRACTOR relocation is folded into the UNSIGNED one it always pairs
// with when object.go's attachRelocations reads the input relocations, so
// downstream code only ever sees one Relocation per fixup site.
type Relocation struct {
	Offset uint64 // subsection-relative offset of the fixup
	Type   uint8  // ARM64RelocXxx or X86_64RelocXxx, per the owning Arch
	Target *Symbol
	Addend int64

	// Subtractor is set when this relocation was paired with a
	// SUBTRACTOR in the input (Target - Subtractor + addend); Target is
	// the plus term, Subtractor the minus term.
	Subtractor *Symbol

	Length uint8 // operand width in bytes: 1, 2, 4, or 8
	PCRel  bool
}

// scanRelocations walks every relocation of every subsection it is given
// once during the scan phase (link.go runs it before dead-strip, so dead
// subsections are scanned too), letting the Arch implementation flag each
// target symbol's synthetic-section needs (GOT slot, stub, TLV pointer).
// Mirrors the scan_relocations pass that must run before layout can size
// __got/__stubs/__thread_ptrs.
func scanRelocations(arch Arch, subsecs []*Subsection) {
	for _, ss := range subsecs {
		for i := range ss.Relocs {
			arch.ScanReloc(ss.Relocs[i], ss.Relocs[i].Target)
		}
	}
}
