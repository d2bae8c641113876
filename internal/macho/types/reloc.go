package types

// RelocInfo is one relocation_info/scattered_relocation_info entry as
// stored in an object file's __LINKEDIT-adjacent relocation list (before
// the linker consumes and discards it — the output never carries
// relocations of its own).
type RelocInfo struct {
	Addr    uint32 // section-relative offset of the fixup
	SymNum  uint32 // index into the symbol table, or a section ordinal if Extern is false
	PCRel   bool
	Length  uint8 // log2 operand size: 0=1, 1=2, 2=4, 3=8 bytes
	Extern  bool
	Type    uint8
}

// RelocTypeARM64 enumerates ARM64_RELOC_* from <mach-o/arm64/reloc.h>.
type RelocTypeARM64 uint8

const (
	ARM64RelocUnsigned           RelocTypeARM64 = 0
	ARM64RelocSubtractor         RelocTypeARM64 = 1
	ARM64RelocBranch26           RelocTypeARM64 = 2
	ARM64RelocPage21             RelocTypeARM64 = 3
	ARM64RelocPageoff12          RelocTypeARM64 = 4
	ARM64RelocGotLoadPage21      RelocTypeARM64 = 5
	ARM64RelocGotLoadPageoff12   RelocTypeARM64 = 6
	ARM64RelocPointerToGot       RelocTypeARM64 = 7
	ARM64RelocTlvpLoadPage21     RelocTypeARM64 = 8
	ARM64RelocTlvpLoadPageoff12  RelocTypeARM64 = 9
	ARM64RelocAddend             RelocTypeARM64 = 10
)

// RelocTypeX86_64 enumerates X86_64_RELOC_* from <mach-o/x86_64/reloc.h>.
type RelocTypeX86_64 uint8

const (
	X86_64RelocUnsigned   RelocTypeX86_64 = 0
	X86_64RelocSigned     RelocTypeX86_64 = 1
	X86_64RelocBranch     RelocTypeX86_64 = 2
	X86_64RelocGotLoad    RelocTypeX86_64 = 3
	X86_64RelocGot        RelocTypeX86_64 = 4
	X86_64RelocSubtractor RelocTypeX86_64 = 5
	X86_64RelocSigned1    RelocTypeX86_64 = 6
	X86_64RelocSigned2    RelocTypeX86_64 = 7
	X86_64RelocSigned4    RelocTypeX86_64 = 8
	X86_64RelocTLV        RelocTypeX86_64 = 9
)

// Nlist64 is the 64-bit symbol table entry (struct nlist_64).
type Nlist64 struct {
	StrX  uint32
	Type  NType
	Sect  uint8
	Desc  uint16
	Value uint64
}

// NType is the n_type byte: a 1-bit stab/field selector over N_PEXT/N_TYPE/N_EXT.
type NType uint8

const (
	NStab NType = 0xe0
	NPext NType = 0x10
	NType_ NType = 0x0e // mask for N_UNDF/N_ABS/N_SECT/N_PBUD/N_INDR
	NExt  NType = 0x01

	NUndf NType = 0x0
	NAbs  NType = 0x2
	NSect NType = 0xe
	NIndr NType = 0xa
)

func (t NType) IsExt() bool  { return t&NExt != 0 }
func (t NType) IsPext() bool { return t&NPext != 0 }
func (t NType) IsStab() bool { return t&NStab != 0 }
func (t NType) Kind() NType  { return t & NType_ }

// NDesc bits relevant to the linker: weak import/weak def, and
// REFERENCED_DYNAMICALLY which pins a symbol alive regardless of dead-strip.
const (
	NDescWeakRef               uint16 = 0x0040
	NDescWeakDef               uint16 = 0x0080
	NDescReferencedDynamically uint16 = 0x0010
	NDescNoDeadStrip           uint16 = 0x0020
)
