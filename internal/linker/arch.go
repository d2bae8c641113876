package linker

import (
	"fmt"

	"github.com/appsworld/machold/internal/macho/types"
)

// CPU names the target architecture for one link. Each supported value has
// a concrete Arch implementation below; there is no generic/parametric
// arch — every per-architecture concern (relocation semantics, stub byte
// encoding, GOT/TLV pointer width) is selected once at Context construction
// and never branches on CPU again afterward.
type CPU int

const (
	CPUArm64 CPU = iota
	CPUAmd64
)

func (c CPU) MachOCPU() types.CPU {
	if c == CPUArm64 {
		return types.CPUArm64
	}
	return types.CPUAmd64
}

func (c CPU) String() string {
	if c == CPUArm64 {
		return "arm64"
	}
	return "x86_64"
}

func ParseCPU(name string) (CPU, error) {
	switch name {
	case "arm64", "aarch64":
		return CPUArm64, nil
	case "x86_64", "amd64":
		return CPUAmd64, nil
	}
	return 0, fmt.Errorf("linker: unsupported architecture %q", name)
}

// stubSize and stubHelperHeaderSize are the fixed, arch-dependent byte
// counts of one __stubs entry and the __stub_helper prologue. ARM64's stub
// is three 4-byte instructions; x86-64's is a single 6-byte indirect jmp.
const (
	arm64StubSize        = 12
	arm64StubHelperHdr    = 12
	arm64StubHelperEntry  = 12
	amd64StubSize         = 6
	amd64StubHelperHdr    = 16
	amd64StubHelperEntry  = 10
)

// Arch isolates every byte-level, instruction-set-specific decision a
// multi-architecture static linker has to make: how a relocation's addend
// is read from the instruction stream, how a fixed-up value is re-encoded
// back into it, and how the lazy-binding trampolines are built.
type Arch interface {
	CPU() CPU

	// StubSize is the size in bytes of one __stubs entry.
	StubSize() int
	// WriteStub encodes a __stubs entry at buf[0:StubSize()] that loads
	// through the corresponding __la_symbol_ptr slot at gotAddr (computed
	// pc-relative to stubAddr) and branches to it.
	WriteStub(buf []byte, stubAddr, gotAddr uint64)

	// StubHelperHeaderSize/EntrySize size the __stub_helper section:
	// one shared header plus one entry per lazily-bound stub.
	StubHelperHeaderSize() int
	StubHelperEntrySize() int
	WriteStubHelperHeader(buf []byte, helperAddr, dyldDataAddr uint64)
	WriteStubHelperEntry(buf []byte, entryAddr, headerAddr uint64, bindOffset uint32)

	// ReadAddend extracts a relocation's built-in addend from the
	// instruction bytes it targets (x86-64 SIGNED_1/2/4) or from an
	// explicit ARM64_RELOC_ADDEND companion entry.
	ReadAddend(insnBytes []byte, relocType uint8, explicit int64, hasExplicit bool) int64

	// ApplyReloc computes the final value for one relocation against a
	// subsection and patches it into the output image at the given
	// section-relative offset.
	ApplyReloc(image []byte, offset uint64, r Relocation, ctx *RelocContext) error

	// ScanReloc records the symbol-level side effects a relocation
	// requires before layout (GOT slot, stub, TLV pointer). Range thunks
	// are not flagged here; link.go's addNeededThunks adds them after layout.
	ScanReloc(r Relocation, sym *Symbol)
}

// RelocContext is the small bundle of addresses ApplyReloc needs that
// aren't part of the Relocation itself: where the fixup site, its symbol,
// and the various synthetic sections currently sit in the output address
// space.
type RelocContext struct {
	PC          uint64 // address of the relocation's fixup site
	SymbolAddr  uint64
	GotAddr     uint64 // address of the symbol's GOT slot, if it has one
	TlvAddr     uint64
	StubAddr    uint64
	Addend      int64
	SubtractorAddr uint64 // set when paired with a SUBTRACTOR relocation
	HasSubtractor  bool
}

func NewArch(cpu CPU) Arch {
	if cpu == CPUArm64 {
		return arm64Arch{}
	}
	return amd64Arch{}
}
