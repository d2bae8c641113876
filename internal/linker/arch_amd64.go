package linker

import (
	"encoding/binary"
	"fmt"

	"github.com/appsworld/machold/internal/macho/types"
)

// amd64Arch implements Arch for x86-64. Unlike ARM64, several x86-64
// relocation types carry their addend pre-baked into the instruction's
// displacement bytes (SIGNED/SIGNED_1/SIGNED_2/SIGNED_4) rather than as a
// separate relocation entry, so ReadAddend has to know how many bytes of
// instruction precede the fixup site for each variant.
type amd64Arch struct{}

func (amd64Arch) CPU() CPU { return CPUAmd64 }

func (amd64Arch) StubSize() int { return amd64StubSize }

// WriteStub emits `jmp *disp32(%rip)` through the __la_symbol_ptr slot.
func (amd64Arch) WriteStub(buf []byte, stubAddr, gotAddr uint64) {
	buf[0], buf[1] = 0xff, 0x25
	disp := int32(int64(gotAddr) - int64(stubAddr) - 6)
	binary.LittleEndian.PutUint32(buf[2:], uint32(disp))
}

func (amd64Arch) StubHelperHeaderSize() int { return amd64StubHelperHdr }
func (amd64Arch) StubHelperEntrySize() int  { return amd64StubHelperEntry }

func (amd64Arch) WriteStubHelperHeader(buf []byte, helperAddr, dyldDataAddr uint64) {
	buf[0] = 0x4c
	buf[1] = 0x8d
	buf[2] = 0x1d // lea disp32(%rip), %r11
	disp := int32(int64(dyldDataAddr) - int64(helperAddr) - 7)
	binary.LittleEndian.PutUint32(buf[3:], uint32(disp))
	buf[7] = 0x41
	buf[8] = 0x53 // push %r11
	buf[9] = 0xff
	buf[10] = 0x25 // jmp *disp32(%rip) -> dyld_stub_binder's GOT slot, filled in by the caller
	binary.LittleEndian.PutUint32(buf[11:], 0)
}

func (amd64Arch) WriteStubHelperEntry(buf []byte, entryAddr, headerAddr uint64, bindOffset uint32) {
	buf[0] = 0x68 // push $imm32 (bind opcode stream offset)
	binary.LittleEndian.PutUint32(buf[1:], bindOffset)
	buf[5] = 0xe9 // jmp rel32 -> stub_helper header
	disp := int32(int64(headerAddr) - int64(entryAddr) - 10)
	binary.LittleEndian.PutUint32(buf[6:], uint32(disp))
}

func (amd64Arch) ReadAddend(insnBytes []byte, relocType uint8, explicit int64, hasExplicit bool) int64 {
	switch types.RelocTypeX86_64(relocType) {
	case types.X86_64RelocSigned1:
		return int64(int32(binary.LittleEndian.Uint32(insnBytes))) + 1
	case types.X86_64RelocSigned2:
		return int64(int32(binary.LittleEndian.Uint32(insnBytes))) + 2
	case types.X86_64RelocSigned4:
		return int64(int32(binary.LittleEndian.Uint32(insnBytes))) + 4
	default:
		return int64(int32(binary.LittleEndian.Uint32(insnBytes)))
	}
}

func (amd64Arch) ScanReloc(r Relocation, sym *Symbol) {
	if sym == nil {
		return
	}
	switch types.RelocTypeX86_64(r.Type) {
	case types.X86_64RelocGot, types.X86_64RelocGotLoad:
		sym.setFlag(needsGot)
	case types.X86_64RelocTLV:
		sym.setFlag(needsThreadPtr)
	case types.X86_64RelocBranch:
		if sym.IsDylibImport() {
			sym.setFlag(needsStub)
		}
	}
}

func (amd64Arch) ApplyReloc(image []byte, offset uint64, r Relocation, rc *RelocContext) error {
	switch types.RelocTypeX86_64(r.Type) {
	case types.X86_64RelocUnsigned:
		val := int64(rc.SymbolAddr) + rc.Addend
		if rc.HasSubtractor {
			val -= int64(rc.SubtractorAddr)
		}
		return putSized(image, offset, uint64(val), r.Length)

	case types.X86_64RelocSigned, types.X86_64RelocSigned1, types.X86_64RelocSigned2, types.X86_64RelocSigned4,
		types.X86_64RelocBranch, types.X86_64RelocGot, types.X86_64RelocGotLoad, types.X86_64RelocTLV:
		target := rc.SymbolAddr
		switch types.RelocTypeX86_64(r.Type) {
		case types.X86_64RelocGot, types.X86_64RelocGotLoad:
			target = rc.GotAddr
		case types.X86_64RelocTLV:
			target = rc.TlvAddr
		case types.X86_64RelocBranch:
			if rc.StubAddr != 0 {
				target = rc.StubAddr
			}
		}
		val := int64(target) - int64(rc.PC) - 4 + rc.Addend
		binary.LittleEndian.PutUint32(image[offset:], uint32(val))
		return nil

	case types.X86_64RelocSubtractor:
		return nil

	default:
		return fmt.Errorf("%w: x86_64 type %d", ErrBadRelocation, r.Type)
	}
}
