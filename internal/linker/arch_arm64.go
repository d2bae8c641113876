package linker

import (
	"encoding/binary"
	"fmt"

	"github.com/appsworld/machold/internal/macho/types"
)

// arm64Arch implements Arch for AArch64, grounded on the adrp/page
// relocation scheme: PAGE21/GOT_LOAD_PAGE21/TLVP_LOAD_PAGE21 encode a
// signed 21-bit page-aligned delta into an adrp instruction, and the
// matching PAGEOFF12 variants encode the low 12 bits into whatever
// load/store or add immediate instruction follows, auto-scaled by that
// instruction's operand size.
type arm64Arch struct{}

func (arm64Arch) CPU() CPU { return CPUArm64 }

func (arm64Arch) StubSize() int { return arm64StubSize }

// WriteStub emits the three-instruction __stubs trampoline: adrp to the
// __la_symbol_ptr slot's page, ldr the pointer, br to it.
func (arm64Arch) WriteStub(buf []byte, stubAddr, gotAddr uint64) {
	pageDelta := page(gotAddr) - page(stubAddr)
	binary.LittleEndian.PutUint32(buf[0:], 0x90000010|encodePage(pageDelta))
	off := uint32(gotAddr&0xfff) >> 3 // ldr x16, [x16, #imm12*8]
	binary.LittleEndian.PutUint32(buf[4:], 0xf9400210|(off<<10))
	binary.LittleEndian.PutUint32(buf[8:], 0xd61f0200) // br x16
}

func (arm64Arch) StubHelperHeaderSize() int { return arm64StubHelperHdr }
func (arm64Arch) StubHelperEntrySize() int  { return arm64StubHelperEntry }

func (arm64Arch) WriteStubHelperHeader(buf []byte, helperAddr, dyldDataAddr uint64) {
	pageDelta := page(dyldDataAddr) - page(helperAddr)
	binary.LittleEndian.PutUint32(buf[0:], 0x90000011|encodePage(pageDelta)) // adrp x17, dyld_data@page
	off := uint32(dyldDataAddr & 0xfff)
	binary.LittleEndian.PutUint32(buf[4:], 0x91000231|(off<<10)) // add x17, x17, dyld_data@pageoff
	binary.LittleEndian.PutUint32(buf[8:], 0xd61f0220)           // br x17
}

func (arm64Arch) WriteStubHelperEntry(buf []byte, entryAddr, headerAddr uint64, bindOffset uint32) {
	binary.LittleEndian.PutUint32(buf[0:], 0x18000050)           // ldr w16, #8 (bind opcode stream offset)
	delta := int64(headerAddr) - int64(entryAddr) - 4
	binary.LittleEndian.PutUint32(buf[4:], 0x14000000|encodeBranch26(delta))
	binary.LittleEndian.PutUint32(buf[8:], bindOffset)
}

func (arm64Arch) ReadAddend(insnBytes []byte, relocType uint8, explicit int64, hasExplicit bool) int64 {
	if hasExplicit {
		return explicit // ARM64_RELOC_ADDEND companion entry
	}
	return 0
}

func (arm64Arch) ScanReloc(r Relocation, sym *Symbol) {
	if sym == nil {
		return
	}
	switch types.RelocTypeARM64(r.Type) {
	case types.ARM64RelocGotLoadPage21, types.ARM64RelocGotLoadPageoff12, types.ARM64RelocPointerToGot:
		sym.setFlag(needsGot)
	case types.ARM64RelocTlvpLoadPage21, types.ARM64RelocTlvpLoadPageoff12:
		sym.setFlag(needsThreadPtr)
	case types.ARM64RelocBranch26:
		if sym.IsDylibImport() {
			sym.setFlag(needsStub)
		}
	}
}

func (arm64Arch) ApplyReloc(image []byte, offset uint64, r Relocation, rc *RelocContext) error {
	switch types.RelocTypeARM64(r.Type) {
	case types.ARM64RelocUnsigned:
		val := int64(rc.SymbolAddr) + rc.Addend
		if rc.HasSubtractor {
			val -= int64(rc.SubtractorAddr)
		}
		return putSized(image, offset, uint64(val), r.Length)

	case types.ARM64RelocBranch26:
		target := rc.SymbolAddr
		if rc.StubAddr != 0 {
			target = rc.StubAddr
		}
		delta := int64(target) - int64(rc.PC)
		binary.LittleEndian.PutUint32(image[offset:], readInsn(image, offset)&0xfc000000|encodeBranch26(delta))
		return nil

	case types.ARM64RelocPage21, types.ARM64RelocGotLoadPage21, types.ARM64RelocTlvpLoadPage21:
		target := rc.SymbolAddr
		if types.RelocTypeARM64(r.Type) == types.ARM64RelocGotLoadPage21 {
			target = rc.GotAddr
		} else if types.RelocTypeARM64(r.Type) == types.ARM64RelocTlvpLoadPage21 {
			target = rc.TlvAddr
		}
		delta := page(target) - page(rc.PC)
		insn := readInsn(image, offset)&^uint32(0x9f000000) | (insn21Opcode(types.RelocTypeARM64(r.Type)))
		binary.LittleEndian.PutUint32(image[offset:], insn|encodePage(delta))
		return nil

	case types.ARM64RelocPageoff12, types.ARM64RelocGotLoadPageoff12, types.ARM64RelocTlvpLoadPageoff12:
		target := rc.SymbolAddr
		if types.RelocTypeARM64(r.Type) == types.ARM64RelocGotLoadPageoff12 {
			target = rc.GotAddr
		} else if types.RelocTypeARM64(r.Type) == types.ARM64RelocTlvpLoadPageoff12 {
			target = rc.TlvAddr
		}
		insn := readInsn(image, offset)
		scale := pageoffScale(insn)
		imm12 := uint32(target&0xfff) >> scale
		binary.LittleEndian.PutUint32(image[offset:], insn&^uint32(0x3ffc00)|(imm12<<10))
		return nil

	case types.ARM64RelocSubtractor:
		return nil // consumed by the paired UNSIGNED relocation

	default:
		return fmt.Errorf("%w: ARM64 type %d", ErrBadRelocation, r.Type)
	}
}

func insn21Opcode(t types.RelocTypeARM64) uint32 {
	// PAGE21/GOT_LOAD_PAGE21/TLVP_LOAD_PAGE21 all target an adrp-class
	// instruction; the opcode bits themselves never change across the
	// three, only which address feeds the page() computation.
	return 0x90000000
}

// page/encodePage/pageoffScale implement the adrp addressing scheme: a
// 21-bit signed page delta split into a 2-bit low immlo and 19-bit high
// immhi field, and the load/store-class auto-scale factor that turns an
// unsigned 12-bit PAGEOFF12 immediate into a byte offset.
func page(addr uint64) int64    { return int64(addr &^ 0xfff) }
func encodePage(delta int64) uint32 {
	pages := delta >> 12
	immlo := uint32(pages&0x3) << 29
	immhi := uint32(pages&0x1ffffc) << 3
	return immlo | immhi
}

func encodeBranch26(delta int64) uint32 {
	return uint32((delta >> 2) & 0x3ffffff)
}

func pageoffScale(insn uint32) uint32 {
	if insn&0x3b000000 != 0x39000000 {
		return 0 // not a load/store-unsigned-immediate instruction: e.g. `add`, scale 1
	}
	size := insn >> 30
	if size == 0 && (insn>>26)&0x1 == 1 {
		return 4 // 128-bit vector load/store
	}
	return size
}

func readInsn(image []byte, offset uint64) uint32 {
	return binary.LittleEndian.Uint32(image[offset:])
}

// putSized writes val into image at offset using length bytes. length is
// a byte count (1, 2, 4, or 8), matching how Relocation.Length is produced
// in object.go's relocation scan, not a log2 exponent.
func putSized(image []byte, offset, val uint64, length uint8) error {
	switch length {
	case 1:
		image[offset] = byte(val)
	case 2:
		binary.LittleEndian.PutUint16(image[offset:], uint16(val))
	case 4:
		binary.LittleEndian.PutUint32(image[offset:], uint32(val))
	case 8:
		binary.LittleEndian.PutUint64(image[offset:], val)
	default:
		return fmt.Errorf("%w: bad relocation length %d", ErrBadRelocation, length)
	}
	return nil
}
