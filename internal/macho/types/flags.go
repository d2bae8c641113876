package types

import "strings"

// Rebase opcode stream (REBASE_OPCODE_*), consumed by dyld before any bind
// runs: every pointer needing a load-address slide gets one rebase entry.
const (
	RebaseTypePointer uint8 = 1

	RebaseOpcodeMask                        uint8 = 0xF0
	RebaseImmediateMask                     uint8 = 0x0F
	RebaseOpcodeDone                        uint8 = 0x00
	RebaseOpcodeSetTypeImm                  uint8 = 0x10
	RebaseOpcodeSetSegmentAndOffsetUleb     uint8 = 0x20
	RebaseOpcodeAddAddrUleb                 uint8 = 0x30
	RebaseOpcodeDoRebaseImmTimes            uint8 = 0x50
	RebaseOpcodeDoRebaseUlebTimes           uint8 = 0x60
	RebaseOpcodeDoRebaseAddAddrUleb         uint8 = 0x70
	RebaseOpcodeDoRebaseUlebTimesSkippingUleb uint8 = 0x80
)

// Bind opcode stream (BIND_OPCODE_*): resolves imported symbols into
// pointer slots (GOT, non-lazy pointers, TLV descriptors).
const (
	BindTypePointer uint8 = 1

	BindSpecialDylibSelf          int8 = 0
	BindSpecialDylibMainExecutable int8 = -1
	BindSpecialDylibFlatLookup     int8 = -2

	BindSymbolFlagsWeakImport uint8 = 0x1

	BindOpcodeMask                          uint8 = 0xF0
	BindImmediateMask                       uint8 = 0x0F
	BindOpcodeDone                          uint8 = 0x00
	BindOpcodeSetDylibOrdinalImm            uint8 = 0x10
	BindOpcodeSetDylibOrdinalUleb           uint8 = 0x20
	BindOpcodeSetDylibSpecialImm            uint8 = 0x30
	BindOpcodeSetSymbolTrailingFlagsImm     uint8 = 0x40
	BindOpcodeSetTypeImm                    uint8 = 0x50
	BindOpcodeSetAddendSleb                 uint8 = 0x60
	BindOpcodeSetSegmentAndOffsetUleb       uint8 = 0x70
	BindOpcodeAddAddrUleb                   uint8 = 0x80
	BindOpcodeDoBind                        uint8 = 0x90
	BindOpcodeDoBindAddAddrUleb             uint8 = 0xA0
)

// ExportFlag is the flags byte of a terminal node in the export trie.
type ExportFlag int

const (
	ExportSymbolFlagsKindMask        ExportFlag = 0x03
	ExportSymbolFlagsKindRegular     ExportFlag = 0x00
	ExportSymbolFlagsKindThreadLocal ExportFlag = 0x01
	ExportSymbolFlagsKindAbsolute    ExportFlag = 0x02
	ExportSymbolFlagsWeakDefinition  ExportFlag = 0x04
	ExportSymbolFlagsReexport        ExportFlag = 0x08
	ExportSymbolFlagsStubAndResolver ExportFlag = 0x10
)

func (f ExportFlag) Regular() bool {
	return (f & ExportSymbolFlagsKindMask) == ExportSymbolFlagsKindRegular
}
func (f ExportFlag) ThreadLocal() bool {
	return (f & ExportSymbolFlagsKindMask) == ExportSymbolFlagsKindThreadLocal
}
func (f ExportFlag) WeakDefinition() bool { return f&ExportSymbolFlagsWeakDefinition != 0 }
func (f ExportFlag) ReExport() bool       { return f&ExportSymbolFlagsReexport != 0 }
func (f ExportFlag) StubAndResolver() bool {
	return f&ExportSymbolFlagsStubAndResolver != 0
}

func (f ExportFlag) String() string {
	var s []string
	if f.Regular() {
		s = append(s, "regular")
	} else if f.ThreadLocal() {
		s = append(s, "thread-local")
	}
	if f.WeakDefinition() {
		s = append(s, "weak")
	}
	if f.ReExport() {
		s = append(s, "re-export")
	}
	if f.StubAndResolver() {
		s = append(s, "stub-and-resolver")
	}
	return strings.Join(s, ",")
}
