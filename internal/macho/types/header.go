package types

import (
	"bytes"
	"encoding/binary"
	"fmt"
)

// FileHeader is the 32-byte mach_header_64 that opens every Mach-O file
// this tool produces or consumes.
type FileHeader struct {
	Magic        Magic
	CPU          CPU
	SubCPU       CPUSubtype
	Type         HeaderFileType
	NCommands    uint32
	SizeCommands uint32
	Flags        HeaderFlag
	Reserved     uint32
}

const FileHeaderSize64 = 8 * 4

func (h *FileHeader) Put(b []byte, o binary.ByteOrder) int {
	o.PutUint32(b[0:], uint32(h.Magic))
	o.PutUint32(b[4:], uint32(h.CPU))
	o.PutUint32(b[8:], uint32(h.SubCPU))
	o.PutUint32(b[12:], uint32(h.Type))
	o.PutUint32(b[16:], h.NCommands)
	o.PutUint32(b[20:], h.SizeCommands)
	o.PutUint32(b[24:], uint32(h.Flags))
	o.PutUint32(b[28:], h.Reserved)
	return FileHeaderSize64
}

func (h *FileHeader) Write(buf *bytes.Buffer, o binary.ByteOrder) error {
	if err := binary.Write(buf, o, h); err != nil {
		return fmt.Errorf("write mach_header_64: %w", err)
	}
	return nil
}

type Magic uint32

const (
	Magic64 Magic = 0xfeedfacf
)

// HeaderFileType is the Mach-O filetype field: MH_OBJECT on relocatable
// inputs, and on the output the kind selected by -dylib or -bundle
// (an executable when neither is given).
type HeaderFileType uint32

const (
	MH_OBJECT  HeaderFileType = 0x1
	MH_EXECUTE HeaderFileType = 0x2
	MH_DYLIB   HeaderFileType = 0x6
	MH_BUNDLE  HeaderFileType = 0x8
)

var fileTypeStrings = []IntName{
	{uint32(MH_OBJECT), "MH_OBJECT"},
	{uint32(MH_EXECUTE), "MH_EXECUTE"},
	{uint32(MH_DYLIB), "MH_DYLIB"},
	{uint32(MH_BUNDLE), "MH_BUNDLE"},
}

func (t HeaderFileType) String() string { return StringName(uint32(t), fileTypeStrings, false) }

// HeaderFlag is the mach_header_64.flags bitset. Only the subset a static
// linker is responsible for setting is named; unrecognized bits survive
// round-trips untouched.
type HeaderFlag uint32

const (
	NoUndefs              HeaderFlag = 0x1
	DyldLink              HeaderFlag = 0x4
	TwoLevel              HeaderFlag = 0x80
	WeakDefines           HeaderFlag = 0x8000
	BindsToWeak           HeaderFlag = 0x10000
	PIE                   HeaderFlag = 0x200000
	HasTLVDescriptors     HeaderFlag = 0x800000
	AppExtensionSafe      HeaderFlag = 0x2000000
	SubsectionsViaSymbols HeaderFlag = 0x2000
	NoReexportedDylibs    HeaderFlag = 0x100000
)

func (f HeaderFlag) Has(bit HeaderFlag) bool { return f&bit != 0 }

func (f *HeaderFlag) Set(bit HeaderFlag, on bool) {
	if on {
		*f |= bit
	} else {
		*f &^= bit
	}
}

func (h FileHeader) String() string {
	return fmt.Sprintf("Magic=%#x Type=%s CPU=%s/%s Commands=%d (%d bytes) Flags=%#x",
		uint32(h.Magic), h.Type, h.CPU, h.SubCPU.String(h.CPU), h.NCommands, h.SizeCommands, uint32(h.Flags))
}
