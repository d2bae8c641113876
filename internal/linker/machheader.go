package linker

import (
	"encoding/binary"

	"github.com/appsworld/machold/internal/macho/types"
)

// MachHeaderChunk is the output file's leading mach_header_64 plus its
// full load-command list. It is always the first chunk of __TEXT at
// address 0 (or ctx.Config.PageZeroSize for an executable); its size is
// only known once every other chunk has decided whether it needs a load
// command, so ComputeSize runs after every other section's own sizing
// (layout.go computes it first in program order, but its own content
// only depends on *counts*, which dead-strip/relocation scanning have
// already fixed by the time Layout runs).
type MachHeaderChunk struct {
	baseChunk
	ncmds    uint32
	sizeofcmds uint32
}

func (c *MachHeaderChunk) ComputeSize(ctx *Context) {
	c.segname, c.sectname = "__TEXT", ""
	n, sz := countLoadCommands(ctx)
	c.ncmds, c.sizeofcmds = n, sz
	c.size = types.FileHeaderSize64 + uint64(sz)
}

func countLoadCommands(ctx *Context) (n uint32, size uint32) {
	add := func(cmdSize uint32) {
		n++
		size += cmdSize
	}
	for _, seg := range ctx.Segments {
		add(uint32(72 + 80*len(segChunkSections(seg))))
	}
	add(24) // LC_SYMTAB
	add(80) // LC_DYSYMTAB
	if ctx.Config.Kind == OutputExecute {
		add(24) // LC_MAIN
	}
	for _, d := range ctx.Dylibs {
		add(dylibCmdSize(d.InstallName)) // LC_LOAD_DYLIB, exact size incl. path
	}
	add(24) // LC_UUID
	add(24) // LC_BUILD_VERSION (no tool entries)
	add(48) // LC_DYLD_INFO_ONLY: 5 (off,size) uleb streams + cmd/cmdsize
	if ctx.FuncStarts != nil {
		add(16)
	}
	if ctx.DataInCode != nil {
		add(16)
	}
	if ctx.CodeSig != nil {
		add(16)
	}
	return n, size
}

// dylibCmdSize returns the exact on-disk byte count of one LC_LOAD_DYLIB
// (or LC_ID_DYLIB/LC_REEXPORT_DYLIB) command for the given install name:
// the fixed dylib_command header through its embedded string, NUL
// terminated and padded to the 8-byte load-command alignment every
// variable-length command observes.
func dylibCmdSize(name string) uint32 {
	const hdr = 4 + 4 + 16 // cmd, cmdsize, dylib{name offset,timestamp,current_version,compatibility_version}
	total := hdr + len(name) + 1
	return uint32((total + 7) &^ 7)
}

// segChunkSections returns the chunks of seg that correspond to a real
// section_64 entry: every chunk except the ones with no section name of
// their own (MachHeaderChunk, and every __LINKEDIT chunk, which dyld
// locates purely by the (offset,size) pairs in LC_SYMTAB/LC_DYSYMTAB/
// LC_DYLD_INFO_ONLY/etc rather than by a declared section).
func segChunkSections(seg *OutputSegment) []Chunk {
	var out []Chunk
	for _, c := range seg.Chunks {
		if c.SectName() == "" {
			continue
		}
		out = append(out, c)
	}
	return out
}

func (c *MachHeaderChunk) CopyBuf(ctx *Context, buf []byte) {
	hdr := types.FileHeader{
		Magic:        types.Magic64,
		CPU:          ctx.Arch.CPU().MachOCPU(),
		Type:         outputFileType(ctx.Config.Kind),
		NCommands:    c.ncmds,
		SizeCommands: c.sizeofcmds,
	}
	hdr.Flags.Set(types.SubsectionsViaSymbols, true)
	hdr.Flags.Set(types.TwoLevel, true)
	hdr.Flags.Set(types.NoUndefs, true)
	if ctx.Config.Kind == OutputExecute {
		hdr.Flags.Set(types.PIE, true)
	}
	if ctx.Config.ApplicationExtension {
		hdr.Flags.Set(types.AppExtensionSafe, true)
	}
	if ctx.ThreadPtrs != nil {
		hdr.Flags.Set(types.HasTLVDescriptors, true)
	}
	hdr.Put(buf, binary.LittleEndian)
	// The load-command bytes themselves are emitted by link.go's final
	// assembly pass once every chunk's address is final; this chunk
	// reserves the space countLoadCommands sized and writes only the
	// fixed mach_header_64 prefix here.
}

func outputFileType(kind OutputKind) types.HeaderFileType {
	switch kind {
	case OutputDylib:
		return types.MH_DYLIB
	case OutputBundle:
		return types.MH_BUNDLE
	default:
		return types.MH_EXECUTE
	}
}
