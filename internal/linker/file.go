package linker

import (
	"encoding/binary"
	"fmt"
	"os"

	"github.com/appsworld/machold/internal/macho/types"
)

// InputKind classifies a command-line input file by sniffing its leading
// bytes, the same dispatch every Mach-O static linker performs before it
// knows whether to parse an object, a dylib, an archive, or a stub.
type InputKind int

const (
	InputUnknown InputKind = iota
	InputObject
	InputDylib
	InputArchive
	InputStubLibrary
)

func sniffInputKind(data []byte) InputKind {
	if IsTBD(data) {
		return InputStubLibrary
	}
	if len(data) >= len(arMagic) && string(data[:len(arMagic)]) == arMagic {
		return InputArchive
	}
	if len(data) < 16 {
		return InputUnknown
	}
	magic := binary.LittleEndian.Uint32(data[0:4])
	if types.Magic(magic) != types.Magic64 {
		return InputUnknown
	}
	switch types.HeaderFileType(binary.LittleEndian.Uint32(data[12:16])) {
	case types.MH_OBJECT:
		return InputObject
	case types.MH_DYLIB:
		return InputDylib
	default:
		return InputUnknown
	}
}

// LoadInput reads path, sniffs its kind, and feeds it into ctx as either a
// new ObjectFile, a new DylibFile, or (for an archive) a PendingArchives
// entry with its SymbolIndex already built, from which link.go's pull-in
// pass parses members later. priority orders -filelist/command-line inputs
// for the first-definition-wins tie-break resolve.go applies.
func LoadInput(ctx *Context, path string, priority int, dylibOrdinal *int) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("%s: %w", path, err)
	}

	switch sniffInputKind(data) {
	case InputObject:
		obj, err := ParseObject(ctx, path, data, priority)
		if err != nil {
			return err
		}
		ctx.Objects = append(ctx.Objects, obj)
	case InputDylib:
		*dylibOrdinal++
		d, err := ParseDylib(ctx, path, data, *dylibOrdinal)
		if err != nil {
			return err
		}
		ctx.Dylibs = append(ctx.Dylibs, d)
	case InputStubLibrary:
		*dylibOrdinal++
		d, err := ParseStubLibrary(*dylibOrdinal, data)
		if err != nil {
			return err
		}
		ctx.Dylibs = append(ctx.Dylibs, d)
	case InputArchive:
		ar, err := ParseArchive(path, data)
		if err != nil {
			return err
		}
		ar.Priority = priority
		ar.BuildSymbolIndex(ctx)
		ctx.PendingArchives = append(ctx.PendingArchives, ar)
	default:
		return fmt.Errorf("%s: unrecognized input file format", path)
	}
	return nil
}

// loadArchive eagerly parses and links in every member of a static
// archive. Nothing in the linker calls it: archive inputs go through
// LoadInput, which calls Archive.BuildSymbolIndex, and then link.go's
// pull-in pass, which parses members through Archive.Pull.
func loadArchive(ctx *Context, ar *Archive, priority int) error {
	for _, m := range ar.Members {
		obj, err := ParseObject(ctx, ar.Path+"("+m.Name+")", m.Data, priority)
		if err != nil {
			return err
		}
		ctx.Objects = append(ctx.Objects, obj)
	}
	return nil
}
