package linker

import (
	"bufio"
	"bytes"
	"encoding/binary"
	"fmt"
	"strings"

	"github.com/appsworld/machold/internal/macho/trie"
	"github.com/appsworld/machold/internal/macho/types"
)

// ParseDylib decodes a dynamic library's Mach-O header far enough to
// recover its install name, version, re-exports, and exported-symbol
// trie; it never reads __TEXT/__DATA section contents, since a dylib
// only ever contributes symbol definitions to a link, never code bytes.
func ParseDylib(ctx *Context, path string, data []byte, ordinal int) (*DylibFile, error) {
	if len(data) < types.FileHeaderSize64 {
		return nil, fmt.Errorf("%s: file too small for a mach_header_64", path)
	}
	bo := binary.LittleEndian
	if types.Magic(bo.Uint32(data[0:4])) != types.Magic64 {
		return nil, fmt.Errorf("%s: not a 64-bit little-endian mach-o dylib", path)
	}
	fileType := types.HeaderFileType(bo.Uint32(data[12:16]))
	if fileType != types.MH_DYLIB {
		return nil, fmt.Errorf("%s: expected MH_DYLIB, got %s", path, fileType)
	}
	ncmds := bo.Uint32(data[16:20])
	sizeofcmds := bo.Uint32(data[20:24])

	cmdDat := data[types.FileHeaderSize64:]
	if uint32(len(cmdDat)) < sizeofcmds {
		return nil, fmt.Errorf("%s: truncated load commands", path)
	}
	cmdDat = cmdDat[:sizeofcmds]

	d := &DylibFile{Path: path, Ordinal: ordinal}
	var exportOff, exportSize uint32

	for i := uint32(0); i < ncmds; i++ {
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
		case types.LC_ID_DYLIB:
			name, cur, compat, err := parseDylibCmd(body, bo)
			if err != nil {
				return nil, fmt.Errorf("%s: LC_ID_DYLIB: %w", path, err)
			}
			d.InstallName = name
			d.CurrentVersion = cur
			d.CompatibilityVersion = compat
		case types.LC_DYLD_INFO_ONLY:
			var info types.DyldInfoCmd
			r := bytes.NewReader(body)
			if err := binary.Read(r, bo, &info); err != nil {
				return nil, fmt.Errorf("%s: LC_DYLD_INFO_ONLY: %w", path, err)
			}
			exportOff, exportSize = info.ExportOff, info.ExportSize
		case types.LC_DYLD_EXPORTS_TRIE:
			var led types.LinkEditDataCmd
			r := bytes.NewReader(body)
			if err := binary.Read(r, bo, &led); err != nil {
				return nil, fmt.Errorf("%s: LC_DYLD_EXPORTS_TRIE: %w", path, err)
			}
			exportOff, exportSize = led.DataOff, led.DataSize
		case types.LC_REEXPORT_DYLIB:
			name, _, _, err := parseDylibCmd(body, bo)
			if err != nil {
				return nil, fmt.Errorf("%s: LC_REEXPORT_DYLIB: %w", path, err)
			}
			d.ReExports = append(d.ReExports, &DylibFile{Path: name, InstallName: name})
		case types.LC_RPATH, types.LC_LOAD_DYLIB, types.LC_LOAD_WEAK_DYLIB:
			// dependency/search-path bookkeeping this linker doesn't need
			// to round-trip from an already-built dylib it merely reads.
		}
	}

	if d.InstallName == "" {
		return nil, fmt.Errorf("%s: missing LC_ID_DYLIB", path)
	}
	if exportSize == 0 {
		return d, nil
	}
	if uint64(exportOff)+uint64(exportSize) > uint64(len(data)) {
		return nil, fmt.Errorf("%s: export trie out of bounds", path)
	}
	entries, err := trie.Parse(data[exportOff:exportOff+exportSize], 0)
	if err != nil {
		ctx.Diags.Warnf(path, 0, "export trie: %v", err)
		return d, nil
	}
	for _, e := range entries {
		d.Exports = append(d.Exports, DylibExport{
			Name:     e.Name,
			WeakDef:  e.Flags.WeakDefinition(),
			TLV:      e.Flags.ThreadLocal(),
			ReExport: e.ReExport,
		})
	}
	return d, nil
}

// parseDylibCmd reads the dylib struct common to LC_{ID,LOAD,REEXPORT,
// LOAD_WEAK}_DYLIB: a string offset relative to the command's own start
// (hence counted from body, not from cmdDat) followed by timestamp and
// two packed xxxx.yy.zz version words.
func parseDylibCmd(body []byte, bo binary.ByteOrder) (name string, current, compat types.Version, err error) {
	if len(body) < 16 {
		return "", 0, 0, fmt.Errorf("dylib command too small")
	}
	nameOff := bo.Uint32(body[0:4])
	current = types.Version(bo.Uint32(body[8:12]))
	compat = types.Version(bo.Uint32(body[12:16]))
	if uint32(nameOff) < 8 || uint32(nameOff) > uint32(len(body))+8 {
		return "", 0, 0, fmt.Errorf("invalid name offset")
	}
	name = cstringFrom(body[nameOff-8:])
	return name, current, compat, nil
}

func cstringFrom(b []byte) string {
	if i := bytes.IndexByte(b, 0); i >= 0 {
		return string(b[:i])
	}
	return string(b)
}

// ParseStubLibrary reads a .tbd text-based-stub file and returns the
// synthetic DylibFile it describes, for linking against a dylib whose
// binary image isn't present in the SDK (only its stub is).
func ParseStubLibrary(ordinal int, data []byte) (*DylibFile, error) {
	d, err := ParseTBD(bufio.NewReader(bytes.NewReader(data)))
	if err != nil {
		return nil, err
	}
	d.Ordinal = ordinal
	return d, nil
}

// IsTBD reports whether data looks like a text-based-stub file rather
// than a binary Mach-O, by checking for the "---" YAML document marker
// or the legacy "--- !tapi-tbd" tag tapi writes before any Mach-O magic
// could appear in the same byte range.
func IsTBD(data []byte) bool {
	if len(data) < 4 {
		return false
	}
	head := string(data[:min(64, len(data))])
	return strings.HasPrefix(strings.TrimSpace(head), "---")
}
