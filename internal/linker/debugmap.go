package linker

import (
	"bytes"
	"compress/zlib"
	"fmt"
	"io"
	"sort"
	"strings"

	"github.com/blacktop/go-dwarf"
)

// DebugMap attributes output symbols to the source file their object's
// compile unit claims, for the -map report. It is best-effort: an object
// built without debug info (no __debug_info or __debug_abbrev) just
// doesn't contribute entries, it is never an error.
type DebugMap struct {
	bySymbol map[*Symbol]string // symbol -> compile-unit source path
}

// BuildDebugMap parses __DWARF,__debug_info (and its companion sections)
// out of every object in ctx.Objects and records the name of the last
// compile unit found in it for each of that object's symbols that has a
// subsection; compile-unit PC ranges are not consulted. Objects without
// __debug_info or __debug_abbrev are skipped rather than treated as an
// error, since -g is not required to link.
func BuildDebugMap(ctx *Context) *DebugMap {
	dm := &DebugMap{bySymbol: map[*Symbol]string{}}

	for _, obj := range ctx.Objects {
		raw := dwarfSections(obj)
		if raw["info"] == nil || raw["abbrev"] == nil {
			continue
		}
		data, err := dwarf.New(raw["abbrev"], nil, nil, raw["info"], raw["line"], nil, raw["ranges"], raw["str"])
		if err != nil {
			ctx.Diags.Warnf(obj.Path, 0, "debug map: %v", err)
			continue
		}
		dm.attributeObject(obj, data)
	}
	return dm
}

func (dm *DebugMap) attributeObject(obj *ObjectFile, data *dwarf.Data) {
	r := data.Reader()
	var cuName string
	for {
		entry, err := r.Next()
		if err != nil || entry == nil {
			break
		}
		switch entry.Tag {
		case dwarf.TagCompileUnit:
			if name, ok := entry.Val(dwarf.AttrName).(string); ok {
				cuName = name
			}
		}
	}
	if cuName == "" {
		return
	}
	for _, sym := range obj.Symbols {
		if sym.Subsec != nil {
			dm.bySymbol[sym] = cuName
		}
	}
}

func dwarfSections(obj *ObjectFile) map[string][]byte {
	dat := map[string][]byte{"abbrev": nil, "info": nil, "str": nil, "line": nil, "ranges": nil}
	for _, ss := range obj.Subsections {
		suffix := dwarfSuffix(ss.SectName())
		if suffix == "" {
			continue
		}
		if _, ok := dat[suffix]; !ok {
			continue
		}
		b, err := decompressSection(ss.Data())
		if err != nil {
			continue
		}
		dat[suffix] = b
	}
	return dat
}

func dwarfSuffix(sectName string) string {
	switch {
	case strings.HasPrefix(sectName, "__debug_"):
		return sectName[8:]
	case strings.HasPrefix(sectName, "__zdebug_"):
		return sectName[9:]
	default:
		return ""
	}
}

func decompressSection(b []byte) ([]byte, error) {
	if len(b) >= 12 && string(b[:4]) == "ZLIB" {
		r, err := zlib.NewReader(bytes.NewReader(b[12:]))
		if err != nil {
			return nil, err
		}
		defer r.Close()
		return io.ReadAll(r)
	}
	return b, nil
}

// WriteReport renders the human-readable map this linker emits with
// -map <path>: a single "# Address\tSize\tName\tSource" header, then one
// row per live subsection sorted by output address (no per-segment or
// per-section grouping), giving its size, its first symbol's name and (if
// known) the source file it was attributed to.
func (dm *DebugMap) WriteReport(ctx *Context, w io.Writer) error {
	type row struct {
		addr uint64
		size uint64
		name string
		src  string
	}
	var rows []row
	for _, obj := range ctx.Objects {
		firstSym := map[*Subsection]*Symbol{}
		for _, sym := range obj.Symbols {
			if sym.Subsec != nil {
				if _, ok := firstSym[sym.Subsec]; !ok {
					firstSym[sym.Subsec] = sym
				}
			}
		}
		for _, ss := range obj.Subsections {
			if !ss.IsAlive() {
				continue
			}
			src := "<unknown>"
			name := "<anonymous>"
			if sym, ok := firstSym[ss]; ok {
				name = sym.Name
				if s, ok := dm.bySymbol[sym]; ok {
					src = s
				}
			}
			rows = append(rows, row{ss.OutputAddr, uint64(len(ss.Data())), name, src})
		}
	}
	sort.Slice(rows, func(i, j int) bool { return rows[i].addr < rows[j].addr })

	fmt.Fprintln(w, "# Address\tSize\tName\tSource")
	for _, r := range rows {
		fmt.Fprintf(w, "0x%016X\t0x%06X\t%s\t%s\n", r.addr, r.size, r.name, r.src)
	}
	return nil
}
