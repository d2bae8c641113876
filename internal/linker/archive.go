package linker

import (
	"fmt"
	"strconv"
	"strings"
)

// arMagic and arHdrSize are the constant-width framing of the common `ar`
// archive format every static-library input this linker accepts is
// packaged in: an 8-byte magic line followed by one fixed 60-byte ASCII
// header per member, each immediately followed by that member's data
// (padded to an even byte count).
const (
	arMagic   = "!<arch>\n"
	arHdrSize = 60
)

// ArchiveMember is one named, sized span of a static archive's payload,
// lazily handed to ParseObject only if symbol resolution decides this
// member is needed (see Archive.Pull and link.go's pullInArchives).
type ArchiveMember struct {
	Name string
	Data []byte
}

// Archive is a parsed static-library (.a) input: every member in archive
// order except the System V / BSD symbol-table member, which is skipped;
// the name->member map is SymbolIndex, built from the members' own symbol
// tables.
type Archive struct {
	Path     string
	Priority int // input order, passed through to each member's ParseObject priority
	Members  []ArchiveMember

	// SymbolIndex maps an exported name to the archive-order index of the
	// member that defines it, built by BuildSymbolIndex (called from
	// LoadInput) from every member's own symbol table; the "/" or
	// "__.SYMDEF" index member is never read.
	SymbolIndex map[string]int

	// pulled tracks which members link.go's pull-in loop has already
	// parsed and added to ctx.Objects, so a second symbol in the same
	// member doesn't extract it twice.
	pulled map[int]bool
}

// Pull parses and links in archive member idx if it hasn't been already,
// returning the resulting ObjectFile (or nil if idx was already pulled).
func (a *Archive) Pull(ctx *Context, idx int) (*ObjectFile, error) {
	if a.pulled == nil {
		a.pulled = map[int]bool{}
	}
	if a.pulled[idx] {
		return nil, nil
	}
	a.pulled[idx] = true
	m := a.Members[idx]
	return ParseObject(ctx, a.Path+"("+m.Name+")", m.Data, a.Priority)
}

// ParseArchive splits an ar-format byte stream into its members. Extended
// (GNU-style, "//"-indirected) long filenames are resolved inline; the
// System V / BSD symbol-table member ("/", "__.SYMDEF", ...) is skipped
// and not returned as a member, since this linker builds its own
// name->member index from each object's real symbol table
// (BuildSymbolIndex) rather than trusting a possibly-stale archive index.
func ParseArchive(path string, data []byte) (*Archive, error) {
	if len(data) < len(arMagic) || string(data[:len(arMagic)]) != arMagic {
		return nil, fmt.Errorf("%s: not an ar archive", path)
	}
	a := &Archive{Path: path, SymbolIndex: map[string]int{}}

	var longNames []byte
	off := len(arMagic)
	for off+arHdrSize <= len(data) {
		hdr := data[off : off+arHdrSize]
		rawName := strings.TrimRight(string(hdr[0:16]), " ")
		sizeStr := strings.TrimSpace(string(hdr[48:58]))
		size, err := strconv.ParseInt(sizeStr, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("%s: member at %#x: invalid size field %q", path, off, sizeStr)
		}
		if hdr[58] != '`' || hdr[59] != '\n' {
			return nil, fmt.Errorf("%s: member at %#x: bad header terminator", path, off)
		}
		body := off + arHdrSize
		if int64(body)+size > int64(len(data)) {
			return nil, fmt.Errorf("%s: member %q: truncated data", path, rawName)
		}
		memberData := data[body : int64(body)+size]

		switch {
		case rawName == "//":
			longNames = memberData
		case rawName == "/" || rawName == "/SYM64/" || rawName == "__.SYMDEF" || rawName == "__.SYMDEF SORTED":
			// System V / BSD ranlib index: this linker rebuilds the same
			// information from each member's own nlist, so the index
			// member is skipped and not added to Members.
		default:
			name := rawName
			if strings.HasPrefix(name, "/") {
				// GNU long-name reference: "/<offset-into-longNames>"
				if idx, err := strconv.Atoi(name[1:]); err == nil && idx < len(longNames) {
					name = cstringFromLongNames(longNames, idx)
				}
			} else {
				name = strings.TrimSuffix(name, "/") // BSD-style trailing slash
			}
			a.Members = append(a.Members, ArchiveMember{Name: name, Data: memberData})
		}

		// members are padded to an even offset
		advance := int64(arHdrSize) + size
		if size%2 != 0 {
			advance++
		}
		off += int(advance)
	}
	return a, nil
}

func cstringFromLongNames(tab []byte, off int) string {
	end := off
	for end < len(tab) && tab[end] != '\n' {
		end++
	}
	return strings.TrimSuffix(string(tab[off:end]), "/")
}

// BuildSymbolIndex scans every member's own symbol table (via a minimal
// ParseObject call ctx.Objects never retains) to answer, for any
// undefined name, which archive member would define it — letting
// link.go's archive pull-in loop fetch members on demand instead of
// unconditionally parsing and linking every member up front, the same
// lazy behavior `ld`'s archive handling guarantees callers can rely on.
func (a *Archive) BuildSymbolIndex(ctx *Context) {
	for i, m := range a.Members {
		obj, err := ParseObject(ctx, a.Path+"("+m.Name+")", m.Data, -1)
		if err != nil {
			ctx.Diags.Warnf(a.Path, 0, "skipping unreadable member %s: %v", m.Name, err)
			continue
		}
		for _, sym := range obj.Symbols {
			if sym.Scope == ScopeExtern || sym.Scope == ScopePrivateExtern {
				if _, exists := a.SymbolIndex[sym.Name]; !exists {
					a.SymbolIndex[sym.Name] = i
				}
			}
		}
	}
}
