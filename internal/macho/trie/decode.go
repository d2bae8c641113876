// Package trie implements the Mach-O export trie: a byte-serialized radix
// tree mapping exported symbol names to (flags, address) or (flags,
// dylib-ordinal, re-export-name) pairs. decode.go reads a dylib's or a
// TBD-derived synthetic trie during symbol resolution; encode.go builds the
// trie this linker writes into its own LC_DYLD_INFO_ONLY export blob.
package trie

import (
	"bytes"
	"fmt"
	"io"

	"github.com/appsworld/machold/internal/macho/types"
)

// Entry is one exported symbol recovered from a trie.
type Entry struct {
	Name     string
	ReExport string
	Flags    types.ExportFlag
	Other    uint64 // dylib ordinal (re-export) or resolver stub offset
	Address  uint64
}

func (e Entry) String() string {
	if e.Flags.ReExport() {
		return fmt.Sprintf("%#x: %s (re-exported as %s)", e.Address, e.Name, e.ReExport)
	}
	return fmt.Sprintf("%#x: %s", e.Address, e.Name)
}

func readULEB128(r *bytes.Reader) (uint64, error) {
	var result uint64
	var shift uint64
	for {
		b, err := r.ReadByte()
		if err != nil {
			return 0, fmt.Errorf("uleb128: %w", err)
		}
		result |= uint64(b&0x7f) << shift
		if b&0x80 == 0 {
			break
		}
		shift += 7
	}
	return result, nil
}

type pendingNode struct {
	offset uint64
	name   []byte
}

// Parse walks the whole trie and returns every exported entry, used when
// this linker needs the full export set of a dependency (e.g. -ObjC
// re-exports, or building a link map).
func Parse(data []byte, loadAddress uint64) ([]Entry, error) {
	var entries []Entry
	stack := []pendingNode{{offset: 0}}
	r := bytes.NewReader(data)

	for len(stack) > 0 {
		node := stack[len(stack)-1]
		stack = stack[:len(stack)-1]

		if _, err := r.Seek(int64(node.offset), io.SeekStart); err != nil {
			return nil, err
		}
		terminalSize, err := readULEB128(r)
		if err != nil {
			return nil, err
		}

		if terminalSize != 0 {
			entry, err := readTerminal(r, node.name, loadAddress)
			if err != nil {
				return nil, err
			}
			entries = append(entries, entry)
		}

		if _, err := r.Seek(int64(node.offset+terminalSize+1), io.SeekStart); err != nil {
			return nil, err
		}
		childCount, err := r.ReadByte()
		if err == io.EOF {
			continue
		}
		if err != nil {
			return nil, err
		}

		for i := 0; i < int(childCount); i++ {
			label, err := r.ReadBytes(0)
			if err != nil {
				return nil, fmt.Errorf("trie child label: %w", err)
			}
			label = label[:len(label)-1]
			childOffset, err := readULEB128(r)
			if err != nil {
				return nil, err
			}
			full := make([]byte, 0, len(node.name)+len(label))
			full = append(full, node.name...)
			full = append(full, label...)
			stack = append(stack, pendingNode{offset: childOffset, name: full})
		}
	}
	return entries, nil
}

func readTerminal(r *bytes.Reader, name []byte, loadAddress uint64) (Entry, error) {
	flagBits, err := readULEB128(r)
	if err != nil {
		return Entry{}, err
	}
	flags := types.ExportFlag(flagBits)
	entry := Entry{Name: string(name), Flags: flags}

	switch {
	case flags.ReExport():
		ordinal, err := readULEB128(r)
		if err != nil {
			return Entry{}, err
		}
		entry.Other = ordinal
		reexport, err := r.ReadBytes(0)
		if err != nil {
			return Entry{}, err
		}
		entry.ReExport = string(reexport[:len(reexport)-1])
		if entry.ReExport == "" {
			entry.ReExport = entry.Name
		}
	case flags.StubAndResolver():
		addr, err := readULEB128(r)
		if err != nil {
			return Entry{}, err
		}
		entry.Other = addr + loadAddress
		value, err := readULEB128(r)
		if err != nil {
			return Entry{}, err
		}
		entry.Address = value + loadAddress
	default:
		value, err := readULEB128(r)
		if err != nil {
			return Entry{}, err
		}
		entry.Address = value + loadAddress
	}
	return entry, nil
}

// Lookup resolves a single symbol by parsing the whole trie with Parse and
// scanning the entries for an exact name match, used on the hot path of
// dylib symbol resolution.
func Lookup(data []byte, symbol string) (Entry, bool) {
	entries, err := Parse(data, 0)
	if err != nil {
		return Entry{}, false
	}
	for _, e := range entries {
		if e.Name == symbol {
			return e, true
		}
	}
	return Entry{}, false
}
