package trie

import (
	"bytes"
	"sort"

	"github.com/appsworld/machold/internal/macho/types"
)

// Export is one symbol this linker's own export trie must contain.
type Export struct {
	Name     string
	Flags    types.ExportFlag
	Address  uint64
	ReExport string
	Ordinal  uint64
}

type node struct {
	prefix   string
	children []*node

	isTerminal bool
	export     Export

	offset    uint32
	size      uint32
}

// Encoder builds the compact trie a linker's LC_DYLD_INFO_ONLY export_off
// blob needs. Node offsets are self-referential (a node's ULEB128-encoded
// size depends on the encoded size of its children's offsets) so offsets
// are computed by iterating size/offset passes to a fixed point, exactly
// as the uleb128 varint trie format requires.
type Encoder struct {
	root *node
}

// NewEncoder builds the trie shape from a sorted export list. Sort order
// only affects trie-internal layout, not the semantic content.
func NewEncoder(exports []Export) *Encoder {
	sorted := append([]Export(nil), exports...)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].Name < sorted[j].Name })

	root := &node{}
	for _, e := range sorted {
		insert(root, e.Name, e)
	}
	return &Encoder{root: root}
}

func insert(n *node, name string, e Export) {
	for _, c := range n.children {
		common := commonPrefixLen(c.prefix, name)
		if common == 0 {
			continue
		}
		if common == len(c.prefix) {
			insert(c, name[common:], e)
			return
		}
		// split c at common
		split := &node{prefix: c.prefix[:common]}
		c.prefix = c.prefix[common:]
		split.children = []*node{c}
		*findSlot(n, c) = split
		insert(split, name[common:], e)
		return
	}
	if name == "" {
		n.isTerminal = true
		n.export = e
		return
	}
	n.children = append(n.children, &node{prefix: name, isTerminal: true, export: e})
}

func findSlot(parent *node, child *node) **node {
	for i := range parent.children {
		if parent.children[i] == child {
			return &parent.children[i]
		}
	}
	panic("trie: child not found in parent")
}

func commonPrefixLen(a, b string) int {
	n := len(a)
	if len(b) < n {
		n = len(b)
	}
	i := 0
	for i < n && a[i] == b[i] {
		i++
	}
	return i
}

// Encode serializes the trie and returns its bytes, padded to a 4-byte
// boundary as dyld expects of the export_off/export_size blob.
func (enc *Encoder) Encode() []byte {
	// Fixed point over node sizes: start with a guess of 1 byte per
	// child-offset ULEB128 and grow until sizes stop changing, the same
	// approach used by every compact-trie writer since offsets are
	// self-referential.
	nodes := collect(enc.root)
	for {
		changed := false
		for _, n := range nodes {
			old := n.size
			n.size = uint32(terminalEncodedSize(n) + childrenHeaderSize(n))
			if n.size != old {
				changed = true
			}
		}
		assignOffsets(enc.root)
		if !changed {
			break
		}
	}

	var buf bytes.Buffer
	for _, n := range nodes {
		writeNode(&buf, n)
	}
	for buf.Len()%4 != 0 {
		buf.WriteByte(0)
	}
	return buf.Bytes()
}

func collect(n *node) []*node {
	out := []*node{n}
	for _, c := range n.children {
		out = append(out, collect(c)...)
	}
	return out
}

func assignOffsets(root *node) {
	var offset uint32
	var walk func(*node)
	walk = func(n *node) {
		n.offset = offset
		offset += n.size
		for _, c := range n.children {
			walk(c)
		}
	}
	walk(root)
}

func terminalEncodedSize(n *node) int {
	if !n.isTerminal {
		return uleb128Len(0) // terminal size 0, no payload
	}
	payload := terminalPayload(n.export)
	return uleb128Len(uint64(len(payload))) + len(payload)
}

func terminalPayload(e Export) []byte {
	var buf bytes.Buffer
	writeULEB128(&buf, uint64(e.Flags))
	switch {
	case e.Flags.ReExport():
		writeULEB128(&buf, e.Ordinal)
		buf.WriteString(e.ReExport)
		buf.WriteByte(0)
	case e.Flags.StubAndResolver():
		writeULEB128(&buf, e.Address) // resolver stub offset stashed in Address for these
		writeULEB128(&buf, e.Address)
	default:
		writeULEB128(&buf, e.Address)
	}
	return buf.Bytes()
}

func childrenHeaderSize(n *node) int {
	size := 1 // child count byte
	for _, c := range n.children {
		size += len(c.prefix) + 1 // label + NUL
		size += uleb128Len(uint64(c.offset))
	}
	return size
}

func writeNode(buf *bytes.Buffer, n *node) {
	if n.isTerminal {
		payload := terminalPayload(n.export)
		writeULEB128(buf, uint64(len(payload)))
		buf.Write(payload)
	} else {
		writeULEB128(buf, 0)
	}
	buf.WriteByte(byte(len(n.children)))
	for _, c := range n.children {
		buf.WriteString(c.prefix)
		buf.WriteByte(0)
		writeULEB128(buf, uint64(c.offset))
	}
}

func uleb128Len(v uint64) int {
	n := 1
	for v >= 0x80 {
		v >>= 7
		n++
	}
	return n
}

func writeULEB128(buf *bytes.Buffer, v uint64) {
	for {
		b := byte(v & 0x7f)
		v >>= 7
		if v != 0 {
			b |= 0x80
		}
		buf.WriteByte(b)
		if v == 0 {
			return
		}
	}
}
