package linker

import (
	"bytes"
	"fmt"
	"testing"
)

// arHeader formats one 60-byte ar member header, padding every field to
// its fixed ASCII width the way GNU ar and BSD ar both write them.
func arHeader(name string, size int) []byte {
	var b bytes.Buffer
	fmt.Fprintf(&b, "%-16s", name)
	fmt.Fprintf(&b, "%-12s", "0")     // mtime
	fmt.Fprintf(&b, "%-6s", "0")      // uid
	fmt.Fprintf(&b, "%-6s", "0")      // gid
	fmt.Fprintf(&b, "%-8s", "100644") // mode
	fmt.Fprintf(&b, "%-10d", size)
	b.WriteString("`\n")
	if b.Len() != arHdrSize {
		panic(fmt.Sprintf("arHeader built %d bytes, want %d", b.Len(), arHdrSize))
	}
	return b.Bytes()
}

func arMember(name string, data []byte) []byte {
	var b bytes.Buffer
	b.Write(arHeader(name, len(data)))
	b.Write(data)
	if len(data)%2 != 0 {
		b.WriteByte('\n')
	}
	return b.Bytes()
}

func TestParseArchiveBSDNames(t *testing.T) {
	var b bytes.Buffer
	b.WriteString(arMagic)
	b.Write(arMember("foo.o/", []byte("hello")))
	b.Write(arMember("bar.o/", []byte("worldx")))

	a, err := ParseArchive("libtest.a", b.Bytes())
	if err != nil {
		t.Fatalf("ParseArchive: %v", err)
	}
	if len(a.Members) != 2 {
		t.Fatalf("got %d members, want 2", len(a.Members))
	}
	if a.Members[0].Name != "foo.o" || string(a.Members[0].Data) != "hello" {
		t.Errorf("member 0 = %q/%q, want foo.o/hello", a.Members[0].Name, a.Members[0].Data)
	}
	if a.Members[1].Name != "bar.o" || string(a.Members[1].Data) != "worldx" {
		t.Errorf("member 1 = %q/%q, want bar.o/worldx", a.Members[1].Name, a.Members[1].Data)
	}
}

func TestParseArchiveGNULongNames(t *testing.T) {
	longNames := "a_very_long_object_file_name_that_exceeds_16_bytes.o/\nanother_long_name.o/\n"

	var b bytes.Buffer
	b.WriteString(arMagic)
	b.Write(arMember("//", []byte(longNames)))
	// first long name starts at offset 0 in the longNames table
	b.Write(arMember("/0", []byte("AAAA")))
	// second long name starts right after the first entry's trailing "\n"
	off2 := len("a_very_long_object_file_name_that_exceeds_16_bytes.o/\n")
	b.Write(arMember(fmt.Sprintf("/%d", off2), []byte("BBBB")))

	a, err := ParseArchive("liblong.a", b.Bytes())
	if err != nil {
		t.Fatalf("ParseArchive: %v", err)
	}
	if len(a.Members) != 2 {
		t.Fatalf("got %d members, want 2", len(a.Members))
	}
	if a.Members[0].Name != "a_very_long_object_file_name_that_exceeds_16_bytes.o" {
		t.Errorf("member 0 name = %q", a.Members[0].Name)
	}
	if a.Members[1].Name != "another_long_name.o" {
		t.Errorf("member 1 name = %q", a.Members[1].Name)
	}
}

func TestParseArchiveSkipsSymbolTableMember(t *testing.T) {
	var b bytes.Buffer
	b.WriteString(arMagic)
	b.Write(arMember("/", []byte("ignored-ranlib-index")))
	b.Write(arMember("real.o/", []byte("payload")))

	a, err := ParseArchive("libranlib.a", b.Bytes())
	if err != nil {
		t.Fatalf("ParseArchive: %v", err)
	}
	if len(a.Members) != 1 {
		t.Fatalf("got %d members, want 1 (ranlib index member should be skipped)", len(a.Members))
	}
	if a.Members[0].Name != "real.o" {
		t.Errorf("member name = %q, want real.o", a.Members[0].Name)
	}
}

func TestParseArchiveRejectsBadMagic(t *testing.T) {
	_, err := ParseArchive("notanarchive.a", []byte("not an archive at all"))
	if err == nil {
		t.Fatal("expected an error for non-ar data, got nil")
	}
}

func TestArchivePullIsIdempotent(t *testing.T) {
	// Pull must return nil (not an error, not a duplicate object) the
	// second time the same member index is requested.
	var b bytes.Buffer
	b.WriteString(arMagic)
	b.Write(arMember("m.o/", []byte("x")))
	a, err := ParseArchive("libonce.a", b.Bytes())
	if err != nil {
		t.Fatalf("ParseArchive: %v", err)
	}
	a.pulled = map[int]bool{0: true}
	obj, err := a.Pull(nil, 0)
	if err != nil {
		t.Fatalf("Pull: %v", err)
	}
	if obj != nil {
		t.Fatalf("Pull on an already-pulled index returned non-nil object")
	}
}
