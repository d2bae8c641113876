package codesign

import (
	"crypto/sha256"
	"encoding/binary"
	"testing"
)

func TestSuperBlobSizeMatchesSignOutput(t *testing.T) {
	image := make([]byte, pageSize*2+10)
	got := Sign("com.example.test", image, 0, 0)
	want := SuperBlobSize("com.example.test", uint64(len(image)))
	if uint64(len(got)) != want {
		t.Fatalf("Sign produced %d bytes, SuperBlobSize predicted %d", len(got), want)
	}
}

func TestSignHeaderFields(t *testing.T) {
	image := make([]byte, pageSize+1)
	blob := Sign("id", image, 0, 0)

	if magic := binary.BigEndian.Uint32(blob[0:]); magic != magicEmbeddedSignature {
		t.Errorf("SuperBlob magic = %#x, want %#x", magic, magicEmbeddedSignature)
	}
	if size := binary.BigEndian.Uint32(blob[4:]); uint64(size) != uint64(len(blob)) {
		t.Errorf("SuperBlob length field = %d, want %d", size, len(blob))
	}
	if count := binary.BigEndian.Uint32(blob[8:]); count != 1 {
		t.Errorf("SuperBlob index count = %d, want 1", count)
	}

	cd := blob[20:]
	if magic := binary.BigEndian.Uint32(cd[0:]); magic != magicCodeDirectory {
		t.Errorf("CodeDirectory magic = %#x, want %#x", magic, magicCodeDirectory)
	}
	nPages := binary.BigEndian.Uint32(cd[28:])
	wantPages := uint32((len(image) + pageSize - 1) / pageSize)
	if nPages != wantPages {
		t.Errorf("CodeDirectory nCodeSlots = %d, want %d", nPages, wantPages)
	}
	codeLimit := binary.BigEndian.Uint32(cd[32:])
	if int(codeLimit) != len(image) {
		t.Errorf("CodeDirectory codeLimit = %d, want %d", codeLimit, len(image))
	}
}

func TestSignIdentifierEmbedded(t *testing.T) {
	ident := "com.example.myapp"
	image := make([]byte, 10)
	blob := Sign(ident, image, 0, 0)
	cd := blob[20:]
	identOff := binary.BigEndian.Uint32(cd[20:])
	got := string(cd[identOff : identOff+uint32(len(ident))])
	if got != ident {
		t.Errorf("identifier at identOff = %q, want %q", got, ident)
	}
	if cd[int(identOff)+len(ident)] != 0 {
		t.Error("identifier not NUL-terminated in the CodeDirectory")
	}
}

func TestSignPageHashesMatchSHA256(t *testing.T) {
	image := make([]byte, pageSize+100)
	for i := range image {
		image[i] = byte(i)
	}
	blob := Sign("id", image, 0, 0)
	cd := blob[20:]
	hashOff := binary.BigEndian.Uint32(cd[16:])

	want0 := sha256.Sum256(image[0:pageSize])
	got0 := cd[hashOff : hashOff+cdHashSize]
	if string(got0) != string(want0[:]) {
		t.Error("first page hash does not match sha256 of the first page")
	}

	want1 := sha256.Sum256(image[pageSize:])
	got1 := cd[hashOff+cdHashSize : hashOff+2*cdHashSize]
	if string(got1) != string(want1[:]) {
		t.Error("second (partial) page hash does not match sha256 of the remaining bytes")
	}
}

func TestSuperBlobSizeGrowsWithPageCount(t *testing.T) {
	small := SuperBlobSize("id", 100)
	large := SuperBlobSize("id", pageSize*10)
	if large <= small {
		t.Errorf("SuperBlobSize did not grow with code length: small=%d large=%d", small, large)
	}
}
