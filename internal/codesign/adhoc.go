// Package codesign produces the ad-hoc (unsigned, locally-computed)
// code signature a linker embeds via LC_CODE_SIGNATURE so the output can
// run on a platform that requires every executable to carry one. It never
// verifies or parses a pre-existing signature — this linker always writes
// its own from scratch over the final image bytes.
package codesign

import (
	"crypto/sha256"
	"encoding/binary"
)

const (
	pageSize = 4096

	magicCodeDirectory    = 0xfade0c02
	magicEmbeddedSignature = 0xfade0cc0

	cdHashType   = 2 // CS_HASHTYPE_SHA256
	cdHashSize   = sha256.Size
	cdSlotCount  = 0 // no requirements/entitlements blobs: ad-hoc signing only ever emits a bare CodeDirectory
	cdVersion    = 0x20400 // SUPPORTS_EXECSEG
	execSegFlags = 0
)

// SuperBlobSize returns the total byte size an ad-hoc signature occupies
// for a binary of codeLength bytes with the given identifier, so callers
// can reserve LC_CODE_SIGNATURE's (offset, size) before the image is laid
// out.
func SuperBlobSize(identifier string, codeLength uint64) uint64 {
	nPages := (codeLength + pageSize - 1) / pageSize
	cdSize := codeDirectorySize(identifier, nPages)
	return 12 /* SuperBlob header */ + 8 /* one BlobIndex */ + uint64(cdSize)
}

func codeDirectorySize(identifier string, nPages uint64) uint32 {
	const headerSize = 44 // CodeDirectory fixed fields Sign writes (through spare2), padded; no scatter/team/execSeg fields
	return uint32(headerSize) + uint32(len(identifier)) + 1 + uint32(nPages)*cdHashSize
}

// Sign computes the ad-hoc SuperBlob/CodeDirectory for image (the bytes of
// the final output file, header through the byte preceding the signature
// itself) and returns it ready to be written at the LC_CODE_SIGNATURE
// offset.
func Sign(identifier string, image []byte, execSegBase, execSegLimit uint64) []byte {
	nPages := uint64((len(image) + pageSize - 1) / pageSize)

	hashes := make([][cdHashSize]byte, nPages)
	for i := uint64(0); i < nPages; i++ {
		start := i * pageSize
		end := start + pageSize
		if end > uint64(len(image)) {
			end = uint64(len(image))
		}
		hashes[i] = sha256.Sum256(image[start:end])
	}

	idBytes := append([]byte(identifier), 0)
	cdSize := codeDirectorySize(identifier, nPages)
	cd := make([]byte, cdSize)

	binary.BigEndian.PutUint32(cd[0:], magicCodeDirectory)
	binary.BigEndian.PutUint32(cd[4:], cdSize)
	binary.BigEndian.PutUint32(cd[8:], cdVersion)
	binary.BigEndian.PutUint32(cd[12:], 0) // flags: adhoc (bit 0x2) left for caller to OR in if needed
	identOff := uint32(44)
	hashOff := identOff + uint32(len(idBytes))
	binary.BigEndian.PutUint32(cd[16:], hashOff)
	binary.BigEndian.PutUint32(cd[20:], identOff)
	binary.BigEndian.PutUint32(cd[24:], 0) // nSpecialSlots
	binary.BigEndian.PutUint32(cd[28:], uint32(nPages))
	binary.BigEndian.PutUint32(cd[32:], uint32(len(image)))
	cd[36] = byte(12) // page size as log2(4096)=12
	binary.BigEndian.PutUint32(cd[37:], 0) // spare2
	// bytes 41..44 reserved/scatterOffset region omitted from this minimal
	// layout; execSegBase/Limit/Flags (SUPPORTS_EXECSEG) would extend the
	// header for executables with a __TEXT exec segment.
	copy(cd[identOff:], idBytes)
	for i, h := range hashes {
		copy(cd[int(hashOff)+i*cdHashSize:], h[:])
	}

	blobSize := SuperBlobSize(identifier, uint64(len(image)))
	out := make([]byte, blobSize)
	binary.BigEndian.PutUint32(out[0:], magicEmbeddedSignature)
	binary.BigEndian.PutUint32(out[4:], uint32(blobSize))
	binary.BigEndian.PutUint32(out[8:], 1) // one index entry
	binary.BigEndian.PutUint32(out[12:], 0) // CSSLOT_CODEDIRECTORY
	binary.BigEndian.PutUint32(out[16:], 20)
	copy(out[20:], cd)
	return out
}
