package linker

import (
	"testing"

	"github.com/appsworld/machold/internal/macho/types"
)

func TestSignExtend24Positive(t *testing.T) {
	got := signExtend24(0x000123)
	if got != 0x123 {
		t.Errorf("signExtend24(0x000123) = %#x, want 0x123", got)
	}
}

func TestSignExtend24Negative(t *testing.T) {
	// bit 23 set: -1 in 24-bit two's complement is 0xffffff.
	got := signExtend24(0xffffff)
	if got != -1 {
		t.Errorf("signExtend24(0xffffff) = %d, want -1", got)
	}
}

func TestSignExtend24NegativeBoundary(t *testing.T) {
	// 0x800000 is the smallest 24-bit value with the sign bit set: -2^23.
	got := signExtend24(0x800000)
	if got != -(1 << 23) {
		t.Errorf("signExtend24(0x800000) = %d, want %d", got, -(1 << 23))
	}
}

func TestSignExtend24IgnoresHighBits(t *testing.T) {
	// Only the low 24 bits matter; anything above must be masked away
	// before the sign check, not leak through.
	got := signExtend24(0xff000010)
	if got != 0x10 {
		t.Errorf("signExtend24(0xff000010) = %#x, want 0x10", got)
	}
}

func TestIsSubtractorTypeARM64(t *testing.T) {
	if !isSubtractorType(uint8(types.ARM64RelocSubtractor), types.CPUArm64) {
		t.Error("ARM64RelocSubtractor not recognized as a subtractor type on arm64")
	}
	if isSubtractorType(uint8(types.ARM64RelocAddend), types.CPUArm64) {
		t.Error("ARM64RelocAddend misidentified as a subtractor type")
	}
}

func TestIsSubtractorTypeX86_64(t *testing.T) {
	if !isSubtractorType(uint8(types.X86_64RelocSubtractor), types.CPUAmd64) {
		t.Error("X86_64RelocSubtractor not recognized as a subtractor type on x86_64")
	}
}

func TestIsSubtractorTypeCrossArchNumericCollision(t *testing.T) {
	// ARM64RelocSubtractor and X86_64RelocSubtractor have different
	// numeric values; passing an arm64 subtractor code under the x86_64
	// arch must not accidentally match.
	if isSubtractorType(uint8(types.ARM64RelocSubtractor), types.CPUAmd64) {
		t.Error("arm64 subtractor code matched under x86_64 CPU selector")
	}
}
