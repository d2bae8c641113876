package types

import "testing"

func TestEncodeVersionRoundTrip(t *testing.T) {
	v := EncodeVersion(12, 3, 250)
	if got, want := v.String(), "12.3.250"; got != want {
		t.Errorf("EncodeVersion(12,3,250).String() = %q, want %q", got, want)
	}
}

func TestEncodeVersionZero(t *testing.T) {
	v := EncodeVersion(0, 0, 0)
	if got, want := v.String(), "0.0.0"; got != want {
		t.Errorf("EncodeVersion(0,0,0).String() = %q, want %q", got, want)
	}
}

func TestEncodeVersionFieldIsolation(t *testing.T) {
	// Each component must live in its own byte and not bleed into another.
	v := EncodeVersion(1, 0, 0)
	if v != Version(1<<16) {
		t.Errorf("EncodeVersion(1,0,0) = %#x, want %#x", uint32(v), uint32(1<<16))
	}
	v = EncodeVersion(0, 1, 0)
	if v != Version(1<<8) {
		t.Errorf("EncodeVersion(0,1,0) = %#x, want %#x", uint32(v), uint32(1<<8))
	}
	v = EncodeVersion(0, 0, 1)
	if v != Version(1) {
		t.Errorf("EncodeVersion(0,0,1) = %#x, want 1", uint32(v))
	}
}

func TestPutAtMost16BytesExactFit(t *testing.T) {
	buf := make([]byte, 16)
	PutAtMost16Bytes(buf, "__TEXT")
	want := "__TEXT" + string(make([]byte, 16-len("__TEXT")))
	if string(buf) != want {
		t.Errorf("PutAtMost16Bytes left unexpected bytes: %q", buf)
	}
}

func TestPutAtMost16BytesTruncates(t *testing.T) {
	buf := make([]byte, 16)
	name := "this_name_is_way_too_long_for_16_bytes"
	PutAtMost16Bytes(buf, name)
	if string(buf) != name[:16] {
		t.Errorf("PutAtMost16Bytes did not truncate to 16 bytes: %q", buf)
	}
}

func TestPutAtMost16BytesDoesNotOverwriteBeyondInput(t *testing.T) {
	buf := []byte("XXXXXXXXXXXXXXXX")
	PutAtMost16Bytes(buf, "abc")
	if string(buf) != "abcXXXXXXXXXXXXX" {
		t.Errorf("PutAtMost16Bytes clobbered bytes past the input length: %q", buf)
	}
}

func TestRoundUp(t *testing.T) {
	cases := []struct{ x, align, want uint64 }{
		{0, 0x4000, 0},
		{1, 0x4000, 0x4000},
		{0x4000, 0x4000, 0x4000},
		{0x4001, 0x4000, 0x8000},
	}
	for _, c := range cases {
		if got := RoundUp(c.x, c.align); got != c.want {
			t.Errorf("RoundUp(%#x, %#x) = %#x, want %#x", c.x, c.align, got, c.want)
		}
	}
}
