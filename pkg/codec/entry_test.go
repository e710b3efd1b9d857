package codec

import (
	"bytes"
	"errors"
	"testing"
)

func TestDecodeTag(t *testing.T) {
	testCases := []struct {
		name    string
		tag     byte
		class   TypeClass
		nameLen int
	}{
		{name: "byte with 4 char name", tag: 0x63, class: TypeByte, nameLen: 4},
		{name: "small array with 2 char name", tag: 0x41, class: TypeSmallArray, nameLen: 2},
		{name: "big array with 1 char name", tag: 0x20, class: TypeBigArray, nameLen: 1},
		{name: "bool with 32 char name", tag: 0xFF, class: TypeBool, nameLen: 32},
		{name: "long with 6 char name", tag: 0xA5, class: TypeLong, nameLen: 6},
		{name: "reserved class 6", tag: 0xC0, class: TypeClass(6), nameLen: 1},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			got := DecodeTag(tc.tag)
			if got.Class != tc.class {
				t.Errorf("Class mismatch: got %v, want %v", got.Class, tc.class)
			}
			if got.NameLen != tc.nameLen {
				t.Errorf("NameLen mismatch: got %d, want %d", got.NameLen, tc.nameLen)
			}
		})
	}
}

func TestEncodeTag(t *testing.T) {
	for _, class := range []TypeClass{TypeBigArray, TypeSmallArray, TypeByte, TypeShort, TypeLong, TypeBool} {
		for _, n := range []int{1, 6, 32} {
			b, err := EncodeTag(class, n)
			if err != nil {
				t.Fatalf("EncodeTag(%v, %d) failed: %v", class, n, err)
			}
			if got := DecodeTag(b); got.Class != class || got.NameLen != n {
				t.Errorf("EncodeTag(%v, %d) decoded as %v", class, n, got)
			}
		}
	}

	if _, err := EncodeTag(TypeClass(6), 1); !errors.Is(err, ErrUnknownType) {
		t.Errorf("Expected ErrUnknownType for class 6, got %v", err)
	}
	if _, err := EncodeTag(TypeByte, 0); err == nil {
		t.Error("Expected error for empty name")
	}
	if _, err := EncodeTag(TypeByte, 33); err == nil {
		t.Error("Expected error for 33 byte name")
	}
}

func TestTypeClass_String(t *testing.T) {
	if TypeSmallArray.String() != "SmallArray" {
		t.Errorf("got %q", TypeSmallArray.String())
	}
	if TypeClass(6).String() != "Unknown" {
		t.Errorf("got %q", TypeClass(6).String())
	}

	c, err := ParseTypeClass("Long")
	if err != nil || c != TypeLong {
		t.Errorf("ParseTypeClass(Long) = %v, %v", c, err)
	}
	if _, err := ParseTypeClass("Float"); !errors.Is(err, ErrUnknownType) {
		t.Errorf("Expected ErrUnknownType, got %v", err)
	}
}

func TestValueLength_AllClasses(t *testing.T) {
	testCases := []struct {
		name       string
		record     []byte
		wantLen    int
		wantOffset int
	}{
		{
			name:       "big array",
			record:     []byte{0x21, 'B', 'A', 0x00, 0x04, 1, 2, 3, 4, 5},
			wantLen:    5,
			wantOffset: 5,
		},
		{
			name:       "small array",
			record:     []byte{0x41, 'X', 'Y', 0x02, 0xAA, 0xBB, 0xCC},
			wantLen:    3,
			wantOffset: 4,
		},
		{
			name:       "byte",
			record:     []byte{0x63, 'A', 'B', 'C', 'D', 0x05},
			wantLen:    1,
			wantOffset: 5,
		},
		{
			name:       "short",
			record:     []byte{0x80, 'S', 0x12, 0x34},
			wantLen:    2,
			wantOffset: 2,
		},
		{
			name:       "long",
			record:     []byte{0xA5, 'I', 'P', 'L', '.', 'C', 'B', 0, 0, 0, 1},
			wantLen:    4,
			wantOffset: 7,
		},
		{
			name:       "bool",
			record:     []byte{0xE0, 'F', 0x01},
			wantLen:    1,
			wantOffset: 2,
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			// Place the record at a non-zero offset to catch base mistakes
			buf := append(make([]byte, 6), tc.record...)

			n, err := ValueLength(buf, 6)
			if err != nil {
				t.Fatalf("ValueLength failed: %v", err)
			}
			if n != tc.wantLen {
				t.Errorf("ValueLength mismatch: got %d, want %d", n, tc.wantLen)
			}

			off, err := ValueOffset(buf, 6)
			if err != nil {
				t.Fatalf("ValueOffset failed: %v", err)
			}
			if off != 6+tc.wantOffset {
				t.Errorf("ValueOffset mismatch: got %d, want %d", off, 6+tc.wantOffset)
			}
		})
	}
}

func TestValueLength_UnknownType(t *testing.T) {
	for _, tag := range []byte{0x00, 0xC0, 0x1F} {
		buf := []byte{tag, 'Z', 0x00, 0x00}
		if _, err := ValueLength(buf, 0); !errors.Is(err, ErrUnknownType) {
			t.Errorf("tag 0x%02x: expected ErrUnknownType, got %v", tag, err)
		}
	}
}

func TestDecode_Truncated(t *testing.T) {
	testCases := []struct {
		name string
		buf  []byte
		off  int
	}{
		{name: "offset past end", buf: []byte{0x63}, off: 1},
		{name: "negative offset", buf: []byte{0x63}, off: -1},
		{name: "name runs past end", buf: []byte{0x63, 'A', 'B'}, off: 0},
		{name: "scalar value missing", buf: []byte{0x63, 'A', 'B', 'C', 'D'}, off: 0},
		{name: "small array count missing", buf: []byte{0x41, 'X', 'Y'}, off: 0},
		{name: "small array data short", buf: []byte{0x41, 'X', 'Y', 0x02, 0xAA}, off: 0},
		{name: "big array count half", buf: []byte{0x20, 'B', 0x00}, off: 0},
		{name: "big array data short", buf: []byte{0x20, 'B', 0xFF, 0xFF, 0x00}, off: 0},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			if _, err := Decode(tc.buf, tc.off); !errors.Is(err, ErrCorrupt) {
				t.Errorf("Expected ErrCorrupt, got %v", err)
			}
		})
	}
}

func TestLayout_Size(t *testing.T) {
	buf := []byte{0x41, 'X', 'Y', 0x02, 0xAA, 0xBB, 0xCC}
	l, err := Decode(buf, 0)
	if err != nil {
		t.Fatalf("Decode failed: %v", err)
	}
	if l.Size() != len(buf) {
		t.Errorf("Size mismatch: got %d, want %d", l.Size(), len(buf))
	}
	if l.End() != len(buf) {
		t.Errorf("End mismatch: got %d, want %d", l.End(), len(buf))
	}
}

func TestAppendEntry(t *testing.T) {
	t.Run("small array stores length minus one", func(t *testing.T) {
		got, err := AppendEntry(nil, "XY", TypeSmallArray, []byte{0xAA, 0xBB, 0xCC})
		if err != nil {
			t.Fatalf("AppendEntry failed: %v", err)
		}
		want := []byte{0x41, 'X', 'Y', 0x02, 0xAA, 0xBB, 0xCC}
		if !bytes.Equal(got, want) {
			t.Errorf("got % x, want % x", got, want)
		}
	})

	t.Run("big array stores big-endian length minus one", func(t *testing.T) {
		value := bytes.Repeat([]byte{0x11}, 300)
		got, err := AppendEntry(nil, "BA", TypeBigArray, value)
		if err != nil {
			t.Fatalf("AppendEntry failed: %v", err)
		}
		if got[3] != 0x01 || got[4] != 0x2B {
			t.Errorf("count mismatch: got % x", got[3:5])
		}
		if len(got) != EncodedSize("BA", TypeBigArray, len(value)) {
			t.Errorf("EncodedSize mismatch: got %d", len(got))
		}
	})

	t.Run("scalar width enforced", func(t *testing.T) {
		if _, err := AppendEntry(nil, "S", TypeShort, []byte{1}); err == nil {
			t.Error("Expected error for 1 byte short")
		}
	})

	t.Run("empty array rejected", func(t *testing.T) {
		if _, err := AppendEntry(nil, "A", TypeSmallArray, nil); err == nil {
			t.Error("Expected error for empty small array")
		}
	})

	t.Run("round trip through Decode", func(t *testing.T) {
		buf, err := AppendEntry([]byte{0, 0}, "IPL.CB", TypeLong, []byte{0, 0, 0x12, 0x34})
		if err != nil {
			t.Fatalf("AppendEntry failed: %v", err)
		}
		l, err := Decode(buf, 2)
		if err != nil {
			t.Fatalf("Decode failed: %v", err)
		}
		if string(buf[l.NameStart:l.NameStart+l.Tag.NameLen]) != "IPL.CB" {
			t.Errorf("name mismatch")
		}
		if !bytes.Equal(buf[l.ValueStart:l.End()], []byte{0, 0, 0x12, 0x34}) {
			t.Errorf("value mismatch")
		}
	})
}

func TestAccessors(t *testing.T) {
	buf := make([]byte, 8)

	if err := WriteBytes(buf, 6, []byte{1, 2, 3}); !errors.Is(err, ErrCorrupt) {
		t.Errorf("Expected ErrCorrupt for overflowing write, got %v", err)
	}
	if !bytes.Equal(buf, make([]byte, 8)) {
		t.Error("Overflowing write modified the buffer")
	}

	if err := WriteBytes(buf, 6, []byte{0x12, 0x34}); err != nil {
		t.Fatalf("WriteBytes failed: %v", err)
	}
	v, err := ReadBE16(buf, 6)
	if err != nil || v != 0x1234 {
		t.Errorf("ReadBE16 = 0x%04x, %v", v, err)
	}
	if _, err := ReadBE16(buf, 7); !errors.Is(err, ErrCorrupt) {
		t.Errorf("Expected ErrCorrupt, got %v", err)
	}
	if _, err := ReadBytes(buf, 0, 9); !errors.Is(err, ErrCorrupt) {
		t.Errorf("Expected ErrCorrupt, got %v", err)
	}
}
