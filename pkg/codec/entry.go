package codec

import (
	"fmt"
)

// MaxArrayLen is the largest value a big array count can describe.
const MaxArrayLen = 0x10000

// Layout describes where the parts of one entry live inside the buffer.
type Layout struct {
	Offset     int // Offset of the tag byte
	Tag        Tag
	NameStart  int
	ValueStart int // First byte of the value payload, after any count prefix
	ValueLen   int
}

// End returns the offset one past the last value byte.
func (l Layout) End() int {
	return l.ValueStart + l.ValueLen
}

// Size returns the total record length: tag, name, count prefix and value.
func (l Layout) Size() int {
	return l.End() - l.Offset
}

// Decode computes the layout of the entry starting at off. The whole record,
// including the value payload, must fit inside buf.
func Decode(buf []byte, off int) (Layout, error) {
	raw, err := ReadBytes(buf, off, 1)
	if err != nil {
		return Layout{}, err
	}

	tag := DecodeTag(raw[0])
	if !tag.Class.Valid() {
		return Layout{}, fmt.Errorf("%w: tag 0x%02x at offset %d", ErrUnknownType, raw[0], off)
	}

	l := Layout{
		Offset:    off,
		Tag:       tag,
		NameStart: off + 1,
	}
	if err := checkRange(buf, l.NameStart, tag.NameLen); err != nil {
		return Layout{}, err
	}

	countAt := l.NameStart + tag.NameLen
	switch tag.Class {
	case TypeBigArray:
		n, err := ReadBE16(buf, countAt)
		if err != nil {
			return Layout{}, err
		}
		l.ValueLen = int(n) + 1
	case TypeSmallArray:
		b, err := ReadBytes(buf, countAt, 1)
		if err != nil {
			return Layout{}, err
		}
		l.ValueLen = int(b[0]) + 1
	default:
		l.ValueLen = tag.Class.FixedSize()
	}
	l.ValueStart = countAt + tag.Class.prefixSize()

	if err := checkRange(buf, l.ValueStart, l.ValueLen); err != nil {
		return Layout{}, err
	}

	return l, nil
}

// ValueLength returns the payload length of the entry at off.
func ValueLength(buf []byte, off int) (int, error) {
	l, err := Decode(buf, off)
	if err != nil {
		return 0, err
	}

	return l.ValueLen, nil
}

// ValueOffset returns where the payload of the entry at off begins.
func ValueOffset(buf []byte, off int) (int, error) {
	l, err := Decode(buf, off)
	if err != nil {
		return 0, err
	}

	return l.ValueStart, nil
}

// EncodedSize returns the record length AppendEntry would produce.
func EncodedSize(name string, class TypeClass, valueLen int) int {
	return 1 + len(name) + class.prefixSize() + valueLen
}

// AppendEntry encodes one entry and appends it to dst.
// Format: [Tag(1)][Name][Count(0-2)][Value]
func AppendEntry(dst []byte, name string, class TypeClass, value []byte) ([]byte, error) {
	tag, err := EncodeTag(class, len(name))
	if err != nil {
		return dst, err
	}

	switch class {
	case TypeBigArray:
		if len(value) < 1 || len(value) > MaxArrayLen {
			return dst, fmt.Errorf("big array length %d out of range [1, %d]", len(value), MaxArrayLen)
		}
	case TypeSmallArray:
		if len(value) < 1 || len(value) > 0x100 {
			return dst, fmt.Errorf("small array length %d out of range [1, 256]", len(value))
		}
	default:
		if len(value) != class.FixedSize() {
			return dst, fmt.Errorf("%s value must be %d bytes, got %d", class, class.FixedSize(), len(value))
		}
	}

	dst = append(dst, tag)
	dst = append(dst, name...)
	switch class {
	case TypeBigArray:
		n := len(value) - 1
		dst = append(dst, byte(n>>8), byte(n))
	case TypeSmallArray:
		dst = append(dst, byte(len(value)-1))
	}

	return append(dst, value...), nil
}
