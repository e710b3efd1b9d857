package codec

import "fmt"

// TypeClass is the value encoding selected by the upper 3 bits of a tag byte.
type TypeClass uint8

const (
	TypeUnknown    TypeClass = 0 // TypeUnknown is not a valid class.
	TypeBigArray   TypeClass = 1 // TypeBigArray is an array with a 16-bit count.
	TypeSmallArray TypeClass = 2 // TypeSmallArray is an array with an 8-bit count.
	TypeByte       TypeClass = 3 // TypeByte is a 1-byte scalar.
	TypeShort      TypeClass = 4 // TypeShort is a 2-byte scalar.
	TypeLong       TypeClass = 5 // TypeLong is a 4-byte scalar.
	TypeBool       TypeClass = 7 // TypeBool is a 1-byte boolean.
)

const (
	// MaxNameLen is the longest entry name a tag can describe.
	MaxNameLen = 32

	classShift = 5
	nameMask   = 0x1F
)

func (c TypeClass) String() string {
	switch c {
	case TypeBigArray:
		return "BigArray"
	case TypeSmallArray:
		return "SmallArray"
	case TypeByte:
		return "Byte"
	case TypeShort:
		return "Short"
	case TypeLong:
		return "Long"
	case TypeBool:
		return "Bool"
	default:
		return "Unknown"
	}
}

// Valid reports whether c is one of the recognized classes.
func (c TypeClass) Valid() bool {
	switch c {
	case TypeBigArray, TypeSmallArray, TypeByte, TypeShort, TypeLong, TypeBool:
		return true
	default:
		return false
	}
}

// IsArray reports whether values of class c carry a length prefix.
func (c TypeClass) IsArray() bool {
	return c == TypeBigArray || c == TypeSmallArray
}

// FixedSize returns the value width of a scalar class, or 0 for arrays and
// unknown classes.
func (c TypeClass) FixedSize() int {
	switch c {
	case TypeByte, TypeBool:
		return 1
	case TypeShort:
		return 2
	case TypeLong:
		return 4
	default:
		return 0
	}
}

// prefixSize is the number of count bytes between the name and the array data.
func (c TypeClass) prefixSize() int {
	switch c {
	case TypeBigArray:
		return 2
	case TypeSmallArray:
		return 1
	default:
		return 0
	}
}

// ParseTypeClass maps a class name (as printed by String) back to its value.
func ParseTypeClass(s string) (TypeClass, error) {
	for _, c := range []TypeClass{TypeBigArray, TypeSmallArray, TypeByte, TypeShort, TypeLong, TypeBool} {
		if c.String() == s {
			return c, nil
		}
	}

	return TypeUnknown, fmt.Errorf("%w: %q", ErrUnknownType, s)
}

// Tag is a decoded tag byte.
type Tag struct {
	Class   TypeClass
	NameLen int
}

// DecodeTag unpacks a tag byte. The class is returned as-is, so callers must
// check Class.Valid before trusting it.
func DecodeTag(b byte) Tag {
	return Tag{
		Class:   TypeClass(b >> classShift),
		NameLen: int(b&nameMask) + 1,
	}
}

// EncodeTag packs a class and name length into a tag byte.
func EncodeTag(class TypeClass, nameLen int) (byte, error) {
	if !class.Valid() {
		return 0, fmt.Errorf("%w: class %d", ErrUnknownType, class)
	}
	if nameLen < 1 || nameLen > MaxNameLen {
		return 0, fmt.Errorf("name length %d out of range [1, %d]", nameLen, MaxNameLen)
	}

	return byte(class)<<classShift | byte(nameLen-1), nil
}

func (t Tag) String() string {
	return fmt.Sprintf("%s(name=%d)", t.Class, t.NameLen)
}
