package store

import (
	"encoding/binary"
	"encoding/hex"
	"fmt"
	"strconv"
	"strings"

	"github.com/ssargent/sysconf/pkg/codec"
)

// Value kinds accepted by ParseValue
const (
	KindU8   = "u8"
	KindS8   = "s8"
	KindU16  = "u16"
	KindS16  = "s16"
	KindU32  = "u32"
	KindS32  = "s32"
	KindBool = "bool"
	KindHex  = "hex"
	KindStr  = "str"
)

// DefaultKind is the kind used to parse text for an entry of class c when
// the caller does not name one.
func DefaultKind(c codec.TypeClass) string {
	switch c {
	case codec.TypeByte:
		return KindU8
	case codec.TypeShort:
		return KindU16
	case codec.TypeLong:
		return KindU32
	case codec.TypeBool:
		return KindBool
	default:
		return KindHex
	}
}

// ParseValue converts text into the big-endian bytes of the given kind
func ParseValue(kind, text string) ([]byte, error) {
	switch kind {
	case KindU8, KindU16, KindU32:
		bits := map[string]int{KindU8: 8, KindU16: 16, KindU32: 32}[kind]
		n, err := strconv.ParseUint(text, 0, bits)
		if err != nil {
			return nil, fmt.Errorf("parse %s %q: %w", kind, text, err)
		}
		return encodeUint(n, bits/8), nil
	case KindS8, KindS16, KindS32:
		bits := map[string]int{KindS8: 8, KindS16: 16, KindS32: 32}[kind]
		n, err := strconv.ParseInt(text, 0, bits)
		if err != nil {
			return nil, fmt.Errorf("parse %s %q: %w", kind, text, err)
		}
		return encodeUint(uint64(n), bits/8), nil
	case KindBool:
		b, err := strconv.ParseBool(text)
		if err != nil {
			return nil, fmt.Errorf("parse bool %q: %w", text, err)
		}
		return EncodeScalar(b), nil
	case KindHex:
		b, err := hex.DecodeString(strings.TrimPrefix(strings.ReplaceAll(text, " ", ""), "0x"))
		if err != nil {
			return nil, fmt.Errorf("parse hex %q: %w", text, err)
		}
		return b, nil
	case KindStr:
		return []byte(text), nil
	default:
		return nil, fmt.Errorf("unknown value kind %q", kind)
	}
}

func encodeUint(n uint64, size int) []byte {
	var full [8]byte
	binary.BigEndian.PutUint64(full[:], n)
	out := make([]byte, size)
	copy(out, full[8-size:])
	return out
}

// FormatValue renders an entry payload for display. Scalars print as
// decimal, bools as true/false and arrays as hex.
func FormatValue(e Entry) string {
	if len(e.Value) != e.Class.FixedSize() {
		return hex.EncodeToString(e.Value)
	}

	switch e.Class {
	case codec.TypeByte:
		return strconv.FormatUint(uint64(e.Value[0]), 10)
	case codec.TypeShort:
		return strconv.FormatUint(uint64(binary.BigEndian.Uint16(e.Value)), 10)
	case codec.TypeLong:
		return strconv.FormatUint(uint64(binary.BigEndian.Uint32(e.Value)), 10)
	case codec.TypeBool:
		return strconv.FormatBool(e.Value[0] != 0)
	default:
		return hex.EncodeToString(e.Value)
	}
}

// Uint32 reads a Long entry
func (s *Store) Uint32(name string) (uint32, error) {
	return Value[uint32](s, name)
}
