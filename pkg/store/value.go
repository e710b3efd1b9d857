package store

import (
	"bytes"
	"encoding/binary"
	"fmt"
)

// Scalar is a fixed-size value that can be written into an entry.
// Values are encoded big-endian, the byte order of the console.
type Scalar interface {
	~uint8 | ~int8 | ~uint16 | ~int16 | ~uint32 | ~int32 | ~uint64 | ~int64 | ~bool
}

// EncodeScalar returns the big-endian bytes of v
func EncodeScalar[T Scalar](v T) []byte {
	var buf bytes.Buffer
	buf.Grow(binary.Size(v))
	// Writes of fixed-size kinds into a bytes.Buffer cannot fail
	_ = binary.Write(&buf, binary.BigEndian, v)
	return buf.Bytes()
}

// ReplaceValue writes v into the named entry. The entry's payload length must
// equal the size of T.
func ReplaceValue[T Scalar](s *Store, name string, v T) error {
	return s.Replace(name, EncodeScalar(v))
}

// Value reads the named entry as a T. The entry's payload length must equal
// the size of T.
func Value[T Scalar](s *Store, name string) (T, error) {
	var v T

	e, err := s.Get(name)
	if err != nil {
		return v, err
	}
	if len(e.Value) != binary.Size(v) {
		return v, fmt.Errorf("%w: %q is %d bytes, want %d", ErrTypeMismatch, name, len(e.Value), binary.Size(v))
	}
	if err := binary.Read(bytes.NewReader(e.Value), binary.BigEndian, &v); err != nil {
		return v, fmt.Errorf("decode %q: %w", name, err)
	}

	return v, nil
}
