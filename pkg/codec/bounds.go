package codec

import (
	"encoding/binary"
	"fmt"
)

// Errors returned by the codec.
var (
	ErrUnknownType = &CodecError{"unknown entry type"}
	ErrCorrupt     = &CodecError{"entry out of bounds"}
)

// CodecError represents an entry layout error
type CodecError struct {
	Message string
}

func (e *CodecError) Error() string {
	return e.Message
}

func checkRange(buf []byte, off, n int) error {
	if off < 0 || n < 0 || off > len(buf) || n > len(buf)-off {
		return fmt.Errorf("%w: [%d, %d+%d) exceeds buffer of %d bytes", ErrCorrupt, off, off, n, len(buf))
	}

	return nil
}

// ReadBE16 reads a big-endian uint16 at off.
func ReadBE16(buf []byte, off int) (uint16, error) {
	if err := checkRange(buf, off, 2); err != nil {
		return 0, err
	}

	return binary.BigEndian.Uint16(buf[off:]), nil
}

// ReadBytes returns buf[off:off+n] without copying.
func ReadBytes(buf []byte, off, n int) ([]byte, error) {
	if err := checkRange(buf, off, n); err != nil {
		return nil, err
	}

	return buf[off : off+n], nil
}

// WriteBytes copies b into buf at off. Nothing is written unless all of b fits.
func WriteBytes(buf []byte, off int, b []byte) error {
	if err := checkRange(buf, off, len(b)); err != nil {
		return err
	}
	copy(buf[off:], b)

	return nil
}
