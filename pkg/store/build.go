package store

import (
	"encoding/binary"
	"fmt"

	"github.com/ssargent/sysconf/pkg/codec"
)

// Build lays out a fresh buffer holding specs in order. Records are packed
// directly after the offset table.
func Build(specs []EntrySpec) (*Store, error) {
	if len(specs) > 0xFFFF {
		return nil, fmt.Errorf("too many entries: %d", len(specs))
	}

	s := &Store{}
	copy(s.buf[:countOffset], Magic)
	binary.BigEndian.PutUint16(s.buf[countOffset:], uint16(len(specs)))

	next := tableOffset + 2*len(specs)
	if next > BufferSize {
		return nil, fmt.Errorf("%w: offset table for %d entries does not fit", ErrCorrupt, len(specs))
	}

	for i, spec := range specs {
		record, err := codec.AppendEntry(nil, spec.Name, spec.Class, spec.Value)
		if err != nil {
			return nil, fmt.Errorf("entry %q: %w", spec.Name, err)
		}
		if err := codec.WriteBytes(s.buf[:], next, record); err != nil {
			return nil, fmt.Errorf("entry %q: %w", spec.Name, err)
		}

		binary.BigEndian.PutUint16(s.buf[tableOffset+2*i:], uint16(next))
		next += len(record)
	}

	return s, nil
}
