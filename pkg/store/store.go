// Package store holds a SYSCONF buffer and provides name lookup and
// type-checked in-place replacement of entry values.
package store

import (
	"encoding/binary"
	"fmt"
	"sort"

	"github.com/ssargent/sysconf/pkg/codec"
)

// Store owns one SYSCONF buffer for the duration of a load-modify-save
// session. It is not safe for concurrent use.
type Store struct {
	buf [BufferSize]byte
}

// Load reads exactly BufferSize bytes from src into a new Store
func Load(src Source) (*Store, error) {
	if src == nil {
		return nil, fmt.Errorf("%w: nil source", ErrIO)
	}

	data, err := src.ReadExact(BufferSize)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrIO, err)
	}

	return FromBytes(data)
}

// FromBytes copies data into a new Store. data must be exactly BufferSize bytes.
func FromBytes(data []byte) (*Store, error) {
	if len(data) != BufferSize {
		return nil, fmt.Errorf("%w: got %d bytes, want %d", ErrIO, len(data), BufferSize)
	}

	s := &Store{}
	copy(s.buf[:], data)

	return s, nil
}

// Save writes the full buffer to dst
func (s *Store) Save(dst Sink) error {
	if dst == nil {
		return fmt.Errorf("%w: nil sink", ErrIO)
	}
	if err := dst.WriteExact(s.Bytes()); err != nil {
		return fmt.Errorf("%w: %w", ErrIO, err)
	}

	return nil
}

// Bytes returns a copy of the buffer
func (s *Store) Bytes() []byte {
	out := make([]byte, BufferSize)
	copy(out, s.buf[:])
	return out
}

// Count returns the number of entries recorded in the header
func (s *Store) Count() int {
	return int(binary.BigEndian.Uint16(s.buf[countOffset:]))
}

// offsetAt returns the i-th offset table slot
func (s *Store) offsetAt(i int) (int, error) {
	off, err := codec.ReadBE16(s.buf[:], tableOffset+2*i)
	if err != nil {
		return 0, fmt.Errorf("offset table slot %d: %w", i, err)
	}

	return int(off), nil
}

// Find returns the offset of the first entry named name, scanning the offset
// table in stored order. Names are compared byte for byte.
func (s *Store) Find(name string) (int, error) {
	count := s.Count()
	for i := 0; i < count; i++ {
		off, err := s.offsetAt(i)
		if err != nil {
			return 0, err
		}

		raw, err := codec.ReadBytes(s.buf[:], off, 1)
		if err != nil {
			return 0, fmt.Errorf("entry %d: %w", i, err)
		}
		tag := codec.DecodeTag(raw[0])
		if tag.NameLen != len(name) {
			continue
		}

		candidate, err := codec.ReadBytes(s.buf[:], off+1, tag.NameLen)
		if err != nil {
			return 0, fmt.Errorf("entry %d name: %w", i, err)
		}
		if string(candidate) == name {
			return off, nil
		}
	}

	return 0, fmt.Errorf("%w: %q", ErrNotFound, name)
}

// layout finds name and decodes its record
func (s *Store) layout(name string) (codec.Layout, error) {
	off, err := s.Find(name)
	if err != nil {
		return codec.Layout{}, err
	}

	l, err := codec.Decode(s.buf[:], off)
	if err != nil {
		return codec.Layout{}, fmt.Errorf("entry %q: %w", name, err)
	}

	return l, nil
}

// EntryLength returns the value payload length of the named entry
func (s *Store) EntryLength(name string) (int, error) {
	l, err := s.layout(name)
	if err != nil {
		return 0, err
	}

	return l.ValueLen, nil
}

// Replace overwrites the value of the named entry in place. value must be
// exactly as long as the current payload. The tag, name and offset table are
// never modified, and nothing is written when any check fails.
func (s *Store) Replace(name string, value []byte) error {
	l, err := s.layout(name)
	if err != nil {
		return err
	}

	if len(value) != l.ValueLen {
		return fmt.Errorf("%w: %q is %s of %d bytes, got %d", ErrTypeMismatch, name, l.Tag.Class, l.ValueLen, len(value))
	}

	return codec.WriteBytes(s.buf[:], l.ValueStart, value)
}

// Get returns a decoded copy of the named entry
func (s *Store) Get(name string) (Entry, error) {
	l, err := s.layout(name)
	if err != nil {
		return Entry{}, err
	}

	return s.entryAt(l), nil
}

func (s *Store) entryAt(l codec.Layout) Entry {
	value := make([]byte, l.ValueLen)
	copy(value, s.buf[l.ValueStart:l.End()])

	return Entry{
		Name:   string(s.buf[l.NameStart : l.NameStart+l.Tag.NameLen]),
		Class:  l.Tag.Class,
		Type:   l.Tag.Class.String(),
		Offset: l.Offset,
		Value:  value,
	}
}

// Entries decodes every entry in offset table order
func (s *Store) Entries() ([]Entry, error) {
	count := s.Count()
	entries := make([]Entry, 0, count)
	for i := 0; i < count; i++ {
		off, err := s.offsetAt(i)
		if err != nil {
			return nil, err
		}

		l, err := codec.Decode(s.buf[:], off)
		if err != nil {
			return nil, fmt.Errorf("entry %d: %w", i, err)
		}
		entries = append(entries, s.entryAt(l))
	}

	return entries, nil
}

// Validate checks that the offset table fits the buffer and that every
// record lies after the table, inside the buffer, without overlapping
// another record.
func (s *Store) Validate() error {
	count := s.Count()
	tableEnd := tableOffset + 2*count
	if tableEnd > BufferSize {
		return fmt.Errorf("%w: offset table for %d entries ends at %d", ErrCorrupt, count, tableEnd)
	}

	layouts := make([]codec.Layout, 0, count)
	for i := 0; i < count; i++ {
		off, err := s.offsetAt(i)
		if err != nil {
			return err
		}
		if off < tableEnd {
			return fmt.Errorf("%w: entry %d at %d overlaps offset table ending at %d", ErrCorrupt, i, off, tableEnd)
		}

		l, err := codec.Decode(s.buf[:], off)
		if err != nil {
			return fmt.Errorf("entry %d: %w", i, err)
		}
		layouts = append(layouts, l)
	}

	sort.Slice(layouts, func(i, j int) bool { return layouts[i].Offset < layouts[j].Offset })
	for i := 1; i < len(layouts); i++ {
		prev, cur := layouts[i-1], layouts[i]
		if cur.Offset < prev.End() {
			return fmt.Errorf("%w: entry at %d overlaps entry at %d", ErrCorrupt, cur.Offset, prev.Offset)
		}
	}

	return nil
}
