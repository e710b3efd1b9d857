package store

import (
	"github.com/ssargent/sysconf/pkg/codec"
)

const (
	// BufferSize is the exact size of a SYSCONF buffer on disk.
	BufferSize = 0x4000

	// Magic is written to the reserved header bytes by Build.
	Magic = "SCv0"

	countOffset = 4
	tableOffset = 6
)

// Source supplies the raw buffer on load
type Source interface {
	ReadExact(length int) ([]byte, error)
}

// Sink persists the raw buffer on save
type Sink interface {
	WriteExact(data []byte) error
}

// ReadWriter is a storage handle usable for a full load-modify-save session
type ReadWriter interface {
	Source
	Sink
}

// Entry is a decoded view of one record
type Entry struct {
	Name   string          `json:"name"`
	Class  codec.TypeClass `json:"-"`
	Type   string          `json:"type"`
	Offset int             `json:"offset"`
	Value  []byte          `json:"value"` // Copy of the value payload
}

// EntrySpec describes one record for Build
type EntrySpec struct {
	Name  string
	Class codec.TypeClass
	Value []byte
}

// Errors
var (
	ErrIO           = &ConfError{"short read or write on sysconf storage"}
	ErrNotFound     = &ConfError{"entry not found"}
	ErrTypeMismatch = &ConfError{"value size does not match entry"}
	ErrUnknownType  = codec.ErrUnknownType
	ErrCorrupt      = codec.ErrCorrupt
)

// ConfError represents a record store error
type ConfError struct {
	Message string
}

func (e *ConfError) Error() string {
	return e.Message
}
