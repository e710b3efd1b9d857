package storage

import (
	"fmt"
	"sync"
)

// Memory is an in-memory SYSCONF image
type Memory struct {
	mutex sync.Mutex
	data  []byte
}

// NewMemory creates a memory image holding a copy of data
func NewMemory(data []byte) *Memory {
	m := &Memory{}
	m.data = append(m.data, data...)
	return m
}

// ReadExact returns a copy of the image, which must be exactly length bytes
func (m *Memory) ReadExact(length int) ([]byte, error) {
	m.mutex.Lock()
	defer m.mutex.Unlock()

	if len(m.data) != length {
		return nil, fmt.Errorf("image is %d bytes, want %d", len(m.data), length)
	}

	out := make([]byte, length)
	copy(out, m.data)
	return out, nil
}

// WriteExact replaces the image with a copy of data
func (m *Memory) WriteExact(data []byte) error {
	m.mutex.Lock()
	defer m.mutex.Unlock()

	m.data = append(m.data[:0], data...)
	return nil
}

// Bytes returns a copy of the current image
func (m *Memory) Bytes() []byte {
	m.mutex.Lock()
	defer m.mutex.Unlock()

	out := make([]byte, len(m.data))
	copy(out, m.data)
	return out
}
