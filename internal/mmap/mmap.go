// Package mmap provides read-only memory mapping of files, used by the
// local blobstore to serve archived snapshots without buffering them.
package mmap

import (
	"fmt"
	"os"
)

// Mapping is a read-only memory-mapped file.
type Mapping struct {
	data []byte
}

// Open maps the file at path read-only. Empty files map to an empty,
// valid Mapping.
func Open(path string) (*Mapping, error) {
	f, err := os.Open(path) //nolint:gosec // G304: path is caller controlled
	if err != nil {
		return nil, err
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return nil, err
	}
	if info.Size() == 0 {
		return &Mapping{}, nil
	}

	data, err := mapFile(f, int(info.Size()))
	if err != nil {
		return nil, fmt.Errorf("mmap %s: %w", path, err)
	}

	return &Mapping{data: data}, nil
}

// Bytes returns the mapped content. Valid until Close.
func (m *Mapping) Bytes() []byte { return m.data }

// Close unmaps the file.
func (m *Mapping) Close() error {
	if m.data == nil {
		return nil
	}
	data := m.data
	m.data = nil

	return unmapFile(data)
}
