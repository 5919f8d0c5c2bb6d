// Package fs defines the filesystem abstraction used to read launch templates
// and configuration files and to write generated parameter documents.
package fs

import "os"

// ReadFS is a read-only filesystem.
type ReadFS interface {
	// Exists reports whether path exists.
	Exists(path string) (bool, error)

	// ReadFile reads the named file.
	ReadFile(path string) ([]byte, error)
}

// Filesystem is a read-write filesystem.
type Filesystem interface {
	ReadFS

	// WriteFile writes data to filename, replacing any existing content.
	WriteFile(filename string, data []byte, perm os.FileMode) error

	// WriteFileAtomic writes data to a temporary file next to filename and
	// renames it into place, so readers never observe a partial document.
	WriteFileAtomic(filename string, data []byte, perm os.FileMode) error
}
