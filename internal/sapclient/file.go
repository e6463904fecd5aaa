package sapclient

import (
	"bytes"
	"io"
	"os"
	"path/filepath"
)

// File is a reference to proof content that can be opened when the payload is assembled.
type File interface {
	Name() string
	Open() (io.ReadCloser, error)
}

type pathFile struct {
	path string
}

// FileFromPath references a file on disk.
func FileFromPath(path string) File {
	return pathFile{path: path}
}

func (f pathFile) Name() string {
	return filepath.Base(f.path)
}

func (f pathFile) Open() (io.ReadCloser, error) {
	return os.Open(f.path)
}

type bytesFile struct {
	name string
	data []byte
}

// FileFromBytes references in-memory content under the given file name.
func FileFromBytes(name string, data []byte) File {
	return bytesFile{name: name, data: data}
}

func (f bytesFile) Name() string {
	return f.name
}

func (f bytesFile) Open() (io.ReadCloser, error) {
	return io.NopCloser(bytes.NewReader(f.data)), nil
}
