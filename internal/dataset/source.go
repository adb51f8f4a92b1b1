package dataset

import (
	"bytes"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"

	"golang.org/x/crypto/blake2b"
)

// Source is something a Table can be loaded from.
//
// Fingerprint must be cheap: the cache compares it before deciding whether to read
// and hash the content again.
type Source interface {
	Name() string
	Fingerprint() (string, error)
	Open() (io.ReadCloser, error)
}

// FileSource reads a CSV file from disk. Its fingerprint is path, size and mtime.
type FileSource struct {
	Path string
}

func (s FileSource) Name() string { return s.Path }

func (s FileSource) Fingerprint() (string, error) {
	fi, err := os.Stat(s.Path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return "", notFound(s.Path, err)
		}
		return "", fmt.Errorf("stat %s: %w", s.Path, err)
	}
	if fi.IsDir() {
		return "", notFound(s.Path, errors.New("is a directory"))
	}
	abs, err := filepath.Abs(s.Path)
	if err != nil {
		abs = s.Path
	}
	return fmt.Sprintf("file:%s:%d:%d", abs, fi.Size(), fi.ModTime().UnixNano()), nil
}

func (s FileSource) Open() (io.ReadCloser, error) {
	f, err := os.Open(s.Path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, notFound(s.Path, err)
		}
		return nil, fmt.Errorf("open %s: %w", s.Path, err)
	}
	return f, nil
}

// BytesSource serves in-memory content, e.g. an uploaded file or a test fixture.
type BytesSource struct {
	Label string
	Data  []byte
}

func (s BytesSource) Name() string {
	if s.Label == "" {
		return "memory"
	}
	return s.Label
}

func (s BytesSource) Fingerprint() (string, error) {
	return "bytes:" + ContentKey(s.Data), nil
}

func (s BytesSource) Open() (io.ReadCloser, error) {
	return io.NopCloser(bytes.NewReader(s.Data)), nil
}

// ContentKey is the hex blake2b-256 digest used to address cached tables.
func ContentKey(data []byte) string {
	sum := blake2b.Sum256(data)
	return hex.EncodeToString(sum[:])
}

func readAll(src Source) ([]byte, error) {
	rc, err := src.Open()
	if err != nil {
		return nil, err
	}
	defer rc.Close()

	b, err := io.ReadAll(rc)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", src.Name(), err)
	}
	return b, nil
}
