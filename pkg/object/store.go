package object

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/klauspost/compress/zlib"
)

// Entry-level failure classes. Each is wrapped with the offending hash;
// match with errors.Is.
var (
	ErrNotFound        = errors.New("object not found")
	ErrCorruptObject   = errors.New("corrupt object")
	ErrMalformedHeader = errors.New("malformed object header")
	ErrHashMismatch    = errors.New("object hash mismatch")
)

// Store reads a Git object store with the 2-character fan-out layout:
// ab/cdef0123... under the store root. Loose objects only; the info/ and
// pack/ subdirectories are ignored, and packed objects are invisible.
// The store is never written to.
type Store struct {
	root string
}

// OpenStore opens the object store rooted at dir (a .git/objects
// directory). An unreadable root is the one fatal store condition.
func OpenStore(dir string) (*Store, error) {
	info, err := os.Stat(dir)
	if err != nil {
		return nil, fmt.Errorf("open object store %s: %w", dir, err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("open object store %s: not a directory", dir)
	}
	return &Store{root: dir}, nil
}

// Root returns the store root directory.
func (s *Store) Root() string { return s.root }

func (s *Store) objectPath(h Hash) string {
	return filepath.Join(s.root, string(h[:2]), string(h[2:]))
}

// Has reports whether a loose object with the given hash exists.
func (s *Store) Has(h Hash) bool {
	if !ValidHash(string(h)) {
		return false
	}
	_, err := os.Stat(s.objectPath(h))
	return err == nil
}

// Read retrieves a loose object by hash, decompresses it, and validates
// the envelope header and the content address.
func (s *Store) Read(h Hash) (*StoredObject, error) {
	if !ValidHash(string(h)) {
		return nil, fmt.Errorf("object %q: %w", h, ErrNotFound)
	}
	f, err := os.Open(s.objectPath(h))
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("object %s: %w", h, ErrNotFound)
		}
		return nil, fmt.Errorf("object read %s: %w", h, err)
	}
	defer f.Close()
	return parseLoose(h, f)
}

// parseLoose decompresses one loose object stream and validates the
// "type len\0content" envelope against h.
func parseLoose(h Hash, r io.Reader) (*StoredObject, error) {
	zr, err := zlib.NewReader(r)
	if err != nil {
		return nil, fmt.Errorf("object %s: %w: %v", h, ErrCorruptObject, err)
	}
	defer zr.Close()
	raw, err := io.ReadAll(zr)
	if err != nil {
		return nil, fmt.Errorf("object %s: %w: %v", h, ErrCorruptObject, err)
	}

	nulIdx := bytes.IndexByte(raw, 0)
	if nulIdx < 0 {
		return nil, fmt.Errorf("object %s: %w: no NUL after header", h, ErrMalformedHeader)
	}
	header := string(raw[:nulIdx])
	content := raw[nulIdx+1:]

	parts := strings.SplitN(header, " ", 2)
	if len(parts) != 2 {
		return nil, fmt.Errorf("object %s: %w: header %q", h, ErrMalformedHeader, header)
	}
	objType := ObjectType(parts[0])
	if !objType.Known() {
		return nil, fmt.Errorf("object %s: %w: unknown type %q", h, ErrMalformedHeader, parts[0])
	}
	length, err := strconv.Atoi(parts[1])
	if err != nil {
		return nil, fmt.Errorf("object %s: %w: length %q", h, ErrMalformedHeader, parts[1])
	}
	if len(content) != length {
		return nil, fmt.Errorf("object %s: %w: length mismatch (header=%d, actual=%d)", h, ErrMalformedHeader, length, len(content))
	}

	if derived := HashObject(objType, content); derived != h {
		return nil, fmt.Errorf("object %s: %w: content hashes to %s", h, ErrHashMismatch, derived)
	}

	return &StoredObject{Hash: h, Type: objType, Data: content, Size: length}, nil
}
