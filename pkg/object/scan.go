package object

import (
	"fmt"
	"io/fs"
	"path/filepath"
)

// ScanEntry is one store entry visited during a Scan. Exactly one of
// Object and Err is set; Err wraps ErrCorruptObject, ErrMalformedHeader,
// or ErrHashMismatch.
type ScanEntry struct {
	Hash   Hash
	Object *StoredObject
	Err    error
}

// Scan walks every loose object under the store root in directory
// enumeration order and invokes visit once per entry. Entry-level
// failures are delivered through ScanEntry.Err and never stop the walk;
// visit returning false does. Files whose path does not form a valid
// hash are skipped. Scan may be called any number of times.
func (s *Store) Scan(visit func(ScanEntry) bool) error {
	return filepath.WalkDir(s.root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			if path == s.root {
				return fmt.Errorf("scan object store %s: %w", s.root, err)
			}
			// An unreadable subdirectory loses its entries, not the scan.
			return nil
		}
		if d.IsDir() {
			name := d.Name()
			if path != s.root && (name == "info" || name == "pack") {
				return fs.SkipDir
			}
			return nil
		}

		h, ok := hashFromPath(path)
		if !ok {
			return nil
		}

		obj, rerr := s.Read(h)
		entry := ScanEntry{Hash: h, Object: obj}
		if rerr != nil {
			entry = ScanEntry{Hash: h, Err: rerr}
		}
		if !visit(entry) {
			return fs.SkipAll
		}
		return nil
	})
}

// hashFromPath reassembles a hash from the fan-out layout: the parent
// directory holds the first two hex characters, the file name the rest.
func hashFromPath(path string) (Hash, bool) {
	name := filepath.Base(path)
	dir := filepath.Base(filepath.Dir(path))
	if len(dir) != 2 || len(name) != HashHexLen-2 {
		return "", false
	}
	h := dir + name
	if !ValidHash(h) {
		return "", false
	}
	return Hash(h), true
}
