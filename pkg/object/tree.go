package object

import (
	"bytes"
	"crypto/sha1"
	"encoding/hex"
	"fmt"
)

// ParseTree parses the body of a tree object: a concatenation of
// "<mode> <name>\0<20-byte hash>" entries with no separators.
func ParseTree(data []byte) ([]TreeEntry, error) {
	var entries []TreeEntry
	rest := data
	for len(rest) > 0 {
		sp := bytes.IndexByte(rest, ' ')
		if sp <= 0 {
			return nil, fmt.Errorf("parse tree: entry %d: missing mode", len(entries))
		}
		mode := string(rest[:sp])
		rest = rest[sp+1:]

		nul := bytes.IndexByte(rest, 0)
		if nul < 0 {
			return nil, fmt.Errorf("parse tree: entry %d: missing name terminator", len(entries))
		}
		name := string(rest[:nul])
		rest = rest[nul+1:]

		if len(rest) < sha1.Size {
			return nil, fmt.Errorf("parse tree: entry %d (%s): truncated hash", len(entries), name)
		}
		h := Hash(hex.EncodeToString(rest[:sha1.Size]))
		rest = rest[sha1.Size:]

		entries = append(entries, TreeEntry{Mode: mode, Name: name, Hash: h})
	}
	return entries, nil
}
