package extract

import (
	"bytes"
	"encoding/hex"
	"fmt"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/klauspost/compress/zlib"

	"github.com/ferrovax/dredge/pkg/object"
)

// writeLoose files one compressed object under root and returns its hash.
func writeLoose(t *testing.T, root string, objType object.ObjectType, data []byte) object.Hash {
	t.Helper()
	h := object.HashObject(objType, data)
	dir := filepath.Join(root, string(h[:2]))
	if err := os.MkdirAll(dir, 0o755); err != nil {
		t.Fatalf("mkdir fan-out: %v", err)
	}
	envelope := fmt.Sprintf("%s %d\x00", objType, len(data))
	var buf bytes.Buffer
	zw := zlib.NewWriter(&buf)
	if _, err := zw.Write(append([]byte(envelope), data...)); err != nil {
		t.Fatalf("compress: %v", err)
	}
	if err := zw.Close(); err != nil {
		t.Fatalf("close compressor: %v", err)
	}
	if err := os.WriteFile(filepath.Join(dir, string(h[2:])), buf.Bytes(), 0o644); err != nil {
		t.Fatalf("write loose object: %v", err)
	}
	return h
}

// treeEntry encodes one binary tree entry.
func treeEntry(t *testing.T, mode, name string, h object.Hash) []byte {
	t.Helper()
	raw, err := hex.DecodeString(string(h))
	if err != nil {
		t.Fatalf("decode hash %s: %v", h, err)
	}
	return append([]byte(mode+" "+name+"\x00"), raw...)
}

// commitBody builds a commit object body with both timestamps at when.
func commitBody(tree object.Hash, when time.Time, msg string) []byte {
	sig := fmt.Sprintf("Dev <dev@example.com> %d +0000", when.Unix())
	return []byte("tree " + string(tree) + "\n" +
		"author " + sig + "\n" +
		"committer " + sig + "\n" +
		"\n" + msg + "\n")
}
