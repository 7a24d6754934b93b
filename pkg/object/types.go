package object

import "time"

// Hash is a 40-character hex-encoded SHA-1 digest, the content address of
// one loose object.
type Hash string

// ObjectType identifies the kind of object stored.
type ObjectType string

const (
	TypeBlob   ObjectType = "blob"
	TypeTree   ObjectType = "tree"
	TypeCommit ObjectType = "commit"
	TypeTag    ObjectType = "tag"
)

// Known reports whether t is one of the four loose object types.
func (t ObjectType) Known() bool {
	switch t {
	case TypeBlob, TypeTree, TypeCommit, TypeTag:
		return true
	}
	return false
}

const (
	// Tree mode constants as Git writes them (no leading zero on dirs).
	TreeModeDir     = "40000"
	TreeModeFile    = "100644"
	TreeModeExec    = "100755"
	TreeModeSymlink = "120000"
	TreeModeGitlink = "160000"
)

// StoredObject is one decompressed loose object. Immutable once read;
// Hash is re-derived from Type and Data during parsing, so a populated
// StoredObject is always internally consistent.
type StoredObject struct {
	Hash Hash
	Type ObjectType
	Data []byte
	Size int // declared size from the envelope header
}

// Signature is a parsed author or committer line. When is zero if the
// line was absent or its timestamp could not be parsed.
type Signature struct {
	Name  string
	Email string
	When  time.Time
}

// CommitRecord is the subset of a commit object the pipeline needs: the
// tree to walk and the timestamps to filter on. Not persisted anywhere.
type CommitRecord struct {
	Tree      Hash
	Parents   []Hash
	Author    Signature
	Committer Signature
	Message   string
}

// TreeEntry is one entry in a tree object.
type TreeEntry struct {
	Mode string
	Name string
	Hash Hash
}

// IsDir reports whether the entry points at a subtree.
func (e TreeEntry) IsDir() bool { return e.Mode == TreeModeDir }

// IsGitlink reports whether the entry is a submodule reference, which
// points outside the store and is never walked.
func (e TreeEntry) IsGitlink() bool { return e.Mode == TreeModeGitlink }
