package extract

import (
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/ferrovax/dredge/pkg/object"
)

// TestSelectInWindow builds a store holding one commit before the window
// and one inside it, sharing a blob, and checks that only the in-window
// commit's unique content plus the shared blob survives.
func TestSelectInWindow(t *testing.T) {
	root := t.TempDir()
	shared := writeLoose(t, root, object.TypeBlob, []byte("shared across commits"))
	early := writeLoose(t, root, object.TypeBlob, []byte("only in the early commit"))
	late := writeLoose(t, root, object.TypeBlob, []byte("only in the late commit"))

	earlyTreeData := append(treeEntry(t, object.TreeModeFile, "shared.txt", shared),
		treeEntry(t, object.TreeModeFile, "early.txt", early)...)
	earlyTree := writeLoose(t, root, object.TypeTree, earlyTreeData)
	lateTreeData := append(treeEntry(t, object.TreeModeFile, "shared.txt", shared),
		treeEntry(t, object.TreeModeFile, "late.txt", late)...)
	lateTree := writeLoose(t, root, object.TypeTree, lateTreeData)

	loc := time.UTC
	writeLoose(t, root, object.TypeCommit,
		commitBody(earlyTree, time.Date(2024, 7, 14, 23, 0, 0, 0, loc), "early"))
	writeLoose(t, root, object.TypeCommit,
		commitBody(lateTree, time.Date(2024, 7, 15, 3, 0, 0, 0, loc), "late"))

	store, err := object.OpenStore(root)
	if err != nil {
		t.Fatalf("OpenStore: %v", err)
	}
	w := Window{
		Start: time.Date(2024, 7, 15, 2, 0, 0, 0, loc),
		End:   time.Date(2024, 7, 15, 9, 0, 0, 0, loc),
	}

	sel, err := SelectInWindow(store, w, zap.NewNop())
	if err != nil {
		t.Fatalf("SelectInWindow: %v", err)
	}

	got := make(map[object.Hash]bool, len(sel.Blobs))
	for _, h := range sel.Blobs {
		got[h] = true
	}
	if !got[late] || !got[shared] {
		t.Errorf("blobs = %v, want %s and %s present", sel.Blobs, late, shared)
	}
	if got[early] {
		t.Errorf("blob %s from the out-of-window commit was selected", early)
	}
	if sel.Inventory.CommitsInWindow != 1 {
		t.Errorf("commits in window = %d, want 1", sel.Inventory.CommitsInWindow)
	}
	if sel.Inventory.Counts[object.TypeCommit] != 2 {
		t.Errorf("commit count = %d, want 2", sel.Inventory.Counts[object.TypeCommit])
	}
}

func TestSelectInWindowUnparseableCommit(t *testing.T) {
	root := t.TempDir()
	blob := writeLoose(t, root, object.TypeBlob, []byte("content"))
	tree := writeLoose(t, root, object.TypeTree, treeEntry(t, object.TreeModeFile, "f.txt", blob))
	// A commit whose timestamps cannot be parsed is out of window by policy.
	writeLoose(t, root, object.TypeCommit,
		[]byte("tree "+string(tree)+"\nauthor A <a@b.c>\ncommitter A <a@b.c>\n\nmsg\n"))

	store, err := object.OpenStore(root)
	if err != nil {
		t.Fatalf("OpenStore: %v", err)
	}
	w := Window{Start: time.Unix(0, 0), End: time.Now().Add(time.Hour)}

	sel, err := SelectInWindow(store, w, zap.NewNop())
	if err != nil {
		t.Fatalf("SelectInWindow: %v", err)
	}
	if len(sel.Blobs) != 0 {
		t.Errorf("blobs = %v, want none", sel.Blobs)
	}
	if len(sel.Inventory.Problems) != 1 {
		t.Errorf("problems = %v, want exactly one", sel.Inventory.Problems)
	}
}
