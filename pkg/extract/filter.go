package extract

import (
	"sort"

	"go.uber.org/zap"

	"github.com/ferrovax/dredge/pkg/object"
)

// Problem records one object the scan saw but could not use.
type Problem struct {
	Hash   object.Hash `json:"hash"`
	Reason string      `json:"reason"`
}

// Inventory summarizes everything the scan encountered, for diagnostics
// and the stage summary.
type Inventory struct {
	Counts          map[object.ObjectType]int `json:"counts"`
	CommitsInWindow int                       `json:"commits_in_window"`
	Problems        []Problem                 `json:"problems,omitempty"`
}

// Selection is the outcome of the timestamp filter.
type Selection struct {
	Window    Window
	Blobs     []object.Hash // sorted, deduplicated in-window blob ids
	Inventory *Inventory
}

// SelectInWindow scans the store, keeps commits whose author or
// committer time falls inside w, and collects every blob reachable from
// their trees. Unreadable objects and unparseable commits are recorded
// and skipped; only a failed store walk is fatal.
func SelectInWindow(store *object.Store, w Window, log *zap.Logger) (*Selection, error) {
	inv := &Inventory{Counts: make(map[object.ObjectType]int)}
	blobSet := make(map[object.Hash]struct{})

	err := store.Scan(func(e object.ScanEntry) bool {
		if e.Err != nil {
			inv.Problems = append(inv.Problems, Problem{Hash: e.Hash, Reason: e.Err.Error()})
			log.Warn("unreadable object",
				zap.String("hash", string(e.Hash)),
				zap.Error(e.Err))
			return true
		}

		obj := e.Object
		inv.Counts[obj.Type]++
		if obj.Type != object.TypeCommit {
			return true
		}

		rec, err := object.ParseCommit(obj.Data)
		if err != nil {
			inv.Problems = append(inv.Problems, Problem{Hash: obj.Hash, Reason: err.Error()})
			log.Warn("malformed commit",
				zap.String("hash", string(obj.Hash)),
				zap.Error(err))
			return true
		}
		if rec.Author.When.IsZero() && rec.Committer.When.IsZero() {
			inv.Problems = append(inv.Problems, Problem{Hash: obj.Hash, Reason: "unparseable commit timestamp"})
			log.Warn("commit without parseable timestamp, treated as out of window",
				zap.String("hash", string(obj.Hash)))
			return true
		}
		if !commitInWindow(rec, w) {
			return true
		}

		inv.CommitsInWindow++
		blobs := store.ReachableBlobs(rec.Tree)
		for h := range blobs {
			blobSet[h] = struct{}{}
		}
		log.Debug("commit in window",
			zap.String("hash", string(obj.Hash)),
			zap.Time("committed", rec.Committer.When),
			zap.Int("blobs", len(blobs)))
		return true
	})
	if err != nil {
		return nil, err
	}

	blobs := make([]object.Hash, 0, len(blobSet))
	for h := range blobSet {
		blobs = append(blobs, h)
	}
	sort.Slice(blobs, func(i, j int) bool { return blobs[i] < blobs[j] })

	log.Info("timestamp filter complete",
		zap.String("window", w.String()),
		zap.Int("commits_in_window", inv.CommitsInWindow),
		zap.Int("blobs", len(blobs)),
		zap.Int("problems", len(inv.Problems)))

	return &Selection{Window: w, Blobs: blobs, Inventory: inv}, nil
}

// commitInWindow applies the window to either timestamp, preferring to
// extract when any evidence places the commit inside it.
func commitInWindow(rec *object.CommitRecord, w Window) bool {
	if !rec.Committer.When.IsZero() && w.Contains(rec.Committer.When) {
		return true
	}
	if !rec.Author.When.IsZero() && w.Contains(rec.Author.When) {
		return true
	}
	return false
}
