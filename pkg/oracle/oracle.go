// Package oracle drives the external content-classification service the
// pipeline consults: an imperfect, rate-limited network collaborator.
// Consumers depend on the Oracle interface; tests substitute
// deterministic stubs.
package oracle

import (
	"context"
	"errors"
	"fmt"
)

// Verdict says which side of a comparison is newer.
type Verdict string

const (
	NewerA       Verdict = "a"
	NewerB       Verdict = "b"
	NewerUnknown Verdict = "unknown"
)

// Item is one extracted content presented to the oracle. Name, Kind and
// Summary are empty until classification fills them.
type Item struct {
	ID      string
	Name    string
	Kind    string
	Summary string
	Content string
}

// Classification is the classify outcome for one item.
type Classification struct {
	Name       string  `json:"name"`
	Kind       string  `json:"file_type"`
	Valuable   bool    `json:"valuable"`
	Rationale  string  `json:"analysis"`
	Confidence float64 `json:"confidence"`
	Attempts   int     `json:"-"`
}

// Comparison is the compare outcome for an ordered pair (a, b).
type Comparison struct {
	SameFile   bool    `json:"same_file"`
	Newer      Verdict `json:"newer"`
	Confidence float64 `json:"confidence"`
	Rationale  string  `json:"rationale"`
	Attempts   int     `json:"-"`
}

// ProposedGroup is one cluster from a bulk partition call. Members are
// 1-based indices into the submitted item slice, matching how the items
// are numbered in the request.
type ProposedGroup struct {
	Label     string `json:"label"`
	Members   []int  `json:"members"`
	Rationale string `json:"rationale"`
}

// Oracle is the contract the pipeline depends on: classify one item,
// compare two, or partition many in one call.
type Oracle interface {
	Classify(ctx context.Context, item Item) (Classification, error)
	Compare(ctx context.Context, a, b Item) (Comparison, error)
	Partition(ctx context.Context, items []Item) ([]ProposedGroup, error)
}

// CallError reports one oracle call's failure after all its attempts.
// Permanent failures are not worth retrying (malformed response, client
// error); Fatal ones (auth rejection) mean the whole stage should stop.
type CallError struct {
	Op        string
	Attempts  int
	Permanent bool
	Fatal     bool
	Err       error
}

func (e *CallError) Error() string {
	return fmt.Sprintf("oracle %s failed after %d attempt(s): %v", e.Op, e.Attempts, e.Err)
}

func (e *CallError) Unwrap() error { return e.Err }

// IsFatal reports whether err carries a stage-fatal oracle failure.
func IsFatal(err error) bool {
	var ce *CallError
	return errors.As(err, &ce) && ce.Fatal
}

// Attempts extracts the attempt count from an oracle call error, zero
// when err carries none.
func Attempts(err error) int {
	var ce *CallError
	if errors.As(err, &ce) {
		return ce.Attempts
	}
	return 0
}
