package grouping

import (
	"context"
	"errors"
	"sort"
	"sync"

	"go.uber.org/zap"

	"github.com/ferrovax/dredge/pkg/oracle"
)

// IterativeGrouper builds groups by evidence: every item is compared
// against one representative per existing group and merged into the
// best match above the confidence threshold. Membership is re-evaluated
// in further passes until a full pass moves nothing, so an early bad
// placement is corrected once better evidence exists.
type IterativeGrouper struct {
	oracle    oracle.Oracle
	threshold float64
	workers   int
	log       *zap.Logger

	// evidence caches comparisons by unordered id pair for the life of
	// the stage, so later passes re-read earlier judgments for free.
	// Worker goroutines share the cache, so mu guards every access.
	mu       sync.Mutex
	evidence map[pairKey]pairResult
}

type pairKey struct{ lo, hi string }

type pairResult struct {
	cmp oracle.Comparison
	err error
}

// NewIterativeGrouper returns the iterative policy. Comparisons against
// group representatives run on at most workers concurrent oracle calls.
func NewIterativeGrouper(o oracle.Oracle, threshold float64, workers int, log *zap.Logger) *IterativeGrouper {
	return &IterativeGrouper{
		oracle:    o,
		threshold: threshold,
		workers:   workers,
		log:       log,
		evidence:  make(map[pairKey]pairResult),
	}
}

// workGroup is a mutable cluster during iteration; frozen into Group at
// the end.
type workGroup struct {
	members   []string
	rationale string
}

// Group clusters items by repeated pairwise evidence. Items enter in id
// order regardless of the caller's ordering, which keeps the outcome a
// function of the evidence rather than of arrival sequence. A per-item
// permanent oracle failure leaves that item a singleton with the error
// in its rationale; only a fatal oracle error aborts the stage.
func (g *IterativeGrouper) Group(ctx context.Context, items []oracle.Item) ([]Group, error) {
	if len(items) == 0 {
		return nil, nil
	}
	items = append([]oracle.Item(nil), items...)
	sort.Slice(items, func(i, j int) bool { return items[i].ID < items[j].ID })
	byID := make(map[string]oracle.Item, len(items))
	for _, it := range items {
		byID[it.ID] = it
	}

	failed := make(map[string]error)
	var groups []*workGroup
	memberOf := make(map[string]*workGroup, len(items))

	// Passes continue until none of them moves an item: every item gets
	// evaluated against every current group with no further merges. The
	// pass bound only guards against evidence that never settles.
	maxPasses := len(items) + 1
	for pass := 0; pass < maxPasses; pass++ {
		changed := false
		for _, it := range items {
			if _, bad := failed[it.ID]; bad {
				continue
			}
			best, err := g.bestGroup(ctx, it, groups, memberOf[it.ID], byID)
			if err != nil {
				if oracle.IsFatal(err) || ctx.Err() != nil {
					return nil, err
				}
				failed[it.ID] = err
				if cur := memberOf[it.ID]; cur != nil {
					groups = removeMember(groups, cur, it.ID)
				}
				memberOf[it.ID] = nil
				g.log.Warn("comparison failed permanently, item stays a singleton",
					zap.String("hash", it.ID), zap.Error(err))
				changed = true
				continue
			}

			cur := memberOf[it.ID]
			if best == cur && cur != nil {
				continue
			}
			if cur != nil {
				groups = removeMember(groups, cur, it.ID)
			}
			if best == nil {
				best = &workGroup{rationale: "no group matched above the merge threshold"}
				groups = append(groups, best)
			}
			best.members = append(best.members, it.ID)
			memberOf[it.ID] = best
			if cur != nil || len(best.members) > 1 {
				changed = true
			}
		}
		if !changed {
			break
		}
	}

	out := make([]Group, 0, len(groups)+len(failed))
	for _, wg := range groups {
		if len(wg.members) == 0 {
			continue
		}
		out = append(out, Group{
			Label:     groupLabel(wg.members, byID),
			Members:   append([]string(nil), wg.members...),
			Rationale: wg.rationale,
		})
	}
	for _, it := range items {
		if err, bad := failed[it.ID]; bad {
			out = append(out, Group{
				Label:     groupLabel([]string{it.ID}, byID),
				Members:   []string{it.ID},
				Rationale: "comparison failed: " + err.Error(),
			})
		}
	}
	return finalize(out), nil
}

// bestGroup compares item against one representative per candidate
// group and picks the best same-file match above the threshold:
// highest confidence first, then the larger group (majority evidence),
// then the lexicographically smallest representative for determinism.
// A nil result means no group qualifies.
func (g *IterativeGrouper) bestGroup(ctx context.Context, item oracle.Item, groups []*workGroup, cur *workGroup, byID map[string]oracle.Item) (*workGroup, error) {
	type candidate struct {
		group *workGroup
		rep   oracle.Item
	}
	var cands []candidate
	for _, wg := range groups {
		if len(wg.members) == 0 {
			continue
		}
		if wg == cur && len(wg.members) == 1 {
			// The item is this group's only member; there is nothing
			// to compare it against.
			continue
		}
		others := wg.members
		if wg == cur {
			others = withoutMember(wg.members, item.ID)
		}
		cands = append(cands, candidate{group: wg, rep: representative(others, byID)})
	}
	if len(cands) == 0 {
		return cur, nil
	}

	cmps := make([]pairResult, len(cands))
	errs := oracle.ForEach(ctx, g.workers, len(cands), func(ctx context.Context, i int) error {
		res := g.compare(ctx, item, cands[i].rep)
		cmps[i] = res
		return res.err
	})

	var best *workGroup
	var bestCmp oracle.Comparison
	var bestRep string
	var firstErr error
	answered := 0
	for i, cand := range cands {
		if errs[i] != nil {
			if oracle.IsFatal(errs[i]) || ctx.Err() != nil {
				return nil, errs[i]
			}
			// One failed comparison removes one candidate, not the item.
			if firstErr == nil {
				firstErr = errs[i]
			}
			continue
		}
		answered++
		cmp := cmps[i].cmp
		if !cmp.SameFile || cmp.Confidence < g.threshold {
			continue
		}
		if best == nil ||
			cmp.Confidence > bestCmp.Confidence ||
			(cmp.Confidence == bestCmp.Confidence && len(cand.group.members) > len(best.members)) ||
			(cmp.Confidence == bestCmp.Confidence && len(cand.group.members) == len(best.members) && cand.rep.ID < bestRep) {
			best, bestCmp, bestRep = cand.group, cmp, cand.rep.ID
		}
	}

	if answered == 0 && firstErr != nil {
		// The item could not be judged against any group at all; it is
		// the item, not a candidate, that failed.
		return nil, firstErr
	}
	if best == nil && cur != nil && len(withoutMember(cur.members, item.ID)) > 0 {
		// Every candidate rejected the item, including its own group.
		return nil, nil
	}
	if best == nil {
		return cur, nil
	}
	return best, nil
}

// compare resolves one unordered pair, consulting the evidence cache
// first. Only permanent failures are cached; a cancelled call stays
// unresolved for the next pass.
func (g *IterativeGrouper) compare(ctx context.Context, a, b oracle.Item) pairResult {
	key := pairKey{lo: a.ID, hi: b.ID}
	if key.lo > key.hi {
		key.lo, key.hi = key.hi, key.lo
	}
	g.mu.Lock()
	res, ok := g.evidence[key]
	g.mu.Unlock()
	if ok {
		return res
	}
	lo, hi := a, b
	if lo.ID > hi.ID {
		lo, hi = hi, lo
	}
	cmp, err := g.oracle.Compare(ctx, lo, hi)
	res = pairResult{cmp: cmp, err: err}
	if err == nil || isPermanent(err) {
		g.mu.Lock()
		g.evidence[key] = res
		g.mu.Unlock()
	}
	return res
}

// isPermanent reports whether err is a settled oracle verdict rather
// than a transient interruption. Cancellation errors also carry an
// attempt count, so only the call's own classification decides.
func isPermanent(err error) bool {
	var ce *oracle.CallError
	return errors.As(err, &ce) && ce.Permanent
}

func removeMember(groups []*workGroup, wg *workGroup, id string) []*workGroup {
	wg.members = withoutMember(wg.members, id)
	if len(wg.members) > 0 {
		return groups
	}
	for i, g := range groups {
		if g == wg {
			return append(groups[:i], groups[i+1:]...)
		}
	}
	return groups
}

func withoutMember(members []string, id string) []string {
	out := make([]string, 0, len(members))
	for _, m := range members {
		if m != id {
			out = append(out, m)
		}
	}
	return out
}
