package lineage

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"

	"go.uber.org/zap"

	"github.com/ferrovax/dredge/pkg/analyze"
	"github.com/ferrovax/dredge/pkg/grouping"
	"github.com/ferrovax/dredge/pkg/oracle"
)

// Reconciler runs the reconciliation stage: pairwise comparison inside
// each frozen group, lineage ordering, and the organized output layout.
type Reconciler struct {
	oracle      oracle.Oracle
	dir         string
	maxPairwise int
	workers     int
	log         *zap.Logger
}

// NewReconciler returns a Reconciler writing the organized layout under
// dir. Groups with more than maxPairwise members get a spanning chain of
// comparisons instead of the full pairwise set.
func NewReconciler(o oracle.Oracle, dir string, maxPairwise, workers int, log *zap.Logger) *Reconciler {
	if maxPairwise < 2 {
		maxPairwise = 2
	}
	return &Reconciler{oracle: o, dir: dir, maxPairwise: maxPairwise, workers: workers, log: log}
}

// Summary counts one reconciliation run.
type Summary struct {
	Groups      int
	Ambiguous   int
	Misjudged   int
	FailedPairs int
}

// Run reconciles every group in the group report, reading member
// contents from extractDir and classified names from the analysis
// report. The stage needs nothing beyond those artifacts and is safe to
// re-run; the layout and reports are rewritten from scratch each time.
func (r *Reconciler) Run(ctx context.Context, extractDir, analysisPath, groupsPath string) (*Summary, error) {
	groupRep, err := grouping.LoadReport(groupsPath)
	if err != nil {
		return nil, err
	}
	analysis, err := analyze.LoadReport(analysisPath)
	if err != nil {
		return nil, err
	}
	if err := os.MkdirAll(r.dir, 0o755); err != nil {
		return nil, err
	}

	sum := &Summary{}
	lineages := make([]GroupLineage, 0, len(groupRep.Groups))
	for _, g := range groupRep.Groups {
		if err := ctx.Err(); err != nil {
			return sum, err
		}
		gl, err := r.reconcileGroup(ctx, g, extractDir, analysis, sum)
		if err != nil {
			return sum, err
		}
		if err := r.writeGroup(g, gl, extractDir, analysis); err != nil {
			return sum, err
		}
		lineages = append(lineages, *gl)
		sum.Groups++
		if gl.Ambiguous {
			sum.Ambiguous++
		}
		sum.Misjudged += len(gl.Misjudged)
	}

	if err := WriteReport(ReportPath(r.dir), NewReport(lineages)); err != nil {
		return sum, err
	}
	r.log.Info("reconciliation complete",
		zap.Int("groups", sum.Groups),
		zap.Int("ambiguous", sum.Ambiguous),
		zap.Int("misjudged", sum.Misjudged),
		zap.Int("failed_pairs", sum.FailedPairs))
	return sum, nil
}

// reconcileGroup compares a group's members and orders them. Only a
// fatal oracle failure or cancellation is returned as an error; per-pair
// failures become evidence records without an edge.
func (r *Reconciler) reconcileGroup(ctx context.Context, g grouping.Group, extractDir string, analysis map[string]analyze.Result, sum *Summary) (*GroupLineage, error) {
	gl := &GroupLineage{GroupID: g.ID, Label: g.Label}

	var members []member
	for _, id := range g.Members {
		data, err := os.ReadFile(filepath.Join(extractDir, id))
		if err != nil {
			gl.Missing = append(gl.Missing, id)
			r.log.Warn("group member content unreadable",
				zap.String("group", g.ID), zap.String("hash", id), zap.Error(err))
			continue
		}
		members = append(members, member{id: id, content: data})
	}
	sort.Slice(members, func(i, j int) bool { return members[i].id < members[j].id })

	if len(members) < 2 {
		for _, m := range members {
			gl.Ordered = append(gl.Ordered, m.id)
		}
		return gl, nil
	}

	pairs := selectPairs(members, r.maxPairwise)
	results := make([]Evidence, len(pairs))
	errs := oracle.ForEach(ctx, r.workers, len(pairs), func(ctx context.Context, i int) error {
		a, b := pairs[i][0], pairs[i][1]
		ev, err := r.comparePair(ctx, a, b, analysis)
		results[i] = ev
		return err
	})
	for i := range pairs {
		if errs[i] != nil {
			if oracle.IsFatal(errs[i]) || ctx.Err() != nil {
				return nil, fmt.Errorf("reconcile group %s: %w", g.ID, errs[i])
			}
			sum.FailedPairs++
		}
		gl.Evidence = append(gl.Evidence, results[i])
	}

	gl.Misjudged = misjudged(members, gl.Evidence)
	kept := make([]member, 0, len(members))
	mis := make(map[string]struct{}, len(gl.Misjudged))
	for _, id := range gl.Misjudged {
		mis[id] = struct{}{}
	}
	for _, m := range members {
		if _, out := mis[m.id]; !out {
			kept = append(kept, m)
		}
	}

	edges := make(map[string]map[string]struct{})
	for _, ev := range gl.Evidence {
		if ev.Error != "" || !ev.SameFile || ev.Newer == "" {
			continue
		}
		older := ev.A
		if ev.Newer == ev.A {
			older = ev.B
		}
		if _, out := mis[ev.Newer]; out {
			continue
		}
		if _, out := mis[older]; out {
			continue
		}
		if edges[ev.Newer] == nil {
			edges[ev.Newer] = make(map[string]struct{})
		}
		edges[ev.Newer][older] = struct{}{}
	}

	gl.Ordered, gl.Ambiguous = buildOrder(kept, edges)
	return gl, nil
}

// comparePair resolves one unordered pair, always submitting the
// lexicographically smaller id as side A so evidence is canonical.
func (r *Reconciler) comparePair(ctx context.Context, a, b member, analysis map[string]analyze.Result) (Evidence, error) {
	if a.id > b.id {
		a, b = b, a
	}
	itemA := oracle.Item{ID: a.id, Name: analysis[a.id].Name, Content: string(a.content)}
	itemB := oracle.Item{ID: b.id, Name: analysis[b.id].Name, Content: string(b.content)}

	cmp, err := r.oracle.Compare(ctx, itemA, itemB)
	ev := Evidence{A: a.id, B: b.id, Attempts: cmp.Attempts}
	if err != nil {
		ev.Attempts = oracle.Attempts(err)
		ev.Error = err.Error()
		r.log.Warn("pairwise comparison failed",
			zap.String("a", a.id), zap.String("b", b.id), zap.Error(err))
		return ev, err
	}
	ev.SameFile = cmp.SameFile
	ev.Confidence = cmp.Confidence
	ev.Rationale = cmp.Rationale
	switch cmp.Newer {
	case oracle.NewerA:
		ev.Newer = a.id
	case oracle.NewerB:
		ev.Newer = b.id
	}
	return ev, nil
}

// selectPairs picks which comparisons to buy for a group: every pair
// while the group is small, otherwise a spanning chain over the members
// pre-ordered by content length descending then id, which bounds the
// call count linearly while still connecting the order graph.
func selectPairs(members []member, maxPairwise int) [][2]member {
	var pairs [][2]member
	if len(members) <= maxPairwise {
		for i := 0; i < len(members); i++ {
			for j := i + 1; j < len(members); j++ {
				pairs = append(pairs, [2]member{members[i], members[j]})
			}
		}
		return pairs
	}

	chain := append([]member(nil), members...)
	sort.Slice(chain, func(i, j int) bool {
		if len(chain[i].content) != len(chain[j].content) {
			return len(chain[i].content) > len(chain[j].content)
		}
		return chain[i].id < chain[j].id
	})
	for i := 0; i+1 < len(chain); i++ {
		pairs = append(pairs, [2]member{chain[i], chain[i+1]})
	}
	return pairs
}

// misjudged lists members whose every resolved comparison denies they
// belong to the group. One denial among agreements is not enough; the
// rule needs unanimity so a single noisy judgment cannot evict a member.
func misjudged(members []member, evidence []Evidence) []string {
	denials := make(map[string]int)
	agreements := make(map[string]int)
	for _, ev := range evidence {
		if ev.Error != "" {
			continue
		}
		if ev.SameFile {
			agreements[ev.A]++
			agreements[ev.B]++
		} else {
			denials[ev.A]++
			denials[ev.B]++
		}
	}
	var out []string
	for _, m := range members {
		if denials[m.id] > 0 && agreements[m.id] == 0 {
			out = append(out, m.id)
		}
	}
	sort.Strings(out)
	return out
}
