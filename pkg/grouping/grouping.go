// Package grouping clusters valuable classified contents into logical
// file groups, by a single bulk partition call (batch policy) or by
// evidence-driven incremental merging (iterative policy).
package grouping

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/ferrovax/dredge/pkg/analyze"
	"github.com/ferrovax/dredge/pkg/artifact"
	"github.com/ferrovax/dredge/pkg/oracle"
)

// Policy names accepted by the grouping stage.
const (
	PolicyBatch     = "batch"
	PolicyIterative = "iterative"
)

// Grouper is one grouping policy.
type Grouper interface {
	Group(ctx context.Context, items []oracle.Item) ([]Group, error)
}

// NewGrouper builds the named policy.
func NewGrouper(policy string, o oracle.Oracle, threshold float64, workers int, log *zap.Logger) (Grouper, error) {
	switch policy {
	case PolicyBatch:
		return NewBatchGrouper(o, log), nil
	case PolicyIterative:
		return NewIterativeGrouper(o, threshold, workers, log), nil
	default:
		return nil, fmt.Errorf("unknown grouping policy %q", policy)
	}
}

// ReportName is the group report filename within the grouping directory.
const ReportName = "groups.json"

// ReportPath returns the group report location under dir.
func ReportPath(dir string) string {
	return filepath.Join(dir, ReportName)
}

// Group is a frozen hypothesis that all members are versions of one
// logical file.
type Group struct {
	ID        string   `json:"id"`
	Label     string   `json:"label"`
	Members   []string `json:"members"`
	Rationale string   `json:"rationale,omitempty"`
}

// Report is the grouping stage artifact, sufficient on its own to run
// the reconciliation stage.
type Report struct {
	RunID     string    `json:"run_id"`
	Policy    string    `json:"policy"`
	CreatedAt time.Time `json:"created_at"`
	Items     int       `json:"items"`
	Groups    []Group   `json:"groups"`
}

// NewReport stamps a report with a fresh run id.
func NewReport(policy string, items int, groups []Group) *Report {
	return &Report{
		RunID:     uuid.NewString(),
		Policy:    policy,
		CreatedAt: time.Now(),
		Items:     items,
		Groups:    groups,
	}
}

// WriteReport persists the report atomically.
func WriteReport(path string, r *Report) error {
	return artifact.WriteJSON(path, r)
}

// LoadReport reads a group report artifact.
func LoadReport(path string) (*Report, error) {
	var r Report
	if err := artifact.ReadJSON(path, &r); err != nil {
		return nil, err
	}
	return &r, nil
}

// LoadValuableItems builds oracle items for every valuable, successfully
// classified content, reading bytes from the extraction area. Items
// whose content has gone missing are logged and skipped.
func LoadValuableItems(extractDir, analysisPath string, log *zap.Logger) ([]oracle.Item, error) {
	report, err := analyze.LoadReport(analysisPath)
	if err != nil {
		return nil, err
	}
	items := make([]oracle.Item, 0, len(report))
	for _, res := range report {
		if res.Outcome != artifact.OutcomeOK || !res.Valuable {
			continue
		}
		data, err := os.ReadFile(filepath.Join(extractDir, res.Hash))
		if err != nil {
			log.Warn("valuable content unreadable, skipping",
				zap.String("hash", res.Hash), zap.Error(err))
			continue
		}
		items = append(items, oracle.Item{
			ID:      res.Hash,
			Name:    res.Name,
			Kind:    res.Kind,
			Summary: res.Rationale,
			Content: string(data),
		})
	}
	sort.Slice(items, func(i, j int) bool { return items[i].ID < items[j].ID })
	return items, nil
}

// finalize sorts groups deterministically (by smallest member id) and
// assigns sequential ids.
func finalize(groups []Group) []Group {
	for gi := range groups {
		sort.Strings(groups[gi].Members)
	}
	sort.Slice(groups, func(i, j int) bool {
		return groups[i].Members[0] < groups[j].Members[0]
	})
	for gi := range groups {
		groups[gi].ID = fmt.Sprintf("group-%03d-%s", gi+1, slug(groups[gi].Label))
	}
	return groups
}

// slug reduces a label to a short path-safe token.
func slug(label string) string {
	var b strings.Builder
	for _, r := range strings.ToLower(strings.TrimSpace(label)) {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9':
			b.WriteRune(r)
		case r == ' ' || r == '-' || r == '_' || r == '.':
			if n := b.Len(); n > 0 && b.String()[n-1] != '-' {
				b.WriteByte('-')
			}
		}
	}
	s := strings.Trim(b.String(), "-")
	if s == "" {
		return "unnamed"
	}
	if len(s) > 32 {
		s = strings.Trim(s[:32], "-")
	}
	return s
}

// groupLabel names a group after its members' most common classified
// name, ties broken toward the longest content's name.
func groupLabel(members []string, byID map[string]oracle.Item) string {
	counts := make(map[string]int)
	for _, id := range members {
		if name := byID[id].Name; name != "" {
			counts[name]++
		}
	}
	best, bestN := "", 0
	for name, n := range counts {
		if n > bestN || (n == bestN && name < best) {
			best, bestN = name, n
		}
	}
	if best != "" {
		return best
	}
	rep := representative(members, byID)
	if rep.Name != "" {
		return rep.Name
	}
	if len(rep.ID) >= 8 {
		return rep.ID[:8]
	}
	return rep.ID
}

// representative picks the member with the longest content, ties by id.
// The longest version carries the most evidence for the oracle to judge.
func representative(members []string, byID map[string]oracle.Item) oracle.Item {
	var rep oracle.Item
	for _, id := range members {
		it := byID[id]
		if rep.ID == "" || len(it.Content) > len(rep.Content) ||
			(len(it.Content) == len(rep.Content) && it.ID < rep.ID) {
			rep = it
		}
	}
	return rep
}
