// Package lineage orders each logical-file group into a newest-to-oldest
// version lineage from pairwise oracle judgments and writes the organized
// layout for human review.
package lineage

import (
	"path/filepath"
	"time"

	"github.com/google/uuid"

	"github.com/ferrovax/dredge/pkg/artifact"
)

// ReportName is the version report filename within the organized directory.
const ReportName = "versions.json"

// GroupReportName is the per-group lineage file written inside each
// group's directory.
const GroupReportName = "lineage.json"

// MisjudgedDirName holds members the evidence says do not belong to
// their group after all.
const MisjudgedDirName = "misjudged"

// OldDirName holds a group's historical versions, named by content id.
const OldDirName = "old"

// ReportPath returns the version report location under dir.
func ReportPath(dir string) string {
	return filepath.Join(dir, ReportName)
}

// Evidence is one pairwise judgment. A and B are the compared ids with
// A < B lexicographically; Newer names the winning id, empty when the
// oracle could not tell or the call failed.
type Evidence struct {
	A          string  `json:"a"`
	B          string  `json:"b"`
	SameFile   bool    `json:"same_file"`
	Newer      string  `json:"newer,omitempty"`
	Confidence float64 `json:"confidence,omitempty"`
	Rationale  string  `json:"rationale,omitempty"`
	Attempts   int     `json:"attempts"`
	Error      string  `json:"error,omitempty"`
}

// GroupLineage is one group's reconciliation outcome: the inferred order,
// the evidence behind it, and whether the evidence contradicted itself.
type GroupLineage struct {
	GroupID   string     `json:"group_id"`
	Label     string     `json:"label"`
	Ordered   []string   `json:"ordered"` // newest first
	Ambiguous bool       `json:"ambiguous_ordering"`
	Misjudged []string   `json:"misjudged,omitempty"`
	Missing   []string   `json:"missing,omitempty"` // members whose content was gone
	Evidence  []Evidence `json:"evidence,omitempty"`
}

// Report is the reconciliation stage artifact.
type Report struct {
	RunID     string         `json:"run_id"`
	CreatedAt time.Time      `json:"created_at"`
	Groups    []GroupLineage `json:"groups"`
}

// NewReport stamps a report with a fresh run id.
func NewReport(groups []GroupLineage) *Report {
	return &Report{RunID: uuid.NewString(), CreatedAt: time.Now(), Groups: groups}
}

// WriteReport persists the report atomically.
func WriteReport(path string, r *Report) error {
	return artifact.WriteJSON(path, r)
}

// LoadReport reads a version report artifact.
func LoadReport(path string) (*Report, error) {
	var r Report
	if err := artifact.ReadJSON(path, &r); err != nil {
		return nil, err
	}
	return &r, nil
}
