package analyze

import (
	"encoding/json"
	"fmt"
	"path/filepath"
	"time"

	"github.com/ferrovax/dredge/pkg/artifact"
)

// ReportName is the analysis report filename within the analysis directory.
const ReportName = "analysis_report.jsonl"

// ReportPath returns the analysis report location under dir.
func ReportPath(dir string) string {
	return filepath.Join(dir, ReportName)
}

// Result is one line of the analysis report: the classification of one
// extracted content, or the recorded failure to obtain one.
type Result struct {
	Hash       string    `json:"hash"`
	Outcome    string    `json:"outcome"`
	Valuable   bool      `json:"valuable"`
	Name       string    `json:"name,omitempty"`
	Kind       string    `json:"kind,omitempty"`
	Filename   string    `json:"filename,omitempty"`
	Rationale  string    `json:"rationale,omitempty"`
	Confidence float64   `json:"confidence,omitempty"`
	Attempts   int       `json:"attempts"`
	Error      string    `json:"error,omitempty"`
	AnalyzedAt time.Time `json:"analyzed_at"`
}

// LoadReport reads an analysis report into a map by hash, later records
// replacing earlier ones. A missing file yields an empty map.
func LoadReport(path string) (map[string]Result, error) {
	out := make(map[string]Result)
	err := artifact.Each(path, func(raw json.RawMessage) error {
		var r Result
		if err := json.Unmarshal(raw, &r); err != nil {
			return fmt.Errorf("analysis report record: %w", err)
		}
		out[r.Hash] = r
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}
