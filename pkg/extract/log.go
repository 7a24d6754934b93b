package extract

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/ferrovax/dredge/pkg/artifact"
)

// LogName is the extraction log filename within the extraction directory.
const LogName = "extraction_log.jsonl"

// Record is one line of the extraction log.
type Record struct {
	Hash        string    `json:"hash"`
	Size        int       `json:"size"`
	Outcome     string    `json:"outcome"`
	Error       string    `json:"error,omitempty"`
	Path        string    `json:"path,omitempty"`
	ExtractedAt time.Time `json:"extracted_at"`
}

// LoadLog reads an extraction log into a map by hash, later records
// replacing earlier ones. A missing file yields an empty map.
func LoadLog(path string) (map[string]Record, error) {
	out := make(map[string]Record)
	err := artifact.Each(path, func(raw json.RawMessage) error {
		var r Record
		if err := json.Unmarshal(raw, &r); err != nil {
			return fmt.Errorf("extraction log record: %w", err)
		}
		out[r.Hash] = r
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}
