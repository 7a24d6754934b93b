// Package analyze classifies extracted contents through the oracle and
// copies the valuable ones under suggested filenames.
package analyze

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"time"

	"go.uber.org/zap"

	"github.com/ferrovax/dredge/pkg/artifact"
	"github.com/ferrovax/dredge/pkg/extract"
	"github.com/ferrovax/dredge/pkg/oracle"
)

// Analyzer runs the classification stage.
type Analyzer struct {
	oracle  oracle.Oracle
	dir     string
	workers int
	log     *zap.Logger
}

// NewAnalyzer returns an Analyzer writing its report and valuable copies
// under dir, classifying on at most workers concurrent oracle calls.
func NewAnalyzer(o oracle.Oracle, dir string, workers int, log *zap.Logger) *Analyzer {
	return &Analyzer{oracle: o, dir: dir, workers: workers, log: log}
}

// Summary counts one analysis run by outcome.
type Summary struct {
	Classified int
	Valuable   int
	Skipped    int
	Failed     int
}

// Run classifies every successfully extracted content the report does
// not already cover. Results are merged by id, per-item failures are
// recorded without stopping siblings, and a fatal oracle failure aborts
// the stage. Re-running is a no-op for ids already classified.
func (a *Analyzer) Run(ctx context.Context, extractDir string) (*Summary, error) {
	extracted, err := extract.LoadLog(extract.LogPath(extractDir))
	if err != nil {
		return nil, err
	}
	if err := os.MkdirAll(a.dir, 0o755); err != nil {
		return nil, err
	}
	reportPath := ReportPath(a.dir)
	prior, err := LoadReport(reportPath)
	if err != nil {
		return nil, err
	}

	rw, err := artifact.OpenWriter(reportPath)
	if err != nil {
		return nil, err
	}
	defer rw.Close()

	sum := &Summary{}
	var items []oracle.Item
	for _, rec := range extracted {
		if rec.Outcome != artifact.OutcomeOK {
			continue
		}
		if prev, ok := prior[rec.Hash]; ok && prev.Outcome == artifact.OutcomeOK {
			sum.Skipped++
			if prev.Valuable {
				sum.Valuable++
			}
			continue
		}

		path := rec.Path
		if path == "" {
			path = filepath.Join(extractDir, rec.Hash)
		}
		data, err := os.ReadFile(path)
		if err != nil {
			sum.Failed++
			a.log.Warn("extracted content unreadable",
				zap.String("hash", rec.Hash), zap.Error(err))
			if aerr := rw.Append(Result{
				Hash:       rec.Hash,
				Outcome:    artifact.OutcomeFailed,
				Error:      err.Error(),
				AnalyzedAt: time.Now(),
			}); aerr != nil {
				return sum, aerr
			}
			continue
		}
		items = append(items, oracle.Item{ID: rec.Hash, Content: string(data)})
	}
	sort.Slice(items, func(i, j int) bool { return items[i].ID < items[j].ID })

	outs := make([]oracle.Classification, len(items))
	errs := oracle.ForEach(ctx, a.workers, len(items), func(ctx context.Context, i int) error {
		res, err := a.oracle.Classify(ctx, items[i])
		if err != nil {
			return err
		}
		outs[i] = res
		return nil
	})

	var fatal error
	for i, item := range items {
		callErr := errs[i]
		if callErr != nil && errors.Is(callErr, context.Canceled) && !oracle.IsFatal(callErr) {
			// Never reached the oracle; stays pending for the next run.
			continue
		}
		if oracle.IsFatal(callErr) {
			fatal = callErr
		}

		if callErr != nil {
			sum.Failed++
			a.log.Warn("classification failed",
				zap.String("hash", item.ID), zap.Error(callErr))
			if err := rw.Append(Result{
				Hash:       item.ID,
				Outcome:    artifact.OutcomeFailed,
				Attempts:   oracle.Attempts(callErr),
				Error:      callErr.Error(),
				AnalyzedAt: time.Now(),
			}); err != nil {
				return sum, err
			}
			continue
		}

		res := outs[i]
		out := Result{
			Hash:       item.ID,
			Outcome:    artifact.OutcomeOK,
			Valuable:   res.Valuable,
			Name:       res.Name,
			Kind:       res.Kind,
			Rationale:  res.Rationale,
			Confidence: res.Confidence,
			Attempts:   res.Attempts,
			AnalyzedAt: time.Now(),
		}
		if res.Valuable {
			out.Filename = SuggestedFilename(res.Name, item.ID, res.Kind)
			if err := artifact.WriteFileAtomic(filepath.Join(a.dir, out.Filename), []byte(item.Content)); err != nil {
				out.Outcome = artifact.OutcomeFailed
				out.Error = err.Error()
			}
		}
		if err := rw.Append(out); err != nil {
			return sum, err
		}
		if out.Outcome != artifact.OutcomeOK {
			sum.Failed++
			continue
		}
		sum.Classified++
		if out.Valuable {
			sum.Valuable++
		}
	}

	a.log.Info("analysis complete",
		zap.Int("classified", sum.Classified),
		zap.Int("valuable", sum.Valuable),
		zap.Int("skipped", sum.Skipped),
		zap.Int("failed", sum.Failed))

	if fatal != nil {
		return sum, fmt.Errorf("analysis aborted: %w", fatal)
	}
	return sum, nil
}
