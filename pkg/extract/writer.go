package extract

import (
	"context"
	"os"
	"path/filepath"
	"time"

	"go.uber.org/zap"

	"github.com/ferrovax/dredge/pkg/artifact"
	"github.com/ferrovax/dredge/pkg/object"
)

// Extractor writes filtered blobs to the extraction area and keeps the
// extraction log current.
type Extractor struct {
	store *object.Store
	dir   string
	log   *zap.Logger
}

// NewExtractor returns an Extractor writing under dir.
func NewExtractor(store *object.Store, dir string, log *zap.Logger) *Extractor {
	return &Extractor{store: store, dir: dir, log: log}
}

// Summary counts one run of a stage by outcome.
type Summary struct {
	Written int
	Skipped int
	Failed  int
}

// LogPath returns the extraction log location under dir.
func LogPath(dir string) string {
	return filepath.Join(dir, LogName)
}

// Run extracts every blob in blobs that the log does not already record
// as ok. Each blob lands at <dir>/<hash>; one log record is appended per
// attempt. Per-item failures are recorded and do not stop the run; only
// cancellation and a log that cannot be written are fatal.
func (e *Extractor) Run(ctx context.Context, blobs []object.Hash) (*Summary, error) {
	if err := os.MkdirAll(e.dir, 0o755); err != nil {
		return nil, err
	}
	logPath := LogPath(e.dir)
	prior, err := LoadLog(logPath)
	if err != nil {
		return nil, err
	}
	lw, err := artifact.OpenWriter(logPath)
	if err != nil {
		return nil, err
	}
	defer lw.Close()

	sum := &Summary{}
	for _, h := range blobs {
		if err := ctx.Err(); err != nil {
			return sum, err
		}
		if rec, ok := prior[string(h)]; ok && rec.Outcome == artifact.OutcomeOK {
			sum.Skipped++
			continue
		}

		obj, err := e.store.Read(h)
		if err != nil {
			if ferr := e.fail(lw, h, err); ferr != nil {
				return sum, ferr
			}
			sum.Failed++
			continue
		}

		dest := filepath.Join(e.dir, string(h))
		if err := artifact.WriteFileAtomic(dest, obj.Data); err != nil {
			if ferr := e.fail(lw, h, err); ferr != nil {
				return sum, ferr
			}
			sum.Failed++
			continue
		}

		rec := Record{
			Hash:        string(h),
			Size:        len(obj.Data),
			Outcome:     artifact.OutcomeOK,
			Path:        dest,
			ExtractedAt: time.Now(),
		}
		if err := lw.Append(rec); err != nil {
			return sum, err
		}
		sum.Written++
		e.log.Debug("extracted blob",
			zap.String("hash", string(h)),
			zap.Int("size", rec.Size))
	}

	e.log.Info("extraction complete",
		zap.Int("written", sum.Written),
		zap.Int("skipped", sum.Skipped),
		zap.Int("failed", sum.Failed))
	return sum, nil
}

func (e *Extractor) fail(lw *artifact.Writer, h object.Hash, cause error) error {
	e.log.Warn("blob extraction failed",
		zap.String("hash", string(h)),
		zap.Error(cause))
	return lw.Append(Record{
		Hash:        string(h),
		Outcome:     artifact.OutcomeFailed,
		Error:       cause.Error(),
		ExtractedAt: time.Now(),
	})
}
