// Package pipeline sequences the four recovery stages over their
// persisted artifacts: extract, analyze, group, organize. Each stage
// reads only the artifact of the stage before it, so any stage can be
// re-run on its own and a partial run resumes where it stopped.
package pipeline

import (
	"context"

	"go.uber.org/zap"

	"github.com/ferrovax/dredge/pkg/analyze"
	"github.com/ferrovax/dredge/pkg/config"
	"github.com/ferrovax/dredge/pkg/extract"
	"github.com/ferrovax/dredge/pkg/grouping"
	"github.com/ferrovax/dredge/pkg/lineage"
	"github.com/ferrovax/dredge/pkg/object"
	"github.com/ferrovax/dredge/pkg/oracle"
)

// Pipeline drives the stages with one oracle and one configuration.
type Pipeline struct {
	cfg    *config.Config
	oracle oracle.Oracle
	fast   bool
	log    *zap.Logger
}

// New returns a Pipeline. fast selects the fast parameter set (batch
// grouping, fewer retries, larger pairwise bound) over the stable one.
func New(cfg *config.Config, o oracle.Oracle, fast bool, log *zap.Logger) *Pipeline {
	return &Pipeline{cfg: cfg, oracle: o, fast: fast, log: log}
}

// ExtractSummary reports one extraction stage run.
type ExtractSummary struct {
	Window          extract.Window
	CommitsInWindow int
	Candidates      int
	Written         int
	Skipped         int
	Failed          int
}

// Extract scans the store at storePath, filters by w, and writes the
// in-window blobs plus the extraction log.
func (p *Pipeline) Extract(ctx context.Context, storePath string, w extract.Window) (*ExtractSummary, error) {
	store, err := object.OpenStore(storePath)
	if err != nil {
		return nil, err
	}
	sel, err := extract.SelectInWindow(store, w, p.log)
	if err != nil {
		return nil, err
	}
	sum, err := extract.NewExtractor(store, p.cfg.ExtractDir(), p.log).Run(ctx, sel.Blobs)
	if err != nil {
		return nil, err
	}
	return &ExtractSummary{
		Window:          w,
		CommitsInWindow: sel.Inventory.CommitsInWindow,
		Candidates:      len(sel.Blobs),
		Written:         sum.Written,
		Skipped:         sum.Skipped,
		Failed:          sum.Failed,
	}, nil
}

// Analyze classifies everything the extraction log recorded, skipping
// ids the analysis report already covers.
func (p *Pipeline) Analyze(ctx context.Context) (*analyze.Summary, error) {
	a := analyze.NewAnalyzer(p.oracle, p.cfg.AnalyzeDir(), p.cfg.Analysis.MaxWorkers, p.log)
	return a.Run(ctx, p.cfg.ExtractDir())
}

// GroupSummary reports one grouping stage run.
type GroupSummary struct {
	Policy string
	Items  int
	Groups int
}

// Group clusters the valuable classified contents under the named
// policy; an empty policy means the mode's default.
func (p *Pipeline) Group(ctx context.Context, policy string) (*GroupSummary, error) {
	if policy == "" {
		policy = p.cfg.Mode(p.fast).Policy
	}
	grouper, err := grouping.NewGrouper(policy, p.oracle,
		p.cfg.Grouping.MergeThreshold, p.cfg.Analysis.MaxWorkers, p.log)
	if err != nil {
		return nil, err
	}

	items, err := grouping.LoadValuableItems(p.cfg.ExtractDir(),
		analyze.ReportPath(p.cfg.AnalyzeDir()), p.log)
	if err != nil {
		return nil, err
	}
	groups, err := grouper.Group(ctx, items)
	if err != nil {
		return nil, err
	}
	report := grouping.NewReport(policy, len(items), groups)
	if err := grouping.WriteReport(p.cfg.GroupsPath(), report); err != nil {
		return nil, err
	}

	p.log.Info("grouping complete",
		zap.String("policy", policy),
		zap.Int("items", len(items)),
		zap.Int("groups", len(groups)))
	return &GroupSummary{Policy: policy, Items: len(items), Groups: len(groups)}, nil
}

// Organize reconciles each group into a lineage and writes the organized
// layout and version report.
func (p *Pipeline) Organize(ctx context.Context) (*lineage.Summary, error) {
	r := lineage.NewReconciler(p.oracle, p.cfg.OrganizeDir(),
		p.cfg.Mode(p.fast).MaxPairwise, p.cfg.Analysis.MaxWorkers, p.log)
	return r.Run(ctx, p.cfg.ExtractDir(),
		analyze.ReportPath(p.cfg.AnalyzeDir()), p.cfg.GroupsPath())
}

// RunSummary aggregates a full pipeline run.
type RunSummary struct {
	Extract  *ExtractSummary
	Analyze  *analyze.Summary
	Group    *GroupSummary
	Organize *lineage.Summary
}

// Run executes all four stages in order, stopping at the first stage
// failure. Stages already completed keep their artifacts, so a failed
// run resumes from where it stopped.
func (p *Pipeline) Run(ctx context.Context, storePath string, w extract.Window, policy string) (*RunSummary, error) {
	sum := &RunSummary{}
	var err error
	if sum.Extract, err = p.Extract(ctx, storePath, w); err != nil {
		return sum, err
	}
	if sum.Analyze, err = p.Analyze(ctx); err != nil {
		return sum, err
	}
	if sum.Group, err = p.Group(ctx, policy); err != nil {
		return sum, err
	}
	if sum.Organize, err = p.Organize(ctx); err != nil {
		return sum, err
	}
	return sum, nil
}
