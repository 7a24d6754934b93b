package lineage

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"testing"

	"go.uber.org/zap"

	"github.com/ferrovax/dredge/pkg/analyze"
	"github.com/ferrovax/dredge/pkg/artifact"
	"github.com/ferrovax/dredge/pkg/grouping"
	"github.com/ferrovax/dredge/pkg/oracle"
)

// stubOracle answers comparisons from an equivalence-class map; within a
// class the longer content is newer.
type stubOracle struct {
	classes map[string]string
	errFor  map[string]error
}

func (s *stubOracle) Classify(ctx context.Context, item oracle.Item) (oracle.Classification, error) {
	return oracle.Classification{}, fmt.Errorf("not used")
}

func (s *stubOracle) Compare(ctx context.Context, a, b oracle.Item) (oracle.Comparison, error) {
	for _, id := range []string{a.ID, b.ID} {
		if err := s.errFor[id]; err != nil {
			return oracle.Comparison{}, err
		}
	}
	same := s.classes[a.ID] != "" && s.classes[a.ID] == s.classes[b.ID]
	newer := oracle.NewerUnknown
	if same {
		if len(b.Content) > len(a.Content) {
			newer = oracle.NewerB
		} else {
			newer = oracle.NewerA
		}
	}
	return oracle.Comparison{SameFile: same, Newer: newer, Confidence: 0.9, Attempts: 1}, nil
}

func (s *stubOracle) Partition(ctx context.Context, items []oracle.Item) ([]oracle.ProposedGroup, error) {
	return nil, fmt.Errorf("not used")
}

func hashN(n int) string {
	return fmt.Sprintf("%040x", n)
}

// stage fixture: extraction area with contents, an analysis report with
// suggested filenames, and a group report.
func writeFixture(t *testing.T, contents map[string]string, results []analyze.Result, groups []grouping.Group) (extractDir, analysisPath, groupsPath string) {
	t.Helper()
	extractDir = t.TempDir()
	for id, data := range contents {
		if err := os.WriteFile(filepath.Join(extractDir, id), []byte(data), 0o644); err != nil {
			t.Fatalf("write content: %v", err)
		}
	}

	stageDir := t.TempDir()
	analysisPath = filepath.Join(stageDir, analyze.ReportName)
	w, err := artifact.OpenWriter(analysisPath)
	if err != nil {
		t.Fatalf("open analysis report: %v", err)
	}
	for _, res := range results {
		if err := w.Append(res); err != nil {
			t.Fatalf("append analysis record: %v", err)
		}
	}
	w.Close()

	groupsPath = filepath.Join(stageDir, grouping.ReportName)
	rep := grouping.NewReport(grouping.PolicyIterative, len(contents), groups)
	if err := grouping.WriteReport(groupsPath, rep); err != nil {
		t.Fatalf("write group report: %v", err)
	}
	return extractDir, analysisPath, groupsPath
}

func TestRunOrdersGroupAndWritesLayout(t *testing.T) {
	a, b := hashN(1), hashN(2)
	contents := map[string]string{
		a: strings.Repeat("x\n", 250),           // 500 bytes
		b: strings.Repeat("x\n", 250) + "more\n", // the newer, longer version
	}
	extractDir, analysisPath, groupsPath := writeFixture(t, contents,
		[]analyze.Result{
			{Hash: a, Outcome: artifact.OutcomeOK, Valuable: true, Name: "notes", Filename: "notes_" + a[:8] + ".txt"},
			{Hash: b, Outcome: artifact.OutcomeOK, Valuable: true, Name: "notes", Filename: "notes_" + b[:8] + ".txt"},
		},
		[]grouping.Group{{ID: "group-001-notes", Label: "notes", Members: []string{a, b}}},
	)

	outDir := t.TempDir()
	stub := &stubOracle{classes: map[string]string{a: "notes", b: "notes"}}
	r := NewReconciler(stub, outDir, 8, 2, zap.NewNop())

	sum, err := r.Run(context.Background(), extractDir, analysisPath, groupsPath)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if sum.Groups != 1 || sum.Ambiguous != 0 || sum.Misjudged != 0 {
		t.Errorf("summary = %+v", sum)
	}

	rep, err := LoadReport(ReportPath(outDir))
	if err != nil {
		t.Fatalf("LoadReport: %v", err)
	}
	if len(rep.Groups) != 1 {
		t.Fatalf("report groups = %d, want 1", len(rep.Groups))
	}
	gl := rep.Groups[0]
	if want := []string{b, a}; !reflect.DeepEqual(gl.Ordered, want) {
		t.Errorf("ordered = %v, want %v", gl.Ordered, want)
	}
	if gl.Ambiguous {
		t.Error("clean evidence flagged ambiguous")
	}
	if len(gl.Evidence) != 1 || gl.Evidence[0].Newer != b {
		t.Errorf("evidence = %+v", gl.Evidence)
	}

	// Layout: newest under its suggested filename, the older under old/.
	groupDir := filepath.Join(outDir, "group-001-notes")
	if _, err := os.Stat(filepath.Join(groupDir, "notes_"+b[:8]+".txt")); err != nil {
		t.Errorf("current version missing: %v", err)
	}
	if _, err := os.Stat(filepath.Join(groupDir, OldDirName, a)); err != nil {
		t.Errorf("historical version missing: %v", err)
	}
	if _, err := os.Stat(filepath.Join(groupDir, GroupReportName)); err != nil {
		t.Errorf("group lineage report missing: %v", err)
	}
}

func TestRunSplitsOutMisjudgedMember(t *testing.T) {
	a, b, c := hashN(1), hashN(2), hashN(3)
	contents := map[string]string{a: "v1\n", b: "v1\nv2\n", c: "something else\n"}
	extractDir, analysisPath, groupsPath := writeFixture(t, contents,
		nil,
		[]grouping.Group{{ID: "group-001-notes", Label: "notes", Members: []string{a, b, c}}},
	)

	outDir := t.TempDir()
	stub := &stubOracle{classes: map[string]string{a: "notes", b: "notes", c: "other"}}
	r := NewReconciler(stub, outDir, 8, 2, zap.NewNop())

	sum, err := r.Run(context.Background(), extractDir, analysisPath, groupsPath)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if sum.Misjudged != 1 {
		t.Errorf("misjudged = %d, want 1", sum.Misjudged)
	}

	rep, err := LoadReport(ReportPath(outDir))
	if err != nil {
		t.Fatalf("LoadReport: %v", err)
	}
	gl := rep.Groups[0]
	if want := []string{c}; !reflect.DeepEqual(gl.Misjudged, want) {
		t.Errorf("misjudged = %v, want %v", gl.Misjudged, want)
	}
	if want := []string{b, a}; !reflect.DeepEqual(gl.Ordered, want) {
		t.Errorf("ordered = %v, want %v", gl.Ordered, want)
	}
	if _, err := os.Stat(filepath.Join(outDir, MisjudgedDirName, "group-001-notes", c)); err != nil {
		t.Errorf("misjudged copy missing: %v", err)
	}
}

func TestRunFlagsContradictoryEvidence(t *testing.T) {
	a, b, c := hashN(1), hashN(2), hashN(3)
	contents := map[string]string{a: "aaaa\n", b: "bbbbbbb\n", c: "cc\n"}
	extractDir, analysisPath, groupsPath := writeFixture(t, contents,
		nil,
		[]grouping.Group{{ID: "group-001-x", Label: "x", Members: []string{a, b, c}}},
	)

	// Judgments that cycle: b newer than a, c newer than b, a newer than c.
	cyclic := &cyclicOracle{verdicts: map[[2]string]string{
		{a, b}: b,
		{b, c}: c,
		{a, c}: a,
	}}

	outDir := t.TempDir()
	r := NewReconciler(cyclic, outDir, 8, 2, zap.NewNop())
	sum, err := r.Run(context.Background(), extractDir, analysisPath, groupsPath)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if sum.Ambiguous != 1 {
		t.Fatalf("ambiguous = %d, want 1", sum.Ambiguous)
	}
	rep, err := LoadReport(ReportPath(outDir))
	if err != nil {
		t.Fatalf("LoadReport: %v", err)
	}
	if !rep.Groups[0].Ambiguous {
		t.Error("report group not flagged ambiguous_ordering")
	}
	// Deterministic fallback: content length descending, then id.
	if want := []string{b, a, c}; !reflect.DeepEqual(rep.Groups[0].Ordered, want) {
		t.Errorf("ordered = %v, want %v", rep.Groups[0].Ordered, want)
	}
}

// cyclicOracle answers each pair from a fixed verdict table, letting a
// test hand the reconciler contradictory evidence.
type cyclicOracle struct {
	verdicts map[[2]string]string // (a,b) with a < b -> id of the newer
}

func (c *cyclicOracle) Classify(ctx context.Context, item oracle.Item) (oracle.Classification, error) {
	return oracle.Classification{}, fmt.Errorf("not used")
}

func (c *cyclicOracle) Compare(ctx context.Context, a, b oracle.Item) (oracle.Comparison, error) {
	newer := oracle.NewerUnknown
	switch c.verdicts[[2]string{a.ID, b.ID}] {
	case a.ID:
		newer = oracle.NewerA
	case b.ID:
		newer = oracle.NewerB
	}
	return oracle.Comparison{SameFile: true, Newer: newer, Confidence: 0.8, Attempts: 1}, nil
}

func (c *cyclicOracle) Partition(ctx context.Context, items []oracle.Item) ([]oracle.ProposedGroup, error) {
	return nil, fmt.Errorf("not used")
}

func TestRunRecordsFailedPairWithoutAborting(t *testing.T) {
	a, b, c := hashN(1), hashN(2), hashN(3)
	contents := map[string]string{a: "v1\n", b: "v1\nv2\n", c: "v1\nv2\nv3\n"}
	permErr := &oracle.CallError{Op: "compare", Attempts: 3, Permanent: true,
		Err: fmt.Errorf("malformed response")}
	extractDir, analysisPath, groupsPath := writeFixture(t, contents,
		nil,
		[]grouping.Group{{ID: "group-001-x", Label: "x", Members: []string{a, b, c}}},
	)

	outDir := t.TempDir()
	stub := &stubOracle{
		classes: map[string]string{a: "x", b: "x", c: "x"},
		errFor:  map[string]error{c: permErr},
	}
	r := NewReconciler(stub, outDir, 8, 2, zap.NewNop())

	sum, err := r.Run(context.Background(), extractDir, analysisPath, groupsPath)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if sum.FailedPairs != 2 {
		t.Errorf("failed pairs = %d, want 2", sum.FailedPairs)
	}
	rep, err := LoadReport(ReportPath(outDir))
	if err != nil {
		t.Fatalf("LoadReport: %v", err)
	}
	gl := rep.Groups[0]
	if len(gl.Ordered) != 3 {
		t.Errorf("ordered = %v, want all three members", gl.Ordered)
	}
	withErr := 0
	for _, ev := range gl.Evidence {
		if ev.Error != "" {
			withErr++
			if ev.Attempts != 3 {
				t.Errorf("failed evidence attempts = %d, want 3", ev.Attempts)
			}
		}
	}
	if withErr != 2 {
		t.Errorf("evidence errors = %d, want 2", withErr)
	}
}

func TestRunFatalOracleAborts(t *testing.T) {
	a, b := hashN(1), hashN(2)
	contents := map[string]string{a: "x", b: "y"}
	fatal := &oracle.CallError{Op: "compare", Attempts: 1, Fatal: true,
		Err: fmt.Errorf("authentication rejected")}
	extractDir, analysisPath, groupsPath := writeFixture(t, contents,
		nil,
		[]grouping.Group{{ID: "group-001-x", Label: "x", Members: []string{a, b}}},
	)

	outDir := t.TempDir()
	stub := &stubOracle{errFor: map[string]error{a: fatal, b: fatal}}
	r := NewReconciler(stub, outDir, 8, 2, zap.NewNop())
	if _, err := r.Run(context.Background(), extractDir, analysisPath, groupsPath); !oracle.IsFatal(err) {
		t.Fatalf("err = %v, want fatal", err)
	}
}

func TestRunMissingMemberContentIsRecorded(t *testing.T) {
	a, b := hashN(1), hashN(2)
	contents := map[string]string{a: "only one\n"}
	extractDir, analysisPath, groupsPath := writeFixture(t, contents,
		nil,
		[]grouping.Group{{ID: "group-001-x", Label: "x", Members: []string{a, b}}},
	)

	outDir := t.TempDir()
	stub := &stubOracle{classes: map[string]string{a: "x", b: "x"}}
	r := NewReconciler(stub, outDir, 8, 2, zap.NewNop())
	if _, err := r.Run(context.Background(), extractDir, analysisPath, groupsPath); err != nil {
		t.Fatalf("Run: %v", err)
	}
	rep, err := LoadReport(ReportPath(outDir))
	if err != nil {
		t.Fatalf("LoadReport: %v", err)
	}
	gl := rep.Groups[0]
	if want := []string{b}; !reflect.DeepEqual(gl.Missing, want) {
		t.Errorf("missing = %v, want %v", gl.Missing, want)
	}
	if want := []string{a}; !reflect.DeepEqual(gl.Ordered, want) {
		t.Errorf("ordered = %v, want %v", gl.Ordered, want)
	}
}
