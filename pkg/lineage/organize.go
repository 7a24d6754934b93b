package lineage

import (
	"os"
	"path/filepath"

	"go.uber.org/zap"

	"github.com/ferrovax/dredge/pkg/analyze"
	"github.com/ferrovax/dredge/pkg/artifact"
	"github.com/ferrovax/dredge/pkg/grouping"
)

// writeGroup lays one reconciled group out on disk: the newest member
// under its suggested filename, every older member under old/ named by
// id, misjudged members under the shared misjudged area, and the group's
// lineage report alongside. A member copy that fails is logged and
// skipped; the lineage report itself must land.
func (r *Reconciler) writeGroup(g grouping.Group, gl *GroupLineage, extractDir string, analysis map[string]analyze.Result) error {
	groupDir := filepath.Join(r.dir, g.ID)

	for _, id := range gl.Misjudged {
		dest := filepath.Join(r.dir, MisjudgedDirName, g.ID, id)
		if err := copyContent(filepath.Join(extractDir, id), dest); err != nil {
			r.log.Warn("misjudged member copy failed",
				zap.String("group", g.ID), zap.String("hash", id), zap.Error(err))
		}
	}

	for i, id := range gl.Ordered {
		var dest string
		if i == 0 {
			name := analysis[id].Filename
			if name == "" {
				name = id
			}
			dest = filepath.Join(groupDir, name)
		} else {
			dest = filepath.Join(groupDir, OldDirName, id)
		}
		if err := copyContent(filepath.Join(extractDir, id), dest); err != nil {
			r.log.Warn("member copy failed",
				zap.String("group", g.ID), zap.String("hash", id), zap.Error(err))
		}
	}

	return artifact.WriteJSON(filepath.Join(groupDir, GroupReportName), gl)
}

func copyContent(src, dest string) error {
	data, err := os.ReadFile(src)
	if err != nil {
		return err
	}
	return artifact.WriteFileAtomic(dest, data)
}
