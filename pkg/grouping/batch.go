package grouping

import (
	"context"
	"sort"
	"strings"

	"go.uber.org/zap"

	"github.com/ferrovax/dredge/pkg/oracle"
)

// BatchGrouper partitions all items with a single oracle call: fast,
// with no feedback loop to correct a bad cut.
type BatchGrouper struct {
	oracle oracle.Oracle
	log    *zap.Logger
}

// NewBatchGrouper returns the batch policy.
func NewBatchGrouper(o oracle.Oracle, log *zap.Logger) *BatchGrouper {
	return &BatchGrouper{oracle: o, log: log}
}

// Group clusters items in one partition call. Items the call leaves
// unassigned become singletons; a failed call falls back to grouping by
// classified name so the stage still yields a usable report.
func (g *BatchGrouper) Group(ctx context.Context, items []oracle.Item) ([]Group, error) {
	if len(items) == 0 {
		return nil, nil
	}
	items = append([]oracle.Item(nil), items...)
	sort.Slice(items, func(i, j int) bool { return items[i].ID < items[j].ID })
	byID := make(map[string]oracle.Item, len(items))
	for _, it := range items {
		byID[it.ID] = it
	}

	proposed, err := g.oracle.Partition(ctx, items)
	if err != nil {
		if oracle.IsFatal(err) {
			return nil, err
		}
		g.log.Warn("partition call failed, grouping by classified name", zap.Error(err))
		return finalize(nameGroups(items)), nil
	}

	assigned := make([]bool, len(items))
	var groups []Group
	for _, pg := range proposed {
		var members []string
		for _, idx := range pg.Members {
			if idx < 1 || idx > len(items) || assigned[idx-1] {
				continue
			}
			assigned[idx-1] = true
			members = append(members, items[idx-1].ID)
		}
		if len(members) == 0 {
			continue
		}
		label := strings.TrimSpace(pg.Label)
		if label == "" {
			label = groupLabel(members, byID)
		}
		groups = append(groups, Group{Label: label, Members: members, Rationale: pg.Rationale})
	}
	for i, it := range items {
		if !assigned[i] {
			groups = append(groups, Group{
				Label:     groupLabel([]string{it.ID}, byID),
				Members:   []string{it.ID},
				Rationale: "not assigned by the partition call",
			})
		}
	}
	return finalize(groups), nil
}

// nameGroups clusters by normalized classified name, the no-oracle
// fallback.
func nameGroups(items []oracle.Item) []Group {
	byID := make(map[string]oracle.Item, len(items))
	order := make([]string, 0, len(items))
	byName := make(map[string][]string)
	for _, it := range items {
		byID[it.ID] = it
		key := strings.ToLower(strings.TrimSpace(it.Name))
		if key == "" {
			key = it.ID
		}
		if _, ok := byName[key]; !ok {
			order = append(order, key)
		}
		byName[key] = append(byName[key], it.ID)
	}

	groups := make([]Group, 0, len(byName))
	for _, key := range order {
		members := byName[key]
		groups = append(groups, Group{
			Label:     groupLabel(members, byID),
			Members:   members,
			Rationale: "matching classified name",
		})
	}
	return groups
}
