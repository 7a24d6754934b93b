package lineage

import "sort"

// member is one group member present for ordering.
type member struct {
	id      string
	content []byte
}

// buildOrder turns newer-than edges into a total newest-to-oldest order.
// The order is a topological sort of the strongly-connected-component
// condensation, so it agrees with every judgment that is not part of a
// contradiction. Contradictory members (a multi-node component) are
// ordered by content length descending then id, and ambiguous is
// reported true so the contradiction is never silent. Among components
// that are simultaneously ready, the next pick is the one most textually
// similar to the member just emitted, then the longest, then the
// smallest id.
func buildOrder(members []member, newer map[string]map[string]struct{}) (ordered []string, ambiguous bool) {
	if len(members) == 0 {
		return nil, false
	}
	byID := make(map[string]member, len(members))
	ids := make([]string, 0, len(members))
	for _, m := range members {
		byID[m.id] = m
		ids = append(ids, m.id)
	}
	sort.Strings(ids)

	comps := condense(ids, newer)
	for i := range comps {
		sortMembers(comps[i].ids, byID)
		if len(comps[i].ids) > 1 {
			ambiguous = true
		}
	}

	// Component DAG edges and indegrees.
	compOf := make(map[string]int)
	for ci, c := range comps {
		for _, id := range c.ids {
			compOf[id] = ci
		}
	}
	succ := make([]map[int]struct{}, len(comps))
	indeg := make([]int, len(comps))
	for i := range succ {
		succ[i] = make(map[int]struct{})
	}
	for from, tos := range newer {
		for to := range tos {
			cf, okF := compOf[from]
			ct, okT := compOf[to]
			if !okF || !okT || cf == ct {
				continue
			}
			if _, dup := succ[cf][ct]; !dup {
				succ[cf][ct] = struct{}{}
				indeg[ct]++
			}
		}
	}

	var ready []int
	for ci := range comps {
		if indeg[ci] == 0 {
			ready = append(ready, ci)
		}
	}

	var prev []byte
	for len(ready) > 0 {
		pick := 0
		for i := 1; i < len(ready); i++ {
			if readyLess(comps[ready[i]], comps[ready[pick]], prev, byID) {
				pick = i
			}
		}
		ci := ready[pick]
		ready = append(ready[:pick], ready[pick+1:]...)

		for _, id := range comps[ci].ids {
			ordered = append(ordered, id)
		}
		prev = byID[comps[ci].ids[len(comps[ci].ids)-1]].content

		for ct := range succ[ci] {
			indeg[ct]--
			if indeg[ct] == 0 {
				ready = append(ready, ct)
			}
		}
	}
	return ordered, ambiguous
}

// readyLess reports whether component a should be emitted before b given
// the previously emitted content.
func readyLess(a, b component, prev []byte, byID map[string]member) bool {
	am := byID[a.ids[0]]
	bm := byID[b.ids[0]]
	if prev != nil {
		sa := similarity(prev, am.content)
		sb := similarity(prev, bm.content)
		if sa != sb {
			return sa > sb
		}
	}
	if len(am.content) != len(bm.content) {
		return len(am.content) > len(bm.content)
	}
	return am.id < bm.id
}

// sortMembers orders ids by content length descending, then id: the
// deterministic stand-in for "newer" when judgments contradict.
func sortMembers(ids []string, byID map[string]member) {
	sort.Slice(ids, func(i, j int) bool {
		a, b := byID[ids[i]], byID[ids[j]]
		if len(a.content) != len(b.content) {
			return len(a.content) > len(b.content)
		}
		return a.id < b.id
	})
}

type component struct {
	ids []string
}

// condense computes strongly connected components with Tarjan's
// algorithm over the newer-than graph restricted to ids.
func condense(ids []string, edges map[string]map[string]struct{}) []component {
	present := make(map[string]struct{}, len(ids))
	for _, id := range ids {
		present[id] = struct{}{}
	}

	index := make(map[string]int, len(ids))
	low := make(map[string]int, len(ids))
	onStack := make(map[string]bool, len(ids))
	var stack []string
	var comps []component
	next := 0

	var strongconnect func(v string)
	strongconnect = func(v string) {
		index[v] = next
		low[v] = next
		next++
		stack = append(stack, v)
		onStack[v] = true

		var targets []string
		for w := range edges[v] {
			if _, ok := present[w]; ok {
				targets = append(targets, w)
			}
		}
		sort.Strings(targets)
		for _, w := range targets {
			if _, seen := index[w]; !seen {
				strongconnect(w)
				if low[w] < low[v] {
					low[v] = low[w]
				}
			} else if onStack[w] && index[w] < low[v] {
				low[v] = index[w]
			}
		}

		if low[v] == index[v] {
			var c component
			for {
				w := stack[len(stack)-1]
				stack = stack[:len(stack)-1]
				onStack[w] = false
				c.ids = append(c.ids, w)
				if w == v {
					break
				}
			}
			comps = append(comps, c)
		}
	}

	for _, id := range ids {
		if _, seen := index[id]; !seen {
			strongconnect(id)
		}
	}
	return comps
}
