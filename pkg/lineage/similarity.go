package lineage

import "strings"

// similarity is the Dice coefficient over the two contents' line sets:
// 2|A∩B| / (|A|+|B|), in [0,1]. Line-level granularity is enough to
// tell which of two candidates sits closer to a third version.
func similarity(a, b []byte) float64 {
	la := lineSet(a)
	lb := lineSet(b)
	if len(la) == 0 && len(lb) == 0 {
		return 1
	}
	if len(la) == 0 || len(lb) == 0 {
		return 0
	}
	common := 0
	for line := range la {
		if _, ok := lb[line]; ok {
			common++
		}
	}
	return 2 * float64(common) / float64(len(la)+len(lb))
}

func lineSet(data []byte) map[string]struct{} {
	set := make(map[string]struct{})
	for _, line := range strings.Split(string(data), "\n") {
		line = strings.TrimSpace(line)
		if line != "" {
			set[line] = struct{}{}
		}
	}
	return set
}
