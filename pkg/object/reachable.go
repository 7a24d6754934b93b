package object

// ReachableBlobs returns every blob hash reachable from root (a tree or
// blob hash), walking subtrees depth-first with a visited set. Hashes
// that are missing from the store or unreadable are skipped: missing
// ones usually live in a pack, which this store does not resolve, and
// unreadable ones are already reported by the scan that found root.
func (s *Store) ReachableBlobs(root Hash) map[Hash]struct{} {
	out := make(map[Hash]struct{})
	seen := make(map[Hash]struct{})
	stack := []Hash{root}
	for len(stack) > 0 {
		h := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		if h == "" {
			continue
		}
		if _, ok := seen[h]; ok {
			continue
		}
		seen[h] = struct{}{}

		obj, err := s.Read(h)
		if err != nil {
			continue
		}
		switch obj.Type {
		case TypeBlob:
			out[obj.Hash] = struct{}{}
		case TypeTree:
			entries, err := ParseTree(obj.Data)
			if err != nil {
				continue
			}
			for _, e := range entries {
				if e.IsGitlink() {
					continue
				}
				stack = append(stack, e.Hash)
			}
		}
	}
	return out
}
