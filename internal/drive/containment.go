package drive

import "context"

// IsDescendant reports whether candidateID sits inside the tree rooted at
// rootID by walking the parent chain upward. Callers handle the zero-hop
// case (candidateID == rootID) themselves; the walk starts from the
// candidate's parents.
//
// The walk is iterative with a visited set, so it terminates even on
// malformed parent cycles, in at most one metadata fetch per distinct node.
// Only the first parent of each node is followed; multi-parent fan-out is
// not explored. A failed metadata fetch or a node with no parents resolves
// to false.
func (c *Client) IsDescendant(ctx context.Context, candidateID, rootID string) bool {
	if candidateID == "" || rootID == "" {
		return false
	}

	visited := make(map[string]bool)
	current := candidateID
	for {
		if visited[current] {
			return false
		}
		visited[current] = true

		f, err := c.svc.Files.Get(current).
			SupportsAllDrives(true).
			Fields("id, parents").
			Context(ctx).
			Do()
		if err != nil {
			return false
		}
		if len(f.Parents) == 0 {
			return false
		}
		for _, p := range f.Parents {
			if p == rootID {
				return true
			}
		}
		current = f.Parents[0]
	}
}
