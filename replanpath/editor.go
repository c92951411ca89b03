package replanpath

import "context"

// This file implements the Tree Editor (SPEC_FULL §4.2): the four bounded
// primitives replanners use to patch a tree, each parameterized by a
// white_list of nodes that must stay reachable from the root along their
// current ordered edges (protecting the path currently being executed) and a
// CheckedCache that avoids re-issuing collision queries already answered
// during the current replanning call.
//
// None of these primitives ever return an error to signal "no progress" -
// per SPEC_FULL §4.2 that is always communicated with a nil *Node return.
// The error return is reserved for genuine preconditions (node not in tree,
// context cancelled).

// protectedEdgeIDs returns the set of edge ids directly connecting
// consecutive nodes of whiteList, i.e. the edges that make up the path
// currently being executed and must not be rewired away.
func (t *Tree) protectedEdgeIDs(whiteList []*Node) map[int]bool {
	protected := make(map[int]bool, len(whiteList))
	for i := 0; i+1 < len(whiteList); i++ {
		child := whiteList[i+1]
		if pe := t.ParentEdge(child); pe != nil && pe.parent == whiteList[i].id {
			protected[pe.id] = true
		}
	}
	return protected
}

// isAncestor reports whether anc lies on the path from desc up to the root,
// i.e. whether making anc a child of desc (or of anything in desc's subtree)
// would create a cycle.
func (t *Tree) isAncestor(anc, desc *Node) bool {
	cur := desc
	for {
		if cur.id == anc.id {
			return true
		}
		pe := t.ParentEdge(cur)
		if pe == nil {
			return false
		}
		cur = t.nodes[pe.parent]
	}
}

// checkSegment consults cache before falling back to the checker, recording
// the result either way.
func (t *Tree) checkSegment(ctx context.Context, a, b *Node, cache *CheckedCache) bool {
	if valid, found := cache.Get(a.id, b.id); found {
		return valid
	}
	valid := t.checker.CheckSegment(ctx, a.q, b.q)
	cache.Set(a.id, b.id, valid)
	return valid
}

// Extend is the classical RRT step toward q, limited to maxDistance. It
// returns the newly inserted node, or nil if the step is collision-invalid.
// candidates restricts the nearest-neighbor search to that subset of nodes;
// a nil slice searches the whole tree.
func (t *Tree) Extend(ctx context.Context, q Configuration, maxDistance float64, candidates []*Node, cache *CheckedCache) (*Node, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if cache == nil {
		cache = NewCheckedCache()
	}
	nearest := t.Nearest(q, candidates)
	if nearest == nil {
		return nil, ErrNotInTree
	}
	target := q
	if dist := t.metric.Cost(nearest.q, q); maxDistance > 0 && dist > maxDistance {
		step, err := Lerp(nearest.q, q, maxDistance/dist)
		if err != nil {
			return nil, err
		}
		target = step
	}
	if !t.checker.CheckSegment(ctx, nearest.q, target) {
		return nil, nil
	}
	child, err := t.AddNode(nearest, target, t.metric.Cost(nearest.q, target))
	if err != nil {
		return nil, err
	}
	cache.Set(nearest.id, child.id, true)
	return child, nil
}

// considerReparent reattaches child under newParent when doing so is
// collision-free, strictly reduces child's total cost from the root, does
// not cross a protected edge, does not cut a node flagged as a corner, and
// does not create a cycle.
func (t *Tree) considerReparent(ctx context.Context, child, newParent *Node, protected map[int]bool, cache *CheckedCache) bool {
	if child.id == newParent.id {
		return false
	}
	pe := t.ParentEdge(child)
	if pe == nil {
		// child is the root; the root's incoming edge can never be rewired.
		return false
	}
	if protected[pe.id] {
		return false
	}
	if child.corner {
		return false
	}
	if t.isAncestor(child, newParent) {
		return false
	}
	newCost := t.metric.Cost(newParent.q, child.q)
	if t.totalCost(newParent)+newCost >= t.totalCost(child) {
		return false
	}
	if !t.checkSegment(ctx, newParent, child, cache) {
		return false
	}
	t.removeEdge(pe)
	if _, err := t.addEdge(newParent, child, newCost); err != nil {
		// addEdge only fails on the single-parent invariant, which cannot
		// happen here since we just detached child; the original edge is not
		// restored.
		return false
	}
	return true
}

// Rewire inserts a nearest-neighbor step toward q via Extend, then attempts
// to reparent every node within radius of the new node (in either
// direction) when doing so reduces cost, skipping any change that would
// remove an edge on whiteList. It returns the inserted node on success, or
// nil if the initial extend step failed. candidates restricts both the
// initial nearest-neighbor search and the subsequent rewiring neighborhood
// to that subset of nodes; a nil slice searches the whole tree.
func (t *Tree) Rewire(ctx context.Context, q Configuration, radius, maxDistance float64, candidates, whiteList []*Node, cache *CheckedCache) (*Node, error) {
	newNode, err := t.Extend(ctx, q, maxDistance, candidates, cache)
	if err != nil || newNode == nil {
		return newNode, err
	}
	protected := t.protectedEdgeIDs(whiteList)
	for _, nb := range t.NearestNeighbors(newNode.q, radius, candidates) {
		if err := ctx.Err(); err != nil {
			return newNode, err
		}
		if nb.id == newNode.id {
			continue
		}
		if !t.considerReparent(ctx, nb, newNode, protected, cache) {
			t.considerReparent(ctx, newNode, nb, protected, cache)
		}
	}
	return newNode, nil
}

// RewireOnlyWithPathCheck performs a pure rewire pass within radius of
// origin, limited to nodes within traversal depth hops of origin along
// existing edges; it never adds a new node.
func (t *Tree) RewireOnlyWithPathCheck(ctx context.Context, origin *Node, radius float64, whiteList []*Node, depth int, cache *CheckedCache) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if cache == nil {
		cache = NewCheckedCache()
	}
	local := t.bfsWithinDepth(origin, depth)
	inRadius := t.NearestNeighbors(origin.q, radius, local)
	protected := t.protectedEdgeIDs(whiteList)
	for _, a := range inRadius {
		for _, b := range inRadius {
			if err := ctx.Err(); err != nil {
				return err
			}
			if a.id == b.id {
				continue
			}
			t.considerReparent(ctx, b, a, protected, cache)
		}
	}
	return nil
}

// Extend steps the underlying tree toward q, restricting the
// nearest-neighbor search to the view's own nodes. Used by the anytime phase
// of DRRT★ to confine growth to the detached branch rather than the whole
// tree.
func (s *SubtreeView) Extend(ctx context.Context, q Configuration, maxDistance float64, cache *CheckedCache) (*Node, error) {
	return s.tree.Extend(ctx, q, maxDistance, s.Nodes(), cache)
}

// Rewire steps the underlying tree toward q and rewires within it, both
// restricted to the view's own nodes.
func (s *SubtreeView) Rewire(ctx context.Context, q Configuration, radius, maxDistance float64, whiteList []*Node, cache *CheckedCache) (*Node, error) {
	return s.tree.Rewire(ctx, q, radius, maxDistance, s.Nodes(), whiteList, cache)
}

// ConnectIfImproving forcibly reattaches child under newParent, bypassing
// any white-list protection, provided doing so is acyclic, collision-free,
// and strictly reduces child's total cost from the root. It is used to
// reconnect a designated target node (e.g. DRRT★'s replan_goal) once local
// growth has produced a candidate attachment point, where a white-listed
// path is being intentionally cut and reattached rather than protected.
func (t *Tree) ConnectIfImproving(ctx context.Context, newParent, child *Node, cache *CheckedCache) bool {
	if child.id == newParent.id {
		return false
	}
	if t.isAncestor(child, newParent) {
		return false
	}
	newCost := t.metric.Cost(newParent.q, child.q)
	if t.totalCost(newParent)+newCost >= t.totalCost(child) {
		return false
	}
	if !t.checkSegment(ctx, newParent, child, cache) {
		return false
	}
	if pe := t.ParentEdge(child); pe != nil {
		t.removeEdge(pe)
	}
	_, err := t.addEdge(newParent, child, newCost)
	return err == nil
}

func (t *Tree) neighbors(n *Node) []*Node {
	var out []*Node
	if pe := t.ParentEdge(n); pe != nil {
		out = append(out, t.nodes[pe.parent])
	}
	for _, e := range t.ChildEdges(n) {
		out = append(out, t.nodes[e.child])
	}
	return out
}

func (t *Tree) bfsWithinDepth(origin *Node, depth int) []*Node {
	visited := map[int]bool{origin.id: true}
	frontier := []*Node{origin}
	out := []*Node{origin}
	for d := 0; d < depth; d++ {
		var next []*Node
		for _, n := range frontier {
			for _, nb := range t.neighbors(n) {
				if !visited[nb.id] {
					visited[nb.id] = true
					next = append(next, nb)
					out = append(out, nb)
				}
			}
		}
		frontier = next
	}
	return out
}
