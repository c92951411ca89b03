package replanpath

import (
	"math"

	"github.com/pkg/errors"
)

// ErrNotInTree is returned whenever an operation is asked to act on a node
// that the Tree does not recognize as its own (by pointer identity).
var ErrNotInTree = errors.New("replanpath: node is not a member of this tree")

// ErrSingleParentViolation is the fatal invariant failure described in
// SPEC_FULL §7: a node somehow accrued more than one parent edge. Conforming
// Tree Editor primitives must never trigger it.
var ErrSingleParentViolation = errors.New("replanpath: node has more than one parent edge")

// Tree is a rooted collection of Nodes connected by Edges, arena-indexed so
// that Nodes reference Edges (and vice versa) by integer id rather than by
// pointer, avoiding an owning reference cycle. A Tree exclusively owns its
// Nodes and Edges; Paths over it only borrow references.
//
// Tree is not safe for concurrent use. The manager is the only component
// that is allowed to mutate a shared Tree in place; every other reader
// operates on a Clone, per the concurrency model in SPEC_FULL §5.
type Tree struct {
	nodes  []*Node
	edges  []*Edge
	rootID int

	metric  Metric
	checker Checker
}

// NewTree creates a single-node tree rooted at root.
func NewTree(root Configuration, metric Metric, checker Checker) *Tree {
	t := &Tree{metric: metric, checker: checker}
	n := t.newNode(root)
	t.rootID = n.id
	return t
}

func (t *Tree) newNode(q Configuration) *Node {
	n := &Node{id: len(t.nodes), q: q, parentEdge: noEdge}
	t.nodes = append(t.nodes, n)
	return n
}

// Metric returns the tree's edge-cost metric.
func (t *Tree) Metric() Metric { return t.metric }

// SetMetric replaces the tree's edge-cost metric, e.g. to swap in an
// SSM-weighted metric on a clone before a MARSHA search without disturbing
// any other tree sharing the original. It does not recompute any existing
// edge cost; only subsequently-evaluated costs use the new metric.
func (t *Tree) SetMetric(m Metric) { t.metric = m }

// Checker returns the tree's collision checker.
func (t *Tree) Checker() Checker { return t.checker }

// Root returns the tree's current root node.
func (t *Tree) Root() *Node { return t.nodes[t.rootID] }

// NodeByID returns the node with the given arena id, or nil if out of range.
// Detached nodes are never removed from the arena (doing so would invalidate
// every other id) and are still returned here, so callers should prefer
// Nodes() when enumerating live nodes.
func (t *Tree) NodeByID(id int) *Node {
	if id < 0 || id >= len(t.nodes) {
		return nil
	}
	return t.nodes[id]
}

// NumEdges returns the size of the edge arena, including removed edges.
// Collision-check revalidation uses it to walk a tree's edges by id and
// write validated costs back onto the corresponding live tree, relying on
// the fact that revalidation only ever changes cost, never topology, so ids
// line up between a tree and any clone taken of it.
func (t *Tree) NumEdges() int { return len(t.edges) }

// EdgeByID returns the edge with the given arena id, or nil if out of range.
func (t *Tree) EdgeByID(id int) *Edge {
	if id < 0 || id >= len(t.edges) {
		return nil
	}
	return t.edges[id]
}

// Nodes returns every live (non-orphaned) node reachable from the root. The
// slice is a fresh copy; mutating it does not affect the tree.
func (t *Tree) Nodes() []*Node {
	out := make([]*Node, 0, len(t.nodes))
	t.walk(t.Root(), func(n *Node) { out = append(out, n) })
	return out
}

// Contains reports whether n is a member of this tree, tested by pointer
// identity as required by the data model.
func (t *Tree) Contains(n *Node) bool {
	if n == nil || n.id < 0 || n.id >= len(t.nodes) {
		return false
	}
	return t.nodes[n.id] == n
}

// ParentEdge returns n's parent edge, or nil if n is the root or detached.
func (t *Tree) ParentEdge(n *Node) *Edge {
	if n.parentEdge == noEdge {
		return nil
	}
	return t.edges[n.parentEdge]
}

// ChildEdges returns n's child edges.
func (t *Tree) ChildEdges(n *Node) []*Edge {
	out := make([]*Edge, 0, len(n.childEdges))
	for _, id := range n.childEdges {
		if e := t.edges[id]; !e.removed {
			out = append(out, e)
		}
	}
	return out
}

func (t *Tree) walk(from *Node, visit func(*Node)) {
	visit(from)
	for _, e := range t.ChildEdges(from) {
		t.walk(t.nodes[e.child], visit)
	}
}

// AddNode inserts a brand-new node with configuration q, connected to parent
// by an edge of the given cost. It is the one primitive lower-level than
// Extend/Rewire (see editor.go), used when the caller has already resolved
// validity (e.g. inserting a node at a known split point).
func (t *Tree) AddNode(parent *Node, q Configuration, cost float64) (*Node, error) {
	if !t.Contains(parent) {
		return nil, ErrNotInTree
	}
	child := t.newNode(q)
	if _, err := t.addEdge(parent, child, cost); err != nil {
		return nil, err
	}
	return child, nil
}

func (t *Tree) addEdge(parent, child *Node, cost float64) (*Edge, error) {
	if child.parentEdge != noEdge {
		return nil, ErrSingleParentViolation
	}
	e := &Edge{id: len(t.edges), parent: parent.id, child: child.id, cost: cost, parentQ: parent.q, childQ: child.q}
	t.edges = append(t.edges, e)
	parent.childEdges = append(parent.childEdges, e.id)
	child.parentEdge = e.id
	return e, nil
}

// removeEdge detaches e from both of its endpoints. The edge and node arena
// slots are never compacted, so ids already handed out remain valid.
func (t *Tree) removeEdge(e *Edge) {
	if e.removed {
		return
	}
	e.removed = true
	parent := t.nodes[e.parent]
	for i, id := range parent.childEdges {
		if id == e.id {
			parent.childEdges = append(parent.childEdges[:i], parent.childEdges[i+1:]...)
			break
		}
	}
	t.nodes[e.child].parentEdge = noEdge
}

// RemoveNodeIfUnreferenced detaches n from the tree if it has no child edges,
// i.e. it is not on the path from the root to anything else: its parent edge,
// if any, is removed. The root is never removed. This implements the "orphan removal" step used after a failed
// DRRT★ repair (SPEC_FULL §9, Open Question (a)).
func (t *Tree) RemoveNodeIfUnreferenced(n *Node) bool {
	if !t.Contains(n) {
		return false
	}
	if n.id == t.rootID {
		return false
	}
	if len(n.childEdges) != 0 {
		return false
	}
	if n.parentEdge != noEdge {
		t.removeEdge(t.edges[n.parentEdge])
	}
	return true
}

// NearestNeighbors returns every node in candidates (or, if candidates is
// nil, every live node in the tree) whose configuration lies within radius
// of q, ordered nearest-first. A non-positive radius is treated as "no
// limit" and every candidate is returned, ordered nearest-first, which lets
// callers reuse this for a plain single-nearest-neighbor query.
func (t *Tree) NearestNeighbors(q Configuration, radius float64, candidates []*Node) []*Node {
	if candidates == nil {
		candidates = t.Nodes()
	}
	type scored struct {
		n *Node
		d float64
	}
	scoredNodes := make([]scored, 0, len(candidates))
	for _, n := range candidates {
		d := t.metric.Cost(q, n.q)
		if radius <= 0 || d <= radius {
			scoredNodes = append(scoredNodes, scored{n, d})
		}
	}
	// Simple insertion sort: candidate sets here are small (bounded by the
	// replanning radius), so an O(n^2) sort keeps the code simple without a
	// measurable cost at the scale this engine operates on.
	for i := 1; i < len(scoredNodes); i++ {
		for j := i; j > 0 && scoredNodes[j].d < scoredNodes[j-1].d; j-- {
			scoredNodes[j], scoredNodes[j-1] = scoredNodes[j-1], scoredNodes[j]
		}
	}
	out := make([]*Node, len(scoredNodes))
	for i, s := range scoredNodes {
		out[i] = s.n
	}
	return out
}

// Nearest returns the single closest node to q among candidates (or the
// whole tree if candidates is nil), or nil if there are no candidates.
func (t *Tree) Nearest(q Configuration, candidates []*Node) *Node {
	nn := t.NearestNeighbors(q, 0, candidates)
	if len(nn) == 0 {
		return nil
	}
	return nn[0]
}

// Reroot reverses the edge orientation along the path from the current root
// to n, making n the new root, and preserves every edge's cost. It is an
// O(depth) operation as specified.
func (t *Tree) Reroot(n *Node) error {
	if !t.Contains(n) {
		return ErrNotInTree
	}
	if n.id == t.rootID {
		return nil
	}
	// Collect the chain of edges from n back up to the old root.
	type step struct {
		edge *Edge
	}
	var chain []step
	cur := n
	for cur.id != t.rootID {
		pe := t.ParentEdge(cur)
		if pe == nil {
			return errors.New("replanpath: reroot target is not reachable from the current root")
		}
		chain = append(chain, step{pe})
		cur = t.nodes[pe.parent]
	}
	// Reverse each edge on the chain: child becomes parent, parent becomes
	// child, cost is preserved. The chain is walked from the old root's end so
	// that each node has already lost its parent edge before it gains a new
	// one, keeping the single-parent invariant.
	for i := len(chain) - 1; i >= 0; i-- {
		e := chain[i].edge
		oldParent, oldChild := t.nodes[e.parent], t.nodes[e.child]
		t.removeEdge(e)
		if _, err := t.addEdge(oldChild, oldParent, e.cost); err != nil {
			return err
		}
	}
	t.rootID = n.id
	return nil
}

// PathTo builds a Path by walking parent edges from goal back to the root
// and reversing them into root-to-goal order.
func (t *Tree) PathTo(goal *Node) (*Path, error) {
	if !t.Contains(goal) {
		return nil, ErrNotInTree
	}
	var edges []*Edge
	cur := goal
	for cur.id != t.rootID {
		pe := t.ParentEdge(cur)
		if pe == nil {
			return nil, errors.New("replanpath: goal is not connected to the root")
		}
		edges = append(edges, pe)
		cur = t.nodes[pe.parent]
	}
	for i, j := 0, len(edges)-1; i < j; i, j = i+1, j-1 {
		edges[i], edges[j] = edges[j], edges[i]
	}
	return NewPath(t, edges, t.metric), nil
}

// SubtreeView is a restricted view over a Tree rooted at some node, hiding a
// black-listed set of nodes and everything beneath them. It is used during
// the anytime-improvement phase of DRRT★ to confine sampling/rewiring to the
// freshly-detached branch instead of the whole tree.
type SubtreeView struct {
	tree      *Tree
	root      *Node
	blackList map[int]bool
}

// Subtree returns a SubtreeView rooted at node, with every node in blackList
// (and everything beneath them) hidden from Nodes().
func (t *Tree) Subtree(node *Node, blackList []*Node) *SubtreeView {
	bl := make(map[int]bool, len(blackList))
	for _, n := range blackList {
		bl[n.id] = true
	}
	return &SubtreeView{tree: t, root: node, blackList: bl}
}

// Tree returns the underlying tree the view restricts.
func (s *SubtreeView) Tree() *Tree { return s.tree }

// Root returns the view's root node.
func (s *SubtreeView) Root() *Node { return s.root }

// Nodes returns every node reachable from the view's root without passing
// through a black-listed node.
func (s *SubtreeView) Nodes() []*Node {
	var out []*Node
	var walk func(*Node)
	walk = func(n *Node) {
		if s.blackList[n.id] {
			return
		}
		out = append(out, n)
		for _, e := range s.tree.ChildEdges(n) {
			walk(s.tree.nodes[e.child])
		}
	}
	walk(s.root)
	return out
}

// totalCost sums the cost from the tree root down to n, used by the tree
// editor to evaluate whether a candidate rewiring actually improves cost.
func (t *Tree) totalCost(n *Node) float64 {
	cost := 0.0
	cur := n
	for cur.id != t.rootID {
		pe := t.ParentEdge(cur)
		if pe == nil {
			return math.Inf(1)
		}
		cost += pe.cost
		cur = t.nodes[pe.parent]
	}
	return cost
}
