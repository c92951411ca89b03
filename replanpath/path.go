package replanpath

import (
	"math"

	"github.com/pkg/errors"
)

// Path is an ordered sequence of edges e1...ek such that child(ei) ==
// parent(ei+1), back-pointing to the Tree it was cut from. A Path does not
// own its Tree; destroying a Path never destroys nodes.
type Path struct {
	tree   *Tree
	edges  []*Edge
	metric Metric
}

// NewPath wraps an ordered, contiguous edge slice as a Path over tree. It
// does not validate contiguity; callers that build edges by hand (as
// opposed to via Tree.PathTo) are responsible for that invariant.
func NewPath(tree *Tree, edges []*Edge, metric Metric) *Path {
	return &Path{tree: tree, edges: edges, metric: metric}
}

// Tree returns the path's backing tree.
func (p *Path) Tree() *Tree { return p.tree }

// Edges returns the path's ordered edges.
func (p *Path) Edges() []*Edge { return p.edges }

// Cost returns the sum of the path's edge costs.
func (p *Path) Cost() float64 {
	var total float64
	for _, e := range p.edges {
		total += e.cost
	}
	return total
}

// Obstructed reports whether any edge on the path currently has cost +Inf.
func (p *Path) Obstructed() bool {
	for _, e := range p.edges {
		if e.Obstructed() {
			return true
		}
	}
	return false
}

// Nodes returns the path's nodes in order: len(Edges())+1 of them, starting
// at the path's start node.
func (p *Path) Nodes() []*Node {
	if len(p.edges) == 0 {
		return nil
	}
	out := make([]*Node, 0, len(p.edges)+1)
	out = append(out, p.tree.nodes[p.edges[0].parent])
	for _, e := range p.edges {
		out = append(out, p.tree.nodes[e.child])
	}
	return out
}

// Start returns the path's first node.
func (p *Path) Start() *Node {
	nodes := p.Nodes()
	if len(nodes) == 0 {
		return nil
	}
	return nodes[0]
}

// Goal returns the path's last node.
func (p *Path) Goal() *Node {
	nodes := p.Nodes()
	if len(nodes) == 0 {
		return nil
	}
	return nodes[len(nodes)-1]
}

// FirstObstructedEdgeAfter returns the first obstructed edge at or after the
// node identified by afterID in path order, along with its index, and
// whether one was found. If afterID is not a node of the path, the search
// starts at the first edge.
func (p *Path) FirstObstructedEdgeAfter(afterID int) (*Edge, int, bool) {
	nodes := p.Nodes()
	start := 0
	for i, n := range nodes {
		if n.id == afterID {
			start = i
			break
		}
	}
	for i := start; i < len(p.edges); i++ {
		if p.edges[i].Obstructed() {
			return p.edges[i], i, true
		}
	}
	return nil, -1, false
}

// LastObstructedEdge returns the last obstructed edge on the path, used by
// DRRT★ to locate replan_goal as specified in SPEC_FULL §4.3 step 3.
func (p *Path) LastObstructedEdge() (*Edge, int, bool) {
	for i := len(p.edges) - 1; i >= 0; i-- {
		if p.edges[i].Obstructed() {
			return p.edges[i], i, true
		}
	}
	return nil, -1, false
}

// Clone returns a Path over a deep clone of its tree: mutating the clone's
// tree can never affect the nodes or edges reachable from the original
// Path, matching the invariant that replanner clones never alias the
// executing tree.
func (p *Path) Clone() (*Path, error) {
	clonedTree, idMap := p.tree.cloneWithIDMap()
	clonedEdges := make([]*Edge, len(p.edges))
	for i, e := range p.edges {
		clonedEdges[i] = clonedTree.edges[idMap.edge[e.id]]
	}
	return &Path{tree: clonedTree, edges: clonedEdges, metric: p.metric.Clone()}, nil
}

// SplitEdgeAt splits the edge containing conf (identified by its index in
// Edges()) into two edges meeting at a freshly inserted node placed exactly
// at conf, and returns that node. Costs are apportioned by the metric so
// that parent->conf + conf->child together equal the original edge's cost
// when the edge was finite; an obstructed (+Inf) edge keeps both halves
// obstructed.
func (p *Path) SplitEdgeAt(edgeIndex int, conf Configuration) (*Node, error) {
	if edgeIndex < 0 || edgeIndex >= len(p.edges) {
		return nil, errors.New("replanpath: edge index out of range")
	}
	e := p.edges[edgeIndex]
	parent, child := p.tree.nodes[e.parent], p.tree.nodes[e.child]

	var costToSplit, costFromSplit float64
	if math.IsInf(e.cost, 1) {
		costToSplit, costFromSplit = math.Inf(1), math.Inf(1)
	} else {
		costToSplit = p.metric.Cost(parent.q, conf)
		costFromSplit = p.metric.Cost(conf, child.q)
	}

	p.tree.removeEdge(e)
	mid, err := p.tree.AddNode(parent, conf, costToSplit)
	if err != nil {
		return nil, err
	}
	if _, err := p.tree.addEdge(mid, child, costFromSplit); err != nil {
		return nil, err
	}

	newEdges := make([]*Edge, 0, len(p.edges)+1)
	newEdges = append(newEdges, p.edges[:edgeIndex]...)
	newEdges = append(newEdges, p.tree.ParentEdge(mid), p.tree.ParentEdge(child))
	newEdges = append(newEdges, p.edges[edgeIndex+1:]...)
	p.edges = newEdges
	return mid, nil
}
