package replanpath

import "math"

// Edge (Connection) is a directed parent->child connection inside a Tree. Its
// cost is mutable and non-negative; math.Inf(1) denotes "currently
// obstructed" per the data model in SPEC_FULL §3.
type Edge struct {
	id     int
	parent int // node id
	child  int // node id
	cost   float64

	// parentQ/childQ cache the endpoints' configurations as of edge
	// creation, so Checker.CheckEdge can validate an edge without the
	// checker needing a back-reference to the owning Tree.
	parentQ Configuration
	childQ  Configuration

	// removed marks an edge that has been detached from both endpoints but
	// whose arena slot has not been reused. Detecting removal by id lets
	// stale *Edge pointers held by a caller fail safe instead of aliasing a
	// reused slot.
	removed bool
}

// ID returns the edge's arena index.
func (e *Edge) ID() int { return e.id }

// Parent returns the id of the edge's parent node.
func (e *Edge) Parent() int { return e.parent }

// Child returns the id of the edge's child node.
func (e *Edge) Child() int { return e.child }

// ParentQ returns the parent node's configuration as of edge creation.
func (e *Edge) ParentQ() Configuration { return e.parentQ }

// ChildQ returns the child node's configuration as of edge creation.
func (e *Edge) ChildQ() Configuration { return e.childQ }

// Cost returns the edge's current cost.
func (e *Edge) Cost() float64 { return e.cost }

// SetCost updates the edge's cost.
func (e *Edge) SetCost(c float64) { e.cost = c }

// Obstructed reports whether the edge is currently flagged impassable.
func (e *Edge) Obstructed() bool { return math.IsInf(e.cost, 1) }

// Removed reports whether the edge has been detached from the tree.
func (e *Edge) Removed() bool { return e.removed }
