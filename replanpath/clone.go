package replanpath

// idMapping records how node and edge arena ids in a source tree map onto
// the corresponding ids in a clone. Because Clone copies the node and edge
// arenas in place (index i of the clone always corresponds to index i of
// the source), the mapping is the identity - but callers such as Path.Clone
// use this type rather than assuming that fact, so the two stay decoupled if
// the cloning strategy ever changes.
type idMapping struct {
	node map[int]int
	edge map[int]int
}

// IDMapping exposes how node and edge arena ids in a source tree map onto a
// clone produced by CloneWithIDMap, for callers outside this package (e.g.
// the MARS bridge search) that need to translate a node reference across
// the clone boundary.
type IDMapping struct{ m idMapping }

// NodeID translates a node id from the source tree into the clone's id
// space.
func (m IDMapping) NodeID(sourceID int) int { return m.m.node[sourceID] }

// EdgeID translates an edge id from the source tree into the clone's id
// space.
func (m IDMapping) EdgeID(sourceID int) int { return m.m.edge[sourceID] }

// CloneWithIDMap is the exported form of cloneWithIDMap, for callers outside
// this package that need the id translation (e.g. MARS's bridge search
// mapping a node found on an alternate Path onto its cloned Tree).
func (t *Tree) CloneWithIDMap() (*Tree, IDMapping) {
	ct, mapping := t.cloneWithIDMap()
	return ct, IDMapping{m: mapping}
}

// Clone returns a deep copy of the tree: an independent set of Nodes and
// Edges that share no pointers with the original, so mutating the clone can
// never change anything reachable from the source tree. Metric and Checker
// are cloned through their own explicit Clone() contract, which is expected
// to share only immutable state with the original (SPEC_FULL §9).
func (t *Tree) Clone() *Tree {
	ct, _ := t.cloneWithIDMap()
	return ct
}

func (t *Tree) cloneWithIDMap() (*Tree, idMapping) {
	ct := &Tree{
		rootID:  t.rootID,
		metric:  t.metric.Clone(),
		checker: t.checker.Clone(),
	}
	ct.nodes = make([]*Node, len(t.nodes))
	for i, n := range t.nodes {
		ct.nodes[i] = &Node{
			id:         n.id,
			q:          n.q.Clone(),
			parentEdge: n.parentEdge,
			childEdges: append([]int(nil), n.childEdges...),
			corner:     n.corner,
		}
	}
	ct.edges = make([]*Edge, len(t.edges))
	for i, e := range t.edges {
		ct.edges[i] = &Edge{
			id:      e.id,
			parent:  e.parent,
			child:   e.child,
			cost:    e.cost,
			parentQ: e.parentQ.Clone(),
			childQ:  e.childQ.Clone(),
			removed: e.removed,
		}
	}

	mapping := idMapping{node: make(map[int]int, len(t.nodes)), edge: make(map[int]int, len(t.edges))}
	for i := range t.nodes {
		mapping.node[i] = i
	}
	for i := range t.edges {
		mapping.edge[i] = i
	}
	return ct, mapping
}
