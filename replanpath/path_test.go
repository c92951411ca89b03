package replanpath

import (
	"math"
	"testing"

	"go.viam.com/test"
)

func TestSplitEdgeAtPreservesCostAndKeepsSplitNode(t *testing.T) {
	tree, nodes := straightLineTree(t)
	path, err := tree.PathTo(nodes[2])
	test.That(t, err, test.ShouldBeNil)
	test.That(t, len(path.Edges()), test.ShouldEqual, 2)

	mid, err := path.SplitEdgeAt(0, cfg(0.5, 0))
	test.That(t, err, test.ShouldBeNil)
	test.That(t, len(path.Edges()), test.ShouldEqual, 3)
	test.That(t, mid.q[0].Value, test.ShouldAlmostEqual, 0.5)

	test.That(t, tree.RemoveNodeIfUnreferenced(mid), test.ShouldBeFalse) // still referenced

	// Cost is preserved by the split: 0.5 + 0.5 == original edge cost of 1.
	test.That(t, path.Edges()[0].Cost()+path.Edges()[1].Cost(), test.ShouldAlmostEqual, 1.0)
}

func TestSplitObstructedEdgeStaysObstructed(t *testing.T) {
	tree, nodes := straightLineTree(t)
	path, err := tree.PathTo(nodes[2])
	test.That(t, err, test.ShouldBeNil)
	path.Edges()[1].SetCost(math.Inf(1))

	_, err = path.SplitEdgeAt(1, cfg(1.5, 0))
	test.That(t, err, test.ShouldBeNil)
	test.That(t, path.Edges()[1].Obstructed(), test.ShouldBeTrue)
	test.That(t, path.Edges()[2].Obstructed(), test.ShouldBeTrue)
}

func TestPathCloneIsolatesMutation(t *testing.T) {
	tree, nodes := straightLineTree(t)
	path, err := tree.PathTo(nodes[2])
	test.That(t, err, test.ShouldBeNil)

	clone, err := path.Clone()
	test.That(t, err, test.ShouldBeNil)

	clone.Edges()[0].SetCost(42)
	test.That(t, path.Edges()[0].Cost(), test.ShouldAlmostEqual, 1.0)
	test.That(t, clone.Tree(), test.ShouldNotEqual, path.Tree())
}

func TestFirstAndLastObstructedEdge(t *testing.T) {
	tree, nodes := straightLineTree(t)
	path, err := tree.PathTo(nodes[2])
	test.That(t, err, test.ShouldBeNil)
	path.Edges()[1].SetCost(math.Inf(1))

	e, idx, ok := path.LastObstructedEdge()
	test.That(t, ok, test.ShouldBeTrue)
	test.That(t, idx, test.ShouldEqual, 1)
	test.That(t, e, test.ShouldEqual, path.Edges()[1])

	_, _, ok = path.FirstObstructedEdgeAfter(nodes[2].id)
	test.That(t, ok, test.ShouldBeFalse)
}
