package replan

import (
	"math/rand"
	"testing"

	"go.viam.com/rdk/referenceframe"
	"go.viam.com/test"

	"go.viam.com/replanner/replanpath"
)

func testRand() *rand.Rand {
	return rand.New(rand.NewSource(42))
}

func cfg(vals ...float64) replanpath.Configuration {
	return replanpath.FromFloats(vals)
}

func testBounds(n int) replanpath.Bounds {
	b := make(replanpath.Bounds, n)
	for i := range b {
		b[i] = referenceframe.Limit{Min: -100, Max: 100}
	}
	return b
}

// straightLinePath builds a 2D tree with a single straight-line path from
// (0,0) to (float64(len(xs)),0) through the given intermediate x values, and
// returns the Path spanning it.
func straightLinePath(t *testing.T, xs ...float64) *replanpath.Path {
	t.Helper()
	tree := replanpath.NewTree(cfg(0, 0), replanpath.NewL2Metric(), replanpath.NewBoundsOnlyChecker(testBounds(2)))
	prev := tree.Root()
	for _, x := range xs {
		n, err := tree.AddNode(prev, cfg(x, 0), tree.Metric().Cost(prev.Q(), cfg(x, 0)))
		test.That(t, err, test.ShouldBeNil)
		prev = n
	}
	p, err := tree.PathTo(prev)
	test.That(t, err, test.ShouldBeNil)
	return p
}
