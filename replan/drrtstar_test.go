package replan

import (
	"context"
	"math"
	"testing"
	"time"

	"go.viam.com/rdk/logging"
	"go.viam.com/test"

	"go.viam.com/replanner/replanpath"
)

func TestDRRTStarReplanNoopWhenPathNotObstructed(t *testing.T) {
	path := straightLinePath(t, 1, 2, 3)
	r := NewDRRTStarReplanner(logging.NewTestLogger(t), 1, testBounds(2), testRand())

	result, err := r.Replan(context.Background(), cfg(0, 0), path, time.Now().Add(time.Second))
	test.That(t, err, test.ShouldBeNil)
	test.That(t, result.Success, test.ShouldBeFalse)
	test.That(t, result.Mutated, test.ShouldBeFalse)
}

// obstructLastEdge marks the final edge of path as impassable, simulating a
// scene update placing an obstacle in the robot's way.
func obstructLastEdge(path *replanpath.Path) {
	edges := path.Edges()
	edges[len(edges)-1].SetCost(math.Inf(1))
}

func TestDRRTStarReplanRepairsAroundObstruction(t *testing.T) {
	path := straightLinePath(t, 1, 2, 3, 4)
	obstructLastEdge(path)

	r := NewDRRTStarReplanner(logging.NewTestLogger(t), 2, testBounds(2), testRand())
	result, err := r.Replan(context.Background(), cfg(0, 0), path, time.Now().Add(500*time.Millisecond))
	test.That(t, err, test.ShouldBeNil)

	// DRRT* is a sampling-based repair: it either finds a collision-free
	// reconnection within budget (Success) or cleanly rolls back to an
	// unmutated tree (Mutated=false), never leaving a half-repaired tree.
	if !result.Success {
		test.That(t, result.Mutated, test.ShouldBeFalse)
		return
	}
	test.That(t, result.ReplannedPath, test.ShouldNotBeNil)
	test.That(t, result.ReplannedPath.Obstructed(), test.ShouldBeFalse)
	goal := result.ReplannedPath.Goal()
	test.That(t, goal.Q()[0].Value, test.ShouldEqual, 4.0)
}

func TestDRRTStarReplanRespectsDeadline(t *testing.T) {
	path := straightLinePath(t, 1, 2, 3)
	obstructLastEdge(path)

	r := NewDRRTStarReplanner(logging.NewTestLogger(t), 2, testBounds(2), testRand())
	start := time.Now()
	deadline := start.Add(20 * time.Millisecond)
	result, err := r.Replan(context.Background(), cfg(0, 0), path, deadline)
	test.That(t, err, test.ShouldBeNil)
	// Whatever the outcome, the call must return at or shortly after the
	// deadline, never run away unbounded.
	test.That(t, time.Since(start), test.ShouldBeLessThan, time.Second)
	_ = result
}

func TestDRRTStarRollbackRemovesUnreferencedNodeReplan(t *testing.T) {
	path := straightLinePath(t, 1, 2, 3)
	obstructLastEdge(path)
	tree := path.Tree()
	before := len(tree.Nodes())

	r := NewDRRTStarReplanner(logging.NewTestLogger(t), 0.0001, testBounds(2), testRand())
	// An unreachable max_distance all but guarantees Phase B cannot
	// reconnect within the deadline, exercising the rollback path.
	result, err := r.Replan(context.Background(), cfg(0, 0), path, time.Now().Add(5*time.Millisecond))
	test.That(t, err, test.ShouldBeNil)
	if !result.Success {
		test.That(t, len(tree.Nodes()), test.ShouldEqual, before)
		test.That(t, result.FailureDetail, test.ShouldNotBeNil)
	}
}
