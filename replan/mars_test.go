package replan

import (
	"context"
	"testing"
	"time"

	"go.viam.com/rdk/logging"
	"go.viam.com/test"

	"go.viam.com/replanner/replanpath"
)

func TestMARSReplanNoopWithoutAlternates(t *testing.T) {
	path := straightLinePath(t, 1, 2, 3)
	r := NewMARSReplanner(logging.NewTestLogger(t), 2, testRand(), true)

	result, err := r.Replan(context.Background(), cfg(0, 0), path, time.Now().Add(time.Second))
	test.That(t, err, test.ShouldBeNil)
	test.That(t, result.Success, test.ShouldBeFalse)
}

func TestMARSReplanWithAlternatesBridgesToCheaperPath(t *testing.T) {
	current := straightLinePath(t, 1, 2, 3)
	obstructLastEdge(current)
	alternate := straightLinePath(t, 1, 2, 3, 4)

	r := NewMARSReplanner(logging.NewTestLogger(t), 5, testRand(), true)
	result, err := r.ReplanWithAlternates(
		context.Background(), cfg(0, 0), current, []*replanpath.Path{alternate}, time.Now().Add(time.Second),
	)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, result.Success, test.ShouldBeTrue)
	test.That(t, result.ReplannedPath, test.ShouldNotBeNil)
	test.That(t, result.ReplannedPath.Obstructed(), test.ShouldBeFalse)
	test.That(t, result.RetiredPath, test.ShouldEqual, current)

	goal := result.ReplannedPath.Goal()
	test.That(t, goal.Q()[0].Value, test.ShouldEqual, 4.0)
}

func TestMARSReplanWithAlternatesNoopWhenCurrentPathClear(t *testing.T) {
	current := straightLinePath(t, 1, 2, 3)
	alternate := straightLinePath(t, 1, 2, 3, 4)

	r := NewMARSReplanner(logging.NewTestLogger(t), 5, testRand(), true)
	result, err := r.ReplanWithAlternates(
		context.Background(), cfg(0, 0), current, []*replanpath.Path{alternate}, time.Now().Add(time.Second),
	)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, result.Success, test.ShouldBeFalse)
}

func TestMARSReplanWithAlternatesFailsWhenDeadlineAlreadyElapsed(t *testing.T) {
	current := straightLinePath(t, 1, 2, 3)
	obstructLastEdge(current)
	alternate := straightLinePath(t, 1, 2, 3, 4)

	r := NewMARSReplanner(logging.NewTestLogger(t), 5, testRand(), true)
	// A deadline already in the past means no candidate is ever tried.
	result, err := r.ReplanWithAlternates(
		context.Background(), cfg(0, 0), current, []*replanpath.Path{alternate}, time.Now().Add(-time.Second),
	)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, result.Success, test.ShouldBeFalse)
}
