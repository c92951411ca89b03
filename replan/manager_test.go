package replan

import (
	"context"
	"errors"
	"math/rand"
	"sync"
	"testing"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/golang/geo/r3"
	"go.viam.com/rdk/logging"
	"go.viam.com/test"

	"go.viam.com/replanner/replanpath"
)

var errSceneSourceFailed = errors.New("fake scene source failure")

// fakeSceneSource reports a fixed, mutable-under-lock obstacle list each
// time SampleScene is called, letting tests move an obstacle between
// collision-check cycles (Testable Property S5) or inject a fault (S7-style
// transient scene fault).
type fakeSceneSource struct {
	mu    sync.Mutex
	names []string
	pos   []r3.Vector
	fail  bool
}

func (f *fakeSceneSource) SampleScene(context.Context) (Scene, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.fail {
		return Scene{}, errSceneSourceFailed
	}
	return Scene{
		Obstacles:         append([]string(nil), f.names...),
		ObstaclePositions: append([]r3.Vector(nil), f.pos...),
	}, nil
}

func (f *fakeSceneSource) setObstacles(names []string, pos []r3.Vector) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.names = names
	f.pos = pos
}

func (f *fakeSceneSource) setFail(v bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.fail = v
}

func newTestManager(t *testing.T, cfg ManagerConfig, scene *fakeSceneSource, path *replanpath.Path) (*Manager, *clock.Mock) {
	t.Helper()
	mockClock := clock.NewMock()
	m, err := NewManager(cfg, logging.NewTestLogger(t), mockClock, scene, testBounds(2), path, nil, rand.New(rand.NewSource(7)), nil, nil)
	test.That(t, err, test.ShouldBeNil)
	return m, mockClock
}

func TestNewManagerRejectsInvalidConfig(t *testing.T) {
	mcfg := validConfig()
	mcfg.Dt = 0
	path := straightLinePath(t, 1, 2, 3)
	_, err := NewManager(mcfg, logging.NewTestLogger(t), clock.NewMock(), &fakeSceneSource{}, testBounds(2), path, nil, rand.New(rand.NewSource(1)), nil, nil)
	test.That(t, err, test.ShouldNotBeNil)
}

func TestManagerTickAdvancesCursorAndPublishesReference(t *testing.T) {
	path := straightLinePath(t, 1, 2, 3)
	mcfg := validConfig()
	scene := &fakeSceneSource{}
	m, mockClock := newTestManager(t, mcfg, scene, path)

	m.Start()
	defer m.Stop()

	mockClock.Add(mcfg.Dt)
	select {
	case ref := <-m.References():
		test.That(t, ref[0].Value, test.ShouldEqual, 1.0)
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for trajectory reference")
	}
}

func TestManagerTickClampsStepByMaxJointSpeed(t *testing.T) {
	path := straightLinePath(t, 1, 2, 3)
	mcfg := validConfig()
	mcfg.MaxJointSpeed = 10 // units/sec; Dt=10ms => max step of 0.1
	scene := &fakeSceneSource{}
	m, mockClock := newTestManager(t, mcfg, scene, path)

	m.Start()
	defer m.Stop()

	mockClock.Add(mcfg.Dt)
	select {
	case ref := <-m.References():
		test.That(t, ref[0].Value, test.ShouldEqual, 0.1)
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for trajectory reference")
	}
	test.That(t, m.cursorSnapshot(), test.ShouldEqual, 0)
}

func TestReachedGoalRespectsGoalTol(t *testing.T) {
	path := straightLinePath(t, 1, 2, 3)
	scene := &fakeSceneSource{}

	near := validConfig()
	near.GoalTol = 10 // far larger than the start-to-goal distance of 3
	m, _ := newTestManager(t, near, scene, path)
	test.That(t, m.reachedGoal(), test.ShouldBeTrue)

	far := validConfig()
	far.GoalTol = 0.01
	m2, _ := newTestManager(t, far, scene, path)
	test.That(t, m2.reachedGoal(), test.ShouldBeFalse)
}

func TestReachedGoalDisabledWhenGoalTolUnset(t *testing.T) {
	path := straightLinePath(t, 1, 2, 3)
	mcfg := validConfig() // GoalTol defaults to 0: feature off
	scene := &fakeSceneSource{}
	m, _ := newTestManager(t, mcfg, scene, path)
	test.That(t, m.reachedGoal(), test.ShouldBeFalse)
}

func TestManagerStopJoinsAllThreadsPromptly(t *testing.T) {
	path := straightLinePath(t, 1, 2, 3)
	mcfg := validConfig()
	scene := &fakeSceneSource{}
	m, _ := newTestManager(t, mcfg, scene, path)

	m.Start()
	done := make(chan struct{})
	go func() {
		m.Stop()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("manager did not shut down promptly")
	}
}

func TestManagerSceneFaultTriggersShutdown(t *testing.T) {
	path := straightLinePath(t, 1, 2, 3)
	mcfg := validConfig()
	scene := &fakeSceneSource{fail: true}
	m, mockClock := newTestManager(t, mcfg, scene, path)

	m.Start()
	done := make(chan struct{})
	go func() {
		m.supervisorWorkers.Stop()
		close(done)
	}()

	mockClock.Add(mcfg.CollisionCheckPeriod())
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("manager did not shut down after a scene fault")
	}
}

func TestRevalidateTreeKeepsValidEdgesUnobstructed(t *testing.T) {
	path := straightLinePath(t, 1, 2, 3)
	tree := path.Tree()
	edges := tree.Nodes() // sanity: nodes reachable
	test.That(t, len(edges), test.ShouldBeGreaterThan, 0)

	path.Edges()[0].SetCost(0) // any finite value; revalidate recomputes it
	err := revalidateTree(context.Background(), tree)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, path.Edges()[0].Obstructed(), test.ShouldBeFalse)
}

func TestWriteBackCostsCopiesByArenaID(t *testing.T) {
	path := straightLinePath(t, 1, 2, 3)
	clone, err := path.Clone()
	test.That(t, err, test.ShouldBeNil)

	clone.Edges()[0].SetCost(42)
	writeBackCosts(path.Tree(), clone.Tree())
	test.That(t, path.Edges()[0].Cost(), test.ShouldEqual, 42.0)
}

func TestNewManagerWrapsTreeMetricForMARSHA(t *testing.T) {
	path := straightLinePath(t, 1, 2, 3)
	mcfg := validConfig()
	mcfg.ReplannerType = ReplannerMARSHA
	mcfg.NOtherPaths = 2
	ssm := NewSpeedWeightedSSM(SSMConfig{MinDistance: 0.1, Tr: 10, VH: 1})

	m, err := NewManager(mcfg, logging.NewTestLogger(t), clock.NewMock(), &fakeSceneSource{}, testBounds(2), path, nil, rand.New(rand.NewSource(3)), ssm, identityToCartesian)
	test.That(t, err, test.ShouldBeNil)

	_, ok := path.Tree().Metric().(*SSMMetric)
	test.That(t, ok, test.ShouldBeTrue)
	_, ok = m.replanner.(*MARSHAReplanner)
	test.That(t, ok, test.ShouldBeTrue)
}

func TestCollisionCheckCycleUpdatesLiveSSMMetric(t *testing.T) {
	path := straightLinePath(t, 1, 2, 3)
	mcfg := validConfig()
	mcfg.ReplannerType = ReplannerMARSHA
	mcfg.NOtherPaths = 2
	ssm := NewSpeedWeightedSSM(SSMConfig{MinDistance: 0.1, Tr: 10, VH: 1})
	ssm.SetPOINames([]string{"human"})

	scene := &fakeSceneSource{}
	m, err := NewManager(mcfg, logging.NewTestLogger(t), clock.NewMock(), scene, testBounds(2), path, nil, rand.New(rand.NewSource(3)), ssm, identityToCartesian)
	test.That(t, err, test.ShouldBeNil)

	// No obstacle reported yet: the segment (0,0)->(1,0) carries no penalty.
	before := path.Tree().Metric().Cost(cfg(0, 0), cfg(1, 0))

	scene.setObstacles([]string{"human"}, []r3.Vector{{X: 0.5, Y: 0, Z: 0}})
	err = m.collisionCheckCycle(context.Background())
	test.That(t, err, test.ShouldBeNil)

	after := path.Tree().Metric().Cost(cfg(0, 0), cfg(1, 0))
	test.That(t, after, test.ShouldBeGreaterThan, before)
}

func TestPathObstructedBeyondIgnoresEdgesBeforeCursor(t *testing.T) {
	path := straightLinePath(t, 1, 2, 3, 4)
	path.Edges()[0].SetCost(0)
	test.That(t, pathObstructedBeyond(path, 1), test.ShouldBeFalse)

	path.Edges()[2].SetCost(0)
	// Mark the edge ahead of the cursor obstructed.
	obstructLastEdge(path)
	test.That(t, pathObstructedBeyond(path, 1), test.ShouldBeTrue)
	// At cursor 4 the robot is at the goal: the obstructed last edge lies
	// behind it.
	test.That(t, pathObstructedBeyond(path, 4), test.ShouldBeFalse)
}
