package replan

import (
	"context"
	"fmt"
	"math/rand"
	"time"

	"go.viam.com/rdk/logging"

	"go.viam.com/replanner/replanpath"
)

// DRRTStarReplanner implements the rewire-behind-obstacle repair strategy
// from SPEC_FULL §4.3, committing to the rewireBehindObs variant's anytime-
// improvement semantics (DESIGN.md, Open Question (b)).
type DRRTStarReplanner struct {
	logger      logging.Logger
	maxDistance float64
	bounds      replanpath.Bounds
	rnd         *rand.Rand
}

// NewDRRTStarReplanner constructs a DRRT★ replanner. rnd seeds every sampler
// this replanner builds; callers that want deterministic tests should pass a
// seeded source.
func NewDRRTStarReplanner(logger logging.Logger, maxDistance float64, bounds replanpath.Bounds, rnd *rand.Rand) *DRRTStarReplanner {
	return &DRRTStarReplanner{logger: logger, maxDistance: maxDistance, bounds: bounds, rnd: rnd}
}

// Replan implements Replanner. It edits a private clone of currentPath, so a
// failed attempt leaves currentPath and its tree exactly as they were.
func (r *DRRTStarReplanner) Replan(ctx context.Context, currentConf replanpath.Configuration, currentPath *replanpath.Path, deadline time.Time) (Result, error) {
	if !currentPath.Obstructed() {
		// Boundary behavior 9: nothing to do.
		return noop(currentPath), nil
	}

	work, err := currentPath.Clone()
	if err != nil {
		return Result{Success: false, Mutated: false}, nil
	}
	tree := work.Tree()
	originalRoot := tree.Root()
	goal := work.Goal()
	cache := replanpath.NewCheckedCache()

	// Step 1: insert node_replan at current_configuration.
	nodeReplan, err := insertAtConfiguration(work, currentConf)
	if err != nil {
		r.logger.CDebugf(ctx, "drrtstar: could not locate current configuration on path: %v", err)
		return Result{Success: false, Mutated: false}, nil
	}
	// node_replan anchors the robot's live position; flag it as a corner so
	// neither phase's rewiring ever reparents it out from under the robot.
	nodeReplan.SetCorner(true)

	// Step 2: reroot.
	if err := tree.Reroot(nodeReplan); err != nil {
		r.logger.Errorw("drrtstar: reroot to node_replan failed", "error", err)
		return Result{Success: false, Mutated: true}, ErrInvariant
	}

	// Step 3: locate replan_goal as the child of the last obstructed edge.
	lastObstructed, _, ok := work.LastObstructedEdge()
	if !ok {
		// The obstruction that triggered this call is gone by the time we
		// got here (scene changed under us); nothing to repair.
		r.rollback(tree, originalRoot, nodeReplan)
		return noop(currentPath), nil
	}
	replanGoal := tree.NodeByID(lastObstructed.Child())
	if replanGoal == nil {
		r.rollback(tree, originalRoot, nodeReplan)
		return Result{Success: false, Mutated: false}, nil
	}
	// replan_goal is the reconnection target both phases work toward; flag
	// it as a corner so Phase A's local rewire can never cut it loose before
	// Phase B's tryReconnect deliberately reattaches it via
	// ConnectIfImproving, which bypasses corner protection by design.
	replanGoal.SetCorner(true)

	// Step 4: build the local informed sampler with one ball around
	// node_replan.
	metric := tree.Metric()
	radius := 1.5 * metric.Cost(nodeReplan.Q(), replanGoal.Q())
	sampler := replanpath.NewLocalInformedSampler(nodeReplan.Q(), replanGoal.Q(), r.bounds, 2*radius, metric, r.rnd)
	sampler.AddBall(nodeReplan.Q(), radius)

	whiteList := work.Nodes()

	// Step 5: Phase A, local rewire.
	if err := tree.RewireOnlyWithPathCheck(ctx, nodeReplan, radius, whiteList, 2, cache); err != nil {
		r.logger.CDebugf(ctx, "drrtstar: phase A rewire aborted: %v", err)
	}

	// Step 6: a subtree view rooted at node_replan, hiding replan_goal.
	subtree := tree.Subtree(nodeReplan, []*replanpath.Node{replanGoal})

	// Step 7: Phase B, anytime improve.
	budget := deadline.Sub(time.Now())
	phaseBDeadline := time.Now().Add(time.Duration(0.98 * float64(budget)))
	failures := newReplanFailureError()
	success := r.anytimeImprove(ctx, tree, subtree, replanGoal, metric, sampler, radius, whiteList, cache, phaseBDeadline, failures)

	if !success {
		// Step 9: failure. Restore the original root; remove node_replan if
		// it ended up unreferenced (Open Question (a)). The edited clone is
		// then discarded, so currentPath is unchanged.
		r.rollback(tree, originalRoot, nodeReplan)
		return Result{Success: false, Mutated: false, FailureDetail: failures}, nil
	}

	// Step 8: success. Rebuild the path and restore the original root.
	replanned, err := tree.PathTo(goal)
	if err != nil {
		r.logger.Errorw("drrtstar: path_to(goal) failed after a reported success", "error", err)
		r.rollback(tree, originalRoot, nodeReplan)
		return Result{Success: false, Mutated: true}, ErrInvariant
	}
	if err := tree.Reroot(originalRoot); err != nil {
		r.logger.Errorw("drrtstar: failed to restore original root after success", "error", err)
		return Result{Success: false, Mutated: true}, ErrInvariant
	}
	return Result{Success: true, ReplannedPath: replanned, Mutated: true}, nil
}

// anytimeImprove runs Phase B: repeatedly sample, rewire within the
// detached subtree, and attempt reconnection to replanGoal, until the
// deadline elapses or a reconnection succeeds.
func (r *DRRTStarReplanner) anytimeImprove(
	ctx context.Context,
	tree *replanpath.Tree,
	subtree *replanpath.SubtreeView,
	replanGoal *replanpath.Node,
	metric replanpath.Metric,
	sampler *replanpath.LocalInformedSampler,
	radius float64,
	whiteList []*replanpath.Node,
	cache *replanpath.CheckedCache,
	deadline time.Time,
	failures *replanFailureError,
) bool {
	for {
		if ctx.Err() != nil {
			failures.record("phase B aborted: context cancelled")
			return false
		}
		if !time.Now().Before(deadline) {
			failures.record("phase B deadline elapsed before reconnecting replan_goal")
			return false
		}
		q := sampler.Sample()
		newNode, err := subtree.Rewire(ctx, q, radius, r.maxDistance, whiteList, cache)
		if err != nil {
			failures.record(fmt.Sprintf("subtree rewire aborted: %v", err))
			return false
		}
		if newNode == nil {
			continue
		}
		if r.tryReconnect(ctx, tree, newNode, replanGoal, metric, cache, failures) {
			return true
		}
	}
}

// tryReconnect attempts to sever replanGoal's stale parent edge and attach
// it under newNode, provided the direct edge is within max_distance,
// collision-free, and strictly improves replanGoal's total cost from the
// root, per SPEC_FULL §4.3 step 7.
func (r *DRRTStarReplanner) tryReconnect(
	ctx context.Context,
	tree *replanpath.Tree,
	newNode, replanGoal *replanpath.Node,
	metric replanpath.Metric,
	cache *replanpath.CheckedCache,
	failures *replanFailureError,
) bool {
	dist := metric.Cost(newNode.Q(), replanGoal.Q())
	if dist > r.maxDistance {
		return false
	}
	if !tree.ConnectIfImproving(ctx, newNode, replanGoal, cache) {
		failures.record("candidate within max_distance of replan_goal was not collision-free or did not improve cost")
		return false
	}
	return true
}

// rollback restores the tree's original root and, if the node inserted for
// this call ended up with no parent and no children, removes it entirely
// (Open Question (a): DRRT★ must not leave an orphaned node_replan behind).
func (r *DRRTStarReplanner) rollback(tree *replanpath.Tree, originalRoot, nodeReplan *replanpath.Node) {
	if tree.Root() != originalRoot {
		if err := tree.Reroot(originalRoot); err != nil {
			r.logger.Errorw("drrtstar: rollback reroot failed", "error", err)
			return
		}
	}
	tree.RemoveNodeIfUnreferenced(nodeReplan)
}
