package replan

import (
	"context"
	"time"

	"go.viam.com/replanner/replanpath"
)

// Result is the outcome of a single replan() call, per SPEC_FULL §4.4's
// pluggable contract.
type Result struct {
	// Success reports whether the replanner reconnected to the goal within
	// its deadline.
	Success bool
	// ReplannedPath is the candidate path to hot-swap in on Success. When
	// the replanner declined to act (see noop) it is the unchanged current
	// path; on any other failure it is nil.
	ReplannedPath *replanpath.Path
	// Mutated reports whether the replanner's tree clone was touched at all,
	// even on failure. A call with Mutated=true but Success=false must be
	// rolled back by the caller before releasing locks (SPEC_FULL §4.5).
	Mutated bool
	// FailureDetail accumulates the last few per-attempt rejection reasons a
	// replanner recorded while failing to reconnect to the goal. It is
	// always nil on success, and may be nil on failure too if the replanner
	// declined to act (e.g. the path was never obstructed).
	FailureDetail error
}

// noop is the canonical "nothing to do" result: the path was not obstructed,
// or the replanner declined to touch anything.
func noop(current *replanpath.Path) Result {
	return Result{Success: false, ReplannedPath: current, Mutated: false}
}

// Replanner is the pluggable repair strategy contract from SPEC_FULL §4.4.
// Implementations must be invariant under the caller holding no locks: they
// operate entirely on the clone of currentPath handed to them, and must
// never reach back into manager-owned shared state.
type Replanner interface {
	// Replan attempts to repair currentPath so that it reconnects
	// currentConf to the original goal, avoiding every currently obstructed
	// edge, within the time remaining until deadline. currentPath must
	// already be a clone isolated from the executing path.
	Replan(ctx context.Context, currentConf replanpath.Configuration, currentPath *replanpath.Path, deadline time.Time) (Result, error)
}

// replanContext derives a cooperative deadline context for a single replan
// call, matching the `context.WithDeadline` idiom SPEC_FULL §5 specifies for
// every sampling loop's cancellation check.
func replanContext(ctx context.Context, deadline time.Time) (context.Context, context.CancelFunc) {
	return context.WithDeadline(ctx, deadline)
}

// configEpsilon is the tolerance used to decide whether a configuration
// coincides with an existing path node (no split needed) versus lies
// strictly inside an edge (split required).
const configEpsilon = 1e-9

// insertAtConfiguration finds the node on path nearest to conf (within
// configEpsilon, meaning "is" conf) or the edge conf lies strictly inside,
// and in the latter case splits that edge to insert a node exactly at conf.
// Both DRRT★ (step 1) and the manager's hot-swap use this to locate the
// robot's current position on a path before rerooting there.
func insertAtConfiguration(path *replanpath.Path, conf replanpath.Configuration) (*replanpath.Node, error) {
	metric := path.Tree().Metric()
	for _, n := range path.Nodes() {
		if metric.Cost(n.Q(), conf) < configEpsilon {
			return n, nil
		}
	}
	for i, e := range path.Edges() {
		parent := path.Tree().NodeByID(e.Parent())
		child := path.Tree().NodeByID(e.Child())
		d1 := metric.Cost(parent.Q(), conf)
		d2 := metric.Cost(conf, child.Q())
		edgeLen := metric.Cost(parent.Q(), child.Q())
		if edgeLen == 0 || d1+d2 <= edgeLen*(1+1e-6) {
			return path.SplitEdgeAt(i, conf)
		}
	}
	return nil, ErrPrecondition
}
