package replan

import (
	"context"
	"math/rand"
	"sort"
	"time"

	"go.viam.com/rdk/logging"

	"go.viam.com/replanner/replanpath"
)

// MultiPathResult extends Result with the path a successful multi-path
// repair displaced, which the manager folds into the alternate-path bank as
// specified in SPEC_FULL §4.4 ("mark the previously executing path as a new
// alternate").
type MultiPathResult struct {
	Result
	RetiredPath *replanpath.Path
}

// MultiPathReplanner is the capability a replanner exposes when it can make
// use of a bank of alternate paths, following the "small capability object"
// guidance in SPEC_FULL §9 rather than an open inheritance hierarchy: the
// manager type-asserts for this interface instead of branching on a
// replanner-type tag.
type MultiPathReplanner interface {
	Replanner
	ReplanWithAlternates(ctx context.Context, currentConf replanpath.Configuration, currentPath *replanpath.Path, otherPaths []*replanpath.Path, deadline time.Time) (MultiPathResult, error)
}

// MARSReplanner implements the multi-path repair from SPEC_FULL §4.4: it
// bridges the current configuration directly to a node of one of the
// alternate paths, trying every alternate-path node in order of distance from
// the current configuration and taking the first bridge that passes the
// checker. Candidates are not filtered by where they lie relative to the
// obstruction, and the repaired path keeps no prefix of the current path: it
// runs from the current configuration over the bridge to the alternate's goal.
type MARSReplanner struct {
	logger        logging.Logger
	maxDistance   float64
	rnd           *rand.Rand
	fullNetSearch bool

	// prepareTree, when set, is invoked on every candidate bridge tree right
	// after it is cloned and before any cost is computed against it. This is
	// the seam MARSHAReplanner uses to swap in an SSM-weighted metric
	// without duplicating the bridge-search algorithm.
	prepareTree func(*replanpath.Tree)
}

// NewMARSReplanner constructs a MARS replanner. fullNetSearch enables the
// anytime local-rewire pass after a bridge is found; MARSHA forces it off
// (SPEC_FULL §4.4).
func NewMARSReplanner(logger logging.Logger, maxDistance float64, rnd *rand.Rand, fullNetSearch bool) *MARSReplanner {
	return &MARSReplanner{logger: logger, maxDistance: maxDistance, rnd: rnd, fullNetSearch: fullNetSearch}
}

// Replan implements Replanner for callers that have no alternate-path bank
// to offer; MARS without alternates can never make progress.
func (r *MARSReplanner) Replan(_ context.Context, _ replanpath.Configuration, currentPath *replanpath.Path, _ time.Time) (Result, error) {
	return noop(currentPath), nil
}

type bridgeCandidate struct {
	pathIndex int
	node      *replanpath.Node
	cost      float64
}

// ReplanWithAlternates implements MultiPathReplanner.
func (r *MARSReplanner) ReplanWithAlternates(ctx context.Context, currentConf replanpath.Configuration, currentPath *replanpath.Path, otherPaths []*replanpath.Path, deadline time.Time) (MultiPathResult, error) {
	if !currentPath.Obstructed() {
		return MultiPathResult{Result: noop(currentPath)}, nil
	}
	if len(otherPaths) == 0 {
		return MultiPathResult{Result: Result{Success: false, Mutated: false}}, nil
	}

	metric := currentPath.Tree().Metric()
	var candidates []bridgeCandidate
	for pi, p := range otherPaths {
		for _, n := range p.Nodes() {
			candidates = append(candidates, bridgeCandidate{pathIndex: pi, node: n, cost: metric.Cost(currentConf, n.Q())})
		}
	}
	sort.SliceStable(candidates, func(i, j int) bool { return candidates[i].cost < candidates[j].cost })

	for _, c := range candidates {
		if ctx.Err() != nil || !time.Now().Before(deadline) {
			break
		}
		replanned, ok := r.tryBridge(ctx, currentConf, otherPaths[c.pathIndex], c)
		if !ok {
			continue
		}
		if r.fullNetSearch {
			r.improveAroundBridge(ctx, replanned, deadline)
		}
		return MultiPathResult{
			Result:      Result{Success: true, ReplannedPath: replanned, Mutated: true},
			RetiredPath: currentPath,
		}, nil
	}

	return MultiPathResult{Result: Result{Success: false, Mutated: false}}, nil
}

// tryBridge clones the candidate's alternate path's tree, attaches
// currentConf as a new node bridging into the candidate node, and rehomes
// the tree at that new node so its path_to(goal) is the repaired path. It
// never mutates the original alternate path.
func (r *MARSReplanner) tryBridge(ctx context.Context, currentConf replanpath.Configuration, altPath *replanpath.Path, c bridgeCandidate) (*replanpath.Path, bool) {
	altTree, idMap := altPath.Tree().CloneWithIDMap()
	if r.prepareTree != nil {
		r.prepareTree(altTree)
	}
	candidateClone := altTree.NodeByID(idMap.NodeID(c.node.ID()))
	if candidateClone == nil {
		return nil, false
	}
	// candidateClone is the stitch point bridging into the alternate path;
	// flag it as a corner so a later full_net_search improvement pass never
	// cuts the bridge it was brought in to form.
	candidateClone.SetCorner(true)
	if !altTree.Checker().CheckSegment(ctx, currentConf, candidateClone.Q()) {
		return nil, false
	}
	bridgeCost := altTree.Metric().Cost(currentConf, candidateClone.Q())
	nodeReplan, err := altTree.AddNode(candidateClone, currentConf, bridgeCost)
	if err != nil {
		return nil, false
	}
	// nodeReplan anchors the robot's live position on the stitched path.
	nodeReplan.SetCorner(true)
	if err := altTree.Reroot(nodeReplan); err != nil {
		return nil, false
	}
	goalClone := altTree.NodeByID(idMap.NodeID(altPath.Goal().ID()))
	if goalClone == nil {
		return nil, false
	}
	replanned, err := altTree.PathTo(goalClone)
	if err != nil {
		return nil, false
	}
	return replanned, true
}

// improveAroundBridge spends a single bounded local-rewire pass around the
// freshly stitched node, best-effort; failures here never fail the overall
// repair since a bridge was already found.
func (r *MARSReplanner) improveAroundBridge(ctx context.Context, path *replanpath.Path, deadline time.Time) {
	if !time.Now().Before(deadline) || ctx.Err() != nil {
		return
	}
	tree := path.Tree()
	radius := 2 * r.maxDistance
	cache := replanpath.NewCheckedCache()
	_ = tree.RewireOnlyWithPathCheck(ctx, path.Start(), radius, path.Nodes(), 2, cache)
}
