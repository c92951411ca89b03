package replan

import (
	"context"
	"math"
	"math/rand"
	"sync"

	"github.com/benbjohnson/clock"
	"github.com/golang/geo/r3"
	"github.com/pkg/errors"
	"go.uber.org/multierr"
	"golang.org/x/sync/errgroup"

	"go.viam.com/rdk/logging"
	goutils "go.viam.com/utils"

	"go.viam.com/replanner/replanpath"
)

// Manager is the Replanner Manager (SPEC_FULL §4.5): the orchestrator
// running the four long-lived threads (trajectory tick, collision-check,
// replanner, shutdown supervisor) over a shared executing path and its bank
// of alternates, following the strict lock order sceneMtx -> trjMtx ->
// pathsMtx -> otherPathsMtx described in SPEC_FULL §5.
type Manager struct {
	cfg         ManagerConfig
	logger      logging.Logger
	clock       clock.Clock
	sceneSource SceneSource
	replanner   Replanner
	metrics     *Metrics

	sceneMtx sync.Mutex
	scene    Scene

	trjMtx               sync.Mutex
	currentConfiguration replanpath.Configuration
	cursor               int // index into executingPath.Nodes(); currentConfiguration is Nodes()[cursor], or a point toward Nodes()[cursor+1] while a step is clamped

	pathsMtx              sync.Mutex
	executingPath         *replanpath.Path
	currentPathSyncNeeded bool

	otherPathsMtx sync.Mutex
	otherPaths    []*replanpath.Path

	obstructedCh chan struct{}
	faultCh      chan error
	referenceCh  chan replanpath.Configuration

	trajectoryWorkers *goutils.StoppableWorkers
	collisionWorkers  *goutils.StoppableWorkers
	replannerWorkers  *goutils.StoppableWorkers
	supervisorWorkers *goutils.StoppableWorkers
	stopOnce          sync.Once
}

// NewManager constructs a Manager around initialPath and selects the
// pluggable replanner named by cfg.ReplannerType. ssm and toCartesian are
// only consulted (and may be nil) when cfg.ReplannerType is ReplannerMARSHA.
func NewManager(
	cfg ManagerConfig,
	logger logging.Logger,
	clk clock.Clock,
	sceneSource SceneSource,
	bounds replanpath.Bounds,
	initialPath *replanpath.Path,
	otherPaths []*replanpath.Path,
	rnd *rand.Rand,
	ssm SSMEstimator,
	toCartesian func(replanpath.Configuration) r3.Vector,
) (*Manager, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	replanner, err := buildReplanner(cfg, logger, bounds, rnd, ssm, toCartesian)
	if err != nil {
		return nil, err
	}
	if cfg.ReplannerType == ReplannerMARSHA {
		wrapTreeMetric(initialPath.Tree(), ssm, toCartesian)
		for _, p := range otherPaths {
			wrapTreeMetric(p.Tree(), ssm, toCartesian)
		}
	}

	m := &Manager{
		cfg:                   cfg,
		logger:                logger,
		clock:                 clk,
		sceneSource:           sceneSource,
		replanner:             replanner,
		metrics:               &Metrics{},
		executingPath:         initialPath,
		otherPaths:            append([]*replanpath.Path(nil), otherPaths...),
		currentConfiguration:  initialPath.Start().Q(),
		obstructedCh:          make(chan struct{}, 1),
		faultCh:               make(chan error, 1),
		referenceCh:           make(chan replanpath.Configuration, 1),
	}
	return m, nil
}

func buildReplanner(cfg ManagerConfig, logger logging.Logger, bounds replanpath.Bounds, rnd *rand.Rand, ssm SSMEstimator, toCartesian func(replanpath.Configuration) r3.Vector) (Replanner, error) {
	switch cfg.ReplannerType {
	case ReplannerMPRRT, ReplannerDRRT, ReplannerDRRTStar, ReplannerAnytimeDRRT:
		return NewDRRTStarReplanner(logger, cfg.MaxDistance, bounds, rnd), nil
	case ReplannerMARS:
		return NewMARSReplanner(logger, cfg.MaxDistance, rnd, true), nil
	case ReplannerMARSHA:
		if ssm == nil {
			return nil, errors.New("replan: MARSHA requires an SSMEstimator")
		}
		return NewMARSHAReplanner(logger, cfg.MaxDistance, rnd, ssm, toCartesian), nil
	default:
		return nil, errors.Errorf("replan: unknown replanner_type %q", cfg.ReplannerType)
	}
}

func wrapTreeMetric(tree *replanpath.Tree, ssm SSMEstimator, toCartesian func(replanpath.Configuration) r3.Vector) {
	tree.SetMetric(NewSSMMetric(tree.Metric(), ssm.Clone(), toCartesian))
}

// Start launches the four long-lived threads. It is safe to call at most
// once per Manager.
func (m *Manager) Start() {
	m.trajectoryWorkers = goutils.NewBackgroundStoppableWorkers(m.trajectoryLoop)
	m.collisionWorkers = goutils.NewBackgroundStoppableWorkers(m.collisionCheckLoop)
	m.replannerWorkers = goutils.NewBackgroundStoppableWorkers(m.replannerLoop)
	m.supervisorWorkers = goutils.NewBackgroundStoppableWorkers(m.supervisorLoop)
}

// Stop signals shutdown and blocks until all four threads have joined,
// per Testable Property S6.
func (m *Manager) Stop() {
	m.stopOnce.Do(func() {
		select {
		case m.faultCh <- nil:
		default:
		}
	})
	m.supervisorWorkers.Stop()
}

// Metrics returns the manager's in-process counters.
func (m *Manager) Metrics() MetricsSnapshot { return m.metrics.Snapshot() }

// References returns the channel the trajectory thread publishes
// configuration references on; the embedding trajectory interpolator reads
// from it.
func (m *Manager) References() <-chan replanpath.Configuration { return m.referenceCh }

// CurrentConfiguration returns a snapshot of the robot's current reference
// configuration.
func (m *Manager) CurrentConfiguration() replanpath.Configuration {
	m.trjMtx.Lock()
	defer m.trjMtx.Unlock()
	return m.currentConfiguration.Clone()
}

// ExecutingPath returns a clone of the currently-executing path, safe to
// inspect without racing the manager's own mutation of it.
func (m *Manager) ExecutingPath() (*replanpath.Path, error) {
	m.pathsMtx.Lock()
	defer m.pathsMtx.Unlock()
	return m.executingPath.Clone()
}

func (m *Manager) trajectoryLoop(ctx context.Context) {
	ticker := m.clock.Ticker(m.cfg.Dt)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			m.tick()
		}
	}
}

// tick advances the interpolation cursor by one node and publishes the new
// reference, matching the "reads executing_path + cursor under trj_mtx;
// publishes; advances cursor" description in SPEC_FULL §4.5. When
// cfg.MaxJointSpeed is set (Testable Property 5), a step that would move the
// reference further than max_joint_speed*dt is clamped to an intermediate
// configuration along the segment instead of jumping straight to the next
// node; the cursor only advances once the next node is actually reached.
// When cfg.GoalTol is set, a reference within tolerance of the path's goal
// holds in place rather than continuing to advance.
func (m *Manager) tick() {
	m.trjMtx.Lock()
	defer m.trjMtx.Unlock()

	m.pathsMtx.Lock()
	path := m.executingPath
	m.pathsMtx.Unlock()
	if path == nil {
		return
	}
	nodes := path.Nodes()
	if len(nodes) == 0 {
		return
	}
	metric := path.Tree().Metric()
	if m.cfg.GoalTol > 0 {
		if metric.Cost(m.currentConfiguration, path.Goal().Q()) <= m.cfg.GoalTol {
			return
		}
	}
	if m.cursor+1 >= len(nodes) {
		return
	}

	target := nodes[m.cursor+1].Q()
	maxStep := m.cfg.MaxJointSpeed * m.cfg.Dt.Seconds()
	if maxStep > 0 {
		if dist := metric.Cost(m.currentConfiguration, target); dist > maxStep {
			next, err := replanpath.Lerp(m.currentConfiguration, target, maxStep/dist)
			if err == nil {
				m.currentConfiguration = next
				select {
				case m.referenceCh <- m.currentConfiguration:
				default:
				}
				return
			}
		}
	}

	m.cursor++
	m.currentConfiguration = target
	select {
	case m.referenceCh <- m.currentConfiguration:
	default:
	}
}

func (m *Manager) collisionCheckLoop(ctx context.Context) {
	ticker := m.clock.Ticker(m.cfg.CollisionCheckPeriod())
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := m.collisionCheckCycle(ctx); err != nil {
				m.reportFault(errors.Wrap(err, "collision-check cycle"))
				return
			}
		}
	}
}

// collisionCheckCycle implements the periodic scene pull, parallel
// revalidation fan-out, and obstruction signaling of SPEC_FULL §4.5.
func (m *Manager) collisionCheckCycle(ctx context.Context) error {
	m.sceneMtx.Lock()
	scene, err := m.sceneSource.SampleScene(ctx)
	if err != nil {
		m.sceneMtx.Unlock()
		return ErrSceneFault
	}
	m.scene = scene
	m.sceneMtx.Unlock()

	m.pathsMtx.Lock()
	updateSSMObstacles(m.executingPath.Tree(), ctx, scene)
	currentClone, err := m.executingPath.Clone()
	m.pathsMtx.Unlock()
	if err != nil {
		return errors.Wrap(err, "clone executing path")
	}

	m.otherPathsMtx.Lock()
	otherClones := make([]*replanpath.Path, 0, len(m.otherPaths))
	for _, p := range m.otherPaths {
		updateSSMObstacles(p.Tree(), ctx, scene)
		clone, err := p.Clone()
		if err != nil {
			continue
		}
		otherClones = append(otherClones, clone)
	}
	m.otherPathsMtx.Unlock()

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error { return revalidateTree(gctx, currentClone.Tree()) })
	for _, p := range otherClones {
		p := p
		g.Go(func() error { return revalidateTree(gctx, p.Tree()) })
	}
	if err := g.Wait(); err != nil {
		return errors.Wrap(err, "revalidate paths")
	}

	cursor := m.cursorSnapshot()
	m.pathsMtx.Lock()
	writeBackCosts(m.executingPath.Tree(), currentClone.Tree())
	obstructedAhead := pathObstructedBeyond(m.executingPath, cursor)
	m.pathsMtx.Unlock()

	m.otherPathsMtx.Lock()
	for i, clone := range otherClones {
		if i < len(m.otherPaths) {
			writeBackCosts(m.otherPaths[i].Tree(), clone.Tree())
		}
	}
	m.otherPathsMtx.Unlock()

	if obstructedAhead {
		m.metrics.recordObstruction()
		select {
		case m.obstructedCh <- struct{}{}:
		default:
		}
	}
	return nil
}

func (m *Manager) cursorSnapshot() int {
	m.trjMtx.Lock()
	defer m.trjMtx.Unlock()
	return m.cursor
}

func updateSSMObstacles(tree *replanpath.Tree, ctx context.Context, scene Scene) {
	if ssmMetric, ok := tree.Metric().(*SSMMetric); ok {
		ssmMetric.UpdateObstacles(ctx, scene.Obstacles, scene.ObstaclePositions)
	}
}

// revalidateTree re-checks every edge in tree against its own checker and
// recomputes its cost via its own metric, setting +Inf on any edge that is
// no longer collision-free. It never changes tree topology.
func revalidateTree(ctx context.Context, tree *replanpath.Tree) error {
	checker := tree.Checker()
	metric := tree.Metric()
	for i := 0; i < tree.NumEdges(); i++ {
		if err := ctx.Err(); err != nil {
			return err
		}
		e := tree.EdgeByID(i)
		if e == nil || e.Removed() {
			continue
		}
		if checker.CheckEdge(ctx, e) {
			e.SetCost(metric.Cost(e.ParentQ(), e.ChildQ()))
		} else {
			e.SetCost(math.Inf(1))
		}
	}
	return nil
}

// writeBackCosts copies every edge's cost from clone onto the corresponding
// edge (by arena id) of live. Safe because revalidateTree never changes
// topology, so ids line up exactly between a tree and any clone of it.
func writeBackCosts(live, clone *replanpath.Tree) {
	for i := 0; i < clone.NumEdges() && i < live.NumEdges(); i++ {
		ce, le := clone.EdgeByID(i), live.EdgeByID(i)
		if ce == nil || le == nil {
			continue
		}
		le.SetCost(ce.Cost())
	}
}

func pathObstructedBeyond(path *replanpath.Path, cursor int) bool {
	edges := path.Edges()
	for i := cursor; i < len(edges); i++ {
		if edges[i].Obstructed() {
			return true
		}
	}
	return false
}

func (m *Manager) replannerLoop(ctx context.Context) {
	ticker := m.clock.Ticker(m.cfg.DtReplan)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-m.obstructedCh:
			m.runReplanCycle(ctx)
		case <-ticker.C:
			m.runReplanCycle(ctx)
		}
	}
}

// reachedGoal reports whether the robot's current reference configuration is
// already within cfg.GoalTol of the executing path's goal, in which case the
// manager stops replanning rather than continuing to chase an already-met
// target. A non-positive GoalTol disables this check entirely.
func (m *Manager) reachedGoal() bool {
	if m.cfg.GoalTol <= 0 {
		return false
	}
	m.pathsMtx.Lock()
	path := m.executingPath
	m.pathsMtx.Unlock()
	if path == nil {
		return false
	}
	conf := m.CurrentConfiguration()
	return path.Tree().Metric().Cost(conf, path.Goal().Q()) <= m.cfg.GoalTol
}

// runReplanCycle snapshots current configuration and path, invokes the
// pluggable replanner under a local deadline, and on success performs the
// hot-swap, per SPEC_FULL §4.5.
func (m *Manager) runReplanCycle(ctx context.Context) {
	if m.reachedGoal() {
		return
	}

	m.pathsMtx.Lock()
	obstructed := m.executingPath != nil && m.executingPath.Obstructed()
	var pathClone *replanpath.Path
	var cloneErr error
	if obstructed {
		pathClone, cloneErr = m.executingPath.Clone()
	}
	m.pathsMtx.Unlock()
	if !obstructed || cloneErr != nil {
		return
	}

	currentConf := m.CurrentConfiguration()
	start := m.clock.Now()
	deadline := m.cfg.ReplanDeadline(start)
	replanCtx, cancel := replanContext(ctx, deadline)
	defer cancel()

	var result Result
	var retired *replanpath.Path
	var err error
	if mp, ok := m.replanner.(MultiPathReplanner); ok {
		m.otherPathsMtx.Lock()
		otherClones := make([]*replanpath.Path, 0, len(m.otherPaths))
		for _, p := range m.otherPaths {
			if c, cerr := p.Clone(); cerr == nil {
				otherClones = append(otherClones, c)
			}
		}
		m.otherPathsMtx.Unlock()
		var mpResult MultiPathResult
		mpResult, err = mp.ReplanWithAlternates(replanCtx, currentConf, pathClone, otherClones, deadline)
		result, retired = mpResult.Result, mpResult.RetiredPath
	} else {
		result, err = m.replanner.Replan(replanCtx, currentConf, pathClone, deadline)
	}
	if err != nil {
		if errors.Is(err, ErrInvariant) {
			m.reportFault(err)
		} else {
			m.logger.Errorw("replan attempt failed", "error", err)
		}
		return
	}

	if !result.Success {
		if result.Mutated {
			m.metrics.recordRollback()
		}
		return
	}

	m.metrics.recordReplanSuccess()
	if err := m.startReplannedPathFromNewCurrentConf(currentConf, result.ReplannedPath); err != nil {
		if errors.Is(err, ErrInvariant) {
			m.reportFault(err)
		} else {
			m.logger.Errorw("hot-swap failed", "error", err)
		}
		return
	}
	if retired != nil {
		m.addOtherPath(retired)
	}
}

// startReplannedPathFromNewCurrentConf is the hot-swap protocol of
// SPEC_FULL §4.5: split/reroot the replanned tree at conf, replace the
// executing path, then reset the interpolation cursor. paths_mtx and
// trj_mtx are never held simultaneously here, consistent with the strict
// lock order (each is acquired, used, and released before the next).
func (m *Manager) startReplannedPathFromNewCurrentConf(conf replanpath.Configuration, replanned *replanpath.Path) error {
	m.pathsMtx.Lock()
	tree := replanned.Tree()
	originalRoot := tree.Root()
	goalNode := replanned.Goal()
	nodeReplan, err := insertAtConfiguration(replanned, conf)
	if err != nil {
		m.pathsMtx.Unlock()
		return errors.Wrap(err, "hot-swap: locate current configuration on replanned path")
	}
	if err := tree.Reroot(nodeReplan); err != nil {
		m.pathsMtx.Unlock()
		return errors.Wrap(err, "hot-swap: reroot")
	}
	newPath, err := tree.PathTo(goalNode)
	if err != nil {
		// The replanner reported success but the goal is unreachable from the
		// new root: a fatal invariant violation. Try to leave the tree rerooted
		// back where it started rather than stranded mid-mutation, and report
		// both the original failure and any failure hit while restoring it.
		restoreErr := tree.Reroot(originalRoot)
		m.pathsMtx.Unlock()
		return multierr.Combine(
			ErrInvariant,
			errors.Wrap(err, "hot-swap: path_to(goal)"),
			errors.Wrap(restoreErr, "hot-swap: restore original root after failed path_to"),
		)
	}
	m.executingPath = newPath
	m.currentPathSyncNeeded = true
	m.pathsMtx.Unlock()

	m.trjMtx.Lock()
	m.currentConfiguration = conf
	m.cursor = 0
	m.trjMtx.Unlock()

	m.metrics.recordHotSwap()
	return nil
}

func (m *Manager) addOtherPath(p *replanpath.Path) {
	m.otherPathsMtx.Lock()
	defer m.otherPathsMtx.Unlock()
	m.otherPaths = append(m.otherPaths, p)
	if m.cfg.NOtherPaths > 0 && len(m.otherPaths) > m.cfg.NOtherPaths {
		m.otherPaths = m.otherPaths[len(m.otherPaths)-m.cfg.NOtherPaths:]
	}
}

func (m *Manager) reportFault(err error) {
	select {
	case m.faultCh <- err:
	default:
	}
}

// supervisorLoop is the fourth long-lived thread: it waits for either
// external cancellation or an internal fault, stops the other three
// threads, and emits one final hold reference before returning, per
// SPEC_FULL §7's transient-scene-fault handling.
func (m *Manager) supervisorLoop(ctx context.Context) {
	select {
	case <-ctx.Done():
	case err := <-m.faultCh:
		if err != nil {
			m.logger.Errorw("replanner manager: fatal fault, shutting down", "error", err)
		}
	}
	m.trajectoryWorkers.Stop()
	m.collisionWorkers.Stop()
	m.replannerWorkers.Stop()

	m.trjMtx.Lock()
	conf := m.currentConfiguration
	m.trjMtx.Unlock()
	select {
	case m.referenceCh <- conf:
	default:
	}
}
