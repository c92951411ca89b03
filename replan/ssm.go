package replan

import (
	"context"
	"math"

	"github.com/golang/geo/r3"
)

// SSMEstimator is the human-aware speed-and-separation-monitoring interface
// MARSHA weights edge cost by (SPEC_FULL §6, C8). It is an external
// collaborator in the sense that the actual safety-rated distance
// computation is owned by the embedding application; SpeedWeightedSSM below
// is a reference implementation adequate for testing and for deployments
// that have not wired a certified SSM service.
type SSMEstimator interface {
	// SetObstaclePositions replaces the estimator's notion of where every
	// tracked obstacle currently is, in the base frame. names and positions
	// are parallel slices: names[i] is the scene's own identifier for
	// positions[i], the same identifier SetPOINames consults to decide
	// awareness. A names slice shorter than positions falls back to a
	// synthetic identifier for any position beyond it.
	SetObstaclePositions(ctx context.Context, names []string, positions []r3.Vector)
	// SetPOINames records which obstacle identifiers are "aware" points of
	// interest; identifiers not present here never contribute to the SSM
	// term (though they still participate in collision checking elsewhere).
	SetPOINames(names []string)
	// Clone returns a thread-local copy sharing only immutable
	// configuration with the original.
	Clone() SSMEstimator
	// SpeedFactor returns a multiplier >= 1 applied to an edge's Euclidean
	// length cost, as a function of how close the edge's midpoint lies to
	// the nearest aware obstacle. A factor of 1 means "no safety penalty".
	SpeedFactor(ctx context.Context, edgeMidpoint r3.Vector) float64
}

// SpeedWeightedSSM is the default SSMEstimator: edges closer than Tr*VH to an
// aware obstacle are penalized, rising linearly to the maximum penalty at
// minDistance and staying there inside it, following the speed-and-
// separation reduction described in SPEC_FULL §6 (Tr, minDistance, vH taken
// from SSMConfig). Obstacles not named by SetPOINames are tracked (so
// collision checking elsewhere still sees them) but never move SpeedFactor.
type SpeedWeightedSSM struct {
	cfg SSMConfig

	obstacles map[string]r3.Vector
	aware     map[string]bool
}

// NewSpeedWeightedSSM constructs an estimator from MARSHA configuration.
func NewSpeedWeightedSSM(cfg SSMConfig) *SpeedWeightedSSM {
	s := &SpeedWeightedSSM{cfg: cfg, obstacles: map[string]r3.Vector{}, aware: map[string]bool{}}
	for _, n := range cfg.POINames {
		s.aware[n] = true
	}
	for _, n := range cfg.UnawareObstacles {
		s.aware[n] = false
	}
	return s
}

// SetObstaclePositions implements SSMEstimator. Each position is keyed by
// its caller-supplied identifier (names[i]), the same identifier
// SetPOINames/the cfg's UnawareObstacles list consult, so awareness is
// determined by the scene's own identity rather than by positional order. A
// position with no corresponding name falls back to a synthetic one.
func (s *SpeedWeightedSSM) SetObstaclePositions(_ context.Context, names []string, positions []r3.Vector) {
	for i, p := range positions {
		name := syntheticObstacleName(i)
		if i < len(names) && names[i] != "" {
			name = names[i]
		}
		s.obstacles[name] = p
	}
}

// SetPOINames implements SSMEstimator.
func (s *SpeedWeightedSSM) SetPOINames(names []string) {
	s.aware = make(map[string]bool, len(names))
	for _, n := range names {
		s.aware[n] = true
	}
}

// Clone implements SSMEstimator. cfg is immutable after construction and is
// shared; the live obstacle positions and the aware set (which SetPOINames
// replaces) are copied.
func (s *SpeedWeightedSSM) Clone() SSMEstimator {
	clone := &SpeedWeightedSSM{
		cfg:       s.cfg,
		obstacles: make(map[string]r3.Vector, len(s.obstacles)),
		aware:     make(map[string]bool, len(s.aware)),
	}
	for k, v := range s.obstacles {
		clone.obstacles[k] = v
	}
	for k, v := range s.aware {
		clone.aware[k] = v
	}
	return clone
}

// SpeedFactor implements SSMEstimator. Distance to the nearest aware
// obstacle at or below MinDistance saturates the penalty at its maximum;
// distance at or beyond Tr*VH (the reaction-time stopping margin) yields no
// penalty at all. Between those two, the factor rises linearly.
func (s *SpeedWeightedSSM) SpeedFactor(_ context.Context, edgeMidpoint r3.Vector) float64 {
	nearest := math.Inf(1)
	for name, pos := range s.obstacles {
		if !s.aware[name] {
			continue
		}
		if d := edgeMidpoint.Distance(pos); d < nearest {
			nearest = d
		}
	}
	if math.IsInf(nearest, 1) {
		return 1
	}
	safetyMargin := s.cfg.Tr * s.cfg.VH
	if safetyMargin <= s.cfg.MinDistance {
		safetyMargin = s.cfg.MinDistance + 1
	}
	if nearest <= s.cfg.MinDistance {
		return maxSSMPenalty
	}
	if nearest >= safetyMargin {
		return 1
	}
	frac := (safetyMargin - nearest) / (safetyMargin - s.cfg.MinDistance)
	return 1 + frac*(maxSSMPenalty-1)
}

// maxSSMPenalty is the cost multiplier applied to an edge whose midpoint
// sits at or inside MinDistance of an aware obstacle.
const maxSSMPenalty = 10.0

func syntheticObstacleName(i int) string {
	const letters = "abcdefghijklmnopqrstuvwxyz"
	return "obstacle-" + string(letters[i%len(letters)])
}
