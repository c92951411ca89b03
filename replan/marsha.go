package replan

import (
	"context"
	"math/rand"

	"github.com/golang/geo/r3"

	"go.viam.com/rdk/logging"

	"go.viam.com/replanner/replanpath"
)

// SSMMetric wraps an inner Metric and scales its cost by the SpeedFactor an
// SSMEstimator reports for the segment's midpoint in Cartesian space,
// implementing the "length-penalty metric" SPEC_FULL §4.4 specifies for
// MARSHA. toCartesian maps a joint-space Configuration to the tool-frame
// Cartesian point the SSM estimator reasons about; the actual kinematic
// chain evaluation behind it is out of scope (§1) and supplied by the
// embedding application.
type SSMMetric struct {
	inner       replanpath.Metric
	ssm         SSMEstimator
	toCartesian func(replanpath.Configuration) r3.Vector
}

// NewSSMMetric constructs an SSM-weighted metric.
func NewSSMMetric(inner replanpath.Metric, ssm SSMEstimator, toCartesian func(replanpath.Configuration) r3.Vector) *SSMMetric {
	return &SSMMetric{inner: inner, ssm: ssm, toCartesian: toCartesian}
}

// Cost implements replanpath.Metric.
func (m *SSMMetric) Cost(a, b replanpath.Configuration) float64 {
	base := m.inner.Cost(a, b)
	mid, err := replanpath.Lerp(a, b, 0.5)
	if err != nil {
		return base
	}
	factor := m.ssm.SpeedFactor(context.Background(), m.toCartesian(mid))
	return base * factor
}

// Clone implements replanpath.Metric.
func (m *SSMMetric) Clone() replanpath.Metric {
	return &SSMMetric{inner: m.inner.Clone(), ssm: m.ssm.Clone(), toCartesian: m.toCartesian}
}

// UpdateObstacles refreshes the obstacle positions this metric's SSM
// estimator reasons about in place, letting the collision-check thread keep
// a live, already-installed SSMMetric current each scene cycle before any
// clone of its owning tree is taken (SPEC_FULL §8 Testable Property S5).
// names is the scene's own per-obstacle identifier list, parallel to
// positions.
func (m *SSMMetric) UpdateObstacles(ctx context.Context, names []string, positions []r3.Vector) {
	m.ssm.SetObstaclePositions(ctx, names, positions)
}

// MARSHAReplanner is the human-aware variant of MARS: it weights every edge
// cost evaluated during the bridge search by an SSMMetric and forces
// full_net_search off, per SPEC_FULL §4.4.
type MARSHAReplanner struct {
	*MARSReplanner
	ssm         SSMEstimator
	toCartesian func(replanpath.Configuration) r3.Vector
}

// NewMARSHAReplanner constructs a MARSHA replanner. ssm and toCartesian are
// cloned/invoked per candidate bridge tree so concurrent attempts never
// share mutable SSM state.
func NewMARSHAReplanner(logger logging.Logger, maxDistance float64, rnd *rand.Rand, ssm SSMEstimator, toCartesian func(replanpath.Configuration) r3.Vector) *MARSHAReplanner {
	r := &MARSHAReplanner{
		MARSReplanner: NewMARSReplanner(logger, maxDistance, rnd, false),
		ssm:           ssm,
		toCartesian:   toCartesian,
	}
	r.MARSReplanner.prepareTree = func(t *replanpath.Tree) {
		t.SetMetric(NewSSMMetric(t.Metric(), r.ssm.Clone(), r.toCartesian))
	}
	return r
}
