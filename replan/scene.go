package replan

import (
	"context"

	"github.com/golang/geo/r3"
)

// Scene is a snapshot of the live collision environment as reported by the
// embedding application's scene service: obstacle Cartesian positions (used
// by the SSM cost term) plus whatever opaque token the real geometric
// checker needs to know a new snapshot is available. The geometric checker
// itself is out of scope (SPEC_FULL §1); this is only the sliver of scene
// state the replanning engine's own cost model consults directly.
type Scene struct {
	ObstaclePositions []r3.Vector
	// Obstacles holds the scene service's own identifier for each entry of
	// ObstaclePositions (same index). SetPOINames/UnawareObstacles key off
	// these identifiers, not position order, so the SSM term tracks a named
	// obstacle correctly even as the scene reorders or drops others.
	Obstacles []string
}

// SceneSource is the external collaborator the collision-check thread polls
// each cycle. A call-failure here is the "transient scene fault" of
// SPEC_FULL §7 and stops every manager thread cleanly.
type SceneSource interface {
	SampleScene(ctx context.Context) (Scene, error)
}
