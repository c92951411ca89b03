package replan

import (
	"time"

	"github.com/pkg/errors"
)

// ReplannerType enumerates the pluggable repair strategies named in
// SPEC_FULL §6. MPRRT, DRRT and anytimeDRRT are accepted as configuration
// values for compatibility with the source taxonomy this engine was
// distilled from, but all three resolve to the same DRRT★ implementation:
// the spec commits to rewireBehindObs semantics for all of them (DESIGN.md,
// Open Question (b)).
type ReplannerType string

// Recognized values of ReplannerType.
const (
	ReplannerMPRRT       ReplannerType = "MPRRT"
	ReplannerDRRT        ReplannerType = "DRRT"
	ReplannerDRRTStar    ReplannerType = "DRRT*"
	ReplannerAnytimeDRRT ReplannerType = "anytimeDRRT"
	ReplannerMARS        ReplannerType = "MARS"
	ReplannerMARSHA      ReplannerType = "MARSHA"
)

// SSMConfig carries the MARSHA-only speed-and-separation-monitoring
// parameters enumerated in SPEC_FULL §6. It is ignored when ReplannerType is
// not ReplannerMARSHA.
type SSMConfig struct {
	UnawareObstacles []string `json:"unaware_obstacles"`
	POINames         []string `json:"poi_names"`
	BaseFrame        string   `json:"base_frame"`
	ToolFrame        string   `json:"tool_frame"`
	MaxStepSize      float64  `json:"ssm_max_step_size"`
	Threads          int      `json:"ssm_threads"`
	MaxCartAcc       float64  `json:"max_cart_acc"`
	Tr               float64  `json:"Tr"`
	MinDistance      float64  `json:"min_distance"`
	VH               float64  `json:"v_h"`
}

// ManagerConfig mirrors the configuration inputs enumerated in SPEC_FULL §6,
// field names and JSON tags matching the spec's keys verbatim.
type ManagerConfig struct {
	ReplannerType ReplannerType `json:"replanner_type"`

	// Dt is the trajectory thread's tick period. It is not among the
	// enumerated §6 keys but is the ambient counterpart every period in
	// SPEC_FULL §4.5/§5 is measured against.
	Dt time.Duration `json:"dt"`
	// MaxJointSpeed bounds how far the reference configuration may move
	// between two ticks, used to check Testable Property 5.
	MaxJointSpeed float64 `json:"max_joint_speed"`

	// DtReplan is the replanner period and the base the replan deadline is
	// derived from: deadline = 0.9 * DtReplan.
	DtReplan time.Duration `json:"dt_replan"`
	// CollisionCheckerThreadFrequency is the collision-check thread's tick
	// rate, in Hz.
	CollisionCheckerThreadFrequency float64 `json:"collision_checker_thread_frequency"`
	// GoalTol is the L2 tolerance used to decide the robot has reached the
	// goal and the manager can stop replanning.
	GoalTol float64 `json:"goal_tol"`
	// MaxDistance is the RRT step limit used throughout the tree editor.
	MaxDistance float64 `json:"max_distance"`

	// NOtherPaths bounds the size of the MARS alternate-path bank.
	NOtherPaths int `json:"n_other_paths"`

	// SSM carries the MARSHA-only parameters; zero value when unused.
	SSM SSMConfig `json:"marsha"`
}

// Validate checks the handful of invariants the manager depends on to avoid
// division-by-zero or degenerate deadlines; it does not validate SSM fields,
// which are opaque to everything but the SSM estimator itself.
func (c ManagerConfig) Validate() error {
	if c.Dt <= 0 {
		return errors.New("replan: dt must be positive")
	}
	if c.DtReplan <= 0 {
		return errors.New("replan: dt_replan must be positive")
	}
	if c.CollisionCheckerThreadFrequency <= 0 {
		return errors.New("replan: collision_checker_thread_frequency must be positive")
	}
	if c.MaxDistance <= 0 {
		return errors.New("replan: max_distance must be positive")
	}
	if c.ReplannerType == ReplannerMARS || c.ReplannerType == ReplannerMARSHA {
		if c.NOtherPaths <= 0 {
			return errors.New("replan: n_other_paths must be positive for MARS/MARSHA")
		}
	}
	return nil
}

// ReplanDeadline returns the cooperative deadline a single replan call must
// respect, measured from start.
func (c ManagerConfig) ReplanDeadline(start time.Time) time.Time {
	return start.Add(time.Duration(0.9 * float64(c.DtReplan)))
}

// CollisionCheckPeriod converts CollisionCheckerThreadFrequency into a
// period for the collision-check thread's ticker.
func (c ManagerConfig) CollisionCheckPeriod() time.Duration {
	return time.Duration(float64(time.Second) / c.CollisionCheckerThreadFrequency)
}
