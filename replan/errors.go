package replan

import "github.com/pkg/errors"

// ErrPrecondition marks a precondition violation as described in SPEC_FULL
// §7: the replanner was asked to act on a start node not in its tree, or a
// replan-goal could not be located. Conforming replanners log it and return
// success=false, mutated=false rather than propagating it further.
var ErrPrecondition = errors.New("replan: precondition violation")

// ErrInvariant marks a fatal invariant violation (e.g. reroot failing to
// restore the original root). These denote bugs in the tree editor and must
// never occur with conforming primitives; the manager responds by setting
// stop and unwinding every thread rather than attempting to continue.
var ErrInvariant = errors.New("replan: invariant violation")

// ErrSceneFault marks a transient failure of the external scene service.
// The manager responds by setting stop and shutting down all threads
// cleanly, per SPEC_FULL §7.
var ErrSceneFault = errors.New("replan: scene service fault")

// replanFailureError accumulates the last few sampling/rewiring failures
// encountered during an unsuccessful replan attempt, so a human operator can
// see why a given call failed instead of just "success=false". Grounded on
// the teacher's ikConstraintError accumulation pattern in
// motionplan/armplanning (see DESIGN.md).
type replanFailureError struct {
	reasons []string
}

func newReplanFailureError() *replanFailureError {
	return &replanFailureError{}
}

func (e *replanFailureError) record(reason string) {
	if e == nil {
		return
	}
	const maxReasons = 5
	e.reasons = append(e.reasons, reason)
	if len(e.reasons) > maxReasons {
		e.reasons = e.reasons[len(e.reasons)-maxReasons:]
	}
}

func (e *replanFailureError) Error() string {
	if len(e.reasons) == 0 {
		return "replan: failed for an unrecorded reason"
	}
	msg := "replan: failed: "
	for i, r := range e.reasons {
		if i > 0 {
			msg += "; "
		}
		msg += r
	}
	return msg
}
