// Package replan implements the replanning strategies (DRRT★, MARS, MARSHA)
// and the Replanner Manager that drives trajectory execution, collision
// checking, and bounded-time path repair around them.
package replan
