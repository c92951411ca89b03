// Package replanpath provides the configuration, tree, and path primitives
// that the online replanning engine edits in place: a rooted search tree of
// robot configurations, the ordered-edge paths cut through it, a local
// informed sampler biased toward a repair region, and the bounded-time tree
// editing operations (extend, rewire, reroot) that the replanners in package
// replan use to surgically patch a path around a newly discovered obstacle.
package replanpath
