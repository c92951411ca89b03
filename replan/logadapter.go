package replan

import "go.viam.com/rdk/logging"

// NewStandaloneLogger builds a logging.Logger for embedding applications
// that run this engine outside a full rdk Robot, grounded on the teacher's
// motionPlanner_test.go pattern of constructing a logger directly rather
// than pulling one from a resource graph.
func NewStandaloneLogger(name string) logging.Logger {
	return logging.NewLogger(name)
}
