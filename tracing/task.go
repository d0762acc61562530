package tracing

import "github.com/babyworm/MQSim-CXL/sim/timing"

// A TaskStep represents a milestone in the processing of task
type TaskStep struct {
	Time timing.VTime `json:"time"`
	What string       `json:"what"`
}

// A Task is a piece of work done by a domain, such as serving a request or
// filling a cache line from the flash.
type Task struct {
	ID        string       `json:"id"`
	ParentID  string       `json:"parent_id"`
	Kind      string       `json:"kind"`
	What      string       `json:"what"`
	Where     string       `json:"where"`
	StartTime timing.VTime `json:"start_time"`
	EndTime   timing.VTime `json:"end_time"`
	Steps     []TaskStep   `json:"steps"`
	Detail    interface{}  `json:"-"`
}

// TaskFilter is a function that can filter interesting tasks. If this function
// returns true, the task is considered useful.
type TaskFilter func(t Task) bool

// KindIs returns a filter that accepts tasks of the given kind.
func KindIs(kind string) TaskFilter {
	return func(t Task) bool {
		return t.Kind == kind
	}
}
