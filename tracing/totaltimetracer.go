package tracing

import (
	"github.com/babyworm/MQSim-CXL/sim/timing"
)

// TotalTimeTracer sums the durations of the tasks that pass its filter.
// Overlapping tasks are counted separately, so the total can exceed the
// simulated time, for example the total time of fills spent in parallel on
// several dies.
type TotalTimeTracer struct {
	*inflight

	totalTime timing.VTime
}

// NewTotalTimeTracer creates a new TotalTimeTracer.
func NewTotalTimeTracer(
	timeTeller timing.TimeTeller,
	filter TaskFilter,
) *TotalTimeTracer {
	return &TotalTimeTracer{
		inflight: newInflight(timeTeller, filter),
	}
}

// TotalTime returns the sum of the durations of the finished tasks.
func (t *TotalTimeTracer) TotalTime() timing.VTime {
	t.lock.Lock()
	defer t.lock.Unlock()

	return t.totalTime
}

// StartTask records the start time of the task.
func (t *TotalTimeTracer) StartTask(task Task) {
	t.start(task)
}

// StepTask is a no-op.
func (t *TotalTimeTracer) StepTask(_ Task) {}

// EndTask adds the duration of the task.
func (t *TotalTimeTracer) EndTask(task Task) {
	t.lock.Lock()
	defer t.lock.Unlock()

	if d, ok := t.end(task); ok {
		t.totalTime += d
	}
}
