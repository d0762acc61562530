package tracing

import (
	"github.com/babyworm/MQSim-CXL/sim/timing"
)

// AverageTimeTracer keeps the mean and the maximum duration of the tasks that
// pass its filter. On "req_in" tasks this is the request latency seen by the
// host.
type AverageTimeTracer struct {
	*inflight

	averageTime float64
	maxTime     timing.VTime
	taskCount   uint64
}

// NewAverageTimeTracer creates a new AverageTimeTracer.
func NewAverageTimeTracer(
	timeTeller timing.TimeTeller,
	filter TaskFilter,
) *AverageTimeTracer {
	return &AverageTimeTracer{
		inflight: newInflight(timeTeller, filter),
	}
}

// AverageTime returns the mean duration of the finished tasks in ns.
func (t *AverageTimeTracer) AverageTime() float64 {
	t.lock.Lock()
	defer t.lock.Unlock()

	return t.averageTime
}

// MaxTime returns the longest duration of the finished tasks.
func (t *AverageTimeTracer) MaxTime() timing.VTime {
	t.lock.Lock()
	defer t.lock.Unlock()

	return t.maxTime
}

// TotalCount returns the number of finished tasks.
func (t *AverageTimeTracer) TotalCount() uint64 {
	t.lock.Lock()
	defer t.lock.Unlock()

	return t.taskCount
}

// StartTask records the start time of the task.
func (t *AverageTimeTracer) StartTask(task Task) {
	t.start(task)
}

// StepTask is a no-op.
func (t *AverageTimeTracer) StepTask(_ Task) {}

// EndTask folds the duration of the task into the mean.
func (t *AverageTimeTracer) EndTask(task Task) {
	t.lock.Lock()
	defer t.lock.Unlock()

	d, ok := t.end(task)
	if !ok {
		return
	}

	t.taskCount++
	t.averageTime += (float64(d) - t.averageTime) / float64(t.taskCount)
	t.maxTime = max(t.maxTime, d)
}
