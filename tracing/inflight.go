package tracing

import (
	"sync"

	"github.com/babyworm/MQSim-CXL/sim/timing"
)

// inflight remembers when the accepted tasks started so that the duration
// tracers can measure them when they end.
type inflight struct {
	timeTeller timing.TimeTeller
	filter     TaskFilter

	lock  sync.Mutex
	tasks map[string]timing.VTime
}

func newInflight(timeTeller timing.TimeTeller, filter TaskFilter) *inflight {
	return &inflight{
		timeTeller: timeTeller,
		filter:     filter,
		tasks:      make(map[string]timing.VTime),
	}
}

func (f *inflight) start(task Task) {
	now := f.timeTeller.Now()

	if !f.filter(task) {
		return
	}

	f.lock.Lock()
	f.tasks[task.ID] = now
	f.lock.Unlock()
}

// end returns how long the task took. It must be called with the lock held.
func (f *inflight) end(task Task) (timing.VTime, bool) {
	now := f.timeTeller.Now()

	startTime, ok := f.tasks[task.ID]
	if !ok {
		return 0, false
	}

	delete(f.tasks, task.ID)

	return now - startTime, true
}
