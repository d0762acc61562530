package tracing

import (
	"sync"
)

// StepCountTracer counts the steps of the tasks that pass its filter. On
// "req_in" tasks, StepCount("line_miss") is the number of missed lines and
// TaskCount("line_miss") the number of requests that missed at least once.
type StepCountTracer struct {
	filter TaskFilter

	lock      sync.Mutex
	seen      map[string]map[string]bool
	stepNames []string
	steps     map[string]uint64
	tasks     map[string]uint64
}

// NewStepCountTracer creates a new StepCountTracer.
func NewStepCountTracer(filter TaskFilter) *StepCountTracer {
	return &StepCountTracer{
		filter: filter,
		seen:   make(map[string]map[string]bool),
		steps:  make(map[string]uint64),
		tasks:  make(map[string]uint64),
	}
}

// StepNames returns the step names in the order they were first reached.
func (t *StepCountTracer) StepNames() []string {
	t.lock.Lock()
	defer t.lock.Unlock()

	return append([]string(nil), t.stepNames...)
}

// StepCount returns how many times the step was reached.
func (t *StepCountTracer) StepCount(stepName string) uint64 {
	t.lock.Lock()
	defer t.lock.Unlock()

	return t.steps[stepName]
}

// TaskCount returns how many tasks reached the step at least once.
func (t *StepCountTracer) TaskCount(stepName string) uint64 {
	t.lock.Lock()
	defer t.lock.Unlock()

	return t.tasks[stepName]
}

// StartTask starts following the task if it passes the filter.
func (t *StepCountTracer) StartTask(task Task) {
	if !t.filter(task) {
		return
	}

	t.lock.Lock()
	t.seen[task.ID] = make(map[string]bool)
	t.lock.Unlock()
}

// StepTask counts the steps of a followed task.
func (t *StepCountTracer) StepTask(task Task) {
	t.lock.Lock()
	defer t.lock.Unlock()

	seen, ok := t.seen[task.ID]
	if !ok {
		return
	}

	for _, step := range task.Steps {
		if _, known := t.steps[step.What]; !known {
			t.stepNames = append(t.stepNames, step.What)
		}

		t.steps[step.What]++

		if !seen[step.What] {
			seen[step.What] = true
			t.tasks[step.What]++
		}
	}
}

// EndTask stops following the task.
func (t *StepCountTracer) EndTask(task Task) {
	t.lock.Lock()
	delete(t.seen, task.ID)
	t.lock.Unlock()
}
