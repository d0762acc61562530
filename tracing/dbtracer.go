package tracing

import (
	"sync"

	"github.com/babyworm/MQSim-CXL/datarecording"
	"github.com/babyworm/MQSim-CXL/sim/timing"
	"github.com/tebeka/atexit"
)

const (
	taskTableName = "trace"
	stepTableName = "trace_steps"
)

type taskTableEntry struct {
	ID        string
	ParentID  string
	Kind      string
	What      string
	Location  string
	StartTime uint64
	EndTime   uint64
}

type stepTableEntry struct {
	TaskID string
	What   string
	Time   uint64
}

// DBTracer is a tracer that stores the finished tasks into a DataRecorder.
type DBTracer struct {
	mu         sync.Mutex
	timeTeller timing.TimeTeller
	backend    datarecording.DataRecorder

	startTime, endTime timing.VTime

	tracingTasks map[string]Task
	terminated   bool
}

// NewDBTracer creates a new DBTracer. The tracer flushes its backend when the
// program exits through atexit.
func NewDBTracer(
	timeTeller timing.TimeTeller,
	dataRecorder datarecording.DataRecorder,
) *DBTracer {
	dataRecorder.CreateTable(taskTableName, taskTableEntry{})
	dataRecorder.CreateTable(stepTableName, stepTableEntry{})

	t := &DBTracer{
		timeTeller:   timeTeller,
		backend:      dataRecorder,
		tracingTasks: make(map[string]Task),
	}

	atexit.Register(func() {
		t.Terminate()
	})

	return t
}

// SetTimeRange limits the tracer to tasks that overlap with [startTime,
// endTime]. A zero value leaves that side open.
func (t *DBTracer) SetTimeRange(startTime, endTime timing.VTime) {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.startTime = startTime
	t.endTime = endTime
}

// StartTask marks the start of a task.
func (t *DBTracer) StartTask(task Task) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.terminated {
		return
	}

	task.StartTime = t.timeTeller.Now()
	if t.endTime > 0 && task.StartTime > t.endTime {
		return
	}

	t.tracingTasks[task.ID] = task
}

// StepTask records a step of a task that is being traced.
func (t *DBTracer) StepTask(task Task) {
	t.mu.Lock()
	defer t.mu.Unlock()

	originalTask, ok := t.tracingTasks[task.ID]
	if !ok {
		return
	}

	for _, step := range task.Steps {
		step.Time = t.timeTeller.Now()
		originalTask.Steps = append(originalTask.Steps, step)
	}

	t.tracingTasks[task.ID] = originalTask
}

// EndTask marks the end of a task and writes it to the backend.
func (t *DBTracer) EndTask(task Task) {
	t.mu.Lock()
	defer t.mu.Unlock()

	originalTask, ok := t.tracingTasks[task.ID]
	if !ok {
		return
	}

	delete(t.tracingTasks, task.ID)

	originalTask.EndTime = t.timeTeller.Now()
	if t.startTime > 0 && originalTask.EndTime < t.startTime {
		return
	}

	t.writeTask(originalTask)
}

// Terminate writes the tasks that are still running, with the current time as
// their end time, and flushes the backend.
func (t *DBTracer) Terminate() {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.terminated {
		return
	}

	t.terminated = true

	now := t.timeTeller.Now()
	for _, task := range t.tracingTasks {
		task.EndTime = now
		t.writeTask(task)
	}

	t.tracingTasks = nil
	t.backend.Flush()
}

func (t *DBTracer) writeTask(task Task) {
	t.backend.InsertData(taskTableName, taskTableEntry{
		ID:        task.ID,
		ParentID:  task.ParentID,
		Kind:      task.Kind,
		What:      task.What,
		Location:  task.Where,
		StartTime: uint64(task.StartTime),
		EndTime:   uint64(task.EndTime),
	})

	for _, step := range task.Steps {
		t.backend.InsertData(stepTableName, stepTableEntry{
			TaskID: task.ID,
			What:   step.What,
			Time:   uint64(step.Time),
		})
	}
}
