package datarecording

import (
	"os"
	"strings"
	"time"
)

// RunInfo is a property of a simulation run.
type RunInfo struct {
	Property string
	Value    string
}

const runInfoTable = "run_info"

const timeLayout = "2006-01-02 15:04:05.000000000"

// RunRecorder records how a simulation run was started and how long it took.
type RunRecorder struct {
	recorder DataRecorder
	entries  []RunInfo
}

// NewRunRecorder creates a RunRecorder that writes into the given recorder.
func NewRunRecorder(recorder DataRecorder) *RunRecorder {
	recorder.CreateTable(runInfoTable, RunInfo{})

	return &RunRecorder{
		recorder: recorder,
	}
}

// Start records the start time, the command line, and the working directory.
func (e *RunRecorder) Start() {
	e.Set("Start Time", time.Now().Format(timeLayout))
	e.Set("Command", strings.Join(os.Args, " "))

	cwd, err := os.Getwd()
	if err != nil {
		panic(err)
	}

	e.Set("Working Directory", cwd)
}

// Set adds a property of the run. Properties are written when End is called.
func (e *RunRecorder) Set(property, value string) {
	e.entries = append(e.entries, RunInfo{Property: property, Value: value})
}

// End writes the buffered properties along with the end time.
func (e *RunRecorder) End() {
	e.Set("End Time", time.Now().Format(timeLayout))

	for _, entry := range e.entries {
		e.recorder.InsertData(runInfoTable, entry)
	}

	e.entries = nil

	e.recorder.Flush()
}
