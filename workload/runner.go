package workload

import (
	"github.com/babyworm/MQSim-CXL/sim/timing"
	"github.com/babyworm/MQSim-CXL/trafficgen"
)

// Device is the part of a traffic generator a Runner drives.
type Device interface {
	SubmitRead(
		address uint64,
		size uint32,
		callback trafficgen.Callback,
	) (trafficgen.RequestID, error)
	SubmitWrite(
		address uint64,
		size uint32,
		data []byte,
		callback trafficgen.Callback,
	) (trafficgen.RequestID, error)
	RunUntil(t timing.VTime) error
	RunUntilComplete(maxTime timing.VTime) (bool, error)
	CurrentTimeNS() timing.VTime
}

// Result summarizes a run.
type Result struct {
	Submitted int
	Completed int

	// Finished is false if the time limit was reached before every request
	// completed.
	Finished bool

	EndTime timing.VTime
}

// A Runner issues ops to a device at their issue times.
type Runner struct {
	device Device

	// MaxTime stops the run when reached. Zero means no limit.
	MaxTime timing.VTime

	// OnSubmit, if set, sees every op the device accepted.
	OnSubmit func(op Op)

	// OnComplete, if set, sees every completion.
	OnComplete func(c trafficgen.Completion)

	// Step, if set, wraps every call that advances simulated time.
	Step func(f func())

	completed int
}

// NewRunner creates a Runner for the device.
func NewRunner(device Device) *Runner {
	return &Runner{device: device}
}

// Run issues the ops in order and waits for all of them to complete.
func (r *Runner) Run(ops []Op) (Result, error) {
	res := Result{}
	r.completed = 0

	var lastDone *bool

	for _, op := range ops {
		if op.AfterPrevious && lastDone != nil {
			ok, err := r.waitFor(lastDone)
			if err != nil || !ok {
				return r.finish(res, false), err
			}
		}

		if op.IssueTime > r.device.CurrentTimeNS() {
			if r.MaxTime != 0 && op.IssueTime > r.MaxTime {
				err := r.advance(r.MaxTime)
				return r.finish(res, false), err
			}

			if err := r.advance(op.IssueTime); err != nil {
				return r.finish(res, false), err
			}
		}

		done := new(bool)
		if err := r.submit(op, done); err != nil {
			return r.finish(res, false), err
		}

		lastDone = done
		res.Submitted++

		if r.OnSubmit != nil {
			r.OnSubmit(op)
		}
	}

	var finished bool
	var err error

	r.step(func() {
		finished, err = r.device.RunUntilComplete(r.MaxTime)
	})

	return r.finish(res, finished), err
}

func (r *Runner) submit(op Op, done *bool) error {
	cb := func(c trafficgen.Completion) {
		*done = true
		r.completed++

		if r.OnComplete != nil {
			r.OnComplete(c)
		}
	}

	var err error

	r.step(func() {
		if op.Kind == trafficgen.Write {
			_, err = r.device.SubmitWrite(op.Address, op.Size, op.Data, cb)
		} else {
			_, err = r.device.SubmitRead(op.Address, op.Size, cb)
		}
	})

	return err
}

// waitFor drains the device, which completes the request behind done along
// with every request issued before it.
func (r *Runner) waitFor(done *bool) (bool, error) {
	if *done {
		return true, nil
	}

	var err error

	r.step(func() {
		_, err = r.device.RunUntilComplete(r.MaxTime)
	})

	return *done, err
}

func (r *Runner) advance(t timing.VTime) error {
	var err error

	r.step(func() {
		err = r.device.RunUntil(t)
	})

	return err
}

func (r *Runner) step(f func()) {
	if r.Step != nil {
		r.Step(f)
		return
	}

	f()
}

func (r *Runner) finish(res Result, finished bool) Result {
	res.Completed = r.completed
	res.Finished = finished
	res.EndTime = r.device.CurrentTimeNS()

	return res
}
