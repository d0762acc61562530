package timing

import (
	"errors"

	"github.com/babyworm/MQSim-CXL/sim/hooking"
)

// ErrScheduleInPast is returned when an event is scheduled before the current
// simulated time.
var ErrScheduleInPast = errors.New("scheduling an event earlier than current time")

// ErrTimeGoesBackward is returned when the engine is asked to move to a time
// earlier than the current simulated time.
var ErrTimeGoesBackward = errors.New("simulated time cannot go backward")

// TimeTeller can be used to get the current time.
type TimeTeller interface {
	Now() VTime
}

// EventScheduler can be used to schedule future events.
type EventScheduler interface {
	TimeTeller

	Schedule(e Event) error
}

// An Engine is a unit that keeps the discrete event simulation run.
//
// The engine has no wall-clock coupling. Time only moves when the owner asks
// the engine to advance.
type Engine interface {
	hooking.Hookable
	EventScheduler

	// AdvanceTo fires all the events that are due at or before t, in time
	// order, and leaves the engine at time t.
	AdvanceTo(t VTime) error

	// NextEventTime returns the time of the earliest pending event. The
	// second return value is false if no event is pending.
	NextEventTime() (VTime, bool)

	// PendingEvents returns the number of events that have not fired.
	PendingEvents() int

	// Run will process all the events until the queue drains.
	Run() error
}
