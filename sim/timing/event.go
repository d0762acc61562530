// Package timing provides the discrete event engine that orders every
// completion in the simulated device.
package timing

import (
	"github.com/babyworm/MQSim-CXL/sim/hooking"
)

// VTime defines the time in the simulated space in the unit of nanosecond.
type VTime = uint64

// Commonly used durations.
const (
	Nanosecond  VTime = 1
	Microsecond VTime = 1000 * Nanosecond
	Millisecond VTime = 1000 * Microsecond
	Second      VTime = 1000 * Millisecond
)

// An Event is something going to happen in the future.
type Event interface {
	// Return the time that the event should happen
	Time() VTime

	// Returns the handler that can should handle the event
	Handler() Handler
}

// HookPosBeforeEvent is a hook position that triggers before handling an event.
var HookPosBeforeEvent = &hooking.HookPos{Name: "BeforeEvent"}

// HookPosAfterEvent is a hook position that triggers after handling an event.
var HookPosAfterEvent = &hooking.HookPos{Name: "AfterEvent"}

// EventBase provides the basic fields and getters for other events
type EventBase struct {
	time    VTime
	handler Handler
}

// NewEventBase creates a new EventBase
func NewEventBase(t VTime, handler Handler) *EventBase {
	e := new(EventBase)
	e.time = t
	e.handler = handler

	return e
}

// Time return the time that the event is going to happen
func (e EventBase) Time() VTime {
	return e.time
}

// Handler returns the handler to handle the event.
func (e EventBase) Handler() Handler {
	return e.handler
}

// A Handler defines a domain for the events.
//
// One event is always constraint to one Handler, which means the event can
// only be scheduled by one handler and can only directly modify that handler.
type Handler interface {
	Handle(e Event) error
}

// FuncEvent is an event that carries its own action.
type FuncEvent struct {
	*EventBase
	Action func(now VTime) error
}

// NewFuncEvent creates an event that runs action at time t.
func NewFuncEvent(t VTime, action func(now VTime) error) *FuncEvent {
	evt := &FuncEvent{Action: action}
	evt.EventBase = NewEventBase(t, funcHandler{})

	return evt
}

type funcHandler struct{}

func (funcHandler) Handle(e Event) error {
	return e.(*FuncEvent).Action(e.Time())
}
