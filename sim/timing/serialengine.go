package timing

import (
	"fmt"
	"log"
	"reflect"

	"github.com/babyworm/MQSim-CXL/sim/hooking"
)

// A SerialEngine is an Engine that always run events one after another.
type SerialEngine struct {
	hooking.HookableBase

	time  VTime
	queue EventQueue

	dispatching bool
}

// NewSerialEngine creates a SerialEngine
func NewSerialEngine() *SerialEngine {
	e := new(SerialEngine)
	e.queue = NewEventQueue()

	return e
}

// Name returns the name of the engine.
func (e *SerialEngine) Name() string {
	return "SerialEngine"
}

// Now returns the current time at which the engine is at. Specifically, the
// run time of the current event.
func (e *SerialEngine) Now() VTime {
	return e.time
}

// Schedule register an event to be happen in the future.
func (e *SerialEngine) Schedule(evt Event) error {
	if evt.Time() < e.time {
		return fmt.Errorf("%w: event at %d ns, now %d ns",
			ErrScheduleInPast, evt.Time(), e.time)
	}

	e.queue.Push(evt)

	return nil
}

// NextEventTime returns the time of the earliest pending event.
func (e *SerialEngine) NextEventTime() (VTime, bool) {
	if e.queue.Len() == 0 {
		return 0, false
	}

	return e.queue.Peek().Time(), true
}

// PendingEvents returns the number of events that have not fired.
func (e *SerialEngine) PendingEvents() int {
	return e.queue.Len()
}

// AdvanceTo fires every event due at or before t and then sets the current
// time to t. Events scheduled by handlers for a time no later than t also
// fire within the same call.
func (e *SerialEngine) AdvanceTo(t VTime) error {
	if t < e.time {
		return fmt.Errorf("%w: requested %d ns, now %d ns",
			ErrTimeGoesBackward, t, e.time)
	}

	for e.queue.Len() > 0 && e.queue.Peek().Time() <= t {
		if err := e.dispatch(e.queue.Pop()); err != nil {
			return err
		}
	}

	e.time = t

	return nil
}

// Run processes all the events scheduled in the SerialEngine.
func (e *SerialEngine) Run() error {
	for e.queue.Len() > 0 {
		if err := e.dispatch(e.queue.Pop()); err != nil {
			return err
		}
	}

	return nil
}

func (e *SerialEngine) dispatch(evt Event) error {
	if e.dispatching {
		log.Panic("engine re-entered while dispatching an event")
	}

	if evt.Time() < e.time {
		log.Panicf(
			"cannot run event in the past, evt %s @ %d, now %d",
			reflect.TypeOf(evt), evt.Time(), e.time,
		)
	}

	e.dispatching = true
	defer func() { e.dispatching = false }()

	e.time = evt.Time()

	hookCtx := hooking.HookCtx{
		Domain: e,
		Pos:    HookPosBeforeEvent,
		Item:   evt,
	}
	e.InvokeHook(hookCtx)

	err := evt.Handler().Handle(evt)
	if err != nil {
		return fmt.Errorf("handling %s @ %d ns: %w",
			reflect.TypeOf(evt), evt.Time(), err)
	}

	hookCtx.Pos = HookPosAfterEvent
	e.InvokeHook(hookCtx)

	return nil
}
