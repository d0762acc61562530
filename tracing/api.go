// Package tracing turns the work done inside a domain into tasks that tracers
// can aggregate or store.
//
// The generator reports two kinds of tasks: "req_in" covers a host request
// from submission to completion, with a "line_hit" or "line_miss" step per
// cache line, and "fill" covers a flash read that installs a line.
package tracing

import (
	"log"

	"github.com/babyworm/MQSim-CXL/sim/hooking"
)

// NamedHookable is a domain that tasks can be reported on.
type NamedHookable interface {
	hooking.Hookable
	Name() string
	InvokeHook(hooking.HookCtx)
}

// Hook positions used to report tasks.
var (
	HookPosTaskStart = &hooking.HookPos{Name: "TaskStart"}
	HookPosTaskStep  = &hooking.HookPos{Name: "TaskStep"}
	HookPosTaskEnd   = &hooking.HookPos{Name: "TaskEnd"}
)

// StartTask reports that the domain started working on a task. Nothing is
// reported, and nothing is checked, if no hook is attached to the domain.
func StartTask(
	id string,
	parentID string,
	domain NamedHookable,
	kind string,
	what string,
	detail interface{},
) {
	if domain == nil {
		log.Panic("tracing: domain must not be nil")
	}

	if domain.NumHooks() == 0 {
		return
	}

	task := Task{
		ID:       id,
		ParentID: parentID,
		Kind:     kind,
		What:     what,
		Where:    domain.Name(),
		Detail:   detail,
	}
	task.mustBeComplete()

	domain.InvokeHook(hooking.HookCtx{
		Domain: domain,
		Pos:    HookPosTaskStart,
		Item:   task,
	})
}

// AddTaskStep reports that a task reached a milestone.
func AddTaskStep(id string, domain NamedHookable, what string) {
	if domain.NumHooks() == 0 {
		return
	}

	domain.InvokeHook(hooking.HookCtx{
		Domain: domain,
		Pos:    HookPosTaskStep,
		Item: Task{
			ID:    id,
			Steps: []TaskStep{{What: what}},
		},
	})
}

// EndTask reports that a task is finished.
func EndTask(id string, domain NamedHookable) {
	if domain.NumHooks() == 0 {
		return
	}

	domain.InvokeHook(hooking.HookCtx{
		Domain: domain,
		Pos:    HookPosTaskEnd,
		Item:   Task{ID: id},
	})
}

func (t Task) mustBeComplete() {
	switch {
	case t.ID == "":
		log.Panic("tracing: task id must not be empty")
	case t.Where == "":
		log.Panic("tracing: domain must have a name")
	case t.Kind == "":
		log.Panicf("tracing: task %s has no kind", t.ID)
	case t.What == "":
		log.Panicf("tracing: task %s has no description", t.ID)
	}
}
