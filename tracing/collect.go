package tracing

import (
	"log"

	"github.com/babyworm/MQSim-CXL/sim/hooking"
)

// A Tracer receives the tasks of the domains it is attached to. StepTask and
// EndTask only carry the task ID and the new information, so tracers keep
// the task from StartTask themselves.
type Tracer interface {
	StartTask(task Task)
	StepTask(task Task)
	EndTask(task Task)
}

// CollectTrace attaches the tracer to the domain. A tracer can only be
// attached to a domain once.
func CollectTrace(domain NamedHookable, tracer Tracer) {
	for _, h := range domain.Hooks() {
		if th, ok := h.(*traceHook); ok && th.tracer == tracer {
			log.Panicf("domain %s already reports to tracer %T",
				domain.Name(), tracer)
		}
	}

	domain.AcceptHook(&traceHook{tracer: tracer})
}

// traceHook forwards task hook invocations to a tracer and ignores the
// other positions of the domain.
type traceHook struct {
	tracer Tracer
}

func (h *traceHook) Func(ctx hooking.HookCtx) {
	task, ok := ctx.Item.(Task)
	if !ok {
		return
	}

	switch ctx.Pos {
	case HookPosTaskStart:
		h.tracer.StartTask(task)
	case HookPosTaskStep:
		h.tracer.StepTask(task)
	case HookPosTaskEnd:
		h.tracer.EndTask(task)
	}
}
