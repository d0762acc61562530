package timing

import (
	"fmt"
	"log"

	"github.com/babyworm/MQSim-CXL/sim/hooking"
)

// EventLogger is a hook for the engine that prints one line per dispatched
// event:
//
//	3039 ns *timing.FuncEvent -> Generator
type EventLogger struct {
	logger *log.Logger
}

// NewEventLogger creates an EventLogger that writes into logger.
func NewEventLogger(logger *log.Logger) *EventLogger {
	return &EventLogger{logger: logger}
}

// Func prints the event if the engine is about to dispatch it.
func (h *EventLogger) Func(ctx hooking.HookCtx) {
	if ctx.Pos != HookPosBeforeEvent {
		return
	}

	evt, ok := ctx.Item.(Event)
	if !ok {
		return
	}

	h.logger.Printf("%d ns %T -> %s", evt.Time(), evt, handlerName(evt.Handler()))
}

func handlerName(h Handler) string {
	if n, ok := h.(interface{ Name() string }); ok {
		return n.Name()
	}

	if h == nil {
		return "-"
	}

	return fmt.Sprintf("%T", h)
}
