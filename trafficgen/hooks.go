package trafficgen

import (
	"log"

	"github.com/babyworm/MQSim-CXL/sim/hooking"
)

// Hook positions of a traffic generator.
var (
	// HookPosReqStart is triggered when a request is accepted. The item is
	// the *Request.
	HookPosReqStart = &hooking.HookPos{Name: "ReqStart"}

	// HookPosReqComplete is triggered when a request finishes. The item is
	// the Completion.
	HookPosReqComplete = &hooking.HookPos{Name: "ReqComplete"}

	// HookPosEviction is triggered when a line leaves the cache. The item is
	// the cache.Eviction.
	HookPosEviction = &hooking.HookPos{Name: "Eviction"}
)

// CompletionLogger is a hook that prints one line per finished request.
type CompletionLogger struct {
	logger *log.Logger
}

// NewCompletionLogger creates a CompletionLogger that writes to logger.
func NewCompletionLogger(logger *log.Logger) *CompletionLogger {
	return &CompletionLogger{logger: logger}
}

// Func prints the completion.
func (h *CompletionLogger) Func(ctx hooking.HookCtx) {
	if ctx.Pos != HookPosReqComplete {
		return
	}

	c, ok := ctx.Item.(Completion)
	if !ok {
		return
	}

	h.logger.Printf("%d ns, req %d %s 0x%x+%d, latency %d ns, hit %t",
		c.CompleteTime, c.ID, c.Kind, c.Address, c.Size, c.LatencyNS, c.Hit)
}
