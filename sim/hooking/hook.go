// Package hooking lets observers attach to simulation objects without the
// objects knowing who is watching. The engine, the traffic generator and the
// tracers all talk through it.
package hooking

import "log"

// HookPos names a place in the code of a Hookable where hooks are invoked.
// Positions are compared by pointer, so each one is declared once as a
// package-level variable.
type HookPos struct {
	Name string
}

// HookCtx describes one hook invocation.
type HookCtx struct {
	Domain Hookable
	Pos    *HookPos
	Item   interface{}
	Detail interface{}
}

// Hookable is implemented by everything hooks can be attached to.
type Hookable interface {
	AcceptHook(hook Hook)
	NumHooks() int
	Hooks() []Hook
}

// Hook observes a Hookable.
type Hook interface {
	Func(ctx HookCtx)
}

// HookFunc turns a function into a Hook.
type HookFunc func(ctx HookCtx)

// Func calls f.
func (f HookFunc) Func(ctx HookCtx) {
	f(ctx)
}

// HookableBase implements Hookable. Embed it and call InvokeHook at each
// HookPos.
type HookableBase struct {
	hooks []Hook
}

// NumHooks returns the number of attached hooks. Callers use it to skip
// building a HookCtx nobody will see.
func (h *HookableBase) NumHooks() int {
	return len(h.hooks)
}

// Hooks returns the attached hooks.
func (h *HookableBase) Hooks() []Hook {
	return h.hooks
}

// AcceptHook attaches a hook. Attaching the same hook value twice panics.
// Function hooks are not comparable and are always accepted.
func (h *HookableBase) AcceptHook(hook Hook) {
	if _, isFunc := hook.(HookFunc); !isFunc {
		for _, attached := range h.hooks {
			if attached == hook {
				log.Panicf("hook %T is already attached", hook)
			}
		}
	}

	h.hooks = append(h.hooks, hook)
}

// InvokeHook calls every attached hook in the order they were attached.
func (h *HookableBase) InvokeHook(ctx HookCtx) {
	for _, hook := range h.hooks {
		hook.Func(ctx)
	}
}
