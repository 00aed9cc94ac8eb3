// Package hookrt implements the per-fiber hook-state chain, the render
// context, and suspension.
//
// Go has no implicit async-local storage, so the per-render context a
// composite runs under is carried explicitly: every hook call takes a
// *Render pointer. Render is additionally mirrorable into a context.Context
// via WithRender/FromContext for the rare helper that only has a ctx handle
// (collector callbacks, effect creates). This keeps the context scoped to
// one render rather than global, without goroutine-local hacks — see
// DESIGN.md Open Question 1.
package hookrt

import (
	"context"

	"github.com/kestrel-labs/promptc/internal/fiber"
)

// TickState is the per-tick context passed to components and effects. The compiler core only reads TickNumber and
// Messages; the rest is opaque payload collaborators attach.
type TickState struct {
	TickNumber int
	Messages   []any
	Metadata   map[string]any
}

// TickControl lets a Signal (or any hook) request a recompile, distinguishing
// "set during a render" (schedule a recompile for the current tick) from
// "set outside any tick" (invoke the reconcile callback directly).
type TickControl interface {
	RequestRecompile(reason string)
	InTick() bool
	Reconcile()
}

// Render is the per-render context threaded through every hook call. One
// Render is constructed per begin-work invocation of a composite; it is
// discarded once that composite's render function returns.
type Render struct {
	Fiber *fiber.Fiber

	tickState   *TickState
	tickControl TickControl
	getChannel  func(name string) any

	scheduleWork func(fiberID string)

	// context is the cumulative (token -> value) map visible at this point
	// in the tree, built up by context providers encountered on the path
	// from the root.
	context map[any]any

	dataCache *DataCache

	hydration   *HydrationEntry
	isHydrating bool

	// oldHook/newHookHead/newHookTail/hookIndex implement the hook-chain
	// walk: oldHook advances over the alternate fiber's chain while
	// newHookHead/newHookTail build this render's chain in parallel.
	oldHook     *HookState
	newHookHead *HookState
	newHookTail *HookState
	hookIndex   int

	debugMode bool

	// OrderMismatch is set (in debug mode) when this render's hook
	// sequence doesn't match the prior render's, per the call-order
	// contract.
	OrderMismatch error
}

// HydrationEntry carries serialized hook values for the first render after
// restoring from a hibernation snapshot.
type HydrationEntry struct {
	Hooks []SerializedHook
}

// SerializedHook is one entry of a hydration snapshot's hook list.
type SerializedHook struct {
	Index int
	Tag   HookTag
	Value any
}

// NewRender begins a render for f, seeding the hook walk from f.Alternate's
// chain (if any) so State/Memo/Ref/etc. hooks can carry values forward. If f
// has no alternate (its first render in this arena) and hydration is
// non-nil, the hook walk seeds from the restored snapshot instead.
func NewRender(f *fiber.Fiber, tickState *TickState, tickControl TickControl, getChannel func(string) any, scheduleWork func(string), ctxMap map[any]any, cache *DataCache, debugMode bool, hydration *HydrationEntry) *Render {
	r := &Render{
		Fiber:        f,
		tickState:    tickState,
		tickControl:  tickControl,
		getChannel:   getChannel,
		scheduleWork: scheduleWork,
		context:      ctxMap,
		dataCache:    cache,
		debugMode:    debugMode,
	}
	if f.Alternate != nil {
		if old, ok := f.Alternate.MemoizedState.(*HookState); ok {
			r.oldHook = old
		}
	} else if hydration != nil {
		r.oldHook = hydrationChain(hydration)
		r.hydration = hydration
		r.isHydrating = true
	}
	return r
}

// hydrationChain rebuilds a HookState linked list from a restored snapshot's
// hook entries so useHook's normal alternate-walk logic carries the restored
// values forward on this fiber's first render, without needing a separate
// code path.
func hydrationChain(entry *HydrationEntry) *HookState {
	var head, tail *HookState
	for _, h := range entry.Hooks {
		node := &HookState{Tag: h.Tag, MemoizedState: h.Value}
		if head == nil {
			head, tail = node, node
		} else {
			tail.Next = node
			tail = node
		}
	}
	return head
}

// Finish must be called after the composite's render function returns. It
// checks the call-order contract in debug mode (every old hook must have
// been consumed) and returns the completed hook chain to install on the
// fiber.
func (r *Render) Finish() *HookState {
	if r.debugMode && r.oldHook != nil {
		r.OrderMismatch = &HookOrderError{
			FiberID: r.Fiber.DebugID,
			Reason:  "fewer hooks called than the previous render",
		}
	}
	return r.newHookHead
}

// TickStateValue returns the tick context this render is running under.
func (r *Render) TickStateValue() *TickState { return r.tickState }

// TickControlValue exposes the recompile/reconcile surface to hooks like Signal.
func (r *Render) TickControlValue() TickControl { return r.tickControl }

// Channel resolves a named channel accessor, for components that need a
// handle to an external collaborator's channel.
func (r *Render) Channel(name string) any {
	if r.getChannel == nil {
		return nil
	}
	return r.getChannel(name)
}

// IsHydrating reports whether this render is re-seeding hook state from a
// restored snapshot rather than running fresh.
func (r *Render) IsHydrating() bool { return r.isHydrating }

// HookOrderError signals a violation of the call-order contract: hooks must
// be invoked in the same order and count across renders of the same fiber.
type HookOrderError struct {
	FiberID string
	Reason  string
}

func (e *HookOrderError) Error() string {
	return "hook order violation on fiber " + e.FiberID + ": " + e.Reason
}

// renderCtxKey is the context.Context key used by WithRender/FromContext.
type renderCtxKey struct{}

// WithRender mirrors r into a context.Context for helpers that only carry a
// ctx handle (effect creates, collector callbacks).
func WithRender(ctx context.Context, r *Render) context.Context {
	return context.WithValue(ctx, renderCtxKey{}, r)
}

// FromContext recovers a *Render previously stored by WithRender.
func FromContext(ctx context.Context) (*Render, bool) {
	r, ok := ctx.Value(renderCtxKey{}).(*Render)
	return r, ok
}

// PushContext returns a copy-on-write extension of a context map with one
// additional (token -> value) binding, used when a context-provider
// composite renders its children.
func PushContext(parent map[any]any, token any, value any) map[any]any {
	next := make(map[any]any, len(parent)+1)
	for k, v := range parent {
		next[k] = v
	}
	next[token] = value
	return next
}
