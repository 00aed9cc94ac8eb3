// Package effect implements the commit/effect engine (C5): phased effect
// queues that run in fiber-tree order for creates and reverse order for
// destroys, with async creates awaited in sequence rather than in parallel.
//
// Grounded on nexus/internal/agent/executor.go, which runs a
// phased pipeline (pre-tool, tool, post-tool) to completion before moving
// on; this engine generalizes that shape to the compiler's nine lifecycle
// phases.
package effect

import (
	"context"
	"log/slog"

	"github.com/kestrel-labs/promptc/internal/fiber"
	"github.com/kestrel-labs/promptc/internal/hookrt"
)

// ErrorHandler is invoked when an effect's create function returns an
// error. The engine logs and continues with the remaining effects in that
// phase.
type ErrorHandler func(phase hookrt.Phase, fiberID, debugName string, err error)

// Engine flushes phase-keyed effect queues across a committed fiber tree.
type Engine struct {
	onError ErrorHandler
	logger  *slog.Logger
}

// NewEngine returns an Engine that reports create errors via onError (which
// may be nil to only log).
func NewEngine(onError ErrorHandler, logger *slog.Logger) *Engine {
	if logger == nil {
		logger = slog.Default()
	}
	return &Engine{onError: onError, logger: logger}
}

func headOf(f *fiber.Fiber) *hookrt.HookState {
	head, _ := f.MemoizedState.(*hookrt.HookState)
	return head
}

// Flush runs every pending effect of the given phase across root's tree in
// two sub-passes: every pending effect's prior destroy runs first, in
// tree-postorder (children before parent, matching Unmount's ordering), then
// every pending effect's create runs in tree-preorder. Creates are awaited
// in declaration order within a phase per fiber, and fiber by fiber in tree
// order — never run in parallel.
func (e *Engine) Flush(ctx context.Context, phase hookrt.Phase, root *fiber.Fiber) {
	var destroyWalk func(f *fiber.Fiber)
	destroyWalk = func(f *fiber.Fiber) {
		for child := f.Child; child != nil; child = child.Sibling {
			destroyWalk(child)
		}
		hookrt.WalkEffects(headOf(f), func(eff *hookrt.Effect) {
			if eff.Phase != phase || !eff.Pending {
				return
			}
			e.destroy(eff)
		})
	}
	if root != nil {
		destroyWalk(root)
	}

	fiber.Traverse(root, func(f *fiber.Fiber) bool {
		hookrt.WalkEffects(headOf(f), func(eff *hookrt.Effect) {
			if eff.Phase != phase || !eff.Pending {
				return
			}
			e.create(ctx, phase, f, eff)
		})
		return true
	})
}

func (e *Engine) destroy(eff *hookrt.Effect) {
	if eff.Destroy != nil {
		eff.Destroy()
		eff.Destroy = nil
	}
}

func (e *Engine) create(ctx context.Context, phase hookrt.Phase, f *fiber.Fiber, eff *hookrt.Effect) {
	eff.Pending = false
	if eff.Create == nil {
		return
	}
	cleanup, err := eff.Create(ctx)
	if err != nil {
		e.logger.Error("effect create failed", "phase", string(phase), "fiber_id", f.DebugID,
			"component", f.Type.String(), "error", err)
		if e.onError != nil {
			e.onError(phase, f.DebugID, f.Type.String(), err)
		}
		return
	}
	eff.Destroy = cleanup
}

// Unmount fires every cleanup and unmount-specific callback registered on
// the subtree rooted at root, children before parent (depth-first
// postorder), so a parent's teardown never races ahead of a child's.
// Invariant 5: after Unmount(root), every effect root's subtree
// registered has had its destroy invoked exactly once.
func (e *Engine) Unmount(ctx context.Context, root *fiber.Fiber) {
	var walk func(f *fiber.Fiber)
	walk = func(f *fiber.Fiber) {
		for child := f.Child; child != nil; child = child.Sibling {
			walk(child)
		}
		head := headOf(f)
		hookrt.WalkEffects(head, func(eff *hookrt.Effect) {
			if eff.Destroy != nil {
				eff.Destroy()
				eff.Destroy = nil
			}
		})
		for h := head; h != nil; h = h.Next {
			if h.Tag == hookrt.TagEffect && h.Effect != nil && h.Effect.Phase == hookrt.PhaseUnmount && h.Effect.Create != nil {
				if _, err := h.Effect.Create(ctx); err != nil {
					e.logger.Warn("unmount effect error swallowed", "fiber_id", f.DebugID, "error", err)
				}
			}
		}
		if cb := hookrt.UnmountCallback(head); cb != nil {
			cb()
		}
	}
	walk(root)
}
