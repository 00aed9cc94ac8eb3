// Package reconcile implements the reconciler (C4): incremental tree
// diffing with stable key-based identity, double-buffered work-in-progress
// trees, and the commit phase that fires lifecycle effects.
//
// Grounded on nexus/internal/agent/loop.go: an
// iteration-limited state machine with a sanitizeLoopConfig-style defaulting
// pass for its options, generalized here from "run the agent loop until
// done" to "reconcile this tree until its composites stop suspending."
package reconcile

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/kestrel-labs/promptc/internal/effect"
	"github.com/kestrel-labs/promptc/internal/fiber"
	"github.com/kestrel-labs/promptc/internal/hookrt"
	"github.com/kestrel-labs/promptc/internal/observability"
	"github.com/kestrel-labs/promptc/pkg/compiled"
	"github.com/kestrel-labs/promptc/pkg/node"
)

// ErrRenderAborted wraps a non-suspension error thrown by a composite,
// which aborts the current tick.
var ErrRenderAborted = errors.New("promptc: composite render error aborted reconciliation")

// ToolStore is the external collaborator a Tool-flagged composite registers
// its metadata with during commit.
type ToolStore interface {
	Register(name string, meta compiled.ToolMetadata)
}

// RefTable is the external collaborator a ref-carrying fiber publishes
// itself to on mount and retracts from on unmount.
type RefTable interface {
	Set(name string, fiberID string)
	Delete(name string)
}

// Options configures a Reconciler.
type Options struct {
	DebugMode          bool
	MaxSuspenseRetries int // default 10
	TickState          *hookrt.TickState
	TickControl        hookrt.TickControl
	GetChannel         func(name string) any
	ScheduleWork       func(fiberID string)
	ToolStore          ToolStore
	Refs               RefTable
	EffectEngine       *effect.Engine
	Logger             *slog.Logger

	// Metrics, if set, records render suspensions (by component, with their
	// resolving retry count) and non-suspension render errors.
	Metrics *observability.Metrics

	// Hydration, when HydrationActive is true, seeds a fiber's first render
	// (one with no Alternate) from a restored hibernation snapshot keyed by
	// fiber debug id.
	Hydration       map[string]*hookrt.HydrationEntry
	HydrationActive bool
}

func (o *Options) setDefaults() {
	if o.MaxSuspenseRetries <= 0 {
		o.MaxSuspenseRetries = 10
	}
	if o.Logger == nil {
		o.Logger = slog.Default()
	}
	if o.EffectEngine == nil {
		o.EffectEngine = effect.NewEngine(nil, o.Logger)
	}
}

// Reconciler owns one execution's fiber arena and double-buffered current
// tree. It is not safe for concurrent use from multiple goroutines.
type Reconciler struct {
	opts      Options
	arena     *fiber.Arena
	dataCache *hookrt.DataCache
	current   *fiber.Fiber
}

// New returns a Reconciler with its own arena and data cache, isolated from
// every other execution.
func New(opts Options) *Reconciler {
	opts.setDefaults()
	return &Reconciler{
		opts:      opts,
		arena:     fiber.NewArena(),
		dataCache: hookrt.NewDataCache(),
	}
}

// Current returns the committed root fiber from the last successful
// Reconcile call, or nil before the first one.
func (r *Reconciler) Current() *fiber.Fiber { return r.current }

// FiberCount reports how many fibers are currently tracked in the arena.
func (r *Reconciler) FiberCount() int { return r.arena.Len() }

// SetTickState updates the tick context every subsequent render sees,
// without disturbing the arena, data cache, or committed tree — a driver
// calls this once per tick before Reconcile.
func (r *Reconciler) SetTickState(ts *hookrt.TickState) { r.opts.TickState = ts }

// SetHydration installs (or clears, passing active=false) the hydration
// snapshot subsequent first-renders should seed their hook state from.
func (r *Reconciler) SetHydration(data map[string]*hookrt.HydrationEntry, active bool) {
	r.opts.Hydration = data
	r.opts.HydrationActive = active
}

// IsHydrating reports whether a hydration snapshot is currently installed.
func (r *Reconciler) IsHydrating() bool { return r.opts.HydrationActive }

// Reconcile diffs root against the previously committed tree (if any),
// runs begin-work depth-first (invoking composites and their hooks),
// commits (firing deletions then Mount/Commit effects), and swaps buffers.
// It returns the new committed root.
func (r *Reconciler) Reconcile(ctx context.Context, root node.Node) (*fiber.Fiber, error) {
	var work *fiber.Fiber
	if r.current == nil {
		work = fiber.New(root)
	} else {
		work = fiber.CloneForUpdate(r.current, root.Props, root.Text)
	}
	work.Parent = nil
	work.Index = 0

	var deletions []*fiber.Fiber
	if err := r.beginWork(ctx, work, root, map[any]any{}, &deletions); err != nil {
		return nil, err
	}

	r.commit(ctx, work, deletions)
	r.current = work
	return work, nil
}

// beginWork renders n onto fiber f (invoking its composite, if any),
// then recursively reconciles its children against f's previous sibling
// chain.
func (r *Reconciler) beginWork(ctx context.Context, f *fiber.Fiber, n node.Node, ctxMap map[any]any, deletions *[]*fiber.Fiber) error {
	f.RenderCount++
	if r.opts.DebugMode && f.RenderCount > 10 {
		r.opts.Logger.Warn("composite render-count threshold exceeded; possible render loop",
			"fiber_id", f.DebugID, "component", f.Type.String(), "count", f.RenderCount)
	}

	f.Type = n.Type
	f.Key = n.Key
	f.PendingProps = n.Props
	f.Text = n.Text
	f.Block = n.Block

	children := n.Children
	if n.Type.Kind == node.KindComposite {
		rendered, nextCtxMap, err := r.renderComposite(ctx, f, n, ctxMap)
		if err != nil {
			return err
		}
		children = rendered
		ctxMap = nextCtxMap
	}
	f.Props = f.PendingProps

	var oldChild *fiber.Fiber
	if f.Alternate != nil {
		oldChild = f.Alternate.Child
	}
	newChild, childDeletions, err := r.reconcileChildren(ctx, f, oldChild, children, ctxMap, deletions)
	if err != nil {
		return err
	}
	f.Child = newChild
	f.Deletions = childDeletions
	return nil
}

// renderComposite invokes n's composite repeatedly until it either returns
// children or a non-suspension error. A *hookrt.Suspended error awaits its
// channel and restarts begin-work on this same fiber, up to
// Options.MaxSuspenseRetries times.
func (r *Reconciler) renderComposite(ctx context.Context, f *fiber.Fiber, n node.Node, ctxMap map[any]any) ([]node.Node, map[any]any, error) {
	comp := n.Type.Composite
	f.StateNode = comp

	var hydration *hookrt.HydrationEntry
	if r.opts.HydrationActive {
		hydration = r.opts.Hydration[f.DebugID]
	}

	for attempt := 0; ; attempt++ {
		render := hookrt.NewRender(f, r.opts.TickState, r.opts.TickControl, r.opts.GetChannel,
			r.opts.ScheduleWork, ctxMap, r.dataCache, r.opts.DebugMode, hydration)

		result, err := comp.Render(render, n.Props)
		f.MemoizedState = render.Finish()
		if render.OrderMismatch != nil {
			r.opts.Logger.Warn("hook call-order violation", "error", render.OrderMismatch)
		}

		if err != nil {
			if susp, ok := hookrt.AsSuspended(err); ok {
				if r.opts.Metrics != nil {
					r.opts.Metrics.RecordSuspension(comp.DebugName(), attempt)
				}
				if attempt >= r.opts.MaxSuspenseRetries {
					return nil, ctxMap, fmt.Errorf("promptc: %s suspended past the retry limit (%d): %w",
						comp.DebugName(), r.opts.MaxSuspenseRetries, err)
				}
				select {
				case <-susp.Ch:
					continue
				case <-ctx.Done():
					return nil, ctxMap, ctx.Err()
				}
			}
			if r.opts.Metrics != nil {
				r.opts.Metrics.RecordRenderError(comp.DebugName())
			}
			return nil, ctxMap, fmt.Errorf("%w: %s: %v", ErrRenderAborted, comp.DebugName(), err)
		}

		if comp.Boundary() == node.ContextProvider {
			if token, ok := n.Props["token"]; ok {
				ctxMap = hookrt.PushContext(ctxMap, token, n.Props["value"])
			}
		}

		// A composite returning an element of its own type is a terminal
		// primitive marker: reconcile its children, but don't
		// recurse into the composite again.
		if result.Type.Kind == node.KindComposite && result.Type.Composite == comp {
			return result.Children, ctxMap, nil
		}
		if result.Type.Kind == node.KindFragment {
			return result.Children, ctxMap, nil
		}
		return []node.Node{result}, ctxMap, nil
	}
}

// reconcileChildren iterates new children and old children in parallel by
// position, reusing an old fiber iff its type and key match the new
// element. Non-reusable old fibers, and any tail beyond
// the new list's length, become deletions.
func (r *Reconciler) reconcileChildren(ctx context.Context, parent *fiber.Fiber, oldFirst *fiber.Fiber, newChildren []node.Node, ctxMap map[any]any, allDeletions *[]*fiber.Fiber) (*fiber.Fiber, []*fiber.Fiber, error) {
	normalized := normalizeChildren(newChildren)

	var head, tail *fiber.Fiber
	var deletions []*fiber.Fiber
	oldCursor := oldFirst

	if r.opts.DebugMode {
		warnMissingKeys(r.opts.Logger, normalized)
	}

	for i, childNode := range normalized {
		var newFiber *fiber.Fiber
		if fiber.Reusable(oldCursor, childNode) {
			newFiber = fiber.CloneForUpdate(oldCursor, childNode.Props, childNode.Text)
			oldCursor = oldCursor.Sibling
		} else {
			if oldCursor != nil {
				deletions = append(deletions, oldCursor)
				*allDeletions = append(*allDeletions, oldCursor)
				oldCursor = oldCursor.Sibling
			}
			newFiber = fiber.New(childNode)
		}
		newFiber.Parent = parent
		newFiber.Index = i

		if err := r.beginWork(ctx, newFiber, childNode, ctxMap, allDeletions); err != nil {
			return nil, nil, err
		}

		r.arena.Put(newFiber)
		if head == nil {
			head = newFiber
		} else {
			tail.Sibling = newFiber
		}
		tail = newFiber
	}

	for oldCursor != nil {
		deletions = append(deletions, oldCursor)
		*allDeletions = append(*allDeletions, oldCursor)
		oldCursor = oldCursor.Sibling
	}

	return head, deletions, nil
}

// normalizeChildren drops zero-value ("null") nodes.
func normalizeChildren(children []node.Node) []node.Node {
	out := make([]node.Node, 0, len(children))
	for _, c := range children {
		if c.IsZero() {
			continue
		}
		out = append(out, c)
	}
	return out
}

func warnMissingKeys(logger *slog.Logger, children []node.Node) bool {
	if len(children) < 2 {
		return false
	}
	missing := 0
	for _, c := range children {
		if c.Key == nil {
			missing++
		}
	}
	if missing > 1 {
		logger.Warn("multiple siblings without explicit keys; reconciliation falls back to positional matching",
			"count", missing)
		return true
	}
	return false
}

// commit finalizes deletions (children's unmount before parent's, per
// fiber), then runs Mount-phase effects for placed fibers followed by
// Commit-phase effects for placed-or-changed fibers, registering tool
// metadata for placed or updated composites and refs for placed fibers
// along the way.
func (r *Reconciler) commit(ctx context.Context, work *fiber.Fiber, deletions []*fiber.Fiber) {
	for _, d := range deletions {
		r.opts.EffectEngine.Unmount(ctx, d)
		r.untrack(d)
	}

	fiber.Traverse(work, func(f *fiber.Fiber) bool {
		if f.Flags&(fiber.Placement|fiber.Update) != 0 {
			r.registerComposite(f)
		}
		if f.Flags&fiber.Placement != 0 {
			r.registerRef(f)
		}
		return true
	})

	r.opts.EffectEngine.Flush(ctx, hookrt.PhaseMount, work)
	r.opts.EffectEngine.Flush(ctx, hookrt.PhaseCommit, work)
}

func (r *Reconciler) registerComposite(f *fiber.Fiber) {
	if r.opts.ToolStore == nil || f.Type.Kind != node.KindComposite || f.Type.Composite == nil {
		return
	}
	meta := f.Type.Composite.ToolMeta()
	if meta == nil {
		return
	}
	r.opts.ToolStore.Register(meta.Name, *meta)
}

func (r *Reconciler) registerRef(f *fiber.Fiber) {
	if r.opts.Refs == nil || f.Props == nil {
		return
	}
	if name, ok := f.Props.String("ref"); ok && name != "" {
		f.Flags |= fiber.Ref
		r.opts.Refs.Set(name, f.DebugID)
	}
}

func (r *Reconciler) untrack(deleted *fiber.Fiber) {
	fiber.Traverse(deleted, func(f *fiber.Fiber) bool {
		r.arena.Delete(f.DebugID)
		if r.opts.Refs != nil && f.Flags&fiber.Ref != 0 {
			if name, ok := f.Props.String("ref"); ok {
				r.opts.Refs.Delete(name)
			}
		}
		return true
	})
}

// Abort discards the current work-in-progress buffer (used when
// cancellation arrives mid-render): the caller simply does not call
// commit/swap, and Reconcile's next call rebuilds from r.current, which was
// never touched.
func (r *Reconciler) Abort() {}
