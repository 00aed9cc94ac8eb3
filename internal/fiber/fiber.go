// Package fiber implements the per-node work unit the reconciler (C4)
// diffs, clones, and commits: the double-buffered fiber arena.
//
// A Fiber is the mutable twin of an immutable node.Node: it persists across
// reconciliations, carries hook state, and links to its alternate in the
// other buffer. The arena never aliases a fiber across buffers — Clone
// always allocates a fresh struct whose alternate pointer refers back to the
// original (the original's own alternate is left unchanged),
// mirroring nexus's registry style in
// nexus/internal/agent/tool_registry.go (an RWMutex-guarded id→value index)
// applied here to an id→fiber debug index instead of an id→tool index.
package fiber

import (
	"sync"

	"github.com/google/uuid"
	"github.com/kestrel-labs/promptc/pkg/node"
)

// Flags is a bitset describing work pending on a fiber.
type Flags uint8

const (
	NoFlags       Flags = 0
	Placement     Flags = 1 << iota
	Update
	Deletion
	ChildDeletion
	HasEffect
	Ref
)

// Fiber is the mutable work unit for one node instance.
type Fiber struct {
	DebugID string // stable per fiber instance, for logs/serialization only

	Type  node.Type
	Key   *string
	Props node.Props

	// PendingProps holds the new props during begin-work, before they are
	// committed into Props.
	PendingProps node.Props

	// StateNode holds the composite instance, when Type.Kind is
	// KindComposite (internal/hookrt.Component), or nil otherwise.
	StateNode any

	// MemoizedState is the head of this fiber's hook-state linked list
	// (internal/hookrt.HookState). Declared as `any` here to avoid an
	// import cycle between fiber and hookrt; hookrt type-asserts it back.
	MemoizedState any

	Parent  *Fiber
	Child   *Fiber
	Sibling *Fiber
	Index   int

	Flags     Flags
	Deletions []*Fiber

	Alternate *Fiber

	// Text/Block mirror node.Node's leaf payloads for KindText/KindContentBlock.
	Text  string
	Block any // *compiled.ContentBlock, kept as `any` to avoid the import

	// RenderCount tracks how many times begin-work has run for this fiber
	// within the current tick, for the debug-mode loop warning.
	RenderCount int
}

// New allocates a fresh fiber for the given node, unattached to any
// alternate.
func New(n node.Node) *Fiber {
	return &Fiber{
		DebugID:  uuid.NewString(),
		Type:     n.Type,
		Key:      n.Key,
		Props:    n.Props,
		Text:     n.Text,
		Flags:    Placement,
		Index:    -1,
	}
}

// CloneForUpdate returns a fiber that reuses f's identity (DebugID, hook
// state, stateNode) but carries newProps as PendingProps and points its
// Alternate back at f. f itself is left untouched so it remains valid as
// the "current" twin until the buffer swap.
func CloneForUpdate(f *Fiber, newProps node.Props, newText string) *Fiber {
	clone := &Fiber{
		DebugID:       f.DebugID,
		Type:          f.Type,
		Key:           f.Key,
		Props:         f.Props,
		PendingProps:  newProps,
		StateNode:     f.StateNode,
		MemoizedState: f.MemoizedState,
		Text:          newText,
		Flags:         Update,
		Index:         f.Index,
		Alternate:     f,
	}
	return clone
}

// Reusable reports whether an old fiber may be cloned for update against a
// new node, per the reconciler's identity rule: same type and same key.
func Reusable(old *Fiber, n node.Node) bool {
	if old == nil {
		return false
	}
	if !old.Type.Equal(n.Type) {
		return false
	}
	return keyEqual(old.Key, n.Key)
}

func keyEqual(a, b *string) bool {
	if a == nil || b == nil {
		return a == b
	}
	return *a == *b
}

// Traverse walks the fiber tree rooted at root depth-first, pre-order,
// calling visit on each fiber. Returning false from visit stops descent
// into that fiber's children (siblings still run).
func Traverse(root *Fiber, visit func(*Fiber) bool) {
	if root == nil {
		return
	}
	var walk func(f *Fiber)
	walk = func(f *Fiber) {
		for f != nil {
			if visit(f) {
				walk(f.Child)
			}
			f = f.Sibling
		}
	}
	walk(root)
}

// Arena indexes fibers by DebugID for O(1) lookup (ref publication, hydration
// lookup by id). It is safe for concurrent use, though a single compiler
// instance's reconcile/commit steps never run concurrently with themselves.
type Arena struct {
	mu    sync.RWMutex
	byID  map[string]*Fiber
}

// NewArena returns an empty fiber index.
func NewArena() *Arena {
	return &Arena{byID: make(map[string]*Fiber)}
}

// Put registers f under its DebugID.
func (a *Arena) Put(f *Fiber) {
	if f == nil {
		return
	}
	a.mu.Lock()
	defer a.mu.Unlock()
	a.byID[f.DebugID] = f
}

// Get looks up a fiber by DebugID.
func (a *Arena) Get(id string) (*Fiber, bool) {
	a.mu.RLock()
	defer a.mu.RUnlock()
	f, ok := a.byID[id]
	return f, ok
}

// Delete removes a fiber from the index, called during unmount.
func (a *Arena) Delete(id string) {
	a.mu.Lock()
	defer a.mu.Unlock()
	delete(a.byID, id)
}

// Len reports how many fibers are currently indexed.
func (a *Arena) Len() int {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return len(a.byID)
}
