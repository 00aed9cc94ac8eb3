package effect

import (
	"context"
	"testing"

	"github.com/kestrel-labs/promptc/internal/fiber"
	"github.com/kestrel-labs/promptc/internal/hookrt"
	"github.com/kestrel-labs/promptc/pkg/node"
)

func fiberWithEffect(eff *hookrt.Effect) *fiber.Fiber {
	f := fiber.New(node.TextNode("x"))
	f.MemoizedState = &hookrt.HookState{Tag: hookrt.TagEffect, Effect: eff}
	return f
}

func TestFlushRunsPendingEffectsForPhaseOnly(t *testing.T) {
	var mountRan, commitRan bool
	root := fiberWithEffect(&hookrt.Effect{
		Phase:   hookrt.PhaseMount,
		Pending: true,
		Create:  func(context.Context) (func(), error) { mountRan = true; return nil, nil },
	})
	root.Child = fiberWithEffect(&hookrt.Effect{
		Phase:   hookrt.PhaseCommit,
		Pending: true,
		Create:  func(context.Context) (func(), error) { commitRan = true; return nil, nil },
	})

	e := NewEngine(nil, nil)
	e.Flush(context.Background(), hookrt.PhaseMount, root)

	if !mountRan {
		t.Fatal("expected the mount-phase effect to run")
	}
	if commitRan {
		t.Fatal("expected the commit-phase effect not to run during a mount flush")
	}
}

func TestFlushSkipsEffectsNotPending(t *testing.T) {
	ran := false
	root := fiberWithEffect(&hookrt.Effect{
		Phase:   hookrt.PhaseCommit,
		Pending: false,
		Create:  func(context.Context) (func(), error) { ran = true; return nil, nil },
	})

	NewEngine(nil, nil).Flush(context.Background(), hookrt.PhaseCommit, root)

	if ran {
		t.Fatal("expected a non-pending effect to be skipped")
	}
}

func TestFlushRunsPriorDestroyBeforeNewCreate(t *testing.T) {
	var order []string
	root := fiberWithEffect(&hookrt.Effect{
		Phase:   hookrt.PhaseCommit,
		Pending: true,
		Destroy: func() { order = append(order, "destroy") },
		Create: func(context.Context) (func(), error) {
			order = append(order, "create")
			return nil, nil
		},
	})

	NewEngine(nil, nil).Flush(context.Background(), hookrt.PhaseCommit, root)

	if len(order) != 2 || order[0] != "destroy" || order[1] != "create" {
		t.Fatalf("expected destroy before create, got %v", order)
	}
}

func TestFlushReportsCreateErrorsViaHandler(t *testing.T) {
	var reported error
	root := fiberWithEffect(&hookrt.Effect{
		Phase:   hookrt.PhaseCommit,
		Pending: true,
		Create: func(context.Context) (func(), error) {
			return nil, context.DeadlineExceeded
		},
	})

	e := NewEngine(func(phase hookrt.Phase, fiberID, debugName string, err error) {
		reported = err
	}, nil)
	e.Flush(context.Background(), hookrt.PhaseCommit, root)

	if reported != context.DeadlineExceeded {
		t.Fatalf("expected the create error to reach the handler, got %v", reported)
	}
}

func TestFlushRunsAllDestroysInPostorderBeforeAnyCreate(t *testing.T) {
	var order []string
	parent := fiberWithEffect(&hookrt.Effect{
		Phase:   hookrt.PhaseCommit,
		Pending: true,
		Destroy: func() { order = append(order, "destroy-parent") },
		Create:  func(context.Context) (func(), error) { order = append(order, "create-parent"); return nil, nil },
	})
	child := fiberWithEffect(&hookrt.Effect{
		Phase:   hookrt.PhaseCommit,
		Pending: true,
		Destroy: func() { order = append(order, "destroy-child") },
		Create:  func(context.Context) (func(), error) { order = append(order, "create-child"); return nil, nil },
	})
	parent.Child = child

	NewEngine(nil, nil).Flush(context.Background(), hookrt.PhaseCommit, parent)

	want := []string{"destroy-child", "destroy-parent", "create-parent", "create-child"}
	if len(order) != len(want) {
		t.Fatalf("expected %v, got %v", want, order)
	}
	for i := range want {
		if order[i] != want[i] {
			t.Fatalf("expected %v, got %v", want, order)
		}
	}
}

func TestUnmountRunsChildrenBeforeParent(t *testing.T) {
	var order []string
	parent := fiberWithEffect(&hookrt.Effect{
		Destroy: func() { order = append(order, "parent") },
	})
	child := fiberWithEffect(&hookrt.Effect{
		Destroy: func() { order = append(order, "child") },
	})
	parent.Child = child

	NewEngine(nil, nil).Unmount(context.Background(), parent)

	if len(order) != 2 || order[0] != "child" || order[1] != "parent" {
		t.Fatalf("expected child destroy before parent destroy, got %v", order)
	}
}

func TestUnmountRunsPhaseUnmountCreateCallbacks(t *testing.T) {
	ran := false
	root := fiberWithEffect(&hookrt.Effect{
		Phase:  hookrt.PhaseUnmount,
		Create: func(context.Context) (func(), error) { ran = true; return nil, nil },
	})

	NewEngine(nil, nil).Unmount(context.Background(), root)

	if !ran {
		t.Fatal("expected the unmount-phase create callback to run")
	}
}
