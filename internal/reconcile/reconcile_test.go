package reconcile

import (
	"context"
	"errors"
	"testing"

	"github.com/kestrel-labs/promptc/internal/hookrt"
	"github.com/kestrel-labs/promptc/pkg/compiled"
	"github.com/kestrel-labs/promptc/pkg/node"
)

type fakeToolStore struct {
	registered map[string]compiled.ToolMetadata
}

func newFakeToolStore() *fakeToolStore {
	return &fakeToolStore{registered: map[string]compiled.ToolMetadata{}}
}

func (s *fakeToolStore) Register(name string, meta compiled.ToolMetadata) { s.registered[name] = meta }

type fakeRefTable struct {
	refs map[string]string
}

func newFakeRefTable() *fakeRefTable { return &fakeRefTable{refs: map[string]string{}} }

func (t *fakeRefTable) Set(name, fiberID string) { t.refs[name] = fiberID }
func (t *fakeRefTable) Delete(name string)       { delete(t.refs, name) }

func newTestReconciler() *Reconciler {
	return New(Options{ToolStore: newFakeToolStore(), Refs: newFakeRefTable()})
}

func TestReconcileReusesFiberAtSameKeyedPosition(t *testing.T) {
	r := newTestReconciler()
	ctx := context.Background()

	tree := node.Fragment(node.TextNode("a").WithKey("k"))
	f1, err := r.Reconcile(ctx, tree)
	if err != nil {
		t.Fatalf("first reconcile failed: %v", err)
	}
	firstChildID := f1.Child.DebugID

	tree2 := node.Fragment(node.TextNode("a-updated").WithKey("k"))
	f2, err := r.Reconcile(ctx, tree2)
	if err != nil {
		t.Fatalf("second reconcile failed: %v", err)
	}
	if f2.Child.DebugID != firstChildID {
		t.Fatalf("expected the fiber at the matching key to be reused, got a new id")
	}
	if f2.Child.Text != "a-updated" {
		t.Fatalf("expected updated text, got %q", f2.Child.Text)
	}
}

func TestReconcileReplacesFiberOnKeyMismatchAtSamePosition(t *testing.T) {
	r := newTestReconciler()
	ctx := context.Background()

	f1, err := r.Reconcile(ctx, node.Fragment(node.TextNode("a").WithKey("k1")))
	if err != nil {
		t.Fatalf("first reconcile failed: %v", err)
	}
	firstChildID := f1.Child.DebugID

	f2, err := r.Reconcile(ctx, node.Fragment(node.TextNode("b").WithKey("k2")))
	if err != nil {
		t.Fatalf("second reconcile failed: %v", err)
	}
	if f2.Child.DebugID == firstChildID {
		t.Fatal("expected a mismatched key at the same position to produce a fresh fiber")
	}
}

func TestReconcileRegistersToolMetadataAtCommit(t *testing.T) {
	store := newFakeToolStore()
	r := New(Options{ToolStore: store, Refs: newFakeRefTable()})

	comp := hookrt.NewToolComponent("search", func(r *hookrt.Render, props node.Props) (node.Node, error) {
		return node.TextNode("results"), nil
	}, compiled.ToolMetadata{Name: "search", Description: "looks things up"})

	_, err := r.Reconcile(context.Background(), node.CompositeNode(comp, nil))
	if err != nil {
		t.Fatalf("reconcile failed: %v", err)
	}
	if _, ok := store.registered["search"]; !ok {
		t.Fatalf("expected tool %q to be registered at commit, got %v", "search", store.registered)
	}
}

func TestReconcileRegistersAndRetractsRefs(t *testing.T) {
	refs := newFakeRefTable()
	r := New(Options{ToolStore: newFakeToolStore(), Refs: refs})
	ctx := context.Background()

	withRef := node.Node{Type: node.Type{Kind: node.KindPrimitive, Primitive: node.PrimText}, Text: "a", Props: node.Props{"ref": "handle"}}
	_, err := r.Reconcile(ctx, node.Fragment(withRef.WithKey("k")))
	if err != nil {
		t.Fatalf("reconcile failed: %v", err)
	}
	if refs.refs["handle"] == "" {
		t.Fatal("expected the ref to be published at commit")
	}

	_, err = r.Reconcile(ctx, node.Fragment(node.TextNode("b").WithKey("other")))
	if err != nil {
		t.Fatalf("second reconcile failed: %v", err)
	}
	if _, ok := refs.refs["handle"]; ok {
		t.Fatal("expected the ref to be retracted once its fiber is deleted")
	}
}

func TestReconcileRunsMountThenUnmountAcrossTicks(t *testing.T) {
	r := newTestReconciler()
	ctx := context.Background()

	var mounted, unmounted bool
	comp := hookrt.NewComponent("mounter", func(r *hookrt.Render, props node.Props) (node.Node, error) {
		hookrt.UseMount(r, func(context.Context) (func(), error) {
			mounted = true
			return func() { unmounted = true }, nil
		})
		return node.TextNode("hi"), nil
	})

	_, err := r.Reconcile(ctx, node.Fragment(node.CompositeNode(comp, nil).WithKey("x")))
	if err != nil {
		t.Fatalf("first reconcile failed: %v", err)
	}
	if !mounted {
		t.Fatal("expected the mount effect to run on first commit")
	}
	if unmounted {
		t.Fatal("did not expect unmount before the fiber is removed")
	}

	_, err = r.Reconcile(ctx, node.Fragment(node.TextNode("bye").WithKey("y")))
	if err != nil {
		t.Fatalf("second reconcile failed: %v", err)
	}
	if !unmounted {
		t.Fatal("expected the unmount cleanup to run once the composite's fiber was deleted")
	}
}

func TestReconcileRetriesSuspendedRenderUntilItResolves(t *testing.T) {
	r := New(Options{ToolStore: newFakeToolStore(), Refs: newFakeRefTable()})
	attempts := 0
	comp := hookrt.NewComponent("suspender", func(r *hookrt.Render, props node.Props) (node.Node, error) {
		attempts++
		if attempts < 3 {
			ch := make(chan hookrt.DataResult, 1)
			ch <- hookrt.DataResult{}
			return node.Node{}, &hookrt.Suspended{Key: "slow", Ch: ch}
		}
		return node.TextNode("resolved"), nil
	})

	f, err := r.Reconcile(context.Background(), node.CompositeNode(comp, nil))
	if err != nil {
		t.Fatalf("expected eventual success, got %v", err)
	}
	if attempts != 3 {
		t.Fatalf("expected exactly 3 render attempts, got %d", attempts)
	}
	if f.Child == nil || f.Child.Text != "resolved" {
		t.Fatalf("expected the resolved text child, got %+v", f.Child)
	}
}

func TestReconcileFailsWhenSuspenseRetriesExhausted(t *testing.T) {
	r := New(Options{MaxSuspenseRetries: 2, ToolStore: newFakeToolStore(), Refs: newFakeRefTable()})
	comp := hookrt.NewComponent("forever-suspended", func(r *hookrt.Render, props node.Props) (node.Node, error) {
		ch := make(chan hookrt.DataResult, 1)
		ch <- hookrt.DataResult{}
		return node.Node{}, &hookrt.Suspended{Key: "slow", Ch: ch}
	})

	_, err := r.Reconcile(context.Background(), node.CompositeNode(comp, nil))
	if err == nil {
		t.Fatal("expected an error once the suspense retry limit is exceeded")
	}
}

func TestReconcileWrapsNonSuspensionRenderErrors(t *testing.T) {
	r := newTestReconciler()
	boom := errors.New("boom")
	comp := hookrt.NewComponent("broken", func(r *hookrt.Render, props node.Props) (node.Node, error) {
		return node.Node{}, boom
	})

	_, err := r.Reconcile(context.Background(), node.CompositeNode(comp, nil))
	if !errors.Is(err, ErrRenderAborted) {
		t.Fatalf("expected ErrRenderAborted in the chain, got %v", err)
	}
}
