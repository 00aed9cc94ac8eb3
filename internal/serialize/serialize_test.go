package serialize

import (
	"strings"
	"testing"

	"github.com/kestrel-labs/promptc/internal/fiber"
	"github.com/kestrel-labs/promptc/internal/hookrt"
	"github.com/kestrel-labs/promptc/pkg/node"
)

func TestSerializeNilRoot(t *testing.T) {
	if got := Serialize(nil); got != nil {
		t.Fatalf("expected nil for a nil root, got %+v", got)
	}
}

func TestSerializeAttachesSummaryAndWalksChildren(t *testing.T) {
	root := fiber.New(node.TextNode("root"))
	child := fiber.New(node.TextNode("child"))
	root.Child = child

	out := Serialize(root)
	if out == nil {
		t.Fatal("expected a non-nil snapshot")
	}
	if out.Summary == nil || out.Summary.FiberCount != 2 {
		t.Fatalf("expected fiber count 2, got %+v", out.Summary)
	}
	if len(out.Children) != 1 || out.Children[0].ID != child.DebugID {
		t.Fatalf("expected one child matching the fiber tree, got %+v", out.Children)
	}
}

func TestSerializeValueTruncatesLongStringsAndOversizedCollections(t *testing.T) {
	long := strings.Repeat("x", maxStringLen+10)
	got := serializeValue(long)
	s, ok := got.(string)
	if !ok || !strings.HasSuffix(s, "...") {
		t.Fatalf("expected truncated string marker, got %v", got)
	}

	bigSlice := make([]any, maxSliceItems+1)
	got = serializeValue(bigSlice)
	m, ok := got.(map[string]any)
	if !ok || m["_truncated"] != true {
		t.Fatalf("expected a truncation marker for an oversized slice, got %v", got)
	}
}

// fakeSignal exercises the serializable substitution hook without needing
// a live Render to construct a real hookrt.Signal.
type fakeSignal struct{ v int }

func (f *fakeSignal) SerializableValue() any {
	return map[string]any{"_type": "Signal", "value": f.v}
}

func TestSerializeValueMarksFunctionsAndUnwrapsSignals(t *testing.T) {
	got, ok := serializeValue(func() {}).(string)
	if !ok || !strings.HasPrefix(got, "[Function: ") || !strings.HasSuffix(got, "]") {
		t.Fatalf("expected a named function marker, got %v", got)
	}

	sig := serializeValue(&fakeSignal{v: 42})
	m, ok := sig.(map[string]any)
	if !ok || m["_type"] != "Signal" || m["value"] != 42 {
		t.Fatalf("expected signal substitution shape, got %v", sig)
	}
}

func TestHydrateRebuildsFiberKeyedHookMap(t *testing.T) {
	snapshot := &SerializedFiberNode{
		ID: "root-id",
		Hooks: []SerializedHook{
			{Index: 0, Type: "useState", Value: 1},
		},
		Children: []*SerializedFiberNode{
			{ID: "child-id", Hooks: []SerializedHook{{Index: 0, Type: "useRef", Value: "r"}}},
		},
	}

	out := Hydrate(snapshot)
	if len(out) != 2 {
		t.Fatalf("expected 2 hydration entries, got %d", len(out))
	}
	rootEntry, ok := out["root-id"]
	if !ok || len(rootEntry.Hooks) != 1 || rootEntry.Hooks[0].Tag != hookrt.TagState {
		t.Fatalf("expected root entry with a useState hook, got %+v", rootEntry)
	}
	childEntry, ok := out["child-id"]
	if !ok || len(childEntry.Hooks) != 1 || childEntry.Hooks[0].Tag != hookrt.TagRef {
		t.Fatalf("expected child entry with a useRef hook, got %+v", childEntry)
	}
}
