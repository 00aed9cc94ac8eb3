package collect

import (
	"context"
	"testing"

	"github.com/kestrel-labs/promptc/internal/hookrt"
	"github.com/kestrel-labs/promptc/internal/reconcile"
	"github.com/kestrel-labs/promptc/pkg/compiled"
	"github.com/kestrel-labs/promptc/pkg/node"
)

type stubToolStore struct{}

func (stubToolStore) Register(name string, meta compiled.ToolMetadata) {}

type stubRefTable struct{}

func (stubRefTable) Set(name, fiberID string) {}
func (stubRefTable) Delete(name string)       {}

func commitTree(t *testing.T, tree node.Node) *reconcile.Reconciler {
	t.Helper()
	r := reconcile.New(reconcile.Options{ToolStore: stubToolStore{}, Refs: stubRefTable{}})
	if _, err := r.Reconcile(context.Background(), tree); err != nil {
		t.Fatalf("reconcile failed: %v", err)
	}
	return r
}

// formatterBoundaryNode wraps children in a FormatterBoundary composite
// whose Render forwards the children prop straight through, mirroring how
// a real formatter-wrapping component would be written.
func formatterBoundaryNode(formatter compiled.Formatter, children ...node.Node) node.Node {
	comp := hookrt.NewBoundaryComponent("formatter-boundary", func(r *hookrt.Render, props node.Props) (node.Node, error) {
		kids, _ := props.Get("children").([]node.Node)
		return node.Fragment(kids...), nil
	}, node.FormatterBoundary)
	return node.CompositeNode(comp, node.Props{"value": formatter, "children": children}, children...)
}

func policyBoundaryNode(policies []compiled.Policy, children ...node.Node) node.Node {
	comp := hookrt.NewBoundaryComponent("policy-boundary", func(r *hookrt.Render, props node.Props) (node.Node, error) {
		kids, _ := props.Get("children").([]node.Node)
		return node.Fragment(kids...), nil
	}, node.PolicyBoundary)
	return node.CompositeNode(comp, node.Props{"value": policies, "children": children}, children...)
}

func TestCollectSectionWithTextChildren(t *testing.T) {
	tree := node.Fragment(node.Section("intro", node.Props{"title": "Intro"}, node.TextNode("hello")).WithKey("s"))
	r := commitTree(t, tree)

	out := Collect(r.Current(), nil, nil)
	sec, ok := out.Sections["intro"]
	if !ok {
		t.Fatalf("expected section %q, got %v", "intro", out.Sections)
	}
	if sec.Title != "Intro" {
		t.Fatalf("expected title %q, got %q", "Intro", sec.Title)
	}
	if len(sec.Content) != 1 || sec.Content[0].Text != "hello" {
		t.Fatalf("unexpected section content: %+v", sec.Content)
	}
	if len(out.SystemMessageItems) != 1 || out.SystemMessageItems[0].SectionID != "intro" {
		t.Fatalf("expected one system item referencing the section, got %+v", out.SystemMessageItems)
	}
}

func TestCollectSectionSynthesizesIDWhenMissing(t *testing.T) {
	tree := node.Fragment(node.Section("", nil, node.TextNode("x")).WithKey("s"))
	r := commitTree(t, tree)

	out := Collect(r.Current(), nil, nil)
	if len(out.Sections) != 1 {
		t.Fatalf("expected exactly one section, got %d", len(out.Sections))
	}
	for id := range out.Sections {
		if id == "" {
			t.Fatal("expected a synthesized, non-empty section id")
		}
	}
}

func TestCollectMergesSectionsWithSameID(t *testing.T) {
	tree := node.Fragment(
		node.Section("dup", node.Props{"title": "First"}, node.TextNode("a")).WithKey("s1"),
		node.Section("dup", nil, node.TextNode("b")).WithKey("s2"),
	)
	r := commitTree(t, tree)

	out := Collect(r.Current(), nil, nil)
	sec, ok := out.Sections["dup"]
	if !ok {
		t.Fatal("expected merged section under id \"dup\"")
	}
	if len(sec.Content) != 2 || sec.Content[0].Text != "a" || sec.Content[1].Text != "b" {
		t.Fatalf("expected concatenated content in encounter order, got %+v", sec.Content)
	}
	if sec.Title != "First" {
		t.Fatalf("expected the later instance's empty title to fall back to the earlier's, got %q", sec.Title)
	}
	if len(out.SystemMessageItems) != 1 {
		t.Fatalf("expected only the first section occurrence to emit a system item, got %+v", out.SystemMessageItems)
	}
}

func TestCollectEntryRoutesUserRoleToTimeline(t *testing.T) {
	tree := node.Fragment(node.Entry(compiled.RoleUser, nil, node.TextNode("hi")).WithKey("e"))
	r := commitTree(t, tree)

	out := Collect(r.Current(), nil, nil)
	if len(out.TimelineEntries) != 1 {
		t.Fatalf("expected one timeline entry, got %d", len(out.TimelineEntries))
	}
	if out.TimelineEntries[0].Message.Role != compiled.RoleUser {
		t.Fatalf("expected role %q, got %q", compiled.RoleUser, out.TimelineEntries[0].Message.Role)
	}
	if len(out.SystemMessageItems) != 0 {
		t.Fatalf("did not expect a user entry to emit a system item, got %+v", out.SystemMessageItems)
	}
}

func TestCollectEntryRoutesSystemRoleToSystemItems(t *testing.T) {
	tree := node.Fragment(node.Entry(compiled.RoleSystem, nil, node.TextNode("be terse")).WithKey("e"))
	r := commitTree(t, tree)

	out := Collect(r.Current(), nil, nil)
	if len(out.TimelineEntries) != 0 {
		t.Fatalf("did not expect a system entry in the timeline, got %+v", out.TimelineEntries)
	}
	if len(out.SystemMessageItems) != 1 || out.SystemMessageItems[0].Type != compiled.SystemItemMessage {
		t.Fatalf("expected one system-routed message item, got %+v", out.SystemMessageItems)
	}
	if out.SystemMessageItems[0].Content[0].Text != "be terse" {
		t.Fatalf("unexpected system message content: %+v", out.SystemMessageItems[0].Content)
	}
}

func TestCollectEphemeralDefaultsToFlowPosition(t *testing.T) {
	tree := node.Fragment(node.Ephemeral("", 0, node.TextNode("now")).WithKey("eph"))
	r := commitTree(t, tree)

	out := Collect(r.Current(), nil, nil)
	if len(out.Ephemeral) != 1 {
		t.Fatalf("expected one ephemeral item, got %d", len(out.Ephemeral))
	}
	if out.Ephemeral[0].Position != compiled.PositionFlow {
		t.Fatalf("expected default position %q, got %q", compiled.PositionFlow, out.Ephemeral[0].Position)
	}
}

func TestCollectToolRegistersInlineMetadata(t *testing.T) {
	tree := node.Fragment(node.ToolNode(compiled.ToolMetadata{
		Name: "search", Description: "looks things up",
		Parameters: map[string]any{"type": "object"},
	}).WithKey("t"))
	r := commitTree(t, tree)

	out := Collect(r.Current(), nil, nil)
	if len(out.Tools) != 1 || out.Tools[0].Name != "search" {
		t.Fatalf("expected tool %q registered, got %+v", "search", out.Tools)
	}
}

func TestCollectToolResolvesStringDefinitionViaLookup(t *testing.T) {
	tree := node.Fragment(node.ToolNode("search").WithKey("t"))
	r := commitTree(t, tree)

	lookup := func(name string) (compiled.ToolMetadata, bool) {
		if name != "search" {
			return compiled.ToolMetadata{}, false
		}
		return compiled.ToolMetadata{Name: "search"}, true
	}
	out := Collect(r.Current(), lookup, nil)
	if len(out.Tools) != 1 || out.Tools[0].Name != "search" {
		t.Fatalf("expected the looked-up tool to be registered, got %+v", out.Tools)
	}
}

func TestCollectToolDropsUnresolvedStringDefinition(t *testing.T) {
	tree := node.Fragment(node.ToolNode("missing").WithKey("t"))
	r := commitTree(t, tree)

	out := Collect(r.Current(), nil, nil)
	if len(out.Tools) != 0 {
		t.Fatalf("expected no tools registered without a lookup, got %+v", out.Tools)
	}
}

func TestCollectToolLastWriteWinsByName(t *testing.T) {
	tree := node.Fragment(
		node.ToolNode(compiled.ToolMetadata{Name: "search", Description: "v1"}).WithKey("t1"),
		node.ToolNode(compiled.ToolMetadata{Name: "search", Description: "v2"}).WithKey("t2"),
	)
	r := commitTree(t, tree)

	out := Collect(r.Current(), nil, nil)
	if len(out.Tools) != 1 {
		t.Fatalf("expected last-write-wins to collapse to a single tool entry, got %+v", out.Tools)
	}
	if out.Tools[0].Tool.Description != "v2" {
		t.Fatalf("expected the later registration to win, got %q", out.Tools[0].Tool.Description)
	}
}

func TestCollectDropsToolWithInvalidParametersSchema(t *testing.T) {
	tree := node.Fragment(node.ToolNode(compiled.ToolMetadata{
		Name:       "broken",
		Parameters: map[string]any{"type": "not-a-real-json-schema-type"},
	}).WithKey("t"))
	r := commitTree(t, tree)

	out := Collect(r.Current(), nil, nil)
	if len(out.Tools) != 0 {
		t.Fatalf("expected the invalid-schema tool to be dropped, got %+v", out.Tools)
	}
}

func TestCollectFormatterBoundaryAppliesToWrappedSection(t *testing.T) {
	shout := func(blocks []compiled.ContentBlock) string {
		out := ""
		for _, b := range blocks {
			out += b.Text
		}
		return out + "!"
	}
	tree := node.Fragment(
		formatterBoundaryNode(shout, node.Section("wrapped", nil, node.TextNode("hi")).WithKey("s")).WithKey("boundary"),
	)
	r := commitTree(t, tree)

	out := Collect(r.Current(), nil, nil)
	sec, ok := out.Sections["wrapped"]
	if !ok {
		t.Fatal("expected the wrapped section to be collected")
	}
	if sec.Formatter == nil {
		t.Fatal("expected the section to carry the boundary's formatter")
	}
	if got := sec.Formatter(sec.Content); got != "hi!" {
		t.Fatalf("expected the boundary formatter output, got %q", got)
	}
}

func TestCollectSectionOutsideFormatterBoundaryUsesDefault(t *testing.T) {
	tree := node.Fragment(node.Section("plain", nil, node.TextNode("hi")).WithKey("s"))
	r := commitTree(t, tree)

	out := Collect(r.Current(), nil, nil)
	sec := out.Sections["plain"]
	if sec.Formatter == nil {
		t.Fatal("expected a default formatter even outside an explicit boundary")
	}
}

func TestCollectPolicyBoundariesAccumulateAcrossSubtrees(t *testing.T) {
	tree := node.Fragment(
		policyBoundaryNode([]compiled.Policy{{Name: "redact"}}, node.Section("a", nil, node.TextNode("x")).WithKey("sa")).WithKey("p1"),
		policyBoundaryNode([]compiled.Policy{{Name: "summarize"}}, node.Section("b", nil, node.TextNode("y")).WithKey("sb")).WithKey("p2"),
	)
	r := commitTree(t, tree)

	out := Collect(r.Current(), nil, nil)
	if len(out.PolicyBoundaries) != 2 {
		t.Fatalf("expected two accumulated policies, got %+v", out.PolicyBoundaries)
	}
	if out.PolicyBoundaries[0].Name != "redact" || out.PolicyBoundaries[1].Name != "summarize" {
		t.Fatalf("expected policies in encounter order, got %+v", out.PolicyBoundaries)
	}
}

func TestCollectLooseContentAtRootEmitsSystemItem(t *testing.T) {
	tree := node.Fragment(node.TextNode("stray"))
	r := commitTree(t, tree)

	out := Collect(r.Current(), nil, nil)
	if len(out.SystemMessageItems) != 1 || out.SystemMessageItems[0].Type != compiled.SystemItemLoose {
		t.Fatalf("expected one loose system item, got %+v", out.SystemMessageItems)
	}
	if out.SystemMessageItems[0].Content[0].Text != "stray" {
		t.Fatalf("unexpected loose content: %+v", out.SystemMessageItems[0].Content)
	}
}

func TestCollectNilRootReturnsEmptyStructure(t *testing.T) {
	out := Collect(nil, nil, nil)
	if len(out.Sections) != 0 || len(out.TimelineEntries) != 0 || len(out.Tools) != 0 {
		t.Fatalf("expected an empty structure for a nil root, got %+v", out)
	}
}
