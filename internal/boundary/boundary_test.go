package boundary

import (
	"testing"

	"github.com/kestrel-labs/promptc/pkg/compiled"
)

func upperFormatter(blocks []compiled.ContentBlock) string {
	out := ""
	for _, b := range blocks {
		out += b.Text
	}
	return out + "!"
}

func TestResolverFallsBackToDefaultForSections(t *testing.T) {
	r := NewResolver(nil)
	if f := r.SectionFormatter(); f == nil {
		t.Fatal("expected a non-nil default section formatter")
	}
	if f := r.EntryFormatter(); f != nil {
		t.Fatal("expected entries to have no formatter outside an explicit boundary")
	}
}

func TestResolverEnterExitFormatterBoundary(t *testing.T) {
	r := NewResolver(nil)
	r.EnterFormatter(upperFormatter)

	if f := r.EntryFormatter(); f == nil {
		t.Fatal("expected an entry formatter inside an explicit boundary")
	}
	out := r.SectionFormatter()([]compiled.ContentBlock{{Type: compiled.BlockText, Text: "hi"}})
	if out != "hi!" {
		t.Fatalf("expected the explicit formatter to win over the default, got %q", out)
	}

	r.ExitFormatter()
	if f := r.EntryFormatter(); f != nil {
		t.Fatal("expected entry formatter to clear after ExitFormatter")
	}
}

func TestResolverAccumulatesPoliciesInOrder(t *testing.T) {
	r := NewResolver(nil)
	r.EnterPolicies([]compiled.Policy{{Name: "a"}})
	r.EnterPolicies([]compiled.Policy{{Name: "b"}, {Name: "c"}})

	got := r.Policies()
	want := []string{"a", "b", "c"}
	if len(got) != len(want) {
		t.Fatalf("expected %d policies, got %d", len(want), len(got))
	}
	for i, p := range got {
		if p.Name != want[i] {
			t.Fatalf("expected policy order %v, got %v", want, got)
		}
	}
}

func TestDefaultFormatterJoinsBlocksWithBlankLine(t *testing.T) {
	f := NewDefaultFormatter()
	out := f([]compiled.ContentBlock{
		{Type: compiled.BlockText, Text: "first"},
		{Type: compiled.BlockCode, Text: "second"},
	})
	if out != "first\n\nsecond" {
		t.Fatalf("unexpected default formatter output: %q", out)
	}
}
