package tokenest

import (
	"testing"

	"github.com/kestrel-labs/promptc/pkg/compiled"
)

func TestDefaultEstimatorCeilsLengthOverFour(t *testing.T) {
	cases := map[string]int{
		"":     0,
		"a":    1,
		"abcd": 1,
		"abcde": 2,
		"abcdefgh": 2,
	}
	for s, want := range cases {
		if got := DefaultEstimator(s); got != want {
			t.Errorf("DefaultEstimator(%q) = %d, want %d", s, got, want)
		}
	}
}

func TestAnnotateIsNoOpWithNilEstimator(t *testing.T) {
	s := compiled.New()
	s.Sections["a"] = &compiled.Section{ID: "a", Content: []compiled.ContentBlock{{Type: compiled.BlockText, Text: "hi"}}}

	Annotate(s, nil)

	if s.Sections["a"].Tokens != nil {
		t.Fatal("expected no tokens stamped when estimator is nil")
	}
	if s.TotalTokens != nil {
		t.Fatal("expected no total tokens when estimator is nil")
	}
}

func TestAnnotateStampsSectionsEntriesAndTotal(t *testing.T) {
	s := compiled.New()
	s.Sections["persona"] = &compiled.Section{
		ID:      "persona",
		Content: []compiled.ContentBlock{{Type: compiled.BlockText, Text: "abcd"}},
	}
	s.TimelineEntries = []compiled.TimelineEntry{
		{Message: compiled.Message{Role: compiled.RoleUser, Content: []compiled.ContentBlock{{Type: compiled.BlockText, Text: "abcd"}}}},
	}

	Annotate(s, DefaultEstimator)

	if s.Sections["persona"].Tokens == nil || *s.Sections["persona"].Tokens != 1+MessageOverhead {
		t.Fatalf("expected section tokens = 1 + overhead, got %v", s.Sections["persona"].Tokens)
	}
	if s.TimelineEntries[0].Tokens == nil || *s.TimelineEntries[0].Tokens != 1+MessageOverhead {
		t.Fatalf("expected entry tokens = 1 + overhead, got %v", s.TimelineEntries[0].Tokens)
	}
	wantTotal := 2 * (1 + MessageOverhead)
	if s.TotalTokens == nil || *s.TotalTokens != wantTotal {
		t.Fatalf("expected total tokens %d, got %v", wantTotal, s.TotalTokens)
	}
}

func TestBlockCostImageUsesFixedOverhead(t *testing.T) {
	got := blockCost(compiled.ContentBlock{Type: compiled.BlockImage}, DefaultEstimator)
	if got != ImageOverhead {
		t.Fatalf("expected image block cost %d, got %d", ImageOverhead, got)
	}
}
