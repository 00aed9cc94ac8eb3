// Package boundary implements the renderer boundary resolver (C6): the
// formatter/policy boundary stack maintained while the collector (C7)
// walks the committed tree.
//
// Grounded on nexus/internal/tools/policy's resolver/policy-list shape
// (filterToolsByPolicy accumulates an ordered policy list the same way
// PolicyList does here), adapted from filtering tool calls to accumulating
// entry-processing policies encountered during a tree walk.
package boundary

import "github.com/kestrel-labs/promptc/pkg/compiled"

// FormatterStack tracks the active formatter boundaries on the path from
// the root to the node currently being collected. The top of the stack is
// the current formatter; an empty stack means "no explicit wrap."
type FormatterStack struct {
	stack []compiled.Formatter
}

// Push enters a formatter boundary.
func (s *FormatterStack) Push(f compiled.Formatter) { s.stack = append(s.stack, f) }

// Pop exits the innermost formatter boundary.
func (s *FormatterStack) Pop() {
	if len(s.stack) > 0 {
		s.stack = s.stack[:len(s.stack)-1]
	}
}

// Current returns the active formatter and whether the stack is non-empty
// (i.e. whether the current position was "explicitly wrapped").
func (s *FormatterStack) Current() (compiled.Formatter, bool) {
	if len(s.stack) == 0 {
		return nil, false
	}
	return s.stack[len(s.stack)-1], true
}

// PolicyList accumulates every policy boundary encountered during
// traversal, preserving encounter order.
type PolicyList struct {
	items []compiled.Policy
}

// Add appends policies, in the order given.
func (p *PolicyList) Add(items ...compiled.Policy) { p.items = append(p.items, items...) }

// All returns every policy accumulated so far.
func (p *PolicyList) All() []compiled.Policy {
	out := make([]compiled.Policy, len(p.items))
	copy(out, p.items)
	return out
}

// DefaultRenderer is the fallback renderer C6 hands sections that were
// never wrapped in an explicit formatter boundary: sections always have a
// renderer; entries only have a formatter when deliberately wrapped.
type DefaultRenderer struct{}

// Format concatenates block text content with blank-line separation,
// a minimal but deterministic default suitable for any ContentBlock slice.
func (DefaultRenderer) Format(blocks []compiled.ContentBlock) string {
	out := ""
	for i, b := range blocks {
		if i > 0 {
			out += "\n\n"
		}
		switch b.Type {
		case compiled.BlockText, compiled.BlockReasoning:
			out += b.Text
		case compiled.BlockCode:
			out += b.Text
		case compiled.BlockJSON:
			out += b.JSONText
		default:
			out += b.Text
		}
	}
	return out
}

// NewDefaultFormatter adapts DefaultRenderer.Format to the compiled.Formatter
// function type.
func NewDefaultFormatter() compiled.Formatter {
	r := DefaultRenderer{}
	return r.Format
}

// Resolver is the per-collect-pass C6 instance: a formatter stack, a
// policy accumulator, and the default formatter sections fall back to.
type Resolver struct {
	formatters       FormatterStack
	policies         PolicyList
	defaultFormatter compiled.Formatter
}

// NewResolver returns a Resolver with the given fallback formatter
// (typically boundary.NewDefaultFormatter()).
func NewResolver(defaultFormatter compiled.Formatter) *Resolver {
	if defaultFormatter == nil {
		defaultFormatter = NewDefaultFormatter()
	}
	return &Resolver{defaultFormatter: defaultFormatter}
}

// EnterFormatter pushes a formatter boundary around the subtree about to be
// visited.
func (r *Resolver) EnterFormatter(f compiled.Formatter) { r.formatters.Push(f) }

// ExitFormatter pops the formatter boundary pushed by the matching
// EnterFormatter.
func (r *Resolver) ExitFormatter() { r.formatters.Pop() }

// EnterPolicies registers policies carried by a policy boundary encountered
// at the current traversal position.
func (r *Resolver) EnterPolicies(items []compiled.Policy) { r.policies.Add(items...) }

// EntryFormatter returns the formatter for a timeline entry/message,
// present only if the current position is inside an explicit formatter
// boundary.
func (r *Resolver) EntryFormatter() compiled.Formatter {
	f, _ := r.formatters.Current()
	return f
}

// SectionFormatter returns the formatter for a section: the active
// boundary's formatter if one is wrapped, otherwise the default.
func (r *Resolver) SectionFormatter() compiled.Formatter {
	if f, ok := r.formatters.Current(); ok {
		return f
	}
	return r.defaultFormatter
}

// Policies returns every policy accumulated so far, in encounter order.
func (r *Resolver) Policies() []compiled.Policy { return r.policies.All() }
