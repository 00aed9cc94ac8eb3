// Package tokenest implements the token annotator (C8): it walks a
// compiled structure and stamps per-entity token counts plus the overall
// total, using a pluggable estimator.
package tokenest

import (
	"encoding/json"

	"github.com/kestrel-labs/promptc/pkg/compiled"
)

// Estimator maps a string to an estimated token count.
type Estimator func(text string) int

// MessageOverhead and ImageOverhead are the fixed per-entity and per-image
// token costs added on top of an estimator's raw count.
const (
	MessageOverhead = 4
	ImageOverhead   = 85
)

// DefaultEstimator is the default cost model: ceil(length(s)/4).
func DefaultEstimator(s string) int {
	n := len(s)
	if n == 0 {
		return 0
	}
	return (n + 3) / 4
}

// Annotate stamps Tokens on every section, timeline entry, and system-role
// message item in s, and sets s.TotalTokens to their sum plus the
// contribution of loose system items and ephemerals, which are counted but
// not individually stamped. If estimator is nil, Annotate is a no-op: no
// .tokens fields and no .totalTokens are set.
func Annotate(s *compiled.Structure, estimator Estimator) {
	if estimator == nil || s == nil {
		return
	}
	total := 0

	for id, sec := range s.Sections {
		t := blocksCost(sec.Content, estimator) + MessageOverhead
		sec.Tokens = &t
		s.Sections[id] = sec
		total += t
	}

	for i := range s.TimelineEntries {
		t := blocksCost(s.TimelineEntries[i].Message.Content, estimator) + MessageOverhead
		s.TimelineEntries[i].Tokens = &t
		total += t
	}

	for i := range s.SystemMessageItems {
		item := &s.SystemMessageItems[i]
		if item.Type == compiled.SystemItemSection {
			// Already counted via s.Sections above; this item carries no
			// content of its own.
			continue
		}
		t := blocksCost(item.Content, estimator) + MessageOverhead
		if item.Type == compiled.SystemItemMessage {
			item.Tokens = &t
		}
		total += t
	}

	// Ephemerals contribute to the total but are not individually stamped.
	for _, eph := range s.Ephemeral {
		total += blocksCost(eph.Content, estimator)
	}

	s.TotalTokens = &total
}

func blocksCost(blocks []compiled.ContentBlock, est Estimator) int {
	total := 0
	for _, b := range blocks {
		total += blockCost(b, est)
	}
	return total
}

// blockCost implements the per-block-type cost table.
func blockCost(b compiled.ContentBlock, est Estimator) int {
	switch b.Type {
	case compiled.BlockText, compiled.BlockReasoning, compiled.BlockUserAction,
		compiled.BlockSystemEvent, compiled.BlockStateChange:
		return est(b.Text)
	case compiled.BlockCode:
		if b.Text != "" {
			return est(b.Text)
		}
		return est(b.JSONText)
	case compiled.BlockJSON:
		if b.JSONText != "" {
			return est(b.JSONText)
		}
		enc, _ := json.Marshal(b.Data)
		return est(string(enc))
	case compiled.BlockToolUse:
		enc, _ := json.Marshal(b.Input)
		return est(b.Name + string(enc))
	case compiled.BlockToolResult:
		if len(b.Content) > 0 {
			return blocksCost(b.Content, est)
		}
		return est(b.ToolResultText)
	case compiled.BlockImage:
		return ImageOverhead
	default:
		enc, _ := json.Marshal(b)
		return est(string(enc))
	}
}
