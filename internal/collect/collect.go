// Package collect implements the collector (C7): a depth-first traversal
// of the committed fiber tree that classifies each fiber's primitive kind
// and emits a pkg/compiled.Structure, consulting the renderer boundary
// resolver (C6) along the way.
//
// Grounded on nexus/internal/agent/tool_registry.go's last-write-wins
// registration store, applied here to Tool primitives collected into
// CompiledStructure.Tools instead of to a running agent's tool set.
package collect

import (
	"log/slog"

	"github.com/google/uuid"
	"github.com/kestrel-labs/promptc/internal/boundary"
	"github.com/kestrel-labs/promptc/internal/fiber"
	"github.com/kestrel-labs/promptc/pkg/compiled"
	"github.com/kestrel-labs/promptc/pkg/node"
)

// ToolLookup resolves a Tool node's string "definition" prop (a name) to
// registered metadata in the external tool store.
type ToolLookup func(name string) (compiled.ToolMetadata, bool)

type collector struct {
	out        *compiled.Structure
	resolver   *boundary.Resolver
	index      int
	toolLookup ToolLookup
	logger     *slog.Logger
}

// Collect walks root and returns the CompiledStructure it produces. A nil
// toolLookup means Tool nodes with a string "definition" are silently
// dropped (no external tool store configured).
func Collect(root *fiber.Fiber, toolLookup ToolLookup, logger *slog.Logger) *compiled.Structure {
	if logger == nil {
		logger = slog.Default()
	}
	c := &collector{
		out:        compiled.New(),
		resolver:   boundary.NewResolver(boundary.NewDefaultFormatter()),
		toolLookup: toolLookup,
		logger:     logger,
	}
	if root != nil {
		c.visit(root)
	}
	c.out.PolicyBoundaries = c.resolver.Policies()
	return c.out
}

func (c *collector) walkChildren(first *fiber.Fiber) {
	for f := first; f != nil; f = f.Sibling {
		c.visit(f)
	}
}

func (c *collector) visit(f *fiber.Fiber) {
	switch f.Type.Kind {
	case node.KindPrimitive:
		c.visitPrimitive(f)
	case node.KindComposite:
		c.visitComposite(f)
	case node.KindFragment:
		c.walkChildren(f.Child)
	case node.KindTag, node.KindText, node.KindContentBlock:
		c.emitLoose(contentFromNode(f))
	}
}

func (c *collector) visitComposite(f *fiber.Fiber) {
	comp := f.Type.Composite
	if comp == nil {
		c.walkChildren(f.Child)
		return
	}
	switch comp.Boundary() {
	case node.FormatterBoundary:
		if fn, ok := f.Props.Get("value").(compiled.Formatter); ok {
			c.resolver.EnterFormatter(fn)
			c.walkChildren(f.Child)
			c.resolver.ExitFormatter()
			return
		}
	case node.PolicyBoundary:
		if pols, ok := f.Props.Get("value").([]compiled.Policy); ok {
			c.resolver.EnterPolicies(pols)
		}
	}
	c.walkChildren(f.Child)
}

func (c *collector) visitPrimitive(f *fiber.Fiber) {
	switch f.Type.Primitive {
	case node.PrimSection:
		c.collectSection(f)
	case node.PrimEntry:
		c.collectEntry(f)
	case node.PrimEphemeral:
		c.collectEphemeral(f)
	case node.PrimTool:
		c.collectTool(f)
	default:
		// A content primitive (Text/Code/Image/...) encountered directly,
		// not nested under a Section/Entry, is root-level loose content
		//.
		c.emitLoose([]compiled.ContentBlock{blockFromPrimitiveLeaf(f)})
	}
}

func (c *collector) collectSection(f *fiber.Fiber) {
	id, _ := f.Props.String("id")
	synthesized := id == ""
	if synthesized {
		id = c.synthesizeID("section")
	}

	content := c.sectionContent(f)
	title, _ := f.Props.String("title")
	vis, _ := f.Props.Get("visibility").(compiled.Visibility)
	aud, _ := f.Props.Get("audience").(compiled.Audience)
	tags, _ := f.Props.Get("tags").([]string)
	meta, _ := f.Props.Get("metadata").(map[string]any)

	sec := &compiled.Section{
		ID: id, Title: title, Content: content, Formatter: c.resolver.SectionFormatter(),
		Visibility: vis, Audience: aud, Tags: tags, Metadata: meta,
	}

	if existing, ok := c.out.Sections[id]; ok {
		if !synthesized {
			c.logger.Warn("section id collision; merging content", "section_id", id)
		}
		c.out.Sections[id] = mergeSections(existing, sec)
		return
	}
	c.out.Sections[id] = sec
	c.emitSystemItem(compiled.SystemItem{Type: compiled.SystemItemSection, SectionID: id})
}

// sectionContent resolves a Section's content from children (if any),
// falling back to its "content" prop.
func (c *collector) sectionContent(f *fiber.Fiber) []compiled.ContentBlock {
	if f.Child != nil {
		return contentFromChildren(f.Child)
	}
	if raw := f.Props.Get("content"); raw != nil {
		return normalizeContentProp(raw)
	}
	return nil
}

// mergeSections concatenates content in encounter order and lets the later
// instance's non-content fields win, falling back to the earlier instance's
// when a field is empty.
func mergeSections(earlier, later *compiled.Section) *compiled.Section {
	merged := *later
	merged.Content = append(append([]compiled.ContentBlock{}, earlier.Content...), later.Content...)
	if merged.Title == "" {
		merged.Title = earlier.Title
	}
	if merged.Formatter == nil {
		merged.Formatter = earlier.Formatter
	}
	if merged.Visibility == "" {
		merged.Visibility = earlier.Visibility
	}
	if merged.Audience == "" {
		merged.Audience = earlier.Audience
	}
	if merged.Tags == nil {
		merged.Tags = earlier.Tags
	}
	if merged.Metadata == nil {
		merged.Metadata = earlier.Metadata
	}
	return &merged
}

func (c *collector) collectEntry(f *fiber.Fiber) {
	role, _ := f.Props.Get("role").(compiled.Role)
	if role == "" {
		role = compiled.RoleUser
	}

	var content []compiled.ContentBlock
	switch {
	case f.Props.Get("message") != nil:
		if msg, ok := f.Props.Get("message").(compiled.Message); ok {
			content = msg.Content
			if msg.Role != "" {
				role = msg.Role
			}
		}
	case f.Props.Get("content") != nil:
		content = normalizeContentProp(f.Props.Get("content"))
	default:
		content = contentFromChildren(f.Child)
	}

	id, _ := f.Props.String("id")
	tags, _ := f.Props.Get("tags").([]string)
	meta, _ := f.Props.Get("metadata").(map[string]any)
	vis, _ := f.Props.Get("visibility").(compiled.Visibility)

	if role == compiled.RoleSystem {
		c.emitSystemItem(compiled.SystemItem{
			Type: compiled.SystemItemMessage, Content: content, Formatter: c.resolver.EntryFormatter(),
		})
		return
	}

	c.out.TimelineEntries = append(c.out.TimelineEntries, compiled.TimelineEntry{
		Kind:      "message",
		Message:   compiled.Message{Role: role, Content: content, ID: id, Metadata: meta},
		Formatter: c.resolver.EntryFormatter(),
		ID:        id, Visibility: vis, Tags: tags, Metadata: meta,
	})
}

func (c *collector) collectEphemeral(f *fiber.Fiber) {
	pos, _ := f.Props.Get("position").(compiled.EphemeralPosition)
	if pos == "" {
		pos = compiled.PositionFlow
	}
	order := 0
	if o, ok := f.Props.Get("order").(int); ok {
		order = o
	}
	c.out.Ephemeral = append(c.out.Ephemeral, compiled.EphemeralItem{
		Content: contentFromChildren(f.Child), Position: pos, Order: order,
	})
}

func (c *collector) collectTool(f *fiber.Fiber) {
	meta, ok := c.resolveToolMeta(f.Props.Get("definition"))
	if !ok {
		return
	}
	if err := validateToolSchema(meta.Name, meta.Parameters); err != nil {
		c.logger.Warn("dropping tool with invalid parameters schema", "tool", meta.Name, "error", err)
		return
	}
	for i, ref := range c.out.Tools {
		if ref.Name == meta.Name {
			c.out.Tools[i] = compiled.ToolRef{Name: meta.Name, Tool: meta} // last-write-wins by name
			return
		}
	}
	c.out.Tools = append(c.out.Tools, compiled.ToolRef{Name: meta.Name, Tool: meta})
}

func (c *collector) resolveToolMeta(def any) (compiled.ToolMetadata, bool) {
	switch v := def.(type) {
	case compiled.ToolMetadata:
		return v, v.Name != ""
	case *compiled.ToolMetadata:
		if v == nil {
			return compiled.ToolMetadata{}, false
		}
		return *v, v.Name != ""
	case string:
		if c.toolLookup == nil {
			return compiled.ToolMetadata{}, false
		}
		return c.toolLookup(v)
	default:
		return compiled.ToolMetadata{}, false
	}
}

func (c *collector) emitLoose(blocks []compiled.ContentBlock) {
	c.emitSystemItem(compiled.SystemItem{
		Type: compiled.SystemItemLoose, Content: blocks, Formatter: c.resolver.EntryFormatter(),
	})
}

// emitSystemItem stamps item.Index with the next value of the monotonic
// counter and appends it, preserving source-tree ordering across section,
// entry, and loose content items alike.
func (c *collector) emitSystemItem(item compiled.SystemItem) {
	item.Index = c.index
	c.index++
	c.out.SystemMessageItems = append(c.out.SystemMessageItems, item)
}

func (c *collector) synthesizeID(prefix string) string {
	return prefix + "-" + uuid.NewString()
}
