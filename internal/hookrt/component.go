package hookrt

import (
	"github.com/kestrel-labs/promptc/pkg/node"
)

// RenderFunc is the shape every composite's render function takes: the
// render context carrying hook state plus this render's props, returning
// the children it produced (or a *Suspended error to request a retry once
// data resolves).
type RenderFunc func(r *Render, props node.Props) (node.Node, error)

// Component adapts a RenderFunc to node.Composite, the minimal interface
// the node package (which cannot import hookrt without a cycle) uses to
// hold a composite's identity. The reconciler always passes a *Render as
// renderCtx; Render asserts it back before calling fn.
type Component struct {
	Name    string
	Fn      RenderFunc
	Tool    *node.ToolMetadata
	Bound   node.BoundaryKind
}

// NewComponent constructs a plain (non-tool, non-boundary) composite.
func NewComponent(name string, fn RenderFunc) *Component {
	return &Component{Name: name, Fn: fn}
}

// NewToolComponent constructs a composite flagged as a tool, whose metadata
// is registered with the external tool store at commit.
func NewToolComponent(name string, fn RenderFunc, tool node.ToolMetadata) *Component {
	return &Component{Name: name, Fn: fn, Tool: &tool}
}

// NewBoundaryComponent constructs a composite that additionally plays a
// renderer-boundary role (formatter, policy, or plain context provider) for
// its subtree.
func NewBoundaryComponent(name string, fn RenderFunc, kind node.BoundaryKind) *Component {
	return &Component{Name: name, Fn: fn, Bound: kind}
}

func (c *Component) Render(renderCtx any, props node.Props) (node.Node, error) {
	r, ok := renderCtx.(*Render)
	if !ok {
		panic("hookrt: Component.Render called with a non-*Render context")
	}
	return c.Fn(r, props)
}

func (c *Component) DebugName() string { return c.Name }

func (c *Component) ToolMeta() *node.ToolMetadata { return c.Tool }

func (c *Component) Boundary() node.BoundaryKind { return c.Bound }

var _ node.Composite = (*Component)(nil)
