// Package node is the public surface external callers use to build a
// component tree: the immutable Node value the compiler reconciles every
// tick.
//
// A Node carries a Type (host primitive, composite, fragment, or string
// tag), a Props bag, an optional stable Key, and an ordered list of
// children. Composite render functions live one layer up in internal/hookrt
// so this package never needs to import the hook runtime; Composite here is
// a minimal interface hookrt's Component type satisfies.
package node

import "github.com/kestrel-labs/promptc/pkg/compiled"

// Kind discriminates the category of value carried by a Node's Type field.
type Kind int

const (
	KindPrimitive Kind = iota
	KindComposite
	KindFragment
	KindTag
	KindText
	KindContentBlock
)

func (k Kind) String() string {
	switch k {
	case KindPrimitive:
		return "primitive"
	case KindComposite:
		return "composite"
	case KindFragment:
		return "fragment"
	case KindTag:
		return "tag"
	case KindText:
		return "text"
	case KindContentBlock:
		return "content-block"
	default:
		return "unknown"
	}
}

// Primitive identifies a built-in host primitive recognized by a
// minification-safe marker (here, just the Kind+Primitive pair — Go has no
// minifier to dodge, so the marker is the type itself).
type Primitive string

const (
	PrimSection   Primitive = "Section"
	PrimEntry     Primitive = "Entry"
	PrimTool      Primitive = "Tool"
	PrimEphemeral Primitive = "Ephemeral"
	PrimText      Primitive = "Text"
	PrimCode      Primitive = "Code"
	PrimImage     Primitive = "Image"
	PrimJSON      Primitive = "Json"
	PrimDocument  Primitive = "Document"
	PrimAudio     Primitive = "Audio"
	PrimVideo     Primitive = "Video"
	PrimFragment  Primitive = "Fragment"
)

// Tag identifies an inline-semantic string-tag element recognized by the
// collector's content-block mapper.
type Tag string

const (
	TagStrong       Tag = "strong"
	TagEm           Tag = "em"
	TagCode         Tag = "code"
	TagA            Tag = "a"
	TagQ            Tag = "q"
	TagKbd          Tag = "kbd"
	TagH1           Tag = "h1"
	TagH2           Tag = "h2"
	TagH3           Tag = "h3"
	TagH4           Tag = "h4"
	TagH5           Tag = "h5"
	TagH6           Tag = "h6"
	TagParagraph    Tag = "p"
	TagBlockquote   Tag = "blockquote"
	TagList         Tag = "ul"
	TagOrderedList  Tag = "ol"
	TagListItem     Tag = "li"
	TagTable        Tag = "table"
	TagTableRow     Tag = "tr"
	TagTableColumn  Tag = "td"
	TagLineBreak    Tag = "br"
	TagHorizontalRule Tag = "hr"
	TagImage        Tag = "img"
)

// BoundaryKind identifies which renderer-boundary role a composite's Type
// plays, if any.
type BoundaryKind int

const (
	NoBoundary BoundaryKind = iota
	FormatterBoundary
	PolicyBoundary
	ContextProvider
)

// ToolMetadata is the static (or instance-supplied) description of a Tool
// primitive. The compiler never executes a tool; it only carries metadata
// into CompiledStructure.Tools.
type ToolMetadata = compiled.ToolMetadata

// Composite is implemented by internal/hookrt.Component. The render context
// is threaded as `any` here, rather than a concrete *hookrt.Render, purely
// so this package never needs to import the hook runtime; callers (the
// reconciler) always pass a *hookrt.Render, and Component.Render asserts it
// back.
type Composite interface {
	// Render invokes the composite's function with the given render
	// context and props, returning the children it produced.
	Render(renderCtx any, props Props) (Node, error)
	// DebugName returns a human-readable name for logs and serialization.
	DebugName() string
	// ToolMeta returns this composite's tool metadata, or nil if it isn't
	// flagged as a tool.
	ToolMeta() *ToolMetadata
	// Boundary returns the boundary role this composite's type plays, if
	// any context/formatter/policy boundary is attached.
	Boundary() BoundaryKind
}

// Type is the discriminated union for a Node's type field.
type Type struct {
	Kind      Kind
	Primitive Primitive
	Tag       Tag
	Composite Composite
}

func (t Type) String() string {
	switch t.Kind {
	case KindPrimitive:
		return string(t.Primitive)
	case KindTag:
		return string(t.Tag)
	case KindComposite:
		if t.Composite != nil {
			return t.Composite.DebugName()
		}
		return "composite"
	case KindFragment:
		return "Fragment"
	default:
		return t.Kind.String()
	}
}

// Equal reports whether two Types identify the same host primitive, tag, or
// composite identity — used by the reconciler's reuse test
// (oldFiber.type === newElement.type).
func (t Type) Equal(o Type) bool {
	if t.Kind != o.Kind {
		return false
	}
	switch t.Kind {
	case KindPrimitive:
		return t.Primitive == o.Primitive
	case KindTag:
		return t.Tag == o.Tag
	case KindComposite:
		return t.Composite == o.Composite
	case KindFragment, KindText, KindContentBlock:
		return true
	default:
		return false
	}
}

// Props is the arbitrary key-value bag carried by a Node. Convention keys
// are documented next to each primitive's constructor below.
type Props map[string]any

func (p Props) String(key string) (string, bool) {
	v, ok := p[key]
	if !ok {
		return "", false
	}
	s, ok := v.(string)
	return s, ok
}

func (p Props) Get(key string) any {
	if p == nil {
		return nil
	}
	return p[key]
}

// Node is the immutable view of user intent: a typed tree node with a
// stable key and ordered children.
type Node struct {
	Type     Type
	Props    Props
	Key      *string
	Children []Node

	// Text holds the literal value for KindText nodes (strings/numbers
	// coerced at normalization time).
	Text string

	// Block holds the literal value for KindContentBlock nodes (a typed
	// content-block value passed directly as a child).
	Block *compiled.ContentBlock
}

// IsZero reports whether n is the zero Node (used to represent "no
// children"/"null child" after normalization drops it).
func (n Node) IsZero() bool {
	return n.Type.Kind == KindPrimitive && n.Type.Primitive == "" &&
		n.Type.Composite == nil && n.Children == nil && n.Text == "" && n.Block == nil
}

func key(k string) *string { return &k }

// WithKey returns a copy of n carrying the given stable key.
func (n Node) WithKey(k string) Node {
	n.Key = key(k)
	return n
}

// --- Host primitive constructors -------------------------------------------------

// Section constructs a Section primitive node. content may be a string, a
// []compiled.ContentBlock, or omitted in favor of children.
func Section(id string, props Props, children ...Node) Node {
	if props == nil {
		props = Props{}
	}
	props["id"] = id
	return Node{Type: Type{Kind: KindPrimitive, Primitive: PrimSection}, Props: props, Children: children}
}

// Entry constructs an Entry (message) primitive node.
func Entry(role compiled.Role, props Props, children ...Node) Node {
	if props == nil {
		props = Props{}
	}
	props["role"] = role
	return Node{Type: Type{Kind: KindPrimitive, Primitive: PrimEntry}, Props: props, Children: children}
}

// ToolNode constructs a Tool primitive node. definition may be a
// *ToolMetadata or a string name looked up in the external tool store at
// collection time.
func ToolNode(definition any) Node {
	return Node{Type: Type{Kind: KindPrimitive, Primitive: PrimTool}, Props: Props{"definition": definition}}
}

// Ephemeral constructs an Ephemeral primitive node.
func Ephemeral(position compiled.EphemeralPosition, order int, children ...Node) Node {
	return Node{
		Type:     Type{Kind: KindPrimitive, Primitive: PrimEphemeral},
		Props:    Props{"position": position, "order": order},
		Children: children,
	}
}

// TextNode constructs a Text content primitive.
func TextNode(text string) Node {
	return Node{Type: Type{Kind: KindPrimitive, Primitive: PrimText}, Text: text}
}

// CodeNode constructs a Code content primitive.
func CodeNode(text, language string) Node {
	return Node{Type: Type{Kind: KindPrimitive, Primitive: PrimCode}, Text: text, Props: Props{"language": language}}
}

// ImageNode constructs an Image content primitive.
func ImageNode(source string) Node {
	return Node{Type: Type{Kind: KindPrimitive, Primitive: PrimImage}, Props: Props{"source": source}}
}

// JSONNode constructs a Json content primitive.
func JSONNode(data any) Node {
	return Node{Type: Type{Kind: KindPrimitive, Primitive: PrimJSON}, Props: Props{"data": data}}
}

// DocumentNode, AudioNode, VideoNode mirror ImageNode for their media kind.
func DocumentNode(source string) Node {
	return Node{Type: Type{Kind: KindPrimitive, Primitive: PrimDocument}, Props: Props{"source": source}}
}
func AudioNode(source string) Node {
	return Node{Type: Type{Kind: KindPrimitive, Primitive: PrimAudio}, Props: Props{"source": source}}
}
func VideoNode(source string) Node {
	return Node{Type: Type{Kind: KindPrimitive, Primitive: PrimVideo}, Props: Props{"source": source}}
}

// Fragment reconciles its children directly against the parent, contributing
// no fiber of its own semantic kind.
func Fragment(children ...Node) Node {
	return Node{Type: Type{Kind: KindFragment}, Children: children}
}

// CompositeNode constructs a composite element from a hookrt.Component (or any
// node.Composite implementation) and props.
func CompositeNode(c Composite, props Props, children ...Node) Node {
	return Node{Type: Type{Kind: KindComposite, Composite: c}, Props: props, Children: children}
}

// TagNode constructs an inline-semantic string-tag element.
func TagNode(tag Tag, props Props, children ...Node) Node {
	return Node{Type: Type{Kind: KindTag, Tag: tag}, Props: props, Children: children}
}

// Block wraps an already-typed content block as a child node.
func Block(b compiled.ContentBlock) Node {
	return Node{Type: Type{Kind: KindContentBlock}, Block: &b}
}
