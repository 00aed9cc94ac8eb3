// Package compiled defines the language-agnostic output of a compile: the
// CompiledStructure produced by the collector (internal/collect) and
// annotated by the token estimator (internal/tokenest).
//
// Values in this package are immutable once returned from a compile: the
// collector builds them fresh on every iteration rather than mutating a
// structure handed to a previous caller.
package compiled

// Role identifies the author of a timeline entry or message.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
	RoleSystem    Role = "system"
	RoleTool      Role = "tool"
)

// Visibility controls which audience a section or entry is rendered for.
type Visibility string

const (
	VisibilityModel    Visibility = "model"
	VisibilityObserver Visibility = "observer"
	VisibilityLog      Visibility = "log"
)

// Audience narrows Visibility to a specific consumer.
type Audience string

const (
	AudienceModel  Audience = "model"
	AudienceHuman  Audience = "human"
	AudienceSystem Audience = "system"
)

// EphemeralPosition controls where an Ephemeral item is spliced relative to
// the rest of the compiled output by downstream renderers.
type EphemeralPosition string

const (
	PositionStart        EphemeralPosition = "start"
	PositionEnd          EphemeralPosition = "end"
	PositionBeforeUser   EphemeralPosition = "before-user"
	PositionAfterSystem  EphemeralPosition = "after-system"
	PositionFlow         EphemeralPosition = "flow"
)

// SemanticKind tags a ContentBlock or SemanticNode with an inline-formatting
// hint so a downstream renderer can reproduce structural intent (headings,
// lists, tables, ...) without re-deriving it from raw text.
type SemanticKind string

const (
	SemanticHeading        SemanticKind = "heading"
	SemanticParagraph      SemanticKind = "paragraph"
	SemanticList           SemanticKind = "list"
	SemanticTable          SemanticKind = "table"
	SemanticCollapsed      SemanticKind = "collapsed"
	SemanticLineBreak      SemanticKind = "line-break"
	SemanticHorizontalRule SemanticKind = "horizontal-rule"
	SemanticCustom         SemanticKind = "custom"
)

// Semantic carries the structural hint attached to a ContentBlock.
type Semantic struct {
	Type          SemanticKind   `json:"type"`
	Level         int            `json:"level,omitempty"` // heading level
	Ordered       bool           `json:"ordered,omitempty"`
	RendererTag   string         `json:"rendererTag,omitempty"`
	RendererAttrs map[string]any `json:"rendererAttrs,omitempty"`
}

// SemanticNode is an inline-formatting tree (strong/em/code/a/... nesting)
// carried by a text block instead of a flat Semantic hint.
type SemanticNode struct {
	Tag      string         `json:"tag"`
	Attrs    map[string]any `json:"attrs,omitempty"`
	Text     string         `json:"text,omitempty"`
	Children []SemanticNode `json:"children,omitempty"`
}

// BlockType discriminates the ContentBlock tagged union.
type BlockType string

const (
	BlockText        BlockType = "text"
	BlockCode        BlockType = "code"
	BlockImage       BlockType = "image"
	BlockDocument    BlockType = "document"
	BlockAudio       BlockType = "audio"
	BlockVideo       BlockType = "video"
	BlockJSON        BlockType = "json"
	BlockToolUse     BlockType = "tool_use"
	BlockToolResult  BlockType = "tool_result"
	BlockReasoning   BlockType = "reasoning"
	BlockUserAction  BlockType = "user_action"
	BlockSystemEvent BlockType = "system_event"
	BlockStateChange BlockType = "state_change"
)

// ContentBlock is the tagged-union leaf value carried by sections, timeline
// entries, and system items. Only the fields relevant to Type are populated;
// the rest stay at their zero value.
type ContentBlock struct {
	Type BlockType `json:"type"`

	Text     string        `json:"text,omitempty"`
	Language string        `json:"language,omitempty"` // code
	Source   string        `json:"source,omitempty"`   // image/document/audio/video
	Data     any           `json:"data,omitempty"`      // json
	JSONText string        `json:"jsonText,omitempty"`  // json, pre-encoded
	ToolUseID string       `json:"toolUseId,omitempty"`
	Name     string        `json:"name,omitempty"`       // tool_use
	Input    any           `json:"input,omitempty"`      // tool_use
	Content  []ContentBlock `json:"content,omitempty"`   // tool_result (nested) / reasoning wrap
	ToolResultText string  `json:"toolResultText,omitempty"`

	Semantic     *Semantic     `json:"semantic,omitempty"`
	SemanticNode *SemanticNode `json:"semanticNode,omitempty"`

	Tokens *int `json:"tokens,omitempty"`
}

// Section is a named, merge-on-id container of content destined for the
// system/prompt layer.
type Section struct {
	ID         string            `json:"id"`
	Title      string            `json:"title,omitempty"`
	Content    []ContentBlock    `json:"content"`
	Formatter  Formatter         `json:"-"`
	Visibility Visibility        `json:"visibility,omitempty"`
	Audience   Audience          `json:"audience,omitempty"`
	Tags       []string          `json:"tags,omitempty"`
	Metadata   map[string]any    `json:"metadata,omitempty"`
	Tokens     *int              `json:"tokens,omitempty"`
}

// Formatter renders a list of content blocks to the wire format a model
// provider expects. The compiler never calls it; it only threads the
// reference through so a downstream renderer can.
type Formatter func(blocks []ContentBlock) string

// Message is the payload of a timeline entry or system-routed message item.
type Message struct {
	Role      Role           `json:"role"`
	Content   []ContentBlock `json:"content"`
	ID        string         `json:"id,omitempty"`
	Metadata  map[string]any `json:"metadata,omitempty"`
	CreatedAt string         `json:"createdAt,omitempty"`
}

// TimelineEntry is a user/assistant/tool-role message in the running
// conversation. System-role messages never appear here; they are routed to
// SystemMessageItems instead.
type TimelineEntry struct {
	Kind      string         `json:"kind"` // always "message"
	Message   Message        `json:"message"`
	Formatter Formatter      `json:"-"` // present only when explicitly wrapped
	ID        string         `json:"id,omitempty"`
	Visibility Visibility    `json:"visibility,omitempty"`
	Tags      []string       `json:"tags,omitempty"`
	Metadata  map[string]any `json:"metadata,omitempty"`
	Tokens    *int           `json:"tokens,omitempty"`
}

// SystemItemType discriminates the SystemItem tagged union.
type SystemItemType string

const (
	SystemItemSection SystemItemType = "section"
	SystemItemMessage SystemItemType = "message"
	SystemItemLoose   SystemItemType = "loose"
)

// SystemItem is an ordered reference into the compiled output (a section, a
// system-role message, or loose root-level content) that preserves
// source-tree order via Index, a dense monotonic sequence.
type SystemItem struct {
	Type      SystemItemType `json:"type"`
	Index     int            `json:"index"`
	SectionID string         `json:"sectionId,omitempty"`
	Content   []ContentBlock `json:"content,omitempty"`
	Formatter Formatter      `json:"-"`
	Tokens    *int           `json:"tokens,omitempty"`
}

// ToolRef pairs a tool's declared name with its metadata. Registration is
// last-write-wins by name.
type ToolRef struct {
	Name string
	Tool ToolMetadata
}

// ToolMetadata is the descriptive, non-executable shape of a Tool primitive
// exposed in CompiledStructure.Tools. The compiler never executes tools; a
// separate tool-runtime/sandbox layer owns execution.
type ToolMetadata struct {
	Name        string         `json:"name"`
	Description string         `json:"description,omitempty"`
	Parameters  map[string]any `json:"parameters,omitempty"`
}

// EphemeralItem is content that does not persist across ticks and is
// rebuilt on every compile.
type EphemeralItem struct {
	Content  []ContentBlock    `json:"content"`
	Position EphemeralPosition `json:"position"`
	Order    int               `json:"order"`
}

// Policy is an entry-processing policy descriptor accumulated from policy
// boundaries encountered during traversal.
type Policy struct {
	Name    string         `json:"name"`
	Process string         `json:"process,omitempty"`
	Config  map[string]any `json:"config,omitempty"`
}

// Structure is the compiler's output: a language-agnostic description of a
// compiled prompt, ready for a renderer to turn into provider wire format.
type Structure struct {
	Sections           map[string]*Section `json:"sections"`
	TimelineEntries    []TimelineEntry      `json:"timelineEntries"`
	SystemMessageItems []SystemItem         `json:"systemMessageItems"`
	Tools              []ToolRef            `json:"tools"`
	Ephemeral          []EphemeralItem      `json:"ephemeral"`
	PolicyBoundaries   []Policy             `json:"policyBoundaries,omitempty"`
	Metadata           map[string]any       `json:"metadata"`
	TotalTokens        *int                 `json:"totalTokens,omitempty"`
}

// New returns an empty, ready-to-populate Structure.
func New() *Structure {
	return &Structure{
		Sections:           make(map[string]*Section),
		TimelineEntries:    []TimelineEntry{},
		SystemMessageItems: []SystemItem{},
		Tools:              []ToolRef{},
		Ephemeral:          []EphemeralItem{},
		Metadata:           make(map[string]any),
	}
}
