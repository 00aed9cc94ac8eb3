package collect

import (
	"encoding/json"
	"strings"

	"github.com/kestrel-labs/promptc/internal/fiber"
	"github.com/kestrel-labs/promptc/pkg/compiled"
	"github.com/kestrel-labs/promptc/pkg/node"
)

var inlineTags = map[node.Tag]bool{
	node.TagStrong: true, node.TagEm: true, node.TagCode: true,
	node.TagA: true, node.TagQ: true, node.TagKbd: true,
}

// contentFromChildren is the content-block mapper: it walks a
// fiber's children and produces the ContentBlock list a Section/Entry/
// Ephemeral collects, recursing transparently through fragments and
// composites.
func contentFromChildren(first *fiber.Fiber) []compiled.ContentBlock {
	var out []compiled.ContentBlock
	for f := first; f != nil; f = f.Sibling {
		out = append(out, contentFromNode(f)...)
	}
	return out
}

func contentFromNode(f *fiber.Fiber) []compiled.ContentBlock {
	switch f.Type.Kind {
	case node.KindContentBlock:
		if f.Block != nil {
			return []compiled.ContentBlock{*f.Block}
		}
		return nil
	case node.KindPrimitive:
		return []compiled.ContentBlock{blockFromPrimitiveLeaf(f)}
	case node.KindTag:
		return []compiled.ContentBlock{blockFromTag(f)}
	case node.KindFragment, node.KindComposite:
		return contentFromChildren(f.Child)
	default:
		return nil
	}
}

func blockFromPrimitiveLeaf(f *fiber.Fiber) compiled.ContentBlock {
	switch f.Type.Primitive {
	case node.PrimText:
		return compiled.ContentBlock{Type: compiled.BlockText, Text: f.Text}
	case node.PrimCode:
		lang, _ := f.Props.String("language")
		return compiled.ContentBlock{Type: compiled.BlockCode, Text: f.Text, Language: lang}
	case node.PrimImage:
		src, _ := f.Props.String("source")
		return compiled.ContentBlock{Type: compiled.BlockImage, Source: src}
	case node.PrimDocument:
		src, _ := f.Props.String("source")
		return compiled.ContentBlock{Type: compiled.BlockDocument, Source: src}
	case node.PrimAudio:
		src, _ := f.Props.String("source")
		return compiled.ContentBlock{Type: compiled.BlockAudio, Source: src}
	case node.PrimVideo:
		src, _ := f.Props.String("source")
		return compiled.ContentBlock{Type: compiled.BlockVideo, Source: src}
	case node.PrimJSON:
		data := f.Props.Get("data")
		text, _ := encodeJSON(data)
		return compiled.ContentBlock{Type: compiled.BlockJSON, Data: data, JSONText: text}
	default:
		return compiled.ContentBlock{Type: compiled.BlockText, Text: f.Text}
	}
}

func blockFromTag(f *fiber.Fiber) compiled.ContentBlock {
	tag := f.Type.Tag
	switch tag {
	case node.TagH1, node.TagH2, node.TagH3, node.TagH4, node.TagH5, node.TagH6:
		return compiled.ContentBlock{
			Type: compiled.BlockText, Text: flattenText(f.Child),
			Semantic: &compiled.Semantic{Type: compiled.SemanticHeading, Level: headingLevel(tag)},
		}
	case node.TagParagraph:
		return compiled.ContentBlock{
			Type: compiled.BlockText, Text: flattenText(f.Child),
			Semantic: &compiled.Semantic{Type: compiled.SemanticParagraph},
		}
	case node.TagBlockquote:
		return compiled.ContentBlock{
			Type: compiled.BlockText, Text: flattenText(f.Child),
			Semantic: &compiled.Semantic{Type: compiled.SemanticCustom, RendererTag: "blockquote"},
		}
	case node.TagList, node.TagOrderedList, node.TagListItem:
		sn := toSemanticNode(f)
		return compiled.ContentBlock{
			Type:         compiled.BlockText,
			Semantic:     &compiled.Semantic{Type: compiled.SemanticList, Ordered: tag == node.TagOrderedList},
			SemanticNode: &sn,
		}
	case node.TagTable, node.TagTableRow, node.TagTableColumn:
		sn := toSemanticNode(f)
		return compiled.ContentBlock{
			Type: compiled.BlockText, Semantic: &compiled.Semantic{Type: compiled.SemanticTable}, SemanticNode: &sn,
		}
	case node.TagLineBreak:
		return compiled.ContentBlock{Type: compiled.BlockText, Semantic: &compiled.Semantic{Type: compiled.SemanticLineBreak}}
	case node.TagHorizontalRule:
		return compiled.ContentBlock{Type: compiled.BlockText, Semantic: &compiled.Semantic{Type: compiled.SemanticHorizontalRule}}
	case node.TagImage:
		src, _ := f.Props.String("source")
		return compiled.ContentBlock{Type: compiled.BlockImage, Source: src}
	default:
		if inlineTags[tag] {
			sn := toSemanticNode(f)
			return compiled.ContentBlock{Type: compiled.BlockText, SemanticNode: &sn}
		}
		// Unknown tag: a custom block so downstream renderers can extend
		// behavior.
		return compiled.ContentBlock{
			Type: compiled.BlockText, Text: "",
			Semantic: &compiled.Semantic{Type: compiled.SemanticCustom, RendererTag: string(tag), RendererAttrs: propsToAttrs(f.Props)},
		}
	}
}

func headingLevel(tag node.Tag) int {
	switch tag {
	case node.TagH1:
		return 1
	case node.TagH2:
		return 2
	case node.TagH3:
		return 3
	case node.TagH4:
		return 4
	case node.TagH5:
		return 5
	case node.TagH6:
		return 6
	default:
		return 0
	}
}

func toSemanticNode(f *fiber.Fiber) compiled.SemanticNode {
	if f.Type.Kind == node.KindPrimitive && f.Type.Primitive == node.PrimText {
		return compiled.SemanticNode{Tag: "text", Text: f.Text}
	}
	var children []compiled.SemanticNode
	for c := f.Child; c != nil; c = c.Sibling {
		children = append(children, toSemanticNode(c))
	}
	return compiled.SemanticNode{Tag: string(f.Type.Tag), Attrs: propsToAttrs(f.Props), Children: children}
}

func propsToAttrs(props node.Props) map[string]any {
	if len(props) == 0 {
		return nil
	}
	out := make(map[string]any, len(props))
	for k, v := range props {
		out[k] = v
	}
	return out
}

func flattenText(first *fiber.Fiber) string {
	var sb strings.Builder
	for _, b := range contentFromChildren(first) {
		sb.WriteString(blockText(b))
	}
	return sb.String()
}

func blockText(b compiled.ContentBlock) string {
	if b.SemanticNode != nil {
		return semanticNodeText(*b.SemanticNode)
	}
	return b.Text
}

func semanticNodeText(n compiled.SemanticNode) string {
	if len(n.Children) == 0 {
		return n.Text
	}
	var sb strings.Builder
	for _, c := range n.Children {
		sb.WriteString(semanticNodeText(c))
	}
	return sb.String()
}

// normalizeContentProp coerces a Section/Entry "content" prop — a string, a
// []compiled.ContentBlock, or (in one source path) something else entirely
// — to an ordered block list.
func normalizeContentProp(raw any) []compiled.ContentBlock {
	switch v := raw.(type) {
	case string:
		if v == "" {
			return nil
		}
		return []compiled.ContentBlock{{Type: compiled.BlockText, Text: v}}
	case []compiled.ContentBlock:
		return v
	case compiled.ContentBlock:
		return []compiled.ContentBlock{v}
	default:
		return nil
	}
}

func encodeJSON(v any) (string, error) {
	b, err := json.Marshal(v)
	if err != nil {
		return "", err
	}
	return string(b), nil
}
