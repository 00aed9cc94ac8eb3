// Package docbuild loads a static prompt document from YAML and turns it
// into the node.Node tree the compiler reconciles. It exists for
// cmd/promptc: a document on disk has no composites or hooks, so it can be
// expressed as data and built without ever touching internal/hookrt.
//
// Grounded on nexus/internal/config/config.go's YAML-with-env-expansion
// loading convention.
package docbuild

import (
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/kestrel-labs/promptc/pkg/compiled"
	"github.com/kestrel-labs/promptc/pkg/node"
)

// Document is the on-disk shape of a static prompt tree.
type Document struct {
	Sections  []SectionDoc  `yaml:"sections"`
	Messages  []MessageDoc  `yaml:"messages"`
	Tools     []ToolDoc     `yaml:"tools"`
	Ephemeral []EphemeralDoc `yaml:"ephemeral"`
}

// SectionDoc describes one Section primitive.
type SectionDoc struct {
	ID         string   `yaml:"id"`
	Title      string   `yaml:"title"`
	Text       string   `yaml:"text"`
	Visibility string   `yaml:"visibility"`
	Audience   string   `yaml:"audience"`
	Tags       []string `yaml:"tags"`
}

// MessageDoc describes one Entry (timeline or system message) primitive.
type MessageDoc struct {
	Role string `yaml:"role"`
	Text string `yaml:"text"`
}

// ToolDoc describes one Tool primitive.
type ToolDoc struct {
	Name        string         `yaml:"name"`
	Description string         `yaml:"description"`
	Parameters  map[string]any `yaml:"parameters"`
}

// EphemeralDoc describes one Ephemeral primitive.
type EphemeralDoc struct {
	Position string `yaml:"position"`
	Order    int    `yaml:"order"`
	Text     string `yaml:"text"`
}

// Load reads path, expanding environment variables the same way
// internal/config does, and parses it into a Document.
func Load(path string) (*Document, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read document: %w", err)
	}
	expanded := os.ExpandEnv(string(raw))

	var doc Document
	decoder := yaml.NewDecoder(strings.NewReader(expanded))
	decoder.KnownFields(true)
	if err := decoder.Decode(&doc); err != nil {
		return nil, fmt.Errorf("parse document: %w", err)
	}
	return &doc, nil
}

// Build turns a Document into the root node.Node the compiler reconciles.
// Every child is a host primitive; the result has no composite and
// therefore no hooks, so it reconciles to a stable CompiledStructure in a
// single tick.
func Build(doc *Document) node.Node {
	var children []node.Node

	for _, s := range doc.Sections {
		props := node.Props{}
		if s.Title != "" {
			props["title"] = s.Title
		}
		if s.Visibility != "" {
			props["visibility"] = compiled.Visibility(s.Visibility)
		}
		if s.Audience != "" {
			props["audience"] = compiled.Audience(s.Audience)
		}
		if len(s.Tags) > 0 {
			props["tags"] = s.Tags
		}
		children = append(children, node.Section(s.ID, props, node.TextNode(s.Text)))
	}

	for _, m := range doc.Messages {
		children = append(children, node.Entry(compiled.Role(m.Role), nil, node.TextNode(m.Text)))
	}

	for _, t := range doc.Tools {
		children = append(children, node.ToolNode(&compiled.ToolMetadata{
			Name:        t.Name,
			Description: t.Description,
			Parameters:  t.Parameters,
		}))
	}

	for _, e := range doc.Ephemeral {
		children = append(children, node.Ephemeral(compiled.EphemeralPosition(e.Position), e.Order, node.TextNode(e.Text)))
	}

	return node.Fragment(children...)
}
