package docbuild

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/kestrel-labs/promptc/pkg/node"
)

func TestLoadAndBuild(t *testing.T) {
	content := `
sections:
  - id: persona
    title: Persona
    text: Be concise.
messages:
  - role: user
    text: hello
`
	path := filepath.Join(t.TempDir(), "doc.yaml")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write doc: %v", err)
	}

	doc, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if len(doc.Sections) != 1 || doc.Sections[0].ID != "persona" {
		t.Fatalf("unexpected sections: %+v", doc.Sections)
	}

	root := Build(doc)
	if root.Type.Kind != node.KindFragment {
		t.Fatalf("expected fragment root, got %v", root.Type.Kind)
	}
	if len(root.Children) != 2 {
		t.Fatalf("expected 2 children (section + message), got %d", len(root.Children))
	}
}

func TestLoadRejectsUnknownFields(t *testing.T) {
	path := filepath.Join(t.TempDir(), "doc.yaml")
	if err := os.WriteFile(path, []byte("bogus_field: true\n"), 0o644); err != nil {
		t.Fatalf("write doc: %v", err)
	}
	if _, err := Load(path); err == nil {
		t.Fatal("expected error for unknown field")
	}
}
