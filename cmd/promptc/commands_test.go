package main

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"
)

const sampleDocument = `
sections:
  - id: persona
    title: Persona
    text: You are a helpful assistant.
messages:
  - role: user
    text: What's the weather?
tools:
  - name: get_weather
    description: Look up current weather
    parameters:
      type: object
      properties:
        location:
          type: string
`

func writeSampleDocument(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "prompt.yaml")
	if err := os.WriteFile(path, []byte(sampleDocument), 0o644); err != nil {
		t.Fatalf("write sample document: %v", err)
	}
	return path
}

func TestCompileCommandProducesJSON(t *testing.T) {
	path := writeSampleDocument(t)

	cmd := buildCompileCmd()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetArgs([]string{path})

	if err := cmd.Execute(); err != nil {
		t.Fatalf("execute compile: %v", err)
	}
	if out.Len() == 0 {
		t.Fatal("expected compile output, got none")
	}
}

func TestEstimateCommandPrintsNumber(t *testing.T) {
	path := writeSampleDocument(t)

	cmd := buildEstimateCmd()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetArgs([]string{path})

	if err := cmd.Execute(); err != nil {
		t.Fatalf("execute estimate: %v", err)
	}
	if out.Len() == 0 {
		t.Fatal("expected a token count, got none")
	}
}

func TestInspectCommandDumpsFiberTree(t *testing.T) {
	path := writeSampleDocument(t)

	cmd := buildInspectCmd()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetArgs([]string{path})

	if err := cmd.Execute(); err != nil {
		t.Fatalf("execute inspect: %v", err)
	}
	if out.Len() == 0 {
		t.Fatal("expected fiber tree output, got none")
	}
}
