package compiler

import (
	"sync"

	"github.com/kestrel-labs/promptc/internal/reconcile"
	"github.com/kestrel-labs/promptc/pkg/compiled"
)

// toolRegistry is the Compiler's default reconcile.ToolStore: a thread-safe
// name -> metadata index, registration last-write-wins, the same
// RWMutex-guarded map shape as nexus/internal/agent/tool_registry.go's
// ToolRegistry, applied here to Tool-flagged composites instead of
// executable agent tools.
type toolRegistry struct {
	mu    sync.RWMutex
	tools map[string]compiled.ToolMetadata
}

func newToolRegistry() *toolRegistry {
	return &toolRegistry{tools: make(map[string]compiled.ToolMetadata)}
}

func (r *toolRegistry) Register(name string, meta compiled.ToolMetadata) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.tools[name] = meta
}

func (r *toolRegistry) Lookup(name string) (compiled.ToolMetadata, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	m, ok := r.tools[name]
	return m, ok
}

var _ reconcile.ToolStore = (*toolRegistry)(nil)

// refTable is the Compiler's default reconcile.RefTable: a thread-safe
// name -> fiber debug id index, the same registry shape as toolRegistry
// applied to ref publication instead of tool metadata.
type refTable struct {
	mu   sync.RWMutex
	refs map[string]string
}

func newRefTable() *refTable {
	return &refTable{refs: make(map[string]string)}
}

func (t *refTable) Set(name string, fiberID string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.refs[name] = fiberID
}

func (t *refTable) Delete(name string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	delete(t.refs, name)
}

// Get resolves a published ref to the fiber debug id currently holding it,
// exposed to callers via Compiler.ResolveRef.
func (t *refTable) Get(name string) (string, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	id, ok := t.refs[name]
	return id, ok
}

var _ reconcile.RefTable = (*refTable)(nil)
