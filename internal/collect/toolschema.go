package collect

import (
	"encoding/json"
	"fmt"
	"sync"

	"github.com/santhosh-tekuri/jsonschema/v5"
)

// schemaCache avoids recompiling an identical parameters schema across
// collects, the same sync.Map cache shape as
// pluginsdk.validation.go's compileSchema.
var schemaCache sync.Map

// validateToolSchema compiles a tool's declared parameters as a JSON Schema
// document to confirm it is well-formed before the tool is exposed in
// CompiledStructure.Tools. A nil/empty parameters map is valid
// (a tool may declare no input).
func validateToolSchema(name string, parameters map[string]any) error {
	if len(parameters) == 0 {
		return nil
	}
	enc, err := json.Marshal(parameters)
	if err != nil {
		return fmt.Errorf("encode tool %q parameters: %w", name, err)
	}
	key := name + ":" + string(enc)
	if _, ok := schemaCache.Load(key); ok {
		return nil
	}
	compiled, err := jsonschema.CompileString(name+".schema.json", string(enc))
	if err != nil {
		return fmt.Errorf("tool %q parameters is not valid JSON Schema: %w", name, err)
	}
	schemaCache.Store(key, compiled)
	return nil
}
