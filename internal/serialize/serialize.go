// Package serialize implements the fiber-tree snapshot format used for
// hibernation payloads and debug inspection: a JSON/YAML-safe
// mirror of a live fiber tree with props substituted per the truncation
// rules so a snapshot never grows unbounded or leaks an unserializable
// closure.
//
// Grounded on nexus/internal/config/loader.go's YAML conventions (struct
// tags doing double duty for json and yaml, explicit substitution instead
// of panicking on unsupported values).
package serialize

import (
	"fmt"
	"reflect"
	"runtime"
	"strings"
	"time"

	"github.com/kestrel-labs/promptc/internal/fiber"
	"github.com/kestrel-labs/promptc/internal/hookrt"
	"github.com/kestrel-labs/promptc/pkg/node"
)

const (
	maxMapKeys    = 20
	maxSliceItems = 20
	maxStringLen  = 50
)

// SerializedFiberNode is the serializable mirror of one fiber.Fiber.
type SerializedFiberNode struct {
	ID       string                 `json:"id" yaml:"id"`
	Type     string                 `json:"type" yaml:"type"`
	Key      string                 `json:"key,omitempty" yaml:"key,omitempty"`
	Props    map[string]any         `json:"props" yaml:"props"`
	Hooks    []SerializedHook       `json:"hooks" yaml:"hooks"`
	Children []*SerializedFiberNode `json:"children" yaml:"children"`
	Summary  *Summary               `json:"_summary,omitempty" yaml:"_summary,omitempty"`
}

// SerializedHook mirrors one hookrt.HookState in declaration order.
type SerializedHook struct {
	Index int    `json:"index" yaml:"index"`
	Type  string `json:"type" yaml:"type"`
	Value any    `json:"value,omitempty" yaml:"value,omitempty"`
}

// Summary is attached only to the root of a serialized tree.
type Summary struct {
	FiberCount int `json:"fiberCount" yaml:"fiberCount"`
	HookCount  int `json:"hookCount" yaml:"hookCount"`
}

// serializable is implemented by hookrt.Signal (and any future
// Computed-like cell) to control how its value substitutes into a
// serialized prop or hook entry.
type serializable interface {
	SerializableValue() any
}

// Serialize walks the fiber tree rooted at root and returns its
// serializable mirror, with a _summary attached at the root.
func Serialize(root *fiber.Fiber) *SerializedFiberNode {
	if root == nil {
		return nil
	}
	fiberCount, hookCount := 0, 0
	fiber.Traverse(root, func(f *fiber.Fiber) bool {
		fiberCount++
		hookCount += countHooks(f)
		return true
	})
	out := serializeFiber(root)
	out.Summary = &Summary{FiberCount: fiberCount, HookCount: hookCount}
	return out
}

func serializeFiber(f *fiber.Fiber) *SerializedFiberNode {
	out := &SerializedFiberNode{
		ID:    f.DebugID,
		Type:  f.Type.String(),
		Props: serializeProps(f.Props),
		Hooks: serializeHooks(f),
	}
	if f.Key != nil {
		out.Key = *f.Key
	}
	for c := f.Child; c != nil; c = c.Sibling {
		out.Children = append(out.Children, serializeFiber(c))
	}
	return out
}

func countHooks(f *fiber.Fiber) int {
	head, ok := f.MemoizedState.(*hookrt.HookState)
	if !ok {
		return 0
	}
	n := 0
	for h := head; h != nil; h = h.Next {
		n++
	}
	return n
}

func serializeHooks(f *fiber.Fiber) []SerializedHook {
	head, ok := f.MemoizedState.(*hookrt.HookState)
	if !ok {
		return nil
	}
	var out []SerializedHook
	i := 0
	for h := head; h != nil; h = h.Next {
		out = append(out, SerializedHook{
			Index: i,
			Type:  hookTypeName(h.Tag),
			Value: serializeValue(h.MemoizedState),
		})
		i++
	}
	return out
}

// Hydrate rebuilds a fiber-id-keyed hydration map from a previously
// serialized tree, for restoring hook state into a live reconciler that
// still holds the same fiber ids. Restoring a
// snapshot captured in a different process, where fiber ids were never
// preserved, is out of scope — this supports pause/resume within one
// execution's lifetime.
func Hydrate(root *SerializedFiberNode) map[string]*hookrt.HydrationEntry {
	out := make(map[string]*hookrt.HydrationEntry)
	var walk func(n *SerializedFiberNode)
	walk = func(n *SerializedFiberNode) {
		if n == nil {
			return
		}
		hooks := make([]hookrt.SerializedHook, 0, len(n.Hooks))
		for _, h := range n.Hooks {
			tag, ok := hookTagFromName(h.Type)
			if !ok {
				continue
			}
			hooks = append(hooks, hookrt.SerializedHook{Index: h.Index, Tag: tag, Value: h.Value})
		}
		out[n.ID] = &hookrt.HydrationEntry{Hooks: hooks}
		for _, c := range n.Children {
			walk(c)
		}
	}
	walk(root)
	return out
}

func hookTagFromName(name string) (hookrt.HookTag, bool) {
	switch name {
	case "useState":
		return hookrt.TagState, true
	case "useReducer":
		return hookrt.TagReducer, true
	case "useSignal":
		return hookrt.TagSignal, true
	case "useEffect":
		return hookrt.TagEffect, true
	case "useMount":
		return hookrt.TagMount, true
	case "useMemo":
		return hookrt.TagMemo, true
	case "useCallback":
		return hookrt.TagCallback, true
	case "useRef":
		return hookrt.TagRef, true
	case "useData":
		return hookrt.TagData, true
	case "useUnmount":
		return hookrt.TagUnmount, true
	case "useOnMessage":
		return hookrt.TagOnMessage, true
	case "useContext":
		return hookrt.TagContext, true
	default:
		return 0, false
	}
}

func hookTypeName(tag hookrt.HookTag) string {
	switch tag {
	case hookrt.TagState:
		return "useState"
	case hookrt.TagReducer:
		return "useReducer"
	case hookrt.TagSignal:
		return "useSignal"
	case hookrt.TagEffect, hookrt.TagTickStart, hookrt.TagTickEnd, hookrt.TagAfterCompile:
		return "useEffect"
	case hookrt.TagMount:
		return "useMount"
	case hookrt.TagMemo:
		return "useMemo"
	case hookrt.TagCallback:
		return "useCallback"
	case hookrt.TagRef:
		return "useRef"
	case hookrt.TagAsync, hookrt.TagData:
		return "useData"
	case hookrt.TagUnmount:
		return "useUnmount"
	case hookrt.TagOnMessage:
		return "useOnMessage"
	case hookrt.TagContext:
		return "useContext"
	default:
		return "unknown"
	}
}

func serializeProps(props node.Props) map[string]any {
	if len(props) == 0 {
		return map[string]any{}
	}
	out := make(map[string]any, len(props))
	for k, v := range props {
		out[k] = serializeValue(v)
	}
	return out
}

// serializeValue implements the prop/hook-value substitution rules for
// hibernation snapshots: functions become a marker string, signal-like
// cells unwrap via SerializableValue, times format as RFC3339, and
// oversized maps/slices/strings clip with a truncation marker rather than
// growing the snapshot unbounded.
func serializeValue(v any) any {
	if v == nil {
		return nil
	}
	if sv, ok := v.(serializable); ok {
		return sv.SerializableValue()
	}
	if t, ok := v.(time.Time); ok {
		return t.Format(time.RFC3339)
	}

	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Func:
		return fmt.Sprintf("[Function: %s]", funcName(rv))
	case reflect.String:
		s := rv.String()
		if len(s) > maxStringLen {
			return s[:maxStringLen] + "..."
		}
		return s
	case reflect.Map:
		if rv.Len() > maxMapKeys {
			return map[string]any{"_truncated": true, "keys": rv.Len()}
		}
		out := make(map[string]any, rv.Len())
		iter := rv.MapRange()
		for iter.Next() {
			out[toMapKey(iter.Key())] = serializeValue(iter.Value().Interface())
		}
		return out
	case reflect.Slice, reflect.Array:
		if rv.Len() > maxSliceItems {
			return map[string]any{"_truncated": true, "length": rv.Len()}
		}
		out := make([]any, rv.Len())
		for i := 0; i < rv.Len(); i++ {
			out[i] = serializeValue(rv.Index(i).Interface())
		}
		return out
	case reflect.Ptr:
		if rv.IsNil() {
			return nil
		}
		return serializeValue(rv.Elem().Interface())
	default:
		return v
	}
}

// funcName recovers a function value's qualified name via runtime.FuncForPC,
// trimmed to its package-local form (the part after the last "/").
func funcName(rv reflect.Value) string {
	fn := runtime.FuncForPC(rv.Pointer())
	if fn == nil {
		return "anonymous"
	}
	name := fn.Name()
	if i := strings.LastIndex(name, "/"); i >= 0 {
		name = name[i+1:]
	}
	return name
}

func toMapKey(k reflect.Value) string {
	if k.Kind() == reflect.String {
		return k.String()
	}
	return fmt.Sprint(k.Interface())
}
