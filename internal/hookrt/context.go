package hookrt

// ContextToken is a typed context key with a default value. Each NewContext call
// allocates a distinct token; identity, not name, is what Use
// matches on.
type ContextToken[T any] struct {
	Name    string
	Default T
}

// NewContext allocates a new context token.
func NewContext[T any](name string, def T) *ContextToken[T] {
	return &ContextToken[T]{Name: name, Default: def}
}

// Use walks the render's cumulative context map for this token, returning
// its default if no provider above set it.
func (c *ContextToken[T]) Use(r *Render) T {
	h, _ := useHook(r, TagContext)
	h.MemoizedState = c.Name
	if v, ok := r.context[c]; ok {
		if tv, ok2 := v.(T); ok2 {
			return tv
		}
	}
	return c.Default
}

// Provide returns the (token -> value) map a context-provider composite
// should push for its children, layered over the current render's map.
func (c *ContextToken[T]) Provide(r *Render, value T) map[any]any {
	return PushContext(r.context, c, value)
}
