package compiler

import (
	"errors"
	"fmt"
	"strings"
)

// Sentinel errors for driver-level failures.
var (
	// ErrNoRoot indicates Reconcile/Compile was called with no root element
	// ever set via SetRoot and none given as an argument.
	ErrNoRoot = errors.New("promptc: no root element set")

	// ErrAlreadyHydrating indicates SetHydrationData was called while a
	// previous hydration was still in progress.
	ErrAlreadyHydrating = errors.New("promptc: hydration already in progress")
)

// CompileErrorType categorizes a CompileError for recovery decisions.
type CompileErrorType string

const (
	// ErrorRenderAborted means a composite's render function returned a
	// non-suspension error, aborting the tick.
	ErrorRenderAborted CompileErrorType = "render_aborted"
	// ErrorSuspenseTimeout means a composite suspended past the configured
	// retry limit without resolving.
	ErrorSuspenseTimeout CompileErrorType = "suspense_timeout"
	// ErrorInstability means the stability loop hit its iteration cap
	// without the tree settling.
	ErrorInstability CompileErrorType = "instability"
	// ErrorEffect means an effect's create function returned an error; this
	// type never aborts a tick (effect errors are logged and swallowed by
	// internal/effect.Engine), but is classified here for onError
	// notification.
	ErrorEffect CompileErrorType = "effect"
	// ErrorUnknown is the fallback classification.
	ErrorUnknown CompileErrorType = "unknown"
)

// CompileError is the structured error value passed to notifyError,
// mirroring nexus's agent.ToolError builder-method shape
// (nexus/internal/agent/errors.go) adapted from tool-execution failures to
// compile-tick failures.
type CompileError struct {
	Type      CompileErrorType
	Phase     string
	FiberID   string
	Component string
	Message   string
	Cause     error
	Iteration int
}

func (e *CompileError) Error() string {
	parts := []string{fmt.Sprintf("[compile:%s]", e.Type)}
	if e.Component != "" {
		parts = append(parts, e.Component)
	}
	if e.Phase != "" {
		parts = append(parts, "phase="+e.Phase)
	}
	if e.Message != "" {
		parts = append(parts, e.Message)
	} else if e.Cause != nil {
		parts = append(parts, e.Cause.Error())
	}
	if e.Iteration > 0 {
		parts = append(parts, fmt.Sprintf("(iteration=%d)", e.Iteration))
	}
	return strings.Join(parts, " ")
}

func (e *CompileError) Unwrap() error { return e.Cause }

// NewCompileError wraps cause with automatic classification.
func NewCompileError(phase string, cause error) *CompileError {
	e := &CompileError{Phase: phase, Cause: cause, Type: ErrorUnknown}
	if cause != nil {
		e.Message = cause.Error()
	}
	switch {
	case errors.Is(cause, ErrNoRoot):
		e.Type = ErrorUnknown
	case strings.Contains(strings.ToLower(e.Message), "suspended past the retry limit"):
		e.Type = ErrorSuspenseTimeout
	case strings.Contains(e.Message, "render error aborted"):
		e.Type = ErrorRenderAborted
	}
	return e
}

// WithFiber sets the fiber/component identity the error is attached to.
func (e *CompileError) WithFiber(fiberID, component string) *CompileError {
	e.FiberID = fiberID
	e.Component = component
	return e
}

// WithIteration sets the stability-loop iteration the error occurred on.
func (e *CompileError) WithIteration(n int) *CompileError {
	e.Iteration = n
	return e
}

// WithType overrides the automatic classification.
func (e *CompileError) WithType(t CompileErrorType) *CompileError {
	e.Type = t
	return e
}
