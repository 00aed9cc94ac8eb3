// Package compiler provides the compile driver (C9): the public surface a
// host application calls to turn a declarative node.Node tree into a
// pkg/compiled.Structure, running the reconcile/commit/collect/annotate
// pipeline to a fixed point every tick.
//
// # Architecture Overview
//
// The driver wires together every other component in one per-execution
// instance, mirroring nexus's layered-runtime diagram
// (nexus/internal/agent/runtime.go) with reconciliation substituted for LLM
// orchestration:
//
//	┌─────────────────────────────────────────┐
//	│               Compiler                   │  Tick lifecycle, stability loop
//	├─────────────────────────────────────────┤
//	│  toolRegistry    │     refTable          │  External collaborators
//	├─────────────────────────────────────────┤
//	│  reconcile.Reconciler  (fiber + hookrt)  │  Tree diff + hook runtime
//	├─────────────────────────────────────────┤
//	│  collect.Collect  →  tokenest.Annotate   │  Output pipeline
//	└─────────────────────────────────────────┘
//
// One Compiler instance is one execution:
// its fiber arena, data cache, tool registry, and ref table are never shared
// across Compiler values.
package compiler

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/kestrel-labs/promptc/internal/collect"
	"github.com/kestrel-labs/promptc/internal/effect"
	"github.com/kestrel-labs/promptc/internal/fiber"
	"github.com/kestrel-labs/promptc/internal/hookrt"
	"github.com/kestrel-labs/promptc/internal/observability"
	"github.com/kestrel-labs/promptc/internal/reconcile"
	"github.com/kestrel-labs/promptc/internal/serialize"
	"github.com/kestrel-labs/promptc/internal/tokenest"
	"github.com/kestrel-labs/promptc/pkg/compiled"
	"github.com/kestrel-labs/promptc/pkg/node"
)

// RecoveryAction tells the driver how to proceed after notifyError reports
// a tick failure.
type RecoveryAction int

const (
	// RecoveryNone aborts the current Compile/CompileUntilStable call,
	// returning the error to the caller.
	RecoveryNone RecoveryAction = iota
	// RecoveryRetry re-runs the failed stability-loop iteration, once per
	// CompileUntilStable call.
	RecoveryRetry
)

// Hooks are the optional lifecycle callbacks a host can observe. Every field may be left nil.
type Hooks struct {
	OnStart        func()
	OnTickStart    func(tick *hookrt.TickState)
	OnTickEnd      func(tick *hookrt.TickState)
	OnAfterCompile func(s *compiled.Structure, iteration int)
	OnComplete     func(result *CompileResult)
	OnMessage      func(ctx context.Context, msg any)
	OnError        func(err error) RecoveryAction
}

// Options configures a Compiler instance.
type Options struct {
	DebugMode          bool
	MaxSuspenseRetries int // forwarded to internal/reconcile, default 10
	MaxIterations      int // stability-loop cap, default 10
	Estimator          tokenest.Estimator
	GetChannel         func(name string) any
	Logger             *slog.Logger
	Hooks              Hooks

	// ObsLogger is the redacting, context-correlated logger the compiler
	// routes its own driver-level log lines through (tick stability
	// warnings, out-of-tick reconcile failures). Defaults to
	// observability.NewLogger(observability.LogConfig{}) if nil. This is
	// independent of Logger, which is still handed to the lower-level
	// reconcile/effect components unchanged.
	ObsLogger *observability.Logger

	// Tracer emits one prompt_compiler.tick span per CompileUntilStable
	// call, with child spans for the reconcile, collect, and annotate
	// phases. Defaults to a no-op tracer (observability.NewTracer with an
	// empty Endpoint) if nil, so tracing is always safe to leave unset.
	Tracer *observability.Tracer

	// Metrics, if set, records tick/phase durations, recompile-reason and
	// effect-error counts, and the live fiber gauge. Left nil by default:
	// Metrics registers its collectors against the global Prometheus
	// registry, so auto-constructing one per Compiler would panic on the
	// second New call in a process. Callers that want metrics construct
	// and share one observability.Metrics themselves.
	Metrics *observability.Metrics
}

func (o *Options) setDefaults() {
	if o.MaxIterations <= 0 {
		o.MaxIterations = 10
	}
	if o.Logger == nil {
		o.Logger = slog.Default()
	}
	if o.ObsLogger == nil {
		o.ObsLogger = observability.NewLogger(observability.LogConfig{})
	}
	if o.Tracer == nil {
		o.Tracer, _ = observability.NewTracer(observability.TraceConfig{})
	}
}

// Compiler is the per-execution compile driver. It is not safe for
// concurrent use from multiple goroutines: one tick runs to completion
// before another begins.
type Compiler struct {
	opts Options

	executionID string
	logger      *slog.Logger
	obsLogger   *observability.Logger
	tracer      *observability.Tracer
	metrics     *observability.Metrics

	reconciler *reconcile.Reconciler
	effects    *effect.Engine
	tools      *toolRegistry
	refs       *refTable

	mu                 sync.Mutex
	root               node.Node
	hasRoot            bool
	tickState          *hookrt.TickState
	inTick             bool
	recompileRequested bool
	recompileReasons   []string

	hydrating bool
}

// New constructs a Compiler ready to reconcile its first tree.
func New(opts Options) *Compiler {
	opts.setDefaults()
	executionID := uuid.NewString()
	logger := opts.Logger.With("execution_id", executionID)

	c := &Compiler{
		opts:        opts,
		executionID: executionID,
		logger:      logger,
		obsLogger:   opts.ObsLogger.WithFields("execution_id", executionID),
		tracer:      opts.Tracer,
		metrics:     opts.Metrics,
		tools:       newToolRegistry(),
		refs:        newRefTable(),
	}
	c.effects = effect.NewEngine(c.onEffectError, logger)
	c.reconciler = reconcile.New(reconcile.Options{
		DebugMode:          opts.DebugMode,
		MaxSuspenseRetries: opts.MaxSuspenseRetries,
		TickState:          nil,
		TickControl:        c,
		GetChannel:         opts.GetChannel,
		ToolStore:          c.tools,
		Refs:               c.refs,
		EffectEngine:       c.effects,
		Logger:             logger,
		Metrics:            opts.Metrics,
	})
	return c
}

func (c *Compiler) onEffectError(phase hookrt.Phase, fiberID, debugName string, err error) {
	if c.metrics != nil {
		c.metrics.RecordEffectError(string(phase))
	}
	cerr := NewCompileError(string(phase), err).WithFiber(fiberID, debugName).WithType(ErrorEffect)
	if c.opts.Hooks.OnError != nil {
		c.opts.Hooks.OnError(cerr)
	}
}

// --- hookrt.TickControl -----------------------------------------------------

// InTick reports whether a tick (reconcile pass within CompileUntilStable)
// is currently in progress.
func (c *Compiler) InTick() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.inTick
}

// RequestRecompile flags the current stability loop to run another
// iteration, recording reason for the CompileResult.Reasons trail.
func (c *Compiler) RequestRecompile(reason string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.recompileRequested = true
	if reason != "" {
		c.recompileReasons = append(c.recompileReasons, reason)
	}
}

// Reconcile triggers an immediate reconcile pass using the last-known root,
// for a Signal.Set call arriving from outside any tick.
func (c *Compiler) Reconcile() {
	c.mu.Lock()
	hasRoot := c.hasRoot
	c.mu.Unlock()
	if !hasRoot {
		return
	}
	ctx := context.Background()
	if _, err := c.ReconcileTree(ctx, nil); err != nil {
		c.obsLogger.Error(ctx, "out-of-tick reconcile failed", "error", err)
	}
}

// --- driver surface ---------------------------------------------

// SetRoot installs element as the tree Reconcile/Compile will diff against
// on their next call, without reconciling immediately.
func (c *Compiler) SetRoot(element node.Node) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.root = element
	c.hasRoot = true
}

// ReconcileTree diffs element (or, if nil, the last-installed root) against
// the previously committed tree, running begin-work and commit. It is the
// primitive CompileUntilStable's loop body calls once per iteration.
func (c *Compiler) ReconcileTree(ctx context.Context, element *node.Node) (*fiber.Fiber, error) {
	c.mu.Lock()
	if element != nil {
		c.root = *element
		c.hasRoot = true
	}
	if !c.hasRoot {
		c.mu.Unlock()
		return nil, ErrNoRoot
	}
	root := c.root
	c.mu.Unlock()

	f, err := c.reconciler.Reconcile(ctx, root)
	if err != nil {
		return nil, NewCompileError("reconcile", err)
	}
	return f, nil
}

// Collect runs the collector (C7) over the last committed fiber tree and
// annotates it (C8) if an estimator is configured, tracing the collect and
// annotate phases as children of the span already active on ctx and
// recording their durations and the annotated token total if metrics are
// configured.
func (c *Compiler) Collect(ctx context.Context) *compiled.Structure {
	_, collectSpan := c.tracer.TracePhase(ctx, "collect")
	collectStart := time.Now()
	s := collect.Collect(c.reconciler.Current(), c.tools.Lookup, c.logger)
	collectSpan.End()
	if c.metrics != nil {
		c.metrics.RecordPhase("collect", time.Since(collectStart).Seconds())
	}

	if c.opts.Estimator != nil {
		_, annotateSpan := c.tracer.TracePhase(ctx, "annotate")
		annotateStart := time.Now()
		tokenest.Annotate(s, c.opts.Estimator)
		annotateSpan.End()
		if c.metrics != nil {
			c.metrics.RecordPhase("annotate", time.Since(annotateStart).Seconds())
			if s.TotalTokens != nil {
				c.metrics.RecordTokensAnnotated(*s.TotalTokens)
			}
		}
	}
	return s
}

// Compile runs one full pass — reconcile, AfterRender effects, collect,
// annotate — without the stability loop CompileUntilStable adds.
func (c *Compiler) Compile(ctx context.Context, element node.Node, tick *hookrt.TickState) (*compiled.Structure, error) {
	c.setTickState(tick)
	f, err := c.ReconcileTree(ctx, &element)
	if err != nil {
		return nil, err
	}
	c.effects.Flush(ctx, hookrt.PhaseAfterRender, f)
	return c.Collect(ctx), nil
}

func (c *Compiler) setTickState(tick *hookrt.TickState) {
	c.mu.Lock()
	c.tickState = tick
	c.mu.Unlock()
	c.reconciler.SetTickState(tick)
}

// ResolveRef looks up a fiber debug id published under name via a ref prop.
func (c *Compiler) ResolveRef(name string) (string, bool) { return c.refs.Get(name) }

// FiberCount reports how many fibers are tracked in the current execution's
// arena.
func (c *Compiler) FiberCount() int { return c.reconciler.FiberCount() }

// Unmount tears down the entire current tree as if every node had been
// deleted, running destroy cleanups children-before-parent.
func (c *Compiler) Unmount(ctx context.Context) {
	root := c.reconciler.Current()
	if root == nil {
		return
	}
	c.effects.Unmount(ctx, root)
}

// SerializeFiberTree returns the hibernation/debug snapshot of the current
// committed tree.
func (c *Compiler) SerializeFiberTree() *serialize.SerializedFiberNode {
	return serialize.Serialize(c.reconciler.Current())
}

// GetFiberSummary returns just the summary portion of a snapshot (fiber and
// hook counts) without walking/serializing the full tree's props.
func (c *Compiler) GetFiberSummary() *serialize.Summary {
	snap := c.SerializeFiberTree()
	if snap == nil {
		return nil
	}
	return snap.Summary
}

// --- notify* lifecycle callbacks --------------------------------

func (c *Compiler) notifyStart() {
	if c.opts.Hooks.OnStart != nil {
		c.opts.Hooks.OnStart()
	}
}

func (c *Compiler) notifyTickStart(tick *hookrt.TickState) {
	if c.opts.Hooks.OnTickStart != nil {
		c.opts.Hooks.OnTickStart(tick)
	}
}

func (c *Compiler) notifyTickEnd(tick *hookrt.TickState) {
	if c.opts.Hooks.OnTickEnd != nil {
		c.opts.Hooks.OnTickEnd(tick)
	}
}

func (c *Compiler) notifyAfterCompile(s *compiled.Structure, iteration int) {
	if c.opts.Hooks.OnAfterCompile != nil {
		c.opts.Hooks.OnAfterCompile(s, iteration)
	}
}

func (c *Compiler) notifyComplete(result *CompileResult) {
	if c.opts.Hooks.OnComplete != nil {
		c.opts.Hooks.OnComplete(result)
	}
}

func (c *Compiler) notifyOnMessage(ctx context.Context, msg any) {
	if c.opts.Hooks.OnMessage != nil {
		c.opts.Hooks.OnMessage(ctx, msg)
	}
	f := c.reconciler.Current()
	if f == nil {
		return
	}
	fiber.Traverse(f, func(fb *fiber.Fiber) bool {
		head, ok := fb.MemoizedState.(*hookrt.HookState)
		if !ok {
			return true
		}
		for _, handler := range hookrt.OnMessageHandlers(head) {
			handler(ctx, msg)
		}
		return true
	})
}

func (c *Compiler) notifyError(err error) RecoveryAction {
	if c.opts.Hooks.OnError == nil {
		return RecoveryNone
	}
	return c.opts.Hooks.OnError(err)
}
