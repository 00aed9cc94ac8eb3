package compiler

import (
	"context"
	"fmt"
	"time"

	"github.com/kestrel-labs/promptc/internal/hookrt"
	"github.com/kestrel-labs/promptc/pkg/compiled"
	"github.com/kestrel-labs/promptc/pkg/node"
)

// CompileResult is CompileUntilStable's return value.
type CompileResult struct {
	Compiled     *compiled.Structure
	Iterations   int
	ForcedStable bool
	Reasons      []string
}

// CompileUntilStable runs the stability loop: reconcile,
// AfterRender effects, collect, annotate, AfterCompile effects — repeating
// until no AfterCompile effect (or Signal.Set call) requests another
// recompile, or maxIterations is reached.
//
//	loop:
//	  clear recompile flag
//	  reconcile(root, tickState); run AfterRender effects
//	  compiled = collect(); annotate(compiled, estimator?)
//	  run AfterCompile effects (each may call requestRecompile)
//	  collect reasons with iteration tag
//	  iterations += 1
//	  if not recompile_requested: return {compiled, iterations, forcedStable=false, reasons}
//	  (reasons are tagged with the pre-increment iteration index, so the
//	  first iteration's reasons read "[iteration 0] ...")
//	  if iterations >= maxIterations: log warning; return {..., forcedStable=true, ...}
//
// The whole call runs under one prompt_compiler.tick span, with a reconcile
// child span per stability-loop iteration; tick duration, recompile
// reasons, and the live fiber count are recorded on c.opts.Metrics when set.
func (c *Compiler) CompileUntilStable(ctx context.Context, element node.Node, tick *hookrt.TickState) (*CompileResult, error) {
	maxIterations := c.opts.MaxIterations

	c.notifyStart()
	c.setTickState(tick)

	tickNumber := 0
	if tick != nil {
		tickNumber = tick.TickNumber
	}
	ctx, tickSpan := c.tracer.TraceTick(ctx, tickNumber, c.executionID)
	defer tickSpan.End()
	tickStart := time.Now()

	var reasons []string
	iterations := 0
	current := element
	retried := false

	for {
		c.clearRecompileFlag()
		c.notifyTickStart(tick)

		reconcileCtx, reconcileSpan := c.tracer.TracePhase(ctx, "reconcile")
		reconcileStart := time.Now()
		c.beginTickFlag()
		f, err := c.ReconcileTree(reconcileCtx, &current)
		c.endTickFlag()
		if c.metrics != nil {
			c.metrics.RecordPhase("reconcile", time.Since(reconcileStart).Seconds())
		}
		if err != nil {
			c.tracer.RecordError(reconcileSpan, err)
			reconcileSpan.End()
			if action := c.notifyError(err); action == RecoveryRetry && !retried {
				retried = true
				continue
			}
			c.tracer.RecordError(tickSpan, err)
			return nil, NewCompileError("reconcile", err).WithIteration(iterations + 1)
		}
		reconcileSpan.End()

		c.effects.Flush(ctx, hookrt.PhaseAfterRender, f)

		structure := c.Collect(ctx)

		c.effects.Flush(ctx, hookrt.PhaseAfterCompile, f)

		for _, r := range c.drainRecompileReasons() {
			reasons = append(reasons, fmt.Sprintf("[iteration %d] %s", iterations, r))
			if c.metrics != nil {
				c.metrics.RecordRecompile(r)
			}
		}
		iterations++

		c.notifyAfterCompile(structure, iterations)
		c.notifyTickEnd(tick)

		if !c.recompileFlag() {
			c.recordTickMetrics(tickStart, iterations, false)
			result := &CompileResult{Compiled: structure, Iterations: iterations, ForcedStable: false, Reasons: reasons}
			c.notifyComplete(result)
			return result, nil
		}

		if iterations >= maxIterations {
			c.obsLogger.Warn(ctx, "compile did not stabilize within max iterations",
				"iterations", iterations, "max_iterations", maxIterations)
			c.recordTickMetrics(tickStart, iterations, true)
			result := &CompileResult{Compiled: structure, Iterations: iterations, ForcedStable: true, Reasons: reasons}
			c.notifyComplete(result)
			return result, nil
		}
	}
}

func (c *Compiler) recordTickMetrics(start time.Time, iterations int, forcedStable bool) {
	if c.metrics == nil {
		return
	}
	c.metrics.RecordTick(time.Since(start).Seconds(), iterations, forcedStable)
	c.metrics.SetActiveFibers(c.FiberCount())
}

func (c *Compiler) clearRecompileFlag() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.recompileRequested = false
}

func (c *Compiler) recompileFlag() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.recompileRequested
}

func (c *Compiler) drainRecompileReasons() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	reasons := c.recompileReasons
	c.recompileReasons = nil
	return reasons
}

func (c *Compiler) beginTickFlag() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.inTick = true
}

func (c *Compiler) endTickFlag() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.inTick = false
}
