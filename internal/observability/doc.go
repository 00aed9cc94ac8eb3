// Package observability provides monitoring and debugging capabilities for
// the prompt compiler through metrics, structured logging, and distributed
// tracing.
//
// # Overview
//
// The observability package implements the three pillars of observability:
//
//  1. Metrics - Quantitative measurements using Prometheus
//  2. Logging - Structured logs with sensitive data redaction
//  3. Tracing - Distributed tracing of compile ticks with OpenTelemetry
//
// # Architecture
//
// The package is designed to be:
//   - Low-overhead: minimal performance impact inside the stability loop
//   - Type-safe: strongly-typed APIs reduce configuration errors
//   - Production-ready: built-in redaction and reliability features
//   - Standards-based: uses Prometheus, OpenTelemetry, and slog
//
// # Metrics
//
// Metrics are implemented using Prometheus client libraries and track:
//   - Tick duration and stability-loop iteration counts
//   - Reconcile/collect/annotate phase latency
//   - Suspension (data-fetch throw/retry) frequency
//   - Effect and render error rates by phase/component
//   - Live fiber counts for capacity/leak tracking
//   - Annotated token totals per compiled structure
//   - Tool registration outcomes
//
// Example usage:
//
//	metrics := observability.NewMetrics()
//
//	start := time.Now()
//	// ... compileUntilStable ...
//	metrics.RecordTick(time.Since(start).Seconds(), iterations, forcedStable)
//
//	metrics.RecordPhase("reconcile", reconcileDuration.Seconds())
//	metrics.RecordSuspension("UserProfileWidget", retries)
//
// # Logging
//
// Logging is built on Go's slog package with enhancements for:
//   - Automatic tick/execution/fiber correlation from context
//   - Sensitive data redaction (API keys, passwords, tokens) for values that
//     leak into component props passed to a Data-fetch hook
//   - JSON output for production, text for development
//   - Configurable log levels
//
// Example usage:
//
//	logger := observability.NewLogger(observability.LogConfig{
//	    Level:     "info",
//	    Format:    "json",
//	    AddSource: true,
//	})
//
//	ctx := observability.WithTickID(ctx, tick)
//	ctx = observability.WithFiberID(ctx, fiber.ID)
//	ctx = observability.WithComponent(ctx, fiber.DebugName)
//
//	logger.Info(ctx, "reconciled fiber", "children", len(fiber.Children))
//
//	logger.Error(ctx, "data fetch failed",
//	    "error", err,
//	    "provider", "anthropic",
//	    "api_key", apiKey, // Automatically redacted
//	)
//
// # Tracing
//
// Distributed tracing uses OpenTelemetry to track a compile tick end to end:
//   - Tick-level span nesting phase spans (reconcile, collect, annotate)
//   - Per-fiber render spans
//   - Data-fetch spans for suspension-backing requests
//   - Error correlation across the whole tree walk
//
// Example usage:
//
//	tracer, shutdown := observability.NewTracer(observability.TraceConfig{
//	    ServiceName:    "promptc",
//	    ServiceVersion: "1.0.0",
//	    Environment:    "production",
//	    Endpoint:       "localhost:4317", // OTLP collector
//	    SamplingRate:   0.1,              // Sample 10% of traces
//	})
//	defer shutdown(context.Background())
//
//	ctx, span := tracer.TraceTick(ctx, tick, executionID)
//	defer span.End()
//
//	ctx, renderSpan := tracer.TraceRender(ctx, "UserProfileWidget", fiberID)
//	defer renderSpan.End()
//
//	ctx, fetchSpan := tracer.TraceDataFetch(ctx, "anthropic", "claude-opus-4")
//	defer fetchSpan.End()
//	if err != nil {
//	    tracer.RecordError(fetchSpan, err)
//	}
//
// # Context Propagation
//
// All three components integrate with Go's context for automatic correlation:
//
//	ctx = observability.WithTickID(ctx, tick)
//	ctx = observability.WithExecutionID(ctx, executionID)
//	ctx = observability.WithFiberID(ctx, fiberID)
//	ctx = observability.WithComponent(ctx, debugName)
//
//	logger.Info(ctx, "begin render") // Includes tick_id, fiber_id, component
//
//	ctx, span := tracer.Start(ctx, "reconcile")
//	// Trace context propagates to child spans
//
// # Integration Example
//
// Complete example integrating all three components around a single tick:
//
//	func CompileUntilStable(ctx context.Context, tick int, root node.Node) (*compiled.Structure, error) {
//	    ctx = observability.WithTickID(ctx, tick)
//	    ctx, span := tracer.TraceTick(ctx, tick, executionID)
//	    defer span.End()
//
//	    start := time.Now()
//	    iterations := 0
//	    forcedStable := false
//
//	    for {
//	        iterations++
//	        phaseStart := time.Now()
//	        ctx, reconcileSpan := tracer.TracePhase(ctx, "reconcile")
//	        err := reconciler.Reconcile(ctx, root)
//	        reconcileSpan.End()
//	        metrics.RecordPhase("reconcile", time.Since(phaseStart).Seconds())
//	        if err != nil {
//	            metrics.RecordRenderError("root")
//	            logger.Error(ctx, "reconcile failed", "error", err)
//	            return nil, err
//	        }
//	        if stable || iterations >= maxIterations {
//	            forcedStable = !stable
//	            break
//	        }
//	    }
//
//	    metrics.RecordTick(time.Since(start).Seconds(), iterations, forcedStable)
//	    return collected, nil
//	}
//
// # Security Considerations
//
// The logging component automatically redacts:
//   - API keys (Anthropic, OpenAI, generic)
//   - Passwords and secrets
//   - JWT tokens
//   - Bearer tokens
//   - Custom patterns via configuration
//
// Sensitive fields in maps are also redacted:
//   - password, passwd, pwd
//   - secret, api_key, apikey
//   - token, auth, authorization
//   - private_key, privatekey
//
// # Performance
//
// The observability system is designed for minimal overhead inside the
// stability loop:
//   - Metrics use lock-free counters where possible
//   - Logging with slog is highly efficient
//   - Tracing supports sampling to reduce overhead
//   - Context propagation is zero-allocation in most cases
//
// Typical overhead:
//   - Metrics: <1% CPU, ~10KB memory per metric
//   - Logging: ~1-5μs per log call
//   - Tracing: ~2-10μs per span (when sampled)
//
// # Configuration
//
// All components support configuration via structs:
//
//	// Metrics - no configuration needed, auto-registered
//	metrics := observability.NewMetrics()
//
//	// Logging - configurable output, level, format
//	logger := observability.NewLogger(observability.LogConfig{
//	    Level:          os.Getenv("LOG_LEVEL"),
//	    Format:         "json",
//	    AddSource:      true,
//	    RedactPatterns: []string{`custom-secret-\d+`},
//	})
//
//	// Tracing - configurable sampling, endpoint, attributes
//	tracer, shutdown := observability.NewTracer(observability.TraceConfig{
//	    ServiceName:    "promptc",
//	    ServiceVersion: version,
//	    Environment:    env,
//	    Endpoint:       os.Getenv("OTEL_ENDPOINT"),
//	    SamplingRate:   0.1,
//	    Attributes: map[string]string{
//	        "deployment.region": region,
//	    },
//	})
//	defer shutdown(context.Background())
//
// # Testing
//
// All components provide testable interfaces:
//   - Metrics can be verified using prometheus/testutil
//   - Logging can write to bytes.Buffer for assertions
//   - Tracing works with no-op exporters in tests
//
// # Best Practices
//
//  1. Always propagate context to enable correlation
//  2. Use defer for span.End() to ensure spans are closed
//  3. Record errors on both metrics and traces
//  4. Use structured logging with key-value pairs
//  5. Set appropriate sampling rates for high-traffic deployments
//  6. Add relevant attributes to spans for debugging
//  7. Use typed metric labels (avoid high-cardinality values)
//  8. Call shutdown() on tracer during graceful shutdown
//
// # Monitoring Dashboard
//
// The metrics exposed can be used to build dashboards:
//
//	# Tick throughput
//	rate(promptc_tick_duration_seconds_count[5m])
//
//	# Tick latency (95th percentile)
//	histogram_quantile(0.95, rate(promptc_tick_duration_seconds_bucket[5m]))
//
//	# Forced-stable rate
//	rate(promptc_forced_stable_total[5m])
//
//	# Live fibers
//	promptc_active_fibers
//
//	# Suspension rate by component
//	rate(promptc_suspensions_total[5m])
//
// # Alerting
//
// Recommended alerts based on metrics:
//   - High forced-stable rate: promptc_forced_stable_total growing steadily
//   - High tick latency: p95 promptc_tick_duration_seconds > threshold
//   - Suspension storms: rate(promptc_suspensions_total) > threshold
//   - Fiber accumulation: promptc_active_fibers growing unbounded
//
// # Further Reading
//
//   - Prometheus best practices: https://prometheus.io/docs/practices/naming/
//   - OpenTelemetry specification: https://opentelemetry.io/docs/specs/otel/
//   - slog documentation: https://pkg.go.dev/log/slog
package observability
