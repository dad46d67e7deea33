package dispatch

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"time"

	"github.com/contractguard/contractguard/core"
	"github.com/contractguard/contractguard/logging"
	"github.com/contractguard/contractguard/tool"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// Class groups tools by the collaborator they call into. Retrieval lookups
// and model generations have very different latency profiles, so each class
// carries its own timeout and concurrency ceiling.
type Class string

const (
	ClassSearch     Class = "search"
	ClassGeneration Class = "generation"
)

// Options configures dispatcher timeouts, retry policy and concurrency
// ceilings. The defaults match the latency profiles of the two collaborator
// classes.
type Options struct {
	Logger            *logging.ContractGuardLogger
	Tracer            trace.Tracer
	SearchTimeout     time.Duration
	GenerationTimeout time.Duration
	MaxRetries        int
	BackoffBase       time.Duration
	MaxConcurrent     int
	MaxQueue          int
}

// Result is the outcome of a single dispatched invocation. Execution
// failures that exhausted the retry budget are carried in Failure rather
// than the error return, so callers can fold them into a degraded answer.
type Result struct {
	Tool     string
	Output   any
	Failure  *core.ToolFailure
	Attempts int
	Latency  time.Duration
	SpanID   string
}

// Record converts the result into the tool call record attached to agent
// messages.
func (r *Result) Record() core.ToolCall {
	rec := core.ToolCall{
		Tool:    r.Tool,
		Result:  r.Output,
		Latency: r.Latency,
		SpanID:  r.SpanID,
	}
	if r.Failure != nil {
		rec.Error = r.Failure.Error()
	}
	return rec
}

type registration struct {
	tool  tool.Tool
	class Class
}

// Dispatcher owns the dispatch table and mediates every invocation. It is
// safe for concurrent use; the table is frozen after registration.
type Dispatcher struct {
	opts     Options
	tools    map[string]registration
	ordered  []string
	limiters map[Class]*CallLimiter
}

// NewDispatcher creates a dispatcher with the given options applied over
// defaults.
func NewDispatcher(optFns ...func(o *Options)) *Dispatcher {
	opts := Options{
		Logger:            logging.NewLogger(logging.DefaultLoggerConfig()).WithComponent("dispatch"),
		Tracer:            otel.Tracer("contractguard/dispatch"),
		SearchTimeout:     10 * time.Second,
		GenerationTimeout: 30 * time.Second,
		MaxRetries:        2,
		BackoffBase:       500 * time.Millisecond,
		MaxConcurrent:     8,
		MaxQueue:          32,
	}
	for _, fn := range optFns {
		fn(&opts)
	}

	return &Dispatcher{
		opts:  opts,
		tools: make(map[string]registration),
		limiters: map[Class]*CallLimiter{
			ClassSearch:     NewCallLimiter(opts.MaxConcurrent, opts.MaxQueue),
			ClassGeneration: NewCallLimiter(opts.MaxConcurrent, opts.MaxQueue),
		},
	}
}

// Register adds tools to the dispatch table under a collaborator class.
// Duplicate names are rejected.
func (d *Dispatcher) Register(class Class, tools ...tool.Tool) error {
	for _, t := range tools {
		name := t.Name()
		if name == "" {
			return fmt.Errorf("tool with empty name")
		}
		if _, exists := d.tools[name]; exists {
			return fmt.Errorf("duplicate tool %q", name)
		}
		d.tools[name] = registration{tool: t, class: class}
		d.ordered = append(d.ordered, name)
	}
	return nil
}

// Tools returns the registered tools in registration order, for the
// discovery surface.
func (d *Dispatcher) Tools() []tool.Tool {
	out := make([]tool.Tool, 0, len(d.ordered))
	for _, name := range d.ordered {
		out = append(out, d.tools[name].tool)
	}
	return out
}

// Invoke runs one tool on behalf of a capability.
//
// The error return covers dispatch failures only: unknown tool, a tool the
// capability does not permit, an overloaded limiter or a cancelled context.
// Tool execution failures exhaust the retry budget first and are then
// carried in Result.Failure with the invocation record intact.
func (d *Dispatcher) Invoke(ctx context.Context, capability core.Capability, name string, args map[string]any) (*Result, error) {
	reg, ok := d.tools[name]
	if !ok {
		return nil, fmt.Errorf("tool %q: %w", name, core.ErrNotFound)
	}
	if !capability.Permits(name) {
		return nil, fmt.Errorf("tool %q for capability %q: %w", name, capability.Name, core.ErrUnauthorized)
	}

	limiter := d.limiters[reg.class]
	if err := limiter.Acquire(ctx); err != nil {
		if errors.Is(err, core.ErrOverloaded) {
			d.opts.Logger.Warn("tool invocation rejected", "tool", name, "reason", "overloaded")
		}
		return nil, err
	}
	defer limiter.Release()

	ctx, span := d.opts.Tracer.Start(ctx, "tool.invoke", trace.WithAttributes(
		attribute.String("tool.name", name),
		attribute.String("tool.class", string(reg.class)),
		attribute.String("capability", capability.Name),
	))
	defer span.End()

	start := time.Now()
	output, attempts, err := d.callWithRetry(ctx, reg, args)
	latency := time.Since(start)

	result := &Result{
		Tool:     name,
		Output:   output,
		Attempts: attempts,
		Latency:  latency,
		SpanID:   span.SpanContext().SpanID().String(),
	}
	span.SetAttributes(attribute.Int("tool.attempts", attempts))

	if err != nil {
		result.Output = nil
		result.Failure = &core.ToolFailure{Tool: name, Attempts: attempts, Cause: err}
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		d.opts.Logger.LogToolCall(name, latency, false, err)
		return result, nil
	}

	span.SetStatus(codes.Ok, "")
	d.opts.Logger.LogToolCall(name, latency, true, nil)
	return result, nil
}

// callWithRetry runs the tool up to MaxRetries+1 times, backing off between
// transient failures. The context deadline of the parent still bounds the
// whole sequence.
func (d *Dispatcher) callWithRetry(ctx context.Context, reg registration, args map[string]any) (any, int, error) {
	timeout := d.opts.SearchTimeout
	if reg.class == ClassGeneration {
		timeout = d.opts.GenerationTimeout
	}

	var lastErr error
	attempts := 0
	for attempt := 0; attempt <= d.opts.MaxRetries; attempt++ {
		if attempt > 0 {
			if err := sleepBackoff(ctx, d.backoff(attempt)); err != nil {
				return nil, attempts, lastErr
			}
		}
		attempts++

		callCtx, cancel := context.WithTimeout(ctx, timeout)
		output, err := reg.tool.Call(callCtx, args)
		cancel()
		if err == nil {
			return output, attempts, nil
		}
		lastErr = err
		if !transient(err) {
			break
		}
		if ctx.Err() != nil {
			break
		}
	}
	return nil, attempts, lastErr
}

// backoff returns the exponential delay before the given retry attempt with
// a ±20% jitter.
func (d *Dispatcher) backoff(attempt int) time.Duration {
	delay := d.opts.BackoffBase
	for i := 1; i < attempt; i++ {
		delay *= 2
	}
	jitter := 0.8 + 0.4*rand.Float64()
	return time.Duration(float64(delay) * jitter)
}

func sleepBackoff(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

// transient reports whether the failure is worth retrying. Validation and
// not-found failures are deterministic and never retried; timeouts, network
// errors and provider failures are.
func transient(err error) bool {
	var toolErr *tool.ToolError
	if errors.As(err, &toolErr) {
		switch toolErr.Code {
		case tool.CodeValidation, tool.CodeNotFound:
			return false
		}
	}
	return !errors.Is(err, context.Canceled)
}
