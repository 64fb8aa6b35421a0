package worker

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/maraichr/docstream/internal/messaging"
)

// Outcome is the typed result of processing one delivery. It replaces
// exception-driven requeue decisions: transient-vs-permanent is a deliberate
// choice made by the handler, not an accident of which error escaped.
type Outcome int

const (
	// OutcomeOK acknowledges the delivery.
	OutcomeOK Outcome = iota
	// OutcomeRetry re-delivers the message until the attempt ceiling, then
	// dead-letters it.
	OutcomeRetry
	// OutcomeDrop dead-letters the message immediately; it will not be
	// retried.
	OutcomeDrop
)

// ProcessFunc is the role-specific handler. It receives the raw JSON body
// (already validated as JSON by the runtime) and reports how the delivery
// should be settled. The error is for logging only.
type ProcessFunc func(ctx context.Context, body []byte) (Outcome, error)

// Broker is the transport capability the runtime needs. *messaging.Client
// satisfies it; tests substitute fakes.
type Broker interface {
	DeclareQueue(name, routingKey string) error
	Consume(ctx context.Context, queue string, fn func(messaging.Delivery)) error
	Publish(ctx context.Context, routingKey string, payload any) error
	PublishRaw(ctx context.Context, routingKey string, body []byte, headers map[string]any) error
}

// Retry bookkeeping headers carried on republished messages.
const (
	HeaderAttempts    = "x-attempts"
	HeaderLastError   = "x-last-error"
	HeaderOriginalKey = "x-original-key"
)

// Runtime binds one worker role to one queue and routing key and runs its
// consume loop. It owns the acknowledgement protocol:
//
//   - body is not valid JSON  → nack without requeue, handler never called
//   - handler returns OK      → ack
//   - handler returns Retry   → republish with an incremented attempt
//     counter and ack the original; at the ceiling, dead-letter instead
//   - handler returns Drop    → dead-letter and ack
//
// Republishing (rather than nack+requeue) is what makes the attempt count
// survive redelivery; a plain requeue carries no counter.
type Runtime struct {
	role          string
	queue         string
	bindingKey    string
	broker        Broker
	process       ProcessFunc
	maxAttempts   int
	deadLetterKey string
	logger        *slog.Logger
}

// Options configures a Runtime.
type Options struct {
	Role          string
	Queue         string
	BindingKey    string
	MaxAttempts   int
	DeadLetterKey string
}

func NewRuntime(opts Options, broker Broker, process ProcessFunc, logger *slog.Logger) *Runtime {
	if opts.MaxAttempts < 1 {
		opts.MaxAttempts = 1
	}
	return &Runtime{
		role:          opts.Role,
		queue:         opts.Queue,
		bindingKey:    opts.BindingKey,
		broker:        broker,
		process:       process,
		maxAttempts:   opts.MaxAttempts,
		deadLetterKey: opts.DeadLetterKey,
		logger:        logger.With(slog.String("worker", opts.Role)),
	}
}

func (r *Runtime) Role() string { return r.role }

// Setup declares and binds the worker's queue. Idempotent.
func (r *Runtime) Setup() error {
	if err := r.broker.DeclareQueue(r.queue, r.bindingKey); err != nil {
		return fmt.Errorf("setup %s: %w", r.role, err)
	}
	return nil
}

// Run blocks consuming the worker's queue until ctx is canceled.
func (r *Runtime) Run(ctx context.Context) error {
	r.logger.Info("worker consuming", slog.String("queue", r.queue), slog.String("binding", r.bindingKey))
	return r.broker.Consume(ctx, r.queue, func(d messaging.Delivery) {
		r.handle(ctx, d)
	})
}

func (r *Runtime) handle(ctx context.Context, d messaging.Delivery) {
	if !json.Valid(d.Body) {
		r.logger.Error("invalid JSON body, dropping message",
			slog.String("routing_key", d.RoutingKey))
		if err := d.Nack(false); err != nil {
			r.logger.Error("nack failed", slog.String("error", err.Error()))
		}
		return
	}

	outcome, procErr := r.process(ctx, d.Body)

	switch outcome {
	case OutcomeOK:
		if err := d.Ack(); err != nil {
			r.logger.Error("ack failed", slog.String("error", err.Error()))
		}

	case OutcomeRetry:
		r.retry(ctx, d, procErr)

	case OutcomeDrop:
		r.logger.Error("permanent failure, dead-lettering message",
			slog.String("routing_key", d.RoutingKey),
			slog.String("error", errString(procErr)))
		r.deadLetter(ctx, d, procErr)
		if err := d.Ack(); err != nil {
			r.logger.Error("ack failed", slog.String("error", err.Error()))
		}

	default:
		r.logger.Error("unknown outcome, dead-lettering message",
			slog.Int("outcome", int(outcome)))
		r.deadLetter(ctx, d, procErr)
		if err := d.Ack(); err != nil {
			r.logger.Error("ack failed", slog.String("error", err.Error()))
		}
	}
}

// retry republishes the delivery to its own routing key with an incremented
// attempt counter, or dead-letters it once the ceiling is reached. If the
// republish itself fails, the message is nacked with requeue as a fallback
// so it is not lost.
func (r *Runtime) retry(ctx context.Context, d messaging.Delivery, procErr error) {
	attempts := d.HeaderInt(HeaderAttempts) + 1

	if attempts >= r.maxAttempts {
		r.logger.Error("retry ceiling reached, dead-lettering message",
			slog.String("routing_key", d.RoutingKey),
			slog.Int("attempts", attempts),
			slog.String("error", errString(procErr)))
		r.deadLetter(ctx, d, procErr)
		if err := d.Ack(); err != nil {
			r.logger.Error("ack failed", slog.String("error", err.Error()))
		}
		return
	}

	r.logger.Warn("transient failure, requeueing message",
		slog.String("routing_key", d.RoutingKey),
		slog.Int("attempt", attempts),
		slog.String("error", errString(procErr)))

	headers := map[string]any{
		HeaderAttempts:  attempts,
		HeaderLastError: errString(procErr),
	}
	if err := r.broker.PublishRaw(ctx, d.RoutingKey, d.Body, headers); err != nil {
		r.logger.Error("republish failed, nacking with requeue",
			slog.String("error", err.Error()))
		if err := d.Nack(true); err != nil {
			r.logger.Error("nack failed", slog.String("error", err.Error()))
		}
		return
	}
	if err := d.Ack(); err != nil {
		r.logger.Error("ack failed", slog.String("error", err.Error()))
	}
}

func (r *Runtime) deadLetter(ctx context.Context, d messaging.Delivery, procErr error) {
	if r.deadLetterKey == "" {
		return
	}
	headers := map[string]any{
		HeaderAttempts:    d.HeaderInt(HeaderAttempts),
		HeaderLastError:   errString(procErr),
		HeaderOriginalKey: d.RoutingKey,
	}
	if err := r.broker.PublishRaw(ctx, r.deadLetterKey, d.Body, headers); err != nil {
		r.logger.Error("dead-letter publish failed",
			slog.String("routing_key", d.RoutingKey),
			slog.String("error", err.Error()))
	}
}

func errString(err error) string {
	if err == nil {
		return ""
	}
	return err.Error()
}
