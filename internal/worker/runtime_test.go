package worker

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/maraichr/docstream/internal/messaging"
)

type fakeAcker struct {
	acks     int
	nacks    int
	requeues []bool
}

func (a *fakeAcker) Ack() error { a.acks++; return nil }

func (a *fakeAcker) Nack(requeue bool) error {
	a.nacks++
	a.requeues = append(a.requeues, requeue)
	return nil
}

type published struct {
	routingKey string
	payload    any
	body       []byte
	headers    map[string]any
}

type fakeBroker struct {
	declared   map[string]string
	publishes  []published
	publishErr error
}

func newFakeBroker() *fakeBroker {
	return &fakeBroker{declared: make(map[string]string)}
}

func (b *fakeBroker) DeclareQueue(name, routingKey string) error {
	b.declared[name] = routingKey
	return nil
}

func (b *fakeBroker) Consume(ctx context.Context, queue string, fn func(messaging.Delivery)) error {
	<-ctx.Done()
	return ctx.Err()
}

func (b *fakeBroker) Publish(ctx context.Context, routingKey string, payload any) error {
	b.publishes = append(b.publishes, published{routingKey: routingKey, payload: payload})
	return b.publishErr
}

func (b *fakeBroker) PublishRaw(ctx context.Context, routingKey string, body []byte, headers map[string]any) error {
	if b.publishErr != nil {
		return b.publishErr
	}
	b.publishes = append(b.publishes, published{routingKey: routingKey, body: body, headers: headers})
	return nil
}

func testRuntime(t *testing.T, broker Broker, process ProcessFunc) *Runtime {
	t.Helper()
	return NewRuntime(Options{
		Role:          "test",
		Queue:         "test.queue",
		BindingKey:    "document.uploaded",
		MaxAttempts:   3,
		DeadLetterKey: "pipeline.dead_letter",
	}, broker, process, slog.New(slog.NewTextHandler(io.Discard, nil)))
}

func delivery(body string, acker *fakeAcker, headers map[string]any) messaging.Delivery {
	return messaging.Delivery{
		Body:       []byte(body),
		RoutingKey: "document.uploaded",
		Headers:    headers,
		Acker:      acker,
	}
}

func TestHandle_MalformedJSON(t *testing.T) {
	broker := newFakeBroker()
	calls := 0
	rt := testRuntime(t, broker, func(ctx context.Context, body []byte) (Outcome, error) {
		calls++
		return OutcomeOK, nil
	})

	acker := &fakeAcker{}
	rt.handle(context.Background(), delivery("{not json", acker, nil))

	assert.Equal(t, 0, calls, "process must not run on malformed JSON")
	assert.Equal(t, 0, acker.acks)
	require.Equal(t, 1, acker.nacks)
	assert.False(t, acker.requeues[0], "malformed JSON is dropped, not requeued")
	assert.Empty(t, broker.publishes)
}

func TestHandle_Success(t *testing.T) {
	broker := newFakeBroker()
	rt := testRuntime(t, broker, func(ctx context.Context, body []byte) (Outcome, error) {
		return OutcomeOK, nil
	})

	acker := &fakeAcker{}
	rt.handle(context.Background(), delivery(`{"document_id":"x"}`, acker, nil))

	assert.Equal(t, 1, acker.acks)
	assert.Equal(t, 0, acker.nacks)
	assert.Empty(t, broker.publishes)
}

func TestHandle_RetryRepublishesWithAttemptCounter(t *testing.T) {
	broker := newFakeBroker()
	rt := testRuntime(t, broker, func(ctx context.Context, body []byte) (Outcome, error) {
		return OutcomeRetry, errors.New("backend flaked")
	})

	acker := &fakeAcker{}
	rt.handle(context.Background(), delivery(`{"document_id":"x"}`, acker, nil))

	require.Len(t, broker.publishes, 1)
	pub := broker.publishes[0]
	assert.Equal(t, "document.uploaded", pub.routingKey, "retry goes back to the same key")
	assert.Equal(t, 1, pub.headers[HeaderAttempts])
	assert.Equal(t, "backend flaked", pub.headers[HeaderLastError])
	assert.Equal(t, 1, acker.acks, "original delivery is settled after republish")
	assert.Equal(t, 0, acker.nacks)
}

func TestHandle_RetryCeilingDeadLetters(t *testing.T) {
	broker := newFakeBroker()
	rt := testRuntime(t, broker, func(ctx context.Context, body []byte) (Outcome, error) {
		return OutcomeRetry, errors.New("still broken")
	})

	acker := &fakeAcker{}
	// Two prior attempts recorded; MaxAttempts is 3, so this attempt hits the ceiling.
	rt.handle(context.Background(), delivery(`{"document_id":"x"}`, acker, map[string]any{
		HeaderAttempts: int64(2),
	}))

	require.Len(t, broker.publishes, 1)
	pub := broker.publishes[0]
	assert.Equal(t, "pipeline.dead_letter", pub.routingKey)
	assert.Equal(t, "document.uploaded", pub.headers[HeaderOriginalKey])
	assert.Equal(t, 1, acker.acks)
}

func TestHandle_RetryRepublishFailureFallsBackToRequeue(t *testing.T) {
	broker := newFakeBroker()
	broker.publishErr = errors.New("broker down")
	rt := testRuntime(t, broker, func(ctx context.Context, body []byte) (Outcome, error) {
		return OutcomeRetry, errors.New("transient")
	})

	acker := &fakeAcker{}
	rt.handle(context.Background(), delivery(`{"document_id":"x"}`, acker, nil))

	require.Equal(t, 1, acker.nacks)
	assert.True(t, acker.requeues[0], "fallback keeps the message alive via requeue")
	assert.Equal(t, 0, acker.acks)
}

func TestHandle_DropDeadLetters(t *testing.T) {
	broker := newFakeBroker()
	rt := testRuntime(t, broker, func(ctx context.Context, body []byte) (Outcome, error) {
		return OutcomeDrop, errors.New("payload references a deleted document")
	})

	acker := &fakeAcker{}
	rt.handle(context.Background(), delivery(`{"document_id":"x"}`, acker, nil))

	require.Len(t, broker.publishes, 1)
	assert.Equal(t, "pipeline.dead_letter", broker.publishes[0].routingKey)
	assert.Equal(t, 1, acker.acks)
	assert.Equal(t, 0, acker.nacks)
}

func TestSetup_DeclaresAndBinds(t *testing.T) {
	broker := newFakeBroker()
	rt := testRuntime(t, broker, func(ctx context.Context, body []byte) (Outcome, error) {
		return OutcomeOK, nil
	})

	require.NoError(t, rt.Setup())
	assert.Equal(t, "document.uploaded", broker.declared["test.queue"])
}

func TestHeaderInt_NumericVariants(t *testing.T) {
	tests := []struct {
		name  string
		value any
		want  int
	}{
		{"int", 7, 7},
		{"int32", int32(7), 7},
		{"int64", int64(7), 7},
		{"float64", float64(7), 7},
		{"missing", nil, 0},
		{"wrong type", "7", 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d := messaging.Delivery{Headers: map[string]any{"k": tt.value}}
			assert.Equal(t, tt.want, d.HeaderInt("k"))
		})
	}
}
