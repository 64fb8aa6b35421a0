package worker

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"

	"github.com/google/uuid"

	"github.com/maraichr/docstream/internal/llm"
	"github.com/maraichr/docstream/internal/messaging"
)

const generatorSystemPrompt = `You answer questions using only the provided context passages. ` +
	`If the context does not contain the answer, say so. Cite passages by their number.`

// ChatCompleter is the LLM capability the generator needs. *llm.Client
// satisfies it.
type ChatCompleter interface {
	Complete(ctx context.Context, messages []llm.Message) (string, error)
	Model() string
}

// GenerationWorker consumes retrieval.response, grounds an LLM answer in
// the retrieved chunks and publishes generation.completed.
type GenerationWorker struct {
	llm    ChatCompleter
	broker Broker
	logger *slog.Logger
}

func NewGenerationWorker(completer ChatCompleter, broker Broker, logger *slog.Logger) *GenerationWorker {
	return &GenerationWorker{llm: completer, broker: broker, logger: logger}
}

func (w *GenerationWorker) Runtime(maxAttempts int, deadLetterKey string) *Runtime {
	return NewRuntime(Options{
		Role:          "generator",
		Queue:         QueueName("generator"),
		BindingKey:    messaging.KeyRetrievalResponse,
		MaxAttempts:   maxAttempts,
		DeadLetterKey: deadLetterKey,
	}, w.broker, w.Process, w.logger)
}

func (w *GenerationWorker) Process(ctx context.Context, body []byte) (Outcome, error) {
	var resp messaging.RetrievalResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return OutcomeDrop, fmt.Errorf("decode retrieval response: %w", err)
	}
	if resp.RequestID == uuid.Nil {
		return OutcomeDrop, fmt.Errorf("retrieval response missing request_id")
	}

	answer, err := w.llm.Complete(ctx, []llm.Message{
		{Role: "system", Content: generatorSystemPrompt},
		{Role: "user", Content: buildPrompt(resp.Query, resp.Results)},
	})
	if err != nil {
		return OutcomeRetry, fmt.Errorf("generate answer: %w", err)
	}

	result := messaging.GenerationResult{
		RequestID:   resp.RequestID,
		WorkspaceID: resp.WorkspaceID,
		UserID:      resp.UserID,
		Query:       resp.Query,
		Answer:      answer,
		Model:       w.llm.Model(),
	}
	if err := w.broker.Publish(ctx, messaging.KeyGenerationCompleted, result); err != nil {
		return OutcomeRetry, fmt.Errorf("publish generation.completed: %w", err)
	}

	w.logger.Info("generation completed",
		slog.String("request_id", resp.RequestID.String()),
		slog.Int("context_chunks", len(resp.Results)))
	return OutcomeOK, nil
}

func buildPrompt(query string, results []messaging.RetrievedChunk) string {
	var b strings.Builder
	if len(results) == 0 {
		b.WriteString("No context passages were retrieved.\n\n")
	} else {
		b.WriteString("Context passages:\n\n")
		for i, r := range results {
			fmt.Fprintf(&b, "[%d] %s\n\n", i+1, r.Text)
		}
	}
	b.WriteString("Question: ")
	b.WriteString(query)
	return b.String()
}
