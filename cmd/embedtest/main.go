// embedtest makes a single embedding request against the configured
// provider using config from env (and .env if present).
// Run from project root: go run ./cmd/embedtest
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"time"

	"github.com/joho/godotenv"

	"github.com/maraichr/docstream/internal/config"
	"github.com/maraichr/docstream/internal/embedding"
)

func main() {
	text := flag.String("text", "The quick brown fox jumps over the lazy dog.", "text to embed")
	inputType := flag.String("input-type", "search_document", "embedding input type (search_document or search_query)")
	flag.Parse()

	_ = godotenv.Load(".env") // ignore error if .env missing

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config: %v", err)
	}

	embedder, err := embedding.NewEmbedder(cfg)
	if err != nil {
		log.Fatalf("embedder: %v", err)
	}
	if embedder == nil {
		log.Fatal("no embedding provider configured (set OPENROUTER_API_KEY or AWS_REGION)")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	start := time.Now()
	vectors, err := embedder.EmbedBatch(ctx, []string{*text}, *inputType)
	if err != nil {
		log.Fatalf("embed: %v", err)
	}
	if len(vectors) != 1 {
		log.Fatalf("expected 1 vector, got %d", len(vectors))
	}

	v := vectors[0]
	preview := v
	if len(preview) > 8 {
		preview = preview[:8]
	}
	fmt.Printf("model:      %s\n", embedder.ModelID())
	fmt.Printf("dimensions: %d\n", len(v))
	fmt.Printf("latency:    %s\n", time.Since(start).Round(time.Millisecond))
	fmt.Printf("vector[:8]: %v\n", preview)
}
