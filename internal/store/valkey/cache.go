package valkey

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/valkey-io/valkey-go"
)

// RetrievalCache memoizes retrieval responses per workspace/query/topK so
// repeated queries skip the embed + search round trip. Entries expire after
// the configured TTL; a miss is not an error.
type RetrievalCache struct {
	client valkey.Client
	ttl    time.Duration
}

func NewRetrievalCache(client valkey.Client, ttl time.Duration) *RetrievalCache {
	return &RetrievalCache{client: client, ttl: ttl}
}

func cacheKey(workspaceID uuid.UUID, query string, topK int) string {
	sum := sha256.Sum256([]byte(query + "\x00" + strconv.Itoa(topK)))
	return "docstream:retrieval:" + workspaceID.String() + ":" + hex.EncodeToString(sum[:])
}

// Get returns the cached response body for the query, or ok=false on a miss.
func (c *RetrievalCache) Get(ctx context.Context, workspaceID uuid.UUID, query string, topK int) ([]byte, bool, error) {
	resp := c.client.Do(ctx, c.client.B().Get().Key(cacheKey(workspaceID, query, topK)).Build())
	if err := resp.Error(); err != nil {
		if valkey.IsValkeyNil(err) {
			return nil, false, nil
		}
		return nil, false, fmt.Errorf("cache get: %w", err)
	}

	body, err := resp.AsBytes()
	if err != nil {
		return nil, false, fmt.Errorf("cache read: %w", err)
	}
	return body, true, nil
}

// Set stores the response body under the query key with the cache TTL.
func (c *RetrievalCache) Set(ctx context.Context, workspaceID uuid.UUID, query string, topK int, body []byte) error {
	resp := c.client.Do(ctx, c.client.B().Set().
		Key(cacheKey(workspaceID, query, topK)).
		Value(string(body)).
		Ex(c.ttl).
		Build())
	if err := resp.Error(); err != nil {
		return fmt.Errorf("cache set: %w", err)
	}
	return nil
}
