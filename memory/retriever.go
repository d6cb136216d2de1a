package memory

import (
	"context"
	"fmt"
	"log"
	"strings"
)

// Retriever performs owner-scoped semantic search over stored chunks
// and reconstructs their display text for prompt injection.
//
// Each query is O(the owner's total chunk count): the store performs
// exact nearest-neighbor search over all of the owner's vectors. No
// incremental index is maintained, so there is no stale-index risk.
type Retriever struct {
	store    Store
	embedder *LazyEmbedder
}

// NewRetriever creates a Retriever over the given store and provider.
func NewRetriever(store Store, embedder *LazyEmbedder) *Retriever {
	return &Retriever{store: store, embedder: embedder}
}

// Retrieve returns up to k reconstructed chunk texts most relevant to
// the query, most similar first. It fails closed with an empty result
// when the embedding provider is unavailable; retrieval never blocks
// response generation with a hard error it can avoid.
func (r *Retriever) Retrieve(ctx context.Context, query, ownerID string, k int) ([]string, error) {
	if !r.embedder.Available() {
		log.Printf("[MEMORY] embedding provider unavailable, skipping retrieval")
		return nil, nil
	}

	vec, err := r.embedder.Embed(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("embed query: %w", err)
	}

	chunks, err := r.store.Query(ctx, ownerID, vec, k)
	if err != nil {
		return nil, fmt.Errorf("query store: %w", err)
	}
	if len(chunks) == 0 {
		return nil, nil
	}

	texts := make([]string, 0, len(chunks))
	for _, chunk := range chunks {
		texts = append(texts, r.reconstruct(ctx, chunk))
	}
	log.Printf("[MEMORY] retrieved %d chunks for owner %s", len(texts), ownerID)
	return texts, nil
}

// reconstruct rebuilds a chunk's display text: the summary when one
// was generated, followed by the constituent message bodies in stored
// order. Keys that no longer resolve are skipped; partial data loss
// degrades the text, it never fails the retrieval.
func (r *Retriever) reconstruct(ctx context.Context, chunk *Chunk) string {
	var parts []string
	if chunk.Summarized && chunk.Summary != "" {
		parts = append(parts, chunk.Summary)
	}

	bodies, err := r.store.GetMessages(ctx, chunk.MessageKeys)
	if err != nil {
		log.Printf("[MEMORY] resolving message keys for chunk %s: %v", chunk.ID, err)
		bodies = nil
	}
	for _, key := range chunk.MessageKeys {
		if body, ok := bodies[key]; ok {
			parts = append(parts, body)
		}
	}
	return strings.Join(parts, "\n")
}
