package memory

import (
	"context"

	"github.com/becomeliminal/recall-go-sdk/core"
)

// Embedder converts text to vector embeddings.
// Implementations: MockEmbedder (testing), ONNXEmbedder (local SDK),
// plus API-backed embedders in production deployments.
//
// The embedding dimension is fixed per instance; all vectors produced
// by one Embedder are comparable with each other.
type Embedder interface {
	// Embed converts a single text to an embedding vector.
	Embed(ctx context.Context, text string) ([]float32, error)

	// Dimensions returns the embedding vector size.
	Dimensions() int
}

// TokenCounter measures the token length of text.
// The primary implementation uses the embedding model's subword
// tokenizer; LazyCounter degrades to word counting when that tokenizer
// cannot be loaded.
type TokenCounter interface {
	Count(text string) int
}

// Summarizer condenses a conversation prefix into a short factual
// summary. It is an external text-completion collaborator.
//
// An empty string with a nil error means the summarizer declined to
// produce a result. Absence is a first-class outcome, not a failure:
// the Chunker responds by dropping the segment, never by retrying or
// escalating.
type Summarizer interface {
	Summarize(ctx context.Context, text string) (string, error)
}

// Store is the persistence backend for messages and chunks.
// Implementations: sqlite (durable), chromem (volatile).
//
// All chunk reads are scoped by owner. There is deliberately no
// cross-owner query path at this interface; owner scoping is the sole
// isolation mechanism.
type Store interface {
	// PutMessages persists dialogue turns under an owner scope.
	// Re-inserting an existing (owner, message id, timestamp) key is a
	// no-op, never a duplicate and never an error.
	PutMessages(ctx context.Context, ownerID string, msgs []core.Message) error

	// GetMessages resolves message bodies by unique key. Keys that do
	// not resolve are simply absent from the result.
	GetMessages(ctx context.Context, keys []string) (map[string]string, error)

	// PutChunks persists chunks with their embeddings set. A chunk id
	// that already exists is replaced wholesale, not patched.
	PutChunks(ctx context.Context, chunks []*Chunk) error

	// Query returns the owner's k nearest chunks to the query vector,
	// most similar first. Search is exact; ties keep row order.
	Query(ctx context.Context, ownerID string, embedding []float32, k int) ([]*Chunk, error)

	// Close releases resources.
	Close() error
}
