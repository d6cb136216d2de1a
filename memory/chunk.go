package memory

import (
	"fmt"
	"time"
)

// Chunk is one retrieval unit: a contiguous run of messages ending in
// a model response authored by the owner, optionally condensed by
// summarization.
//
// A chunk references its source messages by key, not by copy; message
// bodies are fetched from the Store at read time. When Summarized is
// set, MessageKeys still lists every prefix message, including ones
// whose text was not inlined in Content. That asymmetry is deliberate:
// the key list is audit provenance, not render data.
type Chunk struct {
	// ID is derived from the owner scope and the response timestamp,
	// making re-ingestion of the same exchange replace rather than
	// duplicate.
	ID string

	// OwnerID is the scope this chunk is stored and retrieved under.
	OwnerID string

	// ResponseAt is the timestamp of the terminal model response.
	ResponseAt time.Time

	// Content is the effective content the embedding is computed over:
	// the verbatim segment, or summary + recency tail + response.
	// It is not persisted; the persisted representation is Summary plus
	// the referenced message bodies.
	Content string

	// Summary is the abstractive summary, set only when Summarized.
	Summary string

	// Summarized reports whether the segment overflowed the token
	// budget and was condensed.
	Summarized bool

	// MessageKeys lists the constituent message keys in order.
	MessageKeys []string

	// Reasoning is diagnostic provenance from response generation.
	Reasoning string

	// Embedding is the chunk's vector, fixed dimension, computed once
	// at creation.
	Embedding []float32

	// CreatedAt is when the chunk row was created.
	CreatedAt time.Time
}

// ChunkID derives the storage identity for a chunk from its owner
// scope and terminal response timestamp.
func ChunkID(ownerID string, responseAt time.Time) string {
	return fmt.Sprintf("%s_%s", ownerID, responseAt.UTC().Format(time.RFC3339Nano))
}
