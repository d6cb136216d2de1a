package memory

import (
	"context"
	"log"
	"strings"
	"time"

	"github.com/becomeliminal/recall-go-sdk/core"
)

// Chunker segments an ordered conversation history into chunks bounded
// by a token budget. The only legal chunk boundary is a model-role
// message authored by the owner; mid-segment boundaries never occur.
//
// A segment that fits the budget becomes a verbatim chunk. An
// over-budget segment is condensed through the Summarizer; if the
// summarizer declines, the whole segment is dropped and processing
// continues. Trailing messages that never reach a closing response are
// left for the next invocation.
type Chunker struct {
	counter    TokenCounter
	summarizer Summarizer
	budget     int
}

// NewChunker creates a Chunker with the given token budget B.
func NewChunker(counter TokenCounter, summarizer Summarizer, budget int) *Chunker {
	return &Chunker{
		counter:    counter,
		summarizer: summarizer,
		budget:     budget,
	}
}

// Chunk walks history oldest to newest and returns the produced chunks
// in order. Embeddings are not set here; the caller embeds each
// chunk's Content before storage.
func (c *Chunker) Chunk(ctx context.Context, ownerID string, history []core.Message) []*Chunk {
	var chunks []*Chunk
	var segment []core.Message

	for _, msg := range history {
		segment = append(segment, msg)
		if msg.Role != core.RoleModel || msg.AuthorID != ownerID {
			continue
		}

		response := segment[len(segment)-1]
		prefix := segment[:len(segment)-1]
		segment = nil

		chunk, ok := c.buildChunk(ctx, ownerID, prefix, response)
		if !ok {
			continue
		}
		chunks = append(chunks, chunk)
	}

	if len(segment) > 0 {
		log.Printf("[CHUNKER] %d trailing messages await a closing response", len(segment))
	}
	return chunks
}

// buildChunk assembles one chunk from a closed segment. It returns
// ok=false when the segment is over budget and summarization declined,
// in which case the segment is dropped entirely.
func (c *Chunker) buildChunk(ctx context.Context, ownerID string, prefix []core.Message, response core.Message) (*Chunk, bool) {
	chunk := &Chunk{
		ID:         ChunkID(ownerID, response.Timestamp),
		OwnerID:    ownerID,
		ResponseAt: response.Timestamp,
		CreatedAt:  time.Now().UTC(),
	}

	parts := make([]string, 0, len(prefix)+1)
	for _, m := range prefix {
		parts = append(parts, m.Content)
	}
	parts = append(parts, response.Content)
	full := strings.Join(parts, "\n")

	total := c.counter.Count(full)
	if total <= c.budget {
		chunk.Content = full
		for _, m := range prefix {
			chunk.MessageKeys = append(chunk.MessageKeys, m.Key(ownerID))
		}
		chunk.MessageKeys = append(chunk.MessageKeys, response.Key(ownerID))
		return chunk, true
	}

	log.Printf("[CHUNKER] segment ending at %s is %d tokens (budget %d), summarizing",
		response.MessageID, total, c.budget)

	summary := c.summarize(ctx, prefix)
	if summary == "" {
		log.Printf("[CHUNKER] summarization produced no result, dropping segment ending at %s", response.MessageID)
		return nil, false
	}

	// Re-include the newest verbatim messages that still fit alongside
	// the summary and the terminal response.
	remaining := c.budget - c.counter.Count(summary) - c.counter.Count(response.Content)
	var tail []core.Message
	for i := len(prefix) - 1; i >= 0; i-- {
		cost := c.counter.Count(prefix[i].Content)
		if remaining-cost < 0 {
			break
		}
		tail = append([]core.Message{prefix[i]}, tail...)
		remaining -= cost
	}

	content := make([]string, 0, len(tail)+2)
	content = append(content, summary)
	for _, m := range tail {
		content = append(content, m.Content)
	}
	content = append(content, response.Content)

	chunk.Content = strings.Join(content, "\n")
	chunk.Summary = summary
	chunk.Summarized = true

	// Every prefix key is recorded, not just the inlined tail. The key
	// list is audit provenance for the whole segment.
	for _, m := range prefix {
		chunk.MessageKeys = append(chunk.MessageKeys, m.Key(ownerID))
	}
	chunk.MessageKeys = append(chunk.MessageKeys, response.Key(ownerID))
	return chunk, true
}

func (c *Chunker) summarize(ctx context.Context, prefix []core.Message) string {
	if c.summarizer == nil {
		return ""
	}
	parts := make([]string, 0, len(prefix))
	for _, m := range prefix {
		parts = append(parts, m.Content)
	}
	summary, err := c.summarizer.Summarize(ctx, strings.Join(parts, "\n"))
	if err != nil {
		log.Printf("[CHUNKER] summarizer error: %v", err)
		return ""
	}
	return strings.TrimSpace(summary)
}
