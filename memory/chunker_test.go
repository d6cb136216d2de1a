package memory_test

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/becomeliminal/recall-go-sdk/core"
	"github.com/becomeliminal/recall-go-sdk/memory"
)

const owner = "bot1"

var baseTime = time.Date(2025, 3, 1, 10, 0, 0, 0, time.UTC)

func msg(role core.Role, author, id, content string, offset time.Duration) core.Message {
	return core.Message{
		Role:      role,
		AuthorID:  author,
		MessageID: id,
		Content:   content,
		Timestamp: baseTime.Add(offset),
	}
}

type stubSummarizer struct {
	summary string
	err     error
	calls   int
}

func (s *stubSummarizer) Summarize(ctx context.Context, text string) (string, error) {
	s.calls++
	return s.summary, s.err
}

func TestChunker_VerbatimWithinBudget(t *testing.T) {
	chunker := memory.NewChunker(memory.WordCounter{}, &stubSummarizer{}, 1000)

	history := []core.Message{
		msg(core.RoleUser, "alice", "1", "I like cats", 0),
		msg(core.RoleModel, owner, "2", "Noted!", time.Minute),
	}

	chunks := chunker.Chunk(context.Background(), owner, history)
	if len(chunks) != 1 {
		t.Fatalf("expected 1 chunk, got %d", len(chunks))
	}

	chunk := chunks[0]
	if chunk.Summarized {
		t.Error("chunk within budget must not be summarized")
	}
	if chunk.Content != "I like cats\nNoted!" {
		t.Errorf("unexpected content: %q", chunk.Content)
	}
	if len(chunk.MessageKeys) != 2 {
		t.Errorf("expected 2 message keys, got %d", len(chunk.MessageKeys))
	}
	wantID := memory.ChunkID(owner, history[1].Timestamp)
	if chunk.ID != wantID {
		t.Errorf("expected chunk id %q, got %q", wantID, chunk.ID)
	}
}

func TestChunker_OnlyOwnerResponseClosesSegment(t *testing.T) {
	chunker := memory.NewChunker(memory.WordCounter{}, &stubSummarizer{}, 1000)

	history := []core.Message{
		msg(core.RoleUser, "alice", "1", "hello", 0),
		// A model-role message from some other bot is not a boundary.
		msg(core.RoleModel, "otherbot", "2", "hi alice", time.Minute),
		msg(core.RoleUser, "alice", "3", "anyone there?", 2*time.Minute),
	}

	if chunks := chunker.Chunk(context.Background(), owner, history); len(chunks) != 0 {
		t.Fatalf("expected no chunks without an owner response, got %d", len(chunks))
	}
}

func TestChunker_MultipleSegments(t *testing.T) {
	chunker := memory.NewChunker(memory.WordCounter{}, &stubSummarizer{}, 1000)

	history := []core.Message{
		msg(core.RoleUser, "alice", "1", "first question", 0),
		msg(core.RoleModel, owner, "2", "first answer", time.Minute),
		msg(core.RoleUser, "alice", "3", "second question", 2*time.Minute),
		msg(core.RoleModel, owner, "4", "second answer", 3*time.Minute),
	}

	chunks := chunker.Chunk(context.Background(), owner, history)
	if len(chunks) != 2 {
		t.Fatalf("expected 2 chunks, got %d", len(chunks))
	}
	if chunks[0].Content != "first question\nfirst answer" {
		t.Errorf("unexpected first chunk content: %q", chunks[0].Content)
	}
	if chunks[1].Content != "second question\nsecond answer" {
		t.Errorf("unexpected second chunk content: %q", chunks[1].Content)
	}
}

func TestChunker_OverflowSummarizes(t *testing.T) {
	summarizer := &stubSummarizer{summary: "they chatted"}
	budget := 5
	chunker := memory.NewChunker(memory.WordCounter{}, summarizer, budget)

	history := []core.Message{
		msg(core.RoleUser, "alice", "1", "one two three", 0),
		msg(core.RoleUser, "bob", "2", "four five", time.Minute),
		msg(core.RoleUser, "alice", "3", "six", 2*time.Minute),
		msg(core.RoleModel, owner, "4", "ok", 3*time.Minute),
	}

	chunks := chunker.Chunk(context.Background(), owner, history)
	if len(chunks) != 1 {
		t.Fatalf("expected 1 chunk, got %d", len(chunks))
	}

	chunk := chunks[0]
	if !chunk.Summarized {
		t.Fatal("over-budget chunk must be summarized")
	}
	if chunk.Summary != "they chatted" {
		t.Errorf("unexpected summary: %q", chunk.Summary)
	}
	if summarizer.calls != 1 {
		t.Errorf("summarizer called %d times, want 1", summarizer.calls)
	}

	// Summary (2) + response (1) leave room for 2 more tokens: only the
	// newest prefix message fits.
	if chunk.Content != "they chatted\nsix\nok" {
		t.Errorf("unexpected effective content: %q", chunk.Content)
	}
	counter := memory.WordCounter{}
	if got := counter.Count(chunk.Content); got > budget {
		t.Errorf("effective content is %d tokens, exceeds budget %d", got, budget)
	}
}

func TestChunker_SummarizedChunkRecordsAllPrefixKeys(t *testing.T) {
	chunker := memory.NewChunker(memory.WordCounter{}, &stubSummarizer{summary: "they chatted"}, 5)

	uninlined := msg(core.RoleUser, "alice", "1", "one two three", 0)
	history := []core.Message{
		uninlined,
		msg(core.RoleUser, "bob", "2", "four five", time.Minute),
		msg(core.RoleUser, "alice", "3", "six", 2*time.Minute),
		msg(core.RoleModel, owner, "4", "ok", 3*time.Minute),
	}

	chunks := chunker.Chunk(context.Background(), owner, history)
	if len(chunks) != 1 {
		t.Fatalf("expected 1 chunk, got %d", len(chunks))
	}

	chunk := chunks[0]
	// The key list is audit provenance for the whole segment, so it
	// covers prefix messages whose text was not inlined.
	if len(chunk.MessageKeys) != 4 {
		t.Fatalf("expected all 4 keys recorded, got %d", len(chunk.MessageKeys))
	}
	if chunk.MessageKeys[0] != uninlined.Key(owner) {
		t.Errorf("first key should be the oldest prefix message, got %q", chunk.MessageKeys[0])
	}
	if strings.Contains(chunk.Content, uninlined.Content) {
		t.Error("oldest message should not be inlined in the effective content")
	}
}

func TestChunker_DropsSegmentWhenSummarizerDeclines(t *testing.T) {
	chunker := memory.NewChunker(memory.WordCounter{}, &stubSummarizer{summary: ""}, 3)

	history := []core.Message{
		msg(core.RoleUser, "alice", "1", "a very long message indeed", 0),
		msg(core.RoleModel, owner, "2", "ok", time.Minute),
		// Second segment fits the budget and must survive the drop.
		msg(core.RoleUser, "alice", "3", "short", 2*time.Minute),
		msg(core.RoleModel, owner, "4", "yes", 3*time.Minute),
	}

	chunks := chunker.Chunk(context.Background(), owner, history)
	if len(chunks) != 1 {
		t.Fatalf("expected only the second segment's chunk, got %d", len(chunks))
	}
	if chunks[0].Content != "short\nyes" {
		t.Errorf("unexpected surviving chunk content: %q", chunks[0].Content)
	}
}

func TestChunker_DropsSegmentOnSummarizerError(t *testing.T) {
	chunker := memory.NewChunker(memory.WordCounter{}, &stubSummarizer{err: errors.New("api down")}, 3)

	history := []core.Message{
		msg(core.RoleUser, "alice", "1", "a very long message indeed", 0),
		msg(core.RoleModel, owner, "2", "ok", time.Minute),
	}

	if chunks := chunker.Chunk(context.Background(), owner, history); len(chunks) != 0 {
		t.Fatalf("expected no chunks after summarizer error, got %d", len(chunks))
	}
}

func TestChunker_NilSummarizerDropsOverflow(t *testing.T) {
	chunker := memory.NewChunker(memory.WordCounter{}, nil, 2)

	history := []core.Message{
		msg(core.RoleUser, "alice", "1", "too many words here", 0),
		msg(core.RoleModel, owner, "2", "ok", time.Minute),
	}

	if chunks := chunker.Chunk(context.Background(), owner, history); len(chunks) != 0 {
		t.Fatalf("expected no chunks without a summarizer, got %d", len(chunks))
	}
}

func TestChunker_TrailingMessagesDeferred(t *testing.T) {
	chunker := memory.NewChunker(memory.WordCounter{}, &stubSummarizer{}, 1000)

	history := []core.Message{
		msg(core.RoleUser, "alice", "1", "question", 0),
		msg(core.RoleModel, owner, "2", "answer", time.Minute),
		msg(core.RoleUser, "alice", "3", "follow up with no reply yet", 2*time.Minute),
	}

	chunks := chunker.Chunk(context.Background(), owner, history)
	if len(chunks) != 1 {
		t.Fatalf("expected 1 chunk, got %d", len(chunks))
	}

	// A later invocation that includes the closing response picks the
	// deferred message up into the next segment.
	closed := append(history, msg(core.RoleModel, owner, "4", "late reply", 3*time.Minute))
	chunks = chunker.Chunk(context.Background(), owner, closed)
	if len(chunks) != 2 {
		t.Fatalf("expected 2 chunks once the segment closes, got %d", len(chunks))
	}
	if chunks[1].Content != "follow up with no reply yet\nlate reply" {
		t.Errorf("unexpected second chunk content: %q", chunks[1].Content)
	}
}
