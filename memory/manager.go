package memory

import (
	"context"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/becomeliminal/recall-go-sdk/core"
)

// ingestTimeout bounds one background ingest job, embedding included.
const ingestTimeout = 2 * time.Minute

// Config holds Manager configuration. The core reads nothing from
// global state; everything arrives through here or as call parameters.
type Config struct {
	// TokenBudget is the maximum token length for a chunk's effective
	// content before summarization is triggered. Default: 1000.
	TokenBudget int

	// RetrievalK is the default result count for RetrieveContext when
	// the caller passes k <= 0. Default: 3.
	RetrievalK int

	// QueueSize is the async ingest backlog. Jobs beyond it are
	// dropped with a log rather than blocking the caller. Default: 16.
	QueueSize int
}

// DefaultConfig returns sensible defaults.
var DefaultConfig = &Config{
	TokenBudget: 1000,
	RetrievalK:  3,
	QueueSize:   16,
}

// IngestInput describes one completed exchange to remember.
type IngestInput struct {
	// OwnerID is the scope messages and chunks are stored under.
	OwnerID string

	// History is the observed conversation, oldest first. It does not
	// include the response being ingested.
	History []core.Message

	// TriggerID is the platform id of the message that prompted the
	// response; the synthesized response message derives its id from it.
	TriggerID string

	// Response is the text that was delivered to the user.
	Response string

	// Reasoning is diagnostic provenance from response generation,
	// stored on every chunk this ingest produces.
	Reasoning string

	// ResponseAt timestamps the synthesized response message. When
	// zero it defaults to the last history message's timestamp, which
	// keeps re-ingestion of the same exchange idempotent.
	ResponseAt time.Time
}

// Manager composes Chunker, Store, and Retriever into the two memory
// pipelines: ingest-and-store after a response is produced, and
// query-and-retrieve before one.
type Manager struct {
	store     Store
	embedder  *LazyEmbedder
	chunker   *Chunker
	retriever *Retriever
	config    *Config

	jobs      chan ingestJob
	mu        sync.Mutex
	closed    bool
	wg        sync.WaitGroup
	closeOnce sync.Once
}

type ingestJob struct {
	id    string
	input *IngestInput
}

// NewManager wires the pipelines together and starts the background
// ingest worker. Call Close to drain it.
func NewManager(store Store, embedder *LazyEmbedder, summarizer Summarizer, counter TokenCounter, config *Config) *Manager {
	if config == nil {
		config = DefaultConfig
	}
	cfg := *config
	if cfg.TokenBudget <= 0 {
		cfg.TokenBudget = DefaultConfig.TokenBudget
	}
	if cfg.RetrievalK <= 0 {
		cfg.RetrievalK = DefaultConfig.RetrievalK
	}
	if cfg.QueueSize <= 0 {
		cfg.QueueSize = DefaultConfig.QueueSize
	}

	m := &Manager{
		store:     store,
		embedder:  embedder,
		chunker:   NewChunker(counter, summarizer, cfg.TokenBudget),
		retriever: NewRetriever(store, embedder),
		config:    &cfg,
		jobs:      make(chan ingestJob, cfg.QueueSize),
	}
	m.wg.Add(1)
	go m.drain()
	return m
}

// Ingest appends the synthesized response message to history, chunks
// the full sequence, and persists messages and chunks. It returns the
// number of chunks stored.
//
// Message persistence and chunk persistence are independent: messages
// are stored even when every segment was dropped, and chunk storage
// proceeds even when message storage failed. Chunk storage is skipped
// wholesale, with a log, when the embedding provider is unavailable.
func (m *Manager) Ingest(ctx context.Context, input *IngestInput) (int, error) {
	response := core.Message{
		Role:      core.RoleModel,
		Content:   input.Response,
		AuthorID:  input.OwnerID,
		MessageID: input.TriggerID + "_bot_response",
		Timestamp: m.responseTimestamp(input),
	}
	full := make([]core.Message, 0, len(input.History)+1)
	full = append(full, input.History...)
	full = append(full, response)

	chunks := m.chunker.Chunk(ctx, input.OwnerID, full)

	var msgErr error
	if err := m.store.PutMessages(ctx, input.OwnerID, full); err != nil {
		msgErr = fmt.Errorf("store messages: %w", err)
	}

	stored, chunkErr := m.storeChunks(ctx, chunks, input.Reasoning)
	if msgErr != nil {
		return stored, msgErr
	}
	return stored, chunkErr
}

func (m *Manager) storeChunks(ctx context.Context, chunks []*Chunk, reasoning string) (int, error) {
	if len(chunks) == 0 {
		return 0, nil
	}
	if !m.embedder.Available() {
		log.Printf("[MEMORY] embedding provider unavailable, skipping %d chunks", len(chunks))
		return 0, nil
	}

	ready := make([]*Chunk, 0, len(chunks))
	for _, chunk := range chunks {
		vec, err := m.embedder.Embed(ctx, chunk.Content)
		if err != nil {
			log.Printf("[MEMORY] embedding chunk %s failed: %v", chunk.ID, err)
			continue
		}
		chunk.Embedding = vec
		chunk.Reasoning = reasoning
		ready = append(ready, chunk)
	}
	if len(ready) == 0 {
		return 0, nil
	}

	if err := m.store.PutChunks(ctx, ready); err != nil {
		return 0, fmt.Errorf("store chunks: %w", err)
	}
	return len(ready), nil
}

// responseTimestamp keeps the synthesized response deterministic for a
// given exchange so the derived chunk id is a stable idempotency key.
func (m *Manager) responseTimestamp(input *IngestInput) time.Time {
	if !input.ResponseAt.IsZero() {
		return input.ResponseAt.UTC()
	}
	if n := len(input.History); n > 0 {
		return input.History[n-1].Timestamp.UTC()
	}
	return time.Now().UTC()
}

// IngestAsync queues an ingest on the manager's worker goroutine so
// storage latency never blocks the reply path. The returned job id
// appears in the worker's logs. A full queue or an already-closed
// manager drops the job with a log; ingest failures never surface
// synchronously.
func (m *Manager) IngestAsync(input *IngestInput) string {
	job := ingestJob{id: uuid.New().String(), input: input}
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		log.Printf("[MEMORY] manager closed, dropping job %s", job.id)
		return job.id
	}
	select {
	case m.jobs <- job:
	default:
		log.Printf("[MEMORY] ingest queue full, dropping job %s", job.id)
	}
	return job.id
}

func (m *Manager) drain() {
	defer m.wg.Done()
	for job := range m.jobs {
		ctx, cancel := context.WithTimeout(context.Background(), ingestTimeout)
		stored, err := m.Ingest(ctx, job.input)
		cancel()
		if err != nil {
			log.Printf("[MEMORY] ingest job %s failed: %v", job.id, err)
			continue
		}
		log.Printf("[MEMORY] ingest job %s stored %d chunks", job.id, stored)
	}
}

// RetrieveContext returns ranked context blocks for prompt assembly.
// Callers prepend these as synthetic system-role context ahead of real
// history. k <= 0 uses the configured default.
func (m *Manager) RetrieveContext(ctx context.Context, query, ownerID string, k int) ([]string, error) {
	if k <= 0 {
		k = m.config.RetrievalK
	}
	return m.retriever.Retrieve(ctx, query, ownerID, k)
}

// Close drains pending ingest jobs and stops the worker.
func (m *Manager) Close() {
	m.closeOnce.Do(func() {
		m.mu.Lock()
		m.closed = true
		m.mu.Unlock()
		close(m.jobs)
	})
	m.wg.Wait()
}
