// Package chromem provides a volatile Store backend on chromem-go, an
// embedded pure-Go vector database with exact search. Nothing survives
// process exit; it suits tests and ephemeral deployments where the
// sqlite backend would be overkill.
package chromem

import (
	"context"
	"fmt"
	"log"
	"strings"
	"sync"

	chromem "github.com/philippgille/chromem-go"

	"github.com/becomeliminal/recall-go-sdk/core"
	"github.com/becomeliminal/recall-go-sdk/memory"
)

// Store keeps chunk vectors in per-owner chromem collections and
// message bodies in a plain map. Owner isolation falls out of the
// collection-per-owner layout: a query only ever touches one owner's
// collection.
type Store struct {
	db          *chromem.DB
	collections map[string]*chromem.Collection
	chunks      map[string]*memory.Chunk
	messages    map[string]string
	mu          sync.RWMutex
}

// New creates an empty in-memory store.
func New() (*Store, error) {
	return &Store{
		db:          chromem.NewDB(),
		collections: make(map[string]*chromem.Collection),
		chunks:      make(map[string]*memory.Chunk),
		messages:    make(map[string]string),
	}, nil
}

func (s *Store) collection(ownerID string) (*chromem.Collection, error) {
	s.mu.RLock()
	col, ok := s.collections[ownerID]
	s.mu.RUnlock()
	if ok {
		return col, nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if col, ok := s.collections[ownerID]; ok {
		return col, nil
	}

	name := fmt.Sprintf("owner_%s", ownerID)
	col, err := s.db.CreateCollection(name, nil, nil)
	if err != nil {
		return nil, fmt.Errorf("create collection: %w", err)
	}
	s.collections[ownerID] = col
	return col, nil
}

// PutMessages records message bodies under their unique keys.
// Re-inserting an existing key is a no-op.
func (s *Store) PutMessages(ctx context.Context, ownerID string, msgs []core.Message) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, msg := range msgs {
		key := msg.Key(ownerID)
		if _, exists := s.messages[key]; exists {
			continue
		}
		s.messages[key] = msg.Content
	}
	return nil
}

// GetMessages resolves bodies by key, omitting missing keys.
func (s *Store) GetMessages(ctx context.Context, keys []string) (map[string]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	bodies := make(map[string]string, len(keys))
	for _, key := range keys {
		if body, ok := s.messages[key]; ok {
			bodies[key] = body
		}
	}
	return bodies, nil
}

// PutChunks stores chunks with their embeddings, replacing existing
// ids wholesale.
func (s *Store) PutChunks(ctx context.Context, chunks []*memory.Chunk) error {
	for _, chunk := range chunks {
		col, err := s.collection(chunk.OwnerID)
		if err != nil {
			return err
		}

		doc := chromem.Document{
			ID:        chunk.ID,
			Content:   chunk.Content,
			Embedding: chunk.Embedding,
			Metadata: map[string]string{
				"owner_id": chunk.OwnerID,
			},
		}
		if err := col.AddDocument(ctx, doc); err != nil {
			return fmt.Errorf("add document: %w", err)
		}

		s.mu.Lock()
		s.chunks[chunk.ID] = chunk
		s.mu.Unlock()
	}
	return nil
}

// Query returns the owner's k nearest chunks to the query vector.
// chromem ranks by cosine similarity; the engine's embedders produce
// unit vectors, for which cosine ordering matches Euclidean ordering.
func (s *Store) Query(ctx context.Context, ownerID string, embedding []float32, k int) ([]*memory.Chunk, error) {
	col, err := s.collection(ownerID)
	if err != nil {
		return nil, err
	}

	// chromem requires nResults <= collection size; walk the limit
	// down until the query is accepted.
	var results []chromem.Result
	for limit := k; limit >= 1; limit-- {
		results, err = col.QueryEmbedding(ctx, embedding, limit, nil, nil)
		if err == nil {
			break
		}
		if isTooFewDocsError(err) {
			if limit == 1 {
				return nil, nil
			}
			continue
		}
		return nil, fmt.Errorf("chromem query: %w", err)
	}

	s.mu.RLock()
	defer s.mu.RUnlock()
	chunks := make([]*memory.Chunk, 0, len(results))
	for _, result := range results {
		chunk, ok := s.chunks[result.ID]
		if !ok {
			log.Printf("[CHROMEM] result %s has no chunk row, skipping", result.ID)
			continue
		}
		chunks = append(chunks, chunk)
	}
	return chunks, nil
}

// Close is a no-op; everything lives in memory.
func (s *Store) Close() error {
	return nil
}

func isTooFewDocsError(err error) bool {
	if err == nil {
		return false
	}
	msg := err.Error()
	return strings.Contains(msg, "nResults must be") || strings.Contains(msg, "number of documents")
}
