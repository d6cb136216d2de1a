package memory_test

import (
	"context"
	"errors"
	"testing"

	"github.com/becomeliminal/recall-go-sdk/core"
	"github.com/becomeliminal/recall-go-sdk/memory"
)

// fakeStore is an in-memory Store with exact nearest-neighbor search,
// for exercising the Retriever without a database.
type fakeStore struct {
	chunks []*memory.Chunk
	bodies map[string]string
}

func newFakeStore() *fakeStore {
	return &fakeStore{bodies: make(map[string]string)}
}

func (f *fakeStore) PutMessages(ctx context.Context, ownerID string, msgs []core.Message) error {
	for _, m := range msgs {
		key := m.Key(ownerID)
		if _, ok := f.bodies[key]; !ok {
			f.bodies[key] = m.Content
		}
	}
	return nil
}

func (f *fakeStore) GetMessages(ctx context.Context, keys []string) (map[string]string, error) {
	out := make(map[string]string)
	for _, k := range keys {
		if body, ok := f.bodies[k]; ok {
			out[k] = body
		}
	}
	return out, nil
}

func (f *fakeStore) PutChunks(ctx context.Context, chunks []*memory.Chunk) error {
	f.chunks = append(f.chunks, chunks...)
	return nil
}

func (f *fakeStore) Query(ctx context.Context, ownerID string, embedding []float32, k int) ([]*memory.Chunk, error) {
	var owned []*memory.Chunk
	var matrix [][]float32
	for _, c := range f.chunks {
		if c.OwnerID != ownerID {
			continue
		}
		owned = append(owned, c)
		matrix = append(matrix, c.Embedding)
	}
	var out []*memory.Chunk
	for _, idx := range memory.Nearest(matrix, embedding, k) {
		out = append(out, owned[idx])
	}
	return out, nil
}

func (f *fakeStore) Close() error { return nil }

// mapEmbedder returns preset vectors per text.
type mapEmbedder struct {
	vectors map[string][]float32
	dims    int
}

func (e *mapEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	if vec, ok := e.vectors[text]; ok {
		return vec, nil
	}
	return make([]float32, e.dims), nil
}

func (e *mapEmbedder) Dimensions() int { return e.dims }

func readyEmbedder(e memory.Embedder) *memory.LazyEmbedder {
	return memory.NewLazyEmbedder(func() (memory.Embedder, error) { return e, nil })
}

func brokenEmbedder() *memory.LazyEmbedder {
	return memory.NewLazyEmbedder(func() (memory.Embedder, error) {
		return nil, errors.New("model load failed")
	})
}

func TestRetriever_EmptyWhenEmbedderUnavailable(t *testing.T) {
	retriever := memory.NewRetriever(newFakeStore(), brokenEmbedder())

	blocks, err := retriever.Retrieve(context.Background(), "query", "bot1", 3)
	if err != nil {
		t.Fatalf("fail-closed retrieval must not error: %v", err)
	}
	if len(blocks) != 0 {
		t.Fatalf("expected empty result, got %v", blocks)
	}
}

func TestRetriever_EmptyWhenNoChunks(t *testing.T) {
	retriever := memory.NewRetriever(newFakeStore(), readyEmbedder(&mapEmbedder{dims: 2}))

	blocks, err := retriever.Retrieve(context.Background(), "query", "bot1", 3)
	if err != nil {
		t.Fatalf("retrieve: %v", err)
	}
	if len(blocks) != 0 {
		t.Fatalf("expected empty result, got %v", blocks)
	}
}

func TestRetriever_RankOrdering(t *testing.T) {
	store := newFakeStore()
	store.bodies["k-far"] = "far body"
	store.bodies["k-near"] = "near body"
	store.bodies["k-mid"] = "mid body"

	store.chunks = []*memory.Chunk{
		{ID: "far", OwnerID: "bot1", Embedding: []float32{0, 1}, MessageKeys: []string{"k-far"}},
		{ID: "near", OwnerID: "bot1", Embedding: []float32{1, 0}, MessageKeys: []string{"k-near"}},
		{ID: "mid", OwnerID: "bot1", Embedding: []float32{0.9, 0.1}, MessageKeys: []string{"k-mid"}},
	}

	embedder := &mapEmbedder{dims: 2, vectors: map[string][]float32{"query": {1, 0}}}
	retriever := memory.NewRetriever(store, readyEmbedder(embedder))

	blocks, err := retriever.Retrieve(context.Background(), "query", "bot1", 2)
	if err != nil {
		t.Fatalf("retrieve: %v", err)
	}
	if len(blocks) != 2 {
		t.Fatalf("expected 2 blocks, got %d", len(blocks))
	}
	if blocks[0] != "near body" || blocks[1] != "mid body" {
		t.Errorf("expected ascending distance order, got %v", blocks)
	}
}

func TestRetriever_OwnerIsolation(t *testing.T) {
	store := newFakeStore()
	store.bodies["ka"] = "a's secret"
	store.bodies["kb"] = "b's secret"
	store.chunks = []*memory.Chunk{
		{ID: "ca", OwnerID: "ownerA", Embedding: []float32{1, 0}, MessageKeys: []string{"ka"}},
		{ID: "cb", OwnerID: "ownerB", Embedding: []float32{1, 0}, MessageKeys: []string{"kb"}},
	}

	embedder := &mapEmbedder{dims: 2, vectors: map[string][]float32{"query": {1, 0}}}
	retriever := memory.NewRetriever(store, readyEmbedder(embedder))

	blocks, err := retriever.Retrieve(context.Background(), "query", "ownerA", 10)
	if err != nil {
		t.Fatalf("retrieve: %v", err)
	}
	for _, b := range blocks {
		if b == "b's secret" {
			t.Fatal("ownerA retrieval leaked ownerB's chunk")
		}
	}
	if len(blocks) != 1 || blocks[0] != "a's secret" {
		t.Errorf("expected only ownerA's chunk, got %v", blocks)
	}
}

func TestRetriever_SummarizedChunkPrependsSummary(t *testing.T) {
	store := newFakeStore()
	store.bodies["k1"] = "tail message"
	store.chunks = []*memory.Chunk{{
		ID:          "c1",
		OwnerID:     "bot1",
		Embedding:   []float32{1, 0},
		Summarized:  true,
		Summary:     "earlier they discussed cats",
		MessageKeys: []string{"k-gone", "k1"},
	}}

	embedder := &mapEmbedder{dims: 2, vectors: map[string][]float32{"cats": {1, 0}}}
	retriever := memory.NewRetriever(store, readyEmbedder(embedder))

	blocks, err := retriever.Retrieve(context.Background(), "cats", "bot1", 1)
	if err != nil {
		t.Fatalf("retrieve: %v", err)
	}
	if len(blocks) != 1 {
		t.Fatalf("expected 1 block, got %d", len(blocks))
	}
	// Missing key k-gone is skipped silently; the summary leads.
	want := "earlier they discussed cats\ntail message"
	if blocks[0] != want {
		t.Errorf("expected %q, got %q", want, blocks[0])
	}
}

func TestRetriever_ResolvedEmptyBodyInlined(t *testing.T) {
	store := newFakeStore()
	store.bodies["k-empty"] = ""
	store.bodies["k-text"] = "actual text"
	store.chunks = []*memory.Chunk{{
		ID:          "c1",
		OwnerID:     "bot1",
		Embedding:   []float32{1, 0},
		MessageKeys: []string{"k-empty", "k-text"},
	}}

	embedder := &mapEmbedder{dims: 2, vectors: map[string][]float32{"query": {1, 0}}}
	retriever := memory.NewRetriever(store, readyEmbedder(embedder))

	blocks, err := retriever.Retrieve(context.Background(), "query", "bot1", 1)
	if err != nil {
		t.Fatalf("retrieve: %v", err)
	}
	if len(blocks) != 1 {
		t.Fatalf("expected 1 block, got %d", len(blocks))
	}
	// Only keys that fail to resolve are skipped; a resolved empty body
	// keeps its line.
	want := "\nactual text"
	if blocks[0] != want {
		t.Errorf("expected %q, got %q", want, blocks[0])
	}
}
