package memory

import (
	"log"
	"strings"
	"sync"
)

// WordCounter estimates token length as the whitespace-delimited word
// count. It is the fallback when no subword tokenizer is available and
// typically undercounts relative to subword tokenization; callers
// needing a hard token guarantee must tolerate slack in the budget.
type WordCounter struct{}

// Count returns the number of whitespace-delimited words in text.
func (WordCounter) Count(text string) int {
	return len(strings.Fields(text))
}

// LazyCounter provides token counting with at-most-once initialization
// of a primary subword counter. If the loader fails, the counter logs a
// warning and degrades permanently to word counting for the process
// lifetime. Chunking is never blocked on tokenizer availability.
//
// Concurrent first callers are serialized through sync.Once, so the
// loader runs exactly once no matter how many goroutines race to it.
type LazyCounter struct {
	load func() (TokenCounter, error)

	once    sync.Once
	counter TokenCounter
}

// NewLazyCounter returns a counter backed by the given loader. A nil
// loader yields the word-count fallback immediately.
func NewLazyCounter(load func() (TokenCounter, error)) *LazyCounter {
	return &LazyCounter{load: load}
}

// Count measures the token length of text.
func (c *LazyCounter) Count(text string) int {
	c.once.Do(func() {
		if c.load == nil {
			c.counter = WordCounter{}
			return
		}
		counter, err := c.load()
		if err != nil {
			log.Printf("[TOKENS] tokenizer unavailable, falling back to word count: %v", err)
			c.counter = WordCounter{}
			return
		}
		c.counter = counter
	})
	return c.counter.Count(text)
}
