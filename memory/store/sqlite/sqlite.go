// Package sqlite provides the durable Store backend: two tables, one
// for raw messages and one for chunks, related only through the
// chunk's serialized message-key list.
package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"log"
	"strings"
	"time"

	_ "github.com/mattn/go-sqlite3" // SQLite driver

	"github.com/becomeliminal/recall-go-sdk/core"
	"github.com/becomeliminal/recall-go-sdk/memory"
)

// Store persists messages and chunks in a local SQLite database.
// Writes are idempotent: messages insert-or-ignore on their unique
// key, chunks insert-or-replace on their id. Chunk reads are scoped
// `WHERE owner_id = ?`; that is the sole isolation mechanism and there
// is no cross-owner query path.
type Store struct {
	db *sql.DB
}

// New opens (creating if needed) the database at path.
func New(path string) (*Store, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("ping database: %w", err)
	}

	s := &Store{db: db}
	if err := s.initSchema(); err != nil {
		return nil, fmt.Errorf("initialize schema: %w", err)
	}
	return s, nil
}

func (s *Store) initSchema() error {
	schema := `
    CREATE TABLE IF NOT EXISTS messages (
        unique_key TEXT PRIMARY KEY,
        message_id TEXT NOT NULL,
        author_id TEXT NOT NULL,
        timestamp TEXT NOT NULL,
        content TEXT NOT NULL,
        owner_id TEXT NOT NULL,
        edited_from_id TEXT
    );

    CREATE TABLE IF NOT EXISTS chunks (
        chunk_id TEXT PRIMARY KEY,
        owner_id TEXT NOT NULL,
        model_response_timestamp TEXT NOT NULL,
        embedding_summary TEXT,
        embedding_vector BLOB,
        message_keys TEXT NOT NULL,
        summary_generated INTEGER NOT NULL,
        reasoning_text TEXT,
        created_at TEXT NOT NULL
    );
    `
	_, err := s.db.Exec(schema)
	return err
}

// Close releases the database handle.
func (s *Store) Close() error {
	return s.db.Close()
}

// PutMessages persists dialogue turns under an owner scope. Existing
// (owner, message id, timestamp) keys are left untouched.
func (s *Store) PutMessages(ctx context.Context, ownerID string, msgs []core.Message) error {
	if len(msgs) == 0 {
		return nil
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, `
        INSERT OR IGNORE INTO messages (
            unique_key, message_id, author_id, timestamp, content, owner_id, edited_from_id
        ) VALUES (?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("prepare message insert: %w", err)
	}
	defer stmt.Close()

	for _, msg := range msgs {
		_, err := stmt.ExecContext(ctx,
			msg.Key(ownerID),
			msg.MessageID,
			msg.AuthorID,
			msg.Timestamp.UTC().Format(time.RFC3339Nano),
			msg.Content,
			ownerID,
			nullable(msg.EditedFrom),
		)
		if err != nil {
			return fmt.Errorf("insert message %s: %w", msg.MessageID, err)
		}
	}
	return tx.Commit()
}

// GetMessages resolves message bodies by unique key. Missing keys are
// absent from the result.
func (s *Store) GetMessages(ctx context.Context, keys []string) (map[string]string, error) {
	bodies := make(map[string]string, len(keys))
	if len(keys) == 0 {
		return bodies, nil
	}

	placeholders := strings.Repeat("?,", len(keys))
	placeholders = placeholders[:len(placeholders)-1]
	args := make([]interface{}, len(keys))
	for i, k := range keys {
		args[i] = k
	}

	rows, err := s.db.QueryContext(ctx,
		fmt.Sprintf("SELECT unique_key, content FROM messages WHERE unique_key IN (%s)", placeholders),
		args...)
	if err != nil {
		return nil, fmt.Errorf("query messages: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var key, content string
		if err := rows.Scan(&key, &content); err != nil {
			return nil, fmt.Errorf("scan message row: %w", err)
		}
		bodies[key] = content
	}
	return bodies, rows.Err()
}

// PutChunks persists chunks, replacing any existing row with the same
// chunk id wholesale.
func (s *Store) PutChunks(ctx context.Context, chunks []*memory.Chunk) error {
	if len(chunks) == 0 {
		return nil
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, `
        INSERT OR REPLACE INTO chunks (
            chunk_id, owner_id, model_response_timestamp,
            embedding_summary, embedding_vector, message_keys,
            summary_generated, reasoning_text, created_at
        ) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("prepare chunk insert: %w", err)
	}
	defer stmt.Close()

	for _, chunk := range chunks {
		keysJSON, err := json.Marshal(chunk.MessageKeys)
		if err != nil {
			return fmt.Errorf("marshal message keys for chunk %s: %w", chunk.ID, err)
		}
		_, err = stmt.ExecContext(ctx,
			chunk.ID,
			chunk.OwnerID,
			chunk.ResponseAt.UTC().Format(time.RFC3339Nano),
			chunk.Summary,
			memory.EncodeVector(chunk.Embedding),
			string(keysJSON),
			boolToInt(chunk.Summarized),
			chunk.Reasoning,
			chunk.CreatedAt.UTC().Format(time.RFC3339Nano),
		)
		if err != nil {
			return fmt.Errorf("insert chunk %s: %w", chunk.ID, err)
		}
	}
	return tx.Commit()
}

// Query loads every chunk row for the owner, decodes the vectors into
// a matrix, and performs exact nearest-neighbor selection against the
// query embedding. Rows whose stored vector does not match the query
// dimension are skipped with a log.
func (s *Store) Query(ctx context.Context, ownerID string, embedding []float32, k int) ([]*memory.Chunk, error) {
	rows, err := s.db.QueryContext(ctx, `
        SELECT chunk_id, owner_id, model_response_timestamp,
               embedding_summary, embedding_vector, message_keys,
               summary_generated, reasoning_text, created_at
        FROM chunks WHERE owner_id = ?`, ownerID)
	if err != nil {
		return nil, fmt.Errorf("query chunks: %w", err)
	}
	defer rows.Close()

	var chunks []*memory.Chunk
	var matrix [][]float32
	for rows.Next() {
		chunk, vec, err := scanChunk(rows)
		if err != nil {
			return nil, err
		}
		if len(vec) != len(embedding) {
			log.Printf("[SQLITE] chunk %s vector dimension %d != query %d, skipping",
				chunk.ID, len(vec), len(embedding))
			continue
		}
		chunk.Embedding = vec
		chunks = append(chunks, chunk)
		matrix = append(matrix, vec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate chunk rows: %w", err)
	}
	if len(chunks) == 0 {
		return nil, nil
	}

	selected := memory.Nearest(matrix, embedding, k)
	result := make([]*memory.Chunk, 0, len(selected))
	for _, idx := range selected {
		result = append(result, chunks[idx])
	}
	return result, nil
}

func scanChunk(rows *sql.Rows) (*memory.Chunk, []float32, error) {
	var (
		chunk      memory.Chunk
		responseAt string
		summary    sql.NullString
		vector     []byte
		keysJSON   string
		summarized int
		reasoning  sql.NullString
		createdAt  string
	)
	err := rows.Scan(&chunk.ID, &chunk.OwnerID, &responseAt,
		&summary, &vector, &keysJSON, &summarized, &reasoning, &createdAt)
	if err != nil {
		return nil, nil, fmt.Errorf("scan chunk row: %w", err)
	}

	chunk.Summary = summary.String
	chunk.Summarized = summarized != 0
	chunk.Reasoning = reasoning.String
	chunk.ResponseAt, _ = time.Parse(time.RFC3339Nano, responseAt)
	chunk.CreatedAt, _ = time.Parse(time.RFC3339Nano, createdAt)

	if err := json.Unmarshal([]byte(keysJSON), &chunk.MessageKeys); err != nil {
		log.Printf("[SQLITE] malformed message keys for chunk %s: %v", chunk.ID, err)
		chunk.MessageKeys = nil
	}
	return &chunk, memory.DecodeVector(vector), nil
}

func nullable(s string) interface{} {
	if s == "" {
		return nil
	}
	return s
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
