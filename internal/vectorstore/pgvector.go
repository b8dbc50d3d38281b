package vectorstore

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"regexp"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/pgvector/pgvector-go"
)

// PgVectorIndex implements Index on Postgres with the pgvector extension.
// Each collection maps to its own table; CREATE TABLE IF NOT EXISTS gives
// the create-if-absent semantics the interface relies on, and cosine
// similarity comes from the <=> operator.
type PgVectorIndex struct {
	db  *pgxpool.Pool
	dim int
}

func NewPgVectorIndex(db *pgxpool.Pool, dimension int) *PgVectorIndex {
	return &PgVectorIndex{db: db, dim: dimension}
}

var collectionNameRe = regexp.MustCompile(`^[a-zA-Z_][a-zA-Z0-9_]*$`)

func (s *PgVectorIndex) tableName(collection string) (string, error) {
	if !collectionNameRe.MatchString(collection) {
		return "", fmt.Errorf("invalid collection name %q", collection)
	}
	return "rag_" + collection, nil
}

func (s *PgVectorIndex) Ping(ctx context.Context) error {
	return s.db.Ping(ctx)
}

func (s *PgVectorIndex) EnsureCollection(ctx context.Context, name string) (bool, error) {
	table, err := s.tableName(name)
	if err != nil {
		return false, err
	}

	exists, err := s.tableExists(ctx, table)
	if err != nil {
		return false, err
	}
	if exists {
		return false, nil
	}

	_, err = s.db.Exec(ctx, fmt.Sprintf(
		`CREATE TABLE IF NOT EXISTS %s (
			id uuid PRIMARY KEY,
			original_id text NOT NULL,
			content text NOT NULL,
			metadata jsonb,
			embedding vector(%d)
		)`, table, s.dim))
	if err != nil {
		return false, fmt.Errorf("create collection %s: %w", name, err)
	}
	return true, nil
}

func (s *PgVectorIndex) Upsert(ctx context.Context, name string, chunks []Chunk) error {
	if len(chunks) == 0 {
		return nil
	}

	if _, err := s.EnsureCollection(ctx, name); err != nil {
		return err
	}
	table, err := s.tableName(name)
	if err != nil {
		return err
	}

	for start := 0; start < len(chunks); start += upsertBatchSize {
		end := min(start+upsertBatchSize, len(chunks))
		// One transaction per batch; commit is the durability wait before
		// the next batch is issued.
		if err := s.upsertBatch(ctx, table, chunks[start:end]); err != nil {
			return fmt.Errorf("upsert batch %d: %w", start/upsertBatchSize, err)
		}
	}
	return nil
}

func (s *PgVectorIndex) upsertBatch(ctx context.Context, table string, chunks []Chunk) error {
	tx, err := s.db.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx)

	for _, c := range chunks {
		id := c.ID
		if _, err := uuid.Parse(id); err != nil {
			id = uuid.NewString()
		}

		metadata, err := json.Marshal(c.Metadata)
		if err != nil {
			return fmt.Errorf("marshal metadata: %w", err)
		}

		_, err = tx.Exec(ctx, fmt.Sprintf(
			`INSERT INTO %s (id, original_id, content, metadata, embedding)
			 VALUES ($1, $2, $3, $4, $5)
			 ON CONFLICT (id) DO UPDATE SET content = $3, metadata = $4, embedding = $5`, table),
			id, c.ID, c.Content, metadata, pgvector.NewVector(c.Embedding),
		)
		if err != nil {
			return fmt.Errorf("insert chunk %s: %w", c.ID, err)
		}
	}

	return tx.Commit(ctx)
}

func (s *PgVectorIndex) Search(ctx context.Context, name string, vector []float32, opts SearchOptions) ([]SearchResult, error) {
	opts = opts.withDefaults()

	table, err := s.tableName(name)
	if err != nil {
		slog.Warn("pgvector search failed, returning no results", "collection", name, "error", err)
		return nil, nil
	}

	exists, err := s.tableExists(ctx, table)
	if err != nil {
		slog.Warn("pgvector collection check failed, returning no results", "collection", name, "error", err)
		return nil, nil
	}
	if !exists {
		return nil, nil
	}

	searchCtx, cancel := context.WithTimeout(ctx, opts.Timeout)
	defer cancel()

	rows, err := s.db.Query(searchCtx, fmt.Sprintf(
		`SELECT original_id, content, metadata, 1 - (embedding <=> $1) AS score
		 FROM %s
		 ORDER BY embedding <=> $1
		 LIMIT $2`, table),
		pgvector.NewVector(vector), opts.Limit,
	)
	if err != nil {
		slog.Warn("pgvector search failed, returning no results", "collection", name, "error", err)
		return nil, nil
	}
	defer rows.Close()

	var results []SearchResult
	for rows.Next() {
		var r SearchResult
		var metadata []byte
		if err := rows.Scan(&r.ID, &r.Content, &metadata, &r.Score); err != nil {
			slog.Warn("pgvector scan failed, returning no results", "collection", name, "error", err)
			return nil, nil
		}
		if r.Score < opts.MinScore {
			continue
		}
		if len(metadata) > 0 {
			_ = json.Unmarshal(metadata, &r.Metadata)
		}
		results = append(results, r)
	}
	return results, nil
}

func (s *PgVectorIndex) Describe(ctx context.Context, name string) (*CollectionInfo, error) {
	table, err := s.tableName(name)
	if err != nil {
		return nil, err
	}

	exists, err := s.tableExists(ctx, table)
	if err != nil {
		return nil, err
	}
	if !exists {
		return nil, nil
	}

	var count int64
	if err := s.db.QueryRow(ctx, fmt.Sprintf("SELECT count(*) FROM %s", table)).Scan(&count); err != nil {
		return nil, fmt.Errorf("count collection %s: %w", name, err)
	}
	return &CollectionInfo{Name: name, VectorCount: count}, nil
}

func (s *PgVectorIndex) DeleteCollection(ctx context.Context, name string) error {
	table, err := s.tableName(name)
	if err != nil {
		return err
	}
	_, err = s.db.Exec(ctx, fmt.Sprintf("DROP TABLE IF EXISTS %s", table))
	return err
}

func (s *PgVectorIndex) tableExists(ctx context.Context, table string) (bool, error) {
	var regclass *string
	if err := s.db.QueryRow(ctx, "SELECT to_regclass($1)::text", table).Scan(&regclass); err != nil {
		return false, fmt.Errorf("check table %s: %w", table, err)
	}
	return regclass != nil, nil
}
