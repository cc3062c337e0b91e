package db

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/lib/pq"
	"github.com/pgvector/pgvector-go"
	"github.com/rs/zerolog/log"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/pgdialect"
	"github.com/uptrace/bun/driver/pgdriver"
	"github.com/uptrace/bun/extra/bundebug"

	"pdf-assistant/internal/config"
	"pdf-assistant/internal/models"
)

const undefinedTable = "42P01"

// ChunkRecord is one stored chunk. Tenant columns are filtered on every search.
type ChunkRecord struct {
	bun.BaseModel `bun:"table:chunks,alias:c"`
	ID            string          `bun:"id,pk"`
	UserID        string          `bun:"user_id,notnull"`
	DocumentID    string          `bun:"document_id,notnull"`
	PageNumber    int             `bun:"page_number"`
	Content       string          `bun:"content,notnull"`
	Embedding     pgvector.Vector `bun:"embedding,notnull,type:vector"`
	CreatedAt     time.Time       `bun:"created_at,notnull,default:current_timestamp"`
}

// QueryEmbedder embeds search text with the same capability used at write time
type QueryEmbedder interface {
	EmbedText(ctx context.Context, text string) ([]float32, error)
}

// Store is the Postgres/pgvector index store
type Store struct {
	db       *bun.DB
	embedder QueryEmbedder
}

// ConnectDB opens a sql.DB with either the bun pgdriver or lib/pq
func ConnectDB(cfg *config.DatabaseConfig) (*sql.DB, error) {
	switch cfg.Driver {
	case config.DriverPQ:
		return sql.Open("postgres", cfg.URL)
	default:
		return sql.OpenDB(pgdriver.NewConnector(
			pgdriver.WithDSN(cfg.URL),
			pgdriver.WithPassword(cfg.Password),
			pgdriver.WithTimeout(time.Duration(cfg.TimeoutSecs)*time.Second),
		)), nil
	}
}

func NewDB(sqldb *sql.DB, debug bool) *bun.DB {
	db := bun.NewDB(sqldb, pgdialect.New())
	if debug {
		db.AddQueryHook(bundebug.NewQueryHook(bundebug.WithVerbose(true)))
	}
	return db
}

// NewStore wraps db and makes sure the vector extension and table exist
func NewStore(ctx context.Context, db *bun.DB, embedder QueryEmbedder) (*Store, error) {
	s := &Store{db: db, embedder: embedder}
	if err := s.InitDB(ctx); err != nil {
		return nil, err
	}
	return s, nil
}

func (s *Store) InitDB(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, "CREATE EXTENSION IF NOT EXISTS vector"); err != nil {
		return fmt.Errorf("failed to enable pgvector: %w", err)
	}
	if _, err := s.db.NewCreateTable().Model((*ChunkRecord)(nil)).IfNotExists().Exec(ctx); err != nil {
		return fmt.Errorf("failed to create chunks table: %w", err)
	}
	_, err := s.db.NewCreateIndex().
		Model((*ChunkRecord)(nil)).
		Index("chunks_tenant_idx").
		Column("user_id", "document_id").
		IfNotExists().
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("failed to create tenant index: %w", err)
	}
	return nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

// Records converts embedded chunks into rows, dropping chunks without a vector
func Records(tenant models.TenantKey, chunks []models.EmbeddedChunk) []ChunkRecord {
	rows := make([]ChunkRecord, 0, len(chunks))
	for i, c := range chunks {
		if !c.HasEmbedding() {
			continue
		}
		rows = append(rows, ChunkRecord{
			ID:         tenant.ChunkID(i),
			UserID:     tenant.UserID,
			DocumentID: tenant.DocumentID,
			PageNumber: c.PageNumber,
			Content:    c.SentenceChunk,
			Embedding:  pgvector.NewVector(c.Embedding),
		})
	}
	return rows
}

func (s *Store) Write(ctx context.Context, tenant models.TenantKey, chunks []models.EmbeddedChunk) error {
	if err := tenant.Validate(); err != nil {
		return err
	}
	rows := Records(tenant, chunks)
	if skipped := len(chunks) - len(rows); skipped > 0 {
		log.Warn().Str("tenant", tenant.Key()).Int("skipped", skipped).Msg("Skipping chunks without embedding")
	}
	if len(rows) == 0 {
		return nil
	}
	_, err := s.db.NewInsert().
		Model(&rows).
		On("CONFLICT (id) DO UPDATE").
		Set("content = EXCLUDED.content").
		Set("embedding = EXCLUDED.embedding").
		Set("page_number = EXCLUDED.page_number").
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("failed to store chunks: %w", mapError(err))
	}
	log.Info().Str("tenant", tenant.Key()).Int("rows", len(rows)).Msg("Stored chunks")
	return nil
}

// Search orders the tenant's chunks by cosine distance to the query
func (s *Store) Search(ctx context.Context, tenant models.TenantKey, query string, topK int) ([]string, error) {
	if err := tenant.Validate(); err != nil {
		return nil, err
	}
	if topK <= 0 {
		topK = models.DefaultTopK
	}
	queryEmbedding, err := s.embedder.EmbedText(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to embed query: %w", err)
	}

	var contents []string
	err = s.db.NewSelect().
		Model((*ChunkRecord)(nil)).
		Column("content").
		Where("user_id = ?", tenant.UserID).
		Where("document_id = ?", tenant.DocumentID).
		OrderExpr("embedding <=> ?", pgvector.NewVector(queryEmbedding)).
		OrderExpr("id").
		Limit(topK).
		Scan(ctx, &contents)
	if err != nil {
		err = mapError(err)
		if errors.Is(err, models.ErrCollectionNotFound) {
			log.Debug().Str("tenant", tenant.Key()).Msg("Chunks table missing")
			return nil, nil
		}
		return nil, fmt.Errorf("failed to search chunks: %w", err)
	}
	return contents, nil
}

// DeleteUser removes every chunk stored for userID
func (s *Store) DeleteUser(ctx context.Context, userID string) error {
	if userID == "" {
		return models.ErrMissingTenant
	}
	res, err := s.db.NewDelete().
		Model((*ChunkRecord)(nil)).
		Where("user_id = ?", userID).
		Exec(ctx)
	if err != nil {
		if errors.Is(mapError(err), models.ErrCollectionNotFound) {
			return nil
		}
		return fmt.Errorf("failed to delete chunks: %w", err)
	}
	n, _ := res.RowsAffected()
	log.Info().Str("user_id", userID).Int64("rows", n).Msg("Deleted user chunks")
	return nil
}

// DropChunks removes the chunks table
func (s *Store) DropChunks(ctx context.Context) error {
	_, err := s.db.NewDropTable().Model((*ChunkRecord)(nil)).IfExists().Exec(ctx)
	return err
}

// mapError turns an undefined-table error from either driver into ErrCollectionNotFound
func mapError(err error) error {
	var pgErr pgdriver.Error
	if errors.As(err, &pgErr) && pgErr.Field('C') == undefinedTable {
		return fmt.Errorf("%w: %v", models.ErrCollectionNotFound, err)
	}
	var pqErr *pq.Error
	if errors.As(err, &pqErr) && string(pqErr.Code) == undefinedTable {
		return fmt.Errorf("%w: %v", models.ErrCollectionNotFound, err)
	}
	return err
}
