package chromemdb

import (
	"context"
	"errors"
	"fmt"
	"runtime"
	"strconv"

	"github.com/philippgille/chromem-go"
	"github.com/rs/zerolog/log"

	"pdf-assistant/internal/models"
)

// QueryEmbedder embeds search text with the same capability used at write time
type QueryEmbedder interface {
	EmbedText(ctx context.Context, text string) ([]float32, error)
}

// Store keeps one chromem collection per user. Every document carries the
// combined user/document key as metadata and searches filter on it.
type Store struct {
	db            *chromem.DB
	embedder      QueryEmbedder
	compress      bool
	encryptionKey string
}

type Options struct {
	Path          string
	InMemory      bool
	Compress      bool
	EncryptionKey string
}

// NewStore opens a persistent database at opts.Path, or an in-memory one
func NewStore(opts Options, embedder QueryEmbedder) (*Store, error) {
	var db *chromem.DB
	if opts.InMemory {
		db = chromem.NewDB()
	} else {
		var err error
		db, err = chromem.NewPersistentDB(opts.Path, opts.Compress)
		if err != nil {
			return nil, fmt.Errorf("failed to create database: %v", err)
		}
	}
	log.Debug().Str("path", opts.Path).Bool("in_memory", opts.InMemory).Msg("Opened vector database")
	return &Store{
		db:            db,
		embedder:      embedder,
		compress:      opts.Compress,
		encryptionKey: opts.EncryptionKey,
	}, nil
}

func (s *Store) embeddingFunc() chromem.EmbeddingFunc {
	return func(ctx context.Context, text string) ([]float32, error) {
		return s.embedder.EmbedText(ctx, text)
	}
}

// Write stores the embedded chunks for tenant. Chunks without an embedding
// are skipped; ids keep the chunk's position in the batch.
func (s *Store) Write(ctx context.Context, tenant models.TenantKey, chunks []models.EmbeddedChunk) error {
	if err := tenant.Validate(); err != nil {
		return err
	}
	docs := make([]chromem.Document, 0, len(chunks))
	for i, c := range chunks {
		if !c.HasEmbedding() {
			log.Warn().Str("tenant", tenant.Key()).Int("chunk", i).Msg("Skipping chunk without embedding")
			continue
		}
		docs = append(docs, chromem.Document{
			ID:      tenant.ChunkID(i),
			Content: c.SentenceChunk,
			Metadata: map[string]string{
				models.MetaUserID:     tenant.UserID,
				models.MetaDocumentID: tenant.DocumentID,
				models.MetaTenant:     tenant.Key(),
				models.MetaPageNumber: strconv.Itoa(c.PageNumber),
			},
			Embedding: c.Embedding,
		})
	}
	if len(docs) == 0 {
		return nil
	}

	collection, err := s.db.GetOrCreateCollection(tenant.Collection(), nil, s.embeddingFunc())
	if err != nil {
		return fmt.Errorf("failed to create/get collection: %v", err)
	}
	if err := collection.AddDocuments(ctx, docs, runtime.NumCPU()); err != nil {
		return fmt.Errorf("failed to add documents: %w", err)
	}
	log.Info().Str("collection", collection.Name).Str("tenant", tenant.Key()).Int("documents", len(docs)).Msg("Stored chunks")
	return nil
}

// Query runs the filtered similarity search. It returns ErrCollectionNotFound
// when the user has never written anything.
func (s *Store) Query(ctx context.Context, tenant models.TenantKey, query string, topK int) ([]chromem.Result, error) {
	if err := tenant.Validate(); err != nil {
		return nil, err
	}
	collection := s.db.GetCollection(tenant.Collection(), s.embeddingFunc())
	if collection == nil {
		return nil, fmt.Errorf("%w: %s", models.ErrCollectionNotFound, tenant.Collection())
	}
	if topK <= 0 {
		topK = models.DefaultTopK
	}
	// chromem rejects nResults above the collection size, filtered or not
	n := min(topK, collection.Count())
	if n == 0 {
		return nil, nil
	}

	queryEmbedding, err := s.embedder.EmbedText(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to embed query: %w", err)
	}
	results, err := collection.QueryWithOptions(ctx, chromem.QueryOptions{
		QueryEmbedding: queryEmbedding,
		NResults:       n,
		Where:          map[string]string{models.MetaTenant: tenant.Key()},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to query by similarity: %v", err)
	}
	return results, nil
}

// Search returns up to topK chunk texts for tenant, most similar first. A
// user without a collection gets an empty result.
func (s *Store) Search(ctx context.Context, tenant models.TenantKey, query string, topK int) ([]string, error) {
	results, err := s.Query(ctx, tenant, query, topK)
	if err != nil {
		if isNotFound(err) {
			log.Debug().Str("tenant", tenant.Key()).Msg("No collection for user yet")
			return nil, nil
		}
		return nil, err
	}
	texts := make([]string, 0, len(results))
	for _, r := range results {
		texts = append(texts, r.Content)
	}
	return texts, nil
}

// DeleteUser drops the whole collection of a user. Unknown users are a no-op.
func (s *Store) DeleteUser(_ context.Context, userID string) error {
	if userID == "" {
		return models.ErrMissingTenant
	}
	if err := s.db.DeleteCollection(models.CollectionPrefix + userID); err != nil {
		return fmt.Errorf("failed to drop collection: %v", err)
	}
	log.Info().Str("user_id", userID).Msg("Deleted user collection")
	return nil
}

// Export writes an encrypted snapshot of every collection to filePath
func (s *Store) Export(filePath string) error {
	if s.encryptionKey == "" {
		return fmt.Errorf("encryption key is required")
	}
	if filePath == "" {
		return fmt.Errorf("export path is required")
	}
	log.Debug().Str("file", filePath).Bool("compress", s.compress).Msg("Exporting vector database")
	if err := s.db.ExportToFile(filePath, s.compress, s.encryptionKey); err != nil {
		return fmt.Errorf("failed to export database: %v", err)
	}
	return nil
}

// Import loads a snapshot written by Export
func (s *Store) Import(filePath string) error {
	if s.encryptionKey == "" {
		return fmt.Errorf("encryption key is required")
	}
	if err := s.db.ImportFromFile(filePath, s.encryptionKey); err != nil {
		return fmt.Errorf("failed to import database: %v", err)
	}
	return nil
}

func isNotFound(err error) bool {
	return errors.Is(err, models.ErrCollectionNotFound)
}
