package rag

import (
	"context"
	"fmt"

	"github.com/rs/zerolog/log"

	"pdf-assistant/internal/helper"
	"pdf-assistant/internal/models"
)

type Extractor func(name string, data []byte) ([]models.Page, error)

type Chunker interface {
	Chunk(pages []models.Page) ([]models.Chunk, error)
}

type ChunkEmbedder interface {
	EmbedChunks(ctx context.Context, chunks []models.Chunk) ([]models.EmbeddedChunk, error)
}

type IngestResult struct {
	Tenant   models.TenantKey `json:"tenant"`
	Pages    int              `json:"pages"`
	Chunks   int              `json:"chunks"`
	Embedded int              `json:"embedded"`
	Skipped  int              `json:"skipped"`
}

// Pipeline runs upload ingestion: extract, chunk, embed, write
type Pipeline struct {
	extract  Extractor
	chunker  Chunker
	embedder ChunkEmbedder
	store    IndexStore
	newID    func() (string, error)
}

func NewPipeline(extract Extractor, chunker Chunker, embedder ChunkEmbedder, store IndexStore) *Pipeline {
	return &Pipeline{
		extract:  extract,
		chunker:  chunker,
		embedder: embedder,
		store:    store,
		newID:    helper.GenerateUUID,
	}
}

// Chunks extracts and chunks a document without embedding it
func (p *Pipeline) Chunks(name string, data []byte) ([]models.Page, []models.Chunk, error) {
	pages, err := p.extract(name, data)
	if err != nil {
		return nil, nil, err
	}
	chunks, err := p.chunker.Chunk(pages)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to chunk %s: %w", name, err)
	}
	return pages, chunks, nil
}

// Ingest stores a new upload for userID under a freshly generated document id
func (p *Pipeline) Ingest(ctx context.Context, userID, name string, data []byte) (*IngestResult, error) {
	documentID, err := p.newID()
	if err != nil {
		return nil, err
	}
	tenant := models.TenantKey{UserID: userID, DocumentID: documentID}
	if err := tenant.Validate(); err != nil {
		return nil, err
	}

	pages, chunks, err := p.Chunks(name, data)
	if err != nil {
		return nil, err
	}
	embedded, err := p.embedder.EmbedChunks(ctx, chunks)
	if err != nil {
		return nil, fmt.Errorf("failed to embed %s: %w", name, err)
	}

	res := &IngestResult{Tenant: tenant, Pages: len(pages), Chunks: len(chunks)}
	for _, c := range embedded {
		if c.HasEmbedding() {
			res.Embedded++
		} else {
			res.Skipped++
		}
	}
	if err := p.store.Write(ctx, tenant, embedded); err != nil {
		return nil, fmt.Errorf("failed to store %s: %w", name, err)
	}
	log.Info().
		Str("file", name).
		Str("document_id", documentID).
		Int("pages", res.Pages).
		Int("chunks", res.Chunks).
		Int("skipped", res.Skipped).
		Msg("Ingested document")
	return res, nil
}
