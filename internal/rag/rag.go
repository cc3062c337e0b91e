package rag

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/rs/zerolog/log"

	"pdf-assistant/internal/models"
)

// IndexStore persists embedded chunks and searches them per tenant
type IndexStore interface {
	Write(ctx context.Context, tenant models.TenantKey, chunks []models.EmbeddedChunk) error
	Search(ctx context.Context, tenant models.TenantKey, query string, topK int) ([]string, error)
}

// Completer is the language model capability
type Completer interface {
	Complete(ctx context.Context, prompt string) (string, error)
}

type Retriever struct {
	store IndexStore
	topK  int
}

func NewRetriever(store IndexStore, topK int) *Retriever {
	if topK <= 0 {
		topK = models.DefaultTopK
	}
	return &Retriever{store: store, topK: topK}
}

// RetrieveContext joins the top matches, most similar first. An empty string
// means nothing relevant was found and is not an error.
func (r *Retriever) RetrieveContext(ctx context.Context, tenant models.TenantKey, query string) (string, error) {
	docs, err := r.store.Search(ctx, tenant, query, r.topK)
	if err != nil {
		if errors.Is(err, models.ErrCollectionNotFound) {
			return "", nil
		}
		return "", err
	}
	log.Debug().Str("tenant", tenant.Key()).Int("matches", len(docs)).Msg("Retrieved context")
	return strings.Join(docs, models.ContextSeparator), nil
}

type Answerer struct {
	retriever *Retriever
	completer Completer
}

func NewAnswerer(retriever *Retriever, completer Completer) *Answerer {
	return &Answerer{retriever: retriever, completer: completer}
}

// BuildPrompt renders the answer prompt for a context and question
func BuildPrompt(retrieved, question string) string {
	return fmt.Sprintf(models.AnswerPromptTemplate, retrieved, question)
}

// Answer answers question from the tenant's document. Without context the
// completion capability is not called and NoContextAnswer is returned.
func (a *Answerer) Answer(ctx context.Context, tenant models.TenantKey, question string) (string, error) {
	res, err := a.Respond(ctx, tenant, question)
	if err != nil {
		return "", err
	}
	return res.Answer, nil
}

// Respond is Answer that also reports the context used
func (a *Answerer) Respond(ctx context.Context, tenant models.TenantKey, question string) (*models.PromptResponse, error) {
	if err := tenant.Validate(); err != nil {
		return nil, err
	}
	retrieved, err := a.retriever.RetrieveContext(ctx, tenant, question)
	if err != nil {
		return nil, fmt.Errorf("failed to retrieve context: %w", err)
	}
	res := &models.PromptResponse{Query: question, Context: retrieved}
	if strings.TrimSpace(retrieved) == "" {
		log.Info().Str("tenant", tenant.Key()).Msg("No context found, skipping completion")
		res.Answer = models.NoContextAnswer
		return res, nil
	}

	answer, err := a.completer.Complete(ctx, BuildPrompt(retrieved, question))
	if err != nil {
		return nil, err
	}
	res.Answer = answer
	return res, nil
}
