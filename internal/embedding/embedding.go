package embedding

import (
	"context"
	"errors"
	"fmt"
	"math"
	"sync"
	"time"

	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"

	"pdf-assistant/internal/config"
	"pdf-assistant/internal/models"
)

// Policy controls how EmbedText retries a failing provider
type Policy struct {
	MaxRetries          int
	BackoffBase         float64
	BackoffUnit         time.Duration
	RateLimitWait       time.Duration
	MaxRateLimitRetries int
	CallTimeout         time.Duration
}

func DefaultPolicy() Policy {
	return Policy{
		MaxRetries:          3,
		BackoffBase:         2,
		BackoffUnit:         time.Second,
		RateLimitWait:       models.DefaultRetryAfter * time.Second,
		MaxRateLimitRetries: 5,
	}
}

func PolicyFromConfig(rag config.RAGConfig, llm config.LLMConfig) Policy {
	p := DefaultPolicy()
	if rag.MaxRetries != nil {
		p.MaxRetries = *rag.MaxRetries
	}
	p.BackoffBase = rag.BackoffBase
	p.RateLimitWait = time.Duration(rag.RateLimitWaitSecs) * time.Second
	if rag.MaxRateLimitRetries != nil {
		p.MaxRateLimitRetries = *rag.MaxRateLimitRetries
	}
	p.CallTimeout = llm.Timeout()
	return p
}

// Backoff is the wait before retry number attempt (1-based): base^attempt units
func (p Policy) Backoff(attempt int) time.Duration {
	return time.Duration(math.Pow(p.BackoffBase, float64(attempt)) * float64(p.BackoffUnit))
}

// SleepFunc waits for d or until ctx is done
type SleepFunc func(ctx context.Context, d time.Duration) error

func sleepContext(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

type Option func(*Embedder)

func WithSleep(fn SleepFunc) Option {
	return func(e *Embedder) { e.sleep = fn }
}

func WithConcurrency(n int) Option {
	return func(e *Embedder) {
		if n > 0 {
			e.concurrency = n
		}
	}
}

// Embedder wraps a Provider with retry, flattening and a fixed dimension
type Embedder struct {
	provider    Provider
	policy      Policy
	concurrency int
	sleep       SleepFunc

	mu  sync.Mutex
	dim int
}

func NewEmbedder(provider Provider, policy Policy, opts ...Option) *Embedder {
	e := &Embedder{
		provider:    provider,
		policy:      policy,
		concurrency: 1,
		sleep:       sleepContext,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Dimension is the vector length pinned by the first successful call, 0 before that
func (e *Embedder) Dimension() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.dim
}

func (e *Embedder) checkDimension(n int) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.dim == 0 {
		e.dim = n
		return nil
	}
	if e.dim != n {
		return fmt.Errorf("embedding dimension %d does not match %d", n, e.dim)
	}
	return nil
}

func (e *Embedder) embedOnce(ctx context.Context, text string) ([]float32, error) {
	callCtx := ctx
	if e.policy.CallTimeout > 0 {
		var cancel context.CancelFunc
		callCtx, cancel = context.WithTimeout(ctx, e.policy.CallTimeout)
		defer cancel()
	}
	raw, err := e.provider.Embed(callCtx, text)
	if err != nil {
		return nil, Classify(err)
	}
	vec, err := Flatten(raw)
	if err != nil {
		return nil, &models.PermanentAPIError{Err: err}
	}
	if err := e.checkDimension(len(vec)); err != nil {
		return nil, &models.PermanentAPIError{Err: err}
	}
	return vec, nil
}

// EmbedText embeds one text. Transient failures are retried up to MaxRetries
// times with exponential backoff. Rate limits wait for the server supplied
// delay without advancing the backoff attempt; they have their own cap.
// Other errors return immediately.
func (e *Embedder) EmbedText(ctx context.Context, text string) ([]float32, error) {
	attempt, throttled := 0, 0
	for {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		vec, err := e.embedOnce(ctx, text)
		if err == nil {
			return vec, nil
		}
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, ctxErr
		}

		var (
			limited   *models.RateLimitError
			transient *models.TransientNetworkError
			wait      time.Duration
		)
		switch {
		case errors.As(err, &limited):
			if throttled >= e.policy.MaxRateLimitRetries {
				return nil, err
			}
			throttled++
			wait = limited.RetryAfter
			if wait <= 0 {
				wait = e.policy.RateLimitWait
			}
			log.Warn().Err(err).Dur("wait", wait).Int("throttled", throttled).Msg("Embedding rate limited")
		case errors.As(err, &transient):
			if attempt >= e.policy.MaxRetries {
				return nil, err
			}
			attempt++
			wait = e.policy.Backoff(attempt)
			log.Warn().Err(err).Dur("wait", wait).Int("attempt", attempt).Msg("Embedding timed out, retrying")
		default:
			return nil, err
		}
		if err := e.sleep(ctx, wait); err != nil {
			return nil, err
		}
	}
}

// EmbedChunks embeds every chunk, keeping input order and count. A chunk
// whose retries are exhausted gets a nil embedding and its error; the rest of
// the batch continues. Only context cancellation fails the whole call.
func (e *Embedder) EmbedChunks(ctx context.Context, chunks []models.Chunk) ([]models.EmbeddedChunk, error) {
	out := make([]models.EmbeddedChunk, len(chunks))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(e.concurrency)
	for i := range chunks {
		g.Go(func() error {
			vec, err := e.EmbedText(gctx, chunks[i].SentenceChunk)
			out[i] = models.EmbeddedChunk{Chunk: chunks[i], Embedding: vec, Err: err}
			if err != nil {
				if ctxErr := gctx.Err(); ctxErr != nil {
					return ctxErr
				}
				log.Warn().Err(err).Int("chunk", i).Int("page", chunks[i].PageNumber).Msg("Giving up on chunk embedding")
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	failed := 0
	for _, c := range out {
		if !c.HasEmbedding() {
			failed++
		}
	}
	log.Info().Str("provider", e.provider.Name()).Int("chunks", len(out)).Int("failed", failed).Msg("Embedded chunks")
	return out, nil
}
