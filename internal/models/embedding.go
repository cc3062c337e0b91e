package models

import (
	"fmt"
	"strings"
	"unicode/utf8"
)

// Chunk is a group of consecutive sentences taken from a single page
type Chunk struct {
	PageNumber         int      `json:"page_number"`
	SentenceChunk      string   `json:"sentence_chunk"`
	Sentences          []string `json:"sentences"`
	WordCount          int      `json:"chunk_word_count"`
	TokenCountEstimate float64  `json:"chunk_token_count"`
}

// NewChunk builds a chunk from the ordered sentences of one page.
func NewChunk(pageNumber int, sentences []string) (Chunk, error) {
	if pageNumber < 1 {
		return Chunk{}, fmt.Errorf("%w: page number %d", ErrMalformedInput, pageNumber)
	}
	if len(sentences) == 0 {
		return Chunk{}, fmt.Errorf("%w: chunk without sentences", ErrMalformedInput)
	}
	text := strings.TrimSpace(strings.Join(sentences, " "))
	return Chunk{
		PageNumber:         pageNumber,
		SentenceChunk:      text,
		Sentences:          append([]string(nil), sentences...),
		WordCount:          len(strings.Fields(text)),
		TokenCountEstimate: float64(utf8.RuneCountInString(text)) / CharsPerToken,
	}, nil
}

// EmbeddedChunk pairs a chunk with its vector. Embedding is nil when every
// attempt to embed the chunk failed; Err then holds the last failure.
type EmbeddedChunk struct {
	Chunk
	Embedding []float32 `json:"embedding,omitempty"`
	Err       error     `json:"-"`
}

// HasEmbedding reports whether the chunk carries a usable vector
func (c EmbeddedChunk) HasEmbedding() bool {
	return len(c.Embedding) > 0
}

type PromptResponse struct {
	Query   string
	Context string
	Answer  string
}
