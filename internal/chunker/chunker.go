package chunker

import (
	"fmt"
	"strings"

	"github.com/rs/zerolog/log"

	"pdf-assistant/internal/models"
)

// Chunker groups the sentences of each page into chunks of at most size sentences
type Chunker struct {
	splitter SentenceSplitter
	size     int
}

// New returns a chunker grouping at most size sentences per chunk
func New(splitter SentenceSplitter, size int) (*Chunker, error) {
	if size <= 0 {
		return nil, fmt.Errorf("%w: chunk size %d", models.ErrMalformedInput, size)
	}
	return &Chunker{splitter: splitter, size: size}, nil
}

func (c *Chunker) Size() int { return c.size }

// Chunk splits every page into sentences and groups them. Chunks never span
// pages and keep sentence order. Pages with blank text produce
// no chunks.
func (c *Chunker) Chunk(pages []models.Page) ([]models.Chunk, error) {
	var chunks []models.Chunk
	for _, page := range pages {
		if page.PageNumber < 1 {
			return nil, fmt.Errorf("%w: page number %d", models.ErrMalformedInput, page.PageNumber)
		}
		if strings.TrimSpace(page.Text) == "" {
			log.Debug().Int("page", page.PageNumber).Msg("Skipping empty page")
			continue
		}
		for _, group := range SplitList(c.splitter.Split(page.Text), c.size) {
			chunk, err := models.NewChunk(page.PageNumber, group)
			if err != nil {
				return nil, err
			}
			chunks = append(chunks, chunk)
		}
	}
	log.Debug().Int("pages", len(pages)).Int("chunks", len(chunks)).Int("size", c.size).Msg("Chunked pages")
	return chunks, nil
}

// SplitList slices items into consecutive groups of at most size elements
func SplitList(items []string, size int) [][]string {
	if size <= 0 || len(items) == 0 {
		return nil
	}
	groups := make([][]string, 0, (len(items)+size-1)/size)
	for start := 0; start < len(items); start += size {
		end := min(start+size, len(items))
		groups = append(groups, items[start:end])
	}
	return groups
}
