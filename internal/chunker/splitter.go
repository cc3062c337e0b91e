package chunker

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/neurosnap/sentences"
	"github.com/neurosnap/sentences/english"
)

// SentenceSplitter turns page text into ordered sentences
type SentenceSplitter interface {
	Split(text string) []string
}

// PunktSplitter uses the pretrained english Punkt model, which knows about
// abbreviations and initials.
type PunktSplitter struct {
	tokenizer *sentences.DefaultSentenceTokenizer
}

func NewPunktSplitter() (*PunktSplitter, error) {
	tokenizer, err := english.NewSentenceTokenizer(nil)
	if err != nil {
		return nil, fmt.Errorf("failed to load sentence tokenizer: %w", err)
	}
	return &PunktSplitter{tokenizer: tokenizer}, nil
}

func (p *PunktSplitter) Split(text string) []string {
	var out []string
	for _, s := range p.tokenizer.Tokenize(text) {
		if trimmed := strings.TrimSpace(s.Text); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}

// RegexSplitter breaks on runs of terminal punctuation. Text after the last
// terminator is kept as a final sentence.
type RegexSplitter struct {
	re *regexp.Regexp
}

func NewRegexSplitter() *RegexSplitter {
	return &RegexSplitter{re: regexp.MustCompile(`[^.!?]+[.!?]*`)}
}

func (r *RegexSplitter) Split(text string) []string {
	var out []string
	for _, s := range r.re.FindAllString(text, -1) {
		if trimmed := strings.TrimSpace(s); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}
