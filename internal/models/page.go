package models

import (
	"fmt"
	"strings"
	"unicode/utf8"
)

// Page holds the formatted text of one physical page and its statistics
type Page struct {
	PageNumber            int     `json:"page_number"`
	Text                  string  `json:"text"`
	CharCount             int     `json:"page_char_count"`
	WordCount             int     `json:"page_word_count"`
	SentenceCountEstimate int     `json:"page_sentence_count_raw"`
	TokenCountEstimate    float64 `json:"page_token_count"`
}

// NewPage formats raw page text and computes its statistics. Token count is
// the 4 characters per token approximation, not a real tokenizer.
func NewPage(pageNumber int, raw string) (Page, error) {
	if pageNumber < 1 {
		return Page{}, fmt.Errorf("%w: page number %d", ErrMalformedInput, pageNumber)
	}
	text := FormatText(raw)
	chars := utf8.RuneCountInString(text)
	return Page{
		PageNumber:            pageNumber,
		Text:                  text,
		CharCount:             chars,
		WordCount:             len(strings.Split(text, " ")),
		SentenceCountEstimate: len(strings.Split(text, ". ")),
		TokenCountEstimate:    float64(chars) / CharsPerToken,
	}, nil
}

// FormatText replaces line breaks with spaces and trims the result
func FormatText(raw string) string {
	text := strings.ReplaceAll(raw, "\r\n", " ")
	text = strings.ReplaceAll(text, "\n", " ")
	return strings.TrimSpace(text)
}
