package session

import (
	"context"
	"sync"

	"pdf-assistant/internal/models"
)

// Answerer answers a question for a tenant
type Answerer interface {
	Answer(ctx context.Context, tenant models.TenantKey, question string) (string, error)
}

// Session ties a user to the document they uploaded last and keeps the
// question/answer history in memory. Nothing is persisted.
type Session struct {
	answerer Answerer

	mu      sync.Mutex
	tenant  models.TenantKey
	history []models.QAInteraction
}

func New(userID string, answerer Answerer) *Session {
	return &Session{answerer: answerer, tenant: models.TenantKey{UserID: userID}}
}

func (s *Session) Tenant() models.TenantKey {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.tenant
}

// SetDocument switches the session to another uploaded document
func (s *Session) SetDocument(documentID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.tenant.DocumentID = documentID
}

// Ask answers question and appends the exchange to the history. Failed
// questions are not recorded.
func (s *Session) Ask(ctx context.Context, question string) (string, error) {
	answer, err := s.answerer.Answer(ctx, s.Tenant(), question)
	if err != nil {
		return "", err
	}
	s.mu.Lock()
	s.history = append(s.history, models.QAInteraction{Question: question, Answer: answer})
	s.mu.Unlock()
	return answer, nil
}

// History returns a copy of the exchanges in the order they happened
func (s *Session) History() []models.QAInteraction {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]models.QAInteraction(nil), s.history...)
}

func (s *Session) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.history = nil
}
