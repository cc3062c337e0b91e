package session

import (
	"context"
	"errors"
	"reflect"
	"testing"

	"pdf-assistant/internal/models"
)

type echoAnswerer struct {
	tenants []models.TenantKey
	err     error
}

func (e *echoAnswerer) Answer(_ context.Context, tenant models.TenantKey, question string) (string, error) {
	e.tenants = append(e.tenants, tenant)
	if e.err != nil {
		return "", e.err
	}
	return "re: " + question, nil
}

func TestSessionHistory(t *testing.T) {
	a := &echoAnswerer{}
	s := New("alice", a)
	s.SetDocument("doc-1")

	for _, q := range []string{"one?", "two?"} {
		if _, err := s.Ask(context.Background(), q); err != nil {
			t.Fatalf("Ask: %v", err)
		}
	}
	want := []models.QAInteraction{{Question: "one?", Answer: "re: one?"}, {Question: "two?", Answer: "re: two?"}}
	if got := s.History(); !reflect.DeepEqual(got, want) {
		t.Fatalf("history = %+v", got)
	}
	if a.tenants[0] != (models.TenantKey{UserID: "alice", DocumentID: "doc-1"}) {
		t.Fatalf("tenant = %+v", a.tenants[0])
	}

	h := s.History()
	h[0].Answer = "mutated"
	if s.History()[0].Answer != "re: one?" {
		t.Fatal("History must return a copy")
	}

	s.Clear()
	if len(s.History()) != 0 {
		t.Fatal("history not cleared")
	}
}

func TestSessionSkipsFailedQuestions(t *testing.T) {
	boom := errors.New("boom")
	s := New("bob", &echoAnswerer{err: boom})
	if _, err := s.Ask(context.Background(), "q"); !errors.Is(err, boom) {
		t.Fatalf("err = %v", err)
	}
	if len(s.History()) != 0 {
		t.Fatal("failed question recorded")
	}
}
