package db

import (
	"context"
	"fmt"
	"os"
	"reflect"
	"testing"

	"pdf-assistant/internal/config"
	"pdf-assistant/internal/models"
)

// fixedEmbedder returns preset vectors for known texts
type fixedEmbedder map[string][]float32

func (f fixedEmbedder) EmbedText(_ context.Context, text string) ([]float32, error) {
	v, ok := f[text]
	if !ok {
		return nil, fmt.Errorf("no vector for %q", text)
	}
	return v, nil
}

var vectors = fixedEmbedder{
	"alpha":   {1, 0, 0},
	"beta":    {0.8, 0.2, 0},
	"gamma":   {0, 1, 0},
	"delta":   {0, 0, 1},
	"q-alpha": {1, 0.05, 0},
}

func newPGStore(t *testing.T) *Store {
	t.Helper()
	url := os.Getenv("PGVECTOR_TEST_URL")
	if url == "" {
		t.Skip("PGVECTOR_TEST_URL not set")
	}
	sqldb, err := ConnectDB(&config.DatabaseConfig{Driver: config.DriverPQ, URL: url})
	if err != nil {
		t.Fatalf("ConnectDB: %v", err)
	}
	ctx := context.Background()
	bunDB := NewDB(sqldb, false)
	s := &Store{db: bunDB, embedder: vectors}
	if err := s.DropChunks(ctx); err != nil {
		t.Fatalf("DropChunks: %v", err)
	}
	s, err = NewStore(ctx, bunDB, vectors)
	if err != nil {
		t.Fatalf("NewStore: %v", err)
	}
	t.Cleanup(func() {
		s.DropChunks(context.Background())
		s.Close()
	})
	return s
}

func embeddedChunks(t *testing.T, texts ...string) []models.EmbeddedChunk {
	t.Helper()
	out := make([]models.EmbeddedChunk, 0, len(texts))
	for _, text := range texts {
		c, err := models.NewChunk(1, []string{text})
		if err != nil {
			t.Fatal(err)
		}
		out = append(out, models.EmbeddedChunk{Chunk: c, Embedding: vectors[text]})
	}
	return out
}

func TestPGStoreSearchFiltersTenantAndOrders(t *testing.T) {
	s := newPGStore(t)
	ctx := context.Background()
	mine := models.TenantKey{UserID: "u1", DocumentID: "d1"}
	otherDoc := models.TenantKey{UserID: "u1", DocumentID: "d2"}
	otherUser := models.TenantKey{UserID: "u2", DocumentID: "d1"}

	if err := s.Write(ctx, mine, embeddedChunks(t, "gamma", "alpha", "delta", "beta")); err != nil {
		t.Fatalf("Write: %v", err)
	}
	if err := s.Write(ctx, otherDoc, embeddedChunks(t, "alpha")); err != nil {
		t.Fatalf("Write: %v", err)
	}

	got, err := s.Search(ctx, mine, "q-alpha", 2)
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if want := []string{"alpha", "beta"}; !reflect.DeepEqual(got, want) {
		t.Fatalf("Search = %q, want %q", got, want)
	}

	all, err := s.Search(ctx, mine, "q-alpha", 10)
	if err != nil || len(all) != 4 {
		t.Fatalf("Search(top 10) = %q, %v", all, err)
	}
	if got, err := s.Search(ctx, otherDoc, "q-alpha", 10); err != nil || len(got) != 1 {
		t.Fatalf("other document = %q, %v", got, err)
	}
	if got, err := s.Search(ctx, otherUser, "q-alpha", 10); err != nil || len(got) != 0 {
		t.Fatalf("other user = %q, %v", got, err)
	}

	if err := s.DeleteUser(ctx, "u1"); err != nil {
		t.Fatalf("DeleteUser: %v", err)
	}
	if got, err := s.Search(ctx, mine, "q-alpha", 10); err != nil || len(got) != 0 {
		t.Fatalf("after DeleteUser = %q, %v", got, err)
	}
}

func TestPGStoreSearchWithoutTable(t *testing.T) {
	s := newPGStore(t)
	ctx := context.Background()
	if err := s.DropChunks(ctx); err != nil {
		t.Fatalf("DropChunks: %v", err)
	}
	got, err := s.Search(ctx, models.TenantKey{UserID: "u", DocumentID: "d"}, "alpha", 3)
	if err != nil || len(got) != 0 {
		t.Fatalf("Search without table = %q, %v", got, err)
	}
	if err := s.DeleteUser(ctx, "u"); err != nil {
		t.Fatalf("DeleteUser without table: %v", err)
	}
}
