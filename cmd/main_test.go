package main

import (
	"bytes"
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"pdf-assistant/internal/chromemdb"
	"pdf-assistant/internal/config"
	"pdf-assistant/internal/models"
	"pdf-assistant/internal/session"
)

type stubAnswerer struct{}

func (stubAnswerer) Answer(_ context.Context, tenant models.TenantKey, question string) (string, error) {
	return tenant.DocumentID + ": " + question, nil
}

func TestChatLoopCommands(t *testing.T) {
	sess := session.New("alice", stubAnswerer{})
	sess.SetDocument("doc-1")

	var forgotten []string
	forget := func(_ context.Context, userID string) error {
		forgotten = append(forgotten, userID)
		return nil
	}
	in := strings.NewReader("what?\n/history\n/clear\n/history\n/doc doc-2\nnext?\n/quit\nignored?\n")
	var out bytes.Buffer
	if err := chatLoop(context.Background(), sess, forget, in, &out); err != nil {
		t.Fatalf("chatLoop: %v", err)
	}

	got := out.String()
	for _, want := range []string{
		"doc-1: what?",
		"Q: what?\nA: doc-1: what?",
		"Chat history cleared!",
		"Using document doc-2",
		"doc-2: next?",
	} {
		if !strings.Contains(got, want) {
			t.Errorf("output missing %q:\n%s", want, got)
		}
	}
	if strings.Contains(got, "ignored?") {
		t.Errorf("input after /quit was processed:\n%s", got)
	}
	if n := len(sess.History()); n != 1 {
		t.Errorf("history length = %d, want 1", n)
	}
	if len(forgotten) != 0 {
		t.Errorf("forget called without /forget: %v", forgotten)
	}
}

func TestChatLoopForget(t *testing.T) {
	sess := session.New("alice", stubAnswerer{})
	sess.SetDocument("doc-1")

	var forgotten []string
	fail := true
	forget := func(_ context.Context, userID string) error {
		if fail {
			fail = false
			return errors.New("store offline")
		}
		forgotten = append(forgotten, userID)
		return nil
	}
	in := strings.NewReader("what?\n/forget\n/forget\n/quit\n")
	var out bytes.Buffer
	if err := chatLoop(context.Background(), sess, forget, in, &out); err != nil {
		t.Fatalf("chatLoop: %v", err)
	}
	if len(forgotten) != 1 || forgotten[0] != "alice" {
		t.Fatalf("forgotten = %v", forgotten)
	}
	if !strings.Contains(out.String(), "Forgot every document of alice") {
		t.Fatalf("output = %s", out.String())
	}
	if n := len(sess.History()); n != 0 {
		t.Fatalf("history length = %d after /forget", n)
	}
}

type constEmbedder struct{}

func (constEmbedder) EmbedText(context.Context, string) ([]float32, error) {
	return []float32{1, 0.5}, nil
}

func TestAppForgetDeletesAndExports(t *testing.T) {
	cfg := config.Default()
	cfg.VectorDB.InMemory = true
	cfg.VectorDB.EncryptionKey = "0123456789abcdef0123456789abcdef"
	cfg.VectorDB.ExportPath = filepath.Join(t.TempDir(), "snapshot.gob.enc")

	cs, err := chromemdb.NewStore(chromemdb.Options{InMemory: true, EncryptionKey: cfg.VectorDB.EncryptionKey}, constEmbedder{})
	if err != nil {
		t.Fatalf("NewStore: %v", err)
	}
	a := &app{cfg: cfg, store: cs, chromem: cs}

	ctx := context.Background()
	tenant := models.TenantKey{UserID: "alice", DocumentID: "doc-1"}
	chunk, err := models.NewChunk(1, []string{"Stored sentence."})
	if err != nil {
		t.Fatal(err)
	}
	if err := cs.Write(ctx, tenant, []models.EmbeddedChunk{{Chunk: chunk, Embedding: []float32{1, 0.5}}}); err != nil {
		t.Fatalf("Write: %v", err)
	}

	if err := a.forget(ctx, "alice"); err != nil {
		t.Fatalf("forget: %v", err)
	}
	if got, err := cs.Search(ctx, tenant, "anything", 5); err != nil || len(got) != 0 {
		t.Fatalf("Search after forget = %q, %v", got, err)
	}
	if _, err := os.Stat(cfg.VectorDB.ExportPath); err != nil {
		t.Fatalf("snapshot not written: %v", err)
	}
}

func TestChatLoopNeedsDocument(t *testing.T) {
	sess := session.New("alice", stubAnswerer{})
	noop := func(context.Context, string) error { return nil }
	if err := chatLoop(context.Background(), sess, noop, strings.NewReader("hi\n"), &bytes.Buffer{}); err == nil {
		t.Fatal("expected error without a document")
	}
}
