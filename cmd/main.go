package main

import (
	"bufio"
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog/log"

	"pdf-assistant/internal/chromemdb"
	"pdf-assistant/internal/chunker"
	"pdf-assistant/internal/config"
	"pdf-assistant/internal/db"
	"pdf-assistant/internal/embedding"
	"pdf-assistant/internal/helper"
	"pdf-assistant/internal/llmservice"
	"pdf-assistant/internal/parser"
	"pdf-assistant/internal/rag"
	"pdf-assistant/internal/session"
)

const (
	defaultConfigPath = "./configs/config.yaml"
	defaultUserID     = "default_user"
)

// userIndex is an index store that can also forget everything a user stored
type userIndex interface {
	rag.IndexStore
	DeleteUser(ctx context.Context, userID string) error
}

type app struct {
	cfg      *config.Config
	store    userIndex
	pipeline *rag.Pipeline
	answerer *rag.Answerer
	chromem  *chromemdb.Store
	closers  []io.Closer
}

func main() {
	configPath := flag.String("config", defaultConfigPath, "Path to the config file")
	filePath := flag.String("file", "", "Path to the document to upload")
	userID := flag.String("user", defaultUserID, "User identifier")
	documentID := flag.String("doc", "", "Document id returned by a previous upload")
	query := flag.String("query", "", "Question to be answered")
	chat := flag.Bool("chat", false, "Start an interactive question loop")
	dryRun := flag.Bool("dry-run", false, "Extract and chunk only, do not embed or store")
	importPath := flag.String("import", "", "Load an encrypted vector snapshot before running")
	reset := flag.Bool("reset", false, "Delete every chunk stored for -user before anything else")
	flag.Parse()

	_ = godotenv.Load()

	cfg, err := config.LoadConfig(*configPath)
	if err != nil {
		helper.SetupLogger("info")
		log.Fatal().Err(err).Msg("Error loading config")
	}
	helper.SetupLogger(cfg.LogLevel)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	if *filePath == "" && *query == "" && !*chat && !*reset {
		flag.Usage()
		os.Exit(2)
	}

	if *dryRun {
		if *filePath == "" {
			log.Fatal().Msg("-dry-run needs -file")
		}
		if err := printChunks(cfg, *filePath); err != nil {
			log.Fatal().Err(err).Msg("Error parsing document")
		}
		return
	}

	a, err := newApp(ctx, cfg)
	if err != nil {
		log.Fatal().Err(err).Msg("Error initializing services")
	}
	defer a.close()

	if *importPath != "" {
		if a.chromem == nil {
			log.Fatal().Msg("-import is only supported by the chromem backend")
		}
		if err := a.chromem.Import(*importPath); err != nil {
			log.Fatal().Err(err).Msg("Error importing vector database")
		}
	}

	if *reset {
		if err := a.store.DeleteUser(ctx, *userID); err != nil {
			log.Fatal().Err(err).Msg("Error deleting user data")
		}
		fmt.Printf("Deleted stored chunks for user %s\n", *userID)
		if err := a.export(); err != nil {
			log.Fatal().Err(err).Msg("Error exporting vector database")
		}
	}

	sess := session.New(*userID, a.answerer)
	if *documentID != "" {
		sess.SetDocument(*documentID)
	}

	if *filePath != "" {
		data, err := os.ReadFile(*filePath)
		if err != nil {
			log.Fatal().Err(err).Msg("Error reading document")
		}
		res, err := a.pipeline.Ingest(ctx, *userID, *filePath, data)
		if err != nil {
			log.Fatal().Err(err).Msg("Error ingesting document")
		}
		sess.SetDocument(res.Tenant.DocumentID)
		fmt.Printf("Embeddings saved for document ID: %s\n", res.Tenant.DocumentID)
		if err := a.export(); err != nil {
			log.Fatal().Err(err).Msg("Error exporting vector database")
		}
	}

	if *query != "" {
		if err := ask(ctx, sess, *query, os.Stdout); err != nil {
			log.Fatal().Err(err).Msg("Error querying")
		}
	}

	if *chat {
		if err := chatLoop(ctx, sess, a.forget, os.Stdin, os.Stdout); err != nil {
			log.Fatal().Err(err).Msg("Chat ended with error")
		}
	}
}

func newApp(ctx context.Context, cfg *config.Config) (*app, error) {
	provider, err := embedding.NewProvider(&cfg.EmbedLLM)
	if err != nil {
		return nil, fmt.Errorf("embedding provider: %w", err)
	}
	embedder := embedding.NewEmbedder(
		provider,
		embedding.PolicyFromConfig(cfg.RAG, cfg.EmbedLLM),
		embedding.WithConcurrency(cfg.RAG.Concurrency),
	)

	completer, err := llmservice.NewClient(&cfg.InferenceLLM)
	if err != nil {
		return nil, fmt.Errorf("completion client: %w", err)
	}

	splitter, err := chunker.NewPunktSplitter()
	if err != nil {
		return nil, err
	}

	a := &app{cfg: cfg}
	switch cfg.VectorDB.Backend {
	case config.BackendPGVector:
		sqldb, err := db.ConnectDB(&cfg.Database)
		if err != nil {
			return nil, fmt.Errorf("error connecting to database: %w", err)
		}
		pg, err := db.NewStore(ctx, db.NewDB(sqldb, cfg.Database.Debug), embedder)
		if err != nil {
			sqldb.Close()
			return nil, err
		}
		a.closers = append(a.closers, pg)
		a.store = pg
	default:
		if !cfg.VectorDB.InMemory {
			if err := helper.CreateFolder(cfg.VectorDB.Path); err != nil {
				return nil, err
			}
		}
		cs, err := chromemdb.NewStore(chromemdb.Options{
			Path:          cfg.VectorDB.Path,
			InMemory:      cfg.VectorDB.InMemory,
			Compress:      cfg.VectorDB.Compress,
			EncryptionKey: cfg.VectorDB.EncryptionKey,
		}, embedder)
		if err != nil {
			return nil, err
		}
		a.chromem = cs
		a.store = cs
	}

	c, err := chunker.New(splitter, cfg.RAG.ChunkSize)
	if err != nil {
		return nil, err
	}
	a.pipeline = rag.NewPipeline(parser.Extract, c, embedder, a.store)
	a.answerer = rag.NewAnswerer(rag.NewRetriever(a.store, cfg.RAG.TopK), completer)
	return a, nil
}

// forget removes the user's stored chunks and refreshes the snapshot
func (a *app) forget(ctx context.Context, userID string) error {
	if err := a.store.DeleteUser(ctx, userID); err != nil {
		return err
	}
	return a.export()
}

// export snapshots an in-memory chromem database when an export path is set
func (a *app) export() error {
	if a.chromem == nil || !a.cfg.VectorDB.InMemory || a.cfg.VectorDB.ExportPath == "" {
		return nil
	}
	return a.chromem.Export(a.cfg.VectorDB.ExportPath)
}

func (a *app) close() {
	for _, c := range a.closers {
		if err := c.Close(); err != nil {
			log.Warn().Err(err).Msg("Error closing")
		}
	}
}

func printChunks(cfg *config.Config, filePath string) error {
	splitter, err := chunker.NewPunktSplitter()
	if err != nil {
		return err
	}
	pages, err := parser.ExtractFile(filePath)
	if err != nil {
		return err
	}
	c, err := chunker.New(splitter, cfg.RAG.ChunkSize)
	if err != nil {
		return err
	}
	chunks, err := c.Chunk(pages)
	if err != nil {
		return err
	}
	log.Info().Int("pages", len(pages)).Int("chunks", len(chunks)).Msg("Parsed content")
	helper.PrettyPrint(chunks)
	return nil
}

func ask(ctx context.Context, sess *session.Session, question string, out io.Writer) error {
	answer, err := sess.Ask(ctx, question)
	if err != nil {
		return err
	}
	fmt.Fprintf(out, "%s\n\n", answer)
	return nil
}

// chatLoop reads questions line by line. /history prints the session,
// /clear empties it, /doc <id> switches document, /forget deletes the
// user's stored chunks, /quit leaves.
func chatLoop(ctx context.Context, sess *session.Session, forget func(context.Context, string) error, in io.Reader, out io.Writer) error {
	if sess.Tenant().DocumentID == "" {
		return errors.New("no document selected, upload one with -file or pass -doc")
	}
	scanner := bufio.NewScanner(in)
	fmt.Fprint(out, "> ")
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		switch {
		case line == "":
		case line == "/quit" || line == "/exit":
			return nil
		case line == "/clear":
			sess.Clear()
			fmt.Fprintln(out, "Chat history cleared!")
		case line == "/history":
			for _, qa := range sess.History() {
				fmt.Fprintf(out, "Q: %s\nA: %s\n\n", qa.Question, qa.Answer)
			}
		case line == "/forget":
			userID := sess.Tenant().UserID
			if err := forget(ctx, userID); err != nil {
				log.Error().Err(err).Msg("Error deleting user data")
				break
			}
			sess.Clear()
			fmt.Fprintf(out, "Forgot every document of %s\n", userID)
		case strings.HasPrefix(line, "/doc "):
			sess.SetDocument(strings.TrimSpace(strings.TrimPrefix(line, "/doc ")))
			fmt.Fprintf(out, "Using document %s\n", sess.Tenant().DocumentID)
		default:
			if err := ask(ctx, sess, line, out); err != nil {
				if ctx.Err() != nil {
					return ctx.Err()
				}
				log.Error().Err(err).Msg("Error answering")
			}
		}
		fmt.Fprint(out, "> ")
	}
	return scanner.Err()
}
