package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/joho/godotenv"

	"personarag/answer"
	"personarag/api"
	"personarag/chunker"
	"personarag/config"
	"personarag/database"
	"personarag/embeddings"
	"personarag/index"
	"personarag/ingestion"
	"personarag/llm"
	"personarag/retrieval"
)

func main() {
	logger := log.New(os.Stdout, "", log.LstdFlags)

	_ = godotenv.Load()

	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}

	cfg := config.Load()

	switch os.Args[1] {
	case "ingest":
		ingestCmd(cfg, logger, os.Args[2:])
	case "ask":
		askCmd(cfg, logger, os.Args[2:])
	case "serve":
		serveCmd(cfg, logger, os.Args[2:])
	case "clear":
		clearCmd(cfg, logger, os.Args[2:])
	default:
		logger.Printf("unknown command: %s", os.Args[1])
		printUsage()
		os.Exit(1)
	}
}

func ingestCmd(cfg config.Config, logger *log.Logger, args []string) {
	flags := flag.NewFlagSet("ingest", flag.ExitOnError)
	dataDir := flags.String("dir", cfg.DataDir, "path to directory containing scraped documents")
	if err := flags.Parse(args); err != nil {
		logger.Fatalf("parse ingest flags: %v", err)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	store, closeStore, err := newStore(ctx, cfg)
	if err != nil {
		logger.Fatalf("vector store setup: %v", err)
	}
	defer closeStore()

	svc, err := newIngestionService(cfg, store, logger)
	if err != nil {
		logger.Fatalf("ingestion setup: %v", err)
	}

	logger.Printf("ingesting documents from %s using %s/%s embeddings",
		*dataDir, strings.ToUpper(cfg.Embeddings.Provider), cfg.Embeddings.Model)

	report, err := svc.IngestDirectory(ctx, *dataDir)
	if err != nil {
		logger.Fatalf("ingestion failed: %v", err)
	}

	fmt.Printf("Ingested %d/%d documents (%d chunks stored, %d unchanged)\n",
		report.Documents-len(report.Failures)-report.Skipped, report.Documents, report.Stored, report.Skipped)
	for _, failure := range report.Failures {
		fmt.Printf("  failed %s (%s) at %s: %v\n", failure.DocumentID, failure.Title, failure.Stage, failure.Err)
	}
}

func askCmd(cfg config.Config, logger *log.Logger, args []string) {
	flags := flag.NewFlagSet("ask", flag.ExitOnError)
	question := flags.String("question", "", "question to ask about the corpus")
	topK := flags.Int("top-k", cfg.Retrieval.TopK, "number of candidate chunks to retrieve")
	if err := flags.Parse(args); err != nil {
		logger.Fatalf("parse ask flags: %v", err)
	}

	if strings.TrimSpace(*question) == "" {
		logger.Fatal("a question is required (use --question)")
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	store, closeStore, err := newStore(ctx, cfg)
	if err != nil {
		logger.Fatalf("vector store setup: %v", err)
	}
	defer closeStore()

	svc, err := newAnswerService(cfg, store, logger)
	if err != nil {
		logger.Fatalf("answer setup: %v", err)
	}

	if err := store.Ensure(ctx, cfg.Embeddings.Dimension); err != nil {
		logger.Fatalf("prepare index: %v", err)
	}

	result, err := svc.AnswerQuestion(ctx, *question, *topK)
	if err != nil {
		logger.Fatalf("could not answer: %v", err)
	}

	fmt.Println(result.Answer)
	if len(result.Sources) > 0 {
		fmt.Println()
		fmt.Println("Sources:")
		for i, source := range result.Sources {
			fmt.Printf("%d. %s (%s) similarity=%.3f\n", i+1, source.Title, source.Kind, source.Similarity)
			if source.URL != "" {
				fmt.Printf("   %s\n", source.URL)
			}
		}
	}
}

func serveCmd(cfg config.Config, logger *log.Logger, args []string) {
	flags := flag.NewFlagSet("serve", flag.ExitOnError)
	addr := flags.String("addr", cfg.ListenAddr, "address to listen on")
	if err := flags.Parse(args); err != nil {
		logger.Fatalf("parse serve flags: %v", err)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	store, closeStore, err := newStore(ctx, cfg)
	if err != nil {
		logger.Fatalf("vector store setup: %v", err)
	}
	defer closeStore()

	if err := store.Ensure(ctx, cfg.Embeddings.Dimension); err != nil {
		logger.Fatalf("prepare index: %v", err)
	}

	answerSvc, err := newAnswerService(cfg, store, logger)
	if err != nil {
		logger.Fatalf("answer setup: %v", err)
	}
	ingestSvc, err := newIngestionService(cfg, store, logger)
	if err != nil {
		logger.Fatalf("ingestion setup: %v", err)
	}

	server := &http.Server{
		Addr:    *addr,
		Handler: api.New(answerSvc, ingestSvc, logger),
	}

	go func() {
		<-ctx.Done()
		_ = server.Shutdown(context.Background())
	}()

	logger.Printf("listening on %s", *addr)
	if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		logger.Fatalf("serve: %v", err)
	}
}

func clearCmd(cfg config.Config, logger *log.Logger, args []string) {
	flags := flag.NewFlagSet("clear", flag.ExitOnError)
	confirmed := flags.Bool("confirm", false, "skip confirmation prompt")
	if err := flags.Parse(args); err != nil {
		logger.Fatalf("parse clear flags: %v", err)
	}

	if !*confirmed {
		fmt.Print("This will permanently delete all indexed content. Continue? [y/N]: ")
		var input string
		if _, err := fmt.Scanln(&input); err != nil && err.Error() != "unexpected newline" {
			logger.Fatalf("read confirmation: %v", err)
		}
		input = strings.ToLower(strings.TrimSpace(input))
		if input != "y" && input != "yes" {
			logger.Println("clear aborted")
			return
		}
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	store, closeStore, err := newStore(ctx, cfg)
	if err != nil {
		logger.Fatalf("vector store setup: %v", err)
	}
	defer closeStore()

	if err := store.Clear(ctx); err != nil {
		logger.Fatalf("clear index: %v", err)
	}
	logger.Println("indexed content removed")
}

func newStore(ctx context.Context, cfg config.Config) (index.Store, func(), error) {
	switch cfg.VectorStore {
	case config.StoreQdrant:
		store := index.NewQdrantStore(index.QdrantOptions{
			Host:       cfg.Qdrant.Host,
			Port:       cfg.Qdrant.Port,
			Collection: cfg.Qdrant.Collection,
		})
		return store, func() {}, nil
	case config.StorePgvector:
		pool, err := database.NewPostgresPool(ctx, cfg.PostgresDSN)
		if err != nil {
			return nil, nil, err
		}
		return index.NewPgvectorStore(pool), pool.Close, nil
	case config.StoreMemory:
		return index.NewMemoryStore(), func() {}, nil
	default:
		return nil, nil, fmt.Errorf("unknown vector store: %s", cfg.VectorStore)
	}
}

func newIngestionService(cfg config.Config, store index.Store, logger *log.Logger) (*ingestion.Service, error) {
	ch, err := chunker.New(cfg.Chunking.Size, cfg.Chunking.Overlap)
	if err != nil {
		return nil, err
	}
	embedder, err := embeddings.NewEmbedder(cfg)
	if err != nil {
		return nil, err
	}
	return ingestion.NewService(ch, embedder, store, logger, cfg.Embeddings.Dimension), nil
}

func newAnswerService(cfg config.Config, store index.Store, logger *log.Logger) (*answer.Service, error) {
	embedder, err := embeddings.NewEmbedder(cfg)
	if err != nil {
		return nil, err
	}
	llmClient, err := llm.NewClient(cfg)
	if err != nil {
		return nil, err
	}
	processor := retrieval.NewProcessor(embedder, store, logger, cfg.Retrieval.TopK)
	return answer.NewService(processor, llmClient, logger, answer.Options{
		Persona:       cfg.Persona,
		ContextBudget: cfg.Retrieval.ContextBudget,
		MinSimilarity: cfg.Retrieval.MinSimilarity,
	}), nil
}

func printUsage() {
	fmt.Println("Usage: personarag <command> [options]")
	fmt.Println("Commands:")
	fmt.Println("  ingest   Chunk, embed, and index scraped documents (use --dir to override data directory)")
	fmt.Println("  ask      Answer a question from the indexed corpus")
	fmt.Println("  serve    Run the HTTP API")
	fmt.Println("  clear    Remove all indexed content")
}
