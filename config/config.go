package config

import (
	"os"
	"strconv"
)

const (
	ProviderOllama = "ollama"
	ProviderOpenAI = "openai"

	StoreQdrant   = "qdrant"
	StorePgvector = "pgvector"
	StoreMemory   = "memory"
)

type EmbeddingsConfig struct {
	Provider  string
	Model     string
	Dimension int
}

type LLMConfig struct {
	Provider    string
	Model       string
	MaxTokens   int
	Temperature float32
}

type QdrantConfig struct {
	Host       string
	Port       int
	Collection string
}

type ChunkingConfig struct {
	Size    int
	Overlap int
}

type RetrievalConfig struct {
	TopK          int
	MinSimilarity float64
	ContextBudget int
}

type Config struct {
	VectorStore string
	PostgresDSN string
	Qdrant      QdrantConfig

	Embeddings EmbeddingsConfig
	LLM        LLMConfig
	Chunking   ChunkingConfig
	Retrieval  RetrievalConfig

	OllamaHost    string
	OpenAIAPIKey  string
	OpenAIBaseURL string

	DataDir    string
	ListenAddr string
	Persona    string
}

func Load() Config {
	return Config{
		VectorStore: getEnv("VECTOR_STORE", StoreQdrant),
		PostgresDSN: getEnv("POSTGRES_DSN", "postgres://localhost:5432/personarag?sslmode=disable"),
		Qdrant: QdrantConfig{
			Host:       getEnv("QDRANT_HOST", "localhost"),
			Port:       getEnvInt("QDRANT_PORT", 6333),
			Collection: getEnv("QDRANT_COLLECTION_NAME", "personal_documents"),
		},
		Embeddings: EmbeddingsConfig{
			Provider:  getEnv("EMBEDDINGS_PROVIDER", ProviderOpenAI),
			Model:     getEnv("EMBEDDINGS_MODEL", "text-embedding-3-small"),
			Dimension: getEnvInt("EMBEDDINGS_DIMENSION", 1536),
		},
		LLM: LLMConfig{
			Provider:    getEnv("LLM_PROVIDER", ProviderOpenAI),
			Model:       getEnv("LLM_MODEL", "gpt-4o-mini"),
			MaxTokens:   getEnvInt("LLM_MAX_TOKENS", 500),
			Temperature: float32(getEnvFloat("LLM_TEMPERATURE", 0.7)),
		},
		Chunking: ChunkingConfig{
			Size:    getEnvInt("CHUNK_SIZE", 500),
			Overlap: getEnvInt("CHUNK_OVERLAP", 50),
		},
		Retrieval: RetrievalConfig{
			TopK:          getEnvInt("RETRIEVAL_TOP_K", 5),
			MinSimilarity: getEnvFloat("RETRIEVAL_MIN_SIMILARITY", 0),
			ContextBudget: getEnvInt("CONTEXT_BUDGET_CHARS", 6000),
		},
		OllamaHost:    getEnv("OLLAMA_HOST", "http://localhost:11434"),
		OpenAIAPIKey:  getEnv("OPENAI_API_KEY", ""),
		OpenAIBaseURL: getEnv("OPENAI_BASE_URL", ""),
		DataDir:       getEnv("DATA_DIR", "./data"),
		ListenAddr:    getEnv("LISTEN_ADDR", ":8080"),
		Persona:       getEnv("PERSONA_NAME", "the author"),
	}
}

func getEnv(key, fallback string) string {
	if value, ok := os.LookupEnv(key); ok && value != "" {
		return value
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	if value, ok := os.LookupEnv(key); ok && value != "" {
		if parsed, err := strconv.Atoi(value); err == nil {
			return parsed
		}
	}
	return fallback
}

func getEnvFloat(key string, fallback float64) float64 {
	if value, ok := os.LookupEnv(key); ok && value != "" {
		if parsed, err := strconv.ParseFloat(value, 64); err == nil {
			return parsed
		}
	}
	return fallback
}
