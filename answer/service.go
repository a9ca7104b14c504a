// Package answer turns ranked candidates into a bounded prompt, calls
// the generative model, and packages the answer with its sources.
package answer

import (
	"context"
	"fmt"
	"log"
	"strings"

	"personarag/index"
	"personarag/llm"
)

// InsufficientContextMessage is returned verbatim when no candidate
// clears the similarity threshold. It is a legitimate outcome, not a
// failure, and the generative model is never invoked for it.
const InsufficientContextMessage = "I could not find anything relevant in the indexed content to answer that question."

// Source describes one chunk that informed the answer, in the order it
// appeared in the prompt.
type Source struct {
	Title      string
	Content    string
	Kind       string
	URL        string
	Similarity float64
}

// Result is the outcome of one answered question.
type Result struct {
	Answer              string
	Sources             []Source
	InsufficientContext bool
}

// Retriever produces ranked candidates for a question.
type Retriever interface {
	Retrieve(ctx context.Context, question string, topK int) ([]index.Candidate, error)
}

type Options struct {
	Persona       string
	ContextBudget int
	MinSimilarity float64
}

type Service struct {
	retriever Retriever
	llm       llm.Client
	logger    *log.Logger
	opts      Options
}

func NewService(retriever Retriever, llmClient llm.Client, logger *log.Logger, opts Options) *Service {
	if logger == nil {
		logger = log.Default()
	}
	if opts.Persona == "" {
		opts.Persona = "the author"
	}
	if opts.ContextBudget <= 0 {
		opts.ContextBudget = 6000
	}
	return &Service{
		retriever: retriever,
		llm:       llmClient,
		logger:    logger,
		opts:      opts,
	}
}

// AnswerQuestion retrieves candidates, assembles a budget-bounded
// prompt, and generates an answer. Retrieval and generation failures
// propagate to the caller; an empty candidate set after filtering
// yields the insufficient-context result instead.
func (s *Service) AnswerQuestion(ctx context.Context, question string, topK int) (Result, error) {
	question = strings.TrimSpace(question)
	if question == "" {
		return Result{}, fmt.Errorf("question cannot be empty")
	}
	if s.retriever == nil {
		return Result{}, fmt.Errorf("retriever is not configured")
	}
	if s.llm == nil {
		return Result{}, fmt.Errorf("llm client is not configured")
	}

	candidates, err := s.retriever.Retrieve(ctx, question, topK)
	if err != nil {
		return Result{}, err
	}

	selected := SelectCandidates(candidates, s.opts.ContextBudget, s.opts.MinSimilarity)
	if len(selected) == 0 {
		s.logger.Printf("no candidates above similarity %.2f, returning insufficient-context result", s.opts.MinSimilarity)
		return Result{
			Answer:              InsufficientContextMessage,
			InsufficientContext: true,
		}, nil
	}

	system, user := BuildPrompt(s.opts.Persona, question, selected)
	generated, err := s.llm.Generate(ctx, []llm.Message{
		{Role: llm.RoleSystem, Content: system},
		{Role: llm.RoleUser, Content: user},
	})
	if err != nil {
		return Result{}, fmt.Errorf("generate answer: %w", err)
	}

	sources := make([]Source, len(selected))
	for i, c := range selected {
		sources[i] = Source{
			Title:      c.Payload.Title,
			Content:    c.Payload.Text,
			Kind:       c.Payload.Source,
			URL:        c.Payload.URL,
			Similarity: c.Similarity,
		}
	}

	return Result{
		Answer:  strings.TrimSpace(generated),
		Sources: sources,
	}, nil
}
