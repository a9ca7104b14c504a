package answer

import (
	"fmt"
	"strings"

	"personarag/index"
)

// SelectCandidates picks the candidates that fit the context budget,
// measured in runes of chunk text. Candidates arrive ranked by
// descending similarity; selection walks that order and stops at the
// first candidate that would overflow the remaining budget, so a
// candidate is either included whole or left out. The one exception
// is the top candidate: if it alone exceeds the budget it is truncated
// to fit, so a non-empty candidate list always yields some context.
// Candidates below minSimilarity are dropped first (a threshold of 0
// or less disables the filter).
func SelectCandidates(candidates []index.Candidate, budget int, minSimilarity float64) []index.Candidate {
	eligible := candidates
	if minSimilarity > 0 {
		eligible = make([]index.Candidate, 0, len(candidates))
		for _, c := range candidates {
			if c.Similarity >= minSimilarity {
				eligible = append(eligible, c)
			}
		}
	}
	if len(eligible) == 0 || budget <= 0 {
		return nil
	}

	selected := make([]index.Candidate, 0, len(eligible))
	remaining := budget
	for i, c := range eligible {
		size := len([]rune(c.Payload.Text))
		if size > remaining {
			if i == 0 {
				c.Payload.Text = string([]rune(c.Payload.Text)[:remaining])
				selected = append(selected, c)
			}
			break
		}
		selected = append(selected, c)
		remaining -= size
	}
	return selected
}

// BuildContext renders the selected chunks as numbered, labelled
// source blocks, the shape the prompt template expects.
func BuildContext(selected []index.Candidate) string {
	parts := make([]string, 0, len(selected))
	for i, c := range selected {
		parts = append(parts, fmt.Sprintf("[Source %d] %s (%s)\n%s\n", i+1, c.Payload.Title, c.Payload.Source, c.Payload.Text))
	}
	return strings.Join(parts, "\n")
}

// BuildPrompt assembles the fixed question-answering prompt. Given the
// same selected candidates and question it always produces the same
// text.
func BuildPrompt(persona, question string, selected []index.Candidate) (system, user string) {
	system = fmt.Sprintf("You are a helpful assistant that answers questions based on what you know about %s.", persona)
	user = fmt.Sprintf(`You are an AI assistant answering questions based on %s's writing and profile. The following is what you know about %s, use it to answer the question. If the answer is not in what you know, say that you do not know %s well enough to answer the question.

What I know about %s:
%s
Question: %s

Answer:`, persona, persona, persona, persona, BuildContext(selected), question)
	return system, user
}
