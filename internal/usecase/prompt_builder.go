package usecase

import (
	"fmt"
	"strings"

	"vedai-backend/internal/domain"

	"github.com/google/uuid"
)

const answerInstruction = `You are a helpful assistant answering questions based ONLY on the provided textbook excerpts.
Always cite sources using [1], [2], etc. matching the excerpt numbers below.
If the answer is not found in the excerpts, respond: "I don't know based on provided texts."
Be concise and accurate.`

const (
	contextStartMarker = "-- CONTEXT START --"
	contextEndMarker   = "-- CONTEXT END --"
	snippetRuneLimit   = 200
)

// PromptSlot records one numbered excerpt that went into the prompt, in the
// exact order the model sees it. Index is 1-based and matches the [n] marker
// the instruction asks the model to cite with.
type PromptSlot struct {
	Index      int
	ChunkID    uuid.UUID
	SourceFile string
	Page       int
	Snippet    string
	Similarity float32
}

type PromptResult struct {
	Prompt string
	Slots  []PromptSlot
}

type PromptBuilder interface {
	Build(question string, candidates []domain.RetrievalCandidate) (*PromptResult, error)
}

// NumberedPromptBuilder assembles the grounding prompt under a character
// budget. When the budget is tight it drops whole excerpts from the tail,
// never truncating the instruction block or the question.
type NumberedPromptBuilder struct {
	charBudget int
}

func NewNumberedPromptBuilder(charBudget int) *NumberedPromptBuilder {
	if charBudget <= 0 {
		charBudget = 12000
	}
	return &NumberedPromptBuilder{charBudget: charBudget}
}

func (b *NumberedPromptBuilder) Build(question string, candidates []domain.RetrievalCandidate) (*PromptResult, error) {
	question = strings.TrimSpace(question)
	if question == "" {
		return nil, fmt.Errorf("question is required")
	}
	if len(candidates) == 0 {
		return nil, fmt.Errorf("no candidates to build a prompt from")
	}

	// The question goes in verbatim, so the prompt is assembled by plain
	// concatenation. The head and tail count against the budget up front;
	// only whole excerpt blocks are dropped to make room.
	head := answerInstruction + "\n\n" + contextStartMarker + "\n"
	tail := contextEndMarker + "\n\nQuestion: " + question + "\n\nAnswer:"
	used := len(head) + len(tail)

	var prompt strings.Builder
	prompt.WriteString(head)
	slots := make([]PromptSlot, 0, len(candidates))
	for _, c := range candidates {
		block := fmt.Sprintf("[%d] %s (page %d):\n%s\n\n",
			len(slots)+1, c.Chunk.SourceFile, c.Chunk.Page, c.Chunk.Text)
		if used+len(block) > b.charBudget {
			break
		}
		used += len(block)
		prompt.WriteString(block)
		slots = append(slots, PromptSlot{
			Index:      len(slots) + 1,
			ChunkID:    c.Chunk.ID,
			SourceFile: c.Chunk.SourceFile,
			Page:       c.Chunk.Page,
			Snippet:    makeSnippet(c.Chunk.Text),
			Similarity: c.Similarity,
		})
	}
	if len(slots) == 0 {
		return nil, fmt.Errorf("character budget %d cannot fit any excerpt", b.charBudget)
	}
	prompt.WriteString(tail)

	return &PromptResult{
		Prompt: prompt.String(),
		Slots:  slots,
	}, nil
}

func makeSnippet(text string) string {
	runes := []rune(strings.TrimSpace(text))
	if len(runes) <= snippetRuneLimit {
		return string(runes)
	}
	return string(runes[:snippetRuneLimit])
}
