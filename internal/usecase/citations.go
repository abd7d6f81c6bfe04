package usecase

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
)

var citationMarker = regexp.MustCompile(`\[(\d+)\]`)

// BoundAnswer is an answer whose citation markers have been resolved against
// the prompt slots: marker [n] in Text always refers to Sources[n-1].
type BoundAnswer struct {
	Text    string
	Sources []PromptSlot
}

// BindCitations resolves the [n] markers a model emitted against the numbered
// excerpts that were in its prompt. Markers pointing outside the slot range
// are removed. Surviving markers are renumbered by order of first appearance
// so the numbering stays dense even when the model cited only a subset, and
// Sources lists exactly the cited slots in that order.
func BindCitations(answer string, slots []PromptSlot) BoundAnswer {
	renumbered := make(map[int]int, len(slots))
	var sources []PromptSlot

	text := citationMarker.ReplaceAllStringFunc(answer, func(marker string) string {
		n, err := strconv.Atoi(marker[1 : len(marker)-1])
		if err != nil || n < 1 || n > len(slots) {
			return ""
		}
		newN, seen := renumbered[n]
		if !seen {
			newN = len(sources) + 1
			renumbered[n] = newN
			slot := slots[n-1]
			slot.Index = newN
			sources = append(sources, slot)
		}
		return fmt.Sprintf("[%d]", newN)
	})

	return BoundAnswer{
		Text:    strings.TrimSpace(text),
		Sources: sources,
	}
}
