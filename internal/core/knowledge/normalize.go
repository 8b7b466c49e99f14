// Package knowledge contains the pure rules for the learned answer store.
package knowledge

import (
	"fmt"
	"strings"
)

// Normalize produces the lookup key for a question: lower-cased, surrounding
// whitespace removed and internal runs of whitespace collapsed to one space.
// Punctuation is significant.
func Normalize(question string) string {
	return strings.Join(strings.Fields(strings.ToLower(question)), " ")
}

// EntryContext provides context for knowledge write guards.
type EntryContext struct {
	Question string
	Answer   string
}

// ValidateEntry rejects entries that would be unusable as answers.
func ValidateEntry(ctx EntryContext) error {
	if Normalize(ctx.Question) == "" {
		return fmt.Errorf("question is required")
	}
	if strings.TrimSpace(ctx.Answer) == "" {
		return fmt.Errorf("answer is required for %q", ctx.Question)
	}
	return nil
}
