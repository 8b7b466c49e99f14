// Package answer decides whether the voice agent can answer an utterance
// itself or must hand it to a supervisor.
package answer

import (
	"regexp"
	"strings"
)

// EscalationReply is spoken when a question is forwarded to a supervisor.
const EscalationReply = "That's a great question! I've forwarded it to my supervisor who will get back to you shortly with the answer."

// MinUtteranceLength is the shortest transcript worth answering.
const MinUtteranceLength = 3

var genericPhrases = []string{
	"i'm here to help",
	"could you please ask",
	"please ask about",
	"how can i assist",
	"what would you like",
	"is there anything",
}

var vaguePatterns = []string{"you open", "are you", "do you", "can you", "is your", "what is"}

var punctuation = regexp.MustCompile(`[^\w\s]`)

// IsIgnorable reports whether the utterance is too short to act on.
func IsIgnorable(utterance string) bool {
	return len(strings.TrimSpace(utterance)) < MinUtteranceLength
}

// IsVague reports whether an utterance is an incomplete question such as
// "are you open" that should go straight to a supervisor.
func IsVague(utterance string) bool {
	cleaned := punctuation.ReplaceAllString(strings.ToLower(strings.TrimSpace(utterance)), "")
	if len(strings.Fields(cleaned)) > 3 {
		return false
	}
	for _, p := range vaguePatterns {
		if strings.Contains(cleaned, p) {
			return true
		}
	}
	return false
}

// IsGeneric reports whether a generated reply is filler rather than an answer.
func IsGeneric(reply string) bool {
	lower := strings.ToLower(reply)
	for _, phrase := range genericPhrases {
		if strings.Contains(lower, phrase) {
			return true
		}
	}

	if len(reply) < 15 {
		return true
	}

	return isRepetitive(strings.Fields(reply), 3)
}

// Clean trims a generated reply to its first line and blanks it when the
// words repeat too much to be useful.
func Clean(reply string) string {
	reply = strings.TrimSpace(reply)
	if i := strings.IndexByte(reply, '\n'); i >= 0 {
		reply = strings.TrimSpace(reply[:i])
	}
	if isRepetitive(strings.Fields(reply), 5) {
		return ""
	}
	return reply
}

// IsUsable is the acceptability judgment applied to a fallback reply.
func IsUsable(reply string) bool {
	if reply == "" || len(reply) < 10 || len(reply) >= 100 {
		return false
	}
	return !IsGeneric(reply)
}

// isRepetitive reports a unique word ratio under 0.6 once there are more
// than minWords words.
func isRepetitive(words []string, minWords int) bool {
	if len(words) <= minWords {
		return false
	}
	unique := make(map[string]struct{}, len(words))
	for _, w := range words {
		unique[w] = struct{}{}
	}
	return float64(len(unique))/float64(len(words)) < 0.6
}
