package db

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/example/frontdesk/internal/core/knowledge"
)

// StarterKnowledge is the FAQ a fresh install answers without a supervisor.
var StarterKnowledge = []struct{ Question, Answer string }{
	{"What are your hours?", "We're open Monday to Friday from 9am to 6pm, and Saturday from 10am to 4pm."},
	{"Are you open on Sunday?", "We're closed on Sundays."},
	{"Where are you located?", "We're at 123 Main Street, next to the post office."},
	{"Do you take walk-ins?", "Yes, walk-ins are welcome, but appointments get priority."},
	{"How do I book an appointment?", "You can book by phone or on our website."},
}

// SeedKnowledge inserts the starter FAQ, leaving any existing answers alone.
// Returns the number of entries inserted.
func SeedKnowledge(database *sql.DB) (int, error) {
	now := time.Now().UTC().Format(TimeLayout)

	inserted := 0
	for _, k := range StarterKnowledge {
		res, err := database.Exec(
			"INSERT OR IGNORE INTO knowledge (normalized_question, question, answer, learned_at) VALUES (?, ?, ?, ?)",
			knowledge.Normalize(k.Question), k.Question, k.Answer, now,
		)
		if err != nil {
			return inserted, fmt.Errorf("seed knowledge: %w", err)
		}
		n, err := res.RowsAffected()
		if err != nil {
			return inserted, fmt.Errorf("seed knowledge: %w", err)
		}
		inserted += int(n)
	}
	return inserted, nil
}
