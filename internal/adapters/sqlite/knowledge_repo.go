package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/example/frontdesk/internal/ports/primary"
	"github.com/example/frontdesk/internal/ports/secondary"
)

// KnowledgeRepository implements secondary.KnowledgeRepository with SQLite.
type KnowledgeRepository struct {
	db         *sql.DB
	quarantine *Quarantine
}

// NewKnowledgeRepository creates a new SQLite knowledge repository.
func NewKnowledgeRepository(db *sql.DB, quarantine *Quarantine) *KnowledgeRepository {
	return &KnowledgeRepository{db: db, quarantine: quarantine}
}

// Get retrieves an entry by normalized question.
func (r *KnowledgeRepository) Get(ctx context.Context, normalizedQuestion string) (*secondary.KnowledgeRecord, error) {
	row := conn(ctx, r.db).QueryRowContext(ctx,
		`SELECT normalized_question, question, answer, learned_at, source_request_id FROM knowledge WHERE normalized_question = ?`,
		normalizedQuestion,
	)

	record, err := scanKnowledge(row)
	var invalid *invalidRow
	switch {
	case errors.Is(err, sql.ErrNoRows):
		return nil, fmt.Errorf("knowledge %q: %w", normalizedQuestion, primary.ErrNotFound)
	case errors.As(err, &invalid):
		return nil, r.quarantine.reject("knowledge", normalizedQuestion, invalid.cause)
	case err != nil:
		return nil, storeErr("get knowledge", err)
	}
	return record, nil
}

// Upsert inserts or replaces the entry for its normalized question.
func (r *KnowledgeRepository) Upsert(ctx context.Context, entry *secondary.KnowledgeRecord) error {
	_, err := conn(ctx, r.db).ExecContext(ctx,
		`INSERT INTO knowledge (normalized_question, question, answer, learned_at, source_request_id)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(normalized_question) DO UPDATE SET
			question = excluded.question,
			answer = excluded.answer,
			learned_at = excluded.learned_at,
			source_request_id = excluded.source_request_id`,
		entry.NormalizedQuestion,
		entry.Question,
		entry.Answer,
		formatTime(entry.LearnedAt),
		nullString(entry.SourceRequestID),
	)
	if err != nil {
		return storeErr("upsert knowledge", err)
	}
	return nil
}

// Delete removes an entry.
func (r *KnowledgeRepository) Delete(ctx context.Context, normalizedQuestion string) (bool, error) {
	result, err := conn(ctx, r.db).ExecContext(ctx,
		"DELETE FROM knowledge WHERE normalized_question = ?", normalizedQuestion)
	if err != nil {
		return false, storeErr("delete knowledge", err)
	}
	return affectedOne(result)
}

// List returns entries whose normalized question contains search, sorted by question.
func (r *KnowledgeRepository) List(ctx context.Context, search string) ([]*secondary.KnowledgeRecord, error) {
	query := `SELECT normalized_question, question, answer, learned_at, source_request_id FROM knowledge`
	args := []any{}
	if search = strings.TrimSpace(search); search != "" {
		query += ` WHERE normalized_question LIKE ? ESCAPE '\'`
		args = append(args, "%"+escapeLike(strings.ToLower(search))+"%")
	}
	query += " ORDER BY normalized_question ASC"

	rows, err := conn(ctx, r.db).QueryContext(ctx, query, args...)
	if err != nil {
		return nil, storeErr("list knowledge", err)
	}
	defer rows.Close()

	var entries []*secondary.KnowledgeRecord
	for rows.Next() {
		record, err := scanKnowledge(rows)
		var invalid *invalidRow
		if errors.As(err, &invalid) {
			r.quarantine.reject("knowledge", invalid.id, invalid.cause)
			continue
		}
		if err != nil {
			return nil, storeErr("scan knowledge", err)
		}
		entries = append(entries, record)
	}
	if err := rows.Err(); err != nil {
		return nil, storeErr("list knowledge", err)
	}
	return entries, nil
}

func scanKnowledge(s scanner) (*secondary.KnowledgeRecord, error) {
	var (
		learnedAt string
		source    sql.NullString
	)
	record := &secondary.KnowledgeRecord{}
	if err := s.Scan(&record.NormalizedQuestion, &record.Question, &record.Answer, &learnedAt, &source); err != nil {
		return nil, err
	}
	record.SourceRequestID = source.String

	var p timeParser
	record.LearnedAt = p.required(learnedAt, "learned_at")

	invalid := p.err
	switch {
	case invalid != nil:
	case record.NormalizedQuestion == "":
		invalid = fmt.Errorf("empty question")
	case record.Answer == "":
		invalid = fmt.Errorf("empty answer")
	}
	if invalid != nil {
		return record, &invalidRow{id: record.NormalizedQuestion, cause: invalid}
	}
	return record, nil
}

var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

func escapeLike(s string) string {
	return likeEscaper.Replace(s)
}
