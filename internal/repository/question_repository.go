package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/samber/lo"

	"github.com/triagify/triagify-backend/internal/model"
)

// QuestionRepo encapsulates the question catalog queries.
type QuestionRepo struct {
	db *sql.DB
}

func NewQuestionRepo(db *sql.DB) *QuestionRepo {
	return &QuestionRepo{db: db}
}

const questionColumns = "id, text, category, type, options, creator_id, created_at, updated_at"

func scanQuestion(row rowScanner) (model.Question, error) {
	var (
		q       model.Question
		typ     string
		options []byte
		creator sql.NullString
	)
	if err := row.Scan(&q.ID, &q.Text, &q.Category, &typ, &options, &creator, &q.CreatedAt, &q.UpdatedAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return model.Question{}, ErrQuestionNotFound
		}
		return model.Question{}, err
	}
	q.Type = model.QuestionType(typ)
	q.CreatorID = nullString(creator)
	q.Options = []string{}
	if len(options) > 0 {
		if err := json.Unmarshal(options, &q.Options); err != nil {
			return model.Question{}, err
		}
	}
	return q, nil
}

func encodeOptions(opts []string) ([]byte, error) {
	if opts == nil {
		opts = []string{}
	}
	return json.Marshal(opts)
}

// ListVisible returns the global questions plus those created by any of
// creatorIDs, ordered by category and then text.
func (r *QuestionRepo) ListVisible(ctx context.Context, creatorIDs ...string) ([]model.Question, error) {
	ids := lo.Uniq(lo.Compact(creatorIDs))
	cond := "creator_id IS NULL"
	args := make([]any, 0, len(ids))
	if len(ids) > 0 {
		cond += " OR creator_id IN (" + strings.TrimSuffix(strings.Repeat("?,", len(ids)), ",") + ")"
		args = append(args, lo.ToAnySlice(ids)...)
	}
	rows, err := r.db.QueryContext(ctx,
		"SELECT "+questionColumns+" FROM questions WHERE "+cond+" ORDER BY category ASC, text ASC", args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []model.Question{}
	for rows.Next() {
		q, err := scanQuestion(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, q)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return out, nil
}

// GetByID fetches one question.
func (r *QuestionRepo) GetByID(ctx context.Context, id string) (model.Question, error) {
	return scanQuestion(r.db.QueryRowContext(ctx, "SELECT "+questionColumns+" FROM questions WHERE id = ?", id))
}

// Create inserts a question owned by creatorID. The input must already be
// normalised. Duplicate text yields ErrQuestionExists.
func (r *QuestionRepo) Create(ctx context.Context, creatorID string, in model.QuestionInput) (model.Question, error) {
	opts, err := encodeOptions(in.Options)
	if err != nil {
		return model.Question{}, err
	}
	now := time.Now().UTC()
	q := model.Question{
		ID:        uuid.NewString(),
		Text:      in.Text,
		Category:  in.Category,
		Type:      in.Type,
		Options:   in.Options,
		CreatorID: &creatorID,
		CreatedAt: now,
		UpdatedAt: now,
	}
	_, err = r.db.ExecContext(ctx,
		"INSERT INTO questions (id, text, category, type, options, creator_id, created_at, updated_at) VALUES (?,?,?,?,?,?,?,?)",
		q.ID, q.Text, q.Category, string(q.Type), opts, creatorID, now, now)
	if err != nil {
		if isDuplicate(err) {
			return model.Question{}, ErrQuestionExists
		}
		return model.Question{}, err
	}
	return q, nil
}

// Update replaces the editable fields of a question created by creatorID.
// Questions that do not exist or belong to someone else yield
// ErrQuestionNotFound.
func (r *QuestionRepo) Update(ctx context.Context, id, creatorID string, in model.QuestionInput) (model.Question, error) {
	opts, err := encodeOptions(in.Options)
	if err != nil {
		return model.Question{}, err
	}
	var out model.Question
	err = withTx(ctx, r.db, func(tx *sql.Tx) error {
		cur, err := scanQuestion(tx.QueryRowContext(ctx,
			"SELECT "+questionColumns+" FROM questions WHERE id = ? AND creator_id = ? FOR UPDATE", id, creatorID))
		if err != nil {
			return err
		}
		now := time.Now().UTC()
		if _, err := tx.ExecContext(ctx,
			"UPDATE questions SET text = ?, category = ?, type = ?, options = ?, updated_at = ? WHERE id = ?",
			in.Text, in.Category, string(in.Type), opts, now, id); err != nil {
			if isDuplicate(err) {
				return ErrQuestionExists
			}
			return err
		}
		cur.Text, cur.Category, cur.Type, cur.Options, cur.UpdatedAt = in.Text, in.Category, in.Type, in.Options, now
		out = cur
		return nil
	})
	return out, err
}

// Delete removes a question created by creatorID together with every answer
// given to it.
func (r *QuestionRepo) Delete(ctx context.Context, id, creatorID string) error {
	return withTx(ctx, r.db, func(tx *sql.Tx) error {
		var found string
		err := tx.QueryRowContext(ctx,
			"SELECT id FROM questions WHERE id = ? AND creator_id = ? FOR UPDATE", id, creatorID).Scan(&found)
		if err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return ErrQuestionNotFound
			}
			return err
		}
		if _, err := tx.ExecContext(ctx, "DELETE FROM answers WHERE question_id = ?", id); err != nil {
			return err
		}
		_, err = tx.ExecContext(ctx, "DELETE FROM questions WHERE id = ?", id)
		return err
	})
}

// UpsertGlobal creates a global question or refreshes its category, type and
// options when a question with the same text exists.
func (r *QuestionRepo) UpsertGlobal(ctx context.Context, in model.QuestionInput) error {
	opts, err := encodeOptions(in.Options)
	if err != nil {
		return err
	}
	now := time.Now().UTC()
	_, err = r.db.ExecContext(ctx,
		`INSERT INTO questions (id, text, category, type, options, creator_id, created_at, updated_at)
		 VALUES (?,?,?,?,?,NULL,?,?)
		 ON DUPLICATE KEY UPDATE category=VALUES(category), type=VALUES(type), options=VALUES(options), updated_at=VALUES(updated_at)`,
		uuid.NewString(), in.Text, in.Category, string(in.Type), opts, now, now)
	return err
}
