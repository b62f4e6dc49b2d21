package model

import (
	"errors"
	"strings"
	"time"

	"github.com/samber/lo"
)

// QuestionType is the answer format of a catalog question.
type QuestionType string

const (
	QuestionYesNo          QuestionType = "YES_NO"
	QuestionOpenText       QuestionType = "OPEN_TEXT"
	QuestionMultipleChoice QuestionType = "MULTIPLE_CHOICE"
)

func (t QuestionType) Valid() bool {
	return t == QuestionYesNo || t == QuestionOpenText || t == QuestionMultipleChoice
}

// Question mirrors the `questions` table. A nil CreatorID marks a global
// question visible to everyone; otherwise it is private to its creator.
type Question struct {
	ID        string       `json:"id"`
	Text      string       `json:"text"`
	Category  string       `json:"category"`
	Type      QuestionType `json:"type"`
	Options   []string     `json:"options"`
	CreatorID *string      `json:"creatorId"`
	CreatedAt time.Time    `json:"createdAt"`
	UpdatedAt time.Time    `json:"updatedAt"`
}

func (q Question) Global() bool { return q.CreatorID == nil }

var (
	ErrQuestionText     = errors.New("text is required")
	ErrQuestionCategory = errors.New("category is required")
	ErrQuestionType     = errors.New("type must be YES_NO, OPEN_TEXT or MULTIPLE_CHOICE")
	ErrQuestionOptions  = errors.New("options are required for MULTIPLE_CHOICE questions")
)

// QuestionInput carries the editable fields of a question.
type QuestionInput struct {
	Text     string       `json:"text"`
	Category string       `json:"category"`
	Type     QuestionType `json:"type"`
	Options  []string     `json:"options"`
}

// Normalize trims every field, drops blank and repeated options and checks
// that options are present exactly when the type is MULTIPLE_CHOICE.
func (in QuestionInput) Normalize() (QuestionInput, error) {
	out := QuestionInput{
		Text:     strings.TrimSpace(in.Text),
		Category: strings.TrimSpace(in.Category),
		Type:     QuestionType(strings.ToUpper(strings.TrimSpace(string(in.Type)))),
	}
	if out.Text == "" {
		return out, ErrQuestionText
	}
	if out.Category == "" {
		return out, ErrQuestionCategory
	}
	if !out.Type.Valid() {
		return out, ErrQuestionType
	}
	opts := lo.Uniq(lo.FilterMap(in.Options, func(o string, _ int) (string, bool) {
		o = strings.TrimSpace(o)
		return o, o != ""
	}))
	if out.Type == QuestionMultipleChoice {
		if len(opts) == 0 {
			return out, ErrQuestionOptions
		}
		out.Options = opts
	} else {
		out.Options = []string{}
	}
	return out, nil
}
