package model

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

// ScreeningStatus is the lifecycle state of a screening.
type ScreeningStatus string

const (
	StatusPending   ScreeningStatus = "PENDING"
	StatusCompleted ScreeningStatus = "COMPLETED"
	StatusReviewed  ScreeningStatus = "REVIEWED"
)

func (s ScreeningStatus) Valid() bool {
	return s == StatusPending || s == StatusCompleted || s == StatusReviewed
}

// ScreeningEvent is an operation that moves a screening between states.
type ScreeningEvent string

const (
	EventSubmitAnswers ScreeningEvent = "submit_answers"
	EventReview        ScreeningEvent = "review"
)

// ErrInvalidTransition is returned when an event is not allowed from the
// screening's current state.
var ErrInvalidTransition = errors.New("invalid screening transition")

// transitions lists the target state for every allowed (state, event)
// pair. Attaching an exam document is not an event: it never changes status.
var transitions = map[ScreeningStatus]map[ScreeningEvent]ScreeningStatus{
	StatusPending: {
		EventSubmitAnswers: StatusCompleted,
		EventReview:        StatusReviewed,
	},
	StatusCompleted: {
		EventSubmitAnswers: StatusCompleted,
		EventReview:        StatusReviewed,
	},
	StatusReviewed: {
		EventReview: StatusReviewed,
	},
}

// Transition returns the state reached by applying ev to from.
func Transition(from ScreeningStatus, ev ScreeningEvent) (ScreeningStatus, error) {
	if to, ok := transitions[from][ev]; ok {
		return to, nil
	}
	return from, fmt.Errorf("%w: %s from %s", ErrInvalidTransition, ev, from)
}

// Screening mirrors the `screenings` table.
type Screening struct {
	ID          string          `json:"id"`
	Status      ScreeningStatus `json:"status"`
	PatientID   string          `json:"patientId"`
	DoctorID    *string         `json:"doctorId"`
	DoctorNotes *string         `json:"doctorNotes"`
	ExamSummary *string         `json:"examSummary"`
	ReviewedAt  *time.Time      `json:"reviewedAt,omitempty"`
	CreatedAt   time.Time       `json:"createdAt"`
	UpdatedAt   time.Time       `json:"updatedAt"`
}

// Answer is one (screening, question) response.
type Answer struct {
	ID          string `json:"id"`
	ScreeningID string `json:"screeningId"`
	QuestionID  string `json:"questionId"`
	Value       string `json:"value"`
}

// AnswerInput is a submitted answer before it is persisted.
type AnswerInput struct {
	QuestionID string `json:"questionId"`
	Value      string `json:"value"`
}

// AnswerDetail is an answer joined with its question.
type AnswerDetail struct {
	Answer
	QuestionText     string       `json:"questionText"`
	QuestionCategory string       `json:"questionCategory"`
	QuestionType     QuestionType `json:"questionType"`
}

// ScreeningDetail is the full view of a screening with its patient and answers.
type ScreeningDetail struct {
	Screening
	PatientName  string         `json:"patientName"`
	PatientEmail string         `json:"patientEmail"`
	DoctorName   *string        `json:"doctorName,omitempty"`
	Answers      []AnswerDetail `json:"answers"`
}

// ScreeningListItem is a screening row with the names used by dashboards.
type ScreeningListItem struct {
	Screening
	PatientName string  `json:"patientName"`
	DoctorName  *string `json:"doctorName,omitempty"`
}

// ReviewRecord captures what a review replaced so re-reviews can be audited.
type ReviewRecord struct {
	ScreeningID    string
	PatientID      string
	DoctorID       string
	Notes          string
	PreviousStatus ScreeningStatus
	PreviousDoctor *string
	PreviousNotes  *string
	ReviewedAt     time.Time
}

// Rereview reports whether the review overwrote an earlier one.
func (r ReviewRecord) Rereview() bool {
	return r.PreviousStatus == StatusReviewed
}

// ExamSection formats one analysed document for the exam summary.
func ExamSection(filename, summary string) string {
	name := strings.TrimSpace(filename)
	if name == "" {
		name = "unnamed"
	}
	return fmt.Sprintf("--- Exam summary (%s) ---\n%s", name, strings.TrimSpace(summary))
}

// AppendExamSummary returns prev with section appended, separated by a blank
// line. Prior content is never rewritten.
func AppendExamSummary(prev *string, section string) string {
	if prev == nil || *prev == "" {
		return section
	}
	return *prev + "\n\n" + section
}
