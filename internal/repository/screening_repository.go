package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/triagify/triagify-backend/internal/model"
)

// ScreeningRepo holds the screening lifecycle queries. Every operation that
// touches more than one row runs in a single transaction.
type ScreeningRepo struct {
	db *sql.DB
}

func NewScreeningRepo(db *sql.DB) *ScreeningRepo {
	return &ScreeningRepo{db: db}
}

const screeningColumns = "s.id, s.status, s.patient_id, s.doctor_id, s.doctor_notes, s.exam_summary, s.reviewed_at, s.created_at, s.updated_at"

func screeningDest(s *model.Screening, status *string, doctor, notes, summary *sql.NullString, reviewed *sql.NullTime) []any {
	return []any{&s.ID, status, &s.PatientID, doctor, notes, summary, reviewed, &s.CreatedAt, &s.UpdatedAt}
}

func fillScreening(s *model.Screening, status string, doctor, notes, summary sql.NullString, reviewed sql.NullTime) {
	s.Status = model.ScreeningStatus(status)
	s.DoctorID = nullString(doctor)
	s.DoctorNotes = nullString(notes)
	s.ExamSummary = nullString(summary)
	s.ReviewedAt = nullTime(reviewed)
}

func scanScreening(row rowScanner, extra ...any) (model.Screening, error) {
	var (
		s                      model.Screening
		status                 string
		doctor, notes, summary sql.NullString
		reviewed               sql.NullTime
	)
	dest := append(screeningDest(&s, &status, &doctor, &notes, &summary, &reviewed), extra...)
	if err := row.Scan(dest...); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return model.Screening{}, ErrScreeningNotFound
		}
		return model.Screening{}, err
	}
	fillScreening(&s, status, doctor, notes, summary, reviewed)
	return s, nil
}

// Create inserts a PENDING screening for patientID, optionally assigned to
// doctorID.
func (r *ScreeningRepo) Create(ctx context.Context, patientID string, doctorID *string) (model.Screening, error) {
	now := time.Now().UTC()
	s := model.Screening{
		ID:        uuid.NewString(),
		Status:    model.StatusPending,
		PatientID: patientID,
		DoctorID:  doctorID,
		CreatedAt: now,
		UpdatedAt: now,
	}
	_, err := r.db.ExecContext(ctx,
		"INSERT INTO screenings (id, status, patient_id, doctor_id, created_at, updated_at) VALUES (?,?,?,?,?,?)",
		s.ID, string(s.Status), s.PatientID, s.DoctorID, now, now)
	if err != nil {
		return model.Screening{}, err
	}
	return s, nil
}

// GetByID fetches a screening regardless of owner.
func (r *ScreeningRepo) GetByID(ctx context.Context, id string) (model.Screening, error) {
	return scanScreening(r.db.QueryRowContext(ctx,
		"SELECT "+screeningColumns+" FROM screenings s WHERE s.id = ?", id))
}

// GetOwned fetches a screening only when patientID owns it. Absent and
// foreign screenings both yield ErrScreeningNotFound.
func (r *ScreeningRepo) GetOwned(ctx context.Context, id, patientID string) (model.Screening, error) {
	return scanScreening(r.db.QueryRowContext(ctx,
		"SELECT "+screeningColumns+" FROM screenings s WHERE s.id = ? AND s.patient_id = ?", id, patientID))
}

// Answers lists the answers of a screening joined with their questions.
func (r *ScreeningRepo) Answers(ctx context.Context, screeningID string) ([]model.AnswerDetail, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT a.id, a.screening_id, a.question_id, a.value, q.text, q.category, q.type
		 FROM answers a
		 JOIN questions q ON q.id = a.question_id
		 WHERE a.screening_id = ?
		 ORDER BY q.category ASC, q.text ASC`, screeningID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []model.AnswerDetail{}
	for rows.Next() {
		var (
			a   model.AnswerDetail
			typ string
		)
		if err := rows.Scan(&a.ID, &a.ScreeningID, &a.QuestionID, &a.Value, &a.QuestionText, &a.QuestionCategory, &typ); err != nil {
			return nil, err
		}
		a.QuestionType = model.QuestionType(typ)
		out = append(out, a)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return out, nil
}

// Detail loads a screening with its patient, assigned doctor and answers.
func (r *ScreeningRepo) Detail(ctx context.Context, id string) (model.ScreeningDetail, error) {
	var (
		d          model.ScreeningDetail
		doctorName sql.NullString
	)
	s, err := scanScreening(r.db.QueryRowContext(ctx,
		`SELECT `+screeningColumns+`, p.full_name, p.email, d.full_name
		 FROM screenings s
		 JOIN users p ON p.id = s.patient_id
		 LEFT JOIN users d ON d.id = s.doctor_id
		 WHERE s.id = ?`, id), &d.PatientName, &d.PatientEmail, &doctorName)
	if err != nil {
		return model.ScreeningDetail{}, err
	}
	d.Screening = s
	d.DoctorName = nullString(doctorName)
	if d.Answers, err = r.Answers(ctx, id); err != nil {
		return model.ScreeningDetail{}, err
	}
	return d, nil
}

// ReplaceAnswers swaps the full answer set of a screening owned by
// patientID and moves it to COMPLETED. The ownership check, the delete,
// the insert and the status change commit or fail together.
func (r *ScreeningRepo) ReplaceAnswers(ctx context.Context, id, patientID string, answers []model.AnswerInput) (model.Screening, error) {
	seen := make(map[string]bool, len(answers))
	for _, a := range answers {
		if seen[a.QuestionID] {
			return model.Screening{}, fmt.Errorf("%w: %s", ErrDuplicateAnswer, a.QuestionID)
		}
		seen[a.QuestionID] = true
	}

	var out model.Screening
	err := withTx(ctx, r.db, func(tx *sql.Tx) error {
		s, err := scanScreening(tx.QueryRowContext(ctx,
			"SELECT "+screeningColumns+" FROM screenings s WHERE s.id = ? AND s.patient_id = ? FOR UPDATE", id, patientID))
		if err != nil {
			return err
		}
		next, err := model.Transition(s.Status, model.EventSubmitAnswers)
		if err != nil {
			return err
		}
		if _, err := tx.ExecContext(ctx, "DELETE FROM answers WHERE screening_id = ?", id); err != nil {
			return err
		}
		if len(answers) > 0 {
			if err := insertAnswersTx(ctx, tx, id, answers); err != nil {
				return err
			}
		}
		now := time.Now().UTC()
		if _, err := tx.ExecContext(ctx,
			"UPDATE screenings SET status = ?, updated_at = ? WHERE id = ?", string(next), now, id); err != nil {
			return err
		}
		s.Status, s.UpdatedAt = next, now
		out = s
		return nil
	})
	return out, err
}

// insertAnswersTx writes all answers with one multi-row INSERT.
func insertAnswersTx(ctx context.Context, tx *sql.Tx, screeningID string, answers []model.AnswerInput) error {
	var b strings.Builder
	b.WriteString("INSERT INTO answers (id, screening_id, question_id, value) VALUES ")
	args := make([]any, 0, len(answers)*4)
	for i, a := range answers {
		if i > 0 {
			b.WriteString(",")
		}
		b.WriteString("(?,?,?,?)")
		args = append(args, uuid.NewString(), screeningID, a.QuestionID, a.Value)
	}
	if _, err := tx.ExecContext(ctx, b.String(), args...); err != nil {
		switch {
		case isForeignKey(err):
			return ErrUnknownQuestion
		case isDuplicate(err):
			return ErrDuplicateAnswer
		}
		return err
	}
	return nil
}

// AppendExamSummary appends section to the exam summary of a screening owned
// by patientID and returns the resulting text. The status is not touched.
func (r *ScreeningRepo) AppendExamSummary(ctx context.Context, id, patientID, section string) (string, error) {
	var out string
	err := withTx(ctx, r.db, func(tx *sql.Tx) error {
		var summary sql.NullString
		err := tx.QueryRowContext(ctx,
			"SELECT exam_summary FROM screenings WHERE id = ? AND patient_id = ? FOR UPDATE", id, patientID).Scan(&summary)
		if err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return ErrScreeningNotFound
			}
			return err
		}
		out = model.AppendExamSummary(nullString(summary), section)
		_, err = tx.ExecContext(ctx,
			"UPDATE screenings SET exam_summary = ?, updated_at = ? WHERE id = ?", out, time.Now().UTC(), id)
		return err
	})
	return out, err
}

// ReviewInput describes one doctor review.
type ReviewInput struct {
	ScreeningID string
	DoctorID    string
	Notes       string
	// RequireAssociation rejects reviewers not linked to the patient with
	// ErrScreeningNotFound.
	RequireAssociation bool
}

// Review moves a screening to REVIEWED and stamps the reviewing doctor and
// notes, replacing any earlier review. The returned record carries what was
// replaced.
func (r *ScreeningRepo) Review(ctx context.Context, in ReviewInput) (model.ReviewRecord, error) {
	var rec model.ReviewRecord
	err := withTx(ctx, r.db, func(tx *sql.Tx) error {
		s, err := scanScreening(tx.QueryRowContext(ctx,
			"SELECT "+screeningColumns+" FROM screenings s WHERE s.id = ? FOR UPDATE", in.ScreeningID))
		if err != nil {
			return err
		}
		if in.RequireAssociation {
			var one int
			err := tx.QueryRowContext(ctx,
				"SELECT 1 FROM doctor_patients WHERE doctor_id = ? AND patient_id = ? LIMIT 1",
				in.DoctorID, s.PatientID).Scan(&one)
			if errors.Is(err, sql.ErrNoRows) {
				return ErrScreeningNotFound
			}
			if err != nil {
				return err
			}
		}
		next, err := model.Transition(s.Status, model.EventReview)
		if err != nil {
			return err
		}
		now := time.Now().UTC()
		if _, err := tx.ExecContext(ctx,
			"UPDATE screenings SET status = ?, doctor_notes = ?, doctor_id = ?, reviewed_at = ?, updated_at = ? WHERE id = ?",
			string(next), in.Notes, in.DoctorID, now, now, s.ID); err != nil {
			return err
		}
		rec = model.ReviewRecord{
			ScreeningID:    s.ID,
			PatientID:      s.PatientID,
			DoctorID:       in.DoctorID,
			Notes:          in.Notes,
			PreviousStatus: s.Status,
			PreviousDoctor: s.DoctorID,
			PreviousNotes:  s.DoctorNotes,
			ReviewedAt:     now,
		}
		return nil
	})
	return rec, err
}

func (r *ScreeningRepo) listItems(ctx context.Context, q string, args ...any) ([]model.ScreeningListItem, error) {
	rows, err := r.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []model.ScreeningListItem{}
	for rows.Next() {
		var (
			item       model.ScreeningListItem
			doctorName sql.NullString
		)
		s, err := scanScreening(rows, &item.PatientName, &doctorName)
		if err != nil {
			return nil, err
		}
		item.Screening = s
		item.DoctorName = nullString(doctorName)
		out = append(out, item)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return out, nil
}

const listItemFrom = `, p.full_name, d.full_name
	FROM screenings s
	JOIN users p ON p.id = s.patient_id
	LEFT JOIN users d ON d.id = s.doctor_id`

// ListByPatient returns a patient's screenings, newest first.
func (r *ScreeningRepo) ListByPatient(ctx context.Context, patientID string) ([]model.ScreeningListItem, error) {
	return r.listItems(ctx,
		"SELECT "+screeningColumns+listItemFrom+" WHERE s.patient_id = ? ORDER BY s.created_at DESC", patientID)
}

// ListForUser returns the screenings a user owns as patient or was assigned
// as doctor, newest first.
func (r *ScreeningRepo) ListForUser(ctx context.Context, userID string) ([]model.ScreeningListItem, error) {
	return r.listItems(ctx,
		"SELECT "+screeningColumns+listItemFrom+" WHERE s.patient_id = ? OR s.doctor_id = ? ORDER BY s.created_at DESC",
		userID, userID)
}

// PendingReview lists COMPLETED screenings of patients associated with
// doctorID, most recently updated first.
func (r *ScreeningRepo) PendingReview(ctx context.Context, doctorID string) ([]model.ScreeningListItem, error) {
	return r.listItems(ctx,
		"SELECT "+screeningColumns+listItemFrom+`
		 JOIN doctor_patients dp ON dp.patient_id = s.patient_id AND dp.doctor_id = ?
		 WHERE s.status = ?
		 ORDER BY s.updated_at DESC`,
		doctorID, string(model.StatusCompleted))
}

// CountReviewedSince counts screenings doctorID reviewed at or after since.
func (r *ScreeningRepo) CountReviewedSince(ctx context.Context, doctorID string, since time.Time) (int, error) {
	var n int
	err := r.db.QueryRowContext(ctx,
		"SELECT COUNT(*) FROM screenings WHERE doctor_id = ? AND status = ? AND reviewed_at >= ?",
		doctorID, string(model.StatusReviewed), since.UTC()).Scan(&n)
	return n, err
}

// Delete removes a screening and its answers.
func (r *ScreeningRepo) Delete(ctx context.Context, id string) error {
	return withTx(ctx, r.db, func(tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx, "DELETE FROM answers WHERE screening_id = ?", id); err != nil {
			return err
		}
		res, err := tx.ExecContext(ctx, "DELETE FROM screenings WHERE id = ?", id)
		if err != nil {
			return err
		}
		if n, _ := res.RowsAffected(); n == 0 {
			return ErrScreeningNotFound
		}
		return nil
	})
}
