package repository

import (
	"context"
	"database/sql"
	"errors"
	"strings"
	"time"

	"github.com/triagify/triagify-backend/internal/model"
)

// AssociationRepo maintains the doctor-patient links in `doctor_patients`.
type AssociationRepo struct {
	db *sql.DB
}

func NewAssociationRepo(db *sql.DB) *AssociationRepo {
	return &AssociationRepo{db: db}
}

// Associate links doctorID to patientID. Both ids must name users with the
// matching role, otherwise ErrUserNotFound is returned. An existing link
// yields ErrAssociationExists.
func (r *AssociationRepo) Associate(ctx context.Context, doctorID, patientID, assignedBy string) (model.Association, error) {
	a := model.Association{DoctorID: doctorID, PatientID: patientID, AssignedAt: time.Now().UTC()}
	if assignedBy != "" {
		a.AssignedBy = &assignedBy
	}
	err := withTx(ctx, r.db, func(tx *sql.Tx) error {
		var n int
		if err := tx.QueryRowContext(ctx,
			`SELECT COUNT(*) FROM users
			 WHERE (id = ? AND role = 'DOCTOR') OR (id = ? AND role = 'PATIENT')`,
			doctorID, patientID).Scan(&n); err != nil {
			return err
		}
		if n != 2 {
			return ErrUserNotFound
		}
		_, err := tx.ExecContext(ctx,
			"INSERT INTO doctor_patients (doctor_id, patient_id, assigned_by, assigned_at) VALUES (?,?,?,?)",
			a.DoctorID, a.PatientID, a.AssignedBy, a.AssignedAt)
		if isDuplicate(err) {
			return ErrAssociationExists
		}
		return err
	})
	if err != nil {
		return model.Association{}, err
	}
	return a, nil
}

// Disassociate removes the link, or returns ErrAssociationNotFound.
func (r *AssociationRepo) Disassociate(ctx context.Context, doctorID, patientID string) error {
	res, err := r.db.ExecContext(ctx,
		"DELETE FROM doctor_patients WHERE doctor_id = ? AND patient_id = ?", doctorID, patientID)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrAssociationNotFound
	}
	return nil
}

// IsAssociated reports whether the pair is linked.
func (r *AssociationRepo) IsAssociated(ctx context.Context, doctorID, patientID string) (bool, error) {
	var one int
	err := r.db.QueryRowContext(ctx,
		"SELECT 1 FROM doctor_patients WHERE doctor_id = ? AND patient_id = ? LIMIT 1",
		doctorID, patientID).Scan(&one)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	return err == nil, err
}

// List returns every association with both parties' names, newest first.
func (r *AssociationRepo) List(ctx context.Context) ([]model.AssociationView, error) {
	const q = `SELECT dp.doctor_id, dp.patient_id, dp.assigned_by, dp.assigned_at,
	                  d.full_name, d.email, p.full_name, p.email
	           FROM doctor_patients dp
	           JOIN users d ON d.id = dp.doctor_id
	           JOIN users p ON p.id = dp.patient_id
	           ORDER BY dp.assigned_at DESC`
	rows, err := r.db.QueryContext(ctx, q)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []model.AssociationView{}
	for rows.Next() {
		var (
			v  model.AssociationView
			by sql.NullString
		)
		if err := rows.Scan(&v.DoctorID, &v.PatientID, &by, &v.AssignedAt,
			&v.DoctorName, &v.DoctorEmail, &v.PatientName, &v.PatientEmail); err != nil {
			return nil, err
		}
		v.AssignedBy = nullString(by)
		out = append(out, v)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return out, nil
}

// PatientQuery filters and paginates a doctor's patient list.
type PatientQuery struct {
	DoctorID string
	Search   string
	Page     int
	PageSize int
}

// ListPatients returns only patients associated with q.DoctorID, optionally
// filtered by a case-insensitive substring of name or email, ordered by name,
// together with the total number of matches.
func (r *AssociationRepo) ListPatients(ctx context.Context, q PatientQuery) ([]model.UserSummary, int, error) {
	where := []string{"dp.doctor_id = ?"}
	args := []any{q.DoctorID}
	if s := strings.TrimSpace(q.Search); s != "" {
		where = append(where, "(LOWER(u.full_name) LIKE ? ESCAPE '!' OR LOWER(u.email) LIKE ? ESCAPE '!')")
		like := containsPattern(s)
		args = append(args, like, like)
	}
	cond := strings.Join(where, " AND ")

	var total int
	countSQL := `SELECT COUNT(*)
		FROM doctor_patients dp
		JOIN users u ON u.id = dp.patient_id
		WHERE ` + cond
	if err := r.db.QueryRowContext(ctx, countSQL, args...).Scan(&total); err != nil {
		return nil, 0, err
	}

	dataSQL := `SELECT u.id, u.email, u.full_name, u.role, u.specialty, u.created_at
		FROM doctor_patients dp
		JOIN users u ON u.id = dp.patient_id
		WHERE ` + cond + `
		ORDER BY u.full_name ASC
		LIMIT ? OFFSET ?`
	argsData := append(append([]any{}, args...), q.PageSize, (q.Page-1)*q.PageSize)

	rows, err := r.db.QueryContext(ctx, dataSQL, argsData...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()
	out, err := scanSummaries(rows)
	if err != nil {
		return nil, 0, err
	}
	return out, total, nil
}

// DoctorsForPatient lists the doctors linked to a patient.
func (r *AssociationRepo) DoctorsForPatient(ctx context.Context, patientID string) ([]model.UserSummary, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT u.id, u.email, u.full_name, u.role, u.specialty, u.created_at
		 FROM doctor_patients dp
		 JOIN users u ON u.id = dp.doctor_id
		 WHERE dp.patient_id = ?
		 ORDER BY u.full_name ASC`, patientID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanSummaries(rows)
}
