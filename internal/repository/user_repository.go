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

type UserRepo struct{ DB *sql.DB }

func NewUserRepo(db *sql.DB) *UserRepo { return &UserRepo{DB: db} }

const userColumns = "id, email, password_hash, full_name, role, specialty, password_reset_token, password_reset_expires, created_at, updated_at"

type rowScanner interface {
	Scan(dest ...any) error
}

func scanUser(row rowScanner) (model.User, error) {
	var (
		u         model.User
		role      string
		specialty sql.NullString
		resetTok  sql.NullString
		resetExp  sql.NullTime
	)
	err := row.Scan(&u.ID, &u.Email, &u.PasswordHash, &u.FullName, &role, &specialty, &resetTok, &resetExp, &u.CreatedAt, &u.UpdatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return model.User{}, ErrUserNotFound
		}
		return model.User{}, err
	}
	u.Role = model.Role(role)
	u.Specialty = nullString(specialty)
	u.PasswordResetToken = nullString(resetTok)
	u.PasswordResetExpires = nullTime(resetExp)
	return u, nil
}

// Create inserts a user with a fresh id. The email is stored lower case;
// a duplicate email yields ErrEmailExists.
func (r *UserRepo) Create(ctx context.Context, u *model.User) error {
	u.ID = uuid.NewString()
	u.Email = strings.ToLower(strings.TrimSpace(u.Email))
	now := time.Now().UTC()
	_, err := r.DB.ExecContext(ctx,
		"INSERT INTO users (id, email, password_hash, full_name, role, specialty, created_at, updated_at) VALUES (?,?,?,?,?,?,?,?)",
		u.ID, u.Email, u.PasswordHash, u.FullName, string(u.Role), u.Specialty, now, now)
	if err != nil {
		if isDuplicate(err) {
			return ErrEmailExists
		}
		return err
	}
	u.CreatedAt, u.UpdatedAt = now, now
	return nil
}

// GetByEmail fetches a user by normalized email.
func (r *UserRepo) GetByEmail(ctx context.Context, email string) (model.User, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	return scanUser(r.DB.QueryRowContext(ctx,
		"SELECT "+userColumns+" FROM users WHERE email=? LIMIT 1", email))
}

// GetByID fetches a user by id.
func (r *UserRepo) GetByID(ctx context.Context, id string) (model.User, error) {
	return scanUser(r.DB.QueryRowContext(ctx,
		"SELECT "+userColumns+" FROM users WHERE id=? LIMIT 1", id))
}

// GetByIDAndRole fetches a user only when it has the given role.
func (r *UserRepo) GetByIDAndRole(ctx context.Context, id string, role model.Role) (model.User, error) {
	return scanUser(r.DB.QueryRowContext(ctx,
		"SELECT "+userColumns+" FROM users WHERE id=? AND role=? LIMIT 1", id, string(role)))
}

// UpdateProfile changes the display name and, for doctors, the specialty.
// Nil arguments leave the column unchanged.
func (r *UserRepo) UpdateProfile(ctx context.Context, id string, fullName, specialty *string) (model.User, error) {
	sets := []string{"updated_at=?"}
	args := []any{time.Now().UTC()}
	if fullName != nil {
		sets = append(sets, "full_name=?")
		args = append(args, *fullName)
	}
	if specialty != nil {
		sets = append(sets, "specialty=?")
		args = append(args, *specialty)
	}
	args = append(args, id)
	res, err := r.DB.ExecContext(ctx, "UPDATE users SET "+strings.Join(sets, ", ")+" WHERE id=?", args...)
	if err != nil {
		return model.User{}, err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return model.User{}, ErrUserNotFound
	}
	return r.GetByID(ctx, id)
}

// UpdatePassword stores a new password hash.
func (r *UserRepo) UpdatePassword(ctx context.Context, id, hash string) error {
	res, err := r.DB.ExecContext(ctx,
		"UPDATE users SET password_hash=?, updated_at=? WHERE id=?", hash, time.Now().UTC(), id)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrUserNotFound
	}
	return nil
}

// SetResetToken records the hash of a password reset token and its expiry,
// replacing any earlier token.
func (r *UserRepo) SetResetToken(ctx context.Context, id, tokenHash string, exp time.Time) error {
	_, err := r.DB.ExecContext(ctx,
		"UPDATE users SET password_reset_token=?, password_reset_expires=? WHERE id=?",
		tokenHash, exp, id)
	return err
}

// ResetPassword consumes an unexpired reset token: the password hash is
// replaced and the token cleared in one transaction. It returns the id of
// the user whose password changed.
func (r *UserRepo) ResetPassword(ctx context.Context, tokenHash, newHash string, now time.Time) (string, error) {
	var userID string
	err := withTx(ctx, r.DB, func(tx *sql.Tx) error {
		err := tx.QueryRowContext(ctx,
			"SELECT id FROM users WHERE password_reset_token=? AND password_reset_expires > ? LIMIT 1 FOR UPDATE",
			tokenHash, now).Scan(&userID)
		if err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return ErrInvalidResetToken
			}
			return err
		}
		_, err = tx.ExecContext(ctx,
			"UPDATE users SET password_hash=?, password_reset_token=NULL, password_reset_expires=NULL, updated_at=? WHERE id=?",
			newHash, now, userID)
		return err
	})
	if err != nil {
		return "", err
	}
	return userID, nil
}

// UserFilter narrows the administrator's user search.
type UserFilter struct {
	Role   model.Role // empty: doctors and patients
	Search string
	Limit  int
}

// Search lists doctors and patients, optionally filtered by role and by a
// case-insensitive substring of name or email. Administrators are never listed.
func (r *UserRepo) Search(ctx context.Context, f UserFilter) ([]model.UserSummary, error) {
	where := []string{}
	args := []any{}
	if f.Role == model.RoleDoctor || f.Role == model.RolePatient {
		where = append(where, "role = ?")
		args = append(args, string(f.Role))
	} else {
		where = append(where, "role IN ('DOCTOR','PATIENT')")
	}
	if s := strings.TrimSpace(f.Search); s != "" {
		where = append(where, "(LOWER(full_name) LIKE ? ESCAPE '!' OR LOWER(email) LIKE ? ESCAPE '!')")
		like := containsPattern(s)
		args = append(args, like, like)
	}
	limit := f.Limit
	if limit <= 0 || limit > 100 {
		limit = 20
	}
	args = append(args, limit)

	rows, err := r.DB.QueryContext(ctx,
		"SELECT id, email, full_name, role, specialty, created_at FROM users WHERE "+
			strings.Join(where, " AND ")+" ORDER BY full_name ASC LIMIT ?", args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanSummaries(rows)
}

var likeEscaper = strings.NewReplacer("!", "!!", "%", "!%", "_", "!_")

// containsPattern turns s into a lower-case LIKE pattern matching s as a
// literal substring. It pairs with ESCAPE '!'.
func containsPattern(s string) string {
	return "%" + likeEscaper.Replace(strings.ToLower(s)) + "%"
}

func scanSummaries(rows *sql.Rows) ([]model.UserSummary, error) {
	out := []model.UserSummary{}
	for rows.Next() {
		var (
			s         model.UserSummary
			role      string
			specialty sql.NullString
		)
		if err := rows.Scan(&s.ID, &s.Email, &s.FullName, &role, &specialty, &s.CreatedAt); err != nil {
			return nil, err
		}
		s.Role = model.Role(role)
		s.Specialty = nullString(specialty)
		out = append(out, s)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return out, nil
}

// Delete removes a user and everything that references it in one
// transaction: the answers and screenings the user owns as a patient, the
// user's associations on either side, the user's private questions with
// their answers and the user's refresh tokens. Screenings the user reviewed
// are kept with their doctor reference cleared.
func (r *UserRepo) Delete(ctx context.Context, id string) error {
	return withTx(ctx, r.DB, func(tx *sql.Tx) error {
		var exists string
		if err := tx.QueryRowContext(ctx, "SELECT id FROM users WHERE id=? FOR UPDATE", id).Scan(&exists); err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return ErrUserNotFound
			}
			return err
		}
		steps := []struct {
			name string
			q    string
		}{
			{"patient answers", "DELETE a FROM answers a JOIN screenings s ON s.id = a.screening_id WHERE s.patient_id = ?"},
			{"patient screenings", "DELETE FROM screenings WHERE patient_id = ?"},
			{"doctor references", "UPDATE screenings SET doctor_id = NULL WHERE doctor_id = ?"},
			{"question answers", "DELETE a FROM answers a JOIN questions q ON q.id = a.question_id WHERE q.creator_id = ?"},
			{"questions", "DELETE FROM questions WHERE creator_id = ?"},
			{"associations", "DELETE FROM doctor_patients WHERE doctor_id = ? OR patient_id = ?"},
			{"assigned by", "UPDATE doctor_patients SET assigned_by = NULL WHERE assigned_by = ?"},
			{"refresh tokens", "DELETE FROM refresh_tokens WHERE user_id = ?"},
			{"user", "DELETE FROM users WHERE id = ?"},
		}
		for _, st := range steps {
			args := []any{id}
			if strings.Count(st.q, "?") == 2 {
				args = append(args, id)
			}
			if _, err := tx.ExecContext(ctx, st.q, args...); err != nil {
				return fmt.Errorf("delete %s: %w", st.name, err)
			}
		}
		return nil
	})
}

// UpsertAdmin creates the system administrator or refreshes its name and
// password when an ADMIN with that email already exists. An email held by a
// patient or doctor is left untouched and ErrEmailNotAdmin is returned.
func (r *UserRepo) UpsertAdmin(ctx context.Context, email, fullName, hash string) error {
	email = strings.ToLower(strings.TrimSpace(email))
	now := time.Now().UTC()
	return withTx(ctx, r.DB, func(tx *sql.Tx) error {
		var role string
		err := tx.QueryRowContext(ctx, "SELECT role FROM users WHERE email = ? FOR UPDATE", email).Scan(&role)
		switch {
		case errors.Is(err, sql.ErrNoRows):
			_, err = tx.ExecContext(ctx,
				`INSERT INTO users (id, email, password_hash, full_name, role, created_at, updated_at)
				 VALUES (?,?,?,?,?,?,?)`,
				uuid.NewString(), email, hash, fullName, string(model.RoleAdmin), now, now)
			return err
		case err != nil:
			return err
		case model.Role(role) != model.RoleAdmin:
			return fmt.Errorf("%w (%s is a %s)", ErrEmailNotAdmin, email, role)
		}
		_, err = tx.ExecContext(ctx,
			"UPDATE users SET full_name = ?, password_hash = ?, updated_at = ? WHERE email = ?",
			fullName, hash, now, email)
		return err
	})
}
