package model

import (
	"strings"
	"time"
)

// Role is the access role carried by a user and embedded in its tokens.
type Role string

const (
	RolePatient Role = "PATIENT"
	RoleDoctor  Role = "DOCTOR"
	RoleAdmin   Role = "ADMIN"
)

// ParseRole normalises a client-supplied role. Only the roles a user may
// pick for themselves are accepted; an empty value means PATIENT.
func ParseRole(s string) (Role, bool) {
	switch Role(strings.ToUpper(strings.TrimSpace(s))) {
	case "", RolePatient:
		return RolePatient, true
	case RoleDoctor:
		return RoleDoctor, true
	}
	return "", false
}

func (r Role) Valid() bool {
	return r == RolePatient || r == RoleDoctor || r == RoleAdmin
}

// User represents a row of the `users` table.
//
// Fields:
//
//	ID                   – UUID primary key.
//	Email                – unique, stored lower case.
//	PasswordHash         – bcrypt hash, never serialised.
//	FullName             – display name.
//	Role                 – PATIENT, DOCTOR or ADMIN.
//	Specialty            – doctors only.
//	PasswordResetToken   – SHA-256 hex of the outstanding reset token.
//	PasswordResetExpires – expiry of that token.
type User struct {
	ID                   string     `json:"id"`
	Email                string     `json:"email"`
	PasswordHash         string     `json:"-"`
	FullName             string     `json:"fullName"`
	Role                 Role       `json:"role"`
	Specialty            *string    `json:"specialty,omitempty"`
	PasswordResetToken   *string    `json:"-"`
	PasswordResetExpires *time.Time `json:"-"`
	CreatedAt            time.Time  `json:"createdAt"`
	UpdatedAt            time.Time  `json:"updatedAt"`
}

// UserSummary is the public projection of a user used in listings.
type UserSummary struct {
	ID        string    `json:"id"`
	Email     string    `json:"email"`
	FullName  string    `json:"fullName"`
	Role      Role      `json:"role"`
	Specialty *string   `json:"specialty,omitempty"`
	CreatedAt time.Time `json:"createdAt"`
}

func (u User) Summary() UserSummary {
	return UserSummary{
		ID:        u.ID,
		Email:     u.Email,
		FullName:  u.FullName,
		Role:      u.Role,
		Specialty: u.Specialty,
		CreatedAt: u.CreatedAt,
	}
}

// RefreshToken models an entry in the `refresh_tokens` table. Only the
// SHA-256 hex digest of the token handed to the client is stored.
type RefreshToken struct {
	ID        uint64
	UserID    string
	TokenHash string
	ExpiresAt time.Time
	RevokedAt *time.Time
	CreatedAt time.Time
}
