package handler

import (
	"context"
	"time"

	"github.com/triagify/triagify-backend/internal/model"
	"github.com/triagify/triagify-backend/internal/repository"
)

// The interfaces below list the repository methods each handler needs. The
// *repository.XxxRepo types satisfy them; tests use in-memory fakes.

type UserStore interface {
	Create(ctx context.Context, u *model.User) error
	GetByEmail(ctx context.Context, email string) (model.User, error)
	GetByID(ctx context.Context, id string) (model.User, error)
	GetByIDAndRole(ctx context.Context, id string, role model.Role) (model.User, error)
	UpdateProfile(ctx context.Context, id string, fullName, specialty *string) (model.User, error)
	UpdatePassword(ctx context.Context, id, hash string) error
	SetResetToken(ctx context.Context, id, tokenHash string, exp time.Time) error
	ResetPassword(ctx context.Context, tokenHash, newHash string, now time.Time) (string, error)
	Search(ctx context.Context, f repository.UserFilter) ([]model.UserSummary, error)
	Delete(ctx context.Context, id string) error
}

type TokenStore interface {
	StoreRefresh(ctx context.Context, userID, tokenHash string, exp time.Time) error
	ValidateRefresh(ctx context.Context, tokenHash string) (string, error)
	RevokeByHash(ctx context.Context, tokenHash string) error
	RevokeAllForUser(ctx context.Context, userID string) error
}

type ScreeningStore interface {
	Create(ctx context.Context, patientID string, doctorID *string) (model.Screening, error)
	GetOwned(ctx context.Context, id, patientID string) (model.Screening, error)
	Detail(ctx context.Context, id string) (model.ScreeningDetail, error)
	ReplaceAnswers(ctx context.Context, id, patientID string, answers []model.AnswerInput) (model.Screening, error)
	AppendExamSummary(ctx context.Context, id, patientID, section string) (string, error)
	Review(ctx context.Context, in repository.ReviewInput) (model.ReviewRecord, error)
	ListByPatient(ctx context.Context, patientID string) ([]model.ScreeningListItem, error)
	ListForUser(ctx context.Context, userID string) ([]model.ScreeningListItem, error)
	PendingReview(ctx context.Context, doctorID string) ([]model.ScreeningListItem, error)
	CountReviewedSince(ctx context.Context, doctorID string, since time.Time) (int, error)
	Delete(ctx context.Context, id string) error
}

type QuestionStore interface {
	ListVisible(ctx context.Context, creatorIDs ...string) ([]model.Question, error)
	Create(ctx context.Context, creatorID string, in model.QuestionInput) (model.Question, error)
	Update(ctx context.Context, id, creatorID string, in model.QuestionInput) (model.Question, error)
	Delete(ctx context.Context, id, creatorID string) error
}

type AssociationStore interface {
	Associate(ctx context.Context, doctorID, patientID, assignedBy string) (model.Association, error)
	Disassociate(ctx context.Context, doctorID, patientID string) error
	IsAssociated(ctx context.Context, doctorID, patientID string) (bool, error)
	List(ctx context.Context) ([]model.AssociationView, error)
	ListPatients(ctx context.Context, q repository.PatientQuery) ([]model.UserSummary, int, error)
	DoctorsForPatient(ctx context.Context, patientID string) ([]model.UserSummary, error)
}

var (
	_ UserStore        = (*repository.UserRepo)(nil)
	_ TokenStore       = (*repository.TokenRepo)(nil)
	_ ScreeningStore   = (*repository.ScreeningRepo)(nil)
	_ QuestionStore    = (*repository.QuestionRepo)(nil)
	_ AssociationStore = (*repository.AssociationRepo)(nil)
)
