// Package seed installs the system administrator and the global question
// catalog. Running it twice is harmless.
package seed

import (
	"context"
	"errors"
	"fmt"

	"github.com/rs/zerolog"

	"github.com/triagify/triagify-backend/internal/config"
	"github.com/triagify/triagify-backend/internal/model"
	"github.com/triagify/triagify-backend/internal/utils"
)

type AdminStore interface {
	UpsertAdmin(ctx context.Context, email, fullName, hash string) error
}

type QuestionStore interface {
	UpsertGlobal(ctx context.Context, in model.QuestionInput) error
}

// ErrNoAdminPassword is returned when SEED_ADMIN_PASSWORD is empty.
var ErrNoAdminPassword = errors.New("seed: SEED_ADMIN_PASSWORD is required")

// GlobalQuestions is the catalog every patient sees.
var GlobalQuestions = []model.QuestionInput{
	{Text: "What is the main symptom that brings you to this appointment?", Category: "Symptoms", Type: model.QuestionOpenText},
	{Text: "How long have you had this symptom?", Category: "Symptoms", Type: model.QuestionOpenText},
	{Text: "On a scale from 0 to 10, how intense is the symptom?", Category: "Symptoms", Type: model.QuestionOpenText},
	{Text: "Do you smoke?", Category: "Habits", Type: model.QuestionYesNo},
	{
		Text: "How often do you drink alcohol?", Category: "Habits", Type: model.QuestionMultipleChoice,
		Options: []string{"Daily", "Weekly", "Monthly", "Rarely", "Never"},
	},
	{Text: "Do you exercise regularly?", Category: "Habits", Type: model.QuestionYesNo},
	{Text: "Do you have any chronic disease (e.g. diabetes, hypertension)? If so, which?", Category: "Medical History", Type: model.QuestionOpenText},
	{Text: "Have you ever had surgery? If so, which and when?", Category: "Medical History", Type: model.QuestionOpenText},
	{Text: "Do you have any known allergies (medication, food, etc.)?", Category: "Medical History", Type: model.QuestionOpenText},
}

// Run upserts the administrator from cfg and every global question.
func Run(ctx context.Context, admins AdminStore, questions QuestionStore, cfg config.SeedConfig, bcryptCost int, log zerolog.Logger) error {
	if cfg.AdminPassword == "" {
		return ErrNoAdminPassword
	}
	if err := utils.CheckPasswordPolicy(cfg.AdminPassword); err != nil {
		return fmt.Errorf("seed admin: %w", err)
	}
	hash, err := utils.HashPassword(cfg.AdminPassword, bcryptCost)
	if err != nil {
		return fmt.Errorf("hash admin password: %w", err)
	}
	if err := admins.UpsertAdmin(ctx, cfg.AdminEmail, cfg.AdminName, hash); err != nil {
		return fmt.Errorf("upsert admin: %w", err)
	}
	log.Info().Str("email", cfg.AdminEmail).Msg("administrator ready")

	for _, q := range GlobalQuestions {
		in, err := q.Normalize()
		if err != nil {
			return fmt.Errorf("question %q: %w", q.Text, err)
		}
		if err := questions.UpsertGlobal(ctx, in); err != nil {
			return fmt.Errorf("upsert question %q: %w", q.Text, err)
		}
		log.Debug().Str("text", in.Text).Msg("question seeded")
	}
	log.Info().Int("questions", len(GlobalQuestions)).Msg("global catalog ready")
	return nil
}
