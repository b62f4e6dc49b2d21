package queue

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"sync"

	"github.com/triagify/triagify-backend/internal/mailer"
)

// Handler performs the side effects behind each event: a notification mail
// for new screenings and an audit line for reviews. Both the worker and the
// inline publisher delegate to it.
type Handler struct {
	Mailer      mailer.Mailer
	FrontendURL string
	AuditPath   string // e.g. logs/review-audit.log

	mu sync.Mutex
}

// HandleAssigned mails the "new screening available" notice to the patient.
func (h *Handler) HandleAssigned(ctx context.Context, ev ScreeningAssignedEvent) error {
	msg := mailer.NewScreeningMessage(ev.PatientEmail, ev.PatientName, ev.DoctorName, mailer.PortalURL(h.FrontendURL))
	if err := h.Mailer.Send(ctx, msg); err != nil {
		return fmt.Errorf("notify patient %s: %w", ev.PatientID, err)
	}
	return nil
}

// HandleReviewed appends one audit line per review.
func (h *Handler) HandleReviewed(_ context.Context, ev ScreeningReviewedEvent) error {
	h.mu.Lock()
	defer h.mu.Unlock()

	if err := os.MkdirAll(filepath.Dir(h.AuditPath), 0o755); err != nil {
		return fmt.Errorf("mkdir audit dir: %w", err)
	}
	f, err := os.OpenFile(h.AuditPath, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		return fmt.Errorf("open audit log: %w", err)
	}
	defer f.Close()

	if _, err := f.WriteString(FormatReviewLine(ev)); err != nil {
		return fmt.Errorf("write audit log: %w", err)
	}
	return nil
}

// FormatReviewLine renders ev as a single newline-terminated line.
func FormatReviewLine(ev ScreeningReviewedEvent) string {
	line := fmt.Sprintf("[%s] Screening reviewed | screening_id=%s | patient_id=%s | doctor_id=%s | notes=%s",
		ev.ReviewedAt, ev.ScreeningID, ev.PatientID, ev.DoctorID, strconv.Quote(ev.Notes))
	if ev.Rereview() {
		prevDoctor, prevNotes := "-", `""`
		if ev.PreviousDoctorID != nil {
			prevDoctor = *ev.PreviousDoctorID
		}
		if ev.PreviousNotes != nil {
			prevNotes = strconv.Quote(*ev.PreviousNotes)
		}
		line += fmt.Sprintf(" | replaced doctor_id=%s notes=%s", prevDoctor, prevNotes)
	}
	return line + "\n"
}
