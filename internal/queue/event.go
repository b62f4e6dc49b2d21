// Package queue defines the screening events exchanged over RabbitMQ, the
// publisher used by the API and the consumer run by the worker.
package queue

import (
	"time"

	"github.com/triagify/triagify-backend/internal/model"
)

// Queue names. Both queues are durable.
const (
	ScreeningAssignedQueue = "screening.assigned"
	ScreeningReviewedQueue = "screening.reviewed"
)

// ScreeningAssignedEvent is published when an administrator creates a
// screening for a patient on behalf of a doctor. It carries everything the
// consumer needs to notify the patient without querying the database.
type ScreeningAssignedEvent struct {
	ScreeningID  string `json:"screening_id"`
	PatientID    string `json:"patient_id"`
	PatientEmail string `json:"patient_email"`
	PatientName  string `json:"patient_name"`
	DoctorID     string `json:"doctor_id"`
	DoctorName   string `json:"doctor_name"`
	CreatedAt    string `json:"created_at"`
}

// ScreeningReviewedEvent is published after every review. The previous_*
// fields describe the review that was replaced, if any.
type ScreeningReviewedEvent struct {
	ScreeningID      string  `json:"screening_id"`
	PatientID        string  `json:"patient_id"`
	DoctorID         string  `json:"doctor_id"`
	Notes            string  `json:"notes"`
	PreviousStatus   string  `json:"previous_status"`
	PreviousDoctorID *string `json:"previous_doctor_id,omitempty"`
	PreviousNotes    *string `json:"previous_notes,omitempty"`
	ReviewedAt       string  `json:"reviewed_at"`
}

// Rereview reports whether the event replaced an earlier review.
func (e ScreeningReviewedEvent) Rereview() bool {
	return e.PreviousStatus == string(model.StatusReviewed)
}

// AssignedEvent builds the notification payload for a new screening.
func AssignedEvent(s model.Screening, patient, doctor model.User) ScreeningAssignedEvent {
	return ScreeningAssignedEvent{
		ScreeningID:  s.ID,
		PatientID:    patient.ID,
		PatientEmail: patient.Email,
		PatientName:  patient.FullName,
		DoctorID:     doctor.ID,
		DoctorName:   doctor.FullName,
		CreatedAt:    s.CreatedAt.UTC().Format(time.RFC3339),
	}
}

// ReviewedEvent converts a stored review into its audit event.
func ReviewedEvent(r model.ReviewRecord) ScreeningReviewedEvent {
	return ScreeningReviewedEvent{
		ScreeningID:      r.ScreeningID,
		PatientID:        r.PatientID,
		DoctorID:         r.DoctorID,
		Notes:            r.Notes,
		PreviousStatus:   string(r.PreviousStatus),
		PreviousDoctorID: r.PreviousDoctor,
		PreviousNotes:    r.PreviousNotes,
		ReviewedAt:       r.ReviewedAt.UTC().Format(time.RFC3339),
	}
}
