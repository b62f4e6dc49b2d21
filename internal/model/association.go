package model

import "time"

// Association links a doctor to a patient in `doctor_patients`.
type Association struct {
	DoctorID   string    `json:"doctorId"`
	PatientID  string    `json:"patientId"`
	AssignedBy *string   `json:"assignedBy"`
	AssignedAt time.Time `json:"assignedAt"`
}

// AssociationView is an association with both parties' names.
type AssociationView struct {
	Association
	DoctorName   string `json:"doctorName"`
	DoctorEmail  string `json:"doctorEmail"`
	PatientName  string `json:"patientName"`
	PatientEmail string `json:"patientEmail"`
}

// PatientDetail is what an administrator sees for one patient.
type PatientDetail struct {
	UserSummary
	AssociatedDoctors []UserSummary       `json:"associatedDoctors"`
	Screenings        []ScreeningListItem `json:"screenings"`
}
