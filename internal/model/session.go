package model

import (
	"time"

	"github.com/google/uuid"
)

// OperatorContext identifies who is acting and on which session. It is built
// from the access token plus the X-Session-ID header and passed explicitly
// to every role-scoped operation.
type OperatorContext struct {
	SessionID string
	UserID    uuid.UUID
	Role      Role
	// PatientID is set only for the patient role: the operator's own record.
	PatientID *uuid.UUID
}

// ActivePatient is the session-scoped "patient currently in focus" for roles
// that act on behalf of a patient. Stored as an opaque JSON blob in the
// session KV.
type ActivePatient struct {
	PatientID  uuid.UUID `json:"patient_id"`
	NationalID string    `json:"national_id"`
	FullName   string    `json:"full_name"`
	SetAt      time.Time `json:"set_at"`
}

// LastSelection remembers the test an operator last picked so a screen
// reload does not force a re-pick. Cleared when the selection is fulfilled.
type LastSelection struct {
	ConsultationID uuid.UUID       `json:"consultation_id"`
	TestName       string          `json:"test_name"`
	Kind           DeliverableKind `json:"kind"`
	SelectedAt     time.Time       `json:"selected_at"`
}

type IdentifyPatientRequest struct {
	// NationalID is the decoded payload of a scanned patient QR code.
	NationalID string `json:"national_id" binding:"required"`
}
