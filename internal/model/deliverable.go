package model

import (
	"time"

	"github.com/google/uuid"
)

// DeliverableKind distinguishes lab reports from imaging results. A test
// name may be fulfilled once per kind per consultation.
type DeliverableKind string

const (
	KindReport DeliverableKind = "report"
	KindImage  DeliverableKind = "image"
)

func (k DeliverableKind) Valid() bool {
	return k == KindReport || k == KindImage
}

// Deliverable links a stored file to the requested test it fulfills.
// Immutable after creation.
type Deliverable struct {
	ID             uuid.UUID       `json:"id" db:"id"`
	PatientID      uuid.UUID       `json:"patient_id" db:"patient_id"`
	ConsultationID uuid.UUID       `json:"consultation_id" db:"consultation_id"`
	Kind           DeliverableKind `json:"kind" db:"kind"`
	TestName       string          `json:"test_name" db:"test_name"`
	Description    string          `json:"description" db:"description"`
	FileName       string          `json:"file_name" db:"file_name"`
	StoragePath    string          `json:"storage_path" db:"storage_path"`
	FileSize       int64           `json:"file_size" db:"file_size"`
	CreatedAt      time.Time       `json:"created_at" db:"created_at"`
}

// OpenTest is a requested test with no deliverable yet.
type OpenTest struct {
	TestName       string    `json:"test_name"`
	ConsultationID uuid.UUID `json:"consultation_id"`
	RequestedAt    time.Time `json:"requested_at"`
}
