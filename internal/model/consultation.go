package model

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"
)

// Consultation is one clinical encounter. The requested-test lists are fixed
// at creation: ordering a test again later requires a new consultation.
type Consultation struct {
	Base
	PatientID             uuid.UUID       `json:"patient_id" db:"patient_id"`
	AuthorID              uuid.UUID       `json:"author_id" db:"author_id"`
	Date                  time.Time       `json:"date" db:"date"`
	Reason                string          `json:"reason" db:"reason"`
	Diagnoses             pq.StringArray  `json:"diagnoses" db:"diagnoses"`
	PrescriptionsJSON     json.RawMessage `json:"-" db:"prescriptions"`
	Prescriptions         []Prescription  `json:"prescriptions" db:"-"`
	RequestedLabTests     pq.StringArray  `json:"requested_lab_tests" db:"requested_lab_tests"`
	RequestedImagingTests pq.StringArray  `json:"requested_imaging_tests" db:"requested_imaging_tests"`
	Notes                 string          `json:"notes" db:"notes"`
}

type Prescription struct {
	Name string `json:"name"`
}

// RequestedTests returns the ordered request list for a deliverable kind.
func (c *Consultation) RequestedTests(kind DeliverableKind) []string {
	switch kind {
	case KindReport:
		return c.RequestedLabTests
	case KindImage:
		return c.RequestedImagingTests
	}
	return nil
}

type CreateConsultationRequest struct {
	PatientID             string         `json:"patient_id" binding:"required,uuid"`
	Date                  time.Time      `json:"date"`
	Reason                string         `json:"reason" binding:"required"`
	Diagnoses             []string       `json:"diagnoses"`
	Prescriptions         []Prescription `json:"prescriptions"`
	RequestedLabTests     []string       `json:"requested_lab_tests"`
	RequestedImagingTests []string       `json:"requested_imaging_tests"`
	Notes                 string         `json:"notes"`
}
