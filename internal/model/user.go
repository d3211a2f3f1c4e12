package model

import "github.com/google/uuid"

// Role determines which screens a user sees and whether operations act on
// the user's own record or on the session's active patient.
type Role string

const (
	RolePatient   Role = "patient"
	RoleClinician Role = "clinician"
	RoleLab       Role = "lab"
	RoleImaging   Role = "imaging"
)

// Valid reports whether the role is one of the known roles.
func (r Role) Valid() bool {
	switch r {
	case RolePatient, RoleClinician, RoleLab, RoleImaging:
		return true
	}
	return false
}

// ActsOnBehalfOfPatient reports whether the role operates on a patient other
// than the logged-in user and therefore needs an active patient pinned to
// its session before any fulfillment operation.
func (r Role) ActsOnBehalfOfPatient() bool {
	return r == RoleLab || r == RoleImaging
}

type User struct {
	Base
	Email        string     `json:"email" db:"email"`
	PasswordHash string     `json:"-" db:"password_hash"`
	FullName     string     `json:"full_name" db:"full_name"`
	Role         Role       `json:"role" db:"role"`
	PatientID    *uuid.UUID `json:"patient_id,omitempty" db:"patient_id"`
}

// TokenClaims is the decoded payload of an access token.
type TokenClaims struct {
	UserID    uuid.UUID
	Email     string
	Role      Role
	PatientID *uuid.UUID
}

type LoginRequest struct {
	Email    string `json:"email" binding:"required,email"`
	Password string `json:"password" binding:"required"`
}

type TokenResponse struct {
	AccessToken string `json:"access_token"`
	ExpiresIn   int64  `json:"expires_in"`
	Role        Role   `json:"role"`
}

type RegisterUserRequest struct {
	Email     string `json:"email" binding:"required,email"`
	Password  string `json:"password" binding:"required,min=8"`
	FullName  string `json:"full_name" binding:"required"`
	Role      Role   `json:"role" binding:"required,role"`
	PatientID string `json:"patient_id,omitempty"`
}
