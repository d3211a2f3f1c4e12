package model

import "time"

type Patient struct {
	Base
	NationalID  string    `json:"national_id" db:"national_id"`
	FirstName   string    `json:"first_name" db:"first_name"`
	LastName    string    `json:"last_name" db:"last_name"`
	DateOfBirth time.Time `json:"date_of_birth" db:"date_of_birth"`
	Nationality string    `json:"nationality" db:"nationality"`
	Email       string    `json:"email" db:"email"`
	Phone       string    `json:"phone" db:"phone"`
	Address     string    `json:"address" db:"address"`
}

func (p *Patient) FullName() string {
	return p.FirstName + " " + p.LastName
}

type CreatePatientRequest struct {
	NationalID  string    `json:"national_id" binding:"required"`
	FirstName   string    `json:"first_name" binding:"required"`
	LastName    string    `json:"last_name" binding:"required"`
	DateOfBirth time.Time `json:"date_of_birth" binding:"required"`
	Nationality string    `json:"nationality"`
	Email       string    `json:"email" binding:"omitempty,email"`
	Phone       string    `json:"phone"`
	Address     string    `json:"address"`
}

type UpdatePatientRequest struct {
	FirstName   *string    `json:"first_name"`
	LastName    *string    `json:"last_name"`
	DateOfBirth *time.Time `json:"date_of_birth"`
	Nationality *string    `json:"nationality"`
	Email       *string    `json:"email" binding:"omitempty,email"`
	Phone       *string    `json:"phone"`
	Address     *string    `json:"address"`
}
