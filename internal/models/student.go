package models

import "time"

// Student represents a learner registered in the institution.
// UserID links the academic record to the login account.
type Student struct {
	ID            string    `db:"id" json:"id"`
	UserID        string    `db:"user_id" json:"user_id"`
	StudentNumber string    `db:"student_number" json:"student_number"`
	FullName      string    `db:"full_name" json:"full_name"`
	Level         string    `db:"level" json:"level"`
	Semester      int       `db:"semester" json:"semester"`
	AcademicYear  string    `db:"academic_year" json:"academic_year"`
	Active        bool      `db:"active" json:"active"`
	CreatedAt     time.Time `db:"created_at" json:"created_at"`
	UpdatedAt     time.Time `db:"updated_at" json:"updated_at"`
}

// StudentFilter encapsulates allowed search parameters for listing students.
type StudentFilter struct {
	Search    string
	Level     string
	Active    *bool
	Page      int
	PageSize  int
	SortBy    string
	SortOrder string
}
