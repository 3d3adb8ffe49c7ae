package models

import "time"

// EnrollmentStatus represents the lifecycle of an enrollment.
type EnrollmentStatus string

// Possible enrollment statuses.
const (
	EnrollmentStatusActive    EnrollmentStatus = "ACTIVE"
	EnrollmentStatusWithdrawn EnrollmentStatus = "WITHDRAWN"
)

// Enrollment captures a student's registration to a module for an academic year.
type Enrollment struct {
	ID           string           `db:"id" json:"id"`
	StudentID    string           `db:"student_id" json:"student_id"`
	ModuleID     string           `db:"module_id" json:"module_id"`
	AcademicYear string           `db:"academic_year" json:"academic_year"`
	Status       EnrollmentStatus `db:"status" json:"status"`
	EnrolledAt   time.Time        `db:"enrolled_at" json:"enrolled_at"`
	WithdrawnAt  *time.Time       `db:"withdrawn_at" json:"withdrawn_at,omitempty"`
}

// EnrollmentDetail enriches Enrollment with student and module info.
type EnrollmentDetail struct {
	Enrollment
	StudentName   string `db:"student_name" json:"student_name"`
	StudentNumber string `db:"student_number" json:"student_number"`
	ModuleCode    string `db:"module_code" json:"module_code"`
	ModuleName    string `db:"module_name" json:"module_name"`
}

// EnrollmentFilter provides filters for listing enrollments.
type EnrollmentFilter struct {
	StudentID    string
	ModuleID     string
	AcademicYear string
	Status       EnrollmentStatus
	Page         int
	PageSize     int
}
