package models

import "time"

// Module represents a teaching unit carrying a weighting coefficient.
// The coefficient (1-10) weights the module in average computations.
type Module struct {
	ID          string    `db:"id" json:"id"`
	Code        string    `db:"code" json:"code"`
	Name        string    `db:"name" json:"name"`
	Semester    int       `db:"semester" json:"semester"`
	Coefficient int       `db:"coefficient" json:"coefficient"`
	Level       string    `db:"level" json:"level"`
	ProfessorID string    `db:"professor_id" json:"professor_id"`
	CreatedAt   time.Time `db:"created_at" json:"created_at"`
	UpdatedAt   time.Time `db:"updated_at" json:"updated_at"`
}

// ModuleFilter provides filters for listing modules.
type ModuleFilter struct {
	Search      string
	Level       string
	Semester    int
	ProfessorID string
	Page        int
	PageSize    int
}
