package models

import "time"

// GradeType classifies a grade record within a semester.
type GradeType string

const (
	GradeTypeExam       GradeType = "exam"
	GradeTypeContinuous GradeType = "continuous"
	GradeTypeFinal      GradeType = "final"
)

// Grade value bounds are client-facing contracts and must not change.
const (
	GradeValueMin = 0.0
	GradeValueMax = 20.0
)

// GradeRecord ties one student to one module for one semester/year/type.
// At most one record exists per (student, module, semester, academic_year,
// grade_type) tuple, enforced by a unique index.
type GradeRecord struct {
	ID           string     `db:"id" json:"id"`
	StudentID    string     `db:"student_id" json:"student_id"`
	ModuleID     string     `db:"module_id" json:"module_id"`
	Value        float64    `db:"value" json:"value"`
	Semester     int        `db:"semester" json:"semester"`
	AcademicYear string     `db:"academic_year" json:"academic_year"`
	GradeType    GradeType  `db:"grade_type" json:"grade_type"`
	Validated    bool       `db:"validated" json:"validated"`
	ValidatedBy  *string    `db:"validated_by" json:"validated_by,omitempty"`
	ValidatedAt  *time.Time `db:"validated_at" json:"validated_at,omitempty"`
	IsPublished  bool       `db:"is_published" json:"is_published"`
	PublishedAt  *time.Time `db:"published_at" json:"published_at,omitempty"`
	Comments     string     `db:"comments" json:"comments,omitempty"`
	CreatedAt    time.Time  `db:"created_at" json:"created_at"`
	UpdatedAt    time.Time  `db:"updated_at" json:"updated_at"`
}

// GradeKey is the natural key identifying a grade record.
type GradeKey struct {
	StudentID    string
	ModuleID     string
	Semester     int
	AcademicYear string
	GradeType    GradeType
}

// GradeDetail joins a grade record with its module for weighting and display.
type GradeDetail struct {
	GradeRecord
	ModuleCode        string `db:"module_code" json:"module_code"`
	ModuleName        string `db:"module_name" json:"module_name"`
	ModuleCoefficient int    `db:"module_coefficient" json:"module_coefficient"`
}

// GradeFilter allows querying of grade records.
type GradeFilter struct {
	StudentID    string
	ModuleID     string
	Semester     int
	AcademicYear string
	GradeType    GradeType
	Validated    *bool
}

// WeightedGrade is the aggregation input: a value and its module coefficient.
type WeightedGrade struct {
	Value       float64
	Coefficient int
}

// StudentGradesReport is the student-facing grades payload with averages.
type StudentGradesReport struct {
	Grades          []GradeDetail `json:"grades"`
	SemesterAverage string        `json:"semester_average"`
	YearlyAverage   string        `json:"yearly_average"`
}
