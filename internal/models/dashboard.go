package models

// StudentDashboard summarises a student's academic standing.
type StudentDashboard struct {
	SemesterAverage     string        `json:"semester_average"`
	YearlyAverage       string        `json:"yearly_average"`
	PublishedGrades     []GradeDetail `json:"published_grades"`
	UpcomingAssignments []Assignment  `json:"upcoming_assignments"`
	UnreadNotifications int           `json:"unread_notifications"`
}

// ProfessorDashboard summarises a professor's workload.
type ProfessorDashboard struct {
	Modules             []Module `json:"modules"`
	RecentSubmissions   int      `json:"recent_submissions"`
	UnreadNotifications int      `json:"unread_notifications"`
}

// AdminDashboard summarises platform-wide counters.
type AdminDashboard struct {
	TotalStudents      int `json:"total_students"`
	TotalModules       int `json:"total_modules"`
	PendingValidations int `json:"pending_validations"`
}
