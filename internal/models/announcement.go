package models

import "time"

// Announcement represents a module-scoped message sent by its professor.
// Delivery happens through notification fan-out to enrolled students.
type Announcement struct {
	ID        string    `db:"id" json:"id"`
	ModuleID  string    `db:"module_id" json:"module_id"`
	Title     string    `db:"title" json:"title"`
	Message   string    `db:"message" json:"message"`
	CreatedBy string    `db:"created_by" json:"created_by"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
}

// AnnouncementFilter lists announcements per module.
type AnnouncementFilter struct {
	ModuleID  string
	CreatedBy string
	Page      int
	PageSize  int
}
