package models

import "time"

// NotificationType classifies the triggering event.
type NotificationType string

const (
	NotificationTypeAssignment   NotificationType = "assignment"
	NotificationTypeGrade        NotificationType = "grade"
	NotificationTypeAnnouncement NotificationType = "announcement"
	NotificationTypeSubmission   NotificationType = "submission"
	NotificationTypeGeneral      NotificationType = "general"
)

// Notification is a per-recipient message created by the dispatcher.
// Records expire after the retention window and are purged in bulk.
type Notification struct {
	ID           string           `db:"id" json:"id"`
	RecipientID  string           `db:"recipient_id" json:"recipient_id"`
	SenderID     *string          `db:"sender_id" json:"sender_id,omitempty"`
	Title        string           `db:"title" json:"title"`
	Message      string           `db:"message" json:"message"`
	Type         NotificationType `db:"type" json:"type"`
	Read         bool             `db:"read" json:"read"`
	ReadAt       *time.Time       `db:"read_at" json:"read_at,omitempty"`
	RelatedModel *string          `db:"related_model" json:"related_model,omitempty"`
	RelatedID    *string          `db:"related_id" json:"related_id,omitempty"`
	ExpiresAt    time.Time        `db:"expires_at" json:"expires_at"`
	CreatedAt    time.Time        `db:"created_at" json:"created_at"`
}

// RelatedRef is a polymorphic reference to the document a notification is about.
type RelatedRef struct {
	Model string `json:"model"`
	ID    string `json:"id"`
}

// NotificationFilter lists notifications for a recipient.
type NotificationFilter struct {
	RecipientID string
	UnreadOnly  bool
	Page        int
	PageSize    int
}

// NotificationList is the recipient-facing payload with the unread counter.
type NotificationList struct {
	Notifications []Notification `json:"notifications"`
	UnreadCount   int            `json:"unread_count"`
}
