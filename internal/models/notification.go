package models

import "time"

// NotificationKind groups notifications in the inbox.
type NotificationKind string

const (
	NotificationReminder     NotificationKind = "REMINDER"
	NotificationStatusUpdate NotificationKind = "STATUS_UPDATE"
	NotificationSystem       NotificationKind = "SYSTEM"
)

// NotificationTemplate names a message template.
type NotificationTemplate string

const (
	TemplateCertificationApproved NotificationTemplate = "certification_approved"
	TemplateCertificationRejected NotificationTemplate = "certification_rejected"
	TemplateRegistrationReceived  NotificationTemplate = "registration_received"
	TemplateAccountActivated      NotificationTemplate = "account_activated"
	TemplatePasswordReset         NotificationTemplate = "password_reset"
	TemplateExpiryReminder        NotificationTemplate = "expiry_reminder"
	TemplateBroadcast             NotificationTemplate = "broadcast"
)

// Notification is one in-app message for a recipient.
type Notification struct {
	ID          string               `db:"id" json:"id"`
	RecipientID string               `db:"recipient_id" json:"recipientId"`
	Kind        NotificationKind     `db:"kind" json:"kind"`
	Template    NotificationTemplate `db:"template" json:"template"`
	Title       string               `db:"title" json:"title"`
	Message     string               `db:"message" json:"message"`
	Read        bool                 `db:"read" json:"read"`
	CreatedAt   time.Time            `db:"created_at" json:"createdAt"`
	ReadAt      *time.Time           `db:"read_at" json:"readAt,omitempty"`
}

// NotificationFilter narrows inbox listing.
type NotificationFilter struct {
	RecipientID string
	UnreadOnly  bool
	Kind        NotificationKind
	Limit       int
	Offset      int
}
