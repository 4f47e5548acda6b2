package model

import "time"

type NotificationType string

const (
	NotificationStart     NotificationType = "start"
	NotificationReminder  NotificationType = "reminder"
	NotificationDue       NotificationType = "due"
	NotificationOverdue   NotificationType = "overdue"
	NotificationCompleted NotificationType = "completed"

	// NotificationCreated only ever exists as an immediate-path audit
	// record; the sweep never schedules it.
	NotificationCreated NotificationType = "created"
)

type NotificationStatus string

const (
	NotificationPending   NotificationStatus = "pending"
	NotificationSent      NotificationStatus = "sent"
	NotificationFailed    NotificationStatus = "failed"
	NotificationCancelled NotificationStatus = "cancelled"
)

const DefaultMaxRetries = 3

// Notification is one scheduled email event with delivery state independent
// of its task.
type Notification struct {
	ID           int
	TaskID       int
	UserID       int
	Type         NotificationType
	Recipient    string
	Subject      string
	Message      string
	ScheduledFor time.Time
	SentAt       *time.Time
	Status       NotificationStatus
	RetryCount   int
	MaxRetries   int
	LastError    string
	Metadata     map[string]string
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// Terminal reports whether the notification will never be dispatched again
// without operator intervention.
func (n *Notification) Terminal() bool {
	return n.Status == NotificationSent || n.Status == NotificationCancelled
}

// CanRetry reports whether an operator may requeue a failed notification.
// Nothing requeues automatically; failed records stay failed until someone
// calls the requeue operation.
func (n *Notification) CanRetry() bool {
	return n.Status == NotificationFailed && n.RetryCount < n.MaxRetries
}

// Due reports whether the notification should be picked up by the dispatch
// sweep at the given instant.
func (n *Notification) Due(now time.Time) bool {
	return n.Status == NotificationPending && !n.ScheduledFor.After(now)
}
