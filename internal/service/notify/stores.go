package notify

import (
	"context"
	"errors"
	"time"

	"taskplanner/internal/model"
)

var (
	ErrMissingDates    = errors.New("task start and end dates must be set")
	ErrMissingEmail    = errors.New("user has no email address")
	ErrTemplateMissing = errors.New("template not found")
)

// NotificationStore is the persistence contract of the notification engine.
// *repository.NotificationRepository satisfies it; tests use an in-memory fake.
type NotificationStore interface {
	InsertBatch(ctx context.Context, notifications []*model.Notification) (int, error)
	InsertSingleton(ctx context.Context, n *model.Notification) (bool, error)
	FindPendingDue(ctx context.Context, now time.Time) ([]*model.Notification, error)
	GetByID(ctx context.Context, id int) (*model.Notification, error)
	MarkSent(ctx context.Context, id int, sentAt time.Time) error
	MarkFailed(ctx context.Context, id int, errMsg string) error
	Requeue(ctx context.Context, id int) (bool, error)
	DeleteReschedulable(ctx context.Context, taskID int) (int64, error)
	DeleteSentOlderThan(ctx context.Context, cutoff time.Time) (int64, error)
}

type TaskStore interface {
	GetByID(ctx context.Context, id int) (*model.Task, error)
	FindOverdue(ctx context.Context, now time.Time) ([]*model.Task, error)
}

type UserStore interface {
	GetByID(ctx context.Context, id int) (*model.User, error)
}

// EventPublisher mirrors the mq publisher; a nil publisher skips events.
type EventPublisher interface {
	Publish(routingKey string, payload any) error
}

// Clock returns the current time; injected so tests control the wall clock.
type Clock func() time.Time
