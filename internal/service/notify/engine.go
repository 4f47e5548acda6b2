package notify

import (
	"context"
	"time"

	"go.uber.org/zap"

	"taskplanner/internal/model"
	"taskplanner/pkg/metrics"
)

// Engine computes the notification records a task should have from its
// schedule and preference flags, and materializes them in the store. It never
// sends email; it only creates future work for the dispatch sweep.
type Engine struct {
	store      NotificationStore
	gateway    *Gateway
	logger     *zap.Logger
	now        Clock
	leadDays   int
	maxRetries int
}

func NewEngine(store NotificationStore, gateway *Gateway, logger *zap.Logger, now Clock, leadDays, maxRetries int) *Engine {
	if now == nil {
		now = time.Now
	}
	if leadDays <= 0 {
		leadDays = 1
	}
	if maxRetries <= 0 {
		maxRetries = model.DefaultMaxRetries
	}
	return &Engine{
		store:      store,
		gateway:    gateway,
		logger:     logger,
		now:        now,
		leadDays:   leadDays,
		maxRetries: maxRetries,
	}
}

// Derive materializes the pending start/reminder/due notifications the task's
// flags call for. A reminder whose computed time is already in the past is
// dropped, not back-dated. Returns the drafts that were actually inserted.
func (e *Engine) Derive(ctx context.Context, task *model.Task, user *model.User) ([]*model.Notification, error) {
	if task.StartDate.IsZero() || task.EndDate.IsZero() {
		return nil, ErrMissingDates
	}
	if user.Email == "" {
		return nil, ErrMissingEmail
	}

	now := e.now()
	var drafts []*model.Notification

	if task.Notifications.SendOnStart {
		drafts = append(drafts, e.draft(model.NotificationStart, task, user, task.StartDate))
	}

	if task.Notifications.SendReminder {
		lead := task.Notifications.ReminderDaysAhead
		if lead <= 0 {
			lead = e.leadDays
		}
		reminderAt := task.EndDate.AddDate(0, 0, -lead)
		if reminderAt.After(now) {
			drafts = append(drafts, e.draft(model.NotificationReminder, task, user, reminderAt))
		} else {
			e.logger.Debug("Reminder time already passed, skipping",
				zap.Int("task_id", task.ID),
				zap.Time("reminder_at", reminderAt),
			)
		}
	}

	if task.Notifications.SendOnEnd {
		drafts = append(drafts, e.draft(model.NotificationDue, task, user, task.EndDate))
	}

	if len(drafts) == 0 {
		return nil, nil
	}

	inserted, err := e.store.InsertBatch(ctx, drafts)
	if err != nil {
		e.logger.Error("Failed to persist notification drafts",
			zap.Int("task_id", task.ID),
			zap.Error(err),
		)
		return nil, err
	}

	for _, d := range drafts {
		if d.ID != 0 {
			metrics.RecordDerived(string(d.Type))
		}
	}

	e.logger.Info("Notifications derived",
		zap.Int("task_id", task.ID),
		zap.Int("count", inserted),
	)
	return drafts, nil
}

// Recompute reconciles stored notifications after a task update. A date
// change drops the reschedulable records and derives fresh ones; a transition
// to done materializes the completed singleton.
func (e *Engine) Recompute(ctx context.Context, task *model.Task, user *model.User, datesChanged, completed bool) error {
	if datesChanged {
		deleted, err := e.store.DeleteReschedulable(ctx, task.ID)
		if err != nil {
			return err
		}
		e.logger.Info("Dropped reschedulable notifications",
			zap.Int("task_id", task.ID),
			zap.Int64("deleted", deleted),
		)
		if _, err := e.Derive(ctx, task, user); err != nil {
			return err
		}
	}

	if completed {
		if _, err := e.CreateCompleted(ctx, task, user); err != nil {
			return err
		}
	}
	return nil
}

// CreateCompleted records the completed notification, scheduled immediately.
// The store's (task, type) uniqueness guard makes a second call a no-op.
func (e *Engine) CreateCompleted(ctx context.Context, task *model.Task, user *model.User) (bool, error) {
	if user.Email == "" {
		return false, ErrMissingEmail
	}

	n := e.draft(model.NotificationCompleted, task, user, e.now())
	created, err := e.store.InsertSingleton(ctx, n)
	if err != nil {
		return false, err
	}
	if created {
		metrics.RecordDerived(string(model.NotificationCompleted))
		e.logger.Info("Completed notification created",
			zap.Int("task_id", task.ID),
			zap.Int("notification_id", n.ID),
		)
	}
	return created, nil
}

// CreateOverdue records the overdue singleton for a task, scheduled
// immediately so the next dispatch run picks it up. At most one per task
// lifetime; repeat calls are no-ops.
func (e *Engine) CreateOverdue(ctx context.Context, task *model.Task, user *model.User) (bool, error) {
	if user.Email == "" {
		return false, ErrMissingEmail
	}

	n := e.draft(model.NotificationOverdue, task, user, e.now())
	created, err := e.store.InsertSingleton(ctx, n)
	if err != nil {
		return false, err
	}
	if created {
		metrics.RecordDerived(string(model.NotificationOverdue))
		e.logger.Info("Overdue notification created",
			zap.Int("task_id", task.ID),
			zap.Int("notification_id", n.ID),
		)
	}
	return created, nil
}

func (e *Engine) draft(notifType model.NotificationType, task *model.Task, user *model.User, at time.Time) *model.Notification {
	subject, body, err := e.gateway.Render(notifType, task, user)
	if err != nil {
		// Leave subject and body empty; the dispatch sweep will record the
		// failure against this record instead of losing it silently.
		e.logger.Warn("Failed to render notification draft",
			zap.Int("task_id", task.ID),
			zap.String("type", string(notifType)),
			zap.Error(err),
		)
	}

	return &model.Notification{
		TaskID:       task.ID,
		UserID:       user.ID,
		Type:         notifType,
		Recipient:    user.Email,
		Subject:      subject,
		Message:      body,
		ScheduledFor: at,
		Status:       model.NotificationPending,
		MaxRetries:   e.maxRetries,
		Metadata: map[string]string{
			"task_title": task.Title,
		},
	}
}
