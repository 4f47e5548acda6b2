package notify

import (
	"context"
	"time"

	"go.uber.org/zap"

	"taskplanner/internal/model"
)

// Deduper guards the immediate path against double-sends for the same task
// event. pkg/util.Deduper satisfies it; nil disables deduplication.
type Deduper interface {
	AcquireOnce(ctx context.Context, event string, taskID int) bool
}

// Immediate is the fire-and-forget notification path: it sends straight
// through the gateway at the moment of a task event, bypassing the sweep.
// Failures are logged and never reach the caller.
type Immediate struct {
	gateway *Gateway
	store   NotificationStore
	deduper Deduper
	logger  *zap.Logger
	now     Clock
}

func NewImmediate(gateway *Gateway, store NotificationStore, deduper Deduper, logger *zap.Logger, now Clock) *Immediate {
	if now == nil {
		now = time.Now
	}
	return &Immediate{
		gateway: gateway,
		store:   store,
		deduper: deduper,
		logger:  logger,
		now:     now,
	}
}

// Notify dispatches the event asynchronously and returns at once. The
// goroutine uses a detached context so the triggering HTTP response is never
// held up or failed by notification work.
func (i *Immediate) Notify(notifType model.NotificationType, task *model.Task, user *model.User) {
	go func() {
		defer func() {
			if r := recover(); r != nil {
				i.logger.Error("Immediate notification panic recovered",
					zap.Int("task_id", task.ID),
					zap.String("type", string(notifType)),
					zap.Any("panic", r),
				)
			}
		}()
		i.send(context.Background(), notifType, task, user)
	}()
}

// NotifySync is the same path without the goroutine; tests use it to avoid
// racing the detached send.
func (i *Immediate) NotifySync(ctx context.Context, notifType model.NotificationType, task *model.Task, user *model.User) {
	i.send(ctx, notifType, task, user)
}

func (i *Immediate) send(ctx context.Context, notifType model.NotificationType, task *model.Task, user *model.User) {
	if user.Email == "" {
		i.logger.Warn("Immediate notification skipped, user has no email",
			zap.Int("task_id", task.ID),
			zap.String("type", string(notifType)),
		)
		return
	}

	if i.deduper != nil && !i.deduper.AcquireOnce(ctx, "immediate:"+string(notifType), task.ID) {
		return
	}

	result := i.gateway.Send(ctx, notifType, task, user)
	if !result.Success {
		i.logger.Warn("Immediate notification failed",
			zap.Int("task_id", task.ID),
			zap.String("type", string(notifType)),
			zap.String("error", result.Err),
		)
	}

	i.audit(ctx, notifType, task, user, result)
}

// audit records the attempt for history. Best effort: a conflict with an
// existing live (task, type) record or a store failure only logs.
func (i *Immediate) audit(ctx context.Context, notifType model.NotificationType, task *model.Task, user *model.User, result Result) {
	subject, body, err := i.gateway.Render(notifType, task, user)
	if err != nil {
		return
	}

	now := i.now()
	n := &model.Notification{
		TaskID:       task.ID,
		UserID:       user.ID,
		Type:         notifType,
		Recipient:    user.Email,
		Subject:      subject,
		Message:      body,
		ScheduledFor: now,
		Status:       model.NotificationFailed,
		MaxRetries:   model.DefaultMaxRetries,
		Metadata: map[string]string{
			"immediate": "true",
		},
	}
	if result.Success {
		n.Status = model.NotificationSent
		n.SentAt = &now
		n.Metadata["message_id"] = result.MessageID
	} else {
		n.LastError = result.Err
		n.RetryCount = 1
	}

	if _, err := i.store.InsertSingleton(ctx, n); err != nil {
		i.logger.Warn("Failed to write immediate audit record",
			zap.Int("task_id", task.ID),
			zap.String("type", string(notifType)),
			zap.Error(err),
		)
	}
}
