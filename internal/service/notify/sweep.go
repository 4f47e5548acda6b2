package notify

import (
	"context"
	"time"

	"go.uber.org/zap"

	"taskplanner/internal/model"
	"taskplanner/pkg/metrics"
)

// Sweeper holds the three recurring reconciliation jobs. Each run is
// stateless and idempotent per record; overlapping runs cooperate through the
// stored status field only, so delivery is at-least-once.
type Sweeper struct {
	notifications NotificationStore
	tasks         TaskStore
	users         UserStore
	engine        *Engine
	gateway       *Gateway
	publisher     EventPublisher
	logger        *zap.Logger
	now           Clock
	retention     time.Duration
}

func NewSweeper(
	notifications NotificationStore,
	tasks TaskStore,
	users UserStore,
	engine *Engine,
	gateway *Gateway,
	publisher EventPublisher,
	logger *zap.Logger,
	now Clock,
	retentionDays int,
) *Sweeper {
	if now == nil {
		now = time.Now
	}
	if retentionDays <= 0 {
		retentionDays = 30
	}
	return &Sweeper{
		notifications: notifications,
		tasks:         tasks,
		users:         users,
		engine:        engine,
		gateway:       gateway,
		publisher:     publisher,
		logger:        logger,
		now:           now,
		retention:     time.Duration(retentionDays) * 24 * time.Hour,
	}
}

// DispatchDue sends every pending notification whose scheduled time has
// arrived. Each record is handled independently; one failure never aborts the
// batch. Returns the number of records attempted.
func (s *Sweeper) DispatchDue(ctx context.Context) (int, error) {
	start := s.now()
	defer func() { metrics.RecordSweepDuration("dispatch", time.Since(start)) }()

	due, err := s.notifications.FindPendingDue(ctx, s.now())
	if err != nil {
		s.logger.Error("Failed to fetch due notifications", zap.Error(err))
		return 0, err
	}
	if len(due) == 0 {
		s.logger.Debug("No due notifications")
		return 0, nil
	}

	s.logger.Info("Dispatching due notifications", zap.Int("count", len(due)))

	for _, n := range due {
		s.dispatchOne(ctx, n)
	}
	return len(due), nil
}

func (s *Sweeper) dispatchOne(ctx context.Context, n *model.Notification) {
	result := s.gateway.Deliver(ctx, n)

	if result.Success {
		sentAt := s.now()
		if err := s.notifications.MarkSent(ctx, n.ID, sentAt); err != nil {
			s.logger.Error("Sent but failed to record delivery",
				zap.Int("notification_id", n.ID),
				zap.Error(err),
			)
			return
		}
		metrics.RecordDispatch(string(n.Type), "sent")
		s.publishEvent("notification.sent", map[string]any{
			"notification_id": n.ID,
			"task_id":         n.TaskID,
			"type":            string(n.Type),
			"message_id":      result.MessageID,
			"sent_at":         sentAt,
		})
		return
	}

	if err := s.notifications.MarkFailed(ctx, n.ID, result.Err); err != nil {
		s.logger.Error("Failed to record dispatch failure",
			zap.Int("notification_id", n.ID),
			zap.Error(err),
		)
		return
	}
	metrics.RecordDispatch(string(n.Type), "failed")
	s.publishEvent("notification.failed", map[string]any{
		"notification_id": n.ID,
		"task_id":         n.TaskID,
		"type":            string(n.Type),
		"error":           result.Err,
	})
}

// DetectOverdue materializes the overdue notification for every open task
// whose end date has passed. The singleton guard in the store makes repeat
// runs no-ops, so each task gets at most one overdue record per lifetime.
// Returns the number of records created.
func (s *Sweeper) DetectOverdue(ctx context.Context) (int, error) {
	start := s.now()
	defer func() { metrics.RecordSweepDuration("overdue", time.Since(start)) }()

	overdue, err := s.tasks.FindOverdue(ctx, s.now())
	if err != nil {
		s.logger.Error("Failed to list overdue tasks", zap.Error(err))
		return 0, err
	}
	if len(overdue) == 0 {
		s.logger.Debug("No overdue tasks found")
		return 0, nil
	}

	created := 0
	for _, task := range overdue {
		user, err := s.users.GetByID(ctx, task.UserID)
		if err != nil {
			s.logger.Error("Failed to resolve task owner",
				zap.Int("task_id", task.ID),
				zap.Int("user_id", task.UserID),
				zap.Error(err),
			)
			continue
		}

		ok, err := s.engine.CreateOverdue(ctx, task, user)
		if err != nil {
			s.logger.Error("Failed to create overdue notification",
				zap.Int("task_id", task.ID),
				zap.Error(err),
			)
			continue
		}
		if ok {
			created++
		}
	}

	s.logger.Info("Overdue check completed",
		zap.Int("overdue_tasks", len(overdue)),
		zap.Int("created", created),
	)
	return created, nil
}

// PurgeSent deletes sent notifications older than the retention window.
// Returns the number deleted.
func (s *Sweeper) PurgeSent(ctx context.Context) (int64, error) {
	start := s.now()
	defer func() { metrics.RecordSweepDuration("purge", time.Since(start)) }()

	cutoff := s.now().Add(-s.retention)
	deleted, err := s.notifications.DeleteSentOlderThan(ctx, cutoff)
	if err != nil {
		s.logger.Error("Purge failed", zap.Error(err))
		return 0, err
	}

	if deleted > 0 {
		metrics.NotificationsPurged.Add(float64(deleted))
	}
	s.logger.Info("Purge completed",
		zap.Time("cutoff", cutoff),
		zap.Int64("deleted", deleted),
	)
	return deleted, nil
}

func (s *Sweeper) publishEvent(routingKey string, payload any) {
	if s.publisher == nil {
		return
	}
	if err := s.publisher.Publish(routingKey, payload); err != nil {
		s.logger.Warn("Failed to publish event",
			zap.String("routing_key", routingKey),
			zap.Error(err),
		)
	}
}
