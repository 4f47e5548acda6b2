package repository

import (
	"context"
	"encoding/json"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"

	"taskplanner/internal/model"
)

type NotificationRepository struct {
	db     *pgxpool.Pool
	logger *zap.Logger
}

func NewNotificationRepository(db *pgxpool.Pool, logger *zap.Logger) *NotificationRepository {
	return &NotificationRepository{
		db:     db,
		logger: logger,
	}
}

const notificationColumns = `
	id, task_id, user_id, type, recipient, subject, message,
	scheduled_for, sent_at, status, retry_count, max_retries,
	last_error, metadata, created_at, updated_at
`

func scanNotification(row pgx.Row) (*model.Notification, error) {
	var n model.Notification
	var metadata []byte
	err := row.Scan(
		&n.ID,
		&n.TaskID,
		&n.UserID,
		&n.Type,
		&n.Recipient,
		&n.Subject,
		&n.Message,
		&n.ScheduledFor,
		&n.SentAt,
		&n.Status,
		&n.RetryCount,
		&n.MaxRetries,
		&n.LastError,
		&metadata,
		&n.CreatedAt,
		&n.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	if len(metadata) > 0 {
		if err := json.Unmarshal(metadata, &n.Metadata); err != nil {
			return nil, err
		}
	}
	return &n, nil
}

// InsertBatch persists a batch of pending notifications and fills in their
// IDs. Records that collide with a live (task, type) entry are skipped, so
// re-derivation after a date change never duplicates an already-sent kind.
// Returns the number actually inserted.
func (r *NotificationRepository) InsertBatch(ctx context.Context, notifications []*model.Notification) (int, error) {
	if len(notifications) == 0 {
		return 0, nil
	}

	query := `
        INSERT INTO notifications
            (task_id, user_id, type, recipient, subject, message, scheduled_for, status, max_retries, metadata)
        VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
        ON CONFLICT (task_id, type) WHERE status IN ('pending', 'sent') DO NOTHING
        RETURNING id
    `

	batch := &pgx.Batch{}
	for _, n := range notifications {
		metadata, err := json.Marshal(n.Metadata)
		if err != nil {
			return 0, err
		}
		batch.Queue(query,
			n.TaskID, n.UserID, n.Type, n.Recipient, n.Subject, n.Message,
			n.ScheduledFor, n.Status, n.MaxRetries, metadata,
		)
	}

	results := r.db.SendBatch(ctx, batch)
	defer results.Close()

	inserted := 0
	for _, n := range notifications {
		err := results.QueryRow().Scan(&n.ID)
		if err == pgx.ErrNoRows {
			continue
		}
		if err != nil {
			r.logger.Error("Failed to insert notification",
				zap.Int("task_id", n.TaskID),
				zap.String("type", string(n.Type)),
				zap.Error(err),
			)
			return inserted, err
		}
		inserted++
	}

	r.logger.Info("Notifications inserted",
		zap.Int("count", inserted),
	)
	return inserted, nil
}

// InsertSingleton inserts a notification guarded by the partial unique index
// on (task_id, type) for singleton kinds. Returns false when a live record
// for the same task and type already exists.
func (r *NotificationRepository) InsertSingleton(ctx context.Context, n *model.Notification) (bool, error) {
	metadata, err := json.Marshal(n.Metadata)
	if err != nil {
		return false, err
	}

	query := `
        INSERT INTO notifications
            (task_id, user_id, type, recipient, subject, message, scheduled_for, status, max_retries, metadata)
        VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
        ON CONFLICT (task_id, type) WHERE status IN ('pending', 'sent') DO NOTHING
        RETURNING id
    `
	err = r.db.QueryRow(ctx, query,
		n.TaskID, n.UserID, n.Type, n.Recipient, n.Subject, n.Message,
		n.ScheduledFor, n.Status, n.MaxRetries, metadata,
	).Scan(&n.ID)
	if err == pgx.ErrNoRows {
		return false, nil
	}
	if err != nil {
		r.logger.Error("Failed to insert singleton notification",
			zap.Int("task_id", n.TaskID),
			zap.String("type", string(n.Type)),
			zap.Error(err),
		)
		return false, err
	}
	return true, nil
}

// FindPendingDue returns all pending notifications scheduled at or before now.
func (r *NotificationRepository) FindPendingDue(ctx context.Context, now time.Time) ([]*model.Notification, error) {
	query := `
        SELECT ` + notificationColumns + `
        FROM notifications
        WHERE status = 'pending' AND scheduled_for <= $1
        ORDER BY scheduled_for
    `
	rows, err := r.db.Query(ctx, query, now)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var notifications []*model.Notification
	for rows.Next() {
		n, err := scanNotification(rows)
		if err != nil {
			return nil, err
		}
		notifications = append(notifications, n)
	}
	return notifications, rows.Err()
}

// ListByTask returns a task's notifications, optionally restricted to a type
// and a status set. Empty filters match everything.
func (r *NotificationRepository) ListByTask(ctx context.Context, taskID int, notifType model.NotificationType, statuses []model.NotificationStatus) ([]*model.Notification, error) {
	query := `
        SELECT ` + notificationColumns + `
        FROM notifications
        WHERE task_id = $1
          AND ($2::text = '' OR type = $2)
          AND ($3::text[] IS NULL OR status = ANY($3))
        ORDER BY scheduled_for
    `
	var statusList []string
	for _, s := range statuses {
		statusList = append(statusList, string(s))
	}

	rows, err := r.db.Query(ctx, query, taskID, notifType, statusList)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var notifications []*model.Notification
	for rows.Next() {
		n, err := scanNotification(rows)
		if err != nil {
			return nil, err
		}
		notifications = append(notifications, n)
	}
	return notifications, rows.Err()
}

func (r *NotificationRepository) GetByID(ctx context.Context, id int) (*model.Notification, error) {
	query := `SELECT ` + notificationColumns + ` FROM notifications WHERE id = $1`
	return scanNotification(r.db.QueryRow(ctx, query, id))
}

func (r *NotificationRepository) ListByUser(ctx context.Context, userID int) ([]*model.Notification, error) {
	query := `
        SELECT ` + notificationColumns + `
        FROM notifications
        WHERE user_id = $1
        ORDER BY scheduled_for DESC
    `
	rows, err := r.db.Query(ctx, query, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var notifications []*model.Notification
	for rows.Next() {
		n, err := scanNotification(rows)
		if err != nil {
			return nil, err
		}
		notifications = append(notifications, n)
	}
	return notifications, rows.Err()
}

// MarkSent records a successful delivery.
func (r *NotificationRepository) MarkSent(ctx context.Context, id int, sentAt time.Time) error {
	query := `
        UPDATE notifications
        SET status = 'sent', sent_at = $2, updated_at = now()
        WHERE id = $1
    `
	_, err := r.db.Exec(ctx, query, id, sentAt)
	if err != nil {
		r.logger.Error("Failed to mark notification sent",
			zap.Int("id", id),
			zap.Error(err),
		)
	}
	return err
}

// MarkFailed records a failed delivery attempt and bumps the retry counter.
func (r *NotificationRepository) MarkFailed(ctx context.Context, id int, errMsg string) error {
	query := `
        UPDATE notifications
        SET status = 'failed', retry_count = retry_count + 1, last_error = $2, updated_at = now()
        WHERE id = $1
    `
	_, err := r.db.Exec(ctx, query, id, errMsg)
	if err != nil {
		r.logger.Error("Failed to mark notification failed",
			zap.Int("id", id),
			zap.Error(err),
		)
	}
	return err
}

// Requeue moves a failed notification back to pending, provided it still has
// retry budget. Returns false when nothing matched.
func (r *NotificationRepository) Requeue(ctx context.Context, id int) (bool, error) {
	query := `
        UPDATE notifications
        SET status = 'pending', updated_at = now()
        WHERE id = $1 AND status = 'failed' AND retry_count < max_retries
    `
	tag, err := r.db.Exec(ctx, query, id)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() > 0, nil
}

// DeleteReschedulable removes non-terminal start/reminder/due notifications for
// a task so derivation can run again after a date change.
func (r *NotificationRepository) DeleteReschedulable(ctx context.Context, taskID int) (int64, error) {
	query := `
        DELETE FROM notifications
        WHERE task_id = $1
          AND type IN ('start', 'reminder', 'due')
          AND status IN ('pending', 'failed')
    `
	tag, err := r.db.Exec(ctx, query, taskID)
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}

// DeleteByTasks removes every notification belonging to the given tasks.
func (r *NotificationRepository) DeleteByTasks(ctx context.Context, taskIDs []int) (int64, error) {
	if len(taskIDs) == 0 {
		return 0, nil
	}
	query := `DELETE FROM notifications WHERE task_id = ANY($1)`
	tag, err := r.db.Exec(ctx, query, taskIDs)
	if err != nil {
		r.logger.Error("Failed to delete notifications for tasks", zap.Error(err))
		return 0, err
	}
	return tag.RowsAffected(), nil
}

// DeleteSentOlderThan purges sent notifications delivered before the cutoff.
func (r *NotificationRepository) DeleteSentOlderThan(ctx context.Context, cutoff time.Time) (int64, error) {
	query := `DELETE FROM notifications WHERE status = 'sent' AND sent_at < $1`
	tag, err := r.db.Exec(ctx, query, cutoff)
	if err != nil {
		r.logger.Error("Failed to purge sent notifications", zap.Error(err))
		return 0, err
	}
	return tag.RowsAffected(), nil
}
