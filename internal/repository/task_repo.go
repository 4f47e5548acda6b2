package repository

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"

	"taskplanner/internal/model"
)

type TaskRepository struct {
	db     *pgxpool.Pool
	logger *zap.Logger
}

func NewTaskRepository(db *pgxpool.Pool, logger *zap.Logger) *TaskRepository {
	return &TaskRepository{
		db:     db,
		logger: logger,
	}
}

const taskColumns = `
	id, user_id, parent_id, title, description, category, priority, status,
	time_frame, start_date, end_date, estimated_hours, actual_hours, progress,
	tags, recurrence,
	notify_on_start, notify_on_end, notify_reminder, reminder_days_ahead,
	created_at, updated_at
`

func scanTask(row pgx.Row) (*model.Task, error) {
	var t model.Task
	err := row.Scan(
		&t.ID,
		&t.UserID,
		&t.ParentID,
		&t.Title,
		&t.Description,
		&t.Category,
		&t.Priority,
		&t.Status,
		&t.TimeFrame,
		&t.StartDate,
		&t.EndDate,
		&t.EstimatedHours,
		&t.ActualHours,
		&t.Progress,
		&t.Tags,
		&t.Recurrence,
		&t.Notifications.SendOnStart,
		&t.Notifications.SendOnEnd,
		&t.Notifications.SendReminder,
		&t.Notifications.ReminderDaysAhead,
		&t.CreatedAt,
		&t.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &t, nil
}

func (r *TaskRepository) Insert(ctx context.Context, t *model.Task) error {
	query := `
        INSERT INTO tasks
            (user_id, parent_id, title, description, category, priority, status,
             time_frame, start_date, end_date, estimated_hours, actual_hours, progress,
             tags, recurrence,
             notify_on_start, notify_on_end, notify_reminder, reminder_days_ahead)
        VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18, $19)
        RETURNING id, created_at, updated_at
    `
	err := r.db.QueryRow(ctx, query,
		t.UserID, t.ParentID, t.Title, t.Description, t.Category, t.Priority, t.Status,
		t.TimeFrame, t.StartDate, t.EndDate, t.EstimatedHours, t.ActualHours, t.Progress,
		t.Tags, t.Recurrence,
		t.Notifications.SendOnStart, t.Notifications.SendOnEnd,
		t.Notifications.SendReminder, t.Notifications.ReminderDaysAhead,
	).Scan(&t.ID, &t.CreatedAt, &t.UpdatedAt)
	if err != nil {
		r.logger.Error("Failed to insert task",
			zap.Int("user_id", t.UserID),
			zap.Error(err),
		)
		return err
	}

	r.logger.Info("Task inserted",
		zap.Int("id", t.ID),
		zap.Int("user_id", t.UserID),
	)
	return nil
}

func (r *TaskRepository) GetByID(ctx context.Context, id int) (*model.Task, error) {
	query := `SELECT ` + taskColumns + ` FROM tasks WHERE id = $1`
	return scanTask(r.db.QueryRow(ctx, query, id))
}

func (r *TaskRepository) ListByUser(ctx context.Context, userID int) ([]*model.Task, error) {
	query := `SELECT ` + taskColumns + ` FROM tasks WHERE user_id = $1 ORDER BY end_date`
	rows, err := r.db.Query(ctx, query, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var tasks []*model.Task
	for rows.Next() {
		t, err := scanTask(rows)
		if err != nil {
			return nil, err
		}
		tasks = append(tasks, t)
	}
	return tasks, rows.Err()
}

func (r *TaskRepository) Update(ctx context.Context, t *model.Task) error {
	query := `
        UPDATE tasks
        SET title = $2, description = $3, category = $4, priority = $5, status = $6,
            time_frame = $7, start_date = $8, end_date = $9,
            estimated_hours = $10, actual_hours = $11, progress = $12,
            tags = $13, recurrence = $14,
            notify_on_start = $15, notify_on_end = $16, notify_reminder = $17,
            reminder_days_ahead = $18,
            updated_at = now()
        WHERE id = $1
    `
	_, err := r.db.Exec(ctx, query,
		t.ID, t.Title, t.Description, t.Category, t.Priority, t.Status,
		t.TimeFrame, t.StartDate, t.EndDate,
		t.EstimatedHours, t.ActualHours, t.Progress,
		t.Tags, t.Recurrence,
		t.Notifications.SendOnStart, t.Notifications.SendOnEnd,
		t.Notifications.SendReminder, t.Notifications.ReminderDaysAhead,
	)
	if err != nil {
		r.logger.Error("Failed to update task",
			zap.Int("id", t.ID),
			zap.Error(err),
		)
	}
	return err
}

// ListChildren returns the direct subtasks of a task.
func (r *TaskRepository) ListChildren(ctx context.Context, taskID int) ([]*model.Task, error) {
	query := `SELECT ` + taskColumns + ` FROM tasks WHERE parent_id = $1`
	rows, err := r.db.Query(ctx, query, taskID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var tasks []*model.Task
	for rows.Next() {
		t, err := scanTask(rows)
		if err != nil {
			return nil, err
		}
		tasks = append(tasks, t)
	}
	return tasks, rows.Err()
}

// SubtreeIDs returns the task ID plus every descendant subtask ID.
func (r *TaskRepository) SubtreeIDs(ctx context.Context, taskID int) ([]int, error) {
	query := `
        WITH RECURSIVE subtree AS (
            SELECT id FROM tasks WHERE id = $1
            UNION ALL
            SELECT t.id FROM tasks t JOIN subtree s ON t.parent_id = s.id
        )
        SELECT id FROM subtree
    `
	rows, err := r.db.Query(ctx, query, taskID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var ids []int
	for rows.Next() {
		var id int
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

// DeleteMany removes the given tasks.
func (r *TaskRepository) DeleteMany(ctx context.Context, ids []int) (int64, error) {
	if len(ids) == 0 {
		return 0, nil
	}
	tag, err := r.db.Exec(ctx, `DELETE FROM tasks WHERE id = ANY($1)`, ids)
	if err != nil {
		r.logger.Error("Failed to delete tasks", zap.Error(err))
		return 0, err
	}
	return tag.RowsAffected(), nil
}

// FindOverdue returns open tasks whose end date has passed.
func (r *TaskRepository) FindOverdue(ctx context.Context, now time.Time) ([]*model.Task, error) {
	query := `
        SELECT ` + taskColumns + `
        FROM tasks
        WHERE status NOT IN ('done', 'cancelled')
          AND end_date < $1
    `
	rows, err := r.db.Query(ctx, query, now)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var tasks []*model.Task
	for rows.Next() {
		t, err := scanTask(rows)
		if err != nil {
			return nil, err
		}
		tasks = append(tasks, t)
	}
	return tasks, rows.Err()
}
