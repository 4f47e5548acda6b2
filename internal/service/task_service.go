package service

import (
	"context"
	"errors"

	"go.uber.org/zap"

	"taskplanner/internal/model"
	"taskplanner/internal/service/notify"
)

var (
	ErrInvalidDates = errors.New("end date must be after start date")
	ErrEmptyTitle   = errors.New("title is required")
)

// TaskRepo is the slice of the task repository the service needs.
// *repository.TaskRepository satisfies it.
type TaskRepo interface {
	Insert(ctx context.Context, t *model.Task) error
	GetByID(ctx context.Context, id int) (*model.Task, error)
	ListByUser(ctx context.Context, userID int) ([]*model.Task, error)
	Update(ctx context.Context, t *model.Task) error
	ListChildren(ctx context.Context, taskID int) ([]*model.Task, error)
	SubtreeIDs(ctx context.Context, taskID int) ([]int, error)
	DeleteMany(ctx context.Context, ids []int) (int64, error)
}

type UserRepo interface {
	GetByID(ctx context.Context, id int) (*model.User, error)
}

type NotificationRepo interface {
	DeleteByTasks(ctx context.Context, taskIDs []int) (int64, error)
}

// NotificationEngine recomputes scheduled notifications around task changes.
// *notify.Engine satisfies it.
type NotificationEngine interface {
	Derive(ctx context.Context, task *model.Task, user *model.User) ([]*model.Notification, error)
	Recompute(ctx context.Context, task *model.Task, user *model.User, datesChanged, completed bool) error
}

// ImmediateNotifier fires a one-off event email without blocking the caller.
// *notify.Immediate satisfies it.
type ImmediateNotifier interface {
	Notify(notifType model.NotificationType, task *model.Task, user *model.User)
}

// TaskService owns task lifecycle semantics and drives the notification
// engine around task events. Notification work is best effort everywhere: a
// store or transport problem is logged and never fails the task operation.
type TaskService struct {
	tasks         TaskRepo
	users         UserRepo
	notifications NotificationRepo
	engine        NotificationEngine
	immediate     ImmediateNotifier
	publisher     notify.EventPublisher
	logger        *zap.Logger
}

func NewTaskService(
	tasks TaskRepo,
	users UserRepo,
	notifications NotificationRepo,
	engine NotificationEngine,
	immediate ImmediateNotifier,
	publisher notify.EventPublisher,
	logger *zap.Logger,
) *TaskService {
	return &TaskService{
		tasks:         tasks,
		users:         users,
		notifications: notifications,
		engine:        engine,
		immediate:     immediate,
		publisher:     publisher,
		logger:        logger,
	}
}

// Create validates and persists a task, derives its scheduled notifications,
// and fires the immediate creation email.
func (s *TaskService) Create(ctx context.Context, task *model.Task) (*model.Task, error) {
	if task.Title == "" {
		return nil, ErrEmptyTitle
	}
	if task.StartDate.IsZero() || task.EndDate.IsZero() || !task.EndDate.After(task.StartDate) {
		return nil, ErrInvalidDates
	}
	if task.Status == "" {
		task.Status = model.TaskStatusTodo
	}
	if task.Priority == "" {
		task.Priority = model.TaskPriorityMedium
	}
	if task.Category == "" {
		task.Category = model.TaskCategoryOther
	}

	if err := s.tasks.Insert(ctx, task); err != nil {
		return nil, err
	}

	user, err := s.users.GetByID(ctx, task.UserID)
	if err != nil {
		s.logger.Error("Task created but owner lookup failed, skipping notifications",
			zap.Int("task_id", task.ID),
			zap.Error(err),
		)
		return task, nil
	}

	if user.Prefs.EmailNotificationsEnabled {
		if _, err := s.engine.Derive(ctx, task, user); err != nil {
			s.logger.Error("Notification derivation failed",
				zap.Int("task_id", task.ID),
				zap.Error(err),
			)
		}
		s.immediate.Notify(model.NotificationCreated, task, user)
	}

	s.publishEvent("task.created", map[string]any{
		"task_id": task.ID,
		"user_id": task.UserID,
		"title":   task.Title,
	})
	return task, nil
}

// Update applies the changes, enforces the progress/status coupling, and
// recomputes notifications when the schedule or completion state moved.
func (s *TaskService) Update(ctx context.Context, id int, apply func(*model.Task)) (*model.Task, error) {
	task, err := s.tasks.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}

	prevStart, prevEnd := task.StartDate, task.EndDate
	prevStatus := task.Status

	apply(task)

	if !task.EndDate.After(task.StartDate) {
		return nil, ErrInvalidDates
	}
	// Progress coupling may already have run inside apply via ApplyProgress;
	// enforce it regardless so direct status writes stay consistent.
	task.ApplyProgress(task.Progress)

	if err := s.tasks.Update(ctx, task); err != nil {
		return nil, err
	}

	datesChanged := !task.StartDate.Equal(prevStart) || !task.EndDate.Equal(prevEnd)
	completed := task.Status == model.TaskStatusDone && prevStatus != model.TaskStatusDone

	if datesChanged || completed {
		user, err := s.users.GetByID(ctx, task.UserID)
		if err != nil {
			s.logger.Error("Task updated but owner lookup failed, skipping recompute",
				zap.Int("task_id", task.ID),
				zap.Error(err),
			)
			return task, nil
		}
		if user.Prefs.EmailNotificationsEnabled {
			if err := s.engine.Recompute(ctx, task, user, datesChanged, completed); err != nil {
				s.logger.Error("Notification recompute failed",
					zap.Int("task_id", task.ID),
					zap.Error(err),
				)
			}
			if completed {
				s.immediate.Notify(model.NotificationCompleted, task, user)
			}
		}
	}

	if completed {
		s.publishEvent("task.completed", map[string]any{
			"task_id": task.ID,
			"user_id": task.UserID,
		})
	}
	return task, nil
}

// Start marks a task in progress and fires the immediate start email.
func (s *TaskService) Start(ctx context.Context, id int) (*model.Task, error) {
	task, err := s.Update(ctx, id, func(t *model.Task) {
		if t.Status == model.TaskStatusTodo {
			t.Status = model.TaskStatusInProgress
		}
	})
	if err != nil {
		return nil, err
	}

	user, err := s.users.GetByID(ctx, task.UserID)
	if err == nil && user.Prefs.EmailNotificationsEnabled {
		s.immediate.Notify(model.NotificationStart, task, user)
	}
	return task, nil
}

// Complete marks a task done through the usual update path.
func (s *TaskService) Complete(ctx context.Context, id int) (*model.Task, error) {
	return s.Update(ctx, id, func(t *model.Task) {
		t.ApplyProgress(100)
	})
}

// Delete removes a task, its whole subtask tree, and every notification any
// of them owned. Returns deleted task and notification counts.
func (s *TaskService) Delete(ctx context.Context, id int) (int64, int64, error) {
	ids, err := s.tasks.SubtreeIDs(ctx, id)
	if err != nil {
		return 0, 0, err
	}
	if len(ids) == 0 {
		return 0, 0, nil
	}

	notifCount, err := s.notifications.DeleteByTasks(ctx, ids)
	if err != nil {
		return 0, 0, err
	}
	taskCount, err := s.tasks.DeleteMany(ctx, ids)
	if err != nil {
		return 0, notifCount, err
	}

	s.logger.Info("Task deleted with cascade",
		zap.Int("task_id", id),
		zap.Int64("tasks_deleted", taskCount),
		zap.Int64("notifications_deleted", notifCount),
	)

	s.publishEvent("task.deleted", map[string]any{
		"task_id":       id,
		"tasks":         taskCount,
		"notifications": notifCount,
	})
	return taskCount, notifCount, nil
}

func (s *TaskService) Get(ctx context.Context, id int) (*model.Task, error) {
	return s.tasks.GetByID(ctx, id)
}

func (s *TaskService) ListByUser(ctx context.Context, userID int) ([]*model.Task, error) {
	return s.tasks.ListByUser(ctx, userID)
}

// ListSubtasks returns the direct children of a task.
func (s *TaskService) ListSubtasks(ctx context.Context, taskID int) ([]*model.Task, error) {
	return s.tasks.ListChildren(ctx, taskID)
}

func (s *TaskService) publishEvent(routingKey string, payload any) {
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
