package handler

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/jackc/pgx/v5"
	"go.uber.org/zap"

	"taskplanner/internal/model"
	"taskplanner/internal/service"
)

type TaskHandler struct {
	tasks  *service.TaskService
	logger *zap.Logger
}

func NewTaskHandler(tasks *service.TaskService, logger *zap.Logger) *TaskHandler {
	return &TaskHandler{tasks: tasks, logger: logger}
}

type createTaskRequest struct {
	Title          string                  `json:"title" binding:"required"`
	Description    string                  `json:"description"`
	Category       model.TaskCategory      `json:"category"`
	Priority       model.TaskPriority      `json:"priority"`
	TimeFrame      string                  `json:"time_frame"`
	StartDate      time.Time               `json:"start_date" binding:"required"`
	EndDate        time.Time               `json:"end_date" binding:"required"`
	EstimatedHours float64                 `json:"estimated_hours"`
	Tags           []string                `json:"tags"`
	Recurrence     string                  `json:"recurrence"`
	ParentID       *int                    `json:"parent_id"`
	Notifications  model.NotificationPrefs `json:"notifications"`
}

func (h *TaskHandler) CreateTask(c *gin.Context) {
	var req createTaskRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	task := &model.Task{
		UserID:         c.GetInt("user_id"),
		ParentID:       req.ParentID,
		Title:          req.Title,
		Description:    req.Description,
		Category:       req.Category,
		Priority:       req.Priority,
		TimeFrame:      req.TimeFrame,
		StartDate:      req.StartDate,
		EndDate:        req.EndDate,
		EstimatedHours: req.EstimatedHours,
		Tags:           req.Tags,
		Recurrence:     req.Recurrence,
		Notifications:  req.Notifications,
	}

	created, err := h.tasks.Create(c.Request.Context(), task)
	if err != nil {
		if errors.Is(err, service.ErrInvalidDates) || errors.Is(err, service.ErrEmptyTitle) {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		h.logger.Error("CreateTask failed", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to create task"})
		return
	}

	c.JSON(http.StatusCreated, created)
}

func (h *TaskHandler) ListTasks(c *gin.Context) {
	userID := c.GetInt("user_id")

	tasks, err := h.tasks.ListByUser(c.Request.Context(), userID)
	if err != nil {
		h.logger.Error("ListTasks failed",
			zap.Int("user_id", userID),
			zap.Error(err),
		)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to fetch tasks"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"tasks": tasks})
}

func (h *TaskHandler) GetTask(c *gin.Context) {
	id, ok := h.taskID(c)
	if !ok {
		return
	}

	task, err := h.tasks.Get(c.Request.Context(), id)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			c.JSON(http.StatusNotFound, gin.H{"error": "task not found"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to fetch task"})
		return
	}
	if task.UserID != c.GetInt("user_id") {
		c.JSON(http.StatusNotFound, gin.H{"error": "task not found"})
		return
	}

	c.JSON(http.StatusOK, task)
}

func (h *TaskHandler) ListSubtasks(c *gin.Context) {
	id, ok := h.taskID(c)
	if !ok {
		return
	}
	if !h.ownsTask(c, id) {
		return
	}

	subtasks, err := h.tasks.ListSubtasks(c.Request.Context(), id)
	if err != nil {
		h.logger.Error("ListSubtasks failed", zap.Int("task_id", id), zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to fetch subtasks"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"subtasks": subtasks})
}

type updateTaskRequest struct {
	Title         *string                  `json:"title"`
	Description   *string                  `json:"description"`
	Category      *model.TaskCategory      `json:"category"`
	Priority      *model.TaskPriority      `json:"priority"`
	Status        *model.TaskStatus        `json:"status"`
	StartDate     *time.Time               `json:"start_date"`
	EndDate       *time.Time               `json:"end_date"`
	Progress      *int                     `json:"progress"`
	ActualHours   *float64                 `json:"actual_hours"`
	Tags          []string                 `json:"tags"`
	Notifications *model.NotificationPrefs `json:"notifications"`
}

func (h *TaskHandler) UpdateTask(c *gin.Context) {
	id, ok := h.taskID(c)
	if !ok {
		return
	}
	if !h.ownsTask(c, id) {
		return
	}

	var req updateTaskRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	task, err := h.tasks.Update(c.Request.Context(), id, func(t *model.Task) {
		if req.Title != nil {
			t.Title = *req.Title
		}
		if req.Description != nil {
			t.Description = *req.Description
		}
		if req.Category != nil {
			t.Category = *req.Category
		}
		if req.Priority != nil {
			t.Priority = *req.Priority
		}
		if req.Status != nil {
			t.Status = *req.Status
		}
		if req.StartDate != nil {
			t.StartDate = *req.StartDate
		}
		if req.EndDate != nil {
			t.EndDate = *req.EndDate
		}
		if req.Progress != nil {
			t.ApplyProgress(*req.Progress)
		}
		if req.ActualHours != nil {
			t.ActualHours = *req.ActualHours
		}
		if req.Tags != nil {
			t.Tags = req.Tags
		}
		if req.Notifications != nil {
			t.Notifications = *req.Notifications
		}
	})
	if err != nil {
		switch {
		case errors.Is(err, pgx.ErrNoRows):
			c.JSON(http.StatusNotFound, gin.H{"error": "task not found"})
		case errors.Is(err, service.ErrInvalidDates):
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		default:
			h.logger.Error("UpdateTask failed", zap.Int("task_id", id), zap.Error(err))
			c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to update task"})
		}
		return
	}

	c.JSON(http.StatusOK, task)
}

func (h *TaskHandler) StartTask(c *gin.Context) {
	id, ok := h.taskID(c)
	if !ok {
		return
	}
	if !h.ownsTask(c, id) {
		return
	}

	task, err := h.tasks.Start(c.Request.Context(), id)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			c.JSON(http.StatusNotFound, gin.H{"error": "task not found"})
			return
		}
		h.logger.Error("StartTask failed", zap.Int("task_id", id), zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to start task"})
		return
	}

	c.JSON(http.StatusOK, task)
}

func (h *TaskHandler) CompleteTask(c *gin.Context) {
	id, ok := h.taskID(c)
	if !ok {
		return
	}
	if !h.ownsTask(c, id) {
		return
	}

	task, err := h.tasks.Complete(c.Request.Context(), id)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			c.JSON(http.StatusNotFound, gin.H{"error": "task not found"})
			return
		}
		h.logger.Error("CompleteTask failed", zap.Int("task_id", id), zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to complete task"})
		return
	}

	c.JSON(http.StatusOK, task)
}

func (h *TaskHandler) DeleteTask(c *gin.Context) {
	id, ok := h.taskID(c)
	if !ok {
		return
	}
	if !h.ownsTask(c, id) {
		return
	}

	tasksDeleted, notifsDeleted, err := h.tasks.Delete(c.Request.Context(), id)
	if err != nil {
		h.logger.Error("DeleteTask failed", zap.Int("task_id", id), zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to delete task"})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"tasks_deleted":         tasksDeleted,
		"notifications_deleted": notifsDeleted,
	})
}

// ownsTask verifies the task exists and belongs to the caller; other users'
// tasks read as not found. Writes the error response itself.
func (h *TaskHandler) ownsTask(c *gin.Context, id int) bool {
	task, err := h.tasks.Get(c.Request.Context(), id)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			c.JSON(http.StatusNotFound, gin.H{"error": "task not found"})
			return false
		}
		h.logger.Error("Task lookup failed", zap.Int("task_id", id), zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to fetch task"})
		return false
	}
	if task.UserID != c.GetInt("user_id") {
		c.JSON(http.StatusNotFound, gin.H{"error": "task not found"})
		return false
	}
	return true
}

func (h *TaskHandler) taskID(c *gin.Context) (int, bool) {
	id, err := strconv.Atoi(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid task id"})
		return 0, false
	}
	return id, true
}
