package handler

import (
	"context"
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/jackc/pgx/v5"
	"go.uber.org/zap"

	"taskplanner/internal/model"
)

// NotificationReader is the slice of the notification repository the handler
// needs. *repository.NotificationRepository satisfies it.
type NotificationReader interface {
	ListByUser(ctx context.Context, userID int) ([]*model.Notification, error)
	ListByTask(ctx context.Context, taskID int, notifType model.NotificationType, statuses []model.NotificationStatus) ([]*model.Notification, error)
	GetByID(ctx context.Context, id int) (*model.Notification, error)
	Requeue(ctx context.Context, id int) (bool, error)
}

type NotificationHandler struct {
	notifications NotificationReader
	logger        *zap.Logger
}

func NewNotificationHandler(notifications NotificationReader, logger *zap.Logger) *NotificationHandler {
	return &NotificationHandler{notifications: notifications, logger: logger}
}

func (h *NotificationHandler) ListNotifications(c *gin.Context) {
	userID := c.GetInt("user_id")

	notifications, err := h.notifications.ListByUser(c.Request.Context(), userID)
	if err != nil {
		h.logger.Error("ListNotifications failed",
			zap.Int("user_id", userID),
			zap.Error(err),
		)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to fetch notifications"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"notifications": notifications})
}

// ListTaskNotifications returns one task's notification history, optionally
// filtered by `type` and `status` query params. Records belonging to other
// users are filtered out rather than erroring, matching the not-found
// behavior of the task routes.
func (h *NotificationHandler) ListTaskNotifications(c *gin.Context) {
	taskID, err := strconv.Atoi(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid task id"})
		return
	}

	notifType := model.NotificationType(c.Query("type"))
	var statuses []model.NotificationStatus
	if s := c.Query("status"); s != "" {
		statuses = append(statuses, model.NotificationStatus(s))
	}

	notifications, err := h.notifications.ListByTask(c.Request.Context(), taskID, notifType, statuses)
	if err != nil {
		h.logger.Error("ListTaskNotifications failed",
			zap.Int("task_id", taskID),
			zap.Error(err),
		)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to fetch notifications"})
		return
	}

	userID := c.GetInt("user_id")
	owned := make([]*model.Notification, 0, len(notifications))
	for _, n := range notifications {
		if n.UserID == userID {
			owned = append(owned, n)
		}
	}

	c.JSON(http.StatusOK, gin.H{"notifications": owned})
}

// RequeueNotification is the operator path for retrying a failed record.
// There is no automatic failed->pending transition anywhere; this endpoint is
// the only unstick.
func (h *NotificationHandler) RequeueNotification(c *gin.Context) {
	id, err := strconv.Atoi(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid notification id"})
		return
	}

	n, err := h.notifications.GetByID(c.Request.Context(), id)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			c.JSON(http.StatusNotFound, gin.H{"error": "notification not found"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to fetch notification"})
		return
	}
	if n.UserID != c.GetInt("user_id") {
		c.JSON(http.StatusNotFound, gin.H{"error": "notification not found"})
		return
	}
	if !n.CanRetry() {
		c.JSON(http.StatusConflict, gin.H{"error": "notification cannot be retried"})
		return
	}

	ok, err := h.notifications.Requeue(c.Request.Context(), id)
	if err != nil {
		h.logger.Error("Requeue failed", zap.Int("notification_id", id), zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to requeue notification"})
		return
	}
	if !ok {
		c.JSON(http.StatusConflict, gin.H{"error": "notification cannot be retried"})
		return
	}

	h.logger.Info("Notification requeued",
		zap.Int("notification_id", id),
		zap.Int("retry_count", n.RetryCount),
	)
	c.JSON(http.StatusOK, gin.H{"status": "pending"})
}
