package httpserver

import (
	"context"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"taskplanner/internal/handler"
)

type Router struct {
	Engine *gin.Engine
}

func NewRouter(
	authHandler *handler.AuthHandler,
	taskHandler *handler.TaskHandler,
	notificationHandler *handler.NotificationHandler,
	jwtSecret string,
	db *pgxpool.Pool,
	logger *zap.Logger,
) *Router {
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(RequestLogger(logger))

	// Health endpoints
	r.GET("/healthz", func(c *gin.Context) {
		c.JSON(200, gin.H{"status": "ok"})
	})
	r.HEAD("/healthz", func(c *gin.Context) {
		c.Status(200)
	})

	r.GET("/readyz", func(c *gin.Context) {
		ctx, cancel := context.WithTimeout(c, 1*time.Second)
		defer cancel()

		if err := db.Ping(ctx); err != nil {
			c.JSON(500, gin.H{"status": "db_not_ready", "error": err.Error()})
			return
		}

		c.JSON(200, gin.H{"status": "ready"})
	})

	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	// Public
	r.POST("/register", authHandler.Register)
	r.POST("/login", authHandler.Login)

	// Protected
	auth := r.Group("/")
	auth.Use(AuthMiddleware(jwtSecret))
	{
		auth.POST("/tasks", taskHandler.CreateTask)
		auth.GET("/tasks", taskHandler.ListTasks)
		auth.GET("/tasks/:id", taskHandler.GetTask)
		auth.GET("/tasks/:id/subtasks", taskHandler.ListSubtasks)
		auth.PUT("/tasks/:id", taskHandler.UpdateTask)
		auth.POST("/tasks/:id/start", taskHandler.StartTask)
		auth.POST("/tasks/:id/complete", taskHandler.CompleteTask)
		auth.DELETE("/tasks/:id", taskHandler.DeleteTask)

		auth.GET("/tasks/:id/notifications", notificationHandler.ListTaskNotifications)
		auth.GET("/notifications", notificationHandler.ListNotifications)
		auth.POST("/notifications/:id/requeue", notificationHandler.RequeueNotification)
	}

	return &Router{Engine: r}
}
