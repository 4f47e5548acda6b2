package notify

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"taskplanner/internal/mailer"
	"taskplanner/internal/model"
)

// Result is the outcome of one dispatch attempt. The gateway reports failure
// through the result, never through a panic or a propagated error.
type Result struct {
	Success   bool
	MessageID string
	Err       string
}

type template func(task *model.Task, user *model.User) (subject, body string)

// Gateway renders a notification type into an email and attempts delivery
// through the mail transport. It never retries; retry accounting belongs to
// the sweep via the stored retry counter.
type Gateway struct {
	mailer    mailer.Mailer
	templates map[model.NotificationType]template
	logger    *zap.Logger
}

func NewGateway(m mailer.Mailer, logger *zap.Logger) *Gateway {
	return &Gateway{
		mailer:    m,
		templates: defaultTemplates(),
		logger:    logger,
	}
}

func defaultTemplates() map[model.NotificationType]template {
	return map[model.NotificationType]template{
		model.NotificationStart: func(t *model.Task, u *model.User) (string, string) {
			return fmt.Sprintf("Task starting: %s", t.Title),
				fmt.Sprintf("<p>Hi %s,</p><p>Your task <b>%s</b> starts on %s.</p>",
					u.Username, t.Title, t.StartDate.Format("Mon, 02 Jan 2006 15:04"))
		},
		model.NotificationReminder: func(t *model.Task, u *model.User) (string, string) {
			return fmt.Sprintf("Reminder: %s is due soon", t.Title),
				fmt.Sprintf("<p>Hi %s,</p><p>Your task <b>%s</b> is due on %s. Current progress: %d%%.</p>",
					u.Username, t.Title, t.EndDate.Format("Mon, 02 Jan 2006 15:04"), t.Progress)
		},
		model.NotificationDue: func(t *model.Task, u *model.User) (string, string) {
			return fmt.Sprintf("Task due: %s", t.Title),
				fmt.Sprintf("<p>Hi %s,</p><p>Your task <b>%s</b> is due now.</p>",
					u.Username, t.Title)
		},
		model.NotificationOverdue: func(t *model.Task, u *model.User) (string, string) {
			return fmt.Sprintf("Task overdue: %s", t.Title),
				fmt.Sprintf("<p>Hi %s,</p><p>Your task <b>%s</b> was due on %s and is now overdue.</p>",
					u.Username, t.Title, t.EndDate.Format("Mon, 02 Jan 2006 15:04"))
		},
		model.NotificationCreated: func(t *model.Task, u *model.User) (string, string) {
			return fmt.Sprintf("Task created: %s", t.Title),
				fmt.Sprintf("<p>Hi %s,</p><p>Your task <b>%s</b> was created. It runs from %s to %s.</p>",
					u.Username, t.Title,
					t.StartDate.Format("Mon, 02 Jan 2006"), t.EndDate.Format("Mon, 02 Jan 2006"))
		},
		model.NotificationCompleted: func(t *model.Task, u *model.User) (string, string) {
			return fmt.Sprintf("Task completed: %s", t.Title),
				fmt.Sprintf("<p>Hi %s,</p><p>Well done! You completed <b>%s</b>.</p>",
					u.Username, t.Title)
		},
	}
}

// Render produces the subject and body for a notification type.
func (g *Gateway) Render(notifType model.NotificationType, task *model.Task, user *model.User) (string, string, error) {
	tmpl, ok := g.templates[notifType]
	if !ok {
		return "", "", fmt.Errorf("%w: %s", ErrTemplateMissing, notifType)
	}
	subject, body := tmpl(task, user)
	return subject, body, nil
}

// Send renders and delivers a notification type for a task and user.
func (g *Gateway) Send(ctx context.Context, notifType model.NotificationType, task *model.Task, user *model.User) Result {
	subject, body, err := g.Render(notifType, task, user)
	if err != nil {
		return Result{Err: err.Error()}
	}
	return g.deliver(ctx, user.Email, subject, body, notifType)
}

// Deliver sends an already-rendered notification record.
func (g *Gateway) Deliver(ctx context.Context, n *model.Notification) Result {
	if n.Subject == "" && n.Message == "" {
		return Result{Err: fmt.Sprintf("%s: %s", ErrTemplateMissing.Error(), n.Type)}
	}
	return g.deliver(ctx, n.Recipient, n.Subject, n.Message, n.Type)
}

func (g *Gateway) deliver(ctx context.Context, to, subject, body string, notifType model.NotificationType) Result {
	if !g.mailer.Configured() {
		// Not fatal: the system keeps operating without email delivery.
		g.logger.Warn("Mail transport not configured, skipping delivery",
			zap.String("to", to),
			zap.String("type", string(notifType)),
			zap.String("subject", subject),
		)
		return Result{Err: "mail transport not configured"}
	}

	sendCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	messageID, err := g.mailer.Send(sendCtx, to, subject, body)
	if err != nil {
		g.logger.Error("Dispatch failed",
			zap.String("to", to),
			zap.String("type", string(notifType)),
			zap.Error(err),
		)
		return Result{Err: err.Error()}
	}

	return Result{Success: true, MessageID: messageID}
}
