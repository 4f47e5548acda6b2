package model

import "time"

type TaskStatus string

const (
	TaskStatusTodo       TaskStatus = "todo"
	TaskStatusInProgress TaskStatus = "in_progress"
	TaskStatusDone       TaskStatus = "done"
	TaskStatusCancelled  TaskStatus = "cancelled"
)

type TaskPriority string

const (
	TaskPriorityLow    TaskPriority = "low"
	TaskPriorityMedium TaskPriority = "medium"
	TaskPriorityHigh   TaskPriority = "high"
	TaskPriorityUrgent TaskPriority = "urgent"
)

type TaskCategory string

const (
	TaskCategoryWork     TaskCategory = "work"
	TaskCategoryPersonal TaskCategory = "personal"
	TaskCategoryStudy    TaskCategory = "study"
	TaskCategoryHealth   TaskCategory = "health"
	TaskCategoryOther    TaskCategory = "other"
)

// NotificationPrefs are the per-task flags that drive notification derivation.
type NotificationPrefs struct {
	SendOnStart       bool `json:"send_on_start"`
	SendOnEnd         bool `json:"send_on_end"`
	SendReminder      bool `json:"send_reminder"`
	ReminderDaysAhead int  `json:"reminder_days_ahead"`
}

type Task struct {
	ID             int               `json:"id"`
	UserID         int               `json:"user_id"`
	ParentID       *int              `json:"parent_id,omitempty"`
	Title          string            `json:"title"`
	Description    string            `json:"description"`
	Category       TaskCategory      `json:"category"`
	Priority       TaskPriority      `json:"priority"`
	Status         TaskStatus        `json:"status"`
	TimeFrame      string            `json:"time_frame"`
	StartDate      time.Time         `json:"start_date"`
	EndDate        time.Time         `json:"end_date"`
	EstimatedHours float64           `json:"estimated_hours"`
	ActualHours    float64           `json:"actual_hours"`
	Progress       int               `json:"progress"`
	Tags           []string          `json:"tags"`
	Recurrence     string            `json:"recurrence"`
	Notifications  NotificationPrefs `json:"notifications"`
	CreatedAt      time.Time         `json:"created_at"`
	UpdatedAt      time.Time         `json:"updated_at"`
}

// Open reports whether the task can still become overdue.
func (t *Task) Open() bool {
	return t.Status != TaskStatusDone && t.Status != TaskStatusCancelled
}

// ApplyProgress sets progress and derives the status coupling:
// 100 forces done, anything above zero forces in_progress.
func (t *Task) ApplyProgress(progress int) {
	t.Progress = progress
	switch {
	case progress >= 100:
		t.Progress = 100
		t.Status = TaskStatusDone
	case progress > 0 && t.Status == TaskStatusTodo:
		t.Status = TaskStatusInProgress
	}
}
