package notify

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"taskplanner/internal/model"
)

func fixedClock(t time.Time) Clock {
	return func() time.Time { return t }
}

type fakeStore struct {
	mu            sync.Mutex
	notifications []*model.Notification
	nextID        int
	insertErr     error
}

func newFakeStore() *fakeStore {
	return &fakeStore{nextID: 1}
}

func (s *fakeStore) hasLive(taskID int, notifType model.NotificationType) bool {
	for _, n := range s.notifications {
		if n.TaskID == taskID && n.Type == notifType &&
			(n.Status == model.NotificationPending || n.Status == model.NotificationSent) {
			return true
		}
	}
	return false
}

func (s *fakeStore) InsertBatch(ctx context.Context, notifications []*model.Notification) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.insertErr != nil {
		return 0, s.insertErr
	}
	inserted := 0
	for _, n := range notifications {
		if s.hasLive(n.TaskID, n.Type) {
			continue
		}
		n.ID = s.nextID
		s.nextID++
		s.notifications = append(s.notifications, n)
		inserted++
	}
	return inserted, nil
}

func (s *fakeStore) InsertSingleton(ctx context.Context, n *model.Notification) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.insertErr != nil {
		return false, s.insertErr
	}
	if s.hasLive(n.TaskID, n.Type) {
		return false, nil
	}
	n.ID = s.nextID
	s.nextID++
	s.notifications = append(s.notifications, n)
	return true, nil
}

func (s *fakeStore) FindPendingDue(ctx context.Context, now time.Time) ([]*model.Notification, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var due []*model.Notification
	for _, n := range s.notifications {
		if n.Due(now) {
			due = append(due, n)
		}
	}
	return due, nil
}

func (s *fakeStore) GetByID(ctx context.Context, id int) (*model.Notification, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, n := range s.notifications {
		if n.ID == id {
			return n, nil
		}
	}
	return nil, fmt.Errorf("notification %d not found", id)
}

func (s *fakeStore) MarkSent(ctx context.Context, id int, sentAt time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, n := range s.notifications {
		if n.ID == id {
			n.Status = model.NotificationSent
			n.SentAt = &sentAt
			return nil
		}
	}
	return fmt.Errorf("notification %d not found", id)
}

func (s *fakeStore) MarkFailed(ctx context.Context, id int, errMsg string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, n := range s.notifications {
		if n.ID == id {
			n.Status = model.NotificationFailed
			n.RetryCount++
			n.LastError = errMsg
			return nil
		}
	}
	return fmt.Errorf("notification %d not found", id)
}

func (s *fakeStore) Requeue(ctx context.Context, id int) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, n := range s.notifications {
		if n.ID == id && n.Status == model.NotificationFailed && n.RetryCount < n.MaxRetries {
			n.Status = model.NotificationPending
			return true, nil
		}
	}
	return false, nil
}

func (s *fakeStore) DeleteReschedulable(ctx context.Context, taskID int) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var kept []*model.Notification
	var deleted int64
	for _, n := range s.notifications {
		reschedulable := n.Type == model.NotificationStart ||
			n.Type == model.NotificationReminder ||
			n.Type == model.NotificationDue
		nonTerminal := n.Status == model.NotificationPending || n.Status == model.NotificationFailed
		if n.TaskID == taskID && reschedulable && nonTerminal {
			deleted++
			continue
		}
		kept = append(kept, n)
	}
	s.notifications = kept
	return deleted, nil
}

func (s *fakeStore) DeleteSentOlderThan(ctx context.Context, cutoff time.Time) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var kept []*model.Notification
	var deleted int64
	for _, n := range s.notifications {
		if n.Status == model.NotificationSent && n.SentAt != nil && n.SentAt.Before(cutoff) {
			deleted++
			continue
		}
		kept = append(kept, n)
	}
	s.notifications = kept
	return deleted, nil
}

func (s *fakeStore) byType(notifType model.NotificationType) []*model.Notification {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []*model.Notification
	for _, n := range s.notifications {
		if n.Type == notifType {
			out = append(out, n)
		}
	}
	return out
}

type sentMail struct {
	To      string
	Subject string
	Body    string
}

type fakeMailer struct {
	mu          sync.Mutex
	configured  bool
	failWith    error
	sent        []sentMail
	nextMessage int
}

func newFakeMailer() *fakeMailer {
	return &fakeMailer{configured: true}
}

func (m *fakeMailer) Configured() bool { return m.configured }

func (m *fakeMailer) Send(ctx context.Context, to, subject, body string) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failWith != nil {
		return "", m.failWith
	}
	m.sent = append(m.sent, sentMail{To: to, Subject: subject, Body: body})
	m.nextMessage++
	return fmt.Sprintf("msg-%d", m.nextMessage), nil
}

type fakeTaskStore struct {
	tasks map[int]*model.Task
}

func (s *fakeTaskStore) GetByID(ctx context.Context, id int) (*model.Task, error) {
	t, ok := s.tasks[id]
	if !ok {
		return nil, fmt.Errorf("task %d not found", id)
	}
	return t, nil
}

func (s *fakeTaskStore) FindOverdue(ctx context.Context, now time.Time) ([]*model.Task, error) {
	var overdue []*model.Task
	for _, t := range s.tasks {
		if t.Open() && t.EndDate.Before(now) {
			overdue = append(overdue, t)
		}
	}
	return overdue, nil
}

type fakeUserStore struct {
	users map[int]*model.User
}

func (s *fakeUserStore) GetByID(ctx context.Context, id int) (*model.User, error) {
	u, ok := s.users[id]
	if !ok {
		return nil, fmt.Errorf("user %d not found", id)
	}
	return u, nil
}

func testTask(id int, start, end time.Time) *model.Task {
	return &model.Task{
		ID:        id,
		UserID:    1,
		Title:     "write report",
		Status:    model.TaskStatusTodo,
		StartDate: start,
		EndDate:   end,
	}
}

func testUser() *model.User {
	return &model.User{
		ID:       1,
		Username: "alice",
		Email:    "alice@example.com",
	}
}

func testLogger() *zap.Logger {
	return zap.NewNop()
}
