package notify

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"taskplanner/internal/model"
)

type recordedEvent struct {
	RoutingKey string
	Payload    any
}

type fakePublisher struct {
	mu     sync.Mutex
	events []recordedEvent
	err    error
}

func (p *fakePublisher) Publish(routingKey string, payload any) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.err != nil {
		return p.err
	}
	p.events = append(p.events, recordedEvent{RoutingKey: routingKey, Payload: payload})
	return nil
}

func newTestSweeper(store *fakeStore, tasks *fakeTaskStore, users *fakeUserStore, m *fakeMailer, clock Clock) (*Sweeper, *fakePublisher) {
	gateway := NewGateway(m, testLogger())
	engine := NewEngine(store, gateway, testLogger(), clock, 1, 3)
	publisher := &fakePublisher{}
	sweeper := NewSweeper(store, tasks, users, engine, gateway, publisher, testLogger(), clock, 30)
	return sweeper, publisher
}

func pendingAt(store *fakeStore, taskID int, notifType model.NotificationType, at time.Time) *model.Notification {
	n := &model.Notification{
		TaskID:       taskID,
		UserID:       1,
		Type:         notifType,
		Recipient:    "alice@example.com",
		Subject:      "subject",
		Message:      "<p>body</p>",
		ScheduledFor: at,
		Status:       model.NotificationPending,
		MaxRetries:   3,
	}
	if _, err := store.InsertBatch(context.Background(), []*model.Notification{n}); err != nil {
		panic(err)
	}
	return n
}

func TestDispatchDueSendsOnlyDueRecords(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	store := newFakeStore()
	m := newFakeMailer()
	sweeper, publisher := newTestSweeper(store, &fakeTaskStore{}, &fakeUserStore{}, m, fixedClock(now))

	due1 := pendingAt(store, 1, model.NotificationStart, now.Add(-time.Hour))
	due2 := pendingAt(store, 2, model.NotificationReminder, now.Add(-time.Minute))
	due3 := pendingAt(store, 3, model.NotificationDue, now)
	future1 := pendingAt(store, 4, model.NotificationStart, now.Add(time.Minute))
	future2 := pendingAt(store, 5, model.NotificationDue, now.Add(48*time.Hour))

	attempted, err := sweeper.DispatchDue(context.Background())
	if err != nil {
		t.Fatalf("DispatchDue: %v", err)
	}
	if attempted != 3 {
		t.Fatalf("attempted = %d, want 3", attempted)
	}
	if len(m.sent) != 3 {
		t.Fatalf("mailer sent %d, want 3", len(m.sent))
	}

	for _, n := range []*model.Notification{due1, due2, due3} {
		got, _ := store.GetByID(context.Background(), n.ID)
		if got.Status != model.NotificationSent {
			t.Errorf("notification %d status = %s, want sent", n.ID, got.Status)
		}
		if got.SentAt == nil || !got.SentAt.Equal(now) {
			t.Errorf("notification %d sent_at = %v, want %v", n.ID, got.SentAt, now)
		}
	}
	for _, n := range []*model.Notification{future1, future2} {
		got, _ := store.GetByID(context.Background(), n.ID)
		if got.Status != model.NotificationPending {
			t.Errorf("future notification %d status = %s, want pending", n.ID, got.Status)
		}
	}

	if len(publisher.events) != 3 {
		t.Fatalf("published %d events, want 3", len(publisher.events))
	}
	for _, ev := range publisher.events {
		if ev.RoutingKey != "notification.sent" {
			t.Errorf("routing key = %s, want notification.sent", ev.RoutingKey)
		}
	}
}

func TestDispatchDueMarksFailures(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	store := newFakeStore()
	m := newFakeMailer()
	m.failWith = errors.New("smtp: connection refused")
	sweeper, publisher := newTestSweeper(store, &fakeTaskStore{}, &fakeUserStore{}, m, fixedClock(now))

	n := pendingAt(store, 1, model.NotificationDue, now.Add(-time.Hour))

	if _, err := sweeper.DispatchDue(context.Background()); err != nil {
		t.Fatalf("DispatchDue: %v", err)
	}

	got, _ := store.GetByID(context.Background(), n.ID)
	if got.Status != model.NotificationFailed {
		t.Fatalf("status = %s, want failed", got.Status)
	}
	if got.RetryCount != 1 {
		t.Errorf("retry count = %d, want 1", got.RetryCount)
	}
	if got.LastError != "smtp: connection refused" {
		t.Errorf("last error = %q", got.LastError)
	}

	// A failed record is not pending; the next run must not pick it up.
	attempted, err := sweeper.DispatchDue(context.Background())
	if err != nil {
		t.Fatalf("second DispatchDue: %v", err)
	}
	if attempted != 0 {
		t.Fatalf("second run attempted %d, want 0", attempted)
	}
	got, _ = store.GetByID(context.Background(), n.ID)
	if got.RetryCount != 1 {
		t.Errorf("retry count after second run = %d, want 1", got.RetryCount)
	}

	if len(publisher.events) != 1 || publisher.events[0].RoutingKey != "notification.failed" {
		t.Errorf("events = %+v, want one notification.failed", publisher.events)
	}
}

func TestDispatchDueFailureRequeuedByOperator(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	store := newFakeStore()
	m := newFakeMailer()
	m.failWith = errors.New("smtp timeout")
	sweeper, _ := newTestSweeper(store, &fakeTaskStore{}, &fakeUserStore{}, m, fixedClock(now))

	n := pendingAt(store, 1, model.NotificationDue, now.Add(-time.Hour))
	if _, err := sweeper.DispatchDue(context.Background()); err != nil {
		t.Fatalf("DispatchDue: %v", err)
	}

	ok, err := store.Requeue(context.Background(), n.ID)
	if err != nil {
		t.Fatalf("Requeue: %v", err)
	}
	if !ok {
		t.Fatal("expected requeue to succeed for a failed record under max retries")
	}

	m.failWith = nil
	attempted, err := sweeper.DispatchDue(context.Background())
	if err != nil {
		t.Fatalf("DispatchDue after requeue: %v", err)
	}
	if attempted != 1 {
		t.Fatalf("attempted = %d, want 1", attempted)
	}
	got, _ := store.GetByID(context.Background(), n.ID)
	if got.Status != model.NotificationSent {
		t.Errorf("status = %s, want sent after requeue and retry", got.Status)
	}
}

func TestDetectOverdueOncePerTask(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	store := newFakeStore()

	overdueTask := testTask(1, now.Add(-96*time.Hour), now.Add(-24*time.Hour))
	openTask := testTask(2, now.Add(-time.Hour), now.Add(24*time.Hour))
	doneTask := testTask(3, now.Add(-96*time.Hour), now.Add(-24*time.Hour))
	doneTask.Status = model.TaskStatusDone

	tasks := &fakeTaskStore{tasks: map[int]*model.Task{1: overdueTask, 2: openTask, 3: doneTask}}
	users := &fakeUserStore{users: map[int]*model.User{1: testUser()}}
	sweeper, _ := newTestSweeper(store, tasks, users, newFakeMailer(), fixedClock(now))

	created, err := sweeper.DetectOverdue(context.Background())
	if err != nil {
		t.Fatalf("DetectOverdue: %v", err)
	}
	if created != 1 {
		t.Fatalf("created = %d, want 1", created)
	}

	created, err = sweeper.DetectOverdue(context.Background())
	if err != nil {
		t.Fatalf("second DetectOverdue: %v", err)
	}
	if created != 0 {
		t.Fatalf("second run created = %d, want 0", created)
	}

	records := store.byType(model.NotificationOverdue)
	if len(records) != 1 {
		t.Fatalf("expected exactly 1 overdue record, got %d", len(records))
	}
	if records[0].TaskID != 1 {
		t.Errorf("overdue record for task %d, want 1", records[0].TaskID)
	}
	if !records[0].ScheduledFor.Equal(now) {
		t.Errorf("overdue scheduled at %v, want now", records[0].ScheduledFor)
	}
}

func TestDetectOverdueSkipsTasksWithMissingOwner(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	store := newFakeStore()

	orphan := testTask(1, now.Add(-96*time.Hour), now.Add(-24*time.Hour))
	orphan.UserID = 99
	owned := testTask(2, now.Add(-96*time.Hour), now.Add(-24*time.Hour))

	tasks := &fakeTaskStore{tasks: map[int]*model.Task{1: orphan, 2: owned}}
	users := &fakeUserStore{users: map[int]*model.User{1: testUser()}}
	sweeper, _ := newTestSweeper(store, tasks, users, newFakeMailer(), fixedClock(now))

	created, err := sweeper.DetectOverdue(context.Background())
	if err != nil {
		t.Fatalf("DetectOverdue: %v", err)
	}
	if created != 1 {
		t.Fatalf("created = %d, want 1 (orphan skipped, batch continues)", created)
	}
}

func TestPurgeSentRespectsRetention(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	store := newFakeStore()
	sweeper, _ := newTestSweeper(store, &fakeTaskStore{}, &fakeUserStore{}, newFakeMailer(), fixedClock(now))

	old := pendingAt(store, 1, model.NotificationStart, now.Add(-40*24*time.Hour))
	oldSentAt := now.Add(-31 * 24 * time.Hour)
	if err := store.MarkSent(context.Background(), old.ID, oldSentAt); err != nil {
		t.Fatal(err)
	}

	recent := pendingAt(store, 2, model.NotificationStart, now.Add(-10*24*time.Hour))
	if err := store.MarkSent(context.Background(), recent.ID, now.Add(-10*24*time.Hour)); err != nil {
		t.Fatal(err)
	}

	stalePending := pendingAt(store, 3, model.NotificationDue, now.Add(-60*24*time.Hour))

	deleted, err := sweeper.PurgeSent(context.Background())
	if err != nil {
		t.Fatalf("PurgeSent: %v", err)
	}
	if deleted != 1 {
		t.Fatalf("deleted = %d, want 1", deleted)
	}

	if _, err := store.GetByID(context.Background(), old.ID); err == nil {
		t.Error("expected old sent record to be purged")
	}
	if _, err := store.GetByID(context.Background(), recent.ID); err != nil {
		t.Error("recent sent record must survive the purge")
	}
	if _, err := store.GetByID(context.Background(), stalePending.ID); err != nil {
		t.Error("pending records are never purged, regardless of age")
	}
}
