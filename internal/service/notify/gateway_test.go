package notify

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"taskplanner/internal/model"
)

func TestGatewayRender(t *testing.T) {
	gateway := NewGateway(newFakeMailer(), testLogger())
	task := testTask(1, time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC), time.Date(2026, 3, 6, 17, 0, 0, 0, time.UTC))
	user := testUser()

	for _, notifType := range []model.NotificationType{
		model.NotificationStart,
		model.NotificationReminder,
		model.NotificationDue,
		model.NotificationOverdue,
		model.NotificationCreated,
		model.NotificationCompleted,
	} {
		subject, body, err := gateway.Render(notifType, task, user)
		if err != nil {
			t.Errorf("Render(%s): %v", notifType, err)
			continue
		}
		if subject == "" || body == "" {
			t.Errorf("Render(%s): empty subject or body", notifType)
		}
		if !strings.Contains(subject, task.Title) {
			t.Errorf("Render(%s): subject %q does not mention the task", notifType, subject)
		}
		if !strings.Contains(body, user.Username) {
			t.Errorf("Render(%s): body does not greet the user", notifType)
		}
	}
}

func TestGatewayRenderUnknownType(t *testing.T) {
	gateway := NewGateway(newFakeMailer(), testLogger())
	task := testTask(1, time.Now(), time.Now().Add(time.Hour))

	_, _, err := gateway.Render(model.NotificationType("bogus"), task, testUser())
	if !errors.Is(err, ErrTemplateMissing) {
		t.Fatalf("expected ErrTemplateMissing, got %v", err)
	}
}

func TestGatewaySendDelivers(t *testing.T) {
	m := newFakeMailer()
	gateway := NewGateway(m, testLogger())
	task := testTask(1, time.Now(), time.Now().Add(time.Hour))

	result := gateway.Send(context.Background(), model.NotificationDue, task, testUser())
	if !result.Success {
		t.Fatalf("Send failed: %s", result.Err)
	}
	if result.MessageID == "" {
		t.Error("expected a message id on success")
	}
	if len(m.sent) != 1 || m.sent[0].To != "alice@example.com" {
		t.Errorf("sent = %+v", m.sent)
	}
}

func TestGatewayUnconfiguredTransportDegrades(t *testing.T) {
	m := newFakeMailer()
	m.configured = false
	gateway := NewGateway(m, testLogger())
	task := testTask(1, time.Now(), time.Now().Add(time.Hour))

	result := gateway.Send(context.Background(), model.NotificationDue, task, testUser())
	if result.Success {
		t.Fatal("expected failure result from unconfigured transport")
	}
	if result.Err != "mail transport not configured" {
		t.Errorf("err = %q", result.Err)
	}
	if len(m.sent) != 0 {
		t.Error("no mail must go out through an unconfigured transport")
	}
}

func TestGatewayDeliverRequiresContent(t *testing.T) {
	gateway := NewGateway(newFakeMailer(), testLogger())

	n := &model.Notification{
		ID:        7,
		Type:      model.NotificationDue,
		Recipient: "alice@example.com",
	}
	result := gateway.Deliver(context.Background(), n)
	if result.Success {
		t.Fatal("expected failure for a record with no rendered content")
	}
	if !strings.Contains(result.Err, "template not found") {
		t.Errorf("err = %q, want a template-not-found failure", result.Err)
	}
}

func TestGatewayDeliverUsesStoredContent(t *testing.T) {
	m := newFakeMailer()
	gateway := NewGateway(m, testLogger())

	n := &model.Notification{
		ID:        7,
		Type:      model.NotificationReminder,
		Recipient: "alice@example.com",
		Subject:   "stored subject",
		Message:   "<p>stored body</p>",
	}
	result := gateway.Deliver(context.Background(), n)
	if !result.Success {
		t.Fatalf("Deliver failed: %s", result.Err)
	}
	if m.sent[0].Subject != "stored subject" || m.sent[0].Body != "<p>stored body</p>" {
		t.Errorf("delivered %+v, want the stored content verbatim", m.sent[0])
	}
}
