package mailer

import (
	"context"
	"strings"
	"testing"

	"go.uber.org/zap"

	"taskplanner/internal/config"
)

func TestConfigured(t *testing.T) {
	tests := []struct {
		name string
		cfg  config.MailConfig
		want bool
	}{
		{"complete", config.MailConfig{Host: "smtp.example.com", Username: "u", Password: "p"}, true},
		{"no host", config.MailConfig{Username: "u", Password: "p"}, false},
		{"no credentials", config.MailConfig{Host: "smtp.example.com"}, false},
		{"empty", config.MailConfig{}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m := NewSMTPMailer(tt.cfg, zap.NewNop())
			if got := m.Configured(); got != tt.want {
				t.Errorf("Configured() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestSendUnconfiguredFailsFast(t *testing.T) {
	m := NewSMTPMailer(config.MailConfig{}, zap.NewNop())
	if _, err := m.Send(context.Background(), "a@b.com", "s", "b"); err == nil {
		t.Fatal("expected error from unconfigured transport")
	}
}

func TestSendHonorsCancelledContext(t *testing.T) {
	m := NewSMTPMailer(config.MailConfig{Host: "smtp.example.com", Username: "u", Password: "p"}, zap.NewNop())
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := m.Send(ctx, "a@b.com", "s", "b"); err == nil {
		t.Fatal("expected error for cancelled context")
	}
}

func TestSanitizeLocal(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"alice@example.com", "alice"},
		{"a.b+c@example.com", "a-b-c"},
		{"noat", "noat"},
	}
	for _, tt := range tests {
		if got := sanitizeLocal(tt.in); got != tt.want {
			t.Errorf("sanitizeLocal(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestSanitizeLocalKeepsAlphanumerics(t *testing.T) {
	got := sanitizeLocal("User123@example.com")
	if got != "User123" {
		t.Errorf("sanitizeLocal = %q", got)
	}
	if strings.ContainsAny(got, "@.") {
		t.Errorf("sanitized local part still contains separators: %q", got)
	}
}
