package model

import "time"

type UserPrefs struct {
	EmailNotificationsEnabled bool   `json:"email_notifications_enabled"`
	ReminderTime              string `json:"reminder_time"`
	Timezone                  string `json:"timezone"`
}

type User struct {
	ID           int       `json:"id"`
	Username     string    `json:"username"`
	Email        string    `json:"email"`
	PasswordHash string    `json:"-"`
	Prefs        UserPrefs `json:"prefs"`
	CreatedAt    time.Time `json:"created_at"`
}
