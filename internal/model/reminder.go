package model

import "time"

// ReminderKind はリマインダーの種類を表す。
type ReminderKind string

const (
	ReminderKindFastStart ReminderKind = "fast_start"
	ReminderKindFastEnd   ReminderKind = "fast_end"
	ReminderKindWeighIn   ReminderKind = "weigh_in"
	ReminderKindMealLog   ReminderKind = "meal_log"
	ReminderKindCustom    ReminderKind = "custom"
)

// Valid は既知の種類かどうかを返す。
func (k ReminderKind) Valid() bool {
	switch k {
	case ReminderKindFastStart, ReminderKindFastEnd, ReminderKindWeighIn, ReminderKindMealLog, ReminderKindCustom:
		return true
	}
	return false
}

// 配信チャネル
const (
	ReminderChannelLog     = "log"
	ReminderChannelWebhook = "webhook"
)

// Reminder は指定時刻に配信される通知を表す。
type Reminder struct {
	ID              string
	UserID          string
	ScheduledFastID *string
	Kind            ReminderKind
	Message         string
	RemindAt        time.Time
	Channel         string
	WebhookURL      string
	Enabled         bool
	SentAt          *time.Time
	LastError       string
	CreatedAt       time.Time
	UpdatedAt       time.Time
}
