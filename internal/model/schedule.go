package model

import "time"

// Recurrence はスケジュールの繰り返し間隔を表す。
type Recurrence string

const (
	RecurrenceNone    Recurrence = "none"
	RecurrenceDaily   Recurrence = "daily"
	RecurrenceWeekly  Recurrence = "weekly"
	RecurrenceMonthly Recurrence = "monthly"
)

// Valid は既知の繰り返し間隔かどうかを返す。
func (r Recurrence) Valid() bool {
	switch r {
	case RecurrenceNone, RecurrenceDaily, RecurrenceWeekly, RecurrenceMonthly:
		return true
	}
	return false
}

// ScheduleStatus は予定ファスティングの状態を表す。
type ScheduleStatus string

const (
	ScheduleStatusPlanned   ScheduleStatus = "planned"
	ScheduleStatusStarted   ScheduleStatus = "started"
	ScheduleStatusCompleted ScheduleStatus = "completed"
	ScheduleStatusSkipped   ScheduleStatus = "skipped"
)

// ScheduledFast は将来のファスティング予定を表す。
// 繰り返し設定を持つものはシリーズで、ParentID を持つものはその生成インスタンス。
type ScheduledFast struct {
	ID               string
	UserID           string
	Title            string
	StartAt          time.Time
	TargetHours      float64
	Recurrence       Recurrence
	Weekdays         []int
	RecurrenceEnd    *time.Time
	ParentID         *string
	Status           ScheduleStatus
	FastingSessionID *string
	CreatedAt        time.Time
	UpdatedAt        time.Time
}

// IsSeries は繰り返しシリーズかどうかを返す。
func (s *ScheduledFast) IsSeries() bool {
	return s.ParentID == nil && s.Recurrence != RecurrenceNone && s.Recurrence != ""
}
