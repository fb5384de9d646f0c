package model

import "time"

// FastStatus はファスティングの状態を表す。
type FastStatus string

const (
	FastStatusActive    FastStatus = "active"
	FastStatusCompleted FastStatus = "completed"
	FastStatusCancelled FastStatus = "cancelled"
)

// Valid は既知の状態かどうかを返す。
func (s FastStatus) Valid() bool {
	switch s {
	case FastStatusActive, FastStatusCompleted, FastStatusCancelled:
		return true
	}
	return false
}

// FastingSession は目標時間に対して計測されるファスティング期間を表す。
type FastingSession struct {
	ID              string
	UserID          string
	StartedAt       time.Time
	EndedAt         *time.Time
	TargetHours     float64
	FastingType     string
	Status          FastStatus
	Notes           string
	ScheduledFastID *string
	CreatedAt       time.Time
	UpdatedAt       time.Time
}

// DurationAt は指定時刻時点の経過時間を返す。終了済みなら終了時刻までの時間。
func (f *FastingSession) DurationAt(now time.Time) time.Duration {
	end := now
	if f.EndedAt != nil {
		end = *f.EndedAt
	}
	if end.Before(f.StartedAt) {
		return 0
	}
	return end.Sub(f.StartedAt)
}

// GoalReachedAt は目標時間に到達しているかを返す。
func (f *FastingSession) GoalReachedAt(now time.Time) bool {
	return f.DurationAt(now).Hours() >= f.TargetHours
}

// FastFilter はファスティング一覧の取得条件を表す。
type FastFilter struct {
	Status FastStatus
	Before *Cursor // (started_at, id) がこれより前
	From   *time.Time
	To     *time.Time
	Limit  int
}
