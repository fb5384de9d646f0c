package model

import (
	"encoding/json"
	"time"
)

// HealthMetric は種別付きの健康指標測定値を表す。
// Value は種別ごとのスキーマに従うJSONオブジェクト。
type HealthMetric struct {
	ID         string
	UserID     string
	Type       string
	Value      json.RawMessage
	Unit       string
	RecordedAt time.Time
	Notes      string
	CreatedAt  time.Time
	UpdatedAt  time.Time
}
