package model

import "time"

// WeightRecord は日時付きの体重記録を表す。
type WeightRecord struct {
	ID         string
	UserID     string
	WeightKg   float64
	BodyFatPct *float64
	RecordedAt time.Time
	Notes      string
	CreatedAt  time.Time
	UpdatedAt  time.Time
}

// RangeFilter は期間指定とカーソルによる一覧取得条件を表す。
// Type は種別を持つリソース（健康指標）でのみ使用する。
type RangeFilter struct {
	Type   string
	From   *time.Time
	To     *time.Time
	Before *Cursor
	Limit  int
}
