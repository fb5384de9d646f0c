// Package model はドメインモデルを定義する。
package model

import "time"

// User はサービス利用ユーザーを表す。
// PasswordHash はメールアドレス登録ユーザーのみ設定される。
type User struct {
	ID           string
	Email        string
	Name         string
	PasswordHash string
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// Identity は外部IdPとの紐付け情報を表す。
type Identity struct {
	ID             string
	UserID         string
	Provider       string
	ProviderUserID string
	CreatedAt      time.Time
}

// Session はユーザーのログインセッションを表す。
type Session struct {
	ID        string
	UserID    string
	ExpiresAt time.Time
	CreatedAt time.Time
}

// 体重の上限（kg）。これ以上の値は入力ミスとみなす。
const MaxWeightKg = 500.0

// 1回のファスティングの最大目標時間。
const MaxFastHours = 168.0

// Profile はユーザーの身体情報と既定設定を表す。
type Profile struct {
	UserID           string
	DisplayName      string
	HeightCm         *float64
	BirthDate        *time.Time
	Sex              string
	TargetWeightKg   *float64
	DefaultFastHours float64
	Timezone         string
	CreatedAt        time.Time
	UpdatedAt        time.Time
}

// DefaultProfile は未作成ユーザー向けの既定プロフィールを返す。
func DefaultProfile(userID string) *Profile {
	return &Profile{
		UserID:           userID,
		DefaultFastHours: 16,
		Timezone:         "UTC",
	}
}

// Location はプロフィールのタイムゾーンを返す。読み込めない場合はUTC。
func (p *Profile) Location() *time.Location {
	if p == nil || p.Timezone == "" {
		return time.UTC
	}
	loc, err := time.LoadLocation(p.Timezone)
	if err != nil {
		return time.UTC
	}
	return loc
}
