// Package repository はデータ永続化のインターフェースを定義する。
package repository

import (
	"context"
	"time"

	"github.com/hitoshi/fastrack/internal/model"
)

// UserRepository はユーザーデータの永続化インターフェース。
type UserRepository interface {
	// FindByID は指定IDのユーザーを取得する。見つからない場合はnilを返す。
	FindByID(ctx context.Context, id string) (*model.User, error)

	// FindByEmail はメールアドレス（大文字小文字を区別しない）でユーザーを取得する。
	// 見つからない場合はnilを返す。
	FindByEmail(ctx context.Context, email string) (*model.User, error)

	// Create はパスワード登録ユーザーを作成する。
	// メールアドレスが重複する場合はEMAIL_TAKENエラーを返す。
	Create(ctx context.Context, user *model.User) error

	// CreateWithIdentity はユーザーとidentityを同一トランザクションで作成する。
	CreateWithIdentity(ctx context.Context, user *model.User, identity *model.Identity) error

	// DeleteByID は指定IDのユーザーを削除する。
	// 所有する全データはCASCADE削除される。
	DeleteByID(ctx context.Context, id string) error
}

// IdentityRepository は外部IdP紐付け情報の永続化インターフェース。
type IdentityRepository interface {
	// FindByProviderAndProviderUserID はproviderとprovider_user_idでidentityを検索する。
	// 見つからない場合はnilを返す。
	FindByProviderAndProviderUserID(ctx context.Context, provider, providerUserID string) (*model.Identity, error)
	// ListByUserID はユーザーに紐づく全identityを取得する。
	ListByUserID(ctx context.Context, userID string) ([]*model.Identity, error)
}

// SessionRepository はセッションデータの永続化インターフェース。
type SessionRepository interface {
	// Create はセッションを作成する。
	Create(ctx context.Context, session *model.Session) error
	// FindByID は指定IDのセッションを取得する。期限切れの場合はnilを返す。
	FindByID(ctx context.Context, id string) (*model.Session, error)
	// DeleteByID は指定IDのセッションを削除する。
	DeleteByID(ctx context.Context, id string) error
	// DeleteByUserID は指定ユーザーの全セッションを削除する。
	DeleteByUserID(ctx context.Context, userID string) error
	// DeleteExpired は期限切れセッションを削除し、削除件数を返す。
	DeleteExpired(ctx context.Context) (int64, error)
}

// ProfileRepository はプロフィールの永続化インターフェース。
type ProfileRepository interface {
	// FindByUserID はユーザーのプロフィールを取得する。見つからない場合はnilを返す。
	FindByUserID(ctx context.Context, userID string) (*model.Profile, error)
	// Upsert はプロフィールを作成または更新する。
	Upsert(ctx context.Context, profile *model.Profile) error
}

// FastingRepository はファスティング記録の永続化インターフェース。
// 取得・更新・削除は全てuser_idで絞り込み、他ユーザーの記録は存在しないものとして扱う。
type FastingRepository interface {
	// Create はファスティングを作成する。
	// 進行中のファスティングが既にある場合はACTIVE_FAST_EXISTSエラーを返す。
	Create(ctx context.Context, fast *model.FastingSession) error
	// FindByID は指定IDのファスティングを取得する。見つからない場合はnilを返す。
	FindByID(ctx context.Context, userID, id string) (*model.FastingSession, error)
	// FindActive は進行中のファスティングを取得する。ない場合はnilを返す。
	FindActive(ctx context.Context, userID string) (*model.FastingSession, error)
	// Update はファスティングを更新する。
	Update(ctx context.Context, fast *model.FastingSession) error
	// Delete は指定IDのファスティングを削除する。削除できた場合はtrueを返す。
	Delete(ctx context.Context, userID, id string) (bool, error)
	// List は条件に一致するファスティングをstarted_at降順で取得する。
	List(ctx context.Context, userID string, filter model.FastFilter) ([]*model.FastingSession, error)
	// ListCompleted は期間内に終了した完了済みファスティングをended_at昇順で取得する。
	// from/to がnilの場合は制限しない。
	ListCompleted(ctx context.Context, userID string, from, to *time.Time) ([]*model.FastingSession, error)
}

// WeightRepository は体重記録の永続化インターフェース。
type WeightRepository interface {
	Create(ctx context.Context, rec *model.WeightRecord) error
	// FindByID は指定IDの体重記録を取得する。見つからない場合はnilを返す。
	FindByID(ctx context.Context, userID, id string) (*model.WeightRecord, error)
	Update(ctx context.Context, rec *model.WeightRecord) error
	Delete(ctx context.Context, userID, id string) (bool, error)
	// List はrecorded_at降順で取得する。
	List(ctx context.Context, userID string, filter model.RangeFilter) ([]*model.WeightRecord, error)
	// ListRange は期間内の記録をrecorded_at昇順で全件取得する。
	ListRange(ctx context.Context, userID string, from, to time.Time) ([]*model.WeightRecord, error)
}

// HealthMetricRepository は健康指標の永続化インターフェース。
type HealthMetricRepository interface {
	Create(ctx context.Context, m *model.HealthMetric) error
	// FindByID は指定IDの健康指標を取得する。見つからない場合はnilを返す。
	FindByID(ctx context.Context, userID, id string) (*model.HealthMetric, error)
	Update(ctx context.Context, m *model.HealthMetric) error
	Delete(ctx context.Context, userID, id string) (bool, error)
	// List はrecorded_at降順で取得する。filter.Type が空なら全種別。
	List(ctx context.Context, userID string, filter model.RangeFilter) ([]*model.HealthMetric, error)
	// ListRange は指定種別の期間内の記録をrecorded_at昇順で全件取得する。
	ListRange(ctx context.Context, userID, metricType string, from, to time.Time) ([]*model.HealthMetric, error)
	// LatestByType は種別ごとの最新の記録を返す。
	LatestByType(ctx context.Context, userID string) ([]*model.HealthMetric, error)
}

// FoodItemRepository は食品ライブラリの永続化インターフェース。
type FoodItemRepository interface {
	Create(ctx context.Context, f *model.FoodItem) error
	// FindByID は指定IDの食品を取得する。見つからない場合はnilを返す。
	FindByID(ctx context.Context, userID, id string) (*model.FoodItem, error)
	Update(ctx context.Context, f *model.FoodItem) error
	Delete(ctx context.Context, userID, id string) (bool, error)
	// Search は名前の部分一致（大文字小文字を区別しない）で食品を検索する。
	// queryが空の場合は名前順に全件から取得する。
	Search(ctx context.Context, userID, query string, limit, offset int) ([]*model.FoodItem, error)
}

// MealRepository は食事記録の永続化インターフェース。
type MealRepository interface {
	// Create は食事と品目を同一トランザクションで作成する。
	Create(ctx context.Context, meal *model.Meal) error
	// FindByID は品目を含めて食事を取得する。見つからない場合はnilを返す。
	FindByID(ctx context.Context, userID, id string) (*model.Meal, error)
	// Update は食事を更新し、品目を全て置き換える。
	Update(ctx context.Context, meal *model.Meal) error
	Delete(ctx context.Context, userID, id string) (bool, error)
	// List は品目を含めてeaten_at降順で取得する。
	List(ctx context.Context, userID string, filter model.RangeFilter) ([]*model.Meal, error)
	// ListRange は期間内の食事を品目を含めてeaten_at昇順で全件取得する。
	ListRange(ctx context.Context, userID string, from, to time.Time) ([]*model.Meal, error)
}

// ScheduleRepository は予定ファスティングの永続化インターフェース。
type ScheduleRepository interface {
	Create(ctx context.Context, s *model.ScheduledFast) error
	// FindByID は指定IDの予定を取得する。見つからない場合はnilを返す。
	FindByID(ctx context.Context, userID, id string) (*model.ScheduledFast, error)
	// FindByFastingSessionID はファスティングに紐づく予定を取得する。ない場合はnilを返す。
	FindByFastingSessionID(ctx context.Context, userID, fastingSessionID string) (*model.ScheduledFast, error)
	Update(ctx context.Context, s *model.ScheduledFast) error
	// Delete は予定を削除する。シリーズの場合は生成済みインスタンスもCASCADE削除される。
	Delete(ctx context.Context, userID, id string) (bool, error)
	// List は期間内の予定をstart_at昇順で取得する。
	List(ctx context.Context, userID string, filter model.RangeFilter) ([]*model.ScheduledFast, error)
	// ListSeries は全ユーザーの繰り返しシリーズを取得する。
	ListSeries(ctx context.Context) ([]*model.ScheduledFast, error)
	// ListInstanceStarts はシリーズの生成済みインスタンスの開始日時を返す。
	ListInstanceStarts(ctx context.Context, parentID string) ([]time.Time, error)
	// CreateInstances はインスタンスを一括作成する。既存の(parent_id, start_at)は無視し、作成件数を返す。
	CreateInstances(ctx context.Context, instances []*model.ScheduledFast) (int, error)
	// CountUpcoming は期間内の予定状態の予定件数を返す。
	CountUpcoming(ctx context.Context, userID string, from, to time.Time) (int, error)
}

// ReminderRepository はリマインダーの永続化インターフェース。
type ReminderRepository interface {
	Create(ctx context.Context, r *model.Reminder) error
	// FindByID は指定IDのリマインダーを取得する。見つからない場合はnilを返す。
	FindByID(ctx context.Context, userID, id string) (*model.Reminder, error)
	Update(ctx context.Context, r *model.Reminder) error
	Delete(ctx context.Context, userID, id string) (bool, error)
	// List はremind_at昇順で取得する。
	List(ctx context.Context, userID string, filter model.RangeFilter) ([]*model.Reminder, error)
	// ClaimDue は配信期限に達した未送信のリマインダーをclaimUntilまで確保して返す。
	// 確保中のリマインダーは他のワーカーの呼び出しでは返らない。
	ClaimDue(ctx context.Context, now, claimUntil time.Time, limit int) ([]*model.Reminder, error)
	// MarkSent は送信済みとして記録し、確保を解除する。
	MarkSent(ctx context.Context, id string, sentAt time.Time) error
	// MarkFailed は配信失敗を記録して確保を解除する。送信済みにはしない。
	MarkFailed(ctx context.Context, id, reason string) error
}
