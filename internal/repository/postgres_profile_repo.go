package repository

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/hitoshi/fastrack/internal/model"
)

// PostgresProfileRepo はPostgreSQLを使用したプロフィールリポジトリ。
type PostgresProfileRepo struct {
	db *sql.DB
}

// NewPostgresProfileRepo はPostgresProfileRepoを生成する。
func NewPostgresProfileRepo(db *sql.DB) *PostgresProfileRepo {
	return &PostgresProfileRepo{db: db}
}

// FindByUserID はユーザーのプロフィールを取得する。見つからない場合はnilを返す。
func (r *PostgresProfileRepo) FindByUserID(ctx context.Context, userID string) (*model.Profile, error) {
	p := &model.Profile{}
	var height, target sql.NullFloat64
	var birth sql.NullTime
	err := r.db.QueryRowContext(ctx,
		`SELECT user_id, display_name, height_cm, birth_date, sex, target_weight_kg,
		        default_fast_hours, timezone, created_at, updated_at
		 FROM profiles WHERE user_id = $1`,
		userID,
	).Scan(&p.UserID, &p.DisplayName, &height, &birth, &p.Sex, &target,
		&p.DefaultFastHours, &p.Timezone, &p.CreatedAt, &p.UpdatedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find profile: %w", err)
	}
	p.HeightCm = nullFloatPtr(height)
	p.TargetWeightKg = nullFloatPtr(target)
	p.BirthDate = nullTimePtr(birth)
	return p, nil
}

// Upsert はプロフィールを作成または更新する。
func (r *PostgresProfileRepo) Upsert(ctx context.Context, p *model.Profile) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO profiles (user_id, display_name, height_cm, birth_date, sex, target_weight_kg,
		                       default_fast_hours, timezone, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		 ON CONFLICT (user_id) DO UPDATE SET
		     display_name = EXCLUDED.display_name,
		     height_cm = EXCLUDED.height_cm,
		     birth_date = EXCLUDED.birth_date,
		     sex = EXCLUDED.sex,
		     target_weight_kg = EXCLUDED.target_weight_kg,
		     default_fast_hours = EXCLUDED.default_fast_hours,
		     timezone = EXCLUDED.timezone,
		     updated_at = EXCLUDED.updated_at`,
		p.UserID, p.DisplayName, p.HeightCm, p.BirthDate, p.Sex, p.TargetWeightKg,
		p.DefaultFastHours, p.Timezone, p.CreatedAt, p.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to upsert profile: %w", err)
	}
	return nil
}

// compile-time interface check
var _ ProfileRepository = (*PostgresProfileRepo)(nil)
