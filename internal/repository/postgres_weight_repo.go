package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/hitoshi/fastrack/internal/model"
)

// PostgresWeightRepo はPostgreSQLを使用した体重記録リポジトリ。
type PostgresWeightRepo struct {
	db *sql.DB
}

// NewPostgresWeightRepo はPostgresWeightRepoを生成する。
func NewPostgresWeightRepo(db *sql.DB) *PostgresWeightRepo {
	return &PostgresWeightRepo{db: db}
}

const weightColumns = `id, user_id, weight_kg, body_fat_pct, recorded_at, notes, created_at, updated_at`

func scanWeight(row rowScanner) (*model.WeightRecord, error) {
	w := &model.WeightRecord{}
	var bodyFat sql.NullFloat64
	if err := row.Scan(&w.ID, &w.UserID, &w.WeightKg, &bodyFat, &w.RecordedAt, &w.Notes,
		&w.CreatedAt, &w.UpdatedAt); err != nil {
		return nil, err
	}
	w.BodyFatPct = nullFloatPtr(bodyFat)
	return w, nil
}

// Create は体重記録を作成する。
func (r *PostgresWeightRepo) Create(ctx context.Context, w *model.WeightRecord) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO weight_records (`+weightColumns+`)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
		w.ID, w.UserID, w.WeightKg, w.BodyFatPct, w.RecordedAt, w.Notes, w.CreatedAt, w.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to create weight record: %w", err)
	}
	return nil
}

// FindByID は指定IDの体重記録を取得する。見つからない場合はnilを返す。
func (r *PostgresWeightRepo) FindByID(ctx context.Context, userID, id string) (*model.WeightRecord, error) {
	w, err := scanWeight(r.db.QueryRowContext(ctx,
		`SELECT `+weightColumns+` FROM weight_records WHERE id = $1 AND user_id = $2`,
		id, userID,
	))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find weight record: %w", err)
	}
	return w, nil
}

// Update は体重記録を更新する。
func (r *PostgresWeightRepo) Update(ctx context.Context, w *model.WeightRecord) error {
	_, err := r.db.ExecContext(ctx,
		`UPDATE weight_records
		 SET weight_kg = $3, body_fat_pct = $4, recorded_at = $5, notes = $6, updated_at = $7
		 WHERE id = $1 AND user_id = $2`,
		w.ID, w.UserID, w.WeightKg, w.BodyFatPct, w.RecordedAt, w.Notes, w.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to update weight record: %w", err)
	}
	return nil
}

// Delete は体重記録を削除する。
func (r *PostgresWeightRepo) Delete(ctx context.Context, userID, id string) (bool, error) {
	result, err := r.db.ExecContext(ctx,
		`DELETE FROM weight_records WHERE id = $1 AND user_id = $2`,
		id, userID,
	)
	if err != nil {
		return false, fmt.Errorf("failed to delete weight record: %w", err)
	}
	return rowsAffected(result)
}

// List は体重記録をrecorded_at降順で取得する。
func (r *PostgresWeightRepo) List(ctx context.Context, userID string, filter model.RangeFilter) ([]*model.WeightRecord, error) {
	var args queryArgs
	query := `SELECT ` + weightColumns + ` FROM weight_records WHERE user_id = ` + args.add(userID)
	if filter.Before != nil {
		query += " AND " + args.before("recorded_at", filter.Before)
	}
	if filter.From != nil {
		query += " AND recorded_at >= " + args.add(*filter.From)
	}
	if filter.To != nil {
		query += " AND recorded_at <= " + args.add(*filter.To)
	}
	query += " ORDER BY recorded_at DESC, id DESC LIMIT " + args.add(pageLimit(filter.Limit))
	return r.query(ctx, query, args.values...)
}

// ListRange は期間内の体重記録をrecorded_at昇順で全件取得する。
func (r *PostgresWeightRepo) ListRange(ctx context.Context, userID string, from, to time.Time) ([]*model.WeightRecord, error) {
	return r.query(ctx,
		`SELECT `+weightColumns+` FROM weight_records
		 WHERE user_id = $1 AND recorded_at >= $2 AND recorded_at <= $3
		 ORDER BY recorded_at ASC`,
		userID, from, to,
	)
}

func (r *PostgresWeightRepo) query(ctx context.Context, query string, args ...interface{}) ([]*model.WeightRecord, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list weight records: %w", err)
	}
	defer rows.Close()

	var records []*model.WeightRecord
	for rows.Next() {
		w, err := scanWeight(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan weight record: %w", err)
		}
		records = append(records, w)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate weight records: %w", err)
	}
	return records, nil
}

// compile-time interface check
var _ WeightRepository = (*PostgresWeightRepo)(nil)
