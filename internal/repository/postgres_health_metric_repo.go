package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/hitoshi/fastrack/internal/model"
)

// PostgresHealthMetricRepo はPostgreSQLを使用した健康指標リポジトリ。
// 値はJSONBカラムに保存する。
type PostgresHealthMetricRepo struct {
	db *sql.DB
}

// NewPostgresHealthMetricRepo はPostgresHealthMetricRepoを生成する。
func NewPostgresHealthMetricRepo(db *sql.DB) *PostgresHealthMetricRepo {
	return &PostgresHealthMetricRepo{db: db}
}

const metricColumns = `id, user_id, metric_type, value, unit, recorded_at, notes, created_at, updated_at`

func scanMetric(row rowScanner) (*model.HealthMetric, error) {
	m := &model.HealthMetric{}
	var value []byte
	if err := row.Scan(&m.ID, &m.UserID, &m.Type, &value, &m.Unit, &m.RecordedAt, &m.Notes,
		&m.CreatedAt, &m.UpdatedAt); err != nil {
		return nil, err
	}
	m.Value = value
	return m, nil
}

// Create は健康指標を作成する。
func (r *PostgresHealthMetricRepo) Create(ctx context.Context, m *model.HealthMetric) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO health_metrics (`+metricColumns+`)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
		m.ID, m.UserID, m.Type, []byte(m.Value), m.Unit, m.RecordedAt, m.Notes, m.CreatedAt, m.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to create health metric: %w", err)
	}
	return nil
}

// FindByID は指定IDの健康指標を取得する。見つからない場合はnilを返す。
func (r *PostgresHealthMetricRepo) FindByID(ctx context.Context, userID, id string) (*model.HealthMetric, error) {
	m, err := scanMetric(r.db.QueryRowContext(ctx,
		`SELECT `+metricColumns+` FROM health_metrics WHERE id = $1 AND user_id = $2`,
		id, userID,
	))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find health metric: %w", err)
	}
	return m, nil
}

// Update は健康指標を更新する。
func (r *PostgresHealthMetricRepo) Update(ctx context.Context, m *model.HealthMetric) error {
	_, err := r.db.ExecContext(ctx,
		`UPDATE health_metrics
		 SET value = $3, unit = $4, recorded_at = $5, notes = $6, updated_at = $7
		 WHERE id = $1 AND user_id = $2`,
		m.ID, m.UserID, []byte(m.Value), m.Unit, m.RecordedAt, m.Notes, m.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to update health metric: %w", err)
	}
	return nil
}

// Delete は健康指標を削除する。
func (r *PostgresHealthMetricRepo) Delete(ctx context.Context, userID, id string) (bool, error) {
	result, err := r.db.ExecContext(ctx,
		`DELETE FROM health_metrics WHERE id = $1 AND user_id = $2`,
		id, userID,
	)
	if err != nil {
		return false, fmt.Errorf("failed to delete health metric: %w", err)
	}
	return rowsAffected(result)
}

// List は健康指標をrecorded_at降順で取得する。
func (r *PostgresHealthMetricRepo) List(ctx context.Context, userID string, filter model.RangeFilter) ([]*model.HealthMetric, error) {
	var args queryArgs
	query := `SELECT ` + metricColumns + ` FROM health_metrics WHERE user_id = ` + args.add(userID)
	if filter.Type != "" {
		query += " AND metric_type = " + args.add(filter.Type)
	}
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

// ListRange は指定種別の期間内の記録をrecorded_at昇順で全件取得する。
func (r *PostgresHealthMetricRepo) ListRange(ctx context.Context, userID, metricType string, from, to time.Time) ([]*model.HealthMetric, error) {
	return r.query(ctx,
		`SELECT `+metricColumns+` FROM health_metrics
		 WHERE user_id = $1 AND metric_type = $2 AND recorded_at >= $3 AND recorded_at <= $4
		 ORDER BY recorded_at ASC`,
		userID, metricType, from, to,
	)
}

// LatestByType は種別ごとの最新の記録を種別名順で返す。
func (r *PostgresHealthMetricRepo) LatestByType(ctx context.Context, userID string) ([]*model.HealthMetric, error) {
	return r.query(ctx,
		`SELECT DISTINCT ON (metric_type) `+metricColumns+`
		 FROM health_metrics
		 WHERE user_id = $1
		 ORDER BY metric_type, recorded_at DESC`,
		userID,
	)
}

func (r *PostgresHealthMetricRepo) query(ctx context.Context, query string, args ...interface{}) ([]*model.HealthMetric, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list health metrics: %w", err)
	}
	defer rows.Close()

	var metrics []*model.HealthMetric
	for rows.Next() {
		m, err := scanMetric(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan health metric: %w", err)
		}
		metrics = append(metrics, m)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate health metrics: %w", err)
	}
	return metrics, nil
}

// compile-time interface check
var _ HealthMetricRepository = (*PostgresHealthMetricRepo)(nil)
