package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/hitoshi/fastrack/internal/model"
)

// PostgresFastingRepo はPostgreSQLを使用したファスティングリポジトリ。
type PostgresFastingRepo struct {
	db *sql.DB
}

// NewPostgresFastingRepo はPostgresFastingRepoを生成する。
func NewPostgresFastingRepo(db *sql.DB) *PostgresFastingRepo {
	return &PostgresFastingRepo{db: db}
}

const fastingColumns = `id, user_id, started_at, ended_at, target_hours, fasting_type, status,
	notes, scheduled_fast_id, created_at, updated_at`

// 進行中ファスティングの部分ユニークインデックス名
const activeFastIndex = "idx_fasting_sessions_one_active"

func scanFastingSession(row rowScanner) (*model.FastingSession, error) {
	f := &model.FastingSession{}
	var endedAt sql.NullTime
	var scheduledID sql.NullString
	if err := row.Scan(&f.ID, &f.UserID, &f.StartedAt, &endedAt, &f.TargetHours, &f.FastingType,
		&f.Status, &f.Notes, &scheduledID, &f.CreatedAt, &f.UpdatedAt); err != nil {
		return nil, err
	}
	f.EndedAt = nullTimePtr(endedAt)
	f.ScheduledFastID = nullStringPtr(scheduledID)
	return f, nil
}

// Create はファスティングを作成する。
// 進行中のファスティングが既にある場合はACTIVE_FAST_EXISTSエラーを返す。
func (r *PostgresFastingRepo) Create(ctx context.Context, f *model.FastingSession) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO fasting_sessions (`+fastingColumns+`)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)`,
		f.ID, f.UserID, f.StartedAt, f.EndedAt, f.TargetHours, f.FastingType, f.Status,
		f.Notes, f.ScheduledFastID, f.CreatedAt, f.UpdatedAt,
	)
	if isUniqueViolation(err, activeFastIndex) {
		return model.NewActiveFastExistsError()
	}
	if err != nil {
		return fmt.Errorf("failed to create fasting session: %w", err)
	}
	return nil
}

// FindByID は指定IDのファスティングを取得する。見つからない場合はnilを返す。
func (r *PostgresFastingRepo) FindByID(ctx context.Context, userID, id string) (*model.FastingSession, error) {
	f, err := scanFastingSession(r.db.QueryRowContext(ctx,
		`SELECT `+fastingColumns+` FROM fasting_sessions WHERE id = $1 AND user_id = $2`,
		id, userID,
	))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find fasting session: %w", err)
	}
	return f, nil
}

// FindActive は進行中のファスティングを取得する。ない場合はnilを返す。
func (r *PostgresFastingRepo) FindActive(ctx context.Context, userID string) (*model.FastingSession, error) {
	f, err := scanFastingSession(r.db.QueryRowContext(ctx,
		`SELECT `+fastingColumns+` FROM fasting_sessions WHERE user_id = $1 AND status = 'active'`,
		userID,
	))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find active fasting session: %w", err)
	}
	return f, nil
}

// Update はファスティングを更新する。
func (r *PostgresFastingRepo) Update(ctx context.Context, f *model.FastingSession) error {
	_, err := r.db.ExecContext(ctx,
		`UPDATE fasting_sessions
		 SET started_at = $3, ended_at = $4, target_hours = $5, fasting_type = $6,
		     status = $7, notes = $8, scheduled_fast_id = $9, updated_at = $10
		 WHERE id = $1 AND user_id = $2`,
		f.ID, f.UserID, f.StartedAt, f.EndedAt, f.TargetHours, f.FastingType,
		f.Status, f.Notes, f.ScheduledFastID, f.UpdatedAt,
	)
	if isUniqueViolation(err, activeFastIndex) {
		return model.NewActiveFastExistsError()
	}
	if err != nil {
		return fmt.Errorf("failed to update fasting session: %w", err)
	}
	return nil
}

// Delete は指定IDのファスティングを削除する。
func (r *PostgresFastingRepo) Delete(ctx context.Context, userID, id string) (bool, error) {
	result, err := r.db.ExecContext(ctx,
		`DELETE FROM fasting_sessions WHERE id = $1 AND user_id = $2`,
		id, userID,
	)
	if err != nil {
		return false, fmt.Errorf("failed to delete fasting session: %w", err)
	}
	return rowsAffected(result)
}

// List は条件に一致するファスティングをstarted_at降順で取得する。
func (r *PostgresFastingRepo) List(ctx context.Context, userID string, filter model.FastFilter) ([]*model.FastingSession, error) {
	var args queryArgs
	query := `SELECT ` + fastingColumns + ` FROM fasting_sessions WHERE user_id = ` + args.add(userID)

	if filter.Status != "" {
		query += " AND status = " + args.add(filter.Status)
	}
	if filter.Before != nil {
		query += " AND " + args.before("started_at", filter.Before)
	}
	if filter.From != nil {
		query += " AND started_at >= " + args.add(*filter.From)
	}
	if filter.To != nil {
		query += " AND started_at <= " + args.add(*filter.To)
	}
	query += " ORDER BY started_at DESC, id DESC LIMIT " + args.add(pageLimit(filter.Limit))

	return r.query(ctx, query, args.values...)
}

// ListCompleted は期間内に終了した完了済みファスティングをended_at昇順で取得する。
func (r *PostgresFastingRepo) ListCompleted(ctx context.Context, userID string, from, to *time.Time) ([]*model.FastingSession, error) {
	var args queryArgs
	query := `SELECT ` + fastingColumns + ` FROM fasting_sessions
		WHERE status = 'completed' AND ended_at IS NOT NULL AND user_id = ` + args.add(userID)
	if from != nil {
		query += " AND ended_at >= " + args.add(*from)
	}
	if to != nil {
		query += " AND ended_at <= " + args.add(*to)
	}
	query += " ORDER BY ended_at ASC"

	return r.query(ctx, query, args.values...)
}

func (r *PostgresFastingRepo) query(ctx context.Context, query string, args ...interface{}) ([]*model.FastingSession, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list fasting sessions: %w", err)
	}
	defer rows.Close()

	var fasts []*model.FastingSession
	for rows.Next() {
		f, err := scanFastingSession(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan fasting session: %w", err)
		}
		fasts = append(fasts, f)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate fasting sessions: %w", err)
	}
	return fasts, nil
}

// compile-time interface check
var _ FastingRepository = (*PostgresFastingRepo)(nil)
