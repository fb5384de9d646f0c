package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/lib/pq"

	"github.com/hitoshi/fastrack/internal/model"
)

// PostgresScheduleRepo はPostgreSQLを使用した予定ファスティングリポジトリ。
type PostgresScheduleRepo struct {
	db *sql.DB
}

// NewPostgresScheduleRepo はPostgresScheduleRepoを生成する。
func NewPostgresScheduleRepo(db *sql.DB) *PostgresScheduleRepo {
	return &PostgresScheduleRepo{db: db}
}

const scheduleColumns = `id, user_id, title, start_at, target_hours, recurrence, weekdays,
	recurrence_end, parent_id, status, fasting_session_id, created_at, updated_at`

func weekdaysArray(days []int) pq.Int64Array {
	arr := make(pq.Int64Array, len(days))
	for i, d := range days {
		arr[i] = int64(d)
	}
	return arr
}

func scanSchedule(row rowScanner) (*model.ScheduledFast, error) {
	s := &model.ScheduledFast{}
	var weekdays pq.Int64Array
	var recurrenceEnd sql.NullTime
	var parentID, sessionID sql.NullString
	if err := row.Scan(&s.ID, &s.UserID, &s.Title, &s.StartAt, &s.TargetHours, &s.Recurrence,
		&weekdays, &recurrenceEnd, &parentID, &s.Status, &sessionID,
		&s.CreatedAt, &s.UpdatedAt); err != nil {
		return nil, err
	}
	s.Weekdays = make([]int, len(weekdays))
	for i, d := range weekdays {
		s.Weekdays[i] = int(d)
	}
	s.RecurrenceEnd = nullTimePtr(recurrenceEnd)
	s.ParentID = nullStringPtr(parentID)
	s.FastingSessionID = nullStringPtr(sessionID)
	return s, nil
}

// Create は予定を作成する。
func (r *PostgresScheduleRepo) Create(ctx context.Context, s *model.ScheduledFast) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO scheduled_fasts (`+scheduleColumns+`)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)`,
		s.ID, s.UserID, s.Title, s.StartAt, s.TargetHours, s.Recurrence, weekdaysArray(s.Weekdays),
		s.RecurrenceEnd, s.ParentID, s.Status, s.FastingSessionID, s.CreatedAt, s.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to create scheduled fast: %w", err)
	}
	return nil
}

// FindByID は指定IDの予定を取得する。見つからない場合はnilを返す。
func (r *PostgresScheduleRepo) FindByID(ctx context.Context, userID, id string) (*model.ScheduledFast, error) {
	s, err := scanSchedule(r.db.QueryRowContext(ctx,
		`SELECT `+scheduleColumns+` FROM scheduled_fasts WHERE id = $1 AND user_id = $2`,
		id, userID,
	))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find scheduled fast: %w", err)
	}
	return s, nil
}

// FindByFastingSessionID はファスティングに紐づく予定を取得する。ない場合はnilを返す。
func (r *PostgresScheduleRepo) FindByFastingSessionID(ctx context.Context, userID, fastingSessionID string) (*model.ScheduledFast, error) {
	s, err := scanSchedule(r.db.QueryRowContext(ctx,
		`SELECT `+scheduleColumns+` FROM scheduled_fasts WHERE fasting_session_id = $1 AND user_id = $2`,
		fastingSessionID, userID,
	))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find scheduled fast by session: %w", err)
	}
	return s, nil
}

// Update は予定を更新する。
func (r *PostgresScheduleRepo) Update(ctx context.Context, s *model.ScheduledFast) error {
	_, err := r.db.ExecContext(ctx,
		`UPDATE scheduled_fasts
		 SET title = $3, start_at = $4, target_hours = $5, recurrence = $6, weekdays = $7,
		     recurrence_end = $8, status = $9, fasting_session_id = $10, updated_at = $11
		 WHERE id = $1 AND user_id = $2`,
		s.ID, s.UserID, s.Title, s.StartAt, s.TargetHours, s.Recurrence, weekdaysArray(s.Weekdays),
		s.RecurrenceEnd, s.Status, s.FastingSessionID, s.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to update scheduled fast: %w", err)
	}
	return nil
}

// Delete は予定を削除する。
func (r *PostgresScheduleRepo) Delete(ctx context.Context, userID, id string) (bool, error) {
	result, err := r.db.ExecContext(ctx,
		`DELETE FROM scheduled_fasts WHERE id = $1 AND user_id = $2`,
		id, userID,
	)
	if err != nil {
		return false, fmt.Errorf("failed to delete scheduled fast: %w", err)
	}
	return rowsAffected(result)
}

// List は期間内の予定をstart_at昇順で取得する。
func (r *PostgresScheduleRepo) List(ctx context.Context, userID string, filter model.RangeFilter) ([]*model.ScheduledFast, error) {
	var args queryArgs
	query := `SELECT ` + scheduleColumns + ` FROM scheduled_fasts WHERE user_id = ` + args.add(userID)
	if filter.Type != "" {
		query += " AND status = " + args.add(filter.Type)
	}
	if filter.From != nil {
		query += " AND start_at >= " + args.add(*filter.From)
	}
	if filter.To != nil {
		query += " AND start_at <= " + args.add(*filter.To)
	}
	query += " ORDER BY start_at ASC LIMIT " + args.add(pageLimit(filter.Limit))
	return r.query(ctx, query, args.values...)
}

// ListSeries は全ユーザーの繰り返しシリーズを取得する。
func (r *PostgresScheduleRepo) ListSeries(ctx context.Context) ([]*model.ScheduledFast, error) {
	return r.query(ctx,
		`SELECT `+scheduleColumns+` FROM scheduled_fasts
		 WHERE parent_id IS NULL AND recurrence <> 'none'
		   AND (recurrence_end IS NULL OR recurrence_end >= now())
		 ORDER BY created_at ASC`,
	)
}

// ListInstanceStarts はシリーズの生成済みインスタンスの開始日時を返す。
func (r *PostgresScheduleRepo) ListInstanceStarts(ctx context.Context, parentID string) ([]time.Time, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT start_at FROM scheduled_fasts WHERE parent_id = $1 ORDER BY start_at`,
		parentID,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list instance starts: %w", err)
	}
	defer rows.Close()

	var starts []time.Time
	for rows.Next() {
		var t time.Time
		if err := rows.Scan(&t); err != nil {
			return nil, fmt.Errorf("failed to scan instance start: %w", err)
		}
		starts = append(starts, t)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate instance starts: %w", err)
	}
	return starts, nil
}

// CreateInstances はインスタンスを一括作成する。既存の(parent_id, start_at)は無視する。
func (r *PostgresScheduleRepo) CreateInstances(ctx context.Context, instances []*model.ScheduledFast) (int, error) {
	if len(instances) == 0 {
		return 0, nil
	}

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx,
		`INSERT INTO scheduled_fasts (`+scheduleColumns+`)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)
		 ON CONFLICT (parent_id, start_at) WHERE parent_id IS NOT NULL DO NOTHING`)
	if err != nil {
		return 0, fmt.Errorf("failed to prepare instance insert: %w", err)
	}
	defer stmt.Close()

	created := 0
	for _, s := range instances {
		result, err := stmt.ExecContext(ctx,
			s.ID, s.UserID, s.Title, s.StartAt, s.TargetHours, s.Recurrence, weekdaysArray(s.Weekdays),
			s.RecurrenceEnd, s.ParentID, s.Status, s.FastingSessionID, s.CreatedAt, s.UpdatedAt,
		)
		if err != nil {
			return 0, fmt.Errorf("failed to insert instance: %w", err)
		}
		if ok, err := rowsAffected(result); err != nil {
			return 0, err
		} else if ok {
			created++
		}
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("failed to commit transaction: %w", err)
	}
	return created, nil
}

// CountUpcoming は期間内の予定状態の予定件数を返す。シリーズ本体は数えない。
func (r *PostgresScheduleRepo) CountUpcoming(ctx context.Context, userID string, from, to time.Time) (int, error) {
	var count int
	err := r.db.QueryRowContext(ctx,
		`SELECT count(*) FROM scheduled_fasts
		 WHERE user_id = $1 AND status = 'planned' AND start_at >= $2 AND start_at <= $3
		   AND NOT (parent_id IS NULL AND recurrence <> 'none')`,
		userID, from, to,
	).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to count upcoming schedules: %w", err)
	}
	return count, nil
}

func (r *PostgresScheduleRepo) query(ctx context.Context, query string, args ...interface{}) ([]*model.ScheduledFast, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list scheduled fasts: %w", err)
	}
	defer rows.Close()

	var schedules []*model.ScheduledFast
	for rows.Next() {
		s, err := scanSchedule(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan scheduled fast: %w", err)
		}
		schedules = append(schedules, s)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate scheduled fasts: %w", err)
	}
	return schedules, nil
}

// compile-time interface check
var _ ScheduleRepository = (*PostgresScheduleRepo)(nil)
