package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/hitoshi/fastrack/internal/model"
)

// PostgresReminderRepo はPostgreSQLを使用したリマインダーリポジトリ。
type PostgresReminderRepo struct {
	db *sql.DB
}

// NewPostgresReminderRepo はPostgresReminderRepoを生成する。
func NewPostgresReminderRepo(db *sql.DB) *PostgresReminderRepo {
	return &PostgresReminderRepo{db: db}
}

const reminderColumns = `id, user_id, scheduled_fast_id, kind, message, remind_at, channel,
	webhook_url, enabled, sent_at, last_error, created_at, updated_at`

func scanReminder(row rowScanner) (*model.Reminder, error) {
	rem := &model.Reminder{}
	var scheduledID sql.NullString
	var sentAt sql.NullTime
	if err := row.Scan(&rem.ID, &rem.UserID, &scheduledID, &rem.Kind, &rem.Message, &rem.RemindAt,
		&rem.Channel, &rem.WebhookURL, &rem.Enabled, &sentAt, &rem.LastError,
		&rem.CreatedAt, &rem.UpdatedAt); err != nil {
		return nil, err
	}
	rem.ScheduledFastID = nullStringPtr(scheduledID)
	rem.SentAt = nullTimePtr(sentAt)
	return rem, nil
}

// Create はリマインダーを作成する。
func (r *PostgresReminderRepo) Create(ctx context.Context, rem *model.Reminder) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO reminders (`+reminderColumns+`)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)`,
		rem.ID, rem.UserID, rem.ScheduledFastID, rem.Kind, rem.Message, rem.RemindAt, rem.Channel,
		rem.WebhookURL, rem.Enabled, rem.SentAt, rem.LastError, rem.CreatedAt, rem.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to create reminder: %w", err)
	}
	return nil
}

// FindByID は指定IDのリマインダーを取得する。見つからない場合はnilを返す。
func (r *PostgresReminderRepo) FindByID(ctx context.Context, userID, id string) (*model.Reminder, error) {
	rem, err := scanReminder(r.db.QueryRowContext(ctx,
		`SELECT `+reminderColumns+` FROM reminders WHERE id = $1 AND user_id = $2`,
		id, userID,
	))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find reminder: %w", err)
	}
	return rem, nil
}

// Update はリマインダーを更新する。
func (r *PostgresReminderRepo) Update(ctx context.Context, rem *model.Reminder) error {
	_, err := r.db.ExecContext(ctx,
		`UPDATE reminders
		 SET scheduled_fast_id = $3, kind = $4, message = $5, remind_at = $6, channel = $7,
		     webhook_url = $8, enabled = $9, sent_at = $10, last_error = $11, updated_at = $12
		 WHERE id = $1 AND user_id = $2`,
		rem.ID, rem.UserID, rem.ScheduledFastID, rem.Kind, rem.Message, rem.RemindAt, rem.Channel,
		rem.WebhookURL, rem.Enabled, rem.SentAt, rem.LastError, rem.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to update reminder: %w", err)
	}
	return nil
}

// Delete はリマインダーを削除する。
func (r *PostgresReminderRepo) Delete(ctx context.Context, userID, id string) (bool, error) {
	result, err := r.db.ExecContext(ctx,
		`DELETE FROM reminders WHERE id = $1 AND user_id = $2`,
		id, userID,
	)
	if err != nil {
		return false, fmt.Errorf("failed to delete reminder: %w", err)
	}
	return rowsAffected(result)
}

// List はリマインダーをremind_at昇順で取得する。
func (r *PostgresReminderRepo) List(ctx context.Context, userID string, filter model.RangeFilter) ([]*model.Reminder, error) {
	var args queryArgs
	query := `SELECT ` + reminderColumns + ` FROM reminders WHERE user_id = ` + args.add(userID)
	if filter.Type != "" {
		query += " AND kind = " + args.add(filter.Type)
	}
	if filter.From != nil {
		query += " AND remind_at >= " + args.add(*filter.From)
	}
	if filter.To != nil {
		query += " AND remind_at <= " + args.add(*filter.To)
	}
	query += " ORDER BY remind_at ASC LIMIT " + args.add(pageLimit(filter.Limit))
	return r.query(ctx, query, args.values...)
}

// ClaimDue は配信期限に達した未送信のリマインダーをclaimUntilまで確保して返す。
// 確保中の行は他のワーカーから取得されない。確保が期限切れになった行は再度対象になる。
func (r *PostgresReminderRepo) ClaimDue(ctx context.Context, now, claimUntil time.Time, limit int) ([]*model.Reminder, error) {
	return r.query(ctx,
		`UPDATE reminders SET claimed_until = $2
		 WHERE id IN (
		     SELECT id FROM reminders
		     WHERE enabled AND sent_at IS NULL AND remind_at <= $1
		       AND (claimed_until IS NULL OR claimed_until <= $1)
		     ORDER BY remind_at ASC
		     LIMIT $3
		     FOR UPDATE SKIP LOCKED
		 )
		 RETURNING `+reminderColumns,
		now, claimUntil, limit,
	)
}

// MarkSent は送信済みとして記録する。
func (r *PostgresReminderRepo) MarkSent(ctx context.Context, id string, sentAt time.Time) error {
	_, err := r.db.ExecContext(ctx,
		`UPDATE reminders SET sent_at = $2, last_error = '', claimed_until = NULL, updated_at = $2 WHERE id = $1`,
		id, sentAt,
	)
	if err != nil {
		return fmt.Errorf("failed to mark reminder sent: %w", err)
	}
	return nil
}

// MarkFailed は配信失敗を記録する。次回の配信サイクルで再度対象になる。
func (r *PostgresReminderRepo) MarkFailed(ctx context.Context, id, reason string) error {
	_, err := r.db.ExecContext(ctx,
		`UPDATE reminders SET last_error = $2, claimed_until = NULL, updated_at = now() WHERE id = $1`,
		id, reason,
	)
	if err != nil {
		return fmt.Errorf("failed to mark reminder failed: %w", err)
	}
	return nil
}

func (r *PostgresReminderRepo) query(ctx context.Context, query string, args ...interface{}) ([]*model.Reminder, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list reminders: %w", err)
	}
	defer rows.Close()

	var reminders []*model.Reminder
	for rows.Next() {
		rem, err := scanReminder(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan reminder: %w", err)
		}
		reminders = append(reminders, rem)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate reminders: %w", err)
	}
	return reminders, nil
}

// compile-time interface check
var _ ReminderRepository = (*PostgresReminderRepo)(nil)
