// Package dispatch は配信期限に達したリマインダーのバックグラウンド配信を提供する。
package dispatch

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/juju/clock"

	"github.com/hitoshi/fastrack/internal/metrics"
	"github.com/hitoshi/fastrack/internal/model"
)

// ClaimLease は取得したリマインダーを確保しておく時間。
// この間に結果が記録されなければ、他のワーカーが再度取得できる。
const ClaimLease = 5 * time.Minute

// ReminderQueue は配信対象リマインダーの確保と結果記録のインターフェース。
type ReminderQueue interface {
	ClaimDue(ctx context.Context, now, claimUntil time.Time, limit int) ([]*model.Reminder, error)
	MarkSent(ctx context.Context, id string, sentAt time.Time) error
	MarkFailed(ctx context.Context, id, reason string) error
}

// Sender はチャネルごとの配信処理のインターフェース。
type Sender interface {
	Send(ctx context.Context, rem *model.Reminder) error
}

// Dispatcher は配信期限に達したリマインダーを取得し、並列で配信する。
// 失敗したリマインダーはlast_errorを記録し、次のサイクルで再度対象になる。
type Dispatcher struct {
	queue          ReminderQueue
	senders        map[string]Sender
	metrics        metrics.MetricsCollector
	clock          clock.Clock
	logger         *slog.Logger
	batchSize      int
	maxConcurrency int
}

// NewDispatcher はDispatcherの新しいインスタンスを生成する。
// batchSizeが0以下の場合は100、maxConcurrencyが0以下の場合は10を使用する。
func NewDispatcher(
	queue ReminderQueue,
	senders map[string]Sender,
	mc metrics.MetricsCollector,
	clk clock.Clock,
	logger *slog.Logger,
	batchSize int,
	maxConcurrency int,
) *Dispatcher {
	if mc == nil {
		mc = metrics.Nop{}
	}
	if logger == nil {
		logger = slog.Default()
	}
	if batchSize <= 0 {
		batchSize = 100
	}
	if maxConcurrency <= 0 {
		maxConcurrency = 10
	}
	return &Dispatcher{
		queue:          queue,
		senders:        senders,
		metrics:        mc,
		clock:          clk,
		logger:         logger,
		batchSize:      batchSize,
		maxConcurrency: maxConcurrency,
	}
}

// RunOnce は配信対象のリマインダーを1回取得し、semaphoreパターンで並列数を制御しながら配信する。
func (d *Dispatcher) RunOnce(ctx context.Context) error {
	start := d.clock.Now()

	now := start.UTC()
	reminders, err := d.queue.ClaimDue(ctx, now, now.Add(ClaimLease), d.batchSize)
	if err != nil {
		return err
	}
	if len(reminders) == 0 {
		d.logger.Debug("配信対象のリマインダーはありません")
		return nil
	}

	sem := make(chan struct{}, d.maxConcurrency)
	var wg sync.WaitGroup
	var mu sync.Mutex
	sent := 0

	for _, rem := range reminders {
		wg.Add(1)
		sem <- struct{}{}

		go func(r *model.Reminder) {
			defer wg.Done()
			defer func() { <-sem }()

			if d.deliver(ctx, r) {
				mu.Lock()
				sent++
				mu.Unlock()
			}
		}(rem)
	}

	wg.Wait()

	d.logger.Info("リマインダー配信サイクルが完了しました",
		slog.Int("due_count", len(reminders)),
		slog.Int("sent_count", sent),
		slog.Float64("duration_ms", float64(d.clock.Now().Sub(start).Milliseconds())),
	)
	return nil
}

// deliver は1件のリマインダーを配信し、結果を記録する。配信できた場合はtrueを返す。
func (d *Dispatcher) deliver(ctx context.Context, rem *model.Reminder) bool {
	sender, ok := d.senders[rem.Channel]
	var err error
	if !ok {
		err = fmt.Errorf("unsupported channel: %s", rem.Channel)
	} else {
		err = sender.Send(ctx, rem)
	}

	if err != nil {
		d.metrics.RecordReminderFailed(rem.Channel)
		d.logger.Warn("リマインダーの配信に失敗しました",
			slog.String("reminder_id", rem.ID),
			slog.String("channel", rem.Channel),
			slog.String("error", err.Error()),
		)
		if markErr := d.queue.MarkFailed(ctx, rem.ID, err.Error()); markErr != nil {
			d.logger.Error("配信失敗の記録に失敗しました",
				slog.String("reminder_id", rem.ID),
				slog.String("error", markErr.Error()),
			)
		}
		return false
	}

	if err := d.queue.MarkSent(ctx, rem.ID, d.clock.Now().UTC()); err != nil {
		d.logger.Error("送信済みの記録に失敗しました",
			slog.String("reminder_id", rem.ID),
			slog.String("error", err.Error()),
		)
		return false
	}
	d.metrics.RecordReminderSent(rem.Channel)
	return true
}
