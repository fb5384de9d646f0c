// Package scheduler はバックグラウンドジョブの定期実行を提供する。
// リマインダー配信、予定インスタンスの生成、期限切れセッションの削除で共用する。
package scheduler

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/juju/clock"
)

// Job は1サイクル分の処理を実行するインターフェース。
type Job interface {
	RunOnce(ctx context.Context) error
}

// JobFunc は関数をJobとして扱うアダプタ。
type JobFunc func(ctx context.Context) error

// RunOnce はf(ctx)を呼び出す。
func (f JobFunc) RunOnce(ctx context.Context) error {
	return f(ctx)
}

// Entry は登録されたジョブと実行間隔。
type Entry struct {
	Name     string
	Job      Job
	Interval time.Duration
}

// Scheduler は登録されたジョブをそれぞれの間隔で実行する。
// 同じジョブのサイクルが重なることはない。
type Scheduler struct {
	entries []Entry
	clock   clock.Clock
	logger  *slog.Logger
}

// NewScheduler はSchedulerの新しいインスタンスを生成する。
func NewScheduler(clk clock.Clock, logger *slog.Logger) *Scheduler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Scheduler{clock: clk, logger: logger}
}

// Register はジョブを登録する。Startの前に呼び出す。
func (s *Scheduler) Register(name string, job Job, interval time.Duration) {
	s.entries = append(s.entries, Entry{Name: name, Job: job, Interval: interval})
}

// Entries は登録済みのジョブを返す。
func (s *Scheduler) Entries() []Entry {
	return s.entries
}

// Start は全ジョブを起動し、コンテキストがキャンセルされるまでブロックする。
func (s *Scheduler) Start(ctx context.Context) {
	var wg sync.WaitGroup
	for _, e := range s.entries {
		wg.Add(1)
		go func(e Entry) {
			defer wg.Done()
			s.loop(ctx, e)
		}(e)
	}
	wg.Wait()
}

// loop は起動直後に1回実行し、以降はinterval間隔で実行する。
func (s *Scheduler) loop(ctx context.Context, e Entry) {
	s.logger.Info("ジョブを開始しました",
		slog.String("job", e.Name),
		slog.Duration("interval", e.Interval),
	)

	s.run(ctx, e)
	for {
		select {
		case <-ctx.Done():
			s.logger.Info("ジョブを停止しました", slog.String("job", e.Name))
			return
		case <-s.clock.After(e.Interval):
			s.run(ctx, e)
		}
	}
}

// run はジョブを1回実行する。パニックはログに記録してループを継続する。
func (s *Scheduler) run(ctx context.Context, e Entry) {
	defer func() {
		if r := recover(); r != nil {
			s.logger.Error("ジョブでパニックが発生しました",
				slog.String("job", e.Name),
				slog.Any("panic", r),
			)
		}
	}()

	start := s.clock.Now()
	if err := e.Job.RunOnce(ctx); err != nil {
		if ctx.Err() != nil {
			return
		}
		s.logger.Error("ジョブの実行に失敗しました",
			slog.String("job", e.Name),
			slog.String("error", err.Error()),
		)
		return
	}
	s.logger.Debug("ジョブが完了しました",
		slog.String("job", e.Name),
		slog.Float64("duration_ms", float64(s.clock.Now().Sub(start).Milliseconds())),
	)
}
