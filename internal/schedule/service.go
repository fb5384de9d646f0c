// Package schedule は予定ファスティングと繰り返しシリーズのドメインロジックを提供する。
package schedule

import (
	"context"
	"fmt"
	"log/slog"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"
	"github.com/juju/clock"

	"github.com/hitoshi/fastrack/internal/fasting"
	"github.com/hitoshi/fastrack/internal/metrics"
	"github.com/hitoshi/fastrack/internal/model"
	"github.com/hitoshi/fastrack/internal/repository"
)

const (
	maxTitleLen = 100
	// 一覧の期間未指定時は今日から先の予定を返す
	defaultListDays = 30
)

// ProfileProvider はプロフィールの取得インターフェース。
type ProfileProvider interface {
	Get(ctx context.Context, userID string) (*model.Profile, error)
}

// Sanitizer はユーザー入力のテキストを無害化するインターフェース。
type Sanitizer interface {
	Clean(s string) string
}

// FastStarter はファスティング開始のインターフェース。
// Delete は予定の更新に失敗したときの取り消しに使う。
type FastStarter interface {
	Start(ctx context.Context, userID string, in fasting.StartInput) (*fasting.Fast, error)
	Delete(ctx context.Context, userID, id string) error
}

// Input は予定の作成・部分更新の入力。更新時はnilのフィールドを変更しない。
type Input struct {
	Title         *string
	StartAt       *time.Time
	TargetHours   *float64
	Recurrence    *model.Recurrence
	Weekdays      []int
	RecurrenceEnd *time.Time
}

// ListInput は一覧取得の条件。
type ListInput struct {
	Status model.ScheduleStatus
	From   *time.Time
	To     *time.Time
	Limit  int
}

// Config はサービスの設定。
type Config struct {
	Horizon time.Duration // インスタンスを生成する先の期間
}

// Service は予定ファスティングのサービス層。
type Service struct {
	scheduleRepo repository.ScheduleRepository
	profiles     ProfileProvider
	fasts        FastStarter
	sanitizer    Sanitizer
	metrics      metrics.MetricsCollector
	clock        clock.Clock
	logger       *slog.Logger
	config       Config
}

// NewService はServiceの新しいインスタンスを生成する。
func NewService(
	scheduleRepo repository.ScheduleRepository,
	profiles ProfileProvider,
	fasts FastStarter,
	sanitizer Sanitizer,
	mc metrics.MetricsCollector,
	clk clock.Clock,
	logger *slog.Logger,
	config Config,
) *Service {
	if mc == nil {
		mc = metrics.Nop{}
	}
	if logger == nil {
		logger = slog.Default()
	}
	if config.Horizon <= 0 {
		config.Horizon = 30 * 24 * time.Hour
	}
	return &Service{
		scheduleRepo: scheduleRepo,
		profiles:     profiles,
		fasts:        fasts,
		sanitizer:    sanitizer,
		metrics:      mc,
		clock:        clk,
		logger:       logger,
		config:       config,
	}
}

// Create は予定を作成する。繰り返しの場合は生成範囲内のインスタンスも作る。
func (s *Service) Create(ctx context.Context, userID string, in Input) (*model.ScheduledFast, error) {
	now := s.clock.Now().UTC()
	if in.StartAt == nil {
		return nil, model.NewFieldError("start_at", "開始日時を指定してください")
	}

	sched := &model.ScheduledFast{
		ID:         uuid.New().String(),
		UserID:     userID,
		Recurrence: model.RecurrenceNone,
		Weekdays:   []int{},
		Status:     model.ScheduleStatusPlanned,
		CreatedAt:  now,
		UpdatedAt:  now,
	}
	if in.TargetHours == nil {
		profile, err := s.profiles.Get(ctx, userID)
		if err != nil {
			return nil, err
		}
		target := profile.DefaultFastHours
		in.TargetHours = &target
	}
	s.apply(sched, in)
	if err := validate(sched); err != nil {
		return nil, err
	}

	if err := s.scheduleRepo.Create(ctx, sched); err != nil {
		return nil, err
	}

	if sched.IsSeries() {
		if _, err := s.generate(ctx, sched, now); err != nil {
			return nil, err
		}
	}
	return sched, nil
}

// Get は指定IDの予定を返す。
func (s *Service) Get(ctx context.Context, userID, id string) (*model.ScheduledFast, error) {
	sched, err := s.scheduleRepo.FindByID(ctx, userID, id)
	if err != nil {
		return nil, fmt.Errorf("予定の取得に失敗しました: %w", err)
	}
	if sched == nil {
		return nil, model.NewNotFoundError(model.ErrCodeScheduleNotFound, "予定", id)
	}
	return sched, nil
}

// Update は予定を部分更新する。生成済みインスタンスの繰り返し設定は変更できない。
func (s *Service) Update(ctx context.Context, userID, id string, in Input) (*model.ScheduledFast, error) {
	sched, err := s.Get(ctx, userID, id)
	if err != nil {
		return nil, err
	}
	if sched.ParentID != nil && (in.Recurrence != nil || in.Weekdays != nil || in.RecurrenceEnd != nil) {
		return nil, model.NewFieldError("recurrence", "繰り返しの設定はシリーズ側で変更してください")
	}

	s.apply(sched, in)
	if err := validate(sched); err != nil {
		return nil, err
	}
	sched.UpdatedAt = s.clock.Now().UTC()

	if err := s.scheduleRepo.Update(ctx, sched); err != nil {
		return nil, err
	}
	return sched, nil
}

// Delete は予定を削除する。シリーズの場合は生成済みインスタンスも削除される。
func (s *Service) Delete(ctx context.Context, userID, id string) error {
	ok, err := s.scheduleRepo.Delete(ctx, userID, id)
	if err != nil {
		return err
	}
	if !ok {
		return model.NewNotFoundError(model.ErrCodeScheduleNotFound, "予定", id)
	}
	return nil
}

// List は期間内の予定をstart_at昇順で返す。期間未指定時は現在から30日先まで。
func (s *Service) List(ctx context.Context, userID string, in ListInput) ([]*model.ScheduledFast, error) {
	now := s.clock.Now().UTC()
	from := now
	if in.From != nil {
		from = in.From.UTC()
	}
	to := from.AddDate(0, 0, defaultListDays)
	if in.To != nil {
		to = in.To.UTC()
	}
	if from.After(to) {
		return nil, model.NewFieldError("from", "開始日は終了日以前を指定してください")
	}
	switch in.Status {
	case "", model.ScheduleStatusPlanned, model.ScheduleStatusStarted, model.ScheduleStatusCompleted, model.ScheduleStatusSkipped:
	default:
		return nil, model.NewFieldError("status", "planned, started, completed, skipped のいずれかを指定してください")
	}

	scheds, err := s.scheduleRepo.List(ctx, userID, model.RangeFilter{
		Type:  string(in.Status),
		From:  &from,
		To:    &to,
		Limit: model.NormalizeLimit(in.Limit),
	})
	if err != nil {
		return nil, err
	}
	if scheds == nil {
		scheds = []*model.ScheduledFast{}
	}
	return scheds, nil
}

// Generate は指定シリーズのインスタンスを生成し、作成件数を返す。
func (s *Service) Generate(ctx context.Context, userID, id string) (int, error) {
	sched, err := s.Get(ctx, userID, id)
	if err != nil {
		return 0, err
	}
	if !sched.IsSeries() {
		return 0, model.NewFieldError("recurrence", "繰り返しの予定ではありません")
	}
	return s.generate(ctx, sched, s.clock.Now().UTC())
}

// GenerateAll は全ユーザーの繰り返しシリーズのインスタンスを生成する。
// 1件の失敗で他のシリーズの生成は止めない。
func (s *Service) GenerateAll(ctx context.Context) (int, error) {
	series, err := s.scheduleRepo.ListSeries(ctx)
	if err != nil {
		return 0, err
	}

	now := s.clock.Now().UTC()
	total := 0
	for _, sched := range series {
		if ctx.Err() != nil {
			return total, ctx.Err()
		}
		n, err := s.generate(ctx, sched, now)
		if err != nil {
			s.logger.Error("予定インスタンスの生成に失敗しました",
				slog.String("schedule_id", sched.ID),
				slog.String("error", err.Error()),
			)
			continue
		}
		total += n
	}

	s.logger.Info("予定インスタンスの生成が完了しました",
		slog.Int("series_count", len(series)),
		slog.Int("created", total),
	)
	return total, nil
}

// RunOnce は定期ジョブとしてGenerateAllを実行する。
func (s *Service) RunOnce(ctx context.Context) error {
	_, err := s.GenerateAll(ctx)
	return err
}

// StartScheduled は予定からファスティングを開始し、予定を開始済みにする。
func (s *Service) StartScheduled(ctx context.Context, userID, id string) (*model.ScheduledFast, *fasting.Fast, error) {
	sched, err := s.Get(ctx, userID, id)
	if err != nil {
		return nil, nil, err
	}
	if sched.IsSeries() || sched.Status != model.ScheduleStatusPlanned {
		return nil, nil, model.NewScheduleNotPlannedError()
	}

	target := sched.TargetHours
	fast, err := s.fasts.Start(ctx, userID, fasting.StartInput{
		TargetHours:     &target,
		ScheduledFastID: &sched.ID,
	})
	if err != nil {
		return nil, nil, err
	}

	sched.Status = model.ScheduleStatusStarted
	sched.FastingSessionID = &fast.ID
	sched.UpdatedAt = s.clock.Now().UTC()
	if err := s.scheduleRepo.Update(ctx, sched); err != nil {
		// 予定が planned のまま進行中ファスティングが残ると再実行できなくなる
		if delErr := s.fasts.Delete(ctx, userID, fast.ID); delErr != nil {
			s.logger.Error("failed to roll back scheduled fast start",
				slog.String("schedule_id", sched.ID),
				slog.String("fast_id", fast.ID),
				slog.String("error", delErr.Error()),
			)
		}
		return nil, nil, err
	}
	return sched, fast, nil
}

// Skip は予定をスキップ済みにする。
func (s *Service) Skip(ctx context.Context, userID, id string) (*model.ScheduledFast, error) {
	sched, err := s.Get(ctx, userID, id)
	if err != nil {
		return nil, err
	}
	if sched.IsSeries() || sched.Status != model.ScheduleStatusPlanned {
		return nil, model.NewScheduleNotPlannedError()
	}

	sched.Status = model.ScheduleStatusSkipped
	sched.UpdatedAt = s.clock.Now().UTC()
	if err := s.scheduleRepo.Update(ctx, sched); err != nil {
		return nil, err
	}
	return sched, nil
}

// CountUpcoming は指定期間内の予定状態の件数を返す。
func (s *Service) CountUpcoming(ctx context.Context, userID string, from, to time.Time) (int, error) {
	return s.scheduleRepo.CountUpcoming(ctx, userID, from, to)
}

func (s *Service) generate(ctx context.Context, series *model.ScheduledFast, now time.Time) (int, error) {
	existing, err := s.scheduleRepo.ListInstanceStarts(ctx, series.ID)
	if err != nil {
		return 0, err
	}
	profile, err := s.profiles.Get(ctx, series.UserID)
	if err != nil {
		return 0, err
	}

	instances := GenerateInstances(series, existing, now, s.config.Horizon, profile.Location())
	if len(instances) == 0 {
		return 0, nil
	}
	created, err := s.scheduleRepo.CreateInstances(ctx, instances)
	if err != nil {
		return 0, err
	}
	s.metrics.RecordInstancesGenerated(created)
	return created, nil
}

func (s *Service) apply(sched *model.ScheduledFast, in Input) {
	if in.Title != nil {
		sched.Title = s.sanitizer.Clean(*in.Title)
	}
	if in.StartAt != nil {
		sched.StartAt = in.StartAt.UTC()
	}
	if in.TargetHours != nil {
		sched.TargetHours = *in.TargetHours
	}
	if in.Recurrence != nil {
		sched.Recurrence = *in.Recurrence
	}
	if in.Weekdays != nil {
		sched.Weekdays = in.Weekdays
	}
	if in.RecurrenceEnd != nil {
		end := in.RecurrenceEnd.UTC()
		sched.RecurrenceEnd = &end
	}
}

func validate(sched *model.ScheduledFast) error {
	errs := model.ValidationErrors{}
	if utf8.RuneCountInString(sched.Title) > maxTitleLen {
		errs.Add("title", fmt.Sprintf("%d文字以内で入力してください", maxTitleLen))
	}
	if sched.StartAt.IsZero() {
		errs.Add("start_at", "開始日時を指定してください")
	}
	if sched.TargetHours <= 0 || sched.TargetHours > model.MaxFastHours {
		errs.Add("target_hours", fmt.Sprintf("0より大きく%.0f以下で入力してください", model.MaxFastHours))
	}
	if !sched.Recurrence.Valid() {
		errs.Add("recurrence", "none, daily, weekly, monthly のいずれかを指定してください")
	}
	if len(sched.Weekdays) > 0 {
		if sched.Recurrence != model.RecurrenceDaily && sched.Recurrence != model.RecurrenceWeekly {
			errs.Add("weekdays", "曜日指定はdailyまたはweeklyでのみ使用できます")
		}
		for _, d := range sched.Weekdays {
			if d < 0 || d > 6 {
				errs.Add("weekdays", "曜日は0（日）〜6（土）で指定してください")
			}
		}
	}
	if sched.RecurrenceEnd != nil {
		if sched.Recurrence == model.RecurrenceNone {
			errs.Add("recurrence_end", "繰り返しの予定でのみ指定できます")
		} else if sched.RecurrenceEnd.Before(sched.StartAt) {
			errs.Add("recurrence_end", "開始日時以降を指定してください")
		}
	}
	return errs.Err()
}
