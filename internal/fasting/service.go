// Package fasting はファスティングタイマーと履歴・統計のドメインロジックを提供する。
package fasting

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"
	"github.com/juju/clock"

	"github.com/hitoshi/fastrack/internal/metrics"
	"github.com/hitoshi/fastrack/internal/model"
	"github.com/hitoshi/fastrack/internal/repository"
)

const maxFastingTypeLen = 32

// ProfileProvider はプロフィールの取得インターフェース。
type ProfileProvider interface {
	Get(ctx context.Context, userID string) (*model.Profile, error)
}

// Sanitizer はユーザー入力のテキストを無害化するインターフェース。
type Sanitizer interface {
	Clean(s string) string
}

// Fast はファスティングと現在時刻から算出した派生値。
type Fast struct {
	*model.FastingSession
	ElapsedHours float64
	ProgressPct  float64
	GoalReached  bool
}

// StartInput はファスティング開始の入力。
type StartInput struct {
	TargetHours     *float64
	FastingType     string
	StartedAt       *time.Time
	Notes           string
	ScheduledFastID *string
}

// UpdateInput はファスティング履歴の修正内容。nilのフィールドは変更しない。
type UpdateInput struct {
	StartedAt   *time.Time
	EndedAt     *time.Time
	TargetHours *float64
	FastingType *string
	Notes       *string
}

// ListInput は一覧取得の条件。
type ListInput struct {
	Status model.FastStatus
	Cursor string
	Limit  int
}

// Stats は完了済みファスティングの統計。
type Stats struct {
	TotalFasts       int
	TotalHours       float64
	AverageHours     float64
	LongestHours     float64
	GoalReachedCount int
	CompletionRate   float64
	CurrentStreak    int
	LongestStreak    int
}

// Service はファスティングのサービス層。
type Service struct {
	fastRepo     repository.FastingRepository
	scheduleRepo repository.ScheduleRepository
	profiles     ProfileProvider
	sanitizer    Sanitizer
	metrics      metrics.MetricsCollector
	clock        clock.Clock
}

// NewService はServiceの新しいインスタンスを生成する。
// scheduleRepo がnilの場合、予定との連携は行わない。
func NewService(
	fastRepo repository.FastingRepository,
	scheduleRepo repository.ScheduleRepository,
	profiles ProfileProvider,
	sanitizer Sanitizer,
	mc metrics.MetricsCollector,
	clk clock.Clock,
) *Service {
	if mc == nil {
		mc = metrics.Nop{}
	}
	return &Service{
		fastRepo:     fastRepo,
		scheduleRepo: scheduleRepo,
		profiles:     profiles,
		sanitizer:    sanitizer,
		metrics:      mc,
		clock:        clk,
	}
}

// Start はファスティングを開始する。進行中のファスティングがある場合はACTIVE_FAST_EXISTSを返す。
func (s *Service) Start(ctx context.Context, userID string, in StartInput) (*Fast, error) {
	now := s.clock.Now().UTC()

	errs := model.ValidationErrors{}
	if in.TargetHours != nil {
		validateTargetHours(errs, *in.TargetHours)
	}
	if in.StartedAt != nil && in.StartedAt.After(now.Add(model.FutureTolerance)) {
		errs.Add("started_at", "未来の日時は指定できません")
	}
	if utf8.RuneCountInString(in.FastingType) > maxFastingTypeLen {
		errs.Add("fasting_type", fmt.Sprintf("%d文字以内で入力してください", maxFastingTypeLen))
	}
	if err := errs.Err(); err != nil {
		return nil, err
	}

	var target float64
	if in.TargetHours != nil {
		target = *in.TargetHours
	} else {
		profile, err := s.profiles.Get(ctx, userID)
		if err != nil {
			return nil, err
		}
		target = profile.DefaultFastHours
	}

	if in.ScheduledFastID != nil && s.scheduleRepo != nil {
		sched, err := s.scheduleRepo.FindByID(ctx, userID, *in.ScheduledFastID)
		if err != nil {
			return nil, fmt.Errorf("予定の取得に失敗しました: %w", err)
		}
		if sched == nil {
			return nil, model.NewNotFoundError(model.ErrCodeScheduleNotFound, "予定", *in.ScheduledFastID)
		}
	}

	active, err := s.fastRepo.FindActive(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("進行中ファスティングの取得に失敗しました: %w", err)
	}
	if active != nil {
		return nil, model.NewActiveFastExistsError()
	}

	startedAt := now
	if in.StartedAt != nil {
		startedAt = in.StartedAt.UTC()
	}
	fastingType := in.FastingType
	if fastingType == "" {
		fastingType = defaultFastingType(target)
	}

	f := &model.FastingSession{
		ID:              uuid.New().String(),
		UserID:          userID,
		StartedAt:       startedAt,
		TargetHours:     target,
		FastingType:     fastingType,
		Status:          model.FastStatusActive,
		Notes:           s.sanitizer.Clean(in.Notes),
		ScheduledFastID: in.ScheduledFastID,
		CreatedAt:       now,
		UpdatedAt:       now,
	}
	// 同時開始は部分ユニークインデックスによりACTIVE_FAST_EXISTSとして返る
	if err := s.fastRepo.Create(ctx, f); err != nil {
		return nil, err
	}

	s.metrics.RecordFastStarted()
	slog.Info("ファスティングを開始しました",
		slog.String("user_id", userID),
		slog.String("fast_id", f.ID),
		slog.Float64("target_hours", target),
	)
	return s.view(f, now), nil
}

// End は進行中のファスティングを完了する。endedAt がnilの場合は現在時刻で終了する。
func (s *Service) End(ctx context.Context, userID, id string, endedAt *time.Time) (*Fast, error) {
	f, err := s.find(ctx, userID, id)
	if err != nil {
		return nil, err
	}
	if f.Status != model.FastStatusActive {
		return nil, model.NewFastNotActiveError()
	}

	now := s.clock.Now().UTC()
	end := now
	if endedAt != nil {
		end = endedAt.UTC()
	}
	if end.Before(f.StartedAt) {
		return nil, model.NewFieldError("ended_at", "開始日時より後の日時を指定してください")
	}
	if end.After(now.Add(model.FutureTolerance)) {
		return nil, model.NewFieldError("ended_at", "未来の日時は指定できません")
	}

	f.EndedAt = &end
	f.Status = model.FastStatusCompleted
	f.UpdatedAt = now
	if err := s.fastRepo.Update(ctx, f); err != nil {
		return nil, err
	}

	goalReached := f.GoalReachedAt(now)
	s.metrics.RecordFastCompleted(goalReached)
	slog.Info("ファスティングを完了しました",
		slog.String("user_id", userID),
		slog.String("fast_id", f.ID),
		slog.Float64("hours", f.DurationAt(now).Hours()),
		slog.Bool("goal_reached", goalReached),
	)

	if err := s.completeSchedule(ctx, f, now); err != nil {
		return nil, err
	}
	return s.view(f, now), nil
}

// Cancel は進行中のファスティングを中止する。
func (s *Service) Cancel(ctx context.Context, userID, id string) (*Fast, error) {
	f, err := s.find(ctx, userID, id)
	if err != nil {
		return nil, err
	}
	if f.Status != model.FastStatusActive {
		return nil, model.NewFastNotActiveError()
	}

	now := s.clock.Now().UTC()
	f.EndedAt = &now
	f.Status = model.FastStatusCancelled
	f.UpdatedAt = now
	if err := s.fastRepo.Update(ctx, f); err != nil {
		return nil, err
	}

	slog.Info("ファスティングを中止しました",
		slog.String("user_id", userID),
		slog.String("fast_id", f.ID),
	)
	return s.view(f, now), nil
}

// Update はファスティング履歴を修正する。
// 進行中のファスティングに終了日時を設定することはできない。
func (s *Service) Update(ctx context.Context, userID, id string, in UpdateInput) (*Fast, error) {
	f, err := s.find(ctx, userID, id)
	if err != nil {
		return nil, err
	}
	now := s.clock.Now().UTC()

	errs := model.ValidationErrors{}
	if in.TargetHours != nil {
		validateTargetHours(errs, *in.TargetHours)
	}
	if in.FastingType != nil && utf8.RuneCountInString(*in.FastingType) > maxFastingTypeLen {
		errs.Add("fasting_type", fmt.Sprintf("%d文字以内で入力してください", maxFastingTypeLen))
	}
	if in.StartedAt != nil && in.StartedAt.After(now.Add(model.FutureTolerance)) {
		errs.Add("started_at", "未来の日時は指定できません")
	}
	if in.EndedAt != nil {
		if f.Status == model.FastStatusActive {
			errs.Add("ended_at", "進行中のファスティングは終了操作で終了してください")
		} else if in.EndedAt.After(now.Add(model.FutureTolerance)) {
			errs.Add("ended_at", "未来の日時は指定できません")
		}
	}

	startedAt := f.StartedAt
	if in.StartedAt != nil {
		startedAt = in.StartedAt.UTC()
	}
	endedAt := f.EndedAt
	if in.EndedAt != nil {
		end := in.EndedAt.UTC()
		endedAt = &end
	}
	if endedAt != nil && endedAt.Before(startedAt) {
		errs.Add("ended_at", "開始日時より後の日時を指定してください")
	}
	if err := errs.Err(); err != nil {
		return nil, err
	}

	f.StartedAt = startedAt
	f.EndedAt = endedAt
	if in.TargetHours != nil {
		f.TargetHours = *in.TargetHours
	}
	if in.FastingType != nil {
		f.FastingType = *in.FastingType
	}
	if in.Notes != nil {
		f.Notes = s.sanitizer.Clean(*in.Notes)
	}
	f.UpdatedAt = now

	if err := s.fastRepo.Update(ctx, f); err != nil {
		return nil, err
	}
	return s.view(f, now), nil
}

// Get は指定IDのファスティングを返す。
func (s *Service) Get(ctx context.Context, userID, id string) (*Fast, error) {
	f, err := s.find(ctx, userID, id)
	if err != nil {
		return nil, err
	}
	return s.view(f, s.clock.Now()), nil
}

// Delete は指定IDのファスティングを削除する。
func (s *Service) Delete(ctx context.Context, userID, id string) error {
	ok, err := s.fastRepo.Delete(ctx, userID, id)
	if err != nil {
		return err
	}
	if !ok {
		return model.NewNotFoundError(model.ErrCodeFastNotFound, "ファスティング", id)
	}
	return nil
}

// Active は進行中のファスティングを返す。ない場合はFAST_NOT_FOUNDを返す。
func (s *Service) Active(ctx context.Context, userID string) (*Fast, error) {
	f, err := s.fastRepo.FindActive(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("進行中ファスティングの取得に失敗しました: %w", err)
	}
	if f == nil {
		return nil, model.NewNotFoundError(model.ErrCodeFastNotFound, "進行中のファスティング", "active")
	}
	return s.view(f, s.clock.Now()), nil
}

// List はファスティングをstarted_at降順でカーソルページングして返す。
func (s *Service) List(ctx context.Context, userID string, in ListInput) (model.Page[*Fast], error) {
	if in.Status != "" && !in.Status.Valid() {
		return model.Page[*Fast]{}, model.NewFieldError("status", "active, completed, cancelled のいずれかを指定してください")
	}
	before, err := model.ParseCursor(in.Cursor)
	if err != nil {
		return model.Page[*Fast]{}, err
	}
	limit := model.NormalizeLimit(in.Limit)

	fasts, err := s.fastRepo.List(ctx, userID, model.FastFilter{
		Status: in.Status,
		Before: before,
		Limit:  limit + 1,
	})
	if err != nil {
		return model.Page[*Fast]{}, err
	}

	now := s.clock.Now()
	views := make([]*Fast, len(fasts))
	for i, f := range fasts {
		views[i] = s.view(f, now)
	}
	return model.NewPage(views, limit, func(f *Fast) model.Cursor { return model.Cursor{At: f.StartedAt, ID: f.ID} }), nil
}

// Stats は期間内に終了した完了済みファスティングの統計を返す。
// 連続日数はプロフィールのタイムゾーンの暦日で数える。
func (s *Service) Stats(ctx context.Context, userID string, from, to *time.Time) (*Stats, error) {
	if from != nil && to != nil && from.After(*to) {
		return nil, model.NewFieldError("from", "開始日は終了日以前を指定してください")
	}

	fasts, err := s.fastRepo.ListCompleted(ctx, userID, from, to)
	if err != nil {
		return nil, err
	}
	profile, err := s.profiles.Get(ctx, userID)
	if err != nil {
		return nil, err
	}

	now := s.clock.Now()
	st := &Stats{TotalFasts: len(fasts)}
	endedAt := make([]time.Time, 0, len(fasts))
	for _, f := range fasts {
		hours := f.DurationAt(now).Hours()
		st.TotalHours += hours
		if hours > st.LongestHours {
			st.LongestHours = hours
		}
		if f.GoalReachedAt(now) {
			st.GoalReachedCount++
		}
		if f.EndedAt != nil {
			endedAt = append(endedAt, *f.EndedAt)
		}
	}
	if st.TotalFasts > 0 {
		st.AverageHours = st.TotalHours / float64(st.TotalFasts)
		st.CompletionRate = float64(st.GoalReachedCount) / float64(st.TotalFasts)
	}

	streak := ComputeStreak(endedAt, now, profile.Location())
	st.CurrentStreak = streak.Current
	st.LongestStreak = streak.Longest

	st.TotalHours = round2(st.TotalHours)
	st.AverageHours = round2(st.AverageHours)
	st.LongestHours = round2(st.LongestHours)
	st.CompletionRate = round2(st.CompletionRate)
	return st, nil
}

// Completed は期間内に終了した完了済みファスティングをended_at昇順で返す。
func (s *Service) Completed(ctx context.Context, userID string, from, to time.Time) ([]*model.FastingSession, error) {
	return s.fastRepo.ListCompleted(ctx, userID, &from, &to)
}

func (s *Service) find(ctx context.Context, userID, id string) (*model.FastingSession, error) {
	f, err := s.fastRepo.FindByID(ctx, userID, id)
	if err != nil {
		return nil, fmt.Errorf("ファスティングの取得に失敗しました: %w", err)
	}
	if f == nil {
		return nil, model.NewNotFoundError(model.ErrCodeFastNotFound, "ファスティング", id)
	}
	return f, nil
}

// completeSchedule は予定から開始したファスティングの終了時に予定を完了状態にする。
func (s *Service) completeSchedule(ctx context.Context, f *model.FastingSession, now time.Time) error {
	if s.scheduleRepo == nil || f.ScheduledFastID == nil {
		return nil
	}
	sched, err := s.scheduleRepo.FindByID(ctx, f.UserID, *f.ScheduledFastID)
	if err != nil {
		return fmt.Errorf("予定の取得に失敗しました: %w", err)
	}
	if sched == nil || sched.Status != model.ScheduleStatusStarted {
		return nil
	}
	sched.Status = model.ScheduleStatusCompleted
	sched.UpdatedAt = now
	if err := s.scheduleRepo.Update(ctx, sched); err != nil {
		return fmt.Errorf("予定の更新に失敗しました: %w", err)
	}
	return nil
}

func (s *Service) view(f *model.FastingSession, now time.Time) *Fast {
	elapsed := f.DurationAt(now).Hours()
	progress := 0.0
	if f.TargetHours > 0 {
		progress = math.Min(100, elapsed/f.TargetHours*100)
	}
	return &Fast{
		FastingSession: f,
		ElapsedHours:   round2(elapsed),
		ProgressPct:    round2(progress),
		GoalReached:    f.GoalReachedAt(now),
	}
}

func validateTargetHours(errs model.ValidationErrors, hours float64) {
	if hours <= 0 || hours > model.MaxFastHours {
		errs.Add("target_hours", fmt.Sprintf("0より大きく%.0f以下で入力してください", model.MaxFastHours))
	}
}

// defaultFastingType は目標時間から 16:8 のような表記を返す。
func defaultFastingType(hours float64) string {
	if hours < 24 {
		return fmt.Sprintf("%g:%g", hours, 24-hours)
	}
	return fmt.Sprintf("%gh", hours)
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
