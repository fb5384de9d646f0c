// Package analytics はダッシュボード向けの集計を提供する。
// 各ドメインのサービスから読み取るだけで、データは変更しない。
package analytics

import (
	"context"
	"fmt"
	"math"
	"sort"
	"time"

	"github.com/juju/clock"

	"github.com/hitoshi/fastrack/internal/fasting"
	"github.com/hitoshi/fastrack/internal/model"
	"github.com/hitoshi/fastrack/internal/weight"
)

const (
	defaultRangeDays = 30
	maxRangeDays     = 366
	upcomingDays     = 7
)

// FastingSource はファスティングの統計と履歴の取得インターフェース。
type FastingSource interface {
	Stats(ctx context.Context, userID string, from, to *time.Time) (*fasting.Stats, error)
	Completed(ctx context.Context, userID string, from, to time.Time) ([]*model.FastingSession, error)
}

// WeightSource は体重推移の取得インターフェース。
type WeightSource interface {
	Trend(ctx context.Context, userID string, from, to *time.Time) (*weight.Trend, error)
}

// NutritionSource は日別栄養合計の取得インターフェース。
type NutritionSource interface {
	DailyNutrition(ctx context.Context, userID string, from, to *time.Time) ([]model.DailyNutrition, error)
}

// MetricSource は健康指標の種別ごとの最新値の取得インターフェース。
type MetricSource interface {
	Latest(ctx context.Context, userID string) ([]*model.HealthMetric, error)
}

// ScheduleSource は予定件数の取得インターフェース。
type ScheduleSource interface {
	CountUpcoming(ctx context.Context, userID string, from, to time.Time) (int, error)
}

// ProfileProvider はプロフィールの取得インターフェース。
type ProfileProvider interface {
	Get(ctx context.Context, userID string) (*model.Profile, error)
}

// NutritionSummary は食事のある日の1日平均と記録件数。
type NutritionSummary struct {
	AverageDaily model.Nutrition
	DaysLogged   int
	MealCount    int
}

// Dashboard はダッシュボードの集計結果。
type Dashboard struct {
	From              time.Time
	To                time.Time
	Fasting           *fasting.Stats
	Weight            *weight.Trend
	Nutrition         NutritionSummary
	LatestMetrics     []*model.HealthMetric
	UpcomingScheduled int
}

// FastingDay は暦日ごとのファスティング実績。
type FastingDay struct {
	Date  string
	Count int
	Hours float64
}

// FastingReport はファスティングの期間集計。
type FastingReport struct {
	From  time.Time
	To    time.Time
	Stats *fasting.Stats
	Days  []FastingDay
}

// NutritionReport は栄養の期間集計。
type NutritionReport struct {
	From    time.Time
	To      time.Time
	Summary NutritionSummary
	Days    []model.DailyNutrition
}

// Service は集計のサービス層。
type Service struct {
	fasts     FastingSource
	weights   WeightSource
	nutrition NutritionSource
	metrics   MetricSource
	schedules ScheduleSource
	profiles  ProfileProvider
	clock     clock.Clock
}

// NewService はServiceの新しいインスタンスを生成する。
func NewService(
	fasts FastingSource,
	weights WeightSource,
	nutrition NutritionSource,
	metrics MetricSource,
	schedules ScheduleSource,
	profiles ProfileProvider,
	clk clock.Clock,
) *Service {
	return &Service{
		fasts:     fasts,
		weights:   weights,
		nutrition: nutrition,
		metrics:   metrics,
		schedules: schedules,
		profiles:  profiles,
		clock:     clk,
	}
}

// Dashboard は期間内の各ドメインの集計をまとめて返す。期間未指定時は直近30日。
// 予定件数は期間にかかわらず現在から7日先までを数える。
func (s *Service) Dashboard(ctx context.Context, userID string, from, to *time.Time) (*Dashboard, error) {
	start, end, err := s.resolveRange(from, to)
	if err != nil {
		return nil, err
	}

	stats, err := s.fasts.Stats(ctx, userID, &start, &end)
	if err != nil {
		return nil, fmt.Errorf("ファスティング統計の取得に失敗しました: %w", err)
	}
	trend, err := s.weights.Trend(ctx, userID, &start, &end)
	if err != nil {
		return nil, fmt.Errorf("体重推移の取得に失敗しました: %w", err)
	}
	days, err := s.nutrition.DailyNutrition(ctx, userID, &start, &end)
	if err != nil {
		return nil, fmt.Errorf("栄養集計の取得に失敗しました: %w", err)
	}
	latest, err := s.metrics.Latest(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("健康指標の取得に失敗しました: %w", err)
	}
	now := s.clock.Now().UTC()
	upcoming, err := s.schedules.CountUpcoming(ctx, userID, now, now.AddDate(0, 0, upcomingDays))
	if err != nil {
		return nil, fmt.Errorf("予定件数の取得に失敗しました: %w", err)
	}
	if latest == nil {
		latest = []*model.HealthMetric{}
	}

	return &Dashboard{
		From:              start,
		To:                end,
		Fasting:           stats,
		Weight:            trend,
		Nutrition:         Summarize(days),
		LatestMetrics:     latest,
		UpcomingScheduled: upcoming,
	}, nil
}

// Fasting は期間内のファスティング統計と暦日ごとの実績を返す。
func (s *Service) Fasting(ctx context.Context, userID string, from, to *time.Time) (*FastingReport, error) {
	start, end, err := s.resolveRange(from, to)
	if err != nil {
		return nil, err
	}

	stats, err := s.fasts.Stats(ctx, userID, &start, &end)
	if err != nil {
		return nil, err
	}
	sessions, err := s.fasts.Completed(ctx, userID, start, end)
	if err != nil {
		return nil, err
	}
	profile, err := s.profiles.Get(ctx, userID)
	if err != nil {
		return nil, err
	}

	return &FastingReport{
		From:  start,
		To:    end,
		Stats: stats,
		Days:  GroupFastsByDay(sessions, profile.Location()),
	}, nil
}

// Nutrition は期間内の日別栄養合計と1日平均を返す。
func (s *Service) Nutrition(ctx context.Context, userID string, from, to *time.Time) (*NutritionReport, error) {
	start, end, err := s.resolveRange(from, to)
	if err != nil {
		return nil, err
	}

	days, err := s.nutrition.DailyNutrition(ctx, userID, &start, &end)
	if err != nil {
		return nil, err
	}
	if days == nil {
		days = []model.DailyNutrition{}
	}
	return &NutritionReport{
		From:    start,
		To:      end,
		Summary: Summarize(days),
		Days:    days,
	}, nil
}

// Summarize は食事のある日だけを対象に1日平均を求める。
func Summarize(days []model.DailyNutrition) NutritionSummary {
	var sum NutritionSummary
	var total model.Nutrition
	for _, d := range days {
		if d.MealCount == 0 {
			continue
		}
		sum.DaysLogged++
		sum.MealCount += d.MealCount
		total.Add(d.Nutrition)
	}
	if sum.DaysLogged == 0 {
		return sum
	}
	avg := total.Scale(1 / float64(sum.DaysLogged))
	sum.AverageDaily = model.Nutrition{
		Calories: round1(avg.Calories),
		ProteinG: round1(avg.ProteinG),
		CarbsG:   round1(avg.CarbsG),
		FatG:     round1(avg.FatG),
		FiberG:   round1(avg.FiberG),
	}
	return sum
}

// GroupFastsByDay は完了済みファスティングを終了日（loc基準）ごとに集計し、日付順で返す。
func GroupFastsByDay(sessions []*model.FastingSession, loc *time.Location) []FastingDay {
	byDate := make(map[string]*FastingDay)
	for _, f := range sessions {
		if f.EndedAt == nil {
			continue
		}
		date := f.EndedAt.In(loc).Format("2006-01-02")
		d, ok := byDate[date]
		if !ok {
			d = &FastingDay{Date: date}
			byDate[date] = d
		}
		d.Count++
		d.Hours += f.EndedAt.Sub(f.StartedAt).Hours()
	}

	days := make([]FastingDay, 0, len(byDate))
	for _, d := range byDate {
		d.Hours = math.Round(d.Hours*100) / 100
		days = append(days, *d)
	}
	sort.Slice(days, func(i, j int) bool { return days[i].Date < days[j].Date })
	return days
}

// resolveRange は期間を補完して検証する。
func (s *Service) resolveRange(from, to *time.Time) (time.Time, time.Time, error) {
	end := s.clock.Now().UTC()
	if to != nil {
		end = to.UTC()
	}
	start := end.AddDate(0, 0, -defaultRangeDays)
	if from != nil {
		start = from.UTC()
	}
	if start.After(end) {
		return time.Time{}, time.Time{}, model.NewFieldError("from", "開始日は終了日以前を指定してください")
	}
	if end.Sub(start) > maxRangeDays*24*time.Hour {
		return time.Time{}, time.Time{}, model.NewFieldError("to", fmt.Sprintf("期間は%d日以内で指定してください", maxRangeDays))
	}
	return start, end, nil
}

func round1(v float64) float64 {
	return math.Round(v*10) / 10
}
