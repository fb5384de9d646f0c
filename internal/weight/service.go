// Package weight は体重記録と推移のドメインロジックを提供する。
package weight

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"time"

	"github.com/google/uuid"
	"github.com/juju/clock"

	"github.com/hitoshi/fastrack/internal/model"
	"github.com/hitoshi/fastrack/internal/repository"
)

// 移動平均の対象件数
const movingAverageWindow = 7

// 期間未指定時の推移の既定期間
const defaultTrendDays = 30

// ProfileProvider はプロフィールの取得インターフェース。
type ProfileProvider interface {
	Get(ctx context.Context, userID string) (*model.Profile, error)
}

// Sanitizer はユーザー入力のテキストを無害化するインターフェース。
type Sanitizer interface {
	Clean(s string) string
}

// Input は体重記録の作成・更新の入力。更新時はnilのフィールドを変更しない。
type Input struct {
	WeightKg   *float64
	BodyFatPct *float64
	RecordedAt *time.Time
	Notes      *string
}

// ListInput は一覧取得の条件。
type ListInput struct {
	From   *time.Time
	To     *time.Time
	Cursor string
	Limit  int
}

// TrendPoint は推移グラフの1点。
type TrendPoint struct {
	RecordedAt    time.Time
	WeightKg      float64
	MovingAverage float64
}

// Trend は期間内の体重推移。
type Trend struct {
	From              time.Time
	To                time.Time
	Count             int
	First             *model.WeightRecord
	Latest            *model.WeightRecord
	ChangeKg          float64
	MinKg             float64
	MaxKg             float64
	Points            []TrendPoint
	BMI               *float64
	TargetWeightKg    *float64
	RemainingToTarget *float64
}

// Service は体重記録のサービス層。
type Service struct {
	weightRepo repository.WeightRepository
	profiles   ProfileProvider
	sanitizer  Sanitizer
	clock      clock.Clock
}

// NewService はServiceの新しいインスタンスを生成する。
func NewService(weightRepo repository.WeightRepository, profiles ProfileProvider, sanitizer Sanitizer, clk clock.Clock) *Service {
	return &Service{
		weightRepo: weightRepo,
		profiles:   profiles,
		sanitizer:  sanitizer,
		clock:      clk,
	}
}

// Create は体重を記録する。recorded_at未指定時は現在時刻を使う。
func (s *Service) Create(ctx context.Context, userID string, in Input) (*model.WeightRecord, error) {
	now := s.clock.Now().UTC()
	errs := model.ValidationErrors{}
	if in.WeightKg == nil {
		errs.Add("weight_kg", "体重を入力してください")
	}
	validate(errs, in, now)
	if err := errs.Err(); err != nil {
		return nil, err
	}

	rec := &model.WeightRecord{
		ID:         uuid.New().String(),
		UserID:     userID,
		WeightKg:   *in.WeightKg,
		BodyFatPct: in.BodyFatPct,
		RecordedAt: now,
		CreatedAt:  now,
		UpdatedAt:  now,
	}
	if in.RecordedAt != nil {
		rec.RecordedAt = in.RecordedAt.UTC()
	}
	if in.Notes != nil {
		rec.Notes = s.sanitizer.Clean(*in.Notes)
	}

	if err := s.weightRepo.Create(ctx, rec); err != nil {
		return nil, err
	}

	slog.Info("体重を記録しました",
		slog.String("user_id", userID),
		slog.String("weight_id", rec.ID),
	)
	return rec, nil
}

// Get は指定IDの体重記録を返す。
func (s *Service) Get(ctx context.Context, userID, id string) (*model.WeightRecord, error) {
	rec, err := s.weightRepo.FindByID(ctx, userID, id)
	if err != nil {
		return nil, fmt.Errorf("体重記録の取得に失敗しました: %w", err)
	}
	if rec == nil {
		return nil, model.NewNotFoundError(model.ErrCodeWeightNotFound, "体重記録", id)
	}
	return rec, nil
}

// Update は体重記録を部分更新する。
func (s *Service) Update(ctx context.Context, userID, id string, in Input) (*model.WeightRecord, error) {
	errs := model.ValidationErrors{}
	validate(errs, in, s.clock.Now())
	if err := errs.Err(); err != nil {
		return nil, err
	}

	rec, err := s.Get(ctx, userID, id)
	if err != nil {
		return nil, err
	}
	if in.WeightKg != nil {
		rec.WeightKg = *in.WeightKg
	}
	if in.BodyFatPct != nil {
		rec.BodyFatPct = in.BodyFatPct
	}
	if in.RecordedAt != nil {
		rec.RecordedAt = in.RecordedAt.UTC()
	}
	if in.Notes != nil {
		rec.Notes = s.sanitizer.Clean(*in.Notes)
	}
	rec.UpdatedAt = s.clock.Now().UTC()

	if err := s.weightRepo.Update(ctx, rec); err != nil {
		return nil, err
	}
	return rec, nil
}

// Delete は体重記録を削除する。
func (s *Service) Delete(ctx context.Context, userID, id string) error {
	ok, err := s.weightRepo.Delete(ctx, userID, id)
	if err != nil {
		return err
	}
	if !ok {
		return model.NewNotFoundError(model.ErrCodeWeightNotFound, "体重記録", id)
	}
	return nil
}

// List は体重記録をrecorded_at降順でカーソルページングして返す。
func (s *Service) List(ctx context.Context, userID string, in ListInput) (model.Page[*model.WeightRecord], error) {
	if in.From != nil && in.To != nil && in.From.After(*in.To) {
		return model.Page[*model.WeightRecord]{}, model.NewFieldError("from", "開始日は終了日以前を指定してください")
	}
	before, err := model.ParseCursor(in.Cursor)
	if err != nil {
		return model.Page[*model.WeightRecord]{}, err
	}
	limit := model.NormalizeLimit(in.Limit)

	recs, err := s.weightRepo.List(ctx, userID, model.RangeFilter{
		From:   in.From,
		To:     in.To,
		Before: before,
		Limit:  limit + 1,
	})
	if err != nil {
		return model.Page[*model.WeightRecord]{}, err
	}
	return model.NewPage(recs, limit, func(r *model.WeightRecord) model.Cursor { return model.Cursor{At: r.RecordedAt, ID: r.ID} }), nil
}

// Trend は期間内の体重推移を返す。期間未指定時は直近30日。
func (s *Service) Trend(ctx context.Context, userID string, from, to *time.Time) (*Trend, error) {
	end := s.clock.Now().UTC()
	if to != nil {
		end = to.UTC()
	}
	start := end.AddDate(0, 0, -defaultTrendDays)
	if from != nil {
		start = from.UTC()
	}
	if start.After(end) {
		return nil, model.NewFieldError("from", "開始日は終了日以前を指定してください")
	}

	recs, err := s.weightRepo.ListRange(ctx, userID, start, end)
	if err != nil {
		return nil, err
	}
	profile, err := s.profiles.Get(ctx, userID)
	if err != nil {
		return nil, err
	}

	trend := BuildTrend(recs, profile)
	trend.From = start
	trend.To = end
	return trend, nil
}

// BuildTrend はrecorded_at昇順の記録から推移を組み立てる。
// BMIはプロフィールに身長がある場合、残りは目標体重がある場合のみ算出する。
func BuildTrend(recs []*model.WeightRecord, profile *model.Profile) *Trend {
	t := &Trend{Count: len(recs), Points: make([]TrendPoint, 0, len(recs))}
	if profile != nil {
		t.TargetWeightKg = profile.TargetWeightKg
	}
	if len(recs) == 0 {
		return t
	}

	t.First = recs[0]
	t.Latest = recs[len(recs)-1]
	t.ChangeKg = round2(t.Latest.WeightKg - t.First.WeightKg)
	t.MinKg = recs[0].WeightKg
	t.MaxKg = recs[0].WeightKg

	sum := 0.0
	for i, r := range recs {
		t.MinKg = math.Min(t.MinKg, r.WeightKg)
		t.MaxKg = math.Max(t.MaxKg, r.WeightKg)

		sum += r.WeightKg
		n := i + 1
		if i >= movingAverageWindow {
			sum -= recs[i-movingAverageWindow].WeightKg
			n = movingAverageWindow
		}
		t.Points = append(t.Points, TrendPoint{
			RecordedAt:    r.RecordedAt,
			WeightKg:      r.WeightKg,
			MovingAverage: round2(sum / float64(n)),
		})
	}

	if profile != nil && profile.HeightCm != nil && *profile.HeightCm > 0 {
		bmi := BMI(t.Latest.WeightKg, *profile.HeightCm)
		t.BMI = &bmi
	}
	if t.TargetWeightKg != nil {
		remaining := round2(t.Latest.WeightKg - *t.TargetWeightKg)
		t.RemainingToTarget = &remaining
	}
	return t
}

// BMI は体重(kg)と身長(cm)からBMIを小数第1位で返す。
func BMI(weightKg, heightCm float64) float64 {
	m := heightCm / 100
	return math.Round(weightKg/(m*m)*10) / 10
}

func validate(errs model.ValidationErrors, in Input, now time.Time) {
	if in.WeightKg != nil && (*in.WeightKg <= 0 || *in.WeightKg >= model.MaxWeightKg) {
		errs.Add("weight_kg", fmt.Sprintf("0より大きく%.0f未満で入力してください", model.MaxWeightKg))
	}
	if in.BodyFatPct != nil && (*in.BodyFatPct < 0 || *in.BodyFatPct > 100) {
		errs.Add("body_fat_pct", "0〜100の範囲で入力してください")
	}
	if in.RecordedAt != nil && in.RecordedAt.After(now.Add(model.FutureTolerance)) {
		errs.Add("recorded_at", "未来の日時は指定できません")
	}
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
