// Package healthmetric は健康指標（血圧・心拍・睡眠など）の記録と集計のドメインロジックを提供する。
package healthmetric

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/juju/clock"

	"github.com/hitoshi/fastrack/internal/model"
	"github.com/hitoshi/fastrack/internal/repository"
	"github.com/hitoshi/fastrack/internal/schema"
)

const defaultSummaryDays = 30

// Sanitizer はユーザー入力のテキストを無害化するインターフェース。
type Sanitizer interface {
	Clean(s string) string
}

// CreateInput は健康指標の記録内容。
type CreateInput struct {
	Type       string
	Value      json.RawMessage
	RecordedAt *time.Time
	Notes      string
}

// UpdateInput は健康指標の部分更新内容。種別は変更できない。
type UpdateInput struct {
	Value      json.RawMessage
	RecordedAt *time.Time
	Notes      *string
}

// ListInput は一覧取得の条件。
type ListInput struct {
	Type   string
	From   *time.Time
	To     *time.Time
	Cursor string
	Limit  int
}

// FieldSummary は数値フィールドの集計値。
type FieldSummary struct {
	Min   float64
	Max   float64
	Avg   float64
	Count int
}

// Summary は種別ごとの期間集計。
type Summary struct {
	Type   string
	Unit   string
	From   time.Time
	To     time.Time
	Count  int
	Latest *model.HealthMetric
	Fields map[string]FieldSummary
}

// Service は健康指標のサービス層。
type Service struct {
	metricRepo repository.HealthMetricRepository
	sanitizer  Sanitizer
	clock      clock.Clock
}

// NewService はServiceの新しいインスタンスを生成する。
func NewService(metricRepo repository.HealthMetricRepository, sanitizer Sanitizer, clk clock.Clock) *Service {
	return &Service{metricRepo: metricRepo, sanitizer: sanitizer, clock: clk}
}

// Create は健康指標を記録する。値は種別ごとのJSON Schemaで検証する。
func (s *Service) Create(ctx context.Context, userID string, in CreateInput) (*model.HealthMetric, error) {
	now := s.clock.Now().UTC()

	mt, ok := schema.LookupMetricType(in.Type)
	if !ok {
		return nil, model.NewFieldError("type", "未対応の種別です: "+strings.Join(schema.MetricTypeNames(), ", "))
	}
	value, err := validateValue(mt, in.Value)
	if err != nil {
		return nil, err
	}
	if in.RecordedAt != nil && in.RecordedAt.After(now.Add(model.FutureTolerance)) {
		return nil, model.NewFieldError("recorded_at", "未来の日時は指定できません")
	}

	m := &model.HealthMetric{
		ID:         uuid.New().String(),
		UserID:     userID,
		Type:       mt.Name,
		Value:      value,
		Unit:       mt.Unit,
		RecordedAt: now,
		Notes:      s.sanitizer.Clean(in.Notes),
		CreatedAt:  now,
		UpdatedAt:  now,
	}
	if in.RecordedAt != nil {
		m.RecordedAt = in.RecordedAt.UTC()
	}

	if err := s.metricRepo.Create(ctx, m); err != nil {
		return nil, err
	}
	return m, nil
}

// Get は指定IDの健康指標を返す。
func (s *Service) Get(ctx context.Context, userID, id string) (*model.HealthMetric, error) {
	m, err := s.metricRepo.FindByID(ctx, userID, id)
	if err != nil {
		return nil, fmt.Errorf("健康指標の取得に失敗しました: %w", err)
	}
	if m == nil {
		return nil, model.NewNotFoundError(model.ErrCodeMetricNotFound, "健康指標", id)
	}
	return m, nil
}

// Update は健康指標を部分更新する。値は記録済みの種別のスキーマで検証する。
func (s *Service) Update(ctx context.Context, userID, id string, in UpdateInput) (*model.HealthMetric, error) {
	m, err := s.Get(ctx, userID, id)
	if err != nil {
		return nil, err
	}
	now := s.clock.Now().UTC()

	if len(in.Value) > 0 {
		mt, ok := schema.LookupMetricType(m.Type)
		if !ok {
			return nil, model.NewFieldError("type", "未対応の種別です")
		}
		value, err := validateValue(mt, in.Value)
		if err != nil {
			return nil, err
		}
		m.Value = value
	}
	if in.RecordedAt != nil {
		if in.RecordedAt.After(now.Add(model.FutureTolerance)) {
			return nil, model.NewFieldError("recorded_at", "未来の日時は指定できません")
		}
		m.RecordedAt = in.RecordedAt.UTC()
	}
	if in.Notes != nil {
		m.Notes = s.sanitizer.Clean(*in.Notes)
	}
	m.UpdatedAt = now

	if err := s.metricRepo.Update(ctx, m); err != nil {
		return nil, err
	}
	return m, nil
}

// Delete は健康指標を削除する。
func (s *Service) Delete(ctx context.Context, userID, id string) error {
	ok, err := s.metricRepo.Delete(ctx, userID, id)
	if err != nil {
		return err
	}
	if !ok {
		return model.NewNotFoundError(model.ErrCodeMetricNotFound, "健康指標", id)
	}
	return nil
}

// List は健康指標をrecorded_at降順でカーソルページングして返す。
func (s *Service) List(ctx context.Context, userID string, in ListInput) (model.Page[*model.HealthMetric], error) {
	var empty model.Page[*model.HealthMetric]
	if in.Type != "" {
		if _, ok := schema.LookupMetricType(in.Type); !ok {
			return empty, model.NewFieldError("type", "未対応の種別です")
		}
	}
	if in.From != nil && in.To != nil && in.From.After(*in.To) {
		return empty, model.NewFieldError("from", "開始日は終了日以前を指定してください")
	}
	before, err := model.ParseCursor(in.Cursor)
	if err != nil {
		return empty, err
	}
	limit := model.NormalizeLimit(in.Limit)

	metrics, err := s.metricRepo.List(ctx, userID, model.RangeFilter{
		Type:   in.Type,
		From:   in.From,
		To:     in.To,
		Before: before,
		Limit:  limit + 1,
	})
	if err != nil {
		return empty, err
	}
	return model.NewPage(metrics, limit, func(m *model.HealthMetric) model.Cursor { return model.Cursor{At: m.RecordedAt, ID: m.ID} }), nil
}

// Latest は種別ごとの最新の記録を返す。
func (s *Service) Latest(ctx context.Context, userID string) ([]*model.HealthMetric, error) {
	return s.metricRepo.LatestByType(ctx, userID)
}

// Summary は種別の期間集計を返す。期間未指定時は直近30日。
func (s *Service) Summary(ctx context.Context, userID, metricType string, from, to *time.Time) (*Summary, error) {
	mt, ok := schema.LookupMetricType(metricType)
	if !ok {
		return nil, model.NewFieldError("type", "未対応の種別です")
	}
	end := s.clock.Now().UTC()
	if to != nil {
		end = to.UTC()
	}
	start := end.AddDate(0, 0, -defaultSummaryDays)
	if from != nil {
		start = from.UTC()
	}
	if start.After(end) {
		return nil, model.NewFieldError("from", "開始日は終了日以前を指定してください")
	}

	metrics, err := s.metricRepo.ListRange(ctx, userID, mt.Name, start, end)
	if err != nil {
		return nil, err
	}

	sum := Summarize(mt, metrics)
	sum.From = start
	sum.To = end
	return sum, nil
}

// Summarize はrecorded_at昇順の記録を数値フィールドごとに集計する。
func Summarize(mt *schema.MetricType, metrics []*model.HealthMetric) *Summary {
	sum := &Summary{
		Type:   mt.Name,
		Unit:   mt.Unit,
		Count:  len(metrics),
		Fields: make(map[string]FieldSummary, len(mt.Fields)),
	}
	if len(metrics) == 0 {
		return sum
	}
	sum.Latest = metrics[len(metrics)-1]

	totals := make(map[string]float64, len(mt.Fields))
	for _, m := range metrics {
		var values map[string]float64
		if err := json.Unmarshal(m.Value, &values); err != nil {
			continue
		}
		for _, field := range mt.Fields {
			v, ok := values[field]
			if !ok {
				continue
			}
			fs, seen := sum.Fields[field]
			if !seen {
				fs = FieldSummary{Min: v, Max: v}
			}
			fs.Min = math.Min(fs.Min, v)
			fs.Max = math.Max(fs.Max, v)
			fs.Count++
			totals[field] += v
			sum.Fields[field] = fs
		}
	}
	for field, fs := range sum.Fields {
		fs.Avg = math.Round(totals[field]/float64(fs.Count)*100) / 100
		sum.Fields[field] = fs
	}
	return sum
}

// validateValue は値をスキーマで検証し、空白を除いた正規形を返す。
func validateValue(mt *schema.MetricType, value json.RawMessage) (json.RawMessage, error) {
	if len(bytes.TrimSpace(value)) == 0 {
		return nil, model.NewFieldError("value", "値を入力してください")
	}
	violations, err := mt.Validate(value)
	if err != nil {
		return nil, model.NewFieldError("value", "JSONとして解釈できません")
	}
	if len(violations) > 0 {
		return nil, model.NewValidationError(schema.FieldErrors("value", violations))
	}

	var buf bytes.Buffer
	if err := json.Compact(&buf, value); err != nil {
		return nil, model.NewFieldError("value", "JSONとして解釈できません")
	}
	return buf.Bytes(), nil
}
