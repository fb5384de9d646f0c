package handler

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/hitoshi/fastrack/internal/model"
	"github.com/hitoshi/fastrack/internal/weight"
)

// WeightServiceInterface は体重ハンドラーが必要とするサービスインターフェース。
type WeightServiceInterface interface {
	Create(ctx context.Context, userID string, in weight.Input) (*model.WeightRecord, error)
	Get(ctx context.Context, userID, id string) (*model.WeightRecord, error)
	Update(ctx context.Context, userID, id string, in weight.Input) (*model.WeightRecord, error)
	Delete(ctx context.Context, userID, id string) error
	List(ctx context.Context, userID string, in weight.ListInput) (model.Page[*model.WeightRecord], error)
	Trend(ctx context.Context, userID string, from, to *time.Time) (*weight.Trend, error)
}

// WeightHandler は体重記録のHTTPハンドラー。
type WeightHandler struct {
	service WeightServiceInterface
}

// NewWeightHandler はWeightHandlerを生成する。
func NewWeightHandler(service WeightServiceInterface) *WeightHandler {
	return &WeightHandler{service: service}
}

// weightRequest は体重記録の作成・更新リクエストのボディ。
type weightRequest struct {
	WeightKg   *float64   `json:"weight_kg"`
	BodyFatPct *float64   `json:"body_fat_pct"`
	RecordedAt *time.Time `json:"recorded_at"`
	Notes      *string    `json:"notes"`
}

func (req weightRequest) toInput() weight.Input {
	return weight.Input{
		WeightKg:   req.WeightKg,
		BodyFatPct: req.BodyFatPct,
		RecordedAt: req.RecordedAt,
		Notes:      req.Notes,
	}
}

// weightResponse は体重記録のAPIレスポンス。
type weightResponse struct {
	ID         string    `json:"id"`
	WeightKg   float64   `json:"weight_kg"`
	BodyFatPct *float64  `json:"body_fat_pct"`
	RecordedAt time.Time `json:"recorded_at"`
	Notes      string    `json:"notes"`
}

func toWeightResponse(rec *model.WeightRecord) weightResponse {
	return weightResponse{
		ID:         rec.ID,
		WeightKg:   rec.WeightKg,
		BodyFatPct: rec.BodyFatPct,
		RecordedAt: rec.RecordedAt,
		Notes:      rec.Notes,
	}
}

// trendPointResponse は推移グラフの1点。
type trendPointResponse struct {
	RecordedAt    time.Time `json:"recorded_at"`
	WeightKg      float64   `json:"weight_kg"`
	MovingAverage float64   `json:"moving_average"`
}

// weightTrendResponse は体重推移のAPIレスポンス。
type weightTrendResponse struct {
	From              time.Time            `json:"from"`
	To                time.Time            `json:"to"`
	Count             int                  `json:"count"`
	First             *weightResponse      `json:"first"`
	Latest            *weightResponse      `json:"latest"`
	ChangeKg          float64              `json:"change_kg"`
	MinKg             float64              `json:"min_kg"`
	MaxKg             float64              `json:"max_kg"`
	Points            []trendPointResponse `json:"points"`
	BMI               *float64             `json:"bmi"`
	TargetWeightKg    *float64             `json:"target_weight_kg"`
	RemainingToTarget *float64             `json:"remaining_to_target"`
}

func toWeightTrendResponse(t *weight.Trend) weightTrendResponse {
	resp := weightTrendResponse{
		From:              t.From,
		To:                t.To,
		Count:             t.Count,
		ChangeKg:          t.ChangeKg,
		MinKg:             t.MinKg,
		MaxKg:             t.MaxKg,
		BMI:               t.BMI,
		TargetWeightKg:    t.TargetWeightKg,
		RemainingToTarget: t.RemainingToTarget,
		Points: mapSlice(t.Points, func(p weight.TrendPoint) trendPointResponse {
			return trendPointResponse{RecordedAt: p.RecordedAt, WeightKg: p.WeightKg, MovingAverage: p.MovingAverage}
		}),
	}
	if t.First != nil {
		first := toWeightResponse(t.First)
		resp.First = &first
	}
	if t.Latest != nil {
		latest := toWeightResponse(t.Latest)
		resp.Latest = &latest
	}
	return resp
}

// Create は体重を記録する。
// POST /api/weights
func (h *WeightHandler) Create(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUserID(w, r)
	if !ok {
		return
	}

	var req weightRequest
	if err := decodeJSON(r, &req); err != nil {
		handleServiceError(w, err)
		return
	}

	rec, err := h.service.Create(r.Context(), userID, req.toInput())
	if err != nil {
		handleServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, toWeightResponse(rec))
}

// List は体重記録をrecorded_at降順で返す。
// GET /api/weights?from=&to=&cursor=&limit=
func (h *WeightHandler) List(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUserID(w, r)
	if !ok {
		return
	}

	from, to, err := queryRange(r)
	if err != nil {
		handleServiceError(w, err)
		return
	}
	limit, err := queryInt(r, "limit", 0)
	if err != nil {
		handleServiceError(w, err)
		return
	}

	page, err := h.service.List(r.Context(), userID, weight.ListInput{
		From:   from,
		To:     to,
		Cursor: r.URL.Query().Get("cursor"),
		Limit:  limit,
	})
	if err != nil {
		handleServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toPageResponse(page, toWeightResponse))
}

// Trend は期間内の体重推移を返す。
// GET /api/weights/trend?from=&to=
func (h *WeightHandler) Trend(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUserID(w, r)
	if !ok {
		return
	}

	from, to, err := queryRange(r)
	if err != nil {
		handleServiceError(w, err)
		return
	}

	trend, err := h.service.Trend(r.Context(), userID, from, to)
	if err != nil {
		handleServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toWeightTrendResponse(trend))
}

// Get は体重記録を1件返す。
// GET /api/weights/{id}
func (h *WeightHandler) Get(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUserID(w, r)
	if !ok {
		return
	}

	rec, err := h.service.Get(r.Context(), userID, chi.URLParam(r, "id"))
	if err != nil {
		handleServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toWeightResponse(rec))
}

// Update は体重記録を部分更新する。
// PATCH /api/weights/{id}
func (h *WeightHandler) Update(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUserID(w, r)
	if !ok {
		return
	}

	var req weightRequest
	if err := decodeJSON(r, &req); err != nil {
		handleServiceError(w, err)
		return
	}

	rec, err := h.service.Update(r.Context(), userID, chi.URLParam(r, "id"), req.toInput())
	if err != nil {
		handleServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toWeightResponse(rec))
}

// Delete は体重記録を削除する。
// DELETE /api/weights/{id}
func (h *WeightHandler) Delete(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUserID(w, r)
	if !ok {
		return
	}

	if err := h.service.Delete(r.Context(), userID, chi.URLParam(r, "id")); err != nil {
		handleServiceError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
