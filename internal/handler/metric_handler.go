package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/hitoshi/fastrack/internal/healthmetric"
	"github.com/hitoshi/fastrack/internal/model"
)

// MetricServiceInterface は健康指標ハンドラーが必要とするサービスインターフェース。
type MetricServiceInterface interface {
	Create(ctx context.Context, userID string, in healthmetric.CreateInput) (*model.HealthMetric, error)
	Get(ctx context.Context, userID, id string) (*model.HealthMetric, error)
	Update(ctx context.Context, userID, id string, in healthmetric.UpdateInput) (*model.HealthMetric, error)
	Delete(ctx context.Context, userID, id string) error
	List(ctx context.Context, userID string, in healthmetric.ListInput) (model.Page[*model.HealthMetric], error)
	Summary(ctx context.Context, userID, metricType string, from, to *time.Time) (*healthmetric.Summary, error)
}

// MetricHandler は健康指標のHTTPハンドラー。
type MetricHandler struct {
	service MetricServiceInterface
}

// NewMetricHandler はMetricHandlerを生成する。
func NewMetricHandler(service MetricServiceInterface) *MetricHandler {
	return &MetricHandler{service: service}
}

// createMetricRequest は健康指標記録リクエストのボディ。
type createMetricRequest struct {
	Type       string          `json:"type"`
	Value      json.RawMessage `json:"value"`
	RecordedAt *time.Time      `json:"recorded_at"`
	Notes      string          `json:"notes"`
}

// updateMetricRequest は健康指標更新リクエストのボディ。
type updateMetricRequest struct {
	Value      json.RawMessage `json:"value"`
	RecordedAt *time.Time      `json:"recorded_at"`
	Notes      *string         `json:"notes"`
}

// metricResponse は健康指標のAPIレスポンス。
type metricResponse struct {
	ID         string          `json:"id"`
	Type       string          `json:"type"`
	Value      json.RawMessage `json:"value"`
	Unit       string          `json:"unit"`
	RecordedAt time.Time       `json:"recorded_at"`
	Notes      string          `json:"notes"`
}

func toMetricResponse(m *model.HealthMetric) metricResponse {
	return metricResponse{
		ID:         m.ID,
		Type:       m.Type,
		Value:      m.Value,
		Unit:       m.Unit,
		RecordedAt: m.RecordedAt,
		Notes:      m.Notes,
	}
}

// fieldSummaryResponse は数値フィールドの集計値。
type fieldSummaryResponse struct {
	Min   float64 `json:"min"`
	Max   float64 `json:"max"`
	Avg   float64 `json:"avg"`
	Count int     `json:"count"`
}

// metricSummaryResponse は健康指標の期間集計のAPIレスポンス。
type metricSummaryResponse struct {
	Type   string                          `json:"type"`
	Unit   string                          `json:"unit"`
	From   time.Time                       `json:"from"`
	To     time.Time                       `json:"to"`
	Count  int                             `json:"count"`
	Latest *metricResponse                 `json:"latest"`
	Fields map[string]fieldSummaryResponse `json:"fields"`
}

func toMetricSummaryResponse(s *healthmetric.Summary) metricSummaryResponse {
	resp := metricSummaryResponse{
		Type:   s.Type,
		Unit:   s.Unit,
		From:   s.From,
		To:     s.To,
		Count:  s.Count,
		Fields: make(map[string]fieldSummaryResponse, len(s.Fields)),
	}
	for name, f := range s.Fields {
		resp.Fields[name] = fieldSummaryResponse{Min: f.Min, Max: f.Max, Avg: f.Avg, Count: f.Count}
	}
	if s.Latest != nil {
		latest := toMetricResponse(s.Latest)
		resp.Latest = &latest
	}
	return resp
}

// Create は健康指標を記録する。
// POST /api/metrics
func (h *MetricHandler) Create(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUserID(w, r)
	if !ok {
		return
	}

	var req createMetricRequest
	if err := decodeJSON(r, &req); err != nil {
		handleServiceError(w, err)
		return
	}

	m, err := h.service.Create(r.Context(), userID, healthmetric.CreateInput{
		Type:       req.Type,
		Value:      req.Value,
		RecordedAt: req.RecordedAt,
		Notes:      req.Notes,
	})
	if err != nil {
		handleServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, toMetricResponse(m))
}

// List は健康指標をrecorded_at降順で返す。
// GET /api/metrics?type=&from=&to=&cursor=&limit=
func (h *MetricHandler) List(w http.ResponseWriter, r *http.Request) {
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

	q := r.URL.Query()
	page, err := h.service.List(r.Context(), userID, healthmetric.ListInput{
		Type:   q.Get("type"),
		From:   from,
		To:     to,
		Cursor: q.Get("cursor"),
		Limit:  limit,
	})
	if err != nil {
		handleServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toPageResponse(page, toMetricResponse))
}

// Summary は指定種別の期間集計を返す。
// GET /api/metrics/summary?type=&from=&to=
func (h *MetricHandler) Summary(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUserID(w, r)
	if !ok {
		return
	}

	from, to, err := queryRange(r)
	if err != nil {
		handleServiceError(w, err)
		return
	}

	summary, err := h.service.Summary(r.Context(), userID, r.URL.Query().Get("type"), from, to)
	if err != nil {
		handleServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toMetricSummaryResponse(summary))
}

// Get は健康指標を1件返す。
// GET /api/metrics/{id}
func (h *MetricHandler) Get(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUserID(w, r)
	if !ok {
		return
	}

	m, err := h.service.Get(r.Context(), userID, chi.URLParam(r, "id"))
	if err != nil {
		handleServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toMetricResponse(m))
}

// Update は健康指標を部分更新する。
// PATCH /api/metrics/{id}
func (h *MetricHandler) Update(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUserID(w, r)
	if !ok {
		return
	}

	var req updateMetricRequest
	if err := decodeJSON(r, &req); err != nil {
		handleServiceError(w, err)
		return
	}

	m, err := h.service.Update(r.Context(), userID, chi.URLParam(r, "id"), healthmetric.UpdateInput{
		Value:      req.Value,
		RecordedAt: req.RecordedAt,
		Notes:      req.Notes,
	})
	if err != nil {
		handleServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toMetricResponse(m))
}

// Delete は健康指標を削除する。
// DELETE /api/metrics/{id}
func (h *MetricHandler) Delete(w http.ResponseWriter, r *http.Request) {
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
