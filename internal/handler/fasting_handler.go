package handler

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/hitoshi/fastrack/internal/fasting"
	"github.com/hitoshi/fastrack/internal/model"
)

// FastingServiceInterface はファスティングハンドラーが必要とするサービスインターフェース。
type FastingServiceInterface interface {
	Start(ctx context.Context, userID string, in fasting.StartInput) (*fasting.Fast, error)
	End(ctx context.Context, userID, id string, endedAt *time.Time) (*fasting.Fast, error)
	Cancel(ctx context.Context, userID, id string) (*fasting.Fast, error)
	Update(ctx context.Context, userID, id string, in fasting.UpdateInput) (*fasting.Fast, error)
	Get(ctx context.Context, userID, id string) (*fasting.Fast, error)
	Delete(ctx context.Context, userID, id string) error
	Active(ctx context.Context, userID string) (*fasting.Fast, error)
	List(ctx context.Context, userID string, in fasting.ListInput) (model.Page[*fasting.Fast], error)
	Stats(ctx context.Context, userID string, from, to *time.Time) (*fasting.Stats, error)
}

// FastingHandler はファスティングのHTTPハンドラー。
type FastingHandler struct {
	service FastingServiceInterface
}

// NewFastingHandler はFastingHandlerを生成する。
func NewFastingHandler(service FastingServiceInterface) *FastingHandler {
	return &FastingHandler{service: service}
}

// startFastRequest はファスティング開始リクエストのボディ。
type startFastRequest struct {
	TargetHours     *float64   `json:"target_hours"`
	FastingType     string     `json:"fasting_type"`
	StartedAt       *time.Time `json:"started_at"`
	Notes           string     `json:"notes"`
	ScheduledFastID *string    `json:"scheduled_fast_id"`
}

// endFastRequest はファスティング終了リクエストのボディ。ボディは省略できる。
type endFastRequest struct {
	EndedAt *time.Time `json:"ended_at"`
}

// updateFastRequest はファスティング履歴修正リクエストのボディ。
type updateFastRequest struct {
	StartedAt   *time.Time `json:"started_at"`
	EndedAt     *time.Time `json:"ended_at"`
	TargetHours *float64   `json:"target_hours"`
	FastingType *string    `json:"fasting_type"`
	Notes       *string    `json:"notes"`
}

// fastResponse はファスティングのAPIレスポンス。
type fastResponse struct {
	ID              string     `json:"id"`
	StartedAt       time.Time  `json:"started_at"`
	EndedAt         *time.Time `json:"ended_at"`
	TargetHours     float64    `json:"target_hours"`
	FastingType     string     `json:"fasting_type"`
	Status          string     `json:"status"`
	Notes           string     `json:"notes"`
	ScheduledFastID *string    `json:"scheduled_fast_id"`
	ElapsedHours    float64    `json:"elapsed_hours"`
	ProgressPct     float64    `json:"progress_pct"`
	GoalReached     bool       `json:"goal_reached"`
}

func toFastResponse(f *fasting.Fast) fastResponse {
	return fastResponse{
		ID:              f.ID,
		StartedAt:       f.StartedAt,
		EndedAt:         f.EndedAt,
		TargetHours:     f.TargetHours,
		FastingType:     f.FastingType,
		Status:          string(f.Status),
		Notes:           f.Notes,
		ScheduledFastID: f.ScheduledFastID,
		ElapsedHours:    f.ElapsedHours,
		ProgressPct:     f.ProgressPct,
		GoalReached:     f.GoalReached,
	}
}

// fastStatsResponse はファスティング統計のAPIレスポンス。
type fastStatsResponse struct {
	TotalFasts       int     `json:"total_fasts"`
	TotalHours       float64 `json:"total_hours"`
	AverageHours     float64 `json:"average_hours"`
	LongestHours     float64 `json:"longest_hours"`
	GoalReachedCount int     `json:"goal_reached_count"`
	CompletionRate   float64 `json:"completion_rate"`
	CurrentStreak    int     `json:"current_streak"`
	LongestStreak    int     `json:"longest_streak"`
}

func toFastStatsResponse(s *fasting.Stats) fastStatsResponse {
	return fastStatsResponse{
		TotalFasts:       s.TotalFasts,
		TotalHours:       s.TotalHours,
		AverageHours:     s.AverageHours,
		LongestHours:     s.LongestHours,
		GoalReachedCount: s.GoalReachedCount,
		CompletionRate:   s.CompletionRate,
		CurrentStreak:    s.CurrentStreak,
		LongestStreak:    s.LongestStreak,
	}
}

// Start はファスティングを開始する。
// POST /api/fasts
func (h *FastingHandler) Start(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUserID(w, r)
	if !ok {
		return
	}

	var req startFastRequest
	if err := decodeJSON(r, &req); err != nil {
		handleServiceError(w, err)
		return
	}

	f, err := h.service.Start(r.Context(), userID, fasting.StartInput{
		TargetHours:     req.TargetHours,
		FastingType:     req.FastingType,
		StartedAt:       req.StartedAt,
		Notes:           req.Notes,
		ScheduledFastID: req.ScheduledFastID,
	})
	if err != nil {
		handleServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, toFastResponse(f))
}

// List はファスティング履歴をstarted_at降順で返す。
// GET /api/fasts?status=&cursor=&limit=
func (h *FastingHandler) List(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUserID(w, r)
	if !ok {
		return
	}

	limit, err := queryInt(r, "limit", 0)
	if err != nil {
		handleServiceError(w, err)
		return
	}

	q := r.URL.Query()
	page, err := h.service.List(r.Context(), userID, fasting.ListInput{
		Status: model.FastStatus(q.Get("status")),
		Cursor: q.Get("cursor"),
		Limit:  limit,
	})
	if err != nil {
		handleServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toPageResponse(page, toFastResponse))
}

// Active は進行中のファスティングを返す。
// GET /api/fasts/active
func (h *FastingHandler) Active(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUserID(w, r)
	if !ok {
		return
	}

	f, err := h.service.Active(r.Context(), userID)
	if err != nil {
		handleServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toFastResponse(f))
}

// Stats は完了済みファスティングの統計を返す。
// GET /api/fasts/stats?from=&to=
func (h *FastingHandler) Stats(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUserID(w, r)
	if !ok {
		return
	}

	from, to, err := queryRange(r)
	if err != nil {
		handleServiceError(w, err)
		return
	}

	stats, err := h.service.Stats(r.Context(), userID, from, to)
	if err != nil {
		handleServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toFastStatsResponse(stats))
}

// Get はファスティングを1件返す。
// GET /api/fasts/{id}
func (h *FastingHandler) Get(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUserID(w, r)
	if !ok {
		return
	}

	f, err := h.service.Get(r.Context(), userID, chi.URLParam(r, "id"))
	if err != nil {
		handleServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toFastResponse(f))
}

// Update はファスティング履歴を修正する。
// PATCH /api/fasts/{id}
func (h *FastingHandler) Update(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUserID(w, r)
	if !ok {
		return
	}

	var req updateFastRequest
	if err := decodeJSON(r, &req); err != nil {
		handleServiceError(w, err)
		return
	}

	f, err := h.service.Update(r.Context(), userID, chi.URLParam(r, "id"), fasting.UpdateInput{
		StartedAt:   req.StartedAt,
		EndedAt:     req.EndedAt,
		TargetHours: req.TargetHours,
		FastingType: req.FastingType,
		Notes:       req.Notes,
	})
	if err != nil {
		handleServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toFastResponse(f))
}

// Delete はファスティングを削除する。
// DELETE /api/fasts/{id}
func (h *FastingHandler) Delete(w http.ResponseWriter, r *http.Request) {
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

// End は進行中のファスティングを終了する。
// POST /api/fasts/{id}/end
func (h *FastingHandler) End(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUserID(w, r)
	if !ok {
		return
	}

	var req endFastRequest
	if err := decodeOptionalJSON(r, &req); err != nil {
		handleServiceError(w, err)
		return
	}

	f, err := h.service.End(r.Context(), userID, chi.URLParam(r, "id"), req.EndedAt)
	if err != nil {
		handleServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toFastResponse(f))
}

// Cancel は進行中のファスティングをキャンセルする。
// POST /api/fasts/{id}/cancel
func (h *FastingHandler) Cancel(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUserID(w, r)
	if !ok {
		return
	}

	f, err := h.service.Cancel(r.Context(), userID, chi.URLParam(r, "id"))
	if err != nil {
		handleServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toFastResponse(f))
}
