package handler

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/hitoshi/fastrack/internal/fasting"
	"github.com/hitoshi/fastrack/internal/model"
	"github.com/hitoshi/fastrack/internal/schedule"
)

// ScheduleServiceInterface は予定ハンドラーが必要とするサービスインターフェース。
type ScheduleServiceInterface interface {
	Create(ctx context.Context, userID string, in schedule.Input) (*model.ScheduledFast, error)
	Get(ctx context.Context, userID, id string) (*model.ScheduledFast, error)
	Update(ctx context.Context, userID, id string, in schedule.Input) (*model.ScheduledFast, error)
	Delete(ctx context.Context, userID, id string) error
	List(ctx context.Context, userID string, in schedule.ListInput) ([]*model.ScheduledFast, error)
	Generate(ctx context.Context, userID, id string) (int, error)
	StartScheduled(ctx context.Context, userID, id string) (*model.ScheduledFast, *fasting.Fast, error)
	Skip(ctx context.Context, userID, id string) (*model.ScheduledFast, error)
}

// ScheduleHandler は予定ファスティングのHTTPハンドラー。
type ScheduleHandler struct {
	service ScheduleServiceInterface
}

// NewScheduleHandler はScheduleHandlerを生成する。
func NewScheduleHandler(service ScheduleServiceInterface) *ScheduleHandler {
	return &ScheduleHandler{service: service}
}

// scheduleRequest は予定の作成・更新リクエストのボディ。
type scheduleRequest struct {
	Title         *string           `json:"title"`
	StartAt       *time.Time        `json:"start_at"`
	TargetHours   *float64          `json:"target_hours"`
	Recurrence    *model.Recurrence `json:"recurrence"`
	Weekdays      []int             `json:"weekdays"`
	RecurrenceEnd *time.Time        `json:"recurrence_end"`
}

func (req scheduleRequest) toInput() schedule.Input {
	return schedule.Input{
		Title:         req.Title,
		StartAt:       req.StartAt,
		TargetHours:   req.TargetHours,
		Recurrence:    req.Recurrence,
		Weekdays:      req.Weekdays,
		RecurrenceEnd: req.RecurrenceEnd,
	}
}

// scheduleResponse は予定のAPIレスポンス。
type scheduleResponse struct {
	ID               string     `json:"id"`
	Title            string     `json:"title"`
	StartAt          time.Time  `json:"start_at"`
	TargetHours      float64    `json:"target_hours"`
	Recurrence       string     `json:"recurrence"`
	Weekdays         []int      `json:"weekdays"`
	RecurrenceEnd    *time.Time `json:"recurrence_end"`
	ParentID         *string    `json:"parent_id"`
	Status           string     `json:"status"`
	FastingSessionID *string    `json:"fasting_session_id"`
	IsSeries         bool       `json:"is_series"`
}

func toScheduleResponse(s *model.ScheduledFast) scheduleResponse {
	weekdays := s.Weekdays
	if weekdays == nil {
		weekdays = []int{}
	}
	return scheduleResponse{
		ID:               s.ID,
		Title:            s.Title,
		StartAt:          s.StartAt,
		TargetHours:      s.TargetHours,
		Recurrence:       string(s.Recurrence),
		Weekdays:         weekdays,
		RecurrenceEnd:    s.RecurrenceEnd,
		ParentID:         s.ParentID,
		Status:           string(s.Status),
		FastingSessionID: s.FastingSessionID,
		IsSeries:         s.IsSeries(),
	}
}

// startScheduleResponse は予定からファスティングを開始した結果。
type startScheduleResponse struct {
	Schedule scheduleResponse `json:"schedule"`
	Fast     fastResponse     `json:"fast"`
}

// Create は予定を作成する。繰り返しの場合は生成期間分のインスタンスも作成される。
// POST /api/schedules
func (h *ScheduleHandler) Create(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUserID(w, r)
	if !ok {
		return
	}

	var req scheduleRequest
	if err := decodeJSON(r, &req); err != nil {
		handleServiceError(w, err)
		return
	}

	s, err := h.service.Create(r.Context(), userID, req.toInput())
	if err != nil {
		handleServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, toScheduleResponse(s))
}

// List は期間内の予定をstart_at昇順で返す。
// GET /api/schedules?status=&from=&to=&limit=
func (h *ScheduleHandler) List(w http.ResponseWriter, r *http.Request) {
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

	schedules, err := h.service.List(r.Context(), userID, schedule.ListInput{
		Status: model.ScheduleStatus(r.URL.Query().Get("status")),
		From:   from,
		To:     to,
		Limit:  limit,
	})
	if err != nil {
		handleServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, mapSlice(schedules, toScheduleResponse))
}

// Get は予定を1件返す。
// GET /api/schedules/{id}
func (h *ScheduleHandler) Get(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUserID(w, r)
	if !ok {
		return
	}

	s, err := h.service.Get(r.Context(), userID, chi.URLParam(r, "id"))
	if err != nil {
		handleServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toScheduleResponse(s))
}

// Update は予定を部分更新する。
// PATCH /api/schedules/{id}
func (h *ScheduleHandler) Update(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUserID(w, r)
	if !ok {
		return
	}

	var req scheduleRequest
	if err := decodeJSON(r, &req); err != nil {
		handleServiceError(w, err)
		return
	}

	s, err := h.service.Update(r.Context(), userID, chi.URLParam(r, "id"), req.toInput())
	if err != nil {
		handleServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toScheduleResponse(s))
}

// Delete は予定を削除する。シリーズの場合は生成済みインスタンスも削除される。
// DELETE /api/schedules/{id}
func (h *ScheduleHandler) Delete(w http.ResponseWriter, r *http.Request) {
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

// Generate はシリーズのインスタンスを生成期間分作成し、作成件数を返す。
// POST /api/schedules/{id}/generate
func (h *ScheduleHandler) Generate(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUserID(w, r)
	if !ok {
		return
	}

	created, err := h.service.Generate(r.Context(), userID, chi.URLParam(r, "id"))
	if err != nil {
		handleServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]int{"created": created})
}

// Start は予定からファスティングを開始する。
// POST /api/schedules/{id}/start
func (h *ScheduleHandler) Start(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUserID(w, r)
	if !ok {
		return
	}

	s, f, err := h.service.StartScheduled(r.Context(), userID, chi.URLParam(r, "id"))
	if err != nil {
		handleServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, startScheduleResponse{
		Schedule: toScheduleResponse(s),
		Fast:     toFastResponse(f),
	})
}

// Skip は予定をスキップする。
// POST /api/schedules/{id}/skip
func (h *ScheduleHandler) Skip(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUserID(w, r)
	if !ok {
		return
	}

	s, err := h.service.Skip(r.Context(), userID, chi.URLParam(r, "id"))
	if err != nil {
		handleServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toScheduleResponse(s))
}
