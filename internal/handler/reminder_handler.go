package handler

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/hitoshi/fastrack/internal/model"
	"github.com/hitoshi/fastrack/internal/reminder"
)

// ReminderServiceInterface はリマインダーハンドラーが必要とするサービスインターフェース。
type ReminderServiceInterface interface {
	Create(ctx context.Context, userID string, in reminder.Input) (*model.Reminder, error)
	Get(ctx context.Context, userID, id string) (*model.Reminder, error)
	Update(ctx context.Context, userID, id string, in reminder.Input) (*model.Reminder, error)
	Delete(ctx context.Context, userID, id string) error
	List(ctx context.Context, userID string, in reminder.ListInput) ([]*model.Reminder, error)
}

// ReminderHandler はリマインダーのHTTPハンドラー。
type ReminderHandler struct {
	service ReminderServiceInterface
}

// NewReminderHandler はReminderHandlerを生成する。
func NewReminderHandler(service ReminderServiceInterface) *ReminderHandler {
	return &ReminderHandler{service: service}
}

// reminderRequest はリマインダーの作成・更新リクエストのボディ。
type reminderRequest struct {
	ScheduledFastID *string             `json:"scheduled_fast_id"`
	Kind            *model.ReminderKind `json:"kind"`
	Message         *string             `json:"message"`
	RemindAt        *time.Time          `json:"remind_at"`
	Channel         *string             `json:"channel"`
	WebhookURL      *string             `json:"webhook_url"`
	Enabled         *bool               `json:"enabled"`
}

func (req reminderRequest) toInput() reminder.Input {
	return reminder.Input{
		ScheduledFastID: req.ScheduledFastID,
		Kind:            req.Kind,
		Message:         req.Message,
		RemindAt:        req.RemindAt,
		Channel:         req.Channel,
		WebhookURL:      req.WebhookURL,
		Enabled:         req.Enabled,
	}
}

// reminderResponse はリマインダーのAPIレスポンス。
type reminderResponse struct {
	ID              string     `json:"id"`
	ScheduledFastID *string    `json:"scheduled_fast_id"`
	Kind            string     `json:"kind"`
	Message         string     `json:"message"`
	RemindAt        time.Time  `json:"remind_at"`
	Channel         string     `json:"channel"`
	WebhookURL      string     `json:"webhook_url,omitempty"`
	Enabled         bool       `json:"enabled"`
	SentAt          *time.Time `json:"sent_at"`
	LastError       string     `json:"last_error,omitempty"`
}

func toReminderResponse(rem *model.Reminder) reminderResponse {
	return reminderResponse{
		ID:              rem.ID,
		ScheduledFastID: rem.ScheduledFastID,
		Kind:            string(rem.Kind),
		Message:         rem.Message,
		RemindAt:        rem.RemindAt,
		Channel:         rem.Channel,
		WebhookURL:      rem.WebhookURL,
		Enabled:         rem.Enabled,
		SentAt:          rem.SentAt,
		LastError:       rem.LastError,
	}
}

// Create はリマインダーを作成する。
// POST /api/reminders
func (h *ReminderHandler) Create(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUserID(w, r)
	if !ok {
		return
	}

	var req reminderRequest
	if err := decodeJSON(r, &req); err != nil {
		handleServiceError(w, err)
		return
	}

	rem, err := h.service.Create(r.Context(), userID, req.toInput())
	if err != nil {
		handleServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, toReminderResponse(rem))
}

// List はリマインダーをremind_at昇順で返す。
// GET /api/reminders?kind=&from=&to=&limit=
func (h *ReminderHandler) List(w http.ResponseWriter, r *http.Request) {
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

	reminders, err := h.service.List(r.Context(), userID, reminder.ListInput{
		Kind:  model.ReminderKind(r.URL.Query().Get("kind")),
		From:  from,
		To:    to,
		Limit: limit,
	})
	if err != nil {
		handleServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, mapSlice(reminders, toReminderResponse))
}

// Get はリマインダーを1件返す。
// GET /api/reminders/{id}
func (h *ReminderHandler) Get(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUserID(w, r)
	if !ok {
		return
	}

	rem, err := h.service.Get(r.Context(), userID, chi.URLParam(r, "id"))
	if err != nil {
		handleServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toReminderResponse(rem))
}

// Update はリマインダーを部分更新する。
// PATCH /api/reminders/{id}
func (h *ReminderHandler) Update(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUserID(w, r)
	if !ok {
		return
	}

	var req reminderRequest
	if err := decodeJSON(r, &req); err != nil {
		handleServiceError(w, err)
		return
	}

	rem, err := h.service.Update(r.Context(), userID, chi.URLParam(r, "id"), req.toInput())
	if err != nil {
		handleServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toReminderResponse(rem))
}

// Delete はリマインダーを削除する。
// DELETE /api/reminders/{id}
func (h *ReminderHandler) Delete(w http.ResponseWriter, r *http.Request) {
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
