package handler

import (
	"context"
	"net/http"
	"time"

	"github.com/hitoshi/fastrack/internal/model"
	"github.com/hitoshi/fastrack/internal/profile"
)

// ProfileServiceInterface はプロフィールハンドラーが必要とするサービスインターフェース。
type ProfileServiceInterface interface {
	Get(ctx context.Context, userID string) (*model.Profile, error)
	Update(ctx context.Context, userID string, in profile.UpdateInput) (*model.Profile, error)
}

// ProfileHandler はプロフィールのHTTPハンドラー。
type ProfileHandler struct {
	service ProfileServiceInterface
}

// NewProfileHandler はProfileHandlerを生成する。
func NewProfileHandler(service ProfileServiceInterface) *ProfileHandler {
	return &ProfileHandler{service: service}
}

// updateProfileRequest はプロフィール更新リクエストのボディ。
// birth_date はYYYY-MM-DD形式。
type updateProfileRequest struct {
	DisplayName      *string  `json:"display_name"`
	HeightCm         *float64 `json:"height_cm"`
	BirthDate        *string  `json:"birth_date"`
	Sex              *string  `json:"sex"`
	TargetWeightKg   *float64 `json:"target_weight_kg"`
	DefaultFastHours *float64 `json:"default_fast_hours"`
	Timezone         *string  `json:"timezone"`
}

// profileResponse はプロフィールのAPIレスポンス。
type profileResponse struct {
	DisplayName      string   `json:"display_name"`
	HeightCm         *float64 `json:"height_cm"`
	BirthDate        *string  `json:"birth_date"`
	Sex              string   `json:"sex"`
	TargetWeightKg   *float64 `json:"target_weight_kg"`
	DefaultFastHours float64  `json:"default_fast_hours"`
	Timezone         string   `json:"timezone"`
}

func toProfileResponse(p *model.Profile) profileResponse {
	resp := profileResponse{
		DisplayName:      p.DisplayName,
		HeightCm:         p.HeightCm,
		Sex:              p.Sex,
		TargetWeightKg:   p.TargetWeightKg,
		DefaultFastHours: p.DefaultFastHours,
		Timezone:         p.Timezone,
	}
	if p.BirthDate != nil {
		d := p.BirthDate.Format("2006-01-02")
		resp.BirthDate = &d
	}
	return resp
}

// Get はプロフィールを返す。未作成の場合は既定値で作成される。
// GET /api/profile
func (h *ProfileHandler) Get(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUserID(w, r)
	if !ok {
		return
	}

	p, err := h.service.Get(r.Context(), userID)
	if err != nil {
		handleServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toProfileResponse(p))
}

// Update はプロフィールを部分更新する。
// PUT /api/profile
func (h *ProfileHandler) Update(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUserID(w, r)
	if !ok {
		return
	}

	var req updateProfileRequest
	if err := decodeJSON(r, &req); err != nil {
		handleServiceError(w, err)
		return
	}

	in := profile.UpdateInput{
		DisplayName:      req.DisplayName,
		HeightCm:         req.HeightCm,
		Sex:              req.Sex,
		TargetWeightKg:   req.TargetWeightKg,
		DefaultFastHours: req.DefaultFastHours,
		Timezone:         req.Timezone,
	}
	if req.BirthDate != nil {
		d, err := time.Parse("2006-01-02", *req.BirthDate)
		if err != nil {
			handleServiceError(w, model.NewFieldError("birth_date", "YYYY-MM-DD形式で指定してください"))
			return
		}
		in.BirthDate = &d
	}

	p, err := h.service.Update(r.Context(), userID, in)
	if err != nil {
		handleServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toProfileResponse(p))
}
