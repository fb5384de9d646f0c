package handler

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/hitoshi/fastrack/internal/meal"
	"github.com/hitoshi/fastrack/internal/model"
)

// MealServiceInterface は食事ハンドラーが必要とするサービスインターフェース。
type MealServiceInterface interface {
	Create(ctx context.Context, userID string, in meal.Input) (*model.Meal, error)
	Get(ctx context.Context, userID, id string) (*model.Meal, error)
	Update(ctx context.Context, userID, id string, in meal.Input) (*model.Meal, error)
	Delete(ctx context.Context, userID, id string) error
	List(ctx context.Context, userID string, in meal.ListInput) (model.Page[*model.Meal], error)
	DailyNutrition(ctx context.Context, userID string, from, to *time.Time) ([]model.DailyNutrition, error)
}

// MealHandler は食事記録のHTTPハンドラー。
type MealHandler struct {
	service MealServiceInterface
}

// NewMealHandler はMealHandlerを生成する。
func NewMealHandler(service MealServiceInterface) *MealHandler {
	return &MealHandler{service: service}
}

// mealItemRequest は食事品目の入力。food_item_id を指定した場合、栄養素は無視される。
type mealItemRequest struct {
	FoodItemID *string `json:"food_item_id"`
	Name       string  `json:"name"`
	Quantity   float64 `json:"quantity"`
	Unit       string  `json:"unit"`
	model.Nutrition
}

// mealRequest は食事の作成・置き換えリクエストのボディ。
type mealRequest struct {
	MealType string            `json:"meal_type"`
	Name     string            `json:"name"`
	EatenAt  *time.Time        `json:"eaten_at"`
	Notes    string            `json:"notes"`
	Items    []mealItemRequest `json:"items"`
}

func (req mealRequest) toInput() meal.Input {
	return meal.Input{
		MealType: model.MealType(req.MealType),
		Name:     req.Name,
		EatenAt:  req.EatenAt,
		Notes:    req.Notes,
		Items: mapSlice(req.Items, func(it mealItemRequest) meal.ItemInput {
			return meal.ItemInput{
				FoodItemID: it.FoodItemID,
				Name:       it.Name,
				Quantity:   it.Quantity,
				Unit:       it.Unit,
				Nutrition:  it.Nutrition,
			}
		}),
	}
}

// mealItemResponse は食事品目のAPIレスポンス。
type mealItemResponse struct {
	ID         string  `json:"id"`
	FoodItemID *string `json:"food_item_id"`
	Name       string  `json:"name"`
	Quantity   float64 `json:"quantity"`
	Unit       string  `json:"unit"`
	model.Nutrition
}

// mealResponse は食事のAPIレスポンス。totals は全品目の合計。
type mealResponse struct {
	ID       string             `json:"id"`
	MealType string             `json:"meal_type"`
	Name     string             `json:"name"`
	EatenAt  time.Time          `json:"eaten_at"`
	Notes    string             `json:"notes"`
	Source   string             `json:"source"`
	Items    []mealItemResponse `json:"items"`
	Totals   model.Nutrition    `json:"totals"`
}

func toMealResponse(m *model.Meal) mealResponse {
	return mealResponse{
		ID:       m.ID,
		MealType: string(m.MealType),
		Name:     m.Name,
		EatenAt:  m.EatenAt,
		Notes:    m.Notes,
		Source:   m.Source,
		Items: mapSlice(m.Items, func(it model.MealItem) mealItemResponse {
			return mealItemResponse{
				ID:         it.ID,
				FoodItemID: it.FoodItemID,
				Name:       it.Name,
				Quantity:   it.Quantity,
				Unit:       it.Unit,
				Nutrition:  it.Nutrition,
			}
		}),
		Totals: m.Totals(),
	}
}

// dailyNutritionResponse は1日分の栄養素合計。
type dailyNutritionResponse struct {
	Date      string `json:"date"`
	MealCount int    `json:"meal_count"`
	model.Nutrition
}

func toDailyNutritionResponse(d model.DailyNutrition) dailyNutritionResponse {
	return dailyNutritionResponse{Date: d.Date, MealCount: d.MealCount, Nutrition: d.Nutrition}
}

// Create は食事を記録する。
// POST /api/meals
func (h *MealHandler) Create(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUserID(w, r)
	if !ok {
		return
	}

	var req mealRequest
	if err := decodeJSON(r, &req); err != nil {
		handleServiceError(w, err)
		return
	}

	m, err := h.service.Create(r.Context(), userID, req.toInput())
	if err != nil {
		handleServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, toMealResponse(m))
}

// List は食事をeaten_at降順で返す。
// GET /api/meals?meal_type=&from=&to=&cursor=&limit=
func (h *MealHandler) List(w http.ResponseWriter, r *http.Request) {
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
	page, err := h.service.List(r.Context(), userID, meal.ListInput{
		MealType: model.MealType(q.Get("meal_type")),
		From:     from,
		To:       to,
		Cursor:   q.Get("cursor"),
		Limit:    limit,
	})
	if err != nil {
		handleServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toPageResponse(page, toMealResponse))
}

// Daily は日別の栄養素合計を返す。
// GET /api/meals/daily?from=&to=
func (h *MealHandler) Daily(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUserID(w, r)
	if !ok {
		return
	}

	from, to, err := queryRange(r)
	if err != nil {
		handleServiceError(w, err)
		return
	}

	days, err := h.service.DailyNutrition(r.Context(), userID, from, to)
	if err != nil {
		handleServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, mapSlice(days, toDailyNutritionResponse))
}

// Get は食事を1件返す。
// GET /api/meals/{id}
func (h *MealHandler) Get(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUserID(w, r)
	if !ok {
		return
	}

	m, err := h.service.Get(r.Context(), userID, chi.URLParam(r, "id"))
	if err != nil {
		handleServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toMealResponse(m))
}

// Update は食事を品目ごと置き換える。
// PUT /api/meals/{id}
func (h *MealHandler) Update(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUserID(w, r)
	if !ok {
		return
	}

	var req mealRequest
	if err := decodeJSON(r, &req); err != nil {
		handleServiceError(w, err)
		return
	}

	m, err := h.service.Update(r.Context(), userID, chi.URLParam(r, "id"), req.toInput())
	if err != nil {
		handleServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toMealResponse(m))
}

// Delete は食事を削除する。
// DELETE /api/meals/{id}
func (h *MealHandler) Delete(w http.ResponseWriter, r *http.Request) {
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
