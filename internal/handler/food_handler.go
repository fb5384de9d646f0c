package handler

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/hitoshi/fastrack/internal/foodai"
	"github.com/hitoshi/fastrack/internal/meal"
	"github.com/hitoshi/fastrack/internal/model"
)

// 食品検索の既定件数と上限
const (
	defaultFoodSearchLimit = 20
	maxFoodSearchLimit     = 100
)

// FoodItemServiceInterface は食品ハンドラーが必要とするサービスインターフェース。
type FoodItemServiceInterface interface {
	Create(ctx context.Context, userID string, in meal.FoodInput) (*model.FoodItem, error)
	Get(ctx context.Context, userID, id string) (*model.FoodItem, error)
	Update(ctx context.Context, userID, id string, in meal.FoodInput) (*model.FoodItem, error)
	Delete(ctx context.Context, userID, id string) error
	Search(ctx context.Context, userID, query string, limit, offset int) ([]*model.FoodItem, error)
}

// FoodParseInput は食事テキスト解析の入力。
type FoodParseInput struct {
	Text       string
	SaveAsMeal bool
	MealType   model.MealType
}

// FoodParseServiceInterface は食事テキスト解析のサービスインターフェース。
// SaveAsMeal が指定された場合は解析結果を食事として保存し、その食事を返す。
type FoodParseServiceInterface interface {
	Parse(ctx context.Context, userID string, in FoodParseInput) (*foodai.Result, *model.Meal, error)
}

// FoodHandler は食品ライブラリと食事テキスト解析のHTTPハンドラー。
type FoodHandler struct {
	service FoodItemServiceInterface
	parser  FoodParseServiceInterface
}

// NewFoodHandler はFoodHandlerを生成する。
func NewFoodHandler(service FoodItemServiceInterface, parser FoodParseServiceInterface) *FoodHandler {
	return &FoodHandler{service: service, parser: parser}
}

// foodRequest は食品の登録・更新リクエストのボディ。
type foodRequest struct {
	Name        *string  `json:"name"`
	Brand       *string  `json:"brand"`
	ServingSize *float64 `json:"serving_size"`
	ServingUnit *string  `json:"serving_unit"`
	Calories    *float64 `json:"calories"`
	ProteinG    *float64 `json:"protein_g"`
	CarbsG      *float64 `json:"carbs_g"`
	FatG        *float64 `json:"fat_g"`
	FiberG      *float64 `json:"fiber_g"`
}

func (req foodRequest) toInput() meal.FoodInput {
	return meal.FoodInput{
		Name:        req.Name,
		Brand:       req.Brand,
		ServingSize: req.ServingSize,
		ServingUnit: req.ServingUnit,
		Calories:    req.Calories,
		ProteinG:    req.ProteinG,
		CarbsG:      req.CarbsG,
		FatG:        req.FatG,
		FiberG:      req.FiberG,
	}
}

// foodResponse は食品のAPIレスポンス。栄養素は1サービング当たり。
type foodResponse struct {
	ID          string  `json:"id"`
	Name        string  `json:"name"`
	Brand       string  `json:"brand"`
	ServingSize float64 `json:"serving_size"`
	ServingUnit string  `json:"serving_unit"`
	model.Nutrition
	CreatedAt time.Time `json:"created_at"`
}

func toFoodResponse(f *model.FoodItem) foodResponse {
	return foodResponse{
		ID:          f.ID,
		Name:        f.Name,
		Brand:       f.Brand,
		ServingSize: f.ServingSize,
		ServingUnit: f.ServingUnit,
		Nutrition:   f.Nutrition,
		CreatedAt:   f.CreatedAt,
	}
}

// parseFoodRequest は食事テキスト解析リクエストのボディ。
type parseFoodRequest struct {
	Text       string `json:"text"`
	SaveAsMeal bool   `json:"save_as_meal"`
	MealType   string `json:"meal_type"`
}

// parsedItemResponse は解析された1品目。
type parsedItemResponse struct {
	Name     string  `json:"name"`
	Quantity float64 `json:"quantity"`
	Unit     string  `json:"unit"`
	model.Nutrition
}

// parseFoodResponse は食事テキスト解析のAPIレスポンス。
type parseFoodResponse struct {
	Items      []parsedItemResponse `json:"items"`
	Totals     model.Nutrition      `json:"totals"`
	Confidence string               `json:"confidence"`
	Source     string               `json:"source"`
	Meal       *mealResponse        `json:"meal,omitempty"`
}

// Create は食品を登録する。
// POST /api/foods
func (h *FoodHandler) Create(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUserID(w, r)
	if !ok {
		return
	}

	var req foodRequest
	if err := decodeJSON(r, &req); err != nil {
		handleServiceError(w, err)
		return
	}

	f, err := h.service.Create(r.Context(), userID, req.toInput())
	if err != nil {
		handleServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, toFoodResponse(f))
}

// Search は食品を名前の部分一致で検索する。
// GET /api/foods?q=&limit=&offset=
func (h *FoodHandler) Search(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUserID(w, r)
	if !ok {
		return
	}

	limit, err := queryInt(r, "limit", defaultFoodSearchLimit)
	if err != nil {
		handleServiceError(w, err)
		return
	}
	if limit == 0 {
		limit = defaultFoodSearchLimit
	}
	if limit > maxFoodSearchLimit {
		limit = maxFoodSearchLimit
	}
	offset, err := queryInt(r, "offset", 0)
	if err != nil {
		handleServiceError(w, err)
		return
	}

	foods, err := h.service.Search(r.Context(), userID, r.URL.Query().Get("q"), limit, offset)
	if err != nil {
		handleServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, mapSlice(foods, toFoodResponse))
}

// Get は食品を1件返す。
// GET /api/foods/{id}
func (h *FoodHandler) Get(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUserID(w, r)
	if !ok {
		return
	}

	f, err := h.service.Get(r.Context(), userID, chi.URLParam(r, "id"))
	if err != nil {
		handleServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toFoodResponse(f))
}

// Update は食品を部分更新する。
// PATCH /api/foods/{id}
func (h *FoodHandler) Update(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUserID(w, r)
	if !ok {
		return
	}

	var req foodRequest
	if err := decodeJSON(r, &req); err != nil {
		handleServiceError(w, err)
		return
	}

	f, err := h.service.Update(r.Context(), userID, chi.URLParam(r, "id"), req.toInput())
	if err != nil {
		handleServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toFoodResponse(f))
}

// Delete は食品を削除する。食事品目からの参照は外れる。
// DELETE /api/foods/{id}
func (h *FoodHandler) Delete(w http.ResponseWriter, r *http.Request) {
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

// Parse は食事の説明文から品目と栄養素を推定する。
// POST /api/foods/parse
func (h *FoodHandler) Parse(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUserID(w, r)
	if !ok {
		return
	}

	var req parseFoodRequest
	if err := decodeJSON(r, &req); err != nil {
		handleServiceError(w, err)
		return
	}

	result, saved, err := h.parser.Parse(r.Context(), userID, FoodParseInput{
		Text:       req.Text,
		SaveAsMeal: req.SaveAsMeal,
		MealType:   model.MealType(req.MealType),
	})
	if err != nil {
		handleServiceError(w, err)
		return
	}

	resp := parseFoodResponse{
		Items: mapSlice(result.Items, func(it foodai.Item) parsedItemResponse {
			return parsedItemResponse{Name: it.Name, Quantity: it.Quantity, Unit: it.Unit, Nutrition: it.Nutrition}
		}),
		Totals:     result.Totals,
		Confidence: result.Confidence,
		Source:     result.Source,
	}
	status := http.StatusOK
	if saved != nil {
		m := toMealResponse(saved)
		resp.Meal = &m
		status = http.StatusCreated
	}
	writeJSON(w, status, resp)
}
