// Package meal は食品ライブラリと食事記録・栄養集計のドメインロジックを提供する。
package meal

import (
	"context"
	"fmt"
	"math"
	"strings"
	"unicode/utf8"

	"github.com/google/uuid"
	"github.com/juju/clock"

	"github.com/hitoshi/fastrack/internal/model"
	"github.com/hitoshi/fastrack/internal/repository"
)

const (
	maxFoodNameLen    = 200
	maxBrandLen       = 200
	maxServingUnitLen = 32
	maxNutrientValue  = 10000
)

// 食品登録時の1食分の既定値
const (
	defaultServingSize = 100.0
	defaultServingUnit = "g"
)

// Sanitizer はユーザー入力のテキストを無害化するインターフェース。
type Sanitizer interface {
	Clean(s string) string
}

// FoodInput は食品の登録・部分更新の入力。nilのフィールドは更新時に変更しない。
type FoodInput struct {
	Name        *string
	Brand       *string
	ServingSize *float64
	ServingUnit *string
	Calories    *float64
	ProteinG    *float64
	CarbsG      *float64
	FatG        *float64
	FiberG      *float64
}

// FoodItemService は食品ライブラリのサービス層。
type FoodItemService struct {
	foodRepo  repository.FoodItemRepository
	sanitizer Sanitizer
	clock     clock.Clock
}

// NewFoodItemService はFoodItemServiceの新しいインスタンスを生成する。
func NewFoodItemService(foodRepo repository.FoodItemRepository, sanitizer Sanitizer, clk clock.Clock) *FoodItemService {
	return &FoodItemService{foodRepo: foodRepo, sanitizer: sanitizer, clock: clk}
}

// Create は食品を登録する。
func (s *FoodItemService) Create(ctx context.Context, userID string, in FoodInput) (*model.FoodItem, error) {
	now := s.clock.Now().UTC()
	f := &model.FoodItem{
		ID:          uuid.New().String(),
		UserID:      userID,
		ServingSize: defaultServingSize,
		ServingUnit: defaultServingUnit,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if in.Name == nil {
		empty := ""
		in.Name = &empty
	}
	s.apply(f, in)
	if err := validateFood(f); err != nil {
		return nil, err
	}

	if err := s.foodRepo.Create(ctx, f); err != nil {
		return nil, err
	}
	return f, nil
}

// Get は指定IDの食品を返す。
func (s *FoodItemService) Get(ctx context.Context, userID, id string) (*model.FoodItem, error) {
	f, err := s.foodRepo.FindByID(ctx, userID, id)
	if err != nil {
		return nil, fmt.Errorf("食品の取得に失敗しました: %w", err)
	}
	if f == nil {
		return nil, model.NewNotFoundError(model.ErrCodeFoodItemNotFound, "食品", id)
	}
	return f, nil
}

// Update は食品を部分更新する。
func (s *FoodItemService) Update(ctx context.Context, userID, id string, in FoodInput) (*model.FoodItem, error) {
	f, err := s.Get(ctx, userID, id)
	if err != nil {
		return nil, err
	}
	s.apply(f, in)
	if err := validateFood(f); err != nil {
		return nil, err
	}
	f.UpdatedAt = s.clock.Now().UTC()

	if err := s.foodRepo.Update(ctx, f); err != nil {
		return nil, err
	}
	return f, nil
}

// Delete は食品を削除する。参照している食事品目のfood_item_idはNULLになる。
func (s *FoodItemService) Delete(ctx context.Context, userID, id string) error {
	ok, err := s.foodRepo.Delete(ctx, userID, id)
	if err != nil {
		return err
	}
	if !ok {
		return model.NewNotFoundError(model.ErrCodeFoodItemNotFound, "食品", id)
	}
	return nil
}

// Search は名前の部分一致で食品を検索する。
func (s *FoodItemService) Search(ctx context.Context, userID, query string, limit, offset int) ([]*model.FoodItem, error) {
	if offset < 0 {
		offset = 0
	}
	foods, err := s.foodRepo.Search(ctx, userID, strings.TrimSpace(query), model.NormalizeLimit(limit), offset)
	if err != nil {
		return nil, err
	}
	if foods == nil {
		foods = []*model.FoodItem{}
	}
	return foods, nil
}

func (s *FoodItemService) apply(f *model.FoodItem, in FoodInput) {
	if in.Name != nil {
		f.Name = s.sanitizer.Clean(*in.Name)
	}
	if in.Brand != nil {
		f.Brand = s.sanitizer.Clean(*in.Brand)
	}
	if in.ServingSize != nil {
		f.ServingSize = *in.ServingSize
	}
	if in.ServingUnit != nil {
		f.ServingUnit = strings.TrimSpace(*in.ServingUnit)
	}
	if in.Calories != nil {
		f.Calories = *in.Calories
	}
	if in.ProteinG != nil {
		f.ProteinG = *in.ProteinG
	}
	if in.CarbsG != nil {
		f.CarbsG = *in.CarbsG
	}
	if in.FatG != nil {
		f.FatG = *in.FatG
	}
	if in.FiberG != nil {
		f.FiberG = *in.FiberG
	}
}

func validateFood(f *model.FoodItem) error {
	errs := model.ValidationErrors{}
	if f.Name == "" {
		errs.Add("name", "食品名を入力してください")
	} else if utf8.RuneCountInString(f.Name) > maxFoodNameLen {
		errs.Add("name", fmt.Sprintf("%d文字以内で入力してください", maxFoodNameLen))
	}
	if utf8.RuneCountInString(f.Brand) > maxBrandLen {
		errs.Add("brand", fmt.Sprintf("%d文字以内で入力してください", maxBrandLen))
	}
	if !isPositiveFinite(f.ServingSize) {
		errs.Add("serving_size", "0より大きい値を入力してください")
	}
	if f.ServingUnit == "" || utf8.RuneCountInString(f.ServingUnit) > maxServingUnitLen {
		errs.Add("serving_unit", fmt.Sprintf("1〜%d文字で入力してください", maxServingUnitLen))
	}
	validateNutrition(errs, "", f.Nutrition)
	return errs.Err()
}

// validateNutrition は栄養素が0以上かつ上限以下であることを検証する。
func validateNutrition(errs model.ValidationErrors, prefix string, n model.Nutrition) {
	check := func(field string, v float64) {
		if math.IsNaN(v) || v < 0 || v > maxNutrientValue {
			errs.Add(prefix+field, fmt.Sprintf("0〜%dの範囲で入力してください", maxNutrientValue))
		}
	}
	check("calories", n.Calories)
	check("protein_g", n.ProteinG)
	check("carbs_g", n.CarbsG)
	check("fat_g", n.FatG)
	check("fiber_g", n.FiberG)
}

// isPositiveFinite はNaN・無限大を除く正の値かを判定する。
func isPositiveFinite(v float64) bool {
	return v > 0 && !math.IsInf(v, 0)
}
