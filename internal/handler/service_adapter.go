package handler

import (
	"context"
	"fmt"

	"github.com/hitoshi/fastrack/internal/foodai"
	"github.com/hitoshi/fastrack/internal/meal"
	"github.com/hitoshi/fastrack/internal/model"
)

// UserFinder はユーザーIDでユーザーを取得するインターフェース。auth.Service が実装する。
type UserFinder interface {
	GetUser(ctx context.Context, userID string) (*model.User, error)
}

// UserWithdrawer は退会処理のインターフェース。user.Service が実装する。
type UserWithdrawer interface {
	Withdraw(ctx context.Context, userID string) error
}

// UserServiceAdapter はユーザー取得と退会処理を UserServiceInterface に適合させるアダプタ。
type UserServiceAdapter struct {
	finder     UserFinder
	withdrawer UserWithdrawer
}

// NewUserServiceAdapter はUserServiceAdapterを生成する。
func NewUserServiceAdapter(finder UserFinder, withdrawer UserWithdrawer) *UserServiceAdapter {
	return &UserServiceAdapter{finder: finder, withdrawer: withdrawer}
}

// GetUser は指定IDのユーザーを取得する。
func (a *UserServiceAdapter) GetUser(ctx context.Context, userID string) (*model.User, error) {
	return a.finder.GetUser(ctx, userID)
}

// Withdraw はユーザーの退会処理を実行する。
func (a *UserServiceAdapter) Withdraw(ctx context.Context, userID string) error {
	return a.withdrawer.Withdraw(ctx, userID)
}

// FoodParser は食事テキストの解析インターフェース。foodai.Parser が実装する。
type FoodParser interface {
	Parse(ctx context.Context, text string) (*foodai.Result, error)
}

// MealCreator は食事記録の作成インターフェース。meal.Service が実装する。
type MealCreator interface {
	Create(ctx context.Context, userID string, in meal.Input) (*model.Meal, error)
}

// FoodParseAdapter は解析器と食事記録を FoodParseServiceInterface に適合させるアダプタ。
type FoodParseAdapter struct {
	parser FoodParser
	meals  MealCreator
}

// NewFoodParseAdapter はFoodParseAdapterを生成する。
func NewFoodParseAdapter(parser FoodParser, meals MealCreator) *FoodParseAdapter {
	return &FoodParseAdapter{parser: parser, meals: meals}
}

// Parse はテキストを解析し、指定があれば解析結果を source=ai の食事として保存する。
// 食事の保存に失敗した場合は解析結果を返さない。
func (a *FoodParseAdapter) Parse(ctx context.Context, userID string, in FoodParseInput) (*foodai.Result, *model.Meal, error) {
	if in.SaveAsMeal && !in.MealType.Valid() {
		return nil, nil, model.NewFieldError("meal_type", "breakfast, lunch, dinner, snack のいずれかを指定してください")
	}

	result, err := a.parser.Parse(ctx, in.Text)
	if err != nil {
		return nil, nil, err
	}
	if !in.SaveAsMeal {
		return result, nil, nil
	}

	items := make([]meal.ItemInput, len(result.Items))
	for i, it := range result.Items {
		items[i] = meal.ItemInput{
			Name:      it.Name,
			Quantity:  it.Quantity,
			Unit:      it.Unit,
			Nutrition: it.Nutrition,
		}
	}
	saved, err := a.meals.Create(ctx, userID, meal.Input{
		MealType: in.MealType,
		Notes:    in.Text,
		Source:   model.MealSourceAI,
		Items:    items,
	})
	if err != nil {
		return nil, nil, fmt.Errorf("解析結果の保存に失敗しました: %w", err)
	}
	return result, saved, nil
}
