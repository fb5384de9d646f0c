package meal

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"sort"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"
	"github.com/juju/clock"

	"github.com/hitoshi/fastrack/internal/model"
	"github.com/hitoshi/fastrack/internal/repository"
)

const (
	maxMealItems    = 50
	maxMealNameLen  = 200
	maxItemUnitLen  = 32
	maxNutritionDay = 366
	defaultDays     = 7
)

// ProfileProvider はプロフィールの取得インターフェース。
type ProfileProvider interface {
	Get(ctx context.Context, userID string) (*model.Profile, error)
}

// ItemInput は食事品目の入力。
// FoodItemIDを指定した場合、栄養素は食品ライブラリの値を分量で換算する。
type ItemInput struct {
	FoodItemID *string
	Name       string
	Quantity   float64
	Unit       string
	Nutrition  model.Nutrition
}

// Input は食事の作成・置き換えの入力。
type Input struct {
	MealType model.MealType
	Name     string
	EatenAt  *time.Time
	Notes    string
	Source   string
	Items    []ItemInput
}

// ListInput は一覧取得の条件。
type ListInput struct {
	MealType model.MealType
	From     *time.Time
	To       *time.Time
	Cursor   string
	Limit    int
}

// Service は食事記録のサービス層。
type Service struct {
	mealRepo  repository.MealRepository
	foodRepo  repository.FoodItemRepository
	profiles  ProfileProvider
	sanitizer Sanitizer
	clock     clock.Clock
}

// NewService はServiceの新しいインスタンスを生成する。
func NewService(
	mealRepo repository.MealRepository,
	foodRepo repository.FoodItemRepository,
	profiles ProfileProvider,
	sanitizer Sanitizer,
	clk clock.Clock,
) *Service {
	return &Service{
		mealRepo:  mealRepo,
		foodRepo:  foodRepo,
		profiles:  profiles,
		sanitizer: sanitizer,
		clock:     clk,
	}
}

// Create は食事を品目と共に記録する。
func (s *Service) Create(ctx context.Context, userID string, in Input) (*model.Meal, error) {
	now := s.clock.Now().UTC()
	m := &model.Meal{
		ID:        uuid.New().String(),
		UserID:    userID,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := s.build(ctx, userID, m, in, now); err != nil {
		return nil, err
	}

	if err := s.mealRepo.Create(ctx, m); err != nil {
		return nil, err
	}

	slog.Info("食事を記録しました",
		slog.String("user_id", userID),
		slog.String("meal_id", m.ID),
		slog.String("source", m.Source),
		slog.Int("items", len(m.Items)),
	)
	return m, nil
}

// Get は指定IDの食事を品目と共に返す。
func (s *Service) Get(ctx context.Context, userID, id string) (*model.Meal, error) {
	m, err := s.mealRepo.FindByID(ctx, userID, id)
	if err != nil {
		return nil, fmt.Errorf("食事の取得に失敗しました: %w", err)
	}
	if m == nil {
		return nil, model.NewNotFoundError(model.ErrCodeMealNotFound, "食事", id)
	}
	return m, nil
}

// Update は食事を置き換える。品目は全て入れ替える。
func (s *Service) Update(ctx context.Context, userID, id string, in Input) (*model.Meal, error) {
	m, err := s.Get(ctx, userID, id)
	if err != nil {
		return nil, err
	}
	now := s.clock.Now().UTC()
	if in.Source == "" {
		in.Source = m.Source
	}
	if err := s.build(ctx, userID, m, in, now); err != nil {
		return nil, err
	}
	m.UpdatedAt = now

	if err := s.mealRepo.Update(ctx, m); err != nil {
		return nil, err
	}
	return m, nil
}

// Delete は食事を削除する。
func (s *Service) Delete(ctx context.Context, userID, id string) error {
	ok, err := s.mealRepo.Delete(ctx, userID, id)
	if err != nil {
		return err
	}
	if !ok {
		return model.NewNotFoundError(model.ErrCodeMealNotFound, "食事", id)
	}
	return nil
}

// List は食事をeaten_at降順でカーソルページングして返す。
func (s *Service) List(ctx context.Context, userID string, in ListInput) (model.Page[*model.Meal], error) {
	var empty model.Page[*model.Meal]
	if in.MealType != "" && !in.MealType.Valid() {
		return empty, model.NewFieldError("meal_type", "breakfast, lunch, dinner, snack のいずれかを指定してください")
	}
	if in.From != nil && in.To != nil && in.From.After(*in.To) {
		return empty, model.NewFieldError("from", "開始日は終了日以前を指定してください")
	}
	before, err := model.ParseCursor(in.Cursor)
	if err != nil {
		return empty, err
	}
	limit := model.NormalizeLimit(in.Limit)

	meals, err := s.mealRepo.List(ctx, userID, model.RangeFilter{
		Type:   string(in.MealType),
		From:   in.From,
		To:     in.To,
		Before: before,
		Limit:  limit + 1,
	})
	if err != nil {
		return empty, err
	}
	return model.NewPage(meals, limit, func(m *model.Meal) model.Cursor { return model.Cursor{At: m.EatenAt, ID: m.ID} }), nil
}

// DailyNutrition は期間内の日別の栄養合計をプロフィールのタイムゾーンの暦日で返す。
// 食事のない日は含まない。期間未指定時は直近7日。
func (s *Service) DailyNutrition(ctx context.Context, userID string, from, to *time.Time) ([]model.DailyNutrition, error) {
	end := s.clock.Now().UTC()
	if to != nil {
		end = to.UTC()
	}
	start := end.AddDate(0, 0, -defaultDays)
	if from != nil {
		start = from.UTC()
	}
	if start.After(end) {
		return nil, model.NewFieldError("from", "開始日は終了日以前を指定してください")
	}
	if end.Sub(start) > maxNutritionDay*24*time.Hour {
		return nil, model.NewFieldError("to", fmt.Sprintf("期間は%d日以内で指定してください", maxNutritionDay))
	}

	meals, err := s.mealRepo.ListRange(ctx, userID, start, end)
	if err != nil {
		return nil, err
	}
	profile, err := s.profiles.Get(ctx, userID)
	if err != nil {
		return nil, err
	}
	return GroupByDay(meals, profile.Location()), nil
}

// GroupByDay は食事を暦日（loc基準）ごとに集計し、日付順で返す。
func GroupByDay(meals []*model.Meal, loc *time.Location) []model.DailyNutrition {
	byDate := make(map[string]*model.DailyNutrition)
	for _, m := range meals {
		date := m.EatenAt.In(loc).Format("2006-01-02")
		d, ok := byDate[date]
		if !ok {
			d = &model.DailyNutrition{Date: date}
			byDate[date] = d
		}
		d.MealCount++
		d.Nutrition.Add(m.Totals())
	}

	days := make([]model.DailyNutrition, 0, len(byDate))
	for _, d := range byDate {
		d.Nutrition = roundNutrition(d.Nutrition)
		days = append(days, *d)
	}
	sort.Slice(days, func(i, j int) bool { return days[i].Date < days[j].Date })
	return days
}

// build は入力を検証して食事に反映する。食品参照は利用者のライブラリで解決する。
func (s *Service) build(ctx context.Context, userID string, m *model.Meal, in Input, now time.Time) error {
	errs := model.ValidationErrors{}
	if !in.MealType.Valid() {
		errs.Add("meal_type", "breakfast, lunch, dinner, snack のいずれかを指定してください")
	}
	name := s.sanitizer.Clean(in.Name)
	if utf8.RuneCountInString(name) > maxMealNameLen {
		errs.Add("name", fmt.Sprintf("%d文字以内で入力してください", maxMealNameLen))
	}
	if in.EatenAt != nil && in.EatenAt.After(now.Add(model.FutureTolerance)) {
		errs.Add("eaten_at", "未来の日時は指定できません")
	}
	source := in.Source
	if source == "" {
		source = model.MealSourceManual
	}
	if source != model.MealSourceManual && source != model.MealSourceAI {
		errs.Add("source", "manual または ai を指定してください")
	}
	if len(in.Items) == 0 || len(in.Items) > maxMealItems {
		errs.Add("items", fmt.Sprintf("品目は1〜%d件で指定してください", maxMealItems))
	}
	for i, it := range in.Items {
		prefix := fmt.Sprintf("items[%d].", i)
		if !isPositiveFinite(it.Quantity) {
			errs.Add(prefix+"quantity", "0より大きい値を入力してください")
		}
		if utf8.RuneCountInString(it.Unit) > maxItemUnitLen {
			errs.Add(prefix+"unit", fmt.Sprintf("%d文字以内で入力してください", maxItemUnitLen))
		}
		if it.FoodItemID == nil {
			if s.sanitizer.Clean(it.Name) == "" {
				errs.Add(prefix+"name", "品目名を入力してください")
			}
			validateNutrition(errs, prefix, it.Nutrition)
		}
	}
	if err := errs.Err(); err != nil {
		return err
	}

	items := make([]model.MealItem, 0, len(in.Items))
	for _, it := range in.Items {
		item, err := s.resolveItem(ctx, userID, it)
		if err != nil {
			return err
		}
		items = append(items, item)
	}

	m.MealType = in.MealType
	m.Name = name
	m.Notes = s.sanitizer.Clean(in.Notes)
	m.Source = source
	m.Items = items
	if in.EatenAt != nil {
		m.EatenAt = in.EatenAt.UTC()
	} else if m.EatenAt.IsZero() {
		m.EatenAt = now
	}
	return nil
}

func (s *Service) resolveItem(ctx context.Context, userID string, in ItemInput) (model.MealItem, error) {
	item := model.MealItem{
		ID:       uuid.New().String(),
		Name:     s.sanitizer.Clean(in.Name),
		Quantity: in.Quantity,
		Unit:     in.Unit,
	}
	if in.FoodItemID == nil {
		item.Nutrition = roundNutrition(in.Nutrition)
		return item, nil
	}

	food, err := s.foodRepo.FindByID(ctx, userID, *in.FoodItemID)
	if err != nil {
		return model.MealItem{}, fmt.Errorf("食品の取得に失敗しました: %w", err)
	}
	if food == nil {
		return model.MealItem{}, model.NewNotFoundError(model.ErrCodeFoodItemNotFound, "食品", *in.FoodItemID)
	}

	item.FoodItemID = &food.ID
	if item.Name == "" {
		item.Name = food.Name
	}
	if item.Unit == "" {
		item.Unit = food.ServingUnit
	}
	item.Nutrition = roundNutrition(food.Nutrition.Scale(in.Quantity / food.ServingSize))
	return item, nil
}

func roundNutrition(n model.Nutrition) model.Nutrition {
	r := func(v float64) float64 { return math.Round(v*10) / 10 }
	return model.Nutrition{
		Calories: r(n.Calories),
		ProteinG: r(n.ProteinG),
		CarbsG:   r(n.CarbsG),
		FatG:     r(n.FatG),
		FiberG:   r(n.FiberG),
	}
}
