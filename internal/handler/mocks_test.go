package handler

import (
	"context"
	"time"

	"github.com/hitoshi/fastrack/internal/analytics"
	"github.com/hitoshi/fastrack/internal/fasting"
	"github.com/hitoshi/fastrack/internal/foodai"
	"github.com/hitoshi/fastrack/internal/healthmetric"
	"github.com/hitoshi/fastrack/internal/meal"
	"github.com/hitoshi/fastrack/internal/model"
	"github.com/hitoshi/fastrack/internal/profile"
	"github.com/hitoshi/fastrack/internal/reminder"
	"github.com/hitoshi/fastrack/internal/schedule"
	"github.com/hitoshi/fastrack/internal/weight"
)

// モックの既定値に使う固定時刻
var mockNow = time.Date(2025, 3, 10, 8, 0, 0, 0, time.UTC)

// --- プロフィール ---

type mockProfileService struct {
	getFn    func(ctx context.Context, userID string) (*model.Profile, error)
	updateFn func(ctx context.Context, userID string, in profile.UpdateInput) (*model.Profile, error)
}

func (m *mockProfileService) Get(ctx context.Context, userID string) (*model.Profile, error) {
	if m.getFn != nil {
		return m.getFn(ctx, userID)
	}
	return model.DefaultProfile(userID), nil
}

func (m *mockProfileService) Update(ctx context.Context, userID string, in profile.UpdateInput) (*model.Profile, error) {
	if m.updateFn != nil {
		return m.updateFn(ctx, userID, in)
	}
	return model.DefaultProfile(userID), nil
}

// --- ファスティング ---

type mockFastingService struct {
	startFn  func(ctx context.Context, userID string, in fasting.StartInput) (*fasting.Fast, error)
	endFn    func(ctx context.Context, userID, id string, endedAt *time.Time) (*fasting.Fast, error)
	cancelFn func(ctx context.Context, userID, id string) (*fasting.Fast, error)
	updateFn func(ctx context.Context, userID, id string, in fasting.UpdateInput) (*fasting.Fast, error)
	getFn    func(ctx context.Context, userID, id string) (*fasting.Fast, error)
	deleteFn func(ctx context.Context, userID, id string) error
	activeFn func(ctx context.Context, userID string) (*fasting.Fast, error)
	listFn   func(ctx context.Context, userID string, in fasting.ListInput) (model.Page[*fasting.Fast], error)
	statsFn  func(ctx context.Context, userID string, from, to *time.Time) (*fasting.Stats, error)
}

func newMockFast(id string) *fasting.Fast {
	return &fasting.Fast{FastingSession: &model.FastingSession{
		ID:          id,
		UserID:      "user-1",
		StartedAt:   mockNow,
		TargetHours: 16,
		Status:      model.FastStatusActive,
	}}
}

func (m *mockFastingService) Start(ctx context.Context, userID string, in fasting.StartInput) (*fasting.Fast, error) {
	if m.startFn != nil {
		return m.startFn(ctx, userID, in)
	}
	return newMockFast("fast-1"), nil
}

func (m *mockFastingService) End(ctx context.Context, userID, id string, endedAt *time.Time) (*fasting.Fast, error) {
	if m.endFn != nil {
		return m.endFn(ctx, userID, id, endedAt)
	}
	return newMockFast(id), nil
}

func (m *mockFastingService) Cancel(ctx context.Context, userID, id string) (*fasting.Fast, error) {
	if m.cancelFn != nil {
		return m.cancelFn(ctx, userID, id)
	}
	return newMockFast(id), nil
}

func (m *mockFastingService) Update(ctx context.Context, userID, id string, in fasting.UpdateInput) (*fasting.Fast, error) {
	if m.updateFn != nil {
		return m.updateFn(ctx, userID, id, in)
	}
	return newMockFast(id), nil
}

func (m *mockFastingService) Get(ctx context.Context, userID, id string) (*fasting.Fast, error) {
	if m.getFn != nil {
		return m.getFn(ctx, userID, id)
	}
	return newMockFast(id), nil
}

func (m *mockFastingService) Delete(ctx context.Context, userID, id string) error {
	if m.deleteFn != nil {
		return m.deleteFn(ctx, userID, id)
	}
	return nil
}

func (m *mockFastingService) Active(ctx context.Context, userID string) (*fasting.Fast, error) {
	if m.activeFn != nil {
		return m.activeFn(ctx, userID)
	}
	return newMockFast("fast-active"), nil
}

func (m *mockFastingService) List(ctx context.Context, userID string, in fasting.ListInput) (model.Page[*fasting.Fast], error) {
	if m.listFn != nil {
		return m.listFn(ctx, userID, in)
	}
	return model.Page[*fasting.Fast]{Items: []*fasting.Fast{}}, nil
}

func (m *mockFastingService) Stats(ctx context.Context, userID string, from, to *time.Time) (*fasting.Stats, error) {
	if m.statsFn != nil {
		return m.statsFn(ctx, userID, from, to)
	}
	return &fasting.Stats{}, nil
}

// --- 体重 ---

type mockWeightService struct {
	createFn func(ctx context.Context, userID string, in weight.Input) (*model.WeightRecord, error)
	getFn    func(ctx context.Context, userID, id string) (*model.WeightRecord, error)
	updateFn func(ctx context.Context, userID, id string, in weight.Input) (*model.WeightRecord, error)
	deleteFn func(ctx context.Context, userID, id string) error
	listFn   func(ctx context.Context, userID string, in weight.ListInput) (model.Page[*model.WeightRecord], error)
	trendFn  func(ctx context.Context, userID string, from, to *time.Time) (*weight.Trend, error)
}

func newMockWeight(id string) *model.WeightRecord {
	return &model.WeightRecord{ID: id, UserID: "user-1", WeightKg: 70, RecordedAt: mockNow}
}

func (m *mockWeightService) Create(ctx context.Context, userID string, in weight.Input) (*model.WeightRecord, error) {
	if m.createFn != nil {
		return m.createFn(ctx, userID, in)
	}
	return newMockWeight("weight-1"), nil
}

func (m *mockWeightService) Get(ctx context.Context, userID, id string) (*model.WeightRecord, error) {
	if m.getFn != nil {
		return m.getFn(ctx, userID, id)
	}
	return newMockWeight(id), nil
}

func (m *mockWeightService) Update(ctx context.Context, userID, id string, in weight.Input) (*model.WeightRecord, error) {
	if m.updateFn != nil {
		return m.updateFn(ctx, userID, id, in)
	}
	return newMockWeight(id), nil
}

func (m *mockWeightService) Delete(ctx context.Context, userID, id string) error {
	if m.deleteFn != nil {
		return m.deleteFn(ctx, userID, id)
	}
	return nil
}

func (m *mockWeightService) List(ctx context.Context, userID string, in weight.ListInput) (model.Page[*model.WeightRecord], error) {
	if m.listFn != nil {
		return m.listFn(ctx, userID, in)
	}
	return model.Page[*model.WeightRecord]{}, nil
}

func (m *mockWeightService) Trend(ctx context.Context, userID string, from, to *time.Time) (*weight.Trend, error) {
	if m.trendFn != nil {
		return m.trendFn(ctx, userID, from, to)
	}
	return &weight.Trend{From: mockNow.AddDate(0, 0, -30), To: mockNow}, nil
}

// --- 健康指標 ---

type mockMetricService struct {
	createFn  func(ctx context.Context, userID string, in healthmetric.CreateInput) (*model.HealthMetric, error)
	getFn     func(ctx context.Context, userID, id string) (*model.HealthMetric, error)
	updateFn  func(ctx context.Context, userID, id string, in healthmetric.UpdateInput) (*model.HealthMetric, error)
	deleteFn  func(ctx context.Context, userID, id string) error
	listFn    func(ctx context.Context, userID string, in healthmetric.ListInput) (model.Page[*model.HealthMetric], error)
	summaryFn func(ctx context.Context, userID, metricType string, from, to *time.Time) (*healthmetric.Summary, error)
}

func newMockMetric(id string) *model.HealthMetric {
	return &model.HealthMetric{
		ID:         id,
		UserID:     "user-1",
		Type:       "heart_rate",
		Value:      []byte(`{"bpm":60}`),
		Unit:       "bpm",
		RecordedAt: mockNow,
	}
}

func (m *mockMetricService) Create(ctx context.Context, userID string, in healthmetric.CreateInput) (*model.HealthMetric, error) {
	if m.createFn != nil {
		return m.createFn(ctx, userID, in)
	}
	return newMockMetric("metric-1"), nil
}

func (m *mockMetricService) Get(ctx context.Context, userID, id string) (*model.HealthMetric, error) {
	if m.getFn != nil {
		return m.getFn(ctx, userID, id)
	}
	return newMockMetric(id), nil
}

func (m *mockMetricService) Update(ctx context.Context, userID, id string, in healthmetric.UpdateInput) (*model.HealthMetric, error) {
	if m.updateFn != nil {
		return m.updateFn(ctx, userID, id, in)
	}
	return newMockMetric(id), nil
}

func (m *mockMetricService) Delete(ctx context.Context, userID, id string) error {
	if m.deleteFn != nil {
		return m.deleteFn(ctx, userID, id)
	}
	return nil
}

func (m *mockMetricService) List(ctx context.Context, userID string, in healthmetric.ListInput) (model.Page[*model.HealthMetric], error) {
	if m.listFn != nil {
		return m.listFn(ctx, userID, in)
	}
	return model.Page[*model.HealthMetric]{}, nil
}

func (m *mockMetricService) Summary(ctx context.Context, userID, metricType string, from, to *time.Time) (*healthmetric.Summary, error) {
	if m.summaryFn != nil {
		return m.summaryFn(ctx, userID, metricType, from, to)
	}
	return &healthmetric.Summary{Type: metricType}, nil
}

// --- 食品 ---

type mockFoodItemService struct {
	createFn func(ctx context.Context, userID string, in meal.FoodInput) (*model.FoodItem, error)
	getFn    func(ctx context.Context, userID, id string) (*model.FoodItem, error)
	updateFn func(ctx context.Context, userID, id string, in meal.FoodInput) (*model.FoodItem, error)
	deleteFn func(ctx context.Context, userID, id string) error
	searchFn func(ctx context.Context, userID, query string, limit, offset int) ([]*model.FoodItem, error)
}

func newMockFood(id string) *model.FoodItem {
	return &model.FoodItem{ID: id, UserID: "user-1", Name: "Oatmeal", ServingSize: 40, ServingUnit: "g"}
}

func (m *mockFoodItemService) Create(ctx context.Context, userID string, in meal.FoodInput) (*model.FoodItem, error) {
	if m.createFn != nil {
		return m.createFn(ctx, userID, in)
	}
	return newMockFood("food-1"), nil
}

func (m *mockFoodItemService) Get(ctx context.Context, userID, id string) (*model.FoodItem, error) {
	if m.getFn != nil {
		return m.getFn(ctx, userID, id)
	}
	return newMockFood(id), nil
}

func (m *mockFoodItemService) Update(ctx context.Context, userID, id string, in meal.FoodInput) (*model.FoodItem, error) {
	if m.updateFn != nil {
		return m.updateFn(ctx, userID, id, in)
	}
	return newMockFood(id), nil
}

func (m *mockFoodItemService) Delete(ctx context.Context, userID, id string) error {
	if m.deleteFn != nil {
		return m.deleteFn(ctx, userID, id)
	}
	return nil
}

func (m *mockFoodItemService) Search(ctx context.Context, userID, query string, limit, offset int) ([]*model.FoodItem, error) {
	if m.searchFn != nil {
		return m.searchFn(ctx, userID, query, limit, offset)
	}
	return nil, nil
}

type mockFoodParseService struct {
	parseFn func(ctx context.Context, userID string, in FoodParseInput) (*foodai.Result, *model.Meal, error)
}

func (m *mockFoodParseService) Parse(ctx context.Context, userID string, in FoodParseInput) (*foodai.Result, *model.Meal, error) {
	if m.parseFn != nil {
		return m.parseFn(ctx, userID, in)
	}
	return &foodai.Result{Items: []foodai.Item{}, Source: "fallback"}, nil, nil
}

// --- 食事 ---

type mockMealService struct {
	createFn func(ctx context.Context, userID string, in meal.Input) (*model.Meal, error)
	getFn    func(ctx context.Context, userID, id string) (*model.Meal, error)
	updateFn func(ctx context.Context, userID, id string, in meal.Input) (*model.Meal, error)
	deleteFn func(ctx context.Context, userID, id string) error
	listFn   func(ctx context.Context, userID string, in meal.ListInput) (model.Page[*model.Meal], error)
	dailyFn  func(ctx context.Context, userID string, from, to *time.Time) ([]model.DailyNutrition, error)
}

func newMockMeal(id string) *model.Meal {
	return &model.Meal{
		ID:       id,
		UserID:   "user-1",
		MealType: model.MealTypeLunch,
		EatenAt:  mockNow,
		Source:   model.MealSourceManual,
		Items: []model.MealItem{
			{ID: "item-1", Name: "rice", Quantity: 1, Unit: "bowl", Nutrition: model.Nutrition{Calories: 250, CarbsG: 55}},
			{ID: "item-2", Name: "egg", Quantity: 1, Unit: "piece", Nutrition: model.Nutrition{Calories: 78, ProteinG: 6.3}},
		},
	}
}

func (m *mockMealService) Create(ctx context.Context, userID string, in meal.Input) (*model.Meal, error) {
	if m.createFn != nil {
		return m.createFn(ctx, userID, in)
	}
	return newMockMeal("meal-1"), nil
}

func (m *mockMealService) Get(ctx context.Context, userID, id string) (*model.Meal, error) {
	if m.getFn != nil {
		return m.getFn(ctx, userID, id)
	}
	return newMockMeal(id), nil
}

func (m *mockMealService) Update(ctx context.Context, userID, id string, in meal.Input) (*model.Meal, error) {
	if m.updateFn != nil {
		return m.updateFn(ctx, userID, id, in)
	}
	return newMockMeal(id), nil
}

func (m *mockMealService) Delete(ctx context.Context, userID, id string) error {
	if m.deleteFn != nil {
		return m.deleteFn(ctx, userID, id)
	}
	return nil
}

func (m *mockMealService) List(ctx context.Context, userID string, in meal.ListInput) (model.Page[*model.Meal], error) {
	if m.listFn != nil {
		return m.listFn(ctx, userID, in)
	}
	return model.Page[*model.Meal]{}, nil
}

func (m *mockMealService) DailyNutrition(ctx context.Context, userID string, from, to *time.Time) ([]model.DailyNutrition, error) {
	if m.dailyFn != nil {
		return m.dailyFn(ctx, userID, from, to)
	}
	return nil, nil
}

// --- 予定 ---

type mockScheduleService struct {
	createFn   func(ctx context.Context, userID string, in schedule.Input) (*model.ScheduledFast, error)
	getFn      func(ctx context.Context, userID, id string) (*model.ScheduledFast, error)
	updateFn   func(ctx context.Context, userID, id string, in schedule.Input) (*model.ScheduledFast, error)
	deleteFn   func(ctx context.Context, userID, id string) error
	listFn     func(ctx context.Context, userID string, in schedule.ListInput) ([]*model.ScheduledFast, error)
	generateFn func(ctx context.Context, userID, id string) (int, error)
	startFn    func(ctx context.Context, userID, id string) (*model.ScheduledFast, *fasting.Fast, error)
	skipFn     func(ctx context.Context, userID, id string) (*model.ScheduledFast, error)
}

func newMockSchedule(id string) *model.ScheduledFast {
	return &model.ScheduledFast{
		ID:          id,
		UserID:      "user-1",
		StartAt:     mockNow.Add(24 * time.Hour),
		TargetHours: 16,
		Recurrence:  model.RecurrenceNone,
		Status:      model.ScheduleStatusPlanned,
	}
}

func (m *mockScheduleService) Create(ctx context.Context, userID string, in schedule.Input) (*model.ScheduledFast, error) {
	if m.createFn != nil {
		return m.createFn(ctx, userID, in)
	}
	return newMockSchedule("sched-1"), nil
}

func (m *mockScheduleService) Get(ctx context.Context, userID, id string) (*model.ScheduledFast, error) {
	if m.getFn != nil {
		return m.getFn(ctx, userID, id)
	}
	return newMockSchedule(id), nil
}

func (m *mockScheduleService) Update(ctx context.Context, userID, id string, in schedule.Input) (*model.ScheduledFast, error) {
	if m.updateFn != nil {
		return m.updateFn(ctx, userID, id, in)
	}
	return newMockSchedule(id), nil
}

func (m *mockScheduleService) Delete(ctx context.Context, userID, id string) error {
	if m.deleteFn != nil {
		return m.deleteFn(ctx, userID, id)
	}
	return nil
}

func (m *mockScheduleService) List(ctx context.Context, userID string, in schedule.ListInput) ([]*model.ScheduledFast, error) {
	if m.listFn != nil {
		return m.listFn(ctx, userID, in)
	}
	return []*model.ScheduledFast{}, nil
}

func (m *mockScheduleService) Generate(ctx context.Context, userID, id string) (int, error) {
	if m.generateFn != nil {
		return m.generateFn(ctx, userID, id)
	}
	return 0, nil
}

func (m *mockScheduleService) StartScheduled(ctx context.Context, userID, id string) (*model.ScheduledFast, *fasting.Fast, error) {
	if m.startFn != nil {
		return m.startFn(ctx, userID, id)
	}
	s := newMockSchedule(id)
	s.Status = model.ScheduleStatusStarted
	return s, newMockFast("fast-1"), nil
}

func (m *mockScheduleService) Skip(ctx context.Context, userID, id string) (*model.ScheduledFast, error) {
	if m.skipFn != nil {
		return m.skipFn(ctx, userID, id)
	}
	s := newMockSchedule(id)
	s.Status = model.ScheduleStatusSkipped
	return s, nil
}

// --- リマインダー ---

type mockReminderService struct {
	createFn func(ctx context.Context, userID string, in reminder.Input) (*model.Reminder, error)
	getFn    func(ctx context.Context, userID, id string) (*model.Reminder, error)
	updateFn func(ctx context.Context, userID, id string, in reminder.Input) (*model.Reminder, error)
	deleteFn func(ctx context.Context, userID, id string) error
	listFn   func(ctx context.Context, userID string, in reminder.ListInput) ([]*model.Reminder, error)
}

func newMockReminder(id string) *model.Reminder {
	return &model.Reminder{
		ID:       id,
		UserID:   "user-1",
		Kind:     model.ReminderKindCustom,
		Message:  "水を飲む",
		RemindAt: mockNow.Add(time.Hour),
		Channel:  model.ReminderChannelLog,
		Enabled:  true,
	}
}

func (m *mockReminderService) Create(ctx context.Context, userID string, in reminder.Input) (*model.Reminder, error) {
	if m.createFn != nil {
		return m.createFn(ctx, userID, in)
	}
	return newMockReminder("rem-1"), nil
}

func (m *mockReminderService) Get(ctx context.Context, userID, id string) (*model.Reminder, error) {
	if m.getFn != nil {
		return m.getFn(ctx, userID, id)
	}
	return newMockReminder(id), nil
}

func (m *mockReminderService) Update(ctx context.Context, userID, id string, in reminder.Input) (*model.Reminder, error) {
	if m.updateFn != nil {
		return m.updateFn(ctx, userID, id, in)
	}
	return newMockReminder(id), nil
}

func (m *mockReminderService) Delete(ctx context.Context, userID, id string) error {
	if m.deleteFn != nil {
		return m.deleteFn(ctx, userID, id)
	}
	return nil
}

func (m *mockReminderService) List(ctx context.Context, userID string, in reminder.ListInput) ([]*model.Reminder, error) {
	if m.listFn != nil {
		return m.listFn(ctx, userID, in)
	}
	return nil, nil
}

// --- 集計 ---

type mockAnalyticsService struct {
	dashboardFn func(ctx context.Context, userID string, from, to *time.Time) (*analytics.Dashboard, error)
	fastingFn   func(ctx context.Context, userID string, from, to *time.Time) (*analytics.FastingReport, error)
	nutritionFn func(ctx context.Context, userID string, from, to *time.Time) (*analytics.NutritionReport, error)
}

func (m *mockAnalyticsService) Dashboard(ctx context.Context, userID string, from, to *time.Time) (*analytics.Dashboard, error) {
	if m.dashboardFn != nil {
		return m.dashboardFn(ctx, userID, from, to)
	}
	return &analytics.Dashboard{From: mockNow.AddDate(0, 0, -30), To: mockNow}, nil
}

func (m *mockAnalyticsService) Fasting(ctx context.Context, userID string, from, to *time.Time) (*analytics.FastingReport, error) {
	if m.fastingFn != nil {
		return m.fastingFn(ctx, userID, from, to)
	}
	return &analytics.FastingReport{From: mockNow.AddDate(0, 0, -30), To: mockNow, Stats: &fasting.Stats{}}, nil
}

func (m *mockAnalyticsService) Nutrition(ctx context.Context, userID string, from, to *time.Time) (*analytics.NutritionReport, error) {
	if m.nutritionFn != nil {
		return m.nutritionFn(ctx, userID, from, to)
	}
	return &analytics.NutritionReport{From: mockNow.AddDate(0, 0, -30), To: mockNow}, nil
}
