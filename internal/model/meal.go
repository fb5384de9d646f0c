package model

import "time"

// MealType は食事区分を表す。
type MealType string

const (
	MealTypeBreakfast MealType = "breakfast"
	MealTypeLunch     MealType = "lunch"
	MealTypeDinner    MealType = "dinner"
	MealTypeSnack     MealType = "snack"
)

// Valid は既知の食事区分かどうかを返す。
func (t MealType) Valid() bool {
	switch t {
	case MealTypeBreakfast, MealTypeLunch, MealTypeDinner, MealTypeSnack:
		return true
	}
	return false
}

// 食事の登録元
const (
	MealSourceManual = "manual"
	MealSourceAI     = "ai"
)

// Nutrition は栄養素の量を表す。
type Nutrition struct {
	Calories float64 `json:"calories"`
	ProteinG float64 `json:"protein_g"`
	CarbsG   float64 `json:"carbs_g"`
	FatG     float64 `json:"fat_g"`
	FiberG   float64 `json:"fiber_g"`
}

// Add は栄養素を加算する。
func (n *Nutrition) Add(o Nutrition) {
	n.Calories += o.Calories
	n.ProteinG += o.ProteinG
	n.CarbsG += o.CarbsG
	n.FatG += o.FatG
	n.FiberG += o.FiberG
}

// Scale は栄養素を係数倍した値を返す。
func (n Nutrition) Scale(f float64) Nutrition {
	return Nutrition{
		Calories: n.Calories * f,
		ProteinG: n.ProteinG * f,
		CarbsG:   n.CarbsG * f,
		FatG:     n.FatG * f,
		FiberG:   n.FiberG * f,
	}
}

// FoodItem はユーザーの食品ライブラリの1件を表す。栄養素は1サービング当たり。
type FoodItem struct {
	ID          string
	UserID      string
	Name        string
	Brand       string
	ServingSize float64
	ServingUnit string
	Nutrition
	CreatedAt time.Time
	UpdatedAt time.Time
}

// Meal は1回の食事記録を表す。
type Meal struct {
	ID        string
	UserID    string
	MealType  MealType
	Name      string
	EatenAt   time.Time
	Notes     string
	Source    string
	Items     []MealItem
	CreatedAt time.Time
	UpdatedAt time.Time
}

// Totals は食事内の全品目の栄養素合計を返す。
func (m *Meal) Totals() Nutrition {
	var total Nutrition
	for _, it := range m.Items {
		total.Add(it.Nutrition)
	}
	return total
}

// MealItem は食事に含まれる1品目を表す。
type MealItem struct {
	ID         string
	MealID     string
	FoodItemID *string
	Name       string
	Quantity   float64
	Unit       string
	Nutrition
	Position int
}

// DailyNutrition は1日分の栄養素合計を表す。
type DailyNutrition struct {
	Date      string // YYYY-MM-DD（プロフィールのタイムゾーン）
	MealCount int
	Nutrition
}
