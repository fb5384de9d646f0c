package handler

import (
	"context"
	"net/http"
	"time"

	"github.com/hitoshi/fastrack/internal/analytics"
	"github.com/hitoshi/fastrack/internal/model"
)

// AnalyticsServiceInterface は集計ハンドラーが必要とするサービスインターフェース。
type AnalyticsServiceInterface interface {
	Dashboard(ctx context.Context, userID string, from, to *time.Time) (*analytics.Dashboard, error)
	Fasting(ctx context.Context, userID string, from, to *time.Time) (*analytics.FastingReport, error)
	Nutrition(ctx context.Context, userID string, from, to *time.Time) (*analytics.NutritionReport, error)
}

// AnalyticsHandler は集計のHTTPハンドラー。
type AnalyticsHandler struct {
	service AnalyticsServiceInterface
}

// NewAnalyticsHandler はAnalyticsHandlerを生成する。
func NewAnalyticsHandler(service AnalyticsServiceInterface) *AnalyticsHandler {
	return &AnalyticsHandler{service: service}
}

// nutritionSummaryResponse は栄養の期間集計。
type nutritionSummaryResponse struct {
	AverageDaily model.Nutrition `json:"average_daily"`
	DaysLogged   int             `json:"days_logged"`
	MealCount    int             `json:"meal_count"`
}

func toNutritionSummaryResponse(s analytics.NutritionSummary) nutritionSummaryResponse {
	return nutritionSummaryResponse{AverageDaily: s.AverageDaily, DaysLogged: s.DaysLogged, MealCount: s.MealCount}
}

// dashboardResponse はダッシュボードのAPIレスポンス。
type dashboardResponse struct {
	From              time.Time                `json:"from"`
	To                time.Time                `json:"to"`
	Fasting           fastStatsResponse        `json:"fasting"`
	Weight            weightTrendResponse      `json:"weight"`
	Nutrition         nutritionSummaryResponse `json:"nutrition"`
	LatestMetrics     []metricResponse         `json:"latest_metrics"`
	UpcomingScheduled int                      `json:"upcoming_scheduled"`
}

// fastingDayResponse は暦日ごとのファスティング実績。
type fastingDayResponse struct {
	Date  string  `json:"date"`
	Count int     `json:"count"`
	Hours float64 `json:"hours"`
}

// fastingReportResponse はファスティング集計のAPIレスポンス。
type fastingReportResponse struct {
	From  time.Time            `json:"from"`
	To    time.Time            `json:"to"`
	Stats fastStatsResponse    `json:"stats"`
	Days  []fastingDayResponse `json:"days"`
}

// nutritionReportResponse は栄養集計のAPIレスポンス。
type nutritionReportResponse struct {
	From    time.Time                `json:"from"`
	To      time.Time                `json:"to"`
	Summary nutritionSummaryResponse `json:"summary"`
	Days    []dailyNutritionResponse `json:"days"`
}

// Dashboard は各ドメインの集計をまとめて返す。
// GET /api/analytics/dashboard?from=&to=
func (h *AnalyticsHandler) Dashboard(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUserID(w, r)
	if !ok {
		return
	}

	from, to, err := queryRange(r)
	if err != nil {
		handleServiceError(w, err)
		return
	}

	d, err := h.service.Dashboard(r.Context(), userID, from, to)
	if err != nil {
		handleServiceError(w, err)
		return
	}
	resp := dashboardResponse{
		From:              d.From,
		To:                d.To,
		Nutrition:         toNutritionSummaryResponse(d.Nutrition),
		LatestMetrics:     mapSlice(d.LatestMetrics, toMetricResponse),
		UpcomingScheduled: d.UpcomingScheduled,
	}
	if d.Fasting != nil {
		resp.Fasting = toFastStatsResponse(d.Fasting)
	}
	if d.Weight != nil {
		resp.Weight = toWeightTrendResponse(d.Weight)
	}
	writeJSON(w, http.StatusOK, resp)
}

// Fasting は暦日ごとのファスティング実績と統計を返す。
// GET /api/analytics/fasting?from=&to=
func (h *AnalyticsHandler) Fasting(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUserID(w, r)
	if !ok {
		return
	}

	from, to, err := queryRange(r)
	if err != nil {
		handleServiceError(w, err)
		return
	}

	report, err := h.service.Fasting(r.Context(), userID, from, to)
	if err != nil {
		handleServiceError(w, err)
		return
	}
	resp := fastingReportResponse{
		From: report.From,
		To:   report.To,
		Days: mapSlice(report.Days, func(d analytics.FastingDay) fastingDayResponse {
			return fastingDayResponse{Date: d.Date, Count: d.Count, Hours: d.Hours}
		}),
	}
	if report.Stats != nil {
		resp.Stats = toFastStatsResponse(report.Stats)
	}
	writeJSON(w, http.StatusOK, resp)
}

// Nutrition は日別の栄養素合計と平均を返す。
// GET /api/analytics/nutrition?from=&to=
func (h *AnalyticsHandler) Nutrition(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUserID(w, r)
	if !ok {
		return
	}

	from, to, err := queryRange(r)
	if err != nil {
		handleServiceError(w, err)
		return
	}

	report, err := h.service.Nutrition(r.Context(), userID, from, to)
	if err != nil {
		handleServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, nutritionReportResponse{
		From:    report.From,
		To:      report.To,
		Summary: toNutritionSummaryResponse(report.Summary),
		Days:    mapSlice(report.Days, toDailyNutritionResponse),
	})
}
