package schedule

import (
	"time"

	"github.com/google/uuid"

	"github.com/hitoshi/fastrack/internal/model"
)

// 1回の生成で作るインスタンスの上限
const maxInstancesPerRun = 500

// occurrence はシリーズのi番目の基準日時を返す。
// 月次は元の日付を基準に月末へ丸める（1/31 → 2/28 → 3/31）。
func occurrence(start time.Time, r model.Recurrence, i int) time.Time {
	switch r {
	case model.RecurrenceDaily:
		return start.AddDate(0, 0, i)
	case model.RecurrenceWeekly:
		return start.AddDate(0, 0, 7*i)
	case model.RecurrenceMonthly:
		return addMonthsClamped(start, i)
	}
	return start
}

// addMonthsClamped はn か月後の同じ日付を返す。存在しない日付は月末にする。
func addMonthsClamped(t time.Time, n int) time.Time {
	y, m, d := t.Date()
	first := time.Date(y, m+time.Month(n), 1, t.Hour(), t.Minute(), t.Second(), t.Nanosecond(), t.Location())
	last := first.AddDate(0, 1, -1).Day()
	if d > last {
		d = last
	}
	return time.Date(first.Year(), first.Month(), d, t.Hour(), t.Minute(), t.Second(), t.Nanosecond(), t.Location())
}

// candidateDates は基準日時から生成候補を返す。
// 週次で曜日指定がある場合は基準日から7日間のうち指定曜日の日を候補にする。
func candidateDates(base time.Time, r model.Recurrence, weekdays map[time.Weekday]bool) []time.Time {
	if len(weekdays) == 0 {
		return []time.Time{base}
	}
	if r == model.RecurrenceWeekly {
		var dates []time.Time
		for k := 0; k < 7; k++ {
			d := base.AddDate(0, 0, k)
			if weekdays[d.Weekday()] {
				dates = append(dates, d)
			}
		}
		return dates
	}
	if weekdays[base.Weekday()] {
		return []time.Time{base}
	}
	return nil
}

// GenerateInstances は繰り返しシリーズから未生成のインスタンスを作る。
// 生成範囲はmin(recurrence_end, now+horizon)まで。now以前の日時と生成済みの日時は除く。
// 曜日と日付の計算はlocの暦で行い、夏時間をまたいでも同じ時刻を保つ。
func GenerateInstances(series *model.ScheduledFast, existing []time.Time, now time.Time, horizon time.Duration, loc *time.Location) []*model.ScheduledFast {
	if !series.IsSeries() {
		return nil
	}
	if loc == nil {
		loc = time.UTC
	}

	limit := now.Add(horizon)
	if series.RecurrenceEnd != nil && series.RecurrenceEnd.Before(limit) {
		limit = *series.RecurrenceEnd
	}

	seen := make(map[int64]bool, len(existing))
	for _, t := range existing {
		seen[t.UnixNano()] = true
	}
	weekdays := make(map[time.Weekday]bool, len(series.Weekdays))
	for _, d := range series.Weekdays {
		weekdays[time.Weekday(d)] = true
	}

	start := series.StartAt.In(loc)
	var instances []*model.ScheduledFast
	for i := 0; ; i++ {
		base := occurrence(start, series.Recurrence, i)
		if base.After(limit) {
			break
		}
		for _, d := range candidateDates(base, series.Recurrence, weekdays) {
			if d.After(limit) || d.Before(now) || seen[d.UnixNano()] {
				continue
			}
			seen[d.UnixNano()] = true
			instances = append(instances, newInstance(series, d.UTC(), now))
			if len(instances) >= maxInstancesPerRun {
				return instances
			}
		}
	}
	return instances
}

func newInstance(series *model.ScheduledFast, startAt, now time.Time) *model.ScheduledFast {
	parentID := series.ID
	return &model.ScheduledFast{
		ID:          uuid.New().String(),
		UserID:      series.UserID,
		Title:       series.Title,
		StartAt:     startAt,
		TargetHours: series.TargetHours,
		Recurrence:  model.RecurrenceNone,
		Weekdays:    []int{},
		ParentID:    &parentID,
		Status:      model.ScheduleStatusPlanned,
		CreatedAt:   now.UTC(),
		UpdatedAt:   now.UTC(),
	}
}
