package fasting

import (
	"sort"
	"time"
)

// Streak は連続日数の集計結果。
type Streak struct {
	Current int
	Longest int
}

// calendarDay はタイムゾーン上の暦日を表す。
type calendarDay struct {
	year  int
	month time.Month
	day   int
}

func dayOf(t time.Time, loc *time.Location) calendarDay {
	y, m, d := t.In(loc).Date()
	return calendarDay{y, m, d}
}

// index はUTCの日付に換算した通日を返す。夏時間の影響を受けない。
func (d calendarDay) index() int64 {
	return time.Date(d.year, d.month, d.day, 0, 0, 0, 0, time.UTC).Unix() / 86400
}

// ComputeStreak は終了日時の暦日（loc基準）から連続日数を計算する。
// 同じ日の複数回は1日として数え、ちょうど1日差のときのみ連続とみなす。
// 現在の連続日数は今日または昨日で終わる連続のみを数える。
func ComputeStreak(endedAt []time.Time, now time.Time, loc *time.Location) Streak {
	if len(endedAt) == 0 {
		return Streak{}
	}
	if loc == nil {
		loc = time.UTC
	}

	seen := make(map[int64]struct{}, len(endedAt))
	days := make([]int64, 0, len(endedAt))
	for _, t := range endedAt {
		idx := dayOf(t, loc).index()
		if _, ok := seen[idx]; ok {
			continue
		}
		seen[idx] = struct{}{}
		days = append(days, idx)
	}
	sort.Slice(days, func(i, j int) bool { return days[i] < days[j] })

	var st Streak
	run := 1
	st.Longest = 1
	for i := 1; i < len(days); i++ {
		if days[i]-days[i-1] == 1 {
			run++
		} else {
			run = 1
		}
		if run > st.Longest {
			st.Longest = run
		}
	}

	today := dayOf(now, loc).index()
	last := days[len(days)-1]
	if last == today || last == today-1 {
		st.Current = run
	}
	return st
}
