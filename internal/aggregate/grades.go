package aggregate

import (
	"fmt"
	"sort"
	"time"

	"github.com/pbaille/reportcard/internal/domain"
)

// GradeStats summarizes the grades of a set of days. Days counts every record,
// including those with an unknown grade, which weigh 0 in the average.
type GradeStats struct {
	Average      float64        `json:"average"`
	Distribution map[string]int `json:"distribution"`
	Days         int            `json:"days"`
}

// WeekBucket is one ISO week.
type WeekBucket struct {
	Week  string `json:"week"`
	Start string `json:"start"`
	End   string `json:"end"`
	GradeStats
}

// MonthBucket is one calendar month with the ISO weeks its records fall in.
type MonthBucket struct {
	Month string   `json:"month"`
	Weeks []string `json:"weeks"`
	GradeStats
}

// GradeTrends is the grade_trends.json document.
type GradeTrends struct {
	Overall GradeStats    `json:"overall"`
	Weekly  []WeekBucket  `json:"weekly"`
	Monthly []MonthBucket `json:"monthly"`
}

func gradeTrends(analyses []domain.DailyAnalysis) GradeTrends {
	trends := GradeTrends{
		Overall: gradeStats(analyses),
		Weekly:  []WeekBucket{},
		Monthly: []MonthBucket{},
	}

	weeks := make(map[string][]domain.DailyAnalysis)
	months := make(map[string][]domain.DailyAnalysis)
	monthWeeks := make(map[string]map[string]bool)
	weekStart := make(map[string]time.Time)

	for _, a := range analyses {
		t, err := domain.ParseDate(a.Date)
		if err != nil {
			continue
		}
		wk, start := isoWeek(t)
		mo := t.Format("2006-01")

		weeks[wk] = append(weeks[wk], a)
		weekStart[wk] = start
		months[mo] = append(months[mo], a)
		if monthWeeks[mo] == nil {
			monthWeeks[mo] = make(map[string]bool)
		}
		monthWeeks[mo][wk] = true
	}

	for _, wk := range sortedKeys(weeks) {
		start := weekStart[wk]
		trends.Weekly = append(trends.Weekly, WeekBucket{
			Week:       wk,
			Start:      start.Format(domain.DateLayout),
			End:        start.AddDate(0, 0, 6).Format(domain.DateLayout),
			GradeStats: gradeStats(weeks[wk]),
		})
	}
	for _, mo := range sortedKeys(months) {
		trends.Monthly = append(trends.Monthly, MonthBucket{
			Month:      mo,
			Weeks:      sortedKeys(monthWeeks[mo]),
			GradeStats: gradeStats(months[mo]),
		})
	}
	return trends
}

func gradeStats(analyses []domain.DailyAnalysis) GradeStats {
	stats := GradeStats{Distribution: make(map[string]int, len(domain.Grades)), Days: len(analyses)}
	for _, g := range domain.Grades {
		stats.Distribution[string(g)] = 0
	}
	if len(analyses) == 0 {
		return stats
	}

	var sum float64
	for _, a := range analyses {
		g := a.Grade.Normalize()
		sum += domain.GradeValue(g)
		if g.Known() {
			stats.Distribution[string(g)]++
		}
	}
	stats.Average = round(sum/float64(len(analyses)), 2)
	return stats
}

// isoWeek returns the YYYY-Www key of t and the Monday starting that week.
func isoWeek(t time.Time) (string, time.Time) {
	year, week := t.ISOWeek()
	offset := (int(t.Weekday()) + 6) % 7
	return fmt.Sprintf("%d-W%02d", year, week), t.AddDate(0, 0, -offset)
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
