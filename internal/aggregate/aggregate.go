// Package aggregate computes the derived statistics over the full Daily
// Analysis corpus. Everything here is a pure function of its input: no I/O,
// no clock, no classifier.
package aggregate

import (
	"errors"
	"math"
	"sort"

	"github.com/pbaille/reportcard/internal/domain"
)

// ErrNoData is returned when there is nothing to aggregate.
var ErrNoData = errors.New("no daily analyses to aggregate")

// Outputs holds every aggregate document.
type Outputs struct {
	Records    int
	FirstDate  string
	LastDate   string
	Grades     GradeTrends
	Friends    FriendTable
	Activities ItemBreakdown
	Training   ItemBreakdown
	Behavior   BehaviorTrends
	Charts     Charts
}

// Aggregate computes all outputs. The input order does not matter; records
// are processed by ascending date.
func Aggregate(analyses []domain.DailyAnalysis) (*Outputs, error) {
	if len(analyses) == 0 {
		return nil, ErrNoData
	}

	sorted := make([]domain.DailyAnalysis, len(analyses))
	copy(sorted, analyses)
	sort.SliceStable(sorted, func(i, j int) bool { return sorted[i].Date < sorted[j].Date })

	out := &Outputs{
		Records:   len(sorted),
		FirstDate: sorted[0].Date,
		LastDate:  sorted[len(sorted)-1].Date,
		Grades:    gradeTrends(sorted),
		Friends:   friendTable(sorted),
		Activities: itemBreakdown(sorted, domain.ActivityCategories,
			func(a domain.DailyAnalysis) []string { return a.Activities },
			func(a domain.DailyAnalysis) []domain.CategoryAssignment { return a.ActivityCategories }),
		Training: itemBreakdown(sorted, domain.TrainingCategories,
			func(a domain.DailyAnalysis) []string { return a.TrainingSkills },
			func(a domain.DailyAnalysis) []domain.CategoryAssignment { return a.TrainingCategories }),
		Behavior: behaviorTrends(sorted),
	}
	out.Charts = charts(sorted, out)
	return out, nil
}

// percent returns n as a percentage of total with one decimal; 0 when total is 0.
func percent(n, total int) float64 {
	if total == 0 {
		return 0
	}
	return round(float64(n)*100/float64(total), 1)
}

func round(v float64, places int) float64 {
	p := math.Pow(10, float64(places))
	return math.Round(v*p) / p
}

// ItemCount is one row of a frequency table.
type ItemCount struct {
	Label      string  `json:"label"`
	Count      int     `json:"count"`
	Percentage float64 `json:"percentage"`
}

// frequencies counts labels and sorts by count desc, then label.
func frequencies(labels []string) ([]ItemCount, int) {
	counts := make(map[string]int)
	for _, l := range labels {
		counts[l]++
	}

	items := make([]ItemCount, 0, len(counts))
	for l, n := range counts {
		items = append(items, ItemCount{Label: l, Count: n, Percentage: percent(n, len(labels))})
	}
	sort.Slice(items, func(i, j int) bool {
		if items[i].Count != items[j].Count {
			return items[i].Count > items[j].Count
		}
		return items[i].Label < items[j].Label
	})
	return items, len(labels)
}
