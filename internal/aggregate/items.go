package aggregate

import (
	"sort"

	"github.com/pbaille/reportcard/internal/domain"
)

// CategoryCount is one row of a category roll-up.
type CategoryCount struct {
	Category   string  `json:"category"`
	Count      int     `json:"count"`
	Percentage float64 `json:"percentage"`
}

// ItemBreakdown is the activities.json and training.json document. Items
// counts every raw label, categorized or not; Categories counts assignments.
type ItemBreakdown struct {
	TotalInstances   int             `json:"total_instances"`
	Items            []ItemCount     `json:"items"`
	TotalAssignments int             `json:"total_assignments"`
	Categories       []CategoryCount `json:"categories"`
}

func itemBreakdown(
	analyses []domain.DailyAnalysis,
	vocabulary []string,
	labels func(domain.DailyAnalysis) []string,
	assignments func(domain.DailyAnalysis) []domain.CategoryAssignment,
) ItemBreakdown {
	var all []string
	counts := make(map[string]int, len(vocabulary))
	total := 0
	for _, a := range analyses {
		all = append(all, labels(a)...)
		for _, ca := range assignments(a) {
			cat := domain.NormalizeCategory(ca.Category)
			if !contains(vocabulary, cat) {
				continue
			}
			counts[cat]++
			total++
		}
	}

	items, instances := frequencies(all)
	b := ItemBreakdown{
		TotalInstances:   instances,
		Items:            items,
		TotalAssignments: total,
		Categories:       make([]CategoryCount, 0, len(vocabulary)),
	}
	for _, cat := range vocabulary {
		b.Categories = append(b.Categories, CategoryCount{
			Category:   cat,
			Count:      counts[cat],
			Percentage: percent(counts[cat], total),
		})
	}
	sort.SliceStable(b.Categories, func(i, j int) bool {
		return b.Categories[i].Count > b.Categories[j].Count
	})
	return b
}

func contains(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}
