package aggregate

import (
	"sort"
	"strings"

	"github.com/pbaille/reportcard/internal/domain"
)

// Friend trends.
const (
	TrendIncreasing = "increasing"
	TrendStable     = "stable"
	TrendDecreasing = "decreasing"
)

// FriendStat is one row of the friend table.
type FriendStat struct {
	Name       string  `json:"name"`
	Mentions   int     `json:"mentions"`
	Percentage float64 `json:"percentage"`
	FirstSeen  string  `json:"first_seen"`
	LastSeen   string  `json:"last_seen"`
	Trend      string  `json:"trend"`
}

// FriendTable is the friends.json document.
type FriendTable struct {
	TotalRecords int          `json:"total_records"`
	Friends      []FriendStat `json:"friends"`
}

// friendTable keys names case-insensitively. A friend is shown with the
// spelling of their earliest mention.
func friendTable(analyses []domain.DailyAnalysis) FriendTable {
	seen := make(map[string][]string)
	spelling := make(map[string]string)
	first := make(map[string]string)
	for _, a := range analyses {
		inRecord := make(map[string]bool)
		for _, name := range a.Friends {
			name = strings.TrimSpace(name)
			key := strings.ToLower(name)
			if key == "" || inRecord[key] {
				continue
			}
			inRecord[key] = true
			seen[key] = append(seen[key], a.Date)
			if d, ok := first[key]; !ok || a.Date < d {
				first[key] = a.Date
				spelling[key] = name
			}
		}
	}

	table := FriendTable{TotalRecords: len(analyses), Friends: make([]FriendStat, 0, len(seen))}
	for key, dates := range seen {
		sort.Strings(dates)
		table.Friends = append(table.Friends, FriendStat{
			Name:       spelling[key],
			Mentions:   len(dates),
			Percentage: percent(len(dates), len(analyses)),
			FirstSeen:  dates[0],
			LastSeen:   dates[len(dates)-1],
			Trend:      trend(dates),
		})
	}

	sort.Slice(table.Friends, func(i, j int) bool {
		a, b := table.Friends[i], table.Friends[j]
		if a.Mentions != b.Mentions {
			return a.Mentions > b.Mentions
		}
		if a.LastSeen != b.LastSeen {
			return a.LastSeen > b.LastSeen
		}
		return a.Name < b.Name
	})
	return table
}

// trend splits the sorted mention dates into halves by count. The first half
// gets the smaller share on odd counts.
func trend(dates []string) string {
	if len(dates) < 3 {
		return TrendStable
	}
	half := len(dates) / 2
	first := float64(half)
	second := float64(len(dates) - half)

	switch {
	case second > 1.5*first:
		return TrendIncreasing
	case first > 1.5*second:
		return TrendDecreasing
	default:
		return TrendStable
	}
}
