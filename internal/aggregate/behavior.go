package aggregate

import "github.com/pbaille/reportcard/internal/domain"

// BehaviorPoint is one day of the behavior timeline.
type BehaviorPoint struct {
	Date     string `json:"date"`
	Positive int    `json:"positive"`
	Negative int    `json:"negative"`
}

// BehaviorTrends is the behavior.json document.
type BehaviorTrends struct {
	TotalPositive         int             `json:"total_positive"`
	TotalNegative         int             `json:"total_negative"`
	DaysWithPositive      int             `json:"days_with_positive"`
	DaysWithNegative      int             `json:"days_with_negative"`
	PositiveDayPercentage float64         `json:"positive_day_percentage"`
	NegativeDayPercentage float64         `json:"negative_day_percentage"`
	Timeline              []BehaviorPoint `json:"timeline"`
	PositiveLabels        []ItemCount     `json:"positive_labels"`
	NegativeLabels        []ItemCount     `json:"negative_labels"`
}

func behaviorTrends(analyses []domain.DailyAnalysis) BehaviorTrends {
	b := BehaviorTrends{Timeline: make([]BehaviorPoint, 0, len(analyses))}

	var positive, negative []string
	for _, a := range analyses {
		pos, neg := len(a.PositiveBehaviors), len(a.NegativeBehaviors)
		b.TotalPositive += pos
		b.TotalNegative += neg
		if pos > 0 {
			b.DaysWithPositive++
		}
		if neg > 0 {
			b.DaysWithNegative++
		}
		b.Timeline = append(b.Timeline, BehaviorPoint{Date: a.Date, Positive: pos, Negative: neg})
		positive = append(positive, a.PositiveBehaviors...)
		negative = append(negative, a.NegativeBehaviors...)
	}

	b.PositiveDayPercentage = percent(b.DaysWithPositive, len(analyses))
	b.NegativeDayPercentage = percent(b.DaysWithNegative, len(analyses))
	b.PositiveLabels, _ = frequencies(positive)
	b.NegativeLabels, _ = frequencies(negative)
	return b
}
