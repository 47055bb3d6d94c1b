package aggregate

import "github.com/pbaille/reportcard/internal/domain"

const topFriends = 10

// GradePoint is one day of the grade series.
type GradePoint struct {
	Date  string  `json:"date"`
	Grade string  `json:"grade"`
	Value float64 `json:"value"`
}

// WeeklyPoint is one week of the weekly average series.
type WeeklyPoint struct {
	Week    string  `json:"week"`
	Average float64 `json:"average"`
}

// Charts is the charts.json document consumed by the dashboard.
type Charts struct {
	GradeSeries            []GradePoint    `json:"grade_series"`
	WeeklyAverages         []WeeklyPoint   `json:"weekly_averages"`
	ActivityCategoryShares []CategoryCount `json:"activity_category_shares"`
	TopFriends             []FriendStat    `json:"top_friends"`
}

func charts(analyses []domain.DailyAnalysis, out *Outputs) Charts {
	c := Charts{
		GradeSeries:            make([]GradePoint, 0, len(analyses)),
		WeeklyAverages:         make([]WeeklyPoint, 0, len(out.Grades.Weekly)),
		ActivityCategoryShares: out.Activities.Categories,
	}
	for _, a := range analyses {
		g := a.Grade.Normalize()
		c.GradeSeries = append(c.GradeSeries, GradePoint{Date: a.Date, Grade: string(g), Value: domain.GradeValue(g)})
	}
	for _, w := range out.Grades.Weekly {
		c.WeeklyAverages = append(c.WeeklyAverages, WeeklyPoint{Week: w.Week, Average: w.Average})
	}

	friends := out.Friends.Friends
	if len(friends) > topFriends {
		friends = friends[:topFriends]
	}
	c.TopFriends = friends
	return c
}
