package domain

import (
	"strings"
	"time"
)

// DateLayout is the calendar date format used as the key of every per-day document.
const DateLayout = "2006-01-02"

// Grade is the single-letter daily grade from a report card.
type Grade string

// Grades lists the defined letter grades, best first.
var Grades = []Grade{"A", "B", "C", "D"}

var gradeValues = map[Grade]float64{
	"A": 4.0,
	"B": 3.0,
	"C": 2.0,
	"D": 1.0,
}

// Normalize upper-cases and trims a grade.
func (g Grade) Normalize() Grade {
	return Grade(strings.ToUpper(strings.TrimSpace(string(g))))
}

// Known reports whether the grade is one of A-D.
func (g Grade) Known() bool {
	_, ok := gradeValues[g.Normalize()]
	return ok
}

// GradeValue maps a grade to its numeric value. Unknown or missing grades map to 0.
func GradeValue(g Grade) float64 {
	return gradeValues[g.Normalize()]
}

// SourceRecord is one scraped report card. Owned by the scraper; read-only here.
type SourceRecord struct {
	Date              string   `json:"date"`
	DogName           string   `json:"dog_name,omitempty"`
	Grade             Grade    `json:"grade"`
	Activities        []string `json:"activities"`
	TrainingSkills    []string `json:"training_skills"`
	Comment           string   `json:"comment"`
	PositiveBehaviors []string `json:"positive_behaviors"`
	NegativeBehaviors []string `json:"negative_behaviors"`
	Photos            []string `json:"photos,omitempty"`
	Staff             string   `json:"staff,omitempty"`
}

// Normalize replaces absent lists with empty ones.
func (r *SourceRecord) Normalize() {
	r.Activities = orEmpty(r.Activities)
	r.TrainingSkills = orEmpty(r.TrainingSkills)
	r.PositiveBehaviors = orEmpty(r.PositiveBehaviors)
	r.NegativeBehaviors = orEmpty(r.NegativeBehaviors)
}

// CategoryAssignment pairs a raw item label with one category.
type CategoryAssignment struct {
	Item     string `json:"item"`
	Category string `json:"category"`
}

// DailyAnalysis is the enrichment of exactly one SourceRecord.
// Once written it is only replaced by a forced re-extraction.
type DailyAnalysis struct {
	Date               string               `json:"date"`
	Grade              Grade                `json:"grade"`
	GradeValue         float64              `json:"grade_value"`
	Friends            []string             `json:"friends"`
	Activities         []string             `json:"activities"`
	TrainingSkills     []string             `json:"training_skills"`
	ActivityCategories []CategoryAssignment `json:"activity_categories"`
	TrainingCategories []CategoryAssignment `json:"training_categories"`
	PositiveBehaviors  []string             `json:"positive_behaviors"`
	NegativeBehaviors  []string             `json:"negative_behaviors"`
	Uncategorized      []string             `json:"uncategorized,omitempty"`
	GeneratedAt        time.Time            `json:"generated_at"`
}

// Normalize replaces absent lists with empty ones.
func (a *DailyAnalysis) Normalize() {
	a.Friends = orEmpty(a.Friends)
	a.Activities = orEmpty(a.Activities)
	a.TrainingSkills = orEmpty(a.TrainingSkills)
	a.PositiveBehaviors = orEmpty(a.PositiveBehaviors)
	a.NegativeBehaviors = orEmpty(a.NegativeBehaviors)
	if a.ActivityCategories == nil {
		a.ActivityCategories = []CategoryAssignment{}
	}
	if a.TrainingCategories == nil {
		a.TrainingCategories = []CategoryAssignment{}
	}
}

// ParseDate parses a YYYY-MM-DD date in UTC.
func ParseDate(s string) (time.Time, error) {
	return time.Parse(DateLayout, s)
}

// ValidDate reports whether s is a well-formed YYYY-MM-DD date.
func ValidDate(s string) bool {
	_, err := ParseDate(s)
	return err == nil
}

func orEmpty(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}
