package domain

import "strings"

// Axis identifies which knowledge-base mapping a label belongs to.
type Axis string

const (
	AxisActivity Axis = "activity"
	AxisTraining Axis = "training"
)

// ActivityCategories is the closed vocabulary for activities.
// An activity may carry several of these.
var ActivityCategories = []string{
	"playtime",
	"socialization",
	"rest",
	"outdoor",
	"enrichment",
	"training",
	"special_event",
}

// TrainingCategories is the closed vocabulary for training skills.
// A training skill carries exactly one of these.
var TrainingCategories = []string{
	"obedience_commands",
	"impulse_control_and_focus",
	"physical_skills",
	"handling_and_manners",
	"advanced_training",
	"fun_skills",
}

// IsActivityCategory reports whether c belongs to the activity vocabulary.
func IsActivityCategory(c string) bool {
	return contains(ActivityCategories, c)
}

// IsTrainingCategory reports whether c belongs to the training vocabulary.
func IsTrainingCategory(c string) bool {
	return contains(TrainingCategories, c)
}

// Vocabulary returns the closed category list for an axis.
func Vocabulary(axis Axis) []string {
	if axis == AxisTraining {
		return TrainingCategories
	}
	return ActivityCategories
}

// NormalizeCategory lower-cases a category tag and turns spaces and dashes
// into underscores, so "Special Event" matches special_event.
func NormalizeCategory(c string) string {
	c = strings.ToLower(strings.TrimSpace(c))
	return strings.NewReplacer(" ", "_", "-", "_").Replace(c)
}

func contains(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}
