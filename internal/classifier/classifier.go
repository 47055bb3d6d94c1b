// Package classifier defines the contract of the external text classifier and
// its providers: an LLM over the Anthropic Messages API and an offline
// keyword/roster matcher.
//
// Both calls separate failure from an empty answer: a nil error with no
// names (or no labels) means the classifier ran and found nothing.
package classifier

import (
	"context"
	"errors"
	"fmt"

	"github.com/pbaille/reportcard/internal/config"
	"github.com/pbaille/reportcard/internal/logger"
)

// ErrNoAPIKey is returned when the anthropic provider has no key configured.
var ErrNoAPIKey = errors.New("ANTHROPIC_API_KEY is not set")

// Classifier extracts friend names and suggests categories for new labels.
type Classifier interface {
	// ExtractFriends returns the candidate names found in text.
	ExtractFriends(ctx context.Context, text string) ([]string, error)
	// Categorize suggests categories for labels the knowledge base does not know.
	Categorize(ctx context.Context, req CategorizeRequest) (*Categorization, error)
}

// CategorizeRequest carries both unmapped batches in a single call.
type CategorizeRequest struct {
	Activities         []string
	Training           []string
	ActivityVocabulary []string
	TrainingVocabulary []string
}

// Empty reports whether there is nothing to categorize.
func (r CategorizeRequest) Empty() bool {
	return len(r.Activities) == 0 && len(r.Training) == 0
}

// ActivityLabel is a suggestion for one activity; several categories are allowed.
type ActivityLabel struct {
	Label      string   `json:"label"`
	Categories []string `json:"categories"`
}

// TrainingLabel is a suggestion for one training skill.
type TrainingLabel struct {
	Label    string `json:"label"`
	Category string `json:"category"`
}

// Categorization is the classifier's answer. Labels may be missing from it;
// callers treat those as still unmapped.
type Categorization struct {
	Activities []ActivityLabel `json:"activities"`
	Training   []TrainingLabel `json:"training"`
}

// New builds the configured provider, paced so that two calls are at least
// cfg.Pacing apart.
func New(cfg config.ClassifierConfig, log logger.Logger) (Classifier, error) {
	var c Classifier
	switch cfg.Provider {
	case config.ProviderAnthropic:
		a, err := NewAnthropic(AnthropicConfig{
			APIKey:    cfg.APIKey,
			Model:     cfg.Model,
			Endpoint:  cfg.Endpoint,
			MaxTokens: cfg.MaxTokens,
			Timeout:   cfg.Timeout,
		})
		if err != nil {
			return nil, err
		}
		c = a
	case config.ProviderRules:
		c = NewRules(RulesConfig{
			KnownFriends:   cfg.KnownFriends,
			MatchThreshold: cfg.FriendMatchThreshold,
		})
	default:
		return nil, fmt.Errorf("unknown classifier provider %q", cfg.Provider)
	}

	if log != nil {
		log.Debug("classifier ready",
			logger.String("provider", cfg.Provider),
			logger.Duration("pacing", cfg.Pacing))
	}
	return Paced(c, cfg.Pacing), nil
}
