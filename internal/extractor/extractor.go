// Package extractor turns one source record into its Daily Analysis.
//
// Categories come from the knowledge base first; only labels it does not
// know are sent to the classifier, in one combined request per record. Newly
// resolved labels are recorded (and flushed) before the analysis is written,
// so they are never sent again.
package extractor

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/pbaille/reportcard/internal/classifier"
	"github.com/pbaille/reportcard/internal/domain"
	"github.com/pbaille/reportcard/internal/logger"
	"github.com/pbaille/reportcard/internal/sanitize"
)

// Phases used in log fields and warnings.
const (
	PhaseFriends    = "friends"
	PhaseCategorize = "categorize"
	PhaseKnowledge  = "knowledge"
	PhasePersist    = "persist"
)

// Status tells how one half of the extraction went.
type Status string

const (
	// StatusOK means the classifier answered with something usable.
	StatusOK Status = "ok"
	// StatusEmpty means there was nothing to find: no names, no labels.
	StatusEmpty Status = "empty"
	// StatusSkipped means the step did not run (blank comment, existing analysis).
	StatusSkipped Status = "skipped"
	// StatusCached means every label came from the knowledge base.
	StatusCached Status = "cached"
	// StatusFailed means the classifier call failed and a fallback was used.
	StatusFailed Status = "failed"
)

// KnowledgeBase is the subset of the knowledge base the extractor uses.
type KnowledgeBase interface {
	LookupActivity(label string) ([]string, bool)
	LookupTraining(label string) (string, bool)
	RecordActivity(label string, categories []string) (bool, error)
	RecordTraining(label, category string) (bool, error)
}

// Corpus is where analyses are persisted.
type Corpus interface {
	Exists(date string) bool
	Save(a *domain.DailyAnalysis) error
}

// Result reports one extraction.
type Result struct {
	Analysis        *domain.DailyAnalysis
	Skipped         bool
	ClassifierCalls int
	Friends         Status
	Categories      Status
	Warnings        []string
}

// Extractor builds Daily Analyses.
type Extractor struct {
	kb      KnowledgeBase
	clf     classifier.Classifier
	corpus  Corpus
	log     logger.Logger
	dogName string
	now     func() time.Time
}

// Option configures an Extractor.
type Option func(*Extractor)

// WithDogName sets the subject dog's name used when a record carries none.
func WithDogName(name string) Option {
	return func(e *Extractor) { e.dogName = strings.TrimSpace(name) }
}

// WithClock replaces time.Now for GeneratedAt.
func WithClock(now func() time.Time) Option {
	return func(e *Extractor) { e.now = now }
}

// New creates an Extractor.
func New(kb KnowledgeBase, clf classifier.Classifier, corpus Corpus, log logger.Logger, opts ...Option) *Extractor {
	if log == nil {
		log = logger.NewNop()
	}
	e := &Extractor{kb: kb, clf: clf, corpus: corpus, log: log, now: time.Now}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Extract produces and persists the analysis for rec. Unless force is set,
// an existing analysis makes this a no-op that calls nothing and writes
// nothing. Classifier failures degrade the result and are reported as
// warnings; the returned error is reserved for failures to persist.
func (e *Extractor) Extract(ctx context.Context, rec *domain.SourceRecord, force bool) (*Result, error) {
	if !force && e.corpus.Exists(rec.Date) {
		return &Result{Skipped: true, Friends: StatusSkipped, Categories: StatusSkipped}, nil
	}

	rec.Normalize()
	grade := rec.Grade.Normalize()
	a := &domain.DailyAnalysis{
		Date:              rec.Date,
		Grade:             rec.Grade,
		GradeValue:        domain.GradeValue(grade),
		Activities:        rec.Activities,
		TrainingSkills:    rec.TrainingSkills,
		PositiveBehaviors: rec.PositiveBehaviors,
		NegativeBehaviors: rec.NegativeBehaviors,
	}
	res := &Result{Analysis: a}
	log := e.log.With(logger.Date(rec.Date))

	a.Friends, res.Friends = e.friends(ctx, rec, res, log)

	if err := e.categorize(ctx, a, res, log); err != nil {
		return res, err
	}

	a.GeneratedAt = e.now().UTC()
	if err := e.corpus.Save(a); err != nil {
		log.Error("failed to save analysis", logger.Phase(PhasePersist), logger.Error(err))
		return res, fmt.Errorf("persist analysis %s: %w", rec.Date, err)
	}
	return res, nil
}

func (e *Extractor) friends(ctx context.Context, rec *domain.SourceRecord, res *Result, log logger.Logger) ([]string, Status) {
	text := sanitize.Comment(rec.Comment)
	if sanitize.Blank(text) {
		return []string{}, StatusSkipped
	}

	res.ClassifierCalls++
	names, err := e.clf.ExtractFriends(ctx, text)
	if err != nil {
		log.Warn("friend extraction failed", logger.Phase(PhaseFriends), logger.Error(err))
		res.Warnings = append(res.Warnings, fmt.Sprintf("%s: %v", PhaseFriends, err))
		return []string{}, StatusFailed
	}

	dogName := strings.TrimSpace(rec.DogName)
	if dogName == "" {
		dogName = e.dogName
	}
	friends := filterFriends(names, dogName)
	if len(friends) == 0 {
		return friends, StatusEmpty
	}
	return friends, StatusOK
}

// filterFriends trims names, drops empties and the dog itself, and removes
// case-insensitive duplicates keeping the first spelling.
func filterFriends(names []string, dogName string) []string {
	out := make([]string, 0, len(names))
	seen := make(map[string]bool, len(names))
	for _, n := range names {
		n = strings.TrimSpace(n)
		if n == "" || (dogName != "" && strings.EqualFold(n, dogName)) {
			continue
		}
		key := strings.ToLower(n)
		if seen[key] {
			continue
		}
		seen[key] = true
		out = append(out, n)
	}
	return out
}

func (e *Extractor) categorize(ctx context.Context, a *domain.DailyAnalysis, res *Result, log logger.Logger) error {
	activities := distinctLabels(a.Activities)
	training := distinctLabels(a.TrainingSkills)

	actCats := make(map[string][]string, len(activities))
	trainCat := make(map[string]string, len(training))
	req := classifier.CategorizeRequest{
		ActivityVocabulary: domain.Vocabulary(domain.AxisActivity),
		TrainingVocabulary: domain.Vocabulary(domain.AxisTraining),
	}
	for _, l := range activities {
		if cats, ok := e.kb.LookupActivity(l); ok {
			actCats[l] = cats
		} else {
			req.Activities = append(req.Activities, l)
		}
	}
	for _, l := range training {
		if cat, ok := e.kb.LookupTraining(l); ok {
			trainCat[l] = cat
		} else {
			req.Training = append(req.Training, l)
		}
	}

	switch {
	case len(activities) == 0 && len(training) == 0:
		res.Categories = StatusEmpty
	case req.Empty():
		res.Categories = StatusCached
	default:
		res.ClassifierCalls++
		got, err := e.clf.Categorize(ctx, req)
		if err != nil {
			log.Warn("categorization failed, using cached mappings only",
				logger.Phase(PhaseCategorize),
				logger.Int("unmapped", len(req.Activities)+len(req.Training)),
				logger.Error(err))
			res.Warnings = append(res.Warnings, fmt.Sprintf("%s: %v", PhaseCategorize, err))
			res.Categories = StatusFailed
			break
		}
		res.Categories = StatusOK
		if err := e.learn(got, req, actCats, trainCat, log); err != nil {
			return err
		}
	}

	a.ActivityCategories = []domain.CategoryAssignment{}
	a.TrainingCategories = []domain.CategoryAssignment{}
	a.Uncategorized = nil
	for _, l := range activities {
		cats, ok := actCats[l]
		if !ok {
			a.Uncategorized = append(a.Uncategorized, l)
			continue
		}
		for _, c := range cats {
			a.ActivityCategories = append(a.ActivityCategories, domain.CategoryAssignment{Item: l, Category: c})
		}
	}
	for _, l := range training {
		cat, ok := trainCat[l]
		if !ok {
			a.Uncategorized = append(a.Uncategorized, l)
			continue
		}
		a.TrainingCategories = append(a.TrainingCategories, domain.CategoryAssignment{Item: l, Category: cat})
	}
	return nil
}

// learn records the classifier's suggestions for labels that were asked
// about. Suggestions outside the vocabulary are dropped; a label left with
// none stays unmapped and is asked about again next time.
func (e *Extractor) learn(
	got *classifier.Categorization,
	req classifier.CategorizeRequest,
	actCats map[string][]string,
	trainCat map[string]string,
	log logger.Logger,
) error {
	if got == nil {
		return nil
	}
	askedAct := toSet(req.Activities)
	for _, s := range got.Activities {
		label := sanitize.Label(s.Label)
		if !askedAct[label] {
			continue
		}
		if _, done := actCats[label]; done {
			continue
		}
		cats := closeOver(s.Categories, domain.IsActivityCategory)
		if len(cats) == 0 {
			log.Debug("no usable activity category", logger.String("label", label), logger.Strings("suggested", s.Categories))
			continue
		}
		if _, err := e.kb.RecordActivity(label, cats); err != nil {
			return knowledgeErr(label, err, log)
		}
		actCats[label] = cats
	}

	askedTrain := toSet(req.Training)
	for _, s := range got.Training {
		label := sanitize.Label(s.Label)
		if !askedTrain[label] {
			continue
		}
		if _, done := trainCat[label]; done {
			continue
		}
		cat := domain.NormalizeCategory(s.Category)
		if !domain.IsTrainingCategory(cat) {
			log.Debug("no usable training category", logger.String("label", label), logger.String("suggested", s.Category))
			continue
		}
		if _, err := e.kb.RecordTraining(label, cat); err != nil {
			return knowledgeErr(label, err, log)
		}
		trainCat[label] = cat
	}
	return nil
}

func knowledgeErr(label string, err error, log logger.Logger) error {
	log.Error("failed to record mapping", logger.Phase(PhaseKnowledge), logger.String("label", label), logger.Error(err))
	return fmt.Errorf("persist knowledge for %q: %w", label, err)
}

// closeOver normalizes categories and keeps those allowed, without duplicates.
func closeOver(cats []string, allowed func(string) bool) []string {
	var out []string
	seen := make(map[string]bool, len(cats))
	for _, c := range cats {
		c = domain.NormalizeCategory(c)
		if !allowed(c) || seen[c] {
			continue
		}
		seen[c] = true
		out = append(out, c)
	}
	return out
}

// distinctLabels trims labels and drops blanks and repeats, keeping order.
func distinctLabels(raw []string) []string {
	var out []string
	seen := make(map[string]bool, len(raw))
	for _, l := range raw {
		l = sanitize.Label(l)
		if l == "" || seen[l] {
			continue
		}
		seen[l] = true
		out = append(out, l)
	}
	return out
}

func toSet(items []string) map[string]bool {
	m := make(map[string]bool, len(items))
	for _, s := range items {
		m[s] = true
	}
	return m
}
