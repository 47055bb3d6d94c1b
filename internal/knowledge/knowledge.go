// Package knowledge holds the learned label-to-category mappings.
//
// Two documents live under the knowledge directory: activity labels map to one
// or more activity categories, training labels map to exactly one training
// category. Recording is append-only: once a label is known it is reused and
// never re-resolved, unless it is changed through Override or Forget.
package knowledge

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"sync"

	"github.com/titanous/json5"

	"github.com/pbaille/reportcard/internal/domain"
	"github.com/pbaille/reportcard/internal/jsonfile"
	"github.com/pbaille/reportcard/internal/logger"
)

const (
	ActivityFile = "activity_categories.json"
	TrainingFile = "training_categories.json"
)

// ErrUnknownCategory is returned when no category of a mapping belongs to the
// closed vocabulary of its axis.
var ErrUnknownCategory = errors.New("unknown category")

// Base is the in-memory knowledge base with its on-disk location.
type Base struct {
	mu         sync.Mutex
	dir        string
	activities map[string][]string
	training   map[string]string
	log        logger.Logger
}

// Entry is one mapping, used for listings.
type Entry struct {
	Label      string   `json:"label"`
	Categories []string `json:"categories"`
}

// Stats counts known labels per axis.
type Stats struct {
	Activities int `json:"activities"`
	Training   int `json:"training"`
}

// Load reads both mapping files from dir. Missing files start empty. A file
// that cannot be parsed is moved aside to <file>.corrupt and treated as empty,
// so its labels are resolved again. Entries that are malformed or use no
// known category are skipped.
func Load(dir string, log logger.Logger) (*Base, error) {
	if log == nil {
		log = logger.NewNop()
	}
	b := &Base{
		dir:        dir,
		activities: make(map[string][]string),
		training:   make(map[string]string),
		log:        log,
	}

	raw, err := b.readRaw(ActivityFile)
	if err != nil {
		return nil, err
	}
	for label, v := range raw {
		cats := filterCategories(asStrings(v), domain.IsActivityCategory)
		if label == "" || len(cats) == 0 {
			log.Warn("skipping invalid activity mapping", logger.String("label", label), logger.Phase("knowledge"))
			continue
		}
		b.activities[label] = cats
	}

	raw, err = b.readRaw(TrainingFile)
	if err != nil {
		return nil, err
	}
	for label, v := range raw {
		cats := filterCategories(asStrings(v), domain.IsTrainingCategory)
		if label == "" || len(cats) == 0 {
			log.Warn("skipping invalid training mapping", logger.String("label", label), logger.Phase("knowledge"))
			continue
		}
		b.training[label] = cats[0]
	}

	log.Debug("knowledge base loaded",
		logger.Int("activities", len(b.activities)),
		logger.Int("training", len(b.training)))
	return b, nil
}

// LookupActivity returns the categories recorded for an activity label.
func (b *Base) LookupActivity(label string) ([]string, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	cats, ok := b.activities[label]
	if !ok {
		return nil, false
	}
	return append([]string(nil), cats...), true
}

// LookupTraining returns the category recorded for a training label.
func (b *Base) LookupTraining(label string) (string, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	cat, ok := b.training[label]
	return cat, ok
}

// RecordActivity adds a new activity mapping and flushes it to disk. It
// reports false without touching anything when the label is already known.
// Categories outside the vocabulary are dropped.
func (b *Base) RecordActivity(label string, categories []string) (bool, error) {
	cats := filterCategories(categories, domain.IsActivityCategory)
	if len(cats) == 0 {
		return false, fmt.Errorf("record activity %q: %w", label, ErrUnknownCategory)
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	if _, ok := b.activities[label]; ok {
		return false, nil
	}

	b.activities[label] = cats
	if err := b.saveActivitiesLocked(); err != nil {
		delete(b.activities, label)
		return false, err
	}
	return true, nil
}

// RecordTraining adds a new training mapping and flushes it to disk. It
// reports false without touching anything when the label is already known.
func (b *Base) RecordTraining(label, category string) (bool, error) {
	category = domain.NormalizeCategory(category)
	if !domain.IsTrainingCategory(category) {
		return false, fmt.Errorf("record training %q as %q: %w", label, category, ErrUnknownCategory)
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	if _, ok := b.training[label]; ok {
		return false, nil
	}

	b.training[label] = category
	if err := b.saveTrainingLocked(); err != nil {
		delete(b.training, label)
		return false, err
	}
	return true, nil
}

// OverrideActivity replaces (or creates) an activity mapping.
func (b *Base) OverrideActivity(label string, categories []string) error {
	cats := filterCategories(categories, domain.IsActivityCategory)
	if len(cats) == 0 || len(cats) != len(filterCategories(categories, func(string) bool { return true })) {
		return fmt.Errorf("override activity %q: %w", label, ErrUnknownCategory)
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	prev, existed := b.activities[label]
	b.activities[label] = cats
	if err := b.saveActivitiesLocked(); err != nil {
		if existed {
			b.activities[label] = prev
		} else {
			delete(b.activities, label)
		}
		return err
	}
	return nil
}

// OverrideTraining replaces (or creates) a training mapping.
func (b *Base) OverrideTraining(label, category string) error {
	category = domain.NormalizeCategory(category)
	if !domain.IsTrainingCategory(category) {
		return fmt.Errorf("override training %q as %q: %w", label, category, ErrUnknownCategory)
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	prev, existed := b.training[label]
	b.training[label] = category
	if err := b.saveTrainingLocked(); err != nil {
		if existed {
			b.training[label] = prev
		} else {
			delete(b.training, label)
		}
		return err
	}
	return nil
}

// Forget removes a mapping so the label is resolved again on its next
// appearance. It reports whether the label was known.
func (b *Base) Forget(axis domain.Axis, label string) (bool, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	switch axis {
	case domain.AxisActivity:
		prev, ok := b.activities[label]
		if !ok {
			return false, nil
		}
		delete(b.activities, label)
		if err := b.saveActivitiesLocked(); err != nil {
			b.activities[label] = prev
			return false, err
		}
	case domain.AxisTraining:
		prev, ok := b.training[label]
		if !ok {
			return false, nil
		}
		delete(b.training, label)
		if err := b.saveTrainingLocked(); err != nil {
			b.training[label] = prev
			return false, err
		}
	default:
		return false, fmt.Errorf("unknown axis %q", axis)
	}
	return true, nil
}

// Save writes both documents.
func (b *Base) Save() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if err := b.saveActivitiesLocked(); err != nil {
		return err
	}
	return b.saveTrainingLocked()
}

// Stats returns the number of known labels per axis.
func (b *Base) Stats() Stats {
	b.mu.Lock()
	defer b.mu.Unlock()
	return Stats{Activities: len(b.activities), Training: len(b.training)}
}

// ActivityEntries lists activity mappings sorted by label.
func (b *Base) ActivityEntries() []Entry {
	b.mu.Lock()
	defer b.mu.Unlock()
	entries := make([]Entry, 0, len(b.activities))
	for label, cats := range b.activities {
		entries = append(entries, Entry{Label: label, Categories: append([]string(nil), cats...)})
	}
	sort.Slice(entries, func(i, j int) bool { return entries[i].Label < entries[j].Label })
	return entries
}

// TrainingEntries lists training mappings sorted by label.
func (b *Base) TrainingEntries() []Entry {
	b.mu.Lock()
	defer b.mu.Unlock()
	entries := make([]Entry, 0, len(b.training))
	for label, cat := range b.training {
		entries = append(entries, Entry{Label: label, Categories: []string{cat}})
	}
	sort.Slice(entries, func(i, j int) bool { return entries[i].Label < entries[j].Label })
	return entries
}

func (b *Base) saveActivitiesLocked() error {
	path := filepath.Join(b.dir, ActivityFile)
	if err := jsonfile.Write(path, b.activities); err != nil {
		return fmt.Errorf("save activity mappings: %w", err)
	}
	return nil
}

func (b *Base) saveTrainingLocked() error {
	path := filepath.Join(b.dir, TrainingFile)
	if err := jsonfile.Write(path, b.training); err != nil {
		return fmt.Errorf("save training mappings: %w", err)
	}
	return nil
}

// readRaw parses one mapping file leniently. Hand-edited files may carry
// comments, unquoted keys or trailing commas.
func (b *Base) readRaw(name string) (map[string]any, error) {
	path := filepath.Join(b.dir, name)
	data, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", name, err)
	}

	var raw map[string]any
	if err := json5.Unmarshal(data, &raw); err != nil {
		aside := path + ".corrupt"
		b.log.Warn("knowledge file is malformed, starting it empty",
			logger.String("file", name),
			logger.String("moved_to", aside),
			logger.Phase("knowledge"),
			logger.Error(err))
		if rerr := os.Rename(path, aside); rerr != nil {
			return nil, fmt.Errorf("move aside %s: %w", name, rerr)
		}
		return nil, nil
	}
	return raw, nil
}

// asStrings accepts either a string or a list of strings.
func asStrings(v any) []string {
	switch t := v.(type) {
	case string:
		return []string{t}
	case []any:
		out := make([]string, 0, len(t))
		for _, item := range t {
			s, ok := item.(string)
			if !ok {
				return nil
			}
			out = append(out, s)
		}
		return out
	default:
		return nil
	}
}

func filterCategories(cats []string, allowed func(string) bool) []string {
	normalized := make([]string, len(cats))
	for i, c := range cats {
		normalized[i] = domain.NormalizeCategory(c)
	}
	var out []string
	for _, c := range dedupe(normalized) {
		if allowed(c) {
			out = append(out, c)
		}
	}
	return out
}

func dedupe(items []string) []string {
	seen := make(map[string]bool, len(items))
	out := make([]string, 0, len(items))
	for _, s := range items {
		if seen[s] {
			continue
		}
		seen[s] = true
		out = append(out, s)
	}
	return out
}
