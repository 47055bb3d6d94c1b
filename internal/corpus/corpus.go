// Package corpus persists the derived documents: one Daily Analysis per date
// under <dir>/daily and the regenerated aggregate outputs under <dir>/aggregates.
package corpus

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/pbaille/reportcard/internal/aggregate"
	"github.com/pbaille/reportcard/internal/domain"
	"github.com/pbaille/reportcard/internal/jsonfile"
)

const (
	dailyDir     = "daily"
	aggregateDir = "aggregates"
)

// Aggregate document names, without extension.
const (
	GradeTrends = "grade_trends"
	Friends     = "friends"
	Activities  = "activities"
	Training    = "training"
	Behavior    = "behavior"
	Charts      = "charts"
	Summary     = "summary"
)

// AggregateNames lists every aggregate document written by SaveAggregates.
var AggregateNames = []string{GradeTrends, Friends, Activities, Training, Behavior, Charts, Summary}

// ErrNotFound is returned when a requested document does not exist.
var ErrNotFound = errors.New("document not found")

// Store reads and writes the analysis corpus.
type Store struct {
	dir string
}

// LoadError describes a Daily Analysis file that could not be decoded.
type LoadError struct {
	Date string
	Err  error
}

func (e LoadError) Error() string {
	return fmt.Sprintf("%s: %v", e.Date, e.Err)
}

// SummaryDoc is the summary.json document.
type SummaryDoc struct {
	Records     int       `json:"records"`
	FirstDate   string    `json:"first_date"`
	LastDate    string    `json:"last_date"`
	GeneratedAt time.Time `json:"generated_at"`
}

// New returns a Store rooted at dir.
func New(dir string) *Store {
	return &Store{dir: dir}
}

// Dir returns the root directory.
func (s *Store) Dir() string { return s.dir }

// Path returns where the analysis for date lives.
func (s *Store) Path(date string) string {
	return filepath.Join(s.dir, dailyDir, date+".json")
}

// Exists reports whether an analysis is persisted for date. An unreadable
// file still counts as present.
func (s *Store) Exists(date string) bool {
	_, err := os.Stat(s.Path(date))
	return err == nil
}

// Get loads the analysis for date.
func (s *Store) Get(date string) (*domain.DailyAnalysis, error) {
	var a domain.DailyAnalysis
	err := jsonfile.Read(s.Path(date), &a)
	if errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("%w: analysis %s", ErrNotFound, date)
	}
	if err != nil {
		return nil, fmt.Errorf("read analysis %s: %w", date, err)
	}
	if a.Date == "" {
		a.Date = date
	}
	a.Normalize()
	return &a, nil
}

// Save writes the analysis atomically, replacing any previous one.
func (s *Store) Save(a *domain.DailyAnalysis) error {
	if !domain.ValidDate(a.Date) {
		return fmt.Errorf("save analysis: invalid date %q", a.Date)
	}
	a.Normalize()
	if err := jsonfile.Write(s.Path(a.Date), a); err != nil {
		return fmt.Errorf("save analysis %s: %w", a.Date, err)
	}
	return nil
}

// Dates lists every persisted analysis date, ascending.
func (s *Store) Dates() ([]string, error) {
	entries, err := os.ReadDir(filepath.Join(s.dir, dailyDir))
	if errors.Is(err, os.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("list analyses: %w", err)
	}

	var dates []string
	for _, e := range entries {
		date, ok := strings.CutSuffix(e.Name(), ".json")
		if !ok || e.IsDir() || !domain.ValidDate(date) {
			continue
		}
		dates = append(dates, date)
	}
	sort.Strings(dates)
	return dates, nil
}

// LoadAll reads the full corpus in date order. Files that fail to decode are
// returned as LoadErrors and left out of the result.
func (s *Store) LoadAll() ([]domain.DailyAnalysis, []LoadError, error) {
	dates, err := s.Dates()
	if err != nil {
		return nil, nil, err
	}

	analyses := make([]domain.DailyAnalysis, 0, len(dates))
	var bad []LoadError
	for _, date := range dates {
		a, err := s.Get(date)
		if err != nil {
			bad = append(bad, LoadError{Date: date, Err: err})
			continue
		}
		analyses = append(analyses, *a)
	}
	return analyses, bad, nil
}

// AggregatePath returns where the named aggregate document lives.
func (s *Store) AggregatePath(name string) string {
	return filepath.Join(s.dir, aggregateDir, name+".json")
}

// SaveAggregates rewrites every aggregate document from out.
func (s *Store) SaveAggregates(out *aggregate.Outputs, now time.Time) error {
	summary := SummaryDoc{
		Records:     out.Records,
		FirstDate:   out.FirstDate,
		LastDate:    out.LastDate,
		GeneratedAt: now.UTC(),
	}
	docs := map[string]any{
		GradeTrends: out.Grades,
		Friends:     out.Friends,
		Activities:  out.Activities,
		Training:    out.Training,
		Behavior:    out.Behavior,
		Charts:      out.Charts,
		Summary:     summary,
	}
	for _, name := range AggregateNames {
		if err := jsonfile.Write(s.AggregatePath(name), docs[name]); err != nil {
			return fmt.Errorf("save aggregate %s: %w", name, err)
		}
	}
	return nil
}

// LoadAggregate decodes the named aggregate document into v.
func (s *Store) LoadAggregate(name string, v any) error {
	if !knownAggregate(name) {
		return fmt.Errorf("%w: aggregate %q", ErrNotFound, name)
	}
	err := jsonfile.Read(s.AggregatePath(name), v)
	if errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("%w: aggregate %s", ErrNotFound, name)
	}
	return err
}

func knownAggregate(name string) bool {
	for _, n := range AggregateNames {
		if n == name {
			return true
		}
	}
	return false
}
