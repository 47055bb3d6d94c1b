// Package records reads the scraped report cards, one JSON document per date
// at <dir>/<YYYY>/<YYYY-MM-DD>.json. The scraper owns these files; nothing
// here writes them.
package records

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/pbaille/reportcard/internal/domain"
	"github.com/pbaille/reportcard/internal/jsonfile"
	"github.com/pbaille/reportcard/internal/logger"
)

const phaseLoad = "load"

// ErrNotFound is returned when no record exists for a date.
var ErrNotFound = errors.New("source record not found")

// Store gives read access to source records.
type Store struct {
	dir string
	log logger.Logger
}

// New returns a Store rooted at dir. A nil log discards warnings.
func New(dir string, log logger.Logger) *Store {
	if log == nil {
		log = logger.NewNop()
	}
	return &Store{dir: dir, log: log}
}

// Path returns where the record for date lives.
func (s *Store) Path(date string) string {
	year := date
	if len(date) >= 4 {
		year = date[:4]
	}
	return filepath.Join(s.dir, year, date+".json")
}

// Dates lists every date with a record, ascending. A missing root directory
// yields an empty list; files that are not named YYYY-MM-DD.json are ignored.
func (s *Store) Dates() ([]string, error) {
	years, err := os.ReadDir(s.dir)
	if errors.Is(err, os.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("list records: %w", err)
	}

	var dates []string
	for _, y := range years {
		if !y.IsDir() {
			continue
		}
		files, err := os.ReadDir(filepath.Join(s.dir, y.Name()))
		if err != nil {
			return nil, fmt.Errorf("list records for %s: %w", y.Name(), err)
		}
		for _, f := range files {
			date, ok := strings.CutSuffix(f.Name(), ".json")
			if !ok || f.IsDir() || !domain.ValidDate(date) || !strings.HasPrefix(date, y.Name()) {
				continue
			}
			dates = append(dates, date)
		}
	}

	sort.Strings(dates)
	return dates, nil
}

// Get loads the record for date. Absent lists come back empty. The file key
// is the record's date: a date field in the body that disagrees with it is
// logged and replaced.
func (s *Store) Get(date string) (*domain.SourceRecord, error) {
	var rec domain.SourceRecord
	err := jsonfile.Read(s.Path(date), &rec)
	if errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, date)
	}
	if err != nil {
		return nil, fmt.Errorf("read record %s: %w", date, err)
	}

	if rec.Date != date {
		if rec.Date != "" {
			s.log.Warn("record date disagrees with its file name, using the file name",
				logger.Date(date), logger.Phase(phaseLoad), logger.String("body_date", rec.Date))
		}
		rec.Date = date
	}
	rec.Normalize()
	return &rec, nil
}
