// Package pipeline drives an analysis run: pick the dates to extract, extract
// them one after the other, then regenerate the aggregates over the whole
// corpus.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/pbaille/reportcard/internal/aggregate"
	"github.com/pbaille/reportcard/internal/corpus"
	"github.com/pbaille/reportcard/internal/domain"
	"github.com/pbaille/reportcard/internal/extractor"
	"github.com/pbaille/reportcard/internal/logger"
	"github.com/pbaille/reportcard/internal/records"
)

// Run modes.
const (
	ModeNew       = "new"
	ModeAll       = "all"
	ModeDate      = "date"
	ModeAggregate = "aggregate"
)

const (
	phaseLoad      = "load"
	phaseAggregate = "aggregate"
)

// ErrInvalidDate is returned for a date that is not YYYY-MM-DD.
var ErrInvalidDate = errors.New("invalid date, expected YYYY-MM-DD")

// Request selects what a run extracts.
type Request struct {
	Mode string
	Date string
}

// RecordSource lists and loads source records.
type RecordSource interface {
	Dates() ([]string, error)
	Get(date string) (*domain.SourceRecord, error)
}

// Corpus holds the persisted analyses and aggregates.
type Corpus interface {
	Dates() ([]string, error)
	LoadAll() ([]domain.DailyAnalysis, []corpus.LoadError, error)
	SaveAggregates(out *aggregate.Outputs, now time.Time) error
}

// Extractor builds the analysis for one record.
type Extractor interface {
	Extract(ctx context.Context, rec *domain.SourceRecord, force bool) (*extractor.Result, error)
}

// History records finished runs.
type History interface {
	SaveRun(report *domain.RunReport) error
}

// Pipeline runs extractions and aggregations.
type Pipeline struct {
	records   RecordSource
	corpus    Corpus
	extractor Extractor
	history   History
	log       logger.Logger
	now       func() time.Time
}

// New creates a Pipeline. history may be nil.
func New(recs RecordSource, c Corpus, ex Extractor, history History, log logger.Logger) *Pipeline {
	if log == nil {
		log = logger.NewNop()
	}
	return &Pipeline{
		records:   recs,
		corpus:    c,
		extractor: ex,
		history:   history,
		log:       log,
		now:       time.Now,
	}
}

// SelectDates returns the candidate dates for req, ascending.
func (p *Pipeline) SelectDates(req Request) ([]string, error) {
	switch req.Mode {
	case "", ModeNew:
		all, err := p.records.Dates()
		if err != nil {
			return nil, err
		}
		done, err := p.corpus.Dates()
		if err != nil {
			return nil, err
		}
		have := make(map[string]bool, len(done))
		for _, d := range done {
			have[d] = true
		}
		var dates []string
		for _, d := range all {
			if !have[d] {
				dates = append(dates, d)
			}
		}
		return dates, nil
	case ModeAll:
		return p.records.Dates()
	case ModeDate:
		if !domain.ValidDate(req.Date) {
			return nil, fmt.Errorf("%w: %q", ErrInvalidDate, req.Date)
		}
		return []string{req.Date}, nil
	default:
		return nil, fmt.Errorf("unknown run mode %q", req.Mode)
	}
}

// Run extracts the selected dates and regenerates the aggregates. Per-date
// problems are tallied in the report, never returned. The error is set when
// the run could not start, was cancelled, or had nothing to aggregate; the
// report is still returned in the last two cases.
func (p *Pipeline) Run(ctx context.Context, req Request) (*domain.RunReport, error) {
	if req.Mode == "" {
		req.Mode = ModeNew
	}
	dates, err := p.SelectDates(req)
	if err != nil {
		return nil, err
	}

	report := p.newReport(req.Mode)
	report.TargetDate = req.Date
	report.Candidates = len(dates)
	force := req.Mode != ModeNew

	p.log.Info("run started",
		logger.String("run_id", report.ID),
		logger.String("mode", req.Mode),
		logger.Int("candidates", len(dates)))

	for _, date := range dates {
		if err := ctx.Err(); err != nil {
			return p.finish(report, fmt.Errorf("run interrupted: %w", err))
		}
		report.Outcomes = append(report.Outcomes, p.extractOne(ctx, report, date, force))
	}

	p.log.Info("extraction finished",
		logger.String("run_id", report.ID),
		logger.Int("extracted", report.Extracted),
		logger.Int("skipped", report.Skipped),
		logger.Int("failed", report.Failed),
		logger.Int("warnings", report.Warnings))

	return p.finish(report, p.aggregate(report))
}

// Aggregate regenerates the aggregates without extracting anything.
func (p *Pipeline) Aggregate(ctx context.Context) (*domain.RunReport, error) {
	report := p.newReport(ModeAggregate)
	if err := ctx.Err(); err != nil {
		return p.finish(report, err)
	}
	return p.finish(report, p.aggregate(report))
}

func (p *Pipeline) extractOne(ctx context.Context, report *domain.RunReport, date string, force bool) domain.DateOutcome {
	log := p.log.With(logger.Date(date))

	rec, err := p.records.Get(date)
	if errors.Is(err, records.ErrNotFound) {
		log.Warn("no source record for date", logger.Phase(phaseLoad))
		report.Failed++
		return domain.DateOutcome{Date: date, Status: domain.OutcomeMissing, Phase: phaseLoad, Message: err.Error()}
	}
	if err != nil {
		log.Warn("failed to load source record", logger.Phase(phaseLoad), logger.Error(err))
		report.Failed++
		return domain.DateOutcome{Date: date, Status: domain.OutcomeFailed, Phase: phaseLoad, Message: err.Error()}
	}

	res, err := p.extractor.Extract(ctx, rec, force)
	if err != nil {
		log.Error("extraction failed", logger.Phase(extractor.PhasePersist), logger.Error(err))
		report.Failed++
		return domain.DateOutcome{Date: date, Status: domain.OutcomeFailed, Phase: extractor.PhasePersist, Message: err.Error()}
	}
	if res.Skipped {
		report.Skipped++
		return domain.DateOutcome{Date: date, Status: domain.OutcomeSkipped}
	}

	report.Extracted++
	report.Warnings += len(res.Warnings)
	log.Debug("extracted",
		logger.String("friends", string(res.Friends)),
		logger.String("categories", string(res.Categories)),
		logger.Int("classifier_calls", res.ClassifierCalls))
	return domain.DateOutcome{Date: date, Status: domain.OutcomeExtracted, Message: strings.Join(res.Warnings, "; ")}
}

func (p *Pipeline) aggregate(report *domain.RunReport) error {
	analyses, bad, err := p.corpus.LoadAll()
	if err != nil {
		return fmt.Errorf("load corpus: %w", err)
	}
	for _, b := range bad {
		p.log.Warn("excluding malformed analysis",
			logger.Date(b.Date),
			logger.Phase(phaseAggregate),
			logger.Error(b.Err))
	}
	report.Excluded = len(bad)
	report.Analyses = len(analyses)

	out, err := aggregate.Aggregate(analyses)
	if err != nil {
		return err
	}
	if err := p.corpus.SaveAggregates(out, p.now()); err != nil {
		return fmt.Errorf("save aggregates: %w", err)
	}
	report.Aggregated = true
	return nil
}

func (p *Pipeline) newReport(mode string) *domain.RunReport {
	return &domain.RunReport{
		ID:        uuid.NewString(),
		Mode:      mode,
		StartedAt: p.now().UTC(),
	}
}

func (p *Pipeline) finish(report *domain.RunReport, err error) (*domain.RunReport, error) {
	report.FinishedAt = p.now().UTC()
	if err != nil {
		report.Error = err.Error()
		p.log.Error("run failed", logger.String("run_id", report.ID), logger.Error(err))
	} else {
		p.log.Info("run finished",
			logger.String("run_id", report.ID),
			logger.Int("analyses", report.Analyses),
			logger.Int("excluded", report.Excluded))
	}

	if p.history != nil {
		if herr := p.history.SaveRun(report); herr != nil {
			p.log.Warn("failed to record run history", logger.String("run_id", report.ID), logger.Error(herr))
		}
	}
	return report, err
}
