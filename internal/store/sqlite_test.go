package store

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pbaille/reportcard/internal/domain"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := New(filepath.Join(t.TempDir(), "runs.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func sampleRun(id string, started time.Time) *domain.RunReport {
	return &domain.RunReport{
		ID:         id,
		Mode:       "new",
		StartedAt:  started,
		FinishedAt: started.Add(3 * time.Second),
		Candidates: 3,
		Extracted:  1,
		Skipped:    0,
		Failed:     2,
		Warnings:   1,
		Aggregated: true,
		Analyses:   10,
		Outcomes: []domain.DateOutcome{
			{Date: "2025-08-09", Status: domain.OutcomeFailed, Phase: "load", Message: "decode"},
			{Date: "2025-08-08", Status: domain.OutcomeExtracted, Message: "friends: timeout"},
			{Date: "2025-08-10", Status: domain.OutcomeMissing, Phase: "load"},
		},
	}
}

func TestStore_SaveAndGetRun(t *testing.T) {
	s := newTestStore(t)
	started := time.Date(2025, 8, 13, 6, 0, 0, 0, time.UTC)
	run := sampleRun("6f1c9a70-0000-4000-8000-000000000001", started)
	require.NoError(t, s.SaveRun(run))

	got, err := s.GetRun("6f1c9a70")
	require.NoError(t, err)
	assert.Equal(t, run.ID, got.ID)
	assert.Equal(t, "new", got.Mode)
	assert.True(t, got.StartedAt.Equal(started))
	assert.True(t, got.FinishedAt.Equal(started.Add(3*time.Second)))
	assert.Equal(t, 2, got.Failed)
	assert.True(t, got.Aggregated)
	require.Len(t, got.Outcomes, 3)
	assert.Equal(t, "2025-08-08", got.Outcomes[0].Date, "outcomes ordered by date")
	assert.Equal(t, "friends: timeout", got.Outcomes[0].Message)

	dates, err := s.FailedDates(run.ID)
	require.NoError(t, err)
	assert.Equal(t, []string{"2025-08-09", "2025-08-10"}, dates)
}

func TestStore_SaveRunAssignsID(t *testing.T) {
	s := newTestStore(t)
	run := &domain.RunReport{Mode: "aggregate", StartedAt: time.Now(), FinishedAt: time.Now()}
	require.NoError(t, s.SaveRun(run))
	assert.Len(t, run.ID, 36)

	_, err := s.GetRun(run.ID)
	assert.NoError(t, err)
}

func TestStore_SaveRunReplaces(t *testing.T) {
	s := newTestStore(t)
	run := sampleRun("aaaa", time.Now())
	require.NoError(t, s.SaveRun(run))

	run.Outcomes = run.Outcomes[:1]
	run.Error = "no daily analyses to aggregate"
	require.NoError(t, s.SaveRun(run))

	got, err := s.GetRun("aaaa")
	require.NoError(t, err)
	assert.Len(t, got.Outcomes, 1)
	assert.Equal(t, run.Error, got.Error)
}

func TestStore_ListRunsNewestFirst(t *testing.T) {
	s := newTestStore(t)
	base := time.Date(2025, 8, 1, 0, 0, 0, 0, time.UTC)
	for i, id := range []string{"r1", "r2", "r3"} {
		require.NoError(t, s.SaveRun(sampleRun(id, base.Add(time.Duration(i)*time.Hour))))
	}

	runs, err := s.ListRuns(2)
	require.NoError(t, err)
	require.Len(t, runs, 2)
	assert.Equal(t, "r3", runs[0].ID)
	assert.Equal(t, "r2", runs[1].ID)
	assert.Empty(t, runs[0].Outcomes)
}

func TestStore_GetRunErrors(t *testing.T) {
	s := newTestStore(t)
	require.NoError(t, s.SaveRun(sampleRun("abc1", time.Now())))
	require.NoError(t, s.SaveRun(sampleRun("abc2", time.Now())))

	_, err := s.GetRun("abc")
	assert.ErrorIs(t, err, ErrAmbiguousRun)
	_, err = s.GetRun("zzz")
	assert.ErrorIs(t, err, ErrRunNotFound)
	_, err = s.GetRun("")
	assert.ErrorIs(t, err, ErrRunNotFound)
}

func TestStore_GetRunPrefixIsLiteral(t *testing.T) {
	s := newTestStore(t)
	require.NoError(t, s.SaveRun(sampleRun("abc1", time.Now())))

	for _, prefix := range []string{"%", "_", "a_c", "ab%"} {
		_, err := s.GetRun(prefix)
		assert.ErrorIs(t, err, ErrRunNotFound, prefix)
	}

	run, err := s.GetRun("ab")
	require.NoError(t, err)
	assert.Equal(t, "abc1", run.ID)
}
