package extractor

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pbaille/reportcard/internal/corpus"
	"github.com/pbaille/reportcard/internal/domain"
	"github.com/pbaille/reportcard/internal/knowledge"
	"github.com/pbaille/reportcard/internal/testhelpers"
)

var fixedNow = time.Date(2025, 8, 13, 6, 0, 0, 0, time.UTC)

type fixture struct {
	kb     *knowledge.Base
	clf    *testhelpers.FakeClassifier
	corpus *corpus.Store
	ex     *Extractor
	dir    string
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	dir := t.TempDir()
	kb, err := knowledge.Load(filepath.Join(dir, "knowledge"), nil)
	require.NoError(t, err)
	f := &fixture{
		kb:     kb,
		clf:    testhelpers.NewFakeClassifier(),
		corpus: corpus.New(dir),
		dir:    dir,
	}
	f.ex = New(f.kb, f.clf, f.corpus, nil, WithDogName("Buddy"), WithClock(func() time.Time { return fixedNow }))
	return f
}

func TestExtract_FullRecord(t *testing.T) {
	f := newFixture(t)
	f.clf.Friends["Buddy played with Max and Luna"] = []string{"Buddy", "Max", "Luna"}
	f.clf.Activities["Pool time"] = []string{"playtime", "Outdoor"}
	f.clf.Training["Sit"] = "obedience_commands"

	rec := &domain.SourceRecord{
		Date:              "2025-08-08",
		Grade:             "A",
		Activities:        []string{"Pool time"},
		TrainingSkills:    []string{"Sit"},
		Comment:           "Buddy played with Max and Luna",
		PositiveBehaviors: []string{"Calm"},
	}
	res, err := f.ex.Extract(context.Background(), rec, false)
	require.NoError(t, err)

	want := &domain.DailyAnalysis{
		Date:              "2025-08-08",
		Grade:             "A",
		GradeValue:        4,
		Friends:           []string{"Max", "Luna"},
		Activities:        []string{"Pool time"},
		TrainingSkills:    []string{"Sit"},
		PositiveBehaviors: []string{"Calm"},
		NegativeBehaviors: []string{},
		ActivityCategories: []domain.CategoryAssignment{
			{Item: "Pool time", Category: "playtime"},
			{Item: "Pool time", Category: "outdoor"},
		},
		TrainingCategories: []domain.CategoryAssignment{
			{Item: "Sit", Category: "obedience_commands"},
		},
		GeneratedAt: fixedNow,
	}
	got, err := f.corpus.Get("2025-08-08")
	require.NoError(t, err)
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("persisted analysis mismatch (-want +got):\n%s", diff)
	}

	assert.False(t, res.Skipped)
	assert.Equal(t, 2, res.ClassifierCalls)
	assert.Equal(t, StatusOK, res.Friends)
	assert.Equal(t, StatusOK, res.Categories)
	assert.Empty(t, res.Warnings)

	cats, ok := f.kb.LookupActivity("Pool time")
	require.True(t, ok)
	assert.Equal(t, []string{"playtime", "outdoor"}, cats)
}

func TestExtract_IdempotentWithoutForce(t *testing.T) {
	f := newFixture(t)
	f.clf.Friends["Max again!"] = []string{"Max"}
	f.clf.Activities["Nap"] = []string{"rest"}
	rec := domain.SourceRecord{Date: "2025-08-12", Grade: "A", Comment: "Max again!", Activities: []string{"Nap"}}

	first := rec
	_, err := f.ex.Extract(context.Background(), &first, false)
	require.NoError(t, err)
	before, err := f.corpus.Get("2025-08-12")
	require.NoError(t, err)
	f.clf.Reset()

	second := rec
	res, err := f.ex.Extract(context.Background(), &second, false)
	require.NoError(t, err)
	assert.True(t, res.Skipped)
	assert.Nil(t, res.Analysis)
	assert.Equal(t, 0, res.ClassifierCalls)
	assert.Equal(t, 0, f.clf.Calls())

	after, err := f.corpus.Get("2025-08-12")
	require.NoError(t, err)
	assert.Empty(t, cmp.Diff(before, after))
}

func TestExtract_CacheMonotonicity(t *testing.T) {
	f := newFixture(t)
	f.clf.Activities["played with my favorite toy"] = []string{"playtime"}

	day1 := &domain.SourceRecord{Date: "2025-08-08", Grade: "A", Activities: []string{"played with my favorite toy"}}
	res, err := f.ex.Extract(context.Background(), day1, false)
	require.NoError(t, err)
	assert.Equal(t, 1, f.clf.CategorizeCalls)
	assert.Equal(t, 1, res.ClassifierCalls)

	day2 := &domain.SourceRecord{Date: "2025-08-09", Grade: "B", Activities: []string{"played with my favorite toy"}}
	res, err = f.ex.Extract(context.Background(), day2, false)
	require.NoError(t, err)
	assert.Equal(t, 1, f.clf.CategorizeCalls, "known label is never sent again")
	assert.Equal(t, 0, res.ClassifierCalls)
	assert.Equal(t, StatusCached, res.Categories)
	assert.Equal(t, []domain.CategoryAssignment{{Item: "played with my favorite toy", Category: "playtime"}},
		res.Analysis.ActivityCategories)

	// A reloaded knowledge base still knows it.
	kb, err := knowledge.Load(filepath.Join(f.dir, "knowledge"), nil)
	require.NoError(t, err)
	ex := New(kb, f.clf, f.corpus, nil)
	res, err = ex.Extract(context.Background(), day1, true)
	require.NoError(t, err)
	assert.Equal(t, 1, f.clf.CategorizeCalls)
	assert.Equal(t, StatusCached, res.Categories)
}

func TestExtract_ForceRewritesButReusesKnowledge(t *testing.T) {
	f := newFixture(t)
	f.clf.Activities["Pool time"] = []string{"playtime"}
	rec := &domain.SourceRecord{Date: "2025-08-08", Grade: "B", Activities: []string{"Pool time"}}
	_, err := f.ex.Extract(context.Background(), rec, false)
	require.NoError(t, err)

	later := fixedNow.Add(24 * time.Hour)
	f.ex.now = func() time.Time { return later }
	f.clf.Reset()

	res, err := f.ex.Extract(context.Background(), rec, true)
	require.NoError(t, err)
	assert.False(t, res.Skipped)
	assert.Equal(t, 0, f.clf.Calls())

	got, err := f.corpus.Get("2025-08-08")
	require.NoError(t, err)
	assert.True(t, got.GeneratedAt.Equal(later), "forced run overwrites the analysis")
}

func TestExtract_SelfNameFilteredAndDeduped(t *testing.T) {
	f := newFixture(t)
	f.clf.Friends["fun day"] = []string{" max ", "BUDDY", "Max", "", "buddy", "Luna", "MAX"}

	res, err := f.ex.Extract(context.Background(), &domain.SourceRecord{Date: "2025-08-08", Comment: "fun day"}, false)
	require.NoError(t, err)
	assert.Equal(t, []string{"max", "Luna"}, res.Analysis.Friends)
}

func TestExtract_RecordDogNameWins(t *testing.T) {
	f := newFixture(t)
	f.clf.Friends["fun day"] = []string{"Buddy", "Rex"}

	res, err := f.ex.Extract(context.Background(),
		&domain.SourceRecord{Date: "2025-08-08", DogName: "rex", Comment: "fun day"}, false)
	require.NoError(t, err)
	assert.Equal(t, []string{"Buddy"}, res.Analysis.Friends)
}

func TestExtract_BlankCommentSkipsClassifier(t *testing.T) {
	f := newFixture(t)

	for _, comment := range []string{"", "   \n\t", "<p> </p>", "&nbsp;<br>"} {
		res, err := f.ex.Extract(context.Background(), &domain.SourceRecord{Date: "2025-08-09", Grade: "B", Comment: comment}, true)
		require.NoError(t, err)
		assert.Equal(t, StatusSkipped, res.Friends)
		assert.Equal(t, StatusEmpty, res.Categories)
		assert.Equal(t, []string{}, res.Analysis.Friends)
	}
	assert.Equal(t, 0, f.clf.Calls())
}

func TestExtract_NoFriendsFoundIsNotAFailure(t *testing.T) {
	f := newFixture(t)

	res, err := f.ex.Extract(context.Background(), &domain.SourceRecord{Date: "2025-08-09", Comment: "napped"}, false)
	require.NoError(t, err)
	assert.Equal(t, StatusEmpty, res.Friends)
	assert.Empty(t, res.Warnings)
}

func TestExtract_FriendFailureTolerated(t *testing.T) {
	f := newFixture(t)
	f.clf.FailFriends = true
	f.clf.Activities["Nap"] = []string{"rest"}

	res, err := f.ex.Extract(context.Background(),
		&domain.SourceRecord{Date: "2025-08-08", Grade: "A", Comment: "played with Max", Activities: []string{"Nap"}}, false)
	require.NoError(t, err)
	assert.Equal(t, StatusFailed, res.Friends)
	assert.Equal(t, StatusOK, res.Categories)
	require.Len(t, res.Warnings, 1)
	assert.Contains(t, res.Warnings[0], PhaseFriends)

	got, err := f.corpus.Get("2025-08-08")
	require.NoError(t, err)
	assert.Empty(t, got.Friends)
	assert.Len(t, got.ActivityCategories, 1)
}

func TestExtract_CategorizeFailureFallsBackToCache(t *testing.T) {
	f := newFixture(t)
	_, err := f.kb.RecordActivity("Nap", []string{"rest"})
	require.NoError(t, err)
	f.clf.FailCategorize = true

	rec := &domain.SourceRecord{Date: "2025-08-08", Activities: []string{"Nap", "Agility course"}, TrainingSkills: []string{"Stay"}}
	res, err := f.ex.Extract(context.Background(), rec, false)
	require.NoError(t, err)

	assert.Equal(t, StatusFailed, res.Categories)
	assert.Equal(t, []domain.CategoryAssignment{{Item: "Nap", Category: "rest"}}, res.Analysis.ActivityCategories)
	assert.Empty(t, res.Analysis.TrainingCategories)
	assert.Equal(t, []string{"Agility course", "Stay"}, res.Analysis.Uncategorized)
	assert.Equal(t, []string{"Nap", "Agility course"}, res.Analysis.Activities, "raw labels kept")

	_, known := f.kb.LookupActivity("Agility course")
	assert.False(t, known, "failed labels stay unmapped so they are retried")

	// Next run retries just the unmapped labels, in a single call.
	f.clf.FailCategorize = false
	f.clf.Activities["Agility course"] = []string{"enrichment"}
	f.clf.Training["Stay"] = "impulse_control_and_focus"
	f.clf.Reset()
	res, err = f.ex.Extract(context.Background(), rec, true)
	require.NoError(t, err)
	require.Len(t, f.clf.Requests, 1)
	assert.Equal(t, []string{"Agility course"}, f.clf.Requests[0].Activities)
	assert.Equal(t, []string{"Stay"}, f.clf.Requests[0].Training)
	assert.Empty(t, res.Analysis.Uncategorized)
}

func TestExtract_CategoryClosure(t *testing.T) {
	f := newFixture(t)
	f.clf.Activities["Pool time"] = []string{"swimming", "playtime", "PLAYTIME"}
	f.clf.Activities["Mystery"] = []string{"dancing"}
	f.clf.Training["Spin"] = "tricks"

	rec := &domain.SourceRecord{Date: "2025-08-08", Activities: []string{"Pool time", "Mystery"}, TrainingSkills: []string{"Spin"}}
	res, err := f.ex.Extract(context.Background(), rec, false)
	require.NoError(t, err)

	for _, ca := range res.Analysis.ActivityCategories {
		assert.True(t, domain.IsActivityCategory(ca.Category), ca.Category)
	}
	assert.Equal(t, []domain.CategoryAssignment{{Item: "Pool time", Category: "playtime"}}, res.Analysis.ActivityCategories)
	assert.Empty(t, res.Analysis.TrainingCategories)
	assert.Equal(t, []string{"Mystery", "Spin"}, res.Analysis.Uncategorized)

	_, known := f.kb.LookupActivity("Mystery")
	assert.False(t, known)
	_, known = f.kb.LookupTraining("Spin")
	assert.False(t, known)
}

func TestExtract_OneCombinedRequestAndDuplicateLabels(t *testing.T) {
	f := newFixture(t)
	f.clf.Activities["Fetch"] = []string{"playtime"}
	f.clf.Training["Sit"] = "obedience_commands"

	rec := &domain.SourceRecord{
		Date:           "2025-08-08",
		Activities:     []string{"Fetch", " Fetch ", "Fetch"},
		TrainingSkills: []string{"Sit", "Sit"},
	}
	res, err := f.ex.Extract(context.Background(), rec, false)
	require.NoError(t, err)

	require.Len(t, f.clf.Requests, 1)
	assert.Equal(t, []string{"Fetch"}, f.clf.Requests[0].Activities)
	assert.Equal(t, []string{"Sit"}, f.clf.Requests[0].Training)
	assert.Equal(t, domain.ActivityCategories, f.clf.Requests[0].ActivityVocabulary)
	assert.Equal(t, domain.TrainingCategories, f.clf.Requests[0].TrainingVocabulary)

	assert.Len(t, res.Analysis.Activities, 3)
	assert.Equal(t, []domain.CategoryAssignment{{Item: "Fetch", Category: "playtime"}}, res.Analysis.ActivityCategories)
	assert.Equal(t, []domain.CategoryAssignment{{Item: "Sit", Category: "obedience_commands"}}, res.Analysis.TrainingCategories)
}

func TestExtract_UnknownGradeIsZero(t *testing.T) {
	f := newFixture(t)
	res, err := f.ex.Extract(context.Background(), &domain.SourceRecord{Date: "2025-08-08", Grade: "E"}, false)
	require.NoError(t, err)
	assert.Equal(t, domain.Grade("E"), res.Analysis.Grade)
	assert.Equal(t, 0.0, res.Analysis.GradeValue)
}

type failingCorpus struct{}

func (failingCorpus) Exists(string) bool { return false }
func (failingCorpus) Save(*domain.DailyAnalysis) error { return errors.New("disk full") }

func TestExtract_PersistFailureIsReturned(t *testing.T) {
	f := newFixture(t)
	ex := New(f.kb, f.clf, failingCorpus{}, nil)

	_, err := ex.Extract(context.Background(), &domain.SourceRecord{Date: "2025-08-08"}, false)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "disk full")
}

func TestFilterFriends(t *testing.T) {
	assert.Equal(t, []string{}, filterFriends(nil, "Buddy"))
	assert.Equal(t, []string{"Buddy"}, filterFriends([]string{"Buddy"}, ""))
}
