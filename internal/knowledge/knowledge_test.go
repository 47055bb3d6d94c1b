package knowledge

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pbaille/reportcard/internal/domain"
	"github.com/pbaille/reportcard/internal/jsonfile"
)

func TestLoad_EmptyDirectory(t *testing.T) {
	kb, err := Load(filepath.Join(t.TempDir(), "knowledge"), nil)
	require.NoError(t, err)

	_, ok := kb.LookupActivity("Fetch")
	assert.False(t, ok)
	assert.Equal(t, Stats{}, kb.Stats())
}

func TestRecordActivity_FlushesImmediately(t *testing.T) {
	dir := t.TempDir()
	kb, err := Load(dir, nil)
	require.NoError(t, err)

	added, err := kb.RecordActivity("played with my favorite toy", []string{"playtime", "Enrichment"})
	require.NoError(t, err)
	assert.True(t, added)

	var onDisk map[string][]string
	require.NoError(t, jsonfile.Read(filepath.Join(dir, ActivityFile), &onDisk))
	assert.Equal(t, []string{"playtime", "enrichment"}, onDisk["played with my favorite toy"])

	reloaded, err := Load(dir, nil)
	require.NoError(t, err)
	cats, ok := reloaded.LookupActivity("played with my favorite toy")
	require.True(t, ok)
	assert.Equal(t, []string{"playtime", "enrichment"}, cats)
}

func TestRecordActivity_NeverOverwrites(t *testing.T) {
	kb, err := Load(t.TempDir(), nil)
	require.NoError(t, err)

	_, err = kb.RecordActivity("Fetch", []string{"playtime"})
	require.NoError(t, err)

	added, err := kb.RecordActivity("Fetch", []string{"outdoor"})
	require.NoError(t, err)
	assert.False(t, added)

	cats, _ := kb.LookupActivity("Fetch")
	assert.Equal(t, []string{"playtime"}, cats)
}

func TestRecordActivity_RejectsUnknownCategories(t *testing.T) {
	kb, err := Load(t.TempDir(), nil)
	require.NoError(t, err)

	_, err = kb.RecordActivity("Nap", []string{"sleeping"})
	assert.True(t, errors.Is(err, ErrUnknownCategory))

	added, err := kb.RecordActivity("Nap", []string{"sleeping", "rest"})
	require.NoError(t, err)
	assert.True(t, added)
	cats, _ := kb.LookupActivity("Nap")
	assert.Equal(t, []string{"rest"}, cats)
}

func TestRecordTraining(t *testing.T) {
	dir := t.TempDir()
	kb, err := Load(dir, nil)
	require.NoError(t, err)

	added, err := kb.RecordTraining("Sit", "obedience_commands")
	require.NoError(t, err)
	assert.True(t, added)

	added, err = kb.RecordTraining("Sit", "fun_skills")
	require.NoError(t, err)
	assert.False(t, added)

	_, err = kb.RecordTraining("Spin", "tricks")
	assert.True(t, errors.Is(err, ErrUnknownCategory))

	reloaded, err := Load(dir, nil)
	require.NoError(t, err)
	cat, ok := reloaded.LookupTraining("Sit")
	require.True(t, ok)
	assert.Equal(t, "obedience_commands", cat)
}

func TestLookup_IsCaseSensitive(t *testing.T) {
	kb, err := Load(t.TempDir(), nil)
	require.NoError(t, err)
	_, err = kb.RecordTraining("Sit", "obedience_commands")
	require.NoError(t, err)

	_, ok := kb.LookupTraining("sit")
	assert.False(t, ok)
}

func TestLoad_ToleratesHandEditedJSON5(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, ActivityFile), []byte(`{
		// renamed by hand after the taxonomy change
		"Pool time": ["playtime", "outdoor",],
		"Puzzle feeder": "enrichment",
		"Bad entry": 42,
		"Retired": ["old_category"],
	}`), 0o600))
	require.NoError(t, os.WriteFile(filepath.Join(dir, TrainingFile), []byte(`{
		"Sit": "obedience_commands",
		"Wait": ["impulse_control_and_focus"],
	}`), 0o600))

	kb, err := Load(dir, nil)
	require.NoError(t, err)

	cats, ok := kb.LookupActivity("Pool time")
	require.True(t, ok)
	assert.Equal(t, []string{"playtime", "outdoor"}, cats)

	cats, ok = kb.LookupActivity("Puzzle feeder")
	require.True(t, ok)
	assert.Equal(t, []string{"enrichment"}, cats)

	_, ok = kb.LookupActivity("Bad entry")
	assert.False(t, ok, "malformed entries are treated as absent")
	_, ok = kb.LookupActivity("Retired")
	assert.False(t, ok, "out-of-vocabulary entries are treated as absent")

	cat, ok := kb.LookupTraining("Wait")
	require.True(t, ok)
	assert.Equal(t, "impulse_control_and_focus", cat)
}

func TestLoad_MalformedFileMovedAside(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, TrainingFile)
	require.NoError(t, os.WriteFile(path, []byte(`{"Sit": `), 0o600))

	kb, err := Load(dir, nil)
	require.NoError(t, err)
	assert.Equal(t, 0, kb.Stats().Training)

	_, err = os.Stat(path + ".corrupt")
	assert.NoError(t, err)
	_, err = os.Stat(path)
	assert.True(t, errors.Is(err, os.ErrNotExist))
}

func TestOverrideAndForget(t *testing.T) {
	dir := t.TempDir()
	kb, err := Load(dir, nil)
	require.NoError(t, err)

	_, err = kb.RecordActivity("Fetch", []string{"playtime"})
	require.NoError(t, err)
	require.NoError(t, kb.OverrideActivity("Fetch", []string{"outdoor", "playtime"}))

	err = kb.OverrideActivity("Fetch", []string{"outdoor", "zoomies"})
	assert.True(t, errors.Is(err, ErrUnknownCategory), "override rejects any unknown category")

	reloaded, err := Load(dir, nil)
	require.NoError(t, err)
	cats, _ := reloaded.LookupActivity("Fetch")
	assert.Equal(t, []string{"outdoor", "playtime"}, cats)

	require.NoError(t, kb.OverrideTraining("Sit", "Obedience Commands"))
	cat, _ := kb.LookupTraining("Sit")
	assert.Equal(t, "obedience_commands", cat)

	removed, err := kb.Forget(domain.AxisActivity, "Fetch")
	require.NoError(t, err)
	assert.True(t, removed)
	removed, err = kb.Forget(domain.AxisActivity, "Fetch")
	require.NoError(t, err)
	assert.False(t, removed)

	reloaded, err = Load(dir, nil)
	require.NoError(t, err)
	_, ok := reloaded.LookupActivity("Fetch")
	assert.False(t, ok)
}

func TestEntries_Sorted(t *testing.T) {
	kb, err := Load(t.TempDir(), nil)
	require.NoError(t, err)
	_, _ = kb.RecordActivity("Zoomies", []string{"playtime"})
	_, _ = kb.RecordActivity("Agility", []string{"training", "outdoor"})
	_, _ = kb.RecordTraining("Sit", "obedience_commands")

	entries := kb.ActivityEntries()
	require.Len(t, entries, 2)
	assert.Equal(t, "Agility", entries[0].Label)
	assert.Equal(t, []string{"training", "outdoor"}, entries[0].Categories)
	assert.Equal(t, []Entry{{Label: "Sit", Categories: []string{"obedience_commands"}}}, kb.TrainingEntries())
}

func TestSave_RewritesHandEditedFilesAsJSON(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, ActivityFile),
		[]byte("{\n  // added by hand\n  \"Fetch\": [\"playtime\",],\n}\n"), 0o644))

	kb, err := Load(dir, nil)
	require.NoError(t, err)
	require.NoError(t, kb.Save())

	var activities map[string][]string
	require.NoError(t, jsonfile.Read(filepath.Join(dir, ActivityFile), &activities))
	assert.Equal(t, map[string][]string{"Fetch": {"playtime"}}, activities)

	var training map[string]string
	require.NoError(t, jsonfile.Read(filepath.Join(dir, TrainingFile), &training))
	assert.Empty(t, training)
}
