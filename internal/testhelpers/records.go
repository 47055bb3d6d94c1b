package testhelpers

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/pbaille/reportcard/internal/domain"
)

// WriteRecord stores rec under dir the way the scraper lays records out.
func WriteRecord(t *testing.T, dir string, rec domain.SourceRecord) {
	t.Helper()
	path := filepath.Join(dir, rec.Date[:4], rec.Date+".json")
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	data, err := json.Marshal(rec)
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(path, data, 0o644))
}
