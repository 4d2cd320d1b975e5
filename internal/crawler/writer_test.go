package crawler

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"blackwatch/internal/config"
	"blackwatch/internal/models"
)

func sampleRecords() []models.CandidateRecord {
	return []models.CandidateRecord{
		{
			Host: "www.vulnerability-lab.com", Path: "/get_content.php?id=2291", Title: "First",
			Author: models.None, UploadDate: "2024-01-01", CVEIDs: models.NoneList(), CVSS: models.NewScore(5.1),
			VulnerabilityClass: []string{"XSS"}, AffectedProducts: models.NoneList(), ExploitationTechnique: []string{"Remote"},
			Article: "<script>alert(1)</script>", Ref: models.NoneList(), DedupHash: "h1",
		},
		{
			Host: "t.me", Path: "/DBleak/7", Title: "Second",
			Author: "DBleak", UploadDate: models.None, CVEIDs: models.NoneList(),
			VulnerabilityClass: models.NoneList(), AffectedProducts: models.NoneList(), ExploitationTechnique: models.NoneList(),
			Article: models.None, Ref: models.NoneList(), DedupHash: "h2",
		},
	}
}

func writerConfig(t *testing.T, format string) *config.Config {
	t.Helper()

	cfg := config.Default()
	cfg.Crawler.Output.BasePath = t.TempDir()
	cfg.Crawler.Output.Format = format

	return cfg
}

func TestWriter_JSONFiles(t *testing.T) {
	cfg := writerConfig(t, "json")

	paths, err := NewWriter(cfg).Write("vulnlab", sampleRecords())
	require.NoError(t, err)
	require.Equal(t, []string{
		filepath.Join(cfg.Crawler.Output.BasePath, "vulnlab", "2291.json"),
		filepath.Join(cfg.Crawler.Output.BasePath, "vulnlab", "7.json"),
	}, paths)

	data, err := os.ReadFile(paths[0])
	require.NoError(t, err)
	assert.Contains(t, string(data), `"cvss": 5.1`)

	data, err = os.ReadFile(paths[1])
	require.NoError(t, err)
	assert.Contains(t, string(data), `"cvss": "None"`)

	got, err := ReadRecords(paths[0])
	require.NoError(t, err)
	assert.Equal(t, sampleRecords()[:1], got)
}

func TestWriter_JSONL(t *testing.T) {
	cfg := writerConfig(t, "jsonl")
	w := NewWriter(cfg)

	_, err := w.Write("vulnlab", sampleRecords()[:1])
	require.NoError(t, err)

	paths, err := w.Write("vulnlab", sampleRecords()[1:])
	require.NoError(t, err)

	data, err := os.ReadFile(paths[0])
	require.NoError(t, err)
	assert.Equal(t, 2, strings.Count(string(data), "\n"))
	assert.Contains(t, string(data), "<script>")

	got, err := ReadRecords(paths[0])
	require.NoError(t, err)
	assert.Equal(t, sampleRecords(), got)
}

func TestWriter_UnknownFormat(t *testing.T) {
	_, err := NewWriter(writerConfig(t, "xml")).Write("x", sampleRecords())
	assert.ErrorIs(t, err, ErrUnknownFormat)
}

func TestReadRecords_Array(t *testing.T) {
	path := filepath.Join(t.TempDir(), "records.json")
	require.NoError(t, os.WriteFile(path, []byte(`[{"title":"A","cvss":"7.5"},{"title":"B","cvss":"None"}]`), 0644))

	got, err := ReadRecords(path)
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, models.NewScore(7.5), got[0].CVSS)
	assert.False(t, got[1].CVSS.Valid)
}
