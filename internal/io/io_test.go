package io

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/williampepple1/registry-scraper/internal/config"
	"github.com/williampepple1/registry-scraper/pkg/models"
)

func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	return path
}

func sampleResults() *models.ResultSet {
	rs := models.NewResultSet(config.DefaultFields, config.DefaultStatusField)

	first := rs.Project("https://registry.example/firma/1", models.FieldRecord{
		"Name":     "Muster AG",
		"Adresse":  "Bahnhofstrasse 1, 8001 Zürich",
		"Internet": "muster.ch",
	})
	first.Status = models.Active()
	rs.Append(first)

	second := rs.Project("https://registry.example/firma/2", models.FieldRecord{
		"Name":        "Beispiel, Meier & Co.",
		"Bemerkungen": "Sitzverlegung \"Bern\"",
	})
	second.Status = models.InactiveOther("stopped after 10 redirects")
	rs.Append(second)

	third := rs.Project("https://registry.example/firma/3", models.FieldRecord{"Name": "Dritte SA"})
	third.Status = models.InactiveHTTP(503)
	rs.Append(third)

	return rs
}

func TestURLReader(t *testing.T) {
	path := writeFile(t, "urls.txt", `
# detail pages
https://registry.example/firma/1

  https://registry.example/firma/2
#https://registry.example/firma/3
`)

	reader := NewURLReader(&config.IOConfig{InputFile: path})
	urls, err := reader.GetURLs()
	require.NoError(t, err)
	assert.Equal(t, []string{
		"https://registry.example/firma/1",
		"https://registry.example/firma/2",
	}, urls)
}

func TestURLReaderNoInput(t *testing.T) {
	_, err := NewURLReader(&config.IOConfig{}).GetURLs()
	assert.ErrorIs(t, err, ErrNoInput)

	_, err = NewURLReader(&config.IOConfig{InputFile: filepath.Join(t.TempDir(), "missing.txt")}).GetURLs()
	assert.ErrorIs(t, err, os.ErrNotExist)
}

func TestCSVRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "scraped_data.csv")
	writer := NewResultWriter(&config.IOConfig{OutputFile: path, OutputFormat: "csv"})
	require.NoError(t, writer.SaveToFile(sampleResults()))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), "Name,Sitz,Adresse,Internet,Handelsregister (HR),Bemerkungen,Website Status\n")
	assert.Contains(t, string(data), `"Beispiel, Meier & Co."`)

	cfg := config.Default().Extraction
	rs, err := NewTableReader(&cfg).ReadFromFile(path)
	require.NoError(t, err)

	require.Equal(t, 3, rs.Len())
	assert.Equal(t, config.DefaultFields, rs.Fields)
	assert.Equal(t, "Bahnhofstrasse 1, 8001 Zürich", rs.Value(0, "Adresse"))
	assert.Equal(t, "Sitzverlegung \"Bern\"", rs.Value(1, "Bemerkungen"))
	assert.Equal(t, "muster.ch", rs.Value(0, "internet"))
	assert.Equal(t, "1", rs.Rows[0].Identifier)

	assert.Equal(t, models.Active(), rs.Rows[0].Status)
	assert.Equal(t, models.InactiveOther("stopped after 10 redirects"), rs.Rows[1].Status)
	assert.Equal(t, models.InactiveHTTP(503), rs.Rows[2].Status)
}

func TestTableReaderWithoutStatusColumn(t *testing.T) {
	path := writeFile(t, "companies.csv", "\ufeffName,Internet\nMuster AG,muster.ch\nDritte SA,\n")

	cfg := config.Default().Extraction
	rs, err := NewTableReader(&cfg).ReadFromFile(path)
	require.NoError(t, err)

	assert.Equal(t, []string{"Name", "Internet"}, rs.Fields)
	require.Equal(t, 2, rs.Len())
	assert.Equal(t, "muster.ch", rs.Value(0, "Internet"))
	assert.Equal(t, models.LivenessStatus{}, rs.Rows[1].Status)
	assert.Equal(t, []string{"Name", "Internet", config.DefaultStatusField}, rs.Header())
}

func TestTableReaderErrors(t *testing.T) {
	cfg := config.Default().Extraction

	bad := writeFile(t, "bad.csv", "Name,Website Status\nMuster AG,Maybe\n")
	_, err := NewTableReader(&cfg).ReadFromFile(bad)
	assert.ErrorContains(t, err, "line 2")

	ragged := writeFile(t, "ragged.csv", "Name,Internet\nMuster AG\n")
	_, err = NewTableReader(&cfg).ReadFromFile(ragged)
	assert.Error(t, err)

	empty := writeFile(t, "empty.csv", "")
	_, err = NewTableReader(&cfg).ReadFromFile(empty)
	assert.Error(t, err)
}

func TestSaveJSON(t *testing.T) {
	path := filepath.Join(t.TempDir(), "scraped_data.json")
	writer := NewResultWriter(&config.IOConfig{OutputFile: path, OutputFormat: "json"})
	require.NoError(t, writer.SaveToFile(sampleResults()))

	data, err := os.ReadFile(path)
	require.NoError(t, err)

	var rows []struct {
		URL    string            `json:"url"`
		Fields map[string]string `json:"fields"`
		Status string            `json:"status"`
	}
	require.NoError(t, json.Unmarshal(data, &rows))
	require.Len(t, rows, 3)
	assert.Equal(t, "https://registry.example/firma/1", rows[0].URL)
	assert.Len(t, rows[0].Fields, len(config.DefaultFields))
	assert.Equal(t, "", rows[0].Fields["Sitz"])
	assert.Equal(t, "Active", rows[0].Status)
	assert.Equal(t, "Inactive (Status Code: 503)", rows[2].Status)
}

func TestSaveUnsupportedFormat(t *testing.T) {
	writer := NewResultWriter(&config.IOConfig{OutputFile: filepath.Join(t.TempDir(), "out.xml"), OutputFormat: "xml"})
	assert.ErrorContains(t, writer.SaveToFile(sampleResults()), "unsupported output format")
}
