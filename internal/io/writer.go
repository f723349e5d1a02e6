package io

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"os"

	"github.com/williampepple1/registry-scraper/internal/config"
	"github.com/williampepple1/registry-scraper/pkg/models"
)

// ResultWriter writes results to various outputs
type ResultWriter struct {
	Config *config.IOConfig
}

// NewResultWriter creates a new result writer
func NewResultWriter(config *config.IOConfig) *ResultWriter {
	return &ResultWriter{
		Config: config,
	}
}

type jsonRow struct {
	URL    string                `json:"url"`
	Fields map[string]string     `json:"fields"`
	Status models.LivenessStatus `json:"status"`
}

// SaveToFile saves the results to a file in the specified format
func (w *ResultWriter) SaveToFile(results *models.ResultSet) error {
	switch w.Config.OutputFormat {
	case "json":
		rows := make([]jsonRow, 0, results.Len())
		for i, row := range results.Rows {
			fields := make(map[string]string, len(results.Fields))
			for _, name := range results.Fields {
				fields[name] = results.Value(i, name)
			}
			rows = append(rows, jsonRow{URL: row.Identifier, Fields: fields, Status: row.Status})
		}
		data, err := json.MarshalIndent(rows, "", "  ")
		if err != nil {
			return err
		}
		return os.WriteFile(w.Config.OutputFile, data, 0644)

	case "csv", "":
		return w.saveCSV(results)

	default:
		return fmt.Errorf("unsupported output format: %s", w.Config.OutputFormat)
	}
}

func (w *ResultWriter) saveCSV(results *models.ResultSet) error {
	file, err := os.Create(w.Config.OutputFile)
	if err != nil {
		return err
	}

	cw := csv.NewWriter(file)
	if err := cw.Write(results.Header()); err != nil {
		file.Close()
		return err
	}
	for i := range results.Rows {
		if err := cw.Write(results.Record(i)); err != nil {
			file.Close()
			return err
		}
	}
	cw.Flush()
	if err := cw.Error(); err != nil {
		file.Close()
		return fmt.Errorf("write %s: %w", w.Config.OutputFile, err)
	}
	return file.Close()
}
