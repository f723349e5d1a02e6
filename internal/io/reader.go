package io

import (
	"bufio"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/williampepple1/registry-scraper/internal/config"
	"github.com/williampepple1/registry-scraper/pkg/models"
)

// ErrNoInput is returned when no identifier source is configured
var ErrNoInput = errors.New("no input file configured")

// URLReader reads detail page identifiers
type URLReader struct {
	Config *config.IOConfig
}

// NewURLReader creates a new URL reader
func NewURLReader(config *config.IOConfig) *URLReader {
	return &URLReader{
		Config: config,
	}
}

// ReadFromFile reads identifiers from a file, one per line. Blank lines and lines
// starting with # are ignored.
func (r *URLReader) ReadFromFile(filename string) ([]string, error) {
	file, err := os.Open(filename)
	if err != nil {
		return nil, err
	}
	defer file.Close()

	var urls []string
	scanner := bufio.NewScanner(file)
	for scanner.Scan() {
		url := strings.TrimSpace(scanner.Text())
		if url != "" && !strings.HasPrefix(url, "#") {
			urls = append(urls, url)
		}
	}

	if err := scanner.Err(); err != nil {
		return nil, err
	}

	return urls, nil
}

// GetURLs returns identifiers from the configured input file
func (r *URLReader) GetURLs() ([]string, error) {
	if r.Config.InputFile == "" {
		return nil, ErrNoInput
	}
	return r.ReadFromFile(r.Config.InputFile)
}

// TableReader loads a previously written CSV result file
type TableReader struct {
	Extraction *config.ExtractionConfig
}

// NewTableReader creates a reader expecting the status column named in cfg
func NewTableReader(cfg *config.ExtractionConfig) *TableReader {
	return &TableReader{Extraction: cfg}
}

// ReadFromFile parses filename into a result set. Every column except the status
// column becomes a field; identifiers are the 1-based row numbers since the CSV
// format does not carry them.
func (r *TableReader) ReadFromFile(filename string) (*models.ResultSet, error) {
	file, err := os.Open(filename)
	if err != nil {
		return nil, err
	}
	defer file.Close()

	reader := csv.NewReader(bufio.NewReader(file))
	header, err := reader.Read()
	if err != nil {
		return nil, fmt.Errorf("read header of %s: %w", filename, err)
	}
	if len(header) > 0 {
		header[0] = strings.TrimPrefix(header[0], "\ufeff")
	}

	statusCol := -1
	var fields []string
	for i, name := range header {
		if strings.EqualFold(name, r.Extraction.StatusField) {
			statusCol = i
			continue
		}
		fields = append(fields, name)
	}

	rs := models.NewResultSet(fields, r.Extraction.StatusField)
	for line := 2; ; line++ {
		record, err := reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("read %s: %w", filename, err)
		}

		row := models.OutputRow{
			Identifier: fmt.Sprint(line - 1),
			Values:     make([]string, 0, len(fields)),
		}
		for i, value := range record {
			if i == statusCol {
				status, err := models.ParseLivenessStatus(value)
				if err != nil {
					return nil, fmt.Errorf("%s line %d: %w", filename, line, err)
				}
				row.Status = status
				continue
			}
			row.Values = append(row.Values, value)
		}
		rs.Append(row)
	}

	return rs, nil
}
