package main

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/AntonioDavid333/bestiary/internal/config"
	"github.com/AntonioDavid333/bestiary/internal/ingest"
)

// readRows reads the source dataset into loosely-typed rows. Cell typing is
// left to the ingestion loader's coercion rules. Modes that skip ingestion
// need no dataset.
func readRows(cfg *config.Config) ([]ingest.Row, error) {
	if !cfg.ShouldRunIngest() {
		return nil, nil
	}
	if cfg.DatasetPath == "" {
		return nil, fmt.Errorf("dataset path is required in %s mode", cfg.Mode)
	}

	ext := strings.ToLower(filepath.Ext(cfg.DatasetPath))
	switch ext {
	case ".csv":
		return readCSV(cfg.DatasetPath)
	case ".json":
		return readJSON(cfg.DatasetPath)
	default:
		return nil, fmt.Errorf("unsupported dataset format: %s", ext)
	}
}

// readCSV reads a header-first CSV file into one row per record. All cells
// stay strings.
func readCSV(path string) ([]ingest.Row, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open dataset: %w", err)
	}
	defer f.Close()

	reader := csv.NewReader(f)
	reader.FieldsPerRecord = -1

	records, err := reader.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("failed to parse CSV dataset: %w", err)
	}
	if len(records) < 1 {
		return nil, fmt.Errorf("dataset has no header row")
	}

	header := records[0]
	rows := make([]ingest.Row, 0, len(records)-1)
	for _, record := range records[1:] {
		row := make(ingest.Row, len(header))
		for i, col := range header {
			if i < len(record) {
				row[col] = record[i]
			}
		}
		rows = append(rows, row)
	}
	return rows, nil
}

// readJSON reads a JSON array of objects into rows.
func readJSON(path string) ([]ingest.Row, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open dataset: %w", err)
	}

	var rows []ingest.Row
	if err := json.Unmarshal(data, &rows); err != nil {
		return nil, fmt.Errorf("failed to parse JSON dataset: %w", err)
	}
	return rows, nil
}
