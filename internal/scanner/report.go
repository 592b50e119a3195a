package scanner

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/ladderscan/backend/internal/models"
)

// SummaryFileName is the markdown report written next to per-file results.
const SummaryFileName = "summary.md"

// ResultFileName maps a converted text file name to its JSON result name.
func ResultFileName(textName string) string {
	return strings.TrimSuffix(textName, filepath.Ext(textName)) + ".json"
}

// WriteResults writes one indented JSON file per scanned file plus the
// summary report into dir. Nothing is written for an empty result set.
func WriteResults(dir string, results map[string][]models.PatternResult) error {
	if len(results) == 0 {
		return nil
	}
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("creating results directory: %w", err)
	}

	for name, res := range results {
		data, err := json.MarshalIndent(res, "", "  ")
		if err != nil {
			return fmt.Errorf("encoding results for %s: %w", name, err)
		}
		if err := os.WriteFile(filepath.Join(dir, ResultFileName(name)), data, 0644); err != nil {
			return fmt.Errorf("writing results for %s: %w", name, err)
		}
	}

	summary := SummaryReport(results)
	if err := os.WriteFile(filepath.Join(dir, SummaryFileName), []byte(summary), 0644); err != nil {
		return fmt.Errorf("writing summary: %w", err)
	}
	return nil
}

// ReadResults loads a JSON result file written by WriteResults.
func ReadResults(path string) ([]models.PatternResult, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var res []models.PatternResult
	if err := json.Unmarshal(data, &res); err != nil {
		return nil, fmt.Errorf("decoding %s: %w", filepath.Base(path), err)
	}
	return res, nil
}
