package scanner

import (
	"fmt"
	"sort"
	"strings"

	"github.com/ladderscan/backend/internal/models"
)

// largeRoutinePreview is how many leading lines a line_count snippet shows.
const largeRoutinePreview = 10

// Scanner checks converted ladder text against a catalog. It is stateless
// after construction and safe for concurrent use.
type Scanner struct {
	catalog *Catalog
}

// New returns a scanner for the given catalog; nil means DefaultCatalog.
func New(c *Catalog) *Scanner {
	if c == nil {
		c = DefaultCatalog()
	}
	return &Scanner{catalog: c}
}

// Catalog returns the scanner's catalog.
func (s *Scanner) Catalog() *Catalog {
	return s.catalog
}

// SplitLines splits converted text into lines; a trailing newline does not
// produce an empty last line.
func SplitLines(text string) []string {
	if text == "" {
		return nil
	}
	return strings.Split(strings.TrimSuffix(text, "\n"), "\n")
}

// ScanText scans a whole converted file.
func (s *Scanner) ScanText(text string) []models.PatternResult {
	return s.Scan(SplitLines(text))
}

// Scan returns one result per catalog pattern, in catalog order.
func (s *Scanner) Scan(lines []string) []models.PatternResult {
	results := make([]models.PatternResult, 0, len(s.catalog.Patterns))
	for _, p := range s.catalog.Patterns {
		r := models.PatternResult{
			PatternID:   p.ID(),
			Code:        p.Code,
			Name:        p.Name,
			Description: fmt.Sprintf("Check for %s vulnerability", p.Name),
			Snippets:    []models.Snippet{},
		}

		switch p.Rule {
		case RuleLineCount:
			if len(lines) > s.catalog.LineCountThreshold {
				n := min(largeRoutinePreview, len(lines))
				r.Snippets = append(r.Snippets, models.Snippet{
					LineStart: 1,
					LineEnd:   n,
					Code:      terminated(lines[:n]) + "\n// ... (large routine)",
					Severity:  p.Severity,
				})
			}
		case RuleHMI:
			for i, line := range lines {
				if strings.Contains(strings.ToUpper(line), "HMI") {
					r.Snippets = append(r.Snippets, lineSnippet(i, line, p.Severity))
				}
			}
		default:
			for i, line := range lines {
				if containsAny(line, p.Keywords) {
					r.Snippets = append(r.Snippets, lineSnippet(i, line, p.Severity))
				}
			}
		}

		r.Occurrences = len(r.Snippets)
		r.Found = r.Occurrences > 0
		results = append(results, r)
	}
	return results
}

func lineSnippet(index int, line, severity string) models.Snippet {
	return models.Snippet{
		LineStart: index + 1,
		LineEnd:   index + 1,
		Code:      line + "\n",
		Severity:  severity,
	}
}

// terminated joins lines keeping each one's newline, so a preview ends with
// an empty line before the marker appended to it.
func terminated(lines []string) string {
	var sb strings.Builder
	for _, l := range lines {
		sb.WriteString(l)
		sb.WriteByte('\n')
	}
	return sb.String()
}

func containsAny(line string, keywords []string) bool {
	for _, kw := range keywords {
		if strings.Contains(line, kw) {
			return true
		}
	}
	return false
}

// CountFound returns how many patterns were found.
func CountFound(results []models.PatternResult) int {
	n := 0
	for _, r := range results {
		if r.Found {
			n++
		}
	}
	return n
}

// SummaryReport renders a markdown summary of per-file scan results.
func SummaryReport(results map[string][]models.PatternResult) string {
	files := make([]string, 0, len(results))
	for name := range results {
		files = append(files, name)
	}
	sort.Strings(files)

	var sb strings.Builder
	sb.WriteString("# Ladder Logic Security Analysis Summary\n\n")
	sb.WriteString("| File | Vulnerabilities Found | High Severity | Medium Severity | Low Severity |\n")
	sb.WriteString("|------|----------------------|---------------|-----------------|-------------|\n")

	for _, name := range files {
		var found, high, medium, low int
		for _, r := range results[name] {
			if !r.Found {
				continue
			}
			found++
			if r.HasSeverity(models.SeverityHigh) {
				high++
			}
			if r.HasSeverity(models.SeverityMedium) {
				medium++
			}
			if r.HasSeverity(models.SeverityLow) {
				low++
			}
		}
		fmt.Fprintf(&sb, "| %s | %d | %d | %d | %d |\n", name, found, high, medium, low)
	}

	sb.WriteString("\n## Vulnerability Patterns\n\n")
	sb.WriteString("| ID | Name | Description |\n")
	sb.WriteString("|----|----- |-------------|\n")

	if len(files) > 0 {
		patterns := append([]models.PatternResult(nil), results[files[0]]...)
		sort.SliceStable(patterns, func(i, j int) bool {
			return patterns[i].PatternID < patterns[j].PatternID
		})
		for _, p := range patterns {
			fmt.Fprintf(&sb, "| %s | %s | %s |\n", p.Code, p.Name, p.Description)
		}
	}

	return sb.String()
}
