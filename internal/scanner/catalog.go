// Package scanner matches converted ladder text against a catalog of unsafe
// PLC programming patterns.
package scanner

import (
	"bytes"
	_ "embed"
	"fmt"
	"io"
	"os"
	"regexp"
	"strconv"
	"strings"

	"github.com/ladderscan/backend/internal/models"
	"gopkg.in/yaml.v3"
)

// Rule selects how a pattern is matched.
type Rule string

const (
	// RuleKeywords counts every line containing any of the keywords.
	RuleKeywords Rule = "keywords"
	// RuleLineCount fires once when the routine is longer than the threshold.
	RuleLineCount Rule = "line_count"
	// RuleHMI flags every line mentioning HMI.
	RuleHMI Rule = "hmi"
)

// DefaultLineCountThreshold is used when the catalog does not set one.
const DefaultLineCountThreshold = 100

// Pattern is one catalog entry.
type Pattern struct {
	Code     string   `yaml:"code" json:"code"`
	Name     string   `yaml:"name" json:"name"`
	Severity string   `yaml:"severity,omitempty" json:"severity"`
	Rule     Rule     `yaml:"rule,omitempty" json:"rule"`
	Keywords []string `yaml:"keywords,omitempty" json:"keywords,omitempty"`
}

// ID returns the numeric part of the pattern code ("V-007" -> 7).
func (p Pattern) ID() int {
	_, num, _ := strings.Cut(p.Code, "-")
	id, _ := strconv.Atoi(num)
	return id
}

// Catalog is the set of patterns a Scanner checks.
type Catalog struct {
	LineCountThreshold int       `yaml:"line_count_threshold" json:"lineCountThreshold"`
	Patterns           []Pattern `yaml:"patterns" json:"patterns"`
}

var codePattern = regexp.MustCompile(`^[A-Z]+-\d+$`)

//go:embed patterns.yaml
var defaultCatalogYAML []byte

// DefaultCatalog returns the built-in 14-pattern catalog.
func DefaultCatalog() *Catalog {
	c, err := LoadCatalogFromReader(bytes.NewReader(defaultCatalogYAML))
	if err != nil {
		panic(fmt.Sprintf("embedded pattern catalog is invalid: %v", err))
	}
	return c
}

// LoadCatalog reads a YAML catalog file.
func LoadCatalog(path string) (*Catalog, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening pattern catalog: %w", err)
	}
	defer f.Close()

	return LoadCatalogFromReader(f)
}

// LoadCatalogFromReader parses and normalizes a YAML catalog.
func LoadCatalogFromReader(r io.Reader) (*Catalog, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, err
	}

	var c Catalog
	if err := yaml.Unmarshal(data, &c); err != nil {
		return nil, fmt.Errorf("parsing pattern catalog: %w", err)
	}
	if err := c.normalize(); err != nil {
		return nil, err
	}
	return &c, nil
}

func (c *Catalog) normalize() error {
	if c.LineCountThreshold <= 0 {
		c.LineCountThreshold = DefaultLineCountThreshold
	}
	if len(c.Patterns) == 0 {
		return fmt.Errorf("pattern catalog has no patterns")
	}

	seen := make(map[string]bool, len(c.Patterns))
	for i := range c.Patterns {
		p := &c.Patterns[i]
		if !codePattern.MatchString(p.Code) {
			return fmt.Errorf("pattern %d: invalid code %q", i, p.Code)
		}
		if seen[p.Code] {
			return fmt.Errorf("pattern %s: duplicate code", p.Code)
		}
		seen[p.Code] = true

		if p.Rule == "" {
			p.Rule = RuleKeywords
		}
		switch p.Rule {
		case RuleKeywords, RuleLineCount, RuleHMI:
		default:
			return fmt.Errorf("pattern %s: unknown rule %q", p.Code, p.Rule)
		}

		switch p.Severity {
		case "":
			p.Severity = models.SeverityMedium
		case models.SeverityHigh, models.SeverityMedium, models.SeverityLow:
		default:
			return fmt.Errorf("pattern %s: unknown severity %q", p.Code, p.Severity)
		}
	}
	return nil
}
