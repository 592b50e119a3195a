package models

// Severity levels reported for scanner snippets.
const (
	SeverityHigh   = "High"
	SeverityMedium = "Medium"
	SeverityLow    = "Low"
)

// Snippet is one matched region of converted ladder text.
type Snippet struct {
	LineStart int    `json:"lineStart" msgpack:"lineStart"`
	LineEnd   int    `json:"lineEnd" msgpack:"lineEnd"`
	Code      string `json:"code" msgpack:"code"`
	Severity  string `json:"severity" msgpack:"severity"`
}

// PatternResult is the outcome of checking one vulnerability pattern.
type PatternResult struct {
	PatternID   int       `json:"patternId" msgpack:"patternId"`
	Code        string    `json:"code" msgpack:"code"`
	Name        string    `json:"name" msgpack:"name"`
	Description string    `json:"description" msgpack:"description"`
	Found       bool      `json:"found" msgpack:"found"`
	Occurrences int       `json:"occurrences" msgpack:"occurrences"`
	Snippets    []Snippet `json:"snippets" msgpack:"snippets"`
}

// HasSeverity reports whether any snippet carries the given severity.
func (r PatternResult) HasSeverity(severity string) bool {
	for _, s := range r.Snippets {
		if s.Severity == severity {
			return true
		}
	}
	return false
}
