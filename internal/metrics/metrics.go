package metrics

import (
	"strconv"
	"time"

	"github.com/ladderscan/backend/internal/ladder"
	"github.com/ladderscan/backend/internal/models"
)

// Conversion statuses
const (
	StatusSuccess = "success"
	StatusEmpty   = "empty"
	StatusError   = "error"
)

// ObserveDiagram implements ladder.Observer.
func (r *Registry) ObserveDiagram(source ladder.RungSource, rungs int) {
	r.DiagramsTotal.WithLabelValues(string(source)).Inc()
	r.RungsTotal.WithLabelValues(string(source)).Add(float64(rungs))
}

// RecordConversion records one converted file.
func (r *Registry) RecordConversion(strategy ladder.Strategy, status string, duration time.Duration) {
	r.ConversionsTotal.WithLabelValues(string(strategy), status).Inc()
	r.ConversionDuration.WithLabelValues(string(strategy)).Observe(duration.Seconds())
}

// RecordFindings counts every matched snippet by severity.
func (r *Registry) RecordFindings(results []models.PatternResult) {
	for _, res := range results {
		for _, s := range res.Snippets {
			r.FindingsTotal.WithLabelValues(s.Severity).Inc()
		}
	}
}

// RecordHTTPRequest records an HTTP request
func (r *Registry) RecordHTTPRequest(method, path string, status int) {
	r.HTTPRequestsTotal.WithLabelValues(method, path, strconv.Itoa(status)).Inc()
}

// ConversionStatus maps a conversion outcome to a status label.
func ConversionStatus(conv *ladder.Conversion, err error) string {
	switch {
	case err != nil || conv == nil:
		return StatusError
	case len(conv.Diagrams) == 0:
		return StatusEmpty
	default:
		return StatusSuccess
	}
}

var _ ladder.Observer = (*Registry)(nil)
