package businessmetrics

import (
	"strings"
	"sync"
)

// Recorder counts portal business events. The package-level functions
// forward to the active recorder, which is a no-op until Register runs.
type Recorder interface {
	RecordComplaintFiled()
	RecordPaymentConfirmed(provider string, amountCents int64)
	RecordLetterIssued(outcome string)
	RecordEngineError(operation string)
}

type recorder struct {
	metrics *metrics
}

type noopRecorder struct{}

func (noopRecorder) RecordComplaintFiled()                {}
func (noopRecorder) RecordPaymentConfirmed(string, int64) {}
func (noopRecorder) RecordLetterIssued(string)            {}
func (noopRecorder) RecordEngineError(string)             {}

var (
	activeRecorder Recorder = noopRecorder{}
	recorderMu     sync.RWMutex
)

func setRecorder(rec Recorder) {
	if rec == nil {
		return
	}
	recorderMu.Lock()
	activeRecorder = rec
	recorderMu.Unlock()
}

func current() Recorder {
	recorderMu.RLock()
	defer recorderMu.RUnlock()
	return activeRecorder
}

func RecordComplaintFiled() {
	current().RecordComplaintFiled()
}

func RecordPaymentConfirmed(provider string, amountCents int64) {
	current().RecordPaymentConfirmed(provider, amountCents)
}

func RecordLetterIssued(outcome string) {
	current().RecordLetterIssued(outcome)
}

func RecordEngineError(operation string) {
	current().RecordEngineError(operation)
}

func (r *recorder) RecordComplaintFiled() {
	if r == nil || r.metrics == nil {
		return
	}
	r.metrics.complaintsFiled.Inc()
}

func (r *recorder) RecordPaymentConfirmed(provider string, amountCents int64) {
	if r == nil || r.metrics == nil {
		return
	}
	label := normalizeLabel(provider)
	r.metrics.paymentsConfirmed.WithLabelValues(label).Inc()
	if amountCents > 0 {
		r.metrics.feesCollected.WithLabelValues(label).Add(float64(amountCents))
	}
}

func (r *recorder) RecordLetterIssued(outcome string) {
	if r == nil || r.metrics == nil {
		return
	}
	r.metrics.lettersIssued.WithLabelValues(normalizeLabel(outcome)).Inc()
}

func (r *recorder) RecordEngineError(operation string) {
	if r == nil || r.metrics == nil {
		return
	}
	r.metrics.engineErrors.WithLabelValues(normalizeLabel(operation)).Inc()
}

func normalizeLabel(value string) string {
	value = strings.ToLower(strings.TrimSpace(value))
	if value == "" {
		return "unknown"
	}
	return value
}
