package types

import "time"

// TestStatus is the outcome of one diagnostic probe.
type TestStatus string

const (
	TestStatusPass TestStatus = "pass"
	TestStatusFail TestStatus = "fail"
	TestStatusSkip TestStatus = "skip"
)

// TestResult records a single diagnostic probe.
type TestResult struct {
	Name       string      `json:"name" yaml:"name"`
	Status     TestStatus  `json:"status" yaml:"status"`
	Message    string      `json:"message" yaml:"message"`
	Details    interface{} `json:"details,omitempty" yaml:"details,omitempty"`
	DurationMs int64       `json:"durationMs" yaml:"durationMs"`
}

// TestSummary aggregates the results of one suite.
type TestSummary struct {
	Total      int   `json:"total" yaml:"total"`
	Passed     int   `json:"passed" yaml:"passed"`
	Failed     int   `json:"failed" yaml:"failed"`
	Skipped    int   `json:"skipped" yaml:"skipped"`
	DurationMs int64 `json:"durationMs" yaml:"durationMs"`
}

// TestSuiteReport is the ordered result list of one suite with its summary.
type TestSuiteReport struct {
	SuiteName string       `json:"suiteName" yaml:"suiteName"`
	Results   []TestResult `json:"results" yaml:"results"`
	Summary   TestSummary  `json:"summary" yaml:"summary"`
}

// DiagnosticsReport wraps one run of all suites.
type DiagnosticsReport struct {
	RunID     string            `json:"runId" yaml:"runId"`
	Context   string            `json:"context" yaml:"context"`
	StartedAt time.Time         `json:"startedAt" yaml:"startedAt"`
	Suites    []TestSuiteReport `json:"suites" yaml:"suites"`
}

// Failed reports whether any probe in any suite failed.
func (r DiagnosticsReport) Failed() bool {
	for _, s := range r.Suites {
		if s.Summary.Failed > 0 {
			return true
		}
	}
	return false
}
