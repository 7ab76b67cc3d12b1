package types

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestAggregateStatus_AllCombinations(t *testing.T) {
	statuses := []CheckStatus{CheckStatusPass, CheckStatusWarn, CheckStatusFail}

	count := 0
	for _, a := range statuses {
		for _, b := range statuses {
			for _, c := range statuses {
				for _, d := range statuses {
					combo := []CheckStatus{a, b, c, d}
					count++

					want := OverallHealthy
					for _, s := range combo {
						if s == CheckStatusWarn {
							want = OverallDegraded
						}
					}
					for _, s := range combo {
						if s == CheckStatusFail {
							want = OverallUnhealthy
						}
					}

					t.Run(fmt.Sprintf("%s_%s_%s_%s", a, b, c, d), func(t *testing.T) {
						assert.Equal(t, want, AggregateStatus(combo...))
					})
				}
			}
		}
	}
	assert.Equal(t, 81, count)
}

func TestAggregateStatus_Empty(t *testing.T) {
	assert.Equal(t, OverallHealthy, AggregateStatus())
}

func TestDiagnosticsReport_Failed(t *testing.T) {
	report := DiagnosticsReport{Suites: []TestSuiteReport{
		{SuiteName: "environment", Summary: TestSummary{Total: 2, Passed: 2}},
	}}
	assert.False(t, report.Failed())

	report.Suites = append(report.Suites, TestSuiteReport{SuiteName: "connectivity", Summary: TestSummary{Total: 1, Failed: 1}})
	assert.True(t, report.Failed())
}
