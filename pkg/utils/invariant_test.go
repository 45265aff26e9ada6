package utils

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestRaiseInvariant(t *testing.T) {
	invariantsMetric.Reset() // Reset the metric to ensure a clean state for the test.
	RaiseInvariant("invariant", "test", "This is a test invariant violation")
	gotInvariants := GetMetricValue("invariant" /*module*/, "test" /*invariantType*/)
	assert.Equal(t, 1, gotInvariants)
}

func TestRaiseInvariant_PanicsInTestMode(t *testing.T) {
	prevTestMode := IsTestMode
	IsTestMode = true
	t.Cleanup(func() { IsTestMode = prevTestMode })
	assert.Panics(t, func() { RaiseInvariant("invariant", "panic_test", "Violations are fatal in test mode.") })
}
