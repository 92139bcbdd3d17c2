//go:build !race

package counter

import (
	"testing"
)

// TestRacyCounterLosesUpdates shows the unguarded counter failing under
// contention. It is excluded from -race builds, where the detector would
// abort on the very access being demonstrated.
func TestRacyCounterLosesUpdates(t *testing.T) {
	const n = 5000
	lost := false
	for trial := 0; trial < 20 && !lost; trial++ {
		if got := Hammer(&RacyCounter{}, n); got < n {
			lost = true
			t.Logf("trial %d: %d of %d increments landed", trial, got, n)
		}
	}

	if !lost {
		t.Errorf("no trial lost an update across 20 runs of %d increments", n)
	}
}
