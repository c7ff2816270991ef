package online_test

import (
	"testing"

	"go.uber.org/goleak"
)

// TestMain catches goroutines a throttled batch loop leaves running
// past test end, per SPEC_FULL.md §1.
func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}
