package session_test

import (
	"testing"

	"go.uber.org/goleak"
)

// TestMain catches goroutines an autosave debounce timer leaves
// running past test end, per SPEC_FULL.md §1.
func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}
