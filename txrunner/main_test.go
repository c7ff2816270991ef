package txrunner_test

import (
	"testing"

	"go.uber.org/goleak"
)

// TestMain catches goroutines the runner's retry loop or GRV cache
// leaves running past test end (e.g. a Watch call still blocked on a
// cancelled context), per SPEC_FULL.md §1.
func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}
