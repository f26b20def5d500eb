package runner

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/parabatch/parabatch/junitxml"
	"github.com/parabatch/parabatch/types"
)

// makeDoc builds a synthetic parsed document with totals consistent with
// its cases, the way the parser derives them.
func makeDoc(cases ...types.CaseOutcome) *junitxml.Document {
	doc := &junitxml.Document{Cases: cases}
	for _, c := range cases {
		doc.Totals.Tests++
		doc.Totals.Assertions += c.Assertions
		switch c.Status {
		case types.CaseStatusFail:
			doc.Totals.Failures++
		case types.CaseStatusError:
			doc.Totals.Errors++
		}
	}
	return doc
}

func passes(n int) []types.CaseOutcome {
	cases := make([]types.CaseOutcome, n)
	for i := range cases {
		cases[i] = types.CaseOutcome{Name: "testCase", Status: types.CaseStatusPass, Assertions: 1}
	}
	return cases
}

func TestReconcileOverhead(t *testing.T) {
	tests := []struct {
		name         string
		expected     int
		actual       int
		trackSkipped bool
		wantExpected int
		wantSkipped  int
	}{
		{
			name:         "shortfall presumed skipped when tracking",
			expected:     10,
			actual:       8,
			trackSkipped: true,
			wantExpected: 30,
			wantSkipped:  2,
		},
		{
			name:         "expansion grows expected when tracking",
			expected:     10,
			actual:       12,
			trackSkipped: true,
			wantExpected: 32,
			wantSkipped:  0,
		},
		{
			name:         "exact match changes nothing",
			expected:     10,
			actual:       10,
			trackSkipped: true,
			wantExpected: 30,
			wantSkipped:  0,
		},
		{
			name:         "shortfall folds into expected when not tracking",
			expected:     10,
			actual:       8,
			trackSkipped: false,
			wantExpected: 28,
			wantSkipped:  0,
		},
		{
			name:         "expansion folds into expected when not tracking",
			expected:     10,
			actual:       12,
			trackSkipped: false,
			wantExpected: 32,
			wantSkipped:  0,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			store := NewResultStore(30)

			store.ReconcileOverhead(tt.expected, tt.actual, tt.trackSkipped)

			snap := store.Snapshot()
			assert.Equal(t, tt.wantExpected, snap.CasesExpected)
			assert.Equal(t, tt.wantSkipped, snap.SkippedOrIncomplete)
		})
	}
}

func TestAddResultMergesTotals(t *testing.T) {
	store := NewResultStore(6)

	store.AddResult(3, makeDoc(
		types.CaseOutcome{Name: "SuiteA::testOne", Status: types.CaseStatusPass, Assertions: 2},
		types.CaseOutcome{Name: "SuiteA::testTwo", Status: types.CaseStatusFail, Message: "boom", Assertions: 1},
		types.CaseOutcome{Name: "SuiteA::testThree", Status: types.CaseStatusError, Message: "crash"},
	), true)
	store.AddResult(3, makeDoc(
		types.CaseOutcome{Name: "SuiteB::testFour", Status: types.CaseStatusPass, Assertions: 3},
		types.CaseOutcome{Name: "SuiteB::testFive", Status: types.CaseStatusFail, Message: "nope", Assertions: 1},
		types.CaseOutcome{Name: "SuiteB::testSix", Status: types.CaseStatusSkip},
	), true)

	snap := store.Snapshot()
	assert.Equal(t, 6, snap.CasesProcessed)
	assert.Equal(t, 7, snap.Assertions)
	assert.Equal(t, 2, snap.Failures)
	assert.Equal(t, 1, snap.Errors)
	assert.Equal(t, 1, snap.SkippedOrIncomplete, "only the explicit skip counts; both batches met their expected count")
	assert.Equal(t, 6, snap.CasesExpected)

	require.Len(t, snap.FailureMessages, 2)
	assert.Equal(t, "SuiteA::testTwo\nboom", snap.FailureMessages[0], "batch completion order then document order")
	assert.Equal(t, "SuiteB::testFive\nnope", snap.FailureMessages[1])
	require.Len(t, snap.ErrorMessages, 1)
	assert.Equal(t, "SuiteA::testThree\ncrash", snap.ErrorMessages[0])
}

func TestExplicitSkipsIgnoredWithoutTracking(t *testing.T) {
	store := NewResultStore(2)

	store.AddResult(2, makeDoc(
		types.CaseOutcome{Name: "testOne", Status: types.CaseStatusSkip},
		types.CaseOutcome{Name: "testTwo", Status: types.CaseStatusIncomplete},
	), false)

	snap := store.Snapshot()
	assert.Zero(t, snap.SkippedOrIncomplete)
	assert.Equal(t, 2, snap.CasesProcessed)
}

func TestIsSuccessful(t *testing.T) {
	t.Run("clean run", func(t *testing.T) {
		store := NewResultStore(2)
		store.AddResult(2, makeDoc(passes(2)...), true)
		assert.True(t, store.IsSuccessful())
	})

	t.Run("skips do not affect the verdict", func(t *testing.T) {
		store := NewResultStore(5)
		store.AddResult(5, makeDoc(passes(2)...), true)
		snap := store.Snapshot()
		assert.Equal(t, 3, snap.SkippedOrIncomplete)
		assert.True(t, store.IsSuccessful())
	})

	t.Run("a failure flips it", func(t *testing.T) {
		store := NewResultStore(1)
		store.AddResult(1, makeDoc(types.CaseOutcome{Name: "testOne", Status: types.CaseStatusFail}), true)
		assert.False(t, store.IsSuccessful())
	})

	t.Run("an error flips it", func(t *testing.T) {
		store := NewResultStore(1)
		store.AddResult(1, makeDoc(types.CaseOutcome{Name: "testOne", Status: types.CaseStatusError}), true)
		assert.False(t, store.IsSuccessful())
	})

	t.Run("a warning flips it", func(t *testing.T) {
		store := NewResultStore(1)
		store.AddResult(1, makeDoc(passes(1)...), true)
		store.AddWarning("deprecated connector in use")
		assert.False(t, store.IsSuccessful())
	})
}

func TestAddFatalFailure(t *testing.T) {
	store := NewResultStore(4)

	store.AddFatalFailure("phpunit --group auth --log-junit /tmp/r1.xml", "Exit code: 139")

	snap := store.Snapshot()
	assert.Equal(t, 1, snap.Failures)
	require.Len(t, snap.FailureMessages, 1)
	assert.Contains(t, snap.FailureMessages[0], "phpunit --group auth --log-junit /tmp/r1.xml",
		"the entry must name the exact worker invocation")
	assert.Contains(t, snap.FailureMessages[0], "Exit code: 139")
	assert.False(t, store.IsSuccessful())
	assert.Zero(t, snap.CasesProcessed, "a fatal batch contributes no processed cases")
}

func TestSnapshotIsACopy(t *testing.T) {
	store := NewResultStore(2)
	store.AddResult(1, makeDoc(types.CaseOutcome{Name: "testOne", Status: types.CaseStatusFail, Message: "x"}), true)

	snap := store.Snapshot()
	store.AddResult(1, makeDoc(types.CaseOutcome{Name: "testTwo", Status: types.CaseStatusFail, Message: "y"}), true)

	assert.Len(t, snap.FailureMessages, 1, "earlier snapshots must not see later mutation")
	assert.Len(t, store.Snapshot().FailureMessages, 2)
}
