package ledger

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestLast24hWindowBoundaryInclusive(t *testing.T) {
	t0 := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	clock := t0

	l := New()
	l.now = func() time.Time { return clock }

	l.Record(5) // sits exactly on the window boundary at query time
	clock = t0.Add(1 * time.Hour)
	l.Record(3)

	clock = t0.Add(24 * time.Hour)
	assert.InDelta(t, 8.0, l.Last24h(), 1e-9)

	l.Record(10)
	assert.InDelta(t, 18.0, l.Last24h(), 1e-9)
}

func TestLast24hExcludesOlderEntries(t *testing.T) {
	t0 := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	clock := t0

	l := New()
	l.now = func() time.Time { return clock }

	l.Record(5)
	clock = t0.Add(1 * time.Hour)
	l.Record(3)
	clock = t0.Add(30 * time.Hour)
	l.Record(10)

	// 5 and 3 are past the window now, only the 10 remains
	assert.InDelta(t, 10.0, l.Last24h(), 1e-9)

	clock = t0.Add(24 * time.Hour)
	// rewind to exactly 24h after t0: the boundary entry still counts
	assert.InDelta(t, 18.0, l.Last24h(), 1e-9)
}

func TestRecordPrunesPastRetention(t *testing.T) {
	t0 := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	clock := t0

	l := New()
	l.now = func() time.Time { return clock }

	l.Record(5)
	clock = t0.Add(49 * time.Hour)
	l.Record(1)

	assert.Len(t, l.entries, 1)
	assert.InDelta(t, 1.0, l.Last24h(), 1e-9)
}
