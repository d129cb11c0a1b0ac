package resilience

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPerfTrackerRingEvictsOldest(t *testing.T) {
	p := NewPerfTracker(3, 0.5, nil)

	p.Record("parse", 10*time.Millisecond, nil)
	p.Record("parse", 20*time.Millisecond, nil)
	p.Record("parse", 30*time.Millisecond, nil)
	p.Record("parse", 40*time.Millisecond, nil)

	snap := p.Snapshot()["parse"]
	require.Equal(t, 3, snap.Count)
	// The 10ms sample was evicted, so max reflects the newest window.
	assert.Equal(t, 40*time.Millisecond, snap.Max)
	assert.Equal(t, 30*time.Millisecond, snap.P50)
}

func TestPerfTrackerErrorRate(t *testing.T) {
	p := NewPerfTracker(100, 0.5, nil)

	for i := 0; i < 6; i++ {
		p.Record("llm", time.Millisecond, nil)
	}
	for i := 0; i < 4; i++ {
		p.Record("llm", time.Millisecond, errors.New("fail"))
	}

	snap := p.Snapshot()["llm"]
	assert.Equal(t, 10, snap.Count)
	assert.InDelta(t, 0.4, snap.ErrorRate, 0.0001)
}

func TestPerfTrackerPercentiles(t *testing.T) {
	p := NewPerfTracker(100, 0.5, nil)

	for i := 1; i <= 20; i++ {
		p.Record("score", time.Duration(i)*time.Millisecond, nil)
	}

	snap := p.Snapshot()["score"]
	assert.Equal(t, 10*time.Millisecond, snap.P50)
	assert.Equal(t, 19*time.Millisecond, snap.P95)
	assert.Equal(t, 20*time.Millisecond, snap.Max)
}

func TestPerfTrackerMeasure(t *testing.T) {
	p := NewPerfTracker(100, 0.5, nil)

	err := p.Measure("ocr", func() error { return nil })
	require.NoError(t, err)

	boom := errors.New("boom")
	err = p.Measure("ocr", func() error { return boom })
	assert.Equal(t, boom, err)

	snap := p.Snapshot()["ocr"]
	assert.Equal(t, 2, snap.Count)
	assert.InDelta(t, 0.5, snap.ErrorRate, 0.0001)
}

func TestPerfTrackerSeparatesOperations(t *testing.T) {
	p := NewPerfTracker(100, 0.5, nil)

	p.Record("parse", time.Millisecond, nil)
	p.Record("llm", 2*time.Millisecond, nil)

	snaps := p.Snapshot()
	assert.Len(t, snaps, 2)
	assert.Equal(t, 1, snaps["parse"].Count)
	assert.Equal(t, 1, snaps["llm"].Count)
}
