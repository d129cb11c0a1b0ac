package resilience

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestDegradationCanProceedWithNonCriticalDown(t *testing.T) {
	d := NewDegradation([]string{"llm"}, nil)
	d.SetAvailable("llm", true)
	d.SetAvailable("benchmarks", false)
	d.SetAvailable("ocr", false)

	ok, down := d.CanProceed()
	assert.True(t, ok)
	assert.Equal(t, []string{"benchmarks", "ocr"}, down)
}

func TestDegradationBlocksWhenCriticalDown(t *testing.T) {
	d := NewDegradation([]string{"llm"}, nil)
	d.SetAvailable("llm", false)

	ok, down := d.CanProceed()
	assert.False(t, ok)
	assert.Equal(t, []string{"llm"}, down)
}

func TestDegradationUnknownServiceIsAvailable(t *testing.T) {
	d := NewDegradation(nil, nil)
	assert.True(t, d.Available("never-registered"))
}

func TestDegradationCriticalMembership(t *testing.T) {
	d := NewDegradation([]string{"llm", "storage"}, nil)
	assert.True(t, d.IsCritical("llm"))
	assert.True(t, d.IsCritical("storage"))
	assert.False(t, d.IsCritical("benchmarks"))
}

func TestDegradationSnapshot(t *testing.T) {
	d := NewDegradation([]string{"llm"}, nil)
	d.SetAvailable("llm", true)
	d.SetAvailable("benchmarks", false)

	snap := d.Snapshot()
	assert.True(t, snap["llm"])
	assert.False(t, snap["benchmarks"])
}
