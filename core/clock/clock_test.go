package clock

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestFixedClockReturnsUTC(t *testing.T) {
	paris := time.FixedZone("CET", 3600)
	c := NewFixed(time.Date(2025, 1, 1, 0, 30, 0, 0, paris))
	assert.Equal(t, time.UTC, c.Now().Location())
	assert.Equal(t, 2024, c.Now().Year())
}

func TestManualClock(t *testing.T) {
	start := time.Date(2025, 12, 31, 22, 59, 0, 0, time.UTC)
	m := NewManual(start)
	assert.Equal(t, start, m.Now())

	m.Advance(2 * time.Minute)
	assert.Equal(t, 2026, m.Now().Year())

	m.Set(start)
	assert.Equal(t, start, m.Now())
}

func TestSystemClockIsUTC(t *testing.T) {
	assert.Equal(t, time.UTC, NewSystem().Now().Location())
}
