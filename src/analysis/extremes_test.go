package analysis

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestRollingExtremes_Empty(t *testing.T) {
	r := NewRollingExtremes()
	assert.Equal(t, 0.0, r.Min())
	assert.Equal(t, 0.0, r.Max())
}

func TestRollingExtremes_SameMinute(t *testing.T) {
	r := NewRollingExtremes()
	r.updateAt(230, 0)
	r.updateAt(226, 0)
	r.updateAt(238, 0)
	assert.Equal(t, 226.0, r.Min())
	assert.Equal(t, 238.0, r.Max())
}

func TestRollingExtremes_SkippedMinutesKeepRecentData(t *testing.T) {
	r := NewRollingExtremes()
	r.updateAt(240, 0)
	r.updateAt(221, 1)
	r.updateAt(230, 5)
	assert.Equal(t, 221.0, r.Min())
	assert.Equal(t, 240.0, r.Max())
}

func TestRollingExtremes_HourOldSlotIsReplaced(t *testing.T) {
	r := NewRollingExtremes()
	r.updateAt(210, 10)
	r.updateAt(231, 11)
	for m := int64(12); m < 70; m++ {
		r.updateAt(230, m)
	}
	// Minute 70 reuses minute 10's slot
	r.updateAt(229, 70)
	assert.Equal(t, 229.0, r.Min())
	assert.Equal(t, 231.0, r.Max())
}

func TestRollingExtremes_SlotBoundary(t *testing.T) {
	r := NewRollingExtremes()
	r.updateAt(49.9, 58)
	r.updateAt(50.2, 59)
	r.updateAt(50.0, 62)
	assert.Equal(t, 49.9, r.Min())
	assert.Equal(t, 50.2, r.Max())
}

func TestRollingExtremes_FeedGapOfAnHourClearsEverything(t *testing.T) {
	r := NewRollingExtremes()
	at := time.Date(2026, 1, 1, 12, 10, 0, 0, time.UTC)
	r.Update(207, at)
	r.Update(253, at.Add(time.Minute))

	// Same minute-of-hour, two hours later
	r.Update(230, at.Add(2*time.Hour+time.Minute))
	assert.Equal(t, 230.0, r.Min())
	assert.Equal(t, 230.0, r.Max())

	r.Update(231, at.Add(3*time.Hour+time.Minute))
	assert.Equal(t, 231.0, r.Min())
	assert.Equal(t, 231.0, r.Max())
}

func TestRollingExtremes_OldestSlotExpires(t *testing.T) {
	r := NewRollingExtremes()
	r.updateAt(207, 100)
	r.updateAt(232, 159)
	assert.Equal(t, 207.0, r.Min())

	r.updateAt(231, 160)
	assert.Equal(t, 231.0, r.Min())
	assert.Equal(t, 232.0, r.Max())
}

func TestRollingExtremes_ClockGoingBackwardsStartsOver(t *testing.T) {
	r := NewRollingExtremes()
	at := time.Date(2026, 1, 1, 12, 30, 0, 0, time.UTC)
	r.Update(250, at)
	r.Update(228, at.Add(-5*time.Minute))
	assert.Equal(t, 228.0, r.Min())
	assert.Equal(t, 228.0, r.Max())
}

func TestRollingExtremes_UpdateUsesWallClockMinute(t *testing.T) {
	r := NewRollingExtremes()
	at := time.Date(2026, 1, 1, 12, 34, 0, 0, time.UTC)
	r.Update(230, at)
	r.Update(232, at.Add(30*time.Second))
	r.Update(235, at.Add(time.Minute))
	assert.Equal(t, 230.0, r.Min())
	assert.Equal(t, 235.0, r.Max())
}
