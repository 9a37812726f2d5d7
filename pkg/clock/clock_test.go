package clock

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestFake(t *testing.T) {
	start := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	fake := NewFake(start)

	assert.Equal(t, start, fake.Now())

	fake.Advance(48 * time.Hour)
	assert.Equal(t, start.Add(48*time.Hour), fake.Now())

	jump := time.Date(2027, 1, 1, 0, 0, 0, 0, time.UTC)
	fake.Set(jump)
	assert.Equal(t, jump, fake.Now())
}

func TestRealIsUTC(t *testing.T) {
	now := Real{}.Now()
	assert.Equal(t, time.UTC, now.Location())
}
