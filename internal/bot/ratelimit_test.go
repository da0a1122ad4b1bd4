package bot

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestRateLimiter(t *testing.T) {
	now := time.Date(2025, 1, 1, 12, 0, 0, 0, time.UTC)
	r := NewRateLimiter(func(id int64) bool { return id == adminID })
	r.now = func() time.Time { return now }

	assert.False(t, r.IsLimited(100, "claim"))
	assert.True(t, r.IsLimited(100, "claim"))
	assert.False(t, r.IsLimited(200, "claim"), "limits are per user")
	assert.False(t, r.IsLimited(100, "support"), "limits are per action")

	now = now.Add(4 * time.Second)
	assert.False(t, r.IsLimited(100, "claim"))

	assert.False(t, r.IsLimited(adminID, "claim"))
	assert.False(t, r.IsLimited(adminID, "claim"))

	assert.False(t, r.IsLimited(100, "unlisted"))
	assert.False(t, r.IsLimited(100, "unlisted"))
}
