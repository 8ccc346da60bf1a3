package storage

import (
	"context"
	"testing"
	"time"

	"FleetGuard/internal/backend/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func grantFor(clock *fakeClock, deviceID string, d time.Duration) *models.USBGrant {
	return &models.USBGrant{
		DeviceID:  deviceID,
		GrantedBy: "admin",
		GrantedAt: clock.Now(),
		ExpiresAt: clock.Now().Add(d),
	}
}

func TestUSBGrantExpires(t *testing.T) {
	ctx := context.Background()
	clock := newFakeClock()
	store := NewUSBGrantStore(clock.Now)

	status, err := store.Grant(ctx, grantFor(clock, "d1", 15*time.Minute))
	require.NoError(t, err)
	assert.Equal(t, models.EnqueueAccepted, status)

	grant, err := store.Get(ctx, "d1")
	require.NoError(t, err)
	require.NotNil(t, grant)

	clock.Advance(15 * time.Minute)

	grant, err = store.Get(ctx, "d1")
	require.NoError(t, err)
	assert.Nil(t, grant)

	active, err := store.CountActive(ctx)
	require.NoError(t, err)
	assert.Zero(t, active)
}

func TestUSBGrantRegrant(t *testing.T) {
	ctx := context.Background()
	clock := newFakeClock()
	store := NewUSBGrantStore(clock.Now)

	_, err := store.Grant(ctx, grantFor(clock, "d1", 30*time.Minute))
	require.NoError(t, err)

	// более короткий грант не сокращает действующий
	status, err := store.Grant(ctx, grantFor(clock, "d1", 10*time.Minute))
	require.NoError(t, err)
	assert.Equal(t, models.EnqueueDeduplicated, status)

	status, err = store.Grant(ctx, grantFor(clock, "d1", time.Hour))
	require.NoError(t, err)
	assert.Equal(t, models.EnqueueAccepted, status)

	grant, err := store.Get(ctx, "d1")
	require.NoError(t, err)
	require.NotNil(t, grant)
	assert.Equal(t, clock.Now().Add(time.Hour), grant.ExpiresAt)
}

func TestUSBGrantClearAndPurge(t *testing.T) {
	ctx := context.Background()
	clock := newFakeClock()
	store := NewUSBGrantStore(clock.Now)

	_, err := store.Grant(ctx, grantFor(clock, "d1", time.Minute))
	require.NoError(t, err)
	_, err = store.Grant(ctx, grantFor(clock, "d2", time.Hour))
	require.NoError(t, err)

	cleared, err := store.Clear(ctx, "d2")
	require.NoError(t, err)
	assert.True(t, cleared)

	cleared, err = store.Clear(ctx, "d2")
	require.NoError(t, err)
	assert.False(t, cleared)

	clock.Advance(2 * time.Minute)

	purged, err := store.PurgeExpired(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, purged)

	_, err = store.Grant(ctx, &models.USBGrant{})
	assert.ErrorIs(t, err, ErrInvalidDeviceID)
}
