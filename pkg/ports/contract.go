package ports

import (
	"context"
	"testing"
	"time"

	"github.com/aretw0/concierge/pkg/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// RunSessionStoreContract runs a suite of tests to verify that a SessionStore
// implementation adheres to the interface contract.
func RunSessionStoreContract(t *testing.T, store SessionStore) {
	t.Helper()
	ctx := context.Background()
	key := "whatsapp:+1555" + time.Now().Format("150405.000000")

	t.Run("Save and Load", func(t *testing.T) {
		session := domain.NewSession(key, time.Now().UTC().Truncate(time.Second))
		session.Stage = domain.StageAwaitingProvider
		session.SelectedService = "service_1"
		session.Location = &domain.Location{Latitude: 12.97, Longitude: 77.59}

		require.NoError(t, store.Save(ctx, key, session), "Save should not return error")

		loaded, err := store.Load(ctx, key)
		require.NoError(t, err, "Load should not return error")
		assert.Equal(t, key, loaded.Key)
		assert.Equal(t, domain.StageAwaitingProvider, loaded.Stage)
		assert.Equal(t, "service_1", loaded.SelectedService)
		require.NotNil(t, loaded.Location)
		assert.InDelta(t, 77.59, loaded.Location.Longitude, 1e-9)
	})

	t.Run("Load returns a copy", func(t *testing.T) {
		loaded, err := store.Load(ctx, key)
		require.NoError(t, err)
		loaded.Stage = domain.StageBookingCompleted
		loaded.Location.Latitude = 0

		again, err := store.Load(ctx, key)
		require.NoError(t, err)
		assert.Equal(t, domain.StageAwaitingProvider, again.Stage)
		assert.InDelta(t, 12.97, again.Location.Latitude, 1e-9)
	})

	t.Run("Load Non-Existent", func(t *testing.T) {
		_, err := store.Load(ctx, "missing-"+key)
		assert.ErrorIs(t, err, domain.ErrSessionNotFound)
	})

	t.Run("Delete", func(t *testing.T) {
		require.NoError(t, store.Save(ctx, key, domain.NewSession(key, time.Now())))
		require.NoError(t, store.Delete(ctx, key), "Delete should not return error")

		_, err := store.Load(ctx, key)
		assert.ErrorIs(t, err, domain.ErrSessionNotFound, "Load after Delete should return ErrSessionNotFound")

		assert.NoError(t, store.Delete(ctx, key), "Deleting twice is not an error")
	})

	t.Run("List", func(t *testing.T) {
		k1, k2 := key+"-1", key+"-2"
		require.NoError(t, store.Save(ctx, k1, domain.NewSession(k1, time.Now())))
		require.NoError(t, store.Save(ctx, k2, domain.NewSession(k2, time.Now())))
		defer func() {
			_ = store.Delete(ctx, k1)
			_ = store.Delete(ctx, k2)
		}()

		keys, err := store.List(ctx)
		require.NoError(t, err)
		assert.Contains(t, keys, k1)
		assert.Contains(t, keys, k2)
	})
}
