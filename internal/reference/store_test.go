package reference

import (
	"context"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"caresignal/internal/platform/config"
	platformredis "caresignal/internal/platform/redis"
	id "caresignal/pkg/domain"
)

func storesUnderTest(t *testing.T) map[string]Store {
	t.Helper()
	mr := miniredis.RunT(t)
	client, err := platformredis.New(config.Redis{
		URL:      "redis://" + mr.Addr(),
		PoolSize: 2,
	})
	require.NoError(t, err)
	t.Cleanup(func() { _ = client.Close() })

	redisStore, err := NewRedisStore(client)
	require.NoError(t, err)

	return map[string]Store{
		"memory": NewInMemoryStore(),
		"redis":  redisStore,
	}
}

func TestStoreReplaceAndList(t *testing.T) {
	ctx := context.Background()
	subject := id.SubjectID(uuid.New())
	medicine := id.MedicineID("med-a")

	for name, store := range storesUnderTest(t) {
		t.Run(name, func(t *testing.T) {
			urls, err := store.References(ctx, subject, medicine)
			require.NoError(t, err)
			assert.Empty(t, urls)

			require.NoError(t, store.Replace(ctx, subject, medicine, []string{"https://img/ref-1", "https://img/ref-2"}))

			urls, err = store.References(ctx, subject, medicine)
			require.NoError(t, err)
			assert.Equal(t, []string{"https://img/ref-1", "https://img/ref-2"}, urls)

			// Replace overwrites, never appends.
			require.NoError(t, store.Replace(ctx, subject, medicine, []string{"https://img/ref-3"}))
			urls, err = store.References(ctx, subject, medicine)
			require.NoError(t, err)
			assert.Equal(t, []string{"https://img/ref-3"}, urls)
		})
	}
}

func TestStoreScopesByMedicine(t *testing.T) {
	ctx := context.Background()
	subject := id.SubjectID(uuid.New())

	for name, store := range storesUnderTest(t) {
		t.Run(name, func(t *testing.T) {
			require.NoError(t, store.Replace(ctx, subject, "med-a", []string{"https://img/a"}))
			require.NoError(t, store.Replace(ctx, subject, "med-b", []string{"https://img/b"}))

			urls, err := store.References(ctx, subject, "med-a")
			require.NoError(t, err)
			assert.Equal(t, []string{"https://img/a"}, urls)
		})
	}
}

func TestStoreDelete(t *testing.T) {
	ctx := context.Background()
	subject := id.SubjectID(uuid.New())
	medicine := id.MedicineID("med-a")

	for name, store := range storesUnderTest(t) {
		t.Run(name, func(t *testing.T) {
			require.NoError(t, store.Replace(ctx, subject, medicine, []string{"https://img/a"}))
			require.NoError(t, store.Delete(ctx, subject, medicine))

			urls, err := store.References(ctx, subject, medicine)
			require.NoError(t, err)
			assert.Empty(t, urls)

			// Deleting a missing set stays a no-op.
			require.NoError(t, store.Delete(ctx, subject, medicine))
		})
	}
}
