package sqlite

import (
	"context"
	"errors"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Abdurahmanit/GroupProject/catalog-service/internal/listing/domain"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func TestSetGetDelete(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	_, err := s.Get(ctx, "favorites")
	assert.True(t, errors.Is(err, domain.ErrKeyNotFound))

	require.NoError(t, s.Set(ctx, "favorites", []byte(`[1]`)))
	require.NoError(t, s.Set(ctx, "favorites", []byte(`[1,2]`)))

	got, err := s.Get(ctx, "favorites")
	require.NoError(t, err)
	assert.Equal(t, `[1,2]`, string(got))

	require.NoError(t, s.Delete(ctx, "favorites"))
	require.NoError(t, s.Delete(ctx, "favorites"), "deleting a missing key is not an error")
	_, err = s.Get(ctx, "favorites")
	assert.True(t, errors.Is(err, domain.ErrKeyNotFound))
}

func TestKeysByPrefix(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	require.NoError(t, s.Set(ctx, "listings:Clothes", []byte(`[]`)))
	require.NoError(t, s.Set(ctx, "listings:Rental", []byte(`[]`)))
	require.NoError(t, s.Set(ctx, "favorites", []byte(`[]`)))

	keys, err := s.Keys(ctx, "listings:")
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"listings:Clothes", "listings:Rental"}, keys)
}

func TestValuesSurviveReopen(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "catalog.db")

	s, err := Open(path)
	require.NoError(t, err)
	require.NoError(t, s.Set(ctx, "favorites:seller-1", []byte(`[{"listing_id":42}]`)))
	require.NoError(t, s.Close())

	reopened, err := Open(path)
	require.NoError(t, err)
	defer reopened.Close()

	got, err := reopened.Get(ctx, "favorites:seller-1")
	require.NoError(t, err)
	assert.JSONEq(t, `[{"listing_id":42}]`, string(got))
}
