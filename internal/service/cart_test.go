package service

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newCartFixture(t *testing.T) (*CartService, *fakeStore, *fakeCatalog) {
	t.Helper()
	store := newFakeStore()
	catalog := newFakeCatalog()
	svc := NewCartService(store.cartRepo(), catalog, newFakeLocker())
	return svc, store, catalog
}

func TestCartAddFirstSetsExactQuantity(t *testing.T) {
	svc, store, catalog := newCartFixture(t)
	catalog.add("p1", 5.00, 10)

	cart, err := svc.Add(context.Background(), "alice", "p1", 3)
	require.NoError(t, err)

	assert.Equal(t, 3, store.carts["alice"]["p1"])
	assert.Equal(t, 15.00, cart.Total)
}

func TestCartAddAccumulates(t *testing.T) {
	svc, store, catalog := newCartFixture(t)
	catalog.add("p1", 5.00, 10)
	ctx := context.Background()

	_, err := svc.Add(ctx, "alice", "p1", 2)
	require.NoError(t, err)
	cart, err := svc.Add(ctx, "alice", "p1", 3)
	require.NoError(t, err)

	assert.Equal(t, 5, store.carts["alice"]["p1"])
	assert.Equal(t, 25.00, cart.Total)
}

func TestCartAddRejectsNonPositiveQuantity(t *testing.T) {
	svc, _, catalog := newCartFixture(t)
	catalog.add("p1", 5.00, 10)

	_, err := svc.Add(context.Background(), "alice", "p1", 0)
	var vErr *ValidationError
	require.ErrorAs(t, err, &vErr)
	assert.Equal(t, "quantity", vErr.Field)
}

func TestCartAddChecksStockOnLineTotal(t *testing.T) {
	svc, store, catalog := newCartFixture(t)
	catalog.add("p1", 5.00, 4)
	ctx := context.Background()

	_, err := svc.Add(ctx, "alice", "p1", 3)
	require.NoError(t, err)

	// 3 déjà au panier + 2 demandés > 4 en stock
	_, err = svc.Add(ctx, "alice", "p1", 2)
	assert.ErrorIs(t, err, ErrOutOfStock)
	assert.Equal(t, 3, store.carts["alice"]["p1"])
}

func TestCartUpdateReplacesQuantity(t *testing.T) {
	svc, store, catalog := newCartFixture(t)
	catalog.add("p1", 5.00, 10)
	ctx := context.Background()

	_, err := svc.Add(ctx, "alice", "p1", 2)
	require.NoError(t, err)

	_, deleted, err := svc.Update(ctx, "alice", "p1", 7)
	require.NoError(t, err)
	assert.False(t, deleted)
	assert.Equal(t, 7, store.carts["alice"]["p1"])
}

func TestCartUpdateZeroDeletesLine(t *testing.T) {
	svc, store, catalog := newCartFixture(t)
	catalog.add("p1", 5.00, 10)
	ctx := context.Background()

	_, err := svc.Add(ctx, "alice", "p1", 2)
	require.NoError(t, err)

	cart, deleted, err := svc.Update(ctx, "alice", "p1", 0)
	require.NoError(t, err)
	assert.True(t, deleted)
	assert.Empty(t, store.carts["alice"])
	assert.Empty(t, cart.Lines)
}

func TestCartUpdateUnknownLine(t *testing.T) {
	svc, _, catalog := newCartFixture(t)
	catalog.add("p1", 5.00, 10)

	_, _, err := svc.Update(context.Background(), "alice", "p1", 2)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestCartSnapshotRepricesFromCatalog(t *testing.T) {
	svc, _, catalog := newCartFixture(t)
	catalog.add("p1", 5.00, 10)
	ctx := context.Background()

	_, err := svc.Add(ctx, "alice", "p1", 2)
	require.NoError(t, err)

	// Le prix catalogue change : le panier suit à la lecture suivante
	catalog.add("p1", 8.00, 10)
	cart, err := svc.Snapshot(ctx, "alice")
	require.NoError(t, err)
	assert.Equal(t, 16.00, cart.Total)
	require.Len(t, cart.Lines, 1)
	assert.Equal(t, 8.00, cart.Lines[0].Price)
}
