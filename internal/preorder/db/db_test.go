package db_test

import (
	"context"
	"database/sql"
	"fmt"
	"testing"
	"time"

	"ms-preorder/internal/apperr"
	"ms-preorder/internal/models"
	"ms-preorder/internal/preorder/db"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/sqlitedialect"
	"github.com/uptrace/bun/driver/sqliteshim"
)

func setupTestDB(t *testing.T) *db.DB {
	t.Helper()
	// one connection keeps the in-memory database private to this test
	sqldb, err := sql.Open(sqliteshim.ShimName, ":memory:")
	require.NoError(t, err)
	sqldb.SetMaxOpenConns(1)

	bunDB := bun.NewDB(sqldb, sqlitedialect.New())
	t.Cleanup(func() { _ = bunDB.Close() })

	require.NoError(t, db.CreateSchema(context.Background(), bunDB))
	return &db.DB{Bun: bunDB}
}

func int64Ptr(v int64) *int64 { return &v }

func TestSaveAndGetPreOrder(t *testing.T) {
	store := setupTestDB(t)
	ctx := context.Background()

	rec := &models.PreOrder{CustomerID: int64Ptr(7), QuoteID: 42, Hash: "abc", Admin: "alice", Tracking: "T-1"}
	require.NoError(t, store.Save(ctx, rec))
	assert.NotZero(t, rec.ID)
	assert.False(t, rec.CreatedAt.IsZero())

	got, err := store.GetByID(ctx, rec.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(42), got.QuoteID)
	assert.Equal(t, "alice", got.Admin)
	require.NotNil(t, got.CustomerID)
	assert.Equal(t, int64(7), *got.CustomerID)

	byHash, err := store.GetByHash(ctx, "abc")
	require.NoError(t, err)
	assert.Equal(t, rec.ID, byHash.ID)
}

func TestSave_UpdateKeepsHashAndCreatedAt(t *testing.T) {
	store := setupTestDB(t)
	ctx := context.Background()

	rec := &models.PreOrder{QuoteID: 1, Hash: "h1", Admin: "system"}
	require.NoError(t, store.Save(ctx, rec))
	created := rec.CreatedAt

	rec.Hash = "changed"
	rec.QuoteID = 2
	rec.Tracking = "T-2"
	require.NoError(t, store.Save(ctx, rec))

	got, err := store.GetByID(ctx, rec.ID)
	require.NoError(t, err)
	assert.Equal(t, "h1", got.Hash)
	assert.Equal(t, int64(2), got.QuoteID)
	assert.Equal(t, "T-2", got.Tracking)
	assert.WithinDuration(t, created, got.CreatedAt, time.Second)
}

func TestSave_UpdateMissingRecord(t *testing.T) {
	store := setupTestDB(t)

	err := store.Save(context.Background(), &models.PreOrder{ID: 99, QuoteID: 1, Hash: "x"})
	assert.ErrorIs(t, err, apperr.ErrNotFound)
}

func TestSave_DuplicateHashRejected(t *testing.T) {
	store := setupTestDB(t)
	ctx := context.Background()

	require.NoError(t, store.Save(ctx, &models.PreOrder{QuoteID: 1, Hash: "dup"}))
	err := store.Save(ctx, &models.PreOrder{QuoteID: 2, Hash: "dup"})
	assert.Error(t, err)
}

func TestGetByHash_NotFound(t *testing.T) {
	store := setupTestDB(t)
	ctx := context.Background()

	_, err := store.GetByHash(ctx, "nope")
	assert.True(t, apperr.IsNotFoundEntity(err, "pre-order"))

	// a record without a quote reference cannot be resumed
	require.NoError(t, store.Save(ctx, &models.PreOrder{Hash: "empty"}))
	_, err = store.GetByHash(ctx, "empty")
	assert.ErrorIs(t, err, apperr.ErrNotFound)
}

func TestDelete(t *testing.T) {
	store := setupTestDB(t)
	ctx := context.Background()

	rec := &models.PreOrder{QuoteID: 1, Hash: "gone"}
	require.NoError(t, store.Save(ctx, rec))

	ok, err := store.Delete(ctx, rec.ID)
	require.NoError(t, err)
	assert.True(t, ok)

	_, err = store.GetByID(ctx, rec.ID)
	assert.ErrorIs(t, err, apperr.ErrNotFound)

	ok, err = store.Delete(ctx, rec.ID)
	assert.False(t, ok)
	assert.ErrorIs(t, err, apperr.ErrNotFound)
}

func TestList_PagingSortingAndFilters(t *testing.T) {
	store := setupTestDB(t)
	ctx := context.Background()

	for i := 1; i <= 25; i++ {
		admin := "system"
		if i%5 == 0 {
			admin = "bob"
		}
		rec := &models.PreOrder{CustomerID: int64Ptr(int64(i % 3)), QuoteID: int64(i), Hash: fmt.Sprintf("h%d", i), Admin: admin}
		require.NoError(t, store.Save(ctx, rec))
	}

	recs, total, err := store.List(ctx, db.ListQuery{})
	require.NoError(t, err)
	assert.Equal(t, 25, total)
	require.Len(t, recs, db.DefaultPageSize)
	assert.Equal(t, int64(25), recs[0].QuoteID, "newest first by default")

	recs, _, err = store.List(ctx, db.ListQuery{Page: 2})
	require.NoError(t, err)
	assert.Len(t, recs, 5)

	recs, total, err = store.List(ctx, db.ListQuery{Admin: "bob", SortField: "quote_id", SortDirection: "asc"})
	require.NoError(t, err)
	assert.Equal(t, 5, total)
	assert.Equal(t, int64(5), recs[0].QuoteID)

	recs, total, err = store.List(ctx, db.ListQuery{CustomerIDs: []int64{1}, PageSize: 100})
	require.NoError(t, err)
	assert.Equal(t, 9, total)
	for _, r := range recs {
		assert.Equal(t, int64(1), *r.CustomerID)
	}

	recs, total, err = store.List(ctx, db.ListQuery{CustomerIDs: []int64{}})
	require.NoError(t, err)
	assert.Zero(t, total)
	assert.Empty(t, recs)
}

func TestList_UnknownSortFieldFallsBack(t *testing.T) {
	store := setupTestDB(t)
	ctx := context.Background()
	require.NoError(t, store.Save(ctx, &models.PreOrder{QuoteID: 1, Hash: "a"}))
	require.NoError(t, store.Save(ctx, &models.PreOrder{QuoteID: 2, Hash: "b"}))

	recs, _, err := store.List(ctx, db.ListQuery{SortField: "hash; DROP TABLE pre_order"})
	require.NoError(t, err)
	require.Len(t, recs, 2)
	assert.Equal(t, "b", recs[0].Hash)
}
