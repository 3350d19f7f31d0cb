package repository

import (
	"context"
	"database/sql"
	"regexp"
	"testing"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/facility-inventory-api/internal/models"
	"github.com/noah-isme/facility-inventory-api/pkg/database"
)

func TestItemListBuildsStatusFilter(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewItemRepository(db)

	mock.ExpectQuery(regexp.QuoteMeta("WHERE 1=1 AND building = ? AND archive = ? AND maintenance = ? AND is_missing = ? AND is_broken = ? AND is_available = ? ORDER BY barcode ASC")).
		WithArgs("Memorial Union", false, false, false, false, true).
		WillReturnRows(sqlmock.NewRows([]string{"id", "barcode"}))

	items, err := repo.List(context.Background(), models.ItemFilter{Building: "Memorial Union", Status: models.StatusFilterAvailable})
	require.NoError(t, err)
	assert.Empty(t, items)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestItemUpdateDetectsStaleVersion(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewItemRepository(db)

	mock.ExpectExec(regexp.QuoteMeta("WHERE id = ? AND version = ?")).WillReturnResult(sqlmock.NewResult(0, 0))

	item := &models.Item{ID: "i1", Barcode: "B1", Version: 3}
	err := repo.Update(context.Background(), nil, item)
	assert.ErrorIs(t, err, ErrVersionConflict)
	assert.Equal(t, 3, item.Version)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func seedItem(t *testing.T, repo *ItemRepository, barcode string, category models.ItemCategory) *models.Item {
	t.Helper()
	item := &models.Item{Barcode: barcode, Name: barcode + " name", Building: models.BuildingMemorialUnion, Category: category, IsAvailable: true}
	require.NoError(t, repo.Create(context.Background(), item))
	return item
}

func TestItemRepositoryRoundTripOnSQLite(t *testing.T) {
	db := database.NewTestDB(t)
	repo := NewItemRepository(db)
	ctx := context.Background()

	hdmi := "H1"
	bag := &models.Item{Barcode: "TB1", Name: "Tech Bag 1", Building: models.BuildingStudentPavilion, Category: models.CategoryTechBag, IsAvailable: true,
		TechBagContents: models.TechBagContents{HDMICable: &hdmi}}
	require.NoError(t, repo.Create(ctx, bag))
	seedItem(t, repo, "H1", models.CategoryHDMICable)

	loaded, err := repo.FindByBarcode(ctx, nil, "TB1")
	require.NoError(t, err)
	assert.Equal(t, 1, loaded.Version)
	require.NotNil(t, loaded.TechBagContents.HDMICable)
	assert.Equal(t, "H1", *loaded.TechBagContents.HDMICable)
	assert.Nil(t, loaded.TechBagContents.Clicker)
	assert.True(t, loaded.IsAvailable)

	holder := "alice"
	loaded.IsAvailable = false
	loaded.CheckedOutBy = &holder
	loaded.Logs = append(loaded.Logs, models.LogEntry{Action: models.ActionCheckOut, User: holder})
	require.NoError(t, repo.Update(ctx, nil, loaded))
	assert.Equal(t, 2, loaded.Version)

	stale := *loaded
	stale.Version = 1
	assert.ErrorIs(t, repo.Update(ctx, nil, &stale), ErrVersionConflict)

	unreturned, err := repo.ListUnreturned(ctx)
	require.NoError(t, err)
	require.Len(t, unreturned, 1)
	assert.Equal(t, "TB1", unreturned[0].Barcode)
	assert.Len(t, unreturned[0].Logs, 1)

	withLogs, err := repo.ListWithLogs(ctx)
	require.NoError(t, err)
	assert.Len(t, withLogs, 1)

	checkedOut, err := repo.List(ctx, models.ItemFilter{Status: models.StatusFilterCheckedOut})
	require.NoError(t, err)
	assert.Len(t, checkedOut, 1)

	found, err := repo.FindByBarcodes(ctx, nil, []string{"H1", "TB1", "NOPE"})
	require.NoError(t, err)
	assert.Len(t, found, 2)

	names, err := repo.Lookup(ctx, []string{"H1"})
	require.NoError(t, err)
	assert.Equal(t, []models.ItemSummary{{Barcode: "H1", Name: "H1 name"}}, names)

	taken, err := repo.ExistsBarcode(ctx, "H1", bag.ID)
	require.NoError(t, err)
	assert.True(t, taken)

	require.NoError(t, repo.Delete(ctx, bag.ID))
	_, err = repo.FindByBarcode(ctx, nil, "TB1")
	assert.ErrorIs(t, err, sql.ErrNoRows)
	assert.ErrorIs(t, repo.Delete(ctx, bag.ID), sql.ErrNoRows)
}

func TestItemUpdatesInsideTransaction(t *testing.T) {
	db := database.NewTestDB(t)
	repo := NewItemRepository(db)
	ctx := context.Background()
	seedItem(t, repo, "T1", models.CategoryMallTable)

	tx, err := db.BeginTxx(ctx, nil)
	require.NoError(t, err)
	item, err := repo.FindByBarcode(ctx, tx, "T1")
	require.NoError(t, err)
	item.IsAvailable = false
	require.NoError(t, repo.Update(ctx, tx, item))
	require.NoError(t, tx.Rollback())

	after, err := repo.FindByBarcode(ctx, nil, "T1")
	require.NoError(t, err)
	assert.True(t, after.IsAvailable)
	assert.Equal(t, 1, after.Version)
}

func TestFindTableHoldingChairOnSQLite(t *testing.T) {
	db := database.NewTestDB(t)
	repo := NewItemRepository(db)
	ctx := context.Background()

	table := seedItem(t, repo, "MT1", models.CategoryMallTable)
	seedItem(t, repo, "CH_1", models.CategoryMallChair)
	seedItem(t, repo, "CHX1", models.CategoryMallChair)

	_, err := repo.FindTableHoldingChair(ctx, nil, "CH_1")
	assert.ErrorIs(t, err, sql.ErrNoRows)

	table.MallChairRefs = models.Barcodes{"CH_1"}
	require.NoError(t, repo.Update(ctx, nil, table))

	holder, err := repo.FindTableHoldingChair(ctx, nil, "CH_1")
	require.NoError(t, err)
	assert.Equal(t, "MT1", holder.Barcode)

	_, err = repo.FindTableHoldingChair(ctx, nil, "CHX1")
	assert.ErrorIs(t, err, sql.ErrNoRows)
}
