package repository

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/facility-inventory-api/internal/models"
	"github.com/noah-isme/facility-inventory-api/pkg/database"
)

func TestInventoryCheckRepositoryListsNewestFirst(t *testing.T) {
	db := database.NewTestDB(t)
	repo := NewInventoryCheckRepository(db)
	ctx := context.Background()

	base := time.Date(2024, 3, 1, 9, 0, 0, 0, time.UTC)
	for i, user := range []string{"early", "middle", "late"} {
		check := &models.InventoryCheck{
			User:         user,
			Building:     models.BuildingMemorialUnion,
			CheckedAt:    base.Add(time.Duration(i) * time.Hour),
			Confirmed:    true,
			PresentItems: models.Barcodes{"TB-1"},
			Notes:        "N/A",
		}
		require.NoError(t, repo.Create(ctx, check))
		assert.NotEmpty(t, check.ID)
	}

	all, err := repo.List(ctx, 0)
	require.NoError(t, err)
	require.Len(t, all, 3)
	assert.Equal(t, "late", all[0].User)
	assert.Equal(t, models.Barcodes{"TB-1"}, all[0].PresentItems)
	assert.Empty(t, all[0].MissingItems)

	latest, err := repo.List(ctx, 2)
	require.NoError(t, err)
	require.Len(t, latest, 2)
	assert.Equal(t, "middle", latest[1].User)
}
