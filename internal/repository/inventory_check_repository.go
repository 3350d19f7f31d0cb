package repository

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/facility-inventory-api/internal/models"
)

// InventoryCheckRepository stores shift verification snapshots.
type InventoryCheckRepository struct {
	db *sqlx.DB
}

// NewInventoryCheckRepository constructs the repository.
func NewInventoryCheckRepository(db *sqlx.DB) *InventoryCheckRepository {
	return &InventoryCheckRepository{db: db}
}

// Create inserts a snapshot.
func (r *InventoryCheckRepository) Create(ctx context.Context, check *models.InventoryCheck) error {
	if check.ID == "" {
		check.ID = uuid.NewString()
	}
	if check.PresentItems == nil {
		check.PresentItems = models.Barcodes{}
	}
	if check.MissingItems == nil {
		check.MissingItems = models.Barcodes{}
	}
	const query = `INSERT INTO inventory_checks (id, user_name, building, checked_at, confirmed, present_items, missing_items, notes)
		VALUES (:id, :user_name, :building, :checked_at, :confirmed, :present_items, :missing_items, :notes)`
	if _, err := r.db.NamedExecContext(ctx, query, check); err != nil {
		return fmt.Errorf("create inventory check: %w", err)
	}
	return nil
}

// List returns snapshots newest first. A positive limit caps the result.
func (r *InventoryCheckRepository) List(ctx context.Context, limit int) ([]models.InventoryCheck, error) {
	query := `SELECT id, user_name, building, checked_at, confirmed, present_items, missing_items, notes FROM inventory_checks ORDER BY checked_at DESC`
	if limit > 0 {
		query += fmt.Sprintf(" LIMIT %d", limit)
	}
	var checks []models.InventoryCheck
	if err := r.db.SelectContext(ctx, &checks, query); err != nil {
		return nil, fmt.Errorf("list inventory checks: %w", err)
	}
	return checks, nil
}
