package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/facility-inventory-api/internal/models"
)

// ErrVersionConflict is returned when a versioned update matched no row.
var ErrVersionConflict = errors.New("version conflict")

const itemColumns = `id, barcode, name, building, category, is_available, is_missing, is_broken, maintenance, archive,
	checked_out_by, belongs_to_tech_bag, tech_bag_contents, mall_chair_refs, logs, resolved_issues, version, created_at, updated_at`

// ItemRepository persists inventory items.
type ItemRepository struct {
	db *sqlx.DB
}

// NewItemRepository constructs an item repository.
func NewItemRepository(db *sqlx.DB) *ItemRepository {
	return &ItemRepository{db: db}
}

func (r *ItemRepository) exec(exec sqlx.ExtContext) sqlx.ExtContext {
	if exec != nil {
		return exec
	}
	return r.db
}

// List returns items matching filter ordered by barcode.
func (r *ItemRepository) List(ctx context.Context, filter models.ItemFilter) ([]models.Item, error) {
	query := `SELECT ` + itemColumns + ` FROM items WHERE 1=1`
	var args []interface{}

	if filter.Building != "" {
		query += " AND building = ?"
		args = append(args, filter.Building)
	}
	if filter.Category != "" {
		query += " AND category = ?"
		args = append(args, filter.Category)
	}
	if filter.Barcode != "" {
		query += " AND barcode = ?"
		args = append(args, filter.Barcode)
	}
	switch filter.Status {
	case models.StatusFilterAvailable:
		query += " AND archive = ? AND maintenance = ? AND is_missing = ? AND is_broken = ? AND is_available = ?"
		args = append(args, false, false, false, false, true)
	case models.StatusFilterCheckedOut:
		query += " AND archive = ? AND is_available = ?"
		args = append(args, false, false)
	}
	query += " ORDER BY barcode ASC"

	var items []models.Item
	if err := r.db.SelectContext(ctx, &items, r.db.Rebind(query), args...); err != nil {
		return nil, fmt.Errorf("list items: %w", err)
	}
	return items, nil
}

// FindByBarcode loads one item. A missing row yields sql.ErrNoRows.
func (r *ItemRepository) FindByBarcode(ctx context.Context, exec sqlx.ExtContext, barcode string) (*models.Item, error) {
	target := r.exec(exec)
	var item models.Item
	if err := sqlx.GetContext(ctx, target, &item, target.Rebind(`SELECT `+itemColumns+` FROM items WHERE barcode = ?`), barcode); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("find item by barcode: %w", err)
	}
	return &item, nil
}

// FindByID loads one item by identifier.
func (r *ItemRepository) FindByID(ctx context.Context, exec sqlx.ExtContext, id string) (*models.Item, error) {
	target := r.exec(exec)
	var item models.Item
	if err := sqlx.GetContext(ctx, target, &item, target.Rebind(`SELECT `+itemColumns+` FROM items WHERE id = ?`), id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("find item by id: %w", err)
	}
	return &item, nil
}

// FindByBarcodes loads every item whose barcode is listed. Unknown barcodes are skipped.
func (r *ItemRepository) FindByBarcodes(ctx context.Context, exec sqlx.ExtContext, barcodes []string) ([]models.Item, error) {
	if len(barcodes) == 0 {
		return []models.Item{}, nil
	}
	target := r.exec(exec)
	query, args, err := sqlx.In(`SELECT `+itemColumns+` FROM items WHERE barcode IN (?) ORDER BY barcode ASC`, barcodes)
	if err != nil {
		return nil, fmt.Errorf("build item barcode query: %w", err)
	}
	var items []models.Item
	if err := sqlx.SelectContext(ctx, target, &items, target.Rebind(query), args...); err != nil {
		return nil, fmt.Errorf("find items by barcodes: %w", err)
	}
	return items, nil
}

// FindTableHoldingChair returns the mall table whose chair refs include barcode, or sql.ErrNoRows.
func (r *ItemRepository) FindTableHoldingChair(ctx context.Context, exec sqlx.ExtContext, barcode string) (*models.Item, error) {
	target := r.exec(exec)
	query := target.Rebind(`SELECT ` + itemColumns + ` FROM items WHERE category = ? AND mall_chair_refs LIKE ? ORDER BY barcode ASC`)
	var tables []models.Item
	if err := sqlx.SelectContext(ctx, target, &tables, query, string(models.CategoryMallTable), `%"`+barcode+`"%`); err != nil {
		return nil, fmt.Errorf("find table holding chair: %w", err)
	}
	// LIKE treats % and _ in barcodes as wildcards, so confirm the exact ref.
	for idx := range tables {
		if tables[idx].MallChairRefs.Contains(barcode) {
			return &tables[idx], nil
		}
	}
	return nil, sql.ErrNoRows
}

// Lookup returns barcode and name pairs for the listed barcodes.
func (r *ItemRepository) Lookup(ctx context.Context, barcodes []string) ([]models.ItemSummary, error) {
	if len(barcodes) == 0 {
		return []models.ItemSummary{}, nil
	}
	query, args, err := sqlx.In(`SELECT barcode, name FROM items WHERE barcode IN (?) ORDER BY barcode ASC`, barcodes)
	if err != nil {
		return nil, fmt.Errorf("build lookup query: %w", err)
	}
	var out []models.ItemSummary
	if err := r.db.SelectContext(ctx, &out, r.db.Rebind(query), args...); err != nil {
		return nil, fmt.Errorf("lookup items: %w", err)
	}
	return out, nil
}

// ListUnreturned returns active items that are currently held by someone.
func (r *ItemRepository) ListUnreturned(ctx context.Context) ([]models.Item, error) {
	query := r.db.Rebind(`SELECT ` + itemColumns + ` FROM items WHERE checked_out_by IS NOT NULL AND is_available = ? AND archive = ? ORDER BY updated_at ASC`)
	var items []models.Item
	if err := r.db.SelectContext(ctx, &items, query, false, false); err != nil {
		return nil, fmt.Errorf("list unreturned items: %w", err)
	}
	return items, nil
}

// ListWithLogs returns every item carrying history, for per-user log views.
func (r *ItemRepository) ListWithLogs(ctx context.Context) ([]models.Item, error) {
	query := r.db.Rebind(`SELECT ` + itemColumns + ` FROM items WHERE logs <> ? ORDER BY barcode ASC`)
	var items []models.Item
	if err := r.db.SelectContext(ctx, &items, query, "[]"); err != nil {
		return nil, fmt.Errorf("list items with logs: %w", err)
	}
	return items, nil
}

// ExistsBarcode reports whether barcode belongs to an item other than excludeID.
func (r *ItemRepository) ExistsBarcode(ctx context.Context, barcode, excludeID string) (bool, error) {
	query := r.db.Rebind(`SELECT COUNT(*) FROM items WHERE barcode = ? AND id <> ?`)
	var count int
	if err := r.db.GetContext(ctx, &count, query, strings.TrimSpace(barcode), excludeID); err != nil {
		return false, fmt.Errorf("check barcode exists: %w", err)
	}
	return count > 0, nil
}

// Create inserts a new item at version 1.
func (r *ItemRepository) Create(ctx context.Context, item *models.Item) error {
	if item.ID == "" {
		item.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	item.CreatedAt = now
	item.UpdatedAt = now
	item.Version = 1
	if item.Logs == nil {
		item.Logs = models.LogEntries{}
	}
	if item.ResolvedIssues == nil {
		item.ResolvedIssues = models.LogEntries{}
	}
	if item.MallChairRefs == nil {
		item.MallChairRefs = models.Barcodes{}
	}

	const query = `INSERT INTO items (id, barcode, name, building, category, is_available, is_missing, is_broken, maintenance, archive,
		checked_out_by, belongs_to_tech_bag, tech_bag_contents, mall_chair_refs, logs, resolved_issues, version, created_at, updated_at)
		VALUES (:id, :barcode, :name, :building, :category, :is_available, :is_missing, :is_broken, :maintenance, :archive,
		:checked_out_by, :belongs_to_tech_bag, :tech_bag_contents, :mall_chair_refs, :logs, :resolved_issues, :version, :created_at, :updated_at)`
	if _, err := r.db.NamedExecContext(ctx, query, item); err != nil {
		return fmt.Errorf("create item: %w", err)
	}
	return nil
}

// Update writes every mutable column guarded by the version the item was read at.
// On success item.Version is advanced. A concurrent write yields ErrVersionConflict.
func (r *ItemRepository) Update(ctx context.Context, exec sqlx.ExtContext, item *models.Item) error {
	target := r.exec(exec)
	readVersion := item.Version
	item.UpdatedAt = time.Now().UTC()
	item.Version = readVersion + 1

	const query = `UPDATE items SET barcode = :barcode, name = :name, building = :building, category = :category,
		is_available = :is_available, is_missing = :is_missing, is_broken = :is_broken, maintenance = :maintenance, archive = :archive,
		checked_out_by = :checked_out_by, belongs_to_tech_bag = :belongs_to_tech_bag, tech_bag_contents = :tech_bag_contents,
		mall_chair_refs = :mall_chair_refs, logs = :logs, resolved_issues = :resolved_issues, version = :version, updated_at = :updated_at
		WHERE id = :id AND version = :read_version`

	res, err := sqlx.NamedExecContext(ctx, target, query, versionedItem{Item: item, ReadVersion: readVersion})
	if err != nil {
		item.Version = readVersion
		return fmt.Errorf("update item: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		item.Version = readVersion
		return fmt.Errorf("update item rows affected: %w", err)
	}
	if affected == 0 {
		item.Version = readVersion
		return ErrVersionConflict
	}
	return nil
}

type versionedItem struct {
	*models.Item
	ReadVersion int `db:"read_version"`
}

// Delete removes an item permanently. A missing row yields sql.ErrNoRows.
func (r *ItemRepository) Delete(ctx context.Context, id string) error {
	res, err := r.db.ExecContext(ctx, r.db.Rebind(`DELETE FROM items WHERE id = ?`), id)
	if err != nil {
		return fmt.Errorf("delete item: %w", err)
	}
	if affected, err := res.RowsAffected(); err == nil && affected == 0 {
		return sql.ErrNoRows
	}
	return nil
}
