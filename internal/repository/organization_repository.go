package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/facility-inventory-api/internal/models"
)

const organizationColumns = `id, name, name_key, active, reservations, version, created_at, updated_at`

// OrganizationRepository persists organizations and their embedded reservation log.
type OrganizationRepository struct {
	db *sqlx.DB
}

// NewOrganizationRepository constructs an organization repository.
func NewOrganizationRepository(db *sqlx.DB) *OrganizationRepository {
	return &OrganizationRepository{db: db}
}

func (r *OrganizationRepository) exec(exec sqlx.ExtContext) sqlx.ExtContext {
	if exec != nil {
		return exec
	}
	return r.db
}

// FindByKey loads an organization by canonical name key. A missing row yields sql.ErrNoRows.
func (r *OrganizationRepository) FindByKey(ctx context.Context, exec sqlx.ExtContext, nameKey string) (*models.Organization, error) {
	target := r.exec(exec)
	var org models.Organization
	query := target.Rebind(`SELECT ` + organizationColumns + ` FROM organizations WHERE name_key = ?`)
	if err := sqlx.GetContext(ctx, target, &org, query, nameKey); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("find organization: %w", err)
	}
	return &org, nil
}

// List returns organizations ordered by name, optionally only active ones.
func (r *OrganizationRepository) List(ctx context.Context, activeOnly bool) ([]models.Organization, error) {
	query := `SELECT ` + organizationColumns + ` FROM organizations`
	var args []interface{}
	if activeOnly {
		query += ` WHERE active = ?`
		args = append(args, true)
	}
	query += ` ORDER BY name ASC`

	var orgs []models.Organization
	if err := r.db.SelectContext(ctx, &orgs, r.db.Rebind(query), args...); err != nil {
		return nil, fmt.Errorf("list organizations: %w", err)
	}
	return orgs, nil
}

// ListNames returns every organization display name.
func (r *OrganizationRepository) ListNames(ctx context.Context) ([]string, error) {
	var names []string
	if err := r.db.SelectContext(ctx, &names, `SELECT name FROM organizations ORDER BY name ASC`); err != nil {
		return nil, fmt.Errorf("list organization names: %w", err)
	}
	return names, nil
}

// Create inserts a new organization at version 1.
func (r *OrganizationRepository) Create(ctx context.Context, exec sqlx.ExtContext, org *models.Organization) error {
	if org.ID == "" {
		org.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	org.CreatedAt = now
	org.UpdatedAt = now
	org.Version = 1
	if org.Reservations == nil {
		org.Reservations = models.Reservations{}
	}
	org.RefreshActive()

	const query = `INSERT INTO organizations (id, name, name_key, active, reservations, version, created_at, updated_at)
		VALUES (:id, :name, :name_key, :active, :reservations, :version, :created_at, :updated_at)`
	if _, err := sqlx.NamedExecContext(ctx, r.exec(exec), query, org); err != nil {
		return fmt.Errorf("create organization: %w", err)
	}
	return nil
}

// Update persists the reservation log guarded by version and recomputes active.
func (r *OrganizationRepository) Update(ctx context.Context, exec sqlx.ExtContext, org *models.Organization) error {
	readVersion := org.Version
	org.RefreshActive()
	org.UpdatedAt = time.Now().UTC()
	org.Version = readVersion + 1

	const query = `UPDATE organizations SET active = :active, reservations = :reservations, version = :version, updated_at = :updated_at
		WHERE id = :id AND version = :read_version`
	res, err := sqlx.NamedExecContext(ctx, r.exec(exec), query, versionedOrganization{Organization: org, ReadVersion: readVersion})
	if err != nil {
		org.Version = readVersion
		return fmt.Errorf("update organization: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		org.Version = readVersion
		return fmt.Errorf("update organization rows affected: %w", err)
	}
	if affected == 0 {
		org.Version = readVersion
		return ErrVersionConflict
	}
	return nil
}

type versionedOrganization struct {
	*models.Organization
	ReadVersion int `db:"read_version"`
}
