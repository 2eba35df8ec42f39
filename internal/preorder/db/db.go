package db

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"ms-preorder/internal/apperr"
	"ms-preorder/internal/models"

	"github.com/uptrace/bun"
)

const (
	DefaultPageSize      = 20
	DefaultPage          = 1
	DefaultSortField     = "entity_id"
	DefaultSortDirection = "DESC"
)

var sortable = map[string]bool{
	"entity_id":   true,
	"customer_id": true,
	"quote_id":    true,
	"admin":       true,
	"tracking":    true,
	"created_at":  true,
}

type DB struct {
	Bun *bun.DB
}

// ListQuery drives the admin grid. CustomerIDs == nil means no customer filter;
// a non-nil empty slice matches nothing.
type ListQuery struct {
	CustomerIDs   []int64
	Admin         string
	Tracking      string
	SortField     string
	SortDirection string
	Page          int
	PageSize      int
}

// CreateSchema creates the pre_order table if missing.
func CreateSchema(ctx context.Context, db *bun.DB) error {
	_, err := db.NewCreateTable().Model((*models.PreOrder)(nil)).IfNotExists().Exec(ctx)
	return err
}

// ---------------- PRE-ORDERS ----------------

// Save inserts a new record (ID == 0) or updates an existing one.
// created_at is assigned on first insert only; hash never changes after insert.
func (d *DB) Save(ctx context.Context, rec *models.PreOrder) error {
	if rec.ID == 0 {
		if rec.CreatedAt.IsZero() {
			rec.CreatedAt = time.Now().UTC()
		}
		if _, err := d.Bun.NewInsert().Model(rec).Exec(ctx); err != nil {
			return fmt.Errorf("save pre-order: %w", err)
		}
		return nil
	}

	res, err := d.Bun.NewUpdate().
		Model(rec).
		Column("customer_id", "quote_id", "admin", "tracking").
		WherePK().
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("save pre-order %d: %w", rec.ID, err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return apperr.NotFound("pre-order", rec.ID)
	}
	return nil
}

// GetByID → fetch one record by its surrogate key
func (d *DB) GetByID(ctx context.Context, id int64) (*models.PreOrder, error) {
	var rec models.PreOrder
	err := d.Bun.NewSelect().
		Model(&rec).
		Where("entity_id = ?", id).
		Limit(1).
		Scan(ctx)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, apperr.NotFound("pre-order", id)
	}
	if err != nil {
		return nil, err
	}
	return &rec, nil
}

// GetByHash → fetch the record behind a resume link. Rows without a quote
// reference are reported as missing.
func (d *DB) GetByHash(ctx context.Context, hash string) (*models.PreOrder, error) {
	var rec models.PreOrder
	err := d.Bun.NewSelect().
		Model(&rec).
		Where("hash = ?", hash).
		Limit(1).
		Scan(ctx)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, apperr.NotFound("pre-order", hash)
	}
	if err != nil {
		return nil, err
	}
	if rec.QuoteID == 0 {
		return nil, apperr.NotFound("pre-order", hash)
	}
	return &rec, nil
}

// Delete → remove a record by ID
func (d *DB) Delete(ctx context.Context, id int64) (bool, error) {
	res, err := d.Bun.NewDelete().
		Model((*models.PreOrder)(nil)).
		Where("entity_id = ?", id).
		Exec(ctx)
	if err != nil {
		return false, fmt.Errorf("delete pre-order %d: %w", id, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	if n == 0 {
		return false, apperr.NotFound("pre-order", id)
	}
	return true, nil
}

// List → one page of the admin grid plus the total row count
func (d *DB) List(ctx context.Context, q ListQuery) ([]models.PreOrder, int, error) {
	q = normalize(q)

	var recs []models.PreOrder
	sel := d.Bun.NewSelect().Model(&recs)

	if q.CustomerIDs != nil {
		if len(q.CustomerIDs) == 0 {
			return []models.PreOrder{}, 0, nil
		}
		sel = sel.Where("customer_id IN (?)", bun.In(q.CustomerIDs))
	}
	if q.Admin != "" {
		sel = sel.Where("admin = ?", q.Admin)
	}
	if q.Tracking != "" {
		sel = sel.Where("tracking = ?", q.Tracking)
	}

	count, err := sel.
		OrderExpr(fmt.Sprintf("%s %s", q.SortField, q.SortDirection)).
		Limit(q.PageSize).
		Offset((q.Page - 1) * q.PageSize).
		ScanAndCount(ctx)
	if err != nil {
		return nil, 0, err
	}
	if recs == nil {
		recs = []models.PreOrder{}
	}
	return recs, count, nil
}

func normalize(q ListQuery) ListQuery {
	if !sortable[q.SortField] {
		q.SortField = DefaultSortField
	}
	switch q.SortDirection {
	case "ASC", "asc":
		q.SortDirection = "ASC"
	default:
		q.SortDirection = DefaultSortDirection
	}
	if q.Page < 1 {
		q.Page = DefaultPage
	}
	if q.PageSize < 1 {
		q.PageSize = DefaultPageSize
	}
	return q
}
