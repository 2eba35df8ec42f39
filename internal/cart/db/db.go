package db

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sort"
	"time"

	"ms-preorder/internal/apperr"
	"ms-preorder/internal/models"

	"github.com/uptrace/bun"
)

type DB struct {
	Bun *bun.DB
}

// CreateSchema creates the cart, item, address and customer tables if missing.
func CreateSchema(ctx context.Context, db *bun.DB) error {
	tables := []interface{}{
		(*models.Customer)(nil),
		(*models.Cart)(nil),
		(*models.CartItem)(nil),
		(*models.CartAddress)(nil),
	}
	for _, m := range tables {
		if _, err := db.NewCreateTable().Model(m).IfNotExists().Exec(ctx); err != nil {
			return fmt.Errorf("create table for %T: %w", m, err)
		}
	}
	return nil
}

// ---------------- CARTS ----------------

// GetCart loads the header with items and addresses and relinks parent items.
func (d *DB) GetCart(ctx context.Context, id int64) (*models.Cart, error) {
	var cart models.Cart
	err := d.Bun.NewSelect().
		Model(&cart).
		Relation("Items", func(q *bun.SelectQuery) *bun.SelectQuery {
			return q.Order("id ASC")
		}).
		Relation("Addresses", func(q *bun.SelectQuery) *bun.SelectQuery {
			return q.Order("id ASC")
		}).
		Where("cart.id = ?", id).
		Limit(1).
		Scan(ctx)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, apperr.NotFound("quote", id)
	}
	if err != nil {
		return nil, err
	}
	cart.LinkItems()
	return &cart, nil
}

// SaveCart persists the whole aggregate in one transaction. New carts are
// inserted; existing carts get their header updated and children upserted.
// Parent items are written before children so parent_item_id can be set.
func (d *DB) SaveCart(ctx context.Context, cart *models.Cart) error {
	now := time.Now().UTC()
	return d.Bun.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		cart.UpdatedAt = now
		if cart.ID == 0 {
			if cart.CreatedAt.IsZero() {
				cart.CreatedAt = now
			}
			if _, err := tx.NewInsert().Model(cart).Exec(ctx); err != nil {
				return fmt.Errorf("insert cart: %w", err)
			}
		} else {
			res, err := tx.NewUpdate().Model(cart).ExcludeColumn("id", "created_at").WherePK().Exec(ctx)
			if err != nil {
				return fmt.Errorf("update cart %d: %w", cart.ID, err)
			}
			if n, err := res.RowsAffected(); err == nil && n == 0 {
				return apperr.NotFound("quote", cart.ID)
			}
		}

		for _, item := range parentsFirst(cart.Items) {
			item.CartID = cart.ID
			item.Cart = cart
			if item.ParentItem != nil {
				pid := item.ParentItem.ID
				item.ParentItemID = &pid
			}
			if err := saveItem(ctx, tx, item, now); err != nil {
				return fmt.Errorf("save item %q: %w", item.Name, err)
			}
		}

		for _, addr := range cart.Addresses {
			addr.CartID = cart.ID
			var err error
			if addr.ID == 0 {
				_, err = tx.NewInsert().Model(addr).Exec(ctx)
			} else {
				_, err = tx.NewUpdate().Model(addr).ExcludeColumn("id").WherePK().Exec(ctx)
			}
			if err != nil {
				return fmt.Errorf("save %s address: %w", addr.AddressType, err)
			}
		}
		return nil
	})
}

func saveItem(ctx context.Context, tx bun.Tx, item *models.CartItem, now time.Time) error {
	item.UpdatedAt = now
	if item.ID == 0 {
		if item.CreatedAt.IsZero() {
			item.CreatedAt = now
		}
		_, err := tx.NewInsert().Model(item).Exec(ctx)
		return err
	}
	_, err := tx.NewUpdate().Model(item).ExcludeColumn("id", "created_at").WherePK().Exec(ctx)
	return err
}

// parentsFirst orders items so that every parent precedes its children.
func parentsFirst(items []*models.CartItem) []*models.CartItem {
	out := make([]*models.CartItem, len(items))
	copy(out, items)
	depth := func(it *models.CartItem) int {
		d := 0
		for p := it.ParentItem; p != nil && d < len(items); p = p.ParentItem {
			d++
		}
		return d
	}
	sort.SliceStable(out, func(i, j int) bool { return depth(out[i]) < depth(out[j]) })
	return out
}

// SetActive flips the active flag of a cart without touching its children.
func (d *DB) SetActive(ctx context.Context, id int64, active bool) error {
	res, err := d.Bun.NewUpdate().
		Model((*models.Cart)(nil)).
		Set("is_active = ?", active).
		Set("updated_at = ?", time.Now().UTC()).
		Where("id = ?", id).
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("set cart %d active=%t: %w", id, active, err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return apperr.NotFound("quote", id)
	}
	return nil
}

// CartExists reports whether a cart row exists.
func (d *DB) CartExists(ctx context.Context, id int64) (bool, error) {
	return d.Bun.NewSelect().Model((*models.Cart)(nil)).Where("id = ?", id).Exists(ctx)
}

// ---------------- CUSTOMERS ----------------

func (d *DB) GetCustomer(ctx context.Context, id int64) (*models.Customer, error) {
	var c models.Customer
	err := d.Bun.NewSelect().Model(&c).Where("id = ?", id).Limit(1).Scan(ctx)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, apperr.NotFound("customer", id)
	}
	if err != nil {
		return nil, err
	}
	return &c, nil
}

func (d *DB) GetCustomerByEmail(ctx context.Context, email string) (*models.Customer, error) {
	var c models.Customer
	err := d.Bun.NewSelect().Model(&c).Where("email = ?", email).Limit(1).Scan(ctx)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, apperr.NotFound("customer", email)
	}
	if err != nil {
		return nil, err
	}
	return &c, nil
}

func (d *DB) SaveCustomer(ctx context.Context, c *models.Customer) error {
	if c.ID == 0 {
		if c.CreatedAt.IsZero() {
			c.CreatedAt = time.Now().UTC()
		}
		_, err := d.Bun.NewInsert().Model(c).Exec(ctx)
		if err != nil {
			return fmt.Errorf("insert customer %s: %w", c.Email, err)
		}
		return nil
	}
	_, err := d.Bun.NewUpdate().Model(c).ExcludeColumn("id", "created_at").WherePK().Exec(ctx)
	if err != nil {
		return fmt.Errorf("update customer %d: %w", c.ID, err)
	}
	return nil
}

// FindCustomerIDsByEmail matches exactly, or as a substring when like is set.
func (d *DB) FindCustomerIDsByEmail(ctx context.Context, email string, like bool) ([]int64, error) {
	ids := []int64{}
	q := d.Bun.NewSelect().Model((*models.Customer)(nil)).Column("id")
	if like {
		q = q.Where("email LIKE ?", "%"+email+"%")
	} else {
		q = q.Where("email = ?", email)
	}
	if err := q.Order("id ASC").Scan(ctx, &ids); err != nil {
		return nil, err
	}
	return ids, nil
}

// CustomerEmails maps ids to emails for grid rows.
func (d *DB) CustomerEmails(ctx context.Context, ids []int64) (map[int64]string, error) {
	out := make(map[int64]string, len(ids))
	if len(ids) == 0 {
		return out, nil
	}
	var customers []models.Customer
	err := d.Bun.NewSelect().
		Model(&customers).
		Column("id", "email").
		Where("id IN (?)", bun.In(ids)).
		Scan(ctx)
	if err != nil {
		return nil, err
	}
	for _, c := range customers {
		out[c.ID] = c.Email
	}
	return out, nil
}
