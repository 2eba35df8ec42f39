package preorder

import (
	"context"
	"fmt"

	"ms-preorder/internal/apperr"
	"ms-preorder/internal/models"
	"ms-preorder/internal/preorder/db"
)

type RecordStore interface {
	Save(ctx context.Context, rec *models.PreOrder) error
	GetByID(ctx context.Context, id int64) (*models.PreOrder, error)
	GetByHash(ctx context.Context, hash string) (*models.PreOrder, error)
	Delete(ctx context.Context, id int64) (bool, error)
	List(ctx context.Context, q db.ListQuery) ([]models.PreOrder, int, error)
}

type CartStore interface {
	GetCart(ctx context.Context, id int64) (*models.Cart, error)
	SaveCart(ctx context.Context, cart *models.Cart) error
	SetActive(ctx context.Context, id int64, active bool) error
}

// Snapshot is a resolved pre-order and the cart it points at.
type Snapshot struct {
	Record *models.PreOrder
	Cart   *models.Cart
}

// Resolver turns a resume hash into its source cart.
type Resolver struct {
	Records RecordStore
	Carts   CartStore
}

func NewResolver(records RecordStore, carts CartStore) *Resolver {
	return &Resolver{Records: records, Carts: carts}
}

// Resolve fails with NotFound("pre-order") for an unknown hash and
// NotFound("quote") when the referenced cart no longer exists.
func (r *Resolver) Resolve(ctx context.Context, hash string) (*Snapshot, error) {
	if hash == "" {
		return nil, apperr.NotFound("pre-order", hash)
	}
	rec, err := r.Records.GetByHash(ctx, hash)
	if err != nil {
		return nil, err
	}
	cart, err := r.Carts.GetCart(ctx, rec.QuoteID)
	if err != nil {
		if apperr.IsNotFoundEntity(err, "quote") {
			return nil, err
		}
		return nil, fmt.Errorf("load quote %d: %w", rec.QuoteID, err)
	}
	return &Snapshot{Record: rec, Cart: cart}, nil
}
