package memory

import (
	"context"
	"fmt"
	"sync"
	"time"

	domcatalog "github.com/Zhima-Mochi/marketplace-checkout/internal/domain/catalog"
	dominventory "github.com/Zhima-Mochi/marketplace-checkout/internal/domain/inventory"
)

// ProductRepository keeps products and their stock in process. It serves both
// the catalog and the inventory ports so stock and product share one lock.
type ProductRepository struct {
	mu     sync.RWMutex
	byID   map[string]*domcatalog.Product
	bySlug map[string]string
	// decremented records order/product pairs already taken from stock.
	decremented map[orderLine]time.Time
}

type orderLine struct{ orderID, productID string }

func NewProductRepository(seed ...*domcatalog.Product) *ProductRepository {
	r := &ProductRepository{
		byID:        make(map[string]*domcatalog.Product),
		bySlug:      make(map[string]string),
		decremented: make(map[orderLine]time.Time),
	}
	for _, p := range seed {
		_ = r.Save(context.Background(), p)
	}
	return r
}

func (r *ProductRepository) FindBySlug(ctx context.Context, slug string) (*domcatalog.Product, error) {
	_ = ctx

	r.mu.RLock()
	defer r.mu.RUnlock()

	id, ok := r.bySlug[slug]
	if !ok {
		return nil, domcatalog.ErrNotFound
	}
	return r.byID[id].Clone(), nil
}

func (r *ProductRepository) FindByID(ctx context.Context, id string) (*domcatalog.Product, error) {
	_ = ctx

	r.mu.RLock()
	defer r.mu.RUnlock()

	p, ok := r.byID[id]
	if !ok {
		return nil, domcatalog.ErrNotFound
	}
	return p.Clone(), nil
}

func (r *ProductRepository) Save(ctx context.Context, p *domcatalog.Product) error {
	_ = ctx
	if p == nil || p.ID == "" {
		return fmt.Errorf("product repository: id is required")
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if owner, ok := r.bySlug[p.Slug]; ok && owner != p.ID {
		return fmt.Errorf("product repository: slug %q already taken", p.Slug)
	}
	if prev, ok := r.byID[p.ID]; ok && prev.Slug != p.Slug {
		delete(r.bySlug, prev.Slug)
	}
	r.byID[p.ID] = p.Clone()
	r.bySlug[p.Slug] = p.ID
	return nil
}

func (r *ProductRepository) DecrementWithFloor(ctx context.Context, productID string, quantity int) (dominventory.Adjustment, error) {
	_ = ctx
	if quantity <= 0 {
		return dominventory.Adjustment{}, dominventory.ErrInvalidQuantity
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	return r.decrementLocked(productID, quantity)
}

// DecrementForOrder checks the order marker, moves stock and records the
// marker under one lock, so a failed call leaves nothing behind.
func (r *ProductRepository) DecrementForOrder(ctx context.Context, orderID, productID string, quantity int) (dominventory.Adjustment, error) {
	if quantity <= 0 {
		return dominventory.Adjustment{}, dominventory.ErrInvalidQuantity
	}
	if err := ctx.Err(); err != nil {
		return dominventory.Adjustment{}, err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	key := orderLine{orderID: orderID, productID: productID}
	if at, ok := r.decremented[key]; ok {
		return dominventory.Adjustment{ProductID: productID, Requested: quantity, At: at, Repeat: true}, nil
	}
	adj, err := r.decrementLocked(productID, quantity)
	if err != nil {
		return adj, err
	}
	r.decremented[key] = adj.At
	return adj, nil
}

func (r *ProductRepository) decrementLocked(productID string, quantity int) (dominventory.Adjustment, error) {
	p, ok := r.byID[productID]
	if !ok {
		return dominventory.Adjustment{}, dominventory.ErrNotFound
	}
	adj := dominventory.Adjustment{
		ProductID: productID,
		Requested: quantity,
		Before:    p.Inventory,
		After:     dominventory.ClampedDecrement(p.Inventory, quantity),
		At:        time.Now().UTC(),
	}
	p.Inventory = adj.After
	if adj.Applied() {
		p.UpdatedAt = adj.At
	}
	return adj, nil
}
