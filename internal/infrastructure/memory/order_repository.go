package memory

import (
	"context"
	"fmt"
	"sync"
	"time"

	domain "github.com/Zhima-Mochi/marketplace-checkout/internal/domain/order"
)

type OrderRepository struct {
	mu       sync.RWMutex
	orders   map[string]*domain.Order
	byNumber map[string]string
}

func NewOrderRepository() *OrderRepository {
	return &OrderRepository{
		orders:   make(map[string]*domain.Order),
		byNumber: make(map[string]string),
	}
}

func (r *OrderRepository) Insert(ctx context.Context, order *domain.Order) error {
	_ = ctx
	if order == nil || order.ID == "" {
		return fmt.Errorf("order repository: id is required")
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.orders[order.ID]; exists {
		return domain.ErrConflict
	}
	if _, exists := r.byNumber[order.Number]; exists {
		return domain.ErrConflict
	}

	r.orders[order.ID] = order.Clone()
	r.byNumber[order.Number] = order.ID
	return nil
}

func (r *OrderRepository) Get(ctx context.Context, id string) (*domain.Order, error) {
	_ = ctx

	r.mu.RLock()
	defer r.mu.RUnlock()

	order, ok := r.orders[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return order.Clone(), nil
}

func (r *OrderRepository) GetByNumber(ctx context.Context, number string) (*domain.Order, error) {
	_ = ctx

	r.mu.RLock()
	defer r.mu.RUnlock()

	id, ok := r.byNumber[number]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return r.orders[id].Clone(), nil
}

func (r *OrderRepository) AttachPaymentSession(ctx context.Context, id, sessionID string) error {
	return r.mutate(ctx, id, func(o *domain.Order) error {
		o.PaymentSessionID = sessionID
		o.UpdatedAt = time.Now().UTC()
		return nil
	})
}

func (r *OrderRepository) MarkPaid(ctx context.Context, id string, at time.Time) (bool, error) {
	var transitioned bool
	err := r.mutate(ctx, id, func(o *domain.Order) error {
		var err error
		transitioned, err = o.MarkPaid(at)
		return err
	})
	return transitioned, err
}

func (r *OrderRepository) ClaimEffect(ctx context.Context, id string, effect domain.Effect, at time.Time) (bool, error) {
	var claimed bool
	err := r.mutate(ctx, id, func(o *domain.Order) error {
		if o.EffectApplied(effect) {
			return nil
		}
		if o.Effects == nil {
			o.Effects = make(map[domain.Effect]time.Time)
		}
		o.Effects[effect] = at
		claimed = true
		return nil
	})
	return claimed, err
}

func (r *OrderRepository) ReleaseEffect(ctx context.Context, id string, effect domain.Effect) error {
	return r.mutate(ctx, id, func(o *domain.Order) error {
		delete(o.Effects, effect)
		return nil
	})
}

// mutate runs fn on the stored order under the write lock. The change is kept
// only when fn succeeds.
func (r *OrderRepository) mutate(ctx context.Context, id string, fn func(o *domain.Order) error) error {
	_ = ctx

	r.mu.Lock()
	defer r.mu.Unlock()

	stored, ok := r.orders[id]
	if !ok {
		return domain.ErrNotFound
	}
	next := stored.Clone()
	if err := fn(next); err != nil {
		return err
	}
	r.orders[id] = next
	return nil
}
