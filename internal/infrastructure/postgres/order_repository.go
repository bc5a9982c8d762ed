package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	domain "github.com/Zhima-Mochi/marketplace-checkout/internal/domain/order"
)

var _ domain.Repository = (*OrderRepository)(nil)

type OrderRepository struct {
	db *sql.DB
}

func NewOrderRepository(db *sql.DB) *OrderRepository {
	return &OrderRepository{db: db}
}

const orderColumns = `id, number, status, payment_status, customer, shipping_address, line_items,
	subtotal, total, invoice_id, payment_session_id, paid_at, created_at, updated_at`

func (r *OrderRepository) Insert(ctx context.Context, o *domain.Order) error {
	customer, err := json.Marshal(o.Customer)
	if err != nil {
		return err
	}
	shipping, err := json.Marshal(o.ShippingAddress)
	if err != nil {
		return err
	}
	items, err := json.Marshal(o.LineItems)
	if err != nil {
		return err
	}

	_, err = r.db.ExecContext(ctx, `
		INSERT INTO orders (`+orderColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)`,
		o.ID, o.Number, string(o.Status), string(o.PaymentStatus), customer, shipping, items,
		o.Subtotal, o.Total, o.InvoiceID, o.PaymentSessionID, o.PaidAt, o.CreatedAt, o.UpdatedAt,
	)
	if err != nil {
		if isCode(err, codeUniqueViolation) {
			return fmt.Errorf("%w: %w", domain.ErrConflict, err)
		}
		return fmt.Errorf("postgres: insert order: %w", err)
	}
	return nil
}

func (r *OrderRepository) Get(ctx context.Context, id string) (*domain.Order, error) {
	return r.load(ctx, `SELECT `+orderColumns+` FROM orders WHERE id = $1`, id)
}

func (r *OrderRepository) GetByNumber(ctx context.Context, number string) (*domain.Order, error) {
	return r.load(ctx, `SELECT `+orderColumns+` FROM orders WHERE number = $1`, number)
}

func (r *OrderRepository) load(ctx context.Context, query, arg string) (*domain.Order, error) {
	var (
		o                         domain.Order
		status, paymentStatus     string
		customer, shipping, items []byte
		paidAt                    sql.NullTime
	)
	err := r.db.QueryRowContext(ctx, query, arg).Scan(
		&o.ID, &o.Number, &status, &paymentStatus, &customer, &shipping, &items,
		&o.Subtotal, &o.Total, &o.InvoiceID, &o.PaymentSessionID, &paidAt, &o.CreatedAt, &o.UpdatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("postgres: load order: %w", err)
	}
	o.Status = domain.Status(status)
	o.PaymentStatus = domain.PaymentStatus(paymentStatus)
	if paidAt.Valid {
		t := paidAt.Time
		o.PaidAt = &t
	}
	if err := json.Unmarshal(customer, &o.Customer); err != nil {
		return nil, fmt.Errorf("postgres: decode customer: %w", err)
	}
	if err := json.Unmarshal(shipping, &o.ShippingAddress); err != nil {
		return nil, fmt.Errorf("postgres: decode shipping address: %w", err)
	}
	if err := json.Unmarshal(items, &o.LineItems); err != nil {
		return nil, fmt.Errorf("postgres: decode line items: %w", err)
	}

	effects, err := r.effects(ctx, o.ID)
	if err != nil {
		return nil, err
	}
	o.Effects = effects
	return &o, nil
}

func (r *OrderRepository) effects(ctx context.Context, orderID string) (map[domain.Effect]time.Time, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT effect, applied_at FROM order_effects WHERE order_id = $1`, orderID)
	if err != nil {
		return nil, fmt.Errorf("postgres: load effects: %w", err)
	}
	defer rows.Close()

	out := make(map[domain.Effect]time.Time)
	for rows.Next() {
		var (
			effect string
			at     time.Time
		)
		if err := rows.Scan(&effect, &at); err != nil {
			return nil, fmt.Errorf("postgres: scan effect: %w", err)
		}
		out[domain.Effect(effect)] = at
	}
	return out, rows.Err()
}

func (r *OrderRepository) AttachPaymentSession(ctx context.Context, id, sessionID string) error {
	res, err := r.db.ExecContext(ctx,
		`UPDATE orders SET payment_session_id = $2, updated_at = now() WHERE id = $1`, id, sessionID)
	if err != nil {
		return fmt.Errorf("postgres: attach session: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return domain.ErrNotFound
	}
	return nil
}

// MarkPaid is the guarded unpaid -> paid write. When no row changes, the stored
// order decides between "already paid" and an illegal transition.
func (r *OrderRepository) MarkPaid(ctx context.Context, id string, at time.Time) (bool, error) {
	res, err := r.db.ExecContext(ctx, `
		UPDATE orders
		SET status = $2, payment_status = $3, paid_at = $4, updated_at = now()
		WHERE id = $1 AND status = $5 AND payment_status = $6`,
		id, string(domain.StatusPaid), string(domain.PaymentPaid), at.UTC(),
		string(domain.StatusPending), string(domain.PaymentUnpaid),
	)
	if err != nil {
		return false, fmt.Errorf("postgres: mark paid: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 1 {
		return true, nil
	}

	o, err := r.Get(ctx, id)
	if err != nil {
		return false, err
	}
	if _, err := o.MarkPaid(at); err != nil {
		return false, err
	}
	// Already paid, or another writer won between the update and the read.
	return false, nil
}

func (r *OrderRepository) ClaimEffect(ctx context.Context, id string, effect domain.Effect, at time.Time) (bool, error) {
	res, err := r.db.ExecContext(ctx, `
		INSERT INTO order_effects (order_id, effect, applied_at)
		VALUES ($1, $2, $3)
		ON CONFLICT (order_id, effect) DO NOTHING`,
		id, string(effect), at.UTC(),
	)
	if err != nil {
		if isCode(err, codeForeignKeyViolation) {
			return false, domain.ErrNotFound
		}
		return false, fmt.Errorf("postgres: claim effect: %w", err)
	}
	n, _ := res.RowsAffected()
	return n == 1, nil
}

func (r *OrderRepository) ReleaseEffect(ctx context.Context, id string, effect domain.Effect) error {
	if _, err := r.db.ExecContext(ctx,
		`DELETE FROM order_effects WHERE order_id = $1 AND effect = $2`, id, string(effect)); err != nil {
		return fmt.Errorf("postgres: release effect: %w", err)
	}
	return nil
}
