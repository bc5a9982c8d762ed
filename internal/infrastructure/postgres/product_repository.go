package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	domcatalog "github.com/Zhima-Mochi/marketplace-checkout/internal/domain/catalog"
	dominventory "github.com/Zhima-Mochi/marketplace-checkout/internal/domain/inventory"
	domorder "github.com/Zhima-Mochi/marketplace-checkout/internal/domain/order"
)

var (
	_ domcatalog.Repository = (*ProductRepository)(nil)
	_ dominventory.Store    = (*ProductRepository)(nil)
)

type ProductRepository struct {
	db *sql.DB
}

func NewProductRepository(db *sql.DB) *ProductRepository {
	return &ProductRepository{db: db}
}

const productColumns = `id, slug, name, description, price, currency, inventory, status,
	validation_status, validation_manual, vendor_id, sku, updated_at`

func (r *ProductRepository) FindBySlug(ctx context.Context, slug string) (*domcatalog.Product, error) {
	return r.findOne(ctx, `SELECT `+productColumns+` FROM products WHERE slug = $1`, slug)
}

func (r *ProductRepository) FindByID(ctx context.Context, id string) (*domcatalog.Product, error) {
	return r.findOne(ctx, `SELECT `+productColumns+` FROM products WHERE id = $1`, id)
}

func (r *ProductRepository) findOne(ctx context.Context, query string, arg string) (*domcatalog.Product, error) {
	var (
		p       domcatalog.Product
		vstatus string
		manual  bool
	)
	err := r.db.QueryRowContext(ctx, query, arg).Scan(
		&p.ID, &p.Slug, &p.Name, &p.Description, &p.Price, &p.Currency, &p.Inventory, &p.Status,
		&vstatus, &manual, &p.VendorID, &p.SKU, &p.UpdatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domcatalog.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("postgres: load product: %w", err)
	}
	if manual {
		p.Validation = domcatalog.ManualOverride(domcatalog.ValidationStatus(vstatus))
	} else {
		p.Validation = domcatalog.Auto(domcatalog.ValidationStatus(vstatus))
	}
	return &p, nil
}

// Save upserts by id.
func (r *ProductRepository) Save(ctx context.Context, p *domcatalog.Product) error {
	if p == nil || p.ID == "" {
		return fmt.Errorf("postgres: product id is required")
	}
	updated := p.UpdatedAt
	if updated.IsZero() {
		updated = time.Now().UTC()
	}
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO products (`+productColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)
		ON CONFLICT (id) DO UPDATE SET
			slug = EXCLUDED.slug,
			name = EXCLUDED.name,
			description = EXCLUDED.description,
			price = EXCLUDED.price,
			currency = EXCLUDED.currency,
			inventory = EXCLUDED.inventory,
			status = EXCLUDED.status,
			validation_status = EXCLUDED.validation_status,
			validation_manual = EXCLUDED.validation_manual,
			vendor_id = EXCLUDED.vendor_id,
			sku = EXCLUDED.sku,
			updated_at = EXCLUDED.updated_at`,
		p.ID, p.Slug, p.Name, p.Description, p.Price, p.CurrencyOrDefault(), p.Inventory, string(p.Status),
		string(p.Validation.Status()), p.Validation.IsManual(), p.VendorID, p.SKU, updated,
	)
	if err != nil {
		if isCode(err, codeUniqueViolation) {
			return fmt.Errorf("postgres: slug %q already taken: %w", p.Slug, err)
		}
		return fmt.Errorf("postgres: save product: %w", err)
	}
	return nil
}

const decrementQuery = `
	WITH prev AS (
		SELECT id, inventory FROM products WHERE id = $1 FOR UPDATE
	)
	UPDATE products p
	SET inventory = CASE WHEN prev.inventory <= 0 THEN prev.inventory
	                     ELSE GREATEST(prev.inventory - $2, 0) END,
	    updated_at = CASE WHEN prev.inventory <= 0 THEN p.updated_at ELSE now() END
	FROM prev
	WHERE p.id = prev.id
	RETURNING prev.inventory, p.inventory, p.updated_at`

// rowQuerier is satisfied by *sql.DB and *sql.Tx.
type rowQuerier interface {
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// DecrementWithFloor locks the row, reads the old stock and writes the clamped
// value in one statement.
func (r *ProductRepository) DecrementWithFloor(ctx context.Context, productID string, quantity int) (dominventory.Adjustment, error) {
	if quantity <= 0 {
		return dominventory.Adjustment{}, dominventory.ErrInvalidQuantity
	}
	return decrement(ctx, r.db, productID, quantity)
}

// DecrementForOrder records the order's inventory marker in order_effects and
// moves stock in one transaction. A conflict on the marker means an earlier
// call already committed both.
func (r *ProductRepository) DecrementForOrder(ctx context.Context, orderID, productID string, quantity int) (_ dominventory.Adjustment, err error) {
	if quantity <= 0 {
		return dominventory.Adjustment{}, dominventory.ErrInvalidQuantity
	}
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return dominventory.Adjustment{}, fmt.Errorf("postgres: begin decrement: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	res, err := tx.ExecContext(ctx, `
		INSERT INTO order_effects (order_id, effect, applied_at)
		VALUES ($1, $2, now())
		ON CONFLICT (order_id, effect) DO NOTHING`,
		orderID, string(domorder.InventoryEffect(productID)),
	)
	if err != nil {
		if isCode(err, codeForeignKeyViolation) {
			return dominventory.Adjustment{}, fmt.Errorf("postgres: decrement for unknown order %s: %w", orderID, err)
		}
		return dominventory.Adjustment{}, fmt.Errorf("postgres: record inventory effect: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		if err = tx.Commit(); err != nil {
			return dominventory.Adjustment{}, fmt.Errorf("postgres: commit decrement: %w", err)
		}
		return dominventory.Adjustment{ProductID: productID, Requested: quantity, Repeat: true}, nil
	}

	adj, err := decrement(ctx, tx, productID, quantity)
	if err != nil {
		return dominventory.Adjustment{}, err
	}
	if err = tx.Commit(); err != nil {
		return dominventory.Adjustment{}, fmt.Errorf("postgres: commit decrement: %w", err)
	}
	return adj, nil
}

func decrement(ctx context.Context, q rowQuerier, productID string, quantity int) (dominventory.Adjustment, error) {
	adj := dominventory.Adjustment{ProductID: productID, Requested: quantity}
	err := q.QueryRowContext(ctx, decrementQuery, productID, quantity).Scan(&adj.Before, &adj.After, &adj.At)
	if errors.Is(err, sql.ErrNoRows) {
		return dominventory.Adjustment{}, dominventory.ErrNotFound
	}
	if err != nil {
		return dominventory.Adjustment{}, fmt.Errorf("postgres: decrement inventory: %w", err)
	}
	return adj, nil
}
