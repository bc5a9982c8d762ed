package catalog

import (
	"errors"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

var (
	ErrNotFound       = errors.New("catalog: product not found")
	ErrNotPurchasable = errors.New("catalog: product is not purchasable")
	ErrInvalidProduct = errors.New("catalog: invalid product")
)

const DefaultCurrency = "USD"

// Status is the publish status a vendor controls.
type Status string

const (
	StatusDraft    Status = "draft"
	StatusActive   Status = "active"
	StatusArchived Status = "archived"
)

type Product struct {
	ID          string
	Slug        string
	Name        string
	Description string
	Price       decimal.Decimal
	Currency    string
	Inventory   int
	Status      Status
	Validation  ValidationState
	VendorID    string
	SKU         string
	UpdatedAt   time.Time
}

// Purchasable reports whether buyers may check out against the product.
// Only an active product whose validation resolved to checked qualifies.
func (p *Product) Purchasable() bool {
	if p == nil {
		return false
	}
	return p.Status == StatusActive && p.Validation.Status() == ValidationChecked
}

// Validate checks the fields every stored product must carry.
func (p *Product) Validate() error {
	switch {
	case p == nil:
		return ErrInvalidProduct
	case strings.TrimSpace(p.Slug) == "":
		return errors.Join(ErrInvalidProduct, errors.New("slug is required"))
	case strings.TrimSpace(p.Name) == "":
		return errors.Join(ErrInvalidProduct, errors.New("name is required"))
	case p.Price.IsNegative():
		return errors.Join(ErrInvalidProduct, errors.New("price must not be negative"))
	case p.Inventory < 0:
		return errors.Join(ErrInvalidProduct, errors.New("inventory must not be negative"))
	}
	switch p.Status {
	case StatusDraft, StatusActive, StatusArchived:
	default:
		return errors.Join(ErrInvalidProduct, errors.New("unknown status "+string(p.Status)))
	}
	return nil
}

func (p *Product) CurrencyOrDefault() string {
	if p.Currency == "" {
		return DefaultCurrency
	}
	return strings.ToUpper(p.Currency)
}

func (p *Product) Clone() *Product {
	if p == nil {
		return nil
	}
	c := *p
	return &c
}
