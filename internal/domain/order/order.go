package order

import (
	"errors"
	"net/mail"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

var (
	ErrNotFound               = errors.New("order: not found")
	ErrConflict               = errors.New("order: already exists")
	ErrInvalidQuantity        = errors.New("order: quantity must be a positive integer")
	ErrInvalidPrice           = errors.New("order: unit price must not be negative")
	ErrInvalidCustomer        = errors.New("order: customer name and a valid email are required")
	ErrInvalidAddress         = errors.New("order: shipping line1, city and country are required")
	ErrNoLineItems            = errors.New("order: at least one line item is required")
	ErrInvalidStateTransition = errors.New("order: invalid state transition")
)

type Status string

const (
	StatusPending   Status = "pending"
	StatusPaid      Status = "paid"
	StatusShipped   Status = "shipped"
	StatusCancelled Status = "cancelled"
)

type PaymentStatus string

const (
	PaymentUnpaid   PaymentStatus = "unpaid"
	PaymentPaid     PaymentStatus = "paid"
	PaymentRefunded PaymentStatus = "refunded"
)

// Effect names a downstream side effect of an order becoming paid.
type Effect string

const (
	EffectInventory    Effect = "inventory"
	EffectConfirmation Effect = "confirmation"
)

// InventoryEffect is the per product marker for a line item's stock decrement.
func InventoryEffect(productID string) Effect {
	return Effect(string(EffectInventory) + ":" + productID)
}

type Customer struct {
	Name  string `json:"name"`
	Email string `json:"email"`
	Phone string `json:"phone,omitempty"`
}

type Address struct {
	Line1      string `json:"line1"`
	Line2      string `json:"line2,omitempty"`
	City       string `json:"city"`
	Region     string `json:"region,omitempty"`
	PostalCode string `json:"postalCode,omitempty"`
	Country    string `json:"country"`
}

// ProductSnapshot freezes catalog data at order time.
type ProductSnapshot struct {
	Name     string          `json:"name"`
	Price    decimal.Decimal `json:"price"`
	Currency string          `json:"currency"`
}

type LineItem struct {
	ProductID   string          `json:"productId"`
	ProductSlug string          `json:"productSlug"`
	Snapshot    ProductSnapshot `json:"productSnapshot"`
	Quantity    int             `json:"quantity"`
	UnitPrice   decimal.Decimal `json:"unitPrice"`
	Subtotal    decimal.Decimal `json:"subtotal"`
}

// NewLineItem snapshots a product at the given quantity.
func NewLineItem(productID, slug, name string, price decimal.Decimal, currency string, quantity int) (LineItem, error) {
	if quantity < 1 {
		return LineItem{}, ErrInvalidQuantity
	}
	if price.IsNegative() {
		return LineItem{}, ErrInvalidPrice
	}
	return LineItem{
		ProductID:   productID,
		ProductSlug: slug,
		Snapshot:    ProductSnapshot{Name: name, Price: price, Currency: currency},
		Quantity:    quantity,
		UnitPrice:   price,
		Subtotal:    price.Mul(decimal.NewFromInt(int64(quantity))),
	}, nil
}

type Order struct {
	ID               string
	Number           string
	Status           Status
	PaymentStatus    PaymentStatus
	Customer         Customer
	ShippingAddress  Address
	LineItems        []LineItem
	Subtotal         decimal.Decimal
	Total            decimal.Decimal
	InvoiceID        string
	PaymentSessionID string
	Effects          map[Effect]time.Time
	PaidAt           *time.Time
	CreatedAt        time.Time
	UpdatedAt        time.Time
}

// New builds a pending, unpaid order. Totals are derived from the line items.
func New(id, number string, customer Customer, shipping Address, items []LineItem) (*Order, error) {
	if id == "" || number == "" {
		return nil, errors.New("order: id and number are required")
	}
	customer = trimCustomer(customer)
	if customer.Name == "" || !validEmail(customer.Email) {
		return nil, ErrInvalidCustomer
	}
	shipping = trimAddress(shipping)
	if shipping.Line1 == "" || shipping.City == "" || shipping.Country == "" {
		return nil, ErrInvalidAddress
	}
	if len(items) == 0 {
		return nil, ErrNoLineItems
	}

	subtotal := decimal.Zero
	lines := make([]LineItem, len(items))
	for i, it := range items {
		if it.Quantity < 1 {
			return nil, ErrInvalidQuantity
		}
		if it.UnitPrice.IsNegative() {
			return nil, ErrInvalidPrice
		}
		it.Subtotal = it.UnitPrice.Mul(decimal.NewFromInt(int64(it.Quantity)))
		subtotal = subtotal.Add(it.Subtotal)
		lines[i] = it
	}

	now := time.Now().UTC()
	return &Order{
		ID:              id,
		Number:          number,
		Status:          StatusPending,
		PaymentStatus:   PaymentUnpaid,
		Customer:        customer,
		ShippingAddress: shipping,
		LineItems:       lines,
		Subtotal:        subtotal,
		Total:           subtotal,
		Effects:         map[Effect]time.Time{},
		CreatedAt:       now,
		UpdatedAt:       now,
	}, nil
}

// Currency of the order, taken from its first line item.
func (o *Order) Currency() string {
	if len(o.LineItems) == 0 || o.LineItems[0].Snapshot.Currency == "" {
		return "USD"
	}
	return o.LineItems[0].Snapshot.Currency
}

func (o *Order) IsPaid() bool {
	return o.PaymentStatus == PaymentPaid
}

func (o *Order) EffectApplied(e Effect) bool {
	_, ok := o.Effects[e]
	return ok
}

func (o *Order) Clone() *Order {
	if o == nil {
		return nil
	}
	c := *o
	c.LineItems = append([]LineItem(nil), o.LineItems...)
	c.Effects = make(map[Effect]time.Time, len(o.Effects))
	for k, v := range o.Effects {
		c.Effects[k] = v
	}
	if o.PaidAt != nil {
		t := *o.PaidAt
		c.PaidAt = &t
	}
	return &c
}

func (o *Order) touch() {
	o.UpdatedAt = time.Now().UTC()
}

func validEmail(s string) bool {
	if s == "" {
		return false
	}
	addr, err := mail.ParseAddress(s)
	return err == nil && addr.Address == s
}

func trimCustomer(c Customer) Customer {
	c.Name = strings.TrimSpace(c.Name)
	c.Email = strings.TrimSpace(c.Email)
	c.Phone = strings.TrimSpace(c.Phone)
	return c
}

func trimAddress(a Address) Address {
	a.Line1 = strings.TrimSpace(a.Line1)
	a.Line2 = strings.TrimSpace(a.Line2)
	a.City = strings.TrimSpace(a.City)
	a.Region = strings.TrimSpace(a.Region)
	a.PostalCode = strings.TrimSpace(a.PostalCode)
	a.Country = strings.TrimSpace(a.Country)
	return a
}
