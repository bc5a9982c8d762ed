package order

import "time"

// OrderCreatedEvent is emitted once a pending order has been stored.
type OrderCreatedEvent struct {
	OrderID     string    `json:"orderId"`
	OrderNumber string    `json:"orderNumber"`
	ProductID   string    `json:"productId"`
	Quantity    int       `json:"quantity"`
	Total       string    `json:"total"`
	Currency    string    `json:"currency"`
	OccurredAt  time.Time `json:"occurredAt"`
}

func (OrderCreatedEvent) EventName() string { return "order.created" }

func NewOrderCreatedEvent(o *Order) OrderCreatedEvent {
	e := OrderCreatedEvent{
		OrderID:     o.ID,
		OrderNumber: o.Number,
		Total:       o.Total.StringFixed(2),
		Currency:    o.Currency(),
		OccurredAt:  time.Now().UTC(),
	}
	if len(o.LineItems) > 0 {
		e.ProductID = o.LineItems[0].ProductID
		e.Quantity = o.LineItems[0].Quantity
	}
	return e
}

type PaidItem struct {
	ProductID string `json:"productId"`
	Quantity  int    `json:"quantity"`
}

// OrderPaidEvent is emitted on the unpaid -> paid transition only.
type OrderPaidEvent struct {
	OrderID         string     `json:"orderId"`
	OrderNumber     string     `json:"orderNumber"`
	ProviderEventID string     `json:"providerEventId"`
	Items           []PaidItem `json:"items"`
	Total           string     `json:"total"`
	Currency        string     `json:"currency"`
	OccurredAt      time.Time  `json:"occurredAt"`
}

func (OrderPaidEvent) EventName() string { return "order.paid" }

func NewOrderPaidEvent(o *Order, providerEventID string) OrderPaidEvent {
	items := make([]PaidItem, 0, len(o.LineItems))
	for _, li := range o.LineItems {
		items = append(items, PaidItem{ProductID: li.ProductID, Quantity: li.Quantity})
	}
	return OrderPaidEvent{
		OrderID:         o.ID,
		OrderNumber:     o.Number,
		ProviderEventID: providerEventID,
		Items:           items,
		Total:           o.Total.StringFixed(2),
		Currency:        o.Currency(),
		OccurredAt:      time.Now().UTC(),
	}
}

func (e OrderCreatedEvent) EventKey() string { return e.OrderID }

func (e OrderPaidEvent) EventKey() string { return e.OrderID }
