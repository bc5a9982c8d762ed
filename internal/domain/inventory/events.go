package inventory

import "time"

// InventoryDecrementedEvent is emitted after a paid line item reduced stock.
type InventoryDecrementedEvent struct {
	OrderID    string    `json:"orderId"`
	ProductID  string    `json:"productId"`
	Requested  int       `json:"requested"`
	Before     int       `json:"before"`
	After      int       `json:"after"`
	OccurredAt time.Time `json:"occurredAt"`
}

func (InventoryDecrementedEvent) EventName() string { return "inventory.decremented" }

func NewInventoryDecrementedEvent(orderID string, a Adjustment) InventoryDecrementedEvent {
	return InventoryDecrementedEvent{
		OrderID:    orderID,
		ProductID:  a.ProductID,
		Requested:  a.Requested,
		Before:     a.Before,
		After:      a.After,
		OccurredAt: time.Now().UTC(),
	}
}

func (e InventoryDecrementedEvent) EventKey() string { return e.ProductID }
