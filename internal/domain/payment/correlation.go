package payment

const (
	MetaOrderID     = "orderId"
	MetaOrderNumber = "orderNumber"
	MetaProductID   = "productId"
	MetaProductSlug = "productSlug"
)

// Correlation ties a provider session back to the order that requested it.
type Correlation struct {
	OrderID     string
	OrderNumber string
	ProductID   string
	ProductSlug string
}

func (c Correlation) Metadata() map[string]string {
	m := make(map[string]string, 4)
	put := func(k, v string) {
		if v != "" {
			m[k] = v
		}
	}
	put(MetaOrderID, c.OrderID)
	put(MetaOrderNumber, c.OrderNumber)
	put(MetaProductID, c.ProductID)
	put(MetaProductSlug, c.ProductSlug)
	return m
}

func CorrelationFromMetadata(m map[string]string) Correlation {
	return Correlation{
		OrderID:     m[MetaOrderID],
		OrderNumber: m[MetaOrderNumber],
		ProductID:   m[MetaProductID],
		ProductSlug: m[MetaProductSlug],
	}
}

// HasFallback reports whether the number based lookup has all it needs.
func (c Correlation) HasFallback() bool {
	return c.OrderNumber != "" && c.ProductSlug != "" && c.ProductID != ""
}

func (c Correlation) Empty() bool {
	return c.OrderID == "" && !c.HasFallback()
}
