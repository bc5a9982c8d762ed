package httppresentation

import (
	"crypto/subtle"
	"net/http"
	"strings"
	"time"

	appcatalog "github.com/Zhima-Mochi/marketplace-checkout/internal/application/catalog"
	domcatalog "github.com/Zhima-Mochi/marketplace-checkout/internal/domain/catalog"

	"github.com/shopspring/decimal"
)

type productRequest struct {
	Name             string          `json:"name"`
	Description      string          `json:"description"`
	Price            decimal.Decimal `json:"price"`
	Currency         string          `json:"currency"`
	Inventory        *int            `json:"inventory"`
	Status           string          `json:"status"`
	VendorID         string          `json:"vendorId"`
	SKU              string          `json:"sku"`
	ManuallyVerified *bool           `json:"manuallyVerified"`
	ValidationStatus string          `json:"validationStatus"`
}

type validationView struct {
	Status string `json:"status"`
	Manual bool   `json:"manual"`
}

type productView struct {
	ID          string         `json:"id"`
	Slug        string         `json:"slug"`
	Name        string         `json:"name"`
	Description string         `json:"description"`
	Price       string         `json:"price"`
	Currency    string         `json:"currency"`
	Inventory   int            `json:"inventory"`
	Status      string         `json:"status"`
	Validation  validationView `json:"validation"`
	Purchasable bool           `json:"purchasable"`
	UpdatedAt   time.Time      `json:"updatedAt"`
}

func (h *Handler) handleUpsertProduct(w http.ResponseWriter, r *http.Request) {
	if !h.adminAuthorized(r) {
		writeJSON(w, http.StatusUnauthorized, errorResponse{Error: "admin token required", Code: "unauthorized"})
		return
	}
	var req productRequest
	if err := h.decodeJSON(w, r, &req); err != nil {
		h.writeAppError(w, r, err)
		return
	}

	p, err := h.deps.Products.Execute(r.Context(), appcatalog.ReviewProductInput{
		Slug:             r.PathValue("slug"),
		Name:             req.Name,
		Description:      req.Description,
		Price:            req.Price,
		Currency:         req.Currency,
		Inventory:        req.Inventory,
		Status:           domcatalog.Status(req.Status),
		VendorID:         req.VendorID,
		SKU:              req.SKU,
		ManuallyVerified: req.ManuallyVerified,
		ValidationStatus: domcatalog.ValidationStatus(req.ValidationStatus),
	})
	if err != nil {
		h.writeAppError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, productView{
		ID:          p.ID,
		Slug:        p.Slug,
		Name:        p.Name,
		Description: p.Description,
		Price:       p.Price.StringFixed(2),
		Currency:    p.CurrencyOrDefault(),
		Inventory:   p.Inventory,
		Status:      string(p.Status),
		Validation:  validationView{Status: string(p.Validation.Status()), Manual: p.Validation.IsManual()},
		Purchasable: p.Purchasable(),
		UpdatedAt:   p.UpdatedAt,
	})
}

// adminAuthorized checks the static bearer token when one is configured.
func (h *Handler) adminAuthorized(r *http.Request) bool {
	if h.deps.AdminToken == "" {
		return true
	}
	got, ok := strings.CutPrefix(r.Header.Get("Authorization"), "Bearer ")
	return ok && subtle.ConstantTimeCompare([]byte(got), []byte(h.deps.AdminToken)) == 1
}
