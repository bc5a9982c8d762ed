package catalog

import (
	"context"
	"errors"
	"strings"

	"github.com/Zhima-Mochi/marketplace-checkout/internal/application"
	"github.com/Zhima-Mochi/marketplace-checkout/internal/domain/apperr"
	domain "github.com/Zhima-Mochi/marketplace-checkout/internal/domain/catalog"
	"github.com/Zhima-Mochi/marketplace-checkout/internal/observability"

	"go.opentelemetry.io/otel/attribute"
)

const (
	catalogService        = "catalog-service"
	useCaseFindActive     = "catalog.find_active"
	useCaseReviewProduct  = "catalog.review"
	findActiveSpanName    = "FindActiveProduct"
	reviewProductSpanName = "ReviewProduct"
)

// ErrProductNotFound is returned for absent and non-purchasable products alike.
var ErrProductNotFound = apperr.Wrap(apperr.ErrNotFound, domain.ErrNotFound)

var _ application.UseCase[string, *domain.Product] = (*FindActiveProductUseCase)(nil)

// FindActiveProductUseCase resolves a slug to a product buyers may purchase.
type FindActiveProductUseCase struct {
	repo domain.Repository
	inst application.Instrument
}

func NewFindActiveProductUseCase(repo domain.Repository, tel observability.Observability) *FindActiveProductUseCase {
	return &FindActiveProductUseCase{
		repo: repo,
		inst: application.NewInstrument(catalogService, useCaseFindActive, tel),
	}
}

// Execute never exposes drafts, blocked or unreviewed products, and never leaks
// store errors: every failure reads as ErrProductNotFound.
func (uc *FindActiveProductUseCase) Execute(ctx context.Context, slug string) (_ *domain.Product, err error) {
	slug = strings.TrimSpace(slug)
	ctx, run := uc.inst.Start(ctx, findActiveSpanName, attribute.String("product.slug", slug))
	defer func() { run.End(err) }()

	if slug == "" {
		run.Fail("SLUG_REQUIRED")
		return nil, ErrProductNotFound
	}

	p, lookupErr := uc.repo.FindBySlug(ctx, slug)
	if lookupErr != nil {
		if errors.Is(lookupErr, domain.ErrNotFound) {
			run.Fail("NOT_FOUND")
		} else {
			run.Fail("LOOKUP_FAILED")
			run.Note(observability.F("lookup_error", lookupErr.Error()))
		}
		return nil, ErrProductNotFound
	}

	if !p.Purchasable() {
		run.Fail("NOT_PURCHASABLE")
		run.Note(
			observability.F("product_status", string(p.Status)),
			observability.F("validation", p.Validation.String()),
		)
		return nil, ErrProductNotFound
	}

	run.Span().SetAttributes(attribute.String("product.id", p.ID))
	return p, nil
}
