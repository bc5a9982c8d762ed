package catalog

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/Zhima-Mochi/marketplace-checkout/internal/application"
	"github.com/Zhima-Mochi/marketplace-checkout/internal/domain/apperr"
	domain "github.com/Zhima-Mochi/marketplace-checkout/internal/domain/catalog"
	"github.com/Zhima-Mochi/marketplace-checkout/internal/observability"

	"github.com/shopspring/decimal"
	"go.opentelemetry.io/otel/attribute"
)

const (
	classifierPeer     = "classifier"
	classifierEndpoint = "classify"
	classifyTimeout    = 10 * time.Second
)

// ReviewProductInput is a vendor or reviewer edit of a product, keyed by slug.
type ReviewProductInput struct {
	Slug        string
	Name        string
	Description string
	Price       decimal.Decimal
	Currency    string
	Inventory   *int
	Status      domain.Status
	VendorID    string
	SKU         string

	// ManuallyVerified toggles the reviewer override. Nil keeps the current mode.
	ManuallyVerified *bool
	// ValidationStatus is applied only under manual override.
	ValidationStatus domain.ValidationStatus
}

type ReviewProductUseCase struct {
	repo       domain.Repository
	classifier domain.Classifier
	ids        IDGenerator
	inst       application.Instrument
}

func NewReviewProductUseCase(repo domain.Repository, classifier domain.Classifier, ids IDGenerator, tel observability.Observability) *ReviewProductUseCase {
	return &ReviewProductUseCase{
		repo:       repo,
		classifier: classifier,
		ids:        ids,
		inst:       application.NewInstrument(catalogService, useCaseReviewProduct, tel),
	}
}

// Execute upserts the product and folds the edit into its validation state.
// The classifier is consulted only when the state machine asks for a verdict.
func (uc *ReviewProductUseCase) Execute(ctx context.Context, in ReviewProductInput) (_ *domain.Product, err error) {
	in.Slug = strings.TrimSpace(in.Slug)
	ctx, run := uc.inst.Start(ctx, reviewProductSpanName, attribute.String("product.slug", in.Slug))
	defer func() { run.End(err) }()

	if in.Slug == "" {
		run.Fail("SLUG_REQUIRED")
		return nil, apperr.Invalid("slug is required")
	}

	existing, lookupErr := uc.repo.FindBySlug(ctx, in.Slug)
	switch {
	case lookupErr == nil:
	case errors.Is(lookupErr, domain.ErrNotFound):
		existing = nil
	default:
		run.Fail("LOOKUP_FAILED")
		return nil, lookupErr
	}

	p := &domain.Product{
		ID:         uc.ids.NewID(),
		Slug:       in.Slug,
		Status:     domain.StatusDraft,
		Validation: domain.Auto(domain.ValidationPending),
	}
	contentChanged := true
	if existing != nil {
		p = existing.Clone()
		contentChanged = p.Name != in.Name || p.Description != in.Description
	}

	p.Name = strings.TrimSpace(in.Name)
	p.Description = in.Description
	p.Price = in.Price
	p.Currency = strings.ToUpper(strings.TrimSpace(in.Currency))
	if in.Inventory != nil {
		p.Inventory = *in.Inventory
	}
	if in.Status != "" {
		p.Status = in.Status
	}
	if in.VendorID != "" {
		p.VendorID = in.VendorID
	}
	if in.SKU != "" {
		p.SKU = in.SKU
	}
	if verr := p.Validate(); verr != nil {
		run.Fail("PRODUCT_INVALID")
		return nil, apperr.Wrap(apperr.ErrInvalidInput, verr)
	}

	edit := domain.ValidationEdit{
		SetManual:      in.ManuallyVerified,
		Status:         in.ValidationStatus,
		ContentChanged: contentChanged,
	}
	if domain.NeedsClassification(p.Validation, edit) {
		edit.Verdict = uc.classify(ctx, run, p)
	}
	before := p.Validation
	p.Validation = domain.NextValidationState(before, edit)
	p.UpdatedAt = time.Now().UTC()

	run.Note(
		observability.F("validation_before", before.String()),
		observability.F("validation_after", p.Validation.String()),
	)
	run.Span().SetAttributes(attribute.String("product.validation", p.Validation.String()))

	if saveErr := uc.repo.Save(ctx, p); saveErr != nil {
		run.Fail("SAVE_FAILED")
		return nil, saveErr
	}
	return p, nil
}

// classify asks the classifier for a verdict. Any failure yields an empty verdict,
// which the state machine turns into needs_review.
func (uc *ReviewProductUseCase) classify(ctx context.Context, run *application.Run, p *domain.Product) domain.ValidationStatus {
	if uc.classifier == nil {
		run.Note(observability.F("classifier", "disabled"))
		return ""
	}
	cctx, cancel := context.WithTimeout(ctx, classifyTimeout)
	defer cancel()

	var verdict domain.ValidationStatus
	err := application.External(uc.inst.Metrics(), classifierPeer, classifierEndpoint, func() error {
		v, err := uc.classifier.Classify(cctx, p)
		verdict = v
		return err
	})
	if err != nil {
		run.Logger().Warn("product_classification_failed",
			observability.F("product_slug", p.Slug),
			observability.F("error", err.Error()),
		)
		return ""
	}
	return verdict
}
