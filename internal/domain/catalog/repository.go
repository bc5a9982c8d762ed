package catalog

import "context"

type Repository interface {
	FindBySlug(ctx context.Context, slug string) (*Product, error)
	FindByID(ctx context.Context, id string) (*Product, error)
	Save(ctx context.Context, p *Product) error
}

// Classifier reviews product content and answers with a validation verdict.
type Classifier interface {
	Classify(ctx context.Context, p *Product) (ValidationStatus, error)
}
