package domain

import (
	"context"
	"time"
)

// CatalogRepository defines the interface for reading the product catalog.
// Pagination and upstream transport concerns belong to the implementation;
// the engine always works from a full snapshot.
type CatalogRepository interface {
	FetchProducts(ctx context.Context) ([]Product, error)
	GetProduct(ctx context.Context, id string) (*Product, error)
	ReplaceProducts(ctx context.Context, products []Product) error
}

// GroupStore defines the interface for variant-group persistence. Store
// responses are the source of truth: callers reconcile their in-memory
// state from what the store returns and never assume success optimistically.
type GroupStore interface {
	SaveGroup(ctx context.Context, group VariantGroup) (*VariantGroup, error)
	GetGroup(ctx context.Context, id string) (*VariantGroup, error)
	ListGroups(ctx context.Context) ([]VariantGroup, error)
	DeleteGroup(ctx context.Context, id string) error
}

// FeedbackSink defines the interface for the append-only feedback journal.
// Append must be safe for concurrent writers. Callers treat Append as
// fire-and-forget: failures are logged, never retried.
type FeedbackSink interface {
	Append(ctx context.Context, event FeedbackEvent) error
	History(ctx context.Context) ([]FeedbackEvent, error)
	Clear(ctx context.Context) error
}

// Detector defines the interface for running one detection pass. The
// in-process engine and the remote analysis client satisfy the same
// contract; callers cannot tell them apart.
type Detector interface {
	Run(ctx context.Context, req DetectionRequest) (*DetectionResult, error)
}

// CacheRepository defines the interface for caching operations
type CacheRepository interface {
	Get(ctx context.Context, key string) (interface{}, error)
	Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error
	Delete(ctx context.Context, key string) error
	Exists(ctx context.Context, key string) (bool, error)
}
