package domain

// Product represents a catalog item owned by an external system.
// The engine reads products but never mutates them.
type Product struct {
	ID         string            `json:"id"`
	SKU        string            `json:"sku"`
	Title      string            `json:"title"`
	Price      float64           `json:"price"`
	Category   string            `json:"category,omitempty"`
	Brand      string            `json:"brand,omitempty"`
	Attributes map[string]string `json:"attributes,omitempty"`
}

// ProductView is a read-side projection of a product annotated with its
// variant-group membership. Derived on demand, never persisted.
type ProductView struct {
	Product
	HasVariants    bool   `json:"hasVariants"`
	VariantGroupID string `json:"variantGroupId,omitempty"`
}
