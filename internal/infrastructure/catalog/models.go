package catalog

import (
	"encoding/json"
	"sort"
	"time"

	"github.com/sellerdesk/variant-engine/internal/domain"
)

// productRow persists one catalog product. Attributes travel as a JSON
// string so the schema stays portable across sqlite and postgres.
type productRow struct {
	ID         string `gorm:"primaryKey;size:64"`
	SKU        string `gorm:"size:128;index"`
	Title      string `gorm:"size:512"`
	Price      float64
	Category   string `gorm:"size:128"`
	Brand      string `gorm:"size:128"`
	Attributes string
}

func (productRow) TableName() string { return "products" }

// groupRow persists one variant group. Members live in their own table so
// a unique index can hold the one-group-per-product invariant.
type groupRow struct {
	ID            string `gorm:"primaryKey;size:64"`
	Name          string `gorm:"size:512"`
	MainProductID string `gorm:"size:64"`
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

func (groupRow) TableName() string { return "variant_groups" }

// groupMemberRow is one group membership. The unique index on ProductID
// makes the database itself refuse a product in two groups.
type groupMemberRow struct {
	GroupID   string `gorm:"primaryKey;size:64;index"`
	ProductID string `gorm:"primaryKey;size:64;uniqueIndex"`
}

func (groupMemberRow) TableName() string { return "variant_group_members" }

// feedbackRow persists one feedback event. Seq keeps append order even when
// timestamps collide.
type feedbackRow struct {
	Seq          uint64 `gorm:"primaryKey;autoIncrement"`
	EventID      string `gorm:"size:64;uniqueIndex"`
	SuggestionID string `gorm:"size:64"`
	BaseKey      string `gorm:"size:255;index"`
	Action       string `gorm:"size:32"`
	Confidence   float64
	Timestamp    time.Time
	Metadata     string
}

func (feedbackRow) TableName() string { return "feedback_events" }

func productToRow(p domain.Product) productRow {
	return productRow{
		ID:         p.ID,
		SKU:        p.SKU,
		Title:      p.Title,
		Price:      p.Price,
		Category:   p.Category,
		Brand:      p.Brand,
		Attributes: encodeJSONMap(p.Attributes),
	}
}

func rowToProduct(r productRow) domain.Product {
	return domain.Product{
		ID:         r.ID,
		SKU:        r.SKU,
		Title:      r.Title,
		Price:      r.Price,
		Category:   r.Category,
		Brand:      r.Brand,
		Attributes: decodeJSONMap(r.Attributes),
	}
}

func rowToGroup(r groupRow, memberIDs []string) domain.VariantGroup {
	ids := append([]string(nil), memberIDs...)
	sort.Strings(ids)
	return domain.VariantGroup{
		ID:               r.ID,
		Name:             r.Name,
		MainProductID:    r.MainProductID,
		MemberProductIDs: ids,
		CreatedAt:        r.CreatedAt,
		UpdatedAt:        r.UpdatedAt,
	}
}

func feedbackToRow(e domain.FeedbackEvent) feedbackRow {
	return feedbackRow{
		EventID:      e.ID,
		SuggestionID: e.SuggestionID,
		BaseKey:      e.BaseKey,
		Action:       string(e.Action),
		Confidence:   e.Confidence,
		Timestamp:    e.Timestamp,
		Metadata:     encodeJSONMap(e.Metadata),
	}
}

func rowToFeedback(r feedbackRow) domain.FeedbackEvent {
	return domain.FeedbackEvent{
		ID:           r.EventID,
		SuggestionID: r.SuggestionID,
		BaseKey:      r.BaseKey,
		Action:       domain.FeedbackAction(r.Action),
		Confidence:   r.Confidence,
		Timestamp:    r.Timestamp,
		Metadata:     decodeJSONMap(r.Metadata),
	}
}

func encodeJSONMap(m map[string]string) string {
	if len(m) == 0 {
		return ""
	}
	raw, err := json.Marshal(m)
	if err != nil {
		return ""
	}
	return string(raw)
}

func decodeJSONMap(s string) map[string]string {
	if s == "" {
		return nil
	}
	var m map[string]string
	if err := json.Unmarshal([]byte(s), &m); err != nil {
		return nil
	}
	return m
}
