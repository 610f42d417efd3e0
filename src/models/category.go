package models

import "time"

// Category groups transactions. Categories are append-only.
type Category struct {
	ID        string          `json:"id"`
	Name      string          `json:"name"`
	Icon      string          `json:"icon"`  // Icon token understood by the UI
	Color     string          `json:"color"` // Color token, e.g. "#EF4444"
	Type      TransactionType `json:"type"`
	IsSystem  bool            `json:"isSystem"`
	CreatedAt time.Time       `json:"createdAt"`
}

// NewCategory is the payload accepted by CreateCategory.
// ID is normally empty; the seed path supplies well-known ids.
type NewCategory struct {
	ID       string          `json:"id,omitempty"`
	Name     string          `json:"name"`
	Icon     string          `json:"icon"`
	Color    string          `json:"color"`
	Type     TransactionType `json:"type"`
	IsSystem bool            `json:"isSystem"`
}

// Build stamps the payload. A supplied ID wins over the generated one.
func (n NewCategory) Build(generatedID string, now time.Time) Category {
	id := n.ID
	if id == "" {
		id = generatedID
	}
	return Category{
		ID:        id,
		Name:      n.Name,
		Icon:      n.Icon,
		Color:     n.Color,
		Type:      n.Type,
		IsSystem:  n.IsSystem,
		CreatedAt: now,
	}
}

// Normalized returns a copy with the timestamp in storage precision.
func (c Category) Normalized() Category {
	c.CreatedAt = NormalizeTime(c.CreatedAt)
	return c
}
