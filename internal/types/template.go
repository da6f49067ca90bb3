package types

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
)

// SubjectPlaceholder is the token inside a template blueprint that gets
// replaced with the resolved subject name during template-mode merging.
const SubjectPlaceholder = "{{PRODUCT}}"

// AdTemplate is a reusable creative template from the catalog. Immutable
// within a request.
type AdTemplate struct {
	ID                  uuid.UUID      `gorm:"type:uuid;default:uuid_generate_v4();primaryKey" json:"id"`
	Title               string         `gorm:"column:title;not null" json:"title"`
	Category            string         `gorm:"column:category;index" json:"category"`
	Tags                datatypes.JSON `gorm:"column:tags;type:jsonb" json:"tags,omitempty"` // []string
	Mood                string         `gorm:"column:mood" json:"mood"`
	Environment         string         `gorm:"column:environment" json:"environment"`
	BestForProductTypes datatypes.JSON `gorm:"column:best_for_product_types;type:jsonb" json:"best_for_product_types,omitempty"` // []string
	Blueprint           string         `gorm:"column:blueprint;not null" json:"blueprint"`
	PlacementHint       string         `gorm:"column:placement_hint" json:"placement_hint,omitempty"`
	AspectRatio         string         `gorm:"column:aspect_ratio" json:"aspect_ratio,omitempty"`
	Platform            string         `gorm:"column:platform" json:"platform,omitempty"`
	CreatedAt           time.Time      `gorm:"not null;default:now()" json:"created_at"`
	UpdatedAt           time.Time      `gorm:"not null;default:now()" json:"updated_at"`
}

func (AdTemplate) TableName() string { return "ad_template" }

type TemplateFilter struct {
	Category string
	Limit    int
}
