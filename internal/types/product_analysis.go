package types

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
)

// ProductAnalysis is the stored vision analysis for one product image.
// A row is valid only while its ImageFingerprint matches the freshly
// computed fingerprint of the product's current image; rows are replaced
// wholesale on re-analysis, never patched.
type ProductAnalysis struct {
	ID                uuid.UUID      `gorm:"type:uuid;default:uuid_generate_v4();primaryKey" json:"id"`
	ProductID         uuid.UUID      `gorm:"type:uuid;not null;uniqueIndex" json:"product_id"`
	Category          string         `gorm:"column:category" json:"category"`
	Subcategory       string         `gorm:"column:subcategory" json:"subcategory"`
	Materials         datatypes.JSON `gorm:"column:materials;type:jsonb" json:"materials,omitempty"` // []string
	Colors            datatypes.JSON `gorm:"column:colors;type:jsonb" json:"colors,omitempty"`       // []string
	Style             string         `gorm:"column:style" json:"style"`
	UsageContext      string         `gorm:"column:usage_context" json:"usage_context"`
	TargetDemographic string         `gorm:"column:target_demographic" json:"target_demographic"`
	DetectedText      string         `gorm:"column:detected_text" json:"detected_text,omitempty"`
	Confidence        int            `gorm:"column:confidence;not null;default:0" json:"confidence"`
	ImageFingerprint  string         `gorm:"column:image_fingerprint;not null;index" json:"image_fingerprint"`
	ModelVersion      string         `gorm:"column:model_version" json:"model_version"`
	CreatedAt         time.Time      `gorm:"not null;default:now()" json:"created_at"`
	UpdatedAt         time.Time      `gorm:"not null;default:now()" json:"updated_at"`
}

func (ProductAnalysis) TableName() string { return "product_analysis" }

// AnalysisView is the in-pipeline shape of an analysis with JSON columns
// unpacked. Everything downstream of vision works with this.
type AnalysisView struct {
	Category          string   `json:"category"`
	Subcategory       string   `json:"subcategory"`
	Materials         []string `json:"materials"`
	Colors            []string `json:"colors"`
	Style             string   `json:"style"`
	UsageContext      string   `json:"usage_context"`
	TargetDemographic string   `json:"target_demographic"`
	DetectedText      string   `json:"detected_text,omitempty"`
	Confidence        int      `json:"confidence"`
	ImageFingerprint  string   `json:"image_fingerprint"`
	ModelVersion      string   `json:"model_version"`
}
