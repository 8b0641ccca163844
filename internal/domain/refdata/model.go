package refdata

import (
	"time"

	"github.com/clinicore/clinicore/internal/platform/i18n"
)

// DocumentType classifies identity documents (passport, national ID card,
// driver's license and such).
type DocumentType struct {
	ID                  int64                  `json:"id" db:"id"`
	Name                i18n.Text              `json:"name" db:"name"`
	AISourceLocale      string                 `json:"ai_source_locale,omitempty" db:"ai_source_locale"`
	AITranslationStatus i18n.TranslationStatus `json:"ai_translation_status,omitempty" db:"ai_translation_status"`
	Version             int64                  `json:"version" db:"version"`
	CreatedAt           time.Time              `json:"created_at" db:"created_at"`
	UpdatedAt           time.Time              `json:"updated_at" db:"updated_at"`
	CreatedBy           string                 `json:"created_by,omitempty" db:"created_by"`
	UpdatedBy           string                 `json:"updated_by,omitempty" db:"updated_by"`
}

// MedicalDocumentType classifies documents attached to medical history
// events (lab report, discharge letter, referral and such).
type MedicalDocumentType struct {
	ID                  int64                  `json:"id" db:"id"`
	Name                i18n.Text              `json:"name" db:"name"`
	AISourceLocale      string                 `json:"ai_source_locale,omitempty" db:"ai_source_locale"`
	AITranslationStatus i18n.TranslationStatus `json:"ai_translation_status,omitempty" db:"ai_translation_status"`
	Version             int64                  `json:"version" db:"version"`
	CreatedAt           time.Time              `json:"created_at" db:"created_at"`
	UpdatedAt           time.Time              `json:"updated_at" db:"updated_at"`
	CreatedBy           string                 `json:"created_by,omitempty" db:"created_by"`
	UpdatedBy           string                 `json:"updated_by,omitempty" db:"updated_by"`
}

// InsuranceProvider is an insurer whose plans patients can be covered by.
type InsuranceProvider struct {
	ID                  int64                  `json:"id" db:"id"`
	Name                i18n.Text              `json:"name" db:"name"`
	AISourceLocale      string                 `json:"ai_source_locale,omitempty" db:"ai_source_locale"`
	AITranslationStatus i18n.TranslationStatus `json:"ai_translation_status,omitempty" db:"ai_translation_status"`
	Phone               string                 `json:"phone,omitempty" db:"phone"`
	Email               string                 `json:"email,omitempty" db:"email"`
	Website             string                 `json:"website,omitempty" db:"website"`
	Address             string                 `json:"address,omitempty" db:"address"`
	Active              bool                   `json:"active" db:"active"`
	Plans               []*InsurancePlan       `json:"plans,omitempty" db:"-"`
	Version             int64                  `json:"version" db:"version"`
	CreatedAt           time.Time              `json:"created_at" db:"created_at"`
	UpdatedAt           time.Time              `json:"updated_at" db:"updated_at"`
	CreatedBy           string                 `json:"created_by,omitempty" db:"created_by"`
	UpdatedBy           string                 `json:"updated_by,omitempty" db:"updated_by"`
}

// InsurancePlan is a concrete coverage product offered by a provider.
type InsurancePlan struct {
	ID                  int64                  `json:"id" db:"id"`
	ProviderID          int64                  `json:"provider_id" db:"provider_id"`
	Name                i18n.Text              `json:"name" db:"name"`
	Description         i18n.Text              `json:"description,omitempty" db:"description"`
	AISourceLocale      string                 `json:"ai_source_locale,omitempty" db:"ai_source_locale"`
	AITranslationStatus i18n.TranslationStatus `json:"ai_translation_status,omitempty" db:"ai_translation_status"`
	CoveragePercent     *float64               `json:"coverage_percent,omitempty" db:"coverage_percent"`
	Active              bool                   `json:"active" db:"active"`
	Version             int64                  `json:"version" db:"version"`
	CreatedAt           time.Time              `json:"created_at" db:"created_at"`
	UpdatedAt           time.Time              `json:"updated_at" db:"updated_at"`
	CreatedBy           string                 `json:"created_by,omitempty" db:"created_by"`
	UpdatedBy           string                 `json:"updated_by,omitempty" db:"updated_by"`
}

// Country, City, Profession and Employer are flat lookups feeding the
// patient forms.

type Country struct {
	ID   int64  `json:"id" db:"id"`
	Code string `json:"code" db:"code"`
	Name string `json:"name" db:"name"`
}

type City struct {
	ID         int64  `json:"id" db:"id"`
	CountryID  int64  `json:"country_id" db:"country_id"`
	Name       string `json:"name" db:"name"`
	PostalCode string `json:"postal_code,omitempty" db:"postal_code"`
}

type Profession struct {
	ID   int64  `json:"id" db:"id"`
	Name string `json:"name" db:"name"`
}

type Employer struct {
	ID   int64  `json:"id" db:"id"`
	Name string `json:"name" db:"name"`
}
