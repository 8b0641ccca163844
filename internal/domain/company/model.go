package company

import (
	"time"

	"github.com/clinicore/clinicore/internal/platform/i18n"
)

// Company is a partner or client organization (employers sending staff for
// examinations, contracted insurers and such).
type Company struct {
	ID                 int64     `json:"id" db:"id"`
	Name               string    `json:"name" db:"name"`
	TIN                string    `json:"tin,omitempty" db:"tin"`
	VAT                string    `json:"vat,omitempty" db:"vat"`
	RegistrationNumber string    `json:"registration_number,omitempty" db:"registration_number"`
	Address            string    `json:"address,omitempty" db:"address"`
	CityID             *int64    `json:"city_id,omitempty" db:"city_id"`
	CountryID          *int64    `json:"country_id,omitempty" db:"country_id"`
	Phone              string    `json:"phone,omitempty" db:"phone"`
	Email              string    `json:"email,omitempty" db:"email"`
	Website            string    `json:"website,omitempty" db:"website"`
	CompanyType        string    `json:"company_type,omitempty" db:"company_type"`
	DiscountPercent    *float64  `json:"discount_percent,omitempty" db:"discount_percent"`
	IsPartner          bool      `json:"is_partner" db:"is_partner"`
	Version            int64     `json:"version" db:"version"`
	CreatedAt          time.Time `json:"created_at" db:"created_at"`
	UpdatedAt          time.Time `json:"updated_at" db:"updated_at"`
	CreatedBy          string    `json:"created_by,omitempty" db:"created_by"`
	UpdatedBy          string    `json:"updated_by,omitempty" db:"updated_by"`
}

// Info is the clinic's own profile, a single row created on first save.
type Info struct {
	Name               string    `json:"name" db:"name"`
	TIN                string    `json:"tin,omitempty" db:"tin"`
	VAT                string    `json:"vat,omitempty" db:"vat"`
	RegistrationNumber string    `json:"registration_number,omitempty" db:"registration_number"`
	Address            string    `json:"address,omitempty" db:"address"`
	Phone              string    `json:"phone,omitempty" db:"phone"`
	Email              string    `json:"email,omitempty" db:"email"`
	Website            string    `json:"website,omitempty" db:"website"`
	BankAccount        string    `json:"bank_account,omitempty" db:"bank_account"`
	Version            int64     `json:"version" db:"version"`
	UpdatedAt          time.Time `json:"updated_at" db:"updated_at"`
	UpdatedBy          string    `json:"updated_by,omitempty" db:"updated_by"`
}

// ExaminationCategory groups examination types. Categories are near-static
// lookups and are not versioned.
type ExaminationCategory struct {
	ID        int64     `json:"id" db:"id"`
	Name      i18n.Text `json:"name" db:"name"`
	SortOrder int       `json:"sort_order" db:"sort_order"`
}

// ExaminationType is a bookable examination with a localized name.
type ExaminationType struct {
	ID                  int64                  `json:"id" db:"id"`
	CategoryID          *int64                 `json:"category_id,omitempty" db:"category_id"`
	Name                i18n.Text              `json:"name" db:"name"`
	AISourceLocale      string                 `json:"ai_source_locale" db:"ai_source_locale"`
	AITranslationStatus i18n.TranslationStatus `json:"ai_translation_status" db:"ai_translation_status"`
	DurationMinutes     int                    `json:"duration_minutes" db:"duration_minutes"`
	Price               *float64               `json:"price,omitempty" db:"price"`
	Active              bool                   `json:"active" db:"active"`
	Version             int64                  `json:"version" db:"version"`
	CreatedAt           time.Time              `json:"created_at" db:"created_at"`
	UpdatedAt           time.Time              `json:"updated_at" db:"updated_at"`
	CreatedBy           string                 `json:"created_by,omitempty" db:"created_by"`
	UpdatedBy           string                 `json:"updated_by,omitempty" db:"updated_by"`
}
