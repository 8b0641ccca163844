package patient

import (
	"time"

	"github.com/clinicore/clinicore/internal/platform/i18n"
)

// Patient is the general demographic record. Version guards every update;
// a client must send back the version it last read.
type Patient struct {
	ID                   int64      `json:"id" db:"id"`
	FirstName            string     `json:"first_name" db:"first_name"`
	LastName             string     `json:"last_name" db:"last_name"`
	DateOfBirth          *time.Time `json:"date_of_birth,omitempty" db:"date_of_birth"`
	Gender               string     `json:"gender,omitempty" db:"gender"`
	NationalID           string     `json:"national_id,omitempty" db:"national_id"`
	Phone                string     `json:"phone,omitempty" db:"phone"`
	Email                string     `json:"email,omitempty" db:"email"`
	Address              string     `json:"address,omitempty" db:"address"`
	CityID               *int64     `json:"city_id,omitempty" db:"city_id"`
	CountryID            *int64     `json:"country_id,omitempty" db:"country_id"`
	CitizenshipCountryID *int64     `json:"citizenship_country_id,omitempty" db:"citizenship_country_id"`
	Version              int64      `json:"version" db:"version"`
	CreatedAt            time.Time  `json:"created_at" db:"created_at"`
	UpdatedAt            time.Time  `json:"updated_at" db:"updated_at"`
	CreatedBy            string     `json:"created_by,omitempty" db:"created_by"`
	UpdatedBy            string     `json:"updated_by,omitempty" db:"updated_by"`
}

// SearchFilter narrows the patient list. Zero values mean no filtering.
type SearchFilter struct {
	FirstName  string
	LastName   string
	NationalID string
	Phone      string
	SortBy     string
	SortOrder  string
}

// PersonalInfo is the one-per-patient social record, created on first save.
type PersonalInfo struct {
	PatientID        int64     `json:"patient_id" db:"patient_id"`
	ParentName       string    `json:"parent_name,omitempty" db:"parent_name"`
	BirthCityID      *int64    `json:"birth_city_id,omitempty" db:"birth_city_id"`
	BirthCountryID   *int64    `json:"birth_country_id,omitempty" db:"birth_country_id"`
	MaritalStatus    string    `json:"marital_status,omitempty" db:"marital_status"`
	ProfessionID     *int64    `json:"profession_id,omitempty" db:"profession_id"`
	EducationLevel   string    `json:"education_level,omitempty" db:"education_level"`
	LivingArrangement string   `json:"living_arrangement,omitempty" db:"living_arrangement"`
	EmployerID       *int64    `json:"employer_id,omitempty" db:"employer_id"`
	EmploymentStatus string    `json:"employment_status,omitempty" db:"employment_status"`
	Version          int64     `json:"version" db:"version"`
	UpdatedAt        time.Time `json:"updated_at" db:"updated_at"`
	UpdatedBy        string    `json:"updated_by,omitempty" db:"updated_by"`
}

// RiskInfo is the one-per-patient health risk profile. BMI is derived on
// read, never stored.
type RiskInfo struct {
	PatientID             int64     `json:"patient_id" db:"patient_id"`
	Gender                string    `json:"gender,omitempty" db:"gender"`
	Weight                *float64  `json:"weight,omitempty" db:"weight"`
	Height                *float64  `json:"height,omitempty" db:"height"`
	WaistCircumference    *float64  `json:"waist_circumference,omitempty" db:"waist_circumference"`
	BloodType             string    `json:"blood_type,omitempty" db:"blood_type"`
	StressLevel           string    `json:"stress_level,omitempty" db:"stress_level"`
	PhysicalActivityLevel string    `json:"physical_activity_level,omitempty" db:"physical_activity_level"`
	SmokingStatus         string    `json:"smoking_status,omitempty" db:"smoking_status"`
	AlcoholConsumption    string    `json:"alcohol_consumption,omitempty" db:"alcohol_consumption"`
	BMI                   *float64  `json:"bmi,omitempty" db:"-"`
	Version               int64     `json:"version" db:"version"`
	UpdatedAt             time.Time `json:"updated_at" db:"updated_at"`
	UpdatedBy             string    `json:"updated_by,omitempty" db:"updated_by"`
}

// DeriveBMI fills BMI from weight and height when both are present.
func (r *RiskInfo) DeriveBMI() {
	if r.Weight == nil || r.Height == nil || *r.Height <= 0 {
		r.BMI = nil
		return
	}
	meters := *r.Height / 100
	bmi := *r.Weight / (meters * meters)
	r.BMI = &bmi
}

// Note is a localized free-text note on a patient. The note body is a locale
// map owned by AISourceLocale; machine translations fill the other locales.
type Note struct {
	ID                  int64                  `json:"id" db:"id"`
	PatientID           int64                  `json:"patient_id" db:"patient_id"`
	Note                i18n.Text              `json:"note" db:"note"`
	AISourceLocale      string                 `json:"ai_source_locale" db:"ai_source_locale"`
	AITranslationStatus i18n.TranslationStatus `json:"ai_translation_status" db:"ai_translation_status"`
	Version             int64                  `json:"version" db:"version"`
	CreatedAt           time.Time              `json:"created_at" db:"created_at"`
	UpdatedAt           time.Time              `json:"updated_at" db:"updated_at"`
	CreatedBy           string                 `json:"created_by,omitempty" db:"created_by"`
	UpdatedBy           string                 `json:"updated_by,omitempty" db:"updated_by"`
}
