package medhistory

import (
	"time"

	"github.com/clinicore/clinicore/internal/platform/blobstore"
	"github.com/clinicore/clinicore/internal/platform/i18n"
)

// Diagnosis is an MKB-10 code with its localized description. The code
// table is reference data; events and documents link to it.
type Diagnosis struct {
	ID          int64     `json:"id" db:"id"`
	Code        string    `json:"code" db:"code"`
	Description i18n.Text `json:"description" db:"description"`
}

// Event is one entry in a patient's medical history. Title and Notes are
// locale maps owned by AISourceLocale; Diagnoses is a replace-set on every
// update. Reads return the joined form with diagnoses and child documents.
type Event struct {
	ID                  int64                  `json:"id" db:"id"`
	PatientID           int64                  `json:"patient_id" db:"patient_id"`
	EventDate           *time.Time             `json:"event_date,omitempty" db:"event_date"`
	Title               i18n.Text              `json:"title" db:"title"`
	Notes               i18n.Text              `json:"notes" db:"notes"`
	AISourceLocale      string                 `json:"ai_source_locale" db:"ai_source_locale"`
	AITranslationStatus i18n.TranslationStatus `json:"ai_translation_status" db:"ai_translation_status"`
	Diagnoses           []Diagnosis            `json:"diagnoses" db:"-"`
	Documents           []*Document            `json:"documents,omitempty" db:"-"`
	Version             int64                  `json:"version" db:"version"`
	CreatedAt           time.Time              `json:"created_at" db:"created_at"`
	UpdatedAt           time.Time              `json:"updated_at" db:"updated_at"`
	CreatedBy           string                 `json:"created_by,omitempty" db:"created_by"`
	UpdatedBy           string                 `json:"updated_by,omitempty" db:"updated_by"`
}

// Document is a medical document filed under an event.
type Document struct {
	ID                    int64                  `json:"id" db:"id"`
	EventID               int64                  `json:"event_id" db:"event_id"`
	MedicalDocumentTypeID int64                  `json:"medical_document_type_id" db:"medical_document_type_id"`
	DocumentDate          *time.Time             `json:"document_date,omitempty" db:"document_date"`
	Notes                 i18n.Text              `json:"notes" db:"notes"`
	AISourceLocale        string                 `json:"ai_source_locale" db:"ai_source_locale"`
	AITranslationStatus   i18n.TranslationStatus `json:"ai_translation_status" db:"ai_translation_status"`
	Diagnoses             []Diagnosis            `json:"diagnoses" db:"-"`
	File                  blobstore.Attachment   `json:"file"`
	Version               int64                  `json:"version" db:"version"`
	CreatedAt             time.Time              `json:"created_at" db:"created_at"`
	UpdatedAt             time.Time              `json:"updated_at" db:"updated_at"`
	CreatedBy             string                 `json:"created_by,omitempty" db:"created_by"`
	UpdatedBy             string                 `json:"updated_by,omitempty" db:"updated_by"`
}
