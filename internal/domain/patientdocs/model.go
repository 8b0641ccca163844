package patientdocs

import (
	"time"

	"github.com/clinicore/clinicore/internal/platform/blobstore"
)

// IDDocument is an identity document (passport, ID card) on a patient.
// No two active documents of one patient may share a type or a number.
type IDDocument struct {
	ID             int64                `json:"id" db:"id"`
	PatientID      int64                `json:"patient_id" db:"patient_id"`
	DocumentTypeID int64                `json:"document_type_id" db:"document_type_id"`
	DocumentNumber string               `json:"document_number" db:"document_number"`
	IssueDate      *time.Time           `json:"issue_date,omitempty" db:"issue_date"`
	ExpiryDate     *time.Time           `json:"expiry_date,omitempty" db:"expiry_date"`
	File           blobstore.Attachment `json:"file"`
	Version        int64                `json:"version" db:"version"`
	CreatedAt      time.Time            `json:"created_at" db:"created_at"`
	UpdatedAt      time.Time            `json:"updated_at" db:"updated_at"`
	CreatedBy      string               `json:"created_by,omitempty" db:"created_by"`
	UpdatedBy      string               `json:"updated_by,omitempty" db:"updated_by"`
}

// Insurance is a patient's insurance policy record.
type Insurance struct {
	ID              int64                `json:"id" db:"id"`
	PatientID       int64                `json:"patient_id" db:"patient_id"`
	InsurancePlanID int64                `json:"insurance_plan_id" db:"insurance_plan_id"`
	PolicyNumber    string               `json:"policy_number" db:"policy_number"`
	LBONumber       string               `json:"lbo_number,omitempty" db:"lbo_number"`
	EffectiveDate   *time.Time           `json:"effective_date,omitempty" db:"effective_date"`
	ExpiryDate      *time.Time           `json:"expiry_date,omitempty" db:"expiry_date"`
	File            blobstore.Attachment `json:"file"`
	Version         int64                `json:"version" db:"version"`
	CreatedAt       time.Time            `json:"created_at" db:"created_at"`
	UpdatedAt       time.Time            `json:"updated_at" db:"updated_at"`
	CreatedBy       string               `json:"created_by,omitempty" db:"created_by"`
	UpdatedBy       string               `json:"updated_by,omitempty" db:"updated_by"`
}
