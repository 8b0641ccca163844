package medhistory

import (
	"context"

	"github.com/clinicore/clinicore/pkg/pagination"
)

// EventRepository persists history events. Get and List return the joined
// form (diagnoses attached, documents on Get). SetDiagnoses replaces the
// full linked set.
type EventRepository interface {
	Create(ctx context.Context, e *Event) error
	GetByID(ctx context.Context, id int64) (*Event, error)
	ListByPatient(ctx context.Context, patientID int64, pg pagination.Params) ([]*Event, int, error)
	Update(ctx context.Context, e *Event, expectedVersion int64) error
	Delete(ctx context.Context, id int64) error
	SetDiagnoses(ctx context.Context, eventID int64, diagnosisIDs []int64) error
	// Touch bumps updated_at/updated_by so "recently changed" lists pick
	// the event up after a child document write.
	Touch(ctx context.Context, id int64, updatedBy string) error
}

// DocumentRepository persists medical documents under events.
type DocumentRepository interface {
	Create(ctx context.Context, d *Document) error
	GetByID(ctx context.Context, id int64) (*Document, error)
	ListByEvent(ctx context.Context, eventID int64) ([]*Document, error)
	Update(ctx context.Context, d *Document, expectedVersion int64) error
	Delete(ctx context.Context, id int64) error
	SetDiagnoses(ctx context.Context, documentID int64, diagnosisIDs []int64) error
}

// DiagnosisRepository reads the MKB-10 code table.
type DiagnosisRepository interface {
	GetByIDs(ctx context.Context, ids []int64) ([]Diagnosis, error)
	Search(ctx context.Context, term, locale string, limit int) ([]Diagnosis, error)
}
