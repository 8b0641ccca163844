package patient

import (
	"context"

	"github.com/clinicore/clinicore/pkg/pagination"
)

// PatientRepository persists general patient records. Update runs the
// conditional version check and returns optlock.ErrConflict or
// optlock.ErrNotFound when zero rows match.
type PatientRepository interface {
	Create(ctx context.Context, p *Patient) error
	GetByID(ctx context.Context, id int64) (*Patient, error)
	Update(ctx context.Context, p *Patient, expectedVersion int64) error
	Delete(ctx context.Context, id int64) error
	Search(ctx context.Context, filter SearchFilter, pg pagination.Params) ([]*Patient, int, error)
	NationalIDExists(ctx context.Context, nationalID string, excludeID int64) (bool, error)
}

type PersonalRepository interface {
	GetByPatientID(ctx context.Context, patientID int64) (*PersonalInfo, error)
	Create(ctx context.Context, p *PersonalInfo) error
	Update(ctx context.Context, p *PersonalInfo, expectedVersion int64) error
}

type RiskRepository interface {
	GetByPatientID(ctx context.Context, patientID int64) (*RiskInfo, error)
	Create(ctx context.Context, r *RiskInfo) error
	Update(ctx context.Context, r *RiskInfo, expectedVersion int64) error
}

type NoteRepository interface {
	Create(ctx context.Context, n *Note) error
	GetByID(ctx context.Context, id int64) (*Note, error)
	ListByPatient(ctx context.Context, patientID int64, pg pagination.Params) ([]*Note, int, error)
	Update(ctx context.Context, n *Note, expectedVersion int64) error
	Delete(ctx context.Context, id int64) error
}
