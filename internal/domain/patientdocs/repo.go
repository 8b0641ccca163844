package patientdocs

import "context"

// IDDocumentRepository persists identity documents.
type IDDocumentRepository interface {
	Create(ctx context.Context, d *IDDocument) error
	GetByID(ctx context.Context, id int64) (*IDDocument, error)
	ListByPatient(ctx context.Context, patientID int64) ([]*IDDocument, error)
	Update(ctx context.Context, d *IDDocument, expectedVersion int64) error
	Delete(ctx context.Context, id int64) error
	// CountDuplicates counts documents of the same patient sharing either the
	// type or the number, excluding excludeID (0 means exclude nothing).
	CountDuplicates(ctx context.Context, patientID, documentTypeID int64, documentNumber string, excludeID int64) (int, error)
}

// InsuranceRepository persists insurance records.
type InsuranceRepository interface {
	Create(ctx context.Context, ins *Insurance) error
	GetByID(ctx context.Context, id int64) (*Insurance, error)
	ListByPatient(ctx context.Context, patientID int64) ([]*Insurance, error)
	Update(ctx context.Context, ins *Insurance, expectedVersion int64) error
	Delete(ctx context.Context, id int64) error
}
