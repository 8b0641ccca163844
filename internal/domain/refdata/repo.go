package refdata

import "context"

// DocumentTypeRepository persists identity document types.
type DocumentTypeRepository interface {
	List(ctx context.Context) ([]*DocumentType, error)
	GetByID(ctx context.Context, id int64) (*DocumentType, error)
	Create(ctx context.Context, dt *DocumentType) error
	Update(ctx context.Context, dt *DocumentType, expectedVersion int64) error
	Delete(ctx context.Context, id int64) error
}

// MedicalDocumentTypeRepository persists medical document types.
type MedicalDocumentTypeRepository interface {
	List(ctx context.Context) ([]*MedicalDocumentType, error)
	GetByID(ctx context.Context, id int64) (*MedicalDocumentType, error)
	Create(ctx context.Context, mdt *MedicalDocumentType) error
	Update(ctx context.Context, mdt *MedicalDocumentType, expectedVersion int64) error
	Delete(ctx context.Context, id int64) error
}

// ProviderRepository persists insurance providers. Reads return providers
// with their plans attached.
type ProviderRepository interface {
	List(ctx context.Context, activeOnly bool) ([]*InsuranceProvider, error)
	GetByID(ctx context.Context, id int64) (*InsuranceProvider, error)
	Create(ctx context.Context, p *InsuranceProvider) error
	Update(ctx context.Context, p *InsuranceProvider, expectedVersion int64) error
	Delete(ctx context.Context, id int64) error
}

// PlanRepository persists insurance plans.
type PlanRepository interface {
	ListByProvider(ctx context.Context, providerID int64) ([]*InsurancePlan, error)
	GetByID(ctx context.Context, id int64) (*InsurancePlan, error)
	Create(ctx context.Context, p *InsurancePlan) error
	Update(ctx context.Context, p *InsurancePlan, expectedVersion int64) error
	Delete(ctx context.Context, id int64) error
}

// LookupRepository serves the flat reference lists.
type LookupRepository interface {
	Countries(ctx context.Context) ([]*Country, error)
	Cities(ctx context.Context, countryID int64) ([]*City, error)
	Professions(ctx context.Context) ([]*Profession, error)
	Employers(ctx context.Context, nameFilter string) ([]*Employer, error)
	CreateEmployer(ctx context.Context, e *Employer) error
}
