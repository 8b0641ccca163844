package company

import (
	"context"

	"github.com/clinicore/clinicore/pkg/pagination"
)

// CompanyRepository persists partner companies.
type CompanyRepository interface {
	Create(ctx context.Context, c *Company) error
	GetByID(ctx context.Context, id int64) (*Company, error)
	List(ctx context.Context, nameFilter string, pg pagination.Params) ([]*Company, int, error)
	Update(ctx context.Context, c *Company, expectedVersion int64) error
	Delete(ctx context.Context, id int64) error
}

// InfoRepository persists the clinic's single profile row.
type InfoRepository interface {
	Get(ctx context.Context) (*Info, error)
	Create(ctx context.Context, info *Info) error
	Update(ctx context.Context, info *Info, expectedVersion int64) error
}

// CategoryRepository persists examination categories.
type CategoryRepository interface {
	List(ctx context.Context) ([]*ExaminationCategory, error)
	GetByID(ctx context.Context, id int64) (*ExaminationCategory, error)
	Create(ctx context.Context, cat *ExaminationCategory) error
	Update(ctx context.Context, cat *ExaminationCategory) error
	Delete(ctx context.Context, id int64) error
}

// ExamTypeRepository persists examination types.
type ExamTypeRepository interface {
	Create(ctx context.Context, et *ExaminationType) error
	GetByID(ctx context.Context, id int64) (*ExaminationType, error)
	List(ctx context.Context, activeOnly bool) ([]*ExaminationType, error)
	Update(ctx context.Context, et *ExaminationType, expectedVersion int64) error
	Delete(ctx context.Context, id int64) error
}
