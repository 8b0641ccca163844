package company

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/clinicore/clinicore/internal/platform/apperr"
	"github.com/clinicore/clinicore/internal/platform/auth"
	"github.com/clinicore/clinicore/internal/platform/db"
	"github.com/clinicore/clinicore/internal/platform/i18n"
	"github.com/clinicore/clinicore/internal/platform/optlock"
	"github.com/clinicore/clinicore/internal/platform/translate"
	"github.com/clinicore/clinicore/internal/platform/validate"
	"github.com/clinicore/clinicore/pkg/pagination"
)

// ExamTypeInput is the write shape for examination types; Name carries the
// text in the editing locale only.
type ExamTypeInput struct {
	CategoryID      *int64
	Locale          string
	Name            string
	DurationMinutes int
	Price           *float64
	Active          bool
}

// CategoryInput is the write shape for examination categories.
type CategoryInput struct {
	Locale    string
	Name      string
	SortOrder int
}

type Service struct {
	companies  CompanyRepository
	info       InfoRepository
	categories CategoryRepository
	examTypes  ExamTypeRepository
	outbox     translate.Outbox
	pool       *pgxpool.Pool
}

func NewService(companies CompanyRepository, info InfoRepository, categories CategoryRepository,
	examTypes ExamTypeRepository, outbox translate.Outbox, pool *pgxpool.Pool) *Service {
	return &Service{
		companies: companies, info: info, categories: categories,
		examTypes: examTypes, outbox: outbox, pool: pool,
	}
}

func actor(ctx context.Context) (string, error) {
	uid := auth.UserIDFromContext(ctx)
	if uid == "" {
		return "", apperr.Unauthenticated()
	}
	return uid, nil
}

func mapOptlock(err error) error {
	switch {
	case errors.Is(err, optlock.ErrNotFound):
		return apperr.NotFound("recordNotFound")
	case errors.Is(err, optlock.ErrConflict):
		return apperr.Conflict("staleVersion")
	default:
		return err
	}
}

func (s *Service) runInTx(ctx context.Context, fn func(ctx context.Context) error) error {
	if s.pool == nil {
		return fn(ctx)
	}
	return db.RunInTx(ctx, s.pool, fn)
}

// -- Companies --

func validateCompany(c *Company) validate.Errors {
	return validate.Check(
		validate.Required("name", c.Name),
		validate.MaxLen("name", c.Name, 200),
		validate.MaxLen("tin", c.TIN, 20),
		validate.MaxLen("vat", c.VAT, 20),
		validate.Email("email", c.Email),
		validate.RangeFloat("discount_percent", c.DiscountPercent, 0, 100),
	)
}

func (s *Service) CreateCompany(ctx context.Context, c *Company) (*Company, error) {
	uid, err := actor(ctx)
	if err != nil {
		return nil, err
	}
	if errs := validateCompany(c); !errs.Empty() {
		return nil, apperr.Validation("invalidFields", errs)
	}

	c.CreatedBy = uid
	c.UpdatedBy = uid
	if err := s.companies.Create(ctx, c); err != nil {
		return nil, err
	}
	return s.companies.GetByID(ctx, c.ID)
}

func (s *Service) GetCompany(ctx context.Context, id int64) (*Company, error) {
	c, err := s.companies.GetByID(ctx, id)
	if err != nil {
		return nil, mapOptlock(err)
	}
	return c, nil
}

func (s *Service) ListCompanies(ctx context.Context, nameFilter string, pg pagination.Params) ([]*Company, int, error) {
	return s.companies.List(ctx, nameFilter, pg)
}

func (s *Service) UpdateCompany(ctx context.Context, c *Company, expectedVersion int64) (*Company, error) {
	uid, err := actor(ctx)
	if err != nil {
		return nil, err
	}
	if errs := validateCompany(c); !errs.Empty() {
		return nil, apperr.Validation("invalidFields", errs)
	}

	c.UpdatedBy = uid
	if err := s.companies.Update(ctx, c, expectedVersion); err != nil {
		return nil, mapOptlock(err)
	}
	return s.companies.GetByID(ctx, c.ID)
}

func (s *Service) DeleteCompany(ctx context.Context, id int64) error {
	if _, err := actor(ctx); err != nil {
		return err
	}
	if err := s.companies.Delete(ctx, id); err != nil {
		return mapOptlock(err)
	}
	return nil
}

// -- Clinic profile --

func validateInfo(info *Info) validate.Errors {
	return validate.Check(
		validate.Required("name", info.Name),
		validate.MaxLen("name", info.Name, 200),
		validate.Email("email", info.Email),
	)
}

func (s *Service) GetInfo(ctx context.Context) (*Info, error) {
	info, err := s.info.Get(ctx)
	if err != nil {
		return nil, mapOptlock(err)
	}
	return info, nil
}

// SaveInfo creates the profile row on first save, then guards it with the
// usual version check.
func (s *Service) SaveInfo(ctx context.Context, info *Info, expectedVersion int64) (*Info, error) {
	uid, err := actor(ctx)
	if err != nil {
		return nil, err
	}
	if errs := validateInfo(info); !errs.Empty() {
		return nil, apperr.Validation("invalidFields", errs)
	}

	info.UpdatedBy = uid
	_, err = s.info.Get(ctx)
	switch {
	case errors.Is(err, optlock.ErrNotFound):
		if err := s.info.Create(ctx, info); err != nil {
			return nil, err
		}
	case err != nil:
		return nil, err
	default:
		if err := s.info.Update(ctx, info, expectedVersion); err != nil {
			return nil, mapOptlock(err)
		}
	}
	return s.info.Get(ctx)
}

// -- Examination categories --

func localeErrs(locale string, errs validate.Errors) validate.Errors {
	if locale != "" && !i18n.IsSupported(locale) {
		errs.Add("locale", "invalidValue")
	}
	return errs
}

func validateCategory(in CategoryInput) validate.Errors {
	errs := validate.Check(
		validate.Required("locale", in.Locale),
		validate.Required("name", in.Name),
		validate.MaxLen("name", in.Name, 100),
	)
	return localeErrs(in.Locale, errs)
}

func (s *Service) ListCategories(ctx context.Context) ([]*ExaminationCategory, error) {
	return s.categories.List(ctx)
}

func (s *Service) CreateCategory(ctx context.Context, in CategoryInput) (*ExaminationCategory, error) {
	if _, err := actor(ctx); err != nil {
		return nil, err
	}
	if errs := validateCategory(in); !errs.Empty() {
		return nil, apperr.Validation("invalidFields", errs)
	}

	cat := &ExaminationCategory{Name: i18n.NewText(in.Locale, in.Name), SortOrder: in.SortOrder}
	if err := s.categories.Create(ctx, cat); err != nil {
		return nil, err
	}
	return cat, nil
}

// UpdateCategory writes the name into the given locale's entry directly;
// categories carry no source-locale designation or machine translation.
func (s *Service) UpdateCategory(ctx context.Context, id int64, in CategoryInput) (*ExaminationCategory, error) {
	if _, err := actor(ctx); err != nil {
		return nil, err
	}
	if errs := validateCategory(in); !errs.Empty() {
		return nil, apperr.Validation("invalidFields", errs)
	}

	cat, err := s.categories.GetByID(ctx, id)
	if err != nil {
		return nil, mapOptlock(err)
	}
	name := cat.Name.Clone()
	name[in.Locale] = in.Name
	cat.Name = name
	cat.SortOrder = in.SortOrder
	if err := s.categories.Update(ctx, cat); err != nil {
		return nil, mapOptlock(err)
	}
	return cat, nil
}

func (s *Service) DeleteCategory(ctx context.Context, id int64) error {
	if _, err := actor(ctx); err != nil {
		return err
	}
	if err := s.categories.Delete(ctx, id); err != nil {
		return mapOptlock(err)
	}
	return nil
}

// -- Examination types --

func validateExamType(in ExamTypeInput, requireName bool) validate.Errors {
	rules := []validate.Rule{
		validate.Required("locale", in.Locale),
		validate.MaxLen("name", in.Name, 200),
	}
	if requireName {
		rules = append(rules, validate.Required("name", in.Name))
	}
	errs := validate.Check(rules...)
	if in.DurationMinutes < 0 {
		errs.Add("duration_minutes", "outOfRange")
	}
	if in.Price != nil && *in.Price < 0 {
		errs.Add("price", "outOfRange")
	}
	return localeErrs(in.Locale, errs)
}

func (s *Service) CreateExamType(ctx context.Context, in ExamTypeInput) (*ExaminationType, error) {
	uid, err := actor(ctx)
	if err != nil {
		return nil, err
	}
	if errs := validateExamType(in, true); !errs.Empty() {
		return nil, apperr.Validation("invalidFields", errs)
	}

	et := &ExaminationType{
		CategoryID:          in.CategoryID,
		Name:                i18n.NewText(in.Locale, in.Name),
		AISourceLocale:      in.Locale,
		AITranslationStatus: i18n.StatusInProgress,
		DurationMinutes:     in.DurationMinutes,
		Price:               in.Price,
		Active:              in.Active,
		CreatedBy:           uid,
		UpdatedBy:           uid,
	}

	err = s.runInTx(ctx, func(ctx context.Context) error {
		if err := s.examTypes.Create(ctx, et); err != nil {
			return err
		}
		return s.outbox.Enqueue(ctx, "examination_types", et.ID, []string{"name"}, in.Locale)
	})
	if err != nil {
		return nil, err
	}
	return s.examTypes.GetByID(ctx, et.ID)
}

func (s *Service) GetExamType(ctx context.Context, id int64) (*ExaminationType, error) {
	et, err := s.examTypes.GetByID(ctx, id)
	if err != nil {
		return nil, mapOptlock(err)
	}
	return et, nil
}

func (s *Service) ListExamTypes(ctx context.Context, activeOnly bool) ([]*ExaminationType, error) {
	return s.examTypes.List(ctx, activeOnly)
}

func (s *Service) UpdateExamType(ctx context.Context, id, expectedVersion int64, in ExamTypeInput) (*ExaminationType, error) {
	uid, err := actor(ctx)
	if err != nil {
		return nil, err
	}
	current, err := s.examTypes.GetByID(ctx, id)
	if err != nil {
		return nil, mapOptlock(err)
	}
	if errs := validateExamType(in, in.Locale == current.AISourceLocale); !errs.Empty() {
		return nil, apperr.Validation("invalidFields", errs)
	}

	merged, changed := i18n.Merge(current.Name, current.AISourceLocale, in.Locale, in.Name)
	dispatch := changed && merged[current.AISourceLocale] != ""

	et := &ExaminationType{
		ID:                  id,
		CategoryID:          in.CategoryID,
		Name:                merged,
		AITranslationStatus: current.AITranslationStatus,
		DurationMinutes:     in.DurationMinutes,
		Price:               in.Price,
		Active:              in.Active,
		UpdatedBy:           uid,
	}
	if dispatch {
		et.AITranslationStatus = i18n.StatusInProgress
	}

	err = s.runInTx(ctx, func(ctx context.Context) error {
		if err := s.examTypes.Update(ctx, et, expectedVersion); err != nil {
			return err
		}
		if dispatch {
			return s.outbox.Enqueue(ctx, "examination_types", id, []string{"name"}, current.AISourceLocale)
		}
		return nil
	})
	if err != nil {
		return nil, mapOptlock(err)
	}
	return s.examTypes.GetByID(ctx, id)
}

func (s *Service) DeleteExamType(ctx context.Context, id int64) error {
	if _, err := actor(ctx); err != nil {
		return err
	}
	if err := s.examTypes.Delete(ctx, id); err != nil {
		return mapOptlock(err)
	}
	return nil
}
