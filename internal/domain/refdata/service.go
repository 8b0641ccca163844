package refdata

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
)

const (
	nameMaxLen        = 200
	descriptionMaxLen = 1000
)

// TypeInput is the write shape for both document type kinds.
type TypeInput struct {
	Locale string
	Name   string
}

// ProviderInput is the write shape for insurance providers.
type ProviderInput struct {
	Locale  string
	Name    string
	Phone   string
	Email   string
	Website string
	Address string
	Active  bool
}

// PlanInput is the write shape for insurance plans.
type PlanInput struct {
	ProviderID      int64
	Locale          string
	Name            string
	Description     string
	CoveragePercent *float64
	Active          bool
}

type Service struct {
	docTypes    DocumentTypeRepository
	medDocTypes MedicalDocumentTypeRepository
	providers   ProviderRepository
	plans       PlanRepository
	lookups     LookupRepository
	outbox      translate.Outbox
	pool        *pgxpool.Pool
}

func NewService(docTypes DocumentTypeRepository, medDocTypes MedicalDocumentTypeRepository,
	providers ProviderRepository, plans PlanRepository, lookups LookupRepository,
	outbox translate.Outbox, pool *pgxpool.Pool) *Service {
	return &Service{
		docTypes: docTypes, medDocTypes: medDocTypes,
		providers: providers, plans: plans, lookups: lookups,
		outbox: outbox, pool: pool,
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

func validateType(in TypeInput, requireName bool) validate.Errors {
	rules := []validate.Rule{
		validate.Required("locale", in.Locale),
		validate.MaxLen("name", in.Name, nameMaxLen),
	}
	if requireName {
		rules = append(rules, validate.Required("name", in.Name))
	}
	errs := validate.Check(rules...)
	if in.Locale != "" && !i18n.IsSupported(in.Locale) {
		errs.Add("locale", "invalidValue")
	}
	return errs
}

// =========== Document types ===========

func (s *Service) ListDocumentTypes(ctx context.Context) ([]*DocumentType, error) {
	return s.docTypes.List(ctx)
}

func (s *Service) CreateDocumentType(ctx context.Context, in TypeInput) (*DocumentType, error) {
	uid, err := actor(ctx)
	if err != nil {
		return nil, err
	}
	if errs := validateType(in, true); !errs.Empty() {
		return nil, apperr.Validation("invalidFields", errs)
	}

	dt := &DocumentType{
		Name:                i18n.NewText(in.Locale, in.Name),
		AISourceLocale:      in.Locale,
		AITranslationStatus: i18n.StatusInProgress,
		CreatedBy:           uid,
		UpdatedBy:           uid,
	}
	err = s.runInTx(ctx, func(ctx context.Context) error {
		if err := s.docTypes.Create(ctx, dt); err != nil {
			return err
		}
		return s.outbox.Enqueue(ctx, "document_types", dt.ID, []string{"name"}, in.Locale)
	})
	if err != nil {
		return nil, err
	}
	return s.docTypes.GetByID(ctx, dt.ID)
}

func (s *Service) UpdateDocumentType(ctx context.Context, id, expectedVersion int64, in TypeInput) (*DocumentType, error) {
	uid, err := actor(ctx)
	if err != nil {
		return nil, err
	}
	current, err := s.docTypes.GetByID(ctx, id)
	if err != nil {
		return nil, mapOptlock(err)
	}
	if errs := validateType(in, in.Locale == current.AISourceLocale); !errs.Empty() {
		return nil, apperr.Validation("invalidFields", errs)
	}

	merged, changed := i18n.Merge(current.Name, current.AISourceLocale, in.Locale, in.Name)
	dispatch := changed && merged[current.AISourceLocale] != ""

	dt := &DocumentType{
		ID:                  id,
		Name:                merged,
		AITranslationStatus: current.AITranslationStatus,
		UpdatedBy:           uid,
	}
	if dispatch {
		dt.AITranslationStatus = i18n.StatusInProgress
	}

	err = s.runInTx(ctx, func(ctx context.Context) error {
		if err := s.docTypes.Update(ctx, dt, expectedVersion); err != nil {
			return err
		}
		if dispatch {
			return s.outbox.Enqueue(ctx, "document_types", id, []string{"name"}, current.AISourceLocale)
		}
		return nil
	})
	if err != nil {
		return nil, mapOptlock(err)
	}
	return s.docTypes.GetByID(ctx, id)
}

func (s *Service) DeleteDocumentType(ctx context.Context, id int64) error {
	if _, err := actor(ctx); err != nil {
		return err
	}
	if err := s.docTypes.Delete(ctx, id); err != nil {
		return mapOptlock(err)
	}
	return nil
}

// =========== Medical document types ===========

func (s *Service) ListMedicalDocumentTypes(ctx context.Context) ([]*MedicalDocumentType, error) {
	return s.medDocTypes.List(ctx)
}

func (s *Service) CreateMedicalDocumentType(ctx context.Context, in TypeInput) (*MedicalDocumentType, error) {
	uid, err := actor(ctx)
	if err != nil {
		return nil, err
	}
	if errs := validateType(in, true); !errs.Empty() {
		return nil, apperr.Validation("invalidFields", errs)
	}

	mdt := &MedicalDocumentType{
		Name:                i18n.NewText(in.Locale, in.Name),
		AISourceLocale:      in.Locale,
		AITranslationStatus: i18n.StatusInProgress,
		CreatedBy:           uid,
		UpdatedBy:           uid,
	}
	err = s.runInTx(ctx, func(ctx context.Context) error {
		if err := s.medDocTypes.Create(ctx, mdt); err != nil {
			return err
		}
		return s.outbox.Enqueue(ctx, "medical_document_types", mdt.ID, []string{"name"}, in.Locale)
	})
	if err != nil {
		return nil, err
	}
	return s.medDocTypes.GetByID(ctx, mdt.ID)
}

func (s *Service) UpdateMedicalDocumentType(ctx context.Context, id, expectedVersion int64, in TypeInput) (*MedicalDocumentType, error) {
	uid, err := actor(ctx)
	if err != nil {
		return nil, err
	}
	current, err := s.medDocTypes.GetByID(ctx, id)
	if err != nil {
		return nil, mapOptlock(err)
	}
	if errs := validateType(in, in.Locale == current.AISourceLocale); !errs.Empty() {
		return nil, apperr.Validation("invalidFields", errs)
	}

	merged, changed := i18n.Merge(current.Name, current.AISourceLocale, in.Locale, in.Name)
	dispatch := changed && merged[current.AISourceLocale] != ""

	mdt := &MedicalDocumentType{
		ID:                  id,
		Name:                merged,
		AITranslationStatus: current.AITranslationStatus,
		UpdatedBy:           uid,
	}
	if dispatch {
		mdt.AITranslationStatus = i18n.StatusInProgress
	}

	err = s.runInTx(ctx, func(ctx context.Context) error {
		if err := s.medDocTypes.Update(ctx, mdt, expectedVersion); err != nil {
			return err
		}
		if dispatch {
			return s.outbox.Enqueue(ctx, "medical_document_types", id, []string{"name"}, current.AISourceLocale)
		}
		return nil
	})
	if err != nil {
		return nil, mapOptlock(err)
	}
	return s.medDocTypes.GetByID(ctx, id)
}

func (s *Service) DeleteMedicalDocumentType(ctx context.Context, id int64) error {
	if _, err := actor(ctx); err != nil {
		return err
	}
	if err := s.medDocTypes.Delete(ctx, id); err != nil {
		return mapOptlock(err)
	}
	return nil
}

// =========== Insurance providers ===========

func validateProvider(in ProviderInput, requireName bool) validate.Errors {
	rules := []validate.Rule{
		validate.Required("locale", in.Locale),
		validate.MaxLen("name", in.Name, nameMaxLen),
		validate.Email("email", in.Email),
	}
	if requireName {
		rules = append(rules, validate.Required("name", in.Name))
	}
	errs := validate.Check(rules...)
	if in.Locale != "" && !i18n.IsSupported(in.Locale) {
		errs.Add("locale", "invalidValue")
	}
	return errs
}

func (s *Service) ListProviders(ctx context.Context, activeOnly bool) ([]*InsuranceProvider, error) {
	return s.providers.List(ctx, activeOnly)
}

func (s *Service) GetProvider(ctx context.Context, id int64) (*InsuranceProvider, error) {
	p, err := s.providers.GetByID(ctx, id)
	if err != nil {
		return nil, mapOptlock(err)
	}
	return p, nil
}

func (s *Service) CreateProvider(ctx context.Context, in ProviderInput) (*InsuranceProvider, error) {
	uid, err := actor(ctx)
	if err != nil {
		return nil, err
	}
	if errs := validateProvider(in, true); !errs.Empty() {
		return nil, apperr.Validation("invalidFields", errs)
	}

	p := &InsuranceProvider{
		Name:                i18n.NewText(in.Locale, in.Name),
		AISourceLocale:      in.Locale,
		AITranslationStatus: i18n.StatusInProgress,
		Phone:               in.Phone,
		Email:               in.Email,
		Website:             in.Website,
		Address:             in.Address,
		Active:              in.Active,
		CreatedBy:           uid,
		UpdatedBy:           uid,
	}
	err = s.runInTx(ctx, func(ctx context.Context) error {
		if err := s.providers.Create(ctx, p); err != nil {
			return err
		}
		return s.outbox.Enqueue(ctx, "insurance_providers", p.ID, []string{"name"}, in.Locale)
	})
	if err != nil {
		return nil, err
	}
	return s.providers.GetByID(ctx, p.ID)
}

func (s *Service) UpdateProvider(ctx context.Context, id, expectedVersion int64, in ProviderInput) (*InsuranceProvider, error) {
	uid, err := actor(ctx)
	if err != nil {
		return nil, err
	}
	current, err := s.providers.GetByID(ctx, id)
	if err != nil {
		return nil, mapOptlock(err)
	}
	if errs := validateProvider(in, in.Locale == current.AISourceLocale); !errs.Empty() {
		return nil, apperr.Validation("invalidFields", errs)
	}

	merged, changed := i18n.Merge(current.Name, current.AISourceLocale, in.Locale, in.Name)
	dispatch := changed && merged[current.AISourceLocale] != ""

	p := &InsuranceProvider{
		ID:                  id,
		Name:                merged,
		AITranslationStatus: current.AITranslationStatus,
		Phone:               in.Phone,
		Email:               in.Email,
		Website:             in.Website,
		Address:             in.Address,
		Active:              in.Active,
		UpdatedBy:           uid,
	}
	if dispatch {
		p.AITranslationStatus = i18n.StatusInProgress
	}

	err = s.runInTx(ctx, func(ctx context.Context) error {
		if err := s.providers.Update(ctx, p, expectedVersion); err != nil {
			return err
		}
		if dispatch {
			return s.outbox.Enqueue(ctx, "insurance_providers", id, []string{"name"}, current.AISourceLocale)
		}
		return nil
	})
	if err != nil {
		return nil, mapOptlock(err)
	}
	return s.providers.GetByID(ctx, id)
}

func (s *Service) DeleteProvider(ctx context.Context, id int64) error {
	if _, err := actor(ctx); err != nil {
		return err
	}
	if err := s.providers.Delete(ctx, id); err != nil {
		return mapOptlock(err)
	}
	return nil
}

// =========== Insurance plans ===========

func validatePlan(in PlanInput, requireName bool) validate.Errors {
	rules := []validate.Rule{
		validate.RequiredInt64("provider_id", in.ProviderID),
		validate.Required("locale", in.Locale),
		validate.MaxLen("name", in.Name, nameMaxLen),
		validate.MaxLen("description", in.Description, descriptionMaxLen),
		validate.RangeFloat("coverage_percent", in.CoveragePercent, 0, 100),
	}
	if requireName {
		rules = append(rules, validate.Required("name", in.Name))
	}
	errs := validate.Check(rules...)
	if in.Locale != "" && !i18n.IsSupported(in.Locale) {
		errs.Add("locale", "invalidValue")
	}
	return errs
}

func (s *Service) ListPlans(ctx context.Context, providerID int64) ([]*InsurancePlan, error) {
	return s.plans.ListByProvider(ctx, providerID)
}

func (s *Service) CreatePlan(ctx context.Context, in PlanInput) (*InsurancePlan, error) {
	uid, err := actor(ctx)
	if err != nil {
		return nil, err
	}
	if errs := validatePlan(in, true); !errs.Empty() {
		return nil, apperr.Validation("invalidFields", errs)
	}
	if _, err := s.providers.GetByID(ctx, in.ProviderID); err != nil {
		return nil, mapOptlock(err)
	}

	var fields []string
	if in.Name != "" {
		fields = append(fields, "name")
	}
	if in.Description != "" {
		fields = append(fields, "description")
	}

	p := &InsurancePlan{
		ProviderID:          in.ProviderID,
		Name:                i18n.NewText(in.Locale, in.Name),
		Description:         i18n.NewText(in.Locale, in.Description),
		AISourceLocale:      in.Locale,
		AITranslationStatus: i18n.StatusIdle,
		CoveragePercent:     in.CoveragePercent,
		Active:              in.Active,
		CreatedBy:           uid,
		UpdatedBy:           uid,
	}
	if len(fields) > 0 {
		p.AITranslationStatus = i18n.StatusInProgress
	}

	err = s.runInTx(ctx, func(ctx context.Context) error {
		if err := s.plans.Create(ctx, p); err != nil {
			return err
		}
		if len(fields) > 0 {
			return s.outbox.Enqueue(ctx, "insurance_plans", p.ID, fields, in.Locale)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return s.plans.GetByID(ctx, p.ID)
}

func (s *Service) UpdatePlan(ctx context.Context, id, expectedVersion int64, in PlanInput) (*InsurancePlan, error) {
	uid, err := actor(ctx)
	if err != nil {
		return nil, err
	}
	current, err := s.plans.GetByID(ctx, id)
	if err != nil {
		return nil, mapOptlock(err)
	}
	in.ProviderID = current.ProviderID
	if errs := validatePlan(in, in.Locale == current.AISourceLocale); !errs.Empty() {
		return nil, apperr.Validation("invalidFields", errs)
	}

	source := current.AISourceLocale
	mergedName, nameChanged := i18n.Merge(current.Name, source, in.Locale, in.Name)
	mergedDesc, descChanged := i18n.Merge(current.Description, source, in.Locale, in.Description)

	var fields []string
	if nameChanged && mergedName[source] != "" {
		fields = append(fields, "name")
	}
	if descChanged && mergedDesc[source] != "" {
		fields = append(fields, "description")
	}

	p := &InsurancePlan{
		ID:                  id,
		ProviderID:          current.ProviderID,
		Name:                mergedName,
		Description:         mergedDesc,
		AITranslationStatus: current.AITranslationStatus,
		CoveragePercent:     in.CoveragePercent,
		Active:              in.Active,
		UpdatedBy:           uid,
	}
	if len(fields) > 0 {
		p.AITranslationStatus = i18n.StatusInProgress
	}

	err = s.runInTx(ctx, func(ctx context.Context) error {
		if err := s.plans.Update(ctx, p, expectedVersion); err != nil {
			return err
		}
		if len(fields) > 0 {
			return s.outbox.Enqueue(ctx, "insurance_plans", id, fields, source)
		}
		return nil
	})
	if err != nil {
		return nil, mapOptlock(err)
	}
	return s.plans.GetByID(ctx, id)
}

func (s *Service) DeletePlan(ctx context.Context, id int64) error {
	if _, err := actor(ctx); err != nil {
		return err
	}
	if err := s.plans.Delete(ctx, id); err != nil {
		return mapOptlock(err)
	}
	return nil
}

// =========== Lookups ===========

func (s *Service) ListCountries(ctx context.Context) ([]*Country, error) {
	return s.lookups.Countries(ctx)
}

func (s *Service) ListCities(ctx context.Context, countryID int64) ([]*City, error) {
	return s.lookups.Cities(ctx, countryID)
}

func (s *Service) ListProfessions(ctx context.Context) ([]*Profession, error) {
	return s.lookups.Professions(ctx)
}

func (s *Service) ListEmployers(ctx context.Context, nameFilter string) ([]*Employer, error) {
	return s.lookups.Employers(ctx, nameFilter)
}

func (s *Service) CreateEmployer(ctx context.Context, name string) (*Employer, error) {
	if _, err := actor(ctx); err != nil {
		return nil, err
	}
	errs := validate.Check(
		validate.Required("name", name),
		validate.MaxLen("name", name, nameMaxLen),
	)
	if !errs.Empty() {
		return nil, apperr.Validation("invalidFields", errs)
	}

	e := &Employer{Name: name}
	if err := s.lookups.CreateEmployer(ctx, e); err != nil {
		return nil, err
	}
	return e, nil
}
