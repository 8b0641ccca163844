package patient

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

type Service struct {
	patients PatientRepository
	personal PersonalRepository
	risk     RiskRepository
	notes    NoteRepository
	outbox   translate.Outbox
	pool     *pgxpool.Pool
}

func NewService(patients PatientRepository, personal PersonalRepository, risk RiskRepository, notes NoteRepository, outbox translate.Outbox, pool *pgxpool.Pool) *Service {
	return &Service{patients: patients, personal: personal, risk: risk, notes: notes, outbox: outbox, pool: pool}
}

func actor(ctx context.Context) (string, error) {
	uid := auth.UserIDFromContext(ctx)
	if uid == "" {
		return "", apperr.Unauthenticated()
	}
	return uid, nil
}

// mapOptlock converts repository sentinels into the client error taxonomy.
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

// runInTx is nil-pool safe so service tests can run without a database.
func (s *Service) runInTx(ctx context.Context, fn func(ctx context.Context) error) error {
	if s.pool == nil {
		return fn(ctx)
	}
	return db.RunInTx(ctx, s.pool, fn)
}

// -- Patient (general record) --

var validGenders = map[string]bool{"male": true, "female": true, "other": true, "unknown": true}

func validatePatient(p *Patient) validate.Errors {
	return validate.Check(
		validate.Required("first_name", p.FirstName),
		validate.Required("last_name", p.LastName),
		validate.MaxLen("first_name", p.FirstName, 100),
		validate.MaxLen("last_name", p.LastName, 100),
		validate.OneOf("gender", p.Gender, validGenders),
		validate.Email("email", p.Email),
		validate.MaxLen("national_id", p.NationalID, 20),
	)
}

func (s *Service) CreatePatient(ctx context.Context, p *Patient) (*Patient, error) {
	uid, err := actor(ctx)
	if err != nil {
		return nil, err
	}

	if errs := validatePatient(p); !errs.Empty() {
		return nil, apperr.Validation("invalidFields", errs)
	}

	if p.NationalID != "" {
		exists, err := s.patients.NationalIDExists(ctx, p.NationalID, 0)
		if err != nil {
			return nil, err
		}
		if exists {
			return nil, apperr.Conflict("duplicateNationalId")
		}
	}

	p.CreatedBy = uid
	p.UpdatedBy = uid
	if err := s.patients.Create(ctx, p); err != nil {
		return nil, err
	}
	return s.patients.GetByID(ctx, p.ID)
}

func (s *Service) GetPatient(ctx context.Context, id int64) (*Patient, error) {
	p, err := s.patients.GetByID(ctx, id)
	if err != nil {
		return nil, mapOptlock(err)
	}
	return p, nil
}

func (s *Service) SearchPatients(ctx context.Context, filter SearchFilter, pg pagination.Params) ([]*Patient, int, error) {
	return s.patients.Search(ctx, filter, pg)
}

func (s *Service) UpdatePatient(ctx context.Context, p *Patient, expectedVersion int64) (*Patient, error) {
	uid, err := actor(ctx)
	if err != nil {
		return nil, err
	}

	if errs := validatePatient(p); !errs.Empty() {
		return nil, apperr.Validation("invalidFields", errs)
	}

	if p.NationalID != "" {
		exists, err := s.patients.NationalIDExists(ctx, p.NationalID, p.ID)
		if err != nil {
			return nil, err
		}
		if exists {
			return nil, apperr.Conflict("duplicateNationalId")
		}
	}

	p.UpdatedBy = uid
	if err := s.patients.Update(ctx, p, expectedVersion); err != nil {
		return nil, mapOptlock(err)
	}
	return s.patients.GetByID(ctx, p.ID)
}

func (s *Service) DeletePatient(ctx context.Context, id int64) error {
	if _, err := actor(ctx); err != nil {
		return err
	}
	return mapOptlock(s.patients.Delete(ctx, id))
}

// -- PersonalInfo --

func (s *Service) GetPersonal(ctx context.Context, patientID int64) (*PersonalInfo, error) {
	p, err := s.personal.GetByPatientID(ctx, patientID)
	if err != nil {
		return nil, mapOptlock(err)
	}
	return p, nil
}

// SavePersonal creates the record on first save and versions every later one.
func (s *Service) SavePersonal(ctx context.Context, p *PersonalInfo, expectedVersion int64) (*PersonalInfo, error) {
	uid, err := actor(ctx)
	if err != nil {
		return nil, err
	}

	p.UpdatedBy = uid
	_, err = s.personal.GetByPatientID(ctx, p.PatientID)
	switch {
	case errors.Is(err, optlock.ErrNotFound):
		if err := s.personal.Create(ctx, p); err != nil {
			return nil, err
		}
	case err != nil:
		return nil, err
	default:
		if err := s.personal.Update(ctx, p, expectedVersion); err != nil {
			return nil, mapOptlock(err)
		}
	}
	return s.personal.GetByPatientID(ctx, p.PatientID)
}

// -- RiskInfo --

func validateRisk(ri *RiskInfo) validate.Errors {
	return validate.Check(
		validate.MaxLen("gender", ri.Gender, 20),
		validate.MaxLen("blood_type", ri.BloodType, 10),
		validate.RangeFloat("weight", ri.Weight, 1, 500),
		validate.RangeFloat("height", ri.Height, 30, 300),
		validate.RangeFloat("waist_circumference", ri.WaistCircumference, 10, 200),
	)
}

func (s *Service) GetRisk(ctx context.Context, patientID int64) (*RiskInfo, error) {
	ri, err := s.risk.GetByPatientID(ctx, patientID)
	if err != nil {
		return nil, mapOptlock(err)
	}
	return ri, nil
}

func (s *Service) SaveRisk(ctx context.Context, ri *RiskInfo, expectedVersion int64) (*RiskInfo, error) {
	uid, err := actor(ctx)
	if err != nil {
		return nil, err
	}

	if errs := validateRisk(ri); !errs.Empty() {
		return nil, apperr.Validation("invalidFields", errs)
	}

	ri.UpdatedBy = uid
	_, err = s.risk.GetByPatientID(ctx, ri.PatientID)
	switch {
	case errors.Is(err, optlock.ErrNotFound):
		if err := s.risk.Create(ctx, ri); err != nil {
			return nil, err
		}
	case err != nil:
		return nil, err
	default:
		if err := s.risk.Update(ctx, ri, expectedVersion); err != nil {
			return nil, mapOptlock(err)
		}
	}
	return s.risk.GetByPatientID(ctx, ri.PatientID)
}

// -- Notes --

const noteMaxLen = 1000

func validateNote(locale, text string) validate.Errors {
	errs := validate.Check(
		validate.Required("locale", locale),
		validate.MaxLen("note", text, noteMaxLen),
	)
	if locale != "" && !i18n.IsSupported(locale) {
		errs.Add("locale", "invalidValue")
	}
	return errs
}

// CreateNote writes the note body entirely in the author's locale, which
// becomes the note's source locale for all later edits.
func (s *Service) CreateNote(ctx context.Context, patientID int64, locale, text string) (*Note, error) {
	uid, err := actor(ctx)
	if err != nil {
		return nil, err
	}

	if errs := validateNote(locale, text); !errs.Empty() {
		return nil, apperr.Validation("invalidFields", errs)
	}

	n := &Note{
		PatientID:           patientID,
		Note:                i18n.NewText(locale, text),
		AISourceLocale:      locale,
		AITranslationStatus: i18n.StatusIdle,
		CreatedBy:           uid,
		UpdatedBy:           uid,
	}
	if text != "" {
		n.AITranslationStatus = i18n.StatusInProgress
	}

	err = s.runInTx(ctx, func(txCtx context.Context) error {
		if err := s.notes.Create(txCtx, n); err != nil {
			return err
		}
		if text != "" {
			return s.outbox.Enqueue(txCtx, "patient_notes", n.ID, []string{"note"}, locale)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return s.notes.GetByID(ctx, n.ID)
}

func (s *Service) GetNote(ctx context.Context, id int64) (*Note, error) {
	n, err := s.notes.GetByID(ctx, id)
	if err != nil {
		return nil, mapOptlock(err)
	}
	return n, nil
}

func (s *Service) ListNotes(ctx context.Context, patientID int64, pg pagination.Params) ([]*Note, int, error) {
	return s.notes.ListByPatient(ctx, patientID, pg)
}

// UpdateNote applies the locale merge protocol: only edits made in the
// note's source locale change the stored text, and only a real change
// re-dispatches machine translation.
func (s *Service) UpdateNote(ctx context.Context, id, expectedVersion int64, locale, text string) (*Note, error) {
	uid, err := actor(ctx)
	if err != nil {
		return nil, err
	}

	if errs := validateNote(locale, text); !errs.Empty() {
		return nil, apperr.Validation("invalidFields", errs)
	}

	current, err := s.notes.GetByID(ctx, id)
	if err != nil {
		return nil, mapOptlock(err)
	}

	merged, changed := i18n.Merge(current.Note, current.AISourceLocale, locale, text)

	updated := &Note{
		ID:                  id,
		Note:                merged,
		AITranslationStatus: current.AITranslationStatus,
		UpdatedBy:           uid,
	}

	dispatch := changed && merged[current.AISourceLocale] != ""
	if dispatch {
		updated.AITranslationStatus = i18n.StatusInProgress
	}

	err = s.runInTx(ctx, func(txCtx context.Context) error {
		if err := s.notes.Update(txCtx, updated, expectedVersion); err != nil {
			return err
		}
		if dispatch {
			return s.outbox.Enqueue(txCtx, "patient_notes", id, []string{"note"}, current.AISourceLocale)
		}
		return nil
	})
	if err != nil {
		return nil, mapOptlock(err)
	}
	return s.notes.GetByID(ctx, id)
}

// DeleteNote is not versioned.
func (s *Service) DeleteNote(ctx context.Context, id int64) error {
	if _, err := actor(ctx); err != nil {
		return err
	}
	return mapOptlock(s.notes.Delete(ctx, id))
}
