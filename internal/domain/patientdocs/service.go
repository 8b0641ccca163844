package patientdocs

import (
	"context"
	"errors"

	"github.com/rs/zerolog"

	"github.com/clinicore/clinicore/internal/platform/apperr"
	"github.com/clinicore/clinicore/internal/platform/auth"
	"github.com/clinicore/clinicore/internal/platform/blobstore"
	"github.com/clinicore/clinicore/internal/platform/optlock"
	"github.com/clinicore/clinicore/internal/platform/validate"
)

type Service struct {
	docs       IDDocumentRepository
	insurances InsuranceRepository
	store      blobstore.FileStore
	log        zerolog.Logger
}

func NewService(docs IDDocumentRepository, insurances InsuranceRepository, store blobstore.FileStore, log zerolog.Logger) *Service {
	return &Service{docs: docs, insurances: insurances, store: store, log: log}
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

// deleteFileQuiet removes a stored file without failing the caller.
// Storage orphans are preferred over blocking a user-visible write.
func (s *Service) deleteFileQuiet(ctx context.Context, filePath string) {
	if filePath == "" {
		return
	}
	if err := s.store.Delete(ctx, filePath); err != nil {
		s.log.Warn().Err(err).Str("file_path", filePath).Msg("file cleanup failed, orphan left in store")
	}
}

// -- Identity documents --

func validateIDDocument(d *IDDocument) validate.Errors {
	return validate.Check(
		validate.RequiredInt64("document_type_id", d.DocumentTypeID),
		validate.Required("document_number", d.DocumentNumber),
		validate.MaxLen("document_number", d.DocumentNumber, 50),
		validate.DateAfter("expiry_date", d.ExpiryDate, d.IssueDate),
	)
}

// CheckDuplicateIDDocument is the pre-upload probe. Clients call it before
// pushing the file so a doomed upload is never started; the create and
// update paths repeat it as a backstop.
func (s *Service) CheckDuplicateIDDocument(ctx context.Context, patientID, documentTypeID int64, documentNumber string, excludeID int64) error {
	count, err := s.docs.CountDuplicates(ctx, patientID, documentTypeID, documentNumber, excludeID)
	if err != nil {
		return err
	}
	if count > 0 {
		return apperr.Conflict("duplicateDocumentType")
	}
	return nil
}

func (s *Service) CreateIDDocument(ctx context.Context, d *IDDocument, file *blobstore.FileInfo) (*IDDocument, error) {
	uid, err := actor(ctx)
	if err != nil {
		return nil, err
	}
	if errs := validateIDDocument(d); !errs.Empty() {
		return nil, apperr.Validation("invalidFields", errs)
	}
	if err := s.CheckDuplicateIDDocument(ctx, d.PatientID, d.DocumentTypeID, d.DocumentNumber, 0); err != nil {
		return nil, err
	}

	blobstore.Apply(&d.File, blobstore.Attachment{}, blobstore.Change{New: file})
	d.CreatedBy = uid
	d.UpdatedBy = uid
	if err := s.docs.Create(ctx, d); err != nil {
		return nil, err
	}
	return s.docs.GetByID(ctx, d.ID)
}

func (s *Service) GetIDDocument(ctx context.Context, id int64) (*IDDocument, error) {
	d, err := s.docs.GetByID(ctx, id)
	if err != nil {
		return nil, mapOptlock(err)
	}
	return d, nil
}

func (s *Service) ListIDDocuments(ctx context.Context, patientID int64) ([]*IDDocument, error) {
	return s.docs.ListByPatient(ctx, patientID)
}

func (s *Service) UpdateIDDocument(ctx context.Context, d *IDDocument, expectedVersion int64, change blobstore.Change) (*IDDocument, error) {
	uid, err := actor(ctx)
	if err != nil {
		return nil, err
	}
	if errs := validateIDDocument(d); !errs.Empty() {
		return nil, apperr.Validation("invalidFields", errs)
	}

	current, err := s.docs.GetByID(ctx, d.ID)
	if err != nil {
		return nil, mapOptlock(err)
	}
	if err := s.CheckDuplicateIDDocument(ctx, current.PatientID, d.DocumentTypeID, d.DocumentNumber, d.ID); err != nil {
		return nil, err
	}

	obsolete := blobstore.Apply(&d.File, current.File, change)
	d.PatientID = current.PatientID
	d.UpdatedBy = uid
	if err := s.docs.Update(ctx, d, expectedVersion); err != nil {
		return nil, mapOptlock(err)
	}

	// The old file goes only after the row points at the new one.
	s.deleteFileQuiet(ctx, obsolete)

	return s.docs.GetByID(ctx, d.ID)
}

func (s *Service) DeleteIDDocument(ctx context.Context, id int64) error {
	if _, err := actor(ctx); err != nil {
		return err
	}

	d, err := s.docs.GetByID(ctx, id)
	if err != nil {
		return mapOptlock(err)
	}
	if d.File.HasFile() {
		s.deleteFileQuiet(ctx, d.File.StoredPath())
	}
	if err := s.docs.Delete(ctx, id); err != nil {
		return mapOptlock(err)
	}
	return nil
}

// -- Insurance --

func validateInsurance(ins *Insurance) validate.Errors {
	return validate.Check(
		validate.RequiredInt64("insurance_plan_id", ins.InsurancePlanID),
		validate.Required("policy_number", ins.PolicyNumber),
		validate.MaxLen("policy_number", ins.PolicyNumber, 50),
		validate.MaxLen("lbo_number", ins.LBONumber, 20),
		validate.DateAfter("expiry_date", ins.ExpiryDate, ins.EffectiveDate),
	)
}

func (s *Service) CreateInsurance(ctx context.Context, ins *Insurance, file *blobstore.FileInfo) (*Insurance, error) {
	uid, err := actor(ctx)
	if err != nil {
		return nil, err
	}
	if errs := validateInsurance(ins); !errs.Empty() {
		return nil, apperr.Validation("invalidFields", errs)
	}

	blobstore.Apply(&ins.File, blobstore.Attachment{}, blobstore.Change{New: file})
	ins.CreatedBy = uid
	ins.UpdatedBy = uid
	if err := s.insurances.Create(ctx, ins); err != nil {
		return nil, err
	}
	return s.insurances.GetByID(ctx, ins.ID)
}

func (s *Service) GetInsurance(ctx context.Context, id int64) (*Insurance, error) {
	ins, err := s.insurances.GetByID(ctx, id)
	if err != nil {
		return nil, mapOptlock(err)
	}
	return ins, nil
}

func (s *Service) ListInsurances(ctx context.Context, patientID int64) ([]*Insurance, error) {
	return s.insurances.ListByPatient(ctx, patientID)
}

func (s *Service) UpdateInsurance(ctx context.Context, ins *Insurance, expectedVersion int64, change blobstore.Change) (*Insurance, error) {
	uid, err := actor(ctx)
	if err != nil {
		return nil, err
	}
	if errs := validateInsurance(ins); !errs.Empty() {
		return nil, apperr.Validation("invalidFields", errs)
	}

	current, err := s.insurances.GetByID(ctx, ins.ID)
	if err != nil {
		return nil, mapOptlock(err)
	}

	obsolete := blobstore.Apply(&ins.File, current.File, change)
	ins.PatientID = current.PatientID
	ins.UpdatedBy = uid
	if err := s.insurances.Update(ctx, ins, expectedVersion); err != nil {
		return nil, mapOptlock(err)
	}

	s.deleteFileQuiet(ctx, obsolete)

	return s.insurances.GetByID(ctx, ins.ID)
}

func (s *Service) DeleteInsurance(ctx context.Context, id int64) error {
	if _, err := actor(ctx); err != nil {
		return err
	}

	ins, err := s.insurances.GetByID(ctx, id)
	if err != nil {
		return mapOptlock(err)
	}
	if ins.File.HasFile() {
		s.deleteFileQuiet(ctx, ins.File.StoredPath())
	}
	if err := s.insurances.Delete(ctx, id); err != nil {
		return mapOptlock(err)
	}
	return nil
}
