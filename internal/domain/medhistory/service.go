package medhistory

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog"

	"github.com/clinicore/clinicore/internal/platform/apperr"
	"github.com/clinicore/clinicore/internal/platform/auth"
	"github.com/clinicore/clinicore/internal/platform/blobstore"
	"github.com/clinicore/clinicore/internal/platform/db"
	"github.com/clinicore/clinicore/internal/platform/i18n"
	"github.com/clinicore/clinicore/internal/platform/optlock"
	"github.com/clinicore/clinicore/internal/platform/translate"
	"github.com/clinicore/clinicore/internal/platform/validate"
	"github.com/clinicore/clinicore/pkg/pagination"
)

const (
	titleMaxLen = 200
	notesMaxLen = 1000

	diagnosisSearchLimit = 50
)

// EventInput is the write shape for history events. Title and Notes carry
// the text in the editing locale only; the service merges them into the
// stored locale maps.
type EventInput struct {
	PatientID    int64
	EventDate    *time.Time
	Locale       string
	Title        string
	Notes        string
	DiagnosisIDs []int64
}

// DocumentInput is the write shape for medical documents.
type DocumentInput struct {
	EventID               int64
	MedicalDocumentTypeID int64
	DocumentDate          *time.Time
	Locale                string
	Notes                 string
	DiagnosisIDs          []int64
}

type Service struct {
	events    EventRepository
	documents DocumentRepository
	diagnoses DiagnosisRepository
	outbox    translate.Outbox
	store     blobstore.FileStore
	pool      *pgxpool.Pool
	log       zerolog.Logger
}

func NewService(events EventRepository, documents DocumentRepository, diagnoses DiagnosisRepository,
	outbox translate.Outbox, store blobstore.FileStore, pool *pgxpool.Pool, log zerolog.Logger) *Service {
	return &Service{
		events: events, documents: documents, diagnoses: diagnoses,
		outbox: outbox, store: store, pool: pool, log: log,
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

func (s *Service) deleteFileQuiet(ctx context.Context, filePath string) {
	if filePath == "" {
		return
	}
	if err := s.store.Delete(ctx, filePath); err != nil {
		s.log.Warn().Err(err).Str("file_path", filePath).Msg("file cleanup failed, orphan left in store")
	}
}

// touchEvent bumps the parent's updated_at so it surfaces in "recently
// changed" lists. Failure is logged, never propagated.
func (s *Service) touchEvent(ctx context.Context, eventID int64, uid string) {
	if err := s.events.Touch(ctx, eventID, uid); err != nil {
		s.log.Warn().Err(err).Int64("event_id", eventID).Msg("parent event touch failed")
	}
}

// checkDiagnoses verifies every linked id exists in the code table.
func (s *Service) checkDiagnoses(ctx context.Context, ids []int64) error {
	if len(ids) == 0 {
		return nil
	}
	found, err := s.diagnoses.GetByIDs(ctx, ids)
	if err != nil {
		return err
	}
	if len(found) != len(ids) {
		errs := validate.Errors{}
		errs.Add("diagnosis_ids", "unknownDiagnosis")
		return apperr.Validation("invalidFields", errs)
	}
	return nil
}

// -- Events --

func validateEventInput(in EventInput, requireTitle bool) validate.Errors {
	rules := []validate.Rule{
		validate.Required("locale", in.Locale),
		validate.MaxLen("title", in.Title, titleMaxLen),
		validate.MaxLen("notes", in.Notes, notesMaxLen),
	}
	if requireTitle {
		rules = append(rules, validate.Required("title", in.Title))
	}
	errs := validate.Check(rules...)
	if in.Locale != "" && !i18n.IsSupported(in.Locale) {
		errs.Add("locale", "invalidValue")
	}
	return errs
}

func (s *Service) CreateEvent(ctx context.Context, in EventInput) (*Event, error) {
	uid, err := actor(ctx)
	if err != nil {
		return nil, err
	}
	if errs := validateEventInput(in, true); !errs.Empty() {
		return nil, apperr.Validation("invalidFields", errs)
	}
	if err := s.checkDiagnoses(ctx, in.DiagnosisIDs); err != nil {
		return nil, err
	}

	e := &Event{
		PatientID:      in.PatientID,
		EventDate:      in.EventDate,
		Title:          i18n.NewText(in.Locale, in.Title),
		Notes:          i18n.NewText(in.Locale, in.Notes),
		AISourceLocale: in.Locale,
		CreatedBy:      uid,
		UpdatedBy:      uid,
	}

	fields := dispatchFields(map[string]bool{
		"title": in.Title != "",
		"notes": in.Notes != "",
	})
	e.AITranslationStatus = i18n.StatusIdle
	if len(fields) > 0 {
		e.AITranslationStatus = i18n.StatusInProgress
	}

	err = s.runInTx(ctx, func(ctx context.Context) error {
		if err := s.events.Create(ctx, e); err != nil {
			return err
		}
		if err := s.events.SetDiagnoses(ctx, e.ID, in.DiagnosisIDs); err != nil {
			return err
		}
		if len(fields) > 0 {
			return s.outbox.Enqueue(ctx, "medical_history_events", e.ID, fields, in.Locale)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return s.GetEvent(ctx, e.ID)
}

func (s *Service) GetEvent(ctx context.Context, id int64) (*Event, error) {
	e, err := s.events.GetByID(ctx, id)
	if err != nil {
		return nil, mapOptlock(err)
	}
	return e, nil
}

func (s *Service) ListEvents(ctx context.Context, patientID int64, pg pagination.Params) ([]*Event, int, error) {
	return s.events.ListByPatient(ctx, patientID, pg)
}

func (s *Service) UpdateEvent(ctx context.Context, id, expectedVersion int64, in EventInput) (*Event, error) {
	uid, err := actor(ctx)
	if err != nil {
		return nil, err
	}
	current, err := s.events.GetByID(ctx, id)
	if err != nil {
		return nil, mapOptlock(err)
	}
	if errs := validateEventInput(in, in.Locale == current.AISourceLocale); !errs.Empty() {
		return nil, apperr.Validation("invalidFields", errs)
	}
	if err := s.checkDiagnoses(ctx, in.DiagnosisIDs); err != nil {
		return nil, err
	}

	mergedTitle, titleChanged := i18n.Merge(current.Title, current.AISourceLocale, in.Locale, in.Title)
	mergedNotes, notesChanged := i18n.Merge(current.Notes, current.AISourceLocale, in.Locale, in.Notes)

	fields := dispatchFields(map[string]bool{
		"title": titleChanged && mergedTitle[current.AISourceLocale] != "",
		"notes": notesChanged && mergedNotes[current.AISourceLocale] != "",
	})

	e := &Event{
		ID:                  id,
		EventDate:           in.EventDate,
		Title:               mergedTitle,
		Notes:               mergedNotes,
		AITranslationStatus: current.AITranslationStatus,
		UpdatedBy:           uid,
	}
	if len(fields) > 0 {
		e.AITranslationStatus = i18n.StatusInProgress
	}

	err = s.runInTx(ctx, func(ctx context.Context) error {
		if err := s.events.Update(ctx, e, expectedVersion); err != nil {
			return err
		}
		if err := s.events.SetDiagnoses(ctx, id, in.DiagnosisIDs); err != nil {
			return err
		}
		if len(fields) > 0 {
			return s.outbox.Enqueue(ctx, "medical_history_events", id, fields, current.AISourceLocale)
		}
		return nil
	})
	if err != nil {
		return nil, mapOptlock(err)
	}
	return s.GetEvent(ctx, id)
}

func (s *Service) DeleteEvent(ctx context.Context, id int64) error {
	if _, err := actor(ctx); err != nil {
		return err
	}

	e, err := s.events.GetByID(ctx, id)
	if err != nil {
		return mapOptlock(err)
	}
	for _, doc := range e.Documents {
		if doc.File.HasFile() {
			s.deleteFileQuiet(ctx, doc.File.StoredPath())
		}
	}
	if err := s.events.Delete(ctx, id); err != nil {
		return mapOptlock(err)
	}
	return nil
}

// -- Documents --

func validateDocumentInput(in DocumentInput) validate.Errors {
	errs := validate.Check(
		validate.RequiredInt64("medical_document_type_id", in.MedicalDocumentTypeID),
		validate.Required("locale", in.Locale),
		validate.MaxLen("notes", in.Notes, notesMaxLen),
	)
	if in.Locale != "" && !i18n.IsSupported(in.Locale) {
		errs.Add("locale", "invalidValue")
	}
	return errs
}

func (s *Service) CreateDocument(ctx context.Context, in DocumentInput, file *blobstore.FileInfo) (*Document, error) {
	uid, err := actor(ctx)
	if err != nil {
		return nil, err
	}
	if errs := validateDocumentInput(in); !errs.Empty() {
		return nil, apperr.Validation("invalidFields", errs)
	}
	if _, err := s.events.GetByID(ctx, in.EventID); err != nil {
		return nil, mapOptlock(err)
	}
	if err := s.checkDiagnoses(ctx, in.DiagnosisIDs); err != nil {
		return nil, err
	}

	d := &Document{
		EventID:               in.EventID,
		MedicalDocumentTypeID: in.MedicalDocumentTypeID,
		DocumentDate:          in.DocumentDate,
		Notes:                 i18n.NewText(in.Locale, in.Notes),
		AISourceLocale:        in.Locale,
		CreatedBy:             uid,
		UpdatedBy:             uid,
	}
	blobstore.Apply(&d.File, blobstore.Attachment{}, blobstore.Change{New: file})

	fields := dispatchFields(map[string]bool{"notes": in.Notes != ""})
	d.AITranslationStatus = i18n.StatusIdle
	if len(fields) > 0 {
		d.AITranslationStatus = i18n.StatusInProgress
	}

	err = s.runInTx(ctx, func(ctx context.Context) error {
		if err := s.documents.Create(ctx, d); err != nil {
			return err
		}
		if err := s.documents.SetDiagnoses(ctx, d.ID, in.DiagnosisIDs); err != nil {
			return err
		}
		if len(fields) > 0 {
			return s.outbox.Enqueue(ctx, "medical_history_documents", d.ID, fields, in.Locale)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.touchEvent(ctx, in.EventID, uid)

	return s.GetDocument(ctx, d.ID)
}

func (s *Service) GetDocument(ctx context.Context, id int64) (*Document, error) {
	d, err := s.documents.GetByID(ctx, id)
	if err != nil {
		return nil, mapOptlock(err)
	}
	return d, nil
}

func (s *Service) ListDocuments(ctx context.Context, eventID int64) ([]*Document, error) {
	return s.documents.ListByEvent(ctx, eventID)
}

func (s *Service) UpdateDocument(ctx context.Context, id, expectedVersion int64, in DocumentInput, change blobstore.Change) (*Document, error) {
	uid, err := actor(ctx)
	if err != nil {
		return nil, err
	}
	if errs := validateDocumentInput(in); !errs.Empty() {
		return nil, apperr.Validation("invalidFields", errs)
	}
	current, err := s.documents.GetByID(ctx, id)
	if err != nil {
		return nil, mapOptlock(err)
	}
	if err := s.checkDiagnoses(ctx, in.DiagnosisIDs); err != nil {
		return nil, err
	}

	mergedNotes, notesChanged := i18n.Merge(current.Notes, current.AISourceLocale, in.Locale, in.Notes)
	fields := dispatchFields(map[string]bool{
		"notes": notesChanged && mergedNotes[current.AISourceLocale] != "",
	})

	d := &Document{
		ID:                    id,
		MedicalDocumentTypeID: in.MedicalDocumentTypeID,
		DocumentDate:          in.DocumentDate,
		Notes:                 mergedNotes,
		AITranslationStatus:   current.AITranslationStatus,
		UpdatedBy:             uid,
	}
	if len(fields) > 0 {
		d.AITranslationStatus = i18n.StatusInProgress
	}
	obsolete := blobstore.Apply(&d.File, current.File, change)

	err = s.runInTx(ctx, func(ctx context.Context) error {
		if err := s.documents.Update(ctx, d, expectedVersion); err != nil {
			return err
		}
		if err := s.documents.SetDiagnoses(ctx, id, in.DiagnosisIDs); err != nil {
			return err
		}
		if len(fields) > 0 {
			return s.outbox.Enqueue(ctx, "medical_history_documents", id, fields, current.AISourceLocale)
		}
		return nil
	})
	if err != nil {
		return nil, mapOptlock(err)
	}

	// The old file goes only after the row points at the new one.
	s.deleteFileQuiet(ctx, obsolete)
	s.touchEvent(ctx, current.EventID, uid)

	return s.GetDocument(ctx, id)
}

func (s *Service) DeleteDocument(ctx context.Context, id int64) error {
	uid, err := actor(ctx)
	if err != nil {
		return err
	}

	d, err := s.documents.GetByID(ctx, id)
	if err != nil {
		return mapOptlock(err)
	}
	if d.File.HasFile() {
		s.deleteFileQuiet(ctx, d.File.StoredPath())
	}
	if err := s.documents.Delete(ctx, id); err != nil {
		return mapOptlock(err)
	}

	s.touchEvent(ctx, d.EventID, uid)
	return nil
}

// -- Diagnosis lookup --

func (s *Service) SearchDiagnoses(ctx context.Context, term, locale string, limit int) ([]Diagnosis, error) {
	if term == "" {
		return []Diagnosis{}, nil
	}
	if !i18n.IsSupported(locale) {
		locale = i18n.DefaultLocale
	}
	if limit <= 0 || limit > diagnosisSearchLimit {
		limit = diagnosisSearchLimit
	}
	return s.diagnoses.Search(ctx, term, locale, limit)
}

// dispatchFields returns the field names flagged true, in a stable order.
func dispatchFields(changed map[string]bool) []string {
	var out []string
	for _, f := range []string{"title", "notes"} {
		if changed[f] {
			out = append(out, f)
		}
	}
	return out
}
