package patient

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/clinicore/clinicore/internal/platform/apperr"
	"github.com/clinicore/clinicore/internal/platform/auth"
	"github.com/clinicore/clinicore/internal/platform/i18n"
	"github.com/clinicore/clinicore/internal/platform/optlock"
	"github.com/clinicore/clinicore/internal/platform/translate"
	"github.com/clinicore/clinicore/pkg/pagination"
)

// -- map-backed mocks --

type mockPatientRepo struct {
	patients map[int64]*Patient
	nextID   int64
}

func newMockPatientRepo() *mockPatientRepo {
	return &mockPatientRepo{patients: make(map[int64]*Patient), nextID: 1}
}

func (m *mockPatientRepo) Create(ctx context.Context, p *Patient) error {
	p.ID = m.nextID
	m.nextID++
	p.Version = 1
	p.CreatedAt = time.Now()
	p.UpdatedAt = p.CreatedAt
	cp := *p
	m.patients[p.ID] = &cp
	return nil
}

func (m *mockPatientRepo) GetByID(ctx context.Context, id int64) (*Patient, error) {
	p, ok := m.patients[id]
	if !ok {
		return nil, optlock.ErrNotFound
	}
	cp := *p
	return &cp, nil
}

func (m *mockPatientRepo) Update(ctx context.Context, p *Patient, expectedVersion int64) error {
	cur, ok := m.patients[p.ID]
	if !ok {
		return optlock.ErrNotFound
	}
	if cur.Version != expectedVersion {
		return optlock.ErrConflict
	}
	cp := *p
	cp.Version = expectedVersion + 1
	cp.CreatedAt = cur.CreatedAt
	cp.UpdatedAt = time.Now()
	m.patients[p.ID] = &cp
	return nil
}

func (m *mockPatientRepo) Delete(ctx context.Context, id int64) error {
	if _, ok := m.patients[id]; !ok {
		return optlock.ErrNotFound
	}
	delete(m.patients, id)
	return nil
}

func (m *mockPatientRepo) Search(ctx context.Context, filter SearchFilter, pg pagination.Params) ([]*Patient, int, error) {
	var out []*Patient
	for _, p := range m.patients {
		out = append(out, p)
	}
	return out, len(out), nil
}

func (m *mockPatientRepo) NationalIDExists(ctx context.Context, nationalID string, excludeID int64) (bool, error) {
	for _, p := range m.patients {
		if p.NationalID == nationalID && p.ID != excludeID {
			return true, nil
		}
	}
	return false, nil
}

type mockPersonalRepo struct {
	records map[int64]*PersonalInfo
}

func newMockPersonalRepo() *mockPersonalRepo {
	return &mockPersonalRepo{records: make(map[int64]*PersonalInfo)}
}

func (m *mockPersonalRepo) GetByPatientID(ctx context.Context, patientID int64) (*PersonalInfo, error) {
	p, ok := m.records[patientID]
	if !ok {
		return nil, optlock.ErrNotFound
	}
	cp := *p
	return &cp, nil
}

func (m *mockPersonalRepo) Create(ctx context.Context, p *PersonalInfo) error {
	p.Version = 1
	cp := *p
	m.records[p.PatientID] = &cp
	return nil
}

func (m *mockPersonalRepo) Update(ctx context.Context, p *PersonalInfo, expectedVersion int64) error {
	cur, ok := m.records[p.PatientID]
	if !ok {
		return optlock.ErrNotFound
	}
	if cur.Version != expectedVersion {
		return optlock.ErrConflict
	}
	cp := *p
	cp.Version = expectedVersion + 1
	m.records[p.PatientID] = &cp
	return nil
}

type mockRiskRepo struct {
	records map[int64]*RiskInfo
}

func newMockRiskRepo() *mockRiskRepo { return &mockRiskRepo{records: make(map[int64]*RiskInfo)} }

func (m *mockRiskRepo) GetByPatientID(ctx context.Context, patientID int64) (*RiskInfo, error) {
	ri, ok := m.records[patientID]
	if !ok {
		return nil, optlock.ErrNotFound
	}
	cp := *ri
	cp.DeriveBMI()
	return &cp, nil
}

func (m *mockRiskRepo) Create(ctx context.Context, ri *RiskInfo) error {
	ri.Version = 1
	cp := *ri
	m.records[ri.PatientID] = &cp
	return nil
}

func (m *mockRiskRepo) Update(ctx context.Context, ri *RiskInfo, expectedVersion int64) error {
	cur, ok := m.records[ri.PatientID]
	if !ok {
		return optlock.ErrNotFound
	}
	if cur.Version != expectedVersion {
		return optlock.ErrConflict
	}
	cp := *ri
	cp.Version = expectedVersion + 1
	m.records[ri.PatientID] = &cp
	return nil
}

type mockNoteRepo struct {
	notes  map[int64]*Note
	nextID int64
}

func newMockNoteRepo() *mockNoteRepo { return &mockNoteRepo{notes: make(map[int64]*Note), nextID: 1} }

func (m *mockNoteRepo) Create(ctx context.Context, n *Note) error {
	n.ID = m.nextID
	m.nextID++
	n.Version = 1
	cp := *n
	cp.Note = n.Note.Clone()
	m.notes[n.ID] = &cp
	return nil
}

func (m *mockNoteRepo) GetByID(ctx context.Context, id int64) (*Note, error) {
	n, ok := m.notes[id]
	if !ok {
		return nil, optlock.ErrNotFound
	}
	cp := *n
	cp.Note = n.Note.Clone()
	return &cp, nil
}

func (m *mockNoteRepo) ListByPatient(ctx context.Context, patientID int64, pg pagination.Params) ([]*Note, int, error) {
	var out []*Note
	for _, n := range m.notes {
		if n.PatientID == patientID {
			out = append(out, n)
		}
	}
	return out, len(out), nil
}

func (m *mockNoteRepo) Update(ctx context.Context, n *Note, expectedVersion int64) error {
	cur, ok := m.notes[n.ID]
	if !ok {
		return optlock.ErrNotFound
	}
	if cur.Version != expectedVersion {
		return optlock.ErrConflict
	}
	cur.Note = n.Note.Clone()
	cur.AITranslationStatus = n.AITranslationStatus
	cur.UpdatedBy = n.UpdatedBy
	cur.Version = expectedVersion + 1
	return nil
}

func (m *mockNoteRepo) Delete(ctx context.Context, id int64) error {
	if _, ok := m.notes[id]; !ok {
		return optlock.ErrNotFound
	}
	delete(m.notes, id)
	return nil
}

type enqueued struct {
	table        string
	recordID     int64
	fields       []string
	sourceLocale string
}

type recordingOutbox struct {
	jobs []enqueued
}

func (m *recordingOutbox) Enqueue(ctx context.Context, tableName string, recordID int64, fields []string, sourceLocale string) error {
	m.jobs = append(m.jobs, enqueued{tableName, recordID, fields, sourceLocale})
	return nil
}

func (m *recordingOutbox) ClaimPending(ctx context.Context, limit int) ([]*translate.Job, error) {
	return nil, nil
}

func (m *recordingOutbox) MarkDone(ctx context.Context, id int64) error { return nil }

func (m *recordingOutbox) MarkFailed(ctx context.Context, id int64, errMsg string) error { return nil }

// -- helpers --

func authedCtx() context.Context {
	ctx := context.WithValue(context.Background(), auth.UserIDKey, "user-1")
	return context.WithValue(ctx, auth.UserRolesKey, []string{"staff"})
}

func newTestService() (*Service, *mockPatientRepo, *mockNoteRepo, *recordingOutbox) {
	patients := newMockPatientRepo()
	notes := newMockNoteRepo()
	outbox := &recordingOutbox{}
	svc := NewService(patients, newMockPersonalRepo(), newMockRiskRepo(), notes, outbox, nil)
	return svc, patients, notes, outbox
}

func kindOf(t *testing.T, err error) apperr.Kind {
	t.Helper()
	appErr, ok := apperr.As(err)
	if !ok {
		t.Fatalf("expected apperr, got %v", err)
	}
	return appErr.Kind
}

// -- tests --

func TestCreatePatient_Validation(t *testing.T) {
	svc, _, _, _ := newTestService()

	_, err := svc.CreatePatient(authedCtx(), &Patient{FirstName: "", LastName: "Doe"})
	if kindOf(t, err) != apperr.KindValidation {
		t.Fatalf("expected validation error, got %v", err)
	}
}

func TestCreatePatient_Unauthenticated(t *testing.T) {
	svc, _, _, _ := newTestService()

	_, err := svc.CreatePatient(context.Background(), &Patient{FirstName: "Jane", LastName: "Doe"})
	if kindOf(t, err) != apperr.KindUnauthenticated {
		t.Fatalf("expected unauthenticated, got %v", err)
	}
}

func TestCreatePatient_DuplicateNationalID(t *testing.T) {
	svc, _, _, _ := newTestService()

	_, err := svc.CreatePatient(authedCtx(), &Patient{FirstName: "Jane", LastName: "Doe", NationalID: "123"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	_, err = svc.CreatePatient(authedCtx(), &Patient{FirstName: "Janet", LastName: "Doe", NationalID: "123"})
	if kindOf(t, err) != apperr.KindConflict {
		t.Fatalf("expected conflict, got %v", err)
	}
}

func TestUpdatePatient_VersionIncrementsByOne(t *testing.T) {
	svc, _, _, _ := newTestService()

	created, err := svc.CreatePatient(authedCtx(), &Patient{FirstName: "Jane", LastName: "Doe"})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if created.Version != 1 {
		t.Fatalf("new record must start at version 1, got %d", created.Version)
	}

	created.Phone = "+381601234567"
	updated, err := svc.UpdatePatient(authedCtx(), created, created.Version)
	if err != nil {
		t.Fatalf("update: %v", err)
	}
	if updated.Version != 2 {
		t.Errorf("expected version 2, got %d", updated.Version)
	}
}

func TestUpdatePatient_StaleVersionConflict(t *testing.T) {
	svc, _, _, _ := newTestService()

	created, _ := svc.CreatePatient(authedCtx(), &Patient{FirstName: "Jane", LastName: "Doe"})

	// First writer wins.
	if _, err := svc.UpdatePatient(authedCtx(), created, created.Version); err != nil {
		t.Fatalf("first update: %v", err)
	}

	// Second writer with the old version must get a conflict.
	_, err := svc.UpdatePatient(authedCtx(), created, created.Version)
	if kindOf(t, err) != apperr.KindConflict {
		t.Fatalf("expected conflict, got %v", err)
	}
}

func TestUpdatePatient_NotFoundIsNotConflict(t *testing.T) {
	svc, _, _, _ := newTestService()

	ghost := &Patient{ID: 999, FirstName: "No", LastName: "One"}
	_, err := svc.UpdatePatient(authedCtx(), ghost, 1)
	if kindOf(t, err) != apperr.KindNotFound {
		t.Fatalf("expected notFound, got %v", err)
	}
}

func TestSavePersonal_CreatesOnFirstSave(t *testing.T) {
	svc, _, _, _ := newTestService()

	saved, err := svc.SavePersonal(authedCtx(), &PersonalInfo{PatientID: 1, MaritalStatus: "married"}, 0)
	if err != nil {
		t.Fatalf("first save: %v", err)
	}
	if saved.Version != 1 {
		t.Errorf("expected version 1 on first save, got %d", saved.Version)
	}

	saved.EducationLevel = "university"
	again, err := svc.SavePersonal(authedCtx(), saved, saved.Version)
	if err != nil {
		t.Fatalf("second save: %v", err)
	}
	if again.Version != 2 {
		t.Errorf("expected version 2, got %d", again.Version)
	}
}

func TestSaveRisk_RangeValidationAndBMI(t *testing.T) {
	svc, _, _, _ := newTestService()

	bad := 900.0
	_, err := svc.SaveRisk(authedCtx(), &RiskInfo{PatientID: 1, Weight: &bad}, 0)
	if kindOf(t, err) != apperr.KindValidation {
		t.Fatalf("expected validation error, got %v", err)
	}

	w, hgt := 80.0, 180.0
	saved, err := svc.SaveRisk(authedCtx(), &RiskInfo{PatientID: 1, Weight: &w, Height: &hgt}, 0)
	if err != nil {
		t.Fatalf("save: %v", err)
	}
	if saved.BMI == nil {
		t.Fatal("expected derived BMI")
	}
	if *saved.BMI < 24.6 || *saved.BMI > 24.8 {
		t.Errorf("unexpected BMI %f", *saved.BMI)
	}
}

func TestCreateNote_SeedsSourceLocaleAndDispatches(t *testing.T) {
	svc, _, _, outbox := newTestService()

	n, err := svc.CreateNote(authedCtx(), 1, "sr-Latn", "Pacijent se žali na glavobolju")
	if err != nil {
		t.Fatalf("create note: %v", err)
	}

	if n.AISourceLocale != "sr-Latn" {
		t.Errorf("source locale not fixed at creation: %s", n.AISourceLocale)
	}
	if n.Note["sr-Latn"] == "" {
		t.Error("note body missing in source locale")
	}
	if n.AITranslationStatus != i18n.StatusInProgress {
		t.Errorf("expected in_progress after dispatch, got %s", n.AITranslationStatus)
	}
	if len(outbox.jobs) != 1 || outbox.jobs[0].table != "patient_notes" {
		t.Errorf("expected one enqueued job, got %+v", outbox.jobs)
	}
}

func TestCreateNote_EmptyTextNoDispatch(t *testing.T) {
	svc, _, _, outbox := newTestService()

	n, err := svc.CreateNote(authedCtx(), 1, "en", "")
	if err != nil {
		t.Fatalf("create note: %v", err)
	}
	if n.AITranslationStatus != i18n.StatusIdle {
		t.Errorf("expected idle for empty note, got %s", n.AITranslationStatus)
	}
	if len(outbox.jobs) != 0 {
		t.Errorf("no job expected for empty text, got %+v", outbox.jobs)
	}
}

func TestCreateNote_TooLong(t *testing.T) {
	svc, _, _, _ := newTestService()

	long := make([]rune, noteMaxLen+1)
	for i := range long {
		long[i] = 'x'
	}
	_, err := svc.CreateNote(authedCtx(), 1, "en", string(long))
	if kindOf(t, err) != apperr.KindValidation {
		t.Fatalf("expected validation error, got %v", err)
	}
}

func TestUpdateNote_NonSourceLocaleDoesNotDispatch(t *testing.T) {
	svc, _, _, outbox := newTestService()

	n, _ := svc.CreateNote(authedCtx(), 1, "en", "Headache")
	outbox.jobs = nil

	updated, err := svc.UpdateNote(authedCtx(), n.ID, n.Version, "ru", "Головная боль")
	if err != nil {
		t.Fatalf("update: %v", err)
	}

	if updated.Note["en"] != "Headache" {
		t.Errorf("source text must be untouched, got %v", updated.Note)
	}
	if len(outbox.jobs) != 0 {
		t.Errorf("non-source edit must not dispatch, got %+v", outbox.jobs)
	}
	if updated.Version != n.Version+1 {
		t.Errorf("version must still advance, got %d", updated.Version)
	}
}

func TestUpdateNote_SourceEditDispatches(t *testing.T) {
	svc, _, _, outbox := newTestService()

	n, _ := svc.CreateNote(authedCtx(), 1, "en", "Headache")
	outbox.jobs = nil

	updated, err := svc.UpdateNote(authedCtx(), n.ID, n.Version, "en", "Severe headache")
	if err != nil {
		t.Fatalf("update: %v", err)
	}

	if updated.Note["en"] != "Severe headache" {
		t.Errorf("source text not replaced: %v", updated.Note)
	}
	if updated.AITranslationStatus != i18n.StatusInProgress {
		t.Errorf("expected in_progress, got %s", updated.AITranslationStatus)
	}
	if len(outbox.jobs) != 1 || outbox.jobs[0].sourceLocale != "en" {
		t.Errorf("expected dispatch with source locale, got %+v", outbox.jobs)
	}
}

func TestUpdateNote_UnchangedTextNoDispatch(t *testing.T) {
	svc, _, _, outbox := newTestService()

	n, _ := svc.CreateNote(authedCtx(), 1, "en", "Headache")
	outbox.jobs = nil

	_, err := svc.UpdateNote(authedCtx(), n.ID, n.Version, "en", "Headache")
	if err != nil {
		t.Fatalf("update: %v", err)
	}
	if len(outbox.jobs) != 0 {
		t.Errorf("identical text must not dispatch, got %+v", outbox.jobs)
	}
}

func TestUpdateNote_StaleVersion(t *testing.T) {
	svc, _, _, _ := newTestService()

	n, _ := svc.CreateNote(authedCtx(), 1, "en", "Headache")
	if _, err := svc.UpdateNote(authedCtx(), n.ID, n.Version, "en", "Migraine"); err != nil {
		t.Fatalf("first update: %v", err)
	}

	_, err := svc.UpdateNote(authedCtx(), n.ID, n.Version, "en", "Cluster headache")
	if kindOf(t, err) != apperr.KindConflict {
		t.Fatalf("expected conflict, got %v", err)
	}
}

func TestDeleteNote(t *testing.T) {
	svc, _, notes, _ := newTestService()

	n, _ := svc.CreateNote(authedCtx(), 1, "en", "Headache")
	if err := svc.DeleteNote(authedCtx(), n.ID); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if _, err := notes.GetByID(context.Background(), n.ID); !errors.Is(err, optlock.ErrNotFound) {
		t.Error("note should be gone")
	}

	err := svc.DeleteNote(authedCtx(), n.ID)
	if kindOf(t, err) != apperr.KindNotFound {
		t.Fatalf("expected notFound, got %v", err)
	}
}
