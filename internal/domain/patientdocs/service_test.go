package patientdocs

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/clinicore/clinicore/internal/platform/apperr"
	"github.com/clinicore/clinicore/internal/platform/auth"
	"github.com/clinicore/clinicore/internal/platform/blobstore"
	"github.com/clinicore/clinicore/internal/platform/optlock"
)

// -- map-backed mocks --

type mockDocRepo struct {
	docs   map[int64]*IDDocument
	nextID int64
}

func newMockDocRepo() *mockDocRepo {
	return &mockDocRepo{docs: make(map[int64]*IDDocument), nextID: 1}
}

func (m *mockDocRepo) Create(ctx context.Context, d *IDDocument) error {
	d.ID = m.nextID
	m.nextID++
	d.Version = 1
	cp := *d
	m.docs[d.ID] = &cp
	return nil
}

func (m *mockDocRepo) GetByID(ctx context.Context, id int64) (*IDDocument, error) {
	d, ok := m.docs[id]
	if !ok {
		return nil, optlock.ErrNotFound
	}
	cp := *d
	return &cp, nil
}

func (m *mockDocRepo) ListByPatient(ctx context.Context, patientID int64) ([]*IDDocument, error) {
	var out []*IDDocument
	for _, d := range m.docs {
		if d.PatientID == patientID {
			out = append(out, d)
		}
	}
	return out, nil
}

func (m *mockDocRepo) Update(ctx context.Context, d *IDDocument, expectedVersion int64) error {
	cur, ok := m.docs[d.ID]
	if !ok {
		return optlock.ErrNotFound
	}
	if cur.Version != expectedVersion {
		return optlock.ErrConflict
	}
	cp := *d
	cp.Version = expectedVersion + 1
	cp.CreatedAt = cur.CreatedAt
	m.docs[d.ID] = &cp
	return nil
}

func (m *mockDocRepo) Delete(ctx context.Context, id int64) error {
	if _, ok := m.docs[id]; !ok {
		return optlock.ErrNotFound
	}
	delete(m.docs, id)
	return nil
}

func (m *mockDocRepo) CountDuplicates(ctx context.Context, patientID, documentTypeID int64, documentNumber string, excludeID int64) (int, error) {
	count := 0
	for _, d := range m.docs {
		if d.PatientID != patientID || d.ID == excludeID {
			continue
		}
		if d.DocumentTypeID == documentTypeID || d.DocumentNumber == documentNumber {
			count++
		}
	}
	return count, nil
}

type mockInsRepo struct {
	records map[int64]*Insurance
	nextID  int64
}

func newMockInsRepo() *mockInsRepo {
	return &mockInsRepo{records: make(map[int64]*Insurance), nextID: 1}
}

func (m *mockInsRepo) Create(ctx context.Context, ins *Insurance) error {
	ins.ID = m.nextID
	m.nextID++
	ins.Version = 1
	cp := *ins
	m.records[ins.ID] = &cp
	return nil
}

func (m *mockInsRepo) GetByID(ctx context.Context, id int64) (*Insurance, error) {
	ins, ok := m.records[id]
	if !ok {
		return nil, optlock.ErrNotFound
	}
	cp := *ins
	return &cp, nil
}

func (m *mockInsRepo) ListByPatient(ctx context.Context, patientID int64) ([]*Insurance, error) {
	var out []*Insurance
	for _, ins := range m.records {
		if ins.PatientID == patientID {
			out = append(out, ins)
		}
	}
	return out, nil
}

func (m *mockInsRepo) Update(ctx context.Context, ins *Insurance, expectedVersion int64) error {
	cur, ok := m.records[ins.ID]
	if !ok {
		return optlock.ErrNotFound
	}
	if cur.Version != expectedVersion {
		return optlock.ErrConflict
	}
	cp := *ins
	cp.Version = expectedVersion + 1
	m.records[ins.ID] = &cp
	return nil
}

func (m *mockInsRepo) Delete(ctx context.Context, id int64) error {
	if _, ok := m.records[id]; !ok {
		return optlock.ErrNotFound
	}
	delete(m.records, id)
	return nil
}

// trackingStore records deletions and can be made to fail them.
type trackingStore struct {
	*blobstore.InMemoryStore
	deleted    []string
	failDelete bool
}

func (s *trackingStore) Delete(ctx context.Context, filePath string) error {
	s.deleted = append(s.deleted, filePath)
	if s.failDelete {
		return errors.New("store unavailable")
	}
	return s.InMemoryStore.Delete(ctx, filePath)
}

// -- helpers --

func authedCtx() context.Context {
	ctx := context.WithValue(context.Background(), auth.UserIDKey, "user-1")
	return context.WithValue(ctx, auth.UserRolesKey, []string{"staff"})
}

func newTestService() (*Service, *mockDocRepo, *trackingStore) {
	docs := newMockDocRepo()
	store := &trackingStore{InMemoryStore: blobstore.NewInMemoryStore()}
	svc := NewService(docs, newMockInsRepo(), store, zerolog.Nop())
	return svc, docs, store
}

func storedFile(t *testing.T, store blobstore.FileStore, path string) *blobstore.FileInfo {
	t.Helper()
	info, err := store.Save(context.Background(), path, []byte("scan bytes"), "application/pdf")
	if err != nil {
		t.Fatalf("seed file: %v", err)
	}
	return info
}

func kindOf(t *testing.T, err error) apperr.Kind {
	t.Helper()
	appErr, ok := apperr.As(err)
	if !ok {
		t.Fatalf("expected apperr, got %v", err)
	}
	return appErr.Kind
}

// -- identity document tests --

func TestCreateIDDocument_DuplicateTypeConflict(t *testing.T) {
	svc, _, _ := newTestService()

	_, err := svc.CreateIDDocument(authedCtx(), &IDDocument{PatientID: 1, DocumentTypeID: 2, DocumentNumber: "A-100"}, nil)
	if err != nil {
		t.Fatalf("first create: %v", err)
	}

	// Same type, different number.
	_, err = svc.CreateIDDocument(authedCtx(), &IDDocument{PatientID: 1, DocumentTypeID: 2, DocumentNumber: "B-200"}, nil)
	if kindOf(t, err) != apperr.KindConflict {
		t.Fatalf("expected conflict for duplicate type, got %v", err)
	}

	// Different type, same number.
	_, err = svc.CreateIDDocument(authedCtx(), &IDDocument{PatientID: 1, DocumentTypeID: 3, DocumentNumber: "A-100"}, nil)
	if kindOf(t, err) != apperr.KindConflict {
		t.Fatalf("expected conflict for duplicate number, got %v", err)
	}

	// Other patient is unaffected.
	if _, err := svc.CreateIDDocument(authedCtx(), &IDDocument{PatientID: 2, DocumentTypeID: 2, DocumentNumber: "A-100"}, nil); err != nil {
		t.Fatalf("other patient should pass: %v", err)
	}
}

func TestUpdateIDDocument_ExcludesSelfFromDuplicateCheck(t *testing.T) {
	svc, _, _ := newTestService()

	created, err := svc.CreateIDDocument(authedCtx(), &IDDocument{PatientID: 1, DocumentTypeID: 2, DocumentNumber: "A-100"}, nil)
	if err != nil {
		t.Fatalf("create: %v", err)
	}

	// Re-saving the same type and number must not conflict with itself.
	created.DocumentNumber = "A-100"
	updated, err := svc.UpdateIDDocument(authedCtx(), created, created.Version, blobstore.Change{})
	if err != nil {
		t.Fatalf("update: %v", err)
	}
	if updated.Version != 2 {
		t.Errorf("expected version 2, got %d", updated.Version)
	}
}

func TestUpdateIDDocument_NewFileDeletesOldAfterWrite(t *testing.T) {
	svc, _, store := newTestService()

	oldFile := storedFile(t, store, "patients/1/old-scan.pdf")
	created, err := svc.CreateIDDocument(authedCtx(), &IDDocument{PatientID: 1, DocumentTypeID: 2, DocumentNumber: "A-100"}, oldFile)
	if err != nil {
		t.Fatalf("create: %v", err)
	}

	newFile := storedFile(t, store, "patients/1/new-scan.pdf")
	updated, err := svc.UpdateIDDocument(authedCtx(), created, created.Version, blobstore.Change{New: newFile})
	if err != nil {
		t.Fatalf("update: %v", err)
	}

	if updated.File.StoredPath() != "patients/1/new-scan.pdf" {
		t.Errorf("record must point at new file, got %q", updated.File.StoredPath())
	}
	if len(store.deleted) != 1 || store.deleted[0] != "patients/1/old-scan.pdf" {
		t.Errorf("old file should be removed exactly once, got %v", store.deleted)
	}
}

func TestUpdateIDDocument_StaleVersionKeepsOldFile(t *testing.T) {
	svc, _, store := newTestService()

	oldFile := storedFile(t, store, "patients/1/old-scan.pdf")
	created, _ := svc.CreateIDDocument(authedCtx(), &IDDocument{PatientID: 1, DocumentTypeID: 2, DocumentNumber: "A-100"}, oldFile)

	if _, err := svc.UpdateIDDocument(authedCtx(), created, created.Version, blobstore.Change{}); err != nil {
		t.Fatalf("first update: %v", err)
	}

	newFile := storedFile(t, store, "patients/1/new-scan.pdf")
	_, err := svc.UpdateIDDocument(authedCtx(), created, created.Version, blobstore.Change{New: newFile})
	if kindOf(t, err) != apperr.KindConflict {
		t.Fatalf("expected conflict, got %v", err)
	}
	if len(store.deleted) != 0 {
		t.Errorf("failed write must not delete any file, got %v", store.deleted)
	}
}

func TestUpdateIDDocument_RemoveFileClearsColumns(t *testing.T) {
	svc, _, store := newTestService()

	file := storedFile(t, store, "patients/1/scan.pdf")
	created, _ := svc.CreateIDDocument(authedCtx(), &IDDocument{PatientID: 1, DocumentTypeID: 2, DocumentNumber: "A-100"}, file)

	updated, err := svc.UpdateIDDocument(authedCtx(), created, created.Version, blobstore.Change{Remove: true})
	if err != nil {
		t.Fatalf("update: %v", err)
	}
	if updated.File.HasFile() {
		t.Errorf("attachment should be cleared, got %+v", updated.File)
	}
	if len(store.deleted) != 1 || store.deleted[0] != "patients/1/scan.pdf" {
		t.Errorf("file should be removed from store, got %v", store.deleted)
	}
}

func TestUpdateIDDocument_NoChangeKeepsFile(t *testing.T) {
	svc, _, store := newTestService()

	file := storedFile(t, store, "patients/1/scan.pdf")
	created, _ := svc.CreateIDDocument(authedCtx(), &IDDocument{PatientID: 1, DocumentTypeID: 2, DocumentNumber: "A-100"}, file)

	created.DocumentNumber = "A-101"
	updated, err := svc.UpdateIDDocument(authedCtx(), created, created.Version, blobstore.Change{})
	if err != nil {
		t.Fatalf("update: %v", err)
	}
	if updated.File.StoredPath() != "patients/1/scan.pdf" {
		t.Errorf("attachment must survive a metadata-only update, got %q", updated.File.StoredPath())
	}
	if len(store.deleted) != 0 {
		t.Errorf("nothing should be deleted, got %v", store.deleted)
	}
}

func TestDeleteIDDocument_SurvivesFileDeleteFailure(t *testing.T) {
	svc, docs, store := newTestService()

	file := storedFile(t, store, "patients/1/scan.pdf")
	created, _ := svc.CreateIDDocument(authedCtx(), &IDDocument{PatientID: 1, DocumentTypeID: 2, DocumentNumber: "A-100"}, file)

	store.failDelete = true
	if err := svc.DeleteIDDocument(authedCtx(), created.ID); err != nil {
		t.Fatalf("record delete must survive a store failure, got %v", err)
	}
	if _, err := docs.GetByID(context.Background(), created.ID); !errors.Is(err, optlock.ErrNotFound) {
		t.Error("row should be gone despite the failed file delete")
	}
}

func TestCreateIDDocument_Validation(t *testing.T) {
	svc, _, _ := newTestService()

	_, err := svc.CreateIDDocument(authedCtx(), &IDDocument{PatientID: 1}, nil)
	if kindOf(t, err) != apperr.KindValidation {
		t.Fatalf("expected validation error, got %v", err)
	}

	issue := time.Date(2024, 5, 1, 0, 0, 0, 0, time.UTC)
	expiry := issue.AddDate(-1, 0, 0)
	_, err = svc.CreateIDDocument(authedCtx(), &IDDocument{
		PatientID: 1, DocumentTypeID: 2, DocumentNumber: "A-100",
		IssueDate: &issue, ExpiryDate: &expiry,
	}, nil)
	if kindOf(t, err) != apperr.KindValidation {
		t.Fatalf("expected validation error for expiry before issue, got %v", err)
	}
}

func TestCreateIDDocument_Unauthenticated(t *testing.T) {
	svc, _, _ := newTestService()

	_, err := svc.CreateIDDocument(context.Background(), &IDDocument{PatientID: 1, DocumentTypeID: 2, DocumentNumber: "A-100"}, nil)
	if kindOf(t, err) != apperr.KindUnauthenticated {
		t.Fatalf("expected unauthenticated, got %v", err)
	}
}

// -- insurance tests --

func TestInsurance_DateOrderValidation(t *testing.T) {
	svc, _, _ := newTestService()

	effective := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	expiry := effective.AddDate(0, -6, 0)
	_, err := svc.CreateInsurance(authedCtx(), &Insurance{
		PatientID: 1, InsurancePlanID: 3, PolicyNumber: "POL-1",
		EffectiveDate: &effective, ExpiryDate: &expiry,
	}, nil)
	if kindOf(t, err) != apperr.KindValidation {
		t.Fatalf("expected validation error, got %v", err)
	}
}

func TestInsurance_FileReplacement(t *testing.T) {
	svc, _, store := newTestService()

	oldFile := storedFile(t, store, "patients/1/policy-old.pdf")
	created, err := svc.CreateInsurance(authedCtx(), &Insurance{
		PatientID: 1, InsurancePlanID: 3, PolicyNumber: "POL-1",
	}, oldFile)
	if err != nil {
		t.Fatalf("create: %v", err)
	}

	newFile := storedFile(t, store, "patients/1/policy-new.pdf")
	updated, err := svc.UpdateInsurance(authedCtx(), created, created.Version, blobstore.Change{New: newFile})
	if err != nil {
		t.Fatalf("update: %v", err)
	}
	if updated.File.StoredPath() != "patients/1/policy-new.pdf" {
		t.Errorf("record must point at new policy file, got %q", updated.File.StoredPath())
	}
	if len(store.deleted) != 1 || store.deleted[0] != "patients/1/policy-old.pdf" {
		t.Errorf("old policy file should be removed, got %v", store.deleted)
	}
	if updated.Version != created.Version+1 {
		t.Errorf("expected version bump, got %d", updated.Version)
	}
}

func TestInsurance_StaleVersion(t *testing.T) {
	svc, _, _ := newTestService()

	created, _ := svc.CreateInsurance(authedCtx(), &Insurance{PatientID: 1, InsurancePlanID: 3, PolicyNumber: "POL-1"}, nil)
	if _, err := svc.UpdateInsurance(authedCtx(), created, created.Version, blobstore.Change{}); err != nil {
		t.Fatalf("first update: %v", err)
	}

	_, err := svc.UpdateInsurance(authedCtx(), created, created.Version, blobstore.Change{})
	if kindOf(t, err) != apperr.KindConflict {
		t.Fatalf("expected conflict, got %v", err)
	}
}
