package company

import (
	"context"
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

type mockCompanyRepo struct {
	companies map[int64]*Company
	nextID    int64
}

func newMockCompanyRepo() *mockCompanyRepo {
	return &mockCompanyRepo{companies: make(map[int64]*Company), nextID: 1}
}

func (m *mockCompanyRepo) Create(ctx context.Context, c *Company) error {
	c.ID = m.nextID
	m.nextID++
	c.Version = 1
	c.CreatedAt = time.Now()
	c.UpdatedAt = c.CreatedAt
	cp := *c
	m.companies[c.ID] = &cp
	return nil
}

func (m *mockCompanyRepo) GetByID(ctx context.Context, id int64) (*Company, error) {
	c, ok := m.companies[id]
	if !ok {
		return nil, optlock.ErrNotFound
	}
	cp := *c
	return &cp, nil
}

func (m *mockCompanyRepo) List(ctx context.Context, nameFilter string, pg pagination.Params) ([]*Company, int, error) {
	var out []*Company
	for _, c := range m.companies {
		out = append(out, c)
	}
	return out, len(out), nil
}

func (m *mockCompanyRepo) Update(ctx context.Context, c *Company, expectedVersion int64) error {
	cur, ok := m.companies[c.ID]
	if !ok {
		return optlock.ErrNotFound
	}
	if cur.Version != expectedVersion {
		return optlock.ErrConflict
	}
	cp := *c
	cp.Version = expectedVersion + 1
	cp.CreatedAt = cur.CreatedAt
	cp.UpdatedAt = time.Now()
	m.companies[c.ID] = &cp
	return nil
}

func (m *mockCompanyRepo) Delete(ctx context.Context, id int64) error {
	if _, ok := m.companies[id]; !ok {
		return optlock.ErrNotFound
	}
	delete(m.companies, id)
	return nil
}

type mockInfoRepo struct {
	row *Info
}

func (m *mockInfoRepo) Get(ctx context.Context) (*Info, error) {
	if m.row == nil {
		return nil, optlock.ErrNotFound
	}
	cp := *m.row
	return &cp, nil
}

func (m *mockInfoRepo) Create(ctx context.Context, info *Info) error {
	info.Version = 1
	info.UpdatedAt = time.Now()
	cp := *info
	m.row = &cp
	return nil
}

func (m *mockInfoRepo) Update(ctx context.Context, info *Info, expectedVersion int64) error {
	if m.row == nil {
		return optlock.ErrNotFound
	}
	if m.row.Version != expectedVersion {
		return optlock.ErrConflict
	}
	cp := *info
	cp.Version = expectedVersion + 1
	cp.UpdatedAt = time.Now()
	m.row = &cp
	return nil
}

type mockCategoryRepo struct {
	cats   map[int64]*ExaminationCategory
	nextID int64
}

func newMockCategoryRepo() *mockCategoryRepo {
	return &mockCategoryRepo{cats: make(map[int64]*ExaminationCategory), nextID: 1}
}

func (m *mockCategoryRepo) List(ctx context.Context) ([]*ExaminationCategory, error) {
	var out []*ExaminationCategory
	for _, c := range m.cats {
		out = append(out, c)
	}
	return out, nil
}

func (m *mockCategoryRepo) GetByID(ctx context.Context, id int64) (*ExaminationCategory, error) {
	c, ok := m.cats[id]
	if !ok {
		return nil, optlock.ErrNotFound
	}
	cp := *c
	cp.Name = c.Name.Clone()
	return &cp, nil
}

func (m *mockCategoryRepo) Create(ctx context.Context, cat *ExaminationCategory) error {
	cat.ID = m.nextID
	m.nextID++
	cp := *cat
	m.cats[cat.ID] = &cp
	return nil
}

func (m *mockCategoryRepo) Update(ctx context.Context, cat *ExaminationCategory) error {
	if _, ok := m.cats[cat.ID]; !ok {
		return optlock.ErrNotFound
	}
	cp := *cat
	m.cats[cat.ID] = &cp
	return nil
}

func (m *mockCategoryRepo) Delete(ctx context.Context, id int64) error {
	if _, ok := m.cats[id]; !ok {
		return optlock.ErrNotFound
	}
	delete(m.cats, id)
	return nil
}

type mockExamTypeRepo struct {
	types  map[int64]*ExaminationType
	nextID int64
}

func newMockExamTypeRepo() *mockExamTypeRepo {
	return &mockExamTypeRepo{types: make(map[int64]*ExaminationType), nextID: 1}
}

func (m *mockExamTypeRepo) Create(ctx context.Context, et *ExaminationType) error {
	et.ID = m.nextID
	m.nextID++
	et.Version = 1
	et.CreatedAt = time.Now()
	et.UpdatedAt = et.CreatedAt
	cp := *et
	cp.Name = et.Name.Clone()
	m.types[et.ID] = &cp
	return nil
}

func (m *mockExamTypeRepo) GetByID(ctx context.Context, id int64) (*ExaminationType, error) {
	et, ok := m.types[id]
	if !ok {
		return nil, optlock.ErrNotFound
	}
	cp := *et
	cp.Name = et.Name.Clone()
	return &cp, nil
}

func (m *mockExamTypeRepo) List(ctx context.Context, activeOnly bool) ([]*ExaminationType, error) {
	var out []*ExaminationType
	for _, et := range m.types {
		if activeOnly && !et.Active {
			continue
		}
		out = append(out, et)
	}
	return out, nil
}

// Update mirrors the SQL statement: the source locale column is never part
// of the update set.
func (m *mockExamTypeRepo) Update(ctx context.Context, et *ExaminationType, expectedVersion int64) error {
	cur, ok := m.types[et.ID]
	if !ok {
		return optlock.ErrNotFound
	}
	if cur.Version != expectedVersion {
		return optlock.ErrConflict
	}
	cp := *et
	cp.Name = et.Name.Clone()
	cp.AISourceLocale = cur.AISourceLocale
	cp.Version = expectedVersion + 1
	cp.CreatedAt = cur.CreatedAt
	cp.CreatedBy = cur.CreatedBy
	cp.UpdatedAt = time.Now()
	m.types[et.ID] = &cp
	return nil
}

func (m *mockExamTypeRepo) Delete(ctx context.Context, id int64) error {
	if _, ok := m.types[id]; !ok {
		return optlock.ErrNotFound
	}
	delete(m.types, id)
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

func newTestService() (*Service, *mockExamTypeRepo, *recordingOutbox) {
	examTypes := newMockExamTypeRepo()
	outbox := &recordingOutbox{}
	svc := NewService(newMockCompanyRepo(), &mockInfoRepo{}, newMockCategoryRepo(), examTypes, outbox, nil)
	return svc, examTypes, outbox
}

func kindOf(t *testing.T, err error) apperr.Kind {
	t.Helper()
	appErr, ok := apperr.As(err)
	if !ok {
		t.Fatalf("expected apperr, got %v", err)
	}
	return appErr.Kind
}

func floatPtr(v float64) *float64 { return &v }

// -- company tests --

func TestCreateCompany_DiscountOutOfRange(t *testing.T) {
	svc, _, _ := newTestService()

	_, err := svc.CreateCompany(authedCtx(), &Company{Name: "Acme", DiscountPercent: floatPtr(150)})
	if kindOf(t, err) != apperr.KindValidation {
		t.Fatalf("expected validation error, got %v", err)
	}
}

func TestCreateCompany_Unauthenticated(t *testing.T) {
	svc, _, _ := newTestService()

	_, err := svc.CreateCompany(context.Background(), &Company{Name: "Acme"})
	if kindOf(t, err) != apperr.KindUnauthenticated {
		t.Fatalf("expected unauthenticated, got %v", err)
	}
}

func TestUpdateCompany_StaleVersion(t *testing.T) {
	svc, _, _ := newTestService()

	created, err := svc.CreateCompany(authedCtx(), &Company{Name: "Acme", DiscountPercent: floatPtr(10)})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	created.Name = "Acme d.o.o."
	updated, err := svc.UpdateCompany(authedCtx(), created, created.Version)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if updated.Version != 2 {
		t.Fatalf("expected version 2, got %d", updated.Version)
	}

	_, err = svc.UpdateCompany(authedCtx(), created, 1)
	if kindOf(t, err) != apperr.KindConflict {
		t.Fatalf("expected conflict, got %v", err)
	}
}

// -- clinic profile tests --

func TestSaveInfo_CreatesThenUpdates(t *testing.T) {
	svc, _, _ := newTestService()

	saved, err := svc.SaveInfo(authedCtx(), &Info{Name: "Poliklinika Vita"}, 0)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if saved.Version != 1 {
		t.Fatalf("expected version 1 on first save, got %d", saved.Version)
	}

	saved.Phone = "+381 11 123 4567"
	saved, err = svc.SaveInfo(authedCtx(), saved, saved.Version)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if saved.Version != 2 {
		t.Fatalf("expected version 2, got %d", saved.Version)
	}
	if saved.Phone != "+381 11 123 4567" {
		t.Fatalf("phone not saved: %q", saved.Phone)
	}

	_, err = svc.SaveInfo(authedCtx(), saved, 1)
	if kindOf(t, err) != apperr.KindConflict {
		t.Fatalf("expected conflict, got %v", err)
	}
}

// -- examination category tests --

func TestUpdateCategory_WritesEditingLocaleOnly(t *testing.T) {
	svc, _, _ := newTestService()

	cat, err := svc.CreateCategory(authedCtx(), CategoryInput{Locale: "sr-Latn", Name: "Laboratorija", SortOrder: 1})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	updated, err := svc.UpdateCategory(authedCtx(), cat.ID, CategoryInput{Locale: "en", Name: "Laboratory", SortOrder: 1})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if updated.Name["sr-Latn"] != "Laboratorija" {
		t.Fatalf("original locale entry lost: %v", updated.Name)
	}
	if updated.Name["en"] != "Laboratory" {
		t.Fatalf("editing locale entry not written: %v", updated.Name)
	}
}

func TestCreateCategory_UnsupportedLocale(t *testing.T) {
	svc, _, _ := newTestService()

	_, err := svc.CreateCategory(authedCtx(), CategoryInput{Locale: "de", Name: "Labor"})
	if kindOf(t, err) != apperr.KindValidation {
		t.Fatalf("expected validation error, got %v", err)
	}
}

// -- examination type tests --

func TestCreateExamType_DispatchesTranslation(t *testing.T) {
	svc, _, outbox := newTestService()

	et, err := svc.CreateExamType(authedCtx(), ExamTypeInput{
		Locale: "sr-Latn", Name: "Opšti pregled", DurationMinutes: 30, Active: true,
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if et.AISourceLocale != "sr-Latn" {
		t.Fatalf("expected source locale sr-Latn, got %q", et.AISourceLocale)
	}
	if et.AITranslationStatus != i18n.StatusInProgress {
		t.Fatalf("expected in_progress, got %q", et.AITranslationStatus)
	}
	if len(outbox.jobs) != 1 {
		t.Fatalf("expected 1 job, got %d", len(outbox.jobs))
	}
	job := outbox.jobs[0]
	if job.table != "examination_types" || job.recordID != et.ID || job.sourceLocale != "sr-Latn" {
		t.Fatalf("unexpected job: %+v", job)
	}
	if len(job.fields) != 1 || job.fields[0] != "name" {
		t.Fatalf("unexpected fields: %v", job.fields)
	}
}

func TestCreateExamType_NegativeDuration(t *testing.T) {
	svc, _, _ := newTestService()

	_, err := svc.CreateExamType(authedCtx(), ExamTypeInput{Locale: "en", Name: "Checkup", DurationMinutes: -5})
	if kindOf(t, err) != apperr.KindValidation {
		t.Fatalf("expected validation error, got %v", err)
	}
}

func TestUpdateExamType_NonSourceEditDoesNotDispatch(t *testing.T) {
	svc, _, outbox := newTestService()

	et, err := svc.CreateExamType(authedCtx(), ExamTypeInput{
		Locale: "sr-Latn", Name: "Opšti pregled", DurationMinutes: 30, Active: true,
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	outbox.jobs = nil

	updated, err := svc.UpdateExamType(authedCtx(), et.ID, et.Version, ExamTypeInput{
		Locale: "en", Name: "General checkup", DurationMinutes: 30, Active: true,
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if updated.Name["sr-Latn"] != "Opšti pregled" {
		t.Fatalf("source entry mutated: %v", updated.Name)
	}
	if updated.Name["en"] == "General checkup" {
		t.Fatalf("non-source edit must not write text: %v", updated.Name)
	}
	if updated.Version != 2 {
		t.Fatalf("expected version 2, got %d", updated.Version)
	}
	if len(outbox.jobs) != 0 {
		t.Fatalf("expected no jobs, got %d", len(outbox.jobs))
	}
}

func TestUpdateExamType_SourceEditDispatches(t *testing.T) {
	svc, _, outbox := newTestService()

	et, err := svc.CreateExamType(authedCtx(), ExamTypeInput{
		Locale: "sr-Latn", Name: "Opšti pregled", DurationMinutes: 30, Active: true,
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	outbox.jobs = nil

	updated, err := svc.UpdateExamType(authedCtx(), et.ID, et.Version, ExamTypeInput{
		Locale: "sr-Latn", Name: "Sistematski pregled", DurationMinutes: 45, Active: true,
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if updated.Name["sr-Latn"] != "Sistematski pregled" {
		t.Fatalf("source edit not applied: %v", updated.Name)
	}
	if updated.AITranslationStatus != i18n.StatusInProgress {
		t.Fatalf("expected in_progress, got %q", updated.AITranslationStatus)
	}
	if len(outbox.jobs) != 1 {
		t.Fatalf("expected 1 job, got %d", len(outbox.jobs))
	}
}

func TestUpdateExamType_UnchangedTextDoesNotDispatch(t *testing.T) {
	svc, _, outbox := newTestService()

	et, err := svc.CreateExamType(authedCtx(), ExamTypeInput{
		Locale: "sr-Latn", Name: "Opšti pregled", DurationMinutes: 30, Active: true,
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	outbox.jobs = nil

	updated, err := svc.UpdateExamType(authedCtx(), et.ID, et.Version, ExamTypeInput{
		Locale: "sr-Latn", Name: "Opšti pregled", DurationMinutes: 60, Active: false,
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if updated.DurationMinutes != 60 || updated.Active {
		t.Fatalf("metadata update not applied: %+v", updated)
	}
	if len(outbox.jobs) != 0 {
		t.Fatalf("expected no jobs on unchanged text, got %d", len(outbox.jobs))
	}
}

func TestUpdateExamType_StaleVersion(t *testing.T) {
	svc, _, _ := newTestService()

	et, err := svc.CreateExamType(authedCtx(), ExamTypeInput{
		Locale: "sr-Latn", Name: "Opšti pregled", DurationMinutes: 30, Active: true,
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	_, err = svc.UpdateExamType(authedCtx(), et.ID, et.Version+1, ExamTypeInput{
		Locale: "sr-Latn", Name: "Novi naziv", DurationMinutes: 30, Active: true,
	})
	if kindOf(t, err) != apperr.KindConflict {
		t.Fatalf("expected conflict, got %v", err)
	}
}

func TestDeleteExamType_NotFound(t *testing.T) {
	svc, _, _ := newTestService()

	err := svc.DeleteExamType(authedCtx(), 42)
	if kindOf(t, err) != apperr.KindNotFound {
		t.Fatalf("expected notFound, got %v", err)
	}
}
