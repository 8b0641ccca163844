package medhistory

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/clinicore/clinicore/internal/platform/db"
	"github.com/clinicore/clinicore/internal/platform/optlock"
	"github.com/clinicore/clinicore/pkg/pagination"
)

type queryable interface {
	Query(ctx context.Context, sql string, args ...interface{}) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...interface{}) pgx.Row
	Exec(ctx context.Context, sql string, args ...interface{}) (pgconn.CommandTag, error)
}

// loadDiagnoses fetches linked diagnoses for a batch of records keyed by
// the join table's foreign key. joinTable and fkCol are compile-time
// constants at every call site, never user input.
func loadDiagnoses(ctx context.Context, q queryable, joinTable, fkCol string, recordIDs []int64) (map[int64][]Diagnosis, error) {
	if len(recordIDs) == 0 {
		return map[int64][]Diagnosis{}, nil
	}
	rows, err := q.Query(ctx, fmt.Sprintf(`
		SELECT jt.%s, d.id, d.code, d.description
		FROM %s jt
		JOIN mkb10_codes d ON d.id = jt.diagnosis_id
		WHERE jt.%s = ANY($1)
		ORDER BY d.code`, fkCol, joinTable, fkCol), recordIDs)
	if err != nil {
		return nil, fmt.Errorf("load diagnoses: %w", err)
	}
	defer rows.Close()

	out := make(map[int64][]Diagnosis)
	for rows.Next() {
		var recordID int64
		var d Diagnosis
		if err := rows.Scan(&recordID, &d.ID, &d.Code, &d.Description); err != nil {
			return nil, err
		}
		out[recordID] = append(out[recordID], d)
	}
	return out, rows.Err()
}

// replaceDiagnoses swaps the full linked set in two statements.
func replaceDiagnoses(ctx context.Context, q queryable, joinTable, fkCol string, recordID int64, diagnosisIDs []int64) error {
	if _, err := q.Exec(ctx,
		fmt.Sprintf(`DELETE FROM %s WHERE %s = $1`, joinTable, fkCol), recordID); err != nil {
		return fmt.Errorf("clear diagnoses: %w", err)
	}
	if len(diagnosisIDs) == 0 {
		return nil
	}
	_, err := q.Exec(ctx, fmt.Sprintf(`
		INSERT INTO %s (%s, diagnosis_id)
		SELECT $1, unnest($2::bigint[])`, joinTable, fkCol), recordID, diagnosisIDs)
	if err != nil {
		return fmt.Errorf("link diagnoses: %w", err)
	}
	return nil
}

// =========== Event Repository ===========

type eventRepoPG struct{ pool *pgxpool.Pool }

func NewEventRepoPG(pool *pgxpool.Pool) EventRepository { return &eventRepoPG{pool: pool} }

func (r *eventRepoPG) conn(ctx context.Context) queryable {
	if tx := db.TxFromContext(ctx); tx != nil {
		return tx
	}
	return r.pool
}

const eventCols = `id, patient_id, event_date, title, notes, ai_source_locale, ai_translation_status,
	version, created_at, updated_at, created_by, updated_by`

func scanEvent(row pgx.Row) (*Event, error) {
	var e Event
	err := row.Scan(&e.ID, &e.PatientID, &e.EventDate, &e.Title, &e.Notes, &e.AISourceLocale,
		&e.AITranslationStatus, &e.Version, &e.CreatedAt, &e.UpdatedAt, &e.CreatedBy, &e.UpdatedBy)
	return &e, err
}

func (r *eventRepoPG) Create(ctx context.Context, e *Event) error {
	row := r.conn(ctx).QueryRow(ctx, `
		INSERT INTO medical_history_events (patient_id, event_date, title, notes,
			ai_source_locale, ai_translation_status, version, created_at, updated_at, created_by, updated_by)
		VALUES ($1, $2, $3, $4, $5, $6, 1, NOW(), NOW(), $7, $7)
		RETURNING id, version, created_at, updated_at`,
		e.PatientID, e.EventDate, e.Title, e.Notes,
		e.AISourceLocale, e.AITranslationStatus, e.CreatedBy)
	return row.Scan(&e.ID, &e.Version, &e.CreatedAt, &e.UpdatedAt)
}

func (r *eventRepoPG) GetByID(ctx context.Context, id int64) (*Event, error) {
	q := r.conn(ctx)
	e, err := scanEvent(q.QueryRow(ctx,
		`SELECT `+eventCols+` FROM medical_history_events WHERE id = $1`, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, optlock.ErrNotFound
	}
	if err != nil {
		return nil, err
	}

	diags, err := loadDiagnoses(ctx, q, "medical_history_event_diagnoses", "event_id", []int64{id})
	if err != nil {
		return nil, err
	}
	e.Diagnoses = diags[id]
	if e.Diagnoses == nil {
		e.Diagnoses = []Diagnosis{}
	}

	docs, err := listDocumentsByEvent(ctx, q, id)
	if err != nil {
		return nil, err
	}
	e.Documents = docs
	return e, nil
}

func (r *eventRepoPG) ListByPatient(ctx context.Context, patientID int64, pg pagination.Params) ([]*Event, int, error) {
	q := r.conn(ctx)

	var total int
	if err := q.QueryRow(ctx,
		`SELECT COUNT(*) FROM medical_history_events WHERE patient_id = $1`, patientID).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("count events: %w", err)
	}

	rows, err := q.Query(ctx,
		`SELECT `+eventCols+` FROM medical_history_events
		 WHERE patient_id = $1 ORDER BY event_date DESC NULLS LAST, id DESC LIMIT $2 OFFSET $3`,
		patientID, pg.Limit, pg.Offset)
	if err != nil {
		return nil, 0, fmt.Errorf("list events: %w", err)
	}
	defer rows.Close()

	var out []*Event
	var ids []int64
	for rows.Next() {
		e, err := scanEvent(rows)
		if err != nil {
			return nil, 0, err
		}
		out = append(out, e)
		ids = append(ids, e.ID)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, err
	}

	diags, err := loadDiagnoses(ctx, q, "medical_history_event_diagnoses", "event_id", ids)
	if err != nil {
		return nil, 0, err
	}
	for _, e := range out {
		e.Diagnoses = diags[e.ID]
		if e.Diagnoses == nil {
			e.Diagnoses = []Diagnosis{}
		}
	}
	return out, total, nil
}

func (r *eventRepoPG) Update(ctx context.Context, e *Event, expectedVersion int64) error {
	return optlock.Apply(ctx, r.conn(ctx), "medical_history_events", "id", e.ID, `
		UPDATE medical_history_events
		SET event_date = $1, title = $2, notes = $3, ai_translation_status = $4,
			version = $5 + 1, updated_at = NOW(), updated_by = $6
		WHERE id = $7 AND version = $5`,
		e.EventDate, e.Title, e.Notes, e.AITranslationStatus,
		expectedVersion, e.UpdatedBy, e.ID)
}

func (r *eventRepoPG) Delete(ctx context.Context, id int64) error {
	tag, err := r.conn(ctx).Exec(ctx, `DELETE FROM medical_history_events WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete event: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return optlock.ErrNotFound
	}
	return nil
}

func (r *eventRepoPG) SetDiagnoses(ctx context.Context, eventID int64, diagnosisIDs []int64) error {
	return replaceDiagnoses(ctx, r.conn(ctx), "medical_history_event_diagnoses", "event_id", eventID, diagnosisIDs)
}

func (r *eventRepoPG) Touch(ctx context.Context, id int64, updatedBy string) error {
	_, err := r.conn(ctx).Exec(ctx,
		`UPDATE medical_history_events SET updated_at = NOW(), updated_by = $1 WHERE id = $2`,
		updatedBy, id)
	return err
}

// =========== Document Repository ===========

type documentRepoPG struct{ pool *pgxpool.Pool }

func NewDocumentRepoPG(pool *pgxpool.Pool) DocumentRepository { return &documentRepoPG{pool: pool} }

func (r *documentRepoPG) conn(ctx context.Context) queryable {
	if tx := db.TxFromContext(ctx); tx != nil {
		return tx
	}
	return r.pool
}

const documentCols = `id, event_id, medical_document_type_id, document_date, notes,
	ai_source_locale, ai_translation_status, file_path, file_name, file_size, file_content_type,
	version, created_at, updated_at, created_by, updated_by`

func scanDocument(row pgx.Row) (*Document, error) {
	var d Document
	err := row.Scan(&d.ID, &d.EventID, &d.MedicalDocumentTypeID, &d.DocumentDate, &d.Notes,
		&d.AISourceLocale, &d.AITranslationStatus,
		&d.File.Path, &d.File.Name, &d.File.Size, &d.File.ContentType,
		&d.Version, &d.CreatedAt, &d.UpdatedAt, &d.CreatedBy, &d.UpdatedBy)
	return &d, err
}

func listDocumentsByEvent(ctx context.Context, q queryable, eventID int64) ([]*Document, error) {
	rows, err := q.Query(ctx,
		`SELECT `+documentCols+` FROM medical_history_documents
		 WHERE event_id = $1 ORDER BY document_date DESC NULLS LAST, id DESC`, eventID)
	if err != nil {
		return nil, fmt.Errorf("list documents: %w", err)
	}
	defer rows.Close()

	out := []*Document{}
	var ids []int64
	for rows.Next() {
		d, err := scanDocument(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, d)
		ids = append(ids, d.ID)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	diags, err := loadDiagnoses(ctx, q, "medical_history_document_diagnoses", "document_id", ids)
	if err != nil {
		return nil, err
	}
	for _, d := range out {
		d.Diagnoses = diags[d.ID]
		if d.Diagnoses == nil {
			d.Diagnoses = []Diagnosis{}
		}
	}
	return out, nil
}

func (r *documentRepoPG) Create(ctx context.Context, d *Document) error {
	row := r.conn(ctx).QueryRow(ctx, `
		INSERT INTO medical_history_documents (event_id, medical_document_type_id, document_date,
			notes, ai_source_locale, ai_translation_status,
			file_path, file_name, file_size, file_content_type,
			version, created_at, updated_at, created_by, updated_by)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, 1, NOW(), NOW(), $11, $11)
		RETURNING id, version, created_at, updated_at`,
		d.EventID, d.MedicalDocumentTypeID, d.DocumentDate,
		d.Notes, d.AISourceLocale, d.AITranslationStatus,
		d.File.Path, d.File.Name, d.File.Size, d.File.ContentType,
		d.CreatedBy)
	return row.Scan(&d.ID, &d.Version, &d.CreatedAt, &d.UpdatedAt)
}

func (r *documentRepoPG) GetByID(ctx context.Context, id int64) (*Document, error) {
	q := r.conn(ctx)
	d, err := scanDocument(q.QueryRow(ctx,
		`SELECT `+documentCols+` FROM medical_history_documents WHERE id = $1`, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, optlock.ErrNotFound
	}
	if err != nil {
		return nil, err
	}

	diags, err := loadDiagnoses(ctx, q, "medical_history_document_diagnoses", "document_id", []int64{id})
	if err != nil {
		return nil, err
	}
	d.Diagnoses = diags[id]
	if d.Diagnoses == nil {
		d.Diagnoses = []Diagnosis{}
	}
	return d, nil
}

func (r *documentRepoPG) ListByEvent(ctx context.Context, eventID int64) ([]*Document, error) {
	return listDocumentsByEvent(ctx, r.conn(ctx), eventID)
}

func (r *documentRepoPG) Update(ctx context.Context, d *Document, expectedVersion int64) error {
	return optlock.Apply(ctx, r.conn(ctx), "medical_history_documents", "id", d.ID, `
		UPDATE medical_history_documents
		SET medical_document_type_id = $1, document_date = $2, notes = $3, ai_translation_status = $4,
			file_path = $5, file_name = $6, file_size = $7, file_content_type = $8,
			version = $9 + 1, updated_at = NOW(), updated_by = $10
		WHERE id = $11 AND version = $9`,
		d.MedicalDocumentTypeID, d.DocumentDate, d.Notes, d.AITranslationStatus,
		d.File.Path, d.File.Name, d.File.Size, d.File.ContentType,
		expectedVersion, d.UpdatedBy, d.ID)
}

func (r *documentRepoPG) Delete(ctx context.Context, id int64) error {
	tag, err := r.conn(ctx).Exec(ctx, `DELETE FROM medical_history_documents WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete document: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return optlock.ErrNotFound
	}
	return nil
}

func (r *documentRepoPG) SetDiagnoses(ctx context.Context, documentID int64, diagnosisIDs []int64) error {
	return replaceDiagnoses(ctx, r.conn(ctx), "medical_history_document_diagnoses", "document_id", documentID, diagnosisIDs)
}

// =========== Diagnosis Repository ===========

type diagnosisRepoPG struct{ pool *pgxpool.Pool }

func NewDiagnosisRepoPG(pool *pgxpool.Pool) DiagnosisRepository { return &diagnosisRepoPG{pool: pool} }

func (r *diagnosisRepoPG) conn(ctx context.Context) queryable {
	if tx := db.TxFromContext(ctx); tx != nil {
		return tx
	}
	return r.pool
}

func (r *diagnosisRepoPG) GetByIDs(ctx context.Context, ids []int64) ([]Diagnosis, error) {
	if len(ids) == 0 {
		return []Diagnosis{}, nil
	}
	rows, err := r.conn(ctx).Query(ctx,
		`SELECT id, code, description FROM mkb10_codes WHERE id = ANY($1) ORDER BY code`, ids)
	if err != nil {
		return nil, fmt.Errorf("get diagnoses: %w", err)
	}
	defer rows.Close()

	var out []Diagnosis
	for rows.Next() {
		var d Diagnosis
		if err := rows.Scan(&d.ID, &d.Code, &d.Description); err != nil {
			return nil, err
		}
		out = append(out, d)
	}
	return out, rows.Err()
}

func (r *diagnosisRepoPG) Search(ctx context.Context, term, locale string, limit int) ([]Diagnosis, error) {
	rows, err := r.conn(ctx).Query(ctx, `
		SELECT id, code, description FROM mkb10_codes
		WHERE code ILIKE $1 || '%' OR description->>$2 ILIKE '%' || $1 || '%'
		ORDER BY code LIMIT $3`, term, locale, limit)
	if err != nil {
		return nil, fmt.Errorf("search diagnoses: %w", err)
	}
	defer rows.Close()

	var out []Diagnosis
	for rows.Next() {
		var d Diagnosis
		if err := rows.Scan(&d.ID, &d.Code, &d.Description); err != nil {
			return nil, err
		}
		out = append(out, d)
	}
	return out, rows.Err()
}
