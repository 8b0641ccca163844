package patientdocs

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/clinicore/clinicore/internal/platform/db"
	"github.com/clinicore/clinicore/internal/platform/optlock"
)

type queryable interface {
	Query(ctx context.Context, sql string, args ...interface{}) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...interface{}) pgx.Row
	Exec(ctx context.Context, sql string, args ...interface{}) (pgconn.CommandTag, error)
}

// =========== IDDocument Repository ===========

type idDocumentRepoPG struct{ pool *pgxpool.Pool }

func NewIDDocumentRepoPG(pool *pgxpool.Pool) IDDocumentRepository {
	return &idDocumentRepoPG{pool: pool}
}

func (r *idDocumentRepoPG) conn(ctx context.Context) queryable {
	if tx := db.TxFromContext(ctx); tx != nil {
		return tx
	}
	return r.pool
}

const idDocumentCols = `id, patient_id, document_type_id, document_number, issue_date, expiry_date,
	file_path, file_name, file_size, file_content_type,
	version, created_at, updated_at, created_by, updated_by`

func scanIDDocument(row pgx.Row) (*IDDocument, error) {
	var d IDDocument
	err := row.Scan(&d.ID, &d.PatientID, &d.DocumentTypeID, &d.DocumentNumber, &d.IssueDate, &d.ExpiryDate,
		&d.File.Path, &d.File.Name, &d.File.Size, &d.File.ContentType,
		&d.Version, &d.CreatedAt, &d.UpdatedAt, &d.CreatedBy, &d.UpdatedBy)
	return &d, err
}

func (r *idDocumentRepoPG) Create(ctx context.Context, d *IDDocument) error {
	row := r.conn(ctx).QueryRow(ctx, `
		INSERT INTO patient_id_documents (patient_id, document_type_id, document_number,
			issue_date, expiry_date, file_path, file_name, file_size, file_content_type,
			version, created_at, updated_at, created_by, updated_by)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, 1, NOW(), NOW(), $10, $10)
		RETURNING id, version, created_at, updated_at`,
		d.PatientID, d.DocumentTypeID, d.DocumentNumber,
		d.IssueDate, d.ExpiryDate, d.File.Path, d.File.Name, d.File.Size, d.File.ContentType,
		d.CreatedBy)
	return row.Scan(&d.ID, &d.Version, &d.CreatedAt, &d.UpdatedAt)
}

func (r *idDocumentRepoPG) GetByID(ctx context.Context, id int64) (*IDDocument, error) {
	d, err := scanIDDocument(r.conn(ctx).QueryRow(ctx,
		`SELECT `+idDocumentCols+` FROM patient_id_documents WHERE id = $1`, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, optlock.ErrNotFound
	}
	return d, err
}

func (r *idDocumentRepoPG) ListByPatient(ctx context.Context, patientID int64) ([]*IDDocument, error) {
	rows, err := r.conn(ctx).Query(ctx,
		`SELECT `+idDocumentCols+` FROM patient_id_documents WHERE patient_id = $1 ORDER BY created_at DESC`,
		patientID)
	if err != nil {
		return nil, fmt.Errorf("list id documents: %w", err)
	}
	defer rows.Close()

	var out []*IDDocument
	for rows.Next() {
		d, err := scanIDDocument(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, d)
	}
	return out, rows.Err()
}

func (r *idDocumentRepoPG) Update(ctx context.Context, d *IDDocument, expectedVersion int64) error {
	return optlock.Apply(ctx, r.conn(ctx), "patient_id_documents", "id", d.ID, `
		UPDATE patient_id_documents
		SET document_type_id = $1, document_number = $2, issue_date = $3, expiry_date = $4,
			file_path = $5, file_name = $6, file_size = $7, file_content_type = $8,
			version = $9 + 1, updated_at = NOW(), updated_by = $10
		WHERE id = $11 AND version = $9`,
		d.DocumentTypeID, d.DocumentNumber, d.IssueDate, d.ExpiryDate,
		d.File.Path, d.File.Name, d.File.Size, d.File.ContentType,
		expectedVersion, d.UpdatedBy, d.ID)
}

func (r *idDocumentRepoPG) Delete(ctx context.Context, id int64) error {
	tag, err := r.conn(ctx).Exec(ctx, `DELETE FROM patient_id_documents WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete id document: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return optlock.ErrNotFound
	}
	return nil
}

func (r *idDocumentRepoPG) CountDuplicates(ctx context.Context, patientID, documentTypeID int64, documentNumber string, excludeID int64) (int, error) {
	var count int
	err := r.conn(ctx).QueryRow(ctx, `
		SELECT COUNT(*) FROM patient_id_documents
		WHERE patient_id = $1
		  AND (document_type_id = $2 OR document_number = $3)
		  AND id <> $4`,
		patientID, documentTypeID, documentNumber, excludeID).Scan(&count)
	return count, err
}

// =========== Insurance Repository ===========

type insuranceRepoPG struct{ pool *pgxpool.Pool }

func NewInsuranceRepoPG(pool *pgxpool.Pool) InsuranceRepository {
	return &insuranceRepoPG{pool: pool}
}

func (r *insuranceRepoPG) conn(ctx context.Context) queryable {
	if tx := db.TxFromContext(ctx); tx != nil {
		return tx
	}
	return r.pool
}

const insuranceCols = `id, patient_id, insurance_plan_id, policy_number, lbo_number,
	effective_date, expiry_date, file_path, file_name, file_size, file_content_type,
	version, created_at, updated_at, created_by, updated_by`

func scanInsurance(row pgx.Row) (*Insurance, error) {
	var ins Insurance
	err := row.Scan(&ins.ID, &ins.PatientID, &ins.InsurancePlanID, &ins.PolicyNumber, &ins.LBONumber,
		&ins.EffectiveDate, &ins.ExpiryDate, &ins.File.Path, &ins.File.Name, &ins.File.Size, &ins.File.ContentType,
		&ins.Version, &ins.CreatedAt, &ins.UpdatedAt, &ins.CreatedBy, &ins.UpdatedBy)
	return &ins, err
}

func (r *insuranceRepoPG) Create(ctx context.Context, ins *Insurance) error {
	row := r.conn(ctx).QueryRow(ctx, `
		INSERT INTO patient_insurances (patient_id, insurance_plan_id, policy_number, lbo_number,
			effective_date, expiry_date, file_path, file_name, file_size, file_content_type,
			version, created_at, updated_at, created_by, updated_by)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, 1, NOW(), NOW(), $11, $11)
		RETURNING id, version, created_at, updated_at`,
		ins.PatientID, ins.InsurancePlanID, ins.PolicyNumber, ins.LBONumber,
		ins.EffectiveDate, ins.ExpiryDate, ins.File.Path, ins.File.Name, ins.File.Size, ins.File.ContentType,
		ins.CreatedBy)
	return row.Scan(&ins.ID, &ins.Version, &ins.CreatedAt, &ins.UpdatedAt)
}

func (r *insuranceRepoPG) GetByID(ctx context.Context, id int64) (*Insurance, error) {
	ins, err := scanInsurance(r.conn(ctx).QueryRow(ctx,
		`SELECT `+insuranceCols+` FROM patient_insurances WHERE id = $1`, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, optlock.ErrNotFound
	}
	return ins, err
}

func (r *insuranceRepoPG) ListByPatient(ctx context.Context, patientID int64) ([]*Insurance, error) {
	rows, err := r.conn(ctx).Query(ctx,
		`SELECT `+insuranceCols+` FROM patient_insurances WHERE patient_id = $1 ORDER BY created_at DESC`,
		patientID)
	if err != nil {
		return nil, fmt.Errorf("list insurances: %w", err)
	}
	defer rows.Close()

	var out []*Insurance
	for rows.Next() {
		ins, err := scanInsurance(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, ins)
	}
	return out, rows.Err()
}

func (r *insuranceRepoPG) Update(ctx context.Context, ins *Insurance, expectedVersion int64) error {
	return optlock.Apply(ctx, r.conn(ctx), "patient_insurances", "id", ins.ID, `
		UPDATE patient_insurances
		SET insurance_plan_id = $1, policy_number = $2, lbo_number = $3,
			effective_date = $4, expiry_date = $5,
			file_path = $6, file_name = $7, file_size = $8, file_content_type = $9,
			version = $10 + 1, updated_at = NOW(), updated_by = $11
		WHERE id = $12 AND version = $10`,
		ins.InsurancePlanID, ins.PolicyNumber, ins.LBONumber,
		ins.EffectiveDate, ins.ExpiryDate,
		ins.File.Path, ins.File.Name, ins.File.Size, ins.File.ContentType,
		expectedVersion, ins.UpdatedBy, ins.ID)
}

func (r *insuranceRepoPG) Delete(ctx context.Context, id int64) error {
	tag, err := r.conn(ctx).Exec(ctx, `DELETE FROM patient_insurances WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete insurance: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return optlock.ErrNotFound
	}
	return nil
}
