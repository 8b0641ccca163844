package refdata

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

func connFor(ctx context.Context, pool *pgxpool.Pool) queryable {
	if tx := db.TxFromContext(ctx); tx != nil {
		return tx
	}
	return pool
}

// =========== Document Type Repository ===========

type documentTypeRepoPG struct{ pool *pgxpool.Pool }

func NewDocumentTypeRepoPG(pool *pgxpool.Pool) DocumentTypeRepository {
	return &documentTypeRepoPG{pool: pool}
}

const documentTypeCols = `id, name, ai_source_locale, ai_translation_status,
	version, created_at, updated_at, created_by, updated_by`

func scanDocumentType(row pgx.Row) (*DocumentType, error) {
	var dt DocumentType
	err := row.Scan(&dt.ID, &dt.Name, &dt.AISourceLocale, &dt.AITranslationStatus,
		&dt.Version, &dt.CreatedAt, &dt.UpdatedAt, &dt.CreatedBy, &dt.UpdatedBy)
	return &dt, err
}

func (r *documentTypeRepoPG) List(ctx context.Context) ([]*DocumentType, error) {
	rows, err := connFor(ctx, r.pool).Query(ctx,
		`SELECT `+documentTypeCols+` FROM document_types ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("list document types: %w", err)
	}
	defer rows.Close()

	var out []*DocumentType
	for rows.Next() {
		dt, err := scanDocumentType(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, dt)
	}
	return out, rows.Err()
}

func (r *documentTypeRepoPG) GetByID(ctx context.Context, id int64) (*DocumentType, error) {
	dt, err := scanDocumentType(connFor(ctx, r.pool).QueryRow(ctx,
		`SELECT `+documentTypeCols+` FROM document_types WHERE id = $1`, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, optlock.ErrNotFound
	}
	return dt, err
}

func (r *documentTypeRepoPG) Create(ctx context.Context, dt *DocumentType) error {
	row := connFor(ctx, r.pool).QueryRow(ctx, `
		INSERT INTO document_types (name, ai_source_locale, ai_translation_status,
			version, created_at, updated_at, created_by, updated_by)
		VALUES ($1, $2, $3, 1, NOW(), NOW(), $4, $4)
		RETURNING id, version, created_at, updated_at`,
		dt.Name, dt.AISourceLocale, dt.AITranslationStatus, dt.CreatedBy)
	return row.Scan(&dt.ID, &dt.Version, &dt.CreatedAt, &dt.UpdatedAt)
}

func (r *documentTypeRepoPG) Update(ctx context.Context, dt *DocumentType, expectedVersion int64) error {
	return optlock.Apply(ctx, connFor(ctx, r.pool), "document_types", "id", dt.ID, `
		UPDATE document_types
		SET name = $1, ai_translation_status = $2,
			version = $3 + 1, updated_at = NOW(), updated_by = $4
		WHERE id = $5 AND version = $3`,
		dt.Name, dt.AITranslationStatus, expectedVersion, dt.UpdatedBy, dt.ID)
}

func (r *documentTypeRepoPG) Delete(ctx context.Context, id int64) error {
	tag, err := connFor(ctx, r.pool).Exec(ctx, `DELETE FROM document_types WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete document type: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return optlock.ErrNotFound
	}
	return nil
}

// =========== Medical Document Type Repository ===========

type medicalDocumentTypeRepoPG struct{ pool *pgxpool.Pool }

func NewMedicalDocumentTypeRepoPG(pool *pgxpool.Pool) MedicalDocumentTypeRepository {
	return &medicalDocumentTypeRepoPG{pool: pool}
}

func scanMedicalDocumentType(row pgx.Row) (*MedicalDocumentType, error) {
	var mdt MedicalDocumentType
	err := row.Scan(&mdt.ID, &mdt.Name, &mdt.AISourceLocale, &mdt.AITranslationStatus,
		&mdt.Version, &mdt.CreatedAt, &mdt.UpdatedAt, &mdt.CreatedBy, &mdt.UpdatedBy)
	return &mdt, err
}

func (r *medicalDocumentTypeRepoPG) List(ctx context.Context) ([]*MedicalDocumentType, error) {
	rows, err := connFor(ctx, r.pool).Query(ctx,
		`SELECT `+documentTypeCols+` FROM medical_document_types ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("list medical document types: %w", err)
	}
	defer rows.Close()

	var out []*MedicalDocumentType
	for rows.Next() {
		mdt, err := scanMedicalDocumentType(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, mdt)
	}
	return out, rows.Err()
}

func (r *medicalDocumentTypeRepoPG) GetByID(ctx context.Context, id int64) (*MedicalDocumentType, error) {
	mdt, err := scanMedicalDocumentType(connFor(ctx, r.pool).QueryRow(ctx,
		`SELECT `+documentTypeCols+` FROM medical_document_types WHERE id = $1`, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, optlock.ErrNotFound
	}
	return mdt, err
}

func (r *medicalDocumentTypeRepoPG) Create(ctx context.Context, mdt *MedicalDocumentType) error {
	row := connFor(ctx, r.pool).QueryRow(ctx, `
		INSERT INTO medical_document_types (name, ai_source_locale, ai_translation_status,
			version, created_at, updated_at, created_by, updated_by)
		VALUES ($1, $2, $3, 1, NOW(), NOW(), $4, $4)
		RETURNING id, version, created_at, updated_at`,
		mdt.Name, mdt.AISourceLocale, mdt.AITranslationStatus, mdt.CreatedBy)
	return row.Scan(&mdt.ID, &mdt.Version, &mdt.CreatedAt, &mdt.UpdatedAt)
}

func (r *medicalDocumentTypeRepoPG) Update(ctx context.Context, mdt *MedicalDocumentType, expectedVersion int64) error {
	return optlock.Apply(ctx, connFor(ctx, r.pool), "medical_document_types", "id", mdt.ID, `
		UPDATE medical_document_types
		SET name = $1, ai_translation_status = $2,
			version = $3 + 1, updated_at = NOW(), updated_by = $4
		WHERE id = $5 AND version = $3`,
		mdt.Name, mdt.AITranslationStatus, expectedVersion, mdt.UpdatedBy, mdt.ID)
}

func (r *medicalDocumentTypeRepoPG) Delete(ctx context.Context, id int64) error {
	tag, err := connFor(ctx, r.pool).Exec(ctx, `DELETE FROM medical_document_types WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete medical document type: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return optlock.ErrNotFound
	}
	return nil
}

// =========== Insurance Provider Repository ===========

type providerRepoPG struct{ pool *pgxpool.Pool }

func NewProviderRepoPG(pool *pgxpool.Pool) ProviderRepository { return &providerRepoPG{pool: pool} }

const providerCols = `id, name, ai_source_locale, ai_translation_status,
	phone, email, website, address, active,
	version, created_at, updated_at, created_by, updated_by`

func scanProvider(row pgx.Row) (*InsuranceProvider, error) {
	var p InsuranceProvider
	err := row.Scan(&p.ID, &p.Name, &p.AISourceLocale, &p.AITranslationStatus,
		&p.Phone, &p.Email, &p.Website, &p.Address, &p.Active,
		&p.Version, &p.CreatedAt, &p.UpdatedAt, &p.CreatedBy, &p.UpdatedBy)
	return &p, err
}

func (r *providerRepoPG) List(ctx context.Context, activeOnly bool) ([]*InsuranceProvider, error) {
	q := `SELECT ` + providerCols + ` FROM insurance_providers`
	if activeOnly {
		q += ` WHERE active`
	}
	q += ` ORDER BY id`

	conn := connFor(ctx, r.pool)
	rows, err := conn.Query(ctx, q)
	if err != nil {
		return nil, fmt.Errorf("list insurance providers: %w", err)
	}
	defer rows.Close()

	var out []*InsuranceProvider
	for rows.Next() {
		p, err := scanProvider(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	for _, p := range out {
		plans, err := listPlansByProvider(ctx, conn, p.ID)
		if err != nil {
			return nil, err
		}
		p.Plans = plans
	}
	return out, nil
}

func (r *providerRepoPG) GetByID(ctx context.Context, id int64) (*InsuranceProvider, error) {
	conn := connFor(ctx, r.pool)
	p, err := scanProvider(conn.QueryRow(ctx,
		`SELECT `+providerCols+` FROM insurance_providers WHERE id = $1`, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, optlock.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	p.Plans, err = listPlansByProvider(ctx, conn, p.ID)
	return p, err
}

func (r *providerRepoPG) Create(ctx context.Context, p *InsuranceProvider) error {
	row := connFor(ctx, r.pool).QueryRow(ctx, `
		INSERT INTO insurance_providers (name, ai_source_locale, ai_translation_status,
			phone, email, website, address, active,
			version, created_at, updated_at, created_by, updated_by)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, 1, NOW(), NOW(), $9, $9)
		RETURNING id, version, created_at, updated_at`,
		p.Name, p.AISourceLocale, p.AITranslationStatus,
		p.Phone, p.Email, p.Website, p.Address, p.Active, p.CreatedBy)
	return row.Scan(&p.ID, &p.Version, &p.CreatedAt, &p.UpdatedAt)
}

func (r *providerRepoPG) Update(ctx context.Context, p *InsuranceProvider, expectedVersion int64) error {
	return optlock.Apply(ctx, connFor(ctx, r.pool), "insurance_providers", "id", p.ID, `
		UPDATE insurance_providers
		SET name = $1, ai_translation_status = $2, phone = $3, email = $4,
			website = $5, address = $6, active = $7,
			version = $8 + 1, updated_at = NOW(), updated_by = $9
		WHERE id = $10 AND version = $8`,
		p.Name, p.AITranslationStatus, p.Phone, p.Email,
		p.Website, p.Address, p.Active, expectedVersion, p.UpdatedBy, p.ID)
}

// Delete removes the provider and its plans in one statement pair; the plans
// table has no other parents.
func (r *providerRepoPG) Delete(ctx context.Context, id int64) error {
	conn := connFor(ctx, r.pool)
	if _, err := conn.Exec(ctx, `DELETE FROM insurance_plans WHERE provider_id = $1`, id); err != nil {
		return fmt.Errorf("delete provider plans: %w", err)
	}
	tag, err := conn.Exec(ctx, `DELETE FROM insurance_providers WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete insurance provider: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return optlock.ErrNotFound
	}
	return nil
}

// =========== Insurance Plan Repository ===========

type planRepoPG struct{ pool *pgxpool.Pool }

func NewPlanRepoPG(pool *pgxpool.Pool) PlanRepository { return &planRepoPG{pool: pool} }

const planCols = `id, provider_id, name, description, ai_source_locale, ai_translation_status,
	coverage_percent, active, version, created_at, updated_at, created_by, updated_by`

func scanPlan(row pgx.Row) (*InsurancePlan, error) {
	var p InsurancePlan
	err := row.Scan(&p.ID, &p.ProviderID, &p.Name, &p.Description,
		&p.AISourceLocale, &p.AITranslationStatus, &p.CoveragePercent, &p.Active,
		&p.Version, &p.CreatedAt, &p.UpdatedAt, &p.CreatedBy, &p.UpdatedBy)
	return &p, err
}

func listPlansByProvider(ctx context.Context, conn queryable, providerID int64) ([]*InsurancePlan, error) {
	rows, err := conn.Query(ctx,
		`SELECT `+planCols+` FROM insurance_plans WHERE provider_id = $1 ORDER BY id`, providerID)
	if err != nil {
		return nil, fmt.Errorf("list insurance plans: %w", err)
	}
	defer rows.Close()

	var out []*InsurancePlan
	for rows.Next() {
		p, err := scanPlan(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

func (r *planRepoPG) ListByProvider(ctx context.Context, providerID int64) ([]*InsurancePlan, error) {
	return listPlansByProvider(ctx, connFor(ctx, r.pool), providerID)
}

func (r *planRepoPG) GetByID(ctx context.Context, id int64) (*InsurancePlan, error) {
	p, err := scanPlan(connFor(ctx, r.pool).QueryRow(ctx,
		`SELECT `+planCols+` FROM insurance_plans WHERE id = $1`, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, optlock.ErrNotFound
	}
	return p, err
}

func (r *planRepoPG) Create(ctx context.Context, p *InsurancePlan) error {
	row := connFor(ctx, r.pool).QueryRow(ctx, `
		INSERT INTO insurance_plans (provider_id, name, description,
			ai_source_locale, ai_translation_status, coverage_percent, active,
			version, created_at, updated_at, created_by, updated_by)
		VALUES ($1, $2, $3, $4, $5, $6, $7, 1, NOW(), NOW(), $8, $8)
		RETURNING id, version, created_at, updated_at`,
		p.ProviderID, p.Name, p.Description,
		p.AISourceLocale, p.AITranslationStatus, p.CoveragePercent, p.Active, p.CreatedBy)
	return row.Scan(&p.ID, &p.Version, &p.CreatedAt, &p.UpdatedAt)
}

func (r *planRepoPG) Update(ctx context.Context, p *InsurancePlan, expectedVersion int64) error {
	return optlock.Apply(ctx, connFor(ctx, r.pool), "insurance_plans", "id", p.ID, `
		UPDATE insurance_plans
		SET name = $1, description = $2, ai_translation_status = $3,
			coverage_percent = $4, active = $5,
			version = $6 + 1, updated_at = NOW(), updated_by = $7
		WHERE id = $8 AND version = $6`,
		p.Name, p.Description, p.AITranslationStatus,
		p.CoveragePercent, p.Active, expectedVersion, p.UpdatedBy, p.ID)
}

func (r *planRepoPG) Delete(ctx context.Context, id int64) error {
	tag, err := connFor(ctx, r.pool).Exec(ctx, `DELETE FROM insurance_plans WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete insurance plan: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return optlock.ErrNotFound
	}
	return nil
}

// =========== Lookup Repository ===========

type lookupRepoPG struct{ pool *pgxpool.Pool }

func NewLookupRepoPG(pool *pgxpool.Pool) LookupRepository { return &lookupRepoPG{pool: pool} }

func (r *lookupRepoPG) Countries(ctx context.Context) ([]*Country, error) {
	rows, err := connFor(ctx, r.pool).Query(ctx,
		`SELECT id, code, name FROM countries ORDER BY name`)
	if err != nil {
		return nil, fmt.Errorf("list countries: %w", err)
	}
	defer rows.Close()

	var out []*Country
	for rows.Next() {
		var c Country
		if err := rows.Scan(&c.ID, &c.Code, &c.Name); err != nil {
			return nil, err
		}
		out = append(out, &c)
	}
	return out, rows.Err()
}

func (r *lookupRepoPG) Cities(ctx context.Context, countryID int64) ([]*City, error) {
	q := `SELECT id, country_id, name, postal_code FROM cities`
	args := []interface{}{}
	if countryID > 0 {
		q += ` WHERE country_id = $1`
		args = append(args, countryID)
	}
	q += ` ORDER BY name`

	rows, err := connFor(ctx, r.pool).Query(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("list cities: %w", err)
	}
	defer rows.Close()

	var out []*City
	for rows.Next() {
		var c City
		if err := rows.Scan(&c.ID, &c.CountryID, &c.Name, &c.PostalCode); err != nil {
			return nil, err
		}
		out = append(out, &c)
	}
	return out, rows.Err()
}

func (r *lookupRepoPG) Professions(ctx context.Context) ([]*Profession, error) {
	rows, err := connFor(ctx, r.pool).Query(ctx,
		`SELECT id, name FROM professions ORDER BY name`)
	if err != nil {
		return nil, fmt.Errorf("list professions: %w", err)
	}
	defer rows.Close()

	var out []*Profession
	for rows.Next() {
		var p Profession
		if err := rows.Scan(&p.ID, &p.Name); err != nil {
			return nil, err
		}
		out = append(out, &p)
	}
	return out, rows.Err()
}

func (r *lookupRepoPG) Employers(ctx context.Context, nameFilter string) ([]*Employer, error) {
	q := `SELECT id, name FROM employers`
	args := []interface{}{}
	if nameFilter != "" {
		q += ` WHERE name ILIKE '%' || $1 || '%'`
		args = append(args, nameFilter)
	}
	q += ` ORDER BY name`

	rows, err := connFor(ctx, r.pool).Query(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("list employers: %w", err)
	}
	defer rows.Close()

	var out []*Employer
	for rows.Next() {
		var e Employer
		if err := rows.Scan(&e.ID, &e.Name); err != nil {
			return nil, err
		}
		out = append(out, &e)
	}
	return out, rows.Err()
}

// CreateEmployer backs the patient form's inline "add employer" action.
// Concurrent inserts of the same name resolve to the existing row.
func (r *lookupRepoPG) CreateEmployer(ctx context.Context, e *Employer) error {
	row := connFor(ctx, r.pool).QueryRow(ctx, `
		INSERT INTO employers (name) VALUES ($1)
		ON CONFLICT (name) DO UPDATE SET name = EXCLUDED.name
		RETURNING id`, e.Name)
	return row.Scan(&e.ID)
}
