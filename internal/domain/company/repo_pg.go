package company

import (
	"context"
	"errors"
	"fmt"

	sq "github.com/Masterminds/squirrel"
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

// =========== Company Repository ===========

type companyRepoPG struct{ pool *pgxpool.Pool }

func NewCompanyRepoPG(pool *pgxpool.Pool) CompanyRepository { return &companyRepoPG{pool: pool} }

func (r *companyRepoPG) conn(ctx context.Context) queryable {
	if tx := db.TxFromContext(ctx); tx != nil {
		return tx
	}
	return r.pool
}

const companyCols = `id, name, tin, vat, registration_number, address, city_id, country_id,
	phone, email, website, company_type, discount_percent, is_partner,
	version, created_at, updated_at, created_by, updated_by`

func scanCompany(row pgx.Row) (*Company, error) {
	var c Company
	err := row.Scan(&c.ID, &c.Name, &c.TIN, &c.VAT, &c.RegistrationNumber, &c.Address, &c.CityID,
		&c.CountryID, &c.Phone, &c.Email, &c.Website, &c.CompanyType, &c.DiscountPercent,
		&c.IsPartner, &c.Version, &c.CreatedAt, &c.UpdatedAt, &c.CreatedBy, &c.UpdatedBy)
	return &c, err
}

func (r *companyRepoPG) Create(ctx context.Context, c *Company) error {
	row := r.conn(ctx).QueryRow(ctx, `
		INSERT INTO companies (name, tin, vat, registration_number, address, city_id, country_id,
			phone, email, website, company_type, discount_percent, is_partner,
			version, created_at, updated_at, created_by, updated_by)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, 1, NOW(), NOW(), $14, $14)
		RETURNING id, version, created_at, updated_at`,
		c.Name, c.TIN, c.VAT, c.RegistrationNumber, c.Address, c.CityID, c.CountryID,
		c.Phone, c.Email, c.Website, c.CompanyType, c.DiscountPercent, c.IsPartner,
		c.CreatedBy)
	return row.Scan(&c.ID, &c.Version, &c.CreatedAt, &c.UpdatedAt)
}

func (r *companyRepoPG) GetByID(ctx context.Context, id int64) (*Company, error) {
	c, err := scanCompany(r.conn(ctx).QueryRow(ctx,
		`SELECT `+companyCols+` FROM companies WHERE id = $1`, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, optlock.ErrNotFound
	}
	return c, err
}

func (r *companyRepoPG) List(ctx context.Context, nameFilter string, pg pagination.Params) ([]*Company, int, error) {
	psql := sq.StatementBuilder.PlaceholderFormat(sq.Dollar)

	base := psql.Select().From("companies")
	if nameFilter != "" {
		base = base.Where(sq.ILike{"name": "%" + nameFilter + "%"})
	}

	countSQL, countArgs, err := base.Columns("COUNT(*)").ToSql()
	if err != nil {
		return nil, 0, fmt.Errorf("build count query: %w", err)
	}
	var total int
	if err := r.conn(ctx).QueryRow(ctx, countSQL, countArgs...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("count companies: %w", err)
	}

	listSQL, listArgs, err := base.Columns(companyCols).
		OrderBy("name ASC").
		Limit(uint64(pg.Limit)).
		Offset(uint64(pg.Offset)).
		ToSql()
	if err != nil {
		return nil, 0, fmt.Errorf("build list query: %w", err)
	}

	rows, err := r.conn(ctx).Query(ctx, listSQL, listArgs...)
	if err != nil {
		return nil, 0, fmt.Errorf("list companies: %w", err)
	}
	defer rows.Close()

	var out []*Company
	for rows.Next() {
		c, err := scanCompany(rows)
		if err != nil {
			return nil, 0, err
		}
		out = append(out, c)
	}
	return out, total, rows.Err()
}

func (r *companyRepoPG) Update(ctx context.Context, c *Company, expectedVersion int64) error {
	return optlock.Apply(ctx, r.conn(ctx), "companies", "id", c.ID, `
		UPDATE companies
		SET name = $1, tin = $2, vat = $3, registration_number = $4, address = $5,
			city_id = $6, country_id = $7, phone = $8, email = $9, website = $10,
			company_type = $11, discount_percent = $12, is_partner = $13,
			version = $14 + 1, updated_at = NOW(), updated_by = $15
		WHERE id = $16 AND version = $14`,
		c.Name, c.TIN, c.VAT, c.RegistrationNumber, c.Address,
		c.CityID, c.CountryID, c.Phone, c.Email, c.Website,
		c.CompanyType, c.DiscountPercent, c.IsPartner,
		expectedVersion, c.UpdatedBy, c.ID)
}

func (r *companyRepoPG) Delete(ctx context.Context, id int64) error {
	tag, err := r.conn(ctx).Exec(ctx, `DELETE FROM companies WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete company: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return optlock.ErrNotFound
	}
	return nil
}

// =========== Info Repository ===========

// The clinic profile is a single row with a fixed key.
const infoRowID = 1

type infoRepoPG struct{ pool *pgxpool.Pool }

func NewInfoRepoPG(pool *pgxpool.Pool) InfoRepository { return &infoRepoPG{pool: pool} }

func (r *infoRepoPG) conn(ctx context.Context) queryable {
	if tx := db.TxFromContext(ctx); tx != nil {
		return tx
	}
	return r.pool
}

const infoCols = `name, tin, vat, registration_number, address, phone, email, website, bank_account,
	version, updated_at, updated_by`

func (r *infoRepoPG) Get(ctx context.Context) (*Info, error) {
	var info Info
	err := r.conn(ctx).QueryRow(ctx,
		`SELECT `+infoCols+` FROM company_info WHERE id = $1`, infoRowID).
		Scan(&info.Name, &info.TIN, &info.VAT, &info.RegistrationNumber, &info.Address,
			&info.Phone, &info.Email, &info.Website, &info.BankAccount,
			&info.Version, &info.UpdatedAt, &info.UpdatedBy)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, optlock.ErrNotFound
	}
	return &info, err
}

func (r *infoRepoPG) Create(ctx context.Context, info *Info) error {
	row := r.conn(ctx).QueryRow(ctx, `
		INSERT INTO company_info (id, name, tin, vat, registration_number, address,
			phone, email, website, bank_account, version, updated_at, updated_by)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, 1, NOW(), $11)
		RETURNING version, updated_at`,
		infoRowID, info.Name, info.TIN, info.VAT, info.RegistrationNumber, info.Address,
		info.Phone, info.Email, info.Website, info.BankAccount, info.UpdatedBy)
	return row.Scan(&info.Version, &info.UpdatedAt)
}

func (r *infoRepoPG) Update(ctx context.Context, info *Info, expectedVersion int64) error {
	return optlock.Apply(ctx, r.conn(ctx), "company_info", "id", int64(infoRowID), `
		UPDATE company_info
		SET name = $1, tin = $2, vat = $3, registration_number = $4, address = $5,
			phone = $6, email = $7, website = $8, bank_account = $9,
			version = $10 + 1, updated_at = NOW(), updated_by = $11
		WHERE id = $12 AND version = $10`,
		info.Name, info.TIN, info.VAT, info.RegistrationNumber, info.Address,
		info.Phone, info.Email, info.Website, info.BankAccount,
		expectedVersion, info.UpdatedBy, infoRowID)
}

// =========== Category Repository ===========

type categoryRepoPG struct{ pool *pgxpool.Pool }

func NewCategoryRepoPG(pool *pgxpool.Pool) CategoryRepository { return &categoryRepoPG{pool: pool} }

func (r *categoryRepoPG) conn(ctx context.Context) queryable {
	if tx := db.TxFromContext(ctx); tx != nil {
		return tx
	}
	return r.pool
}

func (r *categoryRepoPG) List(ctx context.Context) ([]*ExaminationCategory, error) {
	rows, err := r.conn(ctx).Query(ctx,
		`SELECT id, name, sort_order FROM examination_categories ORDER BY sort_order, id`)
	if err != nil {
		return nil, fmt.Errorf("list categories: %w", err)
	}
	defer rows.Close()

	var out []*ExaminationCategory
	for rows.Next() {
		var cat ExaminationCategory
		if err := rows.Scan(&cat.ID, &cat.Name, &cat.SortOrder); err != nil {
			return nil, err
		}
		out = append(out, &cat)
	}
	return out, rows.Err()
}

func (r *categoryRepoPG) GetByID(ctx context.Context, id int64) (*ExaminationCategory, error) {
	var cat ExaminationCategory
	err := r.conn(ctx).QueryRow(ctx,
		`SELECT id, name, sort_order FROM examination_categories WHERE id = $1`, id).
		Scan(&cat.ID, &cat.Name, &cat.SortOrder)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, optlock.ErrNotFound
	}
	return &cat, err
}

func (r *categoryRepoPG) Create(ctx context.Context, cat *ExaminationCategory) error {
	return r.conn(ctx).QueryRow(ctx,
		`INSERT INTO examination_categories (name, sort_order) VALUES ($1, $2) RETURNING id`,
		cat.Name, cat.SortOrder).Scan(&cat.ID)
}

func (r *categoryRepoPG) Update(ctx context.Context, cat *ExaminationCategory) error {
	tag, err := r.conn(ctx).Exec(ctx,
		`UPDATE examination_categories SET name = $1, sort_order = $2 WHERE id = $3`,
		cat.Name, cat.SortOrder, cat.ID)
	if err != nil {
		return fmt.Errorf("update category: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return optlock.ErrNotFound
	}
	return nil
}

func (r *categoryRepoPG) Delete(ctx context.Context, id int64) error {
	tag, err := r.conn(ctx).Exec(ctx, `DELETE FROM examination_categories WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete category: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return optlock.ErrNotFound
	}
	return nil
}

// =========== ExamType Repository ===========

type examTypeRepoPG struct{ pool *pgxpool.Pool }

func NewExamTypeRepoPG(pool *pgxpool.Pool) ExamTypeRepository { return &examTypeRepoPG{pool: pool} }

func (r *examTypeRepoPG) conn(ctx context.Context) queryable {
	if tx := db.TxFromContext(ctx); tx != nil {
		return tx
	}
	return r.pool
}

const examTypeCols = `id, category_id, name, ai_source_locale, ai_translation_status,
	duration_minutes, price, active, version, created_at, updated_at, created_by, updated_by`

func scanExamType(row pgx.Row) (*ExaminationType, error) {
	var et ExaminationType
	err := row.Scan(&et.ID, &et.CategoryID, &et.Name, &et.AISourceLocale, &et.AITranslationStatus,
		&et.DurationMinutes, &et.Price, &et.Active,
		&et.Version, &et.CreatedAt, &et.UpdatedAt, &et.CreatedBy, &et.UpdatedBy)
	return &et, err
}

func (r *examTypeRepoPG) Create(ctx context.Context, et *ExaminationType) error {
	row := r.conn(ctx).QueryRow(ctx, `
		INSERT INTO examination_types (category_id, name, ai_source_locale, ai_translation_status,
			duration_minutes, price, active, version, created_at, updated_at, created_by, updated_by)
		VALUES ($1, $2, $3, $4, $5, $6, $7, 1, NOW(), NOW(), $8, $8)
		RETURNING id, version, created_at, updated_at`,
		et.CategoryID, et.Name, et.AISourceLocale, et.AITranslationStatus,
		et.DurationMinutes, et.Price, et.Active, et.CreatedBy)
	return row.Scan(&et.ID, &et.Version, &et.CreatedAt, &et.UpdatedAt)
}

func (r *examTypeRepoPG) GetByID(ctx context.Context, id int64) (*ExaminationType, error) {
	et, err := scanExamType(r.conn(ctx).QueryRow(ctx,
		`SELECT `+examTypeCols+` FROM examination_types WHERE id = $1`, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, optlock.ErrNotFound
	}
	return et, err
}

func (r *examTypeRepoPG) List(ctx context.Context, activeOnly bool) ([]*ExaminationType, error) {
	query := `SELECT ` + examTypeCols + ` FROM examination_types`
	if activeOnly {
		query += ` WHERE active`
	}
	query += ` ORDER BY id`

	rows, err := r.conn(ctx).Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("list examination types: %w", err)
	}
	defer rows.Close()

	var out []*ExaminationType
	for rows.Next() {
		et, err := scanExamType(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, et)
	}
	return out, rows.Err()
}

func (r *examTypeRepoPG) Update(ctx context.Context, et *ExaminationType, expectedVersion int64) error {
	return optlock.Apply(ctx, r.conn(ctx), "examination_types", "id", et.ID, `
		UPDATE examination_types
		SET category_id = $1, name = $2, ai_translation_status = $3,
			duration_minutes = $4, price = $5, active = $6,
			version = $7 + 1, updated_at = NOW(), updated_by = $8
		WHERE id = $9 AND version = $7`,
		et.CategoryID, et.Name, et.AITranslationStatus,
		et.DurationMinutes, et.Price, et.Active,
		expectedVersion, et.UpdatedBy, et.ID)
}

func (r *examTypeRepoPG) Delete(ctx context.Context, id int64) error {
	tag, err := r.conn(ctx).Exec(ctx, `DELETE FROM examination_types WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete examination type: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return optlock.ErrNotFound
	}
	return nil
}
