package patient

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

// =========== Patient Repository ===========

type patientRepoPG struct{ pool *pgxpool.Pool }

func NewPatientRepoPG(pool *pgxpool.Pool) PatientRepository { return &patientRepoPG{pool: pool} }

func (r *patientRepoPG) conn(ctx context.Context) queryable {
	if tx := db.TxFromContext(ctx); tx != nil {
		return tx
	}
	return r.pool
}

const patientCols = `id, first_name, last_name, date_of_birth, gender, national_id,
	phone, email, address, city_id, country_id, citizenship_country_id,
	version, created_at, updated_at, created_by, updated_by`

func scanPatient(row pgx.Row) (*Patient, error) {
	var p Patient
	err := row.Scan(&p.ID, &p.FirstName, &p.LastName, &p.DateOfBirth, &p.Gender, &p.NationalID,
		&p.Phone, &p.Email, &p.Address, &p.CityID, &p.CountryID, &p.CitizenshipCountryID,
		&p.Version, &p.CreatedAt, &p.UpdatedAt, &p.CreatedBy, &p.UpdatedBy)
	return &p, err
}

func (r *patientRepoPG) Create(ctx context.Context, p *Patient) error {
	row := r.conn(ctx).QueryRow(ctx, `
		INSERT INTO patients (first_name, last_name, date_of_birth, gender, national_id,
			phone, email, address, city_id, country_id, citizenship_country_id,
			version, created_at, updated_at, created_by, updated_by)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, 1, NOW(), NOW(), $12, $12)
		RETURNING id, version, created_at, updated_at`,
		p.FirstName, p.LastName, p.DateOfBirth, p.Gender, p.NationalID,
		p.Phone, p.Email, p.Address, p.CityID, p.CountryID, p.CitizenshipCountryID,
		p.CreatedBy)
	return row.Scan(&p.ID, &p.Version, &p.CreatedAt, &p.UpdatedAt)
}

func (r *patientRepoPG) GetByID(ctx context.Context, id int64) (*Patient, error) {
	p, err := scanPatient(r.conn(ctx).QueryRow(ctx,
		`SELECT `+patientCols+` FROM patients WHERE id = $1`, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, optlock.ErrNotFound
	}
	return p, err
}

func (r *patientRepoPG) Update(ctx context.Context, p *Patient, expectedVersion int64) error {
	return optlock.Apply(ctx, r.conn(ctx), "patients", "id", p.ID, `
		UPDATE patients
		SET first_name = $1, last_name = $2, date_of_birth = $3, gender = $4, national_id = $5,
			phone = $6, email = $7, address = $8, city_id = $9, country_id = $10,
			citizenship_country_id = $11, version = $12 + 1, updated_at = NOW(), updated_by = $13
		WHERE id = $14 AND version = $12`,
		p.FirstName, p.LastName, p.DateOfBirth, p.Gender, p.NationalID,
		p.Phone, p.Email, p.Address, p.CityID, p.CountryID, p.CitizenshipCountryID,
		expectedVersion, p.UpdatedBy, p.ID)
}

func (r *patientRepoPG) Delete(ctx context.Context, id int64) error {
	tag, err := r.conn(ctx).Exec(ctx, `DELETE FROM patients WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete patient: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return optlock.ErrNotFound
	}
	return nil
}

var patientSortColumns = map[string]string{
	"last_name":  "last_name",
	"first_name": "first_name",
	"created_at": "created_at",
	"date_of_birth": "date_of_birth",
}

func (r *patientRepoPG) Search(ctx context.Context, filter SearchFilter, pg pagination.Params) ([]*Patient, int, error) {
	psql := sq.StatementBuilder.PlaceholderFormat(sq.Dollar)

	base := psql.Select().From("patients")
	if filter.FirstName != "" {
		base = base.Where(sq.ILike{"first_name": filter.FirstName + "%"})
	}
	if filter.LastName != "" {
		base = base.Where(sq.ILike{"last_name": filter.LastName + "%"})
	}
	if filter.NationalID != "" {
		base = base.Where(sq.Eq{"national_id": filter.NationalID})
	}
	if filter.Phone != "" {
		base = base.Where(sq.ILike{"phone": "%" + filter.Phone + "%"})
	}

	countSQL, countArgs, err := base.Columns("COUNT(*)").ToSql()
	if err != nil {
		return nil, 0, fmt.Errorf("build count query: %w", err)
	}
	var total int
	if err := r.conn(ctx).QueryRow(ctx, countSQL, countArgs...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("count patients: %w", err)
	}

	sortCol, ok := patientSortColumns[filter.SortBy]
	if !ok {
		sortCol = "last_name"
	}
	order := "ASC"
	if filter.SortOrder == "desc" {
		order = "DESC"
	}

	listSQL, listArgs, err := base.Columns(patientCols).
		OrderBy(sortCol + " " + order).
		Limit(uint64(pg.Limit)).
		Offset(uint64(pg.Offset)).
		ToSql()
	if err != nil {
		return nil, 0, fmt.Errorf("build search query: %w", err)
	}

	rows, err := r.conn(ctx).Query(ctx, listSQL, listArgs...)
	if err != nil {
		return nil, 0, fmt.Errorf("search patients: %w", err)
	}
	defer rows.Close()

	var out []*Patient
	for rows.Next() {
		p, err := scanPatient(rows)
		if err != nil {
			return nil, 0, err
		}
		out = append(out, p)
	}
	return out, total, rows.Err()
}

func (r *patientRepoPG) NationalIDExists(ctx context.Context, nationalID string, excludeID int64) (bool, error) {
	var exists bool
	err := r.conn(ctx).QueryRow(ctx,
		`SELECT EXISTS (SELECT 1 FROM patients WHERE national_id = $1 AND id <> $2)`,
		nationalID, excludeID).Scan(&exists)
	return exists, err
}

// =========== PersonalInfo Repository ===========

type personalRepoPG struct{ pool *pgxpool.Pool }

func NewPersonalRepoPG(pool *pgxpool.Pool) PersonalRepository { return &personalRepoPG{pool: pool} }

func (r *personalRepoPG) conn(ctx context.Context) queryable {
	if tx := db.TxFromContext(ctx); tx != nil {
		return tx
	}
	return r.pool
}

const personalCols = `patient_id, parent_name, birth_city_id, birth_country_id, marital_status,
	profession_id, education_level, living_arrangement, employer_id, employment_status,
	version, updated_at, updated_by`

func scanPersonal(row pgx.Row) (*PersonalInfo, error) {
	var p PersonalInfo
	err := row.Scan(&p.PatientID, &p.ParentName, &p.BirthCityID, &p.BirthCountryID, &p.MaritalStatus,
		&p.ProfessionID, &p.EducationLevel, &p.LivingArrangement, &p.EmployerID, &p.EmploymentStatus,
		&p.Version, &p.UpdatedAt, &p.UpdatedBy)
	return &p, err
}

func (r *personalRepoPG) GetByPatientID(ctx context.Context, patientID int64) (*PersonalInfo, error) {
	p, err := scanPersonal(r.conn(ctx).QueryRow(ctx,
		`SELECT `+personalCols+` FROM patient_personal_info WHERE patient_id = $1`, patientID))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, optlock.ErrNotFound
	}
	return p, err
}

func (r *personalRepoPG) Create(ctx context.Context, p *PersonalInfo) error {
	row := r.conn(ctx).QueryRow(ctx, `
		INSERT INTO patient_personal_info (patient_id, parent_name, birth_city_id, birth_country_id,
			marital_status, profession_id, education_level, living_arrangement, employer_id,
			employment_status, version, updated_at, updated_by)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, 1, NOW(), $11)
		RETURNING version, updated_at`,
		p.PatientID, p.ParentName, p.BirthCityID, p.BirthCountryID,
		p.MaritalStatus, p.ProfessionID, p.EducationLevel, p.LivingArrangement, p.EmployerID,
		p.EmploymentStatus, p.UpdatedBy)
	return row.Scan(&p.Version, &p.UpdatedAt)
}

func (r *personalRepoPG) Update(ctx context.Context, p *PersonalInfo, expectedVersion int64) error {
	return optlock.Apply(ctx, r.conn(ctx), "patient_personal_info", "patient_id", p.PatientID, `
		UPDATE patient_personal_info
		SET parent_name = $1, birth_city_id = $2, birth_country_id = $3, marital_status = $4,
			profession_id = $5, education_level = $6, living_arrangement = $7, employer_id = $8,
			employment_status = $9, version = $10 + 1, updated_at = NOW(), updated_by = $11
		WHERE patient_id = $12 AND version = $10`,
		p.ParentName, p.BirthCityID, p.BirthCountryID, p.MaritalStatus,
		p.ProfessionID, p.EducationLevel, p.LivingArrangement, p.EmployerID,
		p.EmploymentStatus, expectedVersion, p.UpdatedBy, p.PatientID)
}

// =========== RiskInfo Repository ===========

type riskRepoPG struct{ pool *pgxpool.Pool }

func NewRiskRepoPG(pool *pgxpool.Pool) RiskRepository { return &riskRepoPG{pool: pool} }

func (r *riskRepoPG) conn(ctx context.Context) queryable {
	if tx := db.TxFromContext(ctx); tx != nil {
		return tx
	}
	return r.pool
}

const riskCols = `patient_id, gender, weight, height, waist_circumference, blood_type,
	stress_level, physical_activity_level, smoking_status, alcohol_consumption,
	version, updated_at, updated_by`

func scanRisk(row pgx.Row) (*RiskInfo, error) {
	var ri RiskInfo
	err := row.Scan(&ri.PatientID, &ri.Gender, &ri.Weight, &ri.Height, &ri.WaistCircumference,
		&ri.BloodType, &ri.StressLevel, &ri.PhysicalActivityLevel, &ri.SmokingStatus,
		&ri.AlcoholConsumption, &ri.Version, &ri.UpdatedAt, &ri.UpdatedBy)
	return &ri, err
}

func (r *riskRepoPG) GetByPatientID(ctx context.Context, patientID int64) (*RiskInfo, error) {
	ri, err := scanRisk(r.conn(ctx).QueryRow(ctx,
		`SELECT `+riskCols+` FROM patient_risk_info WHERE patient_id = $1`, patientID))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, optlock.ErrNotFound
	}
	if err == nil {
		ri.DeriveBMI()
	}
	return ri, err
}

func (r *riskRepoPG) Create(ctx context.Context, ri *RiskInfo) error {
	row := r.conn(ctx).QueryRow(ctx, `
		INSERT INTO patient_risk_info (patient_id, gender, weight, height, waist_circumference,
			blood_type, stress_level, physical_activity_level, smoking_status, alcohol_consumption,
			version, updated_at, updated_by)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, 1, NOW(), $11)
		RETURNING version, updated_at`,
		ri.PatientID, ri.Gender, ri.Weight, ri.Height, ri.WaistCircumference,
		ri.BloodType, ri.StressLevel, ri.PhysicalActivityLevel, ri.SmokingStatus,
		ri.AlcoholConsumption, ri.UpdatedBy)
	return row.Scan(&ri.Version, &ri.UpdatedAt)
}

func (r *riskRepoPG) Update(ctx context.Context, ri *RiskInfo, expectedVersion int64) error {
	return optlock.Apply(ctx, r.conn(ctx), "patient_risk_info", "patient_id", ri.PatientID, `
		UPDATE patient_risk_info
		SET gender = $1, weight = $2, height = $3, waist_circumference = $4, blood_type = $5,
			stress_level = $6, physical_activity_level = $7, smoking_status = $8,
			alcohol_consumption = $9, version = $10 + 1, updated_at = NOW(), updated_by = $11
		WHERE patient_id = $12 AND version = $10`,
		ri.Gender, ri.Weight, ri.Height, ri.WaistCircumference, ri.BloodType,
		ri.StressLevel, ri.PhysicalActivityLevel, ri.SmokingStatus, ri.AlcoholConsumption,
		expectedVersion, ri.UpdatedBy, ri.PatientID)
}

// =========== Note Repository ===========

type noteRepoPG struct{ pool *pgxpool.Pool }

func NewNoteRepoPG(pool *pgxpool.Pool) NoteRepository { return &noteRepoPG{pool: pool} }

func (r *noteRepoPG) conn(ctx context.Context) queryable {
	if tx := db.TxFromContext(ctx); tx != nil {
		return tx
	}
	return r.pool
}

const noteCols = `id, patient_id, note, ai_source_locale, ai_translation_status,
	version, created_at, updated_at, created_by, updated_by`

func scanNote(row pgx.Row) (*Note, error) {
	var n Note
	err := row.Scan(&n.ID, &n.PatientID, &n.Note, &n.AISourceLocale, &n.AITranslationStatus,
		&n.Version, &n.CreatedAt, &n.UpdatedAt, &n.CreatedBy, &n.UpdatedBy)
	return &n, err
}

func (r *noteRepoPG) Create(ctx context.Context, n *Note) error {
	row := r.conn(ctx).QueryRow(ctx, `
		INSERT INTO patient_notes (patient_id, note, ai_source_locale, ai_translation_status,
			version, created_at, updated_at, created_by, updated_by)
		VALUES ($1, $2, $3, $4, 1, NOW(), NOW(), $5, $5)
		RETURNING id, version, created_at, updated_at`,
		n.PatientID, n.Note, n.AISourceLocale, n.AITranslationStatus, n.CreatedBy)
	return row.Scan(&n.ID, &n.Version, &n.CreatedAt, &n.UpdatedAt)
}

func (r *noteRepoPG) GetByID(ctx context.Context, id int64) (*Note, error) {
	n, err := scanNote(r.conn(ctx).QueryRow(ctx,
		`SELECT `+noteCols+` FROM patient_notes WHERE id = $1`, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, optlock.ErrNotFound
	}
	return n, err
}

func (r *noteRepoPG) ListByPatient(ctx context.Context, patientID int64, pg pagination.Params) ([]*Note, int, error) {
	var total int
	if err := r.conn(ctx).QueryRow(ctx,
		`SELECT COUNT(*) FROM patient_notes WHERE patient_id = $1`, patientID).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("count notes: %w", err)
	}

	rows, err := r.conn(ctx).Query(ctx,
		`SELECT `+noteCols+` FROM patient_notes WHERE patient_id = $1 ORDER BY created_at DESC LIMIT $2 OFFSET $3`,
		patientID, pg.Limit, pg.Offset)
	if err != nil {
		return nil, 0, fmt.Errorf("list notes: %w", err)
	}
	defer rows.Close()

	var out []*Note
	for rows.Next() {
		n, err := scanNote(rows)
		if err != nil {
			return nil, 0, err
		}
		out = append(out, n)
	}
	return out, total, rows.Err()
}

func (r *noteRepoPG) Update(ctx context.Context, n *Note, expectedVersion int64) error {
	return optlock.Apply(ctx, r.conn(ctx), "patient_notes", "id", n.ID, `
		UPDATE patient_notes
		SET note = $1, ai_translation_status = $2, version = $3 + 1, updated_at = NOW(), updated_by = $4
		WHERE id = $5 AND version = $3`,
		n.Note, n.AITranslationStatus, expectedVersion, n.UpdatedBy, n.ID)
}

func (r *noteRepoPG) Delete(ctx context.Context, id int64) error {
	tag, err := r.conn(ctx).Exec(ctx, `DELETE FROM patient_notes WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete note: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return optlock.ErrNotFound
	}
	return nil
}
