package postgres

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/ogurasousui/personnel-records/internal/core/employee"
	pgdb "github.com/ogurasousui/personnel-records/internal/platform/db/postgres"
	"github.com/shopspring/decimal"
)

const (
	employeeUniqueViolationCode      = "23505"
	employeeCheckViolationCode       = "23514"
	employeeNumericOutOfRangeCode    = "22003"
	employeeSerializationFailureCode = "40001"
	employeeDeadlockDetectedCode     = "40P01"
)

const employeeColumns = `id, name, ssn, salary, joining_date, birth_date, note`

// EmployeeRepository は PostgreSQL を利用した社員永続化の実装です。
type EmployeeRepository struct {
	pool pgdb.Queryer
}

var _ employee.Repository = (*EmployeeRepository)(nil)

// NewEmployeeRepository は EmployeeRepository を生成します。
func NewEmployeeRepository(pool pgdb.Queryer) *EmployeeRepository {
	return &EmployeeRepository{pool: pool}
}

// Create は社員を新規作成し、採番された ID を含むレコードを返します。
func (r *EmployeeRepository) Create(ctx context.Context, e *employee.Employee) (*employee.Employee, error) {
	exec := pgdb.QueryerFromContext(ctx, r.pool)
	row := exec.QueryRow(ctx, `
        INSERT INTO employees (name, ssn, salary, joining_date, birth_date, note)
        VALUES ($1, $2, $3, $4, $5, $6)
        RETURNING `+employeeColumns,
		e.Name,
		e.SSN,
		e.Salary,
		dateOnly(e.JoiningDate),
		nullableDate(e.BirthDate),
		e.Note,
	)

	created, err := scanEmployee(row)
	if err != nil {
		return nil, translateEmployeePgError(err, e.SSN)
	}
	return created, nil
}

// Update は ID に一致する社員の可変項目をすべて上書きします。
func (r *EmployeeRepository) Update(ctx context.Context, e *employee.Employee) (*employee.Employee, error) {
	exec := pgdb.QueryerFromContext(ctx, r.pool)
	row := exec.QueryRow(ctx, `
        UPDATE employees
           SET name = $1,
               ssn = $2,
               salary = $3,
               joining_date = $4,
               birth_date = $5,
               note = $6
         WHERE id = $7
        RETURNING `+employeeColumns,
		e.Name,
		e.SSN,
		e.Salary,
		dateOnly(e.JoiningDate),
		nullableDate(e.BirthDate),
		e.Note,
		e.ID,
	)

	updated, err := scanEmployee(row)
	if err != nil {
		return nil, translateEmployeePgError(err, e.SSN)
	}
	return updated, nil
}

// DeleteBySSN は SSN に一致する社員を削除します。該当なしでもエラーにしません。
func (r *EmployeeRepository) DeleteBySSN(ctx context.Context, ssn string) error {
	exec := pgdb.QueryerFromContext(ctx, r.pool)
	if _, err := exec.Exec(ctx, `DELETE FROM employees WHERE ssn = $1`, ssn); err != nil {
		return translateEmployeePgError(err, ssn)
	}
	return nil
}

// FindByID は ID で社員を取得します。
func (r *EmployeeRepository) FindByID(ctx context.Context, id int64) (*employee.Employee, error) {
	exec := pgdb.QueryerFromContext(ctx, r.pool)
	row := exec.QueryRow(ctx, `
        SELECT `+employeeColumns+`
          FROM employees
         WHERE id = $1
    `, id)

	found, err := scanEmployee(row)
	if err != nil {
		return nil, translateEmployeePgError(err, "")
	}
	return found, nil
}

// FindBySSN は SSN で社員を取得します。
func (r *EmployeeRepository) FindBySSN(ctx context.Context, ssn string) (*employee.Employee, error) {
	exec := pgdb.QueryerFromContext(ctx, r.pool)
	row := exec.QueryRow(ctx, `
        SELECT `+employeeColumns+`
          FROM employees
         WHERE ssn = $1
    `, ssn)

	found, err := scanEmployee(row)
	if err != nil {
		return nil, translateEmployeePgError(err, ssn)
	}
	return found, nil
}

// List は全社員を ID 順で取得します。
func (r *EmployeeRepository) List(ctx context.Context) ([]*employee.Employee, error) {
	exec := pgdb.QueryerFromContext(ctx, r.pool)
	rows, err := exec.Query(ctx, `
        SELECT `+employeeColumns+`
          FROM employees
         ORDER BY id
    `)
	if err != nil {
		return nil, translateEmployeePgError(err, "")
	}
	defer rows.Close()

	employees := make([]*employee.Employee, 0)
	for rows.Next() {
		emp, err := scanEmployee(rows)
		if err != nil {
			return nil, translateEmployeePgError(err, "")
		}
		employees = append(employees, emp)
	}

	if err := rows.Err(); err != nil {
		return nil, translateEmployeePgError(err, "")
	}

	return employees, nil
}

func scanEmployee(row pgx.Row) (*employee.Employee, error) {
	var (
		id          int64
		name        string
		ssn         string
		salary      decimal.Decimal
		joiningDate time.Time
		birthDate   sql.NullTime
		note        string
	)

	if err := row.Scan(
		&id,
		&name,
		&ssn,
		&salary,
		&joiningDate,
		&birthDate,
		&note,
	); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, employee.ErrEmployeeNotFound
		}
		return nil, err
	}

	var birthPtr *time.Time
	if birthDate.Valid {
		d := dateOnly(birthDate.Time)
		birthPtr = &d
	}

	return &employee.Employee{
		ID:          id,
		Name:        name,
		SSN:         ssn,
		Salary:      salary,
		JoiningDate: dateOnly(joiningDate),
		BirthDate:   birthPtr,
		Note:        note,
	}, nil
}

// translateEmployeePgError は PostgreSQL のエラーをドメインエラーに変換します。
// ssn は一意制約違反時に DuplicateSSNError へ載せる値です。
func translateEmployeePgError(err error, ssn string) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, pgx.ErrNoRows) {
		return employee.ErrEmployeeNotFound
	}

	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch pgErr.Code {
		case employeeUniqueViolationCode:
			return &employee.DuplicateSSNError{SSN: ssn}
		case employeeCheckViolationCode, employeeNumericOutOfRangeCode:
			return &employee.ValidationError{Field: "salary", Err: employee.ErrInvalidSalary}
		case employeeSerializationFailureCode, employeeDeadlockDetectedCode:
			return employee.ErrConcurrentModification
		}
	}

	return err
}

func dateOnly(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}

func nullableDate(value *time.Time) any {
	if value == nil {
		return nil
	}
	return dateOnly(*value)
}
