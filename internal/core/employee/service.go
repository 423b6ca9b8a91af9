package employee

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/shopspring/decimal"
	"golang.org/x/text/unicode/norm"
)

// Clock は現在時刻を提供します。
type Clock interface {
	Now() time.Time
}

type realClock struct{}

func (realClock) Now() time.Time {
	return time.Now().UTC()
}

// TransactionManager はトランザクション制御の抽象化です。
type TransactionManager interface {
	WithinReadOnly(ctx context.Context, fn func(context.Context) error) error
	WithinReadWrite(ctx context.Context, fn func(context.Context) error) error
}

type noopTransactionManager struct{}

func (noopTransactionManager) WithinReadOnly(ctx context.Context, fn func(context.Context) error) error {
	if fn == nil {
		return nil
	}
	return fn(ctx)
}

func (noopTransactionManager) WithinReadWrite(ctx context.Context, fn func(context.Context) error) error {
	if fn == nil {
		return nil
	}
	return fn(ctx)
}

const (
	minNameLength = 3
	maxNameLength = 50
	maxSSNLength  = 30
	maxNoteLength = 2000
	salaryPlaces  = 2
)

var ssnPattern = regexp.MustCompile(`^[A-Za-z0-9-]+$`)

// maxSalaryExclusive は NUMERIC(12,2) に収まらない最小の値です。
var maxSalaryExclusive = decimal.New(1, 10)

// Service は社員に関するユースケースをまとめます。
type Service struct {
	repo  Repository
	clock Clock
	tx    TransactionManager
}

// UseCase は社員ユースケースの公開インターフェースです。
type UseCase interface {
	GetEmployee(ctx context.Context, id int64) (*Employee, error)
	GetEmployeeBySSN(ctx context.Context, ssn string) (*Employee, error)
	ListEmployees(ctx context.Context) ([]*Employee, error)
	RegisterEmployee(ctx context.Context, in RegisterEmployeeInput) (*Employee, error)
	UpdateEmployee(ctx context.Context, in UpdateEmployeeInput) (*Employee, error)
	DeleteEmployeeBySSN(ctx context.Context, ssn string) error
	IsSSNUnique(ctx context.Context, id *int64, ssn string) (bool, error)
}

var _ UseCase = (*Service)(nil)

// NewService は Service を生成します。
func NewService(repo Repository, clock Clock, tx TransactionManager) *Service {
	if clock == nil {
		clock = realClock{}
	}
	if tx == nil {
		tx = noopTransactionManager{}
	}
	return &Service{repo: repo, clock: clock, tx: tx}
}

// RegisterEmployeeInput は社員登録時の入力です。ID はストアが採番します。
type RegisterEmployeeInput struct {
	Name        string
	SSN         string
	Salary      decimal.Decimal
	JoiningDate time.Time
	BirthDate   *time.Time
	Note        string
}

// UpdateEmployeeInput は社員更新時の入力です。可変項目はすべて上書きされます。
type UpdateEmployeeInput struct {
	ID          int64
	Name        string
	SSN         string
	Salary      decimal.Decimal
	JoiningDate time.Time
	BirthDate   *time.Time
	Note        string
}

// employeeFields は検証・正規化済みの可変項目です。
type employeeFields struct {
	name        string
	ssn         string
	salary      decimal.Decimal
	joiningDate time.Time
	birthDate   *time.Time
	note        string
}

// GetEmployee は ID で社員を取得します。該当なしは ErrEmployeeNotFound です。
func (s *Service) GetEmployee(ctx context.Context, id int64) (*Employee, error) {
	if id <= 0 {
		return nil, invalid("id", ErrInvalidID)
	}

	var result *Employee
	if err := s.tx.WithinReadOnly(ctx, func(txCtx context.Context) error {
		found, err := s.repo.FindByID(txCtx, id)
		if err != nil {
			return err
		}
		result = found
		return nil
	}); err != nil {
		return nil, wrapStorageError(err)
	}

	return result, nil
}

// GetEmployeeBySSN は SSN で社員を取得します。該当なしは ErrEmployeeNotFound です。
func (s *Service) GetEmployeeBySSN(ctx context.Context, ssn string) (*Employee, error) {
	normalized, err := normalizeSSN(ssn)
	if err != nil {
		return nil, err
	}

	var result *Employee
	if err := s.tx.WithinReadOnly(ctx, func(txCtx context.Context) error {
		found, err := s.repo.FindBySSN(txCtx, normalized)
		if err != nil {
			return err
		}
		result = found
		return nil
	}); err != nil {
		return nil, wrapStorageError(err)
	}

	return result, nil
}

// ListEmployees は全社員を取得します。順序は保証しません。
func (s *Service) ListEmployees(ctx context.Context) ([]*Employee, error) {
	var employees []*Employee
	if err := s.tx.WithinReadOnly(ctx, func(txCtx context.Context) error {
		found, err := s.repo.List(txCtx)
		if err != nil {
			return err
		}
		employees = found
		return nil
	}); err != nil {
		return nil, wrapStorageError(err)
	}

	if employees == nil {
		employees = []*Employee{}
	}
	return employees, nil
}

// RegisterEmployee は新しい社員を登録します。SSN が既に存在する場合は書き込みを行わず DuplicateSSNError を返します。
func (s *Service) RegisterEmployee(ctx context.Context, in RegisterEmployeeInput) (*Employee, error) {
	fields, err := s.normalizeFields(in.Name, in.SSN, in.Salary, in.JoiningDate, in.BirthDate, in.Note)
	if err != nil {
		return nil, err
	}

	var created *Employee
	if err := s.tx.WithinReadWrite(ctx, func(txCtx context.Context) error {
		if err := s.ensureSSNAvailable(txCtx, 0, fields.ssn); err != nil {
			return err
		}

		emp := &Employee{}
		fields.applyTo(emp)

		result, err := s.repo.Create(txCtx, emp)
		if err != nil {
			return err
		}

		created = result
		return nil
	}); err != nil {
		return nil, wrapStorageError(err)
	}

	return created, nil
}

// UpdateEmployee は既存社員の可変項目をすべて上書きします。
// 他の社員の SSN を奪う更新は DuplicateSSNError、対象が存在しない場合は ErrEmployeeNotFound を返します。
func (s *Service) UpdateEmployee(ctx context.Context, in UpdateEmployeeInput) (*Employee, error) {
	if in.ID <= 0 {
		return nil, invalid("id", ErrInvalidID)
	}

	fields, err := s.normalizeFields(in.Name, in.SSN, in.Salary, in.JoiningDate, in.BirthDate, in.Note)
	if err != nil {
		return nil, err
	}

	var updated *Employee
	if err := s.tx.WithinReadWrite(ctx, func(txCtx context.Context) error {
		if err := s.ensureSSNAvailable(txCtx, in.ID, fields.ssn); err != nil {
			return err
		}

		existing, err := s.repo.FindByID(txCtx, in.ID)
		if err != nil {
			return err
		}

		fields.applyTo(existing)

		result, err := s.repo.Update(txCtx, existing)
		if err != nil {
			return err
		}

		updated = result
		return nil
	}); err != nil {
		return nil, wrapStorageError(err)
	}

	return updated, nil
}

// DeleteEmployeeBySSN は SSN に一致する社員を削除します。存在しない SSN の削除は成功扱いです。
func (s *Service) DeleteEmployeeBySSN(ctx context.Context, ssn string) error {
	normalized, err := normalizeSSN(ssn)
	if err != nil {
		return err
	}

	if err := s.tx.WithinReadWrite(ctx, func(txCtx context.Context) error {
		return s.repo.DeleteBySSN(txCtx, normalized)
	}); err != nil {
		return wrapStorageError(err)
	}

	return nil
}

// IsSSNUnique は SSN が未使用、または id の社員自身が保持している場合に true を返します。
func (s *Service) IsSSNUnique(ctx context.Context, id *int64, ssn string) (bool, error) {
	normalized, err := normalizeSSN(ssn)
	if err != nil {
		return false, err
	}

	var ownerID int64
	if id != nil {
		ownerID = *id
	}

	unique := false
	if err := s.tx.WithinReadOnly(ctx, func(txCtx context.Context) error {
		err := s.ensureSSNAvailable(txCtx, ownerID, normalized)
		switch {
		case err == nil:
			unique = true
			return nil
		case errors.Is(err, ErrSSNAlreadyExists):
			return nil
		default:
			return err
		}
	}); err != nil {
		return false, wrapStorageError(err)
	}

	return unique, nil
}

// ensureSSNAvailable は ssn が未使用か ownerID の社員のものであることを確認します。
// ownerID が 0 の場合は新規登録として扱います。
func (s *Service) ensureSSNAvailable(ctx context.Context, ownerID int64, ssn string) error {
	emp, err := s.repo.FindBySSN(ctx, ssn)
	if err != nil && !errors.Is(err, ErrEmployeeNotFound) {
		return err
	}
	if emp != nil && (ownerID == 0 || emp.ID != ownerID) {
		return &DuplicateSSNError{SSN: ssn}
	}
	return nil
}

func (s *Service) normalizeFields(name, ssn string, salary decimal.Decimal, joiningDate time.Time, birthDate *time.Time, note string) (*employeeFields, error) {
	normalizedName, err := normalizeName(name)
	if err != nil {
		return nil, err
	}

	normalizedSSN, err := normalizeSSN(ssn)
	if err != nil {
		return nil, err
	}

	normalizedSalary, err := normalizeSalary(salary)
	if err != nil {
		return nil, err
	}

	if joiningDate.IsZero() {
		return nil, invalid("joining_date", ErrInvalidJoiningDate)
	}
	joined := normalizeDate(joiningDate)

	var born *time.Time
	if birthDate != nil && !birthDate.IsZero() {
		d := normalizeDate(*birthDate)
		today := normalizeDate(s.clock.Now())
		if d.After(today) || d.After(joined) {
			return nil, invalid("birth_date", ErrInvalidBirthDate)
		}
		born = &d
	}

	normalizedNote := strings.TrimSpace(note)
	if utf8.RuneCountInString(normalizedNote) > maxNoteLength {
		return nil, invalid("note", ErrInvalidNote)
	}

	return &employeeFields{
		name:        normalizedName,
		ssn:         normalizedSSN,
		salary:      normalizedSalary,
		joiningDate: joined,
		birthDate:   born,
		note:        normalizedNote,
	}, nil
}

func (f *employeeFields) applyTo(emp *Employee) {
	emp.Name = f.name
	emp.SSN = f.ssn
	emp.Salary = f.salary
	emp.JoiningDate = f.joiningDate
	emp.BirthDate = cloneTime(f.birthDate)
	emp.Note = f.note
}

func normalizeName(raw string) (string, error) {
	trimmed := norm.NFC.String(strings.TrimSpace(raw))
	length := utf8.RuneCountInString(trimmed)
	if length < minNameLength || length > maxNameLength {
		return "", invalid("name", ErrInvalidName)
	}
	return trimmed, nil
}

func normalizeSSN(raw string) (string, error) {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" || len(trimmed) > maxSSNLength || !ssnPattern.MatchString(trimmed) {
		return "", invalid("ssn", ErrInvalidSSN)
	}
	return trimmed, nil
}

func normalizeSalary(salary decimal.Decimal) (decimal.Decimal, error) {
	rounded := salary.Round(salaryPlaces)
	if rounded.IsNegative() || rounded.GreaterThanOrEqual(maxSalaryExclusive) {
		return decimal.Decimal{}, invalid("salary", ErrInvalidSalary)
	}
	return rounded, nil
}

func normalizeDate(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}

func cloneTime(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	clone := *t
	return &clone
}

// wrapStorageError はドメインエラー以外を ErrStorage でラップします。
func wrapStorageError(err error) error {
	var validationErr *ValidationError
	switch {
	case err == nil:
		return nil
	case errors.Is(err, ErrEmployeeNotFound),
		errors.Is(err, ErrSSNAlreadyExists),
		errors.Is(err, ErrConcurrentModification),
		errors.Is(err, ErrStorage),
		errors.As(err, &validationErr):
		return err
	default:
		return fmt.Errorf("%w: %w", ErrStorage, err)
	}
}
