package employee

import (
	"errors"
	"fmt"
)

var (
	ErrInvalidID              = errors.New("employee: invalid id")
	ErrInvalidName            = errors.New("employee: invalid name")
	ErrInvalidSSN             = errors.New("employee: invalid ssn")
	ErrInvalidSalary          = errors.New("employee: invalid salary")
	ErrInvalidJoiningDate     = errors.New("employee: invalid joining date")
	ErrInvalidBirthDate       = errors.New("employee: invalid birth date")
	ErrInvalidNote            = errors.New("employee: invalid note")
	ErrEmployeeNotFound       = errors.New("employee: not found")
	ErrSSNAlreadyExists       = errors.New("employee: ssn already exists")
	ErrConcurrentModification = errors.New("employee: concurrent modification")
	ErrStorage                = errors.New("employee: storage failure")
)

// ValidationError は入力項目単位の検証エラーです。
type ValidationError struct {
	Field string
	Err   error
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("%s: %v", e.Field, e.Err)
}

func (e *ValidationError) Unwrap() error {
	return e.Err
}

func invalid(field string, err error) error {
	return &ValidationError{Field: field, Err: err}
}

// DuplicateSSNError は SSN の重複を表し、衝突した値を保持します。
type DuplicateSSNError struct {
	SSN string
}

func (e *DuplicateSSNError) Error() string {
	return fmt.Sprintf("employee: ssn %q already exists", e.SSN)
}

// Is により errors.Is(err, ErrSSNAlreadyExists) が成立します。
func (e *DuplicateSSNError) Is(target error) bool {
	return target == ErrSSNAlreadyExists
}
