package handler

import (
	"strings"
	"time"

	"github.com/ogurasousui/personnel-records/internal/core/employee"
	"github.com/shopspring/decimal"
)

const dateLayout = "2006-01-02"

// EmployeeRequest は登録・更新リクエストの本文です。日付は YYYY-MM-DD 形式です。
type EmployeeRequest struct {
	Name        string           `json:"name"`
	SSN         string           `json:"ssn"`
	Salary      *decimal.Decimal `json:"salary"`
	JoiningDate string           `json:"joining_date"`
	BirthDate   string           `json:"birth_date"`
	Note        string           `json:"note"`
}

// EmployeeResponse は社員の表現です。
type EmployeeResponse struct {
	ID          int64           `json:"id"`
	Name        string          `json:"name"`
	SSN         string          `json:"ssn"`
	Salary      decimal.Decimal `json:"salary"`
	JoiningDate string          `json:"joining_date"`
	BirthDate   *string         `json:"birth_date,omitempty"`
	Note        string          `json:"note"`
}

// EmployeeListResponse は社員一覧の表現です。
type EmployeeListResponse struct {
	Employees []EmployeeResponse `json:"employees"`
}

// SSNUniqueResponse は SSN 重複確認の結果です。
type SSNUniqueResponse struct {
	SSN    string `json:"ssn"`
	Unique bool   `json:"unique"`
}

// ErrorResponse は HTTP エラーの本文です。Field は項目単位のエラーでのみ設定されます。
type ErrorResponse struct {
	Code    string `json:"code"`
	Field   string `json:"field,omitempty"`
	Message string `json:"message"`
}

// parsedEmployee はリクエストから取り出した、コアへ渡す前の値です。
type parsedEmployee struct {
	name        string
	ssn         string
	salary      decimal.Decimal
	joiningDate time.Time
	birthDate   *time.Time
	note        string
}

func (r EmployeeRequest) parse() (*parsedEmployee, error) {
	if r.Salary == nil {
		return nil, &employee.ValidationError{Field: "salary", Err: employee.ErrInvalidSalary}
	}

	joined, err := parseDate(r.JoiningDate)
	if err != nil || joined == nil {
		return nil, &employee.ValidationError{Field: "joining_date", Err: employee.ErrInvalidJoiningDate}
	}

	born, err := parseDate(r.BirthDate)
	if err != nil {
		return nil, &employee.ValidationError{Field: "birth_date", Err: employee.ErrInvalidBirthDate}
	}

	return &parsedEmployee{
		name:        r.Name,
		ssn:         r.SSN,
		salary:      *r.Salary,
		joiningDate: *joined,
		birthDate:   born,
		note:        r.Note,
	}, nil
}

func parseDate(raw string) (*time.Time, error) {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return nil, nil
	}
	t, err := time.ParseInLocation(dateLayout, trimmed, time.UTC)
	if err != nil {
		return nil, err
	}
	return &t, nil
}

func toEmployeeResponse(emp *employee.Employee) EmployeeResponse {
	resp := EmployeeResponse{
		ID:          emp.ID,
		Name:        emp.Name,
		SSN:         emp.SSN,
		Salary:      emp.Salary,
		JoiningDate: emp.JoiningDate.Format(dateLayout),
		Note:        emp.Note,
	}
	if emp.BirthDate != nil {
		born := emp.BirthDate.Format(dateLayout)
		resp.BirthDate = &born
	}
	return resp
}
