package employee

import (
	"time"

	"github.com/shopspring/decimal"
)

// Employee は社員エンティティです。
type Employee struct {
	ID          int64
	Name        string
	SSN         string
	Salary      decimal.Decimal
	JoiningDate time.Time
	BirthDate   *time.Time
	Note        string
}
