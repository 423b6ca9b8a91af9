package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/ogurasousui/personnel-records/internal/core/employee"
	pgdb "github.com/ogurasousui/personnel-records/internal/platform/db/postgres"
)

// TransactionManager は pgdb.TransactionManager をラップし、
// コミット時の直列化失敗とデッドロックを employee.ErrConcurrentModification に変換します。
type TransactionManager struct {
	inner *pgdb.TransactionManager
}

var _ employee.TransactionManager = (*TransactionManager)(nil)

// NewTransactionManager は TransactionManager を生成します。
func NewTransactionManager(inner *pgdb.TransactionManager) *TransactionManager {
	return &TransactionManager{inner: inner}
}

// WithinReadOnly は読み取り専用トランザクション内で fn を実行します。
func (m *TransactionManager) WithinReadOnly(ctx context.Context, fn func(context.Context) error) error {
	return translateTxError(m.inner.WithinReadOnly(ctx, fn))
}

// WithinReadWrite は SERIALIZABLE トランザクション内で fn を実行します。
func (m *TransactionManager) WithinReadWrite(ctx context.Context, fn func(context.Context) error) error {
	return translateTxError(m.inner.WithinReadWrite(ctx, fn))
}

func translateTxError(err error) error {
	if err == nil || errors.Is(err, employee.ErrConcurrentModification) {
		return err
	}

	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch pgErr.Code {
		case employeeSerializationFailureCode, employeeDeadlockDetectedCode:
			return fmt.Errorf("%w: %w", employee.ErrConcurrentModification, err)
		}
	}
	return err
}
