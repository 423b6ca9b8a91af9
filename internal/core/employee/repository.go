package employee

import "context"

// Repository は社員永続化の抽象です。
//
// FindByID と FindBySSN は該当なしの場合 ErrEmployeeNotFound を返します。
// DeleteBySSN は該当なしでもエラーを返しません。
type Repository interface {
	Create(ctx context.Context, employee *Employee) (*Employee, error)
	Update(ctx context.Context, employee *Employee) (*Employee, error)
	DeleteBySSN(ctx context.Context, ssn string) error
	FindByID(ctx context.Context, id int64) (*Employee, error)
	FindBySSN(ctx context.Context, ssn string) (*Employee, error)
	List(ctx context.Context) ([]*Employee, error)
}
