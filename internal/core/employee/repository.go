package employee

import (
	"context"

	"github.com/ogurasousui/spendsync/internal/core/shared"
)

// Repository は社員永続化の抽象です。検索は組織単位で行い、見つからない場合は ErrEmployeeNotFound を返します。
type Repository interface {
	// Save は ID をキーに作成または更新します。
	Save(ctx context.Context, employee *Employee) error
	FindByID(ctx context.Context, organizationID, id string) (*Employee, error)
	FindByExternalID(ctx context.Context, organizationID, externalID string) (*Employee, error)
	FindByEmail(ctx context.Context, organizationID string, email shared.Email) (*Employee, error)
	List(ctx context.Context, filter ListEmployeesFilter) ([]*Employee, string, error)
}

// ListEmployeesFilter は一覧取得用フィルタです。
type ListEmployeesFilter struct {
	OrganizationID string
	Status         *Status
	DepartmentID   *string
	Limit          int
	Offset         int
}
