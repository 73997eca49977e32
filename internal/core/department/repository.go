package department

import "context"

// Repository は部署永続化の抽象です。見つからない場合は ErrDepartmentNotFound を返します。
type Repository interface {
	Save(ctx context.Context, department *Department) error
	FindByID(ctx context.Context, organizationID, id string) (*Department, error)
	FindByExternalID(ctx context.Context, organizationID, externalID string) (*Department, error)
	List(ctx context.Context, filter ListDepartmentsFilter) ([]*Department, string, error)
}

// ListDepartmentsFilter は一覧取得用フィルタです。ParentID に空文字を指定するとルート部署のみを返します。
type ListDepartmentsFilter struct {
	OrganizationID string
	ParentID       *string
	Limit          int
	Offset         int
}
