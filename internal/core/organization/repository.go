package organization

import "context"

// Repository は組織の永続化を行うインターフェースです。
type Repository interface {
	Create(ctx context.Context, org *Organization) (*Organization, error)
	Update(ctx context.Context, org *Organization) (*Organization, error)
	FindByID(ctx context.Context, id string) (*Organization, error)
	FindBySlug(ctx context.Context, slug string) (*Organization, error)
	List(ctx context.Context, filter ListOrganizationsFilter) ([]*Organization, string, error)
}

// ListOrganizationsFilter は一覧取得時の検索条件を表します。
type ListOrganizationsFilter struct {
	Limit  int
	Offset int
	Status *Status
}
