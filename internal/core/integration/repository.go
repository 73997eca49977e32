package integration

import "context"

// Repository は連携設定の永続化を行うインターフェースです。
// 見つからない場合は ErrIntegrationNotFound を返します。
type Repository interface {
	Save(ctx context.Context, integration *Integration) error
	FindByID(ctx context.Context, id string) (*Integration, error)
	FindByOrganizationAndProvider(ctx context.Context, organizationID string, provider Provider) (*Integration, error)
	List(ctx context.Context, filter ListIntegrationsFilter) ([]*Integration, string, error)
}

// ListIntegrationsFilter は一覧取得時の検索条件です。空の項目は絞り込みません。
type ListIntegrationsFilter struct {
	OrganizationID string
	Statuses       []Status
	Limit          int
	Offset         int
}
