package directory

import (
	"context"
	"time"

	"github.com/ogurasousui/spendsync/internal/core/integration"
)

// UserStatus は外部ディレクトリ上のアカウント状態です。
type UserStatus string

const (
	UserStatusActive    UserStatus = "active"
	UserStatusSuspended UserStatus = "suspended"
	UserStatusArchived  UserStatus = "archived"
	UserStatusDeleted   UserStatus = "deleted"
)

// User は外部ディレクトリのユーザーです。任意項目は空文字または nil です。
type User struct {
	ExternalID     string
	Email          string
	FullName       string
	FirstName      string
	LastName       string
	Status         UserStatus
	JobTitle       string
	DepartmentID   string
	DepartmentName string
	ManagerEmail   string
	PhoneNumber    string
	StartDate      *time.Time
	LastLoginAt    *time.Time
	SuspendedAt    *time.Time
	Metadata       map[string]any
}

// OrgUnit は外部ディレクトリの組織単位です。Path は "/A/B" 形式です。
type OrgUnit struct {
	ExternalID  string
	Name        string
	Path        string
	ParentID    string
	Description string
	Metadata    map[string]any
}

// ListUsersOptions はユーザー一覧取得の条件です。
type ListUsersOptions struct {
	PageSize       int
	PageToken      string
	Status         UserStatus
	DepartmentID   string
	IncludeDeleted bool
}

// UserPage はユーザー一覧の 1 ページです。NextPageToken が空なら最終ページです。
type UserPage struct {
	Items         []User
	NextPageToken string
	TotalCount    *int
}

// Provider は外部ディレクトリへのアクセスを抽象化します。
type Provider interface {
	TestConnection(ctx context.Context) error
	ListUsers(ctx context.Context, opts ListUsersOptions) (*UserPage, error)
	ListOrgUnits(ctx context.Context) ([]OrgUnit, error)
	GetUserByEmail(ctx context.Context, email string) (*User, error)
	GetUserByID(ctx context.Context, id string) (*User, error)
	GetOrgUnitByID(ctx context.Context, id string) (*OrgUnit, error)
}

// ProviderFactory は連携設定から Provider を組み立てます。
type ProviderFactory interface {
	ForIntegration(ctx context.Context, integration *integration.Integration) (Provider, error)
}

// ProviderFactoryFunc は関数を ProviderFactory として扱います。
type ProviderFactoryFunc func(ctx context.Context, integration *integration.Integration) (Provider, error)

// ForIntegration は f を呼び出します。
func (f ProviderFactoryFunc) ForIntegration(ctx context.Context, i *integration.Integration) (Provider, error) {
	return f(ctx, i)
}

// ConnectionTester は ProviderFactory を integration.ConnectionTester として使うためのアダプタです。
type ConnectionTester struct {
	Factory ProviderFactory
}

// TestConnection は連携設定に対応する Provider で疎通確認を行います。
func (c ConnectionTester) TestConnection(ctx context.Context, i *integration.Integration) error {
	provider, err := c.Factory.ForIntegration(ctx, i)
	if err != nil {
		return err
	}
	return provider.TestConnection(ctx)
}
