package google

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"golang.org/x/oauth2/google"
	admin "google.golang.org/api/admin/directory/v1"
	"google.golang.org/api/googleapi"
	"google.golang.org/api/option"

	"github.com/ogurasousui/spendsync/internal/core/directory"
)

const (
	defaultPageSize = 500
	maxPageSize     = 500

	// deletedPhasePrefix は削除済みユーザーの一覧取得フェーズに入ったページトークンの接頭辞です。
	deletedPhasePrefix = "deleted:"
)

// Config は Google Workspace への接続設定です。
type Config struct {
	CustomerID   string
	Domain       string
	AdminSubject string
	Endpoint     string
}

// Provider は Admin SDK Directory API を利用した directory.Provider の実装です。
type Provider struct {
	svc        *admin.Service
	customerID string
	domain     string
}

var _ directory.Provider = (*Provider)(nil)

// New はサービスアカウントの JSON 鍵からドメイン全体の委任を利用する Provider を生成します。
func New(ctx context.Context, cfg Config, credentials []byte) (*Provider, error) {
	if len(credentials) == 0 {
		return nil, fmt.Errorf("%w: google service account key is empty", directory.ErrInvalidCredentials)
	}
	if strings.TrimSpace(cfg.AdminSubject) == "" {
		return nil, fmt.Errorf("%w: admin subject is required for domain-wide delegation", directory.ErrInvalidCredentials)
	}

	jwtCfg, err := google.JWTConfigFromJSON(credentials,
		admin.AdminDirectoryUserReadonlyScope,
		admin.AdminDirectoryOrgunitReadonlyScope,
	)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", directory.ErrInvalidCredentials, err)
	}
	jwtCfg.Subject = cfg.AdminSubject

	return NewWithHTTPClient(ctx, cfg, jwtCfg.Client(ctx))
}

// NewWithHTTPClient は認証済みの HTTP クライアントを使って Provider を生成します。
func NewWithHTTPClient(ctx context.Context, cfg Config, client *http.Client) (*Provider, error) {
	opts := []option.ClientOption{option.WithHTTPClient(client)}
	if cfg.Endpoint != "" {
		opts = append(opts, option.WithEndpoint(cfg.Endpoint))
	}

	svc, err := admin.NewService(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("google: create directory service: %w", err)
	}

	customerID := cfg.CustomerID
	if customerID == "" && cfg.Domain == "" {
		customerID = "my_customer"
	}

	return &Provider{svc: svc, customerID: customerID, domain: cfg.Domain}, nil
}

// TestConnection はユーザー一覧を 1 件取得できるかで疎通を確認します。
func (p *Provider) TestConnection(ctx context.Context) error {
	if _, err := p.usersCall(ctx).MaxResults(1).Do(); err != nil {
		return fmt.Errorf("google: test connection: %w", err)
	}
	return nil
}

// ListUsers はユーザーを 1 ページ取得します。
// IncludeDeleted の場合、通常ユーザーを読み終えた後に削除済みユーザーを続けて返します。
func (p *Provider) ListUsers(ctx context.Context, opts directory.ListUsersOptions) (*directory.UserPage, error) {
	pageSize := opts.PageSize
	if pageSize <= 0 {
		pageSize = defaultPageSize
	}
	if pageSize > maxPageSize {
		pageSize = maxPageSize
	}

	deletedPhase, token := strings.HasPrefix(opts.PageToken, deletedPhasePrefix), opts.PageToken
	if deletedPhase {
		token = strings.TrimPrefix(token, deletedPhasePrefix)
	}
	if opts.Status == directory.UserStatusDeleted {
		if !opts.IncludeDeleted {
			return &directory.UserPage{}, nil
		}
		deletedPhase = true
	}

	call := p.usersCall(ctx).MaxResults(int64(pageSize)).OrderBy("email")
	if token != "" {
		call = call.PageToken(token)
	}
	if deletedPhase {
		call = call.ShowDeleted("true")
	} else {
		query, err := p.userQuery(ctx, opts)
		if err != nil {
			return nil, err
		}
		if query != "" {
			call = call.Query(query)
		}
	}

	res, err := call.Do()
	if err != nil {
		return nil, fmt.Errorf("google: list users: %w", err)
	}

	page := &directory.UserPage{Items: make([]directory.User, 0, len(res.Users))}
	for _, u := range res.Users {
		user := toUser(u, deletedPhase)
		if opts.Status != "" && user.Status != opts.Status {
			continue
		}
		page.Items = append(page.Items, user)
	}

	switch {
	case res.NextPageToken != "" && deletedPhase:
		page.NextPageToken = deletedPhasePrefix + res.NextPageToken
	case res.NextPageToken != "":
		page.NextPageToken = res.NextPageToken
	case !deletedPhase && opts.IncludeDeleted && opts.Status == "":
		page.NextPageToken = deletedPhasePrefix
	}

	return page, nil
}

func (p *Provider) userQuery(ctx context.Context, opts directory.ListUsersOptions) (string, error) {
	var terms []string
	switch opts.Status {
	case directory.UserStatusActive:
		terms = append(terms, "isSuspended=false")
	case directory.UserStatusSuspended:
		terms = append(terms, "isSuspended=true")
	}

	if opts.DepartmentID != "" {
		unit, err := p.GetOrgUnitByID(ctx, opts.DepartmentID)
		if err != nil {
			return "", err
		}
		terms = append(terms, fmt.Sprintf("orgUnitPath='%s'", unit.Path))
	}

	return strings.Join(terms, " "), nil
}

// ListOrgUnits はすべての組織部門を取得します。
func (p *Provider) ListOrgUnits(ctx context.Context) ([]directory.OrgUnit, error) {
	res, err := p.svc.Orgunits.List(p.customerKey()).Type("all").Context(ctx).Do()
	if err != nil {
		return nil, fmt.Errorf("google: list org units: %w", err)
	}

	units := make([]directory.OrgUnit, 0, len(res.OrganizationUnits))
	for _, ou := range res.OrganizationUnits {
		units = append(units, toOrgUnit(ou))
	}
	return units, nil
}

// GetUserByEmail はメールアドレスでユーザーを取得します。
func (p *Provider) GetUserByEmail(ctx context.Context, email string) (*directory.User, error) {
	return p.getUser(ctx, email)
}

// GetUserByID は Google のユーザー ID でユーザーを取得します。
func (p *Provider) GetUserByID(ctx context.Context, id string) (*directory.User, error) {
	return p.getUser(ctx, id)
}

func (p *Provider) getUser(ctx context.Context, key string) (*directory.User, error) {
	u, err := p.svc.Users.Get(key).Projection("full").Context(ctx).Do()
	if err != nil {
		if isNotFound(err) {
			return nil, directory.ErrUserNotFound
		}
		return nil, fmt.Errorf("google: get user: %w", err)
	}
	user := toUser(u, false)
	return &user, nil
}

// GetOrgUnitByID は組織部門 ID で組織部門を取得します。
func (p *Provider) GetOrgUnitByID(ctx context.Context, id string) (*directory.OrgUnit, error) {
	key := id
	if !strings.HasPrefix(key, "id:") {
		key = "id:" + key
	}
	ou, err := p.svc.Orgunits.Get(p.customerKey(), key).Context(ctx).Do()
	if err != nil {
		if isNotFound(err) {
			return nil, directory.ErrOrgUnitNotFound
		}
		return nil, fmt.Errorf("google: get org unit: %w", err)
	}
	unit := toOrgUnit(ou)
	return &unit, nil
}

func (p *Provider) usersCall(ctx context.Context) *admin.UsersListCall {
	call := p.svc.Users.List().Projection("full").Context(ctx)
	if p.domain != "" {
		return call.Domain(p.domain)
	}
	return call.Customer(p.customerID)
}

func (p *Provider) customerKey() string {
	if p.customerID != "" {
		return p.customerID
	}
	return "my_customer"
}

func isNotFound(err error) bool {
	var apiErr *googleapi.Error
	return errors.As(err, &apiErr) && apiErr.Code == http.StatusNotFound
}
