package ldap

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"net"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/go-ldap/ldap/v3"

	"github.com/ogurasousui/spendsync/internal/core/directory"
)

const (
	defaultPageSize = 500
	// showDeletedOID は削除済みオブジェクトを検索結果に含める AD 拡張コントロールです。
	showDeletedOID = "1.2.840.113556.1.4.417"

	userFilter    = "(&(objectClass=user)(!(objectClass=computer)))"
	orgUnitFilter = "(objectClass=organizationalUnit)"
)

var (
	userAttributes = []string{
		"objectGUID", "mail", "userPrincipalName", "displayName", "givenName", "sn", "title",
		"telephoneNumber", "department", "manager", "userAccountControl", "isDeleted",
		"whenCreated", "whenChanged", "lastLogonTimestamp", "sAMAccountName",
	}
	orgUnitAttributes = []string{"objectGUID", "ou", "name", "description"}
)

// Config は Active Directory への接続設定です。
type Config struct {
	URL                string
	BaseDN             string
	BindDN             string
	BindPassword       string
	PageSize           uint32
	InsecureSkipVerify bool
	Timeout            time.Duration
}

// Conn は Provider が利用する LDAP 接続の操作です。
type Conn interface {
	Bind(username, password string) error
	Search(req *ldap.SearchRequest) (*ldap.SearchResult, error)
	SearchWithPaging(req *ldap.SearchRequest, pagingSize uint32) (*ldap.SearchResult, error)
	close()
}

// Dialer は LDAP サーバーへの接続を確立します。
type Dialer func(ctx context.Context, cfg Config) (Conn, error)

type dialedConn struct {
	*ldap.Conn
}

func (c dialedConn) close() {
	c.Conn.Close()
}

// DialTLS は ldap:// または ldaps:// の URL へ接続します。
func DialTLS(ctx context.Context, cfg Config) (Conn, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	dialer := &net.Dialer{Timeout: cfg.Timeout}
	c, err := ldap.DialURL(cfg.URL,
		ldap.DialWithDialer(dialer),
		ldap.DialWithTLSConfig(&tls.Config{InsecureSkipVerify: cfg.InsecureSkipVerify}),
	)
	if err != nil {
		return nil, fmt.Errorf("ldap: dial %s: %w", cfg.URL, err)
	}
	if cfg.Timeout > 0 {
		c.SetTimeout(cfg.Timeout)
	}
	return dialedConn{Conn: c}, nil
}

// Provider は LDAP 経由で Active Directory を参照する directory.Provider の実装です。
// ユーザー一覧は初回呼び出しで全件を取得し、以降のページはその結果から切り出します。
type Provider struct {
	cfg  Config
	dial Dialer

	mu    sync.Mutex
	users map[string][]directory.User
}

var _ directory.Provider = (*Provider)(nil)

// New は Provider を生成します。dial が nil の場合は DialTLS を利用します。
func New(cfg Config, dial Dialer) (*Provider, error) {
	if strings.TrimSpace(cfg.URL) == "" || strings.TrimSpace(cfg.BaseDN) == "" {
		return nil, errors.New("ldap: url and base dn are required")
	}
	if cfg.BindDN == "" || cfg.BindPassword == "" {
		return nil, fmt.Errorf("%w: bind dn and password are required", directory.ErrInvalidCredentials)
	}
	if cfg.PageSize == 0 {
		cfg.PageSize = defaultPageSize
	}
	if dial == nil {
		dial = DialTLS
	}
	return &Provider{cfg: cfg, dial: dial, users: map[string][]directory.User{}}, nil
}

func (p *Provider) withConn(ctx context.Context, fn func(Conn) error) error {
	c, err := p.dial(ctx, p.cfg)
	if err != nil {
		return err
	}
	defer c.close()

	if err := c.Bind(p.cfg.BindDN, p.cfg.BindPassword); err != nil {
		if ldap.IsErrorWithCode(err, ldap.LDAPResultInvalidCredentials) {
			return fmt.Errorf("%w: %v", directory.ErrInvalidCredentials, err)
		}
		return fmt.Errorf("ldap: bind: %w", err)
	}
	return fn(c)
}

// TestConnection はバインドとベース DN の参照ができるかを確認します。
func (p *Provider) TestConnection(ctx context.Context) error {
	return p.withConn(ctx, func(c Conn) error {
		req := ldap.NewSearchRequest(p.cfg.BaseDN, ldap.ScopeBaseObject, ldap.NeverDerefAliases,
			1, 0, false, "(objectClass=*)", []string{"distinguishedName"}, nil)
		if _, err := c.Search(req); err != nil {
			return fmt.Errorf("ldap: search base dn: %w", err)
		}
		return nil
	})
}

// ListUsers はユーザーを 1 ページ返します。ページトークンは取得済み結果のオフセットです。
func (p *Provider) ListUsers(ctx context.Context, opts directory.ListUsersOptions) (*directory.UserPage, error) {
	offset := 0
	if opts.PageToken != "" {
		n, err := strconv.Atoi(opts.PageToken)
		if err != nil || n < 0 {
			return nil, fmt.Errorf("ldap: invalid page token %q", opts.PageToken)
		}
		offset = n
	}
	pageSize := opts.PageSize
	if pageSize <= 0 {
		pageSize = int(p.cfg.PageSize)
	}

	all, err := p.loadUsers(ctx, opts)
	if err != nil {
		return nil, err
	}

	if offset > len(all) {
		offset = len(all)
	}
	end := min(offset+pageSize, len(all))

	total := len(all)
	page := &directory.UserPage{
		Items:      append([]directory.User(nil), all[offset:end]...),
		TotalCount: &total,
	}
	if end < len(all) {
		page.NextPageToken = strconv.Itoa(end)
	}
	return page, nil
}

func (p *Provider) loadUsers(ctx context.Context, opts directory.ListUsersOptions) ([]directory.User, error) {
	key := fmt.Sprintf("%s|%s|%t", opts.Status, opts.DepartmentID, opts.IncludeDeleted)

	p.mu.Lock()
	cached, ok := p.users[key]
	p.mu.Unlock()
	if ok {
		return cached, nil
	}

	baseDN := p.cfg.BaseDN
	if opts.DepartmentID != "" {
		_, dn, err := p.findOrgUnit(ctx, opts.DepartmentID)
		if err != nil {
			return nil, err
		}
		baseDN = dn
	}

	var controls []ldap.Control
	if opts.IncludeDeleted {
		controls = append(controls, ldap.NewControlString(showDeletedOID, true, ""))
	}

	var users []directory.User
	err := p.withConn(ctx, func(c Conn) error {
		req := ldap.NewSearchRequest(baseDN, ldap.ScopeWholeSubtree, ldap.NeverDerefAliases,
			0, 0, false, userFilter, userAttributes, controls)
		res, err := c.SearchWithPaging(req, p.cfg.PageSize)
		if err != nil {
			return fmt.Errorf("ldap: search users: %w", err)
		}
		if err := ctx.Err(); err != nil {
			return err
		}
		for _, user := range toUsers(res.Entries) {
			if opts.Status != "" && user.Status != opts.Status {
				continue
			}
			users = append(users, user)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	p.mu.Lock()
	p.users[key] = users
	p.mu.Unlock()
	return users, nil
}

// ListOrgUnits はベース DN 配下の組織単位をすべて返します。
func (p *Provider) ListOrgUnits(ctx context.Context) ([]directory.OrgUnit, error) {
	var entries []*ldap.Entry
	err := p.withConn(ctx, func(c Conn) error {
		req := ldap.NewSearchRequest(p.cfg.BaseDN, ldap.ScopeWholeSubtree, ldap.NeverDerefAliases,
			0, 0, false, orgUnitFilter, orgUnitAttributes, nil)
		res, err := c.SearchWithPaging(req, p.cfg.PageSize)
		if err != nil {
			return fmt.Errorf("ldap: search org units: %w", err)
		}
		entries = res.Entries
		return nil
	})
	if err != nil {
		return nil, err
	}
	return toOrgUnits(entries, p.cfg.BaseDN), nil
}

// GetUserByEmail は mail または userPrincipalName が一致するユーザーを返します。
func (p *Provider) GetUserByEmail(ctx context.Context, email string) (*directory.User, error) {
	escaped := ldap.EscapeFilter(strings.TrimSpace(email))
	filter := fmt.Sprintf("(&%s(|(mail=%s)(userPrincipalName=%s)))", userFilter, escaped, escaped)
	return p.findUser(ctx, filter)
}

// GetUserByID は objectGUID でユーザーを返します。
func (p *Provider) GetUserByID(ctx context.Context, id string) (*directory.User, error) {
	guidFilter, err := objectGUIDFilter(id)
	if err != nil {
		return nil, directory.ErrUserNotFound
	}
	return p.findUser(ctx, fmt.Sprintf("(&%s%s)", userFilter, guidFilter))
}

func (p *Provider) findUser(ctx context.Context, filter string) (*directory.User, error) {
	var found *directory.User
	err := p.withConn(ctx, func(c Conn) error {
		req := ldap.NewSearchRequest(p.cfg.BaseDN, ldap.ScopeWholeSubtree, ldap.NeverDerefAliases,
			1, 0, false, filter, userAttributes, nil)
		res, err := c.Search(req)
		if err != nil && !ldap.IsErrorWithCode(err, ldap.LDAPResultSizeLimitExceeded) {
			return fmt.Errorf("ldap: search user: %w", err)
		}
		if res == nil || len(res.Entries) == 0 {
			return directory.ErrUserNotFound
		}
		user := toUser(res.Entries[0])
		found = &user
		return nil
	})
	if err != nil {
		return nil, err
	}
	return found, nil
}

// GetOrgUnitByID は objectGUID で組織単位を返します。
func (p *Provider) GetOrgUnitByID(ctx context.Context, id string) (*directory.OrgUnit, error) {
	unit, _, err := p.findOrgUnit(ctx, id)
	if err != nil {
		return nil, err
	}
	return unit, nil
}

func (p *Provider) findOrgUnit(ctx context.Context, id string) (*directory.OrgUnit, string, error) {
	guidFilter, err := objectGUIDFilter(id)
	if err != nil {
		return nil, "", directory.ErrOrgUnitNotFound
	}

	var entry *ldap.Entry
	err = p.withConn(ctx, func(c Conn) error {
		req := ldap.NewSearchRequest(p.cfg.BaseDN, ldap.ScopeWholeSubtree, ldap.NeverDerefAliases,
			1, 0, false, fmt.Sprintf("(&%s%s)", orgUnitFilter, guidFilter), orgUnitAttributes, nil)
		res, err := c.Search(req)
		if err != nil && !ldap.IsErrorWithCode(err, ldap.LDAPResultSizeLimitExceeded) {
			return fmt.Errorf("ldap: search org unit: %w", err)
		}
		if res == nil || len(res.Entries) == 0 {
			return directory.ErrOrgUnitNotFound
		}
		entry = res.Entries[0]
		return nil
	})
	if err != nil {
		return nil, "", err
	}

	units := toOrgUnits([]*ldap.Entry{entry}, p.cfg.BaseDN)
	return &units[0], entry.DN, nil
}
