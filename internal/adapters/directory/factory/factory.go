package factory

import (
	"context"
	"fmt"
	"strings"

	"github.com/rs/zerolog"

	"github.com/ogurasousui/spendsync/internal/adapters/directory/google"
	"github.com/ogurasousui/spendsync/internal/adapters/directory/ldap"
	"github.com/ogurasousui/spendsync/internal/core/directory"
	"github.com/ogurasousui/spendsync/internal/core/integration"
	"github.com/ogurasousui/spendsync/internal/platform/config"
)

// 連携設定 (integration.Config) で参照するキーです。
const (
	keyTransport  = "transport"
	keyCustomerID = "customer_id"
	keyDomain     = "domain"
	keyAdminEmail = "admin_email"
	keyURL        = "url"
	keyBaseDN     = "base_dn"
	keyBindDN     = "bind_dn"

	transportLDAP = "ldap"
)

// Factory は連携設定のプロバイダ種別に応じて directory.Provider を生成します。
type Factory struct {
	google   config.GoogleConfig
	ldap     config.LDAPConfig
	ldapDial ldap.Dialer
	logger   zerolog.Logger
}

var _ directory.ProviderFactory = (*Factory)(nil)

// Option は Factory の挙動を変更します。
type Option func(*Factory)

// WithLDAPDialer は LDAP 接続の確立方法を差し替えます。
func WithLDAPDialer(dial ldap.Dialer) Option {
	return func(f *Factory) {
		f.ldapDial = dial
	}
}

// WithLogger はロガーを設定します。
func WithLogger(logger zerolog.Logger) Option {
	return func(f *Factory) {
		f.logger = logger
	}
}

// New は Factory を生成します。設定値は連携設定に値がない場合の既定値として使われます。
func New(googleCfg config.GoogleConfig, ldapCfg config.LDAPConfig, opts ...Option) *Factory {
	f := &Factory{google: googleCfg, ldap: ldapCfg, logger: zerolog.Nop()}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

// ForIntegration は連携設定に対応する Provider を返します。
func (f *Factory) ForIntegration(ctx context.Context, i *integration.Integration) (directory.Provider, error) {
	logger := f.logger.With().
		Str("integration_id", i.ID()).
		Str("provider", string(i.Provider())).
		Logger()

	switch i.Provider() {
	case integration.ProviderGoogleWorkspace:
		cfg := google.Config{
			CustomerID:   firstNonEmpty(i.ConfigString(keyCustomerID), f.google.CustomerID),
			Domain:       i.ConfigString(keyDomain),
			AdminSubject: firstNonEmpty(i.ConfigString(keyAdminEmail), f.google.AdminSubject),
			Endpoint:     f.google.Endpoint,
		}
		logger.Debug().Str("customer_id", cfg.CustomerID).Str("domain", cfg.Domain).Msg("building google workspace provider")
		p, err := google.New(ctx, cfg, i.Credentials())
		if err != nil {
			return nil, err
		}
		return p, nil

	case integration.ProviderMicrosoft365:
		transport := strings.ToLower(i.ConfigString(keyTransport))
		if transport != transportLDAP {
			return nil, fmt.Errorf("%w: microsoft_365 transport %q", directory.ErrProviderNotSupported, transport)
		}
		cfg := ldap.Config{
			URL:                firstNonEmpty(i.ConfigString(keyURL), f.ldap.URL),
			BaseDN:             firstNonEmpty(i.ConfigString(keyBaseDN), f.ldap.BaseDN),
			BindDN:             firstNonEmpty(i.ConfigString(keyBindDN), f.ldap.BindDN),
			BindPassword:       string(i.Credentials()),
			PageSize:           f.ldap.PageSize,
			InsecureSkipVerify: f.ldap.InsecureSkipVerify,
			Timeout:            f.ldap.Timeout,
		}
		logger.Debug().Str("url", cfg.URL).Str("base_dn", cfg.BaseDN).Msg("building ldap provider")
		p, err := ldap.New(cfg, f.ldapDial)
		if err != nil {
			return nil, err
		}
		return p, nil

	default:
		return nil, fmt.Errorf("%w: %s", directory.ErrProviderNotSupported, i.Provider())
	}
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if strings.TrimSpace(v) != "" {
			return v
		}
	}
	return ""
}
