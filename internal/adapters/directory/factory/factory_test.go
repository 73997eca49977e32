package factory

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ogurasousui/spendsync/internal/adapters/directory/ldap"
	"github.com/ogurasousui/spendsync/internal/core/directory"
	"github.com/ogurasousui/spendsync/internal/core/integration"
	"github.com/ogurasousui/spendsync/internal/platform/config"
)

func newIntegration(t *testing.T, provider integration.Provider, cfg map[string]any, creds []byte) *integration.Integration {
	t.Helper()
	i, err := integration.New(integration.NewParams{
		OrganizationID: "org-1",
		Provider:       provider,
		Credentials:    creds,
		Config:         cfg,
	}, time.Now().UTC())
	require.NoError(t, err)
	return i
}

func TestFactory_ForIntegration(t *testing.T) {
	t.Parallel()

	f := New(
		config.GoogleConfig{CustomerID: "my_customer"},
		config.LDAPConfig{URL: "ldaps://dc.example.com", BaseDN: "DC=example,DC=com", BindDN: "CN=svc,DC=example,DC=com", PageSize: 100},
	)
	ctx := context.Background()

	t.Run("microsoft over ldap", func(t *testing.T) {
		t.Parallel()
		p, err := f.ForIntegration(ctx, newIntegration(t, integration.ProviderMicrosoft365, map[string]any{"transport": "LDAP"}, []byte("secret")))
		require.NoError(t, err)
		assert.IsType(t, &ldap.Provider{}, p)
	})

	t.Run("microsoft without transport", func(t *testing.T) {
		t.Parallel()
		_, err := f.ForIntegration(ctx, newIntegration(t, integration.ProviderMicrosoft365, nil, []byte("secret")))
		assert.ErrorIs(t, err, directory.ErrProviderNotSupported)
	})

	t.Run("microsoft without password", func(t *testing.T) {
		t.Parallel()
		_, err := f.ForIntegration(ctx, newIntegration(t, integration.ProviderMicrosoft365, map[string]any{"transport": "ldap"}, nil))
		assert.ErrorIs(t, err, directory.ErrInvalidCredentials)
	})

	t.Run("google without admin subject", func(t *testing.T) {
		t.Parallel()
		_, err := f.ForIntegration(ctx, newIntegration(t, integration.ProviderGoogleWorkspace, nil, []byte(`{}`)))
		assert.ErrorIs(t, err, directory.ErrInvalidCredentials)
	})

	for _, provider := range []integration.Provider{integration.ProviderOkta, integration.ProviderKeycloak} {
		t.Run(string(provider), func(t *testing.T) {
			t.Parallel()
			_, err := f.ForIntegration(ctx, newIntegration(t, provider, nil, nil))
			assert.ErrorIs(t, err, directory.ErrProviderNotSupported)
		})
	}
}

func TestFactory_ForIntegration_LDAPDialerReceivesMergedConfig(t *testing.T) {
	t.Parallel()

	errUnreachable := errors.New("dc unreachable")
	var dialed ldap.Config
	f := New(
		config.GoogleConfig{},
		config.LDAPConfig{URL: "ldaps://dc.example.com", BaseDN: "DC=example,DC=com", BindDN: "CN=svc,DC=example,DC=com", PageSize: 100, Timeout: 5 * time.Second},
		WithLDAPDialer(func(_ context.Context, cfg ldap.Config) (ldap.Conn, error) {
			dialed = cfg
			return nil, errUnreachable
		}),
	)

	p, err := f.ForIntegration(context.Background(), newIntegration(t, integration.ProviderMicrosoft365,
		map[string]any{"transport": "ldap", "base_dn": "OU=Staff,DC=example,DC=com"}, []byte("secret")))
	require.NoError(t, err)

	err = p.TestConnection(context.Background())
	require.ErrorIs(t, err, errUnreachable)
	assert.Equal(t, "ldaps://dc.example.com", dialed.URL)
	assert.Equal(t, "OU=Staff,DC=example,DC=com", dialed.BaseDN)
	assert.Equal(t, "CN=svc,DC=example,DC=com", dialed.BindDN)
	assert.Equal(t, "secret", dialed.BindPassword)
	assert.Equal(t, uint32(100), dialed.PageSize)
	assert.Equal(t, 5*time.Second, dialed.Timeout)
}

func TestFirstNonEmpty(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "b", firstNonEmpty("", "  ", "b", "c"))
	assert.Equal(t, "", firstNonEmpty())
}
