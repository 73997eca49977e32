package integration

import (
	"fmt"

	"github.com/ogurasousui/spendsync/internal/core/shared"
)

// Provider は連携先ディレクトリサービスの種別です。
type Provider string

const (
	ProviderGoogleWorkspace Provider = "google_workspace"
	ProviderMicrosoft365    Provider = "microsoft_365"
	ProviderOkta            Provider = "okta"
	ProviderKeycloak        Provider = "keycloak"
)

// providerMappings は連携種別と社員・部署側の ID プロバイダ種別の唯一の対応表です。
var providerMappings = []struct {
	provider Provider
	identity shared.IdentityProvider
}{
	{ProviderGoogleWorkspace, shared.IdentityProviderGoogle},
	{ProviderMicrosoft365, shared.IdentityProviderMicrosoft},
	{ProviderOkta, shared.IdentityProviderOkta},
	{ProviderKeycloak, shared.IdentityProviderKeycloak},
}

// Providers は定義済みの連携種別を返します。
func Providers() []Provider {
	out := make([]Provider, 0, len(providerMappings))
	for _, m := range providerMappings {
		out = append(out, m.provider)
	}
	return out
}

// IsValid は定義済みの種別かどうかを返します。
func (p Provider) IsValid() bool {
	_, err := p.IdentityProvider()
	return err == nil
}

// IdentityProvider は対応する ID プロバイダ種別を返します。
func (p Provider) IdentityProvider() (shared.IdentityProvider, error) {
	for _, m := range providerMappings {
		if m.provider == p {
			return m.identity, nil
		}
	}
	return "", fmt.Errorf("%w: %q", ErrInvalidProvider, p)
}

// ProviderFromIdentity は ID プロバイダ種別から連携種別を引きます。
func ProviderFromIdentity(identity shared.IdentityProvider) (Provider, error) {
	for _, m := range providerMappings {
		if m.identity == identity {
			return m.provider, nil
		}
	}
	return "", fmt.Errorf("%w: %q", shared.ErrInvalidIdentityProvider, identity)
}
