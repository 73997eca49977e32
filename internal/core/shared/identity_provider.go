package shared

// IdentityProvider は社員・部署と紐づく外部 ID プロバイダの種別です。
type IdentityProvider string

const (
	IdentityProviderGoogle    IdentityProvider = "google"
	IdentityProviderMicrosoft IdentityProvider = "microsoft"
	IdentityProviderOkta      IdentityProvider = "okta"
	IdentityProviderKeycloak  IdentityProvider = "keycloak"
)

// IsValid は定義済みの種別かどうかを返します。
func (p IdentityProvider) IsValid() bool {
	switch p {
	case IdentityProviderGoogle, IdentityProviderMicrosoft, IdentityProviderOkta, IdentityProviderKeycloak:
		return true
	default:
		return false
	}
}
