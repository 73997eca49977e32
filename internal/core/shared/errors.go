package shared

import "errors"

var (
	// ErrInvalidEmail はメールアドレスが不正な場合に返却されます。
	ErrInvalidEmail = errors.New("shared: invalid email")
	// ErrInvalidCurrency は通貨コードが不正な場合に返却されます。
	ErrInvalidCurrency = errors.New("shared: invalid currency")
	// ErrCurrencyMismatch は異なる通貨同士を演算しようとした場合に返却されます。
	ErrCurrencyMismatch = errors.New("shared: currency mismatch")
	// ErrInvalidBillingCycle は請求サイクルが不正な場合に返却されます。
	ErrInvalidBillingCycle = errors.New("shared: invalid billing cycle")
	// ErrInvalidIdentityProvider は ID プロバイダ種別が不正な場合に返却されます。
	ErrInvalidIdentityProvider = errors.New("shared: invalid identity provider")
)
