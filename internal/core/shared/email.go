package shared

import (
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"
)

var emailValidator = validator.New()

// Email は正規化済みのメールアドレスを表す値オブジェクトです。
type Email struct {
	value string
}

// NewEmail は前後の空白を除去し小文字化したうえで形式を検証します。
func NewEmail(raw string) (Email, error) {
	normalized := strings.ToLower(strings.TrimSpace(raw))
	if normalized == "" {
		return Email{}, ErrInvalidEmail
	}
	if err := emailValidator.Var(normalized, "email"); err != nil {
		return Email{}, fmt.Errorf("%w: %q", ErrInvalidEmail, raw)
	}
	return Email{value: normalized}, nil
}

// String は正規化済みの文字列を返します。
func (e Email) String() string {
	return e.value
}

// Equals は正規化後の値で比較します。
func (e Email) Equals(other Email) bool {
	return e.value == other.value
}

// IsZero は未設定かどうかを返します。
func (e Email) IsZero() bool {
	return e.value == ""
}

// Domain は @ 以降のドメイン部を返します。
func (e Email) Domain() string {
	idx := strings.LastIndexByte(e.value, '@')
	if idx < 0 {
		return ""
	}
	return e.value[idx+1:]
}
