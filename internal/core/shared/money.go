package shared

import (
	"strings"

	"github.com/Rhymond/go-money"
)

// DefaultCurrency は通貨未指定時に利用する通貨コードです。
const DefaultCurrency = money.USD

// Money は補助単位の整数で金額を保持する値オブジェクトです。
type Money struct {
	amount   int64
	currency string
}

// NewMoney は補助単位の金額と ISO 4217 通貨コードから Money を生成します。
func NewMoney(amount int64, currency string) (Money, error) {
	code := strings.ToUpper(strings.TrimSpace(currency))
	if code == "" || money.GetCurrency(code) == nil {
		return Money{}, ErrInvalidCurrency
	}
	return Money{amount: amount, currency: code}, nil
}

// ZeroMoney は指定通貨のゼロ金額を返します。
func ZeroMoney(currency string) (Money, error) {
	return NewMoney(0, currency)
}

// Amount は補助単位の金額を返します。
func (m Money) Amount() int64 {
	return m.amount
}

// Currency は通貨コードを返します。
func (m Money) Currency() string {
	return m.currency
}

// IsZero は金額がゼロかどうかを返します。
func (m Money) IsZero() bool {
	return m.amount == 0
}

// Add は同一通貨の金額を加算します。
func (m Money) Add(other Money) (Money, error) {
	sum, err := m.toMoney().Add(other.toMoney())
	if err != nil {
		return Money{}, ErrCurrencyMismatch
	}
	return Money{amount: sum.Amount(), currency: m.currency}, nil
}

// Equals は金額と通貨が一致するかを返します。
func (m Money) Equals(other Money) bool {
	return m.amount == other.amount && m.currency == other.currency
}

// Display は通貨記号付きの表示用文字列を返します。
func (m Money) Display() string {
	if m.currency == "" {
		return ""
	}
	return m.toMoney().Display()
}

func (m Money) toMoney() *money.Money {
	return money.New(m.amount, m.currency)
}
