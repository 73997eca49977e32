package shared

import "github.com/Rhymond/go-money"

// BillingCycle はサブスクリプションの請求周期です。
type BillingCycle string

const (
	BillingCycleMonthly   BillingCycle = "monthly"
	BillingCycleQuarterly BillingCycle = "quarterly"
	BillingCycleYearly    BillingCycle = "yearly"
)

// ParseBillingCycle は文字列から BillingCycle を取得します。
func ParseBillingCycle(raw string) (BillingCycle, error) {
	cycle := BillingCycle(raw)
	if cycle.Months() == 0 {
		return "", ErrInvalidBillingCycle
	}
	return cycle, nil
}

// Months は 1 周期あたりの月数を返します。不正な値では 0 です。
func (c BillingCycle) Months() int {
	switch c {
	case BillingCycleMonthly:
		return 1
	case BillingCycleQuarterly:
		return 3
	case BillingCycleYearly:
		return 12
	default:
		return 0
	}
}

// MonthlyEquivalent は周期あたりの金額を月額に換算します。端数は補助単位で切り上げます。
func (c BillingCycle) MonthlyEquivalent(price Money) (Money, error) {
	months := c.Months()
	if months == 0 {
		return Money{}, ErrInvalidBillingCycle
	}
	if months == 1 {
		return price, nil
	}

	parts, err := money.New(price.amount, price.currency).Split(months)
	if err != nil {
		return Money{}, err
	}
	return Money{amount: parts[0].Amount(), currency: price.currency}, nil
}
