package shared

import (
	"errors"
	"testing"
)

func TestNewMoney_InvalidCurrency(t *testing.T) {
	t.Parallel()

	if _, err := NewMoney(100, "XXXX"); !errors.Is(err, ErrInvalidCurrency) {
		t.Fatalf("expected ErrInvalidCurrency, got %v", err)
	}
	if _, err := NewMoney(100, ""); !errors.Is(err, ErrInvalidCurrency) {
		t.Fatalf("expected ErrInvalidCurrency for empty code, got %v", err)
	}
}

func TestMoney_Add(t *testing.T) {
	t.Parallel()

	a, _ := NewMoney(1250, "usd")
	b, _ := NewMoney(750, "USD")

	sum, err := a.Add(b)
	if err != nil {
		t.Fatalf("Add returned error: %v", err)
	}
	if sum.Amount() != 2000 || sum.Currency() != "USD" {
		t.Fatalf("unexpected sum: %d %s", sum.Amount(), sum.Currency())
	}

	jpy, _ := NewMoney(100, "JPY")
	if _, err := a.Add(jpy); !errors.Is(err, ErrCurrencyMismatch) {
		t.Fatalf("expected ErrCurrencyMismatch, got %v", err)
	}
}

func TestBillingCycle_MonthlyEquivalent(t *testing.T) {
	t.Parallel()

	yearly, _ := NewMoney(12000, "USD")
	monthly, err := BillingCycleYearly.MonthlyEquivalent(yearly)
	if err != nil {
		t.Fatalf("MonthlyEquivalent returned error: %v", err)
	}
	if monthly.Amount() != 1000 {
		t.Fatalf("expected 1000, got %d", monthly.Amount())
	}

	quarterly, _ := NewMoney(1000, "USD")
	monthly, err = BillingCycleQuarterly.MonthlyEquivalent(quarterly)
	if err != nil {
		t.Fatalf("MonthlyEquivalent returned error: %v", err)
	}
	if monthly.Amount() != 334 {
		t.Fatalf("expected remainder to round up to 334, got %d", monthly.Amount())
	}

	if _, err := ParseBillingCycle("weekly"); !errors.Is(err, ErrInvalidBillingCycle) {
		t.Fatalf("expected ErrInvalidBillingCycle, got %v", err)
	}
}
