package exchange

import (
	"testing"

	"github.com/shopspring/decimal"
)

func TestEligibleTarget_Section1035Matrix(t *testing.T) {
	rules := DefaultRules()
	cases := []struct {
		source, target ProductType
		want           bool
	}{
		{ProductLifeInsurance, ProductLifeInsurance, true},
		{ProductLifeInsurance, ProductAnnuity, true},
		{ProductAnnuity, ProductAnnuity, true},
		// The exchange that made the annuity cannot be undone.
		{ProductAnnuity, ProductLifeInsurance, false},
	}
	for _, tc := range cases {
		if got := rules.EligibleTarget(tc.source, tc.target); got != tc.want {
			t.Errorf("EligibleTarget(%s, %s) = %v, want %v", tc.source, tc.target, got, tc.want)
		}
	}
}

func TestLoanWithinThreshold(t *testing.T) {
	rules := DefaultRules()

	// GIVEN: Ratios straddling the 0.9 threshold
	cases := []struct {
		name             string
		loans, surrender int64
		want             bool
	}{
		{"no loans", 0, 100000, true},
		{"well under", 50000, 100000, true},
		{"exactly at threshold", 90000, 100000, true},
		{"just over", 90001, 100000, false},
		{"loans exceed surrender", 110000, 100000, false},
		{"zero surrender, no loans", 0, 0, true},
		{"zero surrender with loans", 1, 0, false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got := rules.LoanWithinThreshold(decimal.NewFromInt(tc.loans), decimal.NewFromInt(tc.surrender))
			if got != tc.want {
				t.Errorf("LoanWithinThreshold(%d, %d) = %v, want %v", tc.loans, tc.surrender, got, tc.want)
			}
		})
	}
}

func TestValidExchangeValue_ZeroMeansNoEstimate(t *testing.T) {
	rules := DefaultRules()
	if !rules.ValidExchangeValue(decimal.Zero) {
		t.Error("zero (no estimate) should be acceptable")
	}
	if rules.ValidExchangeValue(decimal.NewFromInt(999)) {
		t.Error("below the minimum should be rejected")
	}
	if !rules.ValidExchangeValue(decimal.NewFromInt(1000)) {
		t.Error("the minimum itself should be acceptable")
	}
	if rules.ValidExchangeValue(decimal.NewFromInt(10_000_001)) {
		t.Error("above the maximum should be rejected")
	}
}

func TestSourceAccountEligible_CollectsEveryFailure(t *testing.T) {
	rules := DefaultRules()

	// GIVEN: An account missing identifiers and over the loan threshold
	acc := Account{
		OutstandingLoans: decimal.NewFromInt(95000),
		SurrenderValue:   decimal.NewFromInt(100000),
	}

	// WHEN: Checked
	err := rules.SourceAccountEligible(acc)

	// THEN: All three problems are reported together
	if err == nil {
		t.Fatal("expected an error")
	}
	errs, ok := err.(ValidationErrors)
	if !ok {
		t.Fatalf("expected ValidationErrors, got %T", err)
	}
	if len(errs) != 3 {
		t.Fatalf("expected 3 field errors, got %d: %v", len(errs), errs)
	}
	if !IsValidation(err) {
		t.Error("ValidationErrors should satisfy IsValidation")
	}
}

func TestSourceAccountEligible_CleanAccountPasses(t *testing.T) {
	rules := DefaultRules()
	acc := Account{
		AccountNumber:  "POL-1",
		CarrierID:      "car-1",
		CurrentValue:   decimal.NewFromInt(50000),
		SurrenderValue: decimal.NewFromInt(48000),
	}
	if err := rules.SourceAccountEligible(acc); err != nil {
		t.Fatalf("expected eligible, got %v", err)
	}
}

func TestFormatChecks(t *testing.T) {
	for _, email := range []string{"a@b.co", "first.last@sub.example.com"} {
		if !ValidEmail(email) {
			t.Errorf("ValidEmail(%q) = false", email)
		}
	}
	for _, email := range []string{"", "no-at.example.com", "a b@c.com", "a@nodot"} {
		if ValidEmail(email) {
			t.Errorf("ValidEmail(%q) = true", email)
		}
	}

	for _, ssn := range []string{"123-45-6789", "123456789"} {
		if !ValidSSN(ssn) {
			t.Errorf("ValidSSN(%q) = false", ssn)
		}
	}
	if ValidSSN("12-345-6789") {
		t.Error(`ValidSSN("12-345-6789") = true`)
	}

	if !ValidZipCode("02139") || !ValidZipCode("02139-4307") {
		t.Error("valid zips rejected")
	}
	if ValidZipCode("2139") || ValidZipCode("02139-43") {
		t.Error("invalid zips accepted")
	}
}
