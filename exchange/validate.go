/*
validate.go - Business rules for exchange eligibility

PURPOSE:
  Pure validation functions over the domain model. Rules run before any
  mutation; a failure means nothing was written.

RULES:
  - Outstanding-loan ratio: a source policy whose loans exceed a fraction of
    its surrender value cannot be exchanged cleanly
  - 1035 eligibility matrix: which product types may exchange into which
    (life insurance may become an annuity; an annuity may not become life
    insurance)
  - Exchange value bounds

CONFIGURATION:
  Thresholds live in Rules so tests and deployments can tune them. The
  defaults (0.9 loan ratio, 72h carrier SLA fallback) are inherited business
  constants with no documented regulatory citation; treat them as defaults
  pending domain-expert review, not as hard law.
*/
package exchange

import (
	"regexp"

	"github.com/shopspring/decimal"
)

// =============================================================================
// RULES CONFIGURATION
// =============================================================================

// Rules holds the tunable business thresholds.
type Rules struct {
	// LoanRatioThreshold is the maximum allowed outstandingLoans/surrenderValue
	// for a source account to be exchange-eligible.
	LoanRatioThreshold decimal.Decimal

	// MinExchangeValue / MaxExchangeValue bound the estimated exchange value.
	MinExchangeValue decimal.Decimal
	MaxExchangeValue decimal.Decimal

	// DefaultSLAHours is used when a carrier has no configured SLA window.
	DefaultSLAHours int

	// EligibleExchanges maps a source product type to the product types it
	// may exchange into under section 1035.
	EligibleExchanges map[ProductType][]ProductType
}

// DefaultRules returns the rule set observed in production configuration.
func DefaultRules() Rules {
	return Rules{
		LoanRatioThreshold: decimal.NewFromFloat(0.9),
		MinExchangeValue:   decimal.NewFromInt(1000),
		MaxExchangeValue:   decimal.NewFromInt(10_000_000),
		DefaultSLAHours:    72,
		EligibleExchanges: map[ProductType][]ProductType{
			ProductLifeInsurance: {ProductLifeInsurance, ProductAnnuity},
			ProductAnnuity:       {ProductAnnuity},
		},
	}
}

// =============================================================================
// ELIGIBILITY RULES
// =============================================================================

// EligibleTarget reports whether sourceType may exchange into targetType.
func (r Rules) EligibleTarget(sourceType, targetType ProductType) bool {
	for _, t := range r.EligibleExchanges[sourceType] {
		if t == targetType {
			return true
		}
	}
	return false
}

// LoanWithinThreshold checks the outstanding-loan ratio rule. A zero
// surrender value is only acceptable when there are no outstanding loans.
func (r Rules) LoanWithinThreshold(outstandingLoans, surrenderValue decimal.Decimal) bool {
	if surrenderValue.IsZero() {
		return outstandingLoans.IsZero()
	}
	ratio := outstandingLoans.Div(surrenderValue)
	return ratio.LessThanOrEqual(r.LoanRatioThreshold)
}

// LoanRatio returns outstandingLoans/surrenderValue, or zero when the
// surrender value is zero.
func (r Rules) LoanRatio(outstandingLoans, surrenderValue decimal.Decimal) decimal.Decimal {
	if surrenderValue.IsZero() {
		return decimal.Zero
	}
	return outstandingLoans.Div(surrenderValue)
}

// ValidExchangeValue checks the estimated-value bounds. Zero means "no
// estimate" and is always acceptable.
func (r Rules) ValidExchangeValue(value decimal.Decimal) bool {
	if value.IsZero() {
		return true
	}
	return value.GreaterThanOrEqual(r.MinExchangeValue) && value.LessThanOrEqual(r.MaxExchangeValue)
}

// SourceAccountEligible runs every per-account rule for a source policy.
// Returned errors are ValidationErrors; nil means eligible.
func (r Rules) SourceAccountEligible(acc Account) error {
	var errs ValidationErrors

	if acc.AccountNumber == "" {
		errs = append(errs, FieldError{Field: "accountNumber", Message: "required"})
	}
	if acc.CarrierID == "" {
		errs = append(errs, FieldError{Field: "carrierId", Message: "required"})
	}
	if acc.CurrentValue.IsNegative() || acc.SurrenderValue.IsNegative() || acc.OutstandingLoans.IsNegative() {
		errs = append(errs, FieldError{Field: "values", Message: "monetary fields must be non-negative"})
	}
	if !r.LoanWithinThreshold(acc.OutstandingLoans, acc.SurrenderValue) {
		errs = append(errs, FieldError{
			Field:   "outstandingLoans",
			Message: "outstanding loans exceed " + r.LoanRatioThreshold.String() + " of surrender value",
		})
	}

	if len(errs) > 0 {
		return errs
	}
	return nil
}

// =============================================================================
// FORMAT CHECKS
// =============================================================================

var (
	emailRe = regexp.MustCompile(`^[^\s@]+@[^\s@]+\.[^\s@]+$`)
	ssnRe   = regexp.MustCompile(`^\d{3}-?\d{2}-?\d{4}$`)
	zipRe   = regexp.MustCompile(`^\d{5}(-\d{4})?$`)
)

func ValidEmail(email string) bool { return emailRe.MatchString(email) }
func ValidSSN(ssn string) bool     { return ssnRe.MatchString(ssn) }
func ValidZipCode(zip string) bool { return zipRe.MatchString(zip) }
