/*
dto.go - Request and response data structures

PURPOSE:
  Wire types for the HTTP API. Inbound structs carry validator tags and are
  checked before they reach the repository; monetary amounts travel as
  strings and are parsed to decimals at the boundary.

SEE ALSO:
  - handlers.go: where these are decoded, validated, and mapped
*/
package api

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"github.com/warp/exchange-engine/exchange"
	"github.com/warp/exchange-engine/store"
)

// ErrorResponse is the uniform error body.
type ErrorResponse struct {
	Error   string `json:"error"`
	Details string `json:"details,omitempty"`
}

// =============================================================================
// INBOUND
// =============================================================================

// PartyDTO is a party as submitted by the wizard.
type PartyDTO struct {
	FirstName     string `json:"firstName" validate:"required"`
	LastName      string `json:"lastName" validate:"required"`
	MiddleName    string `json:"middleName,omitempty"`
	Email         string `json:"email,omitempty" validate:"omitempty,email"`
	Phone         string `json:"phone,omitempty"`
	DateOfBirth   string `json:"dateOfBirth,omitempty" validate:"omitempty,datetime=2006-01-02"`
	SSN           string `json:"ssn,omitempty"`
	Gender        string `json:"gender,omitempty" validate:"omitempty,oneof=male female other"`
	AddressLine1  string `json:"addressLine1,omitempty"`
	AddressLine2  string `json:"addressLine2,omitempty"`
	City          string `json:"city,omitempty"`
	State         string `json:"state,omitempty"`
	ZipCode       string `json:"zipCode,omitempty"`
	Country       string `json:"country,omitempty"`
	LicenseNumber string `json:"licenseNumber,omitempty"`
	AgencyName    string `json:"agencyName,omitempty"`
	AgencyAddress string `json:"agencyAddress,omitempty"`
	Department    string `json:"department,omitempty"`
	UserRole      string `json:"userRole,omitempty" validate:"omitempty,oneof=agent home_office_admin operations_staff system_admin"`
}

// SourceAccountDTO is one surrendered policy in a submission.
type SourceAccountDTO struct {
	AccountNumber    string `json:"accountNumber" validate:"required"`
	CarrierID        string `json:"carrierId" validate:"required"`
	AccountType      string `json:"accountType" validate:"required,oneof=life_insurance annuity"`
	ProductName      string `json:"productName,omitempty"`
	IssueDate        string `json:"issueDate,omitempty" validate:"omitempty,datetime=2006-01-02"`
	CurrentValue     string `json:"currentValue" validate:"required"`
	SurrenderValue   string `json:"surrenderValue,omitempty"`
	OutstandingLoans string `json:"outstandingLoans,omitempty"`
}

// SubmitExchangeRequest is the wizard submission body.
type SubmitExchangeRequest struct {
	TargetProductType string             `json:"targetProductType" validate:"required,oneof=life_insurance annuity"`
	TargetCarrierID   string             `json:"targetCarrierId" validate:"required"`
	EstimatedValue    string             `json:"estimatedValue,omitempty"`
	Notes             string             `json:"notes,omitempty"`
	Owner             PartyDTO           `json:"owner" validate:"required"`
	Insured           PartyDTO           `json:"insured" validate:"required"`
	InsuredRelation   string             `json:"insuredRelation,omitempty" validate:"omitempty,oneof=self spouse child other"`
	Agent             PartyDTO           `json:"agent" validate:"required"`
	SourceAccounts    []SourceAccountDTO `json:"sourceAccounts" validate:"required,min=1,dive"`
}

// UpdateStatusRequest changes a ticket's status.
type UpdateStatusRequest struct {
	Status string `json:"status" validate:"required,oneof=submitted validated in_progress completed cancelled"`
	Reason string `json:"reason,omitempty"`
}

// UpdateAccountStatusDTO changes an account's status and valuation.
type UpdateAccountStatusDTO struct {
	Status          string `json:"status" validate:"required,oneof=pending validated awaiting_carrier confirmed transferred"`
	ValidationNotes string `json:"validationNotes,omitempty"`
	CurrentValue    string `json:"currentValue,omitempty"`
	SurrenderValue  string `json:"surrenderValue,omitempty"`
}

// CreateRelationDTO links a party to a ticket or account.
type CreateRelationDTO struct {
	PartyID             string            `json:"partyId" validate:"required"`
	DropTicketID        string            `json:"dropTicketId,omitempty"`
	AccountID           string            `json:"accountId,omitempty"`
	RelationType        string            `json:"relationType" validate:"required,oneof=owner insured agent beneficiary user carrier_rep"`
	RelationshipToOwner string            `json:"relationshipToOwner,omitempty" validate:"omitempty,oneof=self spouse child other"`
	UserRole            string            `json:"userRole,omitempty" validate:"omitempty,oneof=agent home_office_admin operations_staff system_admin"`
	StartDate           string            `json:"startDate,omitempty" validate:"omitempty,datetime=2006-01-02"`
	Metadata            map[string]string `json:"metadata,omitempty"`
}

// SendCommunicationDTO sends one carrier request.
type SendCommunicationDTO struct {
	DropTicketID string `json:"dropTicketId" validate:"required"`
	AccountID    string `json:"accountId,omitempty"`
	CarrierID    string `json:"carrierId" validate:"required"`
	Content      string `json:"content" validate:"required"`
}

// ApplyOverrideDTO records a manual exception.
type ApplyOverrideDTO struct {
	OverrideType  string `json:"overrideType" validate:"required,oneof=validation_bypass status_change sla_extension"`
	OriginalValue string `json:"originalValue,omitempty"`
	NewValue      string `json:"newValue,omitempty"`
	Justification string `json:"justification" validate:"required"`
}

// =============================================================================
// MAPPING
// =============================================================================

func parseMoney(field, raw string) (decimal.Decimal, error) {
	if raw == "" {
		return decimal.Zero, nil
	}
	d, err := decimal.NewFromString(raw)
	if err != nil {
		return decimal.Zero, fmt.Errorf("%s: invalid decimal %q", field, raw)
	}
	return d, nil
}

func parseDate(raw string) *time.Time {
	if raw == "" {
		return nil
	}
	t, err := time.Parse("2006-01-02", raw)
	if err != nil {
		return nil
	}
	return &t
}

func (p PartyDTO) toInput() store.PartyInput {
	return store.PartyInput{
		FirstName:     p.FirstName,
		LastName:      p.LastName,
		MiddleName:    p.MiddleName,
		Email:         p.Email,
		Phone:         p.Phone,
		DateOfBirth:   parseDate(p.DateOfBirth),
		SSN:           p.SSN,
		Gender:        exchange.Gender(p.Gender),
		AddressLine1:  p.AddressLine1,
		AddressLine2:  p.AddressLine2,
		City:          p.City,
		State:         p.State,
		ZipCode:       p.ZipCode,
		Country:       p.Country,
		LicenseNumber: p.LicenseNumber,
		AgencyName:    p.AgencyName,
		AgencyAddress: p.AgencyAddress,
		Department:    p.Department,
		UserRole:      exchange.UserRole(p.UserRole),
	}
}

func (r SubmitExchangeRequest) toRequest() (store.CreateDropTicketRequest, error) {
	estimated, err := parseMoney("estimatedValue", r.EstimatedValue)
	if err != nil {
		return store.CreateDropTicketRequest{}, err
	}

	out := store.CreateDropTicketRequest{
		TargetProductType: exchange.ProductType(r.TargetProductType),
		TargetCarrierID:   r.TargetCarrierID,
		EstimatedValue:    estimated,
		Notes:             r.Notes,
		Owner:             r.Owner.toInput(),
		Insured:           r.Insured.toInput(),
		InsuredRelation:   exchange.RelationshipToOwner(r.InsuredRelation),
		Agent:             r.Agent.toInput(),
	}
	for i, src := range r.SourceAccounts {
		current, err := parseMoney(fmt.Sprintf("sourceAccounts[%d].currentValue", i), src.CurrentValue)
		if err != nil {
			return store.CreateDropTicketRequest{}, err
		}
		surrender, err := parseMoney(fmt.Sprintf("sourceAccounts[%d].surrenderValue", i), src.SurrenderValue)
		if err != nil {
			return store.CreateDropTicketRequest{}, err
		}
		loans, err := parseMoney(fmt.Sprintf("sourceAccounts[%d].outstandingLoans", i), src.OutstandingLoans)
		if err != nil {
			return store.CreateDropTicketRequest{}, err
		}
		out.SourceAccounts = append(out.SourceAccounts, store.SourceAccountInput{
			AccountNumber:    src.AccountNumber,
			CarrierID:        src.CarrierID,
			AccountType:      exchange.ProductType(src.AccountType),
			ProductName:      src.ProductName,
			IssueDate:        parseDate(src.IssueDate),
			CurrentValue:     current,
			SurrenderValue:   surrender,
			OutstandingLoans: loans,
		})
	}
	return out, nil
}

func (d UpdateAccountStatusDTO) toRequest(accountID string) (store.UpdateAccountStatusRequest, error) {
	out := store.UpdateAccountStatusRequest{
		AccountID:       accountID,
		Status:          exchange.AccountStatus(d.Status),
		ValidationNotes: d.ValidationNotes,
	}
	if d.CurrentValue != "" {
		v, err := parseMoney("currentValue", d.CurrentValue)
		if err != nil {
			return out, err
		}
		out.CurrentValue = &v
	}
	if d.SurrenderValue != "" {
		v, err := parseMoney("surrenderValue", d.SurrenderValue)
		if err != nil {
			return out, err
		}
		out.SurrenderValue = &v
	}
	return out, nil
}

func (d CreateRelationDTO) toRequest(now time.Time) store.CreateRelationRequest {
	start := now
	if t := parseDate(d.StartDate); t != nil {
		start = *t
	}
	return store.CreateRelationRequest{
		PartyID:             d.PartyID,
		DropTicketID:        d.DropTicketID,
		AccountID:           d.AccountID,
		RelationType:        exchange.RelationType(d.RelationType),
		RelationshipToOwner: exchange.RelationshipToOwner(d.RelationshipToOwner),
		UserRole:            exchange.UserRole(d.UserRole),
		StartDate:           start,
		Metadata:            d.Metadata,
	}
}

// =============================================================================
// OUTBOUND
// =============================================================================

// RealtimeStateDTO reports the connection manager's current view.
type RealtimeStateDTO struct {
	State             string `json:"state"`
	ReconnectAttempts int    `json:"reconnectAttempts"`
	LastEventID       string `json:"lastEventId,omitempty"`
	LastEventType     string `json:"lastEventType,omitempty"`
}
