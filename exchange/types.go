/*
Package exchange defines the domain model for 1035 policy exchanges.

PURPOSE:
  A 1035 exchange moves value from one or more source insurance/annuity
  policies (being surrendered) into a target policy (being issued), without
  triggering a taxable event. This package holds the entities, enumerations,
  and business validation rules for that workflow. It has no dependencies on
  storage or transport.

KEY CONCEPTS IN THIS FILE (types.go):
  - Base: identity + timestamps shared by every persisted entity
  - DropTicket: the exchange request itself (industry term for the intake form)
  - Account: a policy involved in an exchange, source or target
  - Party / Relation: people and their typed links to tickets and accounts
  - Carrier: a counterparty institution with an SLA response window
  - CarrierCommunication: one message to/from a carrier, SLA-tracked
  - AuditLog: immutable record of one mutation

DESIGN PRINCIPLES:
  1. Precision: monetary fields use decimal.Decimal, never float64
  2. Soft references: cross-entity links are ids, not owning pointers
  3. Immutability: AuditLog rows are never modified once written

SEE ALSO:
  - status.go: enumeration constants
  - validate.go: business rules (loan ratio, eligibility matrix)
  - errors.go: sentinel errors and classification helpers
*/
package exchange

import (
	"time"

	"github.com/shopspring/decimal"
)

// =============================================================================
// BASE ENTITY
// =============================================================================

// Base carries the identity and timestamps shared by all persisted entities.
// The repository assigns ID and CreatedAt/UpdatedAt on create; UpdatedAt is
// bumped on every update and is strictly increasing per record.
type Base struct {
	ID        string    `json:"id"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// RecordID returns the entity's identifier.
func (b *Base) RecordID() string { return b.ID }

// StampNew assigns identity and creation timestamps. Called exactly once by
// the repository when a record enters a collection.
func (b *Base) StampNew(id string, now time.Time) {
	b.ID = id
	b.CreatedAt = now
	b.UpdatedAt = now
}

// Touch bumps UpdatedAt. If the clock has not advanced past the previous
// update (coarse clocks, fast successive writes), UpdatedAt still moves
// forward by a nanosecond so it remains strictly increasing.
func (b *Base) Touch(now time.Time) {
	if !now.After(b.UpdatedAt) {
		now = b.UpdatedAt.Add(time.Nanosecond)
	}
	b.UpdatedAt = now
}

// =============================================================================
// DROP TICKET - The exchange request
// =============================================================================

type DropTicket struct {
	Base
	TicketNumber      string           `json:"ticketNumber"` // Human-readable identifier, e.g. EX493021
	Status            DropTicketStatus `json:"status"`
	Priority          Priority         `json:"priority"`
	SubmissionDate    time.Time        `json:"submissionDate"`
	TargetProductType ProductType      `json:"targetProductType"`
	TargetCarrierID   string           `json:"targetCarrierId"`
	EstimatedValue    decimal.Decimal  `json:"estimatedValue"` // Zero when not estimated
	Notes             string           `json:"notes,omitempty"`
	CreatedBy         string           `json:"createdBy"`            // Party ID
	AssignedTo        string           `json:"assignedTo,omitempty"` // Party ID, empty when unassigned
}

// =============================================================================
// ACCOUNT - A policy involved in an exchange
// =============================================================================

type Account struct {
	Base
	DropTicketID     string          `json:"dropTicketId"`
	AccountNumber    string          `json:"accountNumber"` // Policy or contract number
	CarrierID        string          `json:"carrierId"`
	AccountType      ProductType     `json:"accountType"`
	ProductName      string          `json:"productName,omitempty"`
	IssueDate        *time.Time      `json:"issueDate,omitempty"`
	CurrentValue     decimal.Decimal `json:"currentValue"`
	SurrenderValue   decimal.Decimal `json:"surrenderValue"`
	OutstandingLoans decimal.Decimal `json:"outstandingLoans"`
	Status           AccountStatus   `json:"status"`
	IsSourceAccount  bool            `json:"isSourceAccount"` // true = surrendered policy, false = issued policy
	ValidationNotes  string          `json:"validationNotes,omitempty"`
}

// TransferValue is the amount moved when this account's transfer is confirmed:
// surrender value when known, otherwise current value.
func (a Account) TransferValue() decimal.Decimal {
	if a.SurrenderValue.IsPositive() {
		return a.SurrenderValue
	}
	return a.CurrentValue
}

// =============================================================================
// PARTY - A person in any role (owner, insured, agent, system user)
// =============================================================================

// Party is a single polymorphic record; which fields apply depends on the
// roles the party holds via Relations. Identity is structural, not tagged.
type Party struct {
	Base
	FirstName   string     `json:"firstName"`
	LastName    string     `json:"lastName"`
	MiddleName  string     `json:"middleName,omitempty"`
	Email       string     `json:"email,omitempty"`
	Phone       string     `json:"phone,omitempty"`
	DateOfBirth *time.Time `json:"dateOfBirth,omitempty"` // Required for insured parties
	SSN         string     `json:"ssn,omitempty"`
	Gender      Gender     `json:"gender,omitempty"`

	// Address
	AddressLine1 string `json:"addressLine1,omitempty"`
	AddressLine2 string `json:"addressLine2,omitempty"`
	City         string `json:"city,omitempty"`
	State        string `json:"state,omitempty"`
	ZipCode      string `json:"zipCode,omitempty"`
	Country      string `json:"country,omitempty"`

	// Agent fields
	LicenseNumber string `json:"licenseNumber,omitempty"`
	AgencyName    string `json:"agencyName,omitempty"`
	AgencyAddress string `json:"agencyAddress,omitempty"`

	// System user fields
	Department string `json:"department,omitempty"`
	IsActive   bool   `json:"isActive"`
}

// FullName joins first and last name for display and audit snapshots.
func (p Party) FullName() string {
	if p.MiddleName != "" {
		return p.FirstName + " " + p.MiddleName + " " + p.LastName
	}
	return p.FirstName + " " + p.LastName
}

// =============================================================================
// RELATION - Typed edge between a party and a ticket or account
// =============================================================================

type Relation struct {
	Base
	PartyID             string              `json:"partyId"`
	DropTicketID        string              `json:"dropTicketId,omitempty"` // Ticket-level relation
	AccountID           string              `json:"accountId,omitempty"`    // Account-level relation
	RelationType        RelationType        `json:"relationType"`
	RelationshipToOwner RelationshipToOwner `json:"relationshipToOwner,omitempty"`
	UserRole            UserRole            `json:"userRole,omitempty"`
	StartDate           time.Time           `json:"startDate"`
	EndDate             *time.Time          `json:"endDate,omitempty"`
	IsActive            bool                `json:"isActive"`
	Metadata            map[string]string   `json:"metadata,omitempty"`
}

// =============================================================================
// CARRIER - Counterparty institution
// =============================================================================

type Carrier struct {
	Base
	Name                   string              `json:"name"`
	Code                   string              `json:"code"` // Short identifier, e.g. MET
	ContactEmail           string              `json:"contactEmail,omitempty"`
	ContactPhone           string              `json:"contactPhone,omitempty"`
	PreferredCommunication CommunicationMethod `json:"preferredCommunicationMethod"`
	APIEndpoint            string              `json:"apiEndpoint,omitempty"`
	SLAHours               int                 `json:"slaHours"` // Standard response window
	IsActive               bool                `json:"isActive"`
}

// =============================================================================
// CARRIER COMMUNICATION - One SLA-tracked message
// =============================================================================

type CarrierCommunication struct {
	Base
	DropTicketID      string                 `json:"dropTicketId"`
	AccountID         string                 `json:"accountId,omitempty"`
	CarrierID         string                 `json:"carrierId"`
	CommunicationType CommunicationType      `json:"communicationType"`
	Method            CommunicationMethod    `json:"method"`
	Direction         CommunicationDirection `json:"direction"`
	Subject           string                 `json:"subject,omitempty"`
	Content           string                 `json:"content"`
	Status            CommunicationStatus    `json:"status"`
	SentAt            *time.Time             `json:"sentAt,omitempty"`
	DeliveredAt       *time.Time             `json:"deliveredAt,omitempty"`
	ReadAt            *time.Time             `json:"readAt,omitempty"`
	RespondedAt       *time.Time             `json:"respondedAt,omitempty"`
	SLADeadline       *time.Time             `json:"slaDeadline,omitempty"` // Fixed at send time, never recomputed
	RetryCount        int                    `json:"retryCount"`
	CreatedBy         string                 `json:"createdBy,omitempty"`
}

// AwaitingResponse reports whether the communication is outbound and still
// open against its SLA window.
func (c CarrierCommunication) AwaitingResponse() bool {
	return c.Direction == DirectionOutbound &&
		c.RespondedAt == nil &&
		c.SLADeadline != nil &&
		c.Status != CommunicationFailed
}

// =============================================================================
// DOCUMENT - Metadata for an uploaded file (upload mechanism out of scope)
// =============================================================================

type Document struct {
	Base
	DropTicketID     string          `json:"dropTicketId"`
	Filename         string          `json:"filename"`
	OriginalFilename string          `json:"originalFilename"`
	FileSize         int64           `json:"fileSize"`
	MimeType         string          `json:"mimeType"`
	DocumentType     DocumentType    `json:"documentType"`
	StoragePath      string          `json:"storagePath"`
	Checksum         string          `json:"checksum"`
	IsEncrypted      bool            `json:"isEncrypted"`
	UploadedBy       string          `json:"uploadedBy"`
	SignatureStatus  SignatureStatus `json:"signatureStatus,omitempty"`
	SignatureDate    *time.Time      `json:"signatureDate,omitempty"`
}

// =============================================================================
// AUDIT LOG - Append-only mutation record
// =============================================================================

// AuditLog records exactly one mutation. Rows are never modified or deleted
// once created; corrections are new rows.
type AuditLog struct {
	Base
	DropTicketID string         `json:"dropTicketId,omitempty"`
	UserID       string         `json:"userId,omitempty"` // Party ID of the actor
	Action       AuditAction    `json:"action"`
	EntityType   EntityType     `json:"entityType"`
	EntityID     string         `json:"entityId"`
	OldValues    map[string]any `json:"oldValues,omitempty"`
	NewValues    map[string]any `json:"newValues,omitempty"`
	Reason       string         `json:"reason,omitempty"`
	IPAddress    string         `json:"ipAddress,omitempty"`
	UserAgent    string         `json:"userAgent,omitempty"`
}

// =============================================================================
// OVERRIDE - Manual exception applied to a ticket
// =============================================================================

type Override struct {
	Base
	DropTicketID  string       `json:"dropTicketId"`
	OverrideType  OverrideType `json:"overrideType"`
	OriginalValue string       `json:"originalValue,omitempty"`
	NewValue      string       `json:"newValue,omitempty"`
	Justification string       `json:"justification"`
	ApprovedBy    string       `json:"approvedBy"` // Party ID
	ApprovalDate  time.Time    `json:"approvalDate"`
}

// Actor identifies who performed an operation and, optionally, where the
// request came from. Carried into audit rows and event metadata.
type Actor struct {
	UserID    string `json:"userId"`
	IPAddress string `json:"ipAddress,omitempty"`
	UserAgent string `json:"userAgent,omitempty"`
}
