/*
Package events provides the in-process domain event system.

PURPOSE:
  Typed publish/subscribe for domain events with bounded replay history.
  Every mutation of exchange state announces itself here; UI bindings and
  the durable archive subscribe. The bus is a leaf component: it depends on
  nothing but the domain model.

KEY CONCEPTS IN THIS FILE (types.go):
  - EventType: string discriminator over a closed set of event kinds
  - Payload: sum type; one struct per event kind, tagged via Kind()
  - Event: the envelope (id, aggregate, version, timestamp, payload, metadata)

DESIGN PRINCIPLES:
  1. Closed union: a Payload can only be one of the eight kinds below, so
     consumers can switch exhaustively on EventType
  2. Envelope fields are assigned once by NewEvent and never rewritten
  3. Monetary payload fields use decimal.Decimal

SEE ALSO:
  - bus.go: subscription registry and dispatch
*/
package events

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/warp/exchange-engine/exchange"
)

// =============================================================================
// EVENT TYPES
// =============================================================================

type EventType string

const (
	TicketSubmitted      EventType = "ticket-submitted"
	AccountValidated     EventType = "account-validated"
	PartyRelationCreated EventType = "party-relation-created"
	CarrierRequestSent   EventType = "carrier-request-sent"
	TransferConfirmed    EventType = "transfer-confirmed"
	ExchangeCompleted    EventType = "exchange-completed"
	SLAWarning           EventType = "sla-warning"
	OverrideApplied      EventType = "override-applied"

	// Wildcard matches every event type when subscribing.
	Wildcard EventType = "*"
)

// AllEventTypes lists every concrete event kind. SubscribeToAll expands the
// wildcard over this list.
var AllEventTypes = []EventType{
	TicketSubmitted,
	AccountValidated,
	PartyRelationCreated,
	CarrierRequestSent,
	TransferConfirmed,
	ExchangeCompleted,
	SLAWarning,
	OverrideApplied,
}

// =============================================================================
// ENVELOPE
// =============================================================================

// Metadata records who caused the event and, when known, the request origin.
type Metadata struct {
	UserID    string `json:"userId"`
	IPAddress string `json:"ipAddress,omitempty"`
	UserAgent string `json:"userAgent,omitempty"`
}

// Event is the envelope carried through the bus. Data holds exactly one of
// the payload structs below; EventType always equals Data.Kind().
type Event struct {
	EventID       string    `json:"eventId"`
	EventType     EventType `json:"eventType"`
	AggregateID   string    `json:"aggregateId"`
	AggregateType string    `json:"aggregateType"`
	Version       int       `json:"version"`
	Timestamp     time.Time `json:"timestamp"`
	Data          Payload   `json:"data"`
	Metadata      Metadata  `json:"metadata"`
}

// NewEvent assembles an envelope around a payload: fresh event id, version 1,
// current timestamp, event type derived from the payload's kind.
func NewEvent(aggregateID, aggregateType string, data Payload, meta Metadata) Event {
	return Event{
		EventID:       "evt_" + uuid.NewString(),
		EventType:     data.Kind(),
		AggregateID:   aggregateID,
		AggregateType: aggregateType,
		Version:       1,
		Timestamp:     time.Now().UTC(),
		Data:          data,
		Metadata:      meta,
	}
}

// =============================================================================
// PAYLOADS - One struct per event kind
// =============================================================================

// Payload is the closed sum of event payloads. Kind returns the discriminator
// the envelope is dispatched on.
type Payload interface {
	Kind() EventType
}

// PartyRef names a party and its role in an exchange.
type PartyRef struct {
	PartyID      string                `json:"partyId"`
	RelationType exchange.RelationType `json:"relationType"`
}

// TicketSubmittedData announces a newly submitted exchange request.
type TicketSubmittedData struct {
	TicketNumber       string               `json:"ticketNumber"`
	SubmittedBy        string               `json:"submittedBy"`
	TargetProductType  exchange.ProductType `json:"targetProductType"`
	SourceAccountCount int                  `json:"sourceAccountCount"`
	EstimatedValue     decimal.Decimal      `json:"estimatedValue"`
	PartiesInvolved    []PartyRef           `json:"partiesInvolved"`
}

func (TicketSubmittedData) Kind() EventType { return TicketSubmitted }

// AccountValidatedData announces that a source policy passed validation.
type AccountValidatedData struct {
	AccountID        string `json:"accountId"`
	AccountNumber    string `json:"accountNumber"`
	CarrierID        string `json:"carrierId"`
	ValidationResult string `json:"validationResult"` // "passed" or "failed"
	ValidationNotes  string `json:"validationNotes,omitempty"`
	EligibleFor1035  bool   `json:"eligibleFor1035"`
}

func (AccountValidatedData) Kind() EventType { return AccountValidated }

// PartyRelationCreatedData announces a new party link on a ticket or account.
type PartyRelationCreatedData struct {
	RelationID          string                       `json:"relationId"`
	PartyID             string                       `json:"partyId"`
	RelationType        exchange.RelationType        `json:"relationType"`
	RelationshipToOwner exchange.RelationshipToOwner `json:"relationshipToOwner,omitempty"`
	UserRole            exchange.UserRole            `json:"userRole,omitempty"`
	StartDate           time.Time                    `json:"startDate"`
}

func (PartyRelationCreatedData) Kind() EventType { return PartyRelationCreated }

// CarrierRequestSentData announces an outbound carrier communication.
type CarrierRequestSentData struct {
	CommunicationID string                       `json:"communicationId"`
	CarrierID       string                       `json:"carrierId"`
	AccountID       string                       `json:"accountId"`
	Method          exchange.CommunicationMethod `json:"method"`
	SLADeadline     time.Time                    `json:"slaDeadline"`
}

func (CarrierRequestSentData) Kind() EventType { return CarrierRequestSent }

// TransferConfirmedData announces that a carrier confirmed a transfer.
type TransferConfirmedData struct {
	AccountID             string                       `json:"accountId"`
	AccountNumber         string                       `json:"accountNumber"`
	CarrierID             string                       `json:"carrierId"`
	TransferValue         decimal.Decimal              `json:"transferValue"`
	ConfirmationMethod    exchange.CommunicationMethod `json:"confirmationMethod"`
	ConfirmationReference string                       `json:"confirmationReference,omitempty"`
}

func (TransferConfirmedData) Kind() EventType { return TransferConfirmed }

// ExchangeCompletedData carries the derived summary computed when a ticket
// reaches its terminal completed state.
type ExchangeCompletedData struct {
	TicketNumber        string          `json:"ticketNumber"`
	TotalValue          decimal.Decimal `json:"totalValue"`
	CycleTimeHours      int             `json:"cycleTimeHours"`
	AccountsTransferred int             `json:"accountsTransferred"`
	TargetAccountNumber string          `json:"targetAccountNumber,omitempty"`
}

func (ExchangeCompletedData) Kind() EventType { return ExchangeCompleted }

// SLAWarningData is emitted by the SLA monitor as a carrier deadline nears.
type SLAWarningData struct {
	CommunicationID  string  `json:"communicationId"`
	CarrierID        string  `json:"carrierId"`
	DropTicketID     string  `json:"dropTicketId"`
	HoursUntilBreach float64 `json:"hoursUntilBreach"`
	WarningLevel     string  `json:"warningLevel"` // "yellow" or "red"
}

func (SLAWarningData) Kind() EventType { return SLAWarning }

// OverrideAppliedData announces a manual exception on a ticket.
type OverrideAppliedData struct {
	OverrideType  exchange.OverrideType `json:"overrideType"`
	OriginalValue string                `json:"originalValue,omitempty"`
	NewValue      string                `json:"newValue,omitempty"`
	Justification string                `json:"justification"`
	ApprovedBy    string                `json:"approvedBy"`
}

func (OverrideAppliedData) Kind() EventType { return OverrideApplied }
