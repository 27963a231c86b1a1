/*
operations.go - Named domain operations

PURPOSE:
  The write surface of the repository. Each operation validates its input
  before touching state, performs its primitive writes plus exactly one
  audit row under the store lock, and emits the corresponding domain event
  after the lock is released.

FAILURE SEMANTICS:
  - Validation failures (exchange.IsValidation) are reported before any
    mutation occurs
  - Missing records surface as exchange.IsNotFound; primitives themselves
    never error on absence
  - Event emission is fire-and-forget; subscriber failures never roll back
    the mutation
*/
package store

import (
	"context"
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"github.com/warp/exchange-engine/events"
	"github.com/warp/exchange-engine/exchange"
)

// =============================================================================
// REQUEST TYPES
// =============================================================================

// PartyInput carries the fields shared by the wizard's party steps.
type PartyInput struct {
	FirstName     string
	LastName      string
	MiddleName    string
	Email         string
	Phone         string
	DateOfBirth   *time.Time
	SSN           string
	Gender        exchange.Gender
	AddressLine1  string
	AddressLine2  string
	City          string
	State         string
	ZipCode       string
	Country       string
	LicenseNumber string
	AgencyName    string
	AgencyAddress string
	Department    string
	UserRole      exchange.UserRole
}

// SourceAccountInput describes one policy being surrendered.
type SourceAccountInput struct {
	AccountNumber    string
	CarrierID        string
	AccountType      exchange.ProductType
	ProductName      string
	IssueDate        *time.Time
	CurrentValue     decimal.Decimal
	SurrenderValue   decimal.Decimal
	OutstandingLoans decimal.Decimal
}

// CreateDropTicketRequest is the full submission from the exchange wizard.
type CreateDropTicketRequest struct {
	TargetProductType exchange.ProductType
	TargetCarrierID   string
	EstimatedValue    decimal.Decimal
	Notes             string
	Owner             PartyInput
	Insured           PartyInput
	InsuredRelation   exchange.RelationshipToOwner
	Agent             PartyInput
	SourceAccounts    []SourceAccountInput
}

// UpdateAccountStatusRequest updates one account's status and, optionally,
// its valuation fields. Nil pointers leave the current values unchanged.
type UpdateAccountStatusRequest struct {
	AccountID       string
	Status          exchange.AccountStatus
	ValidationNotes string
	CurrentValue    *decimal.Decimal
	SurrenderValue  *decimal.Decimal
}

// CreateRelationRequest links a party to a ticket or an account.
type CreateRelationRequest struct {
	PartyID             string
	DropTicketID        string
	AccountID           string
	RelationType        exchange.RelationType
	RelationshipToOwner exchange.RelationshipToOwner
	UserRole            exchange.UserRole
	StartDate           time.Time
	EndDate             *time.Time
	Metadata            map[string]string
}

// ApplyOverrideRequest records a manual exception on a ticket.
type ApplyOverrideRequest struct {
	DropTicketID  string
	OverrideType  exchange.OverrideType
	OriginalValue string
	NewValue      string
	Justification string
}

// =============================================================================
// AUDIT HELPER
// =============================================================================

// appendAuditLocked writes one audit row. Caller holds s.mu.
func (s *Store) appendAuditLocked(dropTicketID string, actor exchange.Actor, action exchange.AuditAction,
	entityType exchange.EntityType, entityID string, oldValues, newValues map[string]any, reason string) exchange.AuditLog {

	row := exchange.AuditLog{
		DropTicketID: dropTicketID,
		UserID:       actor.UserID,
		Action:       action,
		EntityType:   entityType,
		EntityID:     entityID,
		OldValues:    oldValues,
		NewValues:    newValues,
		Reason:       reason,
		IPAddress:    actor.IPAddress,
		UserAgent:    actor.UserAgent,
	}
	return create(&s.data.auditLogs, row, s.newID(), s.now())
}

// flush emits captured events and forwards the audit row to the durable
// sink. Called after the lock is released.
func (s *Store) flush(rows []exchange.AuditLog, evts []events.Event) {
	for _, ev := range evts {
		s.bus.Emit(ev)
	}
	if s.sink == nil {
		return
	}
	for _, row := range rows {
		if err := s.sink.SaveAuditRow(row); err != nil {
			s.log.WithError(err).WithField("auditId", row.ID).Error("durable audit write failed")
		}
	}
}

func (s *Store) ticketNumber() string {
	return fmt.Sprintf("EX%06d", s.now().UnixMilli()%1_000_000)
}

// =============================================================================
// SUBMIT DROP TICKET
// =============================================================================

// SubmitDropTicket validates and creates a new exchange request: the ticket,
// its owner/insured/agent parties and relations, and one account per source
// policy. One audit row and one ticket-submitted event describe the whole
// submission.
func (s *Store) SubmitDropTicket(ctx context.Context, req CreateDropTicketRequest, actor exchange.Actor) (exchange.DropTicket, error) {
	if err := s.simulate(ctx); err != nil {
		return exchange.DropTicket{}, err
	}
	if err := s.validateSubmission(req); err != nil {
		return exchange.DropTicket{}, err
	}

	s.mu.Lock()
	now := s.now()

	ticket := create(&s.data.tickets, exchange.DropTicket{
		TicketNumber:      s.ticketNumber(),
		Status:            exchange.TicketSubmitted,
		Priority:          exchange.PriorityNormal,
		SubmissionDate:    now,
		TargetProductType: req.TargetProductType,
		TargetCarrierID:   req.TargetCarrierID,
		EstimatedValue:    req.EstimatedValue,
		Notes:             req.Notes,
		CreatedBy:         actor.UserID,
	}, s.newID(), now)

	owner := s.createPartyLocked(req.Owner)
	insured := s.createPartyLocked(req.Insured)
	agent := s.createPartyLocked(req.Agent)

	s.createRelationLocked(owner.ID, ticket.ID, "", exchange.RelationOwner, "", "", now)
	s.createRelationLocked(insured.ID, ticket.ID, "", exchange.RelationInsured, req.InsuredRelation, "", now)
	s.createRelationLocked(agent.ID, ticket.ID, "", exchange.RelationAgent, "", "", now)

	for _, src := range req.SourceAccounts {
		create(&s.data.accounts, exchange.Account{
			DropTicketID:     ticket.ID,
			AccountNumber:    src.AccountNumber,
			CarrierID:        src.CarrierID,
			AccountType:      src.AccountType,
			ProductName:      src.ProductName,
			IssueDate:        src.IssueDate,
			CurrentValue:     src.CurrentValue,
			SurrenderValue:   src.SurrenderValue,
			OutstandingLoans: src.OutstandingLoans,
			Status:           exchange.AccountPending,
			IsSourceAccount:  true,
		}, s.newID(), now)
	}

	row := s.appendAuditLocked(ticket.ID, actor, exchange.AuditCreate, exchange.EntityDropTicket, ticket.ID,
		nil,
		map[string]any{
			"status":             string(ticket.Status),
			"targetProductType":  string(ticket.TargetProductType),
			"estimatedValue":     ticket.EstimatedValue.String(),
			"sourceAccountCount": len(req.SourceAccounts),
		},
		"Drop ticket submitted")

	ev := events.NewEvent(ticket.ID, "DropTicket", events.TicketSubmittedData{
		TicketNumber:       ticket.TicketNumber,
		SubmittedBy:        actor.UserID,
		TargetProductType:  ticket.TargetProductType,
		SourceAccountCount: len(req.SourceAccounts),
		EstimatedValue:     ticket.EstimatedValue,
		PartiesInvolved: []events.PartyRef{
			{PartyID: owner.ID, RelationType: exchange.RelationOwner},
			{PartyID: insured.ID, RelationType: exchange.RelationInsured},
			{PartyID: agent.ID, RelationType: exchange.RelationAgent},
		},
	}, events.Metadata{UserID: actor.UserID, IPAddress: actor.IPAddress, UserAgent: actor.UserAgent})
	s.mu.Unlock()

	s.flush([]exchange.AuditLog{row}, []events.Event{ev})
	return ticket, nil
}

// validateSubmission runs every business rule before any mutation.
func (s *Store) validateSubmission(req CreateDropTicketRequest) error {
	var errs exchange.ValidationErrors

	if req.TargetCarrierID == "" {
		errs = append(errs, exchange.FieldError{Field: "targetCarrierId", Message: "required"})
	}
	if req.Owner.FirstName == "" || req.Owner.LastName == "" {
		errs = append(errs, exchange.FieldError{Field: "owner", Message: "first and last name required"})
	}
	if req.Insured.FirstName == "" || req.Insured.LastName == "" {
		errs = append(errs, exchange.FieldError{Field: "insured", Message: "first and last name required"})
	}
	if req.Agent.FirstName == "" || req.Agent.LastName == "" {
		errs = append(errs, exchange.FieldError{Field: "agent", Message: "first and last name required"})
	}
	if len(req.SourceAccounts) == 0 {
		errs = append(errs, exchange.FieldError{Field: "sourceAccounts", Message: "at least one source account required"})
	}
	if !s.rules.ValidExchangeValue(req.EstimatedValue) {
		errs = append(errs, exchange.FieldError{Field: "estimatedValue", Message: "outside allowed exchange value range"})
	}

	for i, src := range req.SourceAccounts {
		if !s.rules.EligibleTarget(src.AccountType, req.TargetProductType) {
			errs = append(errs, exchange.FieldError{
				Field:   fmt.Sprintf("sourceAccounts[%d].accountType", i),
				Message: fmt.Sprintf("%s may not exchange into %s under section 1035", src.AccountType, req.TargetProductType),
			})
		}
		if err := s.rules.SourceAccountEligible(exchange.Account{
			AccountNumber:    src.AccountNumber,
			CarrierID:        src.CarrierID,
			CurrentValue:     src.CurrentValue,
			SurrenderValue:   src.SurrenderValue,
			OutstandingLoans: src.OutstandingLoans,
		}); err != nil {
			if ve, ok := err.(exchange.ValidationErrors); ok {
				for _, fe := range ve {
					fe.Field = fmt.Sprintf("sourceAccounts[%d].%s", i, fe.Field)
					errs = append(errs, fe)
				}
			}
		}
	}

	if len(errs) > 0 {
		return errs
	}
	return nil
}

func (s *Store) createPartyLocked(in PartyInput) exchange.Party {
	return create(&s.data.parties, exchange.Party{
		FirstName:     in.FirstName,
		LastName:      in.LastName,
		MiddleName:    in.MiddleName,
		Email:         in.Email,
		Phone:         in.Phone,
		DateOfBirth:   in.DateOfBirth,
		SSN:           in.SSN,
		Gender:        in.Gender,
		AddressLine1:  in.AddressLine1,
		AddressLine2:  in.AddressLine2,
		City:          in.City,
		State:         in.State,
		ZipCode:       in.ZipCode,
		Country:       in.Country,
		LicenseNumber: in.LicenseNumber,
		AgencyName:    in.AgencyName,
		AgencyAddress: in.AgencyAddress,
		Department:    in.Department,
		IsActive:      true,
	}, s.newID(), s.now())
}

func (s *Store) createRelationLocked(partyID, ticketID, accountID string, relType exchange.RelationType,
	relToOwner exchange.RelationshipToOwner, userRole exchange.UserRole, start time.Time) exchange.Relation {
	return create(&s.data.relations, exchange.Relation{
		PartyID:             partyID,
		DropTicketID:        ticketID,
		AccountID:           accountID,
		RelationType:        relType,
		RelationshipToOwner: relToOwner,
		UserRole:            userRole,
		StartDate:           start,
		IsActive:            true,
	}, s.newID(), s.now())
}

// =============================================================================
// UPDATE DROP TICKET STATUS
// =============================================================================

// UpdateDropTicketStatus moves a ticket to a new status. The terminal
// completed state additionally computes the exchange summary (total value,
// cycle time) and emits exchange-completed; other transitions are audited
// without an event, matching the observable workflow.
func (s *Store) UpdateDropTicketStatus(ctx context.Context, id string, status exchange.DropTicketStatus,
	reason string, actor exchange.Actor) (exchange.DropTicket, bool, error) {

	if err := s.simulate(ctx); err != nil {
		return exchange.DropTicket{}, false, err
	}
	if !validTicketStatus(status) {
		return exchange.DropTicket{}, false, exchange.ValidationErrors{
			{Field: "status", Message: fmt.Sprintf("unknown status %q", status)},
		}
	}

	s.mu.Lock()
	existing, ok := findByID[exchange.DropTicket](s.data.tickets, id)
	if !ok {
		s.mu.Unlock()
		return exchange.DropTicket{}, false, nil
	}
	oldStatus := existing.Status

	updated, _ := update(s.data.tickets, id, s.now(), func(t *exchange.DropTicket) {
		t.Status = status
	})

	if reason == "" {
		reason = fmt.Sprintf("Status changed from %s to %s", oldStatus, status)
	}
	row := s.appendAuditLocked(id, actor, exchange.AuditUpdate, exchange.EntityDropTicket, id,
		map[string]any{"status": string(oldStatus)},
		map[string]any{"status": string(status)},
		reason)

	var evts []events.Event
	if status == exchange.TicketCompleted {
		accounts := findWhere(s.data.accounts, func(a exchange.Account) bool {
			return a.DropTicketID == id
		})
		totalValue := decimal.Zero
		transferred := 0
		targetAccountNumber := ""
		for _, a := range accounts {
			totalValue = totalValue.Add(a.CurrentValue)
			if a.Status == exchange.AccountTransferred {
				transferred++
			}
			if !a.IsSourceAccount && targetAccountNumber == "" {
				targetAccountNumber = a.AccountNumber
			}
		}
		cycleHours := int(s.now().Sub(updated.SubmissionDate).Hours())

		evts = append(evts, events.NewEvent(id, "DropTicket", events.ExchangeCompletedData{
			TicketNumber:        updated.TicketNumber,
			TotalValue:          totalValue,
			CycleTimeHours:      cycleHours,
			AccountsTransferred: transferred,
			TargetAccountNumber: targetAccountNumber,
		}, events.Metadata{UserID: actor.UserID, IPAddress: actor.IPAddress, UserAgent: actor.UserAgent}))
	}
	s.mu.Unlock()

	s.flush([]exchange.AuditLog{row}, evts)
	return updated, true, nil
}

func validTicketStatus(status exchange.DropTicketStatus) bool {
	for _, st := range exchange.DropTicketStatuses {
		if st == status {
			return true
		}
	}
	return false
}

func validAccountStatus(status exchange.AccountStatus) bool {
	for _, st := range exchange.AccountStatuses {
		if st == status {
			return true
		}
	}
	return false
}

// =============================================================================
// UPDATE ACCOUNT STATUS
// =============================================================================

// UpdateAccountStatus updates one account. The validated status emits
// account-validated with the computed 1035 eligibility; confirmed emits
// transfer-confirmed with the transfer value.
func (s *Store) UpdateAccountStatus(ctx context.Context, req UpdateAccountStatusRequest, actor exchange.Actor) (exchange.Account, bool, error) {
	if err := s.simulate(ctx); err != nil {
		return exchange.Account{}, false, err
	}
	if !validAccountStatus(req.Status) {
		return exchange.Account{}, false, exchange.ValidationErrors{
			{Field: "status", Message: fmt.Sprintf("unknown status %q", req.Status)},
		}
	}

	s.mu.Lock()
	existing, ok := findByID[exchange.Account](s.data.accounts, req.AccountID)
	if !ok {
		s.mu.Unlock()
		return exchange.Account{}, false, nil
	}
	oldStatus := existing.Status

	updated, _ := update(s.data.accounts, req.AccountID, s.now(), func(a *exchange.Account) {
		a.Status = req.Status
		if req.ValidationNotes != "" {
			a.ValidationNotes = req.ValidationNotes
		}
		if req.CurrentValue != nil {
			a.CurrentValue = *req.CurrentValue
		}
		if req.SurrenderValue != nil {
			a.SurrenderValue = *req.SurrenderValue
		}
	})

	notes := req.ValidationNotes
	if notes == "" {
		notes = "No notes provided"
	}
	row := s.appendAuditLocked(updated.DropTicketID, actor, exchange.AuditUpdate, exchange.EntityAccount, req.AccountID,
		map[string]any{"status": string(oldStatus)},
		map[string]any{"status": string(req.Status)},
		"Account status updated: "+notes)

	meta := events.Metadata{UserID: actor.UserID, IPAddress: actor.IPAddress, UserAgent: actor.UserAgent}
	var evts []events.Event
	switch req.Status {
	case exchange.AccountValidated:
		evts = append(evts, events.NewEvent(updated.DropTicketID, "DropTicket", events.AccountValidatedData{
			AccountID:        updated.ID,
			AccountNumber:    updated.AccountNumber,
			CarrierID:        updated.CarrierID,
			ValidationResult: "passed",
			ValidationNotes:  req.ValidationNotes,
			EligibleFor1035:  s.rules.LoanWithinThreshold(updated.OutstandingLoans, updated.SurrenderValue),
		}, meta))
	case exchange.AccountConfirmed:
		evts = append(evts, events.NewEvent(updated.DropTicketID, "DropTicket", events.TransferConfirmedData{
			AccountID:             updated.ID,
			AccountNumber:         updated.AccountNumber,
			CarrierID:             updated.CarrierID,
			TransferValue:         updated.TransferValue(),
			ConfirmationMethod:    exchange.MethodEmail,
			ConfirmationReference: fmt.Sprintf("CONF_%d", s.now().UnixMilli()),
		}, meta))
	}
	s.mu.Unlock()

	s.flush([]exchange.AuditLog{row}, evts)
	return updated, true, nil
}

// =============================================================================
// CARRIER COMMUNICATION
// =============================================================================

// SendCarrierCommunication records an outbound request to a carrier. The SLA
// deadline is fixed from the carrier's response window at send time and is
// never recomputed afterwards.
func (s *Store) SendCarrierCommunication(ctx context.Context, dropTicketID, accountID, carrierID, content string,
	actor exchange.Actor) (exchange.CarrierCommunication, error) {

	if err := s.simulate(ctx); err != nil {
		return exchange.CarrierCommunication{}, err
	}

	s.mu.Lock()
	if _, ok := findByID[exchange.DropTicket](s.data.tickets, dropTicketID); !ok {
		s.mu.Unlock()
		return exchange.CarrierCommunication{}, &exchange.NotFoundError{Entity: exchange.EntityDropTicket, ID: dropTicketID}
	}

	method := exchange.MethodEmail
	slaHours := s.rules.DefaultSLAHours
	if carrier, ok := findByID[exchange.Carrier](s.data.carriers, carrierID); ok {
		method = carrier.PreferredCommunication
		if carrier.SLAHours > 0 {
			slaHours = carrier.SLAHours
		}
	}

	now := s.now()
	sentAt := now
	deadline := now.Add(time.Duration(slaHours) * time.Hour)

	comm := create(&s.data.communications, exchange.CarrierCommunication{
		DropTicketID:      dropTicketID,
		AccountID:         accountID,
		CarrierID:         carrierID,
		CommunicationType: exchange.CommRequest,
		Method:            method,
		Direction:         exchange.DirectionOutbound,
		Subject:           "1035 Exchange Request - Account " + accountID,
		Content:           content,
		Status:            exchange.CommunicationSent,
		SentAt:            &sentAt,
		SLADeadline:       &deadline,
		CreatedBy:         actor.UserID,
	}, s.newID(), now)

	row := s.appendAuditLocked(dropTicketID, actor, exchange.AuditCommunicate, exchange.EntityCommunication, comm.ID,
		nil,
		map[string]any{
			"carrierId": carrierID,
			"method":    string(method),
			"status":    string(comm.Status),
		},
		"Carrier communication sent")

	ev := events.NewEvent(dropTicketID, "DropTicket", events.CarrierRequestSentData{
		CommunicationID: comm.ID,
		CarrierID:       carrierID,
		AccountID:       accountID,
		Method:          method,
		SLADeadline:     deadline,
	}, events.Metadata{UserID: actor.UserID, IPAddress: actor.IPAddress, UserAgent: actor.UserAgent})
	s.mu.Unlock()

	s.flush([]exchange.AuditLog{row}, []events.Event{ev})
	return comm, nil
}

// RecordCarrierResponse marks an outbound communication as responded,
// closing its SLA window.
func (s *Store) RecordCarrierResponse(ctx context.Context, communicationID string, actor exchange.Actor) (exchange.CarrierCommunication, bool, error) {
	if err := s.simulate(ctx); err != nil {
		return exchange.CarrierCommunication{}, false, err
	}

	s.mu.Lock()
	now := s.now()
	updated, ok := update(s.data.communications, communicationID, now, func(c *exchange.CarrierCommunication) {
		c.Status = exchange.CommunicationResponded
		c.RespondedAt = &now
	})
	if !ok {
		s.mu.Unlock()
		return exchange.CarrierCommunication{}, false, nil
	}

	row := s.appendAuditLocked(updated.DropTicketID, actor, exchange.AuditUpdate, exchange.EntityCommunication, communicationID,
		map[string]any{"status": string(exchange.CommunicationSent)},
		map[string]any{"status": string(exchange.CommunicationResponded)},
		"Carrier response recorded")
	s.mu.Unlock()

	s.flush([]exchange.AuditLog{row}, nil)
	return updated, true, nil
}

// =============================================================================
// PARTIES AND RELATIONS
// =============================================================================

// CreateParty adds a standalone party (plus a user relation when a role is
// supplied). Audited, no event, matching the workflow's observable behavior.
func (s *Store) CreateParty(ctx context.Context, in PartyInput, actor exchange.Actor) (exchange.Party, error) {
	if err := s.simulate(ctx); err != nil {
		return exchange.Party{}, err
	}
	var errs exchange.ValidationErrors
	if in.FirstName == "" || in.LastName == "" {
		errs = append(errs, exchange.FieldError{Field: "name", Message: "first and last name required"})
	}
	if in.Email != "" && !exchange.ValidEmail(in.Email) {
		errs = append(errs, exchange.FieldError{Field: "email", Message: "invalid format"})
	}
	if in.SSN != "" && !exchange.ValidSSN(in.SSN) {
		errs = append(errs, exchange.FieldError{Field: "ssn", Message: "invalid format"})
	}
	if len(errs) > 0 {
		return exchange.Party{}, errs
	}

	s.mu.Lock()
	party := s.createPartyLocked(in)
	if in.UserRole != "" {
		s.createRelationLocked(party.ID, "", "", exchange.RelationUser, "", in.UserRole, s.now())
	}
	row := s.appendAuditLocked("", actor, exchange.AuditCreate, exchange.EntityParty, party.ID,
		nil,
		map[string]any{
			"firstName": party.FirstName,
			"lastName":  party.LastName,
			"email":     party.Email,
		},
		"Party created")
	s.mu.Unlock()

	s.flush([]exchange.AuditLog{row}, nil)
	return party, nil
}

// CreateRelation links a party to a ticket or account and announces it.
func (s *Store) CreateRelation(ctx context.Context, req CreateRelationRequest, actor exchange.Actor) (exchange.Relation, error) {
	if err := s.simulate(ctx); err != nil {
		return exchange.Relation{}, err
	}
	if req.PartyID == "" {
		return exchange.Relation{}, exchange.ValidationErrors{{Field: "partyId", Message: "required"}}
	}

	s.mu.Lock()
	if _, ok := findByID[exchange.Party](s.data.parties, req.PartyID); !ok {
		s.mu.Unlock()
		return exchange.Relation{}, &exchange.NotFoundError{Entity: exchange.EntityParty, ID: req.PartyID}
	}

	relation := create(&s.data.relations, exchange.Relation{
		PartyID:             req.PartyID,
		DropTicketID:        req.DropTicketID,
		AccountID:           req.AccountID,
		RelationType:        req.RelationType,
		RelationshipToOwner: req.RelationshipToOwner,
		UserRole:            req.UserRole,
		StartDate:           req.StartDate,
		EndDate:             req.EndDate,
		IsActive:            true,
		Metadata:            cloneMap(req.Metadata),
	}, s.newID(), s.now())

	row := s.appendAuditLocked(req.DropTicketID, actor, exchange.AuditCreate, exchange.EntityRelation, relation.ID,
		nil,
		map[string]any{
			"partyId":      req.PartyID,
			"relationType": string(req.RelationType),
			"userRole":     string(req.UserRole),
		},
		"Relation created")

	aggregateID := req.DropTicketID
	aggregateType := "DropTicket"
	if aggregateID == "" {
		aggregateID, aggregateType = req.AccountID, "Account"
	}
	if aggregateID == "" {
		aggregateID, aggregateType = relation.ID, "Relation"
	}
	ev := events.NewEvent(aggregateID, aggregateType, events.PartyRelationCreatedData{
		RelationID:          relation.ID,
		PartyID:             req.PartyID,
		RelationType:        req.RelationType,
		RelationshipToOwner: req.RelationshipToOwner,
		UserRole:            req.UserRole,
		StartDate:           relation.StartDate,
	}, events.Metadata{UserID: actor.UserID, IPAddress: actor.IPAddress, UserAgent: actor.UserAgent})
	s.mu.Unlock()

	s.flush([]exchange.AuditLog{row}, []events.Event{ev})
	return relation, nil
}

// =============================================================================
// OVERRIDES
// =============================================================================

// ApplyOverride records a manual exception against a ticket and announces it.
func (s *Store) ApplyOverride(ctx context.Context, req ApplyOverrideRequest, actor exchange.Actor) (exchange.Override, error) {
	if err := s.simulate(ctx); err != nil {
		return exchange.Override{}, err
	}
	if req.Justification == "" {
		return exchange.Override{}, exchange.ValidationErrors{{Field: "justification", Message: "required"}}
	}

	s.mu.Lock()
	if _, ok := findByID[exchange.DropTicket](s.data.tickets, req.DropTicketID); !ok {
		s.mu.Unlock()
		return exchange.Override{}, &exchange.NotFoundError{Entity: exchange.EntityDropTicket, ID: req.DropTicketID}
	}

	now := s.now()
	override := create(&s.data.overrides, exchange.Override{
		DropTicketID:  req.DropTicketID,
		OverrideType:  req.OverrideType,
		OriginalValue: req.OriginalValue,
		NewValue:      req.NewValue,
		Justification: req.Justification,
		ApprovedBy:    actor.UserID,
		ApprovalDate:  now,
	}, s.newID(), now)

	row := s.appendAuditLocked(req.DropTicketID, actor, exchange.AuditOverride, exchange.EntityDropTicket, req.DropTicketID,
		map[string]any{"value": req.OriginalValue},
		map[string]any{"value": req.NewValue},
		req.Justification)

	ev := events.NewEvent(req.DropTicketID, "DropTicket", events.OverrideAppliedData{
		OverrideType:  req.OverrideType,
		OriginalValue: req.OriginalValue,
		NewValue:      req.NewValue,
		Justification: req.Justification,
		ApprovedBy:    actor.UserID,
	}, events.Metadata{UserID: actor.UserID, IPAddress: actor.IPAddress, UserAgent: actor.UserAgent})
	s.mu.Unlock()

	s.flush([]exchange.AuditLog{row}, []events.Event{ev})
	return override, nil
}

// =============================================================================
// DOCUMENTS
// =============================================================================

// AddDocument records metadata for an uploaded file. The upload itself is
// outside this repository.
func (s *Store) AddDocument(ctx context.Context, doc exchange.Document, actor exchange.Actor) (exchange.Document, error) {
	if err := s.simulate(ctx); err != nil {
		return exchange.Document{}, err
	}

	s.mu.Lock()
	if _, ok := findByID[exchange.DropTicket](s.data.tickets, doc.DropTicketID); !ok {
		s.mu.Unlock()
		return exchange.Document{}, &exchange.NotFoundError{Entity: exchange.EntityDropTicket, ID: doc.DropTicketID}
	}
	doc.UploadedBy = actor.UserID
	stored := create(&s.data.documents, doc, s.newID(), s.now())

	row := s.appendAuditLocked(doc.DropTicketID, actor, exchange.AuditCreate, exchange.EntityDocument, stored.ID,
		nil,
		map[string]any{
			"filename":     stored.Filename,
			"documentType": string(stored.DocumentType),
		},
		"Document attached")
	s.mu.Unlock()

	s.flush([]exchange.AuditLog{row}, nil)
	return stored, nil
}

// DeleteDocument removes a document record. The rarely-used hard delete;
// reports whether a removal occurred.
func (s *Store) DeleteDocument(ctx context.Context, id string, actor exchange.Actor) (bool, error) {
	if err := s.simulate(ctx); err != nil {
		return false, err
	}

	s.mu.Lock()
	doc, ok := findByID[exchange.Document](s.data.documents, id)
	if !ok {
		s.mu.Unlock()
		return false, nil
	}
	remove[exchange.Document](&s.data.documents, id)

	row := s.appendAuditLocked(doc.DropTicketID, actor, exchange.AuditDelete, exchange.EntityDocument, id,
		map[string]any{"filename": doc.Filename},
		nil,
		"Document removed")
	s.mu.Unlock()

	s.flush([]exchange.AuditLog{row}, nil)
	return true, nil
}
