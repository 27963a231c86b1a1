/*
seed.go - Demo fixtures

PURPOSE:
  Loads a small, self-consistent data set for demos and local development:
  three carriers, a handful of parties, two exchange tickets in different
  lifecycle stages, their accounts, relations, and one open carrier
  communication. After loading, the contents are captured as the baseline
  snapshot that Reset restores.

  Seeding writes collections directly, bypassing the domain operations, so
  no audit rows or events are produced for fixture data.
*/
package store

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/warp/exchange-engine/exchange"
)

// Seed loads the demo fixtures and captures them as the reset baseline.
// Call once, before serving traffic.
func (s *Store) Seed() {
	s.mu.Lock()

	now := s.now()
	dob := func(y int, m time.Month, d int) *time.Time {
		t := time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
		return &t
	}

	// Carriers
	meridian := create(&s.data.carriers, exchange.Carrier{
		Name:                   "Meridian Life",
		Code:                   "MRD",
		ContactEmail:           "exchanges@meridianlife.example.com",
		ContactPhone:           "555-0100",
		PreferredCommunication: exchange.MethodEmail,
		SLAHours:               48,
		IsActive:               true,
	}, s.newID(), now)
	granite := create(&s.data.carriers, exchange.Carrier{
		Name:                   "Granite Mutual",
		Code:                   "GRM",
		ContactEmail:           "1035desk@granitemutual.example.com",
		ContactPhone:           "555-0101",
		PreferredCommunication: exchange.MethodFax,
		SLAHours:               72,
		IsActive:               true,
	}, s.newID(), now)
	artemis := create(&s.data.carriers, exchange.Carrier{
		Name:                   "Artemis Financial",
		Code:                   "ATF",
		ContactEmail:           "transfers@artemisfinancial.example.com",
		PreferredCommunication: exchange.MethodAPI,
		APIEndpoint:            "https://api.artemisfinancial.example.com/v2/exchanges",
		SLAHours:               24,
		IsActive:               true,
	}, s.newID(), now)

	// Parties
	owner := create(&s.data.parties, exchange.Party{
		FirstName:    "Robert",
		LastName:     "Chen",
		Email:        "robert.chen@example.com",
		Phone:        "555-0142",
		DateOfBirth:  dob(1968, time.March, 14),
		SSN:          "123-45-6789",
		Gender:       exchange.GenderMale,
		AddressLine1: "412 Birchwood Lane",
		City:         "Columbus",
		State:        "OH",
		ZipCode:      "43215",
		Country:      "US",
		IsActive:     true,
	}, s.newID(), now)
	insured := create(&s.data.parties, exchange.Party{
		FirstName:   "Diane",
		LastName:    "Chen",
		Email:       "diane.chen@example.com",
		DateOfBirth: dob(1970, time.July, 2),
		SSN:         "987-65-4321",
		Gender:      exchange.GenderFemale,
		City:        "Columbus",
		State:       "OH",
		ZipCode:     "43215",
		Country:     "US",
		IsActive:    true,
	}, s.newID(), now)
	agent := create(&s.data.parties, exchange.Party{
		FirstName:     "Priya",
		LastName:      "Raman",
		Email:         "priya.raman@harborpoint.example.com",
		Phone:         "555-0177",
		LicenseNumber: "OH-INS-448812",
		AgencyName:    "Harborpoint Advisors",
		AgencyAddress: "900 Market St, Columbus, OH",
		IsActive:      true,
	}, s.newID(), now)
	opsUser := create(&s.data.parties, exchange.Party{
		FirstName:  "Marcus",
		LastName:   "Webb",
		Email:      "marcus.webb@warp.example.com",
		Department: "Exchange Operations",
		IsActive:   true,
	}, s.newID(), now)

	// Ticket 1: in progress, one source policy awaiting carrier response
	submitted1 := now.Add(-62 * time.Hour)
	t1 := create(&s.data.tickets, exchange.DropTicket{
		TicketNumber:      "EX000101",
		Status:            exchange.TicketInProgress,
		Priority:          exchange.PriorityHigh,
		SubmissionDate:    submitted1,
		TargetProductType: exchange.ProductAnnuity,
		TargetCarrierID:   artemis.ID,
		EstimatedValue:    decimal.NewFromInt(185000),
		Notes:             "Client consolidating two legacy policies into a single annuity.",
		CreatedBy:         agent.ID,
		AssignedTo:        opsUser.ID,
	}, s.newID(), now)

	issue1 := dob(2009, time.May, 20)
	a1 := create(&s.data.accounts, exchange.Account{
		DropTicketID:     t1.ID,
		AccountNumber:    "ML-7782041",
		CarrierID:        meridian.ID,
		AccountType:      exchange.ProductLifeInsurance,
		ProductName:      "Meridian Whole Life Select",
		IssueDate:        issue1,
		CurrentValue:     decimal.NewFromInt(121500),
		SurrenderValue:   decimal.NewFromInt(118200),
		OutstandingLoans: decimal.NewFromInt(9500),
		Status:           exchange.AccountAwaitingCarrier,
		IsSourceAccount:  true,
		ValidationNotes:  "Loan ratio 0.08, well within threshold.",
	}, s.newID(), now)
	create(&s.data.accounts, exchange.Account{
		DropTicketID:     t1.ID,
		AccountNumber:    "GM-5531190",
		CarrierID:        granite.ID,
		AccountType:      exchange.ProductAnnuity,
		ProductName:      "Granite Fixed Annuity 5",
		IssueDate:        dob(2014, time.November, 3),
		CurrentValue:     decimal.NewFromInt(63400),
		SurrenderValue:   decimal.NewFromInt(61900),
		OutstandingLoans: decimal.Zero,
		Status:           exchange.AccountValidated,
		IsSourceAccount:  true,
	}, s.newID(), now)

	create(&s.data.relations, exchange.Relation{
		PartyID: owner.ID, DropTicketID: t1.ID,
		RelationType: exchange.RelationOwner,
		StartDate:    submitted1, IsActive: true,
	}, s.newID(), now)
	create(&s.data.relations, exchange.Relation{
		PartyID: insured.ID, DropTicketID: t1.ID,
		RelationType:        exchange.RelationInsured,
		RelationshipToOwner: exchange.RelSpouse,
		StartDate:           submitted1, IsActive: true,
	}, s.newID(), now)
	create(&s.data.relations, exchange.Relation{
		PartyID: agent.ID, DropTicketID: t1.ID,
		RelationType: exchange.RelationAgent,
		StartDate:    submitted1, IsActive: true,
	}, s.newID(), now)
	create(&s.data.relations, exchange.Relation{
		PartyID:      opsUser.ID,
		RelationType: exchange.RelationUser,
		UserRole:     exchange.RoleOperationsStaff,
		StartDate:    now.Add(-2000 * time.Hour), IsActive: true,
	}, s.newID(), now)

	// Open outbound request against Meridian's 48h window, ~30h left
	sent1 := now.Add(-18 * time.Hour)
	deadline1 := sent1.Add(48 * time.Hour)
	create(&s.data.communications, exchange.CarrierCommunication{
		DropTicketID:      t1.ID,
		AccountID:         a1.ID,
		CarrierID:         meridian.ID,
		CommunicationType: exchange.CommRequest,
		Method:            exchange.MethodEmail,
		Direction:         exchange.DirectionOutbound,
		Subject:           "1035 Exchange Request - Account " + a1.AccountNumber,
		Content:           "Requesting surrender and transfer of policy ML-7782041 under section 1035.",
		Status:            exchange.CommunicationDelivered,
		SentAt:            &sent1,
		SLADeadline:       &deadline1,
		CreatedBy:         opsUser.ID,
	}, s.newID(), now)

	// Ticket 2: completed last month
	submitted2 := now.Add(-31 * 24 * time.Hour)
	t2 := create(&s.data.tickets, exchange.DropTicket{
		TicketNumber:      "EX000088",
		Status:            exchange.TicketCompleted,
		Priority:          exchange.PriorityNormal,
		SubmissionDate:    submitted2,
		TargetProductType: exchange.ProductAnnuity,
		TargetCarrierID:   granite.ID,
		EstimatedValue:    decimal.NewFromInt(74000),
		CreatedBy:         agent.ID,
	}, s.newID(), now)

	create(&s.data.accounts, exchange.Account{
		DropTicketID:    t2.ID,
		AccountNumber:   "ML-6610553",
		CarrierID:       meridian.ID,
		AccountType:     exchange.ProductLifeInsurance,
		ProductName:     "Meridian Term Convert",
		CurrentValue:    decimal.NewFromInt(74250),
		SurrenderValue:  decimal.NewFromInt(73100),
		Status:          exchange.AccountTransferred,
		IsSourceAccount: true,
	}, s.newID(), now)
	create(&s.data.accounts, exchange.Account{
		DropTicketID:    t2.ID,
		AccountNumber:   "GM-9004417",
		CarrierID:       granite.ID,
		AccountType:     exchange.ProductAnnuity,
		ProductName:     "Granite Fixed Annuity 5",
		CurrentValue:    decimal.NewFromInt(73100),
		Status:          exchange.AccountTransferred,
		IsSourceAccount: false,
	}, s.newID(), now)

	create(&s.data.relations, exchange.Relation{
		PartyID: owner.ID, DropTicketID: t2.ID,
		RelationType: exchange.RelationOwner,
		StartDate:    submitted2, IsActive: true,
	}, s.newID(), now)
	create(&s.data.relations, exchange.Relation{
		PartyID: agent.ID, DropTicketID: t2.ID,
		RelationType: exchange.RelationAgent,
		StartDate:    submitted2, IsActive: true,
	}, s.newID(), now)

	s.mu.Unlock()

	s.captureBaseline()
	s.log.WithField("tickets", 2).Info("demo fixtures loaded")
}
