package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/sirupsen/logrus"

	"github.com/warp/exchange-engine/events"
	"github.com/warp/exchange-engine/exchange"
	"github.com/warp/exchange-engine/realtime"
	"github.com/warp/exchange-engine/store"
)

// =============================================================================
// TEST SETUP
// =============================================================================

func newTestServer(t *testing.T) (*httptest.Server, *store.Store, *events.Bus) {
	t.Helper()
	log := logrus.New()
	log.SetLevel(logrus.PanicLevel)

	bus := events.NewBus(log)
	repo := store.New(bus, store.WithLogger(log))
	repo.Seed()

	rt := realtime.NewManager(bus, realtime.NewSyntheticSource(log), realtime.Config{}, log)
	h := NewHandler(repo, bus, rt, nil, log)

	srv := httptest.NewServer(NewRouter(h))
	t.Cleanup(srv.Close)
	return srv, repo, bus
}

func doJSON(t *testing.T, method, url string, body any) *http.Response {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatalf("encoding request body: %v", err)
		}
	}
	req, err := http.NewRequest(method, url, &buf)
	if err != nil {
		t.Fatalf("building request: %v", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-User-Id", "api-test")
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("%s %s: %v", method, url, err)
	}
	return resp
}

func decodeBody[T any](t *testing.T, resp *http.Response) T {
	t.Helper()
	defer resp.Body.Close()
	var out T
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		t.Fatalf("decoding response body: %v", err)
	}
	return out
}

func submissionBody() SubmitExchangeRequest {
	return SubmitExchangeRequest{
		TargetProductType: "annuity",
		TargetCarrierID:   "car-target",
		EstimatedValue:    "200000",
		Owner:             PartyDTO{FirstName: "Olga", LastName: "Owner", Email: "olga@example.com"},
		Insured:           PartyDTO{FirstName: "Ian", LastName: "Insured"},
		InsuredRelation:   "spouse",
		Agent:             PartyDTO{FirstName: "Ana", LastName: "Agent"},
		SourceAccounts: []SourceAccountDTO{{
			AccountNumber:  "POL-900",
			CarrierID:      "car-source",
			AccountType:    "life_insurance",
			CurrentValue:   "200000",
			SurrenderValue: "195000",
		}},
	}
}

// =============================================================================
// EXCHANGES
// =============================================================================

func TestListExchanges_ReturnsSeededTickets(t *testing.T) {
	// GIVEN: A seeded server
	srv, _, _ := newTestServer(t)

	// WHEN: Listing exchanges
	resp := doJSON(t, http.MethodGet, srv.URL+"/api/exchanges", nil)

	// THEN: Both fixture tickets come back
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}
	tickets := decodeBody[[]exchange.DropTicket](t, resp)
	if len(tickets) != 2 {
		t.Fatalf("expected 2 seeded tickets, got %d", len(tickets))
	}
}

func TestSubmitExchange_CreatesTicketAndAttributesActor(t *testing.T) {
	// GIVEN: A seeded server
	srv, repo, _ := newTestServer(t)

	// WHEN: Submitting a valid exchange
	resp := doJSON(t, http.MethodPost, srv.URL+"/api/exchanges", submissionBody())

	// THEN: 201 with the created ticket, attributed to the header user
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("expected 201, got %d", resp.StatusCode)
	}
	ticket := decodeBody[exchange.DropTicket](t, resp)
	if ticket.ID == "" || ticket.TicketNumber == "" {
		t.Fatalf("ticket missing identifiers: %+v", ticket)
	}
	if ticket.CreatedBy != "api-test" {
		t.Fatalf("expected actor from X-User-Id header, got %q", ticket.CreatedBy)
	}

	// AND: It is readable back through the single-ticket endpoint
	resp = doJSON(t, http.MethodGet, srv.URL+"/api/exchanges/"+ticket.ID, nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200 fetching created ticket, got %d", resp.StatusCode)
	}
	resp.Body.Close()

	// AND: The submission audit row is attributed too
	rows, _ := repo.AuditLogsByDropTicket(context.Background(), ticket.ID)
	if len(rows) != 1 || rows[0].UserID != "api-test" {
		t.Fatalf("expected 1 audit row by api-test, got %+v", rows)
	}
}

func TestSubmitExchange_MalformedAndInvalidBodies(t *testing.T) {
	// GIVEN: A seeded server
	srv, _, _ := newTestServer(t)

	// WHEN: The body is not JSON
	req, _ := http.NewRequest(http.MethodPost, srv.URL+"/api/exchanges", bytes.NewBufferString("{nope"))
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatal(err)
	}
	resp.Body.Close()

	// THEN: 400
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("expected 400 for malformed JSON, got %d", resp.StatusCode)
	}

	// WHEN: Required fields are missing (no source accounts)
	body := submissionBody()
	body.SourceAccounts = nil
	resp = doJSON(t, http.MethodPost, srv.URL+"/api/exchanges", body)
	resp.Body.Close()

	// THEN: Rejected by validator tags before the repository runs
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("expected 400 for missing source accounts, got %d", resp.StatusCode)
	}
}

func TestSubmitExchange_BusinessRuleRejectionIs422(t *testing.T) {
	// GIVEN: A submission that passes wire validation but breaks the
	// eligibility matrix (annuity into life insurance)
	srv, _, _ := newTestServer(t)
	body := submissionBody()
	body.TargetProductType = "life_insurance"
	body.SourceAccounts[0].AccountType = "annuity"

	// WHEN: Submitted
	resp := doJSON(t, http.MethodPost, srv.URL+"/api/exchanges", body)
	defer resp.Body.Close()

	// THEN: 422 with the uniform error body
	if resp.StatusCode != http.StatusUnprocessableEntity {
		t.Fatalf("expected 422, got %d", resp.StatusCode)
	}
	errBody := decodeBody[ErrorResponse](t, resp)
	if errBody.Error == "" {
		t.Fatal("expected an error message in the body")
	}
}

func TestGetExchange_UnknownIDIs404(t *testing.T) {
	srv, _, _ := newTestServer(t)
	resp := doJSON(t, http.MethodGet, srv.URL+"/api/exchanges/dt-nope", nil)
	resp.Body.Close()
	if resp.StatusCode != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", resp.StatusCode)
	}
}

func TestUpdateExchangeStatus_RoundTrip(t *testing.T) {
	// GIVEN: A freshly submitted exchange
	srv, _, _ := newTestServer(t)
	resp := doJSON(t, http.MethodPost, srv.URL+"/api/exchanges", submissionBody())
	ticket := decodeBody[exchange.DropTicket](t, resp)

	// WHEN: Moving it to in_progress
	resp = doJSON(t, http.MethodPost, srv.URL+"/api/exchanges/"+ticket.ID+"/status",
		UpdateStatusRequest{Status: "in_progress", Reason: "carrier outreach"})

	// THEN: Updated ticket comes back
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}
	updated := decodeBody[exchange.DropTicket](t, resp)
	if updated.Status != exchange.TicketInProgress {
		t.Fatalf("expected in_progress, got %s", updated.Status)
	}

	// AND: An unknown status never reaches the repository
	resp = doJSON(t, http.MethodPost, srv.URL+"/api/exchanges/"+ticket.ID+"/status",
		map[string]string{"status": "vaporized"})
	resp.Body.Close()
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("expected 400 for unknown status, got %d", resp.StatusCode)
	}
}

func TestApplyOverride_RequiresJustification(t *testing.T) {
	// GIVEN: A seeded ticket id
	srv, repo, _ := newTestServer(t)
	tickets, _ := repo.DropTickets(context.Background())
	id := tickets[0].ID

	// WHEN: Overriding without justification
	resp := doJSON(t, http.MethodPost, srv.URL+"/api/exchanges/"+id+"/override",
		map[string]string{"overrideType": "sla_extension"})
	resp.Body.Close()

	// THEN: Rejected at the wire
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", resp.StatusCode)
	}

	// WHEN: A complete override
	resp = doJSON(t, http.MethodPost, srv.URL+"/api/exchanges/"+id+"/override", ApplyOverrideDTO{
		OverrideType:  "sla_extension",
		OriginalValue: "48h",
		NewValue:      "96h",
		Justification: "carrier outage",
	})
	defer resp.Body.Close()

	// THEN: Created
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("expected 201, got %d", resp.StatusCode)
	}
}

// =============================================================================
// ACCOUNTS AND COMMUNICATIONS
// =============================================================================

func TestUpdateAccountStatus_ValidatesEnum(t *testing.T) {
	// GIVEN: A seeded account
	srv, repo, _ := newTestServer(t)
	accounts, _ := repo.Accounts(context.Background())
	if len(accounts) == 0 {
		t.Fatal("seed produced no accounts")
	}
	url := fmt.Sprintf("%s/api/accounts/%s/status", srv.URL, accounts[0].ID)

	// WHEN: An unknown status
	resp := doJSON(t, http.MethodPost, url, map[string]string{"status": "imploded"})
	resp.Body.Close()

	// THEN: 400 from validator tags
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", resp.StatusCode)
	}

	// WHEN: A legal transition with a valuation update
	resp = doJSON(t, http.MethodPost, url, UpdateAccountStatusDTO{
		Status:         "validated",
		CurrentValue:   "122000",
		SurrenderValue: "118000",
	})

	// THEN: The account reflects both
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}
	account := decodeBody[exchange.Account](t, resp)
	if account.Status != exchange.AccountValidated {
		t.Fatalf("expected validated, got %s", account.Status)
	}
	if account.CurrentValue.String() != "122000" {
		t.Fatalf("expected updated current value, got %s", account.CurrentValue)
	}
}

func TestSendCommunication_AndRecordResponse(t *testing.T) {
	// GIVEN: A seeded ticket and carrier
	srv, repo, _ := newTestServer(t)
	tickets, _ := repo.DropTickets(context.Background())
	carriers, _ := repo.Carriers(context.Background())

	// WHEN: Sending a carrier request
	resp := doJSON(t, http.MethodPost, srv.URL+"/api/communications", SendCommunicationDTO{
		DropTicketID: tickets[0].ID,
		CarrierID:    carriers[0].ID,
		Content:      "please confirm surrender value",
	})
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("expected 201, got %d", resp.StatusCode)
	}
	comm := decodeBody[exchange.CarrierCommunication](t, resp)
	if comm.SLADeadline == nil {
		t.Fatal("expected an SLA deadline on the sent communication")
	}

	// AND WHEN: The carrier responds
	resp = doJSON(t, http.MethodPost, srv.URL+"/api/communications/"+comm.ID+"/response", nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}
	responded := decodeBody[exchange.CarrierCommunication](t, resp)
	if responded.Status != exchange.CommunicationResponded {
		t.Fatalf("expected responded, got %s", responded.Status)
	}

	// AND: Responding to a missing communication is 404
	resp = doJSON(t, http.MethodPost, srv.URL+"/api/communications/cc-nope/response", nil)
	resp.Body.Close()
	if resp.StatusCode != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", resp.StatusCode)
	}
}

// =============================================================================
// EVENTS, ANALYTICS, REALTIME, RESET
// =============================================================================

func TestListEvents_FiltersByAggregate(t *testing.T) {
	// GIVEN: One submission that produced a ticket-submitted event
	srv, _, _ := newTestServer(t)
	resp := doJSON(t, http.MethodPost, srv.URL+"/api/exchanges", submissionBody())
	ticket := decodeBody[exchange.DropTicket](t, resp)

	// WHEN: Listing events for that aggregate
	resp = doJSON(t, http.MethodGet, srv.URL+"/api/events?aggregateId="+ticket.ID, nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}
	// The data payload is a closed sum type on the Go side; decode the
	// envelope fields only.
	type envelope struct {
		EventID     string `json:"eventId"`
		EventType   string `json:"eventType"`
		AggregateID string `json:"aggregateId"`
	}
	history := decodeBody[[]envelope](t, resp)

	// THEN: Exactly the submission event
	if len(history) != 1 {
		t.Fatalf("expected 1 event for the ticket, got %d", len(history))
	}
	if history[0].EventType != string(events.TicketSubmitted) {
		t.Fatalf("expected ticket-submitted, got %s", history[0].EventType)
	}

	// AND: A garbage limit is rejected
	resp = doJSON(t, http.MethodGet, srv.URL+"/api/events?limit=zero", nil)
	resp.Body.Close()
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("expected 400 for bad limit, got %d", resp.StatusCode)
	}
}

func TestGetAnalytics_ReturnsSummaryAndCarriers(t *testing.T) {
	// GIVEN: A seeded server
	srv, _, _ := newTestServer(t)

	// WHEN: Fetching analytics
	resp := doJSON(t, http.MethodGet, srv.URL+"/api/analytics", nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}
	body := decodeBody[map[string]json.RawMessage](t, resp)

	// THEN: Both sections are present
	var summary store.ExchangeSummary
	if err := json.Unmarshal(body["summary"], &summary); err != nil {
		t.Fatalf("decoding summary: %v", err)
	}
	if summary.TotalTickets != 2 {
		t.Fatalf("expected 2 seeded tickets in summary, got %d", summary.TotalTickets)
	}
	var carriers []store.CarrierPerformance
	if err := json.Unmarshal(body["carriers"], &carriers); err != nil {
		t.Fatalf("decoding carriers: %v", err)
	}
	if len(carriers) != 3 {
		t.Fatalf("expected 3 seeded carriers, got %d", len(carriers))
	}
}

func TestGetRealtimeState_ReportsDisconnected(t *testing.T) {
	// GIVEN: A server whose manager never connected
	srv, _, _ := newTestServer(t)

	// WHEN: Fetching realtime state
	resp := doJSON(t, http.MethodGet, srv.URL+"/api/realtime", nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}
	state := decodeBody[RealtimeStateDTO](t, resp)

	// THEN: Disconnected with no attempts yet
	if state.State != string(realtime.StateDisconnected) {
		t.Fatalf("expected disconnected, got %s", state.State)
	}
	if state.ReconnectAttempts != 0 {
		t.Fatalf("expected 0 attempts, got %d", state.ReconnectAttempts)
	}
}

func TestReset_RestoresSeedAndClearsEvents(t *testing.T) {
	// GIVEN: A server with one extra submission on top of the seed
	srv, repo, bus := newTestServer(t)
	resp := doJSON(t, http.MethodPost, srv.URL+"/api/exchanges", submissionBody())
	resp.Body.Close()
	tickets, _ := repo.DropTickets(context.Background())
	if len(tickets) != 3 {
		t.Fatalf("expected 3 tickets before reset, got %d", len(tickets))
	}

	// WHEN: Resetting
	resp = doJSON(t, http.MethodPost, srv.URL+"/api/reset", nil)
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}

	// THEN: Back to the seeded snapshot with an empty event history
	tickets, _ = repo.DropTickets(context.Background())
	if len(tickets) != 2 {
		t.Fatalf("expected 2 tickets after reset, got %d", len(tickets))
	}
	if len(bus.History()) != 0 {
		t.Fatalf("expected empty history after reset, got %d events", len(bus.History()))
	}
}
