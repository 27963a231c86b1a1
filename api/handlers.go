/*
handlers.go - HTTP API handlers for the exchange engine

PURPOSE:
  Exposes the exchange repository, event bus, and realtime manager via REST.
  Handles HTTP request/response, JSON serialization, and delegates to domain
  logic.

REQUEST FLOW:
  1. Parse HTTP request
  2. Validate input (validator tags on the DTO)
  3. Call domain logic (repository operation, bus query)
  4. Serialize response
  5. Handle errors

ERROR HANDLING:
  Errors are returned as JSON with appropriate HTTP status:
  - 400: Malformed body, invalid decimals/dates
  - 404: Record not found
  - 422: Business rule rejections (loan ratio, eligibility matrix)
  - 500: Internal errors

ACTOR ATTRIBUTION:
  The acting user comes from the X-User-Id header, falling back to
  "demo-user". There is no authentication; the header is trusted as-is.

SECURITY NOTE:
  Currently NO authentication or authorization. All endpoints are public.

SEE ALSO:
  - dto.go: Request/response data structures
  - server.go: Router setup and middleware
*/
package api

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	"github.com/sirupsen/logrus"

	"github.com/warp/exchange-engine/events"
	"github.com/warp/exchange-engine/exchange"
	"github.com/warp/exchange-engine/realtime"
	"github.com/warp/exchange-engine/store"
	"github.com/warp/exchange-engine/store/sqlite"
)

// =============================================================================
// HANDLER CONTEXT
// =============================================================================

// Handler holds all dependencies for HTTP handlers. Archive may be nil when
// the durable store is disabled.
type Handler struct {
	Store    *store.Store
	Bus      *events.Bus
	Realtime *realtime.Manager
	Archive  *sqlite.Archive

	validate *validator.Validate
	log      *logrus.Logger
}

// NewHandler wires the handler's dependencies.
func NewHandler(repo *store.Store, bus *events.Bus, rt *realtime.Manager, archive *sqlite.Archive, log *logrus.Logger) *Handler {
	if log == nil {
		log = logrus.StandardLogger()
	}
	return &Handler{
		Store:    repo,
		Bus:      bus,
		Realtime: rt,
		Archive:  archive,
		validate: validator.New(),
		log:      log,
	}
}

// actor extracts mutation attribution from request headers.
func actor(r *http.Request) exchange.Actor {
	userID := r.Header.Get("X-User-Id")
	if userID == "" {
		userID = "demo-user"
	}
	return exchange.Actor{
		UserID:    userID,
		IPAddress: r.RemoteAddr,
		UserAgent: r.UserAgent(),
	}
}

// decodeAndValidate decodes the JSON body into dst and runs validator tags.
func (h *Handler) decodeAndValidate(w http.ResponseWriter, r *http.Request, dst any) bool {
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return false
	}
	if err := h.validate.Struct(dst); err != nil {
		writeError(w, http.StatusBadRequest, "Validation failed", err)
		return false
	}
	return true
}

// writeDomainError maps repository errors to HTTP statuses.
func writeDomainError(w http.ResponseWriter, err error) {
	switch {
	case exchange.IsNotFound(err):
		writeError(w, http.StatusNotFound, "Not found", err)
	case exchange.IsValidation(err):
		writeError(w, http.StatusUnprocessableEntity, "Business rule rejected the request", err)
	default:
		writeError(w, http.StatusInternalServerError, "Internal error", err)
	}
}

// =============================================================================
// EXCHANGE (DROP TICKET) HANDLERS
// =============================================================================

// ListExchanges returns all drop tickets.
// GET /api/exchanges
func (h *Handler) ListExchanges(w http.ResponseWriter, r *http.Request) {
	tickets, err := h.Store.DropTickets(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to list exchanges", err)
		return
	}
	writeJSON(w, http.StatusOK, tickets)
}

// SubmitExchange accepts a full wizard submission.
// POST /api/exchanges
func (h *Handler) SubmitExchange(w http.ResponseWriter, r *http.Request) {
	var dto SubmitExchangeRequest
	if !h.decodeAndValidate(w, r, &dto) {
		return
	}
	req, err := dto.toRequest()
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid monetary value", err)
		return
	}

	ticket, err := h.Store.SubmitDropTicket(r.Context(), req, actor(r))
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, ticket)
}

// GetExchange returns one ticket.
// GET /api/exchanges/{id}
func (h *Handler) GetExchange(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	ticket, ok := h.Store.DropTicketByID(r.Context(), id)
	if !ok {
		writeError(w, http.StatusNotFound, "Exchange not found", nil)
		return
	}
	writeJSON(w, http.StatusOK, ticket)
}

// UpdateExchangeStatus moves a ticket through its lifecycle.
// POST /api/exchanges/{id}/status
func (h *Handler) UpdateExchangeStatus(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	var dto UpdateStatusRequest
	if !h.decodeAndValidate(w, r, &dto) {
		return
	}

	ticket, found, err := h.Store.UpdateDropTicketStatus(r.Context(), id,
		exchange.DropTicketStatus(dto.Status), dto.Reason, actor(r))
	if err != nil {
		writeDomainError(w, err)
		return
	}
	if !found {
		writeError(w, http.StatusNotFound, "Exchange not found", nil)
		return
	}
	writeJSON(w, http.StatusOK, ticket)
}

// ApplyOverride records a manual exception on a ticket.
// POST /api/exchanges/{id}/override
func (h *Handler) ApplyOverride(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	var dto ApplyOverrideDTO
	if !h.decodeAndValidate(w, r, &dto) {
		return
	}

	override, err := h.Store.ApplyOverride(r.Context(), store.ApplyOverrideRequest{
		DropTicketID:  id,
		OverrideType:  exchange.OverrideType(dto.OverrideType),
		OriginalValue: dto.OriginalValue,
		NewValue:      dto.NewValue,
		Justification: dto.Justification,
	}, actor(r))
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, override)
}

// ExchangeAccounts lists a ticket's accounts.
// GET /api/exchanges/{id}/accounts
func (h *Handler) ExchangeAccounts(w http.ResponseWriter, r *http.Request) {
	accounts, err := h.Store.AccountsByDropTicket(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to list accounts", err)
		return
	}
	writeJSON(w, http.StatusOK, accounts)
}

// ExchangeRelations lists a ticket's party relations.
// GET /api/exchanges/{id}/relations
func (h *Handler) ExchangeRelations(w http.ResponseWriter, r *http.Request) {
	relations, err := h.Store.RelationsByDropTicket(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to list relations", err)
		return
	}
	writeJSON(w, http.StatusOK, relations)
}

// ExchangeCommunications lists a ticket's carrier communications.
// GET /api/exchanges/{id}/communications
func (h *Handler) ExchangeCommunications(w http.ResponseWriter, r *http.Request) {
	comms, err := h.Store.CommunicationsByDropTicket(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to list communications", err)
		return
	}
	writeJSON(w, http.StatusOK, comms)
}

// ExchangeAuditTrail lists a ticket's audit rows.
// GET /api/exchanges/{id}/audit
func (h *Handler) ExchangeAuditTrail(w http.ResponseWriter, r *http.Request) {
	rows, err := h.Store.AuditLogsByDropTicket(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to list audit trail", err)
		return
	}
	writeJSON(w, http.StatusOK, rows)
}

// =============================================================================
// ACCOUNT HANDLERS
// =============================================================================

// ListAccounts returns all accounts.
// GET /api/accounts
func (h *Handler) ListAccounts(w http.ResponseWriter, r *http.Request) {
	accounts, err := h.Store.Accounts(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to list accounts", err)
		return
	}
	writeJSON(w, http.StatusOK, accounts)
}

// GetAccount returns one account.
// GET /api/accounts/{id}
func (h *Handler) GetAccount(w http.ResponseWriter, r *http.Request) {
	account, ok := h.Store.AccountByID(r.Context(), chi.URLParam(r, "id"))
	if !ok {
		writeError(w, http.StatusNotFound, "Account not found", nil)
		return
	}
	writeJSON(w, http.StatusOK, account)
}

// UpdateAccountStatus updates an account's status and valuations.
// POST /api/accounts/{id}/status
func (h *Handler) UpdateAccountStatus(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	var dto UpdateAccountStatusDTO
	if !h.decodeAndValidate(w, r, &dto) {
		return
	}
	req, err := dto.toRequest(id)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid monetary value", err)
		return
	}

	account, found, err := h.Store.UpdateAccountStatus(r.Context(), req, actor(r))
	if err != nil {
		writeDomainError(w, err)
		return
	}
	if !found {
		writeError(w, http.StatusNotFound, "Account not found", nil)
		return
	}
	writeJSON(w, http.StatusOK, account)
}

// =============================================================================
// PARTY AND RELATION HANDLERS
// =============================================================================

// ListParties returns all parties.
// GET /api/parties
func (h *Handler) ListParties(w http.ResponseWriter, r *http.Request) {
	parties, err := h.Store.Parties(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to list parties", err)
		return
	}
	writeJSON(w, http.StatusOK, parties)
}

// CreateParty adds a standalone party.
// POST /api/parties
func (h *Handler) CreateParty(w http.ResponseWriter, r *http.Request) {
	var dto PartyDTO
	if !h.decodeAndValidate(w, r, &dto) {
		return
	}

	party, err := h.Store.CreateParty(r.Context(), dto.toInput(), actor(r))
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, party)
}

// ListRelations returns all relations.
// GET /api/relations
func (h *Handler) ListRelations(w http.ResponseWriter, r *http.Request) {
	relations, err := h.Store.Relations(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to list relations", err)
		return
	}
	writeJSON(w, http.StatusOK, relations)
}

// CreateRelation links a party to a ticket or account.
// POST /api/relations
func (h *Handler) CreateRelation(w http.ResponseWriter, r *http.Request) {
	var dto CreateRelationDTO
	if !h.decodeAndValidate(w, r, &dto) {
		return
	}

	relation, err := h.Store.CreateRelation(r.Context(), dto.toRequest(time.Now()), actor(r))
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, relation)
}

// =============================================================================
// CARRIER AND COMMUNICATION HANDLERS
// =============================================================================

// ListCarriers returns all carriers.
// GET /api/carriers
func (h *Handler) ListCarriers(w http.ResponseWriter, r *http.Request) {
	carriers, err := h.Store.Carriers(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to list carriers", err)
		return
	}
	writeJSON(w, http.StatusOK, carriers)
}

// SendCommunication records an outbound carrier request.
// POST /api/communications
func (h *Handler) SendCommunication(w http.ResponseWriter, r *http.Request) {
	var dto SendCommunicationDTO
	if !h.decodeAndValidate(w, r, &dto) {
		return
	}

	comm, err := h.Store.SendCarrierCommunication(r.Context(),
		dto.DropTicketID, dto.AccountID, dto.CarrierID, dto.Content, actor(r))
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, comm)
}

// RecordResponse marks a communication as responded.
// POST /api/communications/{id}/response
func (h *Handler) RecordResponse(w http.ResponseWriter, r *http.Request) {
	comm, found, err := h.Store.RecordCarrierResponse(r.Context(), chi.URLParam(r, "id"), actor(r))
	if err != nil {
		writeDomainError(w, err)
		return
	}
	if !found {
		writeError(w, http.StatusNotFound, "Communication not found", nil)
		return
	}
	writeJSON(w, http.StatusOK, comm)
}

// =============================================================================
// EVENT HANDLERS
// =============================================================================

// ListEvents returns bus history, optionally filtered by aggregate and
// limited to the newest N (default 100).
// GET /api/events?aggregateId=...&limit=...
func (h *Handler) ListEvents(w http.ResponseWriter, r *http.Request) {
	var history []events.Event
	if aggregateID := r.URL.Query().Get("aggregateId"); aggregateID != "" {
		history = h.Bus.EventsForAggregate(aggregateID)
	} else {
		history = h.Bus.History()
	}

	limit := 100
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 1 {
			writeError(w, http.StatusBadRequest, "Invalid limit", err)
			return
		}
		limit = n
	}
	if len(history) > limit {
		history = history[len(history)-limit:]
	}
	writeJSON(w, http.StatusOK, history)
}

// StreamEvents pushes live bus events to the client as server-sent events
// until the client disconnects.
// GET /api/events/stream
func (h *Handler) StreamEvents(w http.ResponseWriter, r *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		writeError(w, http.StatusInternalServerError, "Streaming unsupported", nil)
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)
	flusher.Flush()

	// Buffered so a slow client never blocks bus dispatch; overflow drops.
	ch := make(chan events.Event, 64)
	unsubscribe := h.Bus.Subscribe(events.Wildcard, func(ev events.Event) {
		select {
		case ch <- ev:
		default:
			h.log.WithField("eventId", ev.EventID).Warn("sse client too slow, dropping event")
		}
	})
	defer unsubscribe()

	for {
		select {
		case <-r.Context().Done():
			return
		case ev := <-ch:
			payload, err := json.Marshal(ev)
			if err != nil {
				continue
			}
			fmt.Fprintf(w, "event: %s\ndata: %s\n\n", ev.EventType, payload)
			flusher.Flush()
		}
	}
}

// =============================================================================
// ANALYTICS, REALTIME, RESET
// =============================================================================

// GetAnalytics returns the dashboard metrics.
// GET /api/analytics
func (h *Handler) GetAnalytics(w http.ResponseWriter, r *http.Request) {
	summary, err := h.Store.Summary(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to compute summary", err)
		return
	}
	carriers, err := h.Store.CarrierPerformanceReport(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to compute carrier performance", err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"summary":  summary,
		"carriers": carriers,
	})
}

// GetRealtimeState reports the connection manager's state.
// GET /api/realtime
func (h *Handler) GetRealtimeState(w http.ResponseWriter, r *http.Request) {
	dto := RealtimeStateDTO{
		State:             string(h.Realtime.State()),
		ReconnectAttempts: h.Realtime.ReconnectAttempts(),
	}
	if last := h.Realtime.LastEvent(); last != nil {
		dto.LastEventID = last.EventID
		dto.LastEventType = string(last.EventType)
	}
	writeJSON(w, http.StatusOK, dto)
}

// Reconnect forces a manual reconnect of the realtime transport.
// POST /api/realtime/reconnect
func (h *Handler) Reconnect(w http.ResponseWriter, r *http.Request) {
	if err := h.Realtime.Reconnect(); err != nil {
		writeError(w, http.StatusInternalServerError, "Reconnect failed", err)
		return
	}
	h.GetRealtimeState(w, r)
}

// ResetRepository restores the seeded snapshot and clears event history.
// POST /api/reset
func (h *Handler) ResetRepository(w http.ResponseWriter, r *http.Request) {
	h.Store.Reset()
	writeJSON(w, http.StatusOK, map[string]string{"status": "reset"})
}

// =============================================================================
// RESPONSE HELPERS
// =============================================================================

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func writeError(w http.ResponseWriter, status int, message string, err error) {
	resp := ErrorResponse{Error: message}
	if err != nil {
		resp.Details = err.Error()
	}
	writeJSON(w, status, resp)
}
