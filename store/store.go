/*
Package store provides the in-memory repository for exchange data.

PURPOSE:
  CRUD persistence substitute with auditing and eventing side effects.
  Collections are held in one Store instance that is passed to consumers
  explicitly (dependency injection), so tests can run isolated instances.
  Mutating domain operations append exactly one audit row and emit exactly
  one domain event per logical change.

CONCURRENCY:
  One mutex guards all collections. Every domain operation performs its
  "read current -> compute -> write" sequence under the lock, so the audit
  log order matches the actual mutation order. Events are captured under
  the lock and emitted after release, keeping bus handlers re-entrant.

SIMULATED LATENCY:
  An optional artificial delay on repository entry points emulates network
  calls for demos. It is context-aware and zero by default.

KEY FILES:
  - store.go:      Store handle, generic collection primitives, reset
  - operations.go: named domain operations (submit, status updates, ...)
  - analytics.go:  derived metrics
  - seed.go:       demo fixtures and the baseline snapshot

SEE ALSO:
  - events/bus.go: change notification fan-out
  - store/sqlite:  durable archive fed from the bus
*/
package store

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/warp/exchange-engine/events"
	"github.com/warp/exchange-engine/exchange"
)

// =============================================================================
// GENERIC COLLECTION PRIMITIVES
// =============================================================================

// record constrains a pointer to an entity embedding exchange.Base.
type record[T any] interface {
	*T
	RecordID() string
	StampNew(id string, now time.Time)
	Touch(now time.Time)
}

// create assigns identity and timestamps, appends, and returns the stored
// value. CreatedAt == UpdatedAt at creation time.
func create[T any, PT record[T]](items *[]T, fields T, id string, now time.Time) T {
	PT(&fields).StampNew(id, now)
	*items = append(*items, fields)
	return fields
}

// readAll returns a defensive copy of the collection.
func readAll[T any](items []T) []T {
	return append([]T(nil), items...)
}

// findByID is a linear lookup; ok is false when the id is absent.
func findByID[T any, PT record[T]](items []T, id string) (T, bool) {
	for i := range items {
		if PT(&items[i]).RecordID() == id {
			return items[i], true
		}
	}
	var zero T
	return zero, false
}

// update applies mutate to the record in place and bumps UpdatedAt. It never
// creates a record for a missing id.
func update[T any, PT record[T]](items []T, id string, now time.Time, mutate func(PT)) (T, bool) {
	for i := range items {
		p := PT(&items[i])
		if p.RecordID() == id {
			mutate(p)
			p.Touch(now)
			return items[i], true
		}
	}
	var zero T
	return zero, false
}

// remove deletes the record; reports whether a removal occurred.
func remove[T any, PT record[T]](items *[]T, id string) bool {
	for i := range *items {
		if PT(&(*items)[i]).RecordID() == id {
			*items = append((*items)[:i], (*items)[i+1:]...)
			return true
		}
	}
	return false
}

// findWhere returns all matching records as a new list.
func findWhere[T any](items []T, predicate func(T) bool) []T {
	var out []T
	for _, item := range items {
		if predicate(item) {
			out = append(out, item)
		}
	}
	return out
}

// =============================================================================
// STORE
// =============================================================================

// collections holds every named, insertion-ordered collection.
type collections struct {
	tickets        []exchange.DropTicket
	accounts       []exchange.Account
	parties        []exchange.Party
	relations      []exchange.Relation
	carriers       []exchange.Carrier
	communications []exchange.CarrierCommunication
	documents      []exchange.Document
	auditLogs      []exchange.AuditLog
	overrides      []exchange.Override
}

// AuditSink receives a durable copy of every audit row, when configured.
type AuditSink interface {
	SaveAuditRow(row exchange.AuditLog) error
}

// Store is the repository handle. Construct with New; do not copy.
type Store struct {
	mu       sync.Mutex
	bus      *events.Bus
	rules    exchange.Rules
	log      *logrus.Logger
	now      func() time.Time
	newID    func() string
	latency  time.Duration
	sink     AuditSink
	data     collections
	baseline *collections // snapshot restored by Reset
}

// Option configures a Store.
type Option func(*Store)

// WithClock injects the time source (tests).
func WithClock(now func() time.Time) Option { return func(s *Store) { s.now = now } }

// WithIDGenerator injects the id source (tests).
func WithIDGenerator(newID func() string) Option { return func(s *Store) { s.newID = newID } }

// WithLatency sets the artificial per-call delay emulating network time.
func WithLatency(d time.Duration) Option { return func(s *Store) { s.latency = d } }

// WithRules overrides the business rule thresholds.
func WithRules(r exchange.Rules) Option { return func(s *Store) { s.rules = r } }

// WithAuditSink attaches a durable audit destination.
func WithAuditSink(sink AuditSink) Option { return func(s *Store) { s.sink = sink } }

// WithLogger supplies the logger.
func WithLogger(log *logrus.Logger) Option { return func(s *Store) { s.log = log } }

// New creates an empty store publishing change events on bus.
func New(bus *events.Bus, opts ...Option) *Store {
	s := &Store{
		bus:   bus,
		rules: exchange.DefaultRules(),
		log:   logrus.StandardLogger(),
		now:   time.Now,
		newID: uuid.NewString,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Rules returns the active business rule thresholds.
func (s *Store) Rules() exchange.Rules { return s.rules }

// simulate applies the artificial latency, honoring cancellation.
func (s *Store) simulate(ctx context.Context) error {
	if s.latency <= 0 {
		return nil
	}
	timer := time.NewTimer(s.latency)
	defer timer.Stop()
	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// =============================================================================
// RESET
// =============================================================================

// captureBaseline records the current contents as the snapshot Reset
// restores. Called by the seed loader after fixtures are in place.
func (s *Store) captureBaseline() {
	s.mu.Lock()
	defer s.mu.Unlock()
	snap := cloneCollections(s.data)
	s.baseline = &snap
}

// Reset atomically restores the seeded snapshot and clears event history.
func (s *Store) Reset() {
	s.mu.Lock()
	if s.baseline != nil {
		s.data = cloneCollections(*s.baseline)
	} else {
		s.data = collections{}
	}
	s.mu.Unlock()
	s.bus.ClearHistory()
	s.log.Info("repository reset to seeded snapshot")
}

// Snapshot is a point-in-time copy of every collection, for debugging and
// state dumps. Mutating it does not affect the store.
type Snapshot struct {
	DropTickets    []exchange.DropTicket           `json:"dropTickets"`
	Accounts       []exchange.Account              `json:"accounts"`
	Parties        []exchange.Party                `json:"parties"`
	Relations      []exchange.Relation             `json:"relations"`
	Carriers       []exchange.Carrier              `json:"carriers"`
	Communications []exchange.CarrierCommunication `json:"communications"`
	Documents      []exchange.Document             `json:"documents"`
	AuditLogs      []exchange.AuditLog             `json:"auditLogs"`
	Overrides      []exchange.Override             `json:"overrides"`
}

// Snapshot returns a defensive copy of the full current state.
func (s *Store) Snapshot() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	c := cloneCollections(s.data)
	return Snapshot{
		DropTickets:    c.tickets,
		Accounts:       c.accounts,
		Parties:        c.parties,
		Relations:      c.relations,
		Carriers:       c.carriers,
		Communications: c.communications,
		Documents:      c.documents,
		AuditLogs:      c.auditLogs,
		Overrides:      c.overrides,
	}
}

func cloneCollections(c collections) collections {
	return collections{
		tickets:        append([]exchange.DropTicket(nil), c.tickets...),
		accounts:       append([]exchange.Account(nil), c.accounts...),
		parties:        append([]exchange.Party(nil), c.parties...),
		relations:      cloneRelations(c.relations),
		carriers:       append([]exchange.Carrier(nil), c.carriers...),
		communications: append([]exchange.CarrierCommunication(nil), c.communications...),
		documents:      append([]exchange.Document(nil), c.documents...),
		auditLogs:      cloneAuditLogs(c.auditLogs),
		overrides:      append([]exchange.Override(nil), c.overrides...),
	}
}

// Relations and audit rows carry maps; clone them so snapshot and live data
// never alias.
func cloneRelations(in []exchange.Relation) []exchange.Relation {
	out := append([]exchange.Relation(nil), in...)
	for i := range out {
		out[i].Metadata = cloneMap(out[i].Metadata)
	}
	return out
}

func cloneAuditLogs(in []exchange.AuditLog) []exchange.AuditLog {
	out := append([]exchange.AuditLog(nil), in...)
	for i := range out {
		out[i].OldValues = cloneAnyMap(out[i].OldValues)
		out[i].NewValues = cloneAnyMap(out[i].NewValues)
	}
	return out
}

func cloneMap(m map[string]string) map[string]string {
	if m == nil {
		return nil
	}
	out := make(map[string]string, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}

func cloneAnyMap(m map[string]any) map[string]any {
	if m == nil {
		return nil
	}
	out := make(map[string]any, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}

// =============================================================================
// READ SURFACE
// =============================================================================

func (s *Store) DropTickets(ctx context.Context) ([]exchange.DropTicket, error) {
	if err := s.simulate(ctx); err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return readAll(s.data.tickets), nil
}

func (s *Store) DropTicketByID(ctx context.Context, id string) (exchange.DropTicket, bool) {
	if err := s.simulate(ctx); err != nil {
		return exchange.DropTicket{}, false
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return findByID[exchange.DropTicket](s.data.tickets, id)
}

func (s *Store) Accounts(ctx context.Context) ([]exchange.Account, error) {
	if err := s.simulate(ctx); err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return readAll(s.data.accounts), nil
}

func (s *Store) AccountByID(ctx context.Context, id string) (exchange.Account, bool) {
	if err := s.simulate(ctx); err != nil {
		return exchange.Account{}, false
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return findByID[exchange.Account](s.data.accounts, id)
}

func (s *Store) AccountsByDropTicket(ctx context.Context, dropTicketID string) ([]exchange.Account, error) {
	if err := s.simulate(ctx); err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return findWhere(s.data.accounts, func(a exchange.Account) bool {
		return a.DropTicketID == dropTicketID
	}), nil
}

func (s *Store) Parties(ctx context.Context) ([]exchange.Party, error) {
	if err := s.simulate(ctx); err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return readAll(s.data.parties), nil
}

func (s *Store) PartyByID(ctx context.Context, id string) (exchange.Party, bool) {
	if err := s.simulate(ctx); err != nil {
		return exchange.Party{}, false
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return findByID[exchange.Party](s.data.parties, id)
}

func (s *Store) Relations(ctx context.Context) ([]exchange.Relation, error) {
	if err := s.simulate(ctx); err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return cloneRelations(s.data.relations), nil
}

func (s *Store) RelationsByDropTicket(ctx context.Context, dropTicketID string) ([]exchange.Relation, error) {
	if err := s.simulate(ctx); err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return cloneRelations(findWhere(s.data.relations, func(r exchange.Relation) bool {
		return r.DropTicketID == dropTicketID
	})), nil
}

func (s *Store) Carriers(ctx context.Context) ([]exchange.Carrier, error) {
	if err := s.simulate(ctx); err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return readAll(s.data.carriers), nil
}

func (s *Store) CarrierByID(ctx context.Context, id string) (exchange.Carrier, bool) {
	if err := s.simulate(ctx); err != nil {
		return exchange.Carrier{}, false
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return findByID[exchange.Carrier](s.data.carriers, id)
}

func (s *Store) Communications(ctx context.Context) ([]exchange.CarrierCommunication, error) {
	if err := s.simulate(ctx); err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return readAll(s.data.communications), nil
}

func (s *Store) CommunicationsByDropTicket(ctx context.Context, dropTicketID string) ([]exchange.CarrierCommunication, error) {
	if err := s.simulate(ctx); err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return findWhere(s.data.communications, func(c exchange.CarrierCommunication) bool {
		return c.DropTicketID == dropTicketID
	}), nil
}

func (s *Store) CommunicationsByAccount(ctx context.Context, accountID string) ([]exchange.CarrierCommunication, error) {
	if err := s.simulate(ctx); err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return findWhere(s.data.communications, func(c exchange.CarrierCommunication) bool {
		return c.AccountID == accountID
	}), nil
}

func (s *Store) DocumentsByDropTicket(ctx context.Context, dropTicketID string) ([]exchange.Document, error) {
	if err := s.simulate(ctx); err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return findWhere(s.data.documents, func(d exchange.Document) bool {
		return d.DropTicketID == dropTicketID
	}), nil
}

func (s *Store) AuditLogs(ctx context.Context) ([]exchange.AuditLog, error) {
	if err := s.simulate(ctx); err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return cloneAuditLogs(s.data.auditLogs), nil
}

func (s *Store) AuditLogsByDropTicket(ctx context.Context, dropTicketID string) ([]exchange.AuditLog, error) {
	if err := s.simulate(ctx); err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return cloneAuditLogs(findWhere(s.data.auditLogs, func(l exchange.AuditLog) bool {
		return l.DropTicketID == dropTicketID
	})), nil
}

func (s *Store) AuditLogsByEntity(ctx context.Context, entityType exchange.EntityType, entityID string) ([]exchange.AuditLog, error) {
	if err := s.simulate(ctx); err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return cloneAuditLogs(findWhere(s.data.auditLogs, func(l exchange.AuditLog) bool {
		return l.EntityType == entityType && l.EntityID == entityID
	})), nil
}

func (s *Store) OverridesByDropTicket(ctx context.Context, dropTicketID string) ([]exchange.Override, error) {
	if err := s.simulate(ctx); err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return findWhere(s.data.overrides, func(o exchange.Override) bool {
		return o.DropTicketID == dropTicketID
	}), nil
}

// OpenCommunications lists outbound communications still awaiting a carrier
// response. Implements realtime.CommunicationSource for the SLA monitor.
func (s *Store) OpenCommunications() []exchange.CarrierCommunication {
	s.mu.Lock()
	defer s.mu.Unlock()
	return findWhere(s.data.communications, exchange.CarrierCommunication.AwaitingResponse)
}
