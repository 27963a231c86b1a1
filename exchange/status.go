package exchange

// =============================================================================
// ENUMERATIONS
// =============================================================================

type DropTicketStatus string

const (
	TicketSubmitted  DropTicketStatus = "submitted"
	TicketValidated  DropTicketStatus = "validated"
	TicketInProgress DropTicketStatus = "in_progress"
	TicketCompleted  DropTicketStatus = "completed"
	TicketCancelled  DropTicketStatus = "cancelled"
)

// DropTicketStatuses lists every valid ticket status, in lifecycle order.
var DropTicketStatuses = []DropTicketStatus{
	TicketSubmitted, TicketValidated, TicketInProgress, TicketCompleted, TicketCancelled,
}

type Priority string

const (
	PriorityLow    Priority = "low"
	PriorityNormal Priority = "normal"
	PriorityHigh   Priority = "high"
	PriorityUrgent Priority = "urgent"
)

type ProductType string

const (
	ProductLifeInsurance ProductType = "life_insurance"
	ProductAnnuity       ProductType = "annuity"
)

type AccountStatus string

const (
	AccountPending         AccountStatus = "pending"
	AccountValidated       AccountStatus = "validated"
	AccountAwaitingCarrier AccountStatus = "awaiting_carrier"
	AccountConfirmed       AccountStatus = "confirmed"
	AccountTransferred     AccountStatus = "transferred"
)

var AccountStatuses = []AccountStatus{
	AccountPending, AccountValidated, AccountAwaitingCarrier, AccountConfirmed, AccountTransferred,
}

type CommunicationType string

const (
	CommRequest    CommunicationType = "request"
	CommResponse   CommunicationType = "response"
	CommReminder   CommunicationType = "reminder"
	CommEscalation CommunicationType = "escalation"
)

type CommunicationMethod string

const (
	MethodEmail  CommunicationMethod = "email"
	MethodFax    CommunicationMethod = "fax"
	MethodAPI    CommunicationMethod = "api"
	MethodPhone  CommunicationMethod = "phone"
	MethodPortal CommunicationMethod = "portal"
)

type CommunicationDirection string

const (
	DirectionOutbound CommunicationDirection = "outbound"
	DirectionInbound  CommunicationDirection = "inbound"
)

type CommunicationStatus string

// Lifecycle: pending -> sent -> delivered -> read -> responded, or failed.
const (
	CommunicationPending   CommunicationStatus = "pending"
	CommunicationSent      CommunicationStatus = "sent"
	CommunicationDelivered CommunicationStatus = "delivered"
	CommunicationRead      CommunicationStatus = "read"
	CommunicationResponded CommunicationStatus = "responded"
	CommunicationFailed    CommunicationStatus = "failed"
)

type RelationType string

const (
	RelationOwner       RelationType = "owner"
	RelationInsured     RelationType = "insured"
	RelationAgent       RelationType = "agent"
	RelationBeneficiary RelationType = "beneficiary"
	RelationUser        RelationType = "user"
	RelationCarrierRep  RelationType = "carrier_rep"
)

type RelationshipToOwner string

const (
	RelSelf   RelationshipToOwner = "self"
	RelSpouse RelationshipToOwner = "spouse"
	RelChild  RelationshipToOwner = "child"
	RelOther  RelationshipToOwner = "other"
)

type UserRole string

const (
	RoleAgent           UserRole = "agent"
	RoleHomeOfficeAdmin UserRole = "home_office_admin"
	RoleOperationsStaff UserRole = "operations_staff"
	RoleSystemAdmin     UserRole = "system_admin"
)

type Gender string

const (
	GenderMale   Gender = "male"
	GenderFemale Gender = "female"
	GenderOther  Gender = "other"
)

type DocumentType string

const (
	DocApplication     DocumentType = "application"
	DocPolicyStatement DocumentType = "policy_statement"
	DocIDVerification  DocumentType = "id_verification"
	DocSignaturePage   DocumentType = "signature_page"
)

type SignatureStatus string

const (
	SignatureNotRequired SignatureStatus = "not_required"
	SignaturePending     SignatureStatus = "pending"
	SignatureSigned      SignatureStatus = "signed"
	SignatureRejected    SignatureStatus = "rejected"
)

type AuditAction string

const (
	AuditCreate      AuditAction = "create"
	AuditUpdate      AuditAction = "update"
	AuditDelete      AuditAction = "delete"
	AuditApprove     AuditAction = "approve"
	AuditOverride    AuditAction = "override"
	AuditCommunicate AuditAction = "communicate"
)

type EntityType string

const (
	EntityDropTicket    EntityType = "drop_ticket"
	EntityAccount       EntityType = "account"
	EntityCommunication EntityType = "communication"
	EntityDocument      EntityType = "document"
	EntityParty         EntityType = "party"
	EntityRelation      EntityType = "relation"
)

type OverrideType string

const (
	OverrideValidationBypass OverrideType = "validation_bypass"
	OverrideStatusChange     OverrideType = "status_change"
	OverrideSLAExtension     OverrideType = "sla_extension"
)
