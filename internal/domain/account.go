package domain

import "time"

// AccountStatus represents the lifecycle state of a provisioned CA account.
type AccountStatus string

const (
	StatusPendingStart AccountStatus = "pending_start"
	StatusActive       AccountStatus = "active"
	StatusSuspended    AccountStatus = "suspended"
	StatusInactive     AccountStatus = "inactive"
	StatusTerminated   AccountStatus = "terminated"
)

// CertificateType is the validation level of certificates issued under an account.
type CertificateType string

const (
	CertDV CertificateType = "DV"
	CertOV CertificateType = "OV"
)

// Event represents an action that triggers a state transition or a
// downstream notification.
type Event string

const (
	// Account lifecycle events (drive the state machine).
	EventActivate   Event = "activate"
	EventReactivate Event = "reactivate"
	EventDeactivate Event = "deactivate"
	EventSuspend    Event = "suspend"
	EventUnsuspend  Event = "unsuspend"
	EventTerminate  Event = "terminate"

	// Notification-only events (published, never fed to the state machine).
	EventDomainProvisioned Event = "domain_provisioned"
	EventDomainRemoved     Event = "domain_removed"
	EventDomainRefunded    Event = "domain_refunded"
	EventAbuseFlagged      Event = "abuse_flagged"
)

// Transition defines a valid state change: an event moves an account from Src to Dst.
type Transition struct {
	Event Event
	Src   AccountStatus
	Dst   AccountStatus
}

// Transitions defines all valid account state changes. Activate and
// Reactivate land on the same status but are distinct events so the audit
// trail can tell a first activation from a return from inactive.
// Suspend/unsuspend/terminate are reachable only through the administrative
// account-management surface, never from domain population changes.
var Transitions = []Transition{
	{Event: EventActivate, Src: StatusPendingStart, Dst: StatusActive},
	{Event: EventReactivate, Src: StatusInactive, Dst: StatusActive},
	{Event: EventDeactivate, Src: StatusActive, Dst: StatusInactive},
	{Event: EventSuspend, Src: StatusActive, Dst: StatusSuspended},
	{Event: EventUnsuspend, Src: StatusSuspended, Dst: StatusActive},
	{Event: EventTerminate, Src: StatusActive, Dst: StatusTerminated},
	{Event: EventTerminate, Src: StatusSuspended, Dst: StatusTerminated},
	{Event: EventTerminate, Src: StatusInactive, Dst: StatusTerminated},
}

// Account is a provisioned CA account scoped to one client of a partner.
// StartDate and EndDate are set only while the account is active.
type Account struct {
	ID                string
	PartnerID         string
	ClientName        string
	ExternalID        string // provider-side account identifier
	Status            AccountStatus
	CertificateType   CertificateType
	SubscriptionYears int
	StartDate         *time.Time
	EndDate           *time.Time
	CreatedAt         time.Time
	UpdatedAt         time.Time
}

// NewAccount creates an account in the initial "pending_start" state.
func NewAccount(id, partnerID, clientName, externalID string, certType CertificateType, years int) Account {
	now := time.Now().UTC()
	return Account{
		ID:                id,
		PartnerID:         partnerID,
		ClientName:        clientName,
		ExternalID:        externalID,
		Status:            StatusPendingStart,
		CertificateType:   certType,
		SubscriptionYears: years,
		CreatedAt:         now,
		UpdatedAt:         now,
	}
}
