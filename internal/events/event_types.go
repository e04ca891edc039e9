package events

import "time"

// EventType enumerates supported event identifiers.
type EventType string

const (
	EventAgencyCreated    EventType = "agency_created"
	EventAgencyUpdated    EventType = "agency_updated"
	EventAgencyDeleted    EventType = "agency_deleted"
	EventStaffProvisioned EventType = "staff_provisioned"
	EventResetLinkIssued  EventType = "reset_link_issued"
)

// Event represents a domain event emitted by the orchestrators.
type Event struct {
	ID        string      `json:"id"`
	Type      EventType   `json:"type"`
	CompanyID string      `json:"company_id"`
	AgencyID  string      `json:"agency_id,omitempty"`
	ActorID   string      `json:"actor_id,omitempty"`
	Timestamp time.Time   `json:"timestamp"`
	Payload   interface{} `json:"payload"`
}

// StaffProvisionedPayload payload.
type StaffProvisionedPayload struct {
	AccountID      string `json:"account_id"`
	Email          string `json:"email"`
	Role           string `json:"role"`
	ReusedExisting bool   `json:"reused_existing"`
}

// ResetLinkIssuedPayload carries a link to be delivered out-of-band.
type ResetLinkIssuedPayload struct {
	AccountID string `json:"account_id"`
	Email     string `json:"email"`
	ResetLink string `json:"reset_link"`
}

// AgencyUpdatedPayload payload.
type AgencyUpdatedPayload struct {
	AgencyPatched bool   `json:"agency_patched"`
	ManagerID     string `json:"manager_id,omitempty"`
	ManagerAgency string `json:"manager_agency,omitempty"`
	EmailChanged  bool   `json:"email_changed"`
}

// AgencyDeletedPayload summarizes a cascade.
type AgencyDeletedPayload struct {
	Disposition string `json:"disposition"`
	StaffCount  int    `json:"staff_count"`
	Succeeded   int    `json:"succeeded"`
	Failed      int    `json:"failed"`
}
