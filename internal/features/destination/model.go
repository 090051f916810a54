package destination

import "time"

// Destination entities are keyed by deterministic string UUIDs rather
// than ObjectIDs, so a rerun of the same source data addresses the same
// documents without any lookups.

// Account groups contacts and tickets under one organization
type Account struct {
	ID        string    `json:"id" bson:"_id"`
	Name      string    `json:"name" bson:"name"`
	Domain    string    `json:"domain,omitempty" bson:"domain,omitempty"`
	Note      string    `json:"note,omitempty" bson:"note,omitempty"`
	CreatedAt time.Time `json:"created_at" bson:"created_at"`
	UpdatedAt time.Time `json:"updated_at" bson:"updated_at"`
}

// Contact is an end user who raises tickets
type Contact struct {
	ID        string    `json:"id" bson:"_id"`
	AccountID string    `json:"account_id" bson:"account_id"`
	Name      string    `json:"name" bson:"name"`
	Email     string    `json:"email" bson:"email"`
	Phone     string    `json:"phone,omitempty" bson:"phone,omitempty"`
	CreatedAt time.Time `json:"created_at" bson:"created_at"`
	UpdatedAt time.Time `json:"updated_at" bson:"updated_at"`
}

// Agent is a support user who works tickets
type Agent struct {
	ID        string    `json:"id" bson:"_id"`
	Name      string    `json:"name" bson:"name"`
	Email     string    `json:"email" bson:"email"`
	Role      string    `json:"role" bson:"role"`
	IsActive  bool      `json:"is_active" bson:"is_active"`
	CreatedAt time.Time `json:"created_at" bson:"created_at"`
	UpdatedAt time.Time `json:"updated_at" bson:"updated_at"`
}

// Ticket is the central migrated entity
type Ticket struct {
	ID        string `json:"id" bson:"_id"`
	AccountID string `json:"account_id" bson:"account_id"`
	ContactID string `json:"contact_id,omitempty" bson:"contact_id,omitempty"`
	AgentID   string `json:"agent_id,omitempty" bson:"agent_id,omitempty"`

	Subject  string `json:"subject" bson:"subject"`
	Body     string `json:"body,omitempty" bson:"body,omitempty"`
	Status   string `json:"status" bson:"status"`
	Priority string `json:"priority,omitempty" bson:"priority,omitempty"`
	Source   string `json:"source,omitempty" bson:"source,omitempty"`

	SourceCreatedAt *time.Time `json:"source_created_at,omitempty" bson:"source_created_at,omitempty"`
	CreatedAt       time.Time  `json:"created_at" bson:"created_at"`
	UpdatedAt       time.Time  `json:"updated_at" bson:"updated_at"`
}

// Comment is one thread entry on a ticket
type Comment struct {
	ID       string `json:"id" bson:"_id"`
	TicketID string `json:"ticket_id" bson:"ticket_id"`
	AuthorID string `json:"author_id,omitempty" bson:"author_id,omitempty"`
	Body     string `json:"body" bson:"body"`
	Type     string `json:"type" bson:"type"` // reply, note

	SourceCreatedAt *time.Time `json:"source_created_at,omitempty" bson:"source_created_at,omitempty"`
	CreatedAt       time.Time  `json:"created_at" bson:"created_at"`
}

// TimeEntry is logged work against a ticket
type TimeEntry struct {
	ID       string  `json:"id" bson:"_id"`
	TicketID string  `json:"ticket_id" bson:"ticket_id"`
	AgentID  string  `json:"agent_id,omitempty" bson:"agent_id,omitempty"`
	Minutes  int     `json:"minutes" bson:"minutes"`
	Billable bool    `json:"billable" bson:"billable"`
	Note     string  `json:"note,omitempty" bson:"note,omitempty"`
	Rate     float64 `json:"rate,omitempty" bson:"rate,omitempty"`

	CreatedAt time.Time `json:"created_at" bson:"created_at"`
}
