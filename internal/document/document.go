package document

import (
	"encoding/json"
	"strings"
	"time"
)

// Status represents the engine-internal disposition of a document.
type Status string

const (
	// StatusPending covers every non-terminal disposition: awaiting
	// submission, awaiting authority processing, or queued in contingency.
	StatusPending Status = "pending"
	// StatusCompleted means the authority processed and authorized the document.
	StatusCompleted Status = "completed"
	// StatusCancelled means the authority rejected or invalidated the document.
	StatusCancelled Status = "cancelled"
	// StatusModified means a subsequent document amended this one.
	StatusModified Status = "modified"
)

var allStatuses = []Status{
	StatusPending,
	StatusCompleted,
	StatusCancelled,
	StatusModified,
}

var statusSet = func() map[Status]struct{} {
	set := make(map[Status]struct{}, len(allStatuses))
	for _, status := range allStatuses {
		set[status] = struct{}{}
	}
	return set
}()

// AllStatuses returns the ordered list of known statuses.
func AllStatuses() []Status {
	cp := make([]Status, len(allStatuses))
	copy(cp, allStatuses)
	return cp
}

// ParseStatus converts a string into a known Status.
func ParseStatus(value string) (Status, bool) {
	normalized := Status(strings.ToLower(strings.TrimSpace(value)))
	if normalized == "" {
		return "", false
	}
	_, ok := statusSet[normalized]
	return normalized, ok
}

// Terminal reports whether no further authority polling is needed.
func (s Status) Terminal() bool {
	return s == StatusCompleted || s == StatusCancelled
}

// Type identifies the fiscal document kind using the authority's type codes.
type Type string

const (
	TypeInvoice    Type = "01"
	TypeCCF        Type = "03"
	TypeCreditNote Type = "05"
	TypeDebitNote  Type = "06"
)

// Document is a tax document as the engine sees it: identity, authority
// identifiers, disposition, and the signed payload transmitted on submission.
type Document struct {
	// ID is the generation code assigned locally at creation time (UUID).
	ID            string          `json:"id"`
	ControlNumber string          `json:"controlNumber,omitempty"`
	Type          Type            `json:"type"`
	Status        Status          `json:"status"`
	ReceptionSeal string          `json:"receptionSeal,omitempty"`
	IssuedAt      time.Time       `json:"issuedAt"`
	ReceiverName  string          `json:"receiverName,omitempty"`
	ReceiverID    string          `json:"receiverId,omitempty"`
	Total         float64         `json:"total"`
	Payload       json.RawMessage `json:"payload,omitempty"`
}

// Issuer identifies the business on whose behalf a document is submitted.
type Issuer struct {
	NIT               string `json:"nit"`
	NRC               string `json:"nrc,omitempty"`
	Name              string `json:"name"`
	EstablishmentCode string `json:"establishmentCode,omitempty"`
	POSCode           string `json:"posCode,omitempty"`
}

// AwaitingAuthority reports whether the document is still waiting on an
// authority verdict and is therefore eligible for status tracking.
func (d Document) AwaitingAuthority() bool {
	return d.Status == StatusPending || d.Status == ""
}
