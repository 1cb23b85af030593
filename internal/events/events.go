package events

import (
	"time"

	"dtesync/internal/document"
)

// Type identifies the kind of engine event.
type Type string

const (
	TypeStatusUpdate         Type = "status_update"
	TypeStatusError          Type = "status_error"
	TypeTrackingTimeout      Type = "tracking_timeout"
	TypeTrackingFailed       Type = "tracking_failed"
	TypeAllTrackingStopped   Type = "all_tracking_stopped"
	TypeContingencyQueued    Type = "contingency_queued"
	TypeContingencySubmitted Type = "contingency_submitted"
)

// Event is the transient notification the engine publishes to subscribers.
// Fields beyond Type, DocumentID, and Timestamp are populated per event kind.
type Event struct {
	Type           Type            `json:"type"`
	DocumentID     string          `json:"documentId,omitempty"`
	IssuerNIT      string          `json:"issuerNit,omitempty"`
	EntryID        string          `json:"entryId,omitempty"`
	PreviousStatus document.Status `json:"previousStatus,omitempty"`
	NewStatus      document.Status `json:"newStatus,omitempty"`
	ControlNumber  string          `json:"controlNumber,omitempty"`
	GenerationCode string          `json:"generationCode,omitempty"`
	ReceptionSeal  string          `json:"receptionSeal,omitempty"`
	Attempts       int             `json:"attempts,omitempty"`
	Err            string          `json:"error,omitempty"`
	Timestamp      time.Time       `json:"timestamp"`
}
