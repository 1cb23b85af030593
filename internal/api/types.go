package api

import (
	"time"

	"dtesync/internal/contingency"
	"dtesync/internal/tracking"
)

// StatusResponse reports daemon runtime information.
type StatusResponse struct {
	Running     bool                 `json:"running"`
	Environment string               `json:"environment"`
	StorePath   string               `json:"storePath"`
	Tracking    TrackingStatsView    `json:"tracking"`
	Contingency ContingencyStatsView `json:"contingency"`
}

// TrackingStatsView summarizes active tracking tasks.
type TrackingStatsView struct {
	Active    int              `json:"active"`
	Documents []TrackedDocView `json:"documents,omitempty"`
}

// TrackedDocView describes one active tracking task on the wire.
type TrackedDocView struct {
	DocumentID     string `json:"documentId"`
	IssuerNIT      string `json:"issuerNit"`
	LastStatus     string `json:"lastStatus"`
	Failures       int    `json:"failures"`
	ElapsedSeconds int64  `json:"elapsedSeconds"`
}

// ContingencyStatsView summarizes queue entry counts by disposition.
type ContingencyStatsView struct {
	Total     int `json:"total"`
	Pending   int `json:"pending"`
	Exhausted int `json:"exhausted"`
	Rejected  int `json:"rejected"`
	Submitted int `json:"submitted"`
}

// EntryView is the wire representation of a contingency entry.
type EntryView struct {
	ID             string     `json:"id"`
	DocumentID     string     `json:"documentId"`
	IssuerNIT      string     `json:"issuerNit"`
	Reason         string     `json:"reason,omitempty"`
	CreatedAt      time.Time  `json:"createdAt"`
	Attempts       int        `json:"attempts"`
	LastAttemptAt  *time.Time `json:"lastAttemptAt,omitempty"`
	LastError      string     `json:"lastError,omitempty"`
	Rejected       bool       `json:"rejected"`
	Submitted      bool       `json:"submitted"`
	SubmittedAt    *time.Time `json:"submittedAt,omitempty"`
	ControlNumber  string     `json:"controlNumber,omitempty"`
	GenerationCode string     `json:"generationCode,omitempty"`
	ReceptionSeal  string     `json:"receptionSeal,omitempty"`
	Disposition    string     `json:"disposition"`
}

// EntryListResponse wraps a contingency listing.
type EntryListResponse struct {
	Entries []EntryView `json:"entries"`
}

// BatchResultView reports one SubmitPending run on the wire.
type BatchResultView struct {
	Submitted int               `json:"submitted"`
	Failed    int               `json:"failed"`
	Results   []EntryResultView `json:"results,omitempty"`
}

// EntryResultView reports one entry's outcome within a batch.
type EntryResultView struct {
	EntryID    string `json:"entryId"`
	DocumentID string `json:"documentId"`
	Submitted  bool   `json:"submitted"`
	Attempts   int    `json:"attempts"`
	Error      string `json:"error,omitempty"`
}

// CleanupResponse reports an entry cleanup run.
type CleanupResponse struct {
	Removed int64 `json:"removed"`
}

// SubmitRequest asks the daemon to submit or queue a document.
type SubmitRequest struct {
	Document SubmitDocument `json:"document"`
	Issuer   SubmitIssuer   `json:"issuer"`
}

// SubmitDocument carries the document fields accepted on submission.
type SubmitDocument struct {
	ID           string  `json:"id,omitempty"`
	Type         string  `json:"type"`
	ReceiverName string  `json:"receiverName,omitempty"`
	ReceiverID   string  `json:"receiverId,omitempty"`
	Total        float64 `json:"total"`
	Payload      []byte  `json:"payload,omitempty"`
}

// SubmitIssuer carries the issuer fields accepted on submission.
type SubmitIssuer struct {
	NIT               string `json:"nit"`
	NRC               string `json:"nrc,omitempty"`
	Name              string `json:"name"`
	EstablishmentCode string `json:"establishmentCode,omitempty"`
	POSCode           string `json:"posCode,omitempty"`
}

// SubmitResponse reports how a submission was handled.
type SubmitResponse struct {
	Queued         bool   `json:"queued"`
	EntryID        string `json:"entryId,omitempty"`
	ControlNumber  string `json:"controlNumber,omitempty"`
	GenerationCode string `json:"generationCode,omitempty"`
	ReceptionSeal  string `json:"receptionSeal,omitempty"`
}

// WatchRequest asks the daemon to start tracking documents that were already
// submitted, for example after a daemon restart.
type WatchRequest struct {
	Documents []WatchDocument `json:"documents"`
	Issuer    SubmitIssuer    `json:"issuer"`
}

// WatchDocument identifies one submitted document to poll.
type WatchDocument struct {
	ID            string `json:"id"`
	ControlNumber string `json:"controlNumber"`
}

// WatchResponse reports how many tracking tasks were started.
type WatchResponse struct {
	Started int `json:"started"`
}

// StopTrackingResponse confirms a tracking cancellation.
type StopTrackingResponse struct {
	DocumentID string `json:"documentId"`
}

// EnvironmentRequest switches the authority environment.
type EnvironmentRequest struct {
	Environment string `json:"environment"`
}

// ErrorResponse carries an API error message.
type ErrorResponse struct {
	Error string `json:"error"`
}

// TrackingStatsFrom converts tracker stats to the wire representation.
func TrackingStatsFrom(stats tracking.TrackerStats) TrackingStatsView {
	view := TrackingStatsView{Active: stats.Active}
	for _, doc := range stats.Documents {
		view.Documents = append(view.Documents, TrackedDocView{
			DocumentID:     doc.DocumentID,
			IssuerNIT:      doc.IssuerNIT,
			LastStatus:     string(doc.LastStatus),
			Failures:       doc.Failures,
			ElapsedSeconds: int64(doc.Elapsed.Seconds()),
		})
	}
	return view
}

// ContingencyStatsFrom converts queue stats to the wire representation.
func ContingencyStatsFrom(stats contingency.Stats) ContingencyStatsView {
	return ContingencyStatsView{
		Total:     stats.Total,
		Pending:   stats.Pending,
		Exhausted: stats.Exhausted,
		Rejected:  stats.Rejected,
		Submitted: stats.Submitted,
	}
}

// EntryViewFrom converts a contingency entry to the wire representation.
func EntryViewFrom(entry *contingency.Entry, maxAttempts int) EntryView {
	view := EntryView{
		ID:             entry.ID,
		DocumentID:     entry.Document.ID,
		IssuerNIT:      entry.Issuer.NIT,
		Reason:         entry.Reason,
		CreatedAt:      entry.CreatedAt,
		Attempts:       entry.Attempts,
		LastAttemptAt:  entry.LastAttemptAt,
		LastError:      entry.LastError,
		Rejected:       entry.Rejected,
		Submitted:      entry.Submitted,
		SubmittedAt:    entry.SubmittedAt,
		ControlNumber:  entry.ControlNumber,
		GenerationCode: entry.GenerationCode,
		ReceptionSeal:  entry.ReceptionSeal,
	}
	switch {
	case entry.Submitted:
		view.Disposition = "submitted"
	case entry.Rejected:
		view.Disposition = "rejected"
	case entry.Exhausted(maxAttempts):
		view.Disposition = "exhausted"
	default:
		view.Disposition = "pending"
	}
	return view
}

// BatchResultFrom converts a batch result to the wire representation.
func BatchResultFrom(result contingency.BatchResult) BatchResultView {
	view := BatchResultView{Submitted: result.Submitted, Failed: result.Failed}
	for _, r := range result.Results {
		view.Results = append(view.Results, EntryResultView{
			EntryID:    r.EntryID,
			DocumentID: r.DocumentID,
			Submitted:  r.Submitted,
			Attempts:   r.Attempts,
			Error:      r.Err,
		})
	}
	return view
}
