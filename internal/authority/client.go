package authority

import (
	"context"
	"time"

	"dtesync/internal/document"
)

// Environment selects the authority endpoint set.
type Environment string

const (
	EnvironmentProduction Environment = "production"
	EnvironmentTest       Environment = "test"
)

// ParseEnvironment converts a string into a known Environment.
func ParseEnvironment(value string) (Environment, bool) {
	switch Environment(value) {
	case EnvironmentProduction:
		return EnvironmentProduction, true
	case EnvironmentTest:
		return EnvironmentTest, true
	default:
		return "", false
	}
}

// Receipt carries the identifiers the authority assigns on successful reception.
type Receipt struct {
	ControlNumber  string
	GenerationCode string
	ReceptionSeal  string
	ProcessedAt    time.Time
	Observations   []string
}

// StatusResult is the authority's answer to a status query.
type StatusResult struct {
	Code           string
	ControlNumber  string
	GenerationCode string
	ReceptionSeal  string
}

// Client is the abstract authority surface the engine consumes. Both calls
// respect context cancellation and bound their own request timeouts; failures
// are tagged with the package's sentinel errors.
type Client interface {
	// Submit transmits a signed document for reception.
	Submit(ctx context.Context, doc document.Document, issuer document.Issuer) (Receipt, error)
	// QueryStatus asks for the current disposition of a previously
	// submitted document, keyed by its control number.
	QueryStatus(ctx context.Context, controlNumber, issuerNIT string) (StatusResult, error)
	// Environment reports which endpoint set this client targets.
	Environment() Environment
}
