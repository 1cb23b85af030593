package authority

import (
	"strings"

	"dtesync/internal/document"
)

// Authority processing state codes observed in reception and query responses.
const (
	CodeProcessed   = "PROCESADO"
	CodeRejected    = "RECHAZADO"
	CodeInvalidated = "INVALIDADO"
	CodeModified    = "MODIFICADO"
	CodeInProcess   = "EN_PROCESO"
	CodeContingency = "CONTINGENCIA"
)

// MapStatus converts an authority status code into the engine status. The
// mapping is total: unknown or empty codes map to pending so polling keeps
// going instead of aborting on an unfamiliar authority response.
func MapStatus(code string) document.Status {
	switch strings.ToUpper(strings.TrimSpace(code)) {
	case CodeProcessed:
		return document.StatusCompleted
	case CodeRejected, CodeInvalidated:
		return document.StatusCancelled
	case CodeModified:
		return document.StatusModified
	default:
		return document.StatusPending
	}
}
