package logging

// Standardized structured log field names.
const (
	FieldComponent     = "component"
	FieldEventType     = "event_type"
	FieldErrorHint     = "error_hint"
	FieldDocumentID    = "document_id"
	FieldControlNumber = "control_number"
	FieldEntryID       = "entry_id"
	FieldIssuerNIT     = "issuer_nit"
	FieldEnvironment   = "environment"
	FieldAttempts      = "attempts"
)
