// Package document defines the tax document and issuer models shared by the
// delivery engine components.
//
// A Document carries the identifiers the authority assigns as it processes a
// submission (control number, generation code, reception seal) together with
// the engine-internal status derived from authority responses. The package is
// intentionally free of persistence and transport concerns.
package document
