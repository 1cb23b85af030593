package authority_test

import (
	"testing"

	"dtesync/internal/authority"
	"dtesync/internal/document"
)

func TestMapStatusKnownCodes(t *testing.T) {
	cases := []struct {
		code string
		want document.Status
	}{
		{authority.CodeProcessed, document.StatusCompleted},
		{authority.CodeRejected, document.StatusCancelled},
		{authority.CodeInvalidated, document.StatusCancelled},
		{authority.CodeModified, document.StatusModified},
		{authority.CodeInProcess, document.StatusPending},
		{authority.CodeContingency, document.StatusPending},
	}
	for _, tc := range cases {
		if got := authority.MapStatus(tc.code); got != tc.want {
			t.Errorf("MapStatus(%q) = %q, want %q", tc.code, got, tc.want)
		}
	}
}

func TestMapStatusIsCaseInsensitive(t *testing.T) {
	if got := authority.MapStatus("procesado"); got != document.StatusCompleted {
		t.Errorf("MapStatus(lowercase) = %q, want completed", got)
	}
	if got := authority.MapStatus("  Rechazado "); got != document.StatusCancelled {
		t.Errorf("MapStatus(mixed case with spaces) = %q, want cancelled", got)
	}
}

func TestMapStatusIsTotal(t *testing.T) {
	// Unknown and empty codes keep polling going rather than failing.
	for _, code := range []string{"", "UNKNOWN_FUTURE_STATE", "42", "null"} {
		if got := authority.MapStatus(code); got != document.StatusPending {
			t.Errorf("MapStatus(%q) = %q, want pending", code, got)
		}
	}
}
