package merge

import (
	"net/http"

	"github.com/Gobusters/ectoerror/httperror"
)

// Stable error tokens surfaced to clients so the UI can branch on the
// rejection reason.
const (
	ErrCodeBothApplied   = "ERROR_BOTH_PERSONS_APPLIED"
	ErrCodeAlreadyMerged = "ERROR_PERSON_ALREADY_MERGED"
)

func errBothApplied() error {
	return httperror.NewHTTPError(http.StatusPreconditionFailed, ErrCodeBothApplied)
}

func errAlreadyMerged() error {
	return httperror.NewHTTPError(http.StatusPreconditionFailed, ErrCodeAlreadyMerged)
}
