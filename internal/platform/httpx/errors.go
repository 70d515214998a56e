package httpx

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/defter-erp/defter/internal/shared"
)

// RespondError maps ledger errors to HTTP responses using RFC7807. The
// presentation layer owns wording; the detail carries the structured message
// exactly as the service raised it.
func RespondError(w http.ResponseWriter, err error) {
	var conflict *shared.ConflictError
	switch {
	case errors.As(err, &conflict):
		Problem(w, http.StatusConflict, "Conflict",
			fmt.Sprintf("delete blocked by %d invoices and %d dispatch notes", conflict.Invoices, conflict.DispatchNotes))
	case errors.Is(err, shared.ErrNotFound):
		Problem(w, http.StatusNotFound, "Not Found", err.Error())
	case errors.Is(err, shared.ErrDuplicate):
		Problem(w, http.StatusConflict, "Duplicate", err.Error())
	case errors.Is(err, shared.ErrValidation):
		Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
	case errors.Is(err, shared.ErrInvalidCredentials):
		Problem(w, http.StatusUnauthorized, "Unauthorized", err.Error())
	default:
		Problem(w, http.StatusInternalServerError, "Internal Error", "")
	}
}
