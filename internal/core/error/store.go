package errx

import (
	"database/sql"
	"errors"
	"net/http"
)

// WrapStore maps data store errors to the unified AppError type.
func WrapStore(err error) error {
	if err == nil {
		return nil
	}

	if errors.Is(err, sql.ErrNoRows) {
		return New(err, http.StatusNotFound, StoreErrorMessage)
	}

	return New(err, http.StatusBadGateway, StoreErrorMessage)
}

// WrapCompletion marks an LLM completion failure. Callers recover from these
// locally via declared fallbacks; the wrapper only standardizes logging.
func WrapCompletion(err error) error {
	if err == nil {
		return nil
	}
	return New(err, http.StatusBadGateway, CompletionErrorMessage)
}
