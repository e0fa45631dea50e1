package httpadapter

import (
	"net/http"

	"github.com/kirillkom/docstream/internal/core/domain"
)

func mapErrorToHTTPStatus(err error) int {
	switch {
	case domain.IsKind(err, domain.ErrInvalidInput):
		return http.StatusBadRequest
	case domain.IsKind(err, domain.ErrDocumentNotFound):
		return http.StatusNotFound
	case domain.IsKind(err, domain.ErrAlreadyInFlight):
		return http.StatusConflict
	case domain.IsKind(err, domain.ErrInfected):
		return http.StatusForbidden
	case domain.IsKind(err, domain.ErrTemporary):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}
