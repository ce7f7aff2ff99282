package httpapi

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/dmitrijs2005/cipherdrop/internal/common"
)

// ErrorBody is the JSON shape of every error response.
type ErrorBody struct {
	Error string `json:"error"`
	Code  string `json:"code"`
}

// StatusFor maps an error kind to its HTTP status.
func StatusFor(kind common.Kind) int {
	switch kind {
	case common.KindValidation:
		return http.StatusBadRequest
	case common.KindAuthentication:
		return http.StatusUnauthorized
	case common.KindNotFound:
		return http.StatusNotFound
	case common.KindConflict:
		return http.StatusConflict
	case common.KindGone:
		return http.StatusGone
	case common.KindQuotaExceeded:
		return http.StatusRequestEntityTooLarge
	case common.KindUnexpected:
		return http.StatusInternalServerError
	}
	return http.StatusInternalServerError
}

func bodyFor(err error) ErrorBody {
	var e *common.Error
	if errors.As(err, &e) && e.Kind != common.KindUnexpected {
		return ErrorBody{Error: e.Message, Code: e.Code}
	}
	switch common.KindOf(err) {
	case common.KindNotFound:
		return ErrorBody{Error: common.ErrFileNotFound.Message, Code: common.ErrFileNotFound.Code}
	case common.KindAuthentication:
		return ErrorBody{Error: common.ErrUnauthenticated.Message, Code: common.ErrUnauthenticated.Code}
	}
	return ErrorBody{Error: common.ErrUnexpected.Message, Code: common.ErrUnexpected.Code}
}

func (s *Server) writeError(w http.ResponseWriter, r *http.Request, err error) {
	kind := common.KindOf(err)
	if kind == common.KindUnexpected {
		s.logger.Error(r.Context(), "request failed", "method", r.Method, "path", r.URL.Path, "error", err)
	}
	writeJSON(w, StatusFor(kind), bodyFor(err))
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
