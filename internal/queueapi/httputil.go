package queueapi

import (
	"encoding/json"
	"net/http"

	commonerrors "intake-crm-workers/internal/common/errors"
)

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, code, message string) {
	writeJSON(w, status, map[string]string{
		"error": message,
		"code":  code,
	})
}

// writeServiceError maps snapshot, database and cache failures onto HTTP statuses.
func (s *Server) writeServiceError(w http.ResponseWriter, err error) {
	stdErr, ok := commonerrors.AsStandardError(err)
	if !ok {
		s.logger.Error("request failed", map[string]interface{}{"error": err})
		writeError(w, http.StatusInternalServerError, string(commonerrors.ErrCodeInternal), "internal server error")
		return
	}

	s.logger.Warn("request failed", map[string]interface{}{"code": stdErr.Code, "error": err})

	status := http.StatusInternalServerError
	switch stdErr.Code {
	case commonerrors.ErrCodeSnapshotUnavailable, commonerrors.ErrCodeSnapshotDecodeFailed, commonerrors.ErrCodeDatabaseQueryFailed:
		status = http.StatusBadGateway
	case commonerrors.ErrCodeOperationTimeout:
		status = http.StatusGatewayTimeout
	case commonerrors.ErrCodeCacheOperationFailed:
		status = http.StatusServiceUnavailable
	}
	writeError(w, status, string(stdErr.Code), stdErr.Message)
}
