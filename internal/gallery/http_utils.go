package gallery

import (
	"encoding/json"
	"errors"
	"net/http"
)

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{
		"error": msg,
	})
}

func writeKindError(w http.ResponseWriter, status int, kind, msg string) {
	writeJSON(w, status, map[string]string{
		"error": msg,
		"kind":  kind,
	})
}

// writeLibraryError maps a Library error onto a status code.
func (s *Server) writeLibraryError(w http.ResponseWriter, r *http.Request, err error) {
	var ve *ValidationError
	var re *RepositoryError
	switch {
	case errors.As(err, &ve):
		writeKindError(w, http.StatusBadRequest, "validation", ve.Msg)
	case errors.Is(err, ErrNotFound):
		writeError(w, http.StatusNotFound, "not found")
	case errors.As(err, &re):
		s.logger.Error("library", "op", re.Op, "path", r.URL.Path, "err", re.Err)
		writeKindError(w, http.StatusInternalServerError, "repository", "could not "+re.Op+" media")
	default:
		s.logger.Error("library", "path", r.URL.Path, "err", err)
		writeError(w, http.StatusInternalServerError, "internal error")
	}
}
