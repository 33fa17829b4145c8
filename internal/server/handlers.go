package server

import (
	"errors"
	"net/http"

	"tardrop/internal/engine"
)

// HandleUpload receives an archive body and hands it to the engine. The
// declared Content-Length is the exact byte count the engine will read.
func (s *Server) HandleUpload(w http.ResponseWriter, r *http.Request) {
	if r.ContentLength < 0 {
		s.respondText(w, http.StatusLengthRequired, "Length Required")
		return
	}

	err := s.Engine.Handle(r.Context(), r.Body, r.ContentLength)
	switch {
	case err == nil:
		s.respondText(w, http.StatusOK, "Success")
	case errors.Is(err, engine.ErrBusy):
		s.respondText(w, http.StatusServiceUnavailable, "Busy")
	default:
		// No error detail crosses the wire, only the indicator. The full
		// error is already logged by the engine.
		s.respondText(w, http.StatusInternalServerError, "Failed")
	}
}

// HandleReject answers every non-upload request. The receiver exposes no
// read or query capability.
func (s *Server) HandleReject(w http.ResponseWriter, r *http.Request) {
	s.respondText(w, http.StatusForbidden, "Non-implemented")
}

func (s *Server) respondText(w http.ResponseWriter, statusCode int, body string) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(statusCode)
	if _, err := w.Write([]byte(body)); err != nil {
		s.Logger.Error("failed to write response", "error", err)
	}
}
