package http

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	chimiddleware "github.com/go-chi/chi/v5/middleware"

	"github.com/devpath/progression-engine/internal/domain/shared"
	"github.com/devpath/progression-engine/pkg/logger"
)

// ══════════════════════════════════════════════════════════════════════════════
// RESPONSE ENVELOPE
// ══════════════════════════════════════════════════════════════════════════════

// JSONResponse is the envelope of every response.
type JSONResponse struct {
	Success   bool             `json:"success"`
	Data      any              `json:"data,omitempty"`
	Error     *APIError        `json:"error,omitempty"`
	Warnings  []shared.Warning `json:"warnings,omitempty"`
	Meta      *ResponseMeta    `json:"meta,omitempty"`
	RequestID string           `json:"request_id,omitempty"`
}

// APIError represents an API error.
type APIError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Details string `json:"details,omitempty"`

	// Retryable tells the client the same request may succeed later.
	Retryable bool `json:"retryable,omitempty"`
}

// ResponseMeta contains response metadata.
type ResponseMeta struct {
	Timestamp time.Time `json:"timestamp"`
	Version   string    `json:"version,omitempty"`
}

func (s *Server) meta() *ResponseMeta {
	return &ResponseMeta{Timestamp: time.Now().UTC(), Version: s.config.Version}
}

func (s *Server) writeJSON(w http.ResponseWriter, r *http.Request, status int, data any, warnings []shared.Warning) {
	s.write(w, status, JSONResponse{
		Success:   status >= 200 && status < 300,
		Data:      data,
		Warnings:  warnings,
		Meta:      s.meta(),
		RequestID: chimiddleware.GetReqID(r.Context()),
	})
}

func (s *Server) writeError(w http.ResponseWriter, r *http.Request, status int, code, message, details string) {
	s.write(w, status, JSONResponse{
		Error:     &APIError{Code: code, Message: message, Details: details},
		Meta:      s.meta(),
		RequestID: chimiddleware.GetReqID(r.Context()),
	})
}

func (s *Server) write(w http.ResponseWriter, status int, body JSONResponse) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		s.logger.Debug("response write failed", logger.Err(err))
	}
}

// ══════════════════════════════════════════════════════════════════════════════
// ERROR MAPPING
// ══════════════════════════════════════════════════════════════════════════════

// errorStatus maps an error kind to an HTTP status and a stable code.
// ErrTimeout also matches ErrStorageUnavailable, so it is checked first.
func errorStatus(err error) (int, string) {
	switch {
	case shared.IsValidation(err):
		if errors.Is(err, shared.ErrInvalidOutputType) {
			return http.StatusBadRequest, "invalid_output_type"
		}
		return http.StatusBadRequest, "invalid_input"
	case shared.IsNotFound(err):
		return http.StatusNotFound, "not_found"
	case errors.Is(err, shared.ErrAlreadyFrozenToday):
		return http.StatusConflict, "already_frozen_today"
	case errors.Is(err, shared.ErrNoFreezesAvailable):
		return http.StatusConflict, "no_freezes_available"
	case errors.Is(err, shared.ErrRevealNotAllowed):
		return http.StatusForbidden, "reveal_not_allowed"
	case errors.Is(err, shared.ErrRevealNotYetAllowed):
		return http.StatusConflict, "reveal_not_yet_allowed"
	case errors.Is(err, shared.ErrProblemNotPublished):
		return http.StatusConflict, "problem_not_published"
	case errors.Is(err, shared.ErrConcurrentModification):
		return http.StatusConflict, "concurrent_modification"
	case errors.Is(err, shared.ErrTimeout):
		return http.StatusGatewayTimeout, "timeout"
	case errors.Is(err, shared.ErrStorageUnavailable):
		return http.StatusServiceUnavailable, "storage_unavailable"
	default:
		return http.StatusInternalServerError, "internal_error"
	}
}

// fail writes err as an envelope. Domain messages are passed through;
// anything unclassified is hidden behind a generic message.
func (s *Server) fail(w http.ResponseWriter, r *http.Request, err error) {
	status, code := errorStatus(err)

	message := "an unexpected error occurred"
	var de *shared.DomainError
	if errors.As(err, &de) && de.Message != "" && status != http.StatusInternalServerError {
		message = de.Message
	}

	log := logger.FromContext(r.Context())
	if status >= 500 {
		log.Error("request failed", logger.String("code", code), logger.Err(err))
	}

	retryable := shared.IsRetryable(err)
	if retryable {
		w.Header().Set("Retry-After", "1")
	}
	s.write(w, status, JSONResponse{
		Error:     &APIError{Code: code, Message: message, Retryable: retryable},
		Meta:      s.meta(),
		RequestID: chimiddleware.GetReqID(r.Context()),
	})
}

func (s *Server) notImplemented(w http.ResponseWriter, r *http.Request) {
	s.writeError(w, r, http.StatusNotImplemented, "not_implemented", "this operation is not enabled", "")
}

// decodeJSON reads a bounded JSON body into dst. An empty body leaves dst
// untouched.
func (s *Server) decodeJSON(w http.ResponseWriter, r *http.Request, dst any) error {
	body := http.MaxBytesReader(w, r.Body, s.config.MaxBodyBytes)
	dec := json.NewDecoder(body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		if errors.Is(err, io.EOF) {
			return nil
		}
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			return shared.Invalid("http", "Decode", "request body exceeds %d bytes", tooLarge.Limit)
		}
		return shared.WrapError("http", "Decode", shared.ErrInvalidInput, fmt.Sprintf("malformed JSON body: %v", err), err)
	}
	return nil
}
