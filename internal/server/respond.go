package server

import (
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	"github.com/jensholdgaard/player-auction/internal/apperr"
	"github.com/jensholdgaard/player-auction/internal/auth"
	"github.com/jensholdgaard/player-auction/internal/server/middleware"
	"github.com/jensholdgaard/player-auction/internal/telemetry"
)

const (
	maxBodyBytes      = 1 << 20
	defaultAuditLimit = 50
	maxAuditLimit     = 500
)

var (
	errMalformedBody = apperr.BadRequest("MALFORMED_BODY", "request body is not valid JSON")
	errBodyTooLarge  = apperr.BadRequest("BODY_TOO_LARGE", "request body exceeds %d bytes", maxBodyBytes)
)

// errorBody is the envelope every failed request answers with.
type errorBody struct {
	Error     string         `json:"error"`
	Code      string         `json:"code"`
	Details   map[string]any `json:"details,omitempty"`
	RequestID string         `json:"requestId"`
}

// writeJSON marshals v and writes it with the given status. A marshal
// failure becomes a plain 500.
func writeJSON(w http.ResponseWriter, status int, v any) {
	data, err := json.Marshal(v)
	if err != nil {
		http.Error(w, `{"error":"internal error","code":"INTERNAL"}`, http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_, _ = w.Write(data)
}

// writeError maps err onto the envelope. Unclassified errors are logged and
// answered with a generic message.
func (s *Server) writeError(w http.ResponseWriter, r *http.Request, err error) {
	e := apperr.As(err)
	requestID := middleware.RequestIDFrom(r.Context())
	body := errorBody{Error: e.Message, Code: e.Code, Details: e.Details, RequestID: requestID}

	if e.Kind == apperr.KindInternal {
		telemetry.LogWithTrace(r.Context(), s.logger).ErrorContext(r.Context(), "request failed",
			slog.String("method", r.Method),
			slog.String("path", r.URL.Path),
			slog.String("request_id", requestID),
			slog.Any("error", err),
		)
		body = errorBody{Error: "internal error", Code: "INTERNAL", RequestID: requestID}
	}
	if e.Kind == apperr.KindRateLimited {
		w.Header().Set("Retry-After", "60")
	}
	writeJSON(w, e.Kind.HTTPStatus(), body)
}

// readBody reads the request body up to maxBodyBytes.
func readBody(w http.ResponseWriter, r *http.Request) ([]byte, error) {
	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			return nil, errBodyTooLarge
		}
		return nil, errMalformedBody.Wrap(err)
	}
	return body, nil
}

// decodeJSON decodes the body into v. An empty body is allowed when
// optional is set and leaves v untouched.
func decodeJSON(w http.ResponseWriter, r *http.Request, v any, optional bool) error {
	body, err := readBody(w, r)
	if err != nil {
		return err
	}
	if len(strings.TrimSpace(string(body))) == 0 {
		if optional {
			return nil
		}
		return errMalformedBody
	}
	if err := json.Unmarshal(body, v); err != nil {
		return errMalformedBody.Wrap(err)
	}
	return nil
}

// credentials collects whatever the caller presented. pin comes from the
// body when the route has one.
func (s *Server) credentials(r *http.Request, pin string) auth.Credentials {
	var bearer string
	if h := r.Header.Get("Authorization"); h != "" {
		scheme, token, ok := strings.Cut(h, " ")
		if ok && strings.EqualFold(scheme, "Bearer") {
			bearer = strings.TrimSpace(token)
		}
	}
	return auth.Credentials{
		Bearer:        bearer,
		RecoveryToken: strings.TrimSpace(r.Header.Get("X-Recovery-Token")),
		PIN:           pin,
		ClientIP:      middleware.ClientIP(r, s.cfg.TrustProxy),
	}
}

// auditLimit parses ?limit=, defaulting to 50 and capping at 500.
func auditLimit(r *http.Request) int {
	limit := defaultAuditLimit
	if v := r.URL.Query().Get("limit"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			limit = n
		}
	}
	return min(limit, maxAuditLimit)
}
