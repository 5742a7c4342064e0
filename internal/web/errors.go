package web

// errors.go renders every handler error the same way: the technical error
// is logged with the request ID, the client gets core.MapError's message as
// an HTML fragment (HX-Request), JSON (API clients) or plain text.

import (
	"net/http"
	"strings"

	"github.com/go-chi/render"

	"github.com/JonMunkholm/csvnome/internal/core"
	"github.com/JonMunkholm/csvnome/internal/logging"
	"github.com/JonMunkholm/csvnome/internal/web/templates"
)

// ErrorResponse is the JSON body of an API error.
type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message"`
	Action  string `json:"action,omitempty"`
	Code    string `json:"code"`
	Detail  string `json:"detail,omitempty"`
}

func (s *Server) respondError(w http.ResponseWriter, r *http.Request, err error, statusCode int) {
	msg := core.MapError(err)

	log := logging.FromContext(r.Context())
	attrs := []any{
		"path", r.URL.Path,
		"method", r.Method,
		"status", statusCode,
		"error", err.Error(),
		"code", msg.Code,
	}
	if statusCode >= http.StatusInternalServerError {
		log.Error("request error", attrs...)
	} else {
		log.Warn("request error", attrs...)
	}

	switch {
	case isHTMX(r):
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		w.WriteHeader(statusCode)
		if err := templates.ErrorAlert(msg.Message, msg.Action, msg.Code, msg.Detail).Render(r.Context(), w); err != nil {
			log.Error("render failed", "component", "error alert", "error", err)
		}
	case wantsJSON(r):
		render.Status(r, statusCode)
		render.JSON(w, r, ErrorResponse{
			Error:   msg.Message,
			Message: msg.Message,
			Action:  msg.Action,
			Code:    msg.Code,
			Detail:  msg.Detail,
		})
	default:
		http.Error(w, core.FormatUserError(err), statusCode)
	}
}

// statusFor picks the HTTP status for a flow error.
func statusFor(err error) int {
	switch core.MapError(err).Code {
	case "SCH001", "FILE002", "FILE004", "FILE005", "FILE006", "SAVE002", "SAVE003":
		return http.StatusUnprocessableEntity
	case "FILE001":
		return http.StatusRequestEntityTooLarge
	case "FILE003":
		return http.StatusNotFound
	case "REQ003":
		return http.StatusForbidden
	case "RATE001":
		return http.StatusTooManyRequests
	case "UPL002":
		return http.StatusServiceUnavailable
	case "REQ002":
		return http.StatusGatewayTimeout
	default:
		return http.StatusInternalServerError
	}
}

func isHTMX(r *http.Request) bool {
	return r.Header.Get("HX-Request") == "true"
}

// wantsJSON reports whether the client prefers JSON. API routes default to it.
func wantsJSON(r *http.Request) bool {
	if strings.Contains(r.Header.Get("Accept"), "application/json") {
		return true
	}
	if strings.Contains(r.Header.Get("Content-Type"), "application/json") {
		return true
	}
	return strings.HasPrefix(r.URL.Path, "/api/")
}
