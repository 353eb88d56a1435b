package gateway

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/soyeahso/enso/internal/settings"
	"github.com/soyeahso/enso/internal/store"
)

// HealthResponse is returned by health endpoints. The public HTTP endpoint
// only populates Status; the authenticated RPC handler populates all fields.
type HealthResponse struct {
	Status        string `json:"status"`
	Version       string `json:"version,omitempty"`
	Clients       int    `json:"clients,omitempty"`
	UptimeMs      int64  `json:"uptimeMs,omitempty"`
	StorePhase    string `json:"storePhase,omitempty"`
	Revision      uint64 `json:"revision,omitempty"`
	WriteFailures int    `json:"writeFailures,omitempty"`
}

// handleHealth returns the server health status. Only status is exposed
// publicly; detailed info is available via the authenticated RPC health method.
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(HealthResponse{Status: "ok"})
}

// handleNotFound returns a 404 for unknown routes.
func handleNotFound(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusNotFound)
	json.NewEncoder(w).Encode(map[string]string{
		"error": "not found",
		"path":  r.URL.Path,
	})
}

// RequestHandler processes an incoming RPC request frame from a client.
type RequestHandler func(ctx *RequestContext)

// RequestContext carries everything a handler needs.
type RequestContext struct {
	Client *Client
	Frame  Frame
	Server *Server
}

// Respond sends a success response.
func (rc *RequestContext) Respond(payload any) {
	if err := rc.Client.Respond(rc.Frame.ID, payload); err != nil {
		rc.Server.log.Warn().Err(err).Str("method", rc.Frame.Method).Msg("failed to send response")
	}
}

// RespondError sends an error response.
func (rc *RequestContext) RespondError(code, message string) {
	if err := rc.Client.RespondError(rc.Frame.ID, ErrorShape{Code: code, Message: message}); err != nil {
		rc.Server.log.Warn().Err(err).Str("method", rc.Frame.Method).Msg("failed to send error response")
	}
}

// Fail maps a store or settings error to a response error code.
func (rc *RequestContext) Fail(err error) {
	rc.RespondError(errorCode(err), err.Error())
}

// Params unmarshals the request params into the given target.
func (rc *RequestContext) Params(target any) error {
	if len(rc.Frame.Params) == 0 || string(rc.Frame.Params) == "null" {
		return nil
	}
	return json.Unmarshal(rc.Frame.Params, target)
}

func errorCode(err error) string {
	var (
		ve *store.ValueError
		pe *settings.PathError
	)
	switch {
	case errors.Is(err, store.ErrNotReady):
		return CodeUnavailable
	case errors.Is(err, store.ErrUnknownField), errors.Is(err, store.ErrUnknownAgent):
		return CodeNotFound
	case errors.Is(err, store.ErrDuplicateAgent):
		return CodeConflict
	case errors.Is(err, store.ErrAgentDisabled), errors.Is(err, store.ErrBuiltinAgent):
		return CodePrecondition
	case errors.As(err, &ve), errors.As(err, &pe):
		return CodeInvalidParams
	default:
		return CodeInternal
	}
}
