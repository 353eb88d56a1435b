package gateway

import (
	"crypto/subtle"
	"os"
	"slices"

	"github.com/soyeahso/enso/internal/config"
)

// Client modes sent in ConnectParams.Client.Mode.
const (
	ClientModeHost = "host"
	ClientModeCLI  = "cli"
)

// Scope is what an authenticated connection may do. The desktop host
// edits settings; command line clients only read them.
type Scope string

const (
	ScopeRead  Scope = "read"
	ScopeWrite Scope = "write"
)

// readMethods need only ScopeRead. Every other method, including ones
// registered later through Handle, needs ScopeWrite.
var readMethods = []string{"health", "settings.get", "agents.list"}

// AuthResult is the outcome of an authentication attempt.
type AuthResult struct {
	OK     bool   `json:"ok"`
	Method string `json:"method,omitempty"`
	Scope  Scope  `json:"scope,omitempty"`
	Reason string `json:"reason,omitempty"`
}

// Allows reports whether the connection may call method.
func (r AuthResult) Allows(method string) bool {
	switch r.Scope {
	case ScopeWrite:
		return true
	case ScopeRead:
		return slices.Contains(readMethods, method)
	}
	return false
}

// ResolvedAuth is the gateway credential after config and environment
// are merged.
type ResolvedAuth struct {
	Mode     string
	Token    string
	Password string
}

// secret returns the configured credential for the active mode.
func (a ResolvedAuth) secret() (string, bool) {
	switch a.Mode {
	case "token":
		return a.Token, true
	case "password":
		return a.Password, true
	}
	return "", false
}

// Configured reports whether a credential for the active mode exists.
func (a ResolvedAuth) Configured() bool {
	s, ok := a.secret()
	return ok && s != ""
}

// ResolveAuth merges the config credentials with ENSO_GATEWAY_TOKEN and
// ENSO_GATEWAY_PASSWORD; config values win. Without an explicit mode a
// password selects password auth, anything else token auth.
func ResolveAuth(cfg config.GatewayAuth) ResolvedAuth {
	auth := ResolvedAuth{
		Mode:     cfg.Mode,
		Token:    firstNonEmpty(cfg.Token, os.Getenv("ENSO_GATEWAY_TOKEN")),
		Password: firstNonEmpty(cfg.Password, os.Getenv("ENSO_GATEWAY_PASSWORD")),
	}
	if auth.Mode == "" {
		auth.Mode = "token"
		if auth.Password != "" {
			auth.Mode = "password"
		}
	}
	return auth
}

func firstNonEmpty(vals ...string) string {
	for _, v := range vals {
		if v != "" {
			return v
		}
	}
	return ""
}

// Authorize checks the connect request's credential and client mode and
// returns the scope the connection gets.
func Authorize(server ResolvedAuth, params ConnectParams) AuthResult {
	want, known := server.secret()
	switch {
	case !known:
		return AuthResult{Reason: "unknown auth mode: " + server.Mode}
	case want == "":
		return AuthResult{Reason: "server " + server.Mode + " not configured"}
	case params.Auth == nil:
		return AuthResult{Reason: "no credentials provided"}
	}

	got := params.Auth.Token
	if server.Mode == "password" {
		got = params.Auth.Password
	}
	if got == "" {
		return AuthResult{Reason: server.Mode + " required"}
	}
	if !safeEqual(got, want) {
		return AuthResult{Reason: server.Mode + "_mismatch"}
	}

	scope, ok := scopeFor(params.Client.Mode)
	if !ok {
		return AuthResult{Reason: "unknown client mode: " + params.Client.Mode}
	}
	return AuthResult{OK: true, Method: server.Mode, Scope: scope}
}

// scopeFor maps a client mode to its scope. An empty mode is a command
// line client.
func scopeFor(mode string) (Scope, bool) {
	switch mode {
	case ClientModeHost:
		return ScopeWrite, true
	case ClientModeCLI, "":
		return ScopeRead, true
	}
	return "", false
}

// safeEqual compares in constant time, including the length check.
func safeEqual(a, b string) bool {
	lenMatch := subtle.ConstantTimeEq(int32(len(a)), int32(len(b)))
	cmp := subtle.ConstantTimeCompare([]byte(a), []byte(b))
	return subtle.ConstantTimeSelect(lenMatch, cmp, 0) == 1
}
