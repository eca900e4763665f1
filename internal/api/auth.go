package api

import (
	"crypto/subtle"
	"log"
	"net/http"

	"github.com/darianrosebrook/minebot/internal/config"
)

// Role represents an authorization role. Operators may cancel and retry
// tasks; invalidation is admin-only.
type Role string

const (
	RoleAdmin    Role = "admin"
	RoleOperator Role = "operator"
)

// authConfig holds credentials loaded from environment variables.
type authConfig struct {
	adminUser    string
	adminPass    string
	operatorUser string
	operatorPass string
	enabled      bool
}

var auth *authConfig

// mustSecret resolves a credential env var, honoring the *_FILE
// convention, and exits on resolution failure.
func mustSecret(name string) string {
	v, err := config.ResolveSecret(name)
	if err != nil {
		log.Fatalf("failed to resolve %s: %v", name, err)
	}
	return v
}

// InitAuth loads basic-auth credentials from MINEBOT_{ADMIN,OPERATOR}_{USER,PASS}
// (or their *_FILE variants). With no admin credentials set, authentication
// is disabled entirely, which is the intended dev-mode default.
func InitAuth() {
	cfg := &authConfig{
		adminUser:    mustSecret("MINEBOT_ADMIN_USER"),
		adminPass:    mustSecret("MINEBOT_ADMIN_PASS"),
		operatorUser: mustSecret("MINEBOT_OPERATOR_USER"),
		operatorPass: mustSecret("MINEBOT_OPERATOR_PASS"),
	}
	cfg.enabled = cfg.adminUser != "" && cfg.adminPass != ""
	auth = cfg
}

// IsAuthEnabled returns true if authentication is configured.
func IsAuthEnabled() bool {
	return auth != nil && auth.enabled
}

// authenticate resolves the request's basic-auth credentials to a role,
// or "" when they match neither account. With auth disabled every
// request acts as admin.
func authenticate(r *http.Request) Role {
	if !IsAuthEnabled() {
		return RoleAdmin
	}

	user, pass, ok := r.BasicAuth()
	if !ok {
		return ""
	}

	accounts := []struct {
		user, pass string
		role       Role
	}{
		{auth.adminUser, auth.adminPass, RoleAdmin},
		{auth.operatorUser, auth.operatorPass, RoleOperator},
	}
	for _, a := range accounts {
		if a.user == "" || a.pass == "" {
			continue
		}
		if secureCompare(user, a.user) && secureCompare(pass, a.pass) {
			return a.role
		}
	}
	return ""
}

// secureCompare performs constant-time string comparison to prevent timing attacks.
func secureCompare(a, b string) bool {
	return subtle.ConstantTimeCompare([]byte(a), []byte(b)) == 1
}

func requireAuth(w http.ResponseWriter) {
	w.Header().Set("WWW-Authenticate", `Basic realm="MineBot"`)
	http.Error(w, "Unauthorized", http.StatusUnauthorized)
}

// RequireRole wraps a handler and requires one of the specified roles.
func RequireRole(handler http.HandlerFunc, allowedRoles ...Role) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		role := authenticate(r)
		if role == "" {
			requireAuth(w)
			return
		}

		for _, allowed := range allowedRoles {
			if role == allowed {
				handler(w, r)
				return
			}
		}

		http.Error(w, "Forbidden", http.StatusForbidden)
	}
}

// RequireAnyRole wraps a handler requiring admin OR operator role.
func RequireAnyRole(handler http.HandlerFunc) http.HandlerFunc {
	return RequireRole(handler, RoleAdmin, RoleOperator)
}

// RequireAdmin wraps a handler requiring admin role only.
func RequireAdmin(handler http.HandlerFunc) http.HandlerFunc {
	return RequireRole(handler, RoleAdmin)
}
