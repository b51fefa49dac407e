package api

import (
	"crypto/subtle"
	"net/http"

	"github.com/Arlo-O/FinalDelivery-Project-FCS/internal/config"
)

// Role represents an authorization role.
type Role string

const (
	RoleAdmin    Role = "admin"
	RoleOperator Role = "operator"
)

// Environment variables naming the basic auth users. Passwords come from
// config.Secrets.
const (
	EnvAdminUser    = "TRAFFIC_ADMIN_USER"
	EnvOperatorUser = "TRAFFIC_OPERATOR_USER"
)

// AuthConfig holds basic auth credentials for the control endpoints.
// A nil or disabled config grants admin to every request.
type AuthConfig struct {
	adminUser    string
	adminPass    string
	operatorUser string
	operatorPass string
	enabled      bool
}

// NewAuthConfig builds a config from explicit credentials. Auth is enabled
// only if admin credentials are set.
func NewAuthConfig(adminUser, adminPass, operatorUser, operatorPass string) *AuthConfig {
	return &AuthConfig{
		adminUser:    adminUser,
		adminPass:    adminPass,
		operatorUser: operatorUser,
		operatorPass: operatorPass,
		enabled:      adminUser != "" && adminPass != "",
	}
}

// LoadAuth reads user names from the environment (with *_FILE support)
// and pairs them with the passwords in secrets.
func LoadAuth(secrets config.Secrets) (*AuthConfig, error) {
	adminUser, err := config.ResolveSecret(EnvAdminUser)
	if err != nil {
		return nil, err
	}
	operatorUser, err := config.ResolveSecret(EnvOperatorUser)
	if err != nil {
		return nil, err
	}
	return NewAuthConfig(adminUser, secrets.AdminPassword, operatorUser, secrets.OperatorPassword), nil
}

// Enabled reports whether credentials are required.
func (a *AuthConfig) Enabled() bool {
	return a != nil && a.enabled
}

// authenticate checks basic auth credentials and returns the role if valid.
// Returns empty string if credentials are invalid.
func (a *AuthConfig) authenticate(r *http.Request) Role {
	if !a.Enabled() {
		return RoleAdmin
	}

	user, pass, ok := r.BasicAuth()
	if !ok {
		return ""
	}

	if secureCompare(user, a.adminUser) && secureCompare(pass, a.adminPass) {
		return RoleAdmin
	}
	if a.operatorUser != "" && a.operatorPass != "" {
		if secureCompare(user, a.operatorUser) && secureCompare(pass, a.operatorPass) {
			return RoleOperator
		}
	}
	return ""
}

// secureCompare performs constant-time string comparison.
func secureCompare(a, b string) bool {
	return subtle.ConstantTimeCompare([]byte(a), []byte(b)) == 1
}

func requireAuth(w http.ResponseWriter) {
	w.Header().Set("WWW-Authenticate", `Basic realm="trafficsim"`)
	http.Error(w, "Unauthorized", http.StatusUnauthorized)
}

// RequireRole wraps a handler and requires one of the specified roles.
func (a *AuthConfig) RequireRole(handler http.HandlerFunc, allowedRoles ...Role) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		role := a.authenticate(r)
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
func (a *AuthConfig) RequireAnyRole(handler http.HandlerFunc) http.HandlerFunc {
	return a.RequireRole(handler, RoleAdmin, RoleOperator)
}

// RequireAdmin wraps a handler requiring admin role only.
func (a *AuthConfig) RequireAdmin(handler http.HandlerFunc) http.HandlerFunc {
	return a.RequireRole(handler, RoleAdmin)
}
