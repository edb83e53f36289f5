package middleware

import (
	"net/http"
	"strings"

	"github.com/google/uuid"

	"github.com/popeskul/wa-inbox/internal/tenant"
)

// Identity headers set by the authenticating gateway in front of the API.
const (
	CompanyIDHeader = "X-Company-ID"
	UserIDHeader    = "X-User-ID"
	UserRoleHeader  = "X-User-Role"
)

// Identity scopes the request to the caller's company and rejects requests whose identity
// headers are missing or malformed. Browsers cannot set headers on websocket handshakes, so
// upgrade requests may carry the identity as companyId, userId and role query parameters.
func Identity(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		get := r.Header.Get
		if IsWebSocketUpgrade(r) && r.Header.Get(CompanyIDHeader) == "" {
			q := r.URL.Query()
			get = func(key string) string { return q.Get(queryKeys[key]) }
		}

		id, ok := identityFrom(get)
		if !ok {
			WriteError(w, r, http.StatusUnauthorized, ErrorCodeUnauthenticated, ErrorMessageUnauthenticated)
			return
		}

		next.ServeHTTP(w, r.WithContext(tenant.WithIdentity(r.Context(), id)))
	})
}

var queryKeys = map[string]string{
	CompanyIDHeader: "companyId",
	UserIDHeader:    "userId",
	UserRoleHeader:  "role",
}

func identityFrom(get func(string) string) (tenant.Identity, bool) {
	companyID, err := uuid.Parse(strings.TrimSpace(get(CompanyIDHeader)))
	if err != nil || companyID == uuid.Nil {
		return tenant.Identity{}, false
	}
	userID, err := uuid.Parse(strings.TrimSpace(get(UserIDHeader)))
	if err != nil || userID == uuid.Nil {
		return tenant.Identity{}, false
	}
	role := tenant.Role(strings.ToLower(strings.TrimSpace(get(UserRoleHeader))))
	if !role.Valid() {
		return tenant.Identity{}, false
	}

	return tenant.Identity{CompanyID: companyID, UserID: userID, Role: role}, true
}

// IsWebSocketUpgrade reports whether r asks to switch to the websocket protocol.
func IsWebSocketUpgrade(r *http.Request) bool {
	return strings.EqualFold(r.Header.Get("Upgrade"), "websocket") &&
		strings.Contains(strings.ToLower(r.Header.Get("Connection")), "upgrade")
}
