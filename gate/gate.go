// Package gate is the authorization boundary of the HTTP API. Authenticate
// turns a bearer token into a caller identity; Require checks that identity
// against the role allow-set declared for a route.
package gate

import (
	"context"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"storerate/apperr"
	"storerate/auth"
)

const (
	identityKey = "gate.identity"
	tokenKey    = "gate.token"
)

var (
	// ErrMissingToken signals a request without a bearer token.
	ErrMissingToken = apperr.New(apperr.KindUnauthenticated, "Not authorized, no token")
	// ErrRevokedToken signals a token presented after logout.
	ErrRevokedToken = apperr.New(apperr.KindUnauthenticated, "Not authorized, token revoked")
	// ErrForbidden signals a caller whose role is outside the route's allow-set.
	ErrForbidden = apperr.New(apperr.KindForbidden, "Forbidden: insufficient role")
)

// TokenVerifier validates a raw token. *auth.Service satisfies it.
type TokenVerifier interface {
	VerifyToken(token string) (*auth.Claims, error)
}

// RevocationChecker reports whether a token was revoked.
type RevocationChecker interface {
	IsRevoked(ctx context.Context, token string) (bool, error)
}

// Authenticate verifies the bearer token and stores the caller identity in
// the gin context. revocations may be nil.
func Authenticate(verifier TokenVerifier, revocations RevocationChecker) gin.HandlerFunc {
	return func(c *gin.Context) {
		token, ok := bearerToken(c.GetHeader("Authorization"))
		if !ok {
			Abort(c, ErrMissingToken)
			return
		}

		claims, err := verifier.VerifyToken(token)
		if err != nil {
			Abort(c, err)
			return
		}

		if revocations != nil {
			revoked, err := revocations.IsRevoked(c.Request.Context(), token)
			if err != nil {
				Abort(c, err)
				return
			}
			if revoked {
				Abort(c, ErrRevokedToken)
				return
			}
		}

		c.Set(identityKey, claims.Identity())
		c.Set(tokenKey, token)
		c.Next()
	}
}

// Require admits callers whose role is one of roles. It must run after
// Authenticate.
func Require(roles ...auth.Role) gin.HandlerFunc {
	allowed := make(map[auth.Role]struct{}, len(roles))
	for _, r := range roles {
		allowed[r] = struct{}{}
	}

	return func(c *gin.Context) {
		id, ok := IdentityFrom(c)
		if !ok {
			Abort(c, ErrMissingToken)
			return
		}
		if _, ok := allowed[id.Role]; !ok {
			Abort(c, ErrForbidden)
			return
		}
		c.Next()
	}
}

// IdentityFrom returns the caller identity set by Authenticate.
func IdentityFrom(c *gin.Context) (auth.Identity, bool) {
	v, ok := c.Get(identityKey)
	if !ok {
		return auth.Identity{}, false
	}
	id, ok := v.(auth.Identity)
	return id, ok
}

// TokenFrom returns the raw bearer token accepted by Authenticate.
func TokenFrom(c *gin.Context) (string, bool) {
	v, ok := c.Get(tokenKey)
	if !ok {
		return "", false
	}
	token, ok := v.(string)
	return token, ok
}

// Abort stops the handler chain with the JSON error body for err. Internal
// detail is included outside gin's release mode.
func Abort(c *gin.Context, err error) {
	status, body := apperr.Render(err, gin.Mode() != gin.ReleaseMode)
	if status == http.StatusInternalServerError {
		_ = c.Error(err)
	}
	c.AbortWithStatusJSON(status, body)
}

func bearerToken(header string) (string, bool) {
	scheme, token, found := strings.Cut(strings.TrimSpace(header), " ")
	if !found || !strings.EqualFold(scheme, "Bearer") {
		return "", false
	}
	token = strings.TrimSpace(token)
	return token, token != ""
}
