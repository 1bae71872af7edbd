package middleware

import (
	"errors"
	"net/http"
	apperrors "stayhub/pkg/errors"
	httputil "stayhub/pkg/http"
	"stayhub/pkg/logger"
	"stayhub/pkg/model"
	"strings"

	"github.com/golang-jwt/jwt/v5"
)

type Claims struct {
	UserID string     `json:"userId"`
	Role   model.Role `json:"role"`
	jwt.RegisteredClaims
}

var errMissingToken = errors.New("missing bearer token")

// Authenticate verifies an HS256 bearer token and stores the Actor it names
// in the request context. Requests without a valid token get 401.
func Authenticate(secret []byte, log *logger.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			actor, err := ParseActor(r.Header.Get("Authorization"), secret)
			if err != nil {
				log.Warn("Authentication failed",
					"request_id", RequestIDFromContext(r.Context()),
					"path", r.URL.Path,
					"error", err,
				)
				w.Header().Set("WWW-Authenticate", `Bearer realm="stayhub"`)
				_ = httputil.WriteError(w, apperrors.Unauthorized("Missing or invalid token"))
				return
			}

			next.ServeHTTP(w, r.WithContext(WithActor(r.Context(), actor)))
		})
	}
}

// ParseActor extracts the actor from an "Authorization: Bearer <jwt>" value.
func ParseActor(header string, secret []byte) (model.Actor, error) {
	tokenString, found := strings.CutPrefix(header, "Bearer ")
	if !found || strings.TrimSpace(tokenString) == "" {
		return model.Actor{}, errMissingToken
	}

	claims := &Claims{}
	token, err := jwt.ParseWithClaims(strings.TrimSpace(tokenString), claims, func(token *jwt.Token) (any, error) {
		return secret, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
	if err != nil {
		return model.Actor{}, err
	}
	if !token.Valid {
		return model.Actor{}, jwt.ErrTokenInvalidClaims
	}
	if claims.UserID == "" || !claims.Role.IsValid() {
		return model.Actor{}, jwt.ErrTokenInvalidClaims
	}

	return model.Actor{ID: claims.UserID, Role: claims.Role}, nil
}

// IssueToken signs an HS256 token for actor. Used by tests and local tooling;
// production tokens come from the identity service.
func IssueToken(actor model.Actor, secret []byte, claims jwt.RegisteredClaims) (string, error) {
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, Claims{
		UserID:           actor.ID,
		Role:             actor.Role,
		RegisteredClaims: claims,
	})
	return token.SignedString(secret)
}
