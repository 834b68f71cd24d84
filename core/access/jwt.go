// Copyright 2021 Dalarub & Ettrich GmbH - All Rights Reserved
// Unauthorized copying of this file, via any medium is strictly prohibited
// Proprietary and confidential
// info@dalarub.com
//

package access

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v4"
	"github.com/google/uuid"
	"github.com/gorilla/mux"

	"github.com/relabs-tech/labadmin/core/logger"
)

// IdentityLookup resolves the login of an authenticated caller to its account ID
type IdentityLookup interface {
	AccountIDByLogin(ctx context.Context, login string) (uuid.UUID, error)
}

// JwtMiddlewareBuilder is a helper builder for NewJwtMiddleware
type JwtMiddlewareBuilder struct {
	// Secret is the shared HMAC secret the tokens are signed with
	Secret []byte
	// Lookup resolves the subject of a token to an account
	Lookup IdentityLookup
	// Cache caches authorizations by token. Optional, a new cache is created if nil.
	Cache *AuthorizationCache
}

// Claims are the claims of an access token. The subject is the login, "auth"
// carries the roles as a comma separated list.
type Claims struct {
	Auth string `json:"auth"`
	jwt.RegisteredClaims
}

// IssueToken creates a signed access token for login with roles
func IssueToken(secret []byte, login string, roles Roles, validity time.Duration) (string, error) {
	now := time.Now()
	claims := Claims{
		Auth: strings.Join(roles.Strings(), ","),
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   login,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(validity)),
		},
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS512, claims).SignedString(secret)
}

// bearerToken extracts the token from the Authorization header or the
// "Labadmin-JWT" cookie. It returns an empty string if there is none.
func bearerToken(r *http.Request) string {
	bearer := r.Header.Get("Authorization")
	if len(bearer) > 0 && bearer != "null" {
		if len(bearer) >= 7 && strings.EqualFold(bearer[:7], "bearer ") {
			return bearer[7:]
		}
		return bearer
	}
	if cookie, _ := r.Cookie("Labadmin-JWT"); cookie != nil {
		return cookie.Value
	}
	return ""
}

// NewJwtMiddleware returns a middleware handler to validate JWT bearer tokens.
//
// Tokens are accepted as "Authorization: Bearer" header or as "Labadmin-JWT" cookie.
// Requests without a token are passed on without authorization. Requests with an invalid
// token, or a token for an unknown account, are rejected with http.StatusUnauthorized.
func NewJwtMiddleware(jmb *JwtMiddlewareBuilder) mux.MiddlewareFunc {
	if len(jmb.Secret) == 0 {
		panic("jwt middleware requires a secret")
	}
	if jmb.Lookup == nil {
		panic("jwt middleware requires an identity lookup")
	}
	authCache := jmb.Cache
	if authCache == nil {
		authCache = NewAuthorizationCache()
	}

	keyFunc := func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method %v", token.Header["alg"])
		}
		return jmb.Secret, nil
	}

	return func(h http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if AuthorizationFromContext(r.Context()) != nil { // already authorized?
				h.ServeHTTP(w, r)
				return
			}
			tokenString := bearerToken(r)
			if len(tokenString) == 0 {
				h.ServeHTTP(w, r) // no token no auth, moving on
				return
			}
			rlog := logger.FromContext(r.Context())

			var claims Claims
			token, err := jwt.ParseWithClaims(tokenString, &claims, keyFunc)
			if err != nil || !token.Valid || claims.Subject == "" {
				authCache.Delete(tokenString)
				rlog.WithError(err).Debugln("rejected token")
				http.Error(w, "invalid token", http.StatusUnauthorized)
				return
			}

			auth := authCache.Read(tokenString)
			if auth == nil {
				var roles Roles
				for _, name := range strings.Split(claims.Auth, ",") {
					if role, err := ParseRole(strings.TrimSpace(name)); err == nil {
						roles = append(roles, role)
					}
				}

				accountID, err := jmb.Lookup.AccountIDByLogin(r.Context(), claims.Subject)
				if err != nil {
					if errors.Is(err, ErrUnknownIdentity) {
						http.Error(w, "no account for "+claims.Subject, http.StatusUnauthorized)
						return
					}
					rlog.WithError(err).Errorln("Error 4723: cannot look up account")
					http.Error(w, "Error 4723", http.StatusInternalServerError)
					return
				}
				auth = &Authorization{AccountID: accountID, Login: claims.Subject, Roles: roles.Normalize()}
				authCache.Write(tokenString, auth)
			}

			ctx, _ := logger.ContextWithLoggerIdentity(r.Context(), auth.Login)
			ctx = ContextWithAuthorization(ctx, auth)
			h.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// ErrUnknownIdentity is returned by an IdentityLookup when there is no account for a login
var ErrUnknownIdentity = errors.New("unknown identity")
