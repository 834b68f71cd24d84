// Copyright 2021 Dalarub & Ettrich GmbH - All Rights Reserved
// Unauthorized copying of this file, via any medium is strictly prohibited
// Proprietary and confidential
// info@dalarub.com
//

/*
Package access provides utilities for access control.

An Authorization describes the authenticated caller: its account, its login
and its roles. Middlewares add it to the request context with

	ctx = ContextWithAuthorization(ctx, auth)

and handlers retrieve it with

	auth := AuthorizationFromContext(ctx)

The package also holds the pure policy functions which decide what a caller
may do with other accounts.
*/
package access

import (
	"context"
	"net/http"
	"sync"

	"github.com/goccy/go-json"
	"github.com/google/uuid"
	"github.com/gorilla/mux"

	"github.com/relabs-tech/labadmin/core/logger"
)

// contextKey is the type for context keys. Go linter does not like plain strings
type contextKey string

const contextKeyAuthorization contextKey = "_authorization_"

// Authorization is a context object which stores the authorization of the caller
type Authorization struct {
	AccountID uuid.UUID `json:"account_id"`
	Login     string    `json:"login"`
	Roles     Roles     `json:"roles"`
}

// HasRole returns true if the authorization contains the requested role;
// otherwise it returns false.
func (a *Authorization) HasRole(role Role) bool {
	if a == nil {
		return false
	}
	return a.Roles.Has(role)
}

// IsAdmin is a shortcut for HasRole(RoleAdmin)
func (a *Authorization) IsAdmin() bool {
	return a.HasRole(RoleAdmin)
}

// ContextWithAuthorization returns a new context with the authorization added to it
func ContextWithAuthorization(ctx context.Context, auth *Authorization) context.Context {
	return context.WithValue(ctx, contextKeyAuthorization, auth)
}

// AuthorizationFromContext retrieves an authorization from the context
func AuthorizationFromContext(ctx context.Context) *Authorization {
	if ctx == nil {
		return nil
	}
	a, _ := ctx.Value(contextKeyAuthorization).(*Authorization)
	return a
}

// AuthorizationCache is an in-memory cache for authorizations. It is used by
// the jwt middleware to cache the account lookup for bearer tokens, so that
// it does not happen on every single request. Tokens are still validated on
// every request.
type AuthorizationCache struct {
	mutex sync.RWMutex
	cache map[string]*Authorization
}

// NewAuthorizationCache creates a new authorization cache
func NewAuthorizationCache() *AuthorizationCache {
	return &AuthorizationCache{cache: make(map[string]*Authorization)}
}

// Read returns an authorization from in-process cache.
// Token should be the token the authorization was derived from.
// This function is go-routine safe
func (a *AuthorizationCache) Read(token string) *Authorization {
	a.mutex.RLock()
	defer a.mutex.RUnlock()
	return a.cache[token]
}

// Write stores an authorization in the in-memory cache.
// This function is go-routine safe
func (a *AuthorizationCache) Write(token string, auth *Authorization) {
	a.mutex.Lock()
	a.cache[token] = auth
	a.mutex.Unlock()
}

// Delete removes the cached authorization of token
func (a *AuthorizationCache) Delete(token string) {
	a.mutex.Lock()
	delete(a.cache, token)
	a.mutex.Unlock()
}

// Flush removes all cached authorizations. Call it when accounts change or disappear.
func (a *AuthorizationCache) Flush() {
	a.mutex.Lock()
	a.cache = make(map[string]*Authorization)
	a.mutex.Unlock()
}

// RequireAuthentication returns a middleware which rejects requests without authorization
// with http.StatusUnauthorized.
func RequireAuthentication() mux.MiddlewareFunc {
	return func(h http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if AuthorizationFromContext(r.Context()) == nil {
				http.Error(w, "not authorized", http.StatusUnauthorized)
				return
			}
			h.ServeHTTP(w, r)
		})
	}
}

// RequireRole wraps handler so that it only executes for callers with role.
// Unauthenticated callers get http.StatusUnauthorized, others http.StatusForbidden.
func RequireRole(role Role, handler http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		auth := AuthorizationFromContext(r.Context())
		if auth == nil {
			http.Error(w, "not authorized", http.StatusUnauthorized)
			return
		}
		if !auth.HasRole(role) {
			logger.FromContext(r.Context()).Warnf("%s lacks %s for %s %s", auth.Login, role, r.Method, r.URL.Path)
			http.Error(w, "forbidden", http.StatusForbidden)
			return
		}
		handler(w, r)
	}
}

// HandleAuthorizationRoute adds a route /authorization GET to the router
//
// The route returns the current authorization of the caller.
func HandleAuthorizationRoute(router *mux.Router) {
	logger.Default().Debugln("  handle route: /authorization GET")
	router.HandleFunc("/authorization", func(w http.ResponseWriter, r *http.Request) {
		logger.FromContext(r.Context()).Infoln("called route for", r.URL, r.Method)
		auth := AuthorizationFromContext(r.Context())
		if auth == nil {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		jsonData, _ := json.MarshalIndent(auth, "", " ")
		w.Header().Set("Content-Type", "application/json; charset=utf-8")
		w.Write(jsonData)
	}).Methods(http.MethodGet)
}
