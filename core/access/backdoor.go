// Copyright 2021 Dalarub & Ettrich GmbH - All Rights Reserved
// Unauthorized copying of this file, via any medium is strictly prohibited
// Proprietary and confidential
// info@dalarub.com
//

package access

import (
	"net/http"

	"github.com/gorilla/mux"

	"github.com/relabs-tech/labadmin/core/logger"
)

// BackdoorMiddlewareBuilder is a helper builder for NewBackdoorMiddleware
type BackdoorMiddlewareBuilder struct {
	// Backdoors is a mapping from a bearer token to an actual authorization
	Backdoors map[string]Authorization
}

// NewBackdoorMiddleware returns a middleware handler for a backdoor
//
// The key for the backdoors map is the bearer token passed with the request.
//
// Example: if you specify the backdoor
//
//	"please": Authorization{Login: "admin", Roles: Roles{RoleAdmin}}
//
// then any request with an authorization bearer token consisting of the single
// magic word "please" will be authorized as admin. Only use this for local development.
func NewBackdoorMiddleware(bmb *BackdoorMiddlewareBuilder) mux.MiddlewareFunc {
	return func(h http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if AuthorizationFromContext(r.Context()) != nil || len(bmb.Backdoors) == 0 {
				h.ServeHTTP(w, r)
				return
			}
			if tryAuth, ok := bmb.Backdoors[bearerToken(r)]; ok {
				auth := tryAuth
				ctx, rlog := logger.ContextWithLoggerIdentity(r.Context(), auth.Login)
				rlog.Warnln("request authorized through backdoor")
				r = r.WithContext(ContextWithAuthorization(ctx, &auth))
			}
			h.ServeHTTP(w, r)
		})
	}
}
