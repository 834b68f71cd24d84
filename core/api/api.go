// Copyright 2021 Dalarub & Ettrich GmbH - All Rights Reserved
// Unauthorized copying of this file, via any medium is strictly prohibited
// Proprietary and confidential
// info@dalarub.com
//

/*
Package api serves the user administration over HTTP.

All routes live below /api:

	POST   /api/users                 create an account (admin)
	PUT    /api/users                 update an account (admin, or PI of the same lab)
	GET    /api/users                 list the visible accounts, paged with page, size and sort=property,direction
	GET    /api/users/authorities     list the known roles
	GET    /api/users/{login}         read an account
	DELETE /api/users/{login}         delete an account (admin)
	GET    /api/authorization         the caller's authorization

Errors are answered as problem documents with an errorKey, see Problem.
*/
package api

import (
	"net/http"

	"github.com/gorilla/handlers"
	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/relabs-tech/labadmin/core/access"
	"github.com/relabs-tech/labadmin/core/account"
	"github.com/relabs-tech/labadmin/core/logger"
	"github.com/relabs-tech/labadmin/core/schema"
)

// DefaultAppName is the application name used in alert headers
const DefaultAppName = "labadminApp"

// Builder is a builder helper for the API
type Builder struct {
	// Router is the mux router the routes are added to. Mandatory.
	Router *mux.Router
	// Service administers the accounts. Mandatory.
	Service *account.Service
	// Validator validates account payloads. Defaults to account.NewValidator().
	Validator *schema.Validator
	// Gatherer is served on /metrics. If nil, there is no metrics route.
	Gatherer prometheus.Gatherer
	// AppName is the application name in alert headers. Defaults to DefaultAppName.
	AppName string
	// EnableCORS adds permissive CORS headers and answers preflight requests
	EnableCORS bool
	// EnableCompression compresses responses for clients which accept it
	EnableCompression bool
}

// API is the HTTP surface of the user administration
type API struct {
	router    *mux.Router
	service   *account.Service
	validator *schema.Validator
	appName   string
	cors      bool
}

// New adds the routes to the router
func New(ab *Builder) (*API, error) {
	a := &API{
		router:    ab.Router,
		service:   ab.Service,
		validator: ab.Validator,
		appName:   ab.AppName,
		cors:      ab.EnableCORS,
	}
	if a.appName == "" {
		a.appName = DefaultAppName
	}
	if a.validator == nil {
		v, err := account.NewValidator()
		if err != nil {
			return nil, err
		}
		a.validator = v
	}
	if ab.EnableCORS {
		a.router.Use(corsMiddleware)
	}
	if ab.EnableCompression {
		a.router.Use(handlers.CompressHandler)
	}
	if ab.Gatherer != nil {
		logger.Default().Debugln("  handle route: /metrics GET")
		a.router.Handle("/metrics", promhttp.HandlerFor(ab.Gatherer, promhttp.HandlerOpts{})).Methods(http.MethodGet)
	}

	apiRouter := a.router.PathPrefix("/api").Subrouter()
	access.HandleAuthorizationRoute(apiRouter)
	a.handleUsers(apiRouter)
	return a, nil
}

// Router returns the router of the API
func (a *API) Router() *mux.Router {
	return a.router
}

// methods returns the methods of a route. With CORS, routes also match preflight requests,
// which the CORS middleware answers.
func (a *API) methods(method string) []string {
	if a.cors {
		return []string{method, http.MethodOptions}
	}
	return []string{method}
}

func corsMiddleware(h http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "POST, GET, OPTIONS, PUT, DELETE")
		w.Header().Set("Access-Control-Allow-Headers", "Accept, Content-Type, Content-Length, Accept-Encoding, Authorization")
		w.Header().Set("Access-Control-Expose-Headers", "*")
		w.Header().Set("Access-Control-Max-Age", "86400") // 24 hours

		if r.Method == http.MethodOptions {
			logger.FromContext(r.Context()).Debugln("called route for", r.URL, r.Method, " (handled by CORS middleware)")
			w.WriteHeader(http.StatusNoContent)
			return
		}
		h.ServeHTTP(w, r)
	})
}
