// Copyright 2021 Dalarub & Ettrich GmbH - All Rights Reserved
// Unauthorized copying of this file, via any medium is strictly prohibited
// Proprietary and confidential
// info@dalarub.com
//

package api

import (
	"errors"
	"io"
	"net/http"

	"github.com/goccy/go-json"
	"github.com/gorilla/mux"

	"github.com/relabs-tech/labadmin/core"
	"github.com/relabs-tech/labadmin/core/access"
	"github.com/relabs-tech/labadmin/core/account"
	"github.com/relabs-tech/labadmin/core/logger"
)

func (a *API) handleUsers(router *mux.Router) {
	users := "/users"
	user := users + "/{login:" + account.LoginPattern + "}"

	logger.Default().Debugln("  handle route:", users, "POST")
	router.HandleFunc(users, access.RequireRole(access.RoleAdmin, a.createUser)).Methods(a.methods(http.MethodPost)...)

	logger.Default().Debugln("  handle route:", users, "PUT")
	router.HandleFunc(users, a.authenticated(a.updateUser)).Methods(a.methods(http.MethodPut)...)

	logger.Default().Debugln("  handle route:", users, "GET")
	router.HandleFunc(users, a.authenticated(a.listUsers)).Methods(a.methods(http.MethodGet)...)

	// before the login route, authorities is a valid login
	logger.Default().Debugln("  handle route:", users+"/authorities", "GET")
	router.HandleFunc(users+"/authorities", a.authenticated(a.listAuthorities)).Methods(a.methods(http.MethodGet)...)

	logger.Default().Debugln("  handle route:", user, "GET")
	router.HandleFunc(user, a.authenticated(a.getUser)).Methods(a.methods(http.MethodGet)...)

	logger.Default().Debugln("  handle route:", user, "DELETE")
	router.HandleFunc(user, access.RequireRole(access.RoleAdmin, a.deleteUser)).Methods(a.methods(http.MethodDelete)...)
}

// authenticated rejects requests without authorization
func (a *API) authenticated(handler http.HandlerFunc) http.HandlerFunc {
	return access.RequireAuthentication()(handler).ServeHTTP
}

// readInput reads and validates an account payload
func (a *API) readInput(w http.ResponseWriter, r *http.Request) (account.Input, bool) {
	var in account.Input
	body, err := io.ReadAll(r.Body)
	if err != nil {
		http.Error(w, "cannot read body", http.StatusBadRequest)
		return in, false
	}
	if err := account.ValidatePayload(a.validator, body); err != nil {
		writeError(w, r, err, "4901")
		return in, false
	}
	if err := json.Unmarshal(body, &in); err != nil {
		writeProblem(w, Problem{Title: "Invalid user", Status: http.StatusBadRequest, ErrorKey: KeyValidation, Message: err.Error()})
		return in, false
	}
	return in, true
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	jsonData, _ := json.Marshal(v)
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	w.Write(jsonData)
}

func (a *API) createUser(w http.ResponseWriter, r *http.Request) {
	logger.FromContext(r.Context()).Infoln("called route for", r.URL, r.Method)
	in, ok := a.readInput(w, r)
	if !ok {
		return
	}
	created, location, err := a.service.CreateAccount(r.Context(), in)
	if err != nil {
		writeError(w, r, err, "4902")
		return
	}
	w.Header().Set("Location", location)
	a.setAlert(w, core.OperationCreate, created.Login)
	writeJSON(w, http.StatusCreated, created)
}

func (a *API) updateUser(w http.ResponseWriter, r *http.Request) {
	logger.FromContext(r.Context()).Infoln("called route for", r.URL, r.Method)
	in, ok := a.readInput(w, r)
	if !ok {
		return
	}
	updated, err := a.service.UpdateAccount(r.Context(), in)
	if errors.Is(err, account.ErrForbidden) {
		a.setFailureAlert(w, KeyForbidden)
		w.WriteHeader(http.StatusBadRequest)
		return
	}
	if err != nil {
		writeError(w, r, err, "4903")
		return
	}
	a.setAlert(w, core.OperationUpdate, updated.Login)
	writeJSON(w, http.StatusOK, updated)
}

func (a *API) listUsers(w http.ResponseWriter, r *http.Request) {
	logger.FromContext(r.Context()).Infoln("called route for", r.URL, r.Method)
	pr, err := parsePageRequest(r.URL.Query())
	if err != nil {
		writeProblem(w, Problem{Title: "Bad page request", Status: http.StatusBadRequest, ErrorKey: KeyValidation, Message: err.Error()})
		return
	}
	page, err := a.service.ListAccounts(r.Context(), pr)
	if err != nil {
		writeError(w, r, err, "4904")
		return
	}
	setPaginationHeaders(w, r, page)
	writeJSON(w, http.StatusOK, page.Items)
}

func (a *API) listAuthorities(w http.ResponseWriter, r *http.Request) {
	logger.FromContext(r.Context()).Infoln("called route for", r.URL, r.Method)
	roles, err := a.service.ListAuthorities(r.Context())
	if err != nil {
		writeError(w, r, err, "4905")
		return
	}
	writeJSON(w, http.StatusOK, roles)
}

func (a *API) getUser(w http.ResponseWriter, r *http.Request) {
	logger.FromContext(r.Context()).Infoln("called route for", r.URL, r.Method)
	found, err := a.service.GetAccount(r.Context(), mux.Vars(r)["login"])
	if err != nil {
		writeError(w, r, err, "4906")
		return
	}
	writeJSON(w, http.StatusOK, found)
}

func (a *API) deleteUser(w http.ResponseWriter, r *http.Request) {
	logger.FromContext(r.Context()).Infoln("called route for", r.URL, r.Method)
	login := mux.Vars(r)["login"]
	if err := a.service.DeleteAccount(r.Context(), login); err != nil {
		writeError(w, r, err, "4907")
		return
	}
	a.setAlert(w, core.OperationDelete, login)
	w.WriteHeader(http.StatusNoContent)
}
