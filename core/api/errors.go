// Copyright 2021 Dalarub & Ettrich GmbH - All Rights Reserved
// Unauthorized copying of this file, via any medium is strictly prohibited
// Proprietary and confidential
// info@dalarub.com
//

package api

import (
	"errors"
	"net/http"

	"github.com/goccy/go-json"

	"github.com/relabs-tech/labadmin/core/account"
	"github.com/relabs-tech/labadmin/core/logger"
)

// error keys of problem responses
const (
	KeyIDExists    = account.KeyIDExists
	KeyUserExists  = "userexists"
	KeyEmailExists = "emailexists"
	KeyForbidden   = "forbidden"
	KeyNotFound    = "notfound"
	KeyValidation  = "validation"
)

// ProblemContentType is the content type of problem responses
const ProblemContentType = "application/problem+json"

// Problem is the body of an error response
type Problem struct {
	Title    string `json:"title"`
	Status   int    `json:"status"`
	ErrorKey string `json:"errorKey"`
	Message  string `json:"message,omitempty"`
}

func writeProblem(w http.ResponseWriter, p Problem) {
	w.Header().Set("Content-Type", ProblemContentType)
	w.WriteHeader(p.Status)
	jsonData, _ := json.Marshal(p)
	w.Write(jsonData)
}

// problemFor maps errors of the account service to problems. The second return value
// is false for errors which have no user visible representation.
func problemFor(err error) (Problem, bool) {
	var verr *account.ValidationError
	switch {
	case errors.As(err, &verr):
		key := verr.Key
		if key == account.KeyInvalid {
			key = KeyValidation
		}
		return Problem{Title: "Invalid user", Status: http.StatusBadRequest, ErrorKey: key, Message: verr.Message}, true
	case errors.Is(err, account.ErrLoginConflict):
		return Problem{Title: "Login name already used!", Status: http.StatusBadRequest, ErrorKey: KeyUserExists}, true
	case errors.Is(err, account.ErrEmailConflict):
		return Problem{Title: "Email is already in use!", Status: http.StatusBadRequest, ErrorKey: KeyEmailExists}, true
	case errors.Is(err, account.ErrForbidden):
		return Problem{Title: "Forbidden", Status: http.StatusForbidden, ErrorKey: KeyForbidden}, true
	case errors.Is(err, account.ErrNotFound):
		return Problem{Title: "User not found", Status: http.StatusNotFound, ErrorKey: KeyNotFound}, true
	}
	return Problem{}, false
}

// writeError writes err as problem. Unexpected errors are logged with code and
// answered with http.StatusInternalServerError.
func writeError(w http.ResponseWriter, r *http.Request, err error, code string) {
	if p, ok := problemFor(err); ok {
		logger.FromContext(r.Context()).Infof("%s %s: %v", r.Method, r.URL.Path, err)
		writeProblem(w, p)
		return
	}
	logger.FromContext(r.Context()).WithError(err).Errorf("Error %s: %s %s", code, r.Method, r.URL.Path)
	http.Error(w, "Error "+code, http.StatusInternalServerError)
}
