// Copyright 2021 Dalarub & Ettrich GmbH - All Rights Reserved
// Unauthorized copying of this file, via any medium is strictly prohibited
// Proprietary and confidential
// info@dalarub.com
//

package account

import (
	"errors"
)

// errors returned by the Service and the Store. Match them with errors.Is.
var (
	ErrNotFound      = errors.New("account not found")
	ErrLoginConflict = errors.New("login name already used")
	ErrEmailConflict = errors.New("email is already in use")
	ErrForbidden     = errors.New("not allowed to modify this account")
	ErrValidation    = errors.New("invalid account")
)

// validation error keys
const (
	KeyIDExists      = "idexists"
	KeyIDMissing     = "idnull"
	KeyNoAuthorities = "noauthorities"
	KeyInvalid       = "invalid"
)

// ValidationError is returned for malformed or contradictory input. It matches ErrValidation.
type ValidationError struct {
	Key     string
	Message string
}

func (e *ValidationError) Error() string {
	return e.Message
}

// Is makes errors.Is(err, ErrValidation) work
func (e *ValidationError) Is(target error) bool {
	return target == ErrValidation
}

func validationError(key, message string) error {
	return &ValidationError{Key: key, Message: message}
}
