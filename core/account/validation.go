// Copyright 2021 Dalarub & Ettrich GmbH - All Rights Reserved
// Unauthorized copying of this file, via any medium is strictly prohibited
// Proprietary and confidential
// info@dalarub.com
//

package account

import (
	"embed"
	"errors"
	"regexp"
	"strings"

	"github.com/relabs-tech/labadmin/core/schema"
)

// LoginPattern is the pattern of a login, without anchors, as used in routes
const LoginPattern = `[_.@A-Za-z0-9-]+`

// LoginRegex is the anchored pattern of a login. The account schema uses the same expression.
const LoginRegex = `^` + LoginPattern + `$`

// SchemaID is the id of the JSON schema for account payloads
const SchemaID = "http://labadmin/account.json"

var loginRegexp = regexp.MustCompile(LoginRegex)

//go:embed schemas/*.json
var schemaFS embed.FS

// NewValidator returns a validator for account payloads
func NewValidator() (*schema.Validator, error) {
	return schema.NewValidatorFromFS(schemaFS, "schemas")
}

// ValidLogin returns true if login matches LoginRegex
func ValidLogin(login string) bool {
	return loginRegexp.MatchString(login)
}

// ValidatePayload validates a raw create or update payload. Violations are returned as
// *ValidationError.
func ValidatePayload(v *schema.Validator, data []byte) error {
	err := v.ValidateBytes(data, SchemaID)
	var verr *schema.ValidationError
	if errors.As(err, &verr) {
		return validationError(KeyInvalid, strings.Join(verr.Details, "; "))
	}
	return err
}
