// Copyright 2021 Dalarub & Ettrich GmbH - All Rights Reserved
// Unauthorized copying of this file, via any medium is strictly prohibited
// Proprietary and confidential
// info@dalarub.com
//

/*
Package account implements the administration of user accounts.

Accounts are the identities of the lab administration: every account has a
unique login, a unique email address and a set of roles. An account can have
a lab profile, which makes it a member of a lab. The Service enforces who may
create, update, list and delete accounts; a Store persists them and a
Notifier informs the account holders by mail.
*/
package account

import (
	"fmt"
	"time"

	"github.com/goccy/go-json"
	"github.com/google/uuid"

	"github.com/relabs-tech/labadmin/core/access"
)

// Account is a user identity
type Account struct {
	ID               uuid.UUID    `json:"id,omitempty"`
	Login            string       `json:"login"`
	FirstName        string       `json:"firstName,omitempty"`
	LastName         string       `json:"lastName,omitempty"`
	Email            string       `json:"email"`
	ImageURL         string       `json:"imageUrl,omitempty"`
	Activated        bool         `json:"activated"`
	LangKey          string       `json:"langKey,omitempty"`
	Authorities      access.Roles `json:"authorities"`
	CreatedBy        string       `json:"createdBy,omitempty"`
	CreatedDate      time.Time    `json:"createdDate"`
	LastModifiedBy   string       `json:"lastModifiedBy,omitempty"`
	LastModifiedDate time.Time    `json:"lastModifiedDate"`

	PasswordHash  string     `json:"-"`
	ActivationKey string     `json:"-"`
	ResetKey      string     `json:"-"`
	ResetDate     *time.Time `json:"-"`
}

// Input is the set of account fields a caller submits for create and update
type Input struct {
	ID          *uuid.UUID   `json:"id,omitempty"`
	Login       string       `json:"login"`
	FirstName   string       `json:"firstName,omitempty"`
	LastName    string       `json:"lastName,omitempty"`
	Email       string       `json:"email"`
	ImageURL    string       `json:"imageUrl,omitempty"`
	Activated   bool         `json:"activated"`
	LangKey     string       `json:"langKey,omitempty"`
	Authorities access.Roles `json:"authorities,omitempty"`
}

// Lab is an organizational unit which submits data
type Lab struct {
	ID            uuid.UUID `json:"id"`
	Code          string    `json:"labCode"`
	Name          string    `json:"name,omitempty"`
	Department    string    `json:"department,omitempty"`
	Institute     string    `json:"institution,omitempty"`
	Address       string    `json:"address,omitempty"`
	City          string    `json:"city,omitempty"`
	Country       string    `json:"country,omitempty"`
	DirectorName  string    `json:"directorName,omitempty"`
	DirectorEmail string    `json:"directorEmail,omitempty"`
	ContactName   string    `json:"contactName,omitempty"`
	ContactEmail  string    `json:"contactEmail,omitempty"`
	ContactPhone  string    `json:"contactPhone,omitempty"`
	CreatedAt     time.Time `json:"createdAt"`
}

// LabProfile extends exactly one account with its lab membership
type LabProfile struct {
	AccountID uuid.UUID `json:"userId"`
	LabID     uuid.UUID `json:"labId,omitempty"`
	Phone     string    `json:"phone,omitempty"`
}

// Project groups labs. Accounts which lead a project receive subscription notices
// when a lab joins it.
type Project struct {
	ID          uuid.UUID   `json:"id"`
	Name        string      `json:"name"`
	Description string      `json:"description,omitempty"`
	LabIDs      []uuid.UUID `json:"labIds,omitempty"`
	CreatedAt   time.Time   `json:"createdAt"`
	ModifiedAt  time.Time   `json:"modifiedAt"`
}

// UploadType is the format of an uploaded typing data file
type UploadType string

// the known upload types
const (
	UploadTypeHAML UploadType = "HAML"
	UploadTypeHML  UploadType = "HML"
)

// ParseUploadType returns the upload type for name or an error if there is no such type
func ParseUploadType(name string) (UploadType, error) {
	switch t := UploadType(name); t {
	case UploadTypeHAML, UploadTypeHML:
		return t, nil
	}
	return "", fmt.Errorf("%s is not a valid upload type", name)
}

// UnmarshalJSON is a custom JSON unmarshaller which rejects unknown types
func (t *UploadType) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	parsed, err := ParseUploadType(s)
	if err != nil {
		return err
	}
	*t = parsed
	return nil
}

// Upload is a data file a lab member submitted
type Upload struct {
	ID         uuid.UUID   `json:"id"`
	Type       UploadType  `json:"type"`
	Valid      bool        `json:"valid"`
	Enabled    bool        `json:"enabled"`
	CreatedBy  *LabProfile `json:"createdBy,omitempty"`
	CreatedAt  time.Time   `json:"createdAt"`
	ModifiedAt time.Time   `json:"modifiedAt"`
}

// apply copies the submitted fields of in onto a. Login and email are
// stored lower case.
func (a *Account) apply(in Input) {
	a.Login = normalize(in.Login)
	a.FirstName = in.FirstName
	a.LastName = in.LastName
	a.Email = normalize(in.Email)
	a.ImageURL = in.ImageURL
	a.Activated = in.Activated
	if in.LangKey != "" {
		a.LangKey = in.LangKey
	}
	a.Authorities = in.Authorities.Normalize()
}
