// Copyright 2021 Dalarub & Ettrich GmbH - All Rights Reserved
// Unauthorized copying of this file, via any medium is strictly prohibited
// Proprietary and confidential
// info@dalarub.com
//

package client

import (
	"net/http"
	"net/url"
	"strconv"
)

// Users is the client for the user administration routes
type Users struct {
	client Client
	prefix string
}

// Users returns a client for the user administration below /api
func (c Client) Users() Users {
	return Users{client: c, prefix: "/api/users"}
}

// Create creates an account from body
func (u Users) Create(body interface{}, result interface{}) (int, http.Header, error) {
	return u.client.Do(http.MethodPost, u.prefix, nil, body, result)
}

// Update updates an account from body
func (u Users) Update(body interface{}, result interface{}) (int, http.Header, error) {
	return u.client.Do(http.MethodPut, u.prefix, nil, body, result)
}

// List lists accounts. A negative size lists all accounts, sort is property,direction
// or empty.
func (u Users) List(page, size int, sort string, result interface{}) (int, http.Header, error) {
	query := url.Values{}
	if size >= 0 {
		query.Set("page", strconv.Itoa(page))
		query.Set("size", strconv.Itoa(size))
	}
	if sort != "" {
		query.Set("sort", sort)
	}
	path := u.prefix
	if len(query) > 0 {
		path += "?" + query.Encode()
	}
	return u.client.Do(http.MethodGet, path, nil, nil, result)
}

// Read reads the account with login
func (u Users) Read(login string, result interface{}) (int, error) {
	return u.client.RawGet(u.prefix+"/"+url.PathEscape(login), result)
}

// Delete deletes the account with login
func (u Users) Delete(login string) (int, error) {
	return u.client.RawDelete(u.prefix + "/" + url.PathEscape(login))
}

// Authorities lists the known roles
func (u Users) Authorities(result interface{}) (int, error) {
	return u.client.RawGet(u.prefix+"/authorities", result)
}
