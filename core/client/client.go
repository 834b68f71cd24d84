// Copyright 2021 Dalarub & Ettrich GmbH - All Rights Reserved
// Unauthorized copying of this file, via any medium is strictly prohibited
// Proprietary and confidential
// info@dalarub.com
//

/*
Package client provides easy and fast in-process access to a REST api

Instead of marshalling HTTP, the client talks directly to the mux router. The client
is the tool of choice if one request handler needs to call other handlers to fulfill
its task. It is also perfectly suited for unit tests.
*/
package client

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"time"

	"github.com/goccy/go-json"
	"github.com/gorilla/mux"

	"github.com/relabs-tech/labadmin/core/access"
)

// Client provides easy access to the REST API.
type Client struct {
	router     *mux.Router
	httpClient *http.Client
	url        string
	token      string
	auth       *access.Authorization
	ctx        context.Context

	defaultHeaders map[string]string
}

// StatusError is returned for responses with a status other than 2xx
type StatusError struct {
	Status int
	Body   []byte
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("handler returned status code %d. Error: %s", e.Status, strings.TrimSpace(string(e.Body)))
}

// NewWithRouter creates a client to make pseudo-REST requests to the backend,
// through the mux router
//
// WithAuthorization() adds an authorization to the request context.
// WithContext() specifies a different base context all together.
func NewWithRouter(router *mux.Router) Client {
	return Client{
		router:         router,
		defaultHeaders: map[string]string{},
	}
}

// NewWithURL creates a client to make REST requests to the backend
//
// WithToken adds an authorization token to the request header.
func NewWithURL(url string) Client {
	return Client{
		url:            url,
		httpClient:     &http.Client{Timeout: 20 * time.Second},
		defaultHeaders: map[string]string{},
	}
}

// WithHeader returns a new client with a default header added
func (c Client) WithHeader(key string, value string) Client {
	headers := map[string]string{key: value}
	for k, v := range c.defaultHeaders {
		if k != key {
			headers[k] = v
		}
	}
	c.defaultHeaders = headers
	return c
}

// WithToken returns a new client with a bearer token
func (c Client) WithToken(token string) Client {
	c.token = token
	return c
}

// WithAdminAuthorization returns a new client with admin authorizations
// (this works only directly against the mux router, for a normal client
//
//	use WithToken()))
func (c Client) WithAdminAuthorization() Client {
	return c.WithRole(access.RoleAdmin)
}

// WithRole returns a new client with role authorization
// (this works only directly against the mux router, for a normal client
//
//	use WithToken()))
func (c Client) WithRole(role access.Role) Client {
	c.auth = &access.Authorization{
		Login: strings.ToLower(strings.TrimPrefix(string(role), "ROLE_")),
		Roles: access.Roles{role},
	}
	return c
}

// WithAuthorization returns a new client with specific authorizations
// (this works only directly against the mux router, for a normal client
//
//	use WithToken())
func (c Client) WithAuthorization(auth *access.Authorization) Client {
	c.auth = auth
	return c
}

// WithContext returns a new client with specific request context
func (c Client) WithContext(ctx context.Context) Client {
	c.ctx = ctx
	return c
}

// Context returns the request context, including the authorization
func (c Client) Context() context.Context {
	ctx := c.ctx
	if c.ctx == nil {
		ctx = context.Background()
	}
	if c.auth != nil {
		ctx = access.ContextWithAuthorization(ctx, c.auth)
	}
	return ctx
}

// Do executes a request. A body of type []byte is sent as is, everything else is
// marshalled to json. If result is a *[]byte, it receives the raw response body,
// otherwise the body is unmarshalled into result. Responses other than 2xx yield a
// *StatusError.
func (c Client) Do(method, path string, header map[string]string, body interface{}, result interface{}) (int, http.Header, error) {
	var reader io.Reader
	if body != nil {
		data, ok := body.([]byte)
		if !ok {
			var err error
			if data, err = json.Marshal(body); err != nil {
				return http.StatusInternalServerError, nil, err
			}
		}
		reader = bytes.NewReader(data)
	}

	r, err := http.NewRequestWithContext(c.Context(), method, c.url+path, reader)
	if err != nil {
		return http.StatusInternalServerError, nil, err
	}
	if body != nil {
		r.Header.Set("Content-Type", "application/json")
	}
	for key, value := range c.defaultHeaders {
		r.Header.Add(key, value)
	}
	for key, value := range header {
		r.Header.Add(key, value)
	}

	var res *http.Response
	var resBody []byte
	if c.router != nil {
		rec := httptest.NewRecorder()
		c.router.ServeHTTP(rec, r)
		res = rec.Result()
		resBody = rec.Body.Bytes()
	} else {
		if c.token != "" {
			r.Header.Add("Authorization", "Bearer "+c.token)
		}
		res, err = c.httpClient.Do(r)
		if err != nil {
			return http.StatusInternalServerError, nil, err
		}
		defer res.Body.Close()
		if resBody, err = io.ReadAll(res.Body); err != nil {
			return res.StatusCode, res.Header, err
		}
	}

	status := res.StatusCode
	if status < 200 || status > 299 {
		return status, res.Header, &StatusError{Status: status, Body: resBody}
	}
	if status == http.StatusNoContent || len(resBody) == 0 || result == nil {
		return status, res.Header, nil
	}
	if raw, ok := result.(*[]byte); ok {
		*raw = resBody
		return status, res.Header, nil
	}
	return status, res.Header, json.Unmarshal(resBody, result)
}

// RawGet fetches path into result
func (c Client) RawGet(path string, result interface{}) (int, error) {
	status, _, err := c.Do(http.MethodGet, path, nil, nil, result)
	return status, err
}

// RawGetWithHeader fetches path into result, sending header and returning the response header
func (c Client) RawGetWithHeader(path string, header map[string]string, result interface{}) (int, http.Header, error) {
	return c.Do(http.MethodGet, path, header, nil, result)
}

// RawPost posts body to path and reads the response into result
func (c Client) RawPost(path string, body interface{}, result interface{}) (int, error) {
	status, _, err := c.Do(http.MethodPost, path, nil, body, result)
	return status, err
}

// RawPut puts body to path and reads the response into result
func (c Client) RawPut(path string, body interface{}, result interface{}) (int, error) {
	status, _, err := c.Do(http.MethodPut, path, nil, body, result)
	return status, err
}

// RawDelete deletes path
func (c Client) RawDelete(path string) (int, error) {
	status, _, err := c.Do(http.MethodDelete, path, nil, nil, nil)
	return status, err
}
