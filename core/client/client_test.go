package client

import (
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gorilla/mux"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/relabs-tech/labadmin/core/access"
)

func TestClient(t *testing.T) {
	router := mux.NewRouter()
	router.HandleFunc("/echo", func(w http.ResponseWriter, r *http.Request) {
		auth := access.AuthorizationFromContext(r.Context())
		if auth == nil {
			http.Error(w, "not authorized", http.StatusUnauthorized)
			return
		}
		w.Header().Set("X-Login", auth.Login)
		w.Header().Set("X-Custom", r.Header.Get("X-Custom"))
		w.Write([]byte(`{"login":"` + auth.Login + `"}`))
	}).Methods(http.MethodGet)

	client := NewWithRouter(router)

	_, err := client.RawGet("/echo", nil)
	var serr *StatusError
	require.True(t, errors.As(err, &serr))
	assert.Equal(t, http.StatusUnauthorized, serr.Status)
	assert.Contains(t, string(serr.Body), "not authorized")

	var result struct {
		Login string `json:"login"`
	}
	status, header, err := client.WithRole(access.RolePI).WithHeader("X-Custom", "yes").RawGetWithHeader("/echo", nil, &result)
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, status)
	assert.Equal(t, "pi", result.Login)
	assert.Equal(t, "yes", header.Get("X-Custom"))

	// WithHeader must not leak into the receiver
	_, header, err = client.WithAdminAuthorization().RawGetWithHeader("/echo", nil, nil)
	require.NoError(t, err)
	assert.Equal(t, "", header.Get("X-Custom"))
	assert.Equal(t, "admin", header.Get("X-Login"))

	var raw []byte
	_, err = client.WithAuthorization(&access.Authorization{Login: "jdoe"}).RawGet("/echo", &raw)
	require.NoError(t, err)
	assert.JSONEq(t, `{"login":"jdoe"}`, string(raw))
}

func TestClient_TruncatedBody(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Length", "100")
		w.Write([]byte(`{"lo`))
	}))
	defer server.Close()

	var result map[string]interface{}
	status, err := NewWithURL(server.URL).RawGet("/", &result)
	assert.Equal(t, http.StatusOK, status)
	assert.ErrorIs(t, err, io.ErrUnexpectedEOF)
	assert.Nil(t, result)
}
