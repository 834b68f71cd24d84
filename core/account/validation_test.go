package account

import (
	"errors"
	"testing"

	"github.com/goccy/go-json"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSchemaUsesLoginRegex(t *testing.T) {
	data, err := schemaFS.ReadFile("schemas/account.json")
	require.NoError(t, err)
	var doc struct {
		Properties struct {
			Login struct {
				Pattern string `json:"pattern"`
			} `json:"login"`
		} `json:"properties"`
	}
	require.NoError(t, json.Unmarshal(data, &doc))
	assert.Equal(t, LoginRegex, doc.Properties.Login.Pattern)
}

func TestValidLogin(t *testing.T) {
	for _, login := range []string{"jdoe", "j.doe", "j_doe-1", "jdoe@x.org", "JDOE"} {
		assert.True(t, ValidLogin(login), login)
	}
	for _, login := range []string{"", "j doe", "jdoe/1", "jdö", "a+b"} {
		assert.False(t, ValidLogin(login), login)
	}
}

func TestValidatePayload(t *testing.T) {
	v, err := NewValidator()
	require.NoError(t, err)

	testCases := []struct {
		name    string
		payload string
		valid   bool
	}{
		{"minimal", `{"login":"jdoe","email":"jdoe@x.org"}`, true},
		{"full", `{"id":null,"login":"jdoe","email":"jdoe@x.org","firstName":"John","activated":true,"langKey":"en","authorities":["ROLE_PI"]}`, true},
		{"bad login", `{"login":"j doe","email":"jdoe@x.org"}`, false},
		{"no email", `{"login":"jdoe"}`, false},
		{"unknown role", `{"login":"jdoe","email":"jdoe@x.org","authorities":["ROLE_KING"]}`, false},
		{"not an object", `[]`, false},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			err := ValidatePayload(v, []byte(tc.payload))
			if tc.valid {
				assert.NoError(t, err)
				return
			}
			var verr *ValidationError
			require.True(t, errors.As(err, &verr), "got %v", err)
			assert.Equal(t, KeyInvalid, verr.Key)
		})
	}
}
