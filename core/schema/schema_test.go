package schema_test

import (
	"errors"
	"testing"
	"testing/fstest"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/relabs-tech/labadmin/core/schema"
)

const (
	loginRef = `{ "$id" : "http://labadmin/login.json",
		"type" : "string", "pattern" : "^[a-z]+$", "maxLength" : 8 }`

	personSchema = `{ "$id" : "http://labadmin/person.json",
		"type" : "object",
		"required" : ["login"],
		"properties" : { "login" : { "$ref" : "http://labadmin/login.json" } }
	}`
)

func TestValidateBytes(t *testing.T) {
	v, err := schema.NewValidator([]string{personSchema}, []string{loginRef})
	require.NoError(t, err)

	id := "http://labadmin/person.json"
	assert.True(t, v.HasSchema(id))
	assert.NoError(t, v.ValidateBytes([]byte(`{"login":"jdoe"}`), id))

	err = v.ValidateBytes([]byte(`{"login":"J D"}`), id)
	var verr *schema.ValidationError
	require.True(t, errors.As(err, &verr))
	assert.Len(t, verr.Details, 1)

	assert.Error(t, v.ValidateBytes([]byte(`{}`), id))
	assert.Error(t, v.ValidateBytes([]byte(`{}`), "http://labadmin/unknown.json"))
}

func TestValidateStruct(t *testing.T) {
	v, err := schema.NewValidator([]string{personSchema}, []string{loginRef})
	require.NoError(t, err)

	type person struct {
		Login string `json:"login"`
	}
	assert.NoError(t, v.ValidateStruct(person{Login: "pi"}, "http://labadmin/person.json"))
	assert.Error(t, v.ValidateStruct(person{Login: "muchtoolong"}, "http://labadmin/person.json"))
}

func TestNewValidatorFromFS(t *testing.T) {
	fsys := fstest.MapFS{
		"schemas/person.json":     {Data: []byte(personSchema)},
		"schemas/refs/login.json": {Data: []byte(loginRef)},
		"schemas/README.md":       {Data: []byte("ignored")},
	}
	v, err := schema.NewValidatorFromFS(fsys, "schemas")
	require.NoError(t, err)
	assert.True(t, v.HasSchema("http://labadmin/person.json"))
	assert.False(t, v.HasSchema("http://labadmin/login.json"))
}

func TestNewValidator_MissingID(t *testing.T) {
	_, err := schema.NewValidator([]string{`{"type":"object"}`}, nil)
	assert.Error(t, err)
}
