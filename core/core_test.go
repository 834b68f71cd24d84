package core

import (
	"testing"

	"github.com/goccy/go-json"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOperationUnmarshal(t *testing.T) {
	var object struct {
		Operations []Operation `json:"operations"`
	}
	require.NoError(t, json.Unmarshal([]byte(`{"operations":["create","read","update","delete","list"]}`), &object))
	assert.Equal(t, []Operation{OperationCreate, OperationRead, OperationUpdate, OperationDelete, OperationList}, object.Operations)

	assert.Error(t, json.Unmarshal([]byte(`{"operations":["approve"]}`), &object), "unknown operation accepted")
}

func TestOperationPast(t *testing.T) {
	assert.Equal(t, "created", OperationCreate.Past())
	assert.Equal(t, "updated", OperationUpdate.Past())
	assert.Equal(t, "deleted", OperationDelete.Past())
	assert.Equal(t, "listed", OperationList.Past())
	assert.Equal(t, "read", OperationRead.Past())
}
