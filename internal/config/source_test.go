package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestMapLookup(t *testing.T) {
	t.Parallel()

	m := Map{KeyAccessKeyID: "AKIDEXAMPLE", KeySessionToken: ""}

	v, ok := m.Lookup(KeyAccessKeyID)
	assert.True(t, ok)
	assert.Equal(t, "AKIDEXAMPLE", v)

	_, ok = m.Lookup(KeySecretAccessKey)
	assert.False(t, ok)

	assert.Equal(t, []string{KeyAccessKeyID, KeySessionToken}, m.Keys())
}

func TestValueTreatsBlankAsAbsent(t *testing.T) {
	t.Parallel()

	m := Map{
		KeyAccessKeyID:     "  AKIDEXAMPLE ",
		KeySecretAccessKey: "",
		KeySessionToken:    "   ",
	}

	v, ok := Value(m, KeyAccessKeyID)
	assert.True(t, ok)
	assert.Equal(t, "AKIDEXAMPLE", v)

	_, ok = Value(m, KeySecretAccessKey)
	assert.False(t, ok)
	_, ok = Value(m, KeySessionToken)
	assert.False(t, ok)
	_, ok = Value(m, KeyDevRoleARN)
	assert.False(t, ok)
}

func TestHas(t *testing.T) {
	t.Parallel()

	m := Map{KeyAccessKeyID: "AKIDEXAMPLE", KeySecretAccessKey: "secret"}

	assert.True(t, Has(m, KeyAccessKeyID, KeySecretAccessKey))
	assert.False(t, Has(m, KeyAccessKeyID, KeySessionToken))
	assert.True(t, Has(m))
}

func TestEnv(t *testing.T) {
	t.Setenv(KeyRelativeURI, "/v2/credentials/abc")

	v, ok := Value(Env(), KeyRelativeURI)
	assert.True(t, ok)
	assert.Equal(t, "/v2/credentials/abc", v)
}

func TestLayered(t *testing.T) {
	t.Parallel()

	top := Map{KeyEndpointHost: "", KeyAccessKeyID: "top"}
	bottom := Map{KeyEndpointHost: "http://127.0.0.1:8080", KeyAccessKeyID: "bottom"}
	src := Layered(top, nil, bottom)

	v, ok := src.Lookup(KeyEndpointHost)
	assert.True(t, ok)
	assert.Equal(t, "http://127.0.0.1:8080", v)

	v, ok = src.Lookup(KeyAccessKeyID)
	assert.True(t, ok)
	assert.Equal(t, "top", v)

	_, ok = src.Lookup(KeyDevRoleARN)
	assert.False(t, ok)
}
