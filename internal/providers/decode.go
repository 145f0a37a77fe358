package providers

import (
	"encoding/json"
	"strings"
	"time"

	"github.com/xeipuuv/gojsonschema"

	dserrors "github.com/systmms/rolecreds/internal/errors"
	"github.com/systmms/rolecreds/pkg/credentials"
)

// DecodeFunc turns a credentials document into a snapshot.
type DecodeFunc func(data []byte) (credentials.Snapshot, error)

// credentialsSchema accepts the container endpoint document and the
// `aws sts assume-role` output document.
const credentialsSchema = `{
  "$schema": "http://json-schema.org/draft-07/schema#",
  "definitions": {
    "keys": {
      "type": "object",
      "required": ["AccessKeyId", "SecretAccessKey"],
      "properties": {
        "AccessKeyId": {"type": "string", "minLength": 1},
        "SecretAccessKey": {"type": "string", "minLength": 1},
        "Token": {"type": "string"},
        "SessionToken": {"type": "string"},
        "Expiration": {"type": "string"}
      }
    }
  },
  "anyOf": [
    {"$ref": "#/definitions/keys"},
    {
      "type": "object",
      "required": ["Credentials"],
      "properties": {"Credentials": {"$ref": "#/definitions/keys"}}
    }
  ]
}`

var compiledSchema = mustCompileSchema(credentialsSchema)

func mustCompileSchema(schema string) *gojsonschema.Schema {
	s, err := gojsonschema.NewSchema(gojsonschema.NewStringLoader(schema))
	if err != nil {
		panic(err)
	}
	return s
}

type credentialsDocument struct {
	AccessKeyID     string `json:"AccessKeyId"`
	SecretAccessKey string `json:"SecretAccessKey"`
	Token           string `json:"Token"`
	SessionToken    string `json:"SessionToken"`
	Expiration      string `json:"Expiration"`

	Credentials *credentialsDocument `json:"Credentials"`
}

// Decode parses either credentials document shape. The session token and
// expiration are optional; a document failing the schema is a
// MalformedResponseError.
func Decode(data []byte) (credentials.Snapshot, error) {
	result, err := compiledSchema.Validate(gojsonschema.NewBytesLoader(data))
	if err != nil {
		return credentials.Snapshot{}, &dserrors.MalformedResponseError{Reason: "invalid JSON", Err: err}
	}
	if !result.Valid() {
		var messages []string
		for _, desc := range result.Errors() {
			messages = append(messages, desc.String())
		}
		return credentials.Snapshot{}, &dserrors.MalformedResponseError{
			Reason: "schema validation failed: " + strings.Join(messages, "; "),
		}
	}

	var doc credentialsDocument
	if err := json.Unmarshal(data, &doc); err != nil {
		return credentials.Snapshot{}, &dserrors.MalformedResponseError{Reason: "invalid JSON", Err: err}
	}
	if doc.Credentials != nil {
		doc = *doc.Credentials
	}

	token := doc.Token
	if token == "" {
		token = doc.SessionToken
	}

	snapshot := credentials.Snapshot{
		Credentials: credentials.Credentials{
			AccessKeyID:     doc.AccessKeyID,
			SecretAccessKey: doc.SecretAccessKey,
			SessionToken:    token,
		},
	}
	if doc.Expiration != "" {
		expiration, err := time.Parse(time.RFC3339, doc.Expiration)
		if err != nil {
			return credentials.Snapshot{}, &dserrors.MalformedResponseError{Reason: "invalid Expiration", Err: err}
		}
		snapshot.Expiration = expiration
	}
	return snapshot, nil
}
