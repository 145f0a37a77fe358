package config

import (
	"os"
	"sort"
	"strings"
)

// Recognized configuration keys.
const (
	// KeyRelativeURI selects the rotating endpoint source.
	KeyRelativeURI = "AWS_CONTAINER_CREDENTIALS_RELATIVE_URI"

	// KeyAuthorizationToken is sent as the Authorization header to the
	// credentials endpoint when set.
	KeyAuthorizationToken = "AWS_CONTAINER_AUTHORIZATION_TOKEN"

	// KeyEndpointHost overrides the credentials endpoint host.
	KeyEndpointHost = "ROLECREDS_ENDPOINT_HOST"

	KeyAccessKeyID     = "AWS_ACCESS_KEY_ID"
	KeySecretAccessKey = "AWS_SECRET_ACCESS_KEY"
	KeySessionToken    = "AWS_SESSION_TOKEN"

	// KeyDevRoleARN selects the dev role source in builds where it exists.
	KeyDevRoleARN = "ROLECREDS_DEV_ROLE_ARN"
)

// Source is a read-only key/value configuration source.
type Source interface {
	Lookup(key string) (string, bool)
}

// SourceFunc adapts a lookup function to Source.
type SourceFunc func(key string) (string, bool)

// Lookup calls f(key).
func (f SourceFunc) Lookup(key string) (string, bool) {
	return f(key)
}

// Env returns the process environment as a Source.
func Env() Source {
	return SourceFunc(os.LookupEnv)
}

// Map is an in-memory Source.
type Map map[string]string

// Lookup implements Source.
func (m Map) Lookup(key string) (string, bool) {
	v, ok := m[key]
	return v, ok
}

// Keys returns the map's keys in sorted order.
func (m Map) Keys() []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// Layered returns a Source that consults sources in order; the first one
// holding a non-empty value wins.
func Layered(sources ...Source) Source {
	return SourceFunc(func(key string) (string, bool) {
		for _, s := range sources {
			if s == nil {
				continue
			}
			if v, ok := Value(s, key); ok {
				return v, true
			}
		}
		return "", false
	})
}

// Value looks up key and reports whether it holds a non-blank value. Keys
// set to an empty string count as absent.
func Value(src Source, key string) (string, bool) {
	v, ok := src.Lookup(key)
	if !ok {
		return "", false
	}
	v = strings.TrimSpace(v)
	return v, v != ""
}

// Has reports whether every key holds a non-blank value.
func Has(src Source, keys ...string) bool {
	for _, key := range keys {
		if _, ok := Value(src, key); !ok {
			return false
		}
	}
	return true
}
