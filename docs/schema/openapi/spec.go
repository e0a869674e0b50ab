// Package openapi embeds the HTTP API contract for runtime distribution.
package openapi

import _ "embed"

// APISpec contains the OpenAPI document describing the /api/v1 surface.
//
//go:embed api.yaml
var APISpec []byte

// Spec returns a defensive copy of the embedded OpenAPI YAML.
func Spec() []byte {
	return append([]byte(nil), APISpec...)
}
