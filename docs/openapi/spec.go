// Package openapi embeds the gateway's OpenAPI document, served at /api-docs.
package openapi

import _ "embed"

// GatewaySpec is the OpenAPI 3 description of the HTTP gateway.
//
//go:embed gateway.yaml
var GatewaySpec []byte

// Spec returns a copy of the embedded document.
func Spec() []byte {
	return append([]byte(nil), GatewaySpec...)
}
