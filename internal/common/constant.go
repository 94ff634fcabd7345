// Package common contains shared constants and sentinel errors used across
// the account service and its client.
package common

// AuthorizationHeaderName carries the bearer token on protected requests.
const AuthorizationHeaderName = "Authorization"

// BearerScheme is the only authentication scheme accepted by the service.
const BearerScheme = "Bearer"
