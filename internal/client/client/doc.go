// Package client talks to the account backend over HTTP.
//
// # Overview
//
// Client is the contract the CLI depends on; HTTPClient implements it with
// JSON requests, bearer authentication for protected routes and multipart
// uploads.
//
// # Error Handling
//
// Transport failures are reported as ErrUnavailable. Non-2xx responses become
// *APIError, which carries the server's message and unwraps to
// ErrUnauthorized, ErrNotFound or ErrConflict when the status says so.
package client
