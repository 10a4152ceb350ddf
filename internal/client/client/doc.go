// Package client talks to the gophsocial HTTP API.
//
// HTTPClient keeps the access token returned by Login and sends it as a
// bearer token on every later call. Failures come back as *APIError
// carrying the server's status and code; errors.Is matches them against
// ErrUnauthorized, ErrNotFound, ErrForbidden and ErrConflict. Transport
// failures match ErrUnavailable.
package client
