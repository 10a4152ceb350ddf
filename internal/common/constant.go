package common

const (
	// AccessTokenCookieName is the cookie carrying the access token issued on
	// register/login.
	AccessTokenCookieName = "token"

	// AuthorizationHeaderName is the header accepted as an alternative to the
	// cookie, in the form "Bearer <token>".
	AuthorizationHeaderName = "Authorization"
)
