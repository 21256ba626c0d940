package common

// Default cookie names carrying the token pair.
const (
	AccessTokenCookieName  = "access_token_cookie"
	RefreshTokenCookieName = "refresh_token_cookie"
)

// RequestIDHeaderName is echoed back on every HTTP response.
const RequestIDHeaderName = "X-Request-ID"
