package common

// TokenHeaderName is the response header carrying a freshly issued token
// after a successful login.
const TokenHeaderName = "Jwt-Token"

// TokenPrefix precedes the token in the Authorization request header.
const TokenPrefix = "Bearer "
